package pipeline

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/niseko-gazet/haystack/internal/adaptive"
	"github.com/niseko-gazet/haystack/internal/collect"
	"github.com/niseko-gazet/haystack/internal/config"
	"github.com/niseko-gazet/haystack/internal/fingerprint"
	"github.com/niseko-gazet/haystack/internal/llm"
	"github.com/niseko-gazet/haystack/internal/logging"
	"github.com/niseko-gazet/haystack/internal/store"
	"github.com/niseko-gazet/haystack/internal/types"
)

// fakeStore emulates the slice of the REST surface the pipeline
// touches, keeping every write for assertions.
type fakeStore struct {
	mu sync.Mutex

	sources       []types.Source
	dupRows       map[string]types.CrawlRecord // by fingerprint
	crossLangRows []types.CrawlRecord

	crawlRows       []types.CrawlRecord
	moderationItems []types.ModerationItem
	fieldNotes      []types.FieldNote
	sourcePatches   []string // source IDs marked fetched
	runStatus       string
	runStats        map[string]any
}

func newFakeStore() *fakeStore {
	return &fakeStore{dupRows: map[string]types.CrawlRecord{}}
}

func (f *fakeStore) handler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		defer f.mu.Unlock()

		q := r.URL.Query()
		switch {
		case strings.HasSuffix(r.URL.Path, "/pipeline_runs") && r.Method == http.MethodPost:
			var run types.PipelineRun
			_ = json.NewDecoder(r.Body).Decode(&run)
			_ = json.NewEncoder(w).Encode([]types.PipelineRun{run})

		case strings.HasSuffix(r.URL.Path, "/pipeline_runs") && r.Method == http.MethodPatch:
			var body struct {
				Status string         `json:"status"`
				Stats  map[string]any `json:"stats"`
			}
			_ = json.NewDecoder(r.Body).Decode(&body)
			f.runStatus = body.Status
			f.runStats = body.Stats
			w.WriteHeader(http.StatusNoContent)

		case strings.HasSuffix(r.URL.Path, "/source_feeds") && r.Method == http.MethodGet:
			kind := strings.TrimPrefix(q.Get("source_type"), "eq.")
			var out []types.Source
			for _, s := range f.sources {
				if kind == "" || s.Kind == kind {
					out = append(out, s)
				}
			}
			_ = json.NewEncoder(w).Encode(out)

		case strings.HasSuffix(r.URL.Path, "/source_feeds") && r.Method == http.MethodPatch:
			f.sourcePatches = append(f.sourcePatches, strings.TrimPrefix(q.Get("id"), "eq."))
			w.WriteHeader(http.StatusNoContent)

		case strings.HasSuffix(r.URL.Path, "/crawl_history") && r.Method == http.MethodGet:
			switch {
			case q.Get("content_fingerprint") != "":
				fp := strings.TrimPrefix(q.Get("content_fingerprint"), "eq.")
				if row, ok := f.dupRows[fp]; ok {
					_ = json.NewEncoder(w).Encode([]types.CrawlRecord{row})
				} else {
					_, _ = w.Write([]byte("[]"))
				}
			case q.Get("was_duplicate") != "":
				_ = json.NewEncoder(w).Encode(f.crossLangRows)
			default:
				_, _ = w.Write([]byte("[]"))
			}

		case strings.HasSuffix(r.URL.Path, "/crawl_history") && r.Method == http.MethodPost:
			var rec types.CrawlRecord
			_ = json.NewDecoder(r.Body).Decode(&rec)
			f.crawlRows = append(f.crawlRows, rec)
			_ = json.NewEncoder(w).Encode([]types.CrawlRecord{rec})

		case strings.HasSuffix(r.URL.Path, "/moderation_queue") && r.Method == http.MethodPost:
			var item types.ModerationItem
			_ = json.NewDecoder(r.Body).Decode(&item)
			f.moderationItems = append(f.moderationItems, item)
			_ = json.NewEncoder(w).Encode([]types.ModerationItem{item})

		case strings.HasSuffix(r.URL.Path, "/moderation_queue") && r.Method == http.MethodGet:
			_, _ = w.Write([]byte("[]"))

		case strings.HasSuffix(r.URL.Path, "/field_notes") && r.Method == http.MethodPost:
			var note types.FieldNote
			_ = json.NewDecoder(r.Body).Decode(&note)
			f.fieldNotes = append(f.fieldNotes, note)
			_ = json.NewEncoder(w).Encode([]types.FieldNote{note})

		default:
			http.NotFound(w, r)
		}
	}
}

func (f *fakeStore) rowsWithStatus(status string) []types.CrawlRecord {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []types.CrawlRecord
	for _, rec := range f.crawlRows {
		if rec.Status == status {
			out = append(out, rec)
		}
	}
	return out
}

// scriptedLLM answers requests by prompt inspection so one provider
// can serve classification, enrichment and translation in a test.
type scriptedLLM struct {
	mu    sync.Mutex
	calls []string
	fn    func(req llm.Request) (string, error)
}

func (s *scriptedLLM) Name() string { return "scripted" }

func (s *scriptedLLM) Generate(_ context.Context, req llm.Request) (string, error) {
	s.mu.Lock()
	s.calls = append(s.calls, req.Prompt)
	s.mu.Unlock()
	return s.fn(req)
}

// stubCollector returns canned articles for its kind.
type stubCollector struct {
	kind     string
	articles []types.RawArticle
	errs     []types.CollectError
}

func (c *stubCollector) Kind() string { return c.kind }

func (c *stubCollector) Collect(_ context.Context, _ []types.Source) ([]types.RawArticle, []types.CollectError) {
	return c.articles, c.errs
}

func testPipeline(t *testing.T, fs *fakeStore, provider llm.Provider, collectors ...collect.Collector) *Pipeline {
	t.Helper()
	srv := httptest.NewServer(fs.handler())
	t.Cleanup(srv.Close)

	cfg := config.DefaultConfig()
	st := store.New(config.StoreConfig{BaseURL: srv.URL, ServiceKey: "k"}, logging.Nop())
	chain := llm.NewChain(provider, nil, logging.Nop())
	thresholds := adaptiveThresholds(cfg, st)

	return New(st, chain, collect.NewRegistry(collectors...), thresholds, cfg, logging.Nop())
}

func adaptiveThresholds(cfg *config.Config, st *store.Client) *adaptive.Thresholds {
	return adaptive.NewThresholds(cfg.Thresholds.MinRelevance, st, logging.Nop())
}

func storeAt(url string) *store.Client {
	return store.New(config.StoreConfig{BaseURL: url, ServiceKey: "k"}, logging.Nop())
}

func simhashFor(a types.RawArticle) string {
	return fingerprint.SimHash(a.Title + " " + a.Body)
}

func rawArticle(id, name, title, body string) types.RawArticle {
	return types.RawArticle{
		SourceID:   id,
		SourceKind: types.KindRSS,
		SourceURL:  "https://example.com/" + strings.ReplaceAll(strings.ToLower(title), " ", "-"),
		SourceName: name,
		Title:      title,
		Body:       body,
		Language:   types.LangEnglish,
		Metadata:   map[string]any{},
		FetchedAt:  "2026-01-10T00:00:00Z",
	}
}

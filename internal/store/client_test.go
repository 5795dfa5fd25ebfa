package store

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/niseko-gazet/haystack/internal/config"
	"github.com/niseko-gazet/haystack/internal/logging"
	"github.com/niseko-gazet/haystack/internal/types"
)

type capturedRequest struct {
	method string
	path   string
	query  map[string]string
	body   map[string]any
}

func testClient(t *testing.T, status int, response string, captured *capturedRequest) *Client {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "service-key", r.Header.Get("apikey"))
		assert.Equal(t, "Bearer service-key", r.Header.Get("Authorization"))

		if captured != nil {
			captured.method = r.Method
			captured.path = r.URL.Path
			captured.query = map[string]string{}
			for k := range r.URL.Query() {
				captured.query[k] = r.URL.Query().Get(k)
			}
			if r.Body != nil {
				_ = json.NewDecoder(r.Body).Decode(&captured.body)
			}
		}
		w.WriteHeader(status)
		_, _ = w.Write([]byte(response))
	}))
	t.Cleanup(srv.Close)
	return New(config.StoreConfig{BaseURL: srv.URL, ServiceKey: "service-key"}, logging.Nop())
}

func TestActiveSources(t *testing.T) {
	var got capturedRequest
	c := testClient(t, 200, `[{"id": "s1", "name": "Powder Blog", "source_type": "rss", "is_active": true}]`, &got)

	sources, err := c.ActiveSources(context.Background(), types.KindRSS)
	require.NoError(t, err)
	require.Len(t, sources, 1)
	assert.Equal(t, "Powder Blog", sources[0].Name)

	assert.Equal(t, "/rest/v1/source_feeds", got.path)
	assert.Equal(t, "eq.true", got.query["is_active"])
	assert.Equal(t, "eq.rss", got.query["source_type"])
	assert.Equal(t, "last_fetched_at.asc.nullsfirst", got.query["order"])
}

func TestActiveSources_NoKindFilter(t *testing.T) {
	var got capturedRequest
	c := testClient(t, 200, `[]`, &got)

	_, err := c.ActiveSources(context.Background(), "")
	require.NoError(t, err)
	_, hasType := got.query["source_type"]
	assert.False(t, hasType)
}

func TestMarkSourceFetched_Success(t *testing.T) {
	var got capturedRequest
	c := testClient(t, 204, ``, &got)

	require.NoError(t, c.MarkSourceFetched(context.Background(), "s1", ""))
	assert.Equal(t, http.MethodPatch, got.method)
	assert.Equal(t, "eq.s1", got.query["id"])
	assert.Nil(t, got.body["last_error"])
	assert.Equal(t, float64(0), got.body["consecutive_errors"])
	assert.NotEmpty(t, got.body["last_fetched_at"])
}

func TestMarkSourceFetched_Error(t *testing.T) {
	var got capturedRequest
	c := testClient(t, 204, ``, &got)

	require.NoError(t, c.MarkSourceFetched(context.Background(), "s1", "timeout"))
	assert.Equal(t, "timeout", got.body["last_error"])
	_, hasReset := got.body["consecutive_errors"]
	assert.False(t, hasReset)
}

func TestDuplicateByFingerprint(t *testing.T) {
	var got capturedRequest
	c := testClient(t, 200, `[{"id": "c1", "source_url": "https://a.example/x", "field_note_id": "fn1"}]`, &got)

	rec, err := c.DuplicateByFingerprint(context.Background(), "abcd1234abcd1234")
	require.NoError(t, err)
	require.NotNil(t, rec)
	assert.Equal(t, "fn1", rec.FieldNoteID)

	assert.Equal(t, "/rest/v1/crawl_history", got.path)
	assert.Equal(t, "eq.abcd1234abcd1234", got.query["content_fingerprint"])
	assert.Equal(t, "1", got.query["limit"])
}

func TestDuplicateByFingerprint_NoMatch(t *testing.T) {
	c := testClient(t, 200, `[]`, nil)
	rec, err := c.DuplicateByFingerprint(context.Background(), "0000000000000000")
	require.NoError(t, err)
	assert.Nil(t, rec)
}

func TestRecordCrawl_AssignsIDAndTimestamp(t *testing.T) {
	var got capturedRequest
	c := testClient(t, 201, `[]`, &got)

	rec := &types.CrawlRecord{
		SourceFeedID: "s1",
		SourceURL:    "https://a.example/x",
		Fingerprint:  "abcd1234abcd1234",
		Status:       types.CrawlProcessed,
	}
	require.NoError(t, c.RecordCrawl(context.Background(), rec))
	assert.NotEmpty(t, rec.ID)
	assert.NotEmpty(t, rec.FetchedAt)
	assert.Equal(t, http.MethodPost, got.method)
	assert.Equal(t, "processed", got.body["status"])
}

func TestCreateRun(t *testing.T) {
	var got capturedRequest
	c := testClient(t, 201, `[{"id": "r1", "run_type": "scheduled", "status": "running", "started_at": "2026-01-10T00:00:00Z", "stats": {}, "errors": [], "sources_polled": []}]`, &got)

	run, err := c.CreateRun(context.Background(), types.RunScheduled)
	require.NoError(t, err)
	assert.Equal(t, "r1", run.ID)
	assert.Equal(t, "running", run.Status)
	assert.Equal(t, "/rest/v1/pipeline_runs", got.path)
	assert.Equal(t, "scheduled", got.body["run_type"])
}

func TestCompleteRun(t *testing.T) {
	var got capturedRequest
	c := testClient(t, 204, ``, &got)

	err := c.CompleteRun(context.Background(), "r1", "completed",
		map[string]any{"field_notes_created": 2}, nil, []string{"s1"})
	require.NoError(t, err)
	assert.Equal(t, "eq.r1", got.query["id"])
	assert.Equal(t, "completed", got.body["status"])
	assert.NotEmpty(t, got.body["completed_at"])
	assert.NotNil(t, got.body["errors"])
}

func TestApprovedTips(t *testing.T) {
	var got capturedRequest
	c := testClient(t, 200, `[{"id": "t1", "type": "tip", "content": "Road closed near Hirafu", "status": "approved", "metadata": {}}]`, &got)

	tips, err := c.ApprovedTips(context.Background())
	require.NoError(t, err)
	require.Len(t, tips, 1)
	assert.False(t, tips[0].Ingested())

	assert.Equal(t, "/rest/v1/moderation_queue", got.path)
	assert.Equal(t, "eq.tip", got.query["type"])
	assert.Equal(t, "eq.approved", got.query["status"])
	assert.Equal(t, "created_at.asc", got.query["order"])
}

func TestMarkTipIngested_PreservesMetadata(t *testing.T) {
	var got capturedRequest
	c := testClient(t, 204, ``, &got)

	tip := types.ModerationItem{ID: "t1", Metadata: map[string]any{"submitter_note": "urgent"}}
	require.NoError(t, c.MarkTipIngested(context.Background(), tip))

	meta, ok := got.body["metadata"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, true, meta["ingested"])
	assert.Equal(t, "urgent", meta["submitter_note"])
}

func TestCreateModerationItem(t *testing.T) {
	var got capturedRequest
	c := testClient(t, 201, `[]`, &got)

	item, err := c.CreateModerationItem(context.Background(), types.ModerationFlagged,
		"FLAGGED: low confidence", map[string]any{"confidence_score": 12})
	require.NoError(t, err)
	assert.Equal(t, "pending", item.Status)
	assert.NotEmpty(t, item.ID)
	assert.Equal(t, "haystack_flagged", got.body["type"])
}

func TestCreateFieldNote(t *testing.T) {
	var got capturedRequest
	c := testClient(t, 201, `[]`, &got)

	note, err := c.CreateFieldNote(context.Background(), &types.FieldNote{
		What:            "20cm of fresh snow fell overnight at Grand Hirafu",
		ConfidenceScore: 85,
	})
	require.NoError(t, err)
	assert.Equal(t, BotAuthorID, note.AuthorID)
	assert.Equal(t, "raw", note.Status)
	assert.NotEmpty(t, note.ID)

	assert.Equal(t, "/rest/v1/field_notes", got.path)
	assert.Equal(t, BotAuthorID, got.body["author_id"])
	assert.NotNil(t, got.body["quotes"])
	assert.NotNil(t, got.body["contacts"])
}

func TestCheckHealth(t *testing.T) {
	c := testClient(t, 200, `[]`, nil)
	assert.NoError(t, c.CheckHealth(context.Background()))

	bad := testClient(t, 500, `boom`, nil)
	assert.Error(t, bad.CheckHealth(context.Background()))
}

func TestRequest_ErrorStatus(t *testing.T) {
	c := testClient(t, 401, `{"message": "invalid key"}`, nil)
	_, err := c.ActiveSources(context.Background(), "")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "401")
}

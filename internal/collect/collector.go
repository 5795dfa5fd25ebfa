// Package collect gathers raw articles from the outside world: RSS
// and Atom feeds, scraped web pages, vendor news and weather APIs,
// social media and approved user tips. Each source kind has its own
// collector; a registry hands the pipeline the right one per cycle.
package collect

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/niseko-gazet/haystack/internal/textutil"
	"github.com/niseko-gazet/haystack/internal/types"
)

// Collector fetches articles from sources of one kind. A failing
// source never aborts its siblings: failures come back as
// CollectErrors next to the articles that did arrive.
type Collector interface {
	Kind() string
	Collect(ctx context.Context, sources []types.Source) ([]types.RawArticle, []types.CollectError)
}

// Registry maps source kinds to collectors.
type Registry struct {
	collectors map[string]Collector
}

// NewRegistry builds a registry from the given collectors.
func NewRegistry(collectors ...Collector) *Registry {
	r := &Registry{collectors: make(map[string]Collector, len(collectors))}
	for _, c := range collectors {
		r.collectors[c.Kind()] = c
	}
	return r
}

// For returns the collector for a source kind.
func (r *Registry) For(kind string) (Collector, error) {
	c, ok := r.collectors[kind]
	if !ok {
		return nil, fmt.Errorf("no collector registered for source kind %q", kind)
	}
	return c, nil
}

// Kinds lists the registered source kinds.
func (r *Registry) Kinds() []string {
	kinds := make([]string, 0, len(r.collectors))
	for k := range r.collectors {
		kinds = append(kinds, k)
	}
	return kinds
}

// makeArticle assembles a RawArticle with the fields every collector
// fills the same way, propagating the source's reliability tier so
// the quality gate can act on it.
func makeArticle(source types.Source, title, body, sourceURL, publishedAt, author, language string, metadata map[string]any) types.RawArticle {
	if metadata == nil {
		metadata = map[string]any{}
	}
	if source.ReliabilityTier != "" {
		metadata[types.MetaReliabilityTier] = source.ReliabilityTier
	}
	return types.RawArticle{
		SourceID:    source.ID,
		SourceKind:  source.Kind,
		SourceURL:   sourceURL,
		SourceName:  source.Name,
		Title:       title,
		Body:        body,
		PublishedAt: publishedAt,
		Author:      author,
		Language:    language,
		Metadata:    metadata,
		FetchedAt:   time.Now().UTC().Format(time.RFC3339),
	}
}

func makeError(source types.Source, kind string, err error) types.CollectError {
	return types.CollectError{
		SourceID:      source.ID,
		SourceName:    source.Name,
		CollectorKind: kind,
		Message:       err.Error(),
		Timestamp:     time.Now().UTC().Format(time.RFC3339),
	}
}

// doJSONRequest executes a request and decodes a 200 JSON response
// into out.
func doJSONRequest(httpc *http.Client, req *http.Request, out any) error {
	resp, err := httpc.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("status %d: %s", resp.StatusCode, textutil.Truncate(string(raw), 200))
	}
	return json.Unmarshal(raw, out)
}

// cfgString reads a string value from a source's config column.
func cfgString(source types.Source, key, fallback string) string {
	if v, ok := source.Config[key].(string); ok && v != "" {
		return v
	}
	return fallback
}

// cfgInt reads an integer value from a source's config column. JSON
// numbers decode as float64.
func cfgInt(source types.Source, key string, fallback int) int {
	switch v := source.Config[key].(type) {
	case float64:
		return int(v)
	case int:
		return v
	}
	return fallback
}

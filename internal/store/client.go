// Package store is the REST client for the pipeline database: source
// feeds, crawl history, pipeline runs, the moderation queue and field
// notes. The database exposes a PostgREST surface, so every query is
// expressed as URL filter parameters.
package store

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/niseko-gazet/haystack/internal/config"
	"github.com/niseko-gazet/haystack/internal/types"
)

// BotAuthorID is the bot user that owns machine-created field notes.
// It is provisioned by migration and must match across services.
const BotAuthorID = "b0000000-0000-0000-0000-000000000001"

const requestTimeout = 30 * time.Second

// Client talks to the pipeline database.
type Client struct {
	baseURL    string
	serviceKey string
	httpc      *http.Client
	log        *zap.Logger
}

// New builds a store client from config.
func New(cfg config.StoreConfig, log *zap.Logger) *Client {
	return &Client{
		baseURL:    cfg.BaseURL,
		serviceKey: cfg.ServiceKey,
		httpc:      &http.Client{Timeout: requestTimeout},
		log:        log.Named("store"),
	}
}

// request issues an authenticated call against a table and decodes
// the response into out when out is non-nil.
func (c *Client) request(ctx context.Context, method, table string, params url.Values, body, out any) error {
	u := fmt.Sprintf("%s/rest/v1/%s", c.baseURL, table)
	if len(params) > 0 {
		u += "?" + params.Encode()
	}

	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshal %s body: %w", table, err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, u, reader)
	if err != nil {
		return fmt.Errorf("build %s request: %w", table, err)
	}
	req.Header.Set("apikey", c.serviceKey)
	req.Header.Set("Authorization", "Bearer "+c.serviceKey)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Prefer", "return=representation")

	resp, err := c.httpc.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, table, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read %s response: %w", table, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("%s %s: status %d: %s", method, table, resp.StatusCode, raw)
	}
	if out == nil || resp.StatusCode == http.StatusNoContent || len(raw) == 0 {
		return nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("decode %s response: %w", table, err)
	}
	return nil
}

func nowISO() string {
	return time.Now().UTC().Format(time.RFC3339)
}

// ActiveSources returns active source feeds of the given kind,
// least-recently-fetched first so starved feeds get polled.
func (c *Client) ActiveSources(ctx context.Context, kind string) ([]types.Source, error) {
	params := url.Values{}
	params.Set("is_active", "eq.true")
	params.Set("order", "last_fetched_at.asc.nullsfirst")
	if kind != "" {
		params.Set("source_type", "eq."+kind)
	}

	var sources []types.Source
	if err := c.request(ctx, http.MethodGet, "source_feeds", params, nil, &sources); err != nil {
		return nil, err
	}
	return sources, nil
}

// MarkSourceFetched stamps a source's last fetch time. A non-empty
// errMsg records the failure; an empty one clears the error state.
func (c *Client) MarkSourceFetched(ctx context.Context, sourceID, errMsg string) error {
	now := nowISO()
	body := map[string]any{
		"last_fetched_at": now,
		"updated_at":      now,
	}
	if errMsg != "" {
		body["last_error"] = errMsg
	} else {
		body["last_error"] = nil
		body["consecutive_errors"] = 0
	}

	params := url.Values{}
	params.Set("id", "eq."+sourceID)
	return c.request(ctx, http.MethodPatch, "source_feeds", params, body, nil)
}

// SetSourceReliability writes a recalculated reliability score. The
// column is optional in older schemas, so failures are logged and
// swallowed.
func (c *Client) SetSourceReliability(ctx context.Context, sourceID string, score float64) {
	params := url.Values{}
	params.Set("id", "eq."+sourceID)
	body := map[string]any{"reliability_score": score}
	if err := c.request(ctx, http.MethodPatch, "source_feeds", params, body, nil); err != nil {
		c.log.Debug("reliability score update failed",
			zap.String("source_id", sourceID), zap.Error(err))
	}
}

// DuplicateByFingerprint returns the existing crawl record with the
// given content fingerprint, or nil when none exists.
func (c *Client) DuplicateByFingerprint(ctx context.Context, fingerprint string) (*types.CrawlRecord, error) {
	params := url.Values{}
	params.Set("content_fingerprint", "eq."+fingerprint)
	params.Set("select", "id,source_url,field_note_id")
	params.Set("limit", "1")

	var records []types.CrawlRecord
	if err := c.request(ctx, http.MethodGet, "crawl_history", params, nil, &records); err != nil {
		return nil, err
	}
	if len(records) == 0 {
		return nil, nil
	}
	return &records[0], nil
}

// RecordCrawl inserts a crawl history row, assigning an ID and fetch
// timestamp when unset.
func (c *Client) RecordCrawl(ctx context.Context, rec *types.CrawlRecord) error {
	if rec.ID == "" {
		rec.ID = uuid.NewString()
	}
	if rec.FetchedAt == "" {
		rec.FetchedAt = nowISO()
	}
	return c.request(ctx, http.MethodPost, "crawl_history", nil, rec, nil)
}

// RecentRelevant returns the newest relevant crawl records, used for
// adaptive threshold calculation.
func (c *Client) RecentRelevant(ctx context.Context, limit int) ([]types.CrawlRecord, error) {
	params := url.Values{}
	params.Set("was_relevant", "eq.true")
	params.Set("select", "id,relevance_score,classification_data,field_note_id,status")
	params.Set("order", "fetched_at.desc")
	params.Set("limit", fmt.Sprint(limit))

	var records []types.CrawlRecord
	if err := c.request(ctx, http.MethodGet, "crawl_history", params, nil, &records); err != nil {
		return nil, err
	}
	return records, nil
}

// RecentRelevantNonDuplicate returns recent relevant, non-duplicate
// records with their raw article data, for cross-language comparison.
func (c *Client) RecentRelevantNonDuplicate(ctx context.Context, limit int) ([]types.CrawlRecord, error) {
	params := url.Values{}
	params.Set("was_relevant", "eq.true")
	params.Set("was_duplicate", "eq.false")
	params.Set("select", "id,raw_data,source_url,field_note_id")
	params.Set("order", "fetched_at.desc")
	params.Set("limit", fmt.Sprint(limit))

	var records []types.CrawlRecord
	if err := c.request(ctx, http.MethodGet, "crawl_history", params, nil, &records); err != nil {
		return nil, err
	}
	return records, nil
}

// SourceRelevantHistory returns the last relevant crawl records for a
// single source, newest first.
func (c *Client) SourceRelevantHistory(ctx context.Context, sourceID string, limit int) ([]types.CrawlRecord, error) {
	params := url.Values{}
	params.Set("source_feed_id", "eq."+sourceID)
	params.Set("was_relevant", "eq.true")
	params.Set("select", "id,field_note_id")
	params.Set("order", "fetched_at.desc")
	params.Set("limit", fmt.Sprint(limit))

	var records []types.CrawlRecord
	if err := c.request(ctx, http.MethodGet, "crawl_history", params, nil, &records); err != nil {
		return nil, err
	}
	return records, nil
}

// CreateRun opens a pipeline run row in running state.
func (c *Client) CreateRun(ctx context.Context, runKind string) (*types.PipelineRun, error) {
	run := types.PipelineRun{
		ID:            uuid.NewString(),
		RunKind:       runKind,
		Status:        "running",
		StartedAt:     nowISO(),
		Stats:         map[string]any{},
		Errors:        []types.CollectError{},
		SourcesPolled: []string{},
	}

	var created []types.PipelineRun
	if err := c.request(ctx, http.MethodPost, "pipeline_runs", nil, run, &created); err != nil {
		return nil, err
	}
	if len(created) > 0 {
		return &created[0], nil
	}
	return &run, nil
}

// CompleteRun closes a run with its final status and stats.
func (c *Client) CompleteRun(ctx context.Context, runID, status string, stats map[string]any, errs []types.CollectError, sourcesPolled []string) error {
	if errs == nil {
		errs = []types.CollectError{}
	}
	if sourcesPolled == nil {
		sourcesPolled = []string{}
	}
	body := map[string]any{
		"status":         status,
		"completed_at":   nowISO(),
		"stats":          stats,
		"errors":         errs,
		"sources_polled": sourcesPolled,
	}

	params := url.Values{}
	params.Set("id", "eq."+runID)
	return c.request(ctx, http.MethodPatch, "pipeline_runs", params, body, nil)
}

// RecentRuns returns the newest pipeline runs.
func (c *Client) RecentRuns(ctx context.Context, limit int) ([]types.PipelineRun, error) {
	params := url.Values{}
	params.Set("order", "started_at.desc")
	params.Set("limit", fmt.Sprint(limit))

	var runs []types.PipelineRun
	if err := c.request(ctx, http.MethodGet, "pipeline_runs", params, nil, &runs); err != nil {
		return nil, err
	}
	return runs, nil
}

// RunByID fetches a single run, or nil when not found.
func (c *Client) RunByID(ctx context.Context, runID string) (*types.PipelineRun, error) {
	params := url.Values{}
	params.Set("id", "eq."+runID)

	var runs []types.PipelineRun
	if err := c.request(ctx, http.MethodGet, "pipeline_runs", params, nil, &runs); err != nil {
		return nil, err
	}
	if len(runs) == 0 {
		return nil, nil
	}
	return &runs[0], nil
}

// CreateModerationItem inserts a pending moderation queue item and
// returns it with its assigned ID.
func (c *Client) CreateModerationItem(ctx context.Context, itemType, content string, metadata map[string]any) (*types.ModerationItem, error) {
	if metadata == nil {
		metadata = map[string]any{}
	}
	item := types.ModerationItem{
		ID:       uuid.NewString(),
		Type:     itemType,
		Content:  content,
		Status:   "pending",
		Metadata: metadata,
	}

	var created []types.ModerationItem
	if err := c.request(ctx, http.MethodPost, "moderation_queue", nil, item, &created); err != nil {
		return nil, err
	}
	if len(created) > 0 {
		return &created[0], nil
	}
	return &item, nil
}

// ApprovedTips returns approved user tips, oldest first.
func (c *Client) ApprovedTips(ctx context.Context) ([]types.ModerationItem, error) {
	params := url.Values{}
	params.Set("type", "eq."+types.ModerationTip)
	params.Set("status", "eq.approved")
	params.Set("order", "created_at.asc")
	params.Set("limit", "20")

	var tips []types.ModerationItem
	if err := c.request(ctx, http.MethodGet, "moderation_queue", params, nil, &tips); err != nil {
		return nil, err
	}
	return tips, nil
}

// MarkTipIngested flags a tip's metadata so later cycles skip it.
func (c *Client) MarkTipIngested(ctx context.Context, tip types.ModerationItem) error {
	metadata := map[string]any{}
	for k, v := range tip.Metadata {
		metadata[k] = v
	}
	metadata["ingested"] = true

	params := url.Values{}
	params.Set("id", "eq."+tip.ID)
	return c.request(ctx, http.MethodPatch, "moderation_queue", params,
		map[string]any{"metadata": metadata}, nil)
}

// CreateFieldNote inserts a field note owned by the bot user with
// status raw, entering it into the editorial pipeline.
func (c *Client) CreateFieldNote(ctx context.Context, note *types.FieldNote) (*types.FieldNote, error) {
	if note.ID == "" {
		note.ID = uuid.NewString()
	}
	note.AuthorID = BotAuthorID
	note.Status = "raw"
	if note.CreatedAt == "" {
		note.CreatedAt = nowISO()
	}
	if note.Quotes == nil {
		note.Quotes = []types.Quote{}
	}
	if note.EvidenceRefs == nil {
		note.EvidenceRefs = []types.EvidenceRef{}
	}
	if note.SafetyLegalFlags == nil {
		note.SafetyLegalFlags = []string{}
	}
	if note.Contacts == nil {
		note.Contacts = []any{}
	}

	var created []types.FieldNote
	if err := c.request(ctx, http.MethodPost, "field_notes", nil, note, &created); err != nil {
		return nil, err
	}
	if len(created) > 0 {
		return &created[0], nil
	}
	return note, nil
}

// CheckHealth verifies database connectivity with a cheap query.
func (c *Client) CheckHealth(ctx context.Context) error {
	params := url.Values{}
	params.Set("limit", "1")
	var runs []types.PipelineRun
	return c.request(ctx, http.MethodGet, "pipeline_runs", params, nil, &runs)
}

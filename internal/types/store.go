package types

// Crawl history row statuses.
const (
	CrawlProcessed = "processed"
	CrawlRejected  = "rejected"
	CrawlFlagged   = "flagged"
	CrawlError     = "error"
)

// Moderation queue item types produced or consumed by the pipeline.
const (
	ModerationTip           = "tip"
	ModerationFlagged       = "haystack_flagged"
	ModerationBreakingAlert = "breaking_alert"
)

// Run kinds and cycle kinds.
const (
	RunScheduled = "scheduled"
	RunManual    = "manual"
	RunBreaking  = "breaking"

	CycleMain       = "main"
	CycleWeather    = "weather"
	CycleDeepScrape = "deep_scrape"
	CycleSocial     = "social"
	CycleTips       = "tips"
)

// Source is a source_feeds row: one configured feed, page, API or
// social endpoint the pipeline polls.
type Source struct {
	ID                string         `json:"id"`
	Name              string         `json:"name"`
	Kind              string         `json:"source_type"`
	URL               string         `json:"url"`
	Active            bool           `json:"is_active"`
	ReliabilityTier   string         `json:"reliability_tier,omitempty"`
	DefaultTopics     []string       `json:"default_topics,omitempty"`
	DefaultGeoTags    []string       `json:"default_geo_tags,omitempty"`
	PollInterval      int            `json:"poll_interval_minutes,omitempty"`
	Config            map[string]any `json:"config,omitempty"`
	LastFetchedAt     string         `json:"last_fetched_at,omitempty"`
	LastError         string         `json:"last_error,omitempty"`
	ConsecutiveErrors int            `json:"consecutive_errors,omitempty"`
	ReliabilityScore  float64        `json:"reliability_score,omitempty"`
}

// CrawlRecord is a crawl_history row. Every article a run touches ends
// up here exactly once, whatever its fate.
type CrawlRecord struct {
	ID               string         `json:"id"`
	SourceFeedID     string         `json:"source_feed_id"`
	SourceURL        string         `json:"source_url"`
	Fingerprint      string         `json:"content_fingerprint"`
	PipelineRunID    string         `json:"pipeline_run_id"`
	Status           string         `json:"status"`
	WasRelevant      bool           `json:"was_relevant"`
	WasDuplicate     bool           `json:"was_duplicate"`
	RelevanceScore   float64        `json:"relevance_score"`
	Classification   map[string]any `json:"classification_data,omitempty"`
	FieldNoteID      string         `json:"field_note_id,omitempty"`
	ModerationItemID string         `json:"moderation_item_id,omitempty"`
	RawData          map[string]any `json:"raw_data,omitempty"`
	ErrorMessage     string         `json:"error_message,omitempty"`
	FetchedAt        string         `json:"fetched_at"`
}

// PipelineRun is a pipeline_runs row covering one cycle start to
// finish.
type PipelineRun struct {
	ID            string         `json:"id"`
	RunKind       string         `json:"run_type"`
	Status        string         `json:"status"` // running, completed, failed
	StartedAt     string         `json:"started_at"`
	CompletedAt   string         `json:"completed_at,omitempty"`
	Stats         map[string]any `json:"stats"`
	Errors        []CollectError `json:"errors"`
	SourcesPolled []string       `json:"sources_polled"`
}

// ModerationItem is a moderation_queue row: a user tip, a flagged
// machine-processed article, or a breaking-news alert.
type ModerationItem struct {
	ID             string         `json:"id"`
	Type           string         `json:"type"`
	Content        string         `json:"content"`
	Status         string         `json:"status"` // pending, approved, rejected
	Metadata       map[string]any `json:"metadata,omitempty"`
	SubmitterEmail string         `json:"submitter_email,omitempty"`
	CreatedAt      string         `json:"created_at,omitempty"`
}

// Ingested reports whether a tip has already been pulled into a
// pipeline run.
func (m ModerationItem) Ingested() bool {
	v, ok := m.Metadata["ingested"].(bool)
	return ok && v
}

// FieldNote is a field_notes row: the structured pre-article record
// handed to the editorial pipeline.
type FieldNote struct {
	ID               string        `json:"id"`
	AuthorID         string        `json:"author_id"`
	Status           string        `json:"status"` // always "raw" when created here
	What             string        `json:"what"`
	Who              string        `json:"who,omitempty"`
	WhenOccurred     string        `json:"when_occurred,omitempty"`
	WhereLocation    string        `json:"where_location,omitempty"`
	Why              string        `json:"why,omitempty"`
	How              string        `json:"how,omitempty"`
	Quotes           []Quote       `json:"quotes"`
	EvidenceRefs     []EvidenceRef `json:"evidence_refs"`
	SafetyLegalFlags []string      `json:"safety_legal_flags"`
	Contacts         []any         `json:"contacts"`
	ConfidenceScore  int           `json:"confidence_score"`
	RawText          string        `json:"raw_text,omitempty"`
	CreatedAt        string        `json:"created_at"`
}

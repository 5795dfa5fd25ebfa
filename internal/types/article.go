// Package types holds the shared data model that flows through the
// Haystack pipeline: raw articles as collected from sources, their
// classified and enriched forms, and the persisted store records.
package types

// Source kinds. These match the source_type values stored in the
// source_feeds table.
const (
	KindRSS    = "rss"
	KindScrape = "scrape"
	KindAPI    = "api"
	KindSocial = "social"
	KindTip    = "tip"
)

// Language codes used across the pipeline.
const (
	LangEnglish  = "en"
	LangJapanese = "ja"
)

// Priorities assigned during classification.
const (
	PriorityBreaking = "breaking"
	PriorityHigh     = "high"
	PriorityNormal   = "normal"
	PriorityLow      = "low"
)

// Reliability tiers on source feeds.
const (
	TierOfficial    = "official"
	TierStandard    = "standard"
	TierYellowPress = "yellow_press"
)

// MetaReliabilityTier is the RawArticle metadata key that carries the
// source's reliability tier into the quality gate.
const MetaReliabilityTier = "reliability_tier"

// RawArticle is an article as fetched from a source, before any
// processing. Timestamps are ISO-8601 strings since they pass through
// to the store's JSON columns unmodified.
type RawArticle struct {
	SourceID    string         `json:"source_id"`
	SourceKind  string         `json:"source_type"`
	SourceURL   string         `json:"source_url"`
	SourceName  string         `json:"source_name"`
	Title       string         `json:"title"`
	Body        string         `json:"body"`
	PublishedAt string         `json:"published_at,omitempty"`
	Author      string         `json:"author,omitempty"`
	Language    string         `json:"language"`
	Metadata    map[string]any `json:"raw_metadata"`
	FetchedAt   string         `json:"fetched_at"`
}

// ReliabilityTier returns the tier propagated by the collector, or
// TierStandard when the source carried none.
func (a RawArticle) ReliabilityTier() string {
	if tier, ok := a.Metadata[MetaReliabilityTier].(string); ok && tier != "" {
		return tier
	}
	return TierStandard
}

// ClassifiedArticle wraps a RawArticle with its dedup fingerprint and
// LLM relevance classification.
type ClassifiedArticle struct {
	Raw            RawArticle `json:"raw"`
	Fingerprint    string     `json:"content_fingerprint"`
	RelevanceScore float64    `json:"relevance_score"`
	Topics         []string   `json:"topics"`
	GeoTags        []string   `json:"geo_tags"`
	Priority       string     `json:"priority"`
	IsDuplicate    bool       `json:"is_duplicate"`
	DuplicateOf    string     `json:"duplicate_of,omitempty"`
	Reasoning      string     `json:"classification_reasoning"`
}

// Quote is a direct quote extracted during enrichment. Translation is
// filled for non-English quotes.
type Quote struct {
	Speaker     string `json:"speaker"`
	Text        string `json:"text"`
	Translation string `json:"translation,omitempty"`
	Context     string `json:"context,omitempty"`
}

// EvidenceRef points at supporting material for a field note.
type EvidenceRef struct {
	Type        string `json:"type"`
	URL         string `json:"url"`
	Description string `json:"description,omitempty"`
}

// RiskFlag marks content that may need editorial review.
type RiskFlag struct {
	Type        string `json:"type"`
	Description string `json:"description,omitempty"`
	Severity    string `json:"severity,omitempty"` // low, medium, high
}

// FactCheckNote suggests how to verify a claim in the article.
type FactCheckNote struct {
	Claim                  string `json:"claim"`
	VerificationSuggestion string `json:"verification_suggestion,omitempty"`
}

// SourceLogEntry records where an enriched article came from. An
// enrichment failure is noted on the entry rather than dropping the
// article.
type SourceLogEntry struct {
	SourceName      string `json:"source_name"`
	SourceURL       string `json:"source_url"`
	SourceKind      string `json:"source_type"`
	FetchedAt       string `json:"fetched_at"`
	EnrichmentError string `json:"enrichment_error,omitempty"`
}

// EnrichedArticle wraps a ClassifiedArticle with extracted 5W1H
// structure, quotes, evidence and risk analysis.
type EnrichedArticle struct {
	Classified      ClassifiedArticle `json:"classified"`
	Who             string            `json:"who,omitempty"`
	What            string            `json:"what"`
	WhenOccurred    string            `json:"when_occurred,omitempty"`
	WhereLocation   string            `json:"where_location,omitempty"`
	Why             string            `json:"why,omitempty"`
	How             string            `json:"how,omitempty"`
	Quotes          []Quote           `json:"quotes"`
	EvidenceRefs    []EvidenceRef     `json:"evidence_refs"`
	RiskFlags       []RiskFlag        `json:"risk_flags"`
	FactCheckNotes  []FactCheckNote   `json:"fact_check_notes"`
	ConfidenceScore int               `json:"confidence_score"` // 0-100
	SourceLog       []SourceLogEntry  `json:"source_log"`
}

// CollectError is a per-source collection failure. A failing source
// never aborts its siblings; errors accumulate alongside articles.
type CollectError struct {
	SourceID      string `json:"source_id"`
	SourceName    string `json:"source_name"`
	CollectorKind string `json:"collector_kind"`
	Message       string `json:"error"`
	Timestamp     string `json:"timestamp"`
}

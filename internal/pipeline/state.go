package pipeline

import (
	"github.com/niseko-gazet/haystack/internal/types"
)

// CreatedFieldNote summarizes one field note produced by a run.
type CreatedFieldNote struct {
	FieldNoteID string `json:"field_note_id"`
	Headline    string `json:"headline"`
	Source      string `json:"source"`
	SourceURL   string `json:"source_url"`
}

// State carries one run's articles through the stages. Each stage
// reads the slices the previous stages filled and appends its own.
type State struct {
	RunID     string
	RunKind   string
	CycleKind string

	Raw           []types.RawArticle
	CollectErrors []types.CollectError
	Classified    []types.ClassifiedArticle
	Rejected      []types.ClassifiedArticle
	Enriched      []types.EnrichedArticle
	Approved      []types.EnrichedArticle
	Flagged       []types.EnrichedArticle

	CreatedFieldNotes []CreatedFieldNote
	Stats             map[string]any
	SourcesPolled     []string

	// sources are the feeds loaded by the schedule stage, consumed by
	// collect.
	sources []types.Source

	// archivedModeration tracks flagged articles the moderation stage
	// already wrote to crawl history, keyed by fingerprint, so the
	// archive stage records each article exactly once.
	archivedModeration map[string]bool
}

func newState(runID, runKind, cycleKind string) *State {
	return &State{
		RunID:              runID,
		RunKind:            runKind,
		CycleKind:          cycleKind,
		Stats:              map[string]any{},
		SourcesPolled:      []string{},
		archivedModeration: map[string]bool{},
	}
}

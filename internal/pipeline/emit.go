package pipeline

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/niseko-gazet/haystack/internal/adaptive"
	"github.com/niseko-gazet/haystack/internal/textutil"
	"github.com/niseko-gazet/haystack/internal/types"
)

const (
	rawTextLimit     = 5000
	archivedBodySize = 500
)

// createFieldNotes turns every approved article into a raw field note
// owned by the bot user and records the crawl as processed. A store
// failure on the note leaves a crawl error row behind instead, so the
// article's fate stays visible.
func (p *Pipeline) createFieldNotes(ctx context.Context, s *State) error {
	for _, a := range s.Approved {
		raw := a.Classified.Raw

		note := &types.FieldNote{
			What:             a.What,
			Who:              a.Who,
			WhenOccurred:     a.WhenOccurred,
			WhereLocation:    a.WhereLocation,
			Why:              a.Why,
			How:              a.How,
			Quotes:           usableQuotes(a.Quotes),
			EvidenceRefs:     evidenceWithSource(a.EvidenceRefs, raw),
			SafetyLegalFlags: flagTypes(a.RiskFlags),
			ConfidenceScore:  a.ConfidenceScore,
			RawText:          textutil.Truncate(raw.Body, rawTextLimit),
		}

		created, err := p.store.CreateFieldNote(ctx, note)
		if err != nil {
			p.log.Error("field note creation failed",
				zap.String("title", raw.Title), zap.Error(err))
			rec := crawlRecord(s, a.Classified, types.CrawlError)
			rec.WasRelevant = true
			rec.ErrorMessage = err.Error()
			if rerr := p.store.RecordCrawl(ctx, rec); rerr != nil {
				p.log.Error("crawl error record failed",
					zap.String("url", raw.SourceURL), zap.Error(rerr))
			}
			continue
		}

		rec := crawlRecord(s, a.Classified, types.CrawlProcessed)
		rec.WasRelevant = true
		rec.FieldNoteID = created.ID
		if err := p.store.RecordCrawl(ctx, rec); err != nil {
			p.log.Error("crawl record failed",
				zap.String("url", raw.SourceURL), zap.Error(err))
		}

		adaptive.UpdateSourceReliability(ctx, p.store, p.log, raw.SourceID)

		s.CreatedFieldNotes = append(s.CreatedFieldNotes, CreatedFieldNote{
			FieldNoteID: created.ID,
			Headline:    a.What,
			Source:      raw.SourceName,
			SourceURL:   raw.SourceURL,
		})
		p.log.Info("field note created",
			zap.String("run_id", s.RunID),
			zap.String("field_note_id", created.ID),
			zap.String("source", raw.SourceName))
	}

	s.Stats["field_notes_created"] = len(s.CreatedFieldNotes)
	return nil
}

// sendModeration queues each flagged article for human review and
// records its crawl row with the moderation item attached. Rows the
// queue rejects are left for the archive stage to record plain.
func (p *Pipeline) sendModeration(ctx context.Context, s *State) error {
	sent := 0
	for _, a := range s.Flagged {
		raw := a.Classified.Raw

		item, err := p.store.CreateModerationItem(ctx, types.ModerationFlagged,
			moderationContent(a), moderationMetadata(s, a))
		if err != nil {
			p.log.Error("moderation item creation failed",
				zap.String("title", raw.Title), zap.Error(err))
			continue
		}
		sent++

		rec := crawlRecord(s, a.Classified, types.CrawlFlagged)
		rec.WasRelevant = true
		rec.ModerationItemID = item.ID
		if err := p.store.RecordCrawl(ctx, rec); err != nil {
			p.log.Error("crawl record failed",
				zap.String("url", raw.SourceURL), zap.Error(err))
			continue
		}
		s.archivedModeration[a.Classified.Fingerprint] = true
	}

	s.Stats["moderation_items_created"] = sent
	return nil
}

// archive records every remaining article in crawl history: rejected
// ones, plus flagged ones whose moderation write did not get that
// far. Per-row failures are logged; archiving is best effort.
func (p *Pipeline) archive(ctx context.Context, s *State) error {
	archived := 0
	for _, a := range s.Rejected {
		rec := crawlRecord(s, a, types.CrawlRejected)
		if err := p.store.RecordCrawl(ctx, rec); err != nil {
			p.log.Error("archive record failed",
				zap.String("url", a.Raw.SourceURL), zap.Error(err))
			continue
		}
		archived++
	}

	for _, a := range s.Flagged {
		if s.archivedModeration[a.Classified.Fingerprint] {
			continue
		}
		rec := crawlRecord(s, a.Classified, types.CrawlFlagged)
		rec.WasRelevant = true
		if err := p.store.RecordCrawl(ctx, rec); err != nil {
			p.log.Error("archive record failed",
				zap.String("url", a.Classified.Raw.SourceURL), zap.Error(err))
			continue
		}
		archived++
	}

	s.Stats["archived_count"] = archived
	p.log.Info("archive finished",
		zap.String("run_id", s.RunID), zap.Int("archived", archived))
	return nil
}

// crawlRecord builds the crawl history row shared by every outcome.
func crawlRecord(s *State, a types.ClassifiedArticle, status string) *types.CrawlRecord {
	classification := map[string]any{
		"topics":    a.Topics,
		"geo_tags":  a.GeoTags,
		"priority":  a.Priority,
		"reasoning": a.Reasoning,
	}
	if a.DuplicateOf != "" {
		classification["duplicate_of"] = a.DuplicateOf
	}

	return &types.CrawlRecord{
		SourceFeedID:   a.Raw.SourceID,
		SourceURL:      a.Raw.SourceURL,
		Fingerprint:    a.Fingerprint,
		PipelineRunID:  s.RunID,
		Status:         status,
		WasDuplicate:   a.IsDuplicate,
		RelevanceScore: a.RelevanceScore,
		Classification: classification,
		RawData: map[string]any{
			"title":        a.Raw.Title,
			"body":         textutil.Truncate(a.Raw.Body, archivedBodySize),
			"language":     a.Raw.Language,
			"published_at": a.Raw.PublishedAt,
		},
	}
}

func usableQuotes(quotes []types.Quote) []types.Quote {
	var kept []types.Quote
	for _, q := range quotes {
		if q.Text != "" {
			kept = append(kept, q)
		}
	}
	return kept
}

// evidenceWithSource keeps refs that actually point somewhere and
// always appends the article's own source link.
func evidenceWithSource(refs []types.EvidenceRef, raw types.RawArticle) []types.EvidenceRef {
	var kept []types.EvidenceRef
	for _, r := range refs {
		if r.URL != "" {
			kept = append(kept, r)
		}
	}
	kept = append(kept, types.EvidenceRef{
		Type:        "link",
		URL:         raw.SourceURL,
		Description: "Original source: " + raw.SourceName,
	})
	return kept
}

func flagTypes(flags []types.RiskFlag) []string {
	var kept []string
	for _, f := range flags {
		if f.Type != "" {
			kept = append(kept, f.Type)
		}
	}
	return kept
}

func moderationContent(a types.EnrichedArticle) string {
	raw := a.Classified.Raw

	flags := "none"
	if len(a.RiskFlags) > 0 {
		flags = strings.Join(flagTypes(a.RiskFlags), ", ")
	}

	return fmt.Sprintf(`**%s**

Source: %s (%s)
Confidence: %d/100
Risk flags: %s

**What:** %s
**Who:** %s
**Where:** %s`,
		raw.Title, raw.SourceName, raw.SourceURL,
		a.ConfidenceScore, flags,
		a.What, a.Who, a.WhereLocation)
}

func moderationMetadata(s *State, a types.EnrichedArticle) map[string]any {
	raw := a.Classified.Raw
	return map[string]any{
		"pipeline_run_id":  s.RunID,
		"source_id":        raw.SourceID,
		"source_url":       raw.SourceURL,
		"confidence_score": a.ConfidenceScore,
		"risk_flags":       flagTypes(a.RiskFlags),
		"topics":           a.Classified.Topics,
		"geo_tags":         a.Classified.GeoTags,
		"enriched_data":    a,
	}
}

package pipeline

import (
	"context"

	"go.uber.org/zap"

	"github.com/niseko-gazet/haystack/internal/llm"
	"github.com/niseko-gazet/haystack/internal/textutil"
	"github.com/niseko-gazet/haystack/internal/types"
)

// enrichResult mirrors the 5W1H extraction JSON. ConfidenceScore is a
// pointer so an omitted score can default without treating an
// explicit zero as missing.
type enrichResult struct {
	Who            string                `json:"who"`
	What           string                `json:"what"`
	WhenOccurred   string                `json:"when_occurred"`
	WhereLocation  string                `json:"where_location"`
	Why            string                `json:"why"`
	How            string                `json:"how"`
	Quotes         []types.Quote         `json:"quotes"`
	EvidenceRefs   []types.EvidenceRef   `json:"evidence_refs"`
	RiskFlags      []types.RiskFlag      `json:"risk_flags"`
	FactCheckNotes []types.FactCheckNote `json:"fact_check_notes"`
	Confidence     *int                  `json:"confidence_score"`
}

// enrich extracts structured 5W1H data from each relevant article.
// Japanese articles are translated to English first so the extraction
// prompt works on one language. An enrichment failure never drops an
// article: it proceeds with minimal data and a low confidence score
// that the quality gate will catch.
func (p *Pipeline) enrich(ctx context.Context, s *State) error {
	translated := 0
	for _, a := range s.Classified {
		title, body := a.Raw.Title, a.Raw.Body
		if a.Raw.Language == types.LangJapanese || textutil.HasCJK(title) {
			tr := p.llm.TranslateArticle(ctx, title, body)
			title, body = tr.TitleEN, tr.BodyEN
			translated++
		}

		s.Enriched = append(s.Enriched, p.enrichOne(ctx, a, title, body))
	}

	s.Stats["enriched_count"] = len(s.Enriched)
	s.Stats["translated_count"] = translated
	p.log.Info("enrichment finished",
		zap.String("run_id", s.RunID),
		zap.Int("enriched", len(s.Enriched)),
		zap.Int("translated", translated))
	return nil
}

func (p *Pipeline) enrichOne(ctx context.Context, a types.ClassifiedArticle, title, body string) types.EnrichedArticle {
	logEntry := types.SourceLogEntry{
		SourceName: a.Raw.SourceName,
		SourceURL:  a.Raw.SourceURL,
		SourceKind: a.Raw.SourceKind,
		FetchedAt:  a.Raw.FetchedAt,
	}

	var result enrichResult
	if err := p.llm.GenerateJSON(ctx, llm.EnrichRequest(a, title, body), &result); err != nil {
		p.log.Warn("enrichment failed",
			zap.String("title", a.Raw.Title), zap.Error(err))
		logEntry.EnrichmentError = err.Error()
		return types.EnrichedArticle{
			Classified:      a,
			What:            title,
			WhenOccurred:    a.Raw.PublishedAt,
			ConfidenceScore: 10,
			SourceLog:       []types.SourceLogEntry{logEntry},
		}
	}

	if result.What == "" {
		result.What = title
	}
	confidence := 50
	if result.Confidence != nil {
		confidence = *result.Confidence
	}

	return types.EnrichedArticle{
		Classified:      a,
		Who:             result.Who,
		What:            result.What,
		WhenOccurred:    result.WhenOccurred,
		WhereLocation:   result.WhereLocation,
		Why:             result.Why,
		How:             result.How,
		Quotes:          result.Quotes,
		EvidenceRefs:    result.EvidenceRefs,
		RiskFlags:       result.RiskFlags,
		FactCheckNotes:  result.FactCheckNotes,
		ConfidenceScore: confidence,
		SourceLog:       []types.SourceLogEntry{logEntry},
	}
}

package pipeline

import (
	"context"

	"go.uber.org/zap"

	"github.com/niseko-gazet/haystack/internal/llm"
	"github.com/niseko-gazet/haystack/internal/textutil"
	"github.com/niseko-gazet/haystack/internal/types"
)

const (
	crossLangCandidateLimit = 20
	crossLangCompareLimit   = 3
	crossLangMinConfidence  = 0.7
)

// crossLangCandidate is a recently stored relevant article a fresh
// one might duplicate in the other language.
type crossLangCandidate struct {
	title       string
	body        string
	japanese    bool
	sourceURL   string
	recordID    string
	fieldNoteID string
}

// crossLangCandidates loads the comparison pool once per run. SimHash
// cannot match a Japanese article against its English retelling, so
// recent relevant stories are kept around for an LLM same-story check.
func (p *Pipeline) crossLangCandidates(ctx context.Context, s *State) []crossLangCandidate {
	records, err := p.store.RecentRelevantNonDuplicate(ctx, crossLangCandidateLimit)
	if err != nil {
		p.log.Warn("cross-language candidate query failed",
			zap.String("run_id", s.RunID), zap.Error(err))
		return nil
	}

	candidates := make([]crossLangCandidate, 0, len(records))
	for _, rec := range records {
		title, _ := rec.RawData["title"].(string)
		if title == "" {
			continue
		}
		body, _ := rec.RawData["body"].(string)
		candidates = append(candidates, crossLangCandidate{
			title:       title,
			body:        body,
			japanese:    textutil.HasCJK(title),
			sourceURL:   rec.SourceURL,
			recordID:    rec.ID,
			fieldNoteID: rec.FieldNoteID,
		})
	}
	return candidates
}

// crossLangDuplicate asks the LLM whether the article retells one of
// the opposite-language candidates. Social posts and tips are skipped;
// they reword stories too freely for a same-story verdict to mean
// much. LLM failures count as not-duplicate.
func (p *Pipeline) crossLangDuplicate(ctx context.Context, raw types.RawArticle, fp string, candidates []crossLangCandidate) *types.ClassifiedArticle {
	if raw.SourceKind == types.KindSocial || raw.SourceKind == types.KindTip {
		return nil
	}

	japanese := raw.Language == types.LangJapanese || textutil.HasCJK(raw.Title)
	compared := 0
	for _, cand := range candidates {
		if compared >= crossLangCompareLimit {
			break
		}
		if cand.japanese == japanese || cand.sourceURL == raw.SourceURL {
			continue
		}
		compared++

		langA, langB := types.LangEnglish, types.LangJapanese
		if japanese {
			langA, langB = types.LangJapanese, types.LangEnglish
		}
		req := llm.CrossLangRequest(langA, raw.Title, raw.Body, langB, cand.title, cand.body)

		var verdict struct {
			IsSameStory bool    `json:"is_same_story"`
			Confidence  float64 `json:"confidence"`
			Reasoning   string  `json:"reasoning"`
		}
		if err := p.llm.GenerateJSON(ctx, req, &verdict); err != nil {
			p.log.Warn("cross-language comparison failed",
				zap.String("title", raw.Title), zap.Error(err))
			continue
		}
		if !verdict.IsSameStory || verdict.Confidence < crossLangMinConfidence {
			continue
		}

		duplicateOf := cand.fieldNoteID
		if duplicateOf == "" {
			duplicateOf = cand.recordID
		}
		return &types.ClassifiedArticle{
			Raw:         raw,
			Fingerprint: fp,
			Priority:    types.PriorityLow,
			IsDuplicate: true,
			DuplicateOf: duplicateOf,
			Reasoning:   "Cross-language duplicate: " + verdict.Reasoning,
		}
	}
	return nil
}

package pipeline

import (
	"context"
	"encoding/json"
	"fmt"

	"go.uber.org/zap"

	"github.com/niseko-gazet/haystack/internal/fingerprint"
	"github.com/niseko-gazet/haystack/internal/llm"
	"github.com/niseko-gazet/haystack/internal/types"
)

// classifyBatchSize is how many articles share one LLM call. Larger
// batches save tokens but degrade per-article answer quality.
const classifyBatchSize = 5

// classification mirrors the JSON object the classify prompts ask
// for.
type classification struct {
	RelevanceScore float64  `json:"relevance_score"`
	Topics         []string `json:"topics"`
	GeoTags        []string `json:"geo_tags"`
	Priority       string   `json:"priority"`
	Reasoning      string   `json:"reasoning"`
}

type pendingArticle struct {
	raw types.RawArticle
	fp  string
}

// classify deduplicates raw articles by fingerprint and across
// languages, then classifies survivors in batches and routes each by
// its adaptive relevance threshold. Every polled source gets its
// last-fetched stamp here, once, whatever its articles' fate.
func (p *Pipeline) classify(ctx context.Context, s *State) error {
	var pending []pendingArticle

	candidates := p.crossLangCandidates(ctx, s)

	for _, raw := range s.Raw {
		fp := fingerprint.SimHash(raw.Title + " " + raw.Body)

		if dup := p.fingerprintDuplicate(ctx, raw, fp); dup != nil {
			s.Rejected = append(s.Rejected, *dup)
			continue
		}
		if dup := p.crossLangDuplicate(ctx, raw, fp, candidates); dup != nil {
			s.Rejected = append(s.Rejected, *dup)
			continue
		}
		pending = append(pending, pendingArticle{raw: raw, fp: fp})
	}

	for start := 0; start < len(pending); start += classifyBatchSize {
		end := start + classifyBatchSize
		if end > len(pending) {
			end = len(pending)
		}
		p.classifyBatch(ctx, s, pending[start:end])
	}

	p.markSourcesFetched(ctx, s)

	s.Stats["classified_count"] = len(s.Classified)
	s.Stats["rejected_count"] = len(s.Rejected)
	p.log.Info("classification finished",
		zap.String("run_id", s.RunID),
		zap.Int("relevant", len(s.Classified)),
		zap.Int("rejected", len(s.Rejected)))
	return nil
}

// fingerprintDuplicate checks the crawl history for an identical
// fingerprint. Store failures count as not-duplicate; a flaky lookup
// must not silently drop fresh articles.
func (p *Pipeline) fingerprintDuplicate(ctx context.Context, raw types.RawArticle, fp string) *types.ClassifiedArticle {
	existing, err := p.store.DuplicateByFingerprint(ctx, fp)
	if err != nil {
		p.log.Warn("fingerprint lookup failed", zap.String("url", raw.SourceURL), zap.Error(err))
		return nil
	}
	if existing == nil {
		return nil
	}

	duplicateOf := existing.FieldNoteID
	if duplicateOf == "" {
		duplicateOf = existing.ID
	}
	return &types.ClassifiedArticle{
		Raw:         raw,
		Fingerprint: fp,
		Priority:    types.PriorityLow,
		IsDuplicate: true,
		DuplicateOf: duplicateOf,
		Reasoning:   "Duplicate content detected via SimHash",
	}
}

// classifyBatch classifies a chunk of articles in one LLM call,
// falling back to per-article calls when the batch answer is missing
// or misshapen.
func (p *Pipeline) classifyBatch(ctx context.Context, s *State, batch []pendingArticle) {
	raws := make([]types.RawArticle, len(batch))
	for i, a := range batch {
		raws[i] = a.raw
	}

	results, err := p.generateBatch(ctx, raws)
	if err != nil || len(results) != len(batch) {
		if err != nil {
			p.log.Warn("batch classification failed, classifying individually",
				zap.Int("batch", len(batch)), zap.Error(err))
		} else {
			p.log.Warn("batch classification count mismatch, classifying individually",
				zap.Int("want", len(batch)), zap.Int("got", len(results)))
		}
		for _, a := range batch {
			p.classifySingle(ctx, s, a)
		}
		return
	}

	for i, a := range batch {
		p.routeClassified(s, a, results[i])
	}
}

// generateBatch runs the batch prompt and tolerates models that wrap
// the array in an envelope object.
func (p *Pipeline) generateBatch(ctx context.Context, raws []types.RawArticle) ([]classification, error) {
	out, err := p.llm.Generate(ctx, llm.ClassifyBatchRequest(raws))
	if err != nil {
		return nil, err
	}
	return parseBatchResponse(out)
}

func parseBatchResponse(out string) ([]classification, error) {
	cleaned := llm.StripFences(out)

	var results []classification
	if err := json.Unmarshal([]byte(cleaned), &results); err == nil {
		return results, nil
	}

	// Some models wrap the array in an envelope object despite the
	// prompt.
	var envelope map[string]json.RawMessage
	if err := json.Unmarshal([]byte(cleaned), &envelope); err != nil {
		return nil, fmt.Errorf("parse batch classification: %w", err)
	}
	for _, key := range []string{"articles", "results", "classifications"} {
		if raw, ok := envelope[key]; ok {
			if err := json.Unmarshal(raw, &results); err != nil {
				return nil, fmt.Errorf("parse batch classification %q: %w", key, err)
			}
			return results, nil
		}
	}
	return nil, fmt.Errorf("batch classification response is not an array")
}

func (p *Pipeline) classifySingle(ctx context.Context, s *State, a pendingArticle) {
	var result classification
	if err := p.llm.GenerateJSON(ctx, llm.ClassifyRequest(a.raw), &result); err != nil {
		p.log.Warn("classification failed",
			zap.String("title", a.raw.Title), zap.Error(err))
		s.Rejected = append(s.Rejected, types.ClassifiedArticle{
			Raw:         a.raw,
			Fingerprint: a.fp,
			Priority:    types.PriorityLow,
			Reasoning:   "Classification error: " + err.Error(),
		})
		return
	}
	p.routeClassified(s, a, result)
}

// routeClassified sends an article to the relevant or rejected lane
// by comparing its score to the adaptive threshold for its topics.
func (p *Pipeline) routeClassified(s *State, a pendingArticle, result classification) {
	if result.Priority == "" {
		result.Priority = types.PriorityNormal
	}

	classified := types.ClassifiedArticle{
		Raw:            a.raw,
		Fingerprint:    a.fp,
		RelevanceScore: result.RelevanceScore,
		Topics:         result.Topics,
		GeoTags:        result.GeoTags,
		Priority:       result.Priority,
		Reasoning:      result.Reasoning,
	}

	threshold := p.thresholds.Effective(result.Topics)
	if result.RelevanceScore >= threshold {
		s.Classified = append(s.Classified, classified)
		return
	}

	p.log.Debug("article below relevance threshold",
		zap.String("title", a.raw.Title),
		zap.Float64("score", result.RelevanceScore),
		zap.Float64("threshold", threshold))
	s.Rejected = append(s.Rejected, classified)
}

// markSourcesFetched stamps every polled source exactly once,
// carrying its collect error when one occurred.
func (p *Pipeline) markSourcesFetched(ctx context.Context, s *State) {
	errBySource := make(map[string]string)
	for _, ce := range s.CollectErrors {
		if _, ok := errBySource[ce.SourceID]; !ok {
			errBySource[ce.SourceID] = ce.Message
		}
	}

	for _, src := range s.sources {
		if err := p.store.MarkSourceFetched(ctx, src.ID, errBySource[src.ID]); err != nil {
			p.log.Warn("failed to mark source fetched",
				zap.String("source_id", src.ID), zap.Error(err))
		}
	}
}

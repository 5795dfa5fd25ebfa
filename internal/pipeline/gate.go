package pipeline

import (
	"context"

	"go.uber.org/zap"

	"github.com/niseko-gazet/haystack/internal/adaptive"
	"github.com/niseko-gazet/haystack/internal/types"
)

// highRiskFlags always route an article to human moderation, whatever
// its confidence score.
var highRiskFlags = map[string]bool{
	"minor_involved":                 true,
	"allegation_or_crime_accusation": true,
	"high_defamation_risk":           true,
	"medical_or_public_health_claim": true,
}

// qualityGate routes each enriched article: near-empty extractions
// are rejected, risky or low-confidence ones go to moderation, the
// rest are approved for automatic field note creation. The source's
// reliability tier can tighten the confidence bar or force moderation
// outright.
func (p *Pipeline) qualityGate(ctx context.Context, s *State) error {
	qualityRejected := 0
	for _, a := range s.Enriched {
		tier := adaptive.TierFor(a.Classified.Raw.ReliabilityTier())
		minConfidence := p.cfg.Thresholds.MinConfidence
		if tier.MinConfidenceOverride > 0 {
			minConfidence = tier.MinConfidenceOverride
		}

		if a.What == "" || a.ConfidenceScore < 10 {
			qualityRejected++
			rejected := a.Classified
			rejected.Reasoning = "Quality gate: no usable extraction"
			s.Rejected = append(s.Rejected, rejected)
			p.log.Debug("article rejected by quality gate",
				zap.String("title", a.Classified.Raw.Title),
				zap.Int("confidence", a.ConfidenceScore))
			continue
		}

		switch {
		case p.hasHighRiskFlag(a):
			s.Flagged = append(s.Flagged, a)
		case a.ConfidenceScore < minConfidence:
			s.Flagged = append(s.Flagged, a)
		case tier.ForceModeration:
			s.Flagged = append(s.Flagged, a)
		default:
			s.Approved = append(s.Approved, a)
		}
	}

	s.Stats["approved_count"] = len(s.Approved)
	s.Stats["flagged_count"] = len(s.Flagged)
	s.Stats["quality_rejected_count"] = qualityRejected
	p.log.Info("quality gate finished",
		zap.String("run_id", s.RunID),
		zap.Int("approved", len(s.Approved)),
		zap.Int("flagged", len(s.Flagged)),
		zap.Int("rejected", qualityRejected))
	return nil
}

func (p *Pipeline) hasHighRiskFlag(a types.EnrichedArticle) bool {
	for _, flag := range a.RiskFlags {
		if highRiskFlags[flag.Type] {
			return true
		}
	}
	return false
}

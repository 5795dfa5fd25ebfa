package adaptive

import (
	"context"
	"math"

	"go.uber.org/zap"

	"github.com/niseko-gazet/haystack/internal/store"
	"github.com/niseko-gazet/haystack/internal/types"
)

const reliabilityWindow = 100

// TierPolicy is the quality-gate behavior attached to a source
// reliability tier.
type TierPolicy struct {
	MinConfidenceOverride int
	ForceModeration       bool
}

var tierPolicies = map[string]TierPolicy{
	types.TierOfficial: {},
	types.TierStandard: {},
	types.TierYellowPress: {
		MinConfidenceOverride: 60,
		ForceModeration:       true,
	},
}

// TierFor returns the gate policy for a reliability tier. Unknown
// tiers behave like standard.
func TierFor(tier string) TierPolicy {
	if p, ok := tierPolicies[tier]; ok {
		return p
	}
	return tierPolicies[types.TierStandard]
}

// UpdateSourceReliability recalculates a source's reliability score
// from its recent crawl history: the share of relevant articles that
// became field notes, as a percentage rounded to one decimal. Errors
// are logged, never propagated; scoring is best effort.
func UpdateSourceReliability(ctx context.Context, st *store.Client, log *zap.Logger, sourceID string) {
	records, err := st.SourceRelevantHistory(ctx, sourceID, reliabilityWindow)
	if err != nil {
		log.Error("reliability history query failed",
			zap.String("source_id", sourceID), zap.Error(err))
		return
	}
	if len(records) == 0 {
		return
	}

	published := 0
	for _, rec := range records {
		if rec.FieldNoteID != "" {
			published++
		}
	}

	score := math.Round(float64(published)/float64(len(records))*1000) / 10
	st.SetSourceReliability(ctx, sourceID, score)

	log.Info("source reliability updated",
		zap.String("source_id", sourceID),
		zap.Float64("score", score),
		zap.Int("published", published),
		zap.Int("relevant", len(records)))
}

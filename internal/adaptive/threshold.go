// Package adaptive tunes the pipeline's quality controls from
// editorial feedback: per-topic relevance thresholds learned from
// acceptance rates, and per-source reliability scores and tiers.
package adaptive

import (
	"context"
	"math"
	"sync/atomic"

	"go.uber.org/zap"

	"github.com/niseko-gazet/haystack/internal/store"
	"github.com/niseko-gazet/haystack/internal/types"
)

const (
	maxAdjustment = 0.15
	minThreshold  = 0.15
	maxThreshold  = 0.80

	refreshLimit  = 1000
	minDataPoints = 10
)

// Thresholds computes and caches per-topic relevance thresholds.
// Topics editors accept often get a lower bar; topics they mostly
// reject get a higher one.
type Thresholds struct {
	base   float64
	store  *store.Client
	log    *zap.Logger
	cached atomic.Value // map[string]float64
}

// NewThresholds builds the threshold cache around the global default.
func NewThresholds(base float64, st *store.Client, log *zap.Logger) *Thresholds {
	t := &Thresholds{base: base, store: st, log: log.Named("adaptive")}
	t.cached.Store(map[string]float64{})
	return t
}

// Refresh recalculates per-topic thresholds from recent crawl
// history. On query failure the previous cache stays in place.
func (t *Thresholds) Refresh(ctx context.Context) error {
	records, err := t.store.RecentRelevant(ctx, refreshLimit)
	if err != nil {
		t.log.Error("threshold refresh failed", zap.Error(err))
		return err
	}

	thresholds := computeThresholds(t.base, records)
	t.cached.Store(thresholds)
	t.log.Info("topic thresholds refreshed", zap.Int("topics", len(thresholds)))
	return nil
}

// Effective returns the relevance threshold for an article with the
// given topics: the lowest adapted threshold among them, or the
// global default when no topic has enough data.
func (t *Thresholds) Effective(topics []string) float64 {
	cached := t.cached.Load().(map[string]float64)
	if len(cached) == 0 || len(topics) == 0 {
		return t.base
	}

	best := math.MaxFloat64
	for _, topic := range topics {
		if v, ok := cached[topic]; ok && v < best {
			best = v
		}
	}
	if best == math.MaxFloat64 {
		return t.base
	}
	return best
}

type topicStats struct {
	total     int
	published int
}

// computeThresholds derives per-topic thresholds from relevant crawl
// records. Acceptance above 60% lowers the threshold by up to
// maxAdjustment, below 20% raises it by up to maxAdjustment, and the
// result is clamped to [minThreshold, maxThreshold].
func computeThresholds(base float64, records []types.CrawlRecord) map[string]float64 {
	stats := make(map[string]*topicStats)
	for _, rec := range records {
		published := rec.FieldNoteID != ""
		for _, topic := range classificationTopics(rec.Classification) {
			s, ok := stats[topic]
			if !ok {
				s = &topicStats{}
				stats[topic] = s
			}
			s.total++
			if published {
				s.published++
			}
		}
	}

	thresholds := make(map[string]float64)
	for topic, s := range stats {
		if s.total < minDataPoints {
			continue
		}

		acceptance := float64(s.published) / float64(s.total)
		var adjustment float64
		switch {
		case acceptance > 0.6:
			adjustment = -maxAdjustment * math.Min(1.0, (acceptance-0.6)/0.4)
		case acceptance < 0.2:
			adjustment = maxAdjustment * math.Min(1.0, (0.2-acceptance)/0.2)
		}

		threshold := base + adjustment
		threshold = math.Max(minThreshold, math.Min(maxThreshold, threshold))
		thresholds[topic] = math.Round(threshold*1000) / 1000
	}
	return thresholds
}

func classificationTopics(classification map[string]any) []string {
	if classification == nil {
		return nil
	}
	raw, ok := classification["topics"].([]any)
	if !ok {
		return nil
	}
	topics := make([]string, 0, len(raw))
	for _, v := range raw {
		if s, ok := v.(string); ok {
			topics = append(topics, s)
		}
	}
	return topics
}

package pipeline

import (
	"context"

	"go.uber.org/zap"

	"github.com/niseko-gazet/haystack/internal/types"
)

// cycleSourceKinds maps each cycle to the source kinds it polls.
var cycleSourceKinds = map[string][]string{
	types.CycleMain:       {types.KindRSS, types.KindScrape},
	types.CycleWeather:    {types.KindAPI},
	types.CycleDeepScrape: {types.KindScrape},
	types.CycleSocial:     {types.KindSocial},
	types.CycleTips:       {types.KindTip},
}

// schedule loads the active sources for this cycle and refreshes the
// adaptive topic thresholds so classification uses current data.
func (p *Pipeline) schedule(ctx context.Context, s *State) error {
	kinds, ok := cycleSourceKinds[s.CycleKind]
	if !ok {
		p.log.Warn("unknown cycle, polling rss only", zap.String("cycle", s.CycleKind))
		kinds = []string{types.KindRSS}
	}

	for _, kind := range kinds {
		sources, err := p.store.ActiveSources(ctx, kind)
		if err != nil {
			return err
		}
		s.sources = append(s.sources, sources...)
	}

	// The tip collector reads the moderation queue, not a feed table,
	// so a tips cycle runs even with no tip rows in source_feeds.
	if s.CycleKind == types.CycleTips && len(s.sources) == 0 {
		s.sources = append(s.sources, types.Source{
			ID:   "moderation_queue",
			Name: "User Tips",
			Kind: types.KindTip,
		})
	}

	// Threshold refresh failures keep the previous cache; the run
	// continues on stale thresholds.
	_ = p.thresholds.Refresh(ctx)

	for _, src := range s.sources {
		s.SourcesPolled = append(s.SourcesPolled, src.Name)
	}
	s.Stats["sources_polled"] = len(s.sources)

	p.log.Info("cycle sources loaded",
		zap.String("cycle", s.CycleKind),
		zap.Int("sources", len(s.sources)))
	return nil
}

package pipeline

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/niseko-gazet/haystack/internal/types"
)

// collect fans out to one collector per source kind and gathers raw
// articles. Per-source failures land in CollectErrors; only the
// absence of a registered collector is reported per source too, so a
// misconfigured feed table never aborts a cycle.
func (p *Pipeline) collect(ctx context.Context, s *State) error {
	byKind := make(map[string][]types.Source)
	for _, src := range s.sources {
		byKind[src.Kind] = append(byKind[src.Kind], src)
	}

	var mu sync.Mutex
	g, gctx := errgroup.WithContext(ctx)

	for kind, sources := range byKind {
		sources := sources
		collector, err := p.registry.For(kind)
		if err != nil {
			now := time.Now().UTC().Format(time.RFC3339)
			for _, src := range sources {
				s.CollectErrors = append(s.CollectErrors, types.CollectError{
					SourceID:      src.ID,
					SourceName:    src.Name,
					CollectorKind: kind,
					Message:       err.Error(),
					Timestamp:     now,
				})
			}
			continue
		}

		g.Go(func() error {
			articles, errs := collector.Collect(gctx, sources)
			mu.Lock()
			s.Raw = append(s.Raw, articles...)
			s.CollectErrors = append(s.CollectErrors, errs...)
			mu.Unlock()
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return err
	}

	s.Stats["raw_count"] = len(s.Raw)
	p.log.Info("collection finished",
		zap.String("run_id", s.RunID),
		zap.Int("articles", len(s.Raw)),
		zap.Int("errors", len(s.CollectErrors)))
	return nil
}

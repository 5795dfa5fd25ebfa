// Package pipeline runs one collection cycle end to end: load the
// cycle's sources, collect raw articles, deduplicate and classify
// them, enrich survivors into structured field note material, gate on
// quality, and write every outcome back to the store.
package pipeline

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/niseko-gazet/haystack/internal/adaptive"
	"github.com/niseko-gazet/haystack/internal/collect"
	"github.com/niseko-gazet/haystack/internal/config"
	"github.com/niseko-gazet/haystack/internal/llm"
	"github.com/niseko-gazet/haystack/internal/store"
)

// Pipeline wires the stages to their dependencies.
type Pipeline struct {
	store      *store.Client
	llm        *llm.Chain
	registry   *collect.Registry
	thresholds *adaptive.Thresholds
	cfg        *config.Config
	log        *zap.Logger
}

// New builds a pipeline.
func New(st *store.Client, chain *llm.Chain, registry *collect.Registry, thresholds *adaptive.Thresholds, cfg *config.Config, log *zap.Logger) *Pipeline {
	return &Pipeline{
		store:      st,
		llm:        chain,
		registry:   registry,
		thresholds: thresholds,
		cfg:        cfg,
		log:        log.Named("pipeline"),
	}
}

type stage struct {
	name string
	run  func(ctx context.Context, s *State) error
}

// Run executes one full cycle. The run is recorded in the store
// before the first stage and completed (or failed) after the last.
func (p *Pipeline) Run(ctx context.Context, runKind, cycleKind string) (*State, error) {
	run, err := p.store.CreateRun(ctx, runKind)
	if err != nil {
		return nil, fmt.Errorf("create pipeline run: %w", err)
	}

	state := newState(run.ID, runKind, cycleKind)
	p.log.Info("pipeline run started",
		zap.String("run_id", state.RunID),
		zap.String("run_type", runKind),
		zap.String("cycle", cycleKind))

	stages := []stage{
		{"schedule", p.schedule},
		{"collect", p.collect},
		{"classify", p.classify},
		{"breaking_check", p.breakingCheck},
		{"enrich", p.enrich},
		{"quality_gate", p.qualityGate},
		{"field_notes", p.createFieldNotes},
		{"moderation", p.sendModeration},
		{"archive", p.archive},
	}

	for _, st := range stages {
		started := time.Now()
		if err := st.run(ctx, state); err != nil {
			p.log.Error("stage failed",
				zap.String("run_id", state.RunID),
				zap.String("stage", st.name),
				zap.Error(err))
			state.Stats["error"] = err.Error()
			if cerr := p.store.CompleteRun(ctx, state.RunID, "failed", state.Stats, state.CollectErrors, state.SourcesPolled); cerr != nil {
				p.log.Error("failed to close run", zap.String("run_id", state.RunID), zap.Error(cerr))
			}
			return state, fmt.Errorf("%s stage: %w", st.name, err)
		}
		p.log.Debug("stage finished",
			zap.String("run_id", state.RunID),
			zap.String("stage", st.name),
			zap.Duration("took", time.Since(started)))
	}

	if err := p.store.CompleteRun(ctx, state.RunID, "completed", state.Stats, state.CollectErrors, state.SourcesPolled); err != nil {
		p.log.Error("failed to close run", zap.String("run_id", state.RunID), zap.Error(err))
	}

	p.log.Info("pipeline run completed",
		zap.String("run_id", state.RunID),
		zap.Any("stats", state.Stats))
	return state, nil
}

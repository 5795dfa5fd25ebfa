// Package scheduler drives the pipeline on its cycle cadences. Each
// cycle runs on its own cron entry; a cycle that overruns its
// interval is skipped rather than stacked.
package scheduler

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/niseko-gazet/haystack/internal/config"
	"github.com/niseko-gazet/haystack/internal/pipeline"
	"github.com/niseko-gazet/haystack/internal/types"
)

// runTimeout bounds a single cycle. Deep scrapes of slow municipal
// sites are the long pole.
const runTimeout = 30 * time.Minute

// JobStatus describes one scheduled cycle.
type JobStatus struct {
	Cycle    string    `json:"cycle"`
	Schedule string    `json:"schedule"`
	NextRun  time.Time `json:"next_run"`
}

// Scheduler owns the cron runner and its cycle entries.
type Scheduler struct {
	cron    *cron.Cron
	p       *pipeline.Pipeline
	log     *zap.Logger
	entries map[string]cron.EntryID
	specs   map[string]string
}

// New builds the scheduler and registers every cycle. The social
// cycle is registered only when social aggregation is enabled.
func New(p *pipeline.Pipeline, cfg config.ScheduleConfig, socialEnabled bool, log *zap.Logger) (*Scheduler, error) {
	log = log.Named("scheduler")
	cronLog := cron.PrintfLogger(zap.NewStdLog(log))
	s := &Scheduler{
		cron: cron.New(cron.WithChain(
			cron.SkipIfStillRunning(cronLog),
			cron.Recover(cronLog),
		)),
		p:       p,
		log:     log,
		entries: map[string]cron.EntryID{},
		specs:   map[string]string{},
	}

	cycles := []struct {
		cycle   string
		spec    string
		enabled bool
	}{
		{types.CycleMain, fmt.Sprintf("@every %dm", cfg.MainIntervalMinutes), true},
		{types.CycleWeather, fmt.Sprintf("@every %dm", cfg.WeatherIntervalMinutes), true},
		{types.CycleTips, fmt.Sprintf("@every %dm", cfg.TipIntervalMinutes), true},
		{types.CycleSocial, fmt.Sprintf("@every %dm", cfg.SocialIntervalMinutes), socialEnabled},
		{types.CycleDeepScrape, fmt.Sprintf("@every %dh", config.DeepScrapeIntervalHours), true},
	}

	for _, c := range cycles {
		if !c.enabled {
			continue
		}
		cycle := c.cycle
		id, err := s.cron.AddFunc(c.spec, func() { s.runCycle(cycle) })
		if err != nil {
			return nil, fmt.Errorf("schedule %s cycle: %w", cycle, err)
		}
		s.entries[cycle] = id
		s.specs[cycle] = c.spec
	}
	return s, nil
}

func (s *Scheduler) runCycle(cycle string) {
	ctx, cancel := context.WithTimeout(context.Background(), runTimeout)
	defer cancel()

	s.log.Info("cycle starting", zap.String("cycle", cycle))
	if _, err := s.p.Run(ctx, types.RunScheduled, cycle); err != nil {
		s.log.Error("cycle failed", zap.String("cycle", cycle), zap.Error(err))
	}
}

// Start begins firing cycles on their cadences.
func (s *Scheduler) Start() {
	s.cron.Start()
	s.log.Info("scheduler started", zap.Int("cycles", len(s.entries)))
}

// Stop halts scheduling and waits for any in-flight cycle.
func (s *Scheduler) Stop() {
	ctx := s.cron.Stop()
	<-ctx.Done()
	s.log.Info("scheduler stopped")
}

// Status lists the registered cycles and their next fire times.
func (s *Scheduler) Status() []JobStatus {
	statuses := make([]JobStatus, 0, len(s.entries))
	for cycle, id := range s.entries {
		statuses = append(statuses, JobStatus{
			Cycle:    cycle,
			Schedule: s.specs[cycle],
			NextRun:  s.cron.Entry(id).Next,
		})
	}
	return statuses
}

// Command haystackd runs the Haystack news pipeline: a daemon that
// polls local news sources on schedules, or one-shot subcommands for
// a single cycle and health checks.
package main

import (
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/niseko-gazet/haystack/internal/adaptive"
	"github.com/niseko-gazet/haystack/internal/collect"
	"github.com/niseko-gazet/haystack/internal/config"
	"github.com/niseko-gazet/haystack/internal/llm"
	"github.com/niseko-gazet/haystack/internal/logging"
	"github.com/niseko-gazet/haystack/internal/pipeline"
	"github.com/niseko-gazet/haystack/internal/ratelimit"
	"github.com/niseko-gazet/haystack/internal/robots"
	"github.com/niseko-gazet/haystack/internal/scheduler"
	"github.com/niseko-gazet/haystack/internal/store"
	"github.com/niseko-gazet/haystack/internal/types"
)

var (
	configPath string
	cycleKind  string

	cfg    *config.Config
	logger *zap.Logger
)

var rootCmd = &cobra.Command{
	Use:   "haystackd",
	Short: "Haystack - automated news pipeline for Niseko Gazet",
	Long: `Haystack collects local news for the Niseko area from RSS feeds,
municipal websites, vendor APIs, social media and reader tips, then
classifies, deduplicates and enriches it into field notes for the
Niseko Gazet editorial pipeline.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		cfg, err = config.Load(configPath)
		if err != nil {
			return err
		}
		if err := cfg.Validate(); err != nil {
			return err
		}
		logger, err = logging.New(cfg.Logging)
		if err != nil {
			return fmt.Errorf("initialize logger: %w", err)
		}
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if logger != nil {
			_ = logger.Sync()
		}
	},
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the pipeline daemon on its cycle schedules",
	RunE: func(cmd *cobra.Command, args []string) error {
		p := buildPipeline()

		sched, err := scheduler.New(p, cfg.Schedule, cfg.Collect.AggregationEnabled, logger)
		if err != nil {
			return err
		}
		sched.Start()
		defer sched.Stop()

		for _, st := range sched.Status() {
			logger.Info("cycle scheduled",
				zap.String("cycle", st.Cycle),
				zap.String("schedule", st.Schedule))
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()
		<-ctx.Done()

		logger.Info("shutting down")
		return nil
	},
}

var cycleCmd = &cobra.Command{
	Use:   "cycle",
	Short: "Run a single pipeline cycle and exit",
	RunE: func(cmd *cobra.Command, args []string) error {
		p := buildPipeline()

		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		state, err := p.Run(ctx, types.RunManual, cycleKind)
		if err != nil {
			return err
		}

		out, _ := json.MarshalIndent(map[string]any{
			"run_id":      state.RunID,
			"cycle":       state.CycleKind,
			"stats":       state.Stats,
			"field_notes": state.CreatedFieldNotes,
		}, "", "  ")
		fmt.Println(string(out))
		return nil
	},
}

var healthCmd = &cobra.Command{
	Use:   "health",
	Short: "Check LLM provider and database connectivity",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		report := map[string]any{
			"llm": llm.CheckHealth(ctx, cfg.LLM),
		}

		st := store.New(cfg.Store, logger)
		if err := st.CheckHealth(ctx); err != nil {
			report["store"] = map[string]string{"status": "error", "error": err.Error()}
		} else {
			report["store"] = map[string]string{"status": "connected"}
		}

		out, _ := json.MarshalIndent(report, "", "  ")
		fmt.Println(string(out))
		return nil
	},
}

var runsCmd = &cobra.Command{
	Use:   "runs [run-id]",
	Short: "Show recent pipeline runs, or one run by id",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		st := store.New(cfg.Store, logger)

		var report any
		if len(args) == 1 {
			run, err := st.RunByID(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			if run == nil {
				return fmt.Errorf("run %s not found", args[0])
			}
			report = run
		} else {
			runs, err := st.RecentRuns(cmd.Context(), 10)
			if err != nil {
				return err
			}
			report = runs
		}

		out, _ := json.MarshalIndent(report, "", "  ")
		fmt.Println(string(out))
		return nil
	},
}

// buildPipeline wires the collectors, provider chain and store into a
// runnable pipeline.
func buildPipeline() *pipeline.Pipeline {
	st := store.New(cfg.Store, logger)

	var fallbacks []llm.Provider
	if anthropic := llm.NewAnthropic(cfg.LLM.Anthropic); anthropic != nil {
		fallbacks = append(fallbacks, anthropic)
	}
	if openai := llm.NewOpenAI(cfg.LLM.OpenAI); openai != nil {
		fallbacks = append(fallbacks, openai)
	}
	var local llm.Provider
	if cfg.LLM.Ollama.BaseURL != "" {
		local = llm.NewOllama(cfg.LLM.Ollama)
	}
	chain := llm.NewChain(local, fallbacks, logger)

	registry := collect.NewRegistry(
		collect.NewFeedCollector(logger),
		collect.NewScrapeCollector(robots.New(logger), ratelimit.New(), logger),
		collect.NewAPICollector(cfg.Collect, logger),
		collect.NewSocialCollector(cfg.Collect, logger),
		collect.NewTipCollector(st, logger),
	)

	thresholds := adaptive.NewThresholds(cfg.Thresholds.MinRelevance, st, logger)
	return pipeline.New(st, chain, registry, thresholds, cfg, logger)
}

func main() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "path to YAML config file")
	cycleCmd.Flags().StringVarP(&cycleKind, "kind", "k", types.CycleMain, "cycle to run (main, weather, deep_scrape, social, tips)")

	rootCmd.AddCommand(runCmd, cycleCmd, healthCmd, runsCmd)

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

package main

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"

	"lunargp/internal/ast"
	"lunargp/internal/evo"
	"lunargp/internal/platform"
	"lunargp/internal/scape"
)

type evolveOptions struct {
	pop         int
	gens        int
	seed        int64
	workers     int
	out         string
	kind        string
	profile     string
	runID       string
	metricsAddr string
}

func newEvolveCmd(opts *options) *cobra.Command {
	eo := &evolveOptions{}
	cmd := &cobra.Command{
		Use:   "evolve",
		Short: "Evolve a population until --gens generations or SIGINT",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runEvolve(cmd, opts, eo)
		},
	}
	f := cmd.Flags()
	f.IntVar(&eo.pop, "pop", 0, "population size (overrides population.size)")
	f.IntVar(&eo.gens, "gens", 0, "generations to score, 0 runs until interrupted (overrides population.generations)")
	f.Int64Var(&eo.seed, "seed", 0, "random seed (overrides population.seed)")
	f.IntVar(&eo.workers, "workers", 0, "scoring goroutines (overrides population.workers)")
	f.StringVar(&eo.out, "out", "", "artifacts directory (overrides run.artifacts_dir)")
	f.StringVar(&eo.kind, "kind", "", "program|condition (overrides population.kind)")
	f.StringVar(&eo.profile, "profile", "", "landing|soft_landing scoring preset")
	f.StringVar(&eo.runID, "run-id", "", "run id; a random UUID when empty")
	f.StringVar(&eo.metricsAddr, "metrics-addr", "", "serve Prometheus metrics on this address (overrides run.metrics_addr)")
	return cmd
}

func runEvolve(cmd *cobra.Command, opts *options, eo *evolveOptions) error {
	cfg, err := opts.load()
	if err != nil {
		return err
	}
	flags := cmd.Flags()
	if flags.Changed("profile") {
		switch eo.profile {
		case scape.ProfileLanding:
			cfg.Scoring = scape.DefaultScoring()
		case scape.ProfileSoftLanding:
			cfg.Scoring = scape.SoftLandingScoring()
		default:
			return fmt.Errorf("unsupported profile: %s", eo.profile)
		}
	}
	if flags.Changed("pop") {
		cfg.Population.Size = eo.pop
	}
	if flags.Changed("gens") {
		cfg.Population.Generations = eo.gens
	}
	if flags.Changed("seed") {
		cfg.Population.Seed = eo.seed
	}
	if flags.Changed("workers") {
		cfg.Population.Workers = eo.workers
	}
	if flags.Changed("out") {
		cfg.Run.ArtifactsDir = eo.out
	}
	if flags.Changed("kind") {
		cfg.Population.Kind = eo.kind
	}
	if flags.Changed("metrics-addr") {
		cfg.Run.MetricsAddr = eo.metricsAddr
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	logger, err := newLogger(cfg, cmd.ErrOrStderr())
	if err != nil {
		return err
	}
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	store, closeStore, err := openStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer closeStore()

	reg := prometheus.NewRegistry()
	metrics := evo.NewMetrics(reg)
	if cfg.Run.MetricsAddr != "" {
		shutdown := serveMetrics(cfg.Run.MetricsAddr, reg, func(err error) {
			logger.Error("metrics server stopped", "addr", cfg.Run.MetricsAddr, "error", err)
		})
		defer shutdown()
		logger.Info("serving metrics", "addr", cfg.Run.MetricsAddr)
	}

	runner, err := platform.NewRunner(platform.RunnerConfig{
		Config:  cfg,
		Store:   store,
		RunID:   eo.runID,
		Logger:  logger,
		Metrics: metrics,
	})
	if err != nil {
		return err
	}

	began := time.Now()
	result, err := runner.Run(ctx)
	if err != nil {
		return err
	}
	printRunSummary(cmd, result, cfg.Population.Size, time.Since(began))
	return nil
}

// serveMetrics exposes reg on addr/metrics until the returned func is called.
func serveMetrics(addr string, reg *prometheus.Registry, onError func(error)) func() {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg}))
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			onError(err)
		}
	}()
	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = srv.Shutdown(ctx)
	}
}

func printRunSummary(cmd *cobra.Command, result platform.Result, popSize int, elapsed time.Duration) {
	out := cmd.OutOrStdout()
	st := newStyles(out)
	generations := len(result.History)
	fmt.Fprintln(out, st.title.Render(fmt.Sprintf("run %s stopped: %s", result.RunID, result.Stopped)))
	fmt.Fprintf(out, "generations=%s evaluations=%s elapsed=%s\n",
		humanize.Comma(int64(generations)),
		humanize.Comma(int64(generations)*int64(popSize)),
		elapsed.Round(time.Millisecond),
	)
	if result.Best == nil {
		fmt.Fprintln(out, "no champion")
		return
	}
	fmt.Fprintf(out, "best=%s generation=%d\n", st.good.Render(humanize.FtoaWithDigits(result.BestScore.Total(), 3)), result.BestGeneration)
	fmt.Fprintf(out, "score: %s\n", result.BestScore.String())
	fmt.Fprintf(out, "program: %s\n", result.Best.String())
	fmt.Fprintf(out, "source: %s\n", st.dim.Render(ast.Source(result.Best)))
	if result.RunDir != "" {
		fmt.Fprintf(out, "artifacts: %s (%s)\n", result.RunDir, humanize.Bytes(dirSize(result.RunDir)))
	}
}

func dirSize(dir string) uint64 {
	var total uint64
	_ = filepath.WalkDir(dir, func(_ string, d fs.DirEntry, err error) error {
		if err != nil || d.IsDir() {
			return nil
		}
		if info, err := d.Info(); err == nil {
			total += uint64(info.Size())
		}
		return nil
	})
	return total
}

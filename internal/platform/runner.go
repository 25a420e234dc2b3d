// Package platform runs evolution end to end: seeding, scoring, keeping the
// best tree, persisting history and writing artifacts.
package platform

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"lunargp/internal/ast"
	"lunargp/internal/config"
	"lunargp/internal/evo"
	"lunargp/internal/genotype"
	"lunargp/internal/model"
	"lunargp/internal/scape"
	"lunargp/internal/stats"
	"lunargp/internal/storage"
)

type StopReason string

const (
	StopReasonLimit    StopReason = "generation_limit"
	StopReasonShutdown StopReason = "shutdown"
)

type RunnerConfig struct {
	Config config.Config
	Store  storage.Store
	// RunID defaults to a random UUID.
	RunID   string
	Logger  *slog.Logger
	Metrics *evo.Metrics
	// OnGeneration, when set, is called after every scored generation.
	OnGeneration func(model.GenerationRecord)
}

type Result struct {
	RunID          string
	RunDir         string
	Stopped        StopReason
	History        []model.GenerationRecord
	Best           *ast.Node
	BestScore      evo.ScoreCard
	BestGeneration int
}

// Runner drives one run. It is not safe for concurrent use.
type Runner struct {
	cfg     config.Config
	kind    ast.Kind
	store   storage.Store
	runID   string
	log     *slog.Logger
	metrics *evo.Metrics
	notify  func(model.GenerationRecord)

	gen     *genotype.Generator
	mutator *evo.Mutator
	lander  *scape.Lander
	keeper  *evo.OptimumKeeper
}

func NewRunner(rc RunnerConfig) (*Runner, error) {
	if rc.Store == nil {
		return nil, fmt.Errorf("store is required")
	}
	if err := rc.Config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	kind, err := rc.Config.Kind()
	if err != nil {
		return nil, err
	}
	gen, err := genotype.NewGenerator(rc.Config.Generation.Weights, rc.Config.Generation.MaxDepth)
	if err != nil {
		return nil, err
	}
	mutator, err := evo.NewMutator(gen, rc.Config.Mutation)
	if err != nil {
		return nil, err
	}
	lander, err := scape.NewLander(rc.Config.World, rc.Config.Scoring)
	if err != nil {
		return nil, err
	}

	runID := rc.RunID
	if runID == "" {
		runID = uuid.NewString()
	}
	logger := rc.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Runner{
		cfg:     rc.Config,
		kind:    kind,
		store:   rc.Store,
		runID:   runID,
		log:     logger.With("run_id", runID),
		metrics: rc.Metrics,
		notify:  rc.OnGeneration,
		gen:     gen,
		mutator: mutator,
		lander:  lander,
		keeper:  evo.NewOptimumKeeper(),
	}, nil
}

func (r *Runner) RunID() string { return r.runID }

// Run evolves until the configured generation limit or until ctx is done.
// Cancellation is a normal stop: the history so far is persisted and the
// result reports StopReasonShutdown.
func (r *Runner) Run(ctx context.Context) (Result, error) {
	if err := r.store.Init(ctx); err != nil {
		return Result{}, fmt.Errorf("init store: %w", err)
	}

	started := time.Now().UTC()
	pc := r.cfg.Population
	rng := rand.New(rand.NewSource(pc.Seed))
	pop := evo.Seed(pc.Size, r.kind, r.gen, rng)
	evolveCfg := evo.EvolveConfig{
		TournamentSize: pc.TournamentSize,
		Distinct:       pc.DistinctTournament,
		Weights:        r.cfg.Evolve,
		Mutator:        r.mutator,
		Logger:         r.log,
		Metrics:        r.metrics,
	}

	r.log.Info("run started",
		"kind", r.kind.String(),
		"profile", r.cfg.Scoring.Profile,
		"population", pc.Size,
		"generations", pc.Generations,
		"seed", pc.Seed,
		"workers", pc.Workers,
	)

	result := Result{RunID: r.runID, Stopped: StopReasonLimit}
	for pc.Generations <= 0 || len(result.History) < pc.Generations {
		record, err := r.scoreGeneration(ctx, pop, rng)
		if err != nil {
			if ctx.Err() != nil {
				result.Stopped = StopReasonShutdown
				break
			}
			return result, err
		}
		result.History = append(result.History, record)
		if pc.Generations > 0 && len(result.History) >= pc.Generations {
			break
		}

		next, err := pop.Evolve(ctx, evolveCfg, rng)
		if err != nil {
			if ctx.Err() != nil {
				result.Stopped = StopReasonShutdown
				break
			}
			return result, fmt.Errorf("evolve generation %d: %w", pop.Generation(), err)
		}
		pop = next
	}

	// Persist what was collected even when ctx is already cancelled.
	finalCtx := context.WithoutCancel(ctx)
	if err := r.finish(finalCtx, started, &result); err != nil {
		return result, err
	}
	r.log.Info("run finished",
		"reason", string(result.Stopped),
		"generations", len(result.History),
		"best", result.BestScore.Total(),
		"best_generation", result.BestGeneration,
	)
	return result, nil
}

func (r *Runner) scoreGeneration(ctx context.Context, pop *evo.Population, rng *rand.Rand) (model.GenerationRecord, error) {
	begin := time.Now()
	if err := pop.Score(ctx, r.lander.Score, rng, r.cfg.Population.Workers); err != nil {
		return model.GenerationRecord{}, fmt.Errorf("score generation %d: %w", pop.Generation(), err)
	}
	r.metrics.ObserveScoring(pop.Generation(), pop.Len(), time.Since(begin))

	scores := pop.Scores()
	totals := make([]float64, len(scores))
	sizes := make([]int, pop.Len())
	depths := make([]int, pop.Len())
	for i, s := range scores {
		totals[i] = s.Total()
	}
	for i := 0; i < pop.Len(); i++ {
		sizes[i] = pop.Tree(i).Size()
		depths[i] = ast.Depth(pop.Tree(i))
	}
	record := stats.Summarize(pop.Generation(), totals, sizes, depths)
	if err := r.store.AppendGeneration(ctx, r.runID, record); err != nil {
		return model.GenerationRecord{}, fmt.Errorf("append generation %d: %w", pop.Generation(), err)
	}

	winner, err := pop.Winner()
	if err != nil {
		return model.GenerationRecord{}, err
	}
	g := pop.Generation()
	improved := r.keeper.Improved(winner.Tree, winner.Score, g)
	if improved {
		best, score, _, _ := r.keeper.Best()
		bench, err := r.benchmark(ctx, best)
		if err != nil {
			return model.GenerationRecord{}, err
		}
		r.metrics.ObserveBest(score.Total())
		r.log.Info("improved",
			"generation", g,
			"score", score.Total(),
			"benchmark", bench.Total(),
			"components", score.String(),
			"program", best.String(),
		)
		if err := r.saveChampion(ctx, g, bench); err != nil {
			return model.GenerationRecord{}, err
		}
	} else if every := r.cfg.Run.SaveEvery; every > 0 && g%every == 0 {
		if err := r.writeChampionArtifacts(ctx, g); err != nil {
			return model.GenerationRecord{}, err
		}
	}

	r.log.Info("generation complete",
		"generation", g,
		"best", float64(record.Best),
		"mean", float64(record.Mean),
		"nan_count", record.NaNCount,
		"mean_size", float64(record.MeanSize),
	)
	if r.notify != nil {
		r.notify(record)
	}
	return record, nil
}

// benchmark scores tree over the fixed benchmark starts, which need no rng.
func (r *Runner) benchmark(ctx context.Context, tree *ast.Node) (evo.ScoreCard, error) {
	card, err := r.lander.ScoreMode(ctx, tree, nil, scape.ModeBenchmark)
	if err != nil {
		return evo.ScoreCard{}, fmt.Errorf("benchmark champion: %w", err)
	}
	return card, nil
}

func (r *Runner) saveChampion(ctx context.Context, generation int, bench evo.ScoreCard) error {
	tree, score, found, _ := r.keeper.Best()
	program, err := ast.Marshal(tree)
	if err != nil {
		return fmt.Errorf("encode champion: %w", err)
	}
	champion := model.ChampionRecord{
		VersionedRecord: storage.Versioned(),
		RunID:           r.runID,
		Generation:      found,
		Score:           model.Float(score.Total()),
		Benchmark:       model.Float(bench.Total()),
		Components:      score.Components(),
		Program:         program,
		Source:          ast.Source(tree),
	}
	if err := r.store.SaveChampion(ctx, champion); err != nil {
		return fmt.Errorf("save champion: %w", err)
	}
	return r.writeChampionArtifacts(ctx, generation)
}

// writeChampionArtifacts saves the kept tree's source and a replayed flight
// from the middle of the start height range, labeled with generation.
func (r *Runner) writeChampionArtifacts(ctx context.Context, generation int) error {
	dir := r.runDir()
	if dir == "" {
		return nil
	}
	tree, _, _, ok := r.keeper.Best()
	if !ok {
		return nil
	}
	start := model.NewState()
	start.Y = (r.cfg.Scoring.MinHeight + r.cfg.Scoring.MaxHeight) / 2
	flight, err := r.lander.Replay(ctx, tree, start)
	if err != nil {
		return fmt.Errorf("replay champion: %w", err)
	}
	if err := stats.WriteChampion(dir, generation, ast.Source(tree), flight.Trace); err != nil {
		return fmt.Errorf("write champion artifacts: %w", err)
	}
	return nil
}

func (r *Runner) runDir() string {
	if r.cfg.Run.ArtifactsDir == "" {
		return ""
	}
	return filepath.Join(r.cfg.Run.ArtifactsDir, r.runID)
}

func (r *Runner) finish(ctx context.Context, started time.Time, result *Result) error {
	pc := r.cfg.Population
	run := model.RunRecord{
		VersionedRecord: storage.Versioned(),
		ID:              r.runID,
		StartedAt:       started,
		Kind:            r.kind.String(),
		Profile:         r.cfg.Scoring.Profile,
		PopulationSize:  pc.Size,
		TournamentSize:  pc.TournamentSize,
		Seed:            pc.Seed,
		Generations:     len(result.History),
	}
	var champion *model.ChampionRecord
	if tree, score, g, ok := r.keeper.Best(); ok {
		result.Best, result.BestScore, result.BestGeneration = tree, score, g
		run.BestScore = model.Float(score.Total())
		run.BestGeneration = g
		latest, err := storage.LatestChampion(ctx, r.store, r.runID)
		if err != nil && !errors.Is(err, storage.ErrNotFound) {
			return err
		}
		if err == nil {
			champion = &latest
		}
	}
	if err := r.store.SaveRun(ctx, run); err != nil {
		return fmt.Errorf("save run: %w", err)
	}

	if r.cfg.Run.ArtifactsDir == "" {
		return nil
	}
	dir, err := stats.WriteRunArtifacts(r.cfg.Run.ArtifactsDir, stats.RunArtifacts{
		Config:      r.runConfig(),
		Generations: result.History,
		FinalBest:   run.BestScore,
		Champion:    champion,
	})
	if err != nil {
		return fmt.Errorf("write run artifacts: %w", err)
	}
	result.RunDir = dir
	return stats.AppendRunIndex(r.cfg.Run.ArtifactsDir, stats.RunIndexEntry{
		RunID:          r.runID,
		Kind:           run.Kind,
		PopulationSize: pc.Size,
		Generations:    run.Generations,
		Seed:           pc.Seed,
		Workers:        pc.Workers,
		FinalBest:      run.BestScore,
		CreatedAtUTC:   started.Format(time.RFC3339),
	})
}

func (r *Runner) runConfig() stats.RunConfig {
	pc := r.cfg.Population
	return stats.RunConfig{
		RunID:          r.runID,
		Kind:           r.kind.String(),
		Profile:        r.cfg.Scoring.Profile,
		PopulationSize: pc.Size,
		TournamentSize: pc.TournamentSize,
		Distinct:       pc.DistinctTournament,
		Generations:    pc.Generations,
		Seed:           pc.Seed,
		Workers:        pc.Workers,
		Trials:         r.cfg.Scoring.Trials,
		MaxDepth:       r.cfg.Generation.MaxDepth,
		Reproduce:      r.cfg.Evolve.Reproduce,
		Mutate:         r.cfg.Evolve.Mutate,
		Crossover:      r.cfg.Evolve.Crossover,
		DepthPenalty:   r.cfg.Scoring.DepthPenalty,
	}
}

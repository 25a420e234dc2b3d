// Package config loads the YAML run configuration.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"lunargp/internal/ast"
	"lunargp/internal/evo"
	"lunargp/internal/genotype"
	"lunargp/internal/scape"
)

type Population struct {
	Size           int    `yaml:"size"`
	Kind           string `yaml:"kind"`
	TournamentSize int    `yaml:"tournament_size"`
	Seed           int64  `yaml:"seed"`
	Workers        int    `yaml:"workers"`
	// DistinctTournament draws tournament entrants without replacement.
	DistinctTournament bool `yaml:"distinct_tournament"`
	// Generations bounds the run; 0 runs until cancelled.
	Generations int `yaml:"generations"`
}

type Generation struct {
	Weights  genotype.Weights `yaml:"weights"`
	MaxDepth int              `yaml:"max_depth"`
}

type Run struct {
	Store        string `yaml:"store"`
	DBPath       string `yaml:"db_path"`
	ArtifactsDir string `yaml:"artifacts_dir"`
	SaveEvery    int    `yaml:"save_every"`
	MetricsAddr  string `yaml:"metrics_addr"`
}

type Log struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

type Config struct {
	Population Population         `yaml:"population"`
	Evolve     evo.EvolveWeights  `yaml:"evolve"`
	Generation Generation         `yaml:"generation"`
	Mutation   evo.MutationConfig `yaml:"mutation"`
	World      scape.World        `yaml:"world"`
	Scoring    scape.Scoring      `yaml:"scoring"`
	Run        Run                `yaml:"run"`
	Log        Log                `yaml:"log"`
}

func Default() Config {
	return Config{
		Population: Population{
			Size:           1000,
			Kind:           ast.KindProgram.String(),
			TournamentSize: 20,
			Seed:           1,
			Workers:        4,
		},
		Evolve: evo.DefaultEvolveWeights(),
		Generation: Generation{
			Weights: genotype.DefaultWeights(),
		},
		Mutation: evo.DefaultMutationConfig(),
		World:    scape.DefaultWorld(),
		Scoring:  scape.DefaultScoring(),
		Run: Run{
			Store:        "memory",
			DBPath:       "lunargp.db",
			ArtifactsDir: "runs",
			SaveEvery:    100,
		},
		Log: Log{
			Level:  "info",
			Format: "auto",
		},
	}
}

// Load reads a YAML file over Default. Unknown keys are rejected.
func Load(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("read config %s: %w", path, err)
	}
	cfg, err := Parse(bytes.NewReader(data))
	if err != nil {
		return Config{}, fmt.Errorf("config %s: %w", path, err)
	}
	return cfg, nil
}

// Parse decodes YAML over Default and validates the result.
func Parse(r io.Reader) (Config, error) {
	cfg := Default()
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil && !errors.Is(err, io.EOF) {
		return Config{}, fmt.Errorf("decode: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Write saves cfg as YAML, creating the directory if needed.
func Write(path string, cfg Config) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create config directory: %w", err)
	}
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}

// Kind is the tree kind the population evolves.
func (c Config) Kind() (ast.Kind, error) {
	k, err := ast.ParseKind(c.Population.Kind)
	if err != nil {
		return 0, err
	}
	if k != ast.KindProgram && k != ast.KindCondition {
		return 0, fmt.Errorf("population kind must be program or condition, got %s", k)
	}
	return k, nil
}

// Validate reports every invalid setting at once.
func (c Config) Validate() error {
	var errs []error
	if c.Population.Size < 1 {
		errs = append(errs, fmt.Errorf("population.size must be >= 1: %d", c.Population.Size))
	}
	if _, err := c.Kind(); err != nil {
		errs = append(errs, fmt.Errorf("population.kind: %w", err))
	}
	if c.Population.TournamentSize < 1 {
		errs = append(errs, fmt.Errorf("population.tournament_size must be >= 1: %d", c.Population.TournamentSize))
	}
	if c.Population.Workers < 1 {
		errs = append(errs, fmt.Errorf("population.workers must be >= 1: %d", c.Population.Workers))
	}
	if c.Population.Generations < 0 {
		errs = append(errs, fmt.Errorf("population.generations must be >= 0: %d", c.Population.Generations))
	}
	e := c.Evolve
	if e.Reproduce < 0 || e.Mutate < 0 || e.Crossover < 0 || e.Reproduce+e.Mutate+e.Crossover <= 0 {
		errs = append(errs, fmt.Errorf("evolve weights must be >= 0 with a positive sum: %+v", e))
	}
	if err := c.Generation.Weights.Validate(); err != nil {
		errs = append(errs, fmt.Errorf("generation.weights: %w", err))
	}
	if c.Generation.MaxDepth < 0 {
		errs = append(errs, fmt.Errorf("generation.max_depth must be >= 0: %d", c.Generation.MaxDepth))
	}
	if err := c.Mutation.Validate(); err != nil {
		errs = append(errs, fmt.Errorf("mutation: %w", err))
	}
	if err := c.World.Validate(); err != nil {
		errs = append(errs, fmt.Errorf("world: %w", err))
	}
	if err := c.Scoring.Validate(); err != nil {
		errs = append(errs, fmt.Errorf("scoring: %w", err))
	}
	switch c.Run.Store {
	case "memory":
	case "sqlite":
		if strings.TrimSpace(c.Run.DBPath) == "" {
			errs = append(errs, fmt.Errorf("run.db_path is required for the sqlite store"))
		}
	default:
		errs = append(errs, fmt.Errorf("run.store must be memory or sqlite: %q", c.Run.Store))
	}
	if c.Run.SaveEvery < 0 {
		errs = append(errs, fmt.Errorf("run.save_every must be >= 0: %d", c.Run.SaveEvery))
	}
	return errors.Join(errs...)
}

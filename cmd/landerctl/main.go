package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"lunargp/internal/config"
	"lunargp/internal/logging"
	"lunargp/internal/storage"
)

func main() {
	if err := newRootCmd().ExecuteContext(context.Background()); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// options holds the flags shared by every subcommand.
type options struct {
	configPath string
	store      string
	dbPath     string
	logLevel   string
	logFormat  string
}

func newRootCmd() *cobra.Command {
	opts := &options{}
	root := &cobra.Command{
		Use:           "landerctl",
		Short:         "Evolve and inspect moon lander control programs",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	pf := root.PersistentFlags()
	pf.StringVar(&opts.configPath, "config", "", "YAML config file; defaults apply when empty")
	pf.StringVar(&opts.store, "store", "", "store backend: memory|sqlite (overrides run.store)")
	pf.StringVar(&opts.dbPath, "db-path", "", "sqlite database path (overrides run.db_path)")
	pf.StringVar(&opts.logLevel, "log-level", "", "debug|info|warn|error (overrides log.level)")
	pf.StringVar(&opts.logFormat, "log-format", "", "text|json|auto (overrides log.format)")

	root.AddCommand(
		newEvolveCmd(opts),
		newGenerateCmd(opts),
		newSimulateCmd(opts),
		newEvaluateCmd(),
		newSimplifyCmd(),
		newScoreCmd(opts),
		newRunsCmd(opts),
		newChampionsCmd(opts),
		newCompareCmd(),
		newExportCmd(),
		newConfigCmd(opts),
	)
	return root
}

// load reads the config file, if any, and applies the shared flag overrides.
func (o *options) load() (config.Config, error) {
	cfg := config.Default()
	if o.configPath != "" {
		loaded, err := config.Load(o.configPath)
		if err != nil {
			return config.Config{}, err
		}
		cfg = loaded
	}
	if o.store != "" {
		cfg.Run.Store = o.store
	}
	if o.dbPath != "" {
		cfg.Run.DBPath = o.dbPath
	}
	if o.logLevel != "" {
		cfg.Log.Level = o.logLevel
	}
	if o.logFormat != "" {
		cfg.Log.Format = o.logFormat
	}
	return cfg, nil
}

func newLogger(cfg config.Config, w io.Writer) (*slog.Logger, error) {
	return logging.New(logging.Config{Level: cfg.Log.Level, Format: cfg.Log.Format, Writer: w})
}

// openStore returns an initialized store and a func that closes it.
func openStore(ctx context.Context, cfg config.Config) (storage.Store, func(), error) {
	store, err := storage.NewStore(cfg.Run.Store, cfg.Run.DBPath)
	if err != nil {
		return nil, nil, err
	}
	closeStore := func() { _ = storage.CloseIfSupported(store) }
	if err := store.Init(ctx); err != nil {
		closeStore()
		return nil, nil, err
	}
	return store, closeStore, nil
}

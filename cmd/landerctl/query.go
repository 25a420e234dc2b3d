package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"lunargp/internal/model"
	"lunargp/internal/stats"
	"lunargp/internal/storage"
)

func newRunsCmd(opts *options) *cobra.Command {
	var (
		limit  int
		asJSON bool
		index  string
	)
	cmd := &cobra.Command{
		Use:   "runs",
		Short: "List stored runs, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if limit <= 0 {
				return errors.New("limit must be > 0")
			}
			if index != "" {
				return listRunIndex(cmd, index, limit, asJSON)
			}
			cfg, err := opts.load()
			if err != nil {
				return err
			}
			store, closeStore, err := openStore(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			defer closeStore()

			runs, err := store.ListRuns(cmd.Context())
			if err != nil {
				return err
			}
			newest := make([]model.RunRecord, 0, min(limit, len(runs)))
			for i := len(runs) - 1; i >= 0 && len(newest) < limit; i-- {
				newest = append(newest, runs[i])
			}
			out := cmd.OutOrStdout()
			if asJSON {
				return writeJSON(out, newest)
			}
			if len(newest) == 0 {
				fmt.Fprintln(out, "no runs found")
				return nil
			}
			tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "RUN\tSTARTED\tKIND\tPROFILE\tPOP\tGENS\tBEST\tAT GEN")
			for _, r := range newest {
				fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\t%s\t%d\n",
					r.ID,
					humanize.Time(r.StartedAt),
					r.Kind,
					r.Profile,
					humanize.Comma(int64(r.PopulationSize)),
					humanize.Comma(int64(r.Generations)),
					humanize.FtoaWithDigits(float64(r.BestScore), 3),
					r.BestGeneration,
				)
			}
			return tw.Flush()
		},
	}
	f := cmd.Flags()
	f.IntVar(&limit, "limit", 20, "max runs to list")
	f.BoolVar(&asJSON, "json", false, "emit JSON")
	f.StringVar(&index, "artifacts", "", "read the run index in this artifacts directory instead of the store")
	return cmd
}

func listRunIndex(cmd *cobra.Command, dir string, limit int, asJSON bool) error {
	entries, err := stats.ListRunIndex(dir)
	if err != nil {
		return err
	}
	if len(entries) > limit {
		entries = entries[:limit]
	}
	out := cmd.OutOrStdout()
	if asJSON {
		return writeJSON(out, entries)
	}
	if len(entries) == 0 {
		fmt.Fprintln(out, "no runs found")
		return nil
	}
	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "RUN\tCREATED\tKIND\tPOP\tGENS\tSEED\tBEST")
	for _, e := range entries {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%d\t%s\n",
			e.RunID,
			e.CreatedAtUTC,
			e.Kind,
			humanize.Comma(int64(e.PopulationSize)),
			humanize.Comma(int64(e.Generations)),
			e.Seed,
			humanize.FtoaWithDigits(float64(e.FinalBest), 3),
		)
	}
	return tw.Flush()
}

func newChampionsCmd(opts *options) *cobra.Command {
	var (
		asJSON bool
		latest bool
	)
	cmd := &cobra.Command{
		Use:   "champions [run-id]",
		Short: "Show the champions of a run, the latest run by default",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := opts.load()
			if err != nil {
				return err
			}
			ctx := cmd.Context()
			store, closeStore, err := openStore(ctx, cfg)
			if err != nil {
				return err
			}
			defer closeStore()

			var runID string
			if len(args) == 1 {
				runID = args[0]
			} else {
				run, err := storage.LatestRun(ctx, store)
				if err != nil {
					return fmt.Errorf("latest run: %w", err)
				}
				runID = run.ID
			}
			champions, ok, err := store.GetChampions(ctx, runID)
			if err != nil {
				return err
			}
			if !ok || len(champions) == 0 {
				return fmt.Errorf("run %s: %w", runID, storage.ErrNotFound)
			}
			if latest {
				champions = champions[len(champions)-1:]
			}

			out := cmd.OutOrStdout()
			if asJSON {
				return writeJSON(out, champions)
			}
			st := newStyles(out)
			for _, c := range champions {
				fmt.Fprintln(out, st.title.Render(fmt.Sprintf("generation %d score %s", c.Generation, humanize.FtoaWithDigits(float64(c.Score), 3))))
				for _, comp := range c.Components {
					fmt.Fprintf(out, "  %-12s %s\n", comp.Label, humanize.FtoaWithDigits(comp.Value, 3))
				}
				fmt.Fprintf(out, "  %s\n", st.dim.Render(c.Source))
			}
			return nil
		},
	}
	f := cmd.Flags()
	f.BoolVar(&asJSON, "json", false, "emit JSON")
	f.BoolVar(&latest, "latest", false, "show only the last champion")
	return cmd
}

func writeJSON(w io.Writer, value any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(value)
}

func newCompareCmd() *cobra.Command {
	var (
		artifacts string
		outPath   string
		asJSON    bool
	)
	cmd := &cobra.Command{
		Use:   "compare <run-id>...",
		Short: "Average the fitness histories of several runs",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := stats.CompareRuns(artifacts, args)
			if err != nil {
				return err
			}
			if outPath != "" {
				if err := stats.WriteComparison(outPath, c); err != nil {
					return err
				}
			}
			out := cmd.OutOrStdout()
			if asJSON {
				return writeJSON(out, c)
			}
			for i, id := range c.RunIDs {
				fmt.Fprintf(out, "%s final best %s\n", id, humanize.FtoaWithDigits(float64(c.FinalBest[i]), 3))
			}
			if n := len(c.MeanBest); n > 0 {
				last := c.MeanBest[n-1]
				fmt.Fprintf(out, "mean best at generation %d over %d runs: %s\n", last.Generation, last.Runs, humanize.FtoaWithDigits(float64(last.Value), 3))
			}
			return nil
		},
	}
	f := cmd.Flags()
	f.StringVar(&artifacts, "artifacts", "runs", "artifacts directory holding the runs")
	f.StringVar(&outPath, "out", "", "write the averaged curves as CSV to this file")
	f.BoolVar(&asJSON, "json", false, "emit JSON")
	return cmd
}

func newExportCmd() *cobra.Command {
	var (
		artifacts string
		outDir    string
	)
	cmd := &cobra.Command{
		Use:   "export <run-id>",
		Short: "Copy a run's artifacts to another directory",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			runID := args[0]
			cfg, ok, err := stats.ReadRunConfig(artifacts, runID)
			if err != nil {
				return err
			}
			if !ok {
				return fmt.Errorf("run %s: %w", runID, storage.ErrNotFound)
			}
			dir, err := stats.ExportRunArtifacts(artifacts, runID, outDir)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "exported %s (%s, pop %s, seed %d) to %s (%s)\n",
				runID, cfg.Kind, humanize.Comma(int64(cfg.PopulationSize)), cfg.Seed, dir, humanize.Bytes(dirSize(dir)))
			return nil
		},
	}
	f := cmd.Flags()
	f.StringVar(&artifacts, "artifacts", "runs", "artifacts directory holding the run")
	f.StringVar(&outDir, "out", "exports", "destination directory")
	return cmd
}

package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"math/rand"
	"os"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"lunargp/internal/ast"
	"lunargp/internal/genotype"
	"lunargp/internal/model"
	"lunargp/internal/scape"
	"lunargp/internal/storage"
)

func newGenerateCmd(opts *options) *cobra.Command {
	var (
		kind    string
		seed    int64
		asJSON  bool
		outPath string
	)
	cmd := &cobra.Command{
		Use:   "generate",
		Short: "Print a random tree",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := opts.load()
			if err != nil {
				return err
			}
			k, err := ast.ParseKind(kind)
			if err != nil {
				return err
			}
			gen, err := genotype.NewGenerator(cfg.Generation.Weights, cfg.Generation.MaxDepth)
			if err != nil {
				return err
			}
			if !cmd.Flags().Changed("seed") {
				seed = time.Now().UnixNano()
			}
			tree := gen.Random(k, rand.New(rand.NewSource(seed)))
			if outPath != "" {
				if err := saveProgram(outPath, tree); err != nil {
					return err
				}
			}
			return printTree(cmd.OutOrStdout(), tree, asJSON)
		},
	}
	f := cmd.Flags()
	f.StringVar(&kind, "kind", ast.KindProgram.String(), "tree kind: program|condition|expression")
	f.Int64Var(&seed, "seed", 0, "random seed; the clock when unset")
	f.BoolVar(&asJSON, "json", false, "print the JSON encoding")
	f.StringVar(&outPath, "out", "", "also save the tree as JSON to this file")
	return cmd
}

func newSimulateCmd(opts *options) *cobra.Command {
	var (
		height    float64
		seed      int64
		tracePath string
	)
	cmd := &cobra.Command{
		Use:   "simulate [program.json]",
		Short: "Fly a program, random when no file is given, and save its trace",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := opts.load()
			if err != nil {
				return err
			}
			var tree *ast.Node
			if len(args) == 1 {
				tree, err = loadProgram(cmd.InOrStdin(), args[0])
				if err != nil {
					return err
				}
			} else {
				gen, err := genotype.NewGenerator(cfg.Generation.Weights, cfg.Generation.MaxDepth)
				if err != nil {
					return err
				}
				if !cmd.Flags().Changed("seed") {
					seed = time.Now().UnixNano()
				}
				tree = gen.Program(rand.New(rand.NewSource(seed)))
			}

			lander, err := scape.NewLander(cfg.World, cfg.Scoring)
			if err != nil {
				return err
			}
			start := model.NewState()
			start.Y = height
			flight, err := lander.Replay(cmd.Context(), tree, start)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			st := newStyles(out)
			fmt.Fprintf(out, "program: %s\n", tree.String())
			fmt.Fprintf(out, "frames=%s outcome=%s max_height=%.2f fuel=%.2f crash_speed=%.2f\n",
				humanize.Comma(int64(flight.Frames)),
				st.outcome(outcome(flight.Final)),
				flight.MaxHeight,
				flight.Final.Fuel,
				flight.Final.CrashSpeed,
			)
			if tracePath == "" {
				return nil
			}
			if err := flight.Trace.Save(tracePath); err != nil {
				return err
			}
			fmt.Fprintf(out, "trace: %s (%s states)\n", tracePath, humanize.Comma(int64(flight.Trace.Len())))
			return nil
		},
	}
	f := cmd.Flags()
	f.Float64Var(&height, "height", 100, "start height")
	f.Int64Var(&seed, "seed", 0, "seed for the random program; the clock when unset")
	f.StringVar(&tracePath, "trace", "trace.json", "trace output file; empty skips it")
	return cmd
}

func outcome(s model.State) string {
	switch {
	case s.Landed:
		return "landed"
	case s.Crashed:
		return "crashed"
	}
	return "airborne"
}

func newEvaluateCmd() *cobra.Command {
	state := model.NewState()
	cmd := &cobra.Command{
		Use:   "evaluate <tree.json>",
		Short: "Evaluate a tree against one lander state",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			tree, err := loadProgram(cmd.InOrStdin(), args[0])
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			switch tree.Kind() {
			case ast.KindProgram:
				fmt.Fprintln(out, ast.Evaluate(tree, state))
			case ast.KindCondition:
				fmt.Fprintln(out, ast.Truth(tree, state))
			case ast.KindExpression:
				fmt.Fprintln(out, ast.Value(tree, state))
			default:
				return fmt.Errorf("cannot evaluate a bare %s", tree.Kind())
			}
			return nil
		},
	}
	f := cmd.Flags()
	f.Float64Var(&state.X, "x", state.X, "horizontal position")
	f.Float64Var(&state.Y, "y", state.Y, "height")
	f.Float64Var(&state.Vx, "vx", state.Vx, "horizontal velocity")
	f.Float64Var(&state.Vy, "vy", state.Vy, "vertical velocity")
	f.Float64Var(&state.O, "o", state.O, "orientation in radians")
	f.Float64Var(&state.W, "w", state.W, "angular velocity")
	f.Float64Var(&state.Fuel, "fuel", state.Fuel, "fuel left")
	return cmd
}

func newSimplifyCmd() *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "simplify <tree.json>",
		Short: "Print the simplified form of a tree",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			tree, err := loadProgram(cmd.InOrStdin(), args[0])
			if err != nil {
				return err
			}
			simplified := ast.Simplify(tree)
			if !asJSON {
				fmt.Fprintf(cmd.OutOrStdout(), "before: %s\n", tree.String())
			}
			return printTree(cmd.OutOrStdout(), simplified, asJSON)
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "print the JSON encoding")
	return cmd
}

func printTree(w io.Writer, tree *ast.Node, asJSON bool) error {
	if asJSON {
		data, err := ast.Marshal(tree)
		if err != nil {
			return err
		}
		_, err = fmt.Fprintln(w, string(data))
		return err
	}
	_, err := fmt.Fprintf(w, "%s\n%s\n", tree.String(), ast.Source(tree))
	return err
}

func saveProgram(path string, tree *ast.Node) error {
	data, err := ast.Marshal(tree)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}

// loadProgram reads a tree from path, or stdin when path is "-". It accepts
// a bare tree encoding as well as a champion record.
func loadProgram(stdin io.Reader, path string) (*ast.Node, error) {
	var (
		data []byte
		err  error
	)
	if path == "-" {
		data, err = io.ReadAll(stdin)
	} else {
		data, err = os.ReadFile(path)
	}
	if err != nil {
		return nil, fmt.Errorf("read program: %w", err)
	}

	var envelope struct {
		Program json.RawMessage `json:"program"`
	}
	if err := json.Unmarshal(data, &envelope); err == nil && len(bytes.TrimSpace(envelope.Program)) > 0 {
		var champion model.ChampionRecord
		if err := json.Unmarshal(data, &champion); err != nil {
			return nil, fmt.Errorf("decode champion %s: %w", path, err)
		}
		return storage.ChampionTree(champion)
	}
	tree, err := ast.Unmarshal(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return tree, nil
}

func newScoreCmd(opts *options) *cobra.Command {
	var (
		mode string
		seed int64
	)
	cmd := &cobra.Command{
		Use:   "score <tree.json>",
		Short: "Score a program or condition with the configured scorer",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := opts.load()
			if err != nil {
				return err
			}
			tree, err := loadProgram(cmd.InOrStdin(), args[0])
			if err != nil {
				return err
			}
			lander, err := scape.NewLander(cfg.World, cfg.Scoring)
			if err != nil {
				return err
			}
			var scorer scape.ModeAwareScape = lander
			card, err := scorer.ScoreMode(cmd.Context(), tree, rand.New(rand.NewSource(seed)), mode)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "%s %s total=%s\n", scorer.Name(), mode, humanize.FtoaWithDigits(card.Total(), 3))
			for _, c := range card.Components() {
				fmt.Fprintf(out, "  %-12s %s\n", c.Label, humanize.FtoaWithDigits(c.Value, 3))
			}
			return nil
		},
	}
	f := cmd.Flags()
	f.StringVar(&mode, "mode", scape.ModeBenchmark, "gt (random starts) or benchmark (fixed starts)")
	f.Int64Var(&seed, "seed", 1, "seed for random starts")
	return cmd
}

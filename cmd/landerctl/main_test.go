package main

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"lunargp/internal/ast"
	"lunargp/internal/config"
	"lunargp/internal/model"
	"lunargp/internal/stats"
	"lunargp/internal/storage"
)

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	root := newRootCmd()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&bytes.Buffer{})
	root.SetArgs(args)
	err := root.ExecuteContext(context.Background())
	return out.String(), err
}

func writeTree(t *testing.T, dir string, tree *ast.Node) string {
	t.Helper()
	path := filepath.Join(dir, "tree.json")
	require.NoError(t, saveProgram(path, tree))
	return path
}

func TestGenerateIsReproducibleWithSeed(t *testing.T) {
	first, err := execute(t, "generate", "--seed", "5", "--json")
	require.NoError(t, err)
	second, err := execute(t, "generate", "--seed", "5", "--json")
	require.NoError(t, err)
	assert.Equal(t, first, second)

	tree, err := ast.Unmarshal([]byte(strings.TrimSpace(first)))
	require.NoError(t, err)
	assert.Equal(t, ast.KindProgram, tree.Kind())
}

func TestGenerateConditionAndSave(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cond.json")
	_, err := execute(t, "generate", "--kind", "condition", "--seed", "9", "--out", path)
	require.NoError(t, err)

	tree, err := loadProgram(nil, path)
	require.NoError(t, err)
	assert.Equal(t, ast.KindCondition, tree.Kind())
}

func TestEvaluateProgramConditionAndExpression(t *testing.T) {
	dir := t.TempDir()
	program := ast.If(ast.Less(ast.Read(ast.Vy), ast.Constant(-1.5)), ast.Do(ast.Thrust), ast.Do(ast.Skip))
	path := writeTree(t, dir, program)

	out, err := execute(t, "evaluate", path, "--vy", "-3")
	require.NoError(t, err)
	assert.Equal(t, "thrust\n", out)

	out, err = execute(t, "evaluate", path, "--vy", "0")
	require.NoError(t, err)
	assert.Equal(t, "skip\n", out)

	path = writeTree(t, dir, ast.Greater(ast.Read(ast.Y), ast.Constant(10)))
	out, err = execute(t, "evaluate", path, "--y", "20")
	require.NoError(t, err)
	assert.Equal(t, "true\n", out)

	path = writeTree(t, dir, ast.Plus(ast.Read(ast.Fuel), ast.Constant(2)))
	out, err = execute(t, "evaluate", path)
	require.NoError(t, err)
	assert.Equal(t, "3\n", out)
}

func TestSimplifyPrintsReducedTree(t *testing.T) {
	tree := ast.If(ast.True(), ast.Do(ast.Left), ast.Do(ast.Right))
	path := writeTree(t, t.TempDir(), tree)

	out, err := execute(t, "simplify", path, "--json")
	require.NoError(t, err)
	simplified, err := ast.Unmarshal([]byte(strings.TrimSpace(out)))
	require.NoError(t, err)
	assert.True(t, simplified.Equal(ast.Do(ast.Left)), "got %s", simplified)
}

func TestSimulateWritesTrace(t *testing.T) {
	dir := t.TempDir()
	path := writeTree(t, dir, ast.Do(ast.Skip))
	tracePath := filepath.Join(dir, "trace.json")

	out, err := execute(t, "simulate", path, "--height", "150", "--trace", tracePath)
	require.NoError(t, err)
	assert.Contains(t, out, "outcome=crashed")

	trace, err := model.LoadTrace(tracePath)
	require.NoError(t, err)
	require.Greater(t, trace.Len(), 1)
	assert.Equal(t, 150.0, trace.States[0].Y)
	assert.True(t, trace.States[trace.Len()-1].Crashed)
}

func TestLoadProgramAcceptsChampionRecords(t *testing.T) {
	tree := ast.Do(ast.Thrust)
	program, err := ast.Marshal(tree)
	require.NoError(t, err)
	data, err := json.Marshal(model.ChampionRecord{
		VersionedRecord: storage.Versioned(),
		RunID:           "r",
		Program:         program,
	})
	require.NoError(t, err)

	got, err := loadProgram(bytes.NewReader(data), "-")
	require.NoError(t, err)
	assert.True(t, got.Equal(tree))

	_, err = loadProgram(strings.NewReader(`{"op":"bogus"}`), "-")
	require.Error(t, err)
}

func TestEvolveSQLiteThenQuery(t *testing.T) {
	dir := t.TempDir()
	db := filepath.Join(dir, "runs.db")
	artifacts := filepath.Join(dir, "artifacts")

	cfg := config.Default()
	cfg.Scoring.Trials = 2
	cfg.Scoring.MaxFrames = 200
	cfg.Generation.MaxDepth = 4
	cfgPath := filepath.Join(dir, "lunargp.yaml")
	require.NoError(t, config.Write(cfgPath, cfg))

	out, err := execute(t,
		"--config", cfgPath, "--store", "sqlite", "--db-path", db, "--log-level", "error",
		"evolve", "--pop", "12", "--gens", "2", "--seed", "3", "--workers", "2",
		"--out", artifacts, "--run-id", "cli-run",
	)
	require.NoError(t, err)
	assert.Contains(t, out, "run cli-run stopped: generation_limit")
	assert.Contains(t, out, "evaluations=24")

	_, err = os.Stat(filepath.Join(artifacts, "cli-run", "fitness_history.csv"))
	require.NoError(t, err)
	entries, err := stats.ListRunIndex(artifacts)
	require.NoError(t, err)
	require.Len(t, entries, 1)

	out, err = execute(t, "--store", "sqlite", "--db-path", db, "runs", "--json")
	require.NoError(t, err)
	var runs []model.RunRecord
	require.NoError(t, json.Unmarshal([]byte(out), &runs))
	require.Len(t, runs, 1)
	assert.Equal(t, "cli-run", runs[0].ID)
	assert.Equal(t, 2, runs[0].Generations)

	out, err = execute(t, "--store", "sqlite", "--db-path", db, "champions", "--latest", "--json")
	require.NoError(t, err)
	var champions []model.ChampionRecord
	require.NoError(t, json.Unmarshal([]byte(out), &champions))
	require.Len(t, champions, 1)
	assert.Equal(t, float64(runs[0].BestScore), float64(champions[0].Score))

	out, err = execute(t, "runs", "--artifacts", artifacts)
	require.NoError(t, err)
	assert.Contains(t, out, "cli-run")

	csvPath := filepath.Join(dir, "compare.csv")
	out, err = execute(t, "compare", "cli-run", "--artifacts", artifacts, "--out", csvPath)
	require.NoError(t, err)
	assert.Contains(t, out, "mean best at generation 1 over 1 runs")
	_, err = os.Stat(csvPath)
	require.NoError(t, err)

	exports := filepath.Join(dir, "exports")
	out, err = execute(t, "export", "cli-run", "--artifacts", artifacts, "--out", exports)
	require.NoError(t, err)
	assert.Contains(t, out, "exported cli-run")
	_, err = os.Stat(filepath.Join(exports, "cli-run", "champion.json"))
	require.NoError(t, err)

	_, err = execute(t, "export", "nope", "--artifacts", artifacts, "--out", exports)
	require.Error(t, err)
}

func TestEvolveRejectsBadProfile(t *testing.T) {
	_, err := execute(t, "evolve", "--profile", "hover", "--gens", "1")
	require.Error(t, err)
}

func TestConfigPrintsYAMLThatParses(t *testing.T) {
	out, err := execute(t, "config")
	require.NoError(t, err)
	cfg, err := config.Parse(strings.NewReader(out))
	require.NoError(t, err)
	assert.Equal(t, config.Default(), cfg)
}

func TestScoreBenchmarkIsRepeatable(t *testing.T) {
	path := writeTree(t, t.TempDir(), ast.Do(ast.Skip))
	first, err := execute(t, "score", path)
	require.NoError(t, err)
	second, err := execute(t, "score", path, "--seed", "99")
	require.NoError(t, err)
	assert.Equal(t, first, second)
	assert.Contains(t, first, "lander benchmark total=")
	assert.Contains(t, first, "depth")

	_, err = execute(t, "score", path, "--mode", "validation")
	require.Error(t, err)
}

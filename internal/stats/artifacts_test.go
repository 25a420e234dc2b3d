package stats

import (
	"math"
	"os"
	"path/filepath"
	"testing"

	"lunargp/internal/model"
)

func TestWriteAndExportRunArtifacts(t *testing.T) {
	baseDir := t.TempDir()
	outDir := filepath.Join(t.TempDir(), "exports")

	runID := "run-123"
	artifacts := RunArtifacts{
		Config: RunConfig{
			RunID:          runID,
			Kind:           "program",
			PopulationSize: 4,
			Generations:    3,
			Seed:           1,
			Workers:        2,
		},
		Generations: []model.GenerationRecord{
			{Generation: 0, Best: 10, Mean: 4, Worst: -2, MeanSize: 5, MeanDepth: 3},
			{Generation: 1, Best: 12, Mean: 6, Worst: 1, NaNCount: 1, MeanSize: 5.5, MeanDepth: 3},
			{Generation: 2, Best: 15.25, Mean: 7, Worst: 2, MeanSize: 6, MeanDepth: 3.5},
		},
		FinalBest: 15.25,
		Champion:  &model.ChampionRecord{RunID: runID, Generation: 2, Score: 15.25, Program: []byte(`{"op":"true"}`)},
	}

	runDir, err := WriteRunArtifacts(baseDir, artifacts)
	if err != nil {
		t.Fatalf("write artifacts: %v", err)
	}
	trace := model.NewTrace()
	trace.Add(model.State{Y: 100})
	if err := WriteChampion(runDir, 2, "thrust!()", trace); err != nil {
		t.Fatalf("write champion: %v", err)
	}

	files := []string{"config.json", "fitness_history.csv", "champion.json", "program_2.txt", "trace_2.json"}
	for _, file := range files {
		if _, err := os.Stat(filepath.Join(runDir, file)); err != nil {
			t.Fatalf("expected file %s: %v", file, err)
		}
	}

	history, ok, err := ReadFitnessHistory(baseDir, runID)
	if err != nil || !ok {
		t.Fatalf("read fitness history: ok=%v err=%v", ok, err)
	}
	if len(history) != 3 || history[2].Best != 15.25 || history[1].NaNCount != 1 {
		t.Fatalf("unexpected fitness history: %+v", history)
	}

	exportedDir, err := ExportRunArtifacts(baseDir, runID, outDir)
	if err != nil {
		t.Fatalf("export artifacts: %v", err)
	}
	for _, file := range files {
		if _, err := os.Stat(filepath.Join(exportedDir, file)); err != nil {
			t.Fatalf("expected exported file %s: %v", file, err)
		}
	}

	cfg, ok, err := ReadRunConfig(baseDir, runID)
	if err != nil || !ok {
		t.Fatalf("read run config: ok=%v err=%v", ok, err)
	}
	if cfg.PopulationSize != 4 || cfg.Kind != "program" {
		t.Fatalf("unexpected run config: %+v", cfg)
	}
}

func TestRunIndexOrdering(t *testing.T) {
	baseDir := t.TempDir()
	entries := []RunIndexEntry{
		{RunID: "a", CreatedAtUTC: "2026-01-01T00:00:00Z"},
		{RunID: "b", CreatedAtUTC: "2026-01-02T00:00:00Z"},
		{RunID: "a", CreatedAtUTC: "2026-01-01T00:00:00Z", FinalBest: 3},
	}
	for _, e := range entries {
		if err := AppendRunIndex(baseDir, e); err != nil {
			t.Fatalf("append run index: %v", err)
		}
	}
	index, err := ListRunIndex(baseDir)
	if err != nil {
		t.Fatalf("list run index: %v", err)
	}
	if len(index) != 2 || index[0].RunID != "b" || index[1].FinalBest != 3 {
		t.Fatalf("unexpected index: %+v", index)
	}
	if err := AppendRunIndex(baseDir, RunIndexEntry{}); err == nil {
		t.Fatal("expected error for empty run id")
	}
}

func TestWriteRunConfigRejectsMismatch(t *testing.T) {
	if err := WriteRunConfig(t.TempDir(), "run-1", RunConfig{RunID: "run-2"}); err == nil {
		t.Fatal("expected run id mismatch error")
	}
}

func TestSummarize(t *testing.T) {
	r := Summarize(4, []float64{1, math.NaN(), 5, -3}, []int{3, 5}, []int{2, 4})
	if r.Generation != 4 || r.Best != 5 || r.Worst != -3 || r.Mean != 1 || r.NaNCount != 1 {
		t.Fatalf("unexpected summary: %+v", r)
	}
	if r.MeanSize != 4 || r.MeanDepth != 3 {
		t.Fatalf("unexpected size summary: %+v", r)
	}

	allNaN := Summarize(0, []float64{math.NaN()}, nil, nil)
	if !math.IsNaN(float64(allNaN.Best)) || allNaN.NaNCount != 1 {
		t.Fatalf("unexpected all-NaN summary: %+v", allNaN)
	}
}

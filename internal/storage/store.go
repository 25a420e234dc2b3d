package storage

import (
	"context"
	"errors"

	"lunargp/internal/model"
)

var ErrNotFound = errors.New("record not found")

// Store persists runs, their per-generation summaries and their champions.
type Store interface {
	Init(ctx context.Context) error
	SaveRun(ctx context.Context, run model.RunRecord) error
	GetRun(ctx context.Context, id string) (model.RunRecord, bool, error)
	// ListRuns returns every run, oldest first.
	ListRuns(ctx context.Context) ([]model.RunRecord, error)
	AppendGeneration(ctx context.Context, runID string, record model.GenerationRecord) error
	GetGenerations(ctx context.Context, runID string) ([]model.GenerationRecord, bool, error)
	SaveChampion(ctx context.Context, champion model.ChampionRecord) error
	// GetChampions returns a run's champions ordered by generation.
	GetChampions(ctx context.Context, runID string) ([]model.ChampionRecord, bool, error)
}

// LatestChampion returns the most recent champion of a run.
func LatestChampion(ctx context.Context, store Store, runID string) (model.ChampionRecord, error) {
	champions, ok, err := store.GetChampions(ctx, runID)
	if err != nil {
		return model.ChampionRecord{}, err
	}
	if !ok || len(champions) == 0 {
		return model.ChampionRecord{}, ErrNotFound
	}
	return champions[len(champions)-1], nil
}

// LatestRun returns the run started last.
func LatestRun(ctx context.Context, store Store) (model.RunRecord, error) {
	runs, err := store.ListRuns(ctx)
	if err != nil {
		return model.RunRecord{}, err
	}
	if len(runs) == 0 {
		return model.RunRecord{}, ErrNotFound
	}
	return runs[len(runs)-1], nil
}

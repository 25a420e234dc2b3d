package storage

import (
	"context"
	"errors"
	"sort"
	"sync"

	"lunargp/internal/model"
)

type MemoryStore struct {
	mu          sync.RWMutex
	initialized bool
	runs        map[string]model.RunRecord
	generations map[string][]model.GenerationRecord
	champions   map[string][]model.ChampionRecord
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

// Init prepares the maps. Calling it again keeps what is stored.
func (s *MemoryStore) Init(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.initialized {
		return nil
	}
	s.initialized = true
	s.runs = make(map[string]model.RunRecord)
	s.generations = make(map[string][]model.GenerationRecord)
	s.champions = make(map[string][]model.ChampionRecord)
	return nil
}

func (s *MemoryStore) SaveRun(_ context.Context, run model.RunRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.initialized {
		return errNotInitialized
	}
	s.runs[run.ID] = run
	return nil
}

func (s *MemoryStore) GetRun(_ context.Context, id string) (model.RunRecord, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	run, ok := s.runs[id]
	return run, ok, nil
}

func (s *MemoryStore) ListRuns(_ context.Context) ([]model.RunRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	runs := make([]model.RunRecord, 0, len(s.runs))
	for _, run := range s.runs {
		runs = append(runs, run)
	}
	sort.Slice(runs, func(i, j int) bool {
		if runs[i].StartedAt.Equal(runs[j].StartedAt) {
			return runs[i].ID < runs[j].ID
		}
		return runs[i].StartedAt.Before(runs[j].StartedAt)
	})
	return runs, nil
}

func (s *MemoryStore) AppendGeneration(_ context.Context, runID string, record model.GenerationRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.initialized {
		return errNotInitialized
	}
	s.generations[runID] = append(s.generations[runID], record)
	return nil
}

func (s *MemoryStore) GetGenerations(_ context.Context, runID string) ([]model.GenerationRecord, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	records, ok := s.generations[runID]
	if !ok {
		return nil, false, nil
	}
	return append([]model.GenerationRecord(nil), records...), true, nil
}

func (s *MemoryStore) SaveChampion(_ context.Context, champion model.ChampionRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.initialized {
		return errNotInitialized
	}
	list := s.champions[champion.RunID]
	for i, existing := range list {
		if existing.Generation == champion.Generation {
			list[i] = champion
			return nil
		}
	}
	list = append(list, champion)
	sort.SliceStable(list, func(i, j int) bool { return list[i].Generation < list[j].Generation })
	s.champions[champion.RunID] = list
	return nil
}

func (s *MemoryStore) GetChampions(_ context.Context, runID string) ([]model.ChampionRecord, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	champions, ok := s.champions[runID]
	if !ok {
		return nil, false, nil
	}
	return append([]model.ChampionRecord(nil), champions...), true, nil
}

var errNotInitialized = errors.New("store is not initialized")

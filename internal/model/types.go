package model

import (
	"encoding/json"
	"time"

	"lunargp/internal/num"
)

// Float is a float64 whose JSON form keeps NaN and infinities.
type Float = num.Float

// VersionedRecord captures schema and codec evolution for persistent data.
type VersionedRecord struct {
	SchemaVersion int `json:"schema_version"`
	CodecVersion  int `json:"codec_version"`
}

// RunRecord describes one evolutionary run.
type RunRecord struct {
	VersionedRecord
	ID             string    `json:"id"`
	StartedAt      time.Time `json:"started_at"`
	Kind           string    `json:"kind"`
	Profile        string    `json:"profile"`
	PopulationSize int       `json:"population_size"`
	TournamentSize int       `json:"tournament_size"`
	Seed           int64     `json:"seed"`
	Generations    int       `json:"generations"`
	BestScore      Float     `json:"best_score"`
	BestGeneration int       `json:"best_generation"`
}

// GenerationRecord summarizes the scores of one scored generation. Best,
// Mean and Worst only cover numeric totals; NaNCount counts the rest.
type GenerationRecord struct {
	Generation int   `json:"generation"`
	Best       Float `json:"best"`
	Mean       Float `json:"mean"`
	Worst      Float `json:"worst"`
	NaNCount   int   `json:"nan_count"`
	MeanSize   Float `json:"mean_size"`
	MeanDepth  Float `json:"mean_depth"`
}

// ScoreComponent is one labeled part of a fitness score.
type ScoreComponent struct {
	Label string  `json:"label"`
	Value float64 `json:"value"`
}

func (c ScoreComponent) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Label string `json:"label"`
		Value Float  `json:"value"`
	}{c.Label, Float(c.Value)})
}

func (c *ScoreComponent) UnmarshalJSON(data []byte) error {
	var wire struct {
		Label string `json:"label"`
		Value Float  `json:"value"`
	}
	if err := json.Unmarshal(data, &wire); err != nil {
		return err
	}
	c.Label, c.Value = wire.Label, float64(wire.Value)
	return nil
}

// ChampionRecord is a best-so-far tree as accepted by the optimum keeper.
// Program holds the tree in its JSON encoding. Benchmark is the score over
// the fixed benchmark starts.
type ChampionRecord struct {
	VersionedRecord
	RunID      string           `json:"run_id"`
	Generation int              `json:"generation"`
	Score      Float            `json:"score"`
	Benchmark  Float            `json:"benchmark"`
	Components []ScoreComponent `json:"components"`
	Program    json.RawMessage  `json:"program"`
	Source     string           `json:"source"`
}

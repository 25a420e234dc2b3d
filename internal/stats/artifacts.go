package stats

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"lunargp/internal/model"
)

const (
	runIndexFile       = "run_index.json"
	fitnessHistoryFile = "fitness_history.csv"
)

type RunConfig struct {
	RunID          string  `json:"run_id"`
	Kind           string  `json:"kind"`
	Profile        string  `json:"profile"`
	PopulationSize int     `json:"population_size"`
	TournamentSize int     `json:"tournament_size"`
	Distinct       bool    `json:"distinct_tournament"`
	Generations    int     `json:"generations"`
	Seed           int64   `json:"seed"`
	Workers        int     `json:"workers"`
	Trials         int     `json:"trials"`
	MaxDepth       int     `json:"max_depth"`
	Reproduce      int     `json:"reproduce_weight"`
	Mutate         int     `json:"mutate_weight"`
	Crossover      int     `json:"crossover_weight"`
	DepthPenalty   float64 `json:"depth_penalty"`
}

type RunArtifacts struct {
	Config      RunConfig                `json:"config"`
	Generations []model.GenerationRecord `json:"generations"`
	FinalBest   model.Float              `json:"final_best"`
	Champion    *model.ChampionRecord    `json:"champion,omitempty"`
}

type RunIndexEntry struct {
	RunID          string      `json:"run_id"`
	Kind           string      `json:"kind"`
	PopulationSize int         `json:"population_size"`
	Generations    int         `json:"generations"`
	Seed           int64       `json:"seed"`
	Workers        int         `json:"workers"`
	FinalBest      model.Float `json:"final_best"`
	CreatedAtUTC   string      `json:"created_at_utc"`
}

func WriteRunArtifacts(baseDir string, artifacts RunArtifacts) (string, error) {
	if artifacts.Config.RunID == "" {
		return "", fmt.Errorf("run id is required")
	}

	if err := WriteRunConfig(baseDir, artifacts.Config.RunID, artifacts.Config); err != nil {
		return "", err
	}
	runDir := filepath.Join(baseDir, artifacts.Config.RunID)
	if err := WriteFitnessHistory(runDir, artifacts.Generations); err != nil {
		return "", err
	}
	if artifacts.Champion != nil {
		if err := writeJSON(filepath.Join(runDir, "champion.json"), artifacts.Champion); err != nil {
			return "", err
		}
	}
	return runDir, nil
}

// WriteChampion saves a champion's source as program_<generation>.txt and,
// when trace is not nil, its replayed flight as trace_<generation>.json.
func WriteChampion(runDir string, generation int, source string, trace *model.Trace) error {
	if err := os.MkdirAll(runDir, 0o755); err != nil {
		return err
	}
	program := filepath.Join(runDir, fmt.Sprintf("program_%d.txt", generation))
	if err := os.WriteFile(program, []byte(source+"\n"), 0o644); err != nil {
		return err
	}
	if trace == nil {
		return nil
	}
	return trace.Save(filepath.Join(runDir, fmt.Sprintf("trace_%d.json", generation)))
}

func WriteFitnessHistory(runDir string, records []model.GenerationRecord) error {
	file, err := os.Create(filepath.Join(runDir, fitnessHistoryFile))
	if err != nil {
		return err
	}
	defer file.Close()

	writer := csv.NewWriter(file)
	if err := writer.Write([]string{"generation", "best", "mean", "worst", "nan_count", "mean_size", "mean_depth"}); err != nil {
		return err
	}
	for _, r := range records {
		if err := writer.Write([]string{
			strconv.Itoa(r.Generation),
			formatFloat(r.Best),
			formatFloat(r.Mean),
			formatFloat(r.Worst),
			strconv.Itoa(r.NaNCount),
			formatFloat(r.MeanSize),
			formatFloat(r.MeanDepth),
		}); err != nil {
			return err
		}
	}
	writer.Flush()
	return writer.Error()
}

func ReadFitnessHistory(baseDir, runID string) ([]model.GenerationRecord, bool, error) {
	file, err := os.Open(filepath.Join(baseDir, runID, fitnessHistoryFile))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, false, nil
		}
		return nil, false, err
	}
	defer file.Close()

	reader := csv.NewReader(file)
	if _, err := reader.Read(); err != nil {
		if err == io.EOF {
			return []model.GenerationRecord{}, true, nil
		}
		return nil, false, err
	}

	var records []model.GenerationRecord
	for {
		row, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, false, err
		}
		if len(row) != 7 {
			return nil, false, fmt.Errorf("fitness history row must have 7 columns, got %d", len(row))
		}
		var r model.GenerationRecord
		if r.Generation, err = strconv.Atoi(row[0]); err != nil {
			return nil, false, err
		}
		if r.NaNCount, err = strconv.Atoi(row[4]); err != nil {
			return nil, false, err
		}
		floats := []*model.Float{&r.Best, &r.Mean, &r.Worst, nil, &r.MeanSize, &r.MeanDepth}
		for i, dst := range floats {
			if dst == nil {
				continue
			}
			v, err := strconv.ParseFloat(row[i+1], 64)
			if err != nil {
				return nil, false, err
			}
			*dst = model.Float(v)
		}
		records = append(records, r)
	}
	return records, true, nil
}

func formatFloat(f model.Float) string {
	return strconv.FormatFloat(float64(f), 'f', -1, 64)
}

func AppendRunIndex(baseDir string, entry RunIndexEntry) error {
	if entry.RunID == "" {
		return fmt.Errorf("run id is required")
	}
	if err := os.MkdirAll(baseDir, 0o755); err != nil {
		return err
	}

	index, err := ListRunIndex(baseDir)
	if err != nil {
		return err
	}

	for i := range index {
		if index[i].RunID == entry.RunID {
			index[i] = entry
			return writeJSON(filepath.Join(baseDir, runIndexFile), index)
		}
	}

	index = append(index, entry)
	return writeJSON(filepath.Join(baseDir, runIndexFile), index)
}

// ListRunIndex returns the indexed runs, newest first.
func ListRunIndex(baseDir string) ([]RunIndexEntry, error) {
	data, err := os.ReadFile(filepath.Join(baseDir, runIndexFile))
	if err != nil {
		if os.IsNotExist(err) {
			return []RunIndexEntry{}, nil
		}
		return nil, err
	}

	var entries []RunIndexEntry
	if err := json.Unmarshal(data, &entries); err != nil {
		return nil, err
	}

	type indexedEntry struct {
		entry RunIndexEntry
		idx   int
	}
	indexed := make([]indexedEntry, len(entries))
	for i := range entries {
		indexed[i] = indexedEntry{entry: entries[i], idx: i}
	}
	sort.Slice(indexed, func(i, j int) bool {
		if indexed[i].entry.CreatedAtUTC == indexed[j].entry.CreatedAtUTC {
			// Prefer later appended entries for equal timestamps.
			return indexed[i].idx > indexed[j].idx
		}
		return indexed[i].entry.CreatedAtUTC > indexed[j].entry.CreatedAtUTC
	})

	sorted := make([]RunIndexEntry, 0, len(indexed))
	for _, item := range indexed {
		sorted = append(sorted, item.entry)
	}
	return sorted, nil
}

// ExportRunArtifacts copies every file of a run directory to outDir/runID.
func ExportRunArtifacts(baseDir, runID, outDir string) (string, error) {
	if runID == "" {
		return "", fmt.Errorf("run id is required")
	}

	src := filepath.Join(baseDir, runID)
	entries, err := os.ReadDir(src)
	if err != nil {
		return "", err
	}

	dst := filepath.Join(outDir, runID)
	if err := os.MkdirAll(dst, 0o755); err != nil {
		return "", err
	}
	for _, entry := range entries {
		if !entry.Type().IsRegular() {
			continue
		}
		if err := copyFile(filepath.Join(src, entry.Name()), filepath.Join(dst, entry.Name())); err != nil {
			return "", err
		}
	}
	return dst, nil
}

func ReadRunConfig(baseDir, runID string) (RunConfig, bool, error) {
	data, err := os.ReadFile(filepath.Join(baseDir, runID, "config.json"))
	if err != nil {
		if os.IsNotExist(err) {
			return RunConfig{}, false, nil
		}
		return RunConfig{}, false, err
	}

	var cfg RunConfig
	if err := json.Unmarshal(data, &cfg); err != nil {
		return RunConfig{}, false, err
	}
	return cfg, true, nil
}

func WriteRunConfig(baseDir, runID string, cfg RunConfig) error {
	if strings.TrimSpace(runID) == "" {
		return fmt.Errorf("run id is required")
	}
	if strings.TrimSpace(cfg.RunID) == "" {
		cfg.RunID = strings.TrimSpace(runID)
	}
	if cfg.RunID != strings.TrimSpace(runID) {
		return fmt.Errorf("run config run id mismatch: got=%s want=%s", cfg.RunID, strings.TrimSpace(runID))
	}
	runDir := filepath.Join(baseDir, runID)
	if err := os.MkdirAll(runDir, 0o755); err != nil {
		return err
	}
	return writeJSON(filepath.Join(runDir, "config.json"), cfg)
}

func writeJSON(path string, value any) error {
	data, err := json.MarshalIndent(value, "", "  ")
	if err != nil {
		return err
	}
	data = append(data, '\n')
	return os.WriteFile(path, data, 0o644)
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	defer out.Close()

	if _, err := io.Copy(out, in); err != nil {
		return err
	}
	return out.Sync()
}

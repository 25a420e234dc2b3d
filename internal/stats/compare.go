package stats

import (
	"encoding/csv"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strconv"

	"lunargp/internal/model"
)

type PlotPoint struct {
	Generation int         `json:"generation"`
	Value      model.Float `json:"value"`
	// Runs counts the series that had a numeric value at Generation.
	Runs int `json:"runs"`
}

// Comparison lines up the fitness histories of several runs, typically
// repeats of one config under different seeds.
type Comparison struct {
	RunIDs    []string      `json:"run_ids"`
	MeanBest  []PlotPoint   `json:"mean_best"`
	MeanMean  []PlotPoint   `json:"mean_mean"`
	FinalBest []model.Float `json:"final_best"`
}

// AveragePlot averages the series index by index. Shorter series drop out
// once exhausted and NaN values are skipped; an index where no series has a
// number gets NaN.
func AveragePlot(series [][]float64) []PlotPoint {
	longest := 0
	for _, s := range series {
		longest = max(longest, len(s))
	}
	points := make([]PlotPoint, 0, longest)
	for g := 0; g < longest; g++ {
		sum, n := 0.0, 0
		for _, s := range series {
			if g >= len(s) || math.IsNaN(s[g]) {
				continue
			}
			sum += s[g]
			n++
		}
		value := math.NaN()
		if n > 0 {
			value = sum / float64(n)
		}
		points = append(points, PlotPoint{Generation: g, Value: model.Float(value), Runs: n})
	}
	return points
}

// MaxOf returns the largest numeric value of each series, NaN for series
// without one.
func MaxOf(series [][]float64) []model.Float {
	out := make([]model.Float, len(series))
	for i, s := range series {
		best := math.NaN()
		for _, v := range s {
			if math.IsNaN(v) {
				continue
			}
			if math.IsNaN(best) || v > best {
				best = v
			}
		}
		out[i] = model.Float(best)
	}
	return out
}

// CompareRuns reads the fitness history of every run under baseDir.
func CompareRuns(baseDir string, runIDs []string) (Comparison, error) {
	if len(runIDs) == 0 {
		return Comparison{}, fmt.Errorf("at least one run id is required")
	}
	best := make([][]float64, 0, len(runIDs))
	mean := make([][]float64, 0, len(runIDs))
	for _, id := range runIDs {
		records, ok, err := ReadFitnessHistory(baseDir, id)
		if err != nil {
			return Comparison{}, fmt.Errorf("run %s: %w", id, err)
		}
		if !ok {
			return Comparison{}, fmt.Errorf("run %s: fitness history not found", id)
		}
		b := make([]float64, len(records))
		m := make([]float64, len(records))
		for i, r := range records {
			b[i], m[i] = float64(r.Best), float64(r.Mean)
		}
		best = append(best, b)
		mean = append(mean, m)
	}
	return Comparison{
		RunIDs:    append([]string(nil), runIDs...),
		MeanBest:  AveragePlot(best),
		MeanMean:  AveragePlot(mean),
		FinalBest: MaxOf(best),
	}, nil
}

// WriteComparison saves the averaged curves as CSV.
func WriteComparison(path string, c Comparison) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	file, err := os.Create(path)
	if err != nil {
		return err
	}
	defer file.Close()

	writer := csv.NewWriter(file)
	if err := writer.Write([]string{"generation", "mean_best", "mean_mean", "runs"}); err != nil {
		return err
	}
	for i, p := range c.MeanBest {
		meanMean := model.Float(math.NaN())
		if i < len(c.MeanMean) {
			meanMean = c.MeanMean[i].Value
		}
		if err := writer.Write([]string{
			strconv.Itoa(p.Generation),
			formatFloat(p.Value),
			formatFloat(meanMean),
			strconv.Itoa(p.Runs),
		}); err != nil {
			return err
		}
	}
	writer.Flush()
	return writer.Error()
}

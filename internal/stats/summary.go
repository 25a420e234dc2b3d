package stats

import (
	"math"

	"lunargp/internal/model"
)

// Summarize condenses one scored generation. NaN totals are counted and
// left out of best, mean and worst; when every total is NaN those are NaN.
func Summarize(generation int, totals []float64, sizes, depths []int) model.GenerationRecord {
	r := model.GenerationRecord{Generation: generation}
	best, worst := math.Inf(-1), math.Inf(1)
	sum, numeric := 0.0, 0
	for _, v := range totals {
		if math.IsNaN(v) {
			r.NaNCount++
			continue
		}
		best = math.Max(best, v)
		worst = math.Min(worst, v)
		sum += v
		numeric++
	}
	if numeric == 0 {
		nan := model.Float(math.NaN())
		r.Best, r.Mean, r.Worst = nan, nan, nan
	} else {
		r.Best, r.Worst = model.Float(best), model.Float(worst)
		r.Mean = model.Float(sum / float64(numeric))
	}
	r.MeanSize = model.Float(meanInt(sizes))
	r.MeanDepth = model.Float(meanInt(depths))
	return r
}

func meanInt(values []int) float64 {
	if len(values) == 0 {
		return 0
	}
	total := 0
	for _, v := range values {
		total += v
	}
	return float64(total) / float64(len(values))
}

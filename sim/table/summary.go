package table

import (
	"fmt"
	"io"
	"math"
	"sort"

	"gonum.org/v1/gonum/stat"
	"gopkg.in/yaml.v3"
)

// TimePointSummary aggregates one capture column across individuals at one time.
type TimePointSummary struct {
	Time   float64 `yaml:"time"`
	N      int     `yaml:"n"`
	Mean   float64 `yaml:"mean"`
	P05    float64 `yaml:"p05"`
	Median float64 `yaml:"p50"`
	P95    float64 `yaml:"p95"`
}

// Summary aggregates a Table per capture column and time point.
type Summary struct {
	Individuals int                           `yaml:"individuals"`
	Rows        int                           `yaml:"rows"`
	Columns     map[string][]TimePointSummary `yaml:"columns"`
}

// Summarize computes per-time statistics for every capture column.
// Safe for nil or empty tables (returns zero-value fields).
// NaN values are excluded from the statistics; N counts the values used.
func Summarize(t *Table) *Summary {
	summary := &Summary{Columns: make(map[string][]TimePointSummary)}
	if t == nil || len(t.Rows) == 0 {
		return summary
	}
	summary.Rows = len(t.Rows)

	ids := make(map[int]struct{})
	byTime := make(map[float64][]int) // time → row indices
	for i, r := range t.Rows {
		ids[r.ID] = struct{}{}
		byTime[r.Time] = append(byTime[r.Time], i)
	}
	summary.Individuals = len(ids)

	times := make([]float64, 0, len(byTime))
	for tm := range byTime {
		times = append(times, tm)
	}
	sort.Float64s(times)

	for c, name := range t.Columns {
		points := make([]TimePointSummary, 0, len(times))
		for _, tm := range times {
			vals := make([]float64, 0, len(byTime[tm]))
			for _, idx := range byTime[tm] {
				if v := t.Rows[idx].Values[c]; !math.IsNaN(v) {
					vals = append(vals, v)
				}
			}
			points = append(points, summarizeValues(tm, vals))
		}
		summary.Columns[name] = points
	}
	return summary
}

func summarizeValues(tm float64, vals []float64) TimePointSummary {
	p := TimePointSummary{Time: tm, N: len(vals)}
	if len(vals) == 0 {
		p.Mean, p.P05, p.Median, p.P95 = math.NaN(), math.NaN(), math.NaN(), math.NaN()
		return p
	}
	sort.Float64s(vals)
	p.Mean = stat.Mean(vals, nil)
	p.P05 = stat.Quantile(0.05, stat.Empirical, vals, nil)
	p.Median = stat.Quantile(0.5, stat.Empirical, vals, nil)
	p.P95 = stat.Quantile(0.95, stat.Empirical, vals, nil)
	return p
}

// WriteYAML encodes the summary. Non-finite statistics are written as .inf / .nan.
func (s *Summary) WriteYAML(w io.Writer) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(s); err != nil {
		return fmt.Errorf("encoding summary: %w", err)
	}
	return enc.Close()
}

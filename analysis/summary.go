package analysis

import (
	"math"
	"sort"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"

	"github.com/OpenLEDEval/OLE-Toolset/measurement"
)

// MetricSummary aggregates the valid values of one metric
type MetricSummary struct {
	Metric Metric  `json:"metric" yaml:"metric"`
	Count  int     `json:"count" yaml:"count"`
	Mean   float64 `json:"mean" yaml:"mean"`
	Median float64 `json:"median" yaml:"median"`
	P95    float64 `json:"p95" yaml:"p95"`
	Max    float64 `json:"max" yaml:"max"`
}

// Summary is the aggregate view of an analysis
type Summary struct {
	Samples  int             `json:"samples" yaml:"samples"`
	Excluded int             `json:"excluded" yaml:"excluded"`
	Metrics  []MetricSummary `json:"metrics" yaml:"metrics"`
	// ByTag holds the mean of every metric per sample tag
	ByTag map[measurement.Tag]map[Metric]float64 `json:"by_tag" yaml:"by_tag"`
}

// Metric returns the summary of m
func (s Summary) Metric(m Metric) (MetricSummary, bool) {
	for _, ms := range s.Metrics {
		if ms.Metric == m {
			return ms, true
		}
	}
	return MetricSummary{}, false
}

// Summary aggregates every metric over the valid samples
func (c *ColourPrecisionAnalysis) Summary() Summary {
	s := Summary{
		Samples:  c.errors.Len(),
		Excluded: len(c.errors.excluded),
		ByTag:    make(map[measurement.Tag]map[Metric]float64),
	}
	for _, m := range Metrics {
		ms := summarize(c.errors.Valid(m))
		ms.Metric = m
		s.Metrics = append(s.Metrics, ms)
	}

	byTag := make(map[measurement.Tag]map[Metric][]float64)
	for _, r := range c.samples {
		if r.Excluded {
			continue
		}
		if byTag[r.Tag] == nil {
			byTag[r.Tag] = make(map[Metric][]float64, len(Metrics))
		}
		for _, m := range Metrics {
			byTag[r.Tag][m] = append(byTag[r.Tag][m], r.Errors[m])
		}
	}
	for tag, series := range byTag {
		s.ByTag[tag] = make(map[Metric]float64, len(series))
		for m, v := range series {
			s.ByTag[tag][m] = stat.Mean(v, nil)
		}
	}
	return s
}

func summarize(values []float64) MetricSummary {
	if len(values) == 0 {
		nan := math.NaN()
		return MetricSummary{Mean: nan, Median: nan, P95: nan, Max: nan}
	}
	sorted := append([]float64(nil), values...)
	sort.Float64s(sorted)
	return MetricSummary{
		Count:  len(values),
		Mean:   stat.Mean(values, nil),
		Median: stat.Quantile(0.5, stat.LinInterp, sorted, nil),
		P95:    stat.Quantile(0.95, stat.LinInterp, sorted, nil),
		Max:    floats.Max(values),
	}
}

package analysis

import (
	"math"

	"gonum.org/v1/gonum/stat"

	"github.com/OpenLEDEval/OLE-Toolset/apperr"
	"github.com/OpenLEDEval/OLE-Toolset/colorspace"
	"github.com/OpenLEDEval/OLE-Toolset/matrix"
	"github.com/OpenLEDEval/OLE-Toolset/measurement"
)

// Metric names one error series
type Metric string

const (
	// MetricXYZ is the Euclidean XYZ distance in cd/m²
	MetricXYZ Metric = "XYZ"
	// MetricICtCp is ΔE_ITP (ITU-R BT.2124)
	MetricICtCp Metric = "ICtCp"
	// MetricDI is the intensity part of ΔE_ITP
	MetricDI Metric = "dI"
	// MetricDChromatic is the chroma part of ΔE_ITP
	MetricDChromatic Metric = "dChromatic"
	// MetricDE2000 is CIEDE2000 against the display white
	MetricDE2000 Metric = "dE2000"
)

// Metrics is the fixed metric set in report order
var Metrics = []Metric{MetricXYZ, MetricICtCp, MetricDI, MetricDChromatic, MetricDE2000}

// ErrorResult holds one series per metric, aligned to the measurement set.
// Excluded samples hold NaN in every series.
type ErrorResult struct {
	series   map[Metric][]float64
	excluded []int
}

func newErrorResult(n int) *ErrorResult {
	e := &ErrorResult{series: make(map[Metric][]float64, len(Metrics))}
	for _, m := range Metrics {
		e.series[m] = make([]float64, n)
	}
	return e
}

// Len returns the number of samples, excluded ones included
func (e *ErrorResult) Len() int {
	return len(e.series[MetricXYZ])
}

// Series returns a copy of the aligned series of m
func (e *ErrorResult) Series(m Metric) []float64 {
	return append([]float64(nil), e.series[m]...)
}

// Valid returns the values of m for the samples that were not excluded
func (e *ErrorResult) Valid(m Metric) []float64 {
	s := e.series[m]
	out := make([]float64, 0, len(s)-len(e.excluded))
	for _, v := range s {
		if !math.IsNaN(v) {
			out = append(out, v)
		}
	}
	return out
}

// Mean returns the mean of the valid values of m, NaN when none are valid
func (e *ErrorResult) Mean(m Metric) float64 {
	v := e.Valid(m)
	if len(v) == 0 {
		return math.NaN()
	}
	return stat.Mean(v, nil)
}

// Excluded returns the indices of the excluded samples
func (e *ErrorResult) Excluded() []int {
	return append([]int(nil), e.excluded...)
}

// Map returns a copy of every aligned series keyed by metric
func (e *ErrorResult) Map() map[Metric][]float64 {
	out := make(map[Metric][]float64, len(e.series))
	for m := range e.series {
		out[m] = e.Series(m)
	}
	return out
}

// SampleResult is the per-sample detail behind the error series
type SampleResult struct {
	Index    int             `json:"index" yaml:"index"`
	Tag      measurement.Tag `json:"tag" yaml:"tag"`
	Code     matrix.Vector3  `json:"code" yaml:"code"`
	Measured matrix.Vector3  `json:"measured" yaml:"measured"`
	Target   matrix.Vector3  `json:"target" yaml:"target"`
	// XYZ error relative to the peak white luminance
	RelativeXYZ float64 `json:"relative_xyz" yaml:"relative_xyz"`
	// Signal error of neutral samples: EOTF⁻¹ of the measured luminance minus the code
	SignalError float64            `json:"signal_error,omitempty" yaml:"signal_error,omitempty"`
	Errors      map[Metric]float64 `json:"errors,omitempty" yaml:"errors,omitempty"`
	Excluded    bool               `json:"excluded,omitempty" yaml:"excluded,omitempty"`
	Reason      string             `json:"reason,omitempty" yaml:"reason,omitempty"`
}

// engine evaluates samples against the targets of one primary matrix
type engine struct {
	npm         matrix.Matrix3x3
	eotf        func(float64) float64
	eotfInverse func(float64) float64
	maxCode     float64
	// display white for CIELAB, absolute
	labWhite matrix.Vector3
	peakY    float64
}

// target returns NPM · EOTF(code / maxCode)
func (e *engine) target(code matrix.Vector3) matrix.Vector3 {
	return colorspace.CodeToXYZ(code.Scale(1/e.maxCode), e.eotf, e.npm)
}

// evaluate computes every metric of one sample
func (e *engine) evaluate(s measurement.Sample) SampleResult {
	r := SampleResult{
		Index:    s.Index,
		Tag:      s.Tag,
		Code:     s.Code,
		Measured: s.XYZ,
		Target:   e.target(s.Code),
	}

	if !s.XYZ.IsFinite() {
		return r.exclude("measured value is not finite")
	}

	m, t := s.XYZ, r.Target
	mICtCp, tICtCp := colorspace.XYZToICtCp(m), colorspace.XYZToICtCp(t)
	mLab, tLab := colorspace.XYZToLab(m, e.labWhite), colorspace.XYZToLab(t, e.labWhite)

	r.Errors = map[Metric]float64{
		MetricXYZ:        m.Sub(t).Norm(),
		MetricICtCp:      colorspace.DeltaEITP(mICtCp, tICtCp),
		MetricDI:         colorspace.DeltaI(mICtCp, tICtCp),
		MetricDChromatic: colorspace.DeltaChromatic(mICtCp, tICtCp),
		MetricDE2000:     colorspace.DeltaE2000(mLab, tLab),
	}
	for _, metric := range Metrics {
		if v := r.Errors[metric]; math.IsNaN(v) || math.IsInf(v, 0) || v < 0 {
			return r.exclude("metric " + string(metric) + " is not finite")
		}
	}

	r.RelativeXYZ = r.Errors[MetricXYZ] / e.peakY
	if isNeutral(s.Tag) && e.eotfInverse != nil {
		whiteY := e.npm.Apply(matrix.Vector3{1, 1, 1})[1]
		if sig := e.eotfInverse(m[1] / whiteY); !math.IsNaN(sig) {
			r.SignalError = sig - s.Code[1]/e.maxCode
		}
	}
	return r
}

func (r SampleResult) exclude(reason string) SampleResult {
	r.Excluded = true
	r.Reason = reason
	r.Errors = nil
	return r
}

// Warning returns the exclusion as an InvalidSampleWarning
func (r SampleResult) Warning() apperr.InvalidSampleWarning {
	return apperr.InvalidSampleWarning{Index: r.Index, Reason: r.Reason}
}

func isNeutral(tag measurement.Tag) bool {
	return tag == measurement.TagWhite || tag == measurement.TagGray || tag == measurement.TagBlack
}

// Package analysis runs the colour precision analysis of a measurement set:
// it resolves the display's primary matrix, computes the target of every
// sample and measures how far each reading lands from it.
package analysis

import (
	"fmt"
	"math"

	"golang.org/x/sync/errgroup"

	"github.com/OpenLEDEval/OLE-Toolset/apperr"
	"github.com/OpenLEDEval/OLE-Toolset/colorspace"
	"github.com/OpenLEDEval/OLE-Toolset/estimator"
	"github.com/OpenLEDEval/OLE-Toolset/matrix"
	"github.com/OpenLEDEval/OLE-Toolset/measurement"
)

// WhiteSummary describes the white and black groups of a set
type WhiteSummary struct {
	// Peak is the white reading with the highest valid luminance
	Peak matrix.Vector3 `json:"peak" yaml:"peak"`
	// Mean is the mean white reading at the robust white chromaticity
	Mean         matrix.Vector3          `json:"mean" yaml:"mean"`
	Chromaticity colorspace.Chromaticity `json:"chromaticity" yaml:"chromaticity"`
	Count        int                     `json:"count" yaml:"count"`
	// BlackLevel is the mean luminance of the black group, NaN without blacks
	BlackLevel float64 `json:"black_level" yaml:"black_level"`
	// ContrastRatio is peak over black luminance, +Inf for a zero black
	ContrastRatio float64 `json:"contrast_ratio" yaml:"contrast_ratio"`
}

// PeakLuminance returns the Y of the peak white reading
func (w WhiteSummary) PeakLuminance() float64 { return w.Peak[1] }

// ColourPrecisionAnalysis is the immutable result of one analysis run
type ColourPrecisionAnalysis struct {
	shortName string
	metadata  measurement.Metadata
	transfer  string

	npm      matrix.Matrix3x3
	estimate *estimator.Estimate

	samples  []SampleResult
	errors   *ErrorResult
	white    WhiteSummary
	tags     map[measurement.Tag]int
	warnings []apperr.InvalidSampleWarning
}

// New analyses set with cfg. Shape errors, too few samples in a primary
// group and degenerate primaries fail the run; unusable single readings
// are excluded and reported as warnings.
func New(set *measurement.Set, cfg Config) (*ColourPrecisionAnalysis, error) {
	if set == nil {
		return nil, apperr.Domainf("no measurement set")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	log := cfg.Logger

	log.Step("samples", set.Name())
	samples, err := set.Samples()
	if err != nil {
		log.Done("failed")
		return nil, err
	}
	log.Done(fmt.Sprintf("%d samples", len(samples)))

	cpa := &ColourPrecisionAnalysis{
		shortName: set.Name(),
		metadata:  cloneMetadata(set.Metadata),
		transfer:  cfg.Transfer,
		white:     summarizeWhite(samples),
		tags:      measurement.CountTags(samples),
	}

	if cfg.PrimaryMatrix != nil {
		cpa.npm = *cfg.PrimaryMatrix
		log.Info("primary matrix supplied by configuration")
	} else {
		log.Step("primaries", "robust fit")
		est, err := estimator.EstimatePrimaryMatrix(estimator.Groups{
			Red:   measurement.Group(samples, measurement.TagRed),
			Green: measurement.Group(samples, measurement.TagGreen),
			Blue:  measurement.Group(samples, measurement.TagBlue),
			White: measurement.Group(samples, measurement.TagWhite),
		}, cfg.estimatorOptions())
		if err != nil {
			log.Done("failed")
			return nil, err
		}
		cpa.npm = est.Matrix
		cpa.estimate = est
		cpa.white.Chromaticity = est.White
		if cpa.white.Count > 0 {
			cpa.white.Mean = colorspace.XYToXYZ(est.White, cpa.white.Mean[1])
		}
		log.Done(fmt.Sprintf("white (%.4f, %.4f)", est.White.X, est.White.Y))
	}

	unitWhite := cpa.npm.Apply(matrix.Vector3{1, 1, 1})
	peakY := cpa.white.PeakLuminance()
	if !(peakY > 0) {
		peakY = unitWhite[1] * cfg.EOTF(1)
	}
	eng := &engine{
		npm:         cpa.npm,
		eotf:        cfg.EOTF,
		eotfInverse: cfg.EOTFInverse,
		maxCode:     set.MaxCode(),
		labWhite:    unitWhite.Scale(peakY / unitWhite[1]),
		peakY:       peakY,
	}

	log.Step("metrics", fmt.Sprintf("%d workers", max(cfg.Workers, 1)))
	cpa.samples, err = eng.run(samples, cfg.Workers)
	if err != nil {
		log.Done("failed")
		return nil, err
	}
	cpa.errors = collect(cpa.samples)
	log.Done(fmt.Sprintf("%d valid, %d excluded", len(samples)-len(cpa.errors.excluded), len(cpa.errors.excluded)))

	for _, r := range cpa.samples {
		if r.Excluded {
			w := r.Warning()
			cpa.warnings = append(cpa.warnings, w)
			log.Warn("%s", w.Error())
		}
	}
	return cpa, nil
}

// run evaluates every sample, fanning out over workers goroutines.
// Each goroutine writes only its own index range.
func (e *engine) run(samples []measurement.Sample, workers int) ([]SampleResult, error) {
	results := make([]SampleResult, len(samples))
	if workers <= 1 || len(samples) < 2*workers {
		for i, s := range samples {
			results[i] = e.evaluate(s)
		}
		return results, nil
	}

	var g errgroup.Group
	chunk := (len(samples) + workers - 1) / workers
	for lo := 0; lo < len(samples); lo += chunk {
		hi := min(lo+chunk, len(samples))
		g.Go(func() error {
			for i := lo; i < hi; i++ {
				results[i] = e.evaluate(samples[i])
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}

func collect(results []SampleResult) *ErrorResult {
	e := newErrorResult(len(results))
	for i, r := range results {
		if r.Excluded {
			e.excluded = append(e.excluded, i)
			for _, m := range Metrics {
				e.series[m][i] = math.NaN()
			}
			continue
		}
		for _, m := range Metrics {
			e.series[m][i] = r.Errors[m]
		}
	}
	return e
}

func summarizeWhite(samples []measurement.Sample) WhiteSummary {
	w := WhiteSummary{BlackLevel: math.NaN(), ContrastRatio: math.NaN()}

	var sum matrix.Vector3
	for _, s := range samples {
		if s.Tag != measurement.TagWhite || !s.XYZ.IsFinite() || !(s.XYZ[1] > 0) {
			continue
		}
		if w.Count == 0 || s.XYZ[1] > w.Peak[1] {
			w.Peak = s.XYZ
		}
		sum = sum.Add(s.XYZ)
		w.Count++
	}
	if w.Count > 0 {
		w.Mean = sum.Scale(1 / float64(w.Count))
		w.Chromaticity = colorspace.XYZToXY(w.Mean)
	}

	var blackY float64
	blacks := 0
	for _, s := range samples {
		if s.Tag == measurement.TagBlack && s.XYZ.IsFinite() {
			blackY += s.XYZ[1]
			blacks++
		}
	}
	if blacks > 0 {
		w.BlackLevel = blackY / float64(blacks)
		if w.Count > 0 {
			if w.BlackLevel > 0 {
				w.ContrastRatio = w.Peak[1] / w.BlackLevel
			} else {
				w.ContrastRatio = math.Inf(1)
			}
		}
	}
	return w
}

// Error returns the per-metric error series
func (c *ColourPrecisionAnalysis) Error() *ErrorResult { return c.errors }

// White returns the white point summary
func (c *ColourPrecisionAnalysis) White() WhiteSummary { return c.white }

// PrimaryMatrix returns the resolved RGB -> XYZ matrix
func (c *ColourPrecisionAnalysis) PrimaryMatrix() matrix.Matrix3x3 { return c.npm }

// Primaries returns the chromaticities of the resolved matrix's columns
func (c *ColourPrecisionAnalysis) Primaries() colorspace.Primaries {
	return colorspace.PrimariesFromMatrix(c.npm)
}

// Estimate returns the robust fit behind the matrix, nil when it was supplied
func (c *ColourPrecisionAnalysis) Estimate() *estimator.Estimate { return c.estimate }

// Samples returns the per-sample detail
func (c *ColourPrecisionAnalysis) Samples() []SampleResult {
	return append([]SampleResult(nil), c.samples...)
}

// Warnings returns one warning per excluded sample
func (c *ColourPrecisionAnalysis) Warnings() []apperr.InvalidSampleWarning {
	return append([]apperr.InvalidSampleWarning(nil), c.warnings...)
}

// TagCounts returns the number of samples per tag
func (c *ColourPrecisionAnalysis) TagCounts() map[measurement.Tag]int {
	out := make(map[measurement.Tag]int, len(c.tags))
	for k, v := range c.tags {
		out[k] = v
	}
	return out
}

// Metadata returns the set's metadata unchanged
func (c *ColourPrecisionAnalysis) Metadata() measurement.Metadata { return cloneMetadata(c.metadata) }

func cloneMetadata(m measurement.Metadata) measurement.Metadata {
	if m.Extra != nil {
		extra := make(map[string]string, len(m.Extra))
		for k, v := range m.Extra {
			extra[k] = v
		}
		m.Extra = extra
	}
	return m
}

// ShortName returns the set's name
func (c *ColourPrecisionAnalysis) ShortName() string { return c.shortName }

// Transfer returns the name of the configured EOTF
func (c *ColourPrecisionAnalysis) Transfer() string { return c.transfer }

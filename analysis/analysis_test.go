package analysis

import (
	"bytes"
	"encoding/json"
	"errors"
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/OpenLEDEval/OLE-Toolset/apperr"
	"github.com/OpenLEDEval/OLE-Toolset/colorspace"
	"github.com/OpenLEDEval/OLE-Toolset/logging"
	"github.com/OpenLEDEval/OLE-Toolset/matrix"
	"github.com/OpenLEDEval/OLE-Toolset/measurement"
	"github.com/OpenLEDEval/OLE-Toolset/testcolors"
)

const regressionSeed = 0x07FD

func p3Matrix(t *testing.T) matrix.Matrix3x3 {
	t.Helper()
	npm, err := colorspace.NormalisedPrimaryMatrix(colorspace.P3Primaries, colorspace.D65)
	if err != nil {
		t.Fatalf("NormalisedPrimaryMatrix: %v", err)
	}
	return npm
}

// virtualSet measures a test colour preset on a simulated PQ display with
// P3-D65 primaries.
func virtualSet(t *testing.T, preset string, d measurement.VirtualDisplay) *measurement.Set {
	t.Helper()
	codes, err := testcolors.Generate(testcolors.Presets[preset])
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	d.NPM = p3Matrix(t)
	d.EOTF = colorspace.PQEOTF
	d.Bits = 10
	set := d.MeasureSet(codes, measurement.Metadata{Notes: "virtual display"})
	set.ShortName = preset
	return set
}

func pqConfig() Config {
	return NewConfig(colorspace.PQ())
}

func assertMatrixNear(t *testing.T, got, want matrix.Matrix3x3, tol float64) {
	t.Helper()
	for i := range want {
		if math.Abs(got[i]-want[i]) > tol {
			t.Fatalf("matrix[%d] = %.9g, want %.9g ± %g\n got %v\nwant %v", i, got[i], want[i], tol, got, want)
		}
	}
}

func assertValidSeries(t *testing.T, e *ErrorResult) {
	t.Helper()
	for _, m := range Metrics {
		valid := e.Valid(m)
		if len(valid) != e.Len()-len(e.Excluded()) {
			t.Fatalf("%s: %d valid values for %d samples with %d excluded", m, len(valid), e.Len(), len(e.Excluded()))
		}
		for i, v := range valid {
			if math.IsNaN(v) || math.IsInf(v, 0) || v < 0 {
				t.Fatalf("%s[%d] = %g", m, i, v)
			}
		}
	}
}

func sameSeries(a, b []float64) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] && !(math.IsNaN(a[i]) && math.IsNaN(b[i])) {
			return false
		}
	}
	return true
}

func TestNew_NoiseFreeDisplay(t *testing.T) {
	set := virtualSet(t, "fast-pq", measurement.VirtualDisplay{})

	cpa, err := New(set, pqConfig().WithSeed(regressionSeed))
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	assertMatrixNear(t, cpa.PrimaryMatrix(), p3Matrix(t), 1e-9)
	assertValidSeries(t, cpa.Error())

	if n := len(cpa.Error().Excluded()); n != 0 {
		t.Fatalf("%d samples excluded", n)
	}
	for _, m := range Metrics {
		for i, v := range cpa.Error().Valid(m) {
			if v > 1e-6 {
				t.Fatalf("%s[%d] = %g, want ~0", m, i, v)
			}
		}
	}

	est := cpa.Estimate()
	if est == nil {
		t.Fatalf("Estimate() = nil for an estimated matrix")
	}
	for _, g := range est.Groups {
		if g.Outliers != 0 && !g.ExactFit {
			t.Logf("group %s: %d of %d outside support", g.Name, g.Outliers, g.Samples)
		}
	}
	if !approx(cpa.White().Chromaticity.X, colorspace.D65.X, 1e-9) || !approx(cpa.White().Chromaticity.Y, colorspace.D65.Y, 1e-9) {
		t.Fatalf("white chromaticity = %+v", cpa.White().Chromaticity)
	}

	for _, s := range cpa.Samples() {
		if (s.Tag == measurement.TagWhite || s.Tag == measurement.TagGray) && math.Abs(s.SignalError) > 1e-9 {
			t.Fatalf("sample %d signal error %g", s.Index, s.SignalError)
		}
	}
}

func approx(a, b, tol float64) bool {
	return math.Abs(a-b) <= tol
}

func noisyDisplay() measurement.VirtualDisplay {
	return measurement.VirtualDisplay{
		Noise:       0.002,
		OutlierRate: 0.05,
		CrossTalk:   0.3,
		Seed:        7,
	}
}

func TestNew_NoisyDisplayWithOutliers(t *testing.T) {
	set := virtualSet(t, "pq", noisyDisplay())

	cpa, err := New(set, pqConfig().WithSeed(regressionSeed))
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	want := p3Matrix(t)
	assertMatrixNear(t, cpa.PrimaryMatrix(), want, 0.005*want.MaxAbs())

	recorded := matrix.Matrix3x3{
		0.487425211, 0.265492735, 0.198276517,
		0.22925988, 0.691410193, 0.0793299273,
		0, 0.0450990301, 1.04437576,
	}
	assertMatrixNear(t, cpa.PrimaryMatrix(), recorded, 1e-6*recorded.MaxAbs())
	if peak := cpa.White().PeakLuminance(); !approx(peak, 1408.18696, 1e-3) {
		t.Fatalf("peak luminance = %.9g", peak)
	}
	assertValidSeries(t, cpa.Error())

	e := cpa.Error()
	if e.Len() != 3504 || len(e.Excluded()) != 0 {
		t.Fatalf("%d samples with %d excluded", e.Len(), len(e.Excluded()))
	}
	means := []struct {
		metric Metric
		want   float64
		tol    float64
	}{
		{MetricXYZ, 17.1143742, cpa.White().PeakLuminance() * 0.002},
		{MetricICtCp, 5.14577722, 5.14577722 * 0.005},
		{MetricDI, 2.6922567, 2.6922567 * 0.005},
		{MetricDChromatic, 4.20249241, 4.20249241 * 0.005},
		{MetricDE2000, 0.77099365, 0.77099365 * 0.005},
	}
	for _, tc := range means {
		if got := e.Mean(tc.metric); !approx(got, tc.want, tc.tol) {
			t.Errorf("mean %s = %.9g, want %.9g ± %g", tc.metric, got, tc.want, tc.tol)
		}
	}

	groups := []struct {
		name     string
		samples  int
		outliers int
		exact    bool
	}{
		{"red", 43, 2, true},
		{"green", 43, 6, false},
		{"blue", 43, 5, false},
		{"white", 5, 1, false},
	}
	fits := cpa.Estimate().Groups
	if len(fits) != len(groups) {
		t.Fatalf("%d group fits, want %d", len(fits), len(groups))
	}
	for i, tc := range groups {
		g := fits[i]
		if g.Name != tc.name || g.Samples != tc.samples || g.Outliers != tc.outliers || g.ExactFit != tc.exact {
			t.Errorf("group %d = %+v, want %s %d samples %d outliers exact=%v", i, g, tc.name, tc.samples, tc.outliers, tc.exact)
		}
	}

	itp, dI, dC := e.Series(MetricICtCp), e.Series(MetricDI), e.Series(MetricDChromatic)
	for i := range itp {
		if math.IsNaN(itp[i]) {
			continue
		}
		if itp[i]+1e-12 < dI[i] || itp[i]+1e-12 < dC[i] {
			t.Fatalf("sample %d: ΔE_ITP %g smaller than a partial (%g, %g)", i, itp[i], dI[i], dC[i])
		}
	}
}

func TestNew_Idempotent(t *testing.T) {
	set := virtualSet(t, "fast-pq", noisyDisplay())
	cfg := pqConfig().WithSeed(regressionSeed)

	a, err := New(set, cfg)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	b, err := New(set, cfg)
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	if a.PrimaryMatrix() != b.PrimaryMatrix() {
		t.Fatalf("matrices differ:\n%v\n%v", a.PrimaryMatrix(), b.PrimaryMatrix())
	}
	for _, m := range Metrics {
		if !sameSeries(a.Error().Series(m), b.Error().Series(m)) {
			t.Fatalf("%s series differ", m)
		}
	}
}

func TestNew_UnseededIsStable(t *testing.T) {
	set := virtualSet(t, "fast-pq", noisyDisplay())

	a, err := New(set, pqConfig())
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	b, err := New(set, pqConfig())
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	assertMatrixNear(t, a.PrimaryMatrix(), b.PrimaryMatrix(), 0.005*a.PrimaryMatrix().MaxAbs())
}

func TestNew_WorkersMatchSequential(t *testing.T) {
	set := virtualSet(t, "fast-pq", noisyDisplay())
	cfg := pqConfig().WithSeed(1)

	seq, err := New(set, cfg)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	cfg.Workers = 4
	par, err := New(set, cfg)
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	for _, m := range Metrics {
		if !sameSeries(seq.Error().Series(m), par.Error().Series(m)) {
			t.Fatalf("%s differs between sequential and parallel runs", m)
		}
	}
}

func TestNew_PrimaryMatrixOverride(t *testing.T) {
	set := virtualSet(t, "fast-pq", measurement.VirtualDisplay{})

	cpa, err := New(set, pqConfig().WithPrimaryMatrix(p3Matrix(t)))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if cpa.Estimate() != nil {
		t.Fatalf("Estimate() set for a supplied matrix")
	}
	if cpa.PrimaryMatrix() != p3Matrix(t) {
		t.Fatalf("matrix = %v", cpa.PrimaryMatrix())
	}
	for _, m := range Metrics {
		for i, v := range cpa.Error().Valid(m) {
			if v != 0 {
				t.Fatalf("%s[%d] = %g, want 0", m, i, v)
			}
		}
	}

	p := cpa.Primaries()
	if !approx(p.Red.X, 0.680, 1e-9) || !approx(p.Green.Y, 0.690, 1e-9) || !approx(p.Blue.X, 0.150, 1e-9) {
		t.Fatalf("primaries = %+v", p)
	}
}

func TestNew_ExcludesInvalidSamples(t *testing.T) {
	set := virtualSet(t, "fast-pq", measurement.VirtualDisplay{})
	n := len(set.Measurements)
	set.Measurements[3] = matrix.Vector3{math.NaN(), 100, 100}
	set.Measurements[5] = matrix.Vector3{-1, -1, -1}

	var buf bytes.Buffer
	cfg := pqConfig().WithPrimaryMatrix(p3Matrix(t))
	cfg.Logger = logging.New(&buf)

	cpa, err := New(set, cfg)
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	e := cpa.Error()
	if got := e.Excluded(); len(got) != 2 || got[0] != 3 || got[1] != 5 {
		t.Fatalf("Excluded() = %v, want [3 5]", got)
	}
	for _, m := range Metrics {
		s := e.Series(m)
		if len(s) != n || !math.IsNaN(s[3]) || !math.IsNaN(s[5]) {
			t.Fatalf("%s series = %v", m, s)
		}
		if len(e.Valid(m)) != n-2 {
			t.Fatalf("%s: %d valid values, want %d", m, len(e.Valid(m)), n-2)
		}
		if math.IsNaN(e.Mean(m)) {
			t.Fatalf("%s mean is NaN", m)
		}
	}
	assertValidSeries(t, e)

	if s := cpa.Summary(); s.Excluded != 2 || s.Samples != n {
		t.Fatalf("summary = %d excluded of %d", s.Excluded, s.Samples)
	}
	if w := cpa.Warnings(); len(w) != 2 || w[0].Index != 3 || w[1].Index != 5 {
		t.Fatalf("warnings = %v", w)
	}
	out := buf.String()
	if !strings.Contains(out, "sample 3 excluded") || !strings.Contains(out, "sample 5 excluded") {
		t.Fatalf("log does not report exclusions:\n%s", out)
	}
	if cfg.Logger.Warnings() != 2 {
		t.Fatalf("logged %d warnings, want 2", cfg.Logger.Warnings())
	}
}

func TestNew_MissingReadingsInFile(t *testing.T) {
	set := virtualSet(t, "fast-pq", noisyDisplay())
	n := len(set.Measurements)

	b, err := json.Marshal(set)
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	var doc map[string]any
	if err := json.Unmarshal(b, &doc); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	readings := doc["measurements"].([]any)
	readings[20] = []any{nil, nil, nil}
	readings[21] = nil
	if b, err = json.Marshal(doc); err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	path := filepath.Join(t.TempDir(), "wall.csmf")
	if err := os.WriteFile(path, b, 0o644); err != nil {
		t.Fatal(err)
	}

	loaded, err := measurement.Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	for _, i := range []int{20, 21} {
		if loaded.Measurements[i].IsFinite() {
			t.Fatalf("missing reading %d decoded as %v", i, loaded.Measurements[i])
		}
	}

	cpa, err := New(loaded, pqConfig().WithSeed(regressionSeed))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if got := cpa.Error().Excluded(); len(got) != 2 || got[0] != 20 || got[1] != 21 {
		t.Fatalf("Excluded() = %v, want [20 21]", got)
	}
	for _, m := range Metrics {
		if len(cpa.Error().Valid(m)) != n-2 {
			t.Fatalf("%s: %d valid values, want %d", m, len(cpa.Error().Valid(m)), n-2)
		}
	}
	w := cpa.Warnings()
	if len(w) != 2 || w[0].Index != 20 || w[1].Index != 21 {
		t.Fatalf("warnings = %v", w)
	}
	if !strings.Contains(w[0].Reason, "not finite") {
		t.Fatalf("warning = %v", w[0])
	}
}

func TestNew_InvalidReadingInPrimaryGroup(t *testing.T) {
	set := virtualSet(t, "fast-pq", measurement.VirtualDisplay{})
	tags := measurement.TagCodes(set.TestColors)
	for i, tag := range tags {
		if tag == measurement.TagRed {
			set.Measurements[i] = matrix.Vector3{math.NaN(), math.NaN(), math.NaN()}
			break
		}
	}

	cpa, err := New(set, pqConfig().WithSeed(regressionSeed))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if len(cpa.Error().Excluded()) != 1 {
		t.Fatalf("Excluded() = %v", cpa.Error().Excluded())
	}
	assertMatrixNear(t, cpa.PrimaryMatrix(), p3Matrix(t), 1e-9)
}

func TestNew_Errors(t *testing.T) {
	npm := p3Matrix(t)
	display := measurement.VirtualDisplay{NPM: npm, EOTF: colorspace.PQEOTF}

	fewWhites := display.MeasureSet([]matrix.Vector3{
		{700, 700, 700}, {700, 700, 700},
		{300, 0, 0}, {500, 0, 0}, {700, 0, 0},
		{0, 300, 0}, {0, 500, 0}, {0, 700, 0},
		{0, 0, 300}, {0, 0, 500}, {0, 0, 700},
	}, measurement.Metadata{})

	mismatched := display.MeasureSet([]matrix.Vector3{{700, 700, 700}}, measurement.Metadata{})
	mismatched.TestColors = append(mismatched.TestColors, matrix.Vector3{0, 0, 0})

	singular := matrix.Matrix3x3{1, 2, 3, 2, 4, 6, 0, 0, 1}

	tcs := []struct {
		name string
		set  *measurement.Set
		cfg  Config
		want error
	}{
		{"no set", nil, pqConfig(), apperr.ErrDomain},
		{"mismatched targets", mismatched, pqConfig(), apperr.ErrDomain},
		{"too few whites", fewWhites, pqConfig().WithSeed(1), apperr.ErrInsufficientSamples},
		{"singular override", fewWhites, pqConfig().WithPrimaryMatrix(singular), apperr.ErrDegenerateGeometry},
	}

	for _, tc := range tcs {
		t.Run(tc.name, func(t *testing.T) {
			cpa, err := New(tc.set, tc.cfg)
			if !errors.Is(err, tc.want) {
				t.Fatalf("err = %v, want %v", err, tc.want)
			}
			if cpa != nil {
				t.Fatalf("partial result returned with error")
			}
			if !apperr.IsFatal(err) {
				t.Fatalf("IsFatal(%v) = false", err)
			}
		})
	}

	var ise *apperr.InsufficientSamplesError
	if _, err := New(fewWhites, pqConfig().WithSeed(1)); !errors.As(err, &ise) || ise.Group != "white" {
		t.Fatalf("err = %v, want white group named", err)
	}

	if _, err := New(fewWhites, pqConfig().WithPrimaryMatrix(npm)); err != nil {
		t.Fatalf("override still needs whites: %v", err)
	}
}

func TestWhiteSummary(t *testing.T) {
	black := matrix.Vector3{0.0475, 0.05, 0.0545}
	set := virtualSet(t, "fast-pq", measurement.VirtualDisplay{Black: black})

	cpa, err := New(set, pqConfig().WithSeed(regressionSeed))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	w := cpa.White()

	var peak float64
	whites := 0
	for i, tag := range measurement.TagCodes(set.TestColors) {
		if tag == measurement.TagWhite {
			whites++
			peak = math.Max(peak, set.Measurements[i][1])
		}
	}
	if w.Count != whites || w.PeakLuminance() != peak {
		t.Fatalf("white = %+v, want %d whites peaking at %g", w, whites, peak)
	}
	if !approx(w.BlackLevel, 0.05, 1e-12) {
		t.Fatalf("black level = %g", w.BlackLevel)
	}
	if !approx(w.ContrastRatio, peak/0.05, 1e-6) {
		t.Fatalf("contrast = %g, want %g", w.ContrastRatio, peak/0.05)
	}

	noBlack := virtualSet(t, "fast-pq", measurement.VirtualDisplay{})
	cpa, err = New(noBlack, pqConfig().WithPrimaryMatrix(p3Matrix(t)))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if !math.IsInf(cpa.White().ContrastRatio, 1) {
		t.Fatalf("contrast = %g, want +Inf", cpa.White().ContrastRatio)
	}
}

func TestSummary(t *testing.T) {
	set := virtualSet(t, "fast-pq", measurement.VirtualDisplay{})
	set.Measurements[0] = set.Measurements[0].Add(matrix.Vector3{3, 4, 0})

	cpa, err := New(set, pqConfig().WithPrimaryMatrix(p3Matrix(t)))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	s := cpa.Summary()
	n := float64(len(set.Measurements))

	xyz, ok := s.Metric(MetricXYZ)
	if !ok {
		t.Fatalf("no XYZ summary")
	}
	if !approx(xyz.Max, 5, 1e-9) || !approx(xyz.Mean, 5/n, 1e-9) || xyz.Median != 0 || xyz.Count != len(set.Measurements) {
		t.Fatalf("XYZ summary = %+v", xyz)
	}
	for _, ms := range s.Metrics {
		if ms.Median > ms.P95 || ms.P95 > ms.Max {
			t.Fatalf("%s: median %g, p95 %g, max %g out of order", ms.Metric, ms.Median, ms.P95, ms.Max)
		}
	}

	white := s.ByTag[measurement.TagWhite]
	whites := float64(cpa.TagCounts()[measurement.TagWhite])
	if !approx(white[MetricXYZ], 5/whites, 1e-9) {
		t.Fatalf("white XYZ mean = %g, want %g", white[MetricXYZ], 5/whites)
	}
	if red := s.ByTag[measurement.TagRed]; red[MetricDE2000] != 0 {
		t.Fatalf("red dE2000 mean = %g", red[MetricDE2000])
	}
}

func TestConfig_Validate(t *testing.T) {
	gamma := colorspace.Gamma(2.4, GammaPeak)

	tcs := []struct {
		name string
		cfg  Config
		ok   bool
	}{
		{"pq", pqConfig(), true},
		{"gamma", NewConfig(gamma), true},
		{"missing eotf", Config{EOTFInverse: gamma.Inverse}, false},
		{"missing inverse", Config{EOTF: gamma.Forward}, false},
		// the EOTF passed as its own inverse
		{"eotf as inverse", Config{EOTF: gamma.Forward, EOTFInverse: gamma.Forward}, false},
	}

	for _, tc := range tcs {
		t.Run(tc.name, func(t *testing.T) {
			if err := tc.cfg.Validate(); (err == nil) != tc.ok {
				t.Fatalf("Validate() = %v, ok = %v", err, tc.ok)
			}
		})
	}
}

func TestPresets(t *testing.T) {
	names := PresetNames()
	if len(names) != 3 {
		t.Fatalf("PresetNames() = %v", names)
	}

	for _, name := range names {
		p, err := LookupPreset(name)
		if err != nil {
			t.Fatalf("LookupPreset(%s): %v", name, err)
		}
		cfg, err := p.Config()
		if err != nil {
			t.Fatalf("%s: Config: %v", name, err)
		}
		if err := cfg.Validate(); err != nil {
			t.Fatalf("%s: Validate: %v", name, err)
		}
	}

	native, _ := LookupPreset("pq-native")
	cfg, _ := native.Config()
	if cfg.PrimaryMatrix != nil || cfg.Transfer != "pq" {
		t.Fatalf("pq-native config = %+v", cfg)
	}

	p3, _ := LookupPreset("gamma24-p3")
	cfg, _ = p3.Config()
	if cfg.PrimaryMatrix == nil || *cfg.PrimaryMatrix != p3Matrix(t) {
		t.Fatalf("gamma24-p3 matrix = %v", cfg.PrimaryMatrix)
	}
	if got := cfg.EOTF(1); got != GammaPeak {
		t.Fatalf("gamma24-p3 peak = %g", got)
	}

	if _, err := LookupPreset("hlg"); err == nil {
		t.Fatalf("LookupPreset(hlg) succeeded")
	}
}

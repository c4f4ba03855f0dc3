package analysis

import (
	"errors"
	"fmt"
	"math"
	"sort"

	"github.com/OpenLEDEval/OLE-Toolset/apperr"
	"github.com/OpenLEDEval/OLE-Toolset/colorspace"
	"github.com/OpenLEDEval/OLE-Toolset/estimator"
	"github.com/OpenLEDEval/OLE-Toolset/logging"
	"github.com/OpenLEDEval/OLE-Toolset/matrix"
)

// Config fixes everything an analysis run depends on besides the data
type Config struct {
	// Transfer names the EOTF pair in reports
	Transfer string
	// EOTF maps a normalised code in [0, 1] to cd/m²
	EOTF func(float64) float64
	// EOTFInverse maps cd/m² back to a normalised code
	EOTFInverse func(float64) float64
	// PrimaryMatrix overrides estimation when set
	PrimaryMatrix *matrix.Matrix3x3
	// Seed fixes the robust estimator's random starts
	Seed      *uint64
	Estimator estimator.Options
	// Workers > 1 spreads the per-sample metrics over goroutines
	Workers int
	Logger  *logging.Logger
}

// NewConfig builds a Config from a transfer function pair
func NewConfig(tf colorspace.TransferFunction) Config {
	return Config{
		Transfer:    tf.Name,
		EOTF:        tf.Forward,
		EOTFInverse: tf.Inverse,
		Estimator:   estimator.DefaultOptions(),
	}
}

// WithSeed returns a copy of c using seed
func (c Config) WithSeed(seed uint64) Config {
	c.Seed = &seed
	return c
}

// WithPrimaryMatrix returns a copy of c using npm instead of an estimate
func (c Config) WithPrimaryMatrix(npm matrix.Matrix3x3) Config {
	c.PrimaryMatrix = &npm
	return c
}

var (
	errNoEOTF     = errors.New("config has no EOTF")
	errNoInverse  = errors.New("config has no EOTF inverse")
	roundTripCode = []float64{0.1, 0.25, 0.5, 0.75, 0.9}
)

// Validate checks that the transfer functions invert each other and that an
// override matrix is usable.
func (c Config) Validate() error {
	if c.EOTF == nil {
		return errNoEOTF
	}
	if c.EOTFInverse == nil {
		return errNoInverse
	}
	for _, x := range roundTripCode {
		if got := c.EOTFInverse(c.EOTF(x)); !(math.Abs(got-x) <= 1e-6) {
			return fmt.Errorf("EOTF inverse does not invert EOTF: inverse(eotf(%g)) = %g", x, got)
		}
	}
	if c.PrimaryMatrix != nil {
		if _, err := c.PrimaryMatrix.Inverse(); err != nil {
			return apperr.Degeneratef("primary matrix override is singular")
		}
	}
	return nil
}

// estimatorOptions threads the seed into the estimator options
func (c Config) estimatorOptions() estimator.Options {
	opts := c.Estimator
	if c.Seed != nil {
		opts = opts.WithSeed(*c.Seed)
	}
	return opts
}

// Preset is a named measurement configuration
type Preset struct {
	Name        string
	Description string
	Transfer    colorspace.TransferFunction
	// ColorSpace is the fixed gamut, ColorSpaceNone means estimate
	ColorSpace colorspace.ColorSpace
}

// GammaPeak is the peak luminance of the gamma 2.4 preset in cd/m²
const GammaPeak = 1450

var presets = map[string]Preset{
	"pq-native": {
		Name:        "pq-native",
		Description: "ST 2084 EOTF, primaries estimated from the measurements",
		Transfer:    colorspace.PQ(),
		ColorSpace:  colorspace.ColorSpaceNone,
	},
	"pq-bt2020": {
		Name:        "pq-bt2020",
		Description: "ST 2084 EOTF, BT.2020 primaries",
		Transfer:    colorspace.PQ(),
		ColorSpace:  colorspace.ColorSpaceBT2020,
	},
	"gamma24-p3": {
		Name:        "gamma24-p3",
		Description: "gamma 2.4 EOTF peaking at 1450 cd/m², P3-D65 primaries",
		Transfer:    colorspace.Gamma(2.4, GammaPeak),
		ColorSpace:  colorspace.ColorSpaceP3D65,
	},
}

// PresetNames lists the known presets in sorted order
func PresetNames() []string {
	names := make([]string, 0, len(presets))
	for name := range presets {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// LookupPreset returns the named preset
func LookupPreset(name string) (Preset, error) {
	p, ok := presets[name]
	if !ok {
		return Preset{}, fmt.Errorf("unknown preset %q (known: %v)", name, PresetNames())
	}
	return p, nil
}

// Config resolves the preset into an analysis configuration
func (p Preset) Config() (Config, error) {
	cfg := NewConfig(p.Transfer)
	if p.ColorSpace != colorspace.ColorSpaceNone {
		npm, err := colorspace.GetRGBToXYZMatrix(p.ColorSpace)
		if err != nil {
			return Config{}, err
		}
		cfg = cfg.WithPrimaryMatrix(npm)
	}
	return cfg, nil
}

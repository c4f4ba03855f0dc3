// Package testcolors generates the device codes a display is measured at.
package testcolors

import (
	"fmt"
	"math"
	"math/rand/v2"

	"github.com/OpenLEDEval/OLE-Toolset/colorspace"
	"github.com/OpenLEDEval/OLE-Toolset/matrix"
)

// Kind selects how ramp and mesh levels are spaced
type Kind int

const (
	// Standard spaces levels evenly in code values up to full scale
	Standard Kind = iota
	// PQ spaces levels evenly in PQ signal up to the code of MaxNits
	PQ
)

func (k Kind) String() string {
	if k == PQ {
		return "pq"
	}
	return "standard"
}

func (k Kind) MarshalText() ([]byte, error) { return []byte(k.String()), nil }

func (k *Kind) UnmarshalText(b []byte) error {
	v, err := ParseKind(string(b))
	if err != nil {
		return err
	}
	*k = v
	return nil
}

// ParseKind maps "standard" or "pq" to a Kind
func ParseKind(s string) (Kind, error) {
	switch s {
	case "", "standard":
		return Standard, nil
	case "pq":
		return PQ, nil
	default:
		return Standard, fmt.Errorf("unknown test colour kind %q", s)
	}
}

// Config describes a test colour set
type Config struct {
	Kind          Kind    `json:"kind" yaml:"kind"`
	RampSamples   int     `json:"ramp_samples" yaml:"ramp_samples"`
	RampRepeats   int     `json:"ramp_repeats" yaml:"ramp_repeats"`
	MeshSize      int     `json:"mesh_size" yaml:"mesh_size"`
	Blacks        int     `json:"blacks" yaml:"blacks"`
	Whites        int     `json:"whites" yaml:"whites"`
	Random        int     `json:"random" yaml:"random"`
	QuantizedBits int     `json:"quantized_bits" yaml:"quantized_bits"`
	Seed          uint64  `json:"seed" yaml:"seed"`
	// PQ only: first ramp level as a fraction of the top signal
	FirstLight    float64 `json:"first_light,omitempty" yaml:"first_light,omitempty"`
	// PQ only: luminance of the top signal in cd/m²
	MaxNits       float64 `json:"max_nits,omitempty" yaml:"max_nits,omitempty"`
}

// Resolved is a validated Config with every level computed once
type Resolved struct {
	Config
	// Top is the highest signal in [0, 1]
	Top float64
	// Ramp holds the ramp signals in [0, Top]
	Ramp []float64
	// Mesh holds the per-channel mesh signals in [0, Top]
	Mesh []float64
}

// Presets mirror the measurement plans used on LED walls
var Presets = map[string]Config{
	"fast-pq": {
		Kind: PQ, RampSamples: 7, RampRepeats: 1, MeshSize: 2, Blacks: 5, Whites: 5,
		QuantizedBits: 10, FirstLight: 0.2, MaxNits: 1450,
	},
	"pq": {
		Kind: PQ, RampSamples: 29, RampRepeats: 1, MeshSize: 15, Blacks: 10, Whites: 3,
		QuantizedBits: 10, FirstLight: 0.025, MaxNits: 1400,
	},
	"fast-standard": {
		Kind: Standard, RampSamples: 5, RampRepeats: 1, MeshSize: 2, Blacks: 3, Whites: 2,
		QuantizedBits: 10,
	},
	"standard": {
		Kind: Standard, RampSamples: 25, RampRepeats: 1, MeshSize: 7, Blacks: 15, Whites: 3,
		QuantizedBits: 10,
	},
}

// Normalize validates c and computes its levels
func (c Config) Normalize() (*Resolved, error) {
	if c.RampSamples < 0 || c.MeshSize < 0 || c.Blacks < 0 || c.Whites < 0 || c.Random < 0 {
		return nil, fmt.Errorf("test colour counts must not be negative")
	}
	if c.RampRepeats <= 0 {
		c.RampRepeats = 1
	}
	if c.QuantizedBits == 0 {
		c.QuantizedBits = 10
	}
	if c.QuantizedBits < 1 || c.QuantizedBits > 16 {
		return nil, fmt.Errorf("quantized bits %d out of range [1, 16]", c.QuantizedBits)
	}

	r := &Resolved{Top: 1}
	switch c.Kind {
	case Standard:
		c.FirstLight = 0
		c.MaxNits = 0
		r.Ramp = linspace(1/float64(max(c.RampSamples, 1)), 1, c.RampSamples)
	case PQ:
		if c.MaxNits == 0 {
			c.MaxNits = colorspace.PQPeak
		}
		if c.MaxNits < 0 || c.MaxNits > colorspace.PQPeak {
			return nil, fmt.Errorf("max nits %g out of range (0, %g]", c.MaxNits, colorspace.PQPeak)
		}
		if c.FirstLight <= 0 || c.FirstLight >= 1 {
			return nil, fmt.Errorf("first light %g out of range (0, 1)", c.FirstLight)
		}
		r.Top = colorspace.PQInverseEOTF(c.MaxNits)
		r.Ramp = linspace(c.FirstLight*r.Top, r.Top, c.RampSamples)
	default:
		return nil, fmt.Errorf("unknown test colour kind %d", c.Kind)
	}
	r.Mesh = linspace(0, r.Top, c.MeshSize)
	r.Config = c
	return r, nil
}

// Generate returns the quantized device codes of c in measurement order:
// whites, blacks, ramps (red, green, blue, neutral per level), mesh, random.
func Generate(c Config) ([]matrix.Vector3, error) {
	r, err := c.Normalize()
	if err != nil {
		return nil, err
	}
	return r.Codes(), nil
}

// Codes returns the quantized device codes of the resolved set
func (r *Resolved) Codes() []matrix.Vector3 {
	var signals []matrix.Vector3

	for i := 0; i < r.Whites; i++ {
		signals = append(signals, matrix.Vector3{r.Top, r.Top, r.Top})
	}
	for i := 0; i < r.Blacks; i++ {
		signals = append(signals, matrix.Vector3{})
	}
	for rep := 0; rep < r.RampRepeats; rep++ {
		for _, v := range r.Ramp {
			signals = append(signals,
				matrix.Vector3{v, 0, 0},
				matrix.Vector3{0, v, 0},
				matrix.Vector3{0, 0, v},
				matrix.Vector3{v, v, v},
			)
		}
	}
	for _, red := range r.Mesh {
		for _, green := range r.Mesh {
			for _, blue := range r.Mesh {
				signals = append(signals, matrix.Vector3{red, green, blue})
			}
		}
	}
	if r.Random > 0 {
		rng := rand.New(rand.NewPCG(r.Seed, r.Seed^0xda942042e4dd58b5))
		for i := 0; i < r.Random; i++ {
			signals = append(signals, matrix.Vector3{
				rng.Float64() * r.Top,
				rng.Float64() * r.Top,
				rng.Float64() * r.Top,
			})
		}
	}

	scale := math.Exp2(float64(r.QuantizedBits)) - 1
	codes := make([]matrix.Vector3, len(signals))
	for i, s := range signals {
		codes[i] = s.Scale(scale).Map(math.Round)
	}
	return codes
}

func linspace(start, stop float64, n int) []float64 {
	switch {
	case n <= 0:
		return nil
	case n == 1:
		return []float64{stop}
	}
	out := make([]float64, n)
	step := (stop - start) / float64(n-1)
	for i := range out {
		out[i] = start + float64(i)*step
	}
	out[n-1] = stop
	return out
}

package measurement

import (
	"math/rand/v2"

	"github.com/OpenLEDEval/OLE-Toolset/matrix"
)

// VirtualDisplay simulates readings of a display with a known primary
// matrix and transfer function. Readings are deterministic for a given Seed.
type VirtualDisplay struct {
	NPM  matrix.Matrix3x3
	EOTF func(float64) float64
	Bits int
	// Black is added to every reading (XYZ, cd/m²)
	Black matrix.Vector3
	// Noise is the relative standard deviation applied per XYZ component
	Noise float64
	// OutlierRate is the probability that a reading suffers cross-talk
	OutlierRate float64
	// CrossTalk is the fraction of the strongest channel leaked into the others
	CrossTalk float64
	Seed      uint64
}

// Measure returns the simulated XYZ reading of every code
func (d VirtualDisplay) Measure(codes []matrix.Vector3) []matrix.Vector3 {
	rng := rand.New(rand.NewPCG(d.Seed, d.Seed^0x5851f42d4c957f2d))
	maxCode := (&Set{Bits: d.Bits}).MaxCode()

	out := make([]matrix.Vector3, len(codes))
	for i, code := range codes {
		rgb := code.Scale(1 / maxCode).Map(d.EOTF)

		if d.OutlierRate > 0 && rng.Float64() < d.OutlierRate {
			leak := d.CrossTalk * max3(rgb)
			for c := range rgb {
				rgb[c] += leak
			}
		}

		xyz := d.NPM.Apply(rgb).Add(d.Black)
		if d.Noise > 0 {
			for c := range xyz {
				xyz[c] *= 1 + d.Noise*rng.NormFloat64()
			}
		}
		out[i] = xyz
	}
	return out
}

// MeasureSet measures codes and packages the readings as a Set
func (d VirtualDisplay) MeasureSet(codes []matrix.Vector3, meta Metadata) *Set {
	bits := d.Bits
	if bits <= 0 {
		bits = DefaultBits
	}
	return &Set{
		Measurements: d.Measure(codes),
		TestColors:   append([]matrix.Vector3(nil), codes...),
		Bits:         bits,
		Metadata:     meta,
	}
}

func max3(v matrix.Vector3) float64 {
	m := v[0]
	if v[1] > m {
		m = v[1]
	}
	if v[2] > m {
		m = v[2]
	}
	return m
}

package colorspace

import (
	"fmt"
	"math"
	"strings"
)

// TransferFunction pairs an EOTF with its inverse.
// Forward maps a normalised code value in [0, 1] to luminance in cd/m²,
// Inverse maps luminance back to the code value.
type TransferFunction struct {
	Name    string
	Forward func(float64) float64
	Inverse func(float64) float64
}

// ST 2084 constants
const (
	pqM1   = 2610.0 / 16384.0
	pqM2   = 2523.0 / 4096.0 * 128.0
	pqC1   = 3424.0 / 4096.0
	pqC2   = 2413.0 / 4096.0 * 32.0
	pqC3   = 2392.0 / 4096.0 * 32.0
	PQPeak = 10000.0
)

// PQEOTF is the SMPTE ST 2084 EOTF: code value -> cd/m²
func PQEOTF(e float64) float64 {
	ep := math.Pow(e, 1/pqM2)
	return PQPeak * math.Pow(math.Max(ep-pqC1, 0)/(pqC2-pqC3*ep), 1/pqM1)
}

// PQInverseEOTF is the inverse ST 2084 EOTF: cd/m² -> code value.
// Negative luminance yields NaN.
func PQInverseEOTF(l float64) float64 {
	ym := math.Pow(l/PQPeak, pqM1)
	return math.Pow((pqC1+pqC2*ym)/(1+pqC3*ym), pqM2)
}

// PQ returns the ST 2084 transfer function
func PQ() TransferFunction {
	return TransferFunction{Name: "pq", Forward: PQEOTF, Inverse: PQInverseEOTF}
}

// ApplyGamma raises |value| to gamma keeping the sign
func ApplyGamma(value, gamma float64) float64 {
	if value < 0 {
		return -math.Pow(-value, gamma)
	}
	return math.Pow(value, gamma)
}

// Gamma returns a pure power-law EOTF reaching peak cd/m² at code 1
func Gamma(exponent, peak float64) TransferFunction {
	return TransferFunction{
		Name: fmt.Sprintf("gamma%g", exponent),
		Forward: func(e float64) float64 {
			return ApplyGamma(e, exponent) * peak
		},
		Inverse: func(l float64) float64 {
			return ApplyGamma(l/peak, 1/exponent)
		},
	}
}

// SRGBGamma sRGB encoding curve (linear -> encoded)
func SRGBGamma(linear float64) float64 {
	if linear <= 0.0031308 {
		return 12.92 * linear
	}
	return 1.055*math.Pow(linear, 1.0/2.4) - 0.055
}

// SRGBInverseGamma sRGB decoding curve (encoded -> linear)
func SRGBInverseGamma(srgb float64) float64 {
	if srgb <= 0.04045 {
		return srgb / 12.92
	}
	return math.Pow((srgb+0.055)/1.055, 2.4)
}

// SRGB returns the piecewise sRGB EOTF reaching peak cd/m² at code 1
func SRGB(peak float64) TransferFunction {
	return TransferFunction{
		Name: "srgb",
		Forward: func(e float64) float64 {
			return SRGBInverseGamma(e) * peak
		},
		Inverse: func(l float64) float64 {
			return SRGBGamma(l / peak)
		},
	}
}

// LookupTransferFunction resolves a configured EOTF name.
// peak is ignored for PQ, which is absolute.
func LookupTransferFunction(name string, peak float64) (TransferFunction, error) {
	n := strings.ToLower(strings.TrimSpace(name))
	switch n {
	case "pq", "st2084", "":
		return PQ(), nil
	case "srgb":
		return SRGB(peak), nil
	case "gamma22", "gamma2.2":
		return Gamma(2.2, peak), nil
	case "gamma24", "gamma2.4", "bt1886":
		return Gamma(2.4, peak), nil
	case "gamma26", "gamma2.6":
		return Gamma(2.6, peak), nil
	}
	return TransferFunction{}, fmt.Errorf("unknown transfer function %q", name)
}

package colorspace

import (
	"fmt"
	"strings"

	"github.com/OpenLEDEval/OLE-Toolset/matrix"
)

type (
	Matrix3x3 = matrix.Matrix3x3
	Vector3   = matrix.Vector3
)

// D65 is the standard illuminant white of every supported colour space (CIE 1931 2° observer)
var D65 = Chromaticity{0.3127, 0.3290}

// Primaries holds the chromaticities of a set of RGB primaries
type Primaries struct {
	Red   Chromaticity
	Green Chromaticity
	Blue  Chromaticity
}

// Standard primary sets
var (
	BT709Primaries  = Primaries{Red: Chromaticity{0.640, 0.330}, Green: Chromaticity{0.300, 0.600}, Blue: Chromaticity{0.150, 0.060}}
	P3Primaries     = Primaries{Red: Chromaticity{0.680, 0.320}, Green: Chromaticity{0.265, 0.690}, Blue: Chromaticity{0.150, 0.060}}
	BT2020Primaries = Primaries{Red: Chromaticity{0.708, 0.292}, Green: Chromaticity{0.170, 0.797}, Blue: Chromaticity{0.131, 0.046}}
)

// ColorSpace names an RGB colour space with a D65 white
type ColorSpace int

const (
	// ColorSpaceNone means "use the estimated display primaries"
	ColorSpaceNone ColorSpace = iota
	ColorSpaceBT709
	ColorSpaceP3D65
	ColorSpaceBT2020
)

func (cs ColorSpace) String() string {
	switch cs {
	case ColorSpaceBT709:
		return "bt709"
	case ColorSpaceP3D65:
		return "p3-d65"
	case ColorSpaceBT2020:
		return "bt2020"
	default:
		return "native"
	}
}

// ParseColorSpace maps a user-facing name to a ColorSpace
func ParseColorSpace(name string) (ColorSpace, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "native", "none":
		return ColorSpaceNone, nil
	case "bt709", "rec709", "srgb":
		return ColorSpaceBT709, nil
	case "p3", "p3-d65", "displayp3":
		return ColorSpaceP3D65, nil
	case "bt2020", "rec2020", "2020":
		return ColorSpaceBT2020, nil
	default:
		return ColorSpaceNone, fmt.Errorf("unknown colour space %q", name)
	}
}

// GetPrimaries returns the primaries of cs; ok is false for ColorSpaceNone
func GetPrimaries(cs ColorSpace) (Primaries, bool) {
	switch cs {
	case ColorSpaceBT709:
		return BT709Primaries, true
	case ColorSpaceP3D65:
		return P3Primaries, true
	case ColorSpaceBT2020:
		return BT2020Primaries, true
	default:
		return Primaries{}, false
	}
}

// GetRGBToXYZMatrix returns the D65 normalised primary matrix of cs
func GetRGBToXYZMatrix(cs ColorSpace) (Matrix3x3, error) {
	p, ok := GetPrimaries(cs)
	if !ok {
		return matrix.Identity3x3(), fmt.Errorf("colour space %s has no fixed primaries", cs)
	}
	return NormalisedPrimaryMatrix(p, D65)
}

// linear BT.2020 RGB (D65) <-> absolute XYZ
var (
	bt2020ToXYZ = mustNPM(BT2020Primaries, D65)
	xyzToBT2020 = mustInverse(bt2020ToXYZ)
)

func mustNPM(p Primaries, white Chromaticity) Matrix3x3 {
	npm, err := NormalisedPrimaryMatrix(p, white)
	if err != nil {
		panic(err)
	}
	return npm
}

func mustInverse(m Matrix3x3) Matrix3x3 {
	inv, err := m.Inverse()
	if err != nil {
		panic(err)
	}
	return inv
}

package colorspace

import (
	"math"

	"github.com/OpenLEDEval/OLE-Toolset/apperr"
	"github.com/OpenLEDEval/OLE-Toolset/matrix"
)

// Chromaticity is a CIE 1931 xy coordinate
type Chromaticity struct {
	X float64 `json:"x" yaml:"x"`
	Y float64 `json:"y" yaml:"y"`
}

// XYZToXY returns the chromaticity of xyz. A zero sum yields NaN coordinates.
func XYZToXY(xyz Vector3) Chromaticity {
	sum := xyz[0] + xyz[1] + xyz[2]
	if sum == 0 {
		return Chromaticity{math.NaN(), math.NaN()}
	}
	return Chromaticity{xyz[0] / sum, xyz[1] / sum}
}

// XYToXYZ returns the tristimulus value of c at luminance Y
func XYToXYZ(c Chromaticity, Y float64) Vector3 {
	if c.Y == 0 {
		return Vector3{}
	}
	return Vector3{
		c.X * Y / c.Y,
		Y,
		(1 - c.X - c.Y) * Y / c.Y,
	}
}

// Slice returns {x, y}
func (c Chromaticity) Slice() []float64 {
	return []float64{c.X, c.Y}
}

// NormalisedPrimaryMatrix derives the RGB -> XYZ matrix of the given primaries
// scaled so that RGB {1,1,1} maps to the white with Y = 1.
func NormalisedPrimaryMatrix(p Primaries, white Chromaticity) (Matrix3x3, error) {
	for _, c := range []Chromaticity{p.Red, p.Green, p.Blue, white} {
		if !(c.Y > 0) || math.IsInf(c.X, 0) || math.IsNaN(c.X) {
			return matrix.Identity3x3(), apperr.Degeneratef("invalid chromaticity (%g, %g)", c.X, c.Y)
		}
	}

	// columns are the primaries at Y = 1
	P := matrix.FromColumns(XYToXYZ(p.Red, 1), XYToXYZ(p.Green, 1), XYToXYZ(p.Blue, 1))
	inv, err := P.Inverse()
	if err != nil {
		return matrix.Identity3x3(), apperr.Degeneratef("primaries are collinear: %v", err)
	}

	S := inv.Apply(XYToXYZ(white, 1))
	return P.Multiply(matrix.Diagonal3x3(S)), nil
}

// PrimariesFromMatrix recovers the chromaticities of the columns of npm
func PrimariesFromMatrix(npm Matrix3x3) Primaries {
	return Primaries{
		Red:   XYZToXY(npm.Column(0)),
		Green: XYZToXY(npm.Column(1)),
		Blue:  XYZToXY(npm.Column(2)),
	}
}

// WhiteFromMatrix returns the chromaticity of RGB {1,1,1} under npm
func WhiteFromMatrix(npm Matrix3x3) Chromaticity {
	return XYZToXY(npm.Apply(Vector3{1, 1, 1}))
}

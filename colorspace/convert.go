package colorspace

import (
	"github.com/OpenLEDEval/OLE-Toolset/apperr"
	"github.com/OpenLEDEval/OLE-Toolset/matrix"
)

// Space identifies the space a raw value is expressed in
type Space int

const (
	// SpaceXYZ is CIE 1931 XYZ in cd/m²
	SpaceXYZ Space = iota
	// SpaceRGB is linear, primary-normalised RGB of the reference primaries
	SpaceRGB
)

func (s Space) String() string {
	switch s {
	case SpaceXYZ:
		return "XYZ"
	case SpaceRGB:
		return "RGB"
	default:
		return "unknown"
	}
}

// ToXYZ converts value from source to XYZ using the reference primary matrix
func ToXYZ(value []float64, source Space, primaries Matrix3x3) (Vector3, error) {
	v, err := matrix.FromSlice(value)
	if err != nil {
		return Vector3{}, err
	}

	switch source {
	case SpaceXYZ:
		return v, nil
	case SpaceRGB:
		return primaries.Apply(v), nil
	default:
		return Vector3{}, apperr.Domainf("unsupported source space %d", int(source))
	}
}

// FromXYZ converts an XYZ value into target space using the reference primary matrix
func FromXYZ(xyz Vector3, target Space, primaries Matrix3x3) (Vector3, error) {
	switch target {
	case SpaceXYZ:
		return xyz, nil
	case SpaceRGB:
		inv, err := primaries.Inverse()
		if err != nil {
			return Vector3{}, err
		}
		return inv.Apply(xyz), nil
	default:
		return Vector3{}, apperr.Domainf("unsupported target space %d", int(target))
	}
}

// CodeToXYZ maps a normalised device code through eotf and the primary matrix
func CodeToXYZ(code Vector3, eotf func(float64) float64, primaries Matrix3x3) Vector3 {
	return primaries.Apply(code.Map(eotf))
}

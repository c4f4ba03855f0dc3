package matrix

import (
	"encoding/json"
	"fmt"
	"math"

	"go.yaml.in/yaml/v3"

	"github.com/OpenLEDEval/OLE-Toolset/apperr"
)

// singularEpsilon is the determinant magnitude below which a matrix is treated as singular.
const singularEpsilon = 1e-12

// Matrix3x3 is a row-major 3x3 matrix
type Matrix3x3 [9]float64

// Vector3 is a 3-vector
type Vector3 [3]float64

// FromSlice builds a Vector3, failing when v is not a 3-vector
func FromSlice(v []float64) (Vector3, error) {
	if len(v) != 3 {
		return Vector3{}, apperr.Domainf("expected a 3-vector, got %d components", len(v))
	}
	return Vector3{v[0], v[1], v[2]}, nil
}

// FromColumns builds a matrix whose columns are a, b, c
func FromColumns(a, b, c Vector3) Matrix3x3 {
	return Matrix3x3{
		a[0], b[0], c[0],
		a[1], b[1], c[1],
		a[2], b[2], c[2],
	}
}

// Multiply returns m * other
func (m Matrix3x3) Multiply(other Matrix3x3) Matrix3x3 {
	var result Matrix3x3

	for i := 0; i < 3; i++ {
		for j := 0; j < 3; j++ {
			sum := 0.0
			for k := 0; k < 3; k++ {
				sum += m[i*3+k] * other[k*3+j]
			}
			result[i*3+j] = sum
		}
	}

	return result
}

// Apply returns m * v
func (m Matrix3x3) Apply(v Vector3) Vector3 {
	return Vector3{
		m[0]*v[0] + m[1]*v[1] + m[2]*v[2],
		m[3]*v[0] + m[4]*v[1] + m[5]*v[2],
		m[6]*v[0] + m[7]*v[1] + m[8]*v[2],
	}
}

// Det returns the determinant
func (m Matrix3x3) Det() float64 {
	return m[0]*(m[4]*m[8]-m[5]*m[7]) -
		m[1]*(m[3]*m[8]-m[5]*m[6]) +
		m[2]*(m[3]*m[7]-m[4]*m[6])
}

// Inverse returns the inverse, or a DegenerateGeometryError when m is singular.
// The threshold is relative to the scale of the entries so that matrices in
// cd/m² and in normalised units are judged alike.
func (m Matrix3x3) Inverse() (Matrix3x3, error) {
	var inv Matrix3x3

	det := m.Det()
	scale := m.MaxAbs()
	if scale == 0 || math.IsNaN(det) || math.Abs(det) < singularEpsilon*scale*scale*scale {
		return Identity3x3(), apperr.Degeneratef("matrix is singular (det=%g)", det)
	}

	invDet := 1.0 / det

	inv[0] = (m[4]*m[8] - m[5]*m[7]) * invDet
	inv[1] = (m[2]*m[7] - m[1]*m[8]) * invDet
	inv[2] = (m[1]*m[5] - m[2]*m[4]) * invDet
	inv[3] = (m[5]*m[6] - m[3]*m[8]) * invDet
	inv[4] = (m[0]*m[8] - m[2]*m[6]) * invDet
	inv[5] = (m[2]*m[3] - m[0]*m[5]) * invDet
	inv[6] = (m[3]*m[7] - m[4]*m[6]) * invDet
	inv[7] = (m[1]*m[6] - m[0]*m[7]) * invDet
	inv[8] = (m[0]*m[4] - m[1]*m[3]) * invDet

	return inv, nil
}

// Column returns column j
func (m Matrix3x3) Column(j int) Vector3 {
	return Vector3{m[j], m[3+j], m[6+j]}
}

// MaxAbs returns the largest absolute entry
func (m Matrix3x3) MaxAbs() float64 {
	largest := 0.0
	for _, v := range m {
		if a := math.Abs(v); a > largest {
			largest = a
		}
	}
	return largest
}

// Scale multiplies every entry by s
func (m Matrix3x3) Scale(s float64) Matrix3x3 {
	var result Matrix3x3
	for i := 0; i < 9; i++ {
		result[i] = m[i] * s
	}
	return result
}

// Sub returns m - other entry by entry
func (m Matrix3x3) Sub(other Matrix3x3) Matrix3x3 {
	var result Matrix3x3
	for i := 0; i < 9; i++ {
		result[i] = m[i] - other[i]
	}
	return result
}

// String formats the matrix one row per line
func (m Matrix3x3) String() string {
	return fmt.Sprintf("[% .9e % .9e % .9e]\n[% .9e % .9e % .9e]\n[% .9e % .9e % .9e]",
		m[0], m[1], m[2], m[3], m[4], m[5], m[6], m[7], m[8])
}

// Identity3x3 returns the identity matrix
func Identity3x3() Matrix3x3 {
	return Matrix3x3{
		1, 0, 0,
		0, 1, 0,
		0, 0, 1,
	}
}

// Diagonal3x3 builds a diagonal matrix from v
func Diagonal3x3(v Vector3) Matrix3x3 {
	return Matrix3x3{
		v[0], 0, 0,
		0, v[1], 0,
		0, 0, v[2],
	}
}

// Scale multiplies every component by s
func (v Vector3) Scale(s float64) Vector3 {
	return Vector3{v[0] * s, v[1] * s, v[2] * s}
}

// Add returns v + other
func (v Vector3) Add(other Vector3) Vector3 {
	return Vector3{v[0] + other[0], v[1] + other[1], v[2] + other[2]}
}

// Sub returns v - other
func (v Vector3) Sub(other Vector3) Vector3 {
	return Vector3{v[0] - other[0], v[1] - other[1], v[2] - other[2]}
}

// Map applies f to each component
func (v Vector3) Map(f func(float64) float64) Vector3 {
	return Vector3{f(v[0]), f(v[1]), f(v[2])}
}

// Norm returns the Euclidean length
func (v Vector3) Norm() float64 {
	return math.Sqrt(v[0]*v[0] + v[1]*v[1] + v[2]*v[2])
}

// IsFinite reports whether no component is NaN or ±Inf
func (v Vector3) IsFinite() bool {
	for _, c := range v {
		if math.IsNaN(c) || math.IsInf(c, 0) {
			return false
		}
	}
	return true
}

// Slice returns the components as a new slice
func (v Vector3) Slice() []float64 {
	return []float64{v[0], v[1], v[2]}
}

// NaNVector returns a vector with every component NaN, the value of a missing reading
func NaNVector() Vector3 {
	return Vector3{math.NaN(), math.NaN(), math.NaN()}
}

// fromNullable converts decoded components, null becoming NaN
func fromNullable(raw []*float64) (Vector3, error) {
	vals := make([]float64, len(raw))
	for i, c := range raw {
		if c == nil {
			vals[i] = math.NaN()
		} else {
			vals[i] = *c
		}
	}
	return FromSlice(vals)
}

// MarshalJSON writes non-finite components as null
func (v Vector3) MarshalJSON() ([]byte, error) {
	var out [3]*float64
	for i := range v {
		if !math.IsNaN(v[i]) && !math.IsInf(v[i], 0) {
			out[i] = &v[i]
		}
	}
	return json.Marshal(out)
}

// UnmarshalJSON reads a 3-element array. null components and a null vector
// decode as NaN; any other shape is a DomainError.
func (v *Vector3) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		*v = NaNVector()
		return nil
	}
	var raw []*float64
	if err := json.Unmarshal(data, &raw); err != nil {
		return apperr.Domainf("expected a 3-vector, got %s", data)
	}
	out, err := fromNullable(raw)
	if err != nil {
		return err
	}
	*v = out
	return nil
}

// UnmarshalYAML reads a 3-element sequence with the same rules as UnmarshalJSON
func (v *Vector3) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind != yaml.SequenceNode {
		return apperr.Domainf("line %d: expected a 3-vector", node.Line)
	}
	var raw []*float64
	if err := node.Decode(&raw); err != nil {
		return apperr.Domainf("line %d: expected a 3-vector: %v", node.Line, err)
	}
	out, err := fromNullable(raw)
	if err != nil {
		return apperr.Domainf("line %d: expected a 3-vector, got %d components", node.Line, len(raw))
	}
	*v = out
	return nil
}

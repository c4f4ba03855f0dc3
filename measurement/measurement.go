// Package measurement holds measured display readings, the device codes they
// were taken at and the rules that tag each reading for analysis.
package measurement

import (
	"math"
	"strings"

	"github.com/OpenLEDEval/OLE-Toolset/apperr"
	"github.com/OpenLEDEval/OLE-Toolset/matrix"
)

// DefaultBits is the code depth assumed when a set does not state one
const DefaultBits = 10

// Tag classifies a sample by its device code
type Tag string

const (
	TagBlack Tag = "black"
	TagWhite Tag = "white"
	TagGray  Tag = "gray"
	TagRed   Tag = "red"
	TagGreen Tag = "green"
	TagBlue  Tag = "blue"
	TagMesh  Tag = "mesh"
)

// Tags lists every tag in report order
var Tags = []Tag{TagWhite, TagGray, TagBlack, TagRed, TagGreen, TagBlue, TagMesh}

// Metadata is carried through the analysis untouched
type Metadata struct {
	Software   string            `json:"software,omitempty" yaml:"software,omitempty"`
	Instrument string            `json:"instrument,omitempty" yaml:"instrument,omitempty"`
	Operator   string            `json:"operator,omitempty" yaml:"operator,omitempty"`
	Location   string            `json:"location,omitempty" yaml:"location,omitempty"`
	Notes      string            `json:"notes,omitempty" yaml:"notes,omitempty"`
	Extra      map[string]string `json:"extra,omitempty" yaml:"extra,omitempty"`
}

// Set is an ordered list of readings and the test colours they were taken at
type Set struct {
	// Measurements are absolute XYZ readings in cd/m²
	Measurements Readings `json:"measurements" yaml:"measurements"`
	// TestColors are device codes in [0, 2^Bits-1]
	TestColors []matrix.Vector3 `json:"test_colors" yaml:"test_colors"`
	// Order maps measurement i to TestColors[Order[i]]; empty means 1:1
	Order     []int    `json:"order,omitempty" yaml:"order,omitempty"`
	Bits      int      `json:"bits,omitempty" yaml:"bits,omitempty"`
	Metadata  Metadata `json:"metadata" yaml:"metadata"`
	ShortName string   `json:"shortname,omitempty" yaml:"shortname,omitempty"`
}

// Sample is one reading joined with its device code and tag
type Sample struct {
	Index int
	XYZ   matrix.Vector3
	Code  matrix.Vector3
	Tag   Tag
}

// CodeDepth returns Bits or DefaultBits when unset
func (s *Set) CodeDepth() int {
	if s.Bits <= 0 {
		return DefaultBits
	}
	return s.Bits
}

// MaxCode returns the largest device code, 2^bits - 1
func (s *Set) MaxCode() float64 {
	return math.Exp2(float64(s.CodeDepth())) - 1
}

// Name returns the short name, falling back to the notes' first line
func (s *Set) Name() string {
	if s.ShortName != "" {
		return s.ShortName
	}
	if line, _, _ := strings.Cut(strings.TrimSpace(s.Metadata.Notes), "\n"); line != "" {
		return line
	}
	return "measurements"
}

// Targets resolves the device code of every measurement
func (s *Set) Targets() ([]matrix.Vector3, error) {
	n := len(s.Measurements)
	if len(s.Order) == 0 {
		if len(s.TestColors) != n {
			return nil, apperr.Domainf("%d test colours for %d measurements", len(s.TestColors), n)
		}
		return append([]matrix.Vector3(nil), s.TestColors...), nil
	}

	if len(s.Order) != n {
		return nil, apperr.Domainf("order has %d entries for %d measurements", len(s.Order), n)
	}
	targets := make([]matrix.Vector3, n)
	for i, idx := range s.Order {
		if idx < 0 || idx >= len(s.TestColors) {
			return nil, apperr.Domainf("order[%d] = %d out of range [0, %d)", i, idx, len(s.TestColors))
		}
		targets[i] = s.TestColors[idx]
	}
	return targets, nil
}

// Validate checks the shape of the set and the range of its codes
func (s *Set) Validate() error {
	if len(s.Measurements) == 0 {
		return apperr.Domainf("measurement set is empty")
	}
	if s.Bits < 0 || s.Bits > 16 {
		return apperr.Domainf("unsupported code depth %d", s.Bits)
	}
	targets, err := s.Targets()
	if err != nil {
		return err
	}
	maxCode := s.MaxCode()
	for i, code := range targets {
		for _, c := range code {
			if math.IsNaN(c) || c < 0 || c > maxCode {
				return apperr.Domainf("test colour %d has code %v outside [0, %g]", i, code, maxCode)
			}
		}
	}
	return nil
}

// Samples joins measurements with their codes and tags them
func (s *Set) Samples() ([]Sample, error) {
	if err := s.Validate(); err != nil {
		return nil, err
	}
	targets, err := s.Targets()
	if err != nil {
		return nil, err
	}

	tags := TagCodes(targets)
	samples := make([]Sample, len(targets))
	for i := range targets {
		samples[i] = Sample{
			Index: i,
			XYZ:   s.Measurements[i],
			Code:  targets[i],
			Tag:   tags[i],
		}
	}
	return samples, nil
}

// TagCodes applies the tagging rules:
//
//	black  all channels zero
//	white  neutral at the highest neutral code of the list
//	gray   other neutrals
//	red    only R non-zero (green, blue likewise)
//	mesh   anything else
func TagCodes(codes []matrix.Vector3) []Tag {
	tags := make([]Tag, len(codes))

	maxNeutral := 0.0
	for _, c := range codes {
		if isNeutral(c) && c[0] > maxNeutral {
			maxNeutral = c[0]
		}
	}

	for i, c := range codes {
		switch {
		case c[0] == 0 && c[1] == 0 && c[2] == 0:
			tags[i] = TagBlack
		case isNeutral(c):
			if c[0] == maxNeutral {
				tags[i] = TagWhite
			} else {
				tags[i] = TagGray
			}
		case c[1] == 0 && c[2] == 0:
			tags[i] = TagRed
		case c[0] == 0 && c[2] == 0:
			tags[i] = TagGreen
		case c[0] == 0 && c[1] == 0:
			tags[i] = TagBlue
		default:
			tags[i] = TagMesh
		}
	}
	return tags
}

func isNeutral(c matrix.Vector3) bool {
	return c[0] > 0 && c[0] == c[1] && c[1] == c[2]
}

// Group returns the XYZ readings of the samples carrying tag
func Group(samples []Sample, tag Tag) []matrix.Vector3 {
	var out []matrix.Vector3
	for _, s := range samples {
		if s.Tag == tag {
			out = append(out, s.XYZ)
		}
	}
	return out
}

// CountTags returns the number of samples per tag
func CountTags(samples []Sample) map[Tag]int {
	counts := make(map[Tag]int, len(Tags))
	for _, s := range samples {
		counts[s.Tag]++
	}
	return counts
}

package estimator

import (
	"math"

	"github.com/OpenLEDEval/OLE-Toolset/apperr"
	"github.com/OpenLEDEval/OLE-Toolset/colorspace"
	"github.com/OpenLEDEval/OLE-Toolset/matrix"
)

// chromaticity fits are two dimensional
const minGroupSamples = 3

// Groups holds the measured XYZ values that feed each primary fit
type Groups struct {
	Red   []matrix.Vector3
	Green []matrix.Vector3
	Blue  []matrix.Vector3
	White []matrix.Vector3
}

// GroupFit describes the robust chromaticity of one group
type GroupFit struct {
	Name         string                  `json:"name" yaml:"name"`
	Chromaticity colorspace.Chromaticity `json:"chromaticity" yaml:"chromaticity"`
	Samples      int                     `json:"samples" yaml:"samples"`
	Outliers     int                     `json:"outliers" yaml:"outliers"`
	ExactFit     bool                    `json:"exact_fit,omitempty" yaml:"exact_fit,omitempty"`
}

// Estimate is a primary matrix derived from robust group chromaticities
type Estimate struct {
	Matrix    matrix.Matrix3x3
	Primaries colorspace.Primaries
	White     colorspace.Chromaticity
	// Groups are ordered red, green, blue, white
	Groups []GroupFit
}

// EstimatePrimaryMatrix fits every group on xy chromaticity and assembles
// the normalised primary matrix of the robust red, green and blue
// chromaticities against the robust white.
func EstimatePrimaryMatrix(g Groups, opts Options) (*Estimate, error) {
	named := []struct {
		name string
		xyz  []matrix.Vector3
	}{
		{"red", g.Red},
		{"green", g.Green},
		{"blue", g.Blue},
		{"white", g.White},
	}

	fits := make([]GroupFit, 0, len(named))
	for i, grp := range named {
		o := opts
		if opts.Seed != nil {
			o = opts.WithSeed(*opts.Seed + uint64(i))
		}
		fit, err := RobustChromaticity(grp.name, grp.xyz, o)
		if err != nil {
			return nil, err
		}
		fits = append(fits, fit)
	}

	primaries := colorspace.Primaries{
		Red:   fits[0].Chromaticity,
		Green: fits[1].Chromaticity,
		Blue:  fits[2].Chromaticity,
	}
	white := fits[3].Chromaticity

	npm, err := colorspace.NormalisedPrimaryMatrix(primaries, white)
	if err != nil {
		return nil, err
	}
	if _, err := npm.Inverse(); err != nil {
		return nil, apperr.Degeneratef("primary matrix is singular for white (%g, %g)", white.X, white.Y)
	}

	return &Estimate{
		Matrix:    npm,
		Primaries: primaries,
		White:     white,
		Groups:    fits,
	}, nil
}

// RobustChromaticity returns the MCD location of the xy chromaticities of xyz.
// Values without a finite chromaticity are ignored.
func RobustChromaticity(name string, xyz []matrix.Vector3, opts Options) (GroupFit, error) {
	points := make([][]float64, 0, len(xyz))
	for _, v := range xyz {
		c := colorspace.XYZToXY(v)
		if !finite(c.X) || !finite(c.Y) {
			continue
		}
		points = append(points, c.Slice())
	}

	if len(points) < minGroupSamples {
		return GroupFit{}, apperr.InsufficientSamples(name, len(points), minGroupSamples)
	}

	fit, err := MinCovDet(points, opts)
	if err != nil {
		return GroupFit{}, err
	}

	return GroupFit{
		Name:         name,
		Chromaticity: colorspace.Chromaticity{X: fit.Location[0], Y: fit.Location[1]},
		Samples:      len(points),
		Outliers:     fit.Outliers(),
		ExactFit:     fit.ExactFit,
	}, nil
}

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}

// Package report renders an analysis result as a terminal table, YAML or JSON.
package report

import (
	"encoding/json"
	"fmt"
	"io"
	"math"
	"path/filepath"
	"sort"
	"strings"

	"go.yaml.in/yaml/v3"

	"github.com/OpenLEDEval/OLE-Toolset/analysis"
	"github.com/OpenLEDEval/OLE-Toolset/estimator"
	"github.com/OpenLEDEval/OLE-Toolset/matrix"
	"github.com/OpenLEDEval/OLE-Toolset/measurement"
)

// Format selects a renderer
type Format string

const (
	FormatText Format = "text"
	FormatYAML Format = "yaml"
	FormatJSON Format = "json"
)

// Formats lists the supported formats
var Formats = []Format{FormatText, FormatYAML, FormatJSON}

// ParseFormat resolves a format name, case-insensitively
func ParseFormat(name string) (Format, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "text", "txt", "table":
		return FormatText, nil
	case "yaml", "yml":
		return FormatYAML, nil
	case "json":
		return FormatJSON, nil
	}
	return "", fmt.Errorf("unknown report format %q (known: text, yaml, json)", name)
}

// FormatFromPath picks the format from a file extension, text otherwise
func FormatFromPath(path string) Format {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return FormatYAML
	case ".json":
		return FormatJSON
	}
	return FormatText
}

// Options controls what goes into a report
type Options struct {
	// Samples adds the per-sample detail
	Samples bool
}

// Render writes cpa to w in the given format
func Render(w io.Writer, cpa *analysis.ColourPrecisionAnalysis, format Format, opts Options) error {
	if cpa == nil {
		return fmt.Errorf("nothing to render")
	}
	doc := NewDocument(cpa, opts)
	switch format {
	case FormatText, "":
		return renderText(w, doc)
	case FormatYAML:
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(doc); err != nil {
			return fmt.Errorf("encode yaml report: %w", err)
		}
		return enc.Close()
	case FormatJSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		if err := enc.Encode(doc); err != nil {
			return fmt.Errorf("encode json report: %w", err)
		}
		return nil
	}
	return fmt.Errorf("unknown report format %q", format)
}

// Number is a float that survives JSON: NaN becomes null and infinities
// become the strings "+Inf" and "-Inf". YAML writes .nan and .inf natively.
type Number float64

// MarshalJSON implements json.Marshaler
func (n Number) MarshalJSON() ([]byte, error) {
	f := float64(n)
	switch {
	case math.IsNaN(f):
		return []byte("null"), nil
	case math.IsInf(f, 1):
		return []byte(`"+Inf"`), nil
	case math.IsInf(f, -1):
		return []byte(`"-Inf"`), nil
	}
	return json.Marshal(f)
}

// UnmarshalJSON implements json.Unmarshaler
func (n *Number) UnmarshalJSON(b []byte) error {
	switch string(b) {
	case "null":
		*n = Number(math.NaN())
		return nil
	case `"+Inf"`:
		*n = Number(math.Inf(1))
		return nil
	case `"-Inf"`:
		*n = Number(math.Inf(-1))
		return nil
	}
	var f float64
	if err := json.Unmarshal(b, &f); err != nil {
		return err
	}
	*n = Number(f)
	return nil
}

func vec(v matrix.Vector3) [3]Number {
	return [3]Number{Number(v[0]), Number(v[1]), Number(v[2])}
}

// XY is a chromaticity coordinate
type XY struct {
	X Number `json:"x" yaml:"x"`
	Y Number `json:"y" yaml:"y"`
}

// White is the white and black summary
type White struct {
	Peak          [3]Number `json:"peak" yaml:"peak,flow"`
	Mean          [3]Number `json:"mean" yaml:"mean,flow"`
	Chromaticity  XY        `json:"chromaticity" yaml:"chromaticity"`
	Count         int       `json:"count" yaml:"count"`
	BlackLevel    Number    `json:"black_level" yaml:"black_level"`
	ContrastRatio Number    `json:"contrast_ratio" yaml:"contrast_ratio"`
}

// Metric is the summary of one error series
type Metric struct {
	Metric analysis.Metric `json:"metric" yaml:"metric"`
	Count  int             `json:"count" yaml:"count"`
	Mean   Number          `json:"mean" yaml:"mean"`
	Median Number          `json:"median" yaml:"median"`
	P95    Number          `json:"p95" yaml:"p95"`
	Max    Number          `json:"max" yaml:"max"`
}

// Warning is one excluded sample
type Warning struct {
	Index  int    `json:"index" yaml:"index"`
	Reason string `json:"reason" yaml:"reason"`
}

// Sample is the per-sample detail
type Sample struct {
	Index       int                        `json:"index" yaml:"index"`
	Tag         measurement.Tag            `json:"tag" yaml:"tag"`
	Code        [3]Number                  `json:"code" yaml:"code,flow"`
	Measured    [3]Number                  `json:"measured" yaml:"measured,flow"`
	Target      [3]Number                  `json:"target" yaml:"target,flow"`
	SignalError Number                     `json:"signal_error,omitempty" yaml:"signal_error,omitempty"`
	Errors      map[analysis.Metric]Number `json:"errors,omitempty" yaml:"errors,omitempty"`
	Excluded    bool                       `json:"excluded,omitempty" yaml:"excluded,omitempty"`
	Reason      string                     `json:"reason,omitempty" yaml:"reason,omitempty"`
}

// TagMeans holds the mean of every metric over one tag
type TagMeans map[analysis.Metric]Number

// Document is the serialisable form of an analysis result
type Document struct {
	Name      string                       `json:"name" yaml:"name"`
	Transfer  string                       `json:"transfer" yaml:"transfer"`
	Metadata  measurement.Metadata         `json:"metadata" yaml:"metadata"`
	Matrix    [3][3]Number                 `json:"primary_matrix" yaml:"primary_matrix,flow"`
	Primaries map[string]XY                `json:"primaries" yaml:"primaries"`
	Estimated bool                         `json:"estimated" yaml:"estimated"`
	Groups    []estimator.GroupFit         `json:"groups,omitempty" yaml:"groups,omitempty"`
	White     White                        `json:"white" yaml:"white"`
	Tags      map[measurement.Tag]int      `json:"tags" yaml:"tags"`
	Samples   int                          `json:"samples" yaml:"samples"`
	Excluded  int                          `json:"excluded" yaml:"excluded"`
	Metrics   []Metric                     `json:"metrics" yaml:"metrics"`
	ByTag     map[measurement.Tag]TagMeans `json:"by_tag" yaml:"by_tag"`
	Warnings  []Warning                    `json:"warnings,omitempty" yaml:"warnings,omitempty"`
	Detail    []Sample                     `json:"detail,omitempty" yaml:"detail,omitempty"`
}

// NewDocument flattens cpa into a Document
func NewDocument(cpa *analysis.ColourPrecisionAnalysis, opts Options) Document {
	npm := cpa.PrimaryMatrix()
	p := cpa.Primaries()
	w := cpa.White()
	s := cpa.Summary()

	doc := Document{
		Name:     cpa.ShortName(),
		Transfer: cpa.Transfer(),
		Metadata: cpa.Metadata(),
		Primaries: map[string]XY{
			"red":   {Number(p.Red.X), Number(p.Red.Y)},
			"green": {Number(p.Green.X), Number(p.Green.Y)},
			"blue":  {Number(p.Blue.X), Number(p.Blue.Y)},
		},
		White: White{
			Peak:          vec(w.Peak),
			Mean:          vec(w.Mean),
			Chromaticity:  XY{Number(w.Chromaticity.X), Number(w.Chromaticity.Y)},
			Count:         w.Count,
			BlackLevel:    Number(w.BlackLevel),
			ContrastRatio: Number(w.ContrastRatio),
		},
		Tags:     cpa.TagCounts(),
		Samples:  s.Samples,
		Excluded: s.Excluded,
		ByTag:    make(map[measurement.Tag]TagMeans, len(s.ByTag)),
	}
	for r := 0; r < 3; r++ {
		for c := 0; c < 3; c++ {
			doc.Matrix[r][c] = Number(npm[r*3+c])
		}
	}
	if est := cpa.Estimate(); est != nil {
		doc.Estimated = true
		doc.Groups = append(doc.Groups, est.Groups...)
	}
	for _, m := range s.Metrics {
		doc.Metrics = append(doc.Metrics, Metric{
			Metric: m.Metric,
			Count:  m.Count,
			Mean:   Number(m.Mean),
			Median: Number(m.Median),
			P95:    Number(m.P95),
			Max:    Number(m.Max),
		})
	}
	for tag, means := range s.ByTag {
		row := make(TagMeans, len(means))
		for m, v := range means {
			row[m] = Number(v)
		}
		doc.ByTag[tag] = row
	}
	for _, wn := range cpa.Warnings() {
		doc.Warnings = append(doc.Warnings, Warning{Index: wn.Index, Reason: wn.Reason})
	}
	if opts.Samples {
		for _, r := range cpa.Samples() {
			d := Sample{
				Index:       r.Index,
				Tag:         r.Tag,
				Code:        vec(r.Code),
				Measured:    vec(r.Measured),
				Target:      vec(r.Target),
				SignalError: Number(r.SignalError),
				Excluded:    r.Excluded,
				Reason:      r.Reason,
			}
			if len(r.Errors) > 0 {
				d.Errors = make(map[analysis.Metric]Number, len(r.Errors))
				for m, v := range r.Errors {
					d.Errors[m] = Number(v)
				}
			}
			doc.Detail = append(doc.Detail, d)
		}
	}
	return doc
}

// sortedTags returns the tags of counts in canonical order, unknown tags last
func sortedTags[V any](counts map[measurement.Tag]V) []measurement.Tag {
	rank := make(map[measurement.Tag]int, len(measurement.Tags))
	for i, t := range measurement.Tags {
		rank[t] = i
	}
	tags := make([]measurement.Tag, 0, len(counts))
	for t := range counts {
		tags = append(tags, t)
	}
	sort.Slice(tags, func(i, j int) bool {
		ri, okI := rank[tags[i]]
		rj, okJ := rank[tags[j]]
		switch {
		case okI && okJ:
			return ri < rj
		case okI != okJ:
			return okI
		}
		return tags[i] < tags[j]
	})
	return tags
}

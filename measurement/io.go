package measurement

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"go.yaml.in/yaml/v3"

	"github.com/OpenLEDEval/OLE-Toolset/apperr"
	"github.com/OpenLEDEval/OLE-Toolset/matrix"
)

// Readings are XYZ measurements. A missing reading (null) decodes as a
// NaN vector so that the analysis excludes it.
type Readings []matrix.Vector3

// UnmarshalYAML decodes the list item by item; yaml.v3 zeroes null items
// before any item unmarshaler runs.
func (r *Readings) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind != yaml.SequenceNode {
		return apperr.Domainf("line %d: measurements must be a list", node.Line)
	}
	out := make(Readings, len(node.Content))
	for i, item := range node.Content {
		if item.ShortTag() == "!!null" {
			out[i] = matrix.NaNVector()
			continue
		}
		if err := item.Decode(&out[i]); err != nil {
			return err
		}
	}
	*r = out
	return nil
}

// Format is an on-disk encoding of a Set
type Format int

const (
	FormatJSON Format = iota
	FormatYAML
)

func (f Format) String() string {
	if f == FormatYAML {
		return "yaml"
	}
	return "json"
}

// StrippedSoftware is the software tag written by Strip
const StrippedSoftware = "ole metadata stripper"

// FormatFromPath chooses the format from the file extension
func FormatFromPath(path string) (Format, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json", ".csmf":
		return FormatJSON, nil
	case ".yaml", ".yml":
		return FormatYAML, nil
	default:
		return FormatJSON, fmt.Errorf("unsupported measurement file extension %q", filepath.Ext(path))
	}
}

// Load reads a measurement file
func Load(path string) (*Set, error) {
	format, err := FormatFromPath(path)
	if err != nil {
		return nil, err
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open measurements: %w", err)
	}
	defer f.Close()

	set, err := Decode(f, format)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	if set.ShortName == "" {
		set.ShortName = strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	}
	return set, nil
}

// Save writes set to path, creating parent directories
func Save(path string, set *Set) error {
	format, err := FormatFromPath(path)
	if err != nil {
		return err
	}

	var buf bytes.Buffer
	if err := Encode(&buf, set, format); err != nil {
		return err
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create output directory: %w", err)
	}
	if err := os.WriteFile(path, buf.Bytes(), 0o644); err != nil {
		return fmt.Errorf("write measurements: %w", err)
	}
	return nil
}

// Decode reads a set in the given format
func Decode(r io.Reader, format Format) (*Set, error) {
	var set Set
	switch format {
	case FormatYAML:
		if err := yaml.NewDecoder(r).Decode(&set); err != nil {
			return nil, fmt.Errorf("decode yaml: %w", err)
		}
	default:
		if err := json.NewDecoder(r).Decode(&set); err != nil {
			return nil, fmt.Errorf("decode json: %w", err)
		}
	}
	return &set, nil
}

// Encode writes set in the given format. JSON writes missing readings as null.
func Encode(w io.Writer, set *Set, format Format) error {
	switch format {
	case FormatYAML:
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(set); err != nil {
			return fmt.Errorf("encode yaml: %w", err)
		}
		return enc.Close()
	default:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		if err := enc.Encode(set); err != nil {
			return fmt.Errorf("encode json: %w", err)
		}
		return nil
	}
}

// Strip returns a copy of set with its metadata replaced by an anonymous record
func Strip(set *Set) *Set {
	out := &Set{
		Measurements: append(Readings(nil), set.Measurements...),
		TestColors:   append([]matrix.Vector3(nil), set.TestColors...),
		Order:        append([]int(nil), set.Order...),
		Bits:         set.Bits,
		Metadata:     Metadata{Software: StrippedSoftware},
		ShortName:    set.ShortName,
	}
	return out
}

var invalidFilenameChars = regexp.MustCompile(`[^-\w.]`)

// ValidFilename turns name into a safe file name: surrounding space is
// trimmed, inner spaces become underscores and anything other than
// letters, digits, '-', '_' and '.' is dropped.
func ValidFilename(name string) string {
	s := strings.ReplaceAll(strings.TrimSpace(name), " ", "_")
	s = invalidFilenameChars.ReplaceAllString(s, "")
	if s == "" || s == "." || s == ".." {
		return "measurements"
	}
	return s
}

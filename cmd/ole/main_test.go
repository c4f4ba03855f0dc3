package main

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/OpenLEDEval/OLE-Toolset/measurement"
	"github.com/OpenLEDEval/OLE-Toolset/report"
	"github.com/OpenLEDEval/OLE-Toolset/store"
)

// execute runs one CLI invocation with an isolated home directory
func execute(t *testing.T, args ...string) (string, string, error) {
	t.Helper()
	t.Setenv("HOME", t.TempDir())
	root := newRootCmd()
	var out, errOut bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&errOut)
	root.SetArgs(args)
	err := root.Execute()
	return out.String(), errOut.String(), err
}

// simulated writes a virtual display measurement file and returns its path
func simulated(t *testing.T, dir string) string {
	t.Helper()
	path := filepath.Join(dir, "wall.json")
	if _, stderr, err := execute(t, "simulate", "-q", "--name", "wall", "--seed", "7", "-o", path); err != nil {
		t.Fatalf("simulate: %v\n%s", err, stderr)
	}
	return path
}

func TestSimulateAndAnalyze(t *testing.T) {
	dir := t.TempDir()
	path := simulated(t, dir)

	set, err := measurement.Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if set.ShortName != "wall" || set.Metadata.Instrument != "virtual display" {
		t.Errorf("simulated set = %q / %+v", set.ShortName, set.Metadata)
	}

	stdout, stderr, err := execute(t, "analyze", path, "-q", "--seed", "1", "--format", "json")
	if err != nil {
		t.Fatalf("analyze: %v\n%s", err, stderr)
	}
	var doc report.Document
	if err := json.Unmarshal([]byte(stdout), &doc); err != nil {
		t.Fatalf("analyze output is not JSON: %v\n%s", err, stdout)
	}
	if doc.Name != "wall" || !doc.Estimated || doc.Samples != len(set.Measurements) {
		t.Errorf("report = %q estimated=%v samples=%d", doc.Name, doc.Estimated, doc.Samples)
	}
	if len(doc.Groups) != 4 {
		t.Errorf("%d primary groups, want 4", len(doc.Groups))
	}
}

func TestAnalyzeProgressAndReportFile(t *testing.T) {
	dir := t.TempDir()
	path := simulated(t, dir)
	out := filepath.Join(dir, "reports", "wall.yaml")

	stdout, stderr, err := execute(t, "analyze", path, "--seed", "1", "-o", out)
	if err != nil {
		t.Fatalf("analyze: %v\n%s", err, stderr)
	}
	if stdout != "" {
		t.Errorf("report also written to stdout:\n%s", stdout)
	}
	for _, step := range []string{"[load]", "[primaries]", "[metrics]", "[report]"} {
		if !strings.Contains(stderr, step) {
			t.Errorf("progress lacks %s:\n%s", step, stderr)
		}
	}
	b, err := os.ReadFile(out)
	if err != nil {
		t.Fatalf("report file: %v", err)
	}
	if !strings.Contains(string(b), "primary_matrix:") {
		t.Errorf("report file is not the YAML report:\n%s", b)
	}
}

func TestAnalyzeHistory(t *testing.T) {
	dir := t.TempDir()
	path := simulated(t, dir)
	db := filepath.Join(dir, "ole.db")

	for i := 0; i < 2; i++ {
		if _, stderr, err := execute(t, "analyze", path, "-q", "--db", db); err != nil {
			t.Fatalf("analyze %d: %v\n%s", i, err, stderr)
		}
	}

	stdout, stderr, err := execute(t, "history", "-q", "--db", db)
	if err != nil {
		t.Fatalf("history: %v\n%s", err, stderr)
	}
	if !strings.Contains(stdout, "wall") || !strings.Contains(stdout, "pq") {
		t.Errorf("history lacks the run:\n%s", stdout)
	}

	s, err := store.Open(db)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	runs, err := s.List(context.Background(), 0)
	s.Close()
	if err != nil || len(runs) != 2 {
		t.Fatalf("List = %d runs, %v", len(runs), err)
	}

	if _, stderr, err := execute(t, "history", "rm", runs[0].ID, "-q", "--db", db); err != nil {
		t.Fatalf("history rm: %v\n%s", err, stderr)
	}
	stdout, _, err = execute(t, "history", "-q", "--db", db, "-n", "0")
	if err != nil {
		t.Fatalf("history: %v", err)
	}
	if strings.Contains(stdout, runs[0].ID) || !strings.Contains(stdout, runs[1].ID) {
		t.Errorf("history after rm:\n%s", stdout)
	}
}

func TestStrip(t *testing.T) {
	dir := t.TempDir()
	path := simulated(t, dir)

	stdout, _, err := execute(t, "strip", path)
	if err != nil {
		t.Fatalf("strip: %v", err)
	}
	want := filepath.Join(dir, "wall_stripped.json")
	if !strings.Contains(stdout, want) {
		t.Errorf("strip output = %q, want mention of %s", stdout, want)
	}
	set, err := measurement.Load(want)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if set.Metadata.Software != measurement.StrippedSoftware || set.Metadata.Instrument != "" || set.Metadata.Notes != "" {
		t.Errorf("metadata = %+v", set.Metadata)
	}
	orig, _ := measurement.Load(path)
	if len(set.Measurements) != len(orig.Measurements) {
		t.Errorf("strip changed the readings")
	}
}

func TestStrippedPath(t *testing.T) {
	tests := []struct{ in, want string }{
		{"wall.json", "wall_stripped.json"},
		{filepath.Join("a", "b.yaml"), filepath.Join("a", "b_stripped.yaml")},
		{"my wall (2).csmf", "my_wall_2_stripped.csmf"},
	}
	for _, tt := range tests {
		if got := strippedPath(tt.in); got != tt.want {
			t.Errorf("strippedPath(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestGenerate(t *testing.T) {
	dir := t.TempDir()
	out := filepath.Join(dir, "plan.yaml")
	stdout, _, err := execute(t, "generate", "-q", "--colors", "fast-standard", "-o", out)
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	if !strings.Contains(stdout, "33 test colours") {
		t.Errorf("generate output = %q", stdout)
	}
	set, err := measurement.Load(out)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(set.TestColors) != 33 || len(set.Measurements) != 0 || set.Bits != 10 {
		t.Errorf("plan has %d colours, %d readings, %d bits", len(set.TestColors), len(set.Measurements), set.Bits)
	}
}

func TestConfigFileAndEnv(t *testing.T) {
	dir := t.TempDir()
	path := simulated(t, dir)

	cfg := filepath.Join(dir, "ole.yaml")
	if err := os.WriteFile(cfg, []byte("analyze:\n  format: yaml\n  seed: 3\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	stdout, stderr, err := execute(t, "--config", cfg, "analyze", path, "-q")
	if err != nil {
		t.Fatalf("analyze: %v\n%s", err, stderr)
	}
	if !strings.Contains(stdout, "primary_matrix:") {
		t.Errorf("config file format ignored:\n%s", stdout)
	}

	t.Setenv("OLE_ANALYZE_PRESET", "no-such-preset")
	if _, _, err := execute(t, "analyze", path, "-q"); err == nil || !strings.Contains(err.Error(), "no-such-preset") {
		t.Errorf("environment preset ignored: %v", err)
	}
}

func TestCommandErrors(t *testing.T) {
	dir := t.TempDir()
	path := simulated(t, dir)

	tests := []struct {
		name string
		args []string
	}{
		{"missing file", []string{"analyze", filepath.Join(dir, "none.json"), "-q"}},
		{"unknown preset", []string{"analyze", path, "-q", "--preset", "hdr9000"}},
		{"unknown primaries", []string{"analyze", path, "-q", "--primaries", "xyz"}},
		{"unknown format", []string{"analyze", path, "-q", "--format", "xml"}},
		{"unknown test colours", []string{"simulate", "-q", "--colors", "none", "-o", filepath.Join(dir, "x.json")}},
		{"simulate without output", []string{"simulate", "-q"}},
		{"unsupported extension", []string{"strip", path, filepath.Join(dir, "out.txt")}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, _, err := execute(t, tt.args...); err == nil {
				t.Errorf("%v succeeded", tt.args)
			}
		})
	}
}

func TestMatrix(t *testing.T) {
	stdout, _, err := execute(t, "matrix", "p3")
	if err != nil {
		t.Fatalf("matrix: %v", err)
	}
	for _, want := range []string{"# p3-d65", "RGB -> XYZ:", "XYZ -> RGB:", "white: x=0.3127 y=0.3290"} {
		if !strings.Contains(stdout, want) {
			t.Errorf("matrix output lacks %q:\n%s", want, stdout)
		}
	}
	if _, _, err := execute(t, "matrix", "native"); err == nil {
		t.Error("matrix of the native space succeeded")
	}
}

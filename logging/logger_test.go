package logging

import (
	"bytes"
	"strings"
	"testing"
)

func TestLogger_StepDone(t *testing.T) {
	var buf bytes.Buffer
	l := New(&buf)

	l.Step("estimate", "primaries")
	l.Done("ok")
	l.Step("metrics")
	l.Done("120 samples")

	want := "[estimate] primaries ... → ok\n[metrics] → 120 samples\n"
	if got := buf.String(); got != want {
		t.Fatalf("output = %q, want %q", got, want)
	}
}

func TestLogger_InfoWarn(t *testing.T) {
	var buf bytes.Buffer
	l := New(&buf)

	l.Info("white peak %.1f", 1450.0)
	l.Warn("sample %d excluded", 3)
	l.Warn("sample %d excluded", 9)

	out := buf.String()
	for _, want := range []string{"  • white peak 1450.0\n", "  ⚠ sample 3 excluded\n", "  ⚠ sample 9 excluded\n"} {
		if !strings.Contains(out, want) {
			t.Fatalf("output %q missing %q", out, want)
		}
	}
	if l.Warnings() != 2 {
		t.Fatalf("Warnings() = %d, want 2", l.Warnings())
	}
}

func TestLogger_Nil(t *testing.T) {
	var l *Logger
	l.Step("x")
	l.Done("y")
	l.Info("z")
	l.Warn("w")
	l.Total()
	if l.Warnings() != 0 {
		t.Fatalf("nil logger counted warnings")
	}
}

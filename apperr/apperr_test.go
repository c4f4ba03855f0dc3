package apperr

import (
	"errors"
	"fmt"
	"strings"
	"testing"
)

func TestSentinels_MatchThroughWrapping(t *testing.T) {
	tcs := []struct {
		name string
		err  error
		want error
	}{
		{"domain", Domainf("bad %d", 2), ErrDomain},
		{"insufficient", InsufficientSamples("red", 1, 3), ErrInsufficientSamples},
		{"degenerate", Degeneratef("collinear"), ErrDegenerateGeometry},
	}

	for _, tc := range tcs {
		wrapped := fmt.Errorf("analysis: %w", tc.err)
		if !errors.Is(wrapped, tc.want) {
			t.Fatalf("%s: errors.Is(%v, %v) = false", tc.name, wrapped, tc.want)
		}
		if !IsFatal(wrapped) {
			t.Fatalf("%s: expected fatal", tc.name)
		}
	}
}

func TestInsufficientSamples_As(t *testing.T) {
	err := fmt.Errorf("fit: %w", InsufficientSamples("white", 2, 3))

	var ise *InsufficientSamplesError
	if !errors.As(err, &ise) {
		t.Fatalf("expected *InsufficientSamplesError")
	}
	if ise.Group != "white" || ise.Got != 2 || ise.Need != 3 {
		t.Fatalf("unexpected fields: %+v", ise)
	}
	if !strings.Contains(ise.Error(), `"white"`) {
		t.Fatalf("message should name the group, got %q", ise.Error())
	}
}

func TestSentinels_DoNotCrossMatch(t *testing.T) {
	if errors.Is(Domainf("x"), ErrDegenerateGeometry) {
		t.Fatalf("domain error must not match degenerate sentinel")
	}
	if IsFatal(errors.New("plain")) {
		t.Fatalf("plain error must not be fatal")
	}
}

func TestInvalidSampleWarning_Message(t *testing.T) {
	w := InvalidSampleWarning{Index: 7, Reason: "non-finite XYZ"}
	if got := w.Error(); got != "sample 7 excluded: non-finite XYZ" {
		t.Fatalf("Error() = %q", got)
	}
}

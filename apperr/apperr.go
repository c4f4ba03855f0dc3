// Package apperr defines the error categories used across the analysis.
//
// Error taxonomy
//
//	DomainError              – a vector or data set has the wrong shape
//	                           (not a 3-vector, targets and measurements of
//	                           different lengths, …). Fatal to the run.
//
//	InsufficientSamplesError – a sample group needed by the primary estimator
//	                           has fewer samples than covariance estimation
//	                           requires. Fatal to the run.
//
//	DegenerateGeometryError  – the fitted primaries are collinear or the
//	                           primary matrix is otherwise singular. Fatal.
//
//	InvalidSampleWarning     – one measurement is unusable. It is excluded
//	                           and counted; it is never returned as an error
//	                           from the analysis constructor.
//
// Fatal categories match their sentinel with errors.Is; the concrete types
// can be recovered with errors.As.
package apperr

import (
	"errors"
	"fmt"
)

var (
	ErrDomain              = errors.New("domain error")
	ErrInsufficientSamples = errors.New("insufficient samples")
	ErrDegenerateGeometry  = errors.New("degenerate geometry")
)

// DomainError reports malformed vector shapes or dimensions.
type DomainError struct {
	Message string
}

func (e *DomainError) Error() string { return "domain error: " + e.Message }

func (e *DomainError) Is(target error) bool { return target == ErrDomain }

// Domainf creates a formatted DomainError.
func Domainf(format string, args ...any) error {
	return &DomainError{Message: fmt.Sprintf(format, args...)}
}

// InsufficientSamplesError reports a sample group that is too small to fit.
type InsufficientSamplesError struct {
	Group string
	Got   int
	Need  int
}

func (e *InsufficientSamplesError) Error() string {
	return fmt.Sprintf("insufficient samples in group %q: got %d, need at least %d", e.Group, e.Got, e.Need)
}

func (e *InsufficientSamplesError) Is(target error) bool { return target == ErrInsufficientSamples }

// InsufficientSamples creates an InsufficientSamplesError.
func InsufficientSamples(group string, got, need int) error {
	return &InsufficientSamplesError{Group: group, Got: got, Need: need}
}

// DegenerateGeometryError reports a singular or near-singular primary fit.
type DegenerateGeometryError struct {
	Message string
}

func (e *DegenerateGeometryError) Error() string { return "degenerate geometry: " + e.Message }

func (e *DegenerateGeometryError) Is(target error) bool { return target == ErrDegenerateGeometry }

// Degeneratef creates a formatted DegenerateGeometryError.
func Degeneratef(format string, args ...any) error {
	return &DegenerateGeometryError{Message: fmt.Sprintf(format, args...)}
}

// InvalidSampleWarning describes a measurement excluded from the aggregates.
type InvalidSampleWarning struct {
	Index  int
	Reason string
}

func (w InvalidSampleWarning) Error() string {
	return fmt.Sprintf("sample %d excluded: %s", w.Index, w.Reason)
}

// IsFatal reports whether err belongs to one of the fatal categories.
func IsFatal(err error) bool {
	return errors.Is(err, ErrDomain) ||
		errors.Is(err, ErrInsufficientSamples) ||
		errors.Is(err, ErrDegenerateGeometry)
}

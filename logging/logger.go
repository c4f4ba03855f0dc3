// Package logging provides the terse step/done progress logger used as the
// analysis diagnostics sink.
package logging

import (
	"fmt"
	"io"
	"sync"
	"time"
)

// Logger prints progress lines to a writer. A nil *Logger discards everything.
type Logger struct {
	mu         sync.Mutex
	w          io.Writer
	stepStart  time.Time
	totalStart time.Time
	warnings   int
}

// New creates a logger writing to w
func New(w io.Writer) *Logger {
	return &Logger{
		w:          w,
		totalStart: time.Now(),
	}
}

// Step starts a processing step.
// Format: [name] param ...
func (l *Logger) Step(name string, params ...any) {
	if l == nil {
		return
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	l.stepStart = time.Now()
	if len(params) > 0 {
		fmt.Fprintf(l.w, "[%s] %v ... ", name, params[0])
	} else {
		fmt.Fprintf(l.w, "[%s] ", name)
	}
}

// Done finishes the current step.
// Format: → result (elapsed)
func (l *Logger) Done(result string) {
	if l == nil {
		return
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	elapsed := time.Since(l.stepStart)
	if elapsed > 100*time.Millisecond {
		fmt.Fprintf(l.w, "→ %s (%.2fs)\n", result, elapsed.Seconds())
	} else {
		fmt.Fprintf(l.w, "→ %s\n", result)
	}
}

// Total prints the total elapsed time
func (l *Logger) Total() {
	if l == nil {
		return
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	fmt.Fprintf(l.w, "\n✓ total: %.2fs\n", time.Since(l.totalStart).Seconds())
}

// Info prints an untimed line
func (l *Logger) Info(format string, args ...any) {
	if l == nil {
		return
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	fmt.Fprintf(l.w, "  • "+format+"\n", args...)
}

// Warn prints a warning and counts it
func (l *Logger) Warn(format string, args ...any) {
	if l == nil {
		return
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	l.warnings++
	fmt.Fprintf(l.w, "  ⚠ "+format+"\n", args...)
}

// Warnings returns the number of warnings printed so far
func (l *Logger) Warnings() int {
	if l == nil {
		return 0
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.warnings
}

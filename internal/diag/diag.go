// Package diag implements the compiler's diagnostic subsystem: a
// seqlock-protected "current source location" that any component can
// update before a parse/eval/codegen action and that any other thread
// (a signal handler, a debug-printer goroutine) can read coherently
// without blocking, plus the error-severity classification and exit-code
// policy of §7.
//
// The seqlock is ported from FlashCpp's DiagnosticContext.h: an
// even/odd version counter bumped once before and once after a write,
// with plain (non-atomic) stores of the payload fields in between. A
// reader that observes an odd version, or whose before/after versions
// disagree, gets back an "unknown" location rather than spinning — torn
// reads are rare and cheap to discard, so there is no retry loop.
package diag

import (
	"fmt"
	"sync"
	"sync/atomic"
)

// Location identifies a point in source text.
type Location struct {
	File   string
	Line   int
	Column int
}

// unknownLocation is returned by Current when a read races a write.
var unknownLocation = Location{File: "<unknown>"}

var (
	version atomic.Uint64
	line    int
	column  int
	file    string
)

// SetLocation records the current location. Safe for concurrent callers
// racing with Current; never safe for concurrent callers racing each
// other (the compiler is single-threaded per translation unit per §5, so
// only one writer exists at a time).
func SetLocation(f string, l, c int) {
	version.Add(1) // now odd: critical section open.
	line = l
	column = c
	file = f
	version.Add(1) // now even: critical section closed.
}

// Current returns a coherent snapshot of the current location, or
// unknownLocation if a write was in progress when the read was attempted.
func Current() Location {
	start := version.Load()
	if start&1 != 0 {
		return unknownLocation
	}
	l, c, f := line, column, file
	end := version.Load()
	if start != end {
		return unknownLocation
	}
	return Location{File: f, Line: l, Column: c}
}

// Severity classifies a diagnostic per §7.
type Severity int

const (
	SeverityError Severity = iota
	SeverityWarning
	SeverityInternal
)

// Diagnostic is one reported compiler message, anchored to a Location.
type Diagnostic struct {
	Loc      Location
	Severity Severity
	Message  string
}

func (d Diagnostic) Error() string {
	return fmt.Sprintf("%s:%d:%d: %s", d.Loc.File, d.Loc.Line, d.Loc.Column, d.Message)
}

// Sink collects diagnostics across the lex/preprocess/parse/IR/codegen
// phases. Parser recovery (§4.3, §7) means a phase can report several
// diagnostics and still attempt to keep going; Sink just accumulates them
// for the driver to report and to compute the process exit code from.
type Sink struct {
	mu    sync.Mutex
	diags []Diagnostic
}

// NewSink returns an empty diagnostic Sink.
func NewSink() *Sink {
	return &Sink{}
}

// Report appends a diagnostic, stamped with the current seqlocked location
// unless loc is already populated by the caller.
func (s *Sink) Report(sev Severity, loc Location, format string, args ...interface{}) {
	if loc == (Location{}) {
		loc = Current()
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.diags = append(s.diags, Diagnostic{
		Loc:      loc,
		Severity: sev,
		Message:  fmt.Sprintf(format, args...),
	})
}

// Errorf reports an error-severity diagnostic at the current location.
func (s *Sink) Errorf(loc Location, format string, args ...interface{}) {
	s.Report(SeverityError, loc, format, args...)
}

// Internalf reports an internal-invariant-violation diagnostic (§7
// category 6; maps to exit code 2).
func (s *Sink) Internalf(loc Location, format string, args ...interface{}) {
	s.Report(SeverityInternal, loc, format, args...)
}

// HasErrors reports whether any error- or internal-severity diagnostic was
// recorded.
func (s *Sink) HasErrors() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, d := range s.diags {
		if d.Severity == SeverityError || d.Severity == SeverityInternal {
			return true
		}
	}
	return false
}

// All returns every diagnostic recorded so far, in report order.
func (s *Sink) All() []Diagnostic {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Diagnostic, len(s.diags))
	copy(out, s.diags)
	return out
}

// ExitCode implements §7's exit-code policy: 0 clean, 1 on any
// error-severity diagnostic, 2 on an internal invariant violation.
func (s *Sink) ExitCode() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	code := 0
	for _, d := range s.diags {
		switch d.Severity {
		case SeverityInternal:
			return 2
		case SeverityError:
			code = 1
		}
	}
	return code
}

// Package diag implements Wabbit's shared diagnostic sink: every compiler
// stage reports through it rather than returning Go errors for user-facing
// mistakes, so a later stage can see the full set of problems a file has
// before deciding whether it's safe to run.
package diag

import (
	"fmt"
	"sort"
)

type (
	// Severity is the diagnostic's level. Only Error blocks later stages.
	Severity int

	// Pos is a source position: file name plus 1-based line/column.
	Pos struct {
		File   string
		Line   int
		Col    int
		Offset int
	}

	// Diagnostic is a single reported problem, in the stable format of
	// spec.md §6: "<file>:<line>:<column>: <severity>: <message>".
	Diagnostic struct {
		Pos      Pos
		Severity Severity
		Message  string
	}

	// Sink collects diagnostics for one compilation. It is append-only:
	// stages never remove or reorder what an earlier stage reported.
	Sink struct {
		diags []Diagnostic
	}
)

const (
	Warning Severity = iota
	Error
)

func (s Severity) String() string {
	switch s {
	case Error:
		return "error"
	case Warning:
		return "warning"
	default:
		return "unknown"
	}
}

func (p Pos) String() string {
	return fmt.Sprintf("%s:%d:%d", p.File, p.Line, p.Col)
}

func (d Diagnostic) String() string {
	return fmt.Sprintf("%s: %s: %s", d.Pos, d.Severity, d.Message)
}

// Errorf reports an error-severity diagnostic at pos.
func (s *Sink) Errorf(pos Pos, format string, args ...any) {
	s.report(pos, Error, format, args...)
}

// Warnf reports a warning-severity diagnostic at pos.
func (s *Sink) Warnf(pos Pos, format string, args ...any) {
	s.report(pos, Warning, format, args...)
}

func (s *Sink) report(pos Pos, sev Severity, format string, args ...any) {
	s.diags = append(s.diags, Diagnostic{
		Pos:      pos,
		Severity: sev,
		Message:  fmt.Sprintf(format, args...),
	})
}

// Diagnostics returns all reported diagnostics, ordered by source position.
// Stages don't all discover problems in textual order — the analyzer's
// first pass over top-level declarations can report a duplicate-name error
// at a later position before its second pass reaches an earlier type error
// inside a function body — so callers see a position-sorted view rather
// than raw report order.
func (s *Sink) Diagnostics() []Diagnostic {
	out := make([]Diagnostic, len(s.diags))
	copy(out, s.diags)

	sort.SliceStable(out, func(i, j int) bool {
		a, b := out[i].Pos, out[j].Pos
		if a.Line != b.Line {
			return a.Line < b.Line
		}

		return a.Col < b.Col
	})

	return out
}

// HasErrors reports whether any Error-severity diagnostic was recorded.
// A later pipeline stage must refuse to run when this is true.
func (s *Sink) HasErrors() bool {
	for _, d := range s.diags {
		if d.Severity == Error {
			return true
		}
	}

	return false
}

// ExitCode implements spec.md §6: 0 iff no error diagnostics were produced.
func (s *Sink) ExitCode() int {
	if s.HasErrors() {
		return 1
	}

	return 0
}

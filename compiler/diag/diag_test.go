package diag

import (
	"testing"

	"github.com/nalgeon/be"
)

func TestSinkOrdersByPosition(t *testing.T) {
	s := &Sink{}

	s.Errorf(Pos{File: "a.wb", Line: 5, Col: 1}, "late")
	s.Errorf(Pos{File: "a.wb", Line: 2, Col: 3}, "early")
	s.Warnf(Pos{File: "a.wb", Line: 2, Col: 1}, "earliest")

	got := s.Diagnostics()
	be.Equal(t, len(got), 3)
	be.Equal(t, got[0].Message, "earliest")
	be.Equal(t, got[1].Message, "early")
	be.Equal(t, got[2].Message, "late")
}

func TestHasErrorsIgnoresWarnings(t *testing.T) {
	s := &Sink{}
	s.Warnf(Pos{}, "just a warning")

	be.True(t, !s.HasErrors())
	be.Equal(t, s.ExitCode(), 0)

	s.Errorf(Pos{}, "boom")
	be.True(t, s.HasErrors())
	be.Equal(t, s.ExitCode(), 1)
}

func TestDiagnosticString(t *testing.T) {
	d := Diagnostic{Pos: Pos{File: "x.wb", Line: 3, Col: 7}, Severity: Error, Message: "undefined name \"n\""}
	be.Equal(t, d.String(), `x.wb:3:7: error: undefined name "n"`)
}

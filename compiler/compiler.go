// Package compiler orchestrates Wabbit's pipeline stages: lex, parse,
// analyze, and generate IR. It stops at the first stage that reported
// an error-severity diagnostic, per spec.md §4's stage contract.
package compiler

import (
	"context"
	"os"

	"tlog.app/go/errors"
	"tlog.app/go/tlog"

	"github.com/wabbitlang/wabbit/compiler/ast"
	"github.com/wabbitlang/wabbit/compiler/diag"
	"github.com/wabbitlang/wabbit/compiler/ir"
	"github.com/wabbitlang/wabbit/compiler/irgen"
	"github.com/wabbitlang/wabbit/compiler/parser"
	"github.com/wabbitlang/wabbit/compiler/sema"
)

// Result holds everything a driver might want out of a compilation: the
// parsed (and, if analysis ran, type-annotated) AST, the generated IR —
// nil if any stage failed — and every diagnostic collected along the
// way.
type Result struct {
	File *ast.File
	IR   *ir.Program
	Sink *diag.Sink
}

// CompileFile reads name off disk and compiles it. The returned error
// is only for I/O failures and internal invariant violations; ordinary
// user-facing problems are reported through Result.Sink.
func CompileFile(ctx context.Context, name string) (*Result, error) {
	text, err := os.ReadFile(name)
	if err != nil {
		return nil, errors.Wrap(err, "read file")
	}

	tlog.SpanFromContext(ctx).Printw("read file", "size", len(text), "name", name)

	return Compile(ctx, name, text)
}

// Compile runs the full pipeline over text, named name for diagnostics.
// Like CompileFile, the returned error is only for internal invariant
// violations (an unhandled AST shape, a malformed IR program) — never
// for a user's mistake, which is always reported through Result.Sink.
func Compile(ctx context.Context, name string, text []byte) (*Result, error) {
	tr := tlog.SpanFromContext(ctx)
	sink := &diag.Sink{}

	f := parser.ParseFile(ctx, name, text, sink)
	if sink.HasErrors() {
		tr.Printw("stopped after parse", "errors", len(sink.Diagnostics()))
		return &Result{File: f, Sink: sink}, nil
	}

	an := sema.New(sink)
	if err := an.Analyze(ctx, f); err != nil {
		return nil, errors.Wrap(err, "analyze %v", name)
	}

	if sink.HasErrors() {
		tr.Printw("stopped after analysis", "errors", len(sink.Diagnostics()))
		return &Result{File: f, Sink: sink}, nil
	}

	prog, err := irgen.Generate(ctx, f)
	if err != nil {
		return nil, errors.Wrap(err, "generate ir for %v", name)
	}

	if err := ir.Verify(prog); err != nil {
		return nil, errors.Wrap(err, "verify ir for %v", name)
	}

	return &Result{File: f, IR: prog, Sink: sink}, nil
}

package sema

import (
	"context"
	"testing"

	"github.com/nalgeon/be"

	"github.com/wabbitlang/wabbit/compiler/diag"
	"github.com/wabbitlang/wabbit/compiler/parser"
	"github.com/wabbitlang/wabbit/compiler/types"
)

func analyze(t *testing.T, src string) *diag.Sink {
	t.Helper()

	sink := &diag.Sink{}
	f := parser.ParseFile(context.Background(), "t.wb", []byte(src), sink)
	be.True(t, !sink.HasErrors())

	err := New(sink).Analyze(context.Background(), f)
	be.Err(t, err, nil)

	return sink
}

func TestProgramWithoutMainIsLegal(t *testing.T) {
	sink := analyze(t, "var a int = 2;")
	be.True(t, !sink.HasErrors())
}

func TestUndefinedNameIsAnError(t *testing.T) {
	sink := analyze(t, `
func main() int {
	print x;
	return 0;
}
`)

	be.True(t, sink.HasErrors())
}

func TestMismatchedNumericTypesIsAnError(t *testing.T) {
	sink := analyze(t, `
func main() int {
	var a int = 1;
	var b float = 2.0;
	print a + b;
	return 0;
}
`)

	be.True(t, sink.HasErrors())
}

func TestFunctionFallsOffEndIsAnError(t *testing.T) {
	sink := analyze(t, `
func f() int {
	print 1;
}
`)

	be.True(t, sink.HasErrors())
}

func TestBreakOutsideLoopIsAnError(t *testing.T) {
	sink := analyze(t, `
func main() int {
	break;
	return 0;
}
`)

	be.True(t, sink.HasErrors())
}

func TestConstRequiresConstantInitializer(t *testing.T) {
	sink := analyze(t, `
func f() int { return 1; }
const a int = f();
`)

	be.True(t, sink.HasErrors())
}

func TestMemoryLoadWithoutContextIsAnError(t *testing.T) {
	sink := analyze(t, `
func main() int {
	print ` + "`1000" + `;
	return 0;
}
`)

	be.True(t, sink.HasErrors())
}

func TestMemoryLoadInferredFromVarDecl(t *testing.T) {
	sink := analyze(t, `
func main() int {
	` + "`1000 = 42;" + `
	var x int = ` + "`1000" + `;
	print x;
	return 0;
}
`)

	be.True(t, !sink.HasErrors())
}

func TestShadowingAcrossScopesIsAllowed(t *testing.T) {
	sink := analyze(t, `
var x int = 1;
func main() int {
	var x float = 2.0;
	print x;
	return 0;
}
`)

	be.True(t, !sink.HasErrors())
}

func TestRedeclarationInSameScopeIsAnError(t *testing.T) {
	sink := analyze(t, `
func main() int {
	var x int = 1;
	var x int = 2;
	return 0;
}
`)

	be.True(t, sink.HasErrors())
}

func TestConstantFoldsIntAddition(t *testing.T) {
	sink := &diag.Sink{}
	f := parser.ParseFile(context.Background(), "t.wb", []byte("const a int = 1 + 2;"), sink)
	be.True(t, !sink.HasErrors())

	an := New(sink)
	err := an.Analyze(context.Background(), f)
	be.Err(t, err, nil)
	be.True(t, !sink.HasErrors())

	sym, ok := an.Global().Lookup("a")
	be.True(t, ok)
	be.Equal(t, sym.Type, types.Int)
	be.Equal(t, sym.ConstVal, any(int32(3)))
}

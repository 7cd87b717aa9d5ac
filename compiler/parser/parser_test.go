package parser

import (
	"context"
	"testing"

	"github.com/nalgeon/be"

	"github.com/wabbitlang/wabbit/compiler/ast"
	"github.com/wabbitlang/wabbit/compiler/diag"
)

func parse(t *testing.T, src string) (*ast.File, *diag.Sink) {
	t.Helper()

	sink := &diag.Sink{}
	f := ParseFile(context.Background(), "t.wb", []byte(src), sink)

	return f, sink
}

func TestVarDecl(t *testing.T) {
	f, sink := parse(t, "var a int = 2;")
	be.True(t, !sink.HasErrors())
	be.Equal(t, len(f.Decls), 1)

	d, ok := f.Decls[0].(*ast.VarDecl)
	be.True(t, ok)
	be.Equal(t, d.Name, "a")
}

func TestChainedRelationIsAnError(t *testing.T) {
	_, sink := parse(t, `
func main() int {
	if 2 < 3 < 4 {
		print 1;
	}
	return 0;
}
`)

	be.True(t, sink.HasErrors())
}

func TestMissingSemicolonRecovers(t *testing.T) {
	f, sink := parse(t, `
func main() int {
	var a int = 1
	var b int = 2;
	return a + b;
}
`)

	be.True(t, sink.HasErrors())

	fn := f.Decls[0].(*ast.FuncDecl)
	be.Equal(t, len(fn.Body.Stmts), 3)
}

func TestIfElseIf(t *testing.T) {
	f, sink := parse(t, `
func main() int {
	if 1 == 1 {
		print 1;
	} else if 2 == 2 {
		print 2;
	} else {
		print 3;
	}
	return 0;
}
`)

	be.True(t, !sink.HasErrors())

	fn := f.Decls[0].(*ast.FuncDecl)
	ifStmt := fn.Body.Stmts[0].(*ast.If)
	be.True(t, ifStmt.Else != nil)
	be.Equal(t, len(ifStmt.Else.Stmts), 1)

	_, ok := ifStmt.Else.Stmts[0].(*ast.If)
	be.True(t, ok)
}

func TestNestedFuncIsAnError(t *testing.T) {
	_, sink := parse(t, `
func outer() int {
	func inner() int {
		return 1;
	}
	return 0;
}
`)

	be.True(t, sink.HasErrors())
}

func TestMemoryLoadAndStoreSyntax(t *testing.T) {
	f, sink := parse(t, `
func main() int {
	` + "`1000 = 42;" + `
	return 0;
}
`)

	be.True(t, !sink.HasErrors())

	fn := f.Decls[0].(*ast.FuncDecl)
	assign := fn.Body.Stmts[0].(*ast.Assign)

	_, ok := assign.Target.(*ast.MemLoc)
	be.True(t, ok)
}

func TestUnaryBindsLooseOnPlusMinusCaret(t *testing.T) {
	f, sink := parse(t, "var a int = -1 + 2;")
	be.True(t, !sink.HasErrors())

	d := f.Decls[0].(*ast.VarDecl)
	u, ok := d.Init.(*ast.Unary)
	be.True(t, ok)
	be.Equal(t, u.Op, ast.OpNeg)

	_, ok = u.Operand.(*ast.Binary)
	be.True(t, ok)
}

package irgen

import (
	"context"
	"testing"

	"github.com/nalgeon/be"

	"github.com/wabbitlang/wabbit/compiler/diag"
	"github.com/wabbitlang/wabbit/compiler/ir"
	"github.com/wabbitlang/wabbit/compiler/parser"
	"github.com/wabbitlang/wabbit/compiler/sema"
)

func genProg(t *testing.T, src string) *ir.Program {
	t.Helper()

	sink := &diag.Sink{}
	f := parser.ParseFile(context.Background(), "t.wb", []byte(src), sink)
	be.True(t, !sink.HasErrors())

	err := sema.New(sink).Analyze(context.Background(), f)
	be.Err(t, err, nil)
	be.True(t, !sink.HasErrors())

	p, err := Generate(context.Background(), f)
	be.Err(t, err, nil)

	return p
}

func countOp(instrs []ir.Instr, op ir.Op) int {
	n := 0
	for _, in := range instrs {
		if in.Op == op {
			n++
		}
	}

	return n
}

func mainBody(t *testing.T, p *ir.Program) []ir.Instr {
	t.Helper()

	for _, f := range p.Funcs {
		if f.Name == "main" {
			return f.Body
		}
	}

	t.Fatal("no main function generated")

	return nil
}

func TestAdditionEmitsOneAddiOnePrinti(t *testing.T) {
	p := genProg(t, `
func main() int {
	var a int = 2;
	var b int = 3;
	print a + b;
	return 0;
}
`)

	body := mainBody(t, p)
	be.Equal(t, countOp(body, ir.ADDI), 1)
	be.Equal(t, countOp(body, ir.PRINTI), 1)

	be.Err(t, ir.Verify(p), nil)
}

func TestWhileLoopLowersToLoopNotCbreak(t *testing.T) {
	p := genProg(t, `
func main() int {
	var n int = 0;
	while n < 5 {
		if n == 3 {
			break;
		}
		print n;
		n = n + 1;
	}
	return 0;
}
`)

	body := mainBody(t, p)
	be.Equal(t, countOp(body, ir.LOOP), 1)
	be.Equal(t, countOp(body, ir.ENDLOOP), 1)
	be.Equal(t, countOp(body, ir.NOT), 1)
	be.Equal(t, countOp(body, ir.CBREAK), 2) // loop's own exit check, plus the explicit break

	be.Err(t, ir.Verify(p), nil)
}

func TestShortCircuitOrSkipsDivision(t *testing.T) {
	p := genProg(t, `
func main() int {
	var x int = 10;
	print (x != 0) || (10 / 0 == 0);
	return 0;
}
`)

	body := mainBody(t, p)
	be.Equal(t, countOp(body, ir.DIVI), 1) // still emitted; short-circuit is a runtime property, not a static elision

	// The division sits in the ELSE arm, which runs only when the left
	// operand is false.
	elseAt, divAt, endAt := -1, -1, -1
	for i, in := range body {
		switch in.Op {
		case ir.ELSE:
			elseAt = i
		case ir.DIVI:
			divAt = i
		case ir.ENDIF:
			endAt = i
		}
	}

	be.True(t, elseAt >= 0 && elseAt < divAt && divAt < endAt)
	be.Err(t, ir.Verify(p), nil)
}

func TestMemoryStoreThenLoad(t *testing.T) {
	p := genProg(t, `
func main() int {
	` + "`1000 = 42;" + `
	var x int = ` + "`1000" + `;
	print x;
	return 0;
}
`)

	body := mainBody(t, p)
	be.Equal(t, countOp(body, ir.POKEI), 1)
	be.Equal(t, countOp(body, ir.PEEKI), 1)
	be.Err(t, ir.Verify(p), nil)
}

func TestInitRunsGlobalInitializers(t *testing.T) {
	p := genProg(t, `
var a int = 2;
var b int = a + 1;
func main() int { return 0; }
`)

	var initFn *ir.Func
	for i := range p.Funcs {
		if p.Funcs[i].Name == "__init" {
			initFn = &p.Funcs[i]
		}
	}

	be.True(t, initFn != nil)
	be.Equal(t, countOp(initFn.Body, ir.GLOBAL_SET), 2)
}

// A function sema has already rejected for falling off the end (it
// would never reach irgen in the real pipeline) still lowers to valid,
// RETURN-terminated IR — irgen's own fallback is exercised directly
// here rather than through the full pipeline.
func TestFunctionWithoutExplicitReturnGetsImplicitZero(t *testing.T) {
	sink := &diag.Sink{}
	f := parser.ParseFile(context.Background(), "t.wb", []byte(`
func f() int {
	var x int = 1;
}
`), sink)
	be.True(t, !sink.HasErrors())

	err := sema.New(sink).Analyze(context.Background(), f)
	be.Err(t, err, nil)
	be.True(t, sink.HasErrors()) // falls off the end: sema catches this

	p, err := Generate(context.Background(), f)
	be.Err(t, err, nil)

	for _, fn := range p.Funcs {
		if fn.Name == "f" {
			last := fn.Body[len(fn.Body)-1]
			be.Equal(t, last.Op, ir.RETURN)

			zero := fn.Body[len(fn.Body)-2]
			be.Equal(t, zero.Op, ir.CONSTI)
			be.Equal(t, zero.IntVal, int32(0))
		}
	}
}

package compiler

import (
	"context"
	"testing"

	"github.com/nalgeon/be"

	"github.com/wabbitlang/wabbit/compiler/ir"
)

func TestFibonacciCompiles(t *testing.T) {
	src := `
var LAST int = 10;

func main() int {
	var a int = 1;
	var b int = 1;
	var n int = 0;
	while n < LAST {
		print a;
		var t int = a + b;
		a = b;
		b = t;
		n = n + 1;
	}
	return 0;
}
`

	res, err := Compile(context.Background(), "fib.wb", []byte(src))
	be.Err(t, err, nil)
	be.True(t, !res.Sink.HasErrors())
	be.True(t, res.IR != nil)

	be.Err(t, ir.Verify(res.IR), nil)
}

func TestChainedRelationProducesNoIR(t *testing.T) {
	res, err := Compile(context.Background(), "bad.wb", []byte(`
func main() int {
	if 2 < 3 < 4 {
		print 1;
	}
	return 0;
}
`))

	be.Err(t, err, nil)
	be.True(t, res.Sink.HasErrors())
	be.True(t, res.IR == nil)
}

func TestProgramWithoutMainSynthesizesOne(t *testing.T) {
	res, err := Compile(context.Background(), "nomain.wb", []byte("var a int = 2;"))
	be.Err(t, err, nil)
	be.True(t, !res.Sink.HasErrors())

	found := false
	for _, f := range res.IR.Funcs {
		if f.Name == "main" {
			found = true
		}
	}

	be.True(t, found)
}

func TestDiagnosticFormatIsStable(t *testing.T) {
	res, err := Compile(context.Background(), "undef.wb", []byte(`
func main() int {
	print x;
	return 0;
}
`))

	be.Err(t, err, nil)
	be.True(t, res.Sink.HasErrors())

	d := res.Sink.Diagnostics()[0]
	be.Equal(t, d.Pos.File, "undef.wb")
	be.Equal(t, d.String(), `undef.wb:3:8: error: undefined name "x"`)
}

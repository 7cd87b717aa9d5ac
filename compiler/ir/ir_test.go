package ir

import (
	"strings"
	"testing"

	"github.com/nalgeon/be"

	"github.com/wabbitlang/wabbit/compiler/types"
)

func TestVerifyCatchesUnbalancedIf(t *testing.T) {
	p := &Program{Funcs: []Func{{
		Name: "main",
		Body: []Instr{{Op: IF}},
	}}}

	err := Verify(p)
	be.True(t, err != nil)
}

func TestVerifyCatchesBreakOutsideLoop(t *testing.T) {
	p := &Program{Funcs: []Func{{
		Name: "main",
		Body: []Instr{{Op: CBREAK}},
	}}}

	err := Verify(p)
	be.True(t, err != nil)
}

func TestVerifyAcceptsBalancedNesting(t *testing.T) {
	p := &Program{Funcs: []Func{{
		Name: "main",
		Body: []Instr{
			{Op: LOOP},
			{Op: CONSTI, IntVal: 1},
			{Op: NOT},
			{Op: CBREAK},
			{Op: CONSTI, IntVal: 1},
			{Op: IF},
			{Op: CBREAK},
			{Op: ELSE},
			{Op: ENDIF},
			{Op: ENDLOOP},
			{Op: CONSTI, IntVal: 0},
			{Op: RETURN},
		},
	}}}

	be.Err(t, Verify(p), nil)
}

func TestTextRendersGlobalsAndCalls(t *testing.T) {
	p := &Program{
		Globals: []Global{{Name: "g", Type: types.Int}},
		Funcs: []Func{{
			Name:   "main",
			Return: types.Int,
			Body: []Instr{
				{Op: GLOBAL_GET, Name: "g"},
				{Op: CALL, Name: "f", NArgs: 1},
				{Op: RETURN},
			},
		}},
	}

	text := p.Text()
	be.True(t, strings.Contains(text, "GLOBAL_DECL g int\n"))
	be.True(t, strings.Contains(text, "GLOBAL_GET g\n"))
	be.True(t, strings.Contains(text, "CALL f 1\n"))
}

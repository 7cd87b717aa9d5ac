// Package irgen lowers a type-checked AST into Wabbit's structured IR
// (spec.md §4.4). It assumes the semantic analyzer already ran and
// reported no errors; irgen itself never reports a diagnostic.
package irgen

import (
	"context"

	"tlog.app/go/errors"
	"tlog.app/go/loc"
	"tlog.app/go/tlog"

	"github.com/wabbitlang/wabbit/compiler/ast"
	"github.com/wabbitlang/wabbit/compiler/ir"
	"github.com/wabbitlang/wabbit/compiler/types"
)

const initFuncName = "__init"

// internalErr wraps a compiler-bug condition: an AST shape irgen's own
// switches claim is exhaustive but isn't. Every site that raises one is
// only reachable for an AST that analysis, having run cleanly, should
// never have produced.
type internalErr struct{ error }

func internalf(format string, args ...any) {
	panic(internalErr{errors.New(format, args...)})
}

// Generate lowers f into a Program. A bare Name is told apart as a
// local or global reference purely from whether it's in the current
// function's own locals map — nothing from the analyzer's scope stack
// needs to survive past type checking for that.
//
// The returned error is only ever non-nil for an internal invariant
// violation; Generate assumes the semantic analyzer already ran and
// reported no diagnostics, so it never reports user-facing problems
// itself.
func Generate(ctx context.Context, f *ast.File) (prog *ir.Program, err error) {
	defer func() {
		r := recover()
		if r == nil {
			return
		}

		ie, ok := r.(internalErr)
		if !ok {
			panic(r)
		}

		err = errors.Wrap(ie.error, "internal irgen error")
	}()

	tr := tlog.SpanFromContext(ctx)

	g := &gen{}

	p := &ir.Program{}

	var initBody []ir.Instr

	for _, d := range f.Decls {
		switch d := d.(type) {
		case *ast.VarDecl:
			p.Globals = append(p.Globals, ir.Global{Name: d.Name, Type: d.ResolvedType})
			initBody = append(initBody, g.emitGlobalInit(d)...)
		case *ast.FuncDecl:
			if d.Imported {
				continue
			}

			p.Funcs = append(p.Funcs, g.genFunc(d))
		}
	}

	initBody = append(initBody, ir.Instr{Op: ir.RETURN})

	p.Funcs = append([]ir.Func{{Name: initFuncName, Return: types.Int, Body: initBody}}, p.Funcs...)

	tr.Printw("generated ir", "funcs", len(p.Funcs), "globals", len(p.Globals))

	return p, nil
}

// gen holds per-function lowering state: a name-to-type map of locals
// (params plus declared vars) used to distinguish LOCAL_GET/GLOBAL_GET.
// CBREAK/CONTINUE need no nesting-depth bookkeeping here since they're
// structured: sema already confirmed each is inside some loop, and
// "which loop" doesn't matter to emission the way a jump target would.
type gen struct {
	locals map[string]types.Type
	order  []string // declared (non-parameter) locals, in order of first declaration
}

func (g *gen) emitGlobalInit(d *ast.VarDecl) []ir.Instr {
	g.locals = nil // __init has no locals of its own

	if d.Init == nil {
		return nil
	}

	var out []ir.Instr
	out = append(out, g.emitExpr(d.Init)...)
	out = append(out, ir.Instr{Op: ir.GLOBAL_SET, Name: d.Name})

	return out
}

func (g *gen) genFunc(d *ast.FuncDecl) ir.Func {
	g.locals = map[string]types.Type{}
	g.order = nil

	params := make([]ir.Param, len(d.Params))
	for i, p := range d.Params {
		params[i] = ir.Param{Name: p.Name, Type: p.Type}
		g.locals[p.Name] = p.Type
	}

	body := g.emitBlock(d.Body)

	fn := ir.Func{
		Name:   d.Name,
		Params: params,
		Return: d.ReturnType,
		Body:   body,
	}

	for _, name := range g.order {
		fn.Locals = append(fn.Locals, ir.Local{Name: name, Type: g.locals[name]})
	}

	if !blockReturns(d.Body) {
		fn.Body = append(fn.Body, zeroConst(d.ReturnType), ir.Instr{Op: ir.RETURN})
	}

	return fn
}

func blockReturns(b *ast.Block) bool {
	if len(b.Stmts) == 0 {
		return false
	}

	switch last := b.Stmts[len(b.Stmts)-1].(type) {
	case *ast.Return:
		return true
	case *ast.If:
		return last.Else != nil && blockReturns(last.Then) && blockReturns(last.Else)
	default:
		return false
	}
}

func zeroConst(t types.Type) ir.Instr {
	switch t {
	case types.Int:
		return ir.Instr{Op: ir.CONSTI, IntVal: 0}
	case types.Float:
		return ir.Instr{Op: ir.CONSTF, FloatVal: 0}
	case types.Char:
		return ir.Instr{Op: ir.CONSTC, CharVal: 0}
	case types.Bool:
		return ir.Instr{Op: ir.CONSTB, BoolVal: false}
	default:
		return ir.Instr{Op: ir.CONSTI, IntVal: 0}
	}
}

func (g *gen) emitBlock(b *ast.Block) []ir.Instr {
	var out []ir.Instr
	for _, s := range b.Stmts {
		out = append(out, g.emitStmt(s)...)
	}

	return out
}

func (g *gen) emitStmt(s ast.Stmt) []ir.Instr {
	switch s := s.(type) {
	case *ast.VarDecl:
		return g.emitLocalDecl(s)
	case *ast.Assign:
		return g.emitAssign(s)
	case *ast.If:
		return g.emitIf(s)
	case *ast.While:
		return g.emitWhile(s)
	case *ast.Break:
		return []ir.Instr{{Op: ir.CONSTB, BoolVal: true}, {Op: ir.CBREAK}}
	case *ast.Continue:
		return []ir.Instr{{Op: ir.CONTINUE}}
	case *ast.Return:
		out := g.emitExpr(s.Value)
		return append(out, ir.Instr{Op: ir.RETURN})
	case *ast.Print:
		out := g.emitExpr(s.Value)
		return append(out, ir.Instr{Op: printOp(s.Value.ResolvedType())})
	case *ast.ExpressionStmt:
		out := g.emitExpr(s.Call)
		return out
	case *ast.FuncDecl:
		return nil
	default:
		internalf("unhandled statement %T", s)
		return nil
	}
}

func printOp(t types.Type) ir.Op {
	switch t {
	case types.Int:
		return ir.PRINTI
	case types.Float:
		return ir.PRINTF
	case types.Char:
		return ir.PRINTC
	case types.Bool:
		return ir.PRINTB
	default:
		return ir.PRINTI
	}
}

func (g *gen) emitLocalDecl(d *ast.VarDecl) []ir.Instr {
	if _, seen := g.locals[d.Name]; !seen {
		g.order = append(g.order, d.Name)
	}

	g.locals[d.Name] = d.ResolvedType

	if d.Init == nil {
		return nil
	}

	out := g.emitExpr(d.Init)
	return append(out, ir.Instr{Op: ir.LOCAL_SET, Name: d.Name})
}

func (g *gen) emitAssign(s *ast.Assign) []ir.Instr {
	switch target := s.Target.(type) {
	case *ast.NameLoc:
		out := g.emitExpr(s.Value)
		if g.isLocal(target.Ident) {
			return append(out, ir.Instr{Op: ir.LOCAL_SET, Name: target.Ident})
		}

		return append(out, ir.Instr{Op: ir.GLOBAL_SET, Name: target.Ident})
	case *ast.MemLoc:
		// Store order is value, then address, then POKE<T>.
		out := g.emitExpr(s.Value)
		out = append(out, g.emitExpr(target.Addr)...)

		return append(out, ir.Instr{Op: pokeOp(s.Value.ResolvedType())})
	default:
		internalf("unhandled assignment target %T", target)
		return nil
	}
}

func pokeOp(t types.Type) ir.Op {
	switch t {
	case types.Int:
		return ir.POKEI
	case types.Float:
		return ir.POKEF
	case types.Char:
		return ir.POKEC
	case types.Bool:
		return ir.POKEB
	default:
		return ir.POKEI
	}
}

func peekOp(t types.Type) ir.Op {
	switch t {
	case types.Int:
		return ir.PEEKI
	case types.Float:
		return ir.PEEKF
	case types.Char:
		return ir.PEEKC
	case types.Bool:
		return ir.PEEKB
	default:
		return ir.PEEKI
	}
}

// emitIf always emits a matching ELSE, empty when the source has no
// else clause — the block markers must balance even then.
func (g *gen) emitIf(s *ast.If) []ir.Instr {
	tlog.Printw("emit if", "pos", s.Pos, "has_else", s.Else != nil, "from", loc.Callers(1, 3))

	out := g.emitExpr(s.Cond)
	out = append(out, ir.Instr{Op: ir.IF})
	out = append(out, g.emitBlock(s.Then)...)
	out = append(out, ir.Instr{Op: ir.ELSE})

	if s.Else != nil {
		out = append(out, g.emitBlock(s.Else)...)
	}

	out = append(out, ir.Instr{Op: ir.ENDIF})

	return out
}

// emitWhile lowers `while cond { body }` to `LOOP; cond; NOT; CBREAK;
// body; ENDLOOP`: CBREAK pops a bool and exits the loop when it's
// true, so the condition is inverted before the check.
func (g *gen) emitWhile(s *ast.While) []ir.Instr {
	tlog.Printw("emit while", "pos", s.Pos, "from", loc.Callers(1, 3))

	var out []ir.Instr
	out = append(out, ir.Instr{Op: ir.LOOP})
	out = append(out, g.emitExpr(s.Cond)...)
	out = append(out, ir.Instr{Op: ir.NOT})
	out = append(out, ir.Instr{Op: ir.CBREAK})
	out = append(out, g.emitBlock(s.Body)...)
	out = append(out, ir.Instr{Op: ir.ENDLOOP})

	return out
}

func (g *gen) isLocal(name string) bool {
	_, ok := g.locals[name]
	return ok
}

func (g *gen) emitExpr(e ast.Expr) []ir.Instr {
	switch n := e.(type) {
	case *ast.Integer:
		return []ir.Instr{{Op: ir.CONSTI, IntVal: n.Value}}
	case *ast.Float:
		return []ir.Instr{{Op: ir.CONSTF, FloatVal: n.Value}}
	case *ast.Char:
		return []ir.Instr{{Op: ir.CONSTC, CharVal: n.Value}}
	case *ast.Bool:
		return []ir.Instr{{Op: ir.CONSTB, BoolVal: n.Value}}
	case *ast.Name:
		if g.isLocal(n.Ident) {
			return []ir.Instr{{Op: ir.LOCAL_GET, Name: n.Ident}}
		}

		return []ir.Instr{{Op: ir.GLOBAL_GET, Name: n.Ident}}
	case *ast.Binary:
		return g.emitBinary(n)
	case *ast.Unary:
		return g.emitUnary(n)
	case *ast.Cast:
		return g.emitCast(n)
	case *ast.Call:
		return g.emitCall(n)
	default:
		internalf("unhandled expression %T", e)
		return nil
	}
}

// emitBinary emits operands in source order, post-order, per spec.md
// §4.4. && and || are lowered to IF/ELSE rather than emitted as a
// binary opcode, since Wabbit's boolean operators short-circuit: the
// right operand's side effects (a memory load, say) must not run when
// the left operand already decided the result.
func (g *gen) emitBinary(n *ast.Binary) []ir.Instr {
	switch n.Op {
	case ast.OpAnd:
		out := g.emitExpr(n.Lhs)
		out = append(out, ir.Instr{Op: ir.IF})
		out = append(out, g.emitExpr(n.Rhs)...)
		out = append(out, ir.Instr{Op: ir.ELSE})
		out = append(out, ir.Instr{Op: ir.CONSTB, BoolVal: false})
		out = append(out, ir.Instr{Op: ir.ENDIF})

		return out
	case ast.OpOr:
		out := g.emitExpr(n.Lhs)
		out = append(out, ir.Instr{Op: ir.IF})
		out = append(out, ir.Instr{Op: ir.CONSTB, BoolVal: true})
		out = append(out, ir.Instr{Op: ir.ELSE})
		out = append(out, g.emitExpr(n.Rhs)...)
		out = append(out, ir.Instr{Op: ir.ENDIF})

		return out
	}

	out := g.emitExpr(n.Lhs)
	out = append(out, g.emitExpr(n.Rhs)...)
	out = append(out, ir.Instr{Op: binOp(n.Op, n.Lhs.ResolvedType())})

	return out
}

func binOp(op ast.BinOp, operandType types.Type) ir.Op {
	switch operandType {
	case types.Int:
		switch op {
		case ast.OpAdd:
			return ir.ADDI
		case ast.OpSub:
			return ir.SUBI
		case ast.OpMul:
			return ir.MULI
		case ast.OpDiv:
			return ir.DIVI
		case ast.OpLt:
			return ir.LTI
		case ast.OpLe:
			return ir.LEI
		case ast.OpGt:
			return ir.GTI
		case ast.OpGe:
			return ir.GEI
		case ast.OpEq:
			return ir.EQI
		case ast.OpNe:
			return ir.NEI
		}
	case types.Float:
		switch op {
		case ast.OpAdd:
			return ir.ADDF
		case ast.OpSub:
			return ir.SUBF
		case ast.OpMul:
			return ir.MULF
		case ast.OpDiv:
			return ir.DIVF
		case ast.OpLt:
			return ir.LTF
		case ast.OpLe:
			return ir.LEF
		case ast.OpGt:
			return ir.GTF
		case ast.OpGe:
			return ir.GEF
		case ast.OpEq:
			return ir.EQF
		case ast.OpNe:
			return ir.NEF
		}
	case types.Char:
		switch op {
		case ast.OpLt:
			return ir.LTC
		case ast.OpLe:
			return ir.LEC
		case ast.OpGt:
			return ir.GTC
		case ast.OpGe:
			return ir.GEC
		case ast.OpEq:
			return ir.EQC
		case ast.OpNe:
			return ir.NEC
		}
	case types.Bool:
		switch op {
		case ast.OpEq:
			return ir.EQB
		case ast.OpNe:
			return ir.NEB
		}
	}

	return ir.OpNop
}

func (g *gen) emitUnary(n *ast.Unary) []ir.Instr {
	switch n.Op {
	case ast.OpPos:
		return g.emitExpr(n.Operand)
	case ast.OpNeg:
		out := g.emitExpr(n.Operand)
		if n.Operand.ResolvedType() == types.Float {
			return append(out, ir.Instr{Op: ir.NEGF})
		}

		return append(out, ir.Instr{Op: ir.NEGI})
	case ast.OpNot:
		out := g.emitExpr(n.Operand)
		return append(out, ir.Instr{Op: ir.NOT})
	case ast.OpGrow:
		out := g.emitExpr(n.Operand)
		return append(out, ir.Instr{Op: ir.GROW})
	case ast.OpMemRef:
		out := g.emitExpr(n.Operand)
		return append(out, ir.Instr{Op: peekOp(n.ResolvedType())})
	default:
		internalf("unhandled unary operator %s", n.Op)
		return nil
	}
}

func (g *gen) emitCast(n *ast.Cast) []ir.Instr {
	out := g.emitExpr(n.Value)

	from := n.Value.ResolvedType()
	if from == n.Target {
		return out
	}

	if n.Target == types.Float {
		return append(out, ir.Instr{Op: ir.ITOF})
	}

	return append(out, ir.Instr{Op: ir.FTOI})
}

func (g *gen) emitCall(n *ast.Call) []ir.Instr {
	var out []ir.Instr
	for _, arg := range n.Args {
		out = append(out, g.emitExpr(arg)...)
	}

	out = append(out, ir.Instr{Op: ir.CALL, Name: n.Name, NArgs: len(n.Args)})

	return out
}

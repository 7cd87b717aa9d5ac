// Package sema implements Wabbit's semantic analyzer (spec.md §4.3): one
// bottom-up walk that resolves names, assigns a type to every expression,
// validates statements, and folds constant expressions. It runs as a
// two-pass walk over top-level declarations so forward references,
// including self- and mutual recursion between functions, resolve.
package sema

import (
	"context"

	"tlog.app/go/errors"
	"tlog.app/go/loc"
	"tlog.app/go/tlog"

	"github.com/wabbitlang/wabbit/compiler/ast"
	"github.com/wabbitlang/wabbit/compiler/diag"
	"github.com/wabbitlang/wabbit/compiler/types"
)

// Analyzer holds the mutable state of one analysis pass: the scope
// stack, the current function's return type (for `return` checks), and
// the current loop nesting depth (for `break`/`continue` checks) — kept
// as fields of a single stage object, per spec.md §9's design note, not
// as process-wide state.
type Analyzer struct {
	sink   *diag.Sink
	global *Scope
	cur    *Scope

	loopDepth int
	retType   types.Type
	inFunc    bool
}

// New creates an Analyzer reporting to sink.
func New(sink *diag.Sink) *Analyzer {
	return &Analyzer{sink: sink}
}

func (a *Analyzer) errf(pos diag.Pos, format string, args ...any) {
	a.sink.Errorf(pos, format, args...)
}

// internalErr wraps a compiler-bug condition: an AST shape the analyzer's
// own switches claim is exhaustive but isn't. It's never constructed for
// anything a user's source text can trigger; those go through errf into
// the sink instead.
type internalErr struct{ error }

// internalf panics with an internalErr, caught by Analyze's recover. Used
// only from "this AST variant is impossible" default branches: an
// invariant violation is a compiler bug, not a user mistake, so it
// propagates as a Go error rather than a diagnostic (spec.md §7's
// Internal error kind).
func internalf(format string, args ...any) {
	panic(internalErr{errors.New(format, args...)})
}

// Global returns the resolved global scope, populated after Analyze
// runs.
func (a *Analyzer) Global() *Scope {
	return a.global
}

// Analyze performs the two-pass walk described in spec.md §4.3 and, if
// the file declares no `main`, synthesizes an empty one returning 0 so
// that global initializers still have somewhere to run ahead of.
//
// The returned error is only ever non-nil for an internal invariant
// violation (an "impossible" AST shape); ordinary user-facing problems
// are reported through the sink passed to New, never through this
// return value.
func (a *Analyzer) Analyze(ctx context.Context, f *ast.File) (err error) {
	defer func() {
		r := recover()
		if r == nil {
			return
		}

		ie, ok := r.(internalErr)
		if !ok {
			panic(r)
		}

		err = errors.Wrap(ie.error, "internal analyzer error")
	}()

	tr := tlog.SpanFromContext(ctx)

	a.global = NewGlobalScope()
	a.cur = a.global

	for _, d := range f.Decls {
		a.declareTopLevel(d)
	}

	for _, d := range f.Decls {
		a.checkTopLevel(d)
	}

	if _, ok := a.global.Lookup("main"); !ok {
		main := synthMain()
		a.global.Define(&Symbol{
			Name: "main",
			Kind: SymFunc,
			Sig:  types.Func{Return: types.Int},
		})
		f.Decls = append(f.Decls, main)

		tr.Printw("synthesized empty main")
	}

	tr.Printw("analyzed file", "decls", len(f.Decls), "errors", a.sink.HasErrors())

	return nil
}

// synthMain builds `func main() int { return 0; }`, matching spec.md
// §4.3's "program without main is legal" rule.
func synthMain() *ast.FuncDecl {
	return &ast.FuncDecl{
		Name:       "main",
		ReturnType: types.Int,
		Body: &ast.Block{
			Stmts: []ast.Stmt{
				&ast.Return{
					Value: &ast.Integer{ExprBase: ast.ExprBase{Type: types.Int}, Value: 0},
				},
			},
		},
	}
}

func paramTypes(ps []ast.Param) []types.Type {
	out := make([]types.Type, len(ps))
	for i, p := range ps {
		out[i] = p.Type
	}

	return out
}

// ---- pass 1: forward declarations ----

func (a *Analyzer) declareTopLevel(d ast.Stmt) {
	switch d := d.(type) {
	case *ast.FuncDecl:
		kind := SymFunc
		if d.Imported {
			kind = SymImportedFunc
		}

		sym := &Symbol{
			Name: d.Name,
			Kind: kind,
			Sig:  types.Func{Params: paramTypes(d.Params), Return: d.ReturnType},
			Pos:  d.Pos,
		}

		if !a.global.Define(sym) {
			a.errf(d.Pos, "%q is already declared", d.Name)
		}
	case *ast.VarDecl:
		kind := SymVar
		if d.Kind == ast.DeclConst {
			kind = SymConst
		}

		sym := &Symbol{
			Name:    d.Name,
			Kind:    kind,
			Type:    d.DeclaredType, // Unresolved until pass 2 infers it
			Mutable: d.Kind == ast.DeclVar,
			Storage: Global,
			Pos:     d.Pos,
		}

		if !a.global.Define(sym) {
			a.errf(d.Pos, "%q is already declared", d.Name)
		}
	}
}

// ---- pass 2: bodies and initializers, in source order ----

func (a *Analyzer) checkTopLevel(d ast.Stmt) {
	switch d := d.(type) {
	case *ast.VarDecl:
		a.checkVarDecl(d)
	case *ast.FuncDecl:
		if !d.Imported {
			a.checkFuncBody(d)
		}
	}
}

func (a *Analyzer) checkVarDecl(d *ast.VarDecl) {
	sym, ok := a.cur.Lookup(d.Name)
	if !ok {
		// Globals are defined by declareTopLevel and locals by checkStmt
		// before this runs, so the lookup normally succeeds; this only
		// builds a symbol when no definition was made.
		kind := SymVar
		if d.Kind == ast.DeclConst {
			kind = SymConst
		}

		sym = &Symbol{Name: d.Name, Kind: kind, Mutable: d.Kind == ast.DeclVar, Pos: d.Pos}
		if a.cur.IsGlobal() {
			sym.Storage = Global
		} else {
			sym.Storage = Local
		}
	}

	declType := d.DeclaredType
	var finalType types.Type
	var foldVal any

	switch {
	case d.Init == nil:
		finalType = declType
		if finalType == types.Unresolved {
			finalType = types.Error
		}
	case declType != types.Unresolved:
		vt, fv := a.checkExpr(d.Init, declType)
		if vt != declType && vt != types.Error {
			a.errf(d.Pos, "cannot initialize %q of type %s with a value of type %s", d.Name, declType, vt)
			finalType = types.Error
		} else {
			finalType = declType
			foldVal = fv
		}
	default:
		vt, fv := a.checkExpr(d.Init, types.Unresolved)
		finalType = vt
		foldVal = fv
	}

	if d.Kind == ast.DeclConst && d.Init != nil && foldVal == nil {
		a.errf(d.Pos, "const %q initializer is not a constant expression", d.Name)
	}

	sym.Type = finalType
	sym.ConstVal = foldVal
	d.ResolvedType = finalType
}

func (a *Analyzer) checkFuncBody(d *ast.FuncDecl) {
	funcScope := a.global.PushFunc()
	a.cur = funcScope

	seen := map[string]bool{}
	for _, p := range d.Params {
		if seen[p.Name] {
			a.errf(d.Pos, "duplicate parameter name %q", p.Name)
			continue
		}

		seen[p.Name] = true
		funcScope.Define(&Symbol{Name: p.Name, Kind: SymParam, Type: p.Type, Mutable: true, Storage: Local, Pos: d.Pos})
	}

	prevRet, prevIn := a.retType, a.inFunc
	a.retType, a.inFunc = d.ReturnType, true

	a.checkBlock(d.Body)

	if !blockTerminates(d.Body) {
		a.errf(d.Pos, "function %q falls off the end without returning", d.Name)
	}

	a.retType, a.inFunc = prevRet, prevIn
	a.cur = a.global
}

// blockTerminates is the conservative "does every path return" check
// from spec.md §4.3: the final statement must be a return, or an
// if/else whose both branches terminate.
func blockTerminates(b *ast.Block) bool {
	if len(b.Stmts) == 0 {
		return false
	}

	switch last := b.Stmts[len(b.Stmts)-1].(type) {
	case *ast.Return:
		return true
	case *ast.If:
		return last.Else != nil && blockTerminates(last.Then) && blockTerminates(last.Else)
	default:
		return false
	}
}

func (a *Analyzer) checkBlock(b *ast.Block) {
	outer := a.cur
	a.cur = outer.PushBlock()

	for _, s := range b.Stmts {
		a.checkStmt(s)
	}

	a.cur = outer
}

func (a *Analyzer) checkStmt(s ast.Stmt) {
	switch s := s.(type) {
	case *ast.VarDecl:
		if a.cur.DefinedHere(s.Name) {
			a.errf(s.Pos, "%q is already declared in this scope", s.Name)
			return
		}

		kind := SymVar
		if s.Kind == ast.DeclConst {
			kind = SymConst
		}

		a.cur.Define(&Symbol{Name: s.Name, Kind: kind, Mutable: s.Kind == ast.DeclVar, Storage: Local, Pos: s.Pos})
		a.checkVarDecl(s)
	case *ast.FuncDecl:
		// The parser already flagged a nested `func`; nothing further
		// to check — cascade suppression.
	case *ast.Assign:
		a.checkAssign(s)
	case *ast.If:
		tlog.Printw("check if", "pos", s.Pos, "has_else", s.Else != nil, "from", loc.Callers(1, 3))
		a.checkCond(s.Cond)
		a.checkBlock(s.Then)
		if s.Else != nil {
			a.checkBlock(s.Else)
		}
	case *ast.While:
		tlog.Printw("check while", "pos", s.Pos, "loop_depth", a.loopDepth+1, "from", loc.Callers(1, 3))
		a.checkCond(s.Cond)
		a.loopDepth++
		a.checkBlock(s.Body)
		a.loopDepth--
	case *ast.Break:
		if a.loopDepth == 0 {
			a.errf(s.Pos, "break outside of a loop")
		}
	case *ast.Continue:
		if a.loopDepth == 0 {
			a.errf(s.Pos, "continue outside of a loop")
		}
	case *ast.Return:
		vt, _ := a.checkExpr(s.Value, a.retType)
		if vt != a.retType && vt != types.Error {
			a.errf(s.Pos, "return type %s does not match function's declared return type %s", vt, a.retType)
		}
	case *ast.Print:
		a.checkExpr(s.Value, types.Unresolved)
	case *ast.ExpressionStmt:
		a.checkExpr(s.Call, types.Unresolved)
	default:
		internalf("unhandled statement %T", s)
	}
}

func (a *Analyzer) checkCond(e ast.Expr) {
	t, _ := a.checkExpr(e, types.Bool)
	if t != types.Bool && t != types.Error {
		a.errf(exprPos(e), "condition must be bool, got %s", t)
	}
}

func (a *Analyzer) checkAssign(s *ast.Assign) {
	switch target := s.Target.(type) {
	case *ast.NameLoc:
		sym, ok := a.cur.Lookup(target.Ident)
		if !ok {
			a.errf(s.Pos, "undefined name %q", target.Ident)
			a.checkExpr(s.Value, types.Unresolved)
			return
		}

		switch sym.Kind {
		case SymConst:
			a.errf(s.Pos, "cannot assign to const %q", target.Ident)
		case SymFunc, SymImportedFunc:
			a.errf(s.Pos, "cannot assign to function %q", target.Ident)
		}

		vt, _ := a.checkExpr(s.Value, sym.Type)
		if sym.Type != types.Unresolved && vt != sym.Type && vt != types.Error {
			a.errf(s.Pos, "cannot assign value of type %s to %q of type %s", vt, target.Ident, sym.Type)
		}
	case *ast.MemLoc:
		at, _ := a.checkExpr(target.Addr, types.Int)
		if at != types.Int && at != types.Error {
			a.errf(s.Pos, "memory address must be int, got %s", at)
		}

		a.checkExpr(s.Value, types.Unresolved)
	default:
		internalf("unhandled assignment target %T", target)
	}
}

// ---- expressions ----

// checkExpr assigns a type to e, resolves names, and attempts constant
// folding. expected threads the "what type does the surrounding
// expression want" context used to type backtick loads (spec.md §4.3);
// pass types.Unresolved when there is no such context.
func (a *Analyzer) checkExpr(e ast.Expr, expected types.Type) (types.Type, any) {
	t, fold := a.checkExprInner(e, expected)
	e.SetResolvedType(t)

	return t, fold
}

func (a *Analyzer) checkExprInner(e ast.Expr, expected types.Type) (types.Type, any) {
	switch n := e.(type) {
	case *ast.Integer:
		return types.Int, n.Value
	case *ast.Float:
		return types.Float, n.Value
	case *ast.Char:
		return types.Char, n.Value
	case *ast.Bool:
		return types.Bool, n.Value
	case *ast.Name:
		return a.checkName(n)
	case *ast.Binary:
		return a.checkBinary(n)
	case *ast.Unary:
		return a.checkUnary(n, expected)
	case *ast.Cast:
		return a.checkCast(n)
	case *ast.Call:
		return a.checkCall(n)
	default:
		internalf("unhandled expression %T", e)
		return types.Error, nil
	}
}

func (a *Analyzer) checkName(n *ast.Name) (types.Type, any) {
	sym, ok := a.cur.Lookup(n.Ident)
	if !ok {
		a.errf(n.Pos, "undefined name %q", n.Ident)
		return types.Error, nil
	}

	switch sym.Kind {
	case SymFunc, SymImportedFunc:
		a.errf(n.Pos, "%q is a function, not a value", n.Ident)
		return types.Error, nil
	}

	if sym.Type == types.Unresolved {
		a.errf(n.Pos, "%q used before its type is known", n.Ident)
		return types.Error, nil
	}

	if sym.Kind == SymConst {
		return sym.Type, sym.ConstVal
	}

	return sym.Type, nil
}

func (a *Analyzer) checkBinary(n *ast.Binary) (types.Type, any) {
	lIsMem := isMemRef(n.Lhs)
	rIsMem := isMemRef(n.Rhs)

	var lt, rt types.Type
	var lv, rv any

	switch {
	case lIsMem && !rIsMem:
		rt, rv = a.checkExpr(n.Rhs, types.Unresolved)
		lt, lv = a.checkExpr(n.Lhs, rt)
	case rIsMem && !lIsMem:
		lt, lv = a.checkExpr(n.Lhs, types.Unresolved)
		rt, rv = a.checkExpr(n.Rhs, lt)
	default:
		lt, lv = a.checkExpr(n.Lhs, types.Unresolved)
		rt, rv = a.checkExpr(n.Rhs, types.Unresolved)
	}

	if lt == types.Error || rt == types.Error {
		return types.Error, nil
	}

	switch n.Op {
	case ast.OpAdd, ast.OpSub, ast.OpMul, ast.OpDiv:
		if lt != rt || !lt.IsNumeric() {
			a.errf(n.Pos, "operator %s requires two operands of the same numeric type, got %s and %s", n.Op, lt, rt)
			return types.Error, nil
		}

		if n.Op == ast.OpDiv {
			return lt, nil // division is never folded, even when total
		}

		if fv, ok := foldBinary(n.Op, lv, rv); ok {
			return lt, fv
		}

		return lt, nil
	case ast.OpLt, ast.OpLe, ast.OpGt, ast.OpGe, ast.OpEq, ast.OpNe:
		if lt != rt {
			a.errf(n.Pos, "operator %s requires two operands of the same type, got %s and %s", n.Op, lt, rt)
			return types.Error, nil
		}

		if lt == types.Bool && (n.Op == ast.OpLt || n.Op == ast.OpLe || n.Op == ast.OpGt || n.Op == ast.OpGe) {
			a.errf(n.Pos, "bool only supports == != && || !")
			return types.Error, nil
		}

		if fv, ok := foldBinary(n.Op, lv, rv); ok {
			return types.Bool, fv
		}

		return types.Bool, nil
	case ast.OpAnd, ast.OpOr:
		if lt != types.Bool || rt != types.Bool {
			a.errf(n.Pos, "operator %s requires bool operands, got %s and %s", n.Op, lt, rt)
			return types.Error, nil
		}

		if fv, ok := foldBinary(n.Op, lv, rv); ok {
			return types.Bool, fv
		}

		return types.Bool, nil
	default:
		internalf("unhandled binary operator %s", n.Op)
		return types.Error, nil
	}
}

func isMemRef(e ast.Expr) bool {
	u, ok := e.(*ast.Unary)
	return ok && u.Op == ast.OpMemRef
}

func (a *Analyzer) checkUnary(n *ast.Unary, expected types.Type) (types.Type, any) {
	switch n.Op {
	case ast.OpPos, ast.OpNeg:
		t, v := a.checkExpr(n.Operand, types.Unresolved)
		if t == types.Error {
			return types.Error, nil
		}

		if !t.IsNumeric() {
			a.errf(n.Pos, "unary %s requires a numeric operand, got %s", n.Op, t)
			return types.Error, nil
		}

		fv, ok := foldUnary(n.Op, v)
		if !ok {
			return t, nil
		}

		return t, fv
	case ast.OpNot:
		t, v := a.checkExpr(n.Operand, types.Bool)
		if t == types.Error {
			return types.Error, nil
		}

		if t != types.Bool {
			a.errf(n.Pos, "unary ! requires a bool operand, got %s", t)
			return types.Error, nil
		}

		fv, ok := foldUnary(n.Op, v)
		if !ok {
			return types.Bool, nil
		}

		return types.Bool, fv
	case ast.OpGrow:
		t, _ := a.checkExpr(n.Operand, types.Int)
		if t != types.Int && t != types.Error {
			a.errf(n.Pos, "^ requires an int operand, got %s", t)
			return types.Error, nil
		}

		return types.Int, nil
	case ast.OpMemRef:
		at, _ := a.checkExpr(n.Operand, types.Int)
		if at != types.Int && at != types.Error {
			a.errf(n.Pos, "memory address must be int, got %s", at)
		}

		if expected == types.Unresolved {
			a.errf(n.Pos, "memory load without inferable context")
			return types.Error, nil
		}

		return expected, nil
	default:
		internalf("unhandled unary operator %s", n.Op)
		return types.Error, nil
	}
}

func (a *Analyzer) checkCast(n *ast.Cast) (types.Type, any) {
	t, v := a.checkExpr(n.Value, types.Unresolved)
	if t == types.Error {
		return types.Error, nil
	}

	if !t.IsNumeric() {
		a.errf(n.Pos, "cannot cast a %s value", t)
		return types.Error, nil
	}

	fv, ok := foldCast(n.Target, v)
	if !ok {
		return n.Target, nil
	}

	return n.Target, fv
}

func (a *Analyzer) checkCall(n *ast.Call) (types.Type, any) {
	sym, ok := a.cur.Lookup(n.Name)
	if !ok {
		a.errf(n.Pos, "undefined function %q", n.Name)

		for _, arg := range n.Args {
			a.checkExpr(arg, types.Unresolved)
		}

		return types.Error, nil
	}

	if sym.Kind != SymFunc && sym.Kind != SymImportedFunc {
		a.errf(n.Pos, "%q is not a function", n.Name)
		return types.Error, nil
	}

	if len(n.Args) != len(sym.Sig.Params) {
		a.errf(n.Pos, "%q expects %d argument(s), got %d", n.Name, len(sym.Sig.Params), len(n.Args))

		for _, arg := range n.Args {
			a.checkExpr(arg, types.Unresolved)
		}

		return sym.Sig.Return, nil
	}

	for i, arg := range n.Args {
		at, _ := a.checkExpr(arg, sym.Sig.Params[i])
		if at != sym.Sig.Params[i] && at != types.Error {
			a.errf(n.Pos, "%q argument %d: expected %s, got %s", n.Name, i+1, sym.Sig.Params[i], at)
		}
	}

	return sym.Sig.Return, nil
}

func exprPos(e ast.Expr) diag.Pos {
	switch n := e.(type) {
	case *ast.Integer:
		return n.Pos
	case *ast.Float:
		return n.Pos
	case *ast.Char:
		return n.Pos
	case *ast.Bool:
		return n.Pos
	case *ast.Name:
		return n.Pos
	case *ast.Binary:
		return n.Pos
	case *ast.Unary:
		return n.Pos
	case *ast.Cast:
		return n.Pos
	case *ast.Call:
		return n.Pos
	default:
		internalf("unhandled expression %T", e)
		return diag.Pos{}
	}
}

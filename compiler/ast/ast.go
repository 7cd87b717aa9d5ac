// Package ast defines Wabbit's abstract syntax tree: a closed family of
// variant nodes (spec.md §3). Every node embeds Base for its source
// position; expression nodes additionally carry a Type once the semantic
// analyzer has run.
package ast

import (
	"github.com/wabbitlang/wabbit/compiler/diag"
	"github.com/wabbitlang/wabbit/compiler/types"
)

type (
	// Node is the root of the AST family. It exists only to give every
	// node a common type for generic traversal helpers; stages dispatch
	// on the concrete variant via a type switch.
	Node interface {
		node()
	}

	// Base carries the source position every node has.
	Base struct {
		Pos diag.Pos `tlog:",embed"`
	}

	// Expr is any expression variant. Type is types.Unresolved until the
	// semantic analyzer assigns it (possibly types.Error, for cascade
	// suppression).
	Expr interface {
		Node
		exprNode()
		ResolvedType() types.Type
		SetResolvedType(types.Type)
	}

	// Stmt is any statement variant.
	Stmt interface {
		Node
		stmtNode()
	}

	ExprBase struct {
		Base
		Type types.Type
	}
)

func (ExprBase) node()     {}
func (ExprBase) exprNode() {}

func (e *ExprBase) ResolvedType() types.Type     { return e.Type }
func (e *ExprBase) SetResolvedType(t types.Type) { e.Type = t }

// ---- Expression variants (spec.md §3) ----

type (
	Integer struct {
		ExprBase
		Value int32
	}

	Float struct {
		ExprBase
		Value float64
	}

	Char struct {
		ExprBase
		Value byte
	}

	Bool struct {
		ExprBase
		Value bool
	}

	// Name is a variable or constant read. The semantic analyzer resolves
	// it against its scope stack and records only the resulting Type; the
	// node keeps no reference to the symbol.
	Name struct {
		ExprBase
		Ident string
	}

	BinOp string

	Binary struct {
		ExprBase
		Op       BinOp
		Lhs, Rhs Expr
	}

	UnOp string

	// Unary covers +, -, !, ^ (memgrow) and ` (memload); see spec.md §3
	// and the "bind looser than usual" note in §9 / REDESIGN FLAGS.
	Unary struct {
		ExprBase
		Op      UnOp
		Operand Expr
	}

	// Cast is an explicit int(...)/float(...) conversion.
	Cast struct {
		ExprBase
		Target types.Type
		Value  Expr
	}

	// Call is a direct call by name; the callee is resolved by the
	// semantic analyzer.
	Call struct {
		ExprBase
		Name string
		Args []Expr
	}
)

const (
	OpAdd BinOp = "+"
	OpSub BinOp = "-"
	OpMul BinOp = "*"
	OpDiv BinOp = "/"
	OpLt  BinOp = "<"
	OpLe  BinOp = "<="
	OpGt  BinOp = ">"
	OpGe  BinOp = ">="
	OpEq  BinOp = "=="
	OpNe  BinOp = "!="
	OpAnd BinOp = "&&"
	OpOr  BinOp = "||"

	OpPos    UnOp = "+"
	OpNeg    UnOp = "-"
	OpNot    UnOp = "!"
	OpGrow   UnOp = "^"
	OpMemRef UnOp = "`"
)

// ---- Statement variants (spec.md §3) ----

type (
	StmtBase struct {
		Base
	}

	DeclKind int

	VarDecl struct {
		StmtBase
		Kind         DeclKind
		Name         string
		DeclaredType types.Type // types.Unresolved if omitted
		Init         Expr       // nil if omitted
		ResolvedType types.Type // filled in by the semantic analyzer
	}

	Param struct {
		Name string
		Type types.Type
	}

	FuncDecl struct {
		StmtBase
		Imported   bool
		Name       string
		Params     []Param
		ReturnType types.Type
		Body       *Block // nil iff Imported
	}

	// Location is the left-hand side of an assignment: either a Name or
	// a MemLoc produced from the backtick syntax.
	Location interface {
		Node
		locationNode()
	}

	NameLoc struct {
		Base
		Ident string
	}

	MemLoc struct {
		Base
		Addr Expr
	}

	Assign struct {
		StmtBase
		Target Location
		Value  Expr
	}

	Block struct {
		Base
		Stmts []Stmt
	}

	If struct {
		StmtBase
		Cond Expr
		Then *Block
		Else *Block // nil if no else clause
	}

	While struct {
		StmtBase
		Cond Expr
		Body *Block
	}

	Break struct {
		StmtBase
	}

	Continue struct {
		StmtBase
	}

	Return struct {
		StmtBase
		Value Expr
	}

	Print struct {
		StmtBase
		Value Expr
	}

	// ExpressionStmt wraps a bare call used as a statement; standalone
	// non-call expressions are not valid statements in Wabbit.
	ExpressionStmt struct {
		StmtBase
		Call *Call
	}
)

const (
	DeclVar DeclKind = iota
	DeclConst
)

func (StmtBase) node()     {}
func (StmtBase) stmtNode() {}

func (Base) node()            {}
func (NameLoc) locationNode() {}
func (MemLoc) locationNode()  {}

// File is a parsed compilation unit: a flat sequence of top-level
// statements, each either a VarDecl, a const VarDecl, or a FuncDecl.
type File struct {
	Base
	Decls []Stmt
}

func (*File) node() {}

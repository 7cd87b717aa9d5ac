package sema

import (
	"github.com/wabbitlang/wabbit/compiler/diag"
	"github.com/wabbitlang/wabbit/compiler/types"
)

type (
	// SymKind is the kind of thing a name is bound to (spec.md §3's
	// symbol table entry).
	SymKind int

	// Storage says whether a symbol lives in a function's locals or in
	// the package's globals. The IR generator does not read it: it tells
	// LOCAL_GET from GLOBAL_GET by its own per-function locals map.
	Storage int

	// Symbol is one entry in the symbol table: name, kind, type or
	// signature, mutability, and storage class.
	Symbol struct {
		Name      string
		Kind      SymKind
		Type      types.Type // for Var/Const/Param
		Sig       types.Func // for Func/ImportedFunc
		Mutable   bool
		Storage   Storage
		Pos       diag.Pos
		ConstVal  any // folded literal value, retained for Const symbols
	}

	scopeKind int

	// Scope is one level of the symbol-table stack: global, one per
	// function, or one per block.
	Scope struct {
		parent  *Scope
		kind    scopeKind
		symbols map[string]*Symbol
	}
)

const (
	SymVar SymKind = iota
	SymConst
	SymFunc
	SymParam
	SymImportedFunc
)

const (
	Local Storage = iota
	Global
)

const (
	scopeGlobal scopeKind = iota
	scopeFunc
	scopeBlock
)

func newScope(parent *Scope, kind scopeKind) *Scope {
	return &Scope{
		parent:  parent,
		kind:    kind,
		symbols: map[string]*Symbol{},
	}
}

// NewGlobalScope creates the bottom scope of the stack.
func NewGlobalScope() *Scope {
	return newScope(nil, scopeGlobal)
}

// PushFunc opens a new function-level scope nested in s.
func (s *Scope) PushFunc() *Scope {
	return newScope(s, scopeFunc)
}

// PushBlock opens a new block-level scope nested in s.
func (s *Scope) PushBlock() *Scope {
	return newScope(s, scopeBlock)
}

// Parent returns the enclosing scope, or nil for the global scope.
func (s *Scope) Parent() *Scope {
	return s.parent
}

// IsGlobal reports whether s is the bottom, global scope.
func (s *Scope) IsGlobal() bool {
	return s.kind == scopeGlobal
}

// Define binds name in s. It reports false if name is already bound in
// this exact scope — spec.md §3's "redeclaration within the same scope
// is an error" invariant; shadowing an outer scope is always fine and
// is handled naturally by Lookup walking the parent chain.
func (s *Scope) Define(sym *Symbol) bool {
	if _, exists := s.symbols[sym.Name]; exists {
		return false
	}

	s.symbols[sym.Name] = sym

	return true
}

// DefinedHere reports whether name is bound directly in s, without
// walking to outer scopes.
func (s *Scope) DefinedHere(name string) bool {
	_, ok := s.symbols[name]
	return ok
}

// Lookup searches s and its ancestors for name.
func (s *Scope) Lookup(name string) (*Symbol, bool) {
	for q := s; q != nil; q = q.parent {
		if sym, ok := q.symbols[name]; ok {
			return sym, true
		}
	}

	return nil, false
}

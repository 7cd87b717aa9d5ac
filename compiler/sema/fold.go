package sema

import (
	"github.com/wabbitlang/wabbit/compiler/ast"
	"github.com/wabbitlang/wabbit/compiler/types"
)

// Constant folding is required for const initializers (spec.md §4.3: they
// must reduce to a literal) and attempted opportunistically everywhere
// else. Per the "Constant folding scope" design note in spec.md §9, we
// only fold total, exception-free operations — division is never folded,
// since we'd otherwise need to special-case a zero divisor.

func foldBinary(op ast.BinOp, l, r any) (any, bool) {
	switch lv := l.(type) {
	case int32:
		rv, ok := r.(int32)
		if !ok {
			return nil, false
		}

		switch op {
		case ast.OpAdd:
			return lv + rv, true
		case ast.OpSub:
			return lv - rv, true
		case ast.OpMul:
			return lv * rv, true
		case ast.OpLt:
			return lv < rv, true
		case ast.OpLe:
			return lv <= rv, true
		case ast.OpGt:
			return lv > rv, true
		case ast.OpGe:
			return lv >= rv, true
		case ast.OpEq:
			return lv == rv, true
		case ast.OpNe:
			return lv != rv, true
		default:
			return nil, false
		}
	case float64:
		rv, ok := r.(float64)
		if !ok {
			return nil, false
		}

		switch op {
		case ast.OpAdd:
			return lv + rv, true
		case ast.OpSub:
			return lv - rv, true
		case ast.OpMul:
			return lv * rv, true
		case ast.OpLt:
			return lv < rv, true
		case ast.OpLe:
			return lv <= rv, true
		case ast.OpGt:
			return lv > rv, true
		case ast.OpGe:
			return lv >= rv, true
		case ast.OpEq:
			return lv == rv, true
		case ast.OpNe:
			return lv != rv, true
		default:
			return nil, false
		}
	case byte:
		rv, ok := r.(byte)
		if !ok {
			return nil, false
		}

		switch op {
		case ast.OpLt:
			return lv < rv, true
		case ast.OpLe:
			return lv <= rv, true
		case ast.OpGt:
			return lv > rv, true
		case ast.OpGe:
			return lv >= rv, true
		case ast.OpEq:
			return lv == rv, true
		case ast.OpNe:
			return lv != rv, true
		default:
			return nil, false
		}
	case bool:
		rv, ok := r.(bool)
		if !ok {
			return nil, false
		}

		switch op {
		case ast.OpAnd:
			return lv && rv, true
		case ast.OpOr:
			return lv || rv, true
		case ast.OpEq:
			return lv == rv, true
		case ast.OpNe:
			return lv != rv, true
		default:
			return nil, false
		}
	default:
		return nil, false
	}
}

func foldUnary(op ast.UnOp, v any) (any, bool) {
	switch op {
	case ast.OpPos:
		return v, true
	case ast.OpNeg:
		switch n := v.(type) {
		case int32:
			return -n, true
		case float64:
			return -n, true
		default:
			return nil, false
		}
	case ast.OpNot:
		if b, ok := v.(bool); ok {
			return !b, true
		}

		return nil, false
	default:
		// ^ (grow) and ` (memory load) are never pure/total: both touch
		// mutable state, so they're never folded.
		return nil, false
	}
}

func foldCast(target types.Type, v any) (any, bool) {
	switch target {
	case types.Int:
		switch n := v.(type) {
		case int32:
			return n, true
		case float64:
			return int32(n), true
		default:
			return nil, false
		}
	case types.Float:
		switch n := v.(type) {
		case int32:
			return float64(n), true
		case float64:
			return n, true
		default:
			return nil, false
		}
	default:
		return nil, false
	}
}

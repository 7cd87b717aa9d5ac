// Package parser implements Wabbit's recursive-descent parser (spec.md
// §4.2): a token stream in, a typed AST out, with the precedence table
// lowest-to-highest ||, &&, relational, additive, multiplicative, unary,
// all left-associative.
package parser

import (
	"context"
	"strconv"

	"tlog.app/go/tlog"

	"github.com/wabbitlang/wabbit/compiler/ast"
	"github.com/wabbitlang/wabbit/compiler/diag"
	"github.com/wabbitlang/wabbit/compiler/lexer"
	"github.com/wabbitlang/wabbit/compiler/token"
	"github.com/wabbitlang/wabbit/compiler/types"
)

// Parser holds the mutable state of one parse: the lexer it reads from,
// the shared diagnostic sink, and how deep into nested blocks we are
// (needed to flag a `func` declared anywhere but top level).
type Parser struct {
	lex      *lexer.Lexer
	sink     *diag.Sink
	blockDep int
}

// New creates a Parser over src, reporting to sink.
func New(file string, src []byte, sink *diag.Sink) *Parser {
	return &Parser{
		lex:  lexer.New(file, src, sink),
		sink: sink,
	}
}

// ParseFile parses a whole compilation unit.
func ParseFile(ctx context.Context, file string, src []byte, sink *diag.Sink) *ast.File {
	p := New(file, src, sink)
	return p.parseFile(ctx)
}

func (p *Parser) parseFile(ctx context.Context) *ast.File {
	tr := tlog.SpanFromContext(ctx)

	start := p.peek().Pos
	f := &ast.File{Base: ast.Base{Pos: start}}

	for p.peek().Kind != token.EOF {
		d := p.parseTopDecl(ctx)
		if d != nil {
			f.Decls = append(f.Decls, d)
		}
	}

	tr.Printw("parsed file", "decls", len(f.Decls))

	return f
}

func (p *Parser) peek() token.Token        { return p.lex.Peek() }
func (p *Parser) advance() token.Token     { return p.lex.Advance() }

func (p *Parser) errf(pos diag.Pos, format string, args ...any) {
	p.sink.Errorf(pos, format, args...)
}

func (p *Parser) expect(k token.Kind, what string) (token.Token, bool) {
	t := p.peek()
	if t.Kind != k {
		p.errf(t.Pos, "expected %s, got %q", what, t.Lexeme)
		return t, false
	}

	return p.advance(), true
}

// expectSemi implements the recoverable missing-`;` rule: report and
// resume at the next statement-starter token rather than aborting.
func (p *Parser) expectSemi() {
	if p.peek().Kind == token.SEMI {
		p.advance()
		return
	}

	p.errf(p.peek().Pos, "expected ';'")
	p.recover()
}

// recover skips tokens until a plausible statement boundary: a `;` (which
// it consumes) or a `}` / known statement-starter (which it leaves for
// the caller), per spec.md §4.2's error-recovery rule.
func (p *Parser) recover() {
	for {
		switch p.peek().Kind {
		case token.SEMI:
			p.advance()
			return
		case token.EOF, token.RBRACE, token.VAR, token.CONST, token.FUNC,
			token.IMPORT, token.IF, token.WHILE, token.BREAK, token.CONTINUE,
			token.RETURN, token.PRINT:
			return
		default:
			p.advance()
		}
	}
}

// ---- top level ----

func (p *Parser) parseTopDecl(ctx context.Context) ast.Stmt {
	switch p.peek().Kind {
	case token.VAR, token.CONST:
		return p.parseVarDecl(ctx)
	case token.FUNC, token.IMPORT:
		return p.parseFuncDecl(ctx)
	default:
		t := p.peek()
		p.errf(t.Pos, "unexpected token at top level: %q", t.Lexeme)
		p.recover()

		return nil
	}
}

func (p *Parser) parseType() types.Type {
	t := p.peek()

	switch t.Kind {
	case token.INT_TYPE:
		p.advance()
		return types.Int
	case token.FLOAT_TYPE:
		p.advance()
		return types.Float
	case token.CHAR_TYPE:
		p.advance()
		return types.Char
	case token.BOOL_TYPE:
		p.advance()
		return types.Bool
	default:
		p.errf(t.Pos, "expected a type, got %q", t.Lexeme)
		return types.Error
	}
}

func (p *Parser) isTypeToken(k token.Kind) bool {
	switch k {
	case token.INT_TYPE, token.FLOAT_TYPE, token.CHAR_TYPE, token.BOOL_TYPE:
		return true
	default:
		return false
	}
}

func (p *Parser) parseVarDecl(ctx context.Context) ast.Stmt {
	start := p.peek().Pos
	kind := ast.DeclVar
	if p.peek().Kind == token.CONST {
		kind = ast.DeclConst
	}
	p.advance()

	name, _ := p.expect(token.NAME, "a name")

	declType := types.Unresolved
	if p.isTypeToken(p.peek().Kind) {
		declType = p.parseType()
	}

	var init ast.Expr
	if p.peek().Kind == token.ASSIGN {
		p.advance()
		init = p.parseExpr(ctx)
	}

	if kind == ast.DeclConst && init == nil {
		p.errf(start, "const %q requires an initializer", name.Lexeme)
	}

	if declType == types.Unresolved && init == nil {
		p.errf(start, "var %q needs a declared type or an initializer", name.Lexeme)
	}

	p.expectSemi()

	return &ast.VarDecl{
		StmtBase:     ast.StmtBase{Base: ast.Base{Pos: start}},
		Kind:         kind,
		Name:         name.Lexeme,
		DeclaredType: declType,
		Init:         init,
	}
}

func (p *Parser) parseFuncDecl(ctx context.Context) ast.Stmt {
	start := p.peek().Pos

	if p.blockDep > 0 {
		p.errf(start, "nested function declarations are not allowed")
	}

	imported := false
	if p.peek().Kind == token.IMPORT {
		imported = true
		p.advance()
	}

	if _, ok := p.expect(token.FUNC, "'func'"); !ok {
		p.recover()
		return nil
	}

	name, _ := p.expect(token.NAME, "a function name")

	p.expect(token.LPAREN, "'('")

	var params []ast.Param
	for p.peek().Kind != token.RPAREN && p.peek().Kind != token.EOF {
		if len(params) > 0 {
			p.expect(token.COMMA, "','")
		}

		pn, _ := p.expect(token.NAME, "a parameter name")
		pt := p.parseType()

		params = append(params, ast.Param{Name: pn.Lexeme, Type: pt})
	}

	p.expect(token.RPAREN, "')'")

	retType := types.Unresolved
	if p.isTypeToken(p.peek().Kind) {
		retType = p.parseType()
	}

	fd := &ast.FuncDecl{
		StmtBase:   ast.StmtBase{Base: ast.Base{Pos: start}},
		Imported:   imported,
		Name:       name.Lexeme,
		Params:     params,
		ReturnType: retType,
	}

	if imported {
		p.expectSemi()
		return fd
	}

	fd.Body = p.parseBlock(ctx)

	return fd
}

// ---- statements ----

func (p *Parser) parseBlock(ctx context.Context) *ast.Block {
	start := p.peek().Pos
	p.expect(token.LBRACE, "'{'")

	p.blockDep++
	defer func() { p.blockDep-- }()

	b := &ast.Block{Base: ast.Base{Pos: start}}

	for p.peek().Kind != token.RBRACE && p.peek().Kind != token.EOF {
		s := p.parseStmt(ctx)
		if s != nil {
			b.Stmts = append(b.Stmts, s)
		}
	}

	p.expect(token.RBRACE, "'}'")

	return b
}

func (p *Parser) parseStmt(ctx context.Context) ast.Stmt {
	switch p.peek().Kind {
	case token.VAR, token.CONST:
		return p.parseVarDecl(ctx)
	case token.FUNC, token.IMPORT:
		return p.parseFuncDecl(ctx)
	case token.IF:
		return p.parseIf(ctx)
	case token.WHILE:
		return p.parseWhile(ctx)
	case token.BREAK:
		start := p.advance().Pos
		p.expectSemi()
		return &ast.Break{StmtBase: ast.StmtBase{Base: ast.Base{Pos: start}}}
	case token.CONTINUE:
		start := p.advance().Pos
		p.expectSemi()
		return &ast.Continue{StmtBase: ast.StmtBase{Base: ast.Base{Pos: start}}}
	case token.RETURN:
		start := p.advance().Pos
		v := p.parseExpr(ctx)
		p.expectSemi()

		return &ast.Return{StmtBase: ast.StmtBase{Base: ast.Base{Pos: start}}, Value: v}
	case token.PRINT:
		start := p.advance().Pos
		v := p.parseExpr(ctx)
		p.expectSemi()

		return &ast.Print{StmtBase: ast.StmtBase{Base: ast.Base{Pos: start}}, Value: v}
	case token.EOF, token.RBRACE:
		t := p.peek()
		p.errf(t.Pos, "unexpected end of block")
		return nil
	default:
		return p.parseSimpleStmt(ctx)
	}
}

// parseSimpleStmt handles an assignment or a bare call statement. Both
// start by parsing a full expression through the normal precedence
// machinery, then validating what came out, per spec.md §4.2.
func (p *Parser) parseSimpleStmt(ctx context.Context) ast.Stmt {
	start := p.peek().Pos
	e := p.parseExpr(ctx)

	if p.peek().Kind == token.ASSIGN {
		p.advance()

		loc := p.exprToLocation(start, e)
		value := p.parseExpr(ctx)
		p.expectSemi()

		return &ast.Assign{
			StmtBase: ast.StmtBase{Base: ast.Base{Pos: start}},
			Target:   loc,
			Value:    value,
		}
	}

	p.expectSemi()

	call, ok := e.(*ast.Call)
	if !ok {
		p.errf(start, "standalone expression is not a statement")
		return nil
	}

	return &ast.ExpressionStmt{
		StmtBase: ast.StmtBase{Base: ast.Base{Pos: start}},
		Call:     call,
	}
}

// exprToLocation validates that e is a legal assignment target: a Name
// or a backtick memory reference (spec.md §4.2).
func (p *Parser) exprToLocation(start diag.Pos, e ast.Expr) ast.Location {
	switch e := e.(type) {
	case *ast.Name:
		return &ast.NameLoc{Base: e.Base, Ident: e.Ident}
	case *ast.Unary:
		if e.Op == ast.OpMemRef {
			return &ast.MemLoc{Base: e.Base, Addr: e.Operand}
		}
	}

	p.errf(start, "left side of '=' must be a name or a `` address expression")

	return &ast.NameLoc{Base: ast.Base{Pos: start}}
}

func (p *Parser) parseIf(ctx context.Context) ast.Stmt {
	start := p.advance().Pos
	cond := p.parseExpr(ctx)
	then := p.parseBlock(ctx)

	var els *ast.Block
	if p.peek().Kind == token.ELSE {
		p.advance()

		if p.peek().Kind == token.IF {
			inner := p.parseIf(ctx)
			pos := start
			if iff, ok := inner.(*ast.If); ok {
				pos = iff.Base.Pos
			}
			els = &ast.Block{Base: ast.Base{Pos: pos}, Stmts: []ast.Stmt{inner}}
		} else {
			els = p.parseBlock(ctx)
		}
	}

	return &ast.If{
		StmtBase: ast.StmtBase{Base: ast.Base{Pos: start}},
		Cond:     cond,
		Then:     then,
		Else:     els,
	}
}

func (p *Parser) parseWhile(ctx context.Context) ast.Stmt {
	start := p.advance().Pos
	cond := p.parseExpr(ctx)
	body := p.parseBlock(ctx)

	return &ast.While{
		StmtBase: ast.StmtBase{Base: ast.Base{Pos: start}},
		Cond:     cond,
		Body:     body,
	}
}

// ---- expressions ----

func (p *Parser) parseExpr(ctx context.Context) ast.Expr {
	return p.parseOr(ctx)
}

func (p *Parser) parseOr(ctx context.Context) ast.Expr {
	l := p.parseAnd(ctx)

	for p.peek().Kind == token.OR {
		pos := p.advance().Pos
		r := p.parseAnd(ctx)
		l = &ast.Binary{ExprBase: ast.ExprBase{Base: ast.Base{Pos: pos}}, Op: ast.OpOr, Lhs: l, Rhs: r}
	}

	return l
}

func (p *Parser) parseAnd(ctx context.Context) ast.Expr {
	l := p.parseRel(ctx)

	for p.peek().Kind == token.AND {
		pos := p.advance().Pos
		r := p.parseRel(ctx)
		l = &ast.Binary{ExprBase: ast.ExprBase{Base: ast.Base{Pos: pos}}, Op: ast.OpAnd, Lhs: l, Rhs: r}
	}

	return l
}

func relOp(k token.Kind) (ast.BinOp, bool) {
	switch k {
	case token.LT:
		return ast.OpLt, true
	case token.LE:
		return ast.OpLe, true
	case token.GT:
		return ast.OpGt, true
	case token.GE:
		return ast.OpGe, true
	case token.EQ:
		return ast.OpEq, true
	case token.NE:
		return ast.OpNe, true
	default:
		return "", false
	}
}

// parseRel implements spec.md §4.2's no-chained-relations contract: a
// second relational operator after the first is an error, reported once,
// and parsing continues so the rest of the file is still checked.
func (p *Parser) parseRel(ctx context.Context) ast.Expr {
	l := p.parseAdd(ctx)

	count := 0

	for {
		op, ok := relOp(p.peek().Kind)
		if !ok {
			break
		}

		pos := p.peek().Pos

		if count == 1 {
			p.errf(pos, "relational operators may not be chained")
		}

		p.advance()
		r := p.parseAdd(ctx)
		l = &ast.Binary{ExprBase: ast.ExprBase{Base: ast.Base{Pos: pos}}, Op: op, Lhs: l, Rhs: r}
		count++
	}

	return l
}

func (p *Parser) parseAdd(ctx context.Context) ast.Expr {
	l := p.parseMul(ctx)

	for {
		var op ast.BinOp

		switch p.peek().Kind {
		case token.PLUS:
			op = ast.OpAdd
		case token.MINUS:
			op = ast.OpSub
		default:
			return l
		}

		pos := p.advance().Pos
		r := p.parseMul(ctx)
		l = &ast.Binary{ExprBase: ast.ExprBase{Base: ast.Base{Pos: pos}}, Op: op, Lhs: l, Rhs: r}
	}
}

func (p *Parser) parseMul(ctx context.Context) ast.Expr {
	l := p.parseUnary(ctx)

	for {
		var op ast.BinOp

		switch p.peek().Kind {
		case token.STAR:
			op = ast.OpMul
		case token.SLASH:
			op = ast.OpDiv
		default:
			return l
		}

		pos := p.advance().Pos
		r := p.parseUnary(ctx)
		l = &ast.Binary{ExprBase: ast.ExprBase{Base: ast.Base{Pos: pos}}, Op: op, Lhs: l, Rhs: r}
	}
}

// parseUnary implements the grammar literally, per the Open Question in
// spec.md §9: unary +, -, ^ take a full Expression as their operand (so
// they bind looser than the usual convention), while ! and backtick are
// tight, Factor-level unary operators.
func (p *Parser) parseUnary(ctx context.Context) ast.Expr {
	switch p.peek().Kind {
	case token.PLUS:
		pos := p.advance().Pos
		operand := p.parseExpr(ctx)
		return &ast.Unary{ExprBase: ast.ExprBase{Base: ast.Base{Pos: pos}}, Op: ast.OpPos, Operand: operand}
	case token.MINUS:
		pos := p.advance().Pos
		operand := p.parseExpr(ctx)
		return &ast.Unary{ExprBase: ast.ExprBase{Base: ast.Base{Pos: pos}}, Op: ast.OpNeg, Operand: operand}
	case token.CARET:
		pos := p.advance().Pos
		operand := p.parseExpr(ctx)
		return &ast.Unary{ExprBase: ast.ExprBase{Base: ast.Base{Pos: pos}}, Op: ast.OpGrow, Operand: operand}
	case token.NOT:
		pos := p.advance().Pos
		operand := p.parseUnary(ctx)
		return &ast.Unary{ExprBase: ast.ExprBase{Base: ast.Base{Pos: pos}}, Op: ast.OpNot, Operand: operand}
	case token.BACKTICK:
		pos := p.advance().Pos
		operand := p.parseUnary(ctx)
		return &ast.Unary{ExprBase: ast.ExprBase{Base: ast.Base{Pos: pos}}, Op: ast.OpMemRef, Operand: operand}
	default:
		return p.parsePrimary(ctx)
	}
}

func (p *Parser) parsePrimary(ctx context.Context) ast.Expr {
	t := p.peek()

	switch t.Kind {
	case token.INTEGER:
		p.advance()
		return &ast.Integer{ExprBase: ast.ExprBase{Base: ast.Base{Pos: t.Pos}}, Value: parseInt32(t.Lexeme)}
	case token.FLOAT:
		p.advance()
		return &ast.Float{ExprBase: ast.ExprBase{Base: ast.Base{Pos: t.Pos}}, Value: parseFloat64(t.Lexeme)}
	case token.CHAR:
		p.advance()

		var v byte
		if len(t.Lexeme) > 0 {
			v = t.Lexeme[0]
		}

		return &ast.Char{ExprBase: ast.ExprBase{Base: ast.Base{Pos: t.Pos}}, Value: v}
	case token.TRUE:
		p.advance()
		return &ast.Bool{ExprBase: ast.ExprBase{Base: ast.Base{Pos: t.Pos}}, Value: true}
	case token.FALSE:
		p.advance()
		return &ast.Bool{ExprBase: ast.ExprBase{Base: ast.Base{Pos: t.Pos}}, Value: false}
	case token.LPAREN:
		p.advance()
		e := p.parseExpr(ctx)
		p.expect(token.RPAREN, "')'")

		return e
	case token.INT_TYPE, token.FLOAT_TYPE:
		// Type ( Expression ) is a cast; Type without '(' is an error
		// here (types only appear as cast prefixes or decl/param types).
		typ := p.parseType()

		if p.peek().Kind != token.LPAREN {
			p.errf(t.Pos, "expected '(' after cast target %q", t.Lexeme)
			return &ast.Integer{ExprBase: ast.ExprBase{Base: ast.Base{Pos: t.Pos}}}
		}

		p.advance()
		v := p.parseExpr(ctx)
		p.expect(token.RPAREN, "')'")

		return &ast.Cast{ExprBase: ast.ExprBase{Base: ast.Base{Pos: t.Pos}}, Target: typ, Value: v}
	case token.NAME:
		p.advance()

		if p.peek().Kind == token.LPAREN {
			return p.parseCallArgs(ctx, t)
		}

		return &ast.Name{ExprBase: ast.ExprBase{Base: ast.Base{Pos: t.Pos}}, Ident: t.Lexeme}
	default:
		p.errf(t.Pos, "unexpected token in expression: %q", t.Lexeme)
		p.advance()

		return &ast.Integer{ExprBase: ast.ExprBase{Base: ast.Base{Pos: t.Pos}}}
	}
}

func (p *Parser) parseCallArgs(ctx context.Context, name token.Token) ast.Expr {
	p.expect(token.LPAREN, "'('")

	var args []ast.Expr
	for p.peek().Kind != token.RPAREN && p.peek().Kind != token.EOF {
		if len(args) > 0 {
			p.expect(token.COMMA, "','")
		}

		args = append(args, p.parseExpr(ctx))
	}

	p.expect(token.RPAREN, "')'")

	return &ast.Call{
		ExprBase: ast.ExprBase{Base: ast.Base{Pos: name.Pos}},
		Name:     name.Lexeme,
		Args:     args,
	}
}

func parseInt32(s string) int32 {
	v, _ := strconv.ParseInt(s, 10, 64)
	return int32(v)
}

func parseFloat64(s string) float64 {
	v, _ := strconv.ParseFloat(s, 64)
	return v
}

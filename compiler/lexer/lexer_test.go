package lexer

import (
	"testing"

	"github.com/nalgeon/be"

	"github.com/wabbitlang/wabbit/compiler/diag"
	"github.com/wabbitlang/wabbit/compiler/token"
)

func scanAll(t *testing.T, src string) ([]token.Token, *diag.Sink) {
	t.Helper()

	sink := &diag.Sink{}
	l := New("t.wb", []byte(src), sink)

	var toks []token.Token
	for {
		tok := l.Advance()
		toks = append(toks, tok)

		if tok.Kind == token.EOF {
			break
		}
	}

	return toks, sink
}

func kinds(toks []token.Token) []token.Kind {
	out := make([]token.Kind, len(toks))
	for i, t := range toks {
		out[i] = t.Kind
	}

	return out
}

func TestScansKeywordsAndOperators(t *testing.T) {
	toks, sink := scanAll(t, "var n int = 2 <= 3 && true;")
	be.True(t, !sink.HasErrors())

	be.Equal(t, kinds(toks), []token.Kind{
		token.VAR, token.NAME, token.INT_TYPE, token.ASSIGN, token.INTEGER,
		token.LE, token.INTEGER, token.AND, token.TRUE, token.SEMI, token.EOF,
	})
}

func TestLineComment(t *testing.T) {
	toks, sink := scanAll(t, "1 // trailing comment\n2")
	be.True(t, !sink.HasErrors())
	be.Equal(t, kinds(toks), []token.Kind{token.INTEGER, token.INTEGER, token.EOF})
}

func TestUnterminatedBlockComment(t *testing.T) {
	_, sink := scanAll(t, "1 /* never closes")
	be.True(t, sink.HasErrors())
}

func TestCharEscapes(t *testing.T) {
	toks, sink := scanAll(t, `'\n' '\x41' 'z'`)
	be.True(t, !sink.HasErrors())

	be.Equal(t, toks[0].Lexeme, "\n")
	be.Equal(t, toks[1].Lexeme, "A")
	be.Equal(t, toks[2].Lexeme, "z")
}

func TestIntegerOverflow(t *testing.T) {
	_, sink := scanAll(t, "99999999999")
	be.True(t, sink.HasErrors())
}

func TestFloatLiteral(t *testing.T) {
	toks, sink := scanAll(t, "3.14 .5")
	be.True(t, !sink.HasErrors())
	be.Equal(t, kinds(toks), []token.Kind{token.FLOAT, token.FLOAT, token.EOF})
}

func TestUnknownCharacterRecovers(t *testing.T) {
	toks, sink := scanAll(t, "1 # 2")
	be.True(t, sink.HasErrors())
	be.Equal(t, kinds(toks), []token.Kind{token.INTEGER, token.INTEGER, token.EOF})
}

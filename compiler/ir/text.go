package ir

import (
	"fmt"
	"strconv"
	"strings"
)

// Text renders p in the canonical text format supplemented from
// original_source/: one instruction per line, nested blocks indented two
// spaces per level, globals listed before functions. This format is
// meant to be diffed in tests and golden files, so it must be stable.
func (p *Program) Text() string {
	var b strings.Builder

	for _, g := range p.Globals {
		fmt.Fprintf(&b, "GLOBAL_DECL %s %s\n", g.Name, g.Type)
	}

	if len(p.Globals) > 0 && len(p.Funcs) > 0 {
		b.WriteByte('\n')
	}

	for i, f := range p.Funcs {
		if i > 0 {
			b.WriteByte('\n')
		}

		f.writeText(&b)
	}

	return b.String()
}

func (f *Func) writeText(b *strings.Builder) {
	params := make([]string, len(f.Params))
	for i, p := range f.Params {
		params[i] = fmt.Sprintf("%s %s", p.Name, p.Type)
	}

	fmt.Fprintf(b, "FUNC %s(%s) %s {\n", f.Name, strings.Join(params, ", "), f.Return)

	for _, l := range f.Locals {
		fmt.Fprintf(b, "  LOCAL_DECL %s %s\n", l.Name, l.Type)
	}

	depth := 1
	for _, in := range f.Body {
		if in.Op == ELSE || in.Op == ENDIF || in.Op == ENDLOOP {
			depth--
		}

		b.WriteString(strings.Repeat("  ", depth+1))
		b.WriteString(instrText(in))
		b.WriteByte('\n')

		switch in.Op {
		case IF, LOOP, ELSE:
			depth++
		}
	}

	b.WriteString("}\n")
}

func instrText(in Instr) string {
	switch in.Op {
	case CONSTI:
		return "CONSTI " + strconv.Itoa(int(in.IntVal))
	case CONSTF:
		return "CONSTF " + strconv.FormatFloat(in.FloatVal, 'g', -1, 64)
	case CONSTC:
		return "CONSTC " + strconv.QuoteRune(rune(in.CharVal))
	case CONSTB:
		return "CONSTB " + strconv.FormatBool(in.BoolVal)
	case LOCAL_GET, LOCAL_SET, GLOBAL_GET, GLOBAL_SET:
		return in.Op.String() + " " + in.Name
	case CALL:
		return fmt.Sprintf("CALL %s %d", in.Name, in.NArgs)
	default:
		return in.Op.String()
	}
}

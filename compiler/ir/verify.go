package ir

import "tlog.app/go/errors"

// blockKind distinguishes the two structured-control constructs so
// Verify can tell a misplaced ELSE/ENDIF from a misplaced
// CBREAK/CONTINUE/ENDLOOP.
type blockKind int

const (
	blockIf blockKind = iota
	blockLoop
)

// Verify checks that every function's instruction stream has balanced,
// correctly nested IF/ELSE/ENDIF and LOOP/ENDLOOP blocks, and that
// CBREAK/CONTINUE only appear inside a LOOP. It exists because the IR
// generator is the only producer of Program values today, but the text
// format is also meant to be hand-editable for tests, per the
// "canonical IR text format" note — so malformed input should fail
// loudly here rather than corrupt a downstream back end.
func Verify(p *Program) error {
	for _, f := range p.Funcs {
		if err := verifyFunc(&f); err != nil {
			return errors.Wrap(err, "function %q", f.Name)
		}
	}

	return nil
}

func verifyFunc(f *Func) error {
	var stack []blockKind
	loopDepth := 0

	for i, in := range f.Body {
		switch in.Op {
		case IF:
			stack = append(stack, blockIf)
		case ELSE:
			if len(stack) == 0 || stack[len(stack)-1] != blockIf {
				return errors.New("instr %d: ELSE without matching IF", i)
			}
		case ENDIF:
			if len(stack) == 0 || stack[len(stack)-1] != blockIf {
				return errors.New("instr %d: ENDIF without matching IF", i)
			}

			stack = stack[:len(stack)-1]
		case LOOP:
			stack = append(stack, blockLoop)
			loopDepth++
		case ENDLOOP:
			if len(stack) == 0 || stack[len(stack)-1] != blockLoop {
				return errors.New("instr %d: ENDLOOP without matching LOOP", i)
			}

			stack = stack[:len(stack)-1]
			loopDepth--
		case CBREAK, CONTINUE:
			if loopDepth == 0 {
				return errors.New("instr %d: %s outside of a LOOP", i, in.Op)
			}
		}
	}

	if len(stack) != 0 {
		return errors.New("unclosed block at end of function")
	}

	return nil
}

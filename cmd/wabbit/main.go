package main

import (
	"context"
	"fmt"
	"os"

	"nikand.dev/go/cli"
	"tlog.app/go/errors"
	"tlog.app/go/tlog"

	"github.com/wabbitlang/wabbit/compiler"
	"github.com/wabbitlang/wabbit/compiler/diag"
	"github.com/wabbitlang/wabbit/compiler/lexer"
	"github.com/wabbitlang/wabbit/compiler/parser"
	"github.com/wabbitlang/wabbit/compiler/token"
)

func main() {
	tokensCmd := &cli.Command{
		Name:   "tokens",
		Action: tokensAct,
		Args:   cli.Args{},
	}

	parseCmd := &cli.Command{
		Name:   "parse",
		Action: parseAct,
		Args:   cli.Args{},
	}

	checkCmd := &cli.Command{
		Name:   "check",
		Action: checkAct,
		Args:   cli.Args{},
	}

	irCmd := &cli.Command{
		Name:   "ir",
		Action: irAct,
		Args:   cli.Args{},
	}

	app := &cli.Command{
		Name:        "wabbit",
		Description: "wabbit is a tool for working with Wabbit source code",
		Commands: []*cli.Command{
			tokensCmd,
			parseCmd,
			checkCmd,
			irCmd,
		},
	}

	cli.RunAndExit(app, os.Args, os.Environ())
}

func rootContext() context.Context {
	ctx := context.Background()
	return tlog.ContextWithSpan(ctx, tlog.Root())
}

func readFile(name string) ([]byte, error) {
	text, err := os.ReadFile(name)
	if err != nil {
		return nil, errors.Wrap(err, "read file %v", name)
	}

	return text, nil
}

func printDiags(sink *diag.Sink) {
	for _, d := range sink.Diagnostics() {
		fmt.Println(d)
	}
}

func tokensAct(c *cli.Command) error {
	for _, a := range c.Args {
		text, err := readFile(a)
		if err != nil {
			return err
		}

		sink := &diag.Sink{}
		lex := lexer.New(a, text, sink)

		for {
			t := lex.Advance()
			fmt.Printf("%s %s %q\n", t.Pos, t.Kind, t.Lexeme)

			if t.Kind == token.EOF {
				break
			}
		}

		printDiags(sink)

		if sink.HasErrors() {
			return errors.New("%v: lex errors", a)
		}
	}

	return nil
}

func parseAct(c *cli.Command) error {
	ctx := rootContext()

	for _, a := range c.Args {
		text, err := readFile(a)
		if err != nil {
			return err
		}

		sink := &diag.Sink{}
		f := parser.ParseFile(ctx, a, text, sink)
		fmt.Printf("%+v\n", f)

		printDiags(sink)

		if sink.HasErrors() {
			return errors.New("%v: parse errors", a)
		}
	}

	return nil
}

func checkAct(c *cli.Command) error {
	ctx := rootContext()

	for _, a := range c.Args {
		text, err := readFile(a)
		if err != nil {
			return err
		}

		res, err := compiler.Compile(ctx, a, text)
		if err != nil {
			return err
		}

		printDiags(res.Sink)

		if res.Sink.HasErrors() {
			return errors.New("%v: semantic errors", a)
		}
	}

	return nil
}

func irAct(c *cli.Command) error {
	ctx := rootContext()

	for _, a := range c.Args {
		text, err := readFile(a)
		if err != nil {
			return err
		}

		res, err := compiler.Compile(ctx, a, text)
		if err != nil {
			return err
		}

		printDiags(res.Sink)

		if res.Sink.HasErrors() || res.IR == nil {
			return errors.New("%v: compilation failed", a)
		}

		fmt.Print(res.IR.Text())
	}

	return nil
}

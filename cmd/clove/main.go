// Command clove runs a Clove query against a JSON document from the
// command line.
//
// Usage:
//
//	clove check QUERY [-input FILE] [-pretty] [-syntax-only]
//
// With no -input, the document is read from stdin.
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"os"

	"github.com/tardy-sh/clove-lang/pkg/evaluator"
	"github.com/tardy-sh/clove-lang/pkg/parser"
	"github.com/tardy-sh/clove-lang/pkg/types"
)

func main() {
	if len(os.Args) < 2 || os.Args[1] != "check" {
		fmt.Fprintln(os.Stderr, "usage: clove check QUERY [-input FILE] [-pretty] [-syntax-only]")
		os.Exit(2)
	}

	fs := flag.NewFlagSet("check", flag.ExitOnError)
	input := fs.String("input", "", "read the JSON document from this file instead of stdin")
	pretty := fs.Bool("pretty", false, "pretty-print the output")
	syntaxOnly := fs.Bool("syntax-only", false, "only validate syntax, don't execute")
	fs.Parse(os.Args[2:])

	if fs.NArg() < 1 {
		fmt.Fprintln(os.Stderr, "check requires exactly one query argument")
		os.Exit(2)
	}
	query := fs.Arg(0)
	// Flags may also follow the query, as in the usage line.
	fs.Parse(fs.Args()[1:])
	if fs.NArg() != 0 {
		fmt.Fprintln(os.Stderr, "check requires exactly one query argument")
		os.Exit(2)
	}

	if err := run(query, *input, *pretty, *syntaxOnly); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(query, inputPath string, pretty, syntaxOnly bool) error {
	q, err := parser.Parse(query)
	if err != nil {
		return err
	}
	if syntaxOnly {
		fmt.Println("Syntax is valid")
		return nil
	}

	doc, err := readInput(inputPath)
	if err != nil {
		return err
	}
	decoded, err := types.DecodeOrdered(doc)
	if err != nil {
		return fmt.Errorf("clove: invalid JSON input: %w", err)
	}
	root, err := types.FromJSON(decoded)
	if err != nil {
		return err
	}

	ev := evaluator.New()
	result, err := ev.Eval(nil, q, root, nil, nil)
	if err != nil {
		return err
	}

	out := types.ToJSON(result)
	var encoded []byte
	if pretty {
		encoded, err = json.MarshalIndent(out, "", "  ")
	} else {
		encoded, err = json.Marshal(out)
	}
	if err != nil {
		return err
	}
	fmt.Println(string(encoded))
	return nil
}

func readInput(path string) ([]byte, error) {
	if path != "" {
		return os.ReadFile(path)
	}
	return io.ReadAll(os.Stdin)
}

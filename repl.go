package main

import (
	"fmt"
	"io"
	"strings"

	"github.com/peterh/liner"
)

// runRepl reads statement snippets from the terminal, type-checks each one
// as a function body and prints the type it yields. Input continues onto
// the next line while delimiters are unbalanced, so multi-line blocks and
// loops paste naturally.
func runRepl(out io.Writer) error {
	line := liner.NewLiner()
	defer line.Close()
	line.SetCtrlCAborts(true)

	fmt.Fprintln(out, "Loam interactive checker. Type expressions; Ctrl-D exits.")

	var pending strings.Builder
	for {
		prompt := "loam> "
		if pending.Len() > 0 {
			prompt = "....> "
		}
		input, err := line.Prompt(prompt)
		if err == liner.ErrPromptAborted {
			pending.Reset()
			continue
		}
		if err == io.EOF {
			fmt.Fprintln(out)
			return nil
		}
		if err != nil {
			return err
		}

		pending.WriteString(input)
		pending.WriteByte('\n')
		src := pending.String()
		if strings.TrimSpace(src) == "" {
			pending.Reset()
			continue
		}
		if delimitersOpen([]byte(src)) {
			continue
		}
		pending.Reset()
		line.AppendHistory(strings.TrimSpace(src))

		typ, diags := CheckSnippet([]byte(src), DefaultIntrinsics())
		if diags.HasErrors() {
			fmt.Fprint(out, diags.Render([]byte(src)))
			continue
		}
		fmt.Fprintf(out, ": %s\n", typ)
	}
}

// delimitersOpen reports whether the snippet still has unclosed parens or
// braces, lexing with a throwaway diagnostics bag so in-progress input
// never reports errors.
func delimitersOpen(src []byte) bool {
	var scratch Diagnostics
	depth := 0
	for _, tok := range Lex(src, &scratch) {
		switch tok.Type {
		case LPAREN, LBRACE:
			depth++
		case RPAREN, RBRACE:
			if depth > 0 {
				depth--
			}
		}
	}
	return depth > 0
}

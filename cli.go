package main

import (
	"flag"
	"fmt"
	"os"
)

func showUsage() {
	fmt.Fprintf(os.Stderr, `Loam - a low-level expression language front end

Usage:
    loam <command> [arguments]

Commands:
    check <file>    Parse and type-check a .loam file
    ast <file>      Print the parsed AST as s-expressions
    tokens <file>   Print the token stream
    repl            Start an interactive type-checking session
    help            Show this help message

Examples:
    loam check examples/fib.loam
    loam ast -e 'fn add(a: i32, b: i32) -> i32 { a + b }'
    loam repl

Use "loam <command> -h" for more information about a command.
`)
}

// readSource resolves the -e flag against the file argument: exactly one of
// the two must be supplied.
func readSource(fs *flag.FlagSet, inline string) []byte {
	if inline != "" {
		if fs.NArg() != 0 {
			fmt.Fprintf(os.Stderr, "Error: -e and a file argument are mutually exclusive\n")
			fs.Usage()
			os.Exit(1)
		}
		return []byte(inline)
	}
	if fs.NArg() != 1 {
		fmt.Fprintf(os.Stderr, "Error: expected exactly one file argument\n")
		fs.Usage()
		os.Exit(1)
	}
	filename := fs.Arg(0)
	src, err := os.ReadFile(filename)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error reading file %s: %v\n", filename, err)
		os.Exit(1)
	}
	return src
}

func checkCommand(args []string) {
	fs := flag.NewFlagSet("check", flag.ExitOnError)
	inline := fs.String("e", "", "Check inline code instead of a file")
	verbose := fs.Bool("v", false, "Print the checked AST on success")
	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: loam check [-v] [-e code] <file>\n")
		fmt.Fprintf(os.Stderr, "Parse and type-check a .loam file\n\n")
		fmt.Fprintf(os.Stderr, "Flags:\n")
		fs.PrintDefaults()
	}

	if err := fs.Parse(args); err != nil {
		os.Exit(1)
	}

	src := readSource(fs, *inline)
	script, diags, ok := AnalyzeSource(src, DefaultIntrinsics())
	if !ok {
		fmt.Fprint(os.Stderr, diags.Render(src))
		os.Exit(1)
	}

	fmt.Println("no errors found")
	if *verbose {
		fmt.Print(ScriptToSExpr(script))
	}
}

func astCommand(args []string) {
	fs := flag.NewFlagSet("ast", flag.ExitOnError)
	inline := fs.String("e", "", "Parse inline code instead of a file")
	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: loam ast [-e code] <file>\n")
		fmt.Fprintf(os.Stderr, "Print the parsed AST as s-expressions\n\n")
		fmt.Fprintf(os.Stderr, "Flags:\n")
		fs.PrintDefaults()
	}

	if err := fs.Parse(args); err != nil {
		os.Exit(1)
	}

	src := readSource(fs, *inline)
	diags := &Diagnostics{}
	tokens := Lex(src, diags)
	script := ParseScript(tokens, diags)
	if diags.HasErrors() {
		fmt.Fprint(os.Stderr, diags.Render(src))
	}
	fmt.Print(ScriptToSExpr(script))
	if diags.HasErrors() {
		os.Exit(1)
	}
}

func tokensCommand(args []string) {
	fs := flag.NewFlagSet("tokens", flag.ExitOnError)
	inline := fs.String("e", "", "Lex inline code instead of a file")
	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: loam tokens [-e code] <file>\n")
		fmt.Fprintf(os.Stderr, "Print the token stream\n\n")
		fmt.Fprintf(os.Stderr, "Flags:\n")
		fs.PrintDefaults()
	}

	if err := fs.Parse(args); err != nil {
		os.Exit(1)
	}

	src := readSource(fs, *inline)
	diags := &Diagnostics{}
	tokens := Lex(src, diags)
	for _, tok := range tokens {
		line, col := lineCol(src, tok.Span.Start)
		if tok.Literal != "" && string(tok.Type) != tok.Literal {
			fmt.Printf("%d:%d\t%s\t%q\n", line, col, tok.Type, tok.Literal)
		} else {
			fmt.Printf("%d:%d\t%s\n", line, col, tok.Type)
		}
	}
	if diags.HasErrors() {
		fmt.Fprint(os.Stderr, diags.Render(src))
		os.Exit(1)
	}
}

func replCommand(args []string) {
	fs := flag.NewFlagSet("repl", flag.ExitOnError)
	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: loam repl\n")
		fmt.Fprintf(os.Stderr, "Start an interactive type-checking session\n")
	}

	if err := fs.Parse(args); err != nil {
		os.Exit(1)
	}

	if err := runRepl(os.Stdout); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func main() {
	if len(os.Args) < 2 {
		showUsage()
		os.Exit(1)
	}

	command := os.Args[1]
	args := os.Args[2:]

	switch command {
	case "check":
		checkCommand(args)
	case "ast":
		astCommand(args)
	case "tokens":
		tokensCommand(args)
	case "repl":
		replCommand(args)
	case "help", "-h", "--help":
		showUsage()
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n\n", command)
		showUsage()
		os.Exit(1)
	}
}

// Package mdtest extracts compiler test cases from Markdown documents.
//
// A test case is a heading of the form "Test: <name>" followed by one input
// fence (language loam-expr for a statement snippet, loam-program for a full
// script) and one or more assertion fences:
//
//	ast     the expected s-expression rendering of the parse
//	type    the type the snippet yields after checking
//	errors  the expected diagnostics, one "Kind: message" line each
package mdtest

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/text"
)

type InputType string

const (
	InputExpr    InputType = "loam-expr"
	InputProgram InputType = "loam-program"
)

type AssertionType string

const (
	AssertAST    AssertionType = "ast"
	AssertType   AssertionType = "type"
	AssertErrors AssertionType = "errors"
)

type Assertion struct {
	Type    AssertionType
	Content string
}

type TestCase struct {
	Name       string
	Input      string
	InputType  InputType
	Assertions []Assertion
}

// ExtractTestCases walks a Markdown document and collects every test case.
// Fences with an unknown language, fences outside a test heading and tests
// missing an input or assertions are all hard errors, so a typo in a corpus
// file fails loudly instead of silently skipping the test.
func ExtractTestCases(markdownContent string) ([]TestCase, error) {
	md := goldmark.New()
	source := []byte(markdownContent)
	doc := md.Parser().Parse(text.NewReader(source))

	var testCases []TestCase
	var current *TestCase

	err := ast.Walk(doc, func(node ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering {
			return ast.WalkContinue, nil
		}

		switch n := node.(type) {
		case *ast.Heading:
			headingText := extractText(n, source)
			if !strings.HasPrefix(headingText, "Test: ") {
				return ast.WalkContinue, nil
			}
			if current != nil {
				if err := validate(current); err != nil {
					return ast.WalkStop, err
				}
				testCases = append(testCases, *current)
			}
			current = &TestCase{Name: strings.TrimPrefix(headingText, "Test: ")}

		case *ast.FencedCodeBlock:
			language := string(n.Language(source))
			content := fenceContent(n, source)
			lineNum := lineNumber(n, source)

			if current == nil {
				if language == "" {
					return ast.WalkContinue, nil
				}
				return ast.WalkStop, fmt.Errorf("line %d: %s fence found outside of a test case", lineNum, language)
			}

			switch {
			case isInputFence(language):
				if current.Input != "" {
					return ast.WalkStop, fmt.Errorf("line %d: multiple input fences in test %q", lineNum, current.Name)
				}
				current.Input = strings.TrimRight(content, "\n")
				current.InputType = InputType(language)
			case isAssertionFence(language):
				current.Assertions = append(current.Assertions, Assertion{
					Type:    AssertionType(language),
					Content: strings.TrimRight(content, "\n"),
				})
			default:
				return ast.WalkStop, fmt.Errorf("line %d: unknown fence language %q in test %q", lineNum, language, current.Name)
			}
		}

		return ast.WalkContinue, nil
	})
	if err != nil {
		return nil, err
	}

	if current != nil {
		if err := validate(current); err != nil {
			return nil, err
		}
		testCases = append(testCases, *current)
	}

	return testCases, nil
}

// NormalizeSExpr collapses all whitespace runs so corpus authors can wrap
// long s-expressions across lines.
func NormalizeSExpr(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

func isInputFence(language string) bool {
	return language == string(InputExpr) || language == string(InputProgram)
}

func isAssertionFence(language string) bool {
	return language == string(AssertAST) ||
		language == string(AssertType) ||
		language == string(AssertErrors)
}

func validate(tc *TestCase) error {
	if tc.Input == "" {
		return fmt.Errorf("test %q has no input fence", tc.Name)
	}
	if len(tc.Assertions) == 0 {
		return fmt.Errorf("test %q has no assertion fences", tc.Name)
	}
	return nil
}

func extractText(node ast.Node, source []byte) string {
	var buf bytes.Buffer
	ast.Walk(node, func(n ast.Node, entering bool) (ast.WalkStatus, error) {
		if entering {
			if t, ok := n.(*ast.Text); ok {
				buf.Write(t.Segment.Value(source))
			}
		}
		return ast.WalkContinue, nil
	})
	return buf.String()
}

func fenceContent(codeBlock *ast.FencedCodeBlock, source []byte) string {
	var buf bytes.Buffer
	for i := 0; i < codeBlock.Lines().Len(); i++ {
		line := codeBlock.Lines().At(i)
		buf.Write(line.Value(source))
	}
	return buf.String()
}

func lineNumber(node ast.Node, source []byte) int {
	if node.Lines().Len() == 0 {
		return 1
	}
	start := node.Lines().At(0).Start
	lineNum := 1
	for i := 0; i < start && i < len(source); i++ {
		if source[i] == '\n' {
			lineNum++
		}
	}
	return lineNum
}

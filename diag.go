package main

import (
	"fmt"
	"strings"
)

// DiagKind classifies a diagnostic. The kind is part of the contract with
// whatever renders the diagnostics; messages are free-form.
type DiagKind int

const (
	InvalidCharacter DiagKind = iota
	SyntaxError
	DuplicateDefinition
	TypeMismatch
	MissingTypeAnnotation
	ExpectedValue
	UnknownIdentifier
	ImmutableAssignment
	UnresolvedLabel
	NoMatchingOverload
	InvalidConstant
	InvalidStartFunction
)

func (k DiagKind) String() string {
	switch k {
	case InvalidCharacter:
		return "InvalidCharacter"
	case SyntaxError:
		return "SyntaxError"
	case DuplicateDefinition:
		return "DuplicateDefinition"
	case TypeMismatch:
		return "TypeMismatch"
	case MissingTypeAnnotation:
		return "MissingTypeAnnotation"
	case ExpectedValue:
		return "ExpectedValue"
	case UnknownIdentifier:
		return "UnknownIdentifier"
	case ImmutableAssignment:
		return "ImmutableAssignment"
	case UnresolvedLabel:
		return "UnresolvedLabel"
	case NoMatchingOverload:
		return "NoMatchingOverload"
	case InvalidConstant:
		return "InvalidConstant"
	case InvalidStartFunction:
		return "InvalidStartFunction"
	default:
		return fmt.Sprintf("DiagKind(%d)", int(k))
	}
}

// DiagLabel is a secondary span with its own note, e.g. the location of a
// previous definition or a candidate signature.
type DiagLabel struct {
	Span    Span
	Message string
}

// Diagnostic is one reported problem: a kind, a message, a primary span and
// zero or more labeled secondary spans. Rendering is the caller's concern.
type Diagnostic struct {
	Kind    DiagKind
	Message string
	Span    Span
	Labels  []DiagLabel
}

// Error makes a Diagnostic usable as a Go error, which lets the type checker
// fail fast through ordinary error returns after recording the diagnostic.
func (d Diagnostic) Error() string {
	return fmt.Sprintf("%s: %s", d.Kind, d.Message)
}

// Diagnostics collects every problem found during one compilation.
type Diagnostics struct {
	list []Diagnostic
}

func (ds *Diagnostics) Add(d Diagnostic) {
	ds.list = append(ds.list, d)
}

func (ds *Diagnostics) HasErrors() bool {
	return len(ds.list) > 0
}

func (ds *Diagnostics) Len() int {
	return len(ds.list)
}

// All returns the collected diagnostics in emission order.
func (ds *Diagnostics) All() []Diagnostic {
	return ds.list
}

// String renders one "Kind: message" line per diagnostic, without source
// positions. Use Render for position-annotated output.
func (ds *Diagnostics) String() string {
	var sb strings.Builder
	for _, d := range ds.list {
		sb.WriteString(d.Error())
		sb.WriteByte('\n')
	}
	return sb.String()
}

// Render formats every diagnostic against the source it was produced from,
// with 1-based line:column positions and indented secondary labels.
func (ds *Diagnostics) Render(src []byte) string {
	var sb strings.Builder
	for _, d := range ds.list {
		line, col := lineCol(src, d.Span.Start)
		fmt.Fprintf(&sb, "%d:%d: error[%s]: %s\n", line, col, d.Kind, d.Message)
		for _, l := range d.Labels {
			line, col := lineCol(src, l.Span.Start)
			fmt.Fprintf(&sb, "  %d:%d: note: %s\n", line, col, l.Message)
		}
	}
	return sb.String()
}

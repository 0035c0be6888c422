package main

import (
	"testing"

	"github.com/nalgeon/be"
)

func TestDiagnosticError(t *testing.T) {
	d := Diagnostic{Kind: TypeMismatch, Message: "expected type i32, found f32"}
	be.Equal(t, d.Error(), "TypeMismatch: expected type i32, found f32")
}

func TestDiagnosticsString(t *testing.T) {
	var ds Diagnostics
	be.Equal(t, ds.String(), "")
	ds.Add(Diagnostic{Kind: UnknownIdentifier, Message: "undefined variable \"x\""})
	ds.Add(Diagnostic{Kind: SyntaxError, Message: "expected expression"})
	be.Equal(t, ds.String(), "UnknownIdentifier: undefined variable \"x\"\nSyntaxError: expected expression\n")
}

func TestDiagnosticsRender(t *testing.T) {
	src := []byte("let x = 1;\nlet x = 2;\n")
	var ds Diagnostics
	ds.Add(Diagnostic{
		Kind:    DuplicateDefinition,
		Message: "\"x\" is already defined",
		Span:    Span{Start: 15, End: 16},
		Labels:  []DiagLabel{{Span: Span{Start: 4, End: 5}, Message: "previous definition is here"}},
	})
	want := "2:5: error[DuplicateDefinition]: \"x\" is already defined\n" +
		"  1:5: note: previous definition is here\n"
	be.Equal(t, ds.Render(src), want)
}

func TestDiagnosticsHasErrors(t *testing.T) {
	var ds Diagnostics
	be.True(t, !ds.HasErrors())
	ds.Add(Diagnostic{Kind: SyntaxError})
	be.True(t, ds.HasErrors())
	be.Equal(t, ds.Len(), 1)
	be.Equal(t, ds.All()[0].Kind, SyntaxError)
}

func TestLineCol(t *testing.T) {
	src := []byte("ab\ncd\n")
	tests := []struct {
		offset    int
		line, col int
	}{
		{0, 1, 1},
		{1, 1, 2},
		{2, 1, 3},
		{3, 2, 1},
		{4, 2, 2},
		{6, 3, 1},
		{99, 3, 1}, // clamped to the end
	}
	for _, tt := range tests {
		line, col := lineCol(src, tt.offset)
		be.Equal(t, line, tt.line)
		be.Equal(t, col, tt.col)
	}
}

func TestSpanCover(t *testing.T) {
	a := Span{Start: 4, End: 7}
	b := Span{Start: 1, End: 5}
	be.Equal(t, a.Cover(b), Span{Start: 1, End: 7})
	be.Equal(t, b.Cover(a), Span{Start: 1, End: 7})
	be.Equal(t, a.Cover(a), a)
}

func TestDiagKindStrings(t *testing.T) {
	be.Equal(t, InvalidCharacter.String(), "InvalidCharacter")
	be.Equal(t, NoMatchingOverload.String(), "NoMatchingOverload")
	be.Equal(t, InvalidStartFunction.String(), "InvalidStartFunction")
	be.Equal(t, DiagKind(99).String(), "DiagKind(99)")
}

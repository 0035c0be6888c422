package main

import (
	"testing"

	"github.com/nalgeon/be"
)

func TestAnalyzeSourceClean(t *testing.T) {
	s, diags, ok := AnalyzeSource([]byte(`fn add(a: i32, b: i32) -> i32 { a + b }`), NoIntrinsics)
	if !ok {
		t.Fatal(diags.String())
	}
	be.Equal(t, len(s.Functions), 1)
	be.Equal(t, s.Functions[0].Body.Type, TypeI32)
}

// Parse errors stop the pipeline before the checker runs: the partial tree
// comes back untyped and the only diagnostics are syntactic.
func TestAnalyzeSourceSkipsCheckingAfterParseErrors(t *testing.T) {
	s, diags, ok := AnalyzeSource([]byte(`fn f() -> i32 { undefined_name + }`), NoIntrinsics)
	be.True(t, !ok)
	be.True(t, diags.HasErrors())
	for _, d := range diags.All() {
		be.Equal(t, d.Kind, SyntaxError)
	}
	be.Equal(t, s.Functions[0].Body.Type, TypeVoid)
}

func TestAnalyzeSourceCheckingErrors(t *testing.T) {
	_, diags, ok := AnalyzeSource([]byte(`fn f() -> i32 { 1.5 }`), NoIntrinsics)
	be.True(t, !ok)
	be.Equal(t, diags.All()[0].Kind, TypeMismatch)
}

func TestCheckSnippetType(t *testing.T) {
	typ, diags := CheckSnippet([]byte(`let x = 3; x * x`), NoIntrinsics)
	be.Equal(t, diags.Len(), 0)
	be.Equal(t, typ, TypeI32)
}

func TestCheckSnippetVoid(t *testing.T) {
	typ, diags := CheckSnippet([]byte(`let x = 1;`), NoIntrinsics)
	be.Equal(t, diags.Len(), 0)
	be.Equal(t, typ, TypeVoid)
}

func TestCheckSnippetTrailingInput(t *testing.T) {
	_, diags := CheckSnippet([]byte(`1 + 2 }`), NoIntrinsics)
	be.True(t, diags.HasErrors())
	be.Equal(t, diags.All()[0].Kind, SyntaxError)
}

func TestCheckSnippetUsesIntrinsics(t *testing.T) {
	typ, diags := CheckSnippet([]byte(`sqrt(2.0)`), DefaultIntrinsics())
	be.Equal(t, diags.Len(), 0)
	be.Equal(t, typ, TypeF32)
}

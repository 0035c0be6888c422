package main

import (
	"testing"

	"github.com/nalgeon/be"
)

func analyze(src string) (*Script, *Diagnostics, bool) {
	return AnalyzeSource([]byte(src), DefaultIntrinsics())
}

func snippetType(t *testing.T, src string) Type {
	t.Helper()
	typ, diags := CheckSnippet([]byte(src), DefaultIntrinsics())
	if diags.HasErrors() {
		t.Fatalf("unexpected errors:\n%s", diags.String())
	}
	return typ
}

func snippetError(t *testing.T, src string) Diagnostic {
	t.Helper()
	_, diags := CheckSnippet([]byte(src), DefaultIntrinsics())
	if diags.Len() != 1 {
		t.Fatalf("expected exactly one diagnostic, got %d:\n%s", diags.Len(), diags.String())
	}
	return diags.All()[0]
}

func TestCheckConstTypes(t *testing.T) {
	be.Equal(t, snippetType(t, "1"), TypeI32)
	be.Equal(t, snippetType(t, "1.5"), TypeF32)
}

func TestCheckArithmetic(t *testing.T) {
	be.Equal(t, snippetType(t, "1 + 2 * 3"), TypeI32)
	be.Equal(t, snippetType(t, "1.0 / 2.0"), TypeF32)
	be.Equal(t, snippetType(t, "i64(1) % i64(2)"), TypeI64)
}

func TestCheckComparisonsYieldI32(t *testing.T) {
	be.Equal(t, snippetType(t, "1.5 < 2.5"), TypeI32)
	be.Equal(t, snippetType(t, "i64(1) == i64(1)"), TypeI32)
}

func TestCheckIntOnlyOperators(t *testing.T) {
	d := snippetError(t, "1.0 & 2.0")
	be.Equal(t, d.Kind, TypeMismatch)
}

func TestCheckOperandTypesMustMatch(t *testing.T) {
	d := snippetError(t, "1 + 1.5")
	be.Equal(t, d.Kind, TypeMismatch)
	be.Equal(t, d.Message, "expected type i32, found f32")
}

func TestCheckLetInference(t *testing.T) {
	be.Equal(t, snippetType(t, "let x = 1.5; x"), TypeF32)
	be.Equal(t, snippetType(t, "let x: i64 = i64(3); x + x"), TypeI64)
}

func TestCheckLetAnnotationMismatch(t *testing.T) {
	d := snippetError(t, "let x: i64 = 1;")
	be.Equal(t, d.Kind, TypeMismatch)
	be.Equal(t, d.Message, "expected type i64, found i32")
}

func TestCheckLetNeedsTypeOrInit(t *testing.T) {
	d := snippetError(t, "let x;")
	be.Equal(t, d.Kind, MissingTypeAnnotation)
}

func TestCheckUnknownVariable(t *testing.T) {
	d := snippetError(t, "nope")
	be.Equal(t, d.Kind, UnknownIdentifier)
	be.Equal(t, d.Message, `unknown variable "nope"`)
}

func TestCheckInlineLetIsImmutable(t *testing.T) {
	d := snippetError(t, "let defer x = 1; x = 2")
	be.Equal(t, d.Kind, ImmutableAssignment)
	be.Equal(t, d.Message, `cannot assign to immutable variable "x"`)
}

func TestCheckTeeYieldsLocalType(t *testing.T) {
	be.Equal(t, snippetType(t, "let x = 1; (x := 2) + 3"), TypeI32)
}

func TestCheckTeeRequiresStoredLocal(t *testing.T) {
	d := snippetError(t, "let defer x = 1; x := 2")
	be.Equal(t, d.Kind, ImmutableAssignment)
}

func TestCheckMemoryOps(t *testing.T) {
	be.Equal(t, snippetType(t, "let p = 0; p ? 4"), TypeI32)
	be.Equal(t, snippetType(t, "let p = 0; p ! 0 = 7;"), TypeVoid)
}

func TestCheckMemoryAddressMustBeI32(t *testing.T) {
	d := snippetError(t, "1.5 ? 0")
	be.Equal(t, d.Kind, TypeMismatch)
}

func TestCheckMemoryOffsetMustBeConstant(t *testing.T) {
	d := snippetError(t, "let p = 0; let i = 1; p ? i")
	be.Equal(t, d.Kind, InvalidConstant)
}

func TestCheckPokeValueMustBeI32(t *testing.T) {
	d := snippetError(t, "let p = 0; p ! 0 = 1.5;")
	be.Equal(t, d.Kind, TypeMismatch)
}

func TestCheckLoopYieldsBodyType(t *testing.T) {
	be.Equal(t, snippetType(t, "loop go { branch_if 1: go; }"), TypeVoid)
}

func TestCheckBranchLabelScope(t *testing.T) {
	d := snippetError(t, "loop a { }; branch_if 1: a")
	be.Equal(t, d.Kind, UnresolvedLabel)
	be.Equal(t, d.Message, `label "a" is not in scope`)
}

func TestCheckBranchConditionMustBeI32(t *testing.T) {
	d := snippetError(t, "loop a { branch_if 1.5: a; }")
	be.Equal(t, d.Kind, TypeMismatch)
}

func TestCheckNestedLoopLabels(t *testing.T) {
	be.Equal(t, snippetType(t, `
loop outer {
    loop inner {
        branch_if 1: outer;
        branch_if 2: inner;
    }
}`), TypeVoid)
}

func TestCheckSelect(t *testing.T) {
	be.Equal(t, snippetType(t, "select(1, 2.5, 3.5)"), TypeF32)

	d := snippetError(t, "select(1.0, 2, 3)")
	be.Equal(t, d.Kind, TypeMismatch)
}

func TestCheckCastFromAnyValueType(t *testing.T) {
	be.Equal(t, snippetType(t, "f64(1)"), TypeF64)
	be.Equal(t, snippetType(t, "i32(1.5)"), TypeI32)
}

func TestCheckCastRejectsVoid(t *testing.T) {
	d := snippetError(t, "let p = 0; i32(p ! 0 = 1)")
	be.Equal(t, d.Kind, ExpectedValue)
	be.Equal(t, d.Message, "expected a value, found an expression of type void")
}

func TestCheckBlockScoping(t *testing.T) {
	// A let inside a loop body goes out of scope with the body.
	d := snippetError(t, "loop a { let x = 1; }; x")
	be.Equal(t, d.Kind, UnknownIdentifier)
}

func TestCheckIntrinsicOverloads(t *testing.T) {
	be.Equal(t, snippetType(t, "sqrt(2.0)"), TypeF32)
	be.Equal(t, snippetType(t, "clz(8)"), TypeI32)
	be.Equal(t, snippetType(t, "clz(i64(8))"), TypeI64)
	be.Equal(t, snippetType(t, "memory_size()"), TypeI32)
	be.Equal(t, snippetType(t, "memory_grow(1)"), TypeI32)
	be.Equal(t, snippetType(t, "unreachable();"), TypeVoid)
}

func TestCheckOverloadMismatchListsCandidates(t *testing.T) {
	d := snippetError(t, "min(1, 2)")
	be.Equal(t, d.Kind, NoMatchingOverload)
	be.Equal(t, d.Message, `no overload of "min" matches (i32, i32)`)
	be.Equal(t, len(d.Labels), 2)
	be.Equal(t, d.Labels[0].Message, "candidate: min(f32, f32) -> f32")
	be.Equal(t, d.Labels[1].Message, "candidate: min(f64, f64) -> f64")
}

func TestCheckUnknownFunction(t *testing.T) {
	d := snippetError(t, "mystery(1)")
	be.Equal(t, d.Kind, UnknownIdentifier)
	be.Equal(t, d.Message, `unknown function "mystery"`)
}

func TestCheckVoidArgument(t *testing.T) {
	d := snippetError(t, "clz(unreachable())")
	be.Equal(t, d.Kind, ExpectedValue)
}

func TestCheckScriptRoundTrip(t *testing.T) {
	s, diags, ok := analyze(`
export fn add(a: i32, b: i32) -> i32 {
    a + b
}`)
	be.True(t, ok)
	be.True(t, !diags.HasErrors())
	f := s.Functions[0]
	be.Equal(t, f.Body.Type, TypeI32)
	be.Equal(t, f.Body.Last.X.LocalID, 0)
	be.Equal(t, f.Body.Last.Y.LocalID, 1)
}

func TestCheckBodyResultMismatch(t *testing.T) {
	_, diags, ok := analyze(`fn f() -> i32 { 1.0 }`)
	be.True(t, !ok)
	be.Equal(t, diags.Len(), 1)
	be.Equal(t, diags.All()[0].Kind, TypeMismatch)
}

func TestCheckBareReturnInValueFunction(t *testing.T) {
	c := NewChecker(NoIntrinsics, &Diagnostics{})
	c.returnType = TypeI32
	err := c.CheckExpression(&Expr{Kind: ExprReturn, LocalID: -1})
	be.True(t, err != nil)
}

func TestCheckDuplicateGlobalsKeepFirst(t *testing.T) {
	_, diags, ok := analyze(`
global g = 1;
global g = 2.0;
`)
	be.True(t, !ok)
	be.Equal(t, diags.Len(), 1)
	d := diags.All()[0]
	be.Equal(t, d.Kind, DuplicateDefinition)
	be.Equal(t, d.Message, `global "g" is already defined`)
	// The label points back at the first definition.
	be.Equal(t, len(d.Labels), 1)
	be.True(t, d.Labels[0].Span.Start < d.Span.Start)
}

func TestCheckImportedGlobals(t *testing.T) {
	_, diags, ok := analyze(`
import "env" global mut ticks: i64;
fn rate() -> i64 { ticks / i64(60) }
fn reset() { ticks = i64(0); }
`)
	if !ok {
		t.Fatal(diags.String())
	}
}

func TestCheckImmutableGlobalAssignment(t *testing.T) {
	_, diags, ok := analyze(`
global limit = 10;
fn f() { limit = 11; }
`)
	be.True(t, !ok)
	be.Equal(t, diags.All()[0].Kind, ImmutableAssignment)
}

func TestCheckGlobalTypeInference(t *testing.T) {
	s, _, ok := analyze(`global half = 0.5;`)
	be.True(t, ok)
	be.Equal(t, s.Globals[0].Type, TypeF32)
}

func TestCheckForwardAndRecursiveCalls(t *testing.T) {
	_, diags, ok := analyze(`
fn even(n: i32) -> i32 { select(n == 0, 1, odd(n - 1)) }
fn odd(n: i32) -> i32 { select(n == 0, 0, even(n - 1)) }
`)
	if !ok {
		t.Fatal(diags.String())
	}
}

func TestCheckUserFunctionShadowsIntrinsic(t *testing.T) {
	_, diags, ok := analyze(`
fn sqrt(x: i32) -> i32 { x }
fn f() -> i32 { sqrt(4) }
`)
	if !ok {
		t.Fatal(diags.String())
	}
}

func TestCheckStartValidation(t *testing.T) {
	_, diags, ok := analyze(`start fn main() -> i32 { 1 }`)
	be.True(t, !ok)
	be.Equal(t, diags.All()[0].Kind, InvalidStartFunction)

	_, diags, ok = analyze(`
start fn a() {}
start fn b() {}
`)
	be.True(t, !ok)
	be.Equal(t, diags.All()[0].Kind, InvalidStartFunction)
	be.Equal(t, diags.All()[0].Message, "start function is already defined")
}

func TestCheckDataSegments(t *testing.T) {
	_, diags, ok := analyze(`memory (8) = "text", i16 { 1, 2 }, f32 { 0.5 };`)
	if !ok {
		t.Fatal(diags.String())
	}
}

func TestCheckDataOffsetMustBeI32Constant(t *testing.T) {
	_, diags, ok := analyze(`memory (1.0) = "x";`)
	be.True(t, !ok)
	be.Equal(t, diags.All()[0].Kind, TypeMismatch)
}

func TestCheckRegistrationBatchesButAbortsBetweenPhases(t *testing.T) {
	// Both duplicates are reported, and the broken body is never reached.
	_, diags, ok := analyze(`
global g = 1;
global g = 2;
global h = 3;
global h = 4;
fn f() -> i32 { missing() }
`)
	be.True(t, !ok)
	be.Equal(t, diags.Len(), 2)
	for _, d := range diags.All() {
		be.Equal(t, d.Kind, DuplicateDefinition)
	}
}

func TestCheckBodiesFailFastButCoverAllFunctions(t *testing.T) {
	_, diags, ok := analyze(`
fn f() { a; b; }
fn g() { c; }
`)
	be.True(t, !ok)
	// One error per function: f stops at a, g still gets checked.
	be.Equal(t, diags.Len(), 2)
	be.Equal(t, diags.All()[0].Message, `unknown variable "a"`)
	be.Equal(t, diags.All()[1].Message, `unknown variable "c"`)
}

func TestCheckDuplicateParams(t *testing.T) {
	_, diags, ok := analyze(`fn f(x: i32, x: i32) {}`)
	be.True(t, !ok)
	be.Equal(t, diags.All()[0].Kind, DuplicateDefinition)
}

func TestCheckErrorNodeIsRejected(t *testing.T) {
	c := NewChecker(NoIntrinsics, &Diagnostics{})
	err := c.CheckExpression(&Expr{Kind: ExprError, LocalID: -1})
	be.True(t, err != nil)
}

func TestCheckIfAndReturnForms(t *testing.T) {
	c := NewChecker(NoIntrinsics, &Diagnostics{})
	c.returnType = TypeI32

	cond := &Expr{Kind: ExprI32Const, Int: 1, LocalID: -1}
	yes := &Expr{Kind: ExprI32Const, Int: 2, LocalID: -1}
	no := &Expr{Kind: ExprI32Const, Int: 3, LocalID: -1}

	both := &Expr{Kind: ExprIf, X: cond, Y: yes, Z: no, LocalID: -1}
	be.Err(t, c.CheckExpression(both), nil)
	be.Equal(t, both.Type, TypeI32)

	ret := &Expr{Kind: ExprReturn, X: &Expr{Kind: ExprI32Const, Int: 4, LocalID: -1}, LocalID: -1}
	be.Err(t, c.CheckExpression(ret), nil)
	be.Equal(t, ret.Type, TypeVoid)
}

func TestCheckIfWithoutElseIsVoid(t *testing.T) {
	c := NewChecker(NoIntrinsics, &Diagnostics{})
	e := &Expr{
		Kind:    ExprIf,
		X:       &Expr{Kind: ExprI32Const, Int: 1, LocalID: -1},
		Y:       &Expr{Kind: ExprI32Const, Int: 2, LocalID: -1},
		LocalID: -1,
	}
	be.Err(t, c.CheckExpression(e), nil)
	be.Equal(t, e.Type, TypeVoid)
}

func TestCheckFirstYieldsLeftType(t *testing.T) {
	c := NewChecker(NoIntrinsics, &Diagnostics{})
	e := &Expr{
		Kind:    ExprFirst,
		X:       &Expr{Kind: ExprF64Const, Float: 1.0, LocalID: -1},
		Y:       &Expr{Kind: ExprI32Const, Int: 2, LocalID: -1},
		LocalID: -1,
	}
	be.Err(t, c.CheckExpression(e), nil)
	be.Equal(t, e.Type, TypeF64)
}

func TestCheckShiftsAreIntOnly(t *testing.T) {
	c := NewChecker(NoIntrinsics, &Diagnostics{})
	e := &Expr{
		Kind:    ExprBinary,
		Bin:     OpShl,
		X:       &Expr{Kind: ExprF32Const, Float: 1.0, LocalID: -1},
		Y:       &Expr{Kind: ExprF32Const, Float: 2.0, LocalID: -1},
		LocalID: -1,
	}
	err := c.CheckExpression(e)
	be.True(t, err != nil)
}

func TestCheckUnsignedComparison(t *testing.T) {
	c := NewChecker(NoIntrinsics, &Diagnostics{})
	e := &Expr{
		Kind:    ExprBinary,
		Bin:     OpLtU,
		X:       &Expr{Kind: ExprI32Const, Int: 1, LocalID: -1},
		Y:       &Expr{Kind: ExprI32Const, Int: 2, LocalID: -1},
		LocalID: -1,
	}
	be.Err(t, c.CheckExpression(e), nil)
	be.Equal(t, e.Type, TypeI32)
}

func TestCheckLogicalNot(t *testing.T) {
	c := NewChecker(NoIntrinsics, &Diagnostics{})
	e := &Expr{
		Kind:    ExprUnary,
		Unary:   OpNot,
		X:       &Expr{Kind: ExprI64Const, Int: 1, LocalID: -1},
		LocalID: -1,
	}
	be.Err(t, c.CheckExpression(e), nil)
	be.Equal(t, e.Type, TypeI32)

	bad := &Expr{
		Kind:    ExprUnary,
		Unary:   OpNot,
		X:       &Expr{Kind: ExprF32Const, Float: 1.0, LocalID: -1},
		LocalID: -1,
	}
	be.True(t, c.CheckExpression(bad) != nil)
}

func TestCheckLabeledBlockMustBeVoid(t *testing.T) {
	c := NewChecker(NoIntrinsics, &Diagnostics{})
	e := &Expr{
		Kind: ExprLabelBlock,
		Name: "out",
		X: &Expr{
			Kind:    ExprBlock,
			Last:    &Expr{Kind: ExprI32Const, Int: 1, LocalID: -1},
			LocalID: -1,
		},
		LocalID: -1,
	}
	err := c.CheckExpression(e)
	be.True(t, err != nil)
}

func TestCheckBranchInsideLabeledBlock(t *testing.T) {
	c := NewChecker(NoIntrinsics, &Diagnostics{})
	e := &Expr{
		Kind: ExprLabelBlock,
		Name: "out",
		X: &Expr{
			Kind:    ExprBlock,
			Stmts:   []*Expr{{Kind: ExprBranch, Name: "out", LocalID: -1}},
			LocalID: -1,
		},
		LocalID: -1,
	}
	be.Err(t, c.CheckExpression(e), nil)
	be.Equal(t, e.Type, TypeVoid)
}

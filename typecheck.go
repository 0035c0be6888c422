package main

import (
	"fmt"
	"sort"
	"strings"
)

type globalInfo struct {
	span    Span
	typ     Type
	mutable bool
}

type funcSig struct {
	span   Span
	params []Type
	result Type
}

// Checker holds all of the state of one type-checking pass: the per-kind
// symbol tables, the current function's local arena, the lexical scope
// stack, the active-label stack and the expected return type. All of it is
// created per compilation and passed explicitly through the recursion, so
// independent compilations never interfere.
type Checker struct {
	intrinsics IntrinsicTable
	diags      *Diagnostics

	globals map[string]*globalInfo
	funcs   map[string]*funcSig

	locals     Locals
	scopes     []map[string]int
	labels     []string
	returnType Type
}

func NewChecker(intr IntrinsicTable, diags *Diagnostics) *Checker {
	if intr == nil {
		intr = NoIntrinsics
	}
	return &Checker{
		intrinsics: intr,
		diags:      diags,
		globals:    make(map[string]*globalInfo),
		funcs:      make(map[string]*funcSig),
	}
}

// CheckScript type-checks a fully parsed script, annotating every
// expression's type and every stored local's slot index in place. It must
// not be called twice on the same tree, and must only see trees from a
// parse that produced no errors.
//
// Declaration-level problems are batched so one run reports as many
// independent problems as possible; each phase only runs if every earlier
// phase was clean. Within one function body (or constant context) checking
// is fail-fast: after the first hard error any further inference would
// operate on unknown types and produce noise.
func (c *Checker) CheckScript(s *Script) bool {
	for _, phase := range []func(*Checker, *Script) bool{
		(*Checker).registerImports,
		(*Checker).registerGlobals,
		(*Checker).registerSignatures,
		(*Checker).checkStartFunctions,
		(*Checker).checkData,
		(*Checker).checkBodies,
	} {
		if !phase(c, s) {
			return false
		}
	}
	return true
}

func (c *Checker) registerImports(s *Script) bool {
	ok := true
	for _, imp := range s.Imports {
		switch imp.Kind {
		case ImportVariable:
			if prev, exists := c.globals[imp.Name]; exists {
				c.duplicate(fmt.Sprintf("global %q is already defined", imp.Name), imp.Span, prev.span)
				ok = false
				continue
			}
			c.globals[imp.Name] = &globalInfo{span: imp.Span, typ: imp.VarType, mutable: imp.Mutable}
		case ImportFunction:
			if prev, exists := c.funcs[imp.Name]; exists {
				c.duplicate(fmt.Sprintf("function %q is already defined", imp.Name), imp.Span, prev.span)
				ok = false
				continue
			}
			c.funcs[imp.Name] = &funcSig{span: imp.Span, params: imp.Params, result: imp.Result}
		case ImportMemory:
			// Nothing to register; the page count matters to codegen only.
		}
	}
	return ok
}

func (c *Checker) registerGlobals(s *Script) bool {
	ok := true
	for _, g := range s.Globals {
		if prev, exists := c.globals[g.Name]; exists {
			c.duplicate(fmt.Sprintf("global %q is already defined", g.Name), g.Span, prev.span)
			ok = false
			continue
		}
		if err := c.checkConst(g.Value); err != nil {
			ok = false
			continue
		}
		if g.Type != TypeVoid {
			if g.Type != g.Value.Type {
				c.typeMismatch(g.Type, g.Span, g.Value.Type, g.Value.Span)
				ok = false
			}
		} else {
			g.Type = g.Value.Type
		}
		c.globals[g.Name] = &globalInfo{span: g.Span, typ: g.Type, mutable: g.Mutable}
	}
	return ok
}

// registerSignatures is a dedicated pre-pass over every function before any
// body is checked, so calls can be forward and mutually recursive.
func (c *Checker) registerSignatures(s *Script) bool {
	ok := true
	for _, f := range s.Functions {
		if prev, exists := c.funcs[f.Name]; exists {
			c.duplicate(fmt.Sprintf("function %q is already defined", f.Name), f.Span, prev.span)
			ok = false
			continue
		}
		params := make([]Type, len(f.Params))
		for i, p := range f.Params {
			params[i] = p.Type
		}
		c.funcs[f.Name] = &funcSig{span: f.Span, params: params, result: f.Result}
	}
	return ok
}

func (c *Checker) checkStartFunctions(s *Script) bool {
	ok := true
	var prev *Function
	for _, f := range s.Functions {
		if !f.Start {
			continue
		}
		if len(f.Params) > 0 || f.Result != TypeVoid {
			c.diags.Add(Diagnostic{
				Kind:    InvalidStartFunction,
				Message: "start function cannot have parameters or a return type",
				Span:    f.Span,
			})
			ok = false
		}
		if prev != nil {
			c.diags.Add(Diagnostic{
				Kind:    InvalidStartFunction,
				Message: "start function is already defined",
				Span:    f.Span,
				Labels:  []DiagLabel{{Span: prev.Span, Message: "previous start function is here"}},
			})
			ok = false
		} else {
			prev = f
		}
	}
	return ok
}

func (c *Checker) checkData(s *Script) bool {
	ok := true
	for _, d := range s.Data {
		if err := c.checkConst(d.Offset); err != nil {
			ok = false
		} else if d.Offset.Type != TypeI32 {
			c.typeMismatch(TypeI32, d.Offset.Span, d.Offset.Type, d.Offset.Span)
			ok = false
		}
		for i := range d.Values {
			v := &d.Values[i]
			if v.IsString {
				continue
			}
			need := v.Width.ValueType()
			for _, val := range v.Values {
				if err := c.checkConst(val); err != nil {
					ok = false
					continue
				}
				if val.Type != need {
					c.typeMismatch(need, val.Span, val.Type, val.Span)
					ok = false
				}
			}
		}
	}
	return ok
}

func (c *Checker) checkBodies(s *Script) bool {
	ok := true
	for _, f := range s.Functions {
		if !c.checkFunction(f) {
			ok = false
		}
	}
	return ok
}

func (c *Checker) checkFunction(f *Function) bool {
	c.locals = Locals{}
	c.scopes = c.scopes[:0]
	c.labels = c.labels[:0]
	c.pushScope()
	defer c.popScope()

	ok := true
	for _, param := range f.Params {
		if prevSpan, found := c.definitionSpan(param.Name); found {
			c.duplicate(fmt.Sprintf("variable %q is already defined", param.Name), f.Span, prevSpan)
			ok = false
			continue
		}
		id := c.locals.AddParam(f.Span, param.Name, param.Type)
		c.bind(param.Name, id)
	}
	c.returnType = f.Result

	if err := c.checkExpr(f.Body); err != nil {
		ok = false
	} else {
		c.assignSlots()
		if f.Body.Type != f.Result {
			c.typeMismatch(f.Result, f.Span, f.Body.Type, f.Body.Span)
			ok = false
		}
	}

	f.Locals = c.locals
	c.locals = Locals{}
	return ok
}

// assignSlots numbers every stored non-parameter local, grouped by type in
// the fixed ordering i32 < i64 < f32 < f64 and starting right after the
// parameters. The downstream encoding declares locals as (count, type)
// runs, so same-typed locals must be contiguous.
func (c *Checker) assignSlots() {
	type pending struct {
		typ Type
		id  int
	}
	var ps []pending
	for id := c.locals.NumParams; id < len(c.locals.All); id++ {
		l := &c.locals.All[id]
		if l.Stored && l.Slot < 0 {
			ps = append(ps, pending{l.Type, id})
		}
	}
	sort.SliceStable(ps, func(i, j int) bool { return ps[i].typ < ps[j].typ })
	for i, pnd := range ps {
		c.locals.All[pnd.id].Slot = c.locals.NumParams + i
	}
}

// definitionSpan reports where name is already defined as a local in the
// current scope chain or as a global.
func (c *Checker) definitionSpan(name string) (Span, bool) {
	if id, ok := c.lookupLocal(name); ok {
		return c.locals.At(id).Span, true
	}
	if g, ok := c.globals[name]; ok {
		return g.span, true
	}
	return Span{}, false
}

func (c *Checker) pushScope() {
	c.scopes = append(c.scopes, make(map[string]int))
}

func (c *Checker) popScope() {
	c.scopes = c.scopes[:len(c.scopes)-1]
}

func (c *Checker) bind(name string, id int) {
	c.scopes[len(c.scopes)-1][name] = id
}

// lookupLocal resolves a name against the scope stack, innermost first.
func (c *Checker) lookupLocal(name string) (int, bool) {
	for i := len(c.scopes) - 1; i >= 0; i-- {
		if id, ok := c.scopes[i][name]; ok {
			return id, true
		}
	}
	return 0, false
}

func (c *Checker) lookupLocalCurrent(name string) (int, bool) {
	if len(c.scopes) == 0 {
		return 0, false
	}
	id, ok := c.scopes[len(c.scopes)-1][name]
	return id, ok
}

func (c *Checker) labelInScope(name string) bool {
	for _, l := range c.labels {
		if l == name {
			return true
		}
	}
	return false
}

// fail records the diagnostic and returns it as the error that aborts the
// enclosing body check.
func (c *Checker) fail(d Diagnostic) error {
	c.diags.Add(d)
	return d
}

// duplicate records a batched duplicate-definition diagnostic pointing at
// both the new and the previous definition.
func (c *Checker) duplicate(msg string, span, prevSpan Span) {
	c.diags.Add(Diagnostic{
		Kind:    DuplicateDefinition,
		Message: msg,
		Span:    span,
		Labels:  []DiagLabel{{Span: prevSpan, Message: "previous definition is here"}},
	})
}

// typeMismatch records a batched mismatch; typeMismatchErr is its
// fail-fast counterpart.
func (c *Checker) typeMismatch(expected Type, expectedSpan Span, found Type, foundSpan Span) {
	c.diags.Add(mismatchDiag(expected, expectedSpan, found, foundSpan))
}

func (c *Checker) typeMismatchErr(expected Type, expectedSpan Span, found Type, foundSpan Span) error {
	return c.fail(mismatchDiag(expected, expectedSpan, found, foundSpan))
}

func mismatchDiag(expected Type, expectedSpan Span, found Type, foundSpan Span) Diagnostic {
	d := Diagnostic{
		Kind:    TypeMismatch,
		Message: fmt.Sprintf("expected type %s, found %s", expected, found),
		Span:    foundSpan,
	}
	if expectedSpan != foundSpan {
		d.Labels = []DiagLabel{{Span: expectedSpan, Message: fmt.Sprintf("expected type %s because of this", expected)}}
	}
	return d
}

func (c *Checker) expectedValue(span Span) error {
	return c.fail(Diagnostic{
		Kind:    ExpectedValue,
		Message: "expected a value, found an expression of type void",
		Span:    span,
	})
}

func (c *Checker) unknownVariable(name string, span Span) error {
	return c.fail(Diagnostic{
		Kind:    UnknownIdentifier,
		Message: fmt.Sprintf("unknown variable %q", name),
		Span:    span,
	})
}

func (c *Checker) unknownFunction(name string, span Span) error {
	return c.fail(Diagnostic{
		Kind:    UnknownIdentifier,
		Message: fmt.Sprintf("unknown function %q", name),
		Span:    span,
	})
}

func (c *Checker) immutableAssign(name string, span Span) error {
	return c.fail(Diagnostic{
		Kind:    ImmutableAssignment,
		Message: fmt.Sprintf("cannot assign to immutable variable %q", name),
		Span:    span,
	})
}

func (c *Checker) unresolvedLabel(name string, span Span) error {
	return c.fail(Diagnostic{
		Kind:    UnresolvedLabel,
		Message: fmt.Sprintf("label %q is not in scope", name),
		Span:    span,
	})
}

// checkConst validates a compile-time-constant context: only the four
// literal kinds qualify.
func (c *Checker) checkConst(e *Expr) error {
	switch e.Kind {
	case ExprI32Const:
		e.Type = TypeI32
	case ExprI64Const:
		e.Type = TypeI64
	case ExprF32Const:
		e.Type = TypeF32
	case ExprF64Const:
		e.Type = TypeF64
	default:
		return c.fail(Diagnostic{
			Kind:    InvalidConstant,
			Message: "expected a constant expression",
			Span:    e.Span,
		})
	}
	return nil
}

func (c *Checker) checkMemLocation(m *MemoryLocation) error {
	if err := c.checkExpr(m.Addr); err != nil {
		return err
	}
	if err := c.checkConst(m.Offset); err != nil {
		return err
	}
	if m.Addr.Type != TypeI32 {
		return c.typeMismatchErr(TypeI32, m.Addr.Span, m.Addr.Type, m.Addr.Span)
	}
	if m.Offset.Type != TypeI32 {
		return c.typeMismatchErr(TypeI32, m.Offset.Span, m.Offset.Type, m.Offset.Span)
	}
	return nil
}

// CheckExpression type-checks a single expression the way function bodies
// are checked, against whatever has been registered so far. Used by the
// snippet checker and by tests; CheckScript is the full pipeline entry.
func (c *Checker) CheckExpression(e *Expr) error {
	if len(c.scopes) == 0 {
		c.pushScope()
	}
	return c.checkExpr(e)
}

func (c *Checker) checkExpr(e *Expr) error {
	switch e.Kind {
	case ExprError:
		// The pipeline never checks a tree from a failed parse; refuse
		// loudly rather than inferring around the hole.
		return c.fail(Diagnostic{
			Kind:    SyntaxError,
			Message: "cannot type-check an expression that failed to parse",
			Span:    e.Span,
		})

	case ExprI32Const:
		e.Type = TypeI32
	case ExprI64Const:
		e.Type = TypeI64
	case ExprF32Const:
		e.Type = TypeF32
	case ExprF64Const:
		e.Type = TypeF64

	case ExprVariable:
		if id, ok := c.lookupLocal(e.Name); ok {
			e.LocalID = id
			e.Type = c.locals.At(id).Type
		} else if g, ok := c.globals[e.Name]; ok {
			e.Type = g.typ
		} else {
			return c.unknownVariable(e.Name, e.Span)
		}

	case ExprAssign:
		if err := c.checkExpr(e.X); err != nil {
			return err
		}
		var targetType Type
		var targetSpan Span
		if id, ok := c.lookupLocal(e.Name); ok {
			e.LocalID = id
			l := c.locals.At(id)
			if !l.Stored {
				return c.immutableAssign(e.Name, e.Span)
			}
			targetType, targetSpan = l.Type, l.Span
		} else if g, ok := c.globals[e.Name]; ok {
			if !g.mutable {
				return c.immutableAssign(e.Name, e.Span)
			}
			targetType, targetSpan = g.typ, g.span
		} else {
			return c.unknownVariable(e.Name, e.Span)
		}
		if e.X.Type != targetType {
			return c.typeMismatchErr(targetType, targetSpan, e.X.Type, e.X.Span)
		}

	case ExprLocalTee:
		if err := c.checkExpr(e.X); err != nil {
			return err
		}
		id, ok := c.lookupLocal(e.Name)
		if !ok {
			return c.unknownVariable(e.Name, e.Span)
		}
		e.LocalID = id
		l := c.locals.At(id)
		if !l.Stored {
			return c.immutableAssign(e.Name, e.Span)
		}
		if e.X.Type != l.Type {
			return c.typeMismatchErr(l.Type, l.Span, e.X.Type, e.X.Span)
		}
		e.Type = l.Type

	case ExprLet:
		return c.checkLet(e)

	case ExprPeek:
		if err := c.checkMemLocation(e.Mem); err != nil {
			return err
		}
		e.Type = TypeI32

	case ExprPoke:
		if err := c.checkMemLocation(e.Mem); err != nil {
			return err
		}
		if err := c.checkExpr(e.X); err != nil {
			return err
		}
		// Only the address-sized integer type can be stored through this
		// path, regardless of the access width.
		if e.X.Type != TypeI32 {
			return c.typeMismatchErr(TypeI32, e.Span, e.X.Type, e.X.Span)
		}

	case ExprUnary:
		if err := c.checkExpr(e.X); err != nil {
			return err
		}
		if e.X.Type == TypeVoid {
			return c.expectedValue(e.X.Span)
		}
		switch e.Unary {
		case OpNegate:
			e.Type = e.X.Type
		case OpNot:
			if e.X.Type != TypeI32 && e.X.Type != TypeI64 {
				return c.typeMismatchErr(TypeI32, e.Span, e.X.Type, e.X.Span)
			}
			e.Type = TypeI32
		}

	case ExprBinary:
		return c.checkBinary(e)

	case ExprBlock:
		c.pushScope()
		defer c.popScope()
		for _, stmt := range e.Stmts {
			if err := c.checkExpr(stmt); err != nil {
				return err
			}
		}
		if e.Last != nil {
			if err := c.checkExpr(e.Last); err != nil {
				return err
			}
			e.Type = e.Last.Type
		}

	case ExprLoop:
		c.labels = append(c.labels, e.Name)
		err := c.checkExpr(e.X)
		c.labels = c.labels[:len(c.labels)-1]
		if err != nil {
			return err
		}
		e.Type = e.X.Type

	case ExprLabelBlock:
		c.labels = append(c.labels, e.Name)
		err := c.checkExpr(e.X)
		c.labels = c.labels[:len(c.labels)-1]
		if err != nil {
			return err
		}
		// Branches cannot yet carry a value out of a labeled block, so a
		// value-typed body has nowhere to deliver it.
		if e.X.Type != TypeVoid {
			return c.typeMismatchErr(TypeVoid, e.Span, e.X.Type, e.X.Span)
		}

	case ExprBranch:
		if !c.labelInScope(e.Name) {
			return c.unresolvedLabel(e.Name, e.Span)
		}

	case ExprBranchIf:
		if err := c.checkExpr(e.X); err != nil {
			return err
		}
		if e.X.Type != TypeI32 {
			return c.typeMismatchErr(TypeI32, e.Span, e.X.Type, e.X.Span)
		}
		if !c.labelInScope(e.Name) {
			return c.unresolvedLabel(e.Name, e.Span)
		}

	case ExprCast:
		if err := c.checkExpr(e.X); err != nil {
			return err
		}
		if e.X.Type == TypeVoid {
			return c.expectedValue(e.Span)
		}
		e.Type = e.CastTo

	case ExprCall:
		return c.checkCall(e)

	case ExprSelect:
		if err := c.checkExpr(e.X); err != nil {
			return err
		}
		if err := c.checkExpr(e.Y); err != nil {
			return err
		}
		if err := c.checkExpr(e.Z); err != nil {
			return err
		}
		if e.X.Type != TypeI32 {
			return c.typeMismatchErr(TypeI32, e.X.Span, e.X.Type, e.X.Span)
		}
		if e.Y.Type == TypeVoid {
			return c.expectedValue(e.Y.Span)
		}
		if e.Y.Type != e.Z.Type {
			return c.typeMismatchErr(e.Y.Type, e.Y.Span, e.Z.Type, e.Z.Span)
		}
		e.Type = e.Y.Type

	case ExprIf:
		if err := c.checkExpr(e.X); err != nil {
			return err
		}
		if err := c.checkExpr(e.Y); err != nil {
			return err
		}
		if e.Z != nil {
			if err := c.checkExpr(e.Z); err != nil {
				return err
			}
			if e.Y.Type != e.Z.Type {
				return c.typeMismatchErr(e.Y.Type, e.Y.Span, e.Z.Type, e.Z.Span)
			}
			e.Type = e.Y.Type
		}
		// Without an else branch the result is void no matter what the
		// then branch yields.

	case ExprReturn:
		if e.X != nil {
			if err := c.checkExpr(e.X); err != nil {
				return err
			}
			if e.X.Type != c.returnType {
				return c.typeMismatchErr(c.returnType, e.Span, e.X.Type, e.X.Span)
			}
		} else if c.returnType != TypeVoid {
			return c.typeMismatchErr(c.returnType, e.Span, TypeVoid, e.Span)
		}

	case ExprFirst:
		if err := c.checkExpr(e.X); err != nil {
			return err
		}
		if err := c.checkExpr(e.Y); err != nil {
			return err
		}
		e.Type = e.X.Type
	}
	return nil
}

func (c *Checker) checkLet(e *Expr) error {
	declared := e.LetType
	if e.X != nil {
		if err := c.checkExpr(e.X); err != nil {
			return err
		}
		if declared != TypeVoid {
			if e.X.Type != declared {
				return c.typeMismatchErr(declared, e.Span, e.X.Type, e.X.Span)
			}
		} else if e.X.Type == TypeVoid {
			return c.expectedValue(e.X.Span)
		} else {
			declared = e.X.Type
		}
	}
	if declared == TypeVoid {
		return c.fail(Diagnostic{
			Kind:    MissingTypeAnnotation,
			Message: fmt.Sprintf("let %q needs a type annotation or an initializer", e.Name),
			Span:    e.Span,
		})
	}
	e.LetType = declared

	stored := e.Mode != LetInline
	// Re-binding the same name in the same scope with the same type and
	// storage reuses the arena record (a loop body re-executes its lets).
	id, ok := c.lookupLocalCurrent(e.Name)
	if !ok || c.locals.At(id).Type != declared || c.locals.At(id).Stored != stored {
		id = c.locals.AddLocal(e.Span, e.Name, declared, stored)
	}
	e.LocalID = id
	c.bind(e.Name, id)
	return nil
}

func (c *Checker) checkBinary(e *Expr) error {
	if err := c.checkExpr(e.X); err != nil {
		return err
	}
	if err := c.checkExpr(e.Y); err != nil {
		return err
	}
	if e.X.Type == TypeVoid {
		return c.expectedValue(e.X.Span)
	}
	if e.X.Type != e.Y.Type {
		return c.typeMismatchErr(e.X.Type, e.X.Span, e.Y.Type, e.Y.Span)
	}
	if e.Bin.isIntOnly() && e.X.Type != TypeI32 && e.X.Type != TypeI64 {
		return c.typeMismatchErr(TypeI32, e.X.Span, e.X.Type, e.X.Span)
	}
	if e.Bin.isComparison() {
		e.Type = TypeI32
	} else {
		e.Type = e.X.Type
	}
	return nil
}

func (c *Checker) checkCall(e *Expr) error {
	argTypes := make([]Type, len(e.Args))
	for i, arg := range e.Args {
		if err := c.checkExpr(arg); err != nil {
			return err
		}
		if arg.Type == TypeVoid {
			return c.expectedValue(arg.Span)
		}
		argTypes[i] = arg.Type
	}

	// A user function shadows any intrinsic of the same name and
	// contributes exactly one candidate signature.
	var candidates []Overload
	if sig, ok := c.funcs[e.Name]; ok {
		candidates = []Overload{{Params: sig.params, Result: sig.result}}
	} else {
		candidates = c.intrinsics.Lookup(e.Name)
	}
	if len(candidates) == 0 {
		return c.unknownFunction(e.Name, e.Span)
	}
	for _, ov := range candidates {
		if typeVectorsEqual(ov.Params, argTypes) {
			e.Type = ov.Result
			return nil
		}
	}

	labels := make([]DiagLabel, len(candidates))
	for i, ov := range candidates {
		labels[i] = DiagLabel{Span: e.Span, Message: "candidate: " + signatureString(e.Name, ov)}
	}
	return c.fail(Diagnostic{
		Kind:    NoMatchingOverload,
		Message: fmt.Sprintf("no overload of %q matches (%s)", e.Name, typeListString(argTypes)),
		Span:    e.Span,
		Labels:  labels,
	})
}

func typeVectorsEqual(a, b []Type) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func typeListString(ts []Type) string {
	parts := make([]string, len(ts))
	for i, t := range ts {
		parts[i] = t.String()
	}
	return strings.Join(parts, ", ")
}

func signatureString(name string, ov Overload) string {
	s := name + "(" + typeListString(ov.Params) + ")"
	if ov.Result != TypeVoid {
		s += " -> " + ov.Result.String()
	}
	return s
}

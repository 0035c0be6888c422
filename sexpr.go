package main

import (
	"strconv"
	"strings"
)

// ToSExpr converts an expression tree to its s-expression string form.
// The form is stable and is what the markdown test corpus asserts against.
func ToSExpr(e *Expr) string {
	switch e.Kind {
	case ExprError:
		return "(error)"
	case ExprI32Const:
		return "(i32 " + strconv.FormatInt(e.Int, 10) + ")"
	case ExprI64Const:
		return "(i64 " + strconv.FormatInt(e.Int, 10) + ")"
	case ExprF32Const:
		return "(f32 " + formatFloat(e.Float) + ")"
	case ExprF64Const:
		return "(f64 " + formatFloat(e.Float) + ")"
	case ExprVariable:
		return "(var " + e.Name + ")"
	case ExprAssign:
		return "(set " + e.Name + " " + ToSExpr(e.X) + ")"
	case ExprLocalTee:
		return "(tee " + e.Name + " " + ToSExpr(e.X) + ")"
	case ExprLet:
		result := "(let"
		if e.Mode == LetInline {
			result = "(let-inline"
		}
		result += " " + e.Name
		if e.LetType != TypeVoid {
			result += " " + e.LetType.String()
		}
		if e.X != nil {
			result += " " + ToSExpr(e.X)
		}
		return result + ")"
	case ExprPeek:
		return "(peek " + memToSExpr(e.Mem) + ")"
	case ExprPoke:
		return "(poke " + memToSExpr(e.Mem) + " " + ToSExpr(e.X) + ")"
	case ExprUnary:
		return "(" + e.Unary.String() + " " + ToSExpr(e.X) + ")"
	case ExprBinary:
		return "(" + e.Bin.String() + " " + ToSExpr(e.X) + " " + ToSExpr(e.Y) + ")"
	case ExprBlock:
		result := "(block"
		for _, stmt := range e.Stmts {
			result += " " + ToSExpr(stmt)
		}
		if e.Last != nil {
			result += " (yield " + ToSExpr(e.Last) + ")"
		}
		return result + ")"
	case ExprLoop:
		return "(loop " + e.Name + " " + ToSExpr(e.X) + ")"
	case ExprLabelBlock:
		return "(label " + e.Name + " " + ToSExpr(e.X) + ")"
	case ExprBranch:
		return "(branch " + e.Name + ")"
	case ExprBranchIf:
		return "(branch-if " + ToSExpr(e.X) + " " + e.Name + ")"
	case ExprCast:
		return "(cast " + e.CastTo.String() + " " + ToSExpr(e.X) + ")"
	case ExprCall:
		result := "(call " + e.Name
		for _, arg := range e.Args {
			result += " " + ToSExpr(arg)
		}
		return result + ")"
	case ExprSelect:
		return "(select " + ToSExpr(e.X) + " " + ToSExpr(e.Y) + " " + ToSExpr(e.Z) + ")"
	case ExprIf:
		result := "(if " + ToSExpr(e.X) + " " + ToSExpr(e.Y)
		if e.Z != nil {
			result += " " + ToSExpr(e.Z)
		}
		return result + ")"
	case ExprReturn:
		if e.X == nil {
			return "(return)"
		}
		return "(return " + ToSExpr(e.X) + ")"
	case ExprFirst:
		return "(first " + ToSExpr(e.X) + " " + ToSExpr(e.Y) + ")"
	default:
		return ""
	}
}

func memToSExpr(m *MemoryLocation) string {
	return m.Size.String() + " " + ToSExpr(m.Addr) + " " + ToSExpr(m.Offset)
}

// formatFloat prints floats the shortest way that round-trips, always with
// a decimal point so the literal reads as a float.
func formatFloat(f float64) string {
	s := strconv.FormatFloat(f, 'g', -1, 64)
	if !strings.ContainsAny(s, ".eE") {
		s += ".0"
	}
	return s
}

// ScriptToSExpr renders a whole script, one top-level item per line.
func ScriptToSExpr(s *Script) string {
	var b strings.Builder
	for _, imp := range s.Imports {
		b.WriteString(importToSExpr(imp))
		b.WriteByte('\n')
	}
	for _, g := range s.Globals {
		b.WriteString("(global ")
		if g.Mutable {
			b.WriteString("mut ")
		}
		b.WriteString(g.Name)
		if g.Type != TypeVoid {
			b.WriteString(" " + g.Type.String())
		}
		b.WriteString(" " + ToSExpr(g.Value) + ")\n")
	}
	for _, d := range s.Data {
		b.WriteString(dataToSExpr(d))
		b.WriteByte('\n')
	}
	for _, f := range s.Functions {
		b.WriteString(funcToSExpr(f))
		b.WriteByte('\n')
	}
	return b.String()
}

func importToSExpr(imp *Import) string {
	switch imp.Kind {
	case ImportMemory:
		return "(import " + strconv.Quote(imp.Source) + " memory " + strconv.FormatInt(imp.MinPages, 10) + ")"
	case ImportVariable:
		result := "(import " + strconv.Quote(imp.Source) + " global "
		if imp.Mutable {
			result += "mut "
		}
		return result + imp.Name + " " + imp.VarType.String() + ")"
	case ImportFunction:
		result := "(import " + strconv.Quote(imp.Source) + " fn " + imp.Name + " ("
		parts := make([]string, len(imp.Params))
		for i, p := range imp.Params {
			parts[i] = p.String()
		}
		result += strings.Join(parts, " ") + ")"
		if imp.Result != TypeVoid {
			result += " " + imp.Result.String()
		}
		return result + ")"
	}
	return ""
}

func dataToSExpr(d *DataSegment) string {
	result := "(data " + ToSExpr(d.Offset)
	for _, v := range d.Values {
		if v.IsString {
			result += " " + strconv.Quote(v.Str)
			continue
		}
		result += " (" + v.Width.String()
		for _, val := range v.Values {
			result += " " + ToSExpr(val)
		}
		result += ")"
	}
	return result + ")"
}

func funcToSExpr(f *Function) string {
	result := "(fn"
	if f.Export {
		result += " export"
	}
	if f.Start {
		result += " start"
	}
	result += " " + f.Name + " ("
	parts := make([]string, len(f.Params))
	for i, p := range f.Params {
		parts[i] = "(" + p.Name + " " + p.Type.String() + ")"
	}
	result += strings.Join(parts, " ") + ")"
	if f.Result != TypeVoid {
		result += " " + f.Result.String()
	}
	return result + " " + ToSExpr(f.Body) + ")"
}

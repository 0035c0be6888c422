package main

// Type is one of the four numeric value types. The zero value TypeVoid
// stands for "no value" and doubles as the unset type annotation.
// The ordering i32 < i64 < f32 < f64 is load-bearing: storage slots are
// grouped by it (see AssignSlots).
type Type int

const (
	TypeVoid Type = iota
	TypeI32
	TypeI64
	TypeF32
	TypeF64
)

func (t Type) String() string {
	switch t {
	case TypeVoid:
		return "void"
	case TypeI32:
		return "i32"
	case TypeI64:
		return "i64"
	case TypeF32:
		return "f32"
	case TypeF64:
		return "f64"
	default:
		return "?"
	}
}

// typeByName maps a type identifier to its Type. Returns false for any
// other identifier.
func typeByName(name string) (Type, bool) {
	switch name {
	case "i32":
		return TypeI32, true
	case "i64":
		return TypeI64, true
	case "f32":
		return TypeF32, true
	case "f64":
		return TypeF64, true
	}
	return TypeVoid, false
}

// Script is the root of a parsed compilation unit. Insertion order is
// preserved for deterministic diagnostics.
type Script struct {
	Imports   []*Import
	Globals   []*GlobalVar
	Functions []*Function
	Data      []*DataSegment
}

// ImportKind distinguishes the three importable entities.
type ImportKind int

const (
	ImportMemory ImportKind = iota
	ImportVariable
	ImportFunction
)

// Import is one `import "source" ...;` item.
type Import struct {
	Span   Span
	Source string
	Kind   ImportKind

	// ImportMemory
	MinPages int64

	// ImportVariable and ImportFunction
	Name string

	// ImportVariable
	VarType Type
	Mutable bool

	// ImportFunction
	Params []Type
	Result Type // TypeVoid = no return value
}

// GlobalVar is a module-level variable declaration with a constant
// initializer. Type is TypeVoid until declared or inferred.
type GlobalVar struct {
	Span    Span
	Name    string
	Type    Type
	Mutable bool
	Value   *Expr
}

// Param is one function parameter.
type Param struct {
	Name string
	Type Type
}

// Function is a user-defined function. Locals is empty until the type
// checker has processed the body.
type Function struct {
	Span   Span
	Export bool
	Start  bool
	Name   string
	Params []Param
	Result Type // TypeVoid = no return value
	Body   *Expr
	Locals Locals
}

// DataWidth is the element width of a data-segment array.
type DataWidth int

const (
	DataI8 DataWidth = iota
	DataI16
	DataI32
	DataI64
	DataF32
	DataF64
)

func (w DataWidth) String() string {
	switch w {
	case DataI8:
		return "i8"
	case DataI16:
		return "i16"
	case DataI32:
		return "i32"
	case DataI64:
		return "i64"
	case DataF32:
		return "f32"
	case DataF64:
		return "f64"
	default:
		return "?"
	}
}

// ValueType is the numeric type a constant must have to be stored at this
// width; sub-word integers are written from i32 values.
func (w DataWidth) ValueType() Type {
	switch w {
	case DataI8, DataI16, DataI32:
		return TypeI32
	case DataI64:
		return TypeI64
	case DataF32:
		return TypeF32
	default:
		return TypeF64
	}
}

func dataWidthByName(name string) (DataWidth, bool) {
	switch name {
	case "i8":
		return DataI8, true
	case "i16":
		return DataI16, true
	case "i32":
		return DataI32, true
	case "i64":
		return DataI64, true
	case "f32":
		return DataF32, true
	case "f64":
		return DataF64, true
	}
	return 0, false
}

// DataValues is one value group in a data segment: either a raw string or
// a typed array of constants.
type DataValues struct {
	Span     Span
	IsString bool
	Str      string
	Width    DataWidth
	Values   []*Expr
}

// DataSegment initializes linear memory at a constant offset.
type DataSegment struct {
	Span   Span
	Offset *Expr
	Values []DataValues
}

// MemSize is the access width of a peek or poke.
type MemSize int

const (
	MemByte MemSize = iota // '?'
	MemWord                // '!'
)

func (s MemSize) String() string {
	if s == MemByte {
		return "byte"
	}
	return "word"
}

// MemoryLocation is an address expression plus a compile-time-constant
// offset, both of the address type.
type MemoryLocation struct {
	Span   Span
	Size   MemSize
	Addr   *Expr
	Offset *Expr
}

// UnaryOp is a unary operator.
type UnaryOp int

const (
	OpNegate UnaryOp = iota
	OpNot
)

func (op UnaryOp) String() string {
	if op == OpNegate {
		return "neg"
	}
	return "not"
}

// BinOp is a binary operator.
type BinOp int

const (
	OpAdd BinOp = iota
	OpSub
	OpMul
	OpDiv
	OpDivU
	OpRem
	OpRemU
	OpAnd
	OpOr
	OpXor
	OpShl
	OpShrS
	OpShrU
	OpEq
	OpNe
	OpLt
	OpLe
	OpGt
	OpGe
	OpLtU
	OpLeU
	OpGtU
	OpGeU
)

var binOpNames = map[BinOp]string{
	OpAdd: "+", OpSub: "-", OpMul: "*", OpDiv: "/", OpDivU: "/u",
	OpRem: "%", OpRemU: "%u", OpAnd: "&", OpOr: "|", OpXor: "^",
	OpShl: "<<", OpShrS: ">>", OpShrU: ">>u",
	OpEq: "==", OpNe: "!=", OpLt: "<", OpLe: "<=", OpGt: ">", OpGe: ">=",
	OpLtU: "<u", OpLeU: "<=u", OpGtU: ">u", OpGeU: ">=u",
}

func (op BinOp) String() string {
	if s, ok := binOpNames[op]; ok {
		return s
	}
	return "?"
}

// isIntOnly reports whether the operator is restricted to integer operands.
func (op BinOp) isIntOnly() bool {
	switch op {
	case OpRem, OpRemU, OpDivU, OpAnd, OpOr, OpXor, OpShl, OpShrS, OpShrU,
		OpLtU, OpLeU, OpGtU, OpGeU:
		return true
	}
	return false
}

// isComparison reports whether the operator yields an i32 truth value.
func (op BinOp) isComparison() bool {
	switch op {
	case OpEq, OpNe, OpLt, OpLe, OpGt, OpGe, OpLtU, OpLeU, OpGtU, OpGeU:
		return true
	}
	return false
}

// ExprKind tags an expression node.
type ExprKind int

const (
	// ExprError is the parser's recovery placeholder. It must never reach
	// the type checker; the pipeline only checks fully parsed trees.
	ExprError ExprKind = iota

	ExprI32Const
	ExprI64Const
	ExprF32Const
	ExprF64Const
	ExprVariable
	ExprAssign
	ExprLocalTee
	ExprLet
	ExprPeek
	ExprPoke
	ExprUnary
	ExprBinary
	ExprBlock
	ExprLoop
	ExprLabelBlock
	ExprBranch
	ExprBranchIf
	ExprCast
	ExprCall
	ExprSelect
	ExprIf
	ExprReturn
	ExprFirst
)

// LetMode is the storage mode of a let binding.
type LetMode int

const (
	// LetStored materializes the local into a numbered storage slot and
	// makes it assignable.
	LetStored LetMode = iota
	// LetInline keeps the local purely symbolic: no slot, immutable.
	LetInline
)

// Expr is a single expression node. Every syntactic form is one kind; the
// field set used depends on Kind. Type starts as TypeVoid and is set once
// by the type checker (TypeVoid also means "yields no value").
//
// Operand conventions:
//
//	X: value of let/assign/tee/cast/return/unary/first, left of binary,
//	   condition of branch_if/select/if, body block of loop/label block
//	Y: right of binary, true branch of select/if, discarded expr of first
//	Z: false branch of select, else branch of if
type Expr struct {
	Kind ExprKind
	Span Span
	Type Type

	Int   int64   // ExprI32Const, ExprI64Const
	Float float64 // ExprF32Const, ExprF64Const

	// Name of a variable/assign/tee/let/call, or a loop/branch label.
	Name string
	// LocalID is the arena id resolved by the checker; -1 when the name
	// resolved to a global (or has not been resolved).
	LocalID int

	Mode    LetMode // ExprLet
	LetType Type    // ExprLet: declared type, TypeVoid = infer

	Mem *MemoryLocation // ExprPeek, ExprPoke

	Unary UnaryOp // ExprUnary
	Bin   BinOp   // ExprBinary

	X *Expr
	Y *Expr
	Z *Expr

	Stmts []*Expr // ExprBlock: ';'-terminated statements
	Last  *Expr   // ExprBlock: optional trailing value expression
	Args  []*Expr // ExprCall

	CastTo Type // ExprCast
}

// Local is one record in a function's local arena. Slot is -1 while
// unassigned; inline locals keep -1 forever and are never materialized.
type Local struct {
	Span   Span
	Name   string
	Type   Type
	Stored bool
	Slot   int
}

// Locals is the per-function local arena. Parameters occupy the first
// NumParams records with pre-assigned slots; further stored locals get
// their slots only after the whole body has been checked.
type Locals struct {
	NumParams int
	All       []Local
}

// AddParam appends a parameter record with its fixed slot.
func (l *Locals) AddParam(span Span, name string, t Type) int {
	id := len(l.All)
	l.All = append(l.All, Local{Span: span, Name: name, Type: t, Stored: true, Slot: id})
	l.NumParams++
	return id
}

// AddLocal appends a local record. Stored locals receive a slot later;
// inline locals never do.
func (l *Locals) AddLocal(span Span, name string, t Type, stored bool) int {
	id := len(l.All)
	l.All = append(l.All, Local{Span: span, Name: name, Type: t, Stored: stored, Slot: -1})
	return id
}

// At returns the record for an arena id.
func (l *Locals) At(id int) *Local {
	return &l.All[id]
}

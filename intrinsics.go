package main

// Overload is one callable signature: a parameter-type vector and an
// optional (TypeVoid = none) result.
type Overload struct {
	Params []Type
	Result Type
}

// IntrinsicTable supplies the overload sets of built-in operations. Lookup
// returns nil for names that are not built-ins.
type IntrinsicTable interface {
	Lookup(name string) []Overload
}

type intrinsicMap map[string][]Overload

func (m intrinsicMap) Lookup(name string) []Overload {
	return m[name]
}

// NoIntrinsics is an empty table, useful in tests.
var NoIntrinsics IntrinsicTable = intrinsicMap{}

// DefaultIntrinsics is the standard catalogue: the numeric operations the
// target instruction set provides directly, plus memory management.
func DefaultIntrinsics() IntrinsicTable {
	m := intrinsicMap{}

	unaryFloat := []string{"sqrt", "floor", "ceil", "trunc", "nearest", "abs"}
	for _, name := range unaryFloat {
		m[name] = []Overload{
			{Params: []Type{TypeF32}, Result: TypeF32},
			{Params: []Type{TypeF64}, Result: TypeF64},
		}
	}

	binaryFloat := []string{"min", "max", "copysign"}
	for _, name := range binaryFloat {
		m[name] = []Overload{
			{Params: []Type{TypeF32, TypeF32}, Result: TypeF32},
			{Params: []Type{TypeF64, TypeF64}, Result: TypeF64},
		}
	}

	unaryInt := []string{"clz", "ctz", "popcnt"}
	for _, name := range unaryInt {
		m[name] = []Overload{
			{Params: []Type{TypeI32}, Result: TypeI32},
			{Params: []Type{TypeI64}, Result: TypeI64},
		}
	}

	binaryInt := []string{"rotl", "rotr"}
	for _, name := range binaryInt {
		m[name] = []Overload{
			{Params: []Type{TypeI32, TypeI32}, Result: TypeI32},
			{Params: []Type{TypeI64, TypeI64}, Result: TypeI64},
		}
	}

	m["memory_size"] = []Overload{{Result: TypeI32}}
	m["memory_grow"] = []Overload{{Params: []Type{TypeI32}, Result: TypeI32}}
	m["unreachable"] = []Overload{{Result: TypeVoid}}

	return m
}

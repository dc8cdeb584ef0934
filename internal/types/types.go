// Package types implements the scalar type lattice used by the type
// analyzer (spec §4.3) and by WAT code generation's type-to-WASM mapping
// (spec §4.6). The teacher's language is dynamically typed and has no
// analogue for this package; the walking style (a single downward pass
// over the AST threading a lexically scoped environment) follows the
// teacher's interpreter/compiler walk idiom, applied here to inference
// instead of evaluation.
package types

import "fmt"

// Kind is the closed set of scalar/compound types the analyzer produces.
type Kind int

const (
	Unknown Kind = iota
	Integer
	Number
	Boolean
	String
	Array
	Object
	Function
	Void
)

func (k Kind) String() string {
	switch k {
	case Integer:
		return "Integer"
	case Number:
		return "Number"
	case Boolean:
		return "Boolean"
	case String:
		return "String"
	case Array:
		return "Array"
	case Object:
		return "Object"
	case Function:
		return "Function"
	case Void:
		return "Void"
	default:
		return "Unknown"
	}
}

// Type is a value of the type lattice. Only Function populates Params/
// Return; every other Kind is fully described by Kind alone.
type Type struct {
	Kind   Kind
	Params []*Type
	Return *Type
}

func (t *Type) String() string {
	if t == nil {
		return "Unknown"
	}
	if t.Kind == Function {
		return fmt.Sprintf("Function(%d params)->%s", len(t.Params), t.Return)
	}
	return t.Kind.String()
}

// Equal reports whether two types are structurally identical. Unknown is
// only equal to Unknown, never treated as a wildcard here — callers that
// want Unknown to unify with anything must check explicitly.
func Equal(a, b *Type) bool {
	if a == nil || b == nil {
		return a == b
	}
	if a.Kind != b.Kind {
		return false
	}
	if a.Kind != Function {
		return true
	}
	if len(a.Params) != len(b.Params) {
		return false
	}
	for i := range a.Params {
		if !Equal(a.Params[i], b.Params[i]) {
			return false
		}
	}
	return Equal(a.Return, b.Return)
}

// IsNumeric reports whether t is Integer or Number.
func IsNumeric(t *Type) bool {
	return t != nil && (t.Kind == Integer || t.Kind == Number)
}

// Widen returns the result of combining two numeric operand types under
// arithmetic: Integer+Integer stays Integer, any Number operand widens the
// result to Number, per the data model's widening invariant.
func Widen(a, b *Type) *Type {
	if a == nil || b == nil {
		return &Type{Kind: Unknown}
	}
	if a.Kind == Number || b.Kind == Number {
		return &Type{Kind: Number}
	}
	return &Type{Kind: Integer}
}

var (
	TInteger = &Type{Kind: Integer}
	TNumber  = &Type{Kind: Number}
	TBoolean = &Type{Kind: Boolean}
	TString  = &Type{Kind: String}
	TArray   = &Type{Kind: Array}
	TObject  = &Type{Kind: Object}
	TVoid    = &Type{Kind: Void}
	TUnknown = &Type{Kind: Unknown}
)

// WasmType is the WASM value-type counterpart of a source Type, per the
// mapping in spec §4.6: Integer/Boolean -> i32, Number -> f64, reference
// types -> externref, Function -> funcref, Void -> no result.
type WasmType string

const (
	I32       WasmType = "i32"
	F64       WasmType = "f64"
	ExternRef WasmType = "externref"
	FuncRef   WasmType = "funcref"
	NoResult  WasmType = ""
)

// ToWasm maps a source-level Type to its WASM value representation.
// Unknown defaults to i32, matching the error-handling policy that
// downstream phases treat Unknown as i32 (spec §7).
func ToWasm(t *Type) WasmType {
	if t == nil {
		return I32
	}
	switch t.Kind {
	case Integer, Boolean, Unknown:
		return I32
	case Number:
		return F64
	case String, Array, Object:
		return ExternRef
	case Function:
		return FuncRef
	case Void:
		return NoResult
	default:
		return I32
	}
}

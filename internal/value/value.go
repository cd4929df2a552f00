// Package value implements the runtime value system the VM operates on:
// arbitrary-precision numbers, strings, matrices, and object instances.
// It is an external collaborator of the compiler core, but is needed to
// make the repository runnable end to end.
package value

import (
	"fmt"
	"math/big"
	"strings"

	"github.com/stone39035605/calc/internal/symtab"
)

// Value is anything the VM stack or a storage slot can hold.
type Value interface {
	TypeName() string
	String() string
	// Truthy reports whether the value is considered true by
	// conditionals and short-circuit operators.
	Truthy() bool
}

// Undefined is calc's "no value" result, pushed by OP_UNDEF and returned
// by functions that fall off their end without a `return`.
type undefinedType struct{}

func (undefinedType) TypeName() string { return "undefined" }
func (undefinedType) String() string   { return "" }
func (undefinedType) Truthy() bool     { return false }

// Undef is the single Undefined value.
var Undef Value = undefinedType{}

// IsUndef reports whether v is the Undefined value, the way JUMPNN tells
// an omitted call argument (left as Undef by its PARAMADDR slot) apart
// from one the caller actually supplied.
func IsUndef(v Value) bool {
	_, ok := v.(undefinedType)
	return ok
}

// Number is calc's arbitrary-precision numeric value: a rational real
// part and an optional rational imaginary part (non-nil only for
// complex results, produced by the IMAGINARY opcode and by arithmetic on
// such values; sqrt of a negative real is an error, not a complex result).
type Number struct {
	Re *big.Rat
	Im *big.Rat // nil for a purely real number
}

// NewInt creates a real integer Number.
func NewInt(n int64) *Number { return &Number{Re: new(big.Rat).SetInt64(n)} }

// NewFloat creates a real Number from a float64.
func NewFloat(f float64) *Number {
	r := new(big.Rat)
	r.SetFloat64(f)
	return &Number{Re: r}
}

// NewImaginary creates a purely imaginary Number (real part zero).
func NewImaginary(im *big.Rat) *Number {
	return &Number{Re: new(big.Rat), Im: im}
}

func (n *Number) TypeName() string { return "number" }

func (n *Number) Truthy() bool {
	if n.Im != nil && n.Im.Sign() != 0 {
		return true
	}
	return n.Re.Sign() != 0
}

func (n *Number) String() string {
	var b strings.Builder
	writeRat(&b, n.Re)
	if n.Im != nil && n.Im.Sign() != 0 {
		if n.Im.Sign() >= 0 {
			b.WriteByte('+')
		}
		writeRat(&b, n.Im)
		b.WriteByte('i')
	}
	return b.String()
}

func writeRat(b *strings.Builder, r *big.Rat) {
	if r.IsInt() {
		b.WriteString(r.Num().String())
		return
	}
	f, _ := r.Float64()
	fmt.Fprintf(b, "%g", f)
}

// IsZero reports whether n is exactly zero (real and imaginary parts).
func (n *Number) IsZero() bool {
	return n.Re.Sign() == 0 && (n.Im == nil || n.Im.Sign() == 0)
}

// Str is a calc string value.
type Str string

func (Str) TypeName() string    { return "string" }
func (s Str) String() string    { return string(s) }
func (s Str) Truthy() bool      { return len(s) != 0 }

// Dim is one dimension's bounds of a matrix, inclusive on both ends.
type Dim struct {
	Lo, Hi int
}

// Size returns the number of elements spanned by the dimension.
func (d Dim) Size() int { return d.Hi - d.Lo + 1 }

// Mat is a calc matrix: a dense, possibly multi-dimensional array with
// per-dimension lower/upper bounds.
type Mat struct {
	Dims []Dim
	Data []Value
}

// NewMat allocates a matrix of the given dimensions, every element
// initialized to Undef (to be overwritten by INITFILL/ELEMINIT).
func NewMat(dims []Dim) *Mat {
	size := 1
	for _, d := range dims {
		size *= d.Size()
	}
	data := make([]Value, size)
	for i := range data {
		data[i] = Undef
	}
	return &Mat{Dims: dims, Data: data}
}

func (m *Mat) TypeName() string { return "mat" }
func (m *Mat) Truthy() bool     { return len(m.Data) != 0 }

func (m *Mat) String() string {
	var b strings.Builder
	b.WriteString("mat [")
	for i, d := range m.Dims {
		if i != 0 {
			b.WriteByte(',')
		}
		fmt.Fprintf(&b, "%d:%d", d.Lo, d.Hi)
	}
	b.WriteByte(']')
	return b.String()
}

// Size returns the total number of elements.
func (m *Mat) Size() int { return len(m.Data) }

// Index computes the flat data offset for the given per-dimension
// subscripts, or -1 if out of range.
func (m *Mat) Index(subs []int) int {
	if len(subs) != len(m.Dims) {
		return -1
	}
	offset := 0
	for i, d := range m.Dims {
		s := subs[i]
		if s < d.Lo || s > d.Hi {
			return -1
		}
		offset = offset*d.Size() + (s - d.Lo)
	}
	return offset
}

// Obj is an instance of a registered object type: an ordered slice of
// field values, aligned with the type's Fields element-index list.
type Obj struct {
	Type *symtab.ObjectType
	Values []Value
}

// NewObj allocates an object instance with all fields set to Undef.
func NewObj(t *symtab.ObjectType) *Obj {
	vals := make([]Value, len(t.Fields))
	for i := range vals {
		vals[i] = Undef
	}
	return &Obj{Type: t, Values: vals}
}

func (o *Obj) TypeName() string { return o.Type.Name }
func (o *Obj) Truthy() bool     { return true }

func (o *Obj) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "obj %s {", o.Type.Name)
	for i, v := range o.Values {
		if i != 0 {
			b.WriteString(", ")
		}
		b.WriteString(v.String())
	}
	b.WriteByte('}')
	return b.String()
}

// FieldIndex returns the position of element within the object's type,
// or -1 if the object's type has no such field.
func (o *Obj) FieldIndex(element int) int { return o.Type.FieldPosition(element) }

package value

// Cell is an addressable storage location: a local/param slot, a global
// handle, a matrix element, or an object field. It is itself a Value so
// it can sit on the VM operand stack the way an address does for an
// expression lacking RVALUE -- an lvalue, with its address on top of the
// stack; arithmetic and other value-consuming opcodes auto-load through
// it, while ASSIGN-family and PTR opcodes operate on it directly.
type Cell struct {
	Get func() Value
	Set func(Value)
}

func (c *Cell) TypeName() string { return "address" }
func (c *Cell) String() string   { return c.Load().String() }
func (c *Cell) Truthy() bool     { return c.Load().Truthy() }

// Load reads the value currently stored at this address.
func (c *Cell) Load() Value { return c.Get() }

// Store writes v at this address.
func (c *Cell) Store(v Value) { c.Set(v) }

// Deref returns v's underlying value, following through a Cell if v is
// one. Every opcode that consumes a value rather than an address calls
// this -- GETVALUE is the opcode name for this operation, but the VM
// applies it implicitly wherever a value, not an address, is required,
// since the compiler never emits GETVALUE explicitly.
func Deref(v Value) Value {
	if c, ok := v.(*Cell); ok {
		return c.Load()
	}
	return v
}

// Ptr is the value produced by prefix `&`: a first-class pointer wrapping
// the address it was taken from (the PTR opcode).
type Ptr struct {
	Ref *Cell
}

func (p *Ptr) TypeName() string { return "ptr" }
func (p *Ptr) String() string   { return "ptr(" + p.Ref.String() + ")" }
func (p *Ptr) Truthy() bool     { return true }

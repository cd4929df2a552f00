package compiler

import "github.com/stone39035605/calc/internal/value"

// Kind distinguishes calc's three compilation modes, which differ only in
// a handful of places in the statement parser: ordinary named functions,
// the interactive top-level pseudo function ("*"), and a nested
// interactive pseudo function compiled by `eval` inside another
// interactive line ("**"). Kept as an explicit flag rather than inferred
// from the function's name, preferring explicit state over string
// sniffing.
type Kind int

const (
	// Named is an ordinary user-defined function body.
	Named Kind = iota
	// Interactive is the outermost "*" pseudo-function compiled for one
	// line of top-level input.
	Interactive
	// NestedEval is the "**" pseudo-function compiled by a nested `eval`.
	NestedEval
)

// Function is the compiled output of one `define`, or of one interactive
// line: an ordered opcode stream, its parameter/local counts, and enough
// metadata for the VM to run it. Instructions are addressed by their
// byte offset into Function.Code.
type Function struct {
	Name string
	Code []byte
	NumParams int
	NumLocals int
	Kind Kind

	// HasStaticInit records whether the body declares any `static`
	// variable. The VM does not read it: whether INITSTATIC runs or skips
	// the initializers is decided by StaticInitDone alone.
	HasStaticInit bool

	// StaticInitDone is set by the VM the first time this specific
	// compiled Function's INITSTATIC instruction executes, so every call
	// after the first skips straight past the static initializer block.
	// The compiler never touches this field; it exists purely as VM-owned
	// state riding along on the Function object one `define` produces.
	StaticInitDone bool

	// Numbers is this function's own NUMBER/IMAGINARY constant pool.
	// Unlike the string table, element table, and object-type registry --
	// which are shared across every Compiler instance a Session creates --
	// the numeric pool is local to one function, since beginFunction
	// starts a fresh pool for every interactive line and every `define`d
	// function.
	Numbers []value.Value
}

// CurrentOffset returns the offset the next emitted instruction will
// occupy.
func (f *Function) CurrentOffset() int { return len(f.Code) }

package vm

import "github.com/stone39035605/calc/internal/compiler"

// frame is one call-frame on the VM's call stack: the Function being
// executed, its instruction pointer, and the stack index its params and
// locals start at. There are no free variables to carry -- calc
// functions are flat.
type frame struct {
	fn *compiler.Function
	ip int
	basePointer int
}

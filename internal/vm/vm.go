// Package vm implements the stack machine that executes the bytecode
// internal/compiler emits. It satisfies compiler.Runtime so the compiler
// package has no dependency on it.
//
// The machine is a plain fetch-decode-execute switch over one growable
// operand stack and a call-frame stack. Functions are flat -- no free
// variables, no closures -- so a frame is just (function, ip, base
// pointer) and slot addressing never has to reason about captures that
// outlive their frame.
package vm

import (
	"fmt"
	"io"

	"github.com/stone39035605/calc/internal/builtins"
	"github.com/stone39035605/calc/internal/compiler"
	"github.com/stone39035605/calc/internal/opcode"
	"github.com/stone39035605/calc/internal/symtab"
	"github.com/stone39035605/calc/internal/value"
)

// QuitError is returned by Run when executed code hits a `quit`
// statement: the host is expected to end the session, printing Msg first
// if it is non-empty.
type QuitError struct{ Msg string }

func (e *QuitError) Error() string {
	if e.Msg == "" {
		return "quit"
	}
	return e.Msg
}

// StopsInput marks QuitError as a compiler.StopError: the read-command
// loop unwinds instead of reporting a statement diagnostic.
func (e *QuitError) StopsInput() bool { return true }

// AbortError is returned by Run when executed code hits an `abort`
// statement: unlike QuitError, the host is expected to only abandon the
// current input, not the whole session.
type AbortError struct{ Msg string }

func (e *AbortError) Error() string {
	if e.Msg == "" {
		return "abort"
	}
	return e.Msg
}

// StopsInput marks AbortError as a compiler.StopError.
func (e *AbortError) StopsInput() bool { return true }

// VM is the shared runtime state that outlives any one compiled
// Function: the global variable slots (grown on demand as GLOBALADDR
// references a new slot) and the live user-function table
// Define/Undefine maintain. Everything scoped to a single top-level
// statement -- the operand stack and call frames -- lives in the
// execution value Run constructs fresh each call.
type VM struct {
	objs *symtab.Objects
	strs *symtab.Strings

	globals []value.Value
	funcs   map[int]*compiler.Function

	out   io.Writer
	trace io.Writer

	lastValue value.Value
}

// New creates a VM sharing the object-type registry and string table a
// Compiler was constructed with: these two tables, like the globals
// array, persist across every top-level line and nested `read` a Session
// runs. out receives `print`/`show`/PRINTRESULT output;
// trace, if non-nil, receives one line per DEBUG opcode (the per-
// statement line-number marker stmt.go emits at the top of every
// statement).
func New(objs *symtab.Objects, strs *symtab.Strings, out io.Writer, trace io.Writer) *VM {
	return &VM{
		objs:      objs,
		strs:      strs,
		funcs:     make(map[int]*compiler.Function),
		out:       out,
		trace:     trace,
		lastValue: value.Undef,
	}
}

// Define publishes fn under user-function index idx (compiler.Runtime).
func (vm *VM) Define(idx int, fn *compiler.Function) { vm.funcs[idx] = fn }

// Undefine retracts the function at idx (compiler.Runtime).
func (vm *VM) Undefine(idx int) { delete(vm.funcs, idx) }

// Global returns the current value of global slot idx, or nil if no
// GLOBALADDR has reached that slot yet; a slot reached but never assigned
// holds Undef (used by the `write` directive's host-side
// serialization; compiler.Directives.WriteGlobals).
func (vm *VM) Global(idx int) value.Value {
	if idx < 0 || idx >= len(vm.globals) {
		return nil
	}
	return vm.globals[idx]
}

func (vm *VM) ensureGlobals(n int) {
	for len(vm.globals) < n {
		vm.globals = append(vm.globals, value.Undef)
	}
}

// Run executes fn to completion (compiler.Runtime): one interactive
// line, one nested `eval` statement, or -- indirectly, through USERCALL
// -- one `define`d function body invoked from either of those.
func (vm *VM) Run(fn *compiler.Function) error {
	ex := &execution{vm: vm}
	return ex.run(fn)
}

// frame is documented in frame.go.

// execution is one independent call-stack-and-operand-stack run of the
// VM, scoped to a single Run invocation.
type execution struct {
	vm     *VM
	stack  []value.Value
	frames []*frame
}

func (ex *execution) push(v value.Value) { ex.stack = append(ex.stack, v) }

func (ex *execution) pop() value.Value {
	n := len(ex.stack) - 1
	v := ex.stack[n]
	ex.stack = ex.stack[:n]
	return v
}

func (ex *execution) peek() value.Value { return ex.stack[len(ex.stack)-1] }

func assignTo(addr value.Value, v value.Value) error {
	cell, ok := addr.(*value.Cell)
	if !ok {
		return fmt.Errorf("cannot assign to a non-address value of type %s", addr.TypeName())
	}
	cell.Store(v)
	return nil
}

func asNumber(v value.Value) (*value.Number, error) {
	n, ok := value.Deref(v).(*value.Number)
	if !ok {
		return nil, fmt.Errorf("expected a number, got %s", v.TypeName())
	}
	return n, nil
}

func asInt(v value.Value) (int, error) {
	n, err := asNumber(v)
	if err != nil {
		return 0, err
	}
	if !n.Re.IsInt() {
		return 0, fmt.Errorf("expected an integer, got %s", n.String())
	}
	return int(n.Re.Num().Int64()), nil
}

func cloneMat(m *value.Mat) *value.Mat {
	data := make([]value.Value, len(m.Data))
	copy(data, m.Data)
	dims := append([]value.Dim{}, m.Dims...)
	return &value.Mat{Dims: dims, Data: data}
}

// call pushes a new frame for fn, binding args (already evaluated and
// dereferenced, in left-to-right order) to its parameter slots -- short
// argument lists leave the remaining parameters Undef, so a `define`d
// function's own JUMPNN-guarded default-value prologue (driver.go's
// parseFunctionDefinition) can tell an omitted argument from a supplied
// one, e.g. `define f(x,y=3)`.
func (ex *execution) call(fn *compiler.Function, args []value.Value) {
	base := len(ex.stack)
	for i := 0; i < fn.NumParams; i++ {
		if i < len(args) {
			ex.push(args[i])
		} else {
			ex.push(value.Undef)
		}
	}
	for i := 0; i < fn.NumLocals; i++ {
		ex.push(value.Undef)
	}
	ex.frames = append(ex.frames, &frame{fn: fn, ip: 0, basePointer: base})
}

// popArgs pops argc values pushed (in left-to-right evaluation order) by
// a CALL/USERCALL's argument list and returns them dereferenced and back
// in their original left-to-right order.
func (ex *execution) popArgs(argc int) []value.Value {
	args := make([]value.Value, argc)
	for i := argc - 1; i >= 0; i-- {
		args[i] = value.Deref(ex.pop())
	}
	return args
}

// container resolves v (an address or a bare Mat/Obj value -- Mat and
// Obj are themselves reference types, so a value fresh off MATCREATE/
// OBJCREATE is already addressable without a Cell wrapper) down to the
// concrete aggregate it names.
func container(v value.Value) value.Value { return value.Deref(v) }

// run drives the fetch-decode-execute loop for one independent
// execution, starting at entry. It returns when the outermost frame
// returns, or as soon as any opcode reports an error.
func (ex *execution) run(entry *compiler.Function) error {
	// The entry function gets its param/local slots reserved the same way
	// a USERCALL frame does; an interactive line may declare locals.
	ex.call(entry, nil)

	for len(ex.frames) > 0 {
		f := ex.frames[len(ex.frames)-1]
		if f.ip >= len(f.fn.Code) {
			ex.frames = ex.frames[:len(ex.frames)-1]
			continue
		}
		op := f.fn.Code[f.ip]
		operands, width := opcode.ReadOperands(op, f.fn.Code[f.ip+1:])
		f.ip += 1 + width

		switch op {
		case opcode.Number, opcode.Imaginary:
			ex.push(f.fn.Numbers[operands[0]])

		case opcode.StringConst:
			ex.push(value.Str(ex.vm.strs.Value(operands[0])))

		case opcode.Undef:
			ex.push(value.Undef)

		case opcode.Zero:
			ex.push(value.NewInt(0))

		case opcode.One:
			ex.push(value.NewInt(1))

		case opcode.Duplicate:
			ex.push(ex.peek())

		case opcode.DupValue:
			ex.push(cloneValue(value.Deref(ex.peek())))

		case opcode.Pop:
			ex.pop()

		case opcode.OldValue:
			ex.push(ex.vm.lastValue)

		case opcode.Save:
			ex.vm.lastValue = value.Deref(ex.peek())

		case opcode.LocalAddr:
			idx := f.basePointer + f.fn.NumParams + operands[0]
			ex.push(slotCell(ex, idx))

		case opcode.ParamAddr:
			idx := f.basePointer + operands[0]
			ex.push(slotCell(ex, idx))

		case opcode.GlobalAddr:
			idx := operands[0]
			ex.vm.ensureGlobals(idx + 1)
			ex.push(globalCell(ex.vm, idx))

		case opcode.IndexAddr:
			if err := ex.execIndexAddr(operands[0]); err != nil {
				return err
			}

		case opcode.FiAddr:
			if err := ex.execFiAddr(); err != nil {
				return err
			}

		case opcode.ElemAddr:
			if err := ex.execElemAddr(operands[0]); err != nil {
				return err
			}

		case opcode.Ptr:
			top := ex.pop()
			cell, ok := top.(*value.Cell)
			if !ok {
				return fmt.Errorf("& requires an addressable operand")
			}
			ex.push(&value.Ptr{Ref: cell})

		case opcode.Deref:
			top := value.Deref(ex.pop())
			ptr, ok := top.(*value.Ptr)
			if !ok {
				return fmt.Errorf("cannot dereference a non-pointer value")
			}
			ex.push(ptr.Ref)

		case opcode.GetValue:
			ex.push(value.Deref(ex.pop()))

		case opcode.Add, opcode.Sub, opcode.Mul, opcode.Div, opcode.Quo, opcode.Mod,
			opcode.And, opcode.Or, opcode.Xor, opcode.LeftShift, opcode.RightShift,
			opcode.Power, opcode.HashOp, opcode.SetMinus,
			opcode.Eq, opcode.Ne, opcode.Lt, opcode.Gt, opcode.Le, opcode.Ge:
			y := value.Deref(ex.pop())
			x := value.Deref(ex.pop())
			result, err := value.BinaryOp(op, x, y)
			if err != nil {
				return err
			}
			ex.push(result)

		case opcode.Plus, opcode.Negate, opcode.Not, opcode.Invert,
			opcode.Backslash, opcode.Comp, opcode.Content:
			x := value.Deref(ex.pop())
			result, err := value.UnaryOp(op, x)
			if err != nil {
				return err
			}
			ex.push(result)

		case opcode.Assign:
			// The address, not the value, stays on the stack: a compound
			// assignment chain (`a += b += c`) re-DUPLICATEs it, and every
			// consumer that wants the value dereferences through it.
			v := value.Deref(ex.pop())
			addr := ex.pop()
			if err := assignTo(addr, v); err != nil {
				return err
			}
			ex.push(addr)

		case opcode.AssignPop:
			v := value.Deref(ex.pop())
			addr := ex.pop()
			if err := assignTo(addr, v); err != nil {
				return err
			}

		case opcode.AssignBack:
			addr := ex.pop()
			v := value.Deref(ex.peek())
			if err := assignTo(addr, v); err != nil {
				return err
			}

		case opcode.PreInc, opcode.PreDec:
			addr, ok := ex.pop().(*value.Cell)
			if !ok {
				return fmt.Errorf("++/-- requires an addressable operand")
			}
			n, err := asNumber(addr.Load())
			if err != nil {
				return err
			}
			delta := value.NewInt(1)
			binop := opcode.Add
			if op == opcode.PreDec {
				binop = opcode.Sub
			}
			nv, err := value.BinaryOp(binop, n, delta)
			if err != nil {
				return err
			}
			addr.Store(nv)
			ex.push(nv)

		case opcode.PostInc, opcode.PostDec:
			addr, ok := ex.pop().(*value.Cell)
			if !ok {
				return fmt.Errorf("++/-- requires an addressable operand")
			}
			n, err := asNumber(addr.Load())
			if err != nil {
				return err
			}
			delta := value.NewInt(1)
			binop := opcode.Add
			if op == opcode.PostDec {
				binop = opcode.Sub
			}
			nv, err := value.BinaryOp(binop, n, delta)
			if err != nil {
				return err
			}
			addr.Store(nv)
			ex.push(n)

		case opcode.Jump:
			f.ip = operands[0]

		case opcode.JumpZ:
			v := value.Deref(ex.pop())
			if !v.Truthy() {
				f.ip = operands[0]
			}

		case opcode.JumpNZ:
			v := value.Deref(ex.pop())
			if v.Truthy() {
				f.ip = operands[0]
			}

		case opcode.JumpNN:
			addr := ex.pop()
			v := value.Deref(addr)
			if !value.IsUndef(v) {
				f.ip = operands[0]
			} else {
				ex.push(addr)
			}

		case opcode.CondOrJump:
			v := value.Deref(ex.peek())
			if v.Truthy() {
				f.ip = operands[0]
			} else {
				ex.pop()
			}

		case opcode.CondAndJump:
			v := value.Deref(ex.peek())
			if !v.Truthy() {
				f.ip = operands[0]
			} else {
				ex.pop()
			}

		case opcode.CaseJump:
			caseVal := value.Deref(ex.pop())
			switchVal := value.Deref(ex.pop())
			matched, err := value.BinaryOp(opcode.Eq, switchVal, caseVal)
			if err != nil {
				return err
			}
			if !matched.Truthy() {
				ex.push(switchVal)
				f.ip = operands[0]
			}

		case opcode.Return:
			result := value.Deref(ex.pop())
			ex.stack = ex.stack[:f.basePointer]
			ex.frames = ex.frames[:len(ex.frames)-1]
			ex.push(result)

		case opcode.InitStatic:
			if f.fn.StaticInitDone {
				f.ip = operands[0]
			} else {
				f.fn.StaticInitDone = true
			}

		case opcode.MatCreate:
			if err := ex.execMatCreate(operands[0]); err != nil {
				return err
			}

		case opcode.ObjCreate:
			ot, ok := ex.vm.objs.ByIndex(operands[0])
			if !ok {
				return fmt.Errorf("undefined object type %d", operands[0])
			}
			ex.push(value.NewObj(ot))

		case opcode.InitFill:
			if err := ex.execInitFill(); err != nil {
				return err
			}

		case opcode.ElemInit:
			if err := ex.execElemInit(operands[0]); err != nil {
				return err
			}

		case opcode.Call:
			args := ex.popArgs(operands[1])
			fn, ok := builtins.Lookup(operands[0])
			if !ok {
				return fmt.Errorf("undefined builtin function %d", operands[0])
			}
			result, err := fn(args)
			if err != nil {
				return err
			}
			ex.push(result)

		case opcode.UserCall:
			args := ex.popArgs(operands[1])
			fn, ok := ex.vm.funcs[operands[0]]
			if !ok {
				return fmt.Errorf("call to an undefined function")
			}
			ex.call(fn, args)

		case opcode.Print:
			v := value.Deref(ex.pop())
			fmt.Fprint(ex.vm.out, v.String())

		case opcode.PrintEOL:
			fmt.Fprintln(ex.vm.out)

		case opcode.PrintSpace:
			fmt.Fprint(ex.vm.out, " ")

		case opcode.PrintString:
			fmt.Fprint(ex.vm.out, ex.vm.strs.Value(operands[0]))

		case opcode.PrintResult:
			v := value.Deref(ex.pop())
			fmt.Fprintln(ex.vm.out, v.String())

		case opcode.Quit:
			return &QuitError{Msg: quitAbortMsg(ex.vm, operands[0])}

		case opcode.Abort:
			return &AbortError{Msg: quitAbortMsg(ex.vm, operands[0])}

		case opcode.Show:
			ex.execShow(operands[0])

		case opcode.Debug:
			if ex.vm.trace != nil {
				fmt.Fprintf(ex.vm.trace, "line %d\n", operands[0])
			}

		default:
			return fmt.Errorf("unimplemented opcode %s", opcode.Name(op))
		}
	}
	return nil
}

// quitAbortMsg resolves the QUIT/ABORT operand: 0xFFFF is the no-message
// sentinel (the compiler's -1 after 2-byte truncation).
func quitAbortMsg(vm *VM, idx int) string {
	if idx < 0 || idx == 0xFFFF {
		return ""
	}
	return vm.strs.Value(idx)
}

func cloneValue(v value.Value) value.Value {
	switch vv := v.(type) {
	case *value.Mat:
		return cloneMat(vv)
	case *value.Obj:
		vals := make([]value.Value, len(vv.Values))
		copy(vals, vv.Values)
		return &value.Obj{Type: vv.Type, Values: vals}
	default:
		return v
	}
}

// slotCell returns an address over ex.stack[idx], growing the stack with
// Undef slots if a LOCALADDR/PARAMADDR referenced one not yet pushed by
// call (shouldn't happen once a function is fully compiled, but kept
// defensive the way a fixed-size stack array would silently have zero
// value there instead of panicking on a slice index).
func slotCell(ex *execution, idx int) *value.Cell {
	for len(ex.stack) <= idx {
		ex.stack = append(ex.stack, value.Undef)
	}
	return &value.Cell{
		Get: func() value.Value { return ex.stack[idx] },
		Set: func(v value.Value) { ex.stack[idx] = v },
	}
}

func globalCell(vm *VM, idx int) *value.Cell {
	return &value.Cell{
		Get: func() value.Value { return vm.globals[idx] },
		Set: func(v value.Value) { vm.globals[idx] = v },
	}
}

// execIndexAddr implements INDEXADDR(dim, writeFlag). The write-flag is
// decoded but unused here: an out-of-bounds subscript is an error on
// both read and write, never an auto-grow.
func (ex *execution) execIndexAddr(dim int) error {
	subs := make([]int, dim)
	for i := dim - 1; i >= 0; i-- {
		n, err := asInt(ex.pop())
		if err != nil {
			return err
		}
		subs[i] = n
	}
	base := container(ex.pop())
	mat, ok := base.(*value.Mat)
	if !ok {
		return fmt.Errorf("subscript requires a mat, got %s", base.TypeName())
	}
	flat := mat.Index(subs)
	if flat < 0 {
		return fmt.Errorf("subscript out of range")
	}
	ex.push(&value.Cell{
		Get: func() value.Value { return mat.Data[flat] },
		Set: func(v value.Value) { mat.Data[flat] = v },
	})
	return nil
}

// execFiAddr implements FIADDR, the `[[i]]` flat (single-index) subscript.
func (ex *execution) execFiAddr() error {
	n, err := asInt(ex.pop())
	if err != nil {
		return err
	}
	base := container(ex.pop())
	mat, ok := base.(*value.Mat)
	if !ok {
		return fmt.Errorf("[[ ]] requires a mat, got %s", base.TypeName())
	}
	if n < 0 || n >= len(mat.Data) {
		return fmt.Errorf("flat index out of range")
	}
	ex.push(&value.Cell{
		Get: func() value.Value { return mat.Data[n] },
		Set: func(v value.Value) { mat.Data[n] = v },
	})
	return nil
}

// execElemAddr implements ELEMADDR(idx, writeFlag). idx is overloaded by
// the compiler between two call sites: a dotted field access
// (expr.go's parseElement) passes the globally interned element-name
// index, while a brace initializer's nested aggregate (decl.go's
// parseInitList) passes a plain 0-based position. Both resolve to the
// same slot for the common case (an object's fields interned in
// declaration order), so this first tries idx as an interned name looked
// up against the object's own field list and, failing that, falls back
// to treating it as the position directly. For a Mat base the index is
// always just a position.
func (ex *execution) execElemAddr(idx int) error {
	base := container(ex.pop())
	switch b := base.(type) {
	case *value.Mat:
		if idx < 0 || idx >= len(b.Data) {
			return fmt.Errorf("element index out of range")
		}
		ex.push(&value.Cell{
			Get: func() value.Value { return b.Data[idx] },
			Set: func(v value.Value) { b.Data[idx] = v },
		})
		return nil
	case *value.Obj:
		pos := b.FieldIndex(idx)
		if pos < 0 {
			if idx >= 0 && idx < len(b.Values) {
				pos = idx
			} else {
				return fmt.Errorf("object %s has no such field", b.TypeName())
			}
		}
		ex.push(&value.Cell{
			Get: func() value.Value { return b.Values[pos] },
			Set: func(v value.Value) { b.Values[pos] = v },
		})
		return nil
	default:
		return fmt.Errorf("field access requires a mat or obj, got %s", base.TypeName())
	}
}

// execMatCreate implements MATCREATE(dim): pops dim bound pairs pushed
// by decl.go's createMatrix. The two declarator shapes it compiles --
// `expr` (upper-bound shorthand, pushed hi-then-lo) and `lo:hi` (pushed
// lo-then-hi) -- leave each pair in opposite stack order, so each pair is
// sorted into (lo, hi) here rather than assumed to arrive in one fixed
// order.
func (ex *execution) execMatCreate(dim int) error {
	raw := make([]int, dim*2)
	for i := len(raw) - 1; i >= 0; i-- {
		n, err := asInt(ex.pop())
		if err != nil {
			return err
		}
		raw[i] = n
	}
	dims := make([]value.Dim, dim)
	for i := 0; i < dim; i++ {
		a, b := raw[2*i], raw[2*i+1]
		if a > b {
			a, b = b, a
		}
		dims[i] = value.Dim{Lo: a, Hi: b}
	}
	ex.push(value.NewMat(dims))
	return nil
}

// execInitFill implements INITFILL: fills every element of the matrix
// created by the preceding MATCREATE with either a clone of a nested
// matrix template (matrix-of-matrices, decl.go's recursive createMatrix
// call) or the numeric zero every other matrix element defaults to.
func (ex *execution) execInitFill() error {
	tmpl := value.Deref(ex.pop())
	top := ex.pop()
	mat, ok := top.(*value.Mat)
	if !ok {
		return fmt.Errorf("INITFILL requires a mat")
	}
	if sub, ok := tmpl.(*value.Mat); ok {
		for i := range mat.Data {
			mat.Data[i] = cloneMat(sub)
		}
	} else {
		zero := value.NewInt(0)
		for i := range mat.Data {
			mat.Data[i] = zero
		}
	}
	ex.push(mat)
	return nil
}

// execElemInit implements ELEMINIT(index): always a positional write
// (decl.go's parseInitList never deals in field names, only brace
// position), into whichever aggregate -- Mat or Obj -- sits just beneath
// the value on the stack, left in place for the next ELEMINIT in the
// same initializer list.
func (ex *execution) execElemInit(index int) error {
	v := value.Deref(ex.pop())
	base := container(ex.peek())
	switch b := base.(type) {
	case *value.Mat:
		if index < 0 || index >= len(b.Data) {
			return fmt.Errorf("initializer has more elements than the matrix")
		}
		b.Data[index] = v
	case *value.Obj:
		if index < 0 || index >= len(b.Values) {
			return fmt.Errorf("initializer has more elements than the object")
		}
		b.Values[index] = v
	default:
		return fmt.Errorf("initializer list requires a mat or obj, got %s", base.TypeName())
	}
	return nil
}

// execShow implements the `show` directive's runtime half: arg indexes
// showNames (stmt.go) the same way, or -- for arg >= len(showNames) --
// names a user function to disassemble (`show func name`).
func (ex *execution) execShow(arg int) {
	const numCategories = 20
	if arg >= numCategories {
		idx := arg - numCategories
		fn, ok := ex.vm.funcs[idx]
		if !ok {
			fmt.Fprintln(ex.vm.out, "(undefined function)")
			return
		}
		for _, line := range opcode.FormatInstructions(fn.Code, 0) {
			fmt.Fprintln(ex.vm.out, line)
		}
		return
	}
	switch arg {
	case 1: // builtin
		for _, name := range builtins.Names() {
			fmt.Fprintln(ex.vm.out, name)
		}
	case 6: // objtypes
		for _, ot := range ex.vm.objs.All() {
			fmt.Fprintln(ex.vm.out, ot.Name)
		}
	case 8: // sizes
		fmt.Fprintf(ex.vm.out, "globals %d\n", len(ex.vm.globals))
	case 17: // strings
		fmt.Fprintln(ex.vm.out, "(string table contents are internal)")
	default:
		fmt.Fprintln(ex.vm.out, "(show not implemented for this parameter)")
	}
}

// Package symtab implements the symbol-table store, the string
// interning table, the object-type registry, and the user/builtin
// function tables that the compiler's symbol resolver drives. It is an
// external collaborator of the compiler core, independently testable: a
// scope-stacked symbol table following calc's file/function scope
// discipline rather than nested lexical blocks.
package symtab

import "fmt"

// Kind classifies a resolved name.
type Kind int

const (
	Undefined Kind = iota
	Global
	Static
	Local
	Param
)

func (k Kind) String() string {
	switch k {
	case Global:
		return "global"
	case Static:
		return "static"
	case Local:
		return "local"
	case Param:
		return "param"
	default:
		return "undefined"
	}
}

// Symbol is a resolved name: its kind and its slot (local/param) or
// handle (global/static, an index into Table.globals).
type Symbol struct {
	Name string
	Kind Kind
	Index int
}

type shadow struct {
	name string
	prev *Symbol // nil if name was previously undefined
}

type funcScope struct {
	locals []string
	params []string
}

// Table is the symbol-table store for one compilation unit (it is shared
// across nested `read` files and nested function definitions the way a
// single calc process has one flat global namespace).
type Table struct {
	globals []*Symbol
	globalByName map[string]*Symbol
	fileFrames [][]shadow
	funcStack []*funcScope
}

// New creates an empty Table positioned at top-level file scope.
func New() *Table {
	t := &Table{globalByName: make(map[string]*Symbol)}
	t.EnterFileScope()
	t.EnterFuncScope()
	return t
}

// EnterFileScope begins a new file-scope frame, used when `read` begins
// compiling a nested source file. Statics defined while this frame is on
// top are reverted when it exits.
func (t *Table) EnterFileScope() {
	t.fileFrames = append(t.fileFrames, nil)
}

// ExitFileScope ends the most recent file-scope frame, reverting any
// static definitions made within it to their previous visibility.
func (t *Table) ExitFileScope() {
	n := len(t.fileFrames)
	if n == 0 {
		return
	}
	frame := t.fileFrames[n-1]
	t.fileFrames = t.fileFrames[:n-1]
	for i := len(frame) - 1; i >= 0; i-- {
		sh := frame[i]
		if sh.prev == nil {
			delete(t.globalByName, sh.name)
		} else {
			t.globalByName[sh.name] = sh.prev
		}
	}
}

// EnterFuncScope begins a fresh local/param numbering for a function
// definition (or the interactive pseudo-function).
func (t *Table) EnterFuncScope() {
	t.funcStack = append(t.funcStack, &funcScope{})
}

// ExitFuncScope ends the current function's local/param numbering and
// resumes the enclosing one, if any (nested `eval`).
func (t *Table) ExitFuncScope() {
	n := len(t.funcStack)
	if n == 0 {
		return
	}
	t.funcStack = t.funcStack[:n-1]
}

func (t *Table) curFunc() *funcScope { return t.funcStack[len(t.funcStack)-1] }

// LocalCount returns the number of locals defined in the current function.
func (t *Table) LocalCount() int { return len(t.curFunc().locals) }

// ParamCount returns the number of parameters defined in the current function.
func (t *Table) ParamCount() int { return len(t.curFunc().params) }

// Classify reports what kind of symbol name currently resolves to, and
// its slot/handle. Search order: param, local, global/static.
func (t *Table) Classify(name string) (Kind, int) {
	fs := t.curFunc()
	for i := len(fs.params) - 1; i >= 0; i-- {
		if fs.params[i] == name {
			return Param, i
		}
	}
	for i := len(fs.locals) - 1; i >= 0; i-- {
		if fs.locals[i] == name {
			return Local, i
		}
	}
	if sym, ok := t.globalByName[name]; ok {
		return sym.Kind, sym.Index
	}
	return Undefined, 0
}

// AddParam declares a new parameter in the current function and returns
// its slot.
func (t *Table) AddParam(name string) int {
	fs := t.curFunc()
	fs.params = append(fs.params, name)
	return len(fs.params) - 1
}

// AddLocal declares a new local in the current function and returns its
// slot. Re-declaring an existing local is permitted and
// returns the existing slot.
func (t *Table) AddLocal(name string) int {
	fs := t.curFunc()
	for i, n := range fs.locals {
		if n == name {
			return i
		}
	}
	fs.locals = append(fs.locals, name)
	return len(fs.locals) - 1
}

// FindLocal reports the slot of an already-declared local.
func (t *Table) FindLocal(name string) (int, bool) {
	fs := t.curFunc()
	for i := len(fs.locals) - 1; i >= 0; i-- {
		if fs.locals[i] == name {
			return i, true
		}
	}
	return 0, false
}

// FindParam reports the slot of an already-declared parameter.
func (t *Table) FindParam(name string) (int, bool) {
	fs := t.curFunc()
	for i := len(fs.params) - 1; i >= 0; i-- {
		if fs.params[i] == name {
			return i, true
		}
	}
	return 0, false
}

// AddGlobal declares or redefines a global or static variable and
// returns its handle. When isStatic, the definition is recorded as a
// shadow of the current file-scope frame so ExitFileScope reverts it.
func (t *Table) AddGlobal(name string, isStatic bool) int {
	prev := t.globalByName[name]

	var sym *Symbol
	if prev != nil && (prev.Kind == Global || prev.Kind == Static) {
		// reuse the existing handle so writes through stale references
		// (e.g. from a sibling file scope) still land on one slot.
		sym = &Symbol{Name: name, Index: prev.Index}
	} else {
		sym = &Symbol{Name: name, Index: len(t.globals)}
		t.globals = append(t.globals, sym)
	}
	if isStatic {
		sym.Kind = Static
	} else {
		sym.Kind = Global
	}

	if isStatic {
		n := len(t.fileFrames)
		t.fileFrames[n-1] = append(t.fileFrames[n-1], shadow{name: name, prev: prev})
	}
	t.globalByName[name] = sym
	return sym.Index
}

// FindGlobal reports the handle of an already-declared global or static.
func (t *Table) FindGlobal(name string) (int, bool) {
	sym, ok := t.globalByName[name]
	if !ok {
		return 0, false
	}
	return sym.Index, true
}

// EndScope is used when a name previously static is redefined at a
// broader scope. Any pending file-frame shadow record
// for name is discarded so exiting that frame later does not incorrectly
// restore it. The name's current binding is left in place for the
// caller's new definition to replace.
func (t *Table) EndScope(name string) {
	for i := range t.fileFrames {
		frame := t.fileFrames[i]
		for j, sh := range frame {
			if sh.name == name {
				t.fileFrames[i] = append(frame[:j], frame[j+1:]...)
				break
			}
		}
	}
}

// GlobalsSize returns the number of global/static handles allocated so
// far (the VM's global slot array must be at least this large).
func (t *Table) GlobalsSize() int { return len(t.globals) }

// GlobalName returns the name registered at global handle idx.
func (t *Table) GlobalName(idx int) string {
	if idx < 0 || idx >= len(t.globals) {
		return ""
	}
	return t.globals[idx].Name
}

// --- element names (object field interning) ------------------------------

// Elements interns object field names into a single global integer space
// so that `.foo` is one integer across all object types.
type Elements struct {
	byName map[string]int
	names []string
}

// NewElements creates an empty element-name table.
func NewElements() *Elements {
	return &Elements{byName: make(map[string]int)}
}

// Intern returns the element index for name, allocating one if needed.
func (e *Elements) Intern(name string) int {
	if idx, ok := e.byName[name]; ok {
		return idx
	}
	idx := len(e.names)
	e.byName[name] = idx
	e.names = append(e.names, name)
	return idx
}

// Lookup returns the element index for name without allocating.
func (e *Elements) Lookup(name string) (int, bool) {
	idx, ok := e.byName[name]
	return idx, ok
}

// Name returns the field name for element index idx.
func (e *Elements) Name(idx int) string {
	if idx < 0 || idx >= len(e.names) {
		return ""
	}
	return e.names[idx]
}

// --- object type registry -------------------------------------------------

// ObjectType is a registered `obj` type: an ordered list of element
// indices naming its fields.
type ObjectType struct {
	Name string
	Fields []int // element indices, in declaration order
	Index int // registration order, used as OBJCREATE's type operand
}

// Objects is the registry of object types, name -> type, looked up by
// name thereafter.
type Objects struct {
	byName map[string]*ObjectType
	order []*ObjectType
}

// NewObjects creates an empty object-type registry.
func NewObjects() *Objects {
	return &Objects{byName: make(map[string]*ObjectType)}
}

// Define registers a new object type. Returns an error if the name is
// already registered.
func (o *Objects) Define(name string, fields []int) (*ObjectType, error) {
	if _, ok := o.byName[name]; ok {
		return nil, fmt.Errorf("object type %q already defined", name)
	}
	ot := &ObjectType{Name: name, Fields: fields, Index: len(o.order)}
	o.byName[name] = ot
	o.order = append(o.order, ot)
	return ot, nil
}

// ByIndex returns the object type registered at registration-order idx.
func (o *Objects) ByIndex(idx int) (*ObjectType, bool) {
	if idx < 0 || idx >= len(o.order) {
		return nil, false
	}
	return o.order[idx], true
}

// Lookup returns a registered object type by name.
func (o *Objects) Lookup(name string) (*ObjectType, bool) {
	ot, ok := o.byName[name]
	return ot, ok
}

// FieldPosition returns the field position of element within ot, or -1.
func (ot *ObjectType) FieldPosition(element int) int {
	for i, e := range ot.Fields {
		if e == element {
			return i
		}
	}
	return -1
}

// All returns the registered object types in declaration order.
func (o *Objects) All() []*ObjectType { return append([]*ObjectType{}, o.order...) }

// --- string interning ------------------------------------------------------

// Strings interns string constants for the STRING opcode.
type Strings struct {
	byValue map[string]int
	values []string
}

// NewStrings creates an empty string table.
func NewStrings() *Strings {
	return &Strings{byValue: make(map[string]int)}
}

// Intern returns the constant index for s, allocating one if needed.
func (s *Strings) Intern(str string) int {
	if idx, ok := s.byValue[str]; ok {
		return idx
	}
	idx := len(s.values)
	s.byValue[str] = idx
	s.values = append(s.values, str)
	return idx
}

// Value returns the string stored at constant index idx.
func (s *Strings) Value(idx int) string {
	if idx < 0 || idx >= len(s.values) {
		return ""
	}
	return s.values[idx]
}

// --- user-function table --------------------------------------------------

// Functions tracks the declared user-function names and their indices.
// The compiled function objects themselves are owned by the runtime
//; this table only allocates and reclaims indices.
type Functions struct {
	byName map[string]int
	names []string
	free []int
}

// NewFunctions creates an empty user-function table.
func NewFunctions() *Functions {
	return &Functions{byName: make(map[string]int)}
}

// Define allocates (or reuses, on redefinition) the index for name.
func (f *Functions) Define(name string) int {
	if idx, ok := f.byName[name]; ok {
		return idx
	}
	var idx int
	if n := len(f.free); n > 0 {
		idx = f.free[n-1]
		f.free = f.free[:n-1]
		f.names[idx] = name
	} else {
		idx = len(f.names)
		f.names = append(f.names, name)
	}
	f.byName[name] = idx
	return idx
}

// Lookup returns the index of a declared user function.
func (f *Functions) Lookup(name string) (int, bool) {
	idx, ok := f.byName[name]
	return idx, ok
}

// Undefine removes name from the table, freeing its index for reuse. A
// second call for an already-removed name is a no-op.
func (f *Functions) Undefine(name string) bool {
	idx, ok := f.byName[name]
	if !ok {
		return false
	}
	delete(f.byName, name)
	f.free = append(f.free, idx)
	return true
}

// Names returns the currently-defined user function names.
func (f *Functions) Names() []string {
	out := make([]string, 0, len(f.byName))
	for name := range f.byName {
		out = append(out, name)
	}
	return out
}

// --- builtin-function table ------------------------------------------------

// Builtins is the read-only table of builtin-function names, consulted so
// that a `define` of the same name is rejected.
type Builtins struct {
	byName map[string]int
	names []string
}

// NewBuiltins creates a builtin-function table from an ordered name list.
func NewBuiltins(names []string) *Builtins {
	b := &Builtins{byName: make(map[string]int, len(names)), names: names}
	for i, n := range names {
		b.byName[n] = i
	}
	return b
}

// Lookup returns the builtin index for name.
func (b *Builtins) Lookup(name string) (int, bool) {
	idx, ok := b.byName[name]
	return idx, ok
}

// IsBuiltin reports whether name names a builtin function.
func (b *Builtins) IsBuiltin(name string) bool {
	_, ok := b.byName[name]
	return ok
}

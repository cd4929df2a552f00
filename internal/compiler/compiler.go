// Package compiler implements a single-pass recursive-descent compiler
// for calc: it consumes tokens from internal/lexer and emits a linear
// opcode stream (internal/opcode) onto a Function, resolving symbols
// through internal/symtab, patching forward jumps through label.go, and
// validating lvalue-ness, scoping, and declaration syntax as it goes.
// There is no intermediate AST: every parser method emits directly,
// driving code generation straight from a single grammar-shaped
// recursive walk over the token stream.
package compiler

import (
	"fmt"
	"io"

	"github.com/google/uuid"

	"github.com/stone39035605/calc/internal/lexer"
	"github.com/stone39035605/calc/internal/symtab"
	"github.com/stone39035605/calc/internal/token"
	"github.com/stone39035605/calc/internal/value"
)

// ExprKind is the expression-kind bitset returned by every expression-
// level parser. A bitset, not a type system.
type ExprKind int

const (
	// Assign is set when the emitted code performed an assignment.
	Assign ExprKind = 1 << iota
	// RValue is set when the top of stack is a value, not an address.
	// Its absence denotes an lvalue.
	RValue
	// Const is set when the value is a compile-time constant literal.
	Const
)

func (k ExprKind) Has(f ExprKind) bool { return k&f != 0 }
func (k ExprKind) IsLvalue() bool      { return !k.Has(RValue) }

// Limits carries the error budget, the include depth and the declarator
// parser's dimension count, configurable by internal/config. The include
// depth itself is enforced by the lexer's own bound, not by the compiler.
type Limits struct {
	MaxErrors       int
	MaxIncludeDepth int
	MaxDim          int
}

// DefaultLimits mirror calc's traditional defaults.
var DefaultLimits = Limits{MaxErrors: 20, MaxIncludeDepth: 19, MaxDim: 4}

// Directives is the host-provided dispatch contract for the read/write/cd/
// help directives. The compiler core never touches a filesystem directly;
// it calls back through this interface so the top-level driver stays
// unit-testable without real I/O.
type Directives interface {
	// OpenFile resolves name (searching an implementation-defined path)
	// and returns its contents for `read`, or an error.
	OpenFile(name string) (data []byte, resolved string, err error)
	// WriteGlobals serializes the current global symbols to name for
	// `write`.
	WriteGlobals(name string) error
	// Chdir changes the process working directory for `cd`.
	Chdir(dir string) error
	// Help prints (or otherwise surfaces) help text for name.
	Help(name string)
}

// Runtime is the host-provided hook the top-level driver uses to execute
// a freshly-compiled interactive line (hand the function straight to the
// VM for immediate execution) and to publish/retract `define`d and
// `undefine`d function bodies. Kept as an interface so the compiler
// package has no dependency on the VM package.
type Runtime interface {
	// Run executes fn immediately, the way the interactive top level
	// does for one compiled line.
	Run(fn *Function) error
	// Define publishes a just-compiled named function body under the
	// user-function table index idx, transferring ownership of fn to the
	// user-function table.
	Define(idx int, fn *Function)
	// Undefine retracts a previously published function body.
	Undefine(idx int)
}

// Compiler is the compilation context threaded through every parsing
// operation, kept as an explicit struct rather than package-level
// globals. One Compiler handles one getcommands-style run, including
// any nested `read` files it opens.
type Compiler struct {
	lex  *lexer.Lexer
	errs *ErrorList
	limits Limits

	sym      *symtab.Table
	strs     *symtab.Strings
	elems    *symtab.Elements
	objs     *symtab.Objects
	funcs    *symtab.Functions
	builtins *symtab.Builtins
	numbers  *numberPool

	dirs Directives
	run  Runtime

	allowRead  bool
	allowWrite bool

	// current token
	tok token.Token
	lit string

	cur         *Function
	namedLabels map[string]*Label
	lastIdx     lastIndexOrElem

	// hostErr is a StopError the Runtime reported (quit/abort); it
	// unwinds the read-command loop, nested `read` included.
	hostErr error

	sessionID uuid.UUID

	trace  io.Writer
	indent int
}

// Options configures a new Compiler.
type Options struct {
	AllowRead, AllowWrite bool
	Limits                Limits
	Directives            Directives
	Runtime               Runtime
	Trace                 io.Writer
}

// New creates a Compiler sharing the given symbol/constant tables (so
// successive top-level lines and nested `read` files see one another's
// globals), positioned at the start of src.
func New(lex *lexer.Lexer, sym *symtab.Table, strs *symtab.Strings, elems *symtab.Elements,
	objs *symtab.Objects, funcs *symtab.Functions, builtins *symtab.Builtins, opts Options) *Compiler {

	limits := opts.Limits
	if limits == (Limits{}) {
		limits = DefaultLimits
	}
	c := &Compiler{
		lex:        lex,
		errs:       newErrorList(limits.MaxErrors),
		limits:     limits,
		sym:        sym,
		strs:       strs,
		elems:      elems,
		objs:       objs,
		funcs:      funcs,
		builtins:   builtins,
		numbers:    newNumberPool(),
		dirs:       opts.Directives,
		run:        opts.Runtime,
		allowRead:  opts.AllowRead,
		allowWrite: opts.AllowWrite,
		sessionID:  uuid.New(),
		trace:      opts.Trace,
	}
	if c.trace != nil {
		fmt.Fprintf(c.trace, "compile session %s\n", c.sessionID)
	}
	c.next()
	return c
}

// Errors returns the accumulated diagnostics.
func (c *Compiler) Errors() *ErrorList { return c.errs }

// Numbers returns the interned numeric-constant pool in index order.
func (c *Compiler) Numbers() []value.Value { return c.numbers.Values() }

// Symbols exposes the shared symbol table for a host driving multiple
// successive Compiler instances over one session (nested `read`, REPL).
func (c *Compiler) Symbols() *symtab.Table { return c.sym }

// --- token stream helpers --------------------------------------------------

func (c *Compiler) next() {
	c.tok, c.lit = c.lex.NextToken()
	if c.trace != nil {
		fmt.Fprintf(c.trace, "%*stoken %s %q\n", c.indent*2, "", c.tok, c.lit)
	}
}

func (c *Compiler) rescan() { c.lex.Rescan(c.tok, c.lit) }

// setMode installs a new lexer mode, returning the previous one so every
// caller can restore it on all exit paths.
func (c *Compiler) setMode(m token.Mode) token.Mode { return c.lex.SetMode(m) }

// accept consumes tok if it is current, reporting whether it matched.
func (c *Compiler) accept(tok token.Token) bool {
	if c.tok == tok {
		c.next()
		return true
	}
	return false
}

// expect consumes tok, emitting a diagnostic if it is not current.
func (c *Compiler) expect(tok token.Token) bool {
	if c.tok != tok {
		c.errorAt(noResync, "expected %s, found %s", tok, c.describeTok())
		return false
	}
	c.next()
	return true
}

func (c *Compiler) describeTok() string {
	if c.tok.IsLiteral() && c.lit != "" {
		return c.lit
	}
	return c.tok.String()
}


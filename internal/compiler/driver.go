// The top-level driver: the read-command loop that dispatches `define`,
// `undefine`, `read`, `write`, `cd`, `help`, and bare interactive
// statements, driving one shared symbol table across everything a
// single compilation session sees.
package compiler

import (
	"errors"
	"fmt"

	"github.com/stone39035605/calc/internal/opcode"
	"github.com/stone39035605/calc/internal/symtab"
	"github.com/stone39035605/calc/internal/token"
)

// StopError is implemented by Runtime.Run errors that must stop the
// read-command loop instead of being reported as a statement diagnostic:
// `quit` and `abort` surface this way, an ordinary runtime error (bad
// operand, division by zero) does not. The error is handed back to the
// host verbatim from Feed.
type StopError interface {
	error
	StopsInput() bool
}

// Feed pushes src as a new top-level input chunk -- one REPL submission,
// or one whole file passed on the command line -- and drives the
// read-command loop over it to completion.
//
// filename is used only for diagnostics.
func (c *Compiler) Feed(filename string, src []byte) error {
	if !c.lex.PushFile(filename, src) {
		return fmt.Errorf("calc: maximum input depth reached")
	}
	// Newlines terminate a top-level statement, so they must be visible
	// tokens here; individual constructs (parenthesized expressions,
	// control headers) switch to token.DEFAULT themselves while they
	// need to ignore them (decl.go, expr.go, stmt.go).
	c.setMode(token.NEWLINES)
	c.next()
	err := c.runTopLevel()
	c.lex.PopFile()
	c.hostErr = nil
	return err
}

// runTopLevel is the read-command loop itself: it repeats
// until the current input frame reaches EOF, dispatching each top-level
// line to the directive or statement handler it calls for.
func (c *Compiler) runTopLevel() error {
	c.sym.EnterFileScope()
	defer c.sym.ExitFileScope()

	for {
		// quit/abort from an executed line stops the whole loop,
		// unwinding any nested `read` as well; the host decides whether
		// that ends the session or just this input.
		if c.hostErr != nil {
			return c.hostErr
		}

		for c.tok == token.Newline || c.tok == token.Semicolon {
			c.next()
		}

		switch c.tok {
		case token.EOF:
			return c.errs.Err()

		case token.Define:
			c.next()
			c.parseFunctionDefinition()

		case token.Undefine:
			c.next()
			c.parseUndefine()

		case token.Help:
			c.next()
			c.parseHelpDirective()

		case token.Read:
			c.next()
			c.parseReadDirective()

		case token.Write:
			c.next()
			c.parseWriteDirective()

		case token.Cd:
			c.next()
			c.parseCdDirective()

		default:
			c.parseInteractiveLine(false)
		}
	}
}

// --- function definitions --------------------------------------------------

// parseFunctionDefinition parses `define name(params) = expr` or
// `define name(params) {... }`, registers name in
// the shared user-function table, and -- once the body compiles cleanly --
// publishes the finished Function through Runtime.Define.
func (c *Compiler) parseFunctionDefinition() {
	if c.tok != token.Ident {
		c.errorAt(resyncSemicolon, "function name expected after define")
		return
	}
	name := c.lit
	c.next()

	errsBefore := c.errs.Count()
	redefinable := c.checkRedefinable(name)
	idx := c.funcs.Define(name)

	if !c.expect(token.LParen) {
		return
	}

	c.beginFunction(Named, name)

	if c.tok != token.RParen {
		for {
			if c.tok != token.Ident {
				c.errorAt(resyncSemicolon, "parameter name expected")
				break
			}
			pname := c.lit
			c.next()
			slot := c.defineSymbol(pname, symtab.Param)
			if c.accept(token.Assign) {
				c.emit1(opcode.ParamAddr, slot)
				have := NewLabel()
				c.emitJump(opcode.JumpNN, have)
				c.parseOpAssign()
				c.emit(opcode.AssignPop)
				c.defineLabel(have)
			}
			if !c.accept(token.Comma) {
				break
			}
		}
	}
	c.expect(token.RParen)

	switch {
	case c.accept(token.Assign):
		c.parseExprList()
		c.emit(opcode.Return)
	case c.tok == token.LBrace:
		c.next()
		c.parseBody(nil, nil, nil, nil)
		c.emit(opcode.Undef)
		c.emit(opcode.Return)
	default:
		c.errorAt(resyncSemicolon, "expected '=' or '{' in definition of %q", name)
	}

	fn := c.endFunction()
	if redefinable && c.errs.Count() == errsBefore && c.run != nil {
		c.run.Define(idx, fn)
	}
}

// beginFunction starts a new compilation unit: a fresh code buffer, a
// fresh numeric constant pool (consts.go), a fresh named-label set, and a
// new symtab function scope.
func (c *Compiler) beginFunction(kind Kind, name string) {
	c.cur = &Function{Name: name, Kind: kind}
	c.namedLabels = map[string]*Label{}
	c.numbers = newNumberPool()
	c.sym.EnterFuncScope()
}

// endFunction closes out the compilation unit opened by beginFunction:
// resolving any still-pending named labels, snapshotting the parameter
// and local counts and constant pool onto the Function, and restoring the
// enclosing symbol scope.
func (c *Compiler) endFunction() *Function {
	c.resolveLabels()
	fn := c.cur
	fn.NumParams = c.sym.ParamCount()
	fn.NumLocals = c.sym.LocalCount()
	fn.Numbers = c.numbers.Values()
	c.sym.ExitFuncScope()
	c.cur = nil
	return fn
}

// --- undefine ----------------------------------------------------------

// parseUndefine parses `undefine name[, name...]` or `undefine *`,
// retracting each function from both the shared name table and, through
// Runtime.Undefine, the host's compiled function store. Builtins are not
// in the user-function table, so they cannot be undefined.
func (c *Compiler) parseUndefine() {
	if c.tok == token.Mul {
		c.next()
		for _, name := range c.funcs.Names() {
			if idx, ok := c.funcs.Lookup(name); ok {
				c.funcs.Undefine(name)
				if c.run != nil {
					c.run.Undefine(idx)
				}
			}
		}
		return
	}

	for {
		if c.tok != token.Ident {
			c.errorAt(resyncSemicolon, "function name expected after undefine")
			return
		}
		name := c.lit
		c.next()
		if idx, ok := c.funcs.Lookup(name); ok {
			c.funcs.Undefine(name)
			if c.run != nil {
				c.run.Undefine(idx)
			}
		} else {
			c.errorAt(noResync, "%q is not a user-defined function", name)
		}
		if !c.accept(token.Comma) {
			return
		}
	}
}

// --- read/write/cd/help --------------------------------------------------

// isNameTok reports whether the current token can serve as a filename or
// help-topic word. The directive keyword itself is scanned before the
// parser switches to ALLSYMS mode, so the first name token may still
// arrive classified as a keyword; its literal text is what matters.
func (c *Compiler) isNameTok() bool {
	return c.tok == token.Ident || c.tok == token.String || c.tok.IsKeyword()
}

// parseReadDirective parses `read [-once] name`,
// opening name through Directives and recursively running the top-level
// loop over its contents before resuming the enclosing input.
func (c *Compiler) parseReadDirective() {
	once := false
	old := c.setMode(token.ALLSYMS)
	if c.tok == token.Sub {
		c.next()
		if c.tok == token.Ident && c.lit == "once" {
			once = true
			c.next()
		} else {
			c.errorAt(resyncSemicolon, "unrecognized read option")
		}
	}
	if !c.isNameTok() {
		c.errorAt(resyncSemicolon, "filename expected after read")
		c.setMode(old)
		return
	}
	filename := c.lit
	c.next()
	c.setMode(old)
	c.acceptStatementEnd()

	if !c.allowRead {
		c.errorAt(noResync, "read is disabled")
		return
	}
	if c.dirs == nil {
		c.errorAt(noResync, "no file host configured for read")
		return
	}
	data, resolved, err := c.dirs.OpenFile(filename)
	if err != nil {
		c.errorAt(noResync, "cannot open %q: %s", filename, err)
		return
	}
	if once && c.lex.WasReadOnce(resolved) {
		return
	}
	// The token in hand belongs to the enclosing input; push it back so
	// it is re-read once the included file is exhausted.
	c.rescan()
	if !c.lex.PushFile(resolved, data) {
		c.errorAt(noResync, "maximum input depth reached reading %q", filename)
		c.next()
		return
	}
	c.lex.MarkOnce(resolved)
	c.next()
	c.runTopLevel()
	c.lex.PopFile()
	c.next()
}

// parseWriteDirective parses `write name`,
// serializing the current globals through Directives.
func (c *Compiler) parseWriteDirective() {
	old := c.setMode(token.ALLSYMS)
	if !c.isNameTok() {
		c.errorAt(resyncSemicolon, "filename expected after write")
		c.setMode(old)
		return
	}
	filename := c.lit
	c.next()
	c.setMode(old)
	c.acceptStatementEnd()

	if !c.allowWrite {
		c.errorAt(noResync, "write is disabled")
		return
	}
	if c.dirs == nil {
		c.errorAt(noResync, "no file host configured for write")
		return
	}
	if err := c.dirs.WriteGlobals(filename); err != nil {
		c.errorAt(noResync, "cannot write %q: %s", filename, err)
	}
}

// parseCdDirective parses `cd [dir]`.
func (c *Compiler) parseCdDirective() {
	old := c.setMode(token.ALLSYMS)
	dir := ""
	if c.isNameTok() {
		dir = c.lit
		c.next()
	}
	c.setMode(old)
	c.acceptStatementEnd()

	if c.dirs == nil {
		c.errorAt(noResync, "no file host configured for cd")
		return
	}
	if err := c.dirs.Chdir(dir); err != nil {
		c.errorAt(noResync, "cd: %s", err)
	}
}

// parseHelpDirective parses `help [name]`.
func (c *Compiler) parseHelpDirective() {
	old := c.setMode(token.ALLSYMS)
	name := ""
	if c.isNameTok() {
		name = c.lit
		c.next()
	}
	c.setMode(old)
	c.acceptStatementEnd()

	if c.dirs != nil {
		c.dirs.Help(name)
	}
}

// EvalNested compiles and runs src as a nested interactive session (the
// "**" pseudo-function, driven by the `eval` builtin):
// every statement in src runs against this Compiler's shared symbol
// table and Runtime, exactly like a top-level line, but tagged
// NestedEval so `parseSimpleStatement` always discards its result
// instead of auto-printing it.
func (c *Compiler) EvalNested(filename string, src []byte) error {
	if !c.lex.PushFile(filename, src) {
		return fmt.Errorf("calc: maximum input depth reached")
	}
	old := c.setMode(token.NEWLINES)
	c.next()
	for c.hostErr == nil {
		for c.tok == token.Newline || c.tok == token.Semicolon {
			c.next()
		}
		if c.tok == token.EOF {
			break
		}
		c.parseInteractiveLine(true)
	}
	c.lex.PopFile()
	c.setMode(old)
	if c.hostErr != nil {
		return c.hostErr
	}
	return c.errs.Err()
}

// --- interactive lines ---------------------------------------------------

// parseInteractiveLine compiles one bare top-level statement as the body
// of the "*" pseudo-function (or "**" when nested is true, for `eval`),
// then hands the finished Function to Runtime.Run for immediate
// execution.
func (c *Compiler) parseInteractiveLine(nested bool) {
	name, kind := "*", Interactive
	if nested {
		name, kind = "**", NestedEval
	}
	errsBefore := c.errs.Count()
	c.beginFunction(kind, name)

	c.parseStatement(nil, nil, nil, nil)

	c.emit(opcode.Undef)
	c.emit(opcode.Return)
	fn := c.endFunction()

	// An earlier statement's diagnostics must not suppress this one;
	// only errors from this line keep it from running.
	if c.errs.Count() > errsBefore || c.run == nil {
		return
	}
	if err := c.run.Run(fn); err != nil {
		var stop StopError
		if errors.As(err, &stop) && stop.StopsInput() {
			c.hostErr = err
		} else {
			c.errorAt(noResync, "%s", err)
		}
	}
}

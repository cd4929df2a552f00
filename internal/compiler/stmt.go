// The statement parser: recursive descent over control flow,
// declarations, and I/O statements, threading continue/break/case/
// default labels down into nested constructs and driving the expression
// parser, emitter, and symbol resolver.
package compiler

import (
	"github.com/stone39035605/calc/internal/opcode"
	"github.com/stone39035605/calc/internal/symtab"
	"github.com/stone39035605/calc/internal/token"
)

// showNames are the recognized `show xxxx` parameters, matched by the
// first four letters of the argument; "func" is a
// special case expecting a following function name.
var showNames = []string{
	"", "builtin", "real", "func", "objf", "config", "objtypes", "files",
	"sizes", "errors", "custom", "blocks", "constants", "globaltypes",
	"statics", "numbers", "redcdata", "strings", "literals", "opcodes",
}

func showArg(name string) int {
	prefix := name
	if len(prefix) > 4 {
		prefix = prefix[:4]
	}
	for i, s := range showNames {
		if i == 0 {
			continue
		}
		if len(s) >= 4 && s[:4] == prefix {
			return i
		}
	}
	return -1
}

// parseStatement parses and emits one statement. The four labels thread
// continue/break/next-case/default-case targets down into nested
// constructs; nil means "not available in this context".
func (c *Compiler) parseStatement(contLabel, breakLabel, nextCaseLabel, defaultLabel *Label) {
	c.emit1(opcode.Debug, c.lex.Line())

	switch c.tok {
	case token.Newline, token.Semicolon:
		c.next()
		return

	case token.Global:
		c.next()
		c.parseDeclarations(symtab.Global)
		c.acceptStatementEnd()
		return

	case token.Static:
		c.next()
		c.cur.HasStaticInit = true
		label := NewLabel()
		c.emitJump(opcode.InitStatic, label)
		c.parseDeclarations(symtab.Static)
		c.defineLabel(label)
		c.acceptStatementEnd()
		return

	case token.Local:
		c.next()
		c.parseDeclarations(symtab.Local)
		c.acceptStatementEnd()
		return

	case token.RBrace:
		c.errorAt(noResync, "extraneous right brace")
		c.next()
		return

	case token.Continue:
		c.next()
		if contLabel == nil {
			c.errorAt(resyncSemicolon, "continue not within for, while, or do")
			return
		}
		c.emitJump(opcode.Jump, contLabel)
		c.acceptStatementEnd()
		return

	case token.Break:
		c.next()
		if breakLabel == nil {
			c.errorAt(resyncSemicolon, "break not within for, while, do, or switch")
			return
		}
		c.emitJump(opcode.Jump, breakLabel)
		c.acceptStatementEnd()
		return

	case token.Goto:
		c.next()
		if c.tok != token.Ident {
			c.errorAt(resyncSemicolon, "missing label in goto")
			return
		}
		c.emitJump(opcode.Jump, c.namedLabel(c.lit))
		c.next()
		c.acceptStatementEnd()
		return

	case token.Return:
		c.next()
		switch c.tok {
		case token.Newline, token.Semicolon:
			c.emit(opcode.Undef)
			c.emit(opcode.Return)
			c.next()
			return
		default:
			c.parseExprList()
			if c.cur.Kind != Named {
				c.emit(opcode.Save)
			}
			c.emit(opcode.Return)
		}
		c.acceptStatementEnd()
		return

	case token.LBrace:
		c.next()
		c.parseBody(contLabel, breakLabel, nextCaseLabel, defaultLabel)
		return

	case token.If:
		c.next()
		c.parseCondition()
		ifFalse := NewLabel()
		done := NewLabel()
		c.emitJump(opcode.JumpZ, ifFalse)
		c.parseStatement(contLabel, breakLabel, nil, nil)
		if !c.accept(token.Else) {
			c.defineLabel(ifFalse)
			return
		}
		c.emitJump(opcode.Jump, done)
		c.defineLabel(ifFalse)
		c.parseStatement(contLabel, breakLabel, nil, nil)
		c.defineLabel(done)
		return

	case token.For:
		c.next()
		c.parseFor()
		return

	case token.While:
		c.next()
		c.parseWhile()
		return

	case token.Do:
		c.next()
		c.parseDo()
		return

	case token.Switch:
		c.next()
		c.parseSwitch(contLabel)
		return

	case token.Case:
		c.next()
		if nextCaseLabel == nil {
			c.errorAt(resyncSemicolon, "case not within switch statement")
			return
		}
		skip := NewLabel()
		c.emitJump(opcode.Jump, skip)
		c.defineLabel(nextCaseLabel)
		clearLabel(nextCaseLabel)
		c.parseExprList()
		if !c.expect(token.Colon) {
			return
		}
		c.emitJump(opcode.CaseJump, nextCaseLabel)
		c.defineLabel(skip)
		c.parseStatement(contLabel, breakLabel, nextCaseLabel, defaultLabel)
		return

	case token.Default:
		c.next()
		if !c.expect(token.Colon) {
			return
		}
		if defaultLabel == nil {
			c.errorAt(resyncSemicolon, "default not within switch statement")
			return
		}
		if defaultLabel.Defined() {
			c.errorAt(resyncSemicolon, "multiple default clauses in switch")
			return
		}
		skip := NewLabel()
		c.emitJump(opcode.Jump, skip)
		c.defineLabel(defaultLabel)
		c.emit(opcode.Pop)
		c.defineLabel(skip)
		c.parseStatement(contLabel, breakLabel, nextCaseLabel, defaultLabel)
		return

	case token.Else:
		c.errorAt(resyncSemicolon, "else without preceding if")
		return

	case token.Show:
		c.next()
		c.parseShow()
		c.acceptStatementEnd()
		return

	case token.Print:
		c.next()
		c.parsePrint()
		return

	case token.Quit:
		c.next()
		c.parseQuitAbort(opcode.Quit)
		c.acceptStatementEnd()
		return

	case token.Abort:
		c.next()
		c.parseQuitAbort(opcode.Abort)
		c.acceptStatementEnd()
		return

	case token.Ident:
		if c.lex.PeekByte() == int(':') {
			name := c.lit
			c.next() // consume the identifier; the ':' is then its own Colon token
			c.accept(token.Colon)
			c.defineNamedLabel(name)
			if c.tok == token.RBrace {
				return
			}
			c.parseStatement(contLabel, breakLabel, nextCaseLabel, defaultLabel)
			return
		}
		c.parseSimpleStatement(contLabel, breakLabel)
		return

	default:
		c.parseSimpleStatement(contLabel, breakLabel)
		return
	}
}

// parseSimpleStatement handles the fallthrough `assignment ';'` case:
// evaluate an expression list for its side effects (or, at the
// interactive top level, print and save its value).
func (c *Compiler) parseSimpleStatement(contLabel, breakLabel *Label) {
	kind := c.parseExprList()
	if contLabel != nil || breakLabel != nil || c.cur.Kind == Named {
		c.emit(opcode.Pop)
		c.acceptStatementEnd()
		return
	}
	c.emit(opcode.Save)
	if kind.Has(Assign) || c.cur.Kind == NestedEval {
		c.emit(opcode.Pop)
	} else {
		c.emit(opcode.PrintResult)
	}
	c.acceptStatementEnd()
}

// acceptStatementEnd consumes the statement's trailing delimiter: ';' is
// consumed, newline/'}'/EOF are left for the enclosing body to see, a
// stray number is flagged, and anything else is a missing-semicolon
// error.
func (c *Compiler) acceptStatementEnd() {
	switch c.tok {
	case token.RBrace, token.Newline, token.EOF:
	case token.Semicolon:
		c.next()
	case token.Number, token.Imag:
		c.errorAt(noResync, "unexpected number")
	default:
		c.errorAt(noResync, "semicolon expected")
	}
}

// parseBody parses `{ statement... }`, or is
// reused by the top-level evaluator for one bare statement sequence.
func (c *Compiler) parseBody(contLabel, breakLabel, nextCaseLabel, defaultLabel *Label) {
	old := c.setMode(token.DEFAULT)
	defer c.setMode(old)
	for {
		switch c.tok {
		case token.RBrace:
			c.next()
			return
		case token.EOF:
			c.errorAt(resyncSemicolon, "end-of-file in function body")
			return
		default:
			c.parseStatement(contLabel, breakLabel, nextCaseLabel, defaultLabel)
		}
	}
}

// parseCondition parses `'(' exprlist ')'`.
func (c *Compiler) parseCondition() {
	if !c.expect(token.LParen) {
		return
	}
	c.parseExprList()
	c.expect(token.RParen)
}

func (c *Compiler) parseFor() {
	old := c.setMode(token.DEFAULT)
	defer c.setMode(old)

	testLabel := NewLabel()
	incrLabel := NewLabel()
	bodyLabel := NewLabel()
	breakLabel := NewLabel()
	var contLabel *Label

	if !c.expect(token.LParen) {
		return
	}
	if c.tok != token.Semicolon {
		c.parseExprList()
		c.emit(opcode.Pop)
	}
	if !c.expect(token.Semicolon) {
		return
	}

	hasTest := c.tok != token.Semicolon
	if hasTest {
		c.defineLabel(testLabel)
		contLabel = testLabel
		c.parseExprList()
		c.emitJump(opcode.JumpNZ, bodyLabel)
		c.emitJump(opcode.Jump, breakLabel)
	}
	if !c.expect(token.Semicolon) {
		return
	}

	if c.tok != token.RParen {
		if !hasTest {
			c.emitJump(opcode.Jump, bodyLabel)
		}
		c.defineLabel(incrLabel)
		contLabel = incrLabel
		c.parseExprList()
		c.emit(opcode.Pop)
		if hasTest {
			c.emitJump(opcode.Jump, testLabel)
		}
	}
	if !c.expect(token.RParen) {
		return
	}

	c.defineLabel(bodyLabel)
	if contLabel == nil {
		contLabel = bodyLabel
	}
	c.parseStatement(contLabel, breakLabel, nil, nil)
	c.emitJump(opcode.Jump, contLabel)
	c.defineLabel(breakLabel)
}

func (c *Compiler) parseWhile() {
	old := c.setMode(token.DEFAULT)
	defer c.setMode(old)

	contLabel := NewLabel()
	breakLabel := NewLabel()
	c.defineLabel(contLabel)
	c.parseCondition()
	c.emitJump(opcode.JumpZ, breakLabel)
	c.parseStatement(contLabel, breakLabel, nil, nil)
	c.emitJump(opcode.Jump, contLabel)
	c.defineLabel(breakLabel)
}

func (c *Compiler) parseDo() {
	old := c.setMode(token.DEFAULT)
	defer c.setMode(old)

	contLabel := NewLabel()
	breakLabel := NewLabel()
	top := NewLabel()
	c.defineLabel(top)
	c.parseStatement(contLabel, breakLabel, nil, nil)
	if !c.expect(token.While) {
		return
	}
	c.defineLabel(contLabel)
	c.parseCondition()
	c.emitJump(opcode.JumpNZ, top)
	c.defineLabel(breakLabel)
	c.acceptStatementEnd()
}

func (c *Compiler) parseSwitch(contLabel *Label) {
	old := c.setMode(token.DEFAULT)
	defer c.setMode(old)

	breakLabel := NewLabel()
	nextCaseLabel := NewLabel()
	defaultLabel := NewLabel()
	c.parseCondition()
	if c.tok != token.LBrace {
		c.errorAt(resyncSemicolon, "missing left brace for switch statement")
		return
	}
	c.emitJump(opcode.Jump, nextCaseLabel)
	// The '{' is left for parseStatement so the whole brace block is
	// parsed with the switch's case/default labels live.
	c.parseStatement(contLabel, breakLabel, nextCaseLabel, defaultLabel)
	c.emitJump(opcode.Jump, breakLabel)
	c.defineLabel(nextCaseLabel)
	if defaultLabel.Defined() {
		c.emitJump(opcode.Jump, defaultLabel)
	} else {
		c.emit(opcode.Pop)
	}
	c.defineLabel(breakLabel)
}

func (c *Compiler) parseShow() {
	if c.tok != token.Ident {
		c.errorAt(noResync, "show command requires a parameter name")
		return
	}
	name := c.lit
	c.next()
	arg := showArg(name)
	switch arg {
	case -1:
		c.errorAt(noResync, "unknown show parameter %q ignored", name)
	case 3: // "func"
		if c.tok != token.Ident {
			c.errorAt(resyncSemicolon, "function name expected")
			return
		}
		idx := c.funcs.Define(c.lit)
		c.next()
		c.emit1(opcode.Show, len(showNames)+idx)
	default:
		c.emit1(opcode.Show, arg)
	}
}

func (c *Compiler) parsePrint() {
	eol := true
	for {
		switch c.tok {
		case token.RParen, token.RBrack, token.RBrace, token.Newline, token.EOF:
			if eol {
				c.emit(opcode.PrintEOL)
			}
			return
		case token.Semicolon:
			if eol {
				c.emit(opcode.PrintEOL)
			}
			c.next()
			return
		case token.Comma:
			c.emit(opcode.PrintSpace)
			eol = false
			c.next()
		case token.Colon:
			eol = false
			c.next()
		case token.String:
			eol = true
			c.emit1(opcode.PrintString, c.internString(c.lit))
			c.next()
		default:
			eol = true
			c.parseOpAssign()
			c.emit1(opcode.Print, 0)
		}
	}
}

func (c *Compiler) parseQuitAbort(op opcode.Opcode) {
	if c.tok == token.String {
		c.emit1(op, c.internString(c.lit))
		c.next()
		return
	}
	c.emit1(op, -1)
}

// parseDeclarations parses a comma-separated sequence of local/global/
// static declarators.
func (c *Compiler) parseDeclarations(kind symtab.Kind) {
	for {
		switch c.tok {
		case token.Comma:
			c.next()
			continue
		case token.Newline, token.Semicolon, token.RBrace:
			return
		case token.Ident:
			c.parseSimpleDeclaration(kind)
		case token.Mat:
			c.next()
			c.parseOneMatrix(kind)
			c.emit(opcode.Pop)
		case token.Obj:
			c.next()
			c.parseObjDeclaration(kind)
			c.emit(opcode.Pop)
		default:
			c.errorAt(resyncSemicolon, "bad syntax in declaration statement")
			return
		}
	}
}

// parseSimpleDeclaration parses the non-mat/obj declarator sequence
// `name [= value] [','...]`.
func (c *Compiler) parseSimpleDeclaration(kind symtab.Kind) {
	for {
		switch c.tok {
		case token.Ident:
			if c.parseOneVariable(kind) {
				c.emit(opcode.Pop)
			}
		case token.Comma:
			c.next()
			continue
		default:
			return
		}
		if c.tok != token.Comma {
			return
		}
	}
}

// parseOneVariable parses one name in a whitespace-chained declarator
// group (`c d = 2` means both c and d are assigned 2), recursing to find
// a trailing `= value` that every name in the chain shares. Returns true
// if an assignment value was produced and left on the stack for the
// caller to pop.
func (c *Compiler) parseOneVariable(kind symtab.Kind) bool {
	if c.tok != token.Ident {
		if c.tok == token.Assign {
			c.next()
			c.parseOpAssign()
			return true
		}
		return false
	}
	name := c.lit
	c.next()
	assigned := c.parseOneVariable(kind)
	c.defineSymbol(name, kind)
	if assigned {
		c.useSymbol(name, false)
		c.emit(opcode.AssignBack)
	}
	return assigned
}

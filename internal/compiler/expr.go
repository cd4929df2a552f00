// The expression-parser precedence ladder: one method per precedence
// level, from comma sequencing at the bottom to terms at the top, each
// emitting its operator opcode after its right operand so the VM sees
// postfix order. Every level returns the ExprKind bitset describing what
// it left on the stack.
package compiler

import (
	"github.com/stone39035605/calc/internal/opcode"
	"github.com/stone39035605/calc/internal/symtab"
	"github.com/stone39035605/calc/internal/token"
)

// parseExprList is the top-level expression entry point: a comma-
// sequenced list of opassignments, the value of which is its last
// element.
func (c *Compiler) parseExprList() ExprKind {
	kind := c.parseOpAssign()
	for c.accept(token.Comma) {
		c.emit(opcode.Pop)
		kind = c.parseOpAssign()
	}
	return kind
}

func opAssignOpcode(tok token.Token) (opcode.Opcode, bool) {
	switch tok {
	case token.AddAssign:
		return opcode.Add, true
	case token.SubAssign:
		return opcode.Sub, true
	case token.MulAssign:
		return opcode.Mul, true
	case token.QuoAssign:
		return opcode.Div, true
	case token.QuoquoAssign:
		return opcode.Quo, true
	case token.ModAssign:
		return opcode.Mod, true
	case token.AndAssign:
		return opcode.And, true
	case token.OrAssign:
		return opcode.Or, true
	case token.ShlAssign:
		return opcode.LeftShift, true
	case token.ShrAssign:
		return opcode.RightShift, true
	case token.XorAssign: // '^='
		return opcode.Power, true
	case token.HashAssign: // '#='
		return opcode.HashOp, true
	case token.CompAssign: // '~='
		return opcode.Xor, true
	case token.BackAssign: // '\='
		return opcode.SetMinus, true
	default:
		return 0, false
	}
}

// parseOpAssign handles the compound-assignment family (+=, -=, and the
// rest of the op= operators), looping so a chain like `a += b += c` is
// accepted.
func (c *Compiler) parseOpAssign() ExprKind {
	kind := c.parseAssign()
	op, ok := opAssignOpcode(c.tok)
	if !ok {
		return kind
	}
	if kind.Has(RValue) {
		c.errorAt(noResync, "illegal assignment")
		c.next()
		c.parseOpAssign()
		return RValue | Assign
	}
	c.rewriteLastIndexForWrite()
	for {
		c.next() // consume the op= token
		c.emit(opcode.Duplicate)
		if c.tok == token.LBrace {
			c.emit(opcode.DupValue)
			c.parseInitList()
			for c.accept(token.Assign) {
				c.parseInitList()
			}
		} else {
			c.parseAssign()
		}
		c.emit(op)
		c.emit(opcode.Assign)
		op, ok = opAssignOpcode(c.tok)
		if !ok {
			return Assign
		}
	}
}

// parseAssign handles plain '=', right-
// associatively so `a = b = c` chains via recursion.
func (c *Compiler) parseAssign() ExprKind {
	switch c.tok {
	case token.Comma, token.Semicolon, token.Newline, token.RParen,
		token.RBrack, token.RBrace, token.EOF:
		c.emit(opcode.Undef)
		return RValue
	}

	kind := c.parseAltCond()
	if c.tok != token.Assign {
		return kind
	}
	if kind.Has(RValue) {
		c.errorAt(resyncSemicolon, "illegal assignment")
		c.next()
		c.parseAssign()
		return RValue | Assign
	}
	c.rewriteLastIndexForWrite()
	c.next() // consume '='
	if c.tok == token.LBrace {
		c.parseInitList()
		for c.accept(token.Assign) {
			c.parseInitList()
		}
		return Assign
	}
	c.parseAssign()
	c.emit(opcode.Assign)
	return Assign
}

// parseAltCond handles the ternary `?:`.
func (c *Compiler) parseAltCond() ExprKind {
	kind := c.parseOrCond()
	if !c.accept(token.Question) {
		return kind
	}
	alt := NewLabel()
	done := NewLabel()
	c.emitJump(opcode.JumpZ, alt)
	kind = c.parseAltCond()
	if !c.expect(token.Colon) {
		return RValue
	}
	c.emitJump(opcode.Jump, done)
	c.defineLabel(alt)
	kind |= c.parseAltCond()
	c.defineLabel(done)
	return kind
}

// parseOrCond handles `||` short-circuit chaining.
func (c *Compiler) parseOrCond() ExprKind {
	kind := c.parseAndCond()
	done := NewLabel()
	any := false
	for c.accept(token.LOr) {
		c.emitJump(opcode.CondOrJump, done)
		kind |= c.parseAndCond()
		any = true
	}
	if any {
		c.defineLabel(done)
	}
	return kind
}

// parseAndCond handles `&&` short-circuit chaining.
func (c *Compiler) parseAndCond() ExprKind {
	kind := c.parseRelation()
	done := NewLabel()
	any := false
	for c.accept(token.LAnd) {
		c.emitJump(opcode.CondAndJump, done)
		kind |= c.parseRelation()
		any = true
	}
	if any {
		c.defineLabel(done)
	}
	return kind
}

func relOpcode(tok token.Token) (opcode.Opcode, bool) {
	switch tok {
	case token.Equal:
		return opcode.Eq, true
	case token.NotEqual:
		return opcode.Ne, true
	case token.Less:
		return opcode.Lt, true
	case token.Greater:
		return opcode.Gt, true
	case token.LessEq:
		return opcode.Le, true
	case token.GreaterEq:
		return opcode.Ge, true
	default:
		return 0, false
	}
}

// parseRelation handles exactly one comparison; it is non-associative,
// so `a == b == c` is not a relation chain.
func (c *Compiler) parseRelation() ExprKind {
	kind := c.parseSum()
	op, ok := relOpcode(c.tok)
	if !ok {
		return kind
	}
	c.next()
	c.parseSum()
	c.emit(op)
	return RValue
}

// parseSum handles unary/binary `+ -`.
func (c *Compiler) parseSum() ExprKind {
	var kind ExprKind
	switch c.tok {
	case token.Add:
		c.next()
		c.parseProduct()
		c.emit(opcode.Plus)
		kind = RValue
	case token.Sub:
		c.next()
		c.parseProduct()
		c.emit(opcode.Negate)
		kind = RValue
	default:
		kind = c.parseProduct()
	}
	for {
		var op opcode.Opcode
		switch c.tok {
		case token.Add:
			op = opcode.Add
		case token.Sub:
			op = opcode.Sub
		default:
			return kind
		}
		c.next()
		c.parseProduct()
		c.emit(op)
		kind = RValue
	}
}

// parseProduct handles `* / % //`.
func (c *Compiler) parseProduct() ExprKind {
	kind := c.parseOrExpr()
	for {
		var op opcode.Opcode
		switch c.tok {
		case token.Mul:
			op = opcode.Mul
		case token.Quo:
			op = opcode.Div
		case token.Mod:
			op = opcode.Mod
		case token.Quoquo:
			op = opcode.Quo
		default:
			return kind
		}
		c.next()
		c.parseOrExpr()
		c.emit(op)
		kind = RValue
	}
}

// parseOrExpr handles `|`.
func (c *Compiler) parseOrExpr() ExprKind {
	kind := c.parseAndExpr()
	for c.accept(token.Or) {
		c.parseAndExpr()
		c.emit(opcode.Or)
		kind = RValue
	}
	return kind
}

// parseAndExpr handles `& # ~ \` (set/hash/xor/setminus,
// "andexpr"). Token names and opcode names intentionally diverge here
// (token.Xor is '#', opcode.Xor is bound to '~') -- this mismatch comes
// straight from the source grammar's operator-symbol choices.
func (c *Compiler) parseAndExpr() ExprKind {
	kind := c.parseShiftExpr()
	for {
		var op opcode.Opcode
		switch c.tok {
		case token.And:
			op = opcode.And
		case token.Xor: // '#'
			op = opcode.HashOp
		case token.Comp: // '~'
			op = opcode.Xor
		case token.Backslash: // '\'
			op = opcode.SetMinus
		default:
			return kind
		}
		c.next()
		c.parseShiftExpr()
		c.emit(op)
		kind = RValue
	}
}

// parseShiftExpr handles the unary prefix group `+ - ! / \ ~ #` and the
// binary (right-associative) group `^ << >>` at one precedence level.
func (c *Compiler) parseShiftExpr() ExprKind {
	var unary opcode.Opcode
	has := true
	switch c.tok {
	case token.Add:
		unary = opcode.Plus
	case token.Sub:
		unary = opcode.Negate
	case token.Not:
		unary = opcode.Not
	case token.Quo:
		unary = opcode.Invert
	case token.Backslash:
		unary = opcode.Backslash
	case token.Comp:
		unary = opcode.Comp
	case token.Xor:
		unary = opcode.Content
	default:
		has = false
	}
	if has {
		c.next()
		c.parseShiftExpr()
		c.emit(unary)
		return RValue
	}

	kind := c.parseReference()
	var bin opcode.Opcode
	switch c.tok {
	case token.Power:
		bin = opcode.Power
	case token.Shl:
		bin = opcode.LeftShift
	case token.Shr:
		bin = opcode.RightShift
	default:
		return kind
	}
	c.next()
	c.parseShiftExpr() // right-associative
	c.emit(bin)
	return RValue
}

// parseReference handles the "reference" precedence level's prefix
// `&`, `*`, and `**`: `&` takes the address of a reference, producing a
// pointer value; `*`/`**` dereference one or two levels, leaving an
// address (not a value) on the stack.
func (c *Compiler) parseReference() ExprKind {
	switch c.tok {
	case token.LAnd:
		c.errorAt(noResync, "non-variable operand for &")
		c.next()
		return c.parseIncDec()
	case token.And:
		c.next()
		kind := c.parseReference()
		if kind.Has(RValue) {
			c.errorAt(noResync, "non-variable operand for &")
		} else {
			c.rewriteLastIndexForWrite()
		}
		c.emit(opcode.Ptr)
		return RValue
	case token.Mul:
		c.next()
		c.parseReference()
		c.emit(opcode.Deref)
		return 0
	case token.Power: // '**' (double deref)
		c.next()
		c.parseReference()
		c.emit(opcode.Deref)
		c.emit(opcode.Deref)
		return 0
	default:
		return c.parseIncDec()
	}
}

// parseIncDec handles postfix `++`/`--` and postfix `!` (factorial via
// the `fact` builtin). Exactly one postfix ++/-- is accepted per term.
func (c *Compiler) parseIncDec() ExprKind {
	kind := c.parseTerm()
	if c.tok == token.Inc || c.tok == token.Dec {
		if kind.Has(RValue) {
			c.errorAt(noResync, "bad ++/-- usage")
		}
		c.rewriteLastIndexForWrite()
		if c.tok == token.Inc {
			c.emit(opcode.PostInc)
		} else {
			c.emit(opcode.PostDec)
		}
		c.next()
		kind = RValue | Assign
	}
	if c.tok == token.Not {
		c.next()
		if idx, ok := c.builtins.Lookup("fact"); ok {
			c.emit2(opcode.Call, idx, 1)
		} else {
			c.errorAt(noResync, "factorial builtin is not registered")
		}
		kind = RValue
	}
	return kind
}

// parseTerm is the base of the ladder: literals, identifiers,
// parenthesized expression lists, `mat`/`obj` declarators, prefix
// `++`/`--`, and the postfix subscript/field chain that follows a bare
// lvalue term.
func (c *Compiler) parseTerm() ExprKind {
	var kind ExprKind
	switch c.tok {
	case token.Number:
		c.emit1(opcode.Number, c.numbers.intern(c.lit, false))
		c.next()
		kind = RValue | Const
	case token.Imag:
		c.emit1(opcode.Imaginary, c.numbers.intern(c.lit, true))
		c.next()
		kind = RValue | Const
	case token.Period:
		c.next()
		c.emit(opcode.OldValue)
	case token.String:
		c.emit1(opcode.StringConst, c.internString(c.lit))
		c.next()
		kind = RValue
	case token.Inc:
		c.next()
		if c.parseTerm().Has(RValue) {
			c.errorAt(noResync, "bad ++ usage")
		}
		c.rewriteLastIndexForWrite()
		c.emit(opcode.PreInc)
		kind = Assign
	case token.Dec:
		c.next()
		if c.parseTerm().Has(RValue) {
			c.errorAt(noResync, "bad -- usage")
		}
		c.rewriteLastIndexForWrite()
		c.emit(opcode.PreDec)
		kind = Assign
	case token.LParen:
		c.next()
		old := c.setMode(token.DEFAULT)
		kind = c.parseExprList()
		c.expect(token.RParen)
		c.setMode(old)
	case token.Mat:
		c.next()
		c.parseOneMatrix(symtab.Undefined)
		for c.accept(token.Comma) {
			c.emit(opcode.Pop)
			c.parseOneMatrix(symtab.Undefined)
		}
		kind = Assign
	case token.Obj:
		c.next()
		c.parseObjDeclaration(symtab.Undefined)
		kind = Assign
	case token.Ident:
		kind = c.parseIdentExpr(true, false)
	case token.LBrack:
		c.errorAt(noResync, "bad index usage")
	default:
		if c.tok.IsKeyword() {
			c.errorAt(noResync, "expression contains reserved keyword")
			return kind
		}
		c.errorAt(resyncComma, "missing expression")
	}

	if kind != 0 {
		return kind
	}
	for {
		switch c.tok {
		case token.LBrack, token.DoubleLBrack:
			c.parseMatArgs()
		case token.Period:
			c.next()
			c.parseElement()
		case token.LParen:
			c.errorAt(noResync, "function calls not allowed as expressions")
			return kind
		default:
			return kind
		}
	}
}

// parseIdentExpr reads a bare identifier expression: a call if followed
// by `(`, otherwise a symbol reference, followed by any number of
// subscript/field accesses. autodef propagates to the
// auto-define-as-global behavior at the interactive top level; okmat
// false disables subscript chaining, for contexts that parse their own
// trailing matrix indices (declarator contexts).
func (c *Compiler) parseIdentExpr(okmat, autodef bool) ExprKind {
	name := c.lit
	c.next()
	switch c.tok {
	case token.LParen:
		c.next()
		old := c.setMode(token.DEFAULT)
		c.parseCallArgs(name)
		c.setMode(old)
		return 0
	case token.Assign:
		autodef = true
		c.useSymbol(name, autodef)
	default:
		c.useSymbol(name, autodef)
	}
	for {
		switch c.tok {
		case token.LBrack, token.DoubleLBrack:
			if !okmat {
				return 0
			}
			c.parseMatArgs()
		case token.Arrow:
			c.emit(opcode.Deref)
			c.next()
			c.parseElement()
		case token.Period:
			c.next()
			c.parseElement()
		case token.LParen:
			c.errorAt(noResync, "function calls not allowed as expressions")
			return 0
		default:
			return 0
		}
	}
}

// parseMatArgs parses a `[e1, e2,...]` subscript or a `[[e]]` fast
// index, emitting INDEXADDR/FIADDR.
func (c *Compiler) parseMatArgs() {
	if c.accept(token.DoubleLBrack) {
		c.parseOpAssign()
		c.expect(token.DoubleRBrack)
		c.emit(opcode.FiAddr)
		return
	}
	if !c.expect(token.LBrack) {
		return
	}
	dim := 1
	for {
		c.parseOpAssign()
		switch c.tok {
		case token.RBrack:
			c.next()
			c.emit2(opcode.IndexAddr, dim, 0)
			return
		case token.Comma:
			c.next()
			dim++
		default:
			c.errorAt(noResync, "missing right bracket in array reference")
			return
		}
	}
}

// parseElement reads the field name after a consumed `.`/`->` and emits
// ELEMADDR for its interned element index.
func (c *Compiler) parseElement() {
	if c.tok != token.Ident {
		c.errorAt(noResync, "element name expected")
		return
	}
	name := c.lit
	c.next()
	idx, ok := c.elems.Lookup(name)
	if !ok {
		c.errorAt(noResync, "element %q is undefined", name)
		return
	}
	c.emit2(opcode.ElemAddr, idx, 0)
}

// parseCallArgs parses the argument list of a call whose name and
// opening `(` have already been consumed, dispatching CALL for a
// builtin or USERCALL for a user function.
func (c *Compiler) parseCallArgs(name string) {
	op := opcode.Call
	idx, ok := c.builtins.Lookup(name)
	if !ok {
		op = opcode.UserCall
		idx = c.funcs.Define(name)
	}
	if c.accept(token.RParen) {
		c.emit2(op, idx, 0)
		return
	}
	argc := 0
	for {
		argc++
		// A leading backquote passes the argument by reference; a plain
		// `&` here is the ordinary address-of operator and is left for
		// parseReference.
		byRef := c.accept(token.Backquote)
		kind := c.parseAssign()
		if byRef {
			if kind.Has(RValue) {
				c.errorAt(noResync, "variable required for `-marked argument")
			} else {
				c.rewriteLastIndexForWrite()
			}
		}
		switch c.tok {
		case token.RParen:
			c.next()
			c.emit2(op, idx, argc)
			return
		case token.Comma:
			c.next()
		default:
			c.errorAt(noResync, "missing right parenthesis in call")
			return
		}
	}
}

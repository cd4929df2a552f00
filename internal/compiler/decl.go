// The matrix and object declarator parsers: `mat` and `obj`
// declarations, their bound lists, type registration, and the nested
// brace initializer lists both share.
package compiler

import (
	"github.com/stone39035605/calc/internal/opcode"
	"github.com/stone39035605/calc/internal/symtab"
	"github.com/stone39035605/calc/internal/token"
)

// parseOneMatrix parses one `mat name[...]` declarator, or (when kind is
// symtab.Undefined, the `mat` used as a bare expression term) one
// already-existing lvalue followed by a matrix literal to assign into.
// It recurses through a chain of whitespace-separated names sharing one
// set of bounds (`mat a, b[3]` declares both a and b as 1x3 matrices).
func (c *Compiler) parseOneMatrix(kind symtab.Kind) {
	if c.tok == token.Ident {
		name := c.lit
		if kind == symtab.Undefined {
			c.parseIdentExpr(false, true)
		} else {
			c.next()
			c.defineSymbol(name, kind)
			c.useSymbol(name, false)
		}
		for c.accept(token.Comma) {
		}
		c.parseOneMatrix(kind)
		c.emit(opcode.Assign)
		return
	}

	if !c.expect(token.LBrack) {
		return
	}

	if c.accept(token.RBrack) {
		// Omitted bounds: the element count is implied by the
		// initializer list that must follow. Reserve a placeholder
		// constant for MATCREATE's implicit dimension-1 upper bound and
		// back-patch it once the initializer count is known.
		placeholder := c.numbers.reservePlaceholder()
		c.emit1(opcode.Number, placeholder)
		c.emit(opcode.Zero)
		c.emit1(opcode.MatCreate, 1)
		c.emit(opcode.Zero)
		c.emit(opcode.InitFill)
		count := 0
		if c.accept(token.Assign) {
			count = c.parseInitList()
		}
		// The placeholder stands in for the upper bound of an implicit
		// `[0:count-1]`, the same quantity createMatrix's upper-bound-only
		// shorthand computes at runtime via ONE/SUB.
		c.numbers.patch(placeholder, count-1)
		return
	}

	c.createMatrix(1)
	for c.accept(token.Assign) {
		c.parseInitList()
	}
}

// createMatrix parses the explicit-bounds matrix-dimension list that
// follows `mat name[`, having already consumed the opening bracket. Each
// dimension is either `expr` (an upper-bound-only shorthand for `0:expr-1`)
// or `lo:hi`; a `]` immediately followed by another `[` recurses into a
// nested matrix-of-matrices.
func (c *Compiler) createMatrix(dim int) {
	for {
		c.parseOpAssign()
		switch c.tok {
		case token.RBrack, token.Comma:
			c.emit(opcode.One)
			c.emit(opcode.Sub)
			c.emit(opcode.Zero)
		case token.Colon:
			c.next()
			c.parseOpAssign()
		default:
			c.errorAt(resyncSemicolon, "illegal matrix definition")
			return
		}

		switch c.tok {
		case token.RBrack:
			c.next()
			c.emit1(opcode.MatCreate, dim)
			if c.accept(token.LBrack) {
				c.createMatrix(1)
			} else {
				c.emit(opcode.Zero)
			}
			c.emit(opcode.InitFill)
			return
		case token.Comma:
			c.next()
			dim++
			if dim > c.limits.MaxDim {
				c.errorAt(resyncSemicolon, "only %d dimensions allowed", c.limits.MaxDim)
				return
			}
		default:
			c.errorAt(resyncSemicolon, "illegal matrix definition")
			return
		}
	}
}

// parseInitList parses a brace-delimited `{ v, v, ... }` initializer
// list, emitting ELEMINIT for each positional slot (nested `{...}`
// entries recurse into a sub-matrix/sub-object first), and returns the
// number of elements found.
func (c *Compiler) parseInitList() int {
	old := c.setMode(token.DEFAULT)
	defer c.setMode(old)

	if !c.expect(token.LBrace) {
		return -1
	}

	for index := 0; ; index++ {
		switch c.tok {
		case token.Comma, token.Newline:
			c.next()
			continue
		case token.RBrace:
			c.next()
			return index
		case token.LBrace:
			c.emit(opcode.Duplicate)
			c.emit2(opcode.ElemAddr, index, 0)
			c.parseInitList()
		default:
			c.parseOpAssign()
		}
		c.emit1(opcode.ElemInit, index)
		switch c.tok {
		case token.Comma, token.Newline:
			c.next()
			continue
		case token.RBrace:
			c.next()
			return index + 1
		default:
			c.errorAt(resyncSemicolon, "bad initialization list")
			return -1
		}
	}
}

// parseObjDeclaration parses `obj Name { field, ... }` (registering a new
// object type) or `obj Name` (referring to one already registered),
// followed by a variable declarator list.
func (c *Compiler) parseObjDeclaration(kind symtab.Kind) {
	if c.tok != token.Ident {
		c.errorAt(resyncSemicolon, "object type name missing")
		return
	}
	name := c.lit
	c.next()

	if c.tok != token.LBrace {
		c.parseObjVars(name, kind)
		return
	}

	old := c.setMode(token.DEFAULT)
	c.next() // consume '{'
	var fields []int
	for {
		switch c.tok {
		case token.Ident:
			idx := c.internElement(c.lit)
			for _, f := range fields {
				if f == idx {
					c.errorAt(resyncSemicolon, "duplicate element name %q", c.lit)
					c.setMode(old)
					return
				}
			}
			fields = append(fields, idx)
			c.next()
			if c.accept(token.Comma) {
				continue
			}
			if c.tok != token.RBrace {
				c.errorAt(resyncSemicolon, "bad object type definition")
				c.setMode(old)
				return
			}
		case token.RBrace:
			// fallthrough to registration below
		case token.Newline:
			c.next()
			continue
		default:
			c.errorAt(resyncSemicolon, "bad object type definition")
			c.setMode(old)
			return
		}
		break
	}
	c.next() // consume '}'
	c.setMode(old)

	if _, err := c.objs.Define(name, fields); err != nil {
		c.errorAt(noResync, "%s", err)
	}
	c.parseObjVars(name, kind)
}

// parseObjVars declares a comma-separated list of variables of the named
// object type.
func (c *Compiler) parseObjVars(name string, kind symtab.Kind) {
	ot, ok := c.objs.Lookup(name)
	if !ok {
		c.errorAt(resyncSemicolon, "object %q has not been defined yet", name)
		return
	}
	for {
		c.parseOneObj(ot, kind)
		if !c.accept(token.Comma) {
			return
		}
		c.emit(opcode.Pop)
	}
}

// parseOneObj parses one object-typed declarator or lvalue, recursing
// through a chain of whitespace-separated names the way parseOneMatrix
// does.
func (c *Compiler) parseOneObj(ot *symtab.ObjectType, kind symtab.Kind) {
	if c.tok == token.Ident {
		name := c.lit
		if kind == symtab.Undefined {
			c.parseIdentExpr(true, true)
		} else {
			c.next()
			c.defineSymbol(name, kind)
			c.useSymbol(name, false)
		}
		c.parseOneObj(ot, kind)
		c.emit(opcode.Assign)
		return
	}

	c.emit1(opcode.ObjCreate, ot.Index)
	for c.accept(token.Assign) {
		c.parseInitList()
	}
}

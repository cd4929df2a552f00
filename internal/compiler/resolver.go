package compiler

import (
	"github.com/stone39035605/calc/internal/opcode"
	"github.com/stone39035605/calc/internal/symtab"
)

// useSymbol resolves name against the current scopes and emits the
// matching address opcode. The autodef flag is set when a bare name is
// used as an assignment target; an undefined name is then silently
// auto-declared as a global, but only while compiling an interactive
// pseudo-function -- inside a `define`d body the same name is reported
// as undefined.
func (c *Compiler) useSymbol(name string, autodef bool) {
	if c.cur.Kind == Named {
		autodef = false
	}
	kind, idx := c.sym.Classify(name)
	switch kind {
	case symtab.Param:
		c.emit1(opcode.ParamAddr, idx)
	case symtab.Local:
		c.emit1(opcode.LocalAddr, idx)
	case symtab.Global, symtab.Static:
		c.emit1(opcode.GlobalAddr, idx)
	default:
		if autodef {
			idx := c.sym.AddGlobal(name, false)
			c.emit1(opcode.GlobalAddr, idx)
			return
		}
		c.errorAt(noResync, "%q is undefined", name)
		// Auto-declare anyway so later uses of the same broken name in
		// this function don't cascade into one error per occurrence.
		idx := c.sym.AddGlobal(name, false)
		c.emit1(opcode.GlobalAddr, idx)
	}
}

// defineSymbol declares name as local/param/global/static per kind,
// applying the redefinition rules:
//
// - previously undefined or global: define as requested.
// - previously a local, redeclared as a local in the same function:
// reuse the existing slot (a no-op redeclaration).
// - previously a local (redeclared as anything else) or a parameter
// (redeclared as anything at all): "already defined".
// - previously a static, redeclared as global or static: the old
// static's scope ends immediately (EndScope) before the new
// definition takes effect, so it does not reappear when its defining
// file scope exits.
func (c *Compiler) defineSymbol(name string, kind symtab.Kind) (idx int) {
	prevKind, prevIdx := c.sym.Classify(name)
	if prevKind == symtab.Param || (prevKind == symtab.Local && kind != symtab.Local) {
		c.errorAt(noResync, "variable %q is already defined", name)
		return prevIdx
	}
	switch kind {
	case symtab.Param:
		return c.sym.AddParam(name)
	case symtab.Local:
		return c.sym.AddLocal(name)
	case symtab.Static:
		if prevKind == symtab.Static {
			c.sym.EndScope(name)
		}
		return c.sym.AddGlobal(name, true)
	case symtab.Global:
		if prevKind == symtab.Static {
			c.sym.EndScope(name)
		}
		return c.sym.AddGlobal(name, false)
	default:
		return 0
	}
}

// checkRedefinable reports whether name may be declared as a user
// function or global identifier: it must not already name a builtin.
func (c *Compiler) checkRedefinable(name string) bool {
	if c.builtins != nil && c.builtins.IsBuiltin(name) {
		c.errorAt(noResync, "%q is a builtin function and cannot be redefined", name)
		return false
	}
	return true
}

// internElement returns the interned field-name index for name, shared
// across every object type.
func (c *Compiler) internElement(name string) int { return c.elems.Intern(name) }

// internString returns the constant-table index for s, emitting no code
// itself; callers follow with emit1(opcode.StringConst, idx).
func (c *Compiler) internString(s string) int { return c.strs.Intern(s) }

package compiler

import (
	"github.com/stone39035605/calc/internal/lexer"
	"github.com/stone39035605/calc/internal/value"
)

// numberPool interns NUMBER/IMAGINARY constants. Kept on the Compiler rather than in internal/symtab
// because it stores runtime value.Value, and symtab must not import
// value (value already imports symtab for ObjectType).
type numberPool struct {
	byLit map[string]int
	vals []value.Value
}

func newNumberPool() *numberPool {
	return &numberPool{byLit: make(map[string]int)}
}

func (p *numberPool) intern(lit string, imaginary bool) int {
	key := lit
	if imaginary {
		key += "i"
	}
	if idx, ok := p.byLit[key]; ok {
		return idx
	}
	isInt, i, f, err := lexer.ParseNumber(lit)
	var n *value.Number
	switch {
	case err != nil:
		n = value.NewInt(0)
	case isInt:
		n = value.NewInt(i)
	default:
		n = value.NewFloat(f)
	}
	var v value.Value = n
	if imaginary {
		v = value.NewImaginary(n.Re)
	}
	idx := len(p.vals)
	p.byLit[key] = idx
	p.vals = append(p.vals, v)
	return idx
}

// reservePlaceholder appends a dummy constant (value.NewInt(-1)) and
// returns its index, used for the omitted-bound matrix declarator's
// back-patched element count.
func (p *numberPool) reservePlaceholder() int {
	idx := len(p.vals)
	p.vals = append(p.vals, value.NewInt(-1))
	return idx
}

// Values returns the interned constant pool in index order, for handing
// to the VM alongside the compiled functions.
func (p *numberPool) Values() []value.Value { return append([]value.Value{}, p.vals...) }

// patch overwrites an already-interned constant's value in place, used
// to back-patch the placeholder count of an omitted-bound matrix
// declarator.
func (p *numberPool) patch(idx int, n int) {
	p.vals[idx] = value.NewInt(int64(n))
}

package compiler

import "github.com/stone39035605/calc/internal/opcode"

// Emitter appends opcodes and their immediate operands to the function
// currently under construction. It is a thin wrapper around
// Function.Code; the compiler embeds it so every parser method can call
// c.emit(...) directly.

// emit appends a bare opcode with no operands and returns its offset.
func (c *Compiler) emit(op opcode.Opcode) int {
	return c.emitWith(op)
}

// emit1 appends an opcode with one immediate operand.
func (c *Compiler) emit1(op opcode.Opcode, imm int) int {
	return c.emitWith(op, imm)
}

// emit2 appends an opcode with two immediate operands.
func (c *Compiler) emit2(op opcode.Opcode, imm1, imm2 int) int {
	return c.emitWith(op, imm1, imm2)
}

// emitWith appends an opcode with an arbitrary operand list. It also
// maintains the "last index/element site" used by
// rewriteLastIndexForWrite: emitting INDEXADDR or ELEMADDR marks
// this instruction as the rewrite target; emitting anything else clears
// it, since only the immediately-preceding subscript/field access can be
// retroactively turned into an lvalue.
func (c *Compiler) emitWith(op opcode.Opcode, operands...int) int {
	pos := c.cur.CurrentOffset()
	c.cur.Code = append(c.cur.Code, opcode.Make(op, operands...)...)
	switch op {
	case opcode.IndexAddr, opcode.ElemAddr:
		c.noteIndexOrElem(pos)
	default:
		c.clearIndexOrElem()
	}
	return pos
}

// currentOffset returns the offset the next emitted instruction will
// occupy.
func (c *Compiler) currentOffset() int { return c.cur.CurrentOffset() }

// operandOffset returns the byte offset of the first operand of the
// instruction emitted at pos (i.e. pos+1).
func operandOffset(pos int) int { return pos + 1 }

// readOperand decodes the operand of width bytes at the given code
// offset, sign-extended: an undefined label's chain links store noChain
// (-1) in the slot, and a plain unsigned decode would turn that back
// into a huge positive offset.
func readOperand(code []byte, at, width int) int {
	v := 0
	for i := 0; i < width; i++ {
		v = v<<8 | int(code[at+i])
	}
	if v&(1<<(width*8-1)) != 0 {
		v -= 1 << (width * 8)
	}
	return v
}

// writeOperand overwrites the operand of width bytes at the given code
// offset with v.
func writeOperand(code []byte, at, width, v int) {
	for i := width - 1; i >= 0; i-- {
		code[at+i] = byte(v)
		v >>= 8
	}
}

// changeOperand overwrites the first operand of the instruction at pos.
func (c *Compiler) changeOperand(pos int, v int) {
	op := c.cur.Code[pos]
	widths := opcode.OperandWidths(op)
	writeOperand(c.cur.Code, operandOffset(pos), widths[0], v)
}

// lastIndexOrElem remembers the offset of the most recently emitted
// INDEXADDR/ELEMADDR instruction, so a later token (an assignment
// operator, `++`/`--`, or `&`) can retroactively flip its write-flag.
type lastIndexOrElem struct {
	pos int
	valid bool
}

// rewriteLastIndexForWrite flips the write-flag immediate of the most
// recently emitted INDEXADDR or ELEMADDR instruction to true. A no-op if
// the last emission was not one of those opcodes (the expression is not
// index/field-based, e.g. a bare identifier lvalue).
func (c *Compiler) rewriteLastIndexForWrite() {
	if !c.lastIdx.valid {
		return
	}
	pos := c.lastIdx.pos
	op := c.cur.Code[pos]
	widths := opcode.OperandWidths(op)
	// write-flag is always the last operand.
	flagWidth := widths[len(widths)-1]
	flagOffset := operandOffset(pos)
	for _, w := range widths[:len(widths)-1] {
		flagOffset += w
	}
	writeOperand(c.cur.Code, flagOffset, flagWidth, 1)
}

// noteIndexOrElem records pos as the most recent INDEXADDR/ELEMADDR
// emission site. Called immediately after emitting one of those opcodes.
func (c *Compiler) noteIndexOrElem(pos int) {
	c.lastIdx = lastIndexOrElem{pos: pos, valid: true}
}

// clearIndexOrElem invalidates the write-flag rewrite target, called once
// any other opcode is emitted on top so a later rewrite request can't
// reach past it by accident.
func (c *Compiler) clearIndexOrElem() {
	c.lastIdx = lastIndexOrElem{}
}

package opcode

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestMakeReadOperandsRoundTrip(t *testing.T) {
	cases := []struct {
		op Opcode
		operands []int
	}{
		{Jump, []int{65535}},
		{IndexAddr, []int{2, 1}},
		{Number, []int{7}},
		{Pop, nil},
	}
	for _, c := range cases {
		inst := Make(c.op, c.operands...)
		require.Equal(t, c.op, inst[0])
		got, n := ReadOperands(c.op, inst[1:])
		require.Equal(t, len(inst)-1, n)
		want := c.operands
		if want == nil {
			want = make([]int, len(operandWidths[c.op]))
		}
		require.Equal(t, want, got)
	}
}

func TestFormatInstructions(t *testing.T) {
	code := append(Make(Zero), Make(Jump, 10)...)
	lines := FormatInstructions(code, 0)
	require.Len(t, lines, 2)
	require.Contains(t, lines[0], "ZERO")
	require.Contains(t, lines[1], "JUMP")
	require.Contains(t, lines[1], "10")
}

func TestInstructionLenMatchesOperandWidths(t *testing.T) {
	for op := range operandWidths {
		width := 1
		for _, w := range operandWidths[Opcode(op)] {
			width += w
		}
		require.Equal(t, width, InstructionLen(Opcode(op)), "opcode %s", Name(Opcode(op)))
	}
}

package value

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/stone39035605/calc/internal/opcode"
	"github.com/stone39035605/calc/internal/symtab"
)

func TestNumberTruthy(t *testing.T) {
	require.False(t, NewInt(0).Truthy())
	require.True(t, NewInt(1).Truthy())
	require.False(t, Undef.Truthy())
}

func TestNumberString(t *testing.T) {
	require.Equal(t, "5", NewInt(5).String())
	require.Equal(t, "-3", NewInt(-3).String())
}

func TestMatIndexBoundsAndOffset(t *testing.T) {
	m := NewMat([]Dim{{Lo: 1, Hi: 3}})
	require.Equal(t, 0, m.Index([]int{1}))
	require.Equal(t, 2, m.Index([]int{3}))
	require.Equal(t, -1, m.Index([]int{4}))
	require.Equal(t, -1, m.Index([]int{0}))
	require.Equal(t, 3, m.Size())
}

func TestMatTwoDimensionalOffset(t *testing.T) {
	m := NewMat([]Dim{{Lo: 0, Hi: 1}, {Lo: 0, Hi: 2}})
	require.Equal(t, 0, m.Index([]int{0, 0}))
	require.Equal(t, 2, m.Index([]int{0, 2}))
	require.Equal(t, 3, m.Index([]int{1, 0}))
	require.Equal(t, 5, m.Index([]int{1, 2}))
}

func TestNewMatFillsUndef(t *testing.T) {
	m := NewMat([]Dim{{Lo: 1, Hi: 2}})
	for _, v := range m.Data {
		require.True(t, IsUndef(v))
	}
}

func TestObjFieldIndexAndNewObj(t *testing.T) {
	e := symtab.NewElements()
	fx, fy := e.Intern("x"), e.Intern("y")
	objs := symtab.NewObjects()
	ot, err := objs.Define("point", []int{fx, fy})
	require.NoError(t, err)

	o := NewObj(ot)
	require.Len(t, o.Values, 2)
	require.Equal(t, 0, o.FieldIndex(fx))
	require.Equal(t, 1, o.FieldIndex(fy))
	require.Equal(t, "point", o.TypeName())
}

func TestBinaryOpArithmetic(t *testing.T) {
	sum, err := BinaryOp(opcode.Add, NewInt(2), NewInt(3))
	require.NoError(t, err)
	require.Equal(t, "5", sum.String())

	diff, err := BinaryOp(opcode.Sub, NewInt(5), NewInt(2))
	require.NoError(t, err)
	require.Equal(t, "3", diff.String())

	prod, err := BinaryOp(opcode.Mul, NewInt(4), NewInt(3))
	require.NoError(t, err)
	require.Equal(t, "12", prod.String())
}

func TestBinaryOpStringConcatenationViaAdd(t *testing.T) {
	got, err := BinaryOp(opcode.Add, Str("ab"), Str("cd"))
	require.NoError(t, err)
	require.Equal(t, Str("abcd"), got)
}

func TestBinaryOpDivisionByZero(t *testing.T) {
	_, err := BinaryOp(opcode.Div, NewInt(1), NewInt(0))
	require.Error(t, err)
	_, err = BinaryOp(opcode.Quo, NewInt(1), NewInt(0))
	require.Error(t, err)
	_, err = BinaryOp(opcode.Mod, NewInt(1), NewInt(0))
	require.Error(t, err)
}

func TestBinaryOpComparisons(t *testing.T) {
	lt, err := BinaryOp(opcode.Lt, NewInt(1), NewInt(2))
	require.NoError(t, err)
	require.True(t, lt.Truthy())

	eq, err := BinaryOp(opcode.Eq, NewInt(2), NewInt(2))
	require.NoError(t, err)
	require.True(t, eq.Truthy())

	ne, err := BinaryOp(opcode.Ne, Str("a"), Str("b"))
	require.NoError(t, err)
	require.True(t, ne.Truthy())
}

func TestBinaryOpPowerIntegerFastPath(t *testing.T) {
	got, err := BinaryOp(opcode.Power, NewInt(2), NewInt(10))
	require.NoError(t, err)
	require.Equal(t, "1024", got.String())
}

func TestBinaryOpBitwise(t *testing.T) {
	got, err := BinaryOp(opcode.And, NewInt(6), NewInt(3))
	require.NoError(t, err)
	require.Equal(t, "2", got.String())

	got, err = BinaryOp(opcode.Or, NewInt(6), NewInt(1))
	require.NoError(t, err)
	require.Equal(t, "7", got.String())

	got, err = BinaryOp(opcode.LeftShift, NewInt(1), NewInt(4))
	require.NoError(t, err)
	require.Equal(t, "16", got.String())
}

func TestBinaryOpInvalidOperandsError(t *testing.T) {
	_, err := BinaryOp(opcode.Add, NewInt(1), Str("x"))
	require.Error(t, err, "string concatenation via + only applies when the left operand is a Str")
}

func TestUnaryOpNotAndNegate(t *testing.T) {
	got, err := UnaryOp(opcode.Not, NewInt(0))
	require.NoError(t, err)
	require.True(t, got.Truthy())

	got, err = UnaryOp(opcode.Negate, NewInt(5))
	require.NoError(t, err)
	require.Equal(t, "-5", got.String())
}

func TestUnaryOpContentOnMatAndString(t *testing.T) {
	m := NewMat([]Dim{{Lo: 1, Hi: 5}})
	got, err := UnaryOp(opcode.Content, m)
	require.NoError(t, err)
	require.Equal(t, "5", got.String())

	got, err = UnaryOp(opcode.Content, Str("hello"))
	require.NoError(t, err)
	require.Equal(t, "5", got.String())
}

func TestUnaryOpInvertZeroErrors(t *testing.T) {
	_, err := UnaryOp(opcode.Invert, NewInt(0))
	require.Error(t, err)
}

package builtins

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/stone39035605/calc/internal/value"
)

func TestNamesMatchTableOrder(t *testing.T) {
	names := Names()
	require.Equal(t, len(Table), len(names))
	for i, b := range Table {
		require.Equal(t, b.Name, names[i])
	}
}

func TestLookupByIndex(t *testing.T) {
	fn, ok := Lookup(0)
	require.True(t, ok)
	require.NotNil(t, fn)

	_, ok = Lookup(len(Table))
	require.False(t, ok)
	_, ok = Lookup(-1)
	require.False(t, ok)
}

func TestBuiltinFact(t *testing.T) {
	got, err := builtinFact([]value.Value{value.NewInt(5)})
	require.NoError(t, err)
	require.Equal(t, "120", got.String())

	got, err = builtinFact([]value.Value{value.NewInt(0)})
	require.NoError(t, err)
	require.Equal(t, "1", got.String())

	_, err = builtinFact([]value.Value{value.NewInt(-1)})
	require.Error(t, err)
}

func TestBuiltinSizeAcrossTypes(t *testing.T) {
	m := value.NewMat([]value.Dim{{Lo: 1, Hi: 3}})
	got, err := builtinSize([]value.Value{m})
	require.NoError(t, err)
	require.Equal(t, "3", got.String())

	got, err = builtinSize([]value.Value{value.Str("hello")})
	require.NoError(t, err)
	require.Equal(t, "5", got.String())

	got, err = builtinSize([]value.Value{value.NewInt(7)})
	require.NoError(t, err)
	require.Equal(t, "1", got.String())
}

func TestBuiltinAbsAndSqrt(t *testing.T) {
	got, err := builtinAbs([]value.Value{value.NewInt(-4)})
	require.NoError(t, err)
	require.Equal(t, "4", got.String())

	got, err = builtinSqrt([]value.Value{value.NewInt(9)})
	require.NoError(t, err)
	require.InDelta(t, 3.0, mustFloat(t, got), 1e-9)

	_, err = builtinSqrt([]value.Value{value.NewInt(-1)})
	require.Error(t, err)
}

func mustFloat(t *testing.T, v value.Value) float64 {
	t.Helper()
	n, ok := v.(*value.Number)
	require.True(t, ok)
	f, _ := n.Re.Float64()
	return f
}

func TestBuiltinIsDefined(t *testing.T) {
	got, err := builtinIsDefined([]value.Value{value.Undef})
	require.NoError(t, err)
	require.False(t, got.Truthy())

	got, err = builtinIsDefined([]value.Value{value.NewInt(0)})
	require.NoError(t, err)
	require.True(t, got.Truthy())
}

func TestBuiltinStrAndNum(t *testing.T) {
	got, err := builtinStr([]value.Value{value.NewInt(42)})
	require.NoError(t, err)
	require.Equal(t, value.Str("42"), got)

	got, err = builtinNum([]value.Value{value.Str("3.5")})
	require.NoError(t, err)
	require.Equal(t, "3.5", got.String())

	_, err = builtinNum([]value.Value{value.Str("not a number")})
	require.Error(t, err)
}

func TestBuiltinUpperLower(t *testing.T) {
	got, err := builtinUpper([]value.Value{value.Str("hello")})
	require.NoError(t, err)
	require.Equal(t, value.Str("HELLO"), got)

	got, err = builtinLower([]value.Value{value.Str("HELLO")})
	require.NoError(t, err)
	require.Equal(t, value.Str("hello"), got)
}

func TestBuiltinStrWidth(t *testing.T) {
	got, err := builtinStrWidth([]value.Value{value.Str("ab")})
	require.NoError(t, err)
	require.Equal(t, "2", got.String())
}

func TestBuiltinUUIDProducesDistinctValues(t *testing.T) {
	a, err := builtinUUID(nil)
	require.NoError(t, err)
	b, err := builtinUUID(nil)
	require.NoError(t, err)
	require.NotEqual(t, a, b)
	require.Len(t, string(a.(value.Str)), 36)
}

func TestBuiltinJSONEncodeDecodeRoundTrip(t *testing.T) {
	encoded, err := builtinJSONEncode([]value.Value{value.NewInt(7)})
	require.NoError(t, err)

	decoded, err := builtinJSONDecode([]value.Value{encoded})
	require.NoError(t, err)
	require.Equal(t, "7", decoded.String())
}

func TestBuiltinJSONEncodeMatrix(t *testing.T) {
	m := &value.Mat{Dims: []value.Dim{{Lo: 0, Hi: 1}}, Data: []value.Value{value.NewInt(1), value.NewInt(2)}}
	encoded, err := builtinJSONEncode([]value.Value{m})
	require.NoError(t, err)
	require.Equal(t, value.Str("[1,2]"), encoded)
}

func TestBuiltinConfigGetAndSet(t *testing.T) {
	orig := ActiveConfig
	defer func() { ActiveConfig = orig }()
	ActiveConfig = ActiveConfig.Clone()

	got, err := builtinConfig([]value.Value{value.Str("allow_read")})
	require.NoError(t, err)
	require.Equal(t, "1", got.String())

	old, err := builtinConfig([]value.Value{value.Str("allow_read"), value.NewInt(0)})
	require.NoError(t, err)
	require.Equal(t, "1", old.String())

	got, err = builtinConfig([]value.Value{value.Str("allow_read")})
	require.NoError(t, err)
	require.Equal(t, "0", got.String())
}

func TestBuiltinConfigWrongArgCount(t *testing.T) {
	_, err := builtinConfig(nil)
	require.Error(t, err)
}

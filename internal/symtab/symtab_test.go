package symtab

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestClassifyOrderParamLocalGlobal(t *testing.T) {
	tab := New()
	tab.AddGlobal("g", false)
	tab.AddParam("p")
	tab.AddLocal("l")

	kind, _ := tab.Classify("g")
	require.Equal(t, Global, kind)
	kind, idx := tab.Classify("p")
	require.Equal(t, Param, kind)
	require.Equal(t, 0, idx)
	kind, idx = tab.Classify("l")
	require.Equal(t, Local, kind)
	require.Equal(t, 0, idx)

	kind, _ = tab.Classify("nope")
	require.Equal(t, Undefined, kind)
}

func TestAddLocalRedeclareReturnsSameSlot(t *testing.T) {
	tab := New()
	a := tab.AddLocal("x")
	b := tab.AddLocal("x")
	require.Equal(t, a, b)
	require.Equal(t, 1, tab.LocalCount())
}

func TestStaticScopedToFileFrame(t *testing.T) {
	tab := New()
	tab.EnterFileScope()
	tab.AddGlobal("s", true)
	kind, _ := tab.Classify("s")
	require.Equal(t, Static, kind)
	tab.ExitFileScope()

	kind, _ = tab.Classify("s")
	require.Equal(t, Undefined, kind, "static should not be visible once its file scope exits")
}

func TestStaticRedefinedAsGlobalEndsOldScope(t *testing.T) {
	tab := New()
	tab.EnterFileScope()
	tab.AddGlobal("s", true)
	tab.EndScope("s")
	tab.AddGlobal("s", false)
	tab.ExitFileScope()

	kind, _ := tab.Classify("s")
	require.Equal(t, Global, kind, "promoting a static to global must survive its origin file scope exiting")
}

func TestElementsInternOncePerName(t *testing.T) {
	e := NewElements()
	a := e.Intern("x")
	b := e.Intern("x")
	c := e.Intern("y")
	require.Equal(t, a, b)
	require.NotEqual(t, a, c)

	idx, ok := e.Lookup("x")
	require.True(t, ok)
	require.Equal(t, a, idx)
	require.Equal(t, "x", e.Name(a))
}

func TestObjectsDefineAndLookup(t *testing.T) {
	e := NewElements()
	objs := NewObjects()
	fx, fy := e.Intern("x"), e.Intern("y")

	ot, err := objs.Define("point", []int{fx, fy})
	require.NoError(t, err)
	require.Equal(t, 0, ot.FieldPosition(fx))
	require.Equal(t, 1, ot.FieldPosition(fy))

	_, err = objs.Define("point", []int{fx})
	require.Error(t, err, "redefining an existing object type must fail")

	got, ok := objs.Lookup("point")
	require.True(t, ok)
	require.Equal(t, ot, got)
}

func TestFunctionsDefineLookupUndefine(t *testing.T) {
	f := NewFunctions()
	idx := f.Define("fact")
	got, ok := f.Lookup("fact")
	require.True(t, ok)
	require.Equal(t, idx, got)

	require.True(t, f.Undefine("fact"))
	require.False(t, f.Undefine("fact"), "a second undefine of the same name is a no-op")

	_, ok = f.Lookup("fact")
	require.False(t, ok)
}

func TestBuiltinsLookup(t *testing.T) {
	b := NewBuiltins([]string{"size", "abs"})
	idx, ok := b.Lookup("abs")
	require.True(t, ok)
	require.Equal(t, 1, idx)
	require.True(t, b.IsBuiltin("size"))
	require.False(t, b.IsBuiltin("nope"))
}

func TestStringsInternReusesIndex(t *testing.T) {
	s := NewStrings()
	a := s.Intern("hi")
	b := s.Intern("hi")
	require.Equal(t, a, b)
	require.Equal(t, "hi", s.Value(a))
}

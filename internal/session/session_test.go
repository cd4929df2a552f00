package session

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/stone39035605/calc/internal/vm"
)

// feed runs src through a fresh Session and returns everything written to
// its output plus any compilation error, the harness every end-to-end
// scenario below is checked against.
func feed(t *testing.T, src string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	s := New(&out, nil)
	err := s.Feed("(test)", []byte(src))
	return out.String(), err
}

func TestDefaultParameterScenario(t *testing.T) {
	out, err := feed(t, `define f(x, y=3) = x+y; print f(2); print f(2,7)`)
	require.NoError(t, err)
	require.Equal(t, "5\n12\n", out)
}

func TestForLoopAccumulatorScenario(t *testing.T) {
	out, err := feed(t, `define g(n) {local i, s=0; for (i=1; i<=n; i++) s+=i; return s;} print g(10)`)
	require.NoError(t, err)
	require.Equal(t, "55\n", out)
}

func TestSwitchCaseDefaultScenario(t *testing.T) {
	out, err := feed(t, `define h(n) {switch (n) { case 1: return "a"; case 2: return "b"; default: return "z"; }} print h(2), h(5)`)
	require.NoError(t, err)
	require.Equal(t, "b z\n", out)
}

func TestObjectFieldAccessScenario(t *testing.T) {
	out, err := feed(t, `obj point {x, y}; obj point p = {3, 4}; print p.x + p.y`)
	require.NoError(t, err)
	require.Equal(t, "7\n", out)
}

func TestMatrixSizeAndIndexScenario(t *testing.T) {
	out, err := feed(t, `mat a[] = {10, 20, 30}; print size(a), a[1]`)
	require.NoError(t, err)
	require.Equal(t, "3 20\n", out)
}

func TestRecursiveFunctionScenario(t *testing.T) {
	out, err := feed(t, `define r(n) = n<=0 ? 0 : n + r(n-1); print r(5)`)
	require.NoError(t, err)
	require.Equal(t, "15\n", out)
}

func TestRedefiningAFunctionReplacesIt(t *testing.T) {
	var out bytes.Buffer
	s := New(&out, nil)
	require.NoError(t, s.Feed("(a)", []byte(`define f() = 1`)))
	require.NoError(t, s.Feed("(b)", []byte(`define f() = 1`)))
	out.Reset()
	require.NoError(t, s.Feed("(c)", []byte(`print f()`)))
	require.Equal(t, "1\n", out.String())
}

func TestUndefineStarTwiceIsNoop(t *testing.T) {
	var out bytes.Buffer
	s := New(&out, nil)
	require.NoError(t, s.Feed("(a)", []byte(`define f() = 1`)))
	require.NoError(t, s.Feed("(b)", []byte(`undefine *`)))
	require.NoError(t, s.Feed("(c)", []byte(`undefine *`)))
}

func TestUndefinedSymbolWithoutAutodefErrors(t *testing.T) {
	out, err := feed(t, `define f() = neverdefined + 1`)
	_ = out
	require.Error(t, err)
}

func TestShortCircuitAndSkipsRightOperand(t *testing.T) {
	out, err := feed(t, `define sideeffect() { global hit = 1; return 1; } global hit = 0; print 0 && sideeffect(); print hit`)
	require.NoError(t, err)
	lines := strings.Split(strings.TrimRight(out, "\n"), "\n")
	require.Equal(t, []string{"0", "0"}, lines, "right operand of && must not evaluate once the left is falsy")
}

func TestWhileLoopScenario(t *testing.T) {
	out, err := feed(t, `global n = 0; while (n < 3) n += 1; print n`)
	require.NoError(t, err)
	require.Equal(t, "3\n", out)
}

func TestInteractiveLocalsInBlockStatement(t *testing.T) {
	out, err := feed(t, `{local i, s = 0; for (i = 1; i <= 4; i++) s += i; print s}`)
	require.NoError(t, err)
	require.Equal(t, "10\n", out)
}

func TestCompoundAssignmentChainReusesAddress(t *testing.T) {
	out, err := feed(t, `global a = 1; a += 2 += 3; print a`)
	require.NoError(t, err)
	require.Equal(t, "6\n", out)
}

func TestGotoLoopScenario(t *testing.T) {
	out, err := feed(t, `define f() { local i = 0; again: i += 1; if (i < 3) goto again; return i; } print f()`)
	require.NoError(t, err)
	require.Equal(t, "3\n", out)
}

func TestSwitchCaseFallthrough(t *testing.T) {
	out, err := feed(t, `define h(n) { switch (n) { case 1: case 2: return "ab"; } return "no"; } print h(1), h(2), h(3)`)
	require.NoError(t, err)
	require.Equal(t, "ab ab no\n", out)
}

func TestQuitStopsTheFeed(t *testing.T) {
	var out bytes.Buffer
	s := New(&out, nil)
	err := s.Feed("(test)", []byte("quit\nprint 1\n"))
	var quit *vm.QuitError
	require.ErrorAs(t, err, &quit)
	require.NotContains(t, out.String(), "1", "statements after quit must not run")
}

func TestReadDisabledIsRefused(t *testing.T) {
	var out bytes.Buffer
	s := New(&out, nil)
	s.Config().AllowRead = false
	err := s.Feed("(test)", []byte(`read "whatever.cal"`))
	require.Error(t, err)
}

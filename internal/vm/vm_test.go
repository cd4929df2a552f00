package vm

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/stone39035605/calc/internal/compiler"
	"github.com/stone39035605/calc/internal/opcode"
	"github.com/stone39035605/calc/internal/symtab"
	"github.com/stone39035605/calc/internal/value"
)

func newTestVM(out *bytes.Buffer) *VM {
	return New(symtab.NewObjects(), symtab.NewStrings(), out, nil)
}

func TestRunSimpleArithmeticAndPrint(t *testing.T) {
	var out bytes.Buffer
	m := newTestVM(&out)

	code := append([]byte{}, opcode.Make(opcode.One)...)
	code = append(code, opcode.Make(opcode.Number, 0)...)
	code = append(code, opcode.Make(opcode.Add)...)
	code = append(code, opcode.Make(opcode.PrintResult)...)

	fn := &compiler.Function{Name: "*", Code: code, Numbers: []value.Value{value.NewInt(5)}}
	require.NoError(t, m.Run(fn))
	require.Equal(t, "6\n", out.String())
}

func TestRunJumpZSkipsBranch(t *testing.T) {
	var out bytes.Buffer

	// ZERO; JUMPZ skip; PRINTSTRING "no"; skip: PRINTSTRING "yes"
	var code []byte
	code = append(code, opcode.Make(opcode.Zero)...)
	jumpAt := len(code)
	code = append(code, opcode.Make(opcode.JumpZ, 0)...) // patched below
	noAt := len(code)
	code = append(code, opcode.Make(opcode.PrintString, 0)...)
	skipAt := len(code)
	code = append(code, opcode.Make(opcode.PrintString, 1)...)
	_ = noAt

	// patch JUMPZ's operand to skipAt
	patched := opcode.Make(opcode.JumpZ, skipAt)
	copy(code[jumpAt:jumpAt+len(patched)], patched)

	strs := symtab.NewStrings()
	strs.Intern("no")
	strs.Intern("yes")
	m2 := New(symtab.NewObjects(), strs, &out, nil)

	fn := &compiler.Function{Name: "*", Code: code}
	require.NoError(t, m2.Run(fn))
	require.Equal(t, "yes", out.String())
}

func TestRunUserCallWithDefaultParameter(t *testing.T) {
	var out bytes.Buffer
	m := newTestVM(&out)

	// f(x, y): PARAMADDR 1; JUMPNN have; NUMBER(0)=3; ASSIGNPOP; have: PARAMADDR 0; PARAMADDR 1; ADD; RETURN
	var fcode []byte
	fcode = append(fcode, opcode.Make(opcode.ParamAddr, 1)...)
	jnnAt := len(fcode)
	fcode = append(fcode, opcode.Make(opcode.JumpNN, 0)...)
	fcode = append(fcode, opcode.Make(opcode.Number, 0)...)
	fcode = append(fcode, opcode.Make(opcode.AssignPop)...)
	haveAt := len(fcode)
	fcode = append(fcode, opcode.Make(opcode.ParamAddr, 0)...)
	fcode = append(fcode, opcode.Make(opcode.ParamAddr, 1)...)
	fcode = append(fcode, opcode.Make(opcode.GetValue)...)
	fcode = append(fcode, opcode.Make(opcode.Add)...)
	fcode = append(fcode, opcode.Make(opcode.Return)...)

	patched := opcode.Make(opcode.JumpNN, haveAt)
	copy(fcode[jnnAt:jnnAt+len(patched)], patched)

	f := &compiler.Function{Name: "f", Code: fcode, NumParams: 2, Numbers: []value.Value{value.NewInt(3)}}
	m.Define(0, f)

	// *(): USERCALL(0, argc=1) with one NUMBER(0)=2 pushed; PRINTRESULT
	var topCode []byte
	topCode = append(topCode, opcode.Make(opcode.Number, 0)...)
	topCode = append(topCode, opcode.Make(opcode.UserCall, 0, 1)...)
	topCode = append(topCode, opcode.Make(opcode.PrintResult)...)

	top := &compiler.Function{Name: "*", Code: topCode, Numbers: []value.Value{value.NewInt(2)}}
	require.NoError(t, m.Run(top))
	require.Equal(t, "5\n", out.String())
}

func TestRunGlobalAssignPersistsAcrossRuns(t *testing.T) {
	var out bytes.Buffer
	m := newTestVM(&out)

	assignCode := append([]byte{}, opcode.Make(opcode.GlobalAddr, 0)...)
	assignCode = append(assignCode, opcode.Make(opcode.Number, 0)...)
	assignCode = append(assignCode, opcode.Make(opcode.AssignPop)...)

	require.NoError(t, m.Run(&compiler.Function{Name: "*", Code: assignCode, Numbers: []value.Value{value.NewInt(42)}}))
	require.Equal(t, "42", m.Global(0).String())

	readCode := append([]byte{}, opcode.Make(opcode.GlobalAddr, 0)...)
	readCode = append(readCode, opcode.Make(opcode.GetValue)...)
	readCode = append(readCode, opcode.Make(opcode.PrintResult)...)
	require.NoError(t, m.Run(&compiler.Function{Name: "*", Code: readCode}))
	require.Equal(t, "42\n", out.String())
}

func TestQuitAndAbortErrors(t *testing.T) {
	var out bytes.Buffer
	m := newTestVM(&out)

	quitCode := opcode.Make(opcode.Quit, -1)
	err := m.Run(&compiler.Function{Name: "*", Code: quitCode})
	require.Error(t, err)
	var qe *QuitError
	require.ErrorAs(t, err, &qe)

	abortCode := opcode.Make(opcode.Abort, -1)
	err = m.Run(&compiler.Function{Name: "*", Code: abortCode})
	require.Error(t, err)
	var ae *AbortError
	require.ErrorAs(t, err, &ae)
}

func TestAssignLeavesTheAddressOnTheStack(t *testing.T) {
	var out bytes.Buffer
	m := newTestVM(&out)

	// GLOBALADDR 0; NUMBER(0)=7; ASSIGN; PRINTRESULT -- the print must
	// read 7 through the address ASSIGN left behind.
	code := append([]byte{}, opcode.Make(opcode.GlobalAddr, 0)...)
	code = append(code, opcode.Make(opcode.Number, 0)...)
	code = append(code, opcode.Make(opcode.Assign)...)
	code = append(code, opcode.Make(opcode.PrintResult)...)

	fn := &compiler.Function{Name: "*", Code: code, Numbers: []value.Value{value.NewInt(7)}}
	require.NoError(t, m.Run(fn))
	require.Equal(t, "7\n", out.String())
	require.Equal(t, "7", m.Global(0).String())
}

func TestEntryFunctionReservesLocalSlots(t *testing.T) {
	var out bytes.Buffer
	m := newTestVM(&out)

	// With one local declared, a temporary pushed before the first
	// LOCALADDR must not collide with the local's slot.
	code := append([]byte{}, opcode.Make(opcode.Number, 0)...) // temporary
	code = append(code, opcode.Make(opcode.LocalAddr, 0)...)
	code = append(code, opcode.Make(opcode.Number, 1)...)
	code = append(code, opcode.Make(opcode.AssignPop)...)
	code = append(code, opcode.Make(opcode.Pop)...) // drop the temporary
	code = append(code, opcode.Make(opcode.LocalAddr, 0)...)
	code = append(code, opcode.Make(opcode.PrintResult)...)

	fn := &compiler.Function{
		Name: "*", Code: code, NumLocals: 1,
		Numbers: []value.Value{value.NewInt(111), value.NewInt(9)},
	}
	require.NoError(t, m.Run(fn))
	require.Equal(t, "9\n", out.String())
}

func TestDivisionByZeroPropagatesAsError(t *testing.T) {
	var out bytes.Buffer
	m := newTestVM(&out)

	code := append([]byte{}, opcode.Make(opcode.One)...)
	code = append(code, opcode.Make(opcode.Zero)...)
	code = append(code, opcode.Make(opcode.Div)...)

	err := m.Run(&compiler.Function{Name: "*", Code: code})
	require.Error(t, err)
}

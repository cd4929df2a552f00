// Package builtins implements the builtin-function table the compiler's
// CALL opcode dispatches into: a flat, ordered list of Name/Func pairs
// whose index is the CALL operand. The compiler core only needs the name
// list (so `define` can refuse to shadow one, symtab.Builtins); this
// package additionally carries the Go implementation each name runs,
// consulted by the VM at CALL time.
package builtins

import (
	"fmt"
	"math"
	"math/big"

	"github.com/go-faster/jx"
	"github.com/google/uuid"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
	"golang.org/x/text/width"

	"github.com/stone39035605/calc/internal/config"
	"github.com/stone39035605/calc/internal/value"
)

// Func is the Go implementation behind one builtin name. Arguments have
// already been dereferenced by the VM.
type Func func(args []value.Value) (value.Value, error)

// Builtin pairs a name with its implementation.
type Builtin struct {
	Name string
	Func Func
}

// Table is the ordered builtin list; its index is the CALL opcode's
// builtin_idx operand, matching the order symtab.NewBuiltins(Names)
// assigns at compiler construction. The host wiring both sides is
// responsible for keeping the two tables in lockstep.
var Table = []Builtin{
	{Name: "fact", Func: builtinFact},
	{Name: "size", Func: builtinSize},
	{Name: "abs", Func: builtinAbs},
	{Name: "sqrt", Func: builtinSqrt},
	{Name: "isdefined", Func: builtinIsDefined},
	{Name: "str", Func: builtinStr},
	{Name: "num", Func: builtinNum},
	{Name: "upper", Func: builtinUpper},
	{Name: "lower", Func: builtinLower},
	{Name: "strwidth", Func: builtinStrWidth},
	{Name: "uuid", Func: builtinUUID},
	{Name: "jsonencode", Func: builtinJSONEncode},
	{Name: "jsondecode", Func: builtinJSONDecode},
	{Name: "config", Func: builtinConfig},
}

// ActiveConfig is the session's persisted settings store, wired by
// internal/session.New at startup the same way the VM's PRINT opcodes are wired to a
// host io.Writer rather than reaching for os.Stdout directly -- the
// compiler/VM pair stays host-agnostic and this package is the one piece
// of shared mutable state the config(...) builtin needs, so it lives
// alongside the rest of the builtin table instead of the Compiler
// context struct.
var ActiveConfig = config.Default()

// builtinConfig implements `config(name)` / `config(name, value)`: one
// argument reads a setting, two arguments write it and return the
// previous value.
func builtinConfig(args []value.Value) (value.Value, error) {
	if len(args) != 1 && len(args) != 2 {
		return nil, fmt.Errorf("config: expected 1 or 2 arguments, got %d", len(args))
	}
	name, ok := args[0].(value.Str)
	if !ok {
		return nil, fmt.Errorf("config: setting name must be a string")
	}
	if len(args) == 1 {
		v, err := ActiveConfig.Get(string(name))
		if err != nil {
			return nil, err
		}
		return goToValue(v), nil
	}
	old, err := ActiveConfig.Set(string(name), valueToGo(args[1]))
	if err != nil {
		return nil, err
	}
	return goToValue(old), nil
}

func goToValue(v interface{}) value.Value {
	switch t := v.(type) {
	case bool:
		if t {
			return value.NewInt(1)
		}
		return value.NewInt(0)
	case int:
		return value.NewInt(int64(t))
	case string:
		return value.Str(t)
	default:
		return value.Undef
	}
}

func valueToGo(v value.Value) interface{} {
	switch t := v.(type) {
	case value.Str:
		return string(t)
	case *value.Number:
		if t.Im == nil && t.Re.IsInt() {
			return int(t.Re.Num().Int64())
		}
	}
	return v.String()
}

// Names returns the builtin name list in CALL-operand order, handed to
// symtab.NewBuiltins so `define` rejects a name collision.
func Names() []string {
	names := make([]string, len(Table))
	for i, b := range Table {
		names[i] = b.Name
	}
	return names
}

// Lookup returns the Func registered at CALL-operand index idx.
func Lookup(idx int) (Func, bool) {
	if idx < 0 || idx >= len(Table) {
		return nil, false
	}
	return Table[idx].Func, true
}

func argErr(name string, want int, got int) error {
	return fmt.Errorf("%s: want %d argument(s), got %d", name, want, got)
}

// builtinFact implements postfix `!` (factorial via builtin), following
// calc's own leniency here: a non-integer or negative real is rejected,
// not silently truncated.
func builtinFact(args []value.Value) (value.Value, error) {
	if len(args) != 1 {
		return nil, argErr("fact", 1, len(args))
	}
	n, ok := args[0].(*value.Number)
	if !ok || n.Im != nil || !n.Re.IsInt() || n.Re.Sign() < 0 {
		return nil, fmt.Errorf("fact: argument must be a non-negative integer")
	}
	result := big.NewInt(1)
	i := big.NewInt(1)
	one := big.NewInt(1)
	limit := new(big.Int).Set(n.Re.Num())
	for i.Cmp(limit) <= 0 {
		result.Mul(result, i)
		i.Add(i, one)
	}
	return &value.Number{Re: new(big.Rat).SetInt(result)}, nil
}

// builtinSize returns the element count of a mat/obj, or the length of a
// string. Scalars have size 1.
func builtinSize(args []value.Value) (value.Value, error) {
	if len(args) != 1 {
		return nil, argErr("size", 1, len(args))
	}
	switch v := args[0].(type) {
	case *value.Mat:
		return value.NewInt(int64(v.Size())), nil
	case *value.Obj:
		return value.NewInt(int64(len(v.Values))), nil
	case value.Str:
		return value.NewInt(int64(len(v))), nil
	default:
		return value.NewInt(1), nil
	}
}

func numArg(name string, args []value.Value) (*value.Number, error) {
	if len(args) != 1 {
		return nil, argErr(name, 1, len(args))
	}
	n, ok := args[0].(*value.Number)
	if !ok {
		return nil, fmt.Errorf("%s: argument must be a number", name)
	}
	return n, nil
}

func builtinAbs(args []value.Value) (value.Value, error) {
	n, err := numArg("abs", args)
	if err != nil {
		return nil, err
	}
	r := new(big.Rat).Abs(n.Re)
	return &value.Number{Re: r}, nil
}

func builtinSqrt(args []value.Value) (value.Value, error) {
	n, err := numArg("sqrt", args)
	if err != nil {
		return nil, err
	}
	f, _ := n.Re.Float64()
	if f < 0 {
		return nil, fmt.Errorf("sqrt: negative argument")
	}
	return value.NewFloat(math.Sqrt(f)), nil
}

// builtinIsDefined reports whether its argument is anything other than
// the Undefined value, for scripts that probe an omitted parameter.
func builtinIsDefined(args []value.Value) (value.Value, error) {
	if len(args) != 1 {
		return nil, argErr("isdefined", 1, len(args))
	}
	return value.Bool(!value.IsUndef(args[0])), nil
}

func builtinStr(args []value.Value) (value.Value, error) {
	if len(args) != 1 {
		return nil, argErr("str", 1, len(args))
	}
	return value.Str(args[0].String()), nil
}

func builtinNum(args []value.Value) (value.Value, error) {
	if len(args) != 1 {
		return nil, argErr("num", 1, len(args))
	}
	s, ok := args[0].(value.Str)
	if !ok {
		return nil, fmt.Errorf("num: argument must be a string")
	}
	r, ok := new(big.Rat).SetString(string(s))
	if !ok {
		return nil, fmt.Errorf("num: %q is not a valid number", string(s))
	}
	return &value.Number{Re: r}, nil
}

// builtinUpper and builtinLower use golang.org/x/text/cases for
// Unicode-correct case folding rather than strings.ToUpper/ToLower.
func builtinUpper(args []value.Value) (value.Value, error) {
	s, err := strArg("upper", args)
	if err != nil {
		return nil, err
	}
	return value.Str(cases.Upper(language.Und).String(string(s))), nil
}

func builtinLower(args []value.Value) (value.Value, error) {
	s, err := strArg("lower", args)
	if err != nil {
		return nil, err
	}
	return value.Str(cases.Lower(language.Und).String(string(s))), nil
}

// builtinStrWidth reports the East-Asian display width of a string via
// golang.org/x/text/width, used for column-aligned `print` output.
func builtinStrWidth(args []value.Value) (value.Value, error) {
	s, err := strArg("strwidth", args)
	if err != nil {
		return nil, err
	}
	total := 0
	for _, r := range string(s) {
		switch width.LookupRune(r).Kind() {
		case width.EastAsianWide, width.EastAsianFullwidth:
			total += 2
		default:
			total++
		}
	}
	return value.NewInt(int64(total)), nil
}

func strArg(name string, args []value.Value) (value.Str, error) {
	if len(args) != 1 {
		return "", argErr(name, 1, len(args))
	}
	s, ok := args[0].(value.Str)
	if !ok {
		return "", fmt.Errorf("%s: argument must be a string", name)
	}
	return s, nil
}

// builtinUUID generates a random identifier value (RFC 4122 v4) via
// github.com/google/uuid.
func builtinUUID(args []value.Value) (value.Value, error) {
	if len(args) != 0 {
		return nil, argErr("uuid", 0, len(args))
	}
	return value.Str(uuid.New().String()), nil
}

// builtinJSONEncode serializes a value to a JSON string using
// github.com/go-faster/jx's low-allocation encoder.
func builtinJSONEncode(args []value.Value) (value.Value, error) {
	if len(args) != 1 {
		return nil, argErr("jsonencode", 1, len(args))
	}
	var e jx.Encoder
	encodeJSON(&e, args[0])
	return value.Str(e.Bytes()), nil
}

func encodeJSON(e *jx.Encoder, v value.Value) {
	switch vv := v.(type) {
	case *value.Number:
		if vv.Im != nil && vv.Im.Sign() != 0 {
			e.Str(vv.String())
			return
		}
		f, _ := vv.Re.Float64()
		e.Float64(f)
	case value.Str:
		e.Str(string(vv))
	case *value.Mat:
		e.ArrStart()
		for _, el := range vv.Data {
			encodeJSON(e, el)
		}
		e.ArrEnd()
	case *value.Obj:
		e.ObjStart()
		for i, el := range vv.Values {
			e.FieldStart(fmt.Sprintf("field%d", i))
			encodeJSON(e, el)
		}
		e.ObjEnd()
	default:
		e.Null()
	}
}

// builtinJSONDecode parses a JSON string back into a Number, Str, or Mat
// (array), the decode half of the jsonencode/jsondecode builtin pair.
func builtinJSONDecode(args []value.Value) (value.Value, error) {
	s, err := strArg("jsondecode", args)
	if err != nil {
		return nil, err
	}
	d := jx.DecodeStr(string(s))
	v, err := decodeJSON(d)
	if err != nil {
		return nil, fmt.Errorf("jsondecode: %w", err)
	}
	return v, nil
}

func decodeJSON(d *jx.Decoder) (value.Value, error) {
	switch d.Next() {
	case jx.Number:
		n, err := d.Num()
		if err != nil {
			return nil, err
		}
		f, err := n.Float64()
		if err != nil {
			return nil, err
		}
		return value.NewFloat(f), nil
	case jx.String:
		s, err := d.Str()
		if err != nil {
			return nil, err
		}
		return value.Str(s), nil
	case jx.Null:
		return value.Undef, d.Null()
	case jx.Array:
		var data []value.Value
		err := d.Arr(func(d *jx.Decoder) error {
			el, err := decodeJSON(d)
			if err != nil {
				return err
			}
			data = append(data, el)
			return nil
		})
		if err != nil {
			return nil, err
		}
		m := &value.Mat{Dims: []value.Dim{{Lo: 0, Hi: len(data) - 1}}, Data: data}
		return m, nil
	default:
		return nil, fmt.Errorf("unsupported JSON value")
	}
}

package value

import (
	"fmt"
	"math"
	"math/big"

	"github.com/stone39035605/calc/internal/opcode"
)

// Bool is the Number the VM's comparison and NOT opcodes produce: calc
// has no boolean type, so truth is represented the usual way, as 0 or 1;
// JUMPZ/JUMPNZ and friends just test Truthy.
func Bool(b bool) *Number {
	if b {
		return NewInt(1)
	}
	return NewInt(0)
}

func asInt(n *Number) (*big.Int, bool) {
	if n.Im != nil && n.Im.Sign() != 0 {
		return nil, false
	}
	if !n.Re.IsInt() {
		return nil, false
	}
	return new(big.Int).Set(n.Re.Num()), true
}

// BinaryOp evaluates one of the ADD/SUB/.../GE family opcodes over two
// runtime values. Both operands are expected
// to already be dereferenced (the VM applies Deref before calling this).
func BinaryOp(op opcode.Opcode, x, y Value) (Value, error) {
	switch op {
	case opcode.Eq, opcode.Ne, opcode.Lt, opcode.Gt, opcode.Le, opcode.Ge:
		return compare(op, x, y)
	case opcode.Add:
		if xs, ok := x.(Str); ok {
			return xs + Str(toStr(y)), nil
		}
	}

	xn, xok := x.(*Number)
	yn, yok := y.(*Number)
	if !xok || !yok {
		return nil, fmt.Errorf("invalid operands for %s: %s, %s", opcode.Name(op), x.TypeName(), y.TypeName())
	}

	switch op {
	case opcode.Add:
		return &Number{Re: new(big.Rat).Add(xn.Re, yn.Re), Im: addIm(xn, yn, false)}, nil
	case opcode.Sub:
		return &Number{Re: new(big.Rat).Sub(xn.Re, yn.Re), Im: addIm(xn, yn, true)}, nil
	case opcode.Mul:
		return mul(xn, yn), nil
	case opcode.Div:
		if yn.IsZero() {
			return nil, fmt.Errorf("division by zero")
		}
		return &Number{Re: new(big.Rat).Quo(xn.Re, yn.Re)}, nil
	case opcode.Quo:
		return intQuo(xn, yn)
	case opcode.Mod:
		return intMod(xn, yn)
	case opcode.And:
		return bitwise(xn, yn, (*big.Int).And)
	case opcode.Or:
		return bitwise(xn, yn, (*big.Int).Or)
	case opcode.Xor:
		return bitwise(xn, yn, (*big.Int).Xor)
	case opcode.HashOp:
		return bitwise(xn, yn, (*big.Int).Xor)
	case opcode.SetMinus:
		return bitwise(xn, yn, (*big.Int).AndNot)
	case opcode.LeftShift:
		return shift(xn, yn, true)
	case opcode.RightShift:
		return shift(xn, yn, false)
	case opcode.Power:
		return power(xn, yn)
	}
	return nil, fmt.Errorf("unsupported binary opcode %s", opcode.Name(op))
}

func toStr(v Value) string {
	if s, ok := v.(Str); ok {
		return string(s)
	}
	return v.String()
}

func addIm(x, y *Number, sub bool) *big.Rat {
	if x.Im == nil && y.Im == nil {
		return nil
	}
	xi := ratOrZero(x.Im)
	yi := ratOrZero(y.Im)
	r := new(big.Rat)
	if sub {
		r.Sub(xi, yi)
	} else {
		r.Add(xi, yi)
	}
	return r
}

func ratOrZero(r *big.Rat) *big.Rat {
	if r == nil {
		return new(big.Rat)
	}
	return r
}

func mul(x, y *Number) *Number {
	re := new(big.Rat).Sub(new(big.Rat).Mul(x.Re, y.Re), new(big.Rat).Mul(ratOrZero(x.Im), ratOrZero(y.Im)))
	if x.Im == nil && y.Im == nil {
		return &Number{Re: re}
	}
	im := new(big.Rat).Add(new(big.Rat).Mul(x.Re, ratOrZero(y.Im)), new(big.Rat).Mul(ratOrZero(x.Im), y.Re))
	return &Number{Re: re, Im: im}
}

func intQuo(x, y *Number) (*Number, error) {
	xi, ok1 := asInt(x)
	yi, ok2 := asInt(y)
	if !ok1 || !ok2 {
		xf, _ := x.Re.Float64()
		yf, _ := y.Re.Float64()
		if yf == 0 {
			return nil, fmt.Errorf("division by zero")
		}
		return NewFloat(math.Trunc(xf / yf)), nil
	}
	if yi.Sign() == 0 {
		return nil, fmt.Errorf("division by zero")
	}
	q := new(big.Int).Quo(xi, yi)
	return &Number{Re: new(big.Rat).SetInt(q)}, nil
}

func intMod(x, y *Number) (*Number, error) {
	xi, ok1 := asInt(x)
	yi, ok2 := asInt(y)
	if !ok1 || !ok2 {
		xf, _ := x.Re.Float64()
		yf, _ := y.Re.Float64()
		if yf == 0 {
			return nil, fmt.Errorf("division by zero")
		}
		return NewFloat(math.Mod(xf, yf)), nil
	}
	if yi.Sign() == 0 {
		return nil, fmt.Errorf("division by zero")
	}
	m := new(big.Int).Rem(xi, yi)
	return &Number{Re: new(big.Rat).SetInt(m)}, nil
}

func bitwise(x, y *Number, f func(z, a, b *big.Int) *big.Int) (*Number, error) {
	xi, ok1 := asInt(x)
	yi, ok2 := asInt(y)
	if !ok1 || !ok2 {
		return nil, fmt.Errorf("bitwise operation requires integers")
	}
	z := new(big.Int)
	f(z, xi, yi)
	return &Number{Re: new(big.Rat).SetInt(z)}, nil
}

func shift(x, y *Number, left bool) (*Number, error) {
	xi, ok1 := asInt(x)
	yi, ok2 := asInt(y)
	if !ok1 || !ok2 || !yi.IsUint64() {
		return nil, fmt.Errorf("shift requires integer operands")
	}
	n := uint(yi.Uint64())
	z := new(big.Int)
	if left {
		z.Lsh(xi, n)
	} else {
		z.Rsh(xi, n)
	}
	return &Number{Re: new(big.Rat).SetInt(z)}, nil
}

func power(x, y *Number) (*Number, error) {
	if yi, ok := asInt(y); ok && yi.IsInt64() {
		n := yi.Int64()
		neg := n < 0
		if neg {
			n = -n
		}
		if xi, ok := asInt(x); ok && !neg {
			z := new(big.Int).Exp(xi, big.NewInt(n), nil)
			return &Number{Re: new(big.Rat).SetInt(z)}, nil
		}
		r := new(big.Rat).SetInt64(1)
		base := x.Re
		for i := int64(0); i < n; i++ {
			r.Mul(r, base)
		}
		if neg {
			if r.Sign() == 0 {
				return nil, fmt.Errorf("division by zero")
			}
			r.Inv(r)
		}
		return &Number{Re: r}, nil
	}
	xf, _ := x.Re.Float64()
	yf, _ := y.Re.Float64()
	return NewFloat(math.Pow(xf, yf)), nil
}

func compare(op opcode.Opcode, x, y Value) (Value, error) {
	if op == opcode.Eq || op == opcode.Ne {
		eq := equalValues(x, y)
		if op == opcode.Ne {
			eq = !eq
		}
		return Bool(eq), nil
	}
	xn, xok := x.(*Number)
	yn, yok := y.(*Number)
	if !xok || !yok {
		return nil, fmt.Errorf("cannot order %s and %s", x.TypeName(), y.TypeName())
	}
	c := xn.Re.Cmp(yn.Re)
	switch op {
	case opcode.Lt:
		return Bool(c < 0), nil
	case opcode.Gt:
		return Bool(c > 0), nil
	case opcode.Le:
		return Bool(c <= 0), nil
	case opcode.Ge:
		return Bool(c >= 0), nil
	}
	return nil, fmt.Errorf("unsupported comparison opcode %s", opcode.Name(op))
}

func equalValues(x, y Value) bool {
	switch xv := x.(type) {
	case *Number:
		yv, ok := y.(*Number)
		if !ok {
			return false
		}
		return xv.Re.Cmp(yv.Re) == 0 && ratOrZero(xv.Im).Cmp(ratOrZero(yv.Im)) == 0
	case Str:
		yv, ok := y.(Str)
		return ok && xv == yv
	case undefinedType:
		_, ok := y.(undefinedType)
		return ok
	default:
		return x == y
	}
}

// UnaryOp evaluates one of the unary opcodes (PLUS/NEGATE/NOT/INVERT/
// BACKSLASH/COMP/CONTENT) over a single dereferenced value.
func UnaryOp(op opcode.Opcode, x Value) (Value, error) {
	if op == opcode.Not {
		return Bool(!x.Truthy()), nil
	}
	if op == opcode.Content {
		switch v := x.(type) {
		case *Mat:
			return NewInt(int64(v.Size())), nil
		case *Obj:
			return NewInt(int64(len(v.Values))), nil
		case Str:
			return NewInt(int64(len(v))), nil
		}
	}
	n, ok := x.(*Number)
	if !ok {
		return nil, fmt.Errorf("operand for %s must be a number, got %s", opcode.Name(op), x.TypeName())
	}
	switch op {
	case opcode.Plus:
		return n, nil
	case opcode.Negate:
		return &Number{Re: new(big.Rat).Neg(n.Re), Im: negIm(n)}, nil
	case opcode.Invert:
		if n.IsZero() {
			return nil, fmt.Errorf("division by zero")
		}
		return &Number{Re: new(big.Rat).Inv(n.Re)}, nil
	case opcode.Backslash:
		f, _ := n.Re.Float64()
		if f < 0 {
			return nil, fmt.Errorf("square root of negative number")
		}
		return NewFloat(math.Sqrt(f)), nil
	case opcode.Comp:
		i, ok := asInt(n)
		if !ok {
			return nil, fmt.Errorf("~ requires an integer")
		}
		return &Number{Re: new(big.Rat).SetInt(new(big.Int).Not(i))}, nil
	case opcode.Content:
		return NewInt(int64(n.Re.Sign())), nil
	}
	return nil, fmt.Errorf("unsupported unary opcode %s", opcode.Name(op))
}

func negIm(n *Number) *big.Rat {
	if n.Im == nil {
		return nil
	}
	return new(big.Rat).Neg(n.Im)
}

package bytecode

import (
	"fmt"
	"math"
	"strings"
)

// Kind tags which case of Value is populated.
type Kind int

const (
	KindNil Kind = iota
	KindNumber
	KindBool
	KindString
	KindFunction
	KindNative
	KindClosure
)

func (k Kind) String() string {
	switch k {
	case KindNil:
		return "nil"
	case KindNumber:
		return "number"
	case KindBool:
		return "boolean"
	case KindString:
		return "string"
	case KindFunction:
		return "function"
	case KindNative:
		return "native_function"
	case KindClosure:
		return "closure"
	default:
		return "invalid"
	}
}

// Value is the VM's tagged variant over {nil, number, boolean, string,
// function, native function, closure}. It is a plain value type: copying a
// Value copies the tag and, for reference cases, the handle — never the
// underlying heap object.
type Value struct {
	Kind    Kind
	Number  float64
	Bool    bool
	Str     *String
	Fn      *Function
	Native  *NativeFunction
	Closure *Closure
}

// Nil returns the unit value.
func Nil() Value { return Value{Kind: KindNil} }

// Number wraps an IEEE-754 float64.
func Number(n float64) Value { return Value{Kind: KindNumber, Number: n} }

// Bool wraps a boolean.
func Bool(b bool) Value { return Value{Kind: KindBool, Bool: b} }

// StringValue wraps an interned string handle.
func StringValue(s *String) Value { return Value{Kind: KindString, Str: s} }

// FunctionValue wraps a compiled function.
func FunctionValue(fn *Function) Value { return Value{Kind: KindFunction, Fn: fn} }

// NativeValue wraps a host-provided callable.
func NativeValue(nf *NativeFunction) Value { return Value{Kind: KindNative, Native: nf} }

// ClosureValue wraps a closure.
func ClosureValue(c *Closure) Value { return Value{Kind: KindClosure, Closure: c} }

// String renders v for PRINT and disassembly/trace dumps.
func (v Value) String() string {
	switch v.Kind {
	case KindNil:
		return "nil"
	case KindNumber:
		return fmt.Sprintf("%g", v.Number)
	case KindBool:
		if v.Bool {
			return "true"
		}
		return "false"
	case KindString:
		return v.Str.String()
	case KindFunction:
		if v.Fn == nil {
			return "<fn nil>"
		}
		return fmt.Sprintf("<fn %s>", v.Fn.Name)
	case KindNative:
		if v.Native == nil {
			return "<native nil>"
		}
		return fmt.Sprintf("<native %s>", v.Native.Name)
	case KindClosure:
		if v.Closure == nil || v.Closure.Function == nil {
			return "<closure nil>"
		}
		return fmt.Sprintf("<closure %s>", v.Closure.Function.Name)
	default:
		return "<invalid>"
	}
}

// Equal implements the value-equality rules: different kinds are never
// equal; numbers compare by IEEE equality; booleans compare directly;
// strings compare by interned identity; functions/natives/closures
// compare by identity.
func (v Value) Equal(o Value) bool {
	if v.Kind != o.Kind {
		return false
	}
	switch v.Kind {
	case KindNil:
		return true
	case KindNumber:
		return v.Number == o.Number
	case KindBool:
		return v.Bool == o.Bool
	case KindString:
		return v.Str == o.Str
	case KindFunction:
		return v.Fn == o.Fn
	case KindNative:
		return v.Native == o.Native
	case KindClosure:
		return v.Closure == o.Closure
	default:
		return false
	}
}

// IsFalsey is the predicate JUMP_IF_FALSE uses. It is defined only on
// booleans; any other kind is a Type error.
func IsFalsey(v Value) (bool, error) {
	if v.Kind != KindBool {
		return false, typeError("is_falsey expects a boolean, got %s", v.Kind)
	}
	return !v.Bool, nil
}

// Add implements ADD: number+number sums, string+string concatenates into
// a freshly interned string, anything else is a Type error.
func Add(pool *InternPool, a, b Value) (Value, error) {
	switch {
	case a.Kind == KindNumber && b.Kind == KindNumber:
		return Number(a.Number + b.Number), nil
	case a.Kind == KindString && b.Kind == KindString:
		var sb strings.Builder
		sb.Write(a.Str.Bytes())
		sb.Write(b.Str.Bytes())
		return StringValue(pool.Intern([]byte(sb.String()))), nil
	default:
		return Value{}, typeError("add expects (number, number) or (string, string), got (%s, %s)", a.Kind, b.Kind)
	}
}

// Sub implements SUB: numeric subtraction only.
func Sub(a, b Value) (Value, error) {
	if a.Kind != KindNumber || b.Kind != KindNumber {
		return Value{}, typeError("sub expects (number, number), got (%s, %s)", a.Kind, b.Kind)
	}
	return Number(a.Number - b.Number), nil
}

// Mul implements MUL: numeric multiplication only.
func Mul(a, b Value) (Value, error) {
	if a.Kind != KindNumber || b.Kind != KindNumber {
		return Value{}, typeError("mul expects (number, number), got (%s, %s)", a.Kind, b.Kind)
	}
	return Number(a.Number * b.Number), nil
}

// Div implements DIV: numeric division only; division by zero is a Type
// error rather than a silent +Inf/NaN.
func Div(a, b Value) (Value, error) {
	if a.Kind != KindNumber || b.Kind != KindNumber {
		return Value{}, typeError("div expects (number, number), got (%s, %s)", a.Kind, b.Kind)
	}
	if b.Number == 0 {
		return Value{}, typeError("division by zero")
	}
	return Number(a.Number / b.Number), nil
}

// Mod implements MOD: numeric remainder only; modulo by zero is a Type
// error for the same reason division by zero is.
func Mod(a, b Value) (Value, error) {
	if a.Kind != KindNumber || b.Kind != KindNumber {
		return Value{}, typeError("mod expects (number, number), got (%s, %s)", a.Kind, b.Kind)
	}
	if b.Number == 0 {
		return Value{}, typeError("modulo by zero")
	}
	return Number(math.Mod(a.Number, b.Number)), nil
}

// Negate implements NEGATE: numeric negation only.
func Negate(v Value) (Value, error) {
	if v.Kind != KindNumber {
		return Value{}, typeError("negate expects a number, got %s", v.Kind)
	}
	return Number(-v.Number), nil
}

// Not implements NOT: boolean negation only.
func Not(v Value) (Value, error) {
	if v.Kind != KindBool {
		return Value{}, typeError("not expects a boolean, got %s", v.Kind)
	}
	return Bool(!v.Bool), nil
}

// And implements AND: both operands must be booleans, deliberately
// stricter than a truthy-testing language. No value is truthy-tested
// here, only real booleans are accepted.
func And(a, b Value) (Value, error) {
	if a.Kind != KindBool || b.Kind != KindBool {
		return Value{}, typeError("and expects (boolean, boolean), got (%s, %s)", a.Kind, b.Kind)
	}
	return Bool(a.Bool && b.Bool), nil
}

// Or implements OR, with the same strictness as And.
func Or(a, b Value) (Value, error) {
	if a.Kind != KindBool || b.Kind != KindBool {
		return Value{}, typeError("or expects (boolean, boolean), got (%s, %s)", a.Kind, b.Kind)
	}
	return Bool(a.Bool || b.Bool), nil
}

// Less implements LESS: numeric comparison only.
func Less(a, b Value) (Value, error) {
	if a.Kind != KindNumber || b.Kind != KindNumber {
		return Value{}, typeError("less expects (number, number), got (%s, %s)", a.Kind, b.Kind)
	}
	return Bool(a.Number < b.Number), nil
}

// Greater implements GREATER: numeric comparison only.
func Greater(a, b Value) (Value, error) {
	if a.Kind != KindNumber || b.Kind != KindNumber {
		return Value{}, typeError("greater expects (number, number), got (%s, %s)", a.Kind, b.Kind)
	}
	return Bool(a.Number > b.Number), nil
}

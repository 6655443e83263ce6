package natives

import (
	"github.com/fxamacker/cbor/v2"

	"avenirvm/internal/bytecode"
)

// InstallCodec registers encode/decode, marshaling a Value tree to and
// from CBOR bytes (held in a String, since the Value kind set has no
// separate byte-string case) for host interchange. This is a value
// serialization concern, not a bytecode file format, so it does not
// conflict with the persistent-bytecode-format non-goal.
func InstallCodec(reg Registrar) {
	define(reg, Encode, 1, func(args []bytecode.Value) (bytecode.Value, error) {
		native, err := toNative(args[0])
		if err != nil {
			return bytecode.Value{}, err
		}
		data, err := cbor.Marshal(native)
		if err != nil {
			return bytecode.Value{}, typeErr("encode: " + err.Error())
		}
		return bytecode.StringValue(reg.Pool().Intern(data)), nil
	})

	define(reg, Decode, 1, func(args []bytecode.Value) (bytecode.Value, error) {
		if args[0].Kind != bytecode.KindString {
			return bytecode.Value{}, typeErr("decode expects a string of CBOR bytes")
		}
		var native interface{}
		if err := cbor.Unmarshal(args[0].Str.Bytes(), &native); err != nil {
			return bytecode.Value{}, typeErr("decode: " + err.Error())
		}
		return fromNative(reg.Pool(), native)
	})
}

// toNative converts a Value into a plain Go value cbor can marshal.
// Function/Native/Closure kinds have no host representation and are
// rejected with a Type error rather than silently dropped.
func toNative(v bytecode.Value) (interface{}, error) {
	switch v.Kind {
	case bytecode.KindNil:
		return nil, nil
	case bytecode.KindNumber:
		return v.Number, nil
	case bytecode.KindBool:
		return v.Bool, nil
	case bytecode.KindString:
		return v.Str.Bytes(), nil
	default:
		return nil, typeErr("encode: cannot serialize a " + v.Kind.String())
	}
}

// fromNative converts cbor's decoded interface{} back into a Value,
// interning any byte strings through pool.
func fromNative(pool *bytecode.InternPool, native interface{}) (bytecode.Value, error) {
	switch n := native.(type) {
	case nil:
		return bytecode.Nil(), nil
	case bool:
		return bytecode.Bool(n), nil
	case float64:
		return bytecode.Number(n), nil
	case uint64:
		return bytecode.Number(float64(n)), nil
	case int64:
		return bytecode.Number(float64(n)), nil
	case []byte:
		return bytecode.StringValue(pool.Intern(n)), nil
	case string:
		return bytecode.StringValue(pool.Intern([]byte(n))), nil
	default:
		return bytecode.Value{}, typeErr("decode: unsupported CBOR shape")
	}
}

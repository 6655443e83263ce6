package natives

import (
	"golang.org/x/crypto/bcrypt"

	"avenirvm/internal/bytecode"
)

// InstallHash registers hash/hash_verify, a pair of natives that do real,
// fallible work so ArityMismatch and Type surface from native code the
// same way they do from the opcode dispatch loop.
func InstallHash(reg Registrar) {
	define(reg, Hash, 1, func(args []bytecode.Value) (bytecode.Value, error) {
		if args[0].Kind != bytecode.KindString {
			return bytecode.Value{}, typeErr("hash expects a string")
		}
		sum, err := bcrypt.GenerateFromPassword(args[0].Str.Bytes(), bcrypt.DefaultCost)
		if err != nil {
			return bytecode.Value{}, typeErr("hash: " + err.Error())
		}
		return bytecode.StringValue(reg.Pool().Intern(sum)), nil
	})

	define(reg, HashVerify, 2, func(args []bytecode.Value) (bytecode.Value, error) {
		if args[0].Kind != bytecode.KindString || args[1].Kind != bytecode.KindString {
			return bytecode.Value{}, typeErr("hash_verify expects (string, string)")
		}
		err := bcrypt.CompareHashAndPassword(args[0].Str.Bytes(), args[1].Str.Bytes())
		return bytecode.Bool(err == nil), nil
	})
}

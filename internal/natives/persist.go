package natives

import (
	"avenirvm/internal/bytecode"
	"avenirvm/internal/persist"
)

// InstallPersist registers persist_open/persist_save/persist_load/
// persist_close against mgr, giving scripts a way to snapshot and
// restore named values across runs without a persistent bytecode format.
func InstallPersist(reg Registrar, mgr *persist.Manager) {
	define(reg, PersistOpen, 1, func(args []bytecode.Value) (bytecode.Value, error) {
		if args[0].Kind != bytecode.KindString {
			return bytecode.Value{}, typeErr("persist_open expects a DSN string")
		}
		handle, err := mgr.Open(args[0].Str.String())
		if err != nil {
			return bytecode.Value{}, typeErr(err.Error())
		}
		return bytecode.StringValue(reg.Pool().Intern(handle)), nil
	})

	define(reg, PersistSave, 3, func(args []bytecode.Value) (bytecode.Value, error) {
		if args[0].Kind != bytecode.KindString || args[1].Kind != bytecode.KindString || args[2].Kind != bytecode.KindString {
			return bytecode.Value{}, typeErr("persist_save expects (handle, name, data) strings")
		}
		err := mgr.Save(args[0].Str.Bytes(), args[1].Str.String(), args[2].Str.Bytes())
		if err != nil {
			return bytecode.Value{}, typeErr(err.Error())
		}
		return bytecode.Nil(), nil
	})

	define(reg, PersistLoad, 2, func(args []bytecode.Value) (bytecode.Value, error) {
		if args[0].Kind != bytecode.KindString || args[1].Kind != bytecode.KindString {
			return bytecode.Value{}, typeErr("persist_load expects (handle, name) strings")
		}
		data, err := mgr.Load(args[0].Str.Bytes(), args[1].Str.String())
		if err != nil {
			return bytecode.Value{}, typeErr(err.Error())
		}
		return bytecode.StringValue(reg.Pool().Intern(data)), nil
	})

	define(reg, PersistClose, 1, func(args []bytecode.Value) (bytecode.Value, error) {
		if args[0].Kind != bytecode.KindString {
			return bytecode.Value{}, typeErr("persist_close expects a handle string")
		}
		if err := mgr.Close(args[0].Str.Bytes()); err != nil {
			return bytecode.Value{}, typeErr(err.Error())
		}
		return bytecode.Nil(), nil
	})
}

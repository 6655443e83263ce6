// Package natives wires host-provided callables into a VM's globals
// table: an ID per function paired with a fixed arity and a Go
// implementation, registered up front rather than resolved dynamically.
package natives

import (
	"time"

	"avenirvm/internal/bytecode"
)

// Registrar is satisfied by *vm.VM. Native installers depend on this
// narrow interface instead of the vm package's concrete type, so the
// non-test code of this package does not import vm.
type Registrar interface {
	DefineGlobal(name string, v bytecode.Value)
	Pool() *bytecode.InternPool
}

// ID identifies one native function, for diagnostics and for callers that
// want to look a native up without going through the globals table.
type ID int

const (
	Clock ID = iota
	Sleep
	Hash
	HashVerify
	Encode
	Decode
	PersistOpen
	PersistSave
	PersistLoad
	PersistClose
)

func (id ID) String() string {
	switch id {
	case Clock:
		return "clock"
	case Sleep:
		return "sleep"
	case Hash:
		return "hash"
	case HashVerify:
		return "hash_verify"
	case Encode:
		return "encode"
	case Decode:
		return "decode"
	case PersistOpen:
		return "persist_open"
	case PersistSave:
		return "persist_save"
	case PersistLoad:
		return "persist_load"
	case PersistClose:
		return "persist_close"
	default:
		return "unknown"
	}
}

// Install registers the base set of natives that make no external calls:
// clock (wall-clock seconds as a number) and sleep (blocks for a
// number of seconds, returns nil).
func Install(reg Registrar) {
	define(reg, Clock, 0, func(args []bytecode.Value) (bytecode.Value, error) {
		return bytecode.Number(float64(time.Now().UnixNano()) / 1e9), nil
	})
	define(reg, Sleep, 1, func(args []bytecode.Value) (bytecode.Value, error) {
		if args[0].Kind != bytecode.KindNumber {
			return bytecode.Value{}, typeErr("sleep expects a number of seconds")
		}
		time.Sleep(time.Duration(args[0].Number * float64(time.Second)))
		return bytecode.Nil(), nil
	})
}

func define(reg Registrar, id ID, arity int, fn bytecode.NativeFn) {
	reg.DefineGlobal(id.String(), bytecode.NativeValue(&bytecode.NativeFunction{
		Name:  id.String(),
		Arity: arity,
		Fn:    fn,
	}))
}

func typeErr(msg string) error {
	return &bytecode.OpError{Kind: bytecode.ErrType, Message: msg}
}

// Package vm implements the bytecode execution engine: the operand
// stack, call-frame stack, globals table, and instruction dispatch loop.
package vm

import (
	"fmt"
	"io"
	"os"

	"github.com/google/uuid"
	"github.com/mattn/go-isatty"

	"avenirvm/internal/bytecode"
)

// InterpretResult is the outcome of a call to Interpret. Only ResultOk and
// ResultRuntimeError are produced by this engine; ResultCompileError exists
// because the result enumeration is shared with a hypothetical front-end
// compiler, which is out of scope here.
type InterpretResult int

const (
	ResultOk InterpretResult = iota
	ResultCompileError
	ResultRuntimeError
)

func (r InterpretResult) String() string {
	switch r {
	case ResultOk:
		return "Ok"
	case ResultCompileError:
		return "CompileError"
	case ResultRuntimeError:
		return "RuntimeError"
	default:
		return "Unknown"
	}
}

// Frame is one active function activation: the function being executed,
// the instruction pointer into its chunk, and the base slot on the
// operand stack. Closure is nil when the callee was a bare Function value
// (e.g. a top-level recursive function looked up by name, never wrapped
// in a CLOSURE instruction) — GET_UPVALUE/SET_UPVALUE then fail with an
// InvalidSlot error.
type Frame struct {
	Closure   *bytecode.Closure
	Function  *bytecode.Function
	IP        int
	SlotsBase int
}

// VM owns the operand stack, the call-frame stack, the globals table, and
// run-time tracing configuration, and holds a reference to the caller's
// string intern pool. Obtain one with
// NewVM and drive it with Interpret.
type VM struct {
	stack  []bytecode.Value
	sp     int
	frames []Frame

	globals map[string]bytecode.Value
	pool    *bytecode.InternPool

	sessionID string
	trace     bool
	slow      bool
	out       io.Writer
	colorize  bool
}

// NewVM creates a VM ready to run chunk as the top-level script, using pool
// for string interning. pool is owned by the caller's context, not by the
// VM; Teardown is the caller's responsibility once the VM (and anything
// that might still reference an interned string) is done.
func NewVM(chunk *bytecode.Chunk, pool *bytecode.InternPool) *VM {
	scriptFn := &bytecode.Function{Name: "<script>", Arity: 0, Chunk: chunk}
	vm := &VM{
		stack:     make([]bytecode.Value, 0, 256),
		frames:    make([]Frame, 0, 64),
		globals:   make(map[string]bytecode.Value),
		pool:      pool,
		sessionID: uuid.NewString()[:8],
		out:       os.Stdout,
		colorize:  isatty.IsTerminal(os.Stdout.Fd()),
	}
	vm.push(bytecode.Nil()) // slot 0: reserved for the script "callable" itself
	vm.frames = append(vm.frames, Frame{Function: scriptFn, IP: 0, SlotsBase: 0})
	return vm
}

// SetTrace toggles per-step tracing: before every instruction the VM
// prints the operand stack and disassembles the next instruction.
func (vm *VM) SetTrace(on bool) { vm.trace = on }

// SetSlow toggles a one-second sleep between instructions, for visual
// demos.
func (vm *VM) SetSlow(on bool) { vm.slow = on }

// SetOutput redirects PRINT and trace output (default os.Stdout).
func (vm *VM) SetOutput(w io.Writer) { vm.out = w }

// SessionID returns the VM's session identifier, used to disambiguate
// diagnostics across concurrently running VMs in the same process.
func (vm *VM) SessionID() string { return vm.sessionID }

// Pool exposes the VM's intern pool, for producers that need to build
// string constants with the same identity guarantees the VM enforces.
func (vm *VM) Pool() *bytecode.InternPool { return vm.pool }

// DefineGlobal binds name to v in the globals table. It implements the
// natives.Registrar interface so native-function installers can seed
// globals without importing the vm package's concrete type.
func (vm *VM) DefineGlobal(name string, v bytecode.Value) {
	vm.globals[name] = v
}

// Stack returns a read-only snapshot of the operand stack, bottom to
// top, for diagnostics and test observation.
func (vm *VM) Stack() []bytecode.Value {
	out := make([]bytecode.Value, vm.sp)
	copy(out, vm.stack[:vm.sp])
	return out
}

// push appends v to the top of the operand stack.
func (vm *VM) push(v bytecode.Value) {
	if vm.sp < len(vm.stack) {
		vm.stack[vm.sp] = v
	} else {
		vm.stack = append(vm.stack, v)
	}
	vm.sp++
}

// pop removes and returns the top of the operand stack.
func (vm *VM) pop() (bytecode.Value, error) {
	if vm.sp == 0 {
		return bytecode.Value{}, &bytecode.OpError{Kind: bytecode.ErrStackUnderflow, Message: "pop on empty stack"}
	}
	vm.sp--
	return vm.stack[vm.sp], nil
}

// peek returns the value at depth below the top without popping it.
// depth 0 is the top of the stack.
func (vm *VM) peek(depth int) (bytecode.Value, error) {
	idx := vm.sp - 1 - depth
	if idx < 0 || idx >= vm.sp {
		return bytecode.Value{}, &bytecode.OpError{Kind: bytecode.ErrStackUnderflow, Message: fmt.Sprintf("peek(%d) on stack of height %d", depth, vm.sp)}
	}
	return vm.stack[idx], nil
}

// Interpret runs the VM to completion. It returns the value left on top
// of the operand stack after the bottom frame's RETURN, so tests and
// host callers never need to special-case the bottom frame.
func (vm *VM) Interpret() (bytecode.Value, InterpretResult, error) {
	val, err := vm.run()
	if err != nil {
		return bytecode.Value{}, ResultRuntimeError, err
	}
	return val, ResultOk, nil
}

// currentFrame returns a pointer into vm.frames for the active frame. It
// must be re-fetched after any append/truncation of vm.frames.
func (vm *VM) currentFrame() *Frame {
	return &vm.frames[len(vm.frames)-1]
}

// run is the instruction dispatch loop. It executes until the bottom
// frame's RETURN, or until an operation fails.
func (vm *VM) run() (bytecode.Value, error) {
	var lastReturn bytecode.Value

	for {
		fr := vm.currentFrame()
		chunk := fr.Function.Chunk

		if vm.trace {
			vm.printTrace(fr, chunk)
		}
		if vm.slow {
			vm.sleepStep()
		}

		raw, err := chunk.ByteAt(fr.IP)
		if err != nil {
			return bytecode.Value{}, vm.newRuntimeError(bytecode.ErrUnknownOpcode, err, "instruction pointer ran off the end of the chunk")
		}
		op := bytecode.OpCode(raw)
		fr.IP++

		switch op {
		case bytecode.OpNil:
			vm.push(bytecode.Nil())

		case bytecode.OpTrue:
			vm.push(bytecode.Bool(true))

		case bytecode.OpFalse:
			vm.push(bytecode.Bool(false))

		case bytecode.OpConstant:
			idx, err := chunk.ByteAt(fr.IP)
			if err != nil {
				return bytecode.Value{}, vm.newRuntimeError(bytecode.ErrUnknownOpcode, err, "CONSTANT: truncated operand")
			}
			fr.IP++
			cv, err := chunk.ConstantAt(int(idx))
			if err != nil {
				return bytecode.Value{}, vm.newRuntimeError(bytecode.ErrInvalidSlot, err, "CONSTANT: invalid constant index")
			}
			vm.push(cv)

		case bytecode.OpPop:
			if _, err := vm.pop(); err != nil {
				return bytecode.Value{}, vm.errorFromOpError(err)
			}

		case bytecode.OpAdd:
			b, err := vm.pop()
			if err != nil {
				return bytecode.Value{}, vm.errorFromOpError(err)
			}
			a, err := vm.pop()
			if err != nil {
				return bytecode.Value{}, vm.errorFromOpError(err)
			}
			res, err := bytecode.Add(vm.pool, a, b)
			if err != nil {
				return bytecode.Value{}, vm.errorFromOpError(err)
			}
			vm.push(res)

		case bytecode.OpSub:
			if err := vm.binaryOp(bytecode.Sub); err != nil {
				return bytecode.Value{}, err
			}

		case bytecode.OpMul:
			if err := vm.binaryOp(bytecode.Mul); err != nil {
				return bytecode.Value{}, err
			}

		case bytecode.OpDiv:
			if err := vm.binaryOp(bytecode.Div); err != nil {
				return bytecode.Value{}, err
			}

		case bytecode.OpMod:
			if err := vm.binaryOp(bytecode.Mod); err != nil {
				return bytecode.Value{}, err
			}

		case bytecode.OpAnd:
			if err := vm.binaryOp(bytecode.And); err != nil {
				return bytecode.Value{}, err
			}

		case bytecode.OpOr:
			if err := vm.binaryOp(bytecode.Or); err != nil {
				return bytecode.Value{}, err
			}

		case bytecode.OpNot:
			v, err := vm.pop()
			if err != nil {
				return bytecode.Value{}, vm.errorFromOpError(err)
			}
			res, err := bytecode.Not(v)
			if err != nil {
				return bytecode.Value{}, vm.errorFromOpError(err)
			}
			vm.push(res)

		case bytecode.OpNegate:
			v, err := vm.pop()
			if err != nil {
				return bytecode.Value{}, vm.errorFromOpError(err)
			}
			res, err := bytecode.Negate(v)
			if err != nil {
				return bytecode.Value{}, vm.errorFromOpError(err)
			}
			vm.push(res)

		case bytecode.OpEqual:
			b, err := vm.pop()
			if err != nil {
				return bytecode.Value{}, vm.errorFromOpError(err)
			}
			a, err := vm.pop()
			if err != nil {
				return bytecode.Value{}, vm.errorFromOpError(err)
			}
			vm.push(bytecode.Bool(a.Equal(b)))

		case bytecode.OpLess:
			if err := vm.binaryOp(bytecode.Less); err != nil {
				return bytecode.Value{}, err
			}

		case bytecode.OpGreater:
			if err := vm.binaryOp(bytecode.Greater); err != nil {
				return bytecode.Value{}, err
			}

		case bytecode.OpPrint:
			v, err := vm.pop()
			if err != nil {
				return bytecode.Value{}, vm.errorFromOpError(err)
			}
			fmt.Fprintln(vm.out, v.String())

		case bytecode.OpDefineGlobal:
			name, err := vm.pop()
			if err != nil {
				return bytecode.Value{}, vm.errorFromOpError(err)
			}
			val, err := vm.pop()
			if err != nil {
				return bytecode.Value{}, vm.errorFromOpError(err)
			}
			if name.Kind != bytecode.KindString {
				return bytecode.Value{}, vm.newRuntimeError(bytecode.ErrType, nil, "DEFINE_GLOBAL: name is not a string")
			}
			vm.globals[name.Str.String()] = val

		case bytecode.OpSetGlobal:
			name, err := vm.pop()
			if err != nil {
				return bytecode.Value{}, vm.errorFromOpError(err)
			}
			val, err := vm.pop()
			if err != nil {
				return bytecode.Value{}, vm.errorFromOpError(err)
			}
			if name.Kind != bytecode.KindString {
				return bytecode.Value{}, vm.newRuntimeError(bytecode.ErrType, nil, "SET_GLOBAL: name is not a string")
			}
			vm.globals[name.Str.String()] = val

		case bytecode.OpGetGlobal:
			name, err := vm.pop()
			if err != nil {
				return bytecode.Value{}, vm.errorFromOpError(err)
			}
			if name.Kind != bytecode.KindString {
				return bytecode.Value{}, vm.newRuntimeError(bytecode.ErrType, nil, "GET_GLOBAL: name is not a string")
			}
			val, ok := vm.globals[name.Str.String()]
			if !ok {
				return bytecode.Value{}, vm.newRuntimeError(bytecode.ErrUnboundGlobal, nil, fmt.Sprintf("undefined global %q", name.Str.String()))
			}
			vm.push(val)

		case bytecode.OpGetLocal:
			slot, err := chunk.ByteAt(fr.IP)
			if err != nil {
				return bytecode.Value{}, vm.newRuntimeError(bytecode.ErrUnknownOpcode, err, "GET_LOCAL: truncated operand")
			}
			fr.IP++
			idx := fr.SlotsBase + int(slot)
			if idx < 0 || idx >= vm.sp {
				return bytecode.Value{}, vm.newRuntimeError(bytecode.ErrInvalidSlot, nil, fmt.Sprintf("GET_LOCAL: slot %d out of range", slot))
			}
			vm.push(vm.stack[idx])

		case bytecode.OpSetLocal:
			slot, err := chunk.ByteAt(fr.IP)
			if err != nil {
				return bytecode.Value{}, vm.newRuntimeError(bytecode.ErrUnknownOpcode, err, "SET_LOCAL: truncated operand")
			}
			fr.IP++
			idx := fr.SlotsBase + int(slot)
			if idx < 0 || idx >= vm.sp {
				return bytecode.Value{}, vm.newRuntimeError(bytecode.ErrInvalidSlot, nil, fmt.Sprintf("SET_LOCAL: slot %d out of range", slot))
			}
			top, err := vm.peek(0)
			if err != nil {
				return bytecode.Value{}, vm.errorFromOpError(err)
			}
			vm.stack[idx] = top

		case bytecode.OpJump:
			off, err := chunk.ReadU16At(fr.IP)
			if err != nil {
				return bytecode.Value{}, vm.newRuntimeError(bytecode.ErrUnknownOpcode, err, "JUMP: truncated operand")
			}
			fr.IP += 2 + int(off)

		case bytecode.OpJumpIfFalse:
			off, err := chunk.ReadU16At(fr.IP)
			if err != nil {
				return bytecode.Value{}, vm.newRuntimeError(bytecode.ErrUnknownOpcode, err, "JUMP_IF_FALSE: truncated operand")
			}
			fr.IP += 2
			top, err := vm.peek(0)
			if err != nil {
				return bytecode.Value{}, vm.errorFromOpError(err)
			}
			falsey, err := bytecode.IsFalsey(top)
			if err != nil {
				return bytecode.Value{}, vm.errorFromOpError(err)
			}
			if falsey {
				fr.IP += int(off)
			}

		case bytecode.OpLoop:
			off, err := chunk.ReadU16At(fr.IP)
			if err != nil {
				return bytecode.Value{}, vm.newRuntimeError(bytecode.ErrUnknownOpcode, err, "LOOP: truncated operand")
			}
			fr.IP += 2 - int(off)

		case bytecode.OpCall:
			argc, err := chunk.ByteAt(fr.IP)
			if err != nil {
				return bytecode.Value{}, vm.newRuntimeError(bytecode.ErrUnknownOpcode, err, "CALL: truncated operand")
			}
			fr.IP++
			if err := vm.call(int(argc)); err != nil {
				return bytecode.Value{}, err
			}

		case bytecode.OpReturn:
			done, retVal, err := vm.doReturn()
			if err != nil {
				return bytecode.Value{}, err
			}
			lastReturn = retVal
			if done {
				return lastReturn, nil
			}

		case bytecode.OpClosure:
			if err := vm.makeClosure(fr, chunk); err != nil {
				return bytecode.Value{}, err
			}

		case bytecode.OpGetUpvalue:
			idx, err := chunk.ByteAt(fr.IP)
			if err != nil {
				return bytecode.Value{}, vm.newRuntimeError(bytecode.ErrUnknownOpcode, err, "GET_UPVALUE: truncated operand")
			}
			fr.IP++
			if fr.Closure == nil || int(idx) >= len(fr.Closure.Upvalues) {
				return bytecode.Value{}, vm.newRuntimeError(bytecode.ErrInvalidSlot, nil, fmt.Sprintf("GET_UPVALUE: invalid index %d", idx))
			}
			up := fr.Closure.Upvalues[idx]
			if up.IsClosed {
				vm.push(up.Closed)
			} else {
				vm.push(vm.stack[up.Index])
			}

		case bytecode.OpSetUpvalue:
			idx, err := chunk.ByteAt(fr.IP)
			if err != nil {
				return bytecode.Value{}, vm.newRuntimeError(bytecode.ErrUnknownOpcode, err, "SET_UPVALUE: truncated operand")
			}
			fr.IP++
			if fr.Closure == nil || int(idx) >= len(fr.Closure.Upvalues) {
				return bytecode.Value{}, vm.newRuntimeError(bytecode.ErrInvalidSlot, nil, fmt.Sprintf("SET_UPVALUE: invalid index %d", idx))
			}
			top, err := vm.peek(0)
			if err != nil {
				return bytecode.Value{}, vm.errorFromOpError(err)
			}
			up := fr.Closure.Upvalues[idx]
			if up.IsClosed {
				up.Closed = top
			} else {
				vm.stack[up.Index] = top
			}

		default:
			return bytecode.Value{}, vm.newRuntimeError(bytecode.ErrUnknownOpcode, nil, fmt.Sprintf("unknown opcode %d", op))
		}
	}
}

// binaryOp pops (b, a) in push order, applies op(a, b), and pushes the
// result, converting any failure into a RuntimeError.
func (vm *VM) binaryOp(op func(a, b bytecode.Value) (bytecode.Value, error)) error {
	b, err := vm.pop()
	if err != nil {
		return vm.errorFromOpError(err)
	}
	a, err := vm.pop()
	if err != nil {
		return vm.errorFromOpError(err)
	}
	res, err := op(a, b)
	if err != nil {
		return vm.errorFromOpError(err)
	}
	vm.push(res)
	return nil
}

// call implements CALL: peek the callee at depth argc, dispatch on its
// kind, and either push a new frame (Function/Closure) or invoke and
// return immediately (NativeFunction).
func (vm *VM) call(argc int) error {
	callee, err := vm.peek(argc)
	if err != nil {
		return vm.errorFromOpError(err)
	}

	switch callee.Kind {
	case bytecode.KindClosure:
		fn := callee.Closure.Function
		if argc != fn.Arity {
			return vm.newRuntimeError(bytecode.ErrArityMismatch, nil,
				fmt.Sprintf("function %s expects %d args, got %d", fn.Name, fn.Arity, argc))
		}
		vm.frames = append(vm.frames, Frame{
			Closure:   callee.Closure,
			Function:  fn,
			IP:        0,
			SlotsBase: vm.sp - argc - 1,
		})
		return nil

	case bytecode.KindFunction:
		fn := callee.Fn
		if argc != fn.Arity {
			return vm.newRuntimeError(bytecode.ErrArityMismatch, nil,
				fmt.Sprintf("function %s expects %d args, got %d", fn.Name, fn.Arity, argc))
		}
		vm.frames = append(vm.frames, Frame{
			Function:  fn,
			IP:        0,
			SlotsBase: vm.sp - argc - 1,
		})
		return nil

	case bytecode.KindNative:
		nf := callee.Native
		if argc != nf.Arity {
			return vm.newRuntimeError(bytecode.ErrArityMismatch, nil,
				fmt.Sprintf("native %s expects %d args, got %d", nf.Name, nf.Arity, argc))
		}
		args := make([]bytecode.Value, argc)
		for i := argc - 1; i >= 0; i-- {
			v, err := vm.pop()
			if err != nil {
				return vm.errorFromOpError(err)
			}
			args[i] = v
		}
		if _, err := vm.pop(); err != nil { // discard the callee itself
			return vm.errorFromOpError(err)
		}
		result, err := nf.Fn(args)
		if err != nil {
			return vm.newRuntimeError(bytecode.ErrType, err, fmt.Sprintf("native %s: %v", nf.Name, err))
		}
		vm.push(result)
		return nil

	default:
		return vm.newRuntimeError(bytecode.ErrCallTarget, nil, "can only call functions")
	}
}

// doReturn implements RETURN. It reports done=true once the bottom frame
// has returned, at which point the caller must stop the dispatch loop.
func (vm *VM) doReturn() (done bool, retVal bytecode.Value, err error) {
	frameIdx := len(vm.frames) - 1
	fr := vm.frames[frameIdx]

	vm.closeUpvalues(fr.SlotsBase)

	retVal, e := vm.pop()
	if e != nil {
		return false, bytecode.Value{}, vm.errorFromOpError(e)
	}

	vm.frames = vm.frames[:frameIdx]
	vm.sp = fr.SlotsBase
	vm.push(retVal)

	return frameIdx == 0, retVal, nil
}

// makeClosure implements CLOSURE: read the function constant and its
// upvalue table, resolving each upvalue either to a fresh open upvalue
// over the current frame's locals, or to a shared upvalue already held by
// the enclosing closure.
func (vm *VM) makeClosure(fr *Frame, chunk *bytecode.Chunk) error {
	fnIdx, err := chunk.ByteAt(fr.IP)
	if err != nil {
		return vm.newRuntimeError(bytecode.ErrUnknownOpcode, err, "CLOSURE: truncated operand")
	}
	fr.IP++

	cv, err := chunk.ConstantAt(int(fnIdx))
	if err != nil || cv.Kind != bytecode.KindFunction {
		return vm.newRuntimeError(bytecode.ErrInvalidSlot, err, "CLOSURE: constant is not a function")
	}
	fn := cv.Fn

	upvalues := make([]*bytecode.Upvalue, len(fn.Upvalues))
	for i, info := range fn.Upvalues {
		isLocal, err := chunk.ByteAt(fr.IP)
		if err != nil {
			return vm.newRuntimeError(bytecode.ErrUnknownOpcode, err, "CLOSURE: truncated upvalue table")
		}
		fr.IP++
		idx, err := chunk.ByteAt(fr.IP)
		if err != nil {
			return vm.newRuntimeError(bytecode.ErrUnknownOpcode, err, "CLOSURE: truncated upvalue table")
		}
		fr.IP++

		if isLocal != 0 {
			slot := fr.SlotsBase + int(idx)
			if slot < 0 || slot >= vm.sp {
				return vm.newRuntimeError(bytecode.ErrInvalidSlot, nil, fmt.Sprintf("CLOSURE: invalid local slot %d", slot))
			}
			upvalues[i] = vm.captureUpvalue(slot)
		} else {
			if fr.Closure == nil || int(idx) >= len(fr.Closure.Upvalues) {
				return vm.newRuntimeError(bytecode.ErrInvalidSlot, nil, fmt.Sprintf("CLOSURE: invalid enclosing upvalue %d", idx))
			}
			upvalues[i] = fr.Closure.Upvalues[idx]
		}
		_ = info
	}

	vm.push(bytecode.ClosureValue(&bytecode.Closure{Function: fn, Upvalues: upvalues}))
	return nil
}

// captureUpvalue returns an open upvalue over stack slot, sharing one
// already open over that slot if any frame's closure already holds it, so
// two closures capturing the same local observe each other's writes.
func (vm *VM) captureUpvalue(slot int) *bytecode.Upvalue {
	for i := len(vm.frames) - 1; i >= 0; i-- {
		if c := vm.frames[i].Closure; c != nil {
			for _, up := range c.Upvalues {
				if !up.IsClosed && up.Index == slot {
					return up
				}
			}
		}
	}
	return &bytecode.Upvalue{IsClosed: false, Index: slot}
}

// closeUpvalues closes every open upvalue pointing at a stack slot >=
// base, copying its current value onto the heap so it survives the
// returning frame. It must run before the frame's slots are reused.
func (vm *VM) closeUpvalues(base int) {
	for i := range vm.frames {
		c := vm.frames[i].Closure
		if c == nil {
			continue
		}
		for _, up := range c.Upvalues {
			if !up.IsClosed && up.Index >= base && up.Index < vm.sp {
				up.Closed = vm.stack[up.Index]
				up.IsClosed = true
			}
		}
	}
	for i := 0; i < vm.sp; i++ {
		if vm.stack[i].Kind != bytecode.KindClosure || vm.stack[i].Closure == nil {
			continue
		}
		for _, up := range vm.stack[i].Closure.Upvalues {
			if !up.IsClosed && up.Index >= base && up.Index < vm.sp {
				up.Closed = vm.stack[up.Index]
				up.IsClosed = true
			}
		}
	}
}

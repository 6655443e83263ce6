package vm

import (
	"fmt"
	"strings"

	"avenirvm/internal/bytecode"
)

// FrameInfo is a snapshot of one call frame at the moment a RuntimeError
// was raised, used to build the stack trace attached to the error.
type FrameInfo struct {
	Function string
	Line     int
	IP       int
}

// RuntimeError is returned by Interpret whenever a Value operation, a
// stack/frame bookkeeping check, or an opcode decode fails. It carries the
// failure's stable Kind, the faulting frame, a full call-stack snapshot,
// the VM's session id, and the underlying cause for Unwrap.
type RuntimeError struct {
	Kind    bytecode.ErrorKind
	Message string
	Session string
	Frame   FrameInfo
	Stack   []FrameInfo
	cause   error
}

func (e *RuntimeError) Error() string {
	loc := fmt.Sprintf("%s:%d", e.Frame.Function, e.Frame.Line)
	return fmt.Sprintf("[%s] %s: %s (%s)", e.Session, e.Kind, e.Message, loc)
}

// Unwrap exposes the underlying cause, if any, for errors.Is/As.
func (e *RuntimeError) Unwrap() error {
	return e.cause
}

// StackTrace renders the full call-stack snapshot, innermost frame first.
func (e *RuntimeError) StackTrace() string {
	var b strings.Builder
	for _, f := range e.Stack {
		fmt.Fprintf(&b, "  at %s:%d (ip=%d)\n", f.Function, f.Line, f.IP)
	}
	return b.String()
}

func (vm *VM) newRuntimeError(kind bytecode.ErrorKind, cause error, message string) *RuntimeError {
	stack := make([]FrameInfo, 0, len(vm.frames))
	for i := len(vm.frames) - 1; i >= 0; i-- {
		stack = append(stack, vm.frameInfo(&vm.frames[i]))
	}
	top := FrameInfo{}
	if len(stack) > 0 {
		top = stack[0]
	}
	return &RuntimeError{
		Kind:    kind,
		Message: message,
		Session: vm.sessionID,
		Frame:   top,
		Stack:   stack,
		cause:   cause,
	}
}

func (vm *VM) frameInfo(fr *Frame) FrameInfo {
	name := "<script>"
	var chunk *bytecode.Chunk
	if fr.Function != nil {
		name = fr.Function.Name
		chunk = fr.Function.Chunk
	}
	line := 0
	if chunk != nil {
		if l, err := chunk.LineAt(fr.IP); err == nil {
			line = l
		} else if fr.IP > 0 {
			if l, err := chunk.LineAt(fr.IP - 1); err == nil {
				line = l
			}
		}
	}
	return FrameInfo{Function: name, Line: line, IP: fr.IP}
}

// errorFromOpError converts a bytecode.OpError raised by a Value operation
// into a RuntimeError carrying frame context.
func (vm *VM) errorFromOpError(err error) *RuntimeError {
	if opErr, ok := err.(*bytecode.OpError); ok {
		return vm.newRuntimeError(opErr.Kind, err, opErr.Message)
	}
	return vm.newRuntimeError(bytecode.ErrAllocationFailure, err, err.Error())
}

package vm

import (
	"fmt"
	"strings"
	"time"

	"avenirvm/internal/bytecode"
)

// printTrace writes the current operand stack and the instruction about to
// execute to vm.out, mirroring clox's --trace-execution flag. Enabled via
// SetTrace.
func (vm *VM) printTrace(fr *Frame, chunk *bytecode.Chunk) {
	var b strings.Builder
	b.WriteString("          ")
	if vm.sp == 0 {
		b.WriteString("<empty>")
	}
	for i := 0; i < vm.sp; i++ {
		fmt.Fprintf(&b, "[ %s ]", vm.stack[i].String())
	}
	fmt.Fprintln(vm.out, b.String())

	line, next := chunk.DisassembleInstruction(fr.IP)
	_ = next
	fmt.Fprintln(vm.out, line)
}

// sleepStep pauses one second between instructions, for --slow demos.
func (vm *VM) sleepStep() {
	time.Sleep(time.Second)
}

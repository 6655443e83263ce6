package vm

import (
	"bytes"
	"strings"
	"testing"

	"avenirvm/internal/bytecode"
)

// TestVM_Arithmetic mirrors (3.4+2.6)*2.0 = 12.0: CONSTANT 1; CONSTANT 2;
// ADD; CONSTANT 0; MUL; RETURN, with constants [2.0, 3.4, 2.6].
func TestVM_Arithmetic(t *testing.T) {
	var chunk bytecode.Chunk
	c0 := chunk.AddConstant(bytecode.Number(2.0))
	c1 := chunk.AddConstant(bytecode.Number(3.4))
	c2 := chunk.AddConstant(bytecode.Number(2.6))

	chunk.WriteOpcode(bytecode.OpConstant, 1)
	chunk.WriteByte(byte(c1), 1)
	chunk.WriteOpcode(bytecode.OpConstant, 1)
	chunk.WriteByte(byte(c2), 1)
	chunk.WriteOpcode(bytecode.OpAdd, 1)
	chunk.WriteOpcode(bytecode.OpConstant, 1)
	chunk.WriteByte(byte(c0), 1)
	chunk.WriteOpcode(bytecode.OpMul, 1)
	chunk.WriteOpcode(bytecode.OpReturn, 1)

	m := NewVM(&chunk, bytecode.NewInternPool())
	v, res, err := m.Interpret()
	if err != nil {
		t.Fatalf("Interpret error: %v", err)
	}
	if res != ResultOk {
		t.Fatalf("expected ResultOk, got %s", res)
	}
	if v.Kind != bytecode.KindNumber || v.Number != 12.0 {
		t.Fatalf("expected 12.0, got %s", v.String())
	}

	if chunk.TotalLineCount() != chunk.Len() {
		t.Fatalf("lines.total_count (%d) != code.len (%d)", chunk.TotalLineCount(), chunk.Len())
	}
}

// TestVM_BooleanShortChain checks PRINT(true AND false), PRINT(true OR
// false), PRINT(NOT true) == false, true, false.
func TestVM_BooleanShortChain(t *testing.T) {
	var chunk bytecode.Chunk
	chunk.WriteOpcode(bytecode.OpTrue, 1)
	chunk.WriteOpcode(bytecode.OpFalse, 1)
	chunk.WriteOpcode(bytecode.OpAnd, 1)
	chunk.WriteOpcode(bytecode.OpPrint, 1)

	chunk.WriteOpcode(bytecode.OpTrue, 2)
	chunk.WriteOpcode(bytecode.OpFalse, 2)
	chunk.WriteOpcode(bytecode.OpOr, 2)
	chunk.WriteOpcode(bytecode.OpPrint, 2)

	chunk.WriteOpcode(bytecode.OpTrue, 3)
	chunk.WriteOpcode(bytecode.OpNot, 3)
	chunk.WriteOpcode(bytecode.OpPrint, 3)

	chunk.WriteOpcode(bytecode.OpNil, 4)
	chunk.WriteOpcode(bytecode.OpReturn, 4)

	var out bytes.Buffer
	m := NewVM(&chunk, bytecode.NewInternPool())
	m.SetOutput(&out)
	_, res, err := m.Interpret()
	if err != nil {
		t.Fatalf("Interpret error: %v", err)
	}
	if res != ResultOk {
		t.Fatalf("expected ResultOk, got %s", res)
	}

	got := strings.TrimRight(out.String(), "\n")
	want := "false\ntrue\nfalse"
	if got != want {
		t.Fatalf("output = %q, want %q", got, want)
	}
}

// TestVM_GlobalRoundTrip defines a global and reads it back.
func TestVM_GlobalRoundTrip(t *testing.T) {
	var chunk bytecode.Chunk
	pool := bytecode.NewInternPool()
	name := pool.Intern([]byte("x"))
	cVal := chunk.AddConstant(bytecode.Number(42))
	cName := chunk.AddConstant(bytecode.StringValue(name))

	chunk.WriteOpcode(bytecode.OpConstant, 1)
	chunk.WriteByte(byte(cVal), 1)
	chunk.WriteOpcode(bytecode.OpConstant, 1)
	chunk.WriteByte(byte(cName), 1)
	chunk.WriteOpcode(bytecode.OpDefineGlobal, 1)

	chunk.WriteOpcode(bytecode.OpConstant, 2)
	chunk.WriteByte(byte(cName), 2)
	chunk.WriteOpcode(bytecode.OpGetGlobal, 2)
	chunk.WriteOpcode(bytecode.OpReturn, 2)

	m := NewVM(&chunk, pool)
	v, _, err := m.Interpret()
	if err != nil {
		t.Fatalf("Interpret error: %v", err)
	}
	if v.Kind != bytecode.KindNumber || v.Number != 42 {
		t.Fatalf("expected 42, got %s", v.String())
	}
}

// TestVM_Conditional exercises JUMP_IF_FALSE on a true branch.
func TestVM_Conditional(t *testing.T) {
	var chunk bytecode.Chunk
	pool := bytecode.NewInternPool()
	cYes := chunk.AddConstant(bytecode.StringValue(pool.Intern([]byte("yes"))))
	cNo := chunk.AddConstant(bytecode.StringValue(pool.Intern([]byte("no"))))

	chunk.WriteOpcode(bytecode.OpTrue, 1) // off0, 1 byte
	chunk.WriteOpcode(bytecode.OpJumpIfFalse, 1)
	chunk.WriteU16(7, 1) // off1: 3 bytes, target = next(4)+7 = 11
	chunk.WriteOpcode(bytecode.OpPop, 2) // off4
	chunk.WriteOpcode(bytecode.OpConstant, 2)
	chunk.WriteByte(byte(cYes), 2) // off5, 2 bytes -> off7
	chunk.WriteOpcode(bytecode.OpPrint, 2) // off7 -> off8
	chunk.WriteOpcode(bytecode.OpJump, 2)
	chunk.WriteU16(4, 2) // off8: 3 bytes, target = next(11)+4 = 15
	chunk.WriteOpcode(bytecode.OpPop, 3) // off11: else branch
	chunk.WriteOpcode(bytecode.OpConstant, 3)
	chunk.WriteByte(byte(cNo), 3)
	chunk.WriteOpcode(bytecode.OpPrint, 3)
	chunk.WriteOpcode(bytecode.OpNil, 4) // off15
	chunk.WriteOpcode(bytecode.OpReturn, 4)

	if chunk.Len() != 17 {
		t.Fatalf("expected hand-computed chunk length 17, got %d", chunk.Len())
	}

	var out bytes.Buffer
	m := NewVM(&chunk, pool)
	m.SetOutput(&out)
	_, _, err := m.Interpret()
	if err != nil {
		t.Fatalf("Interpret error: %v", err)
	}
	if got := strings.TrimRight(out.String(), "\n"); got != "yes" {
		t.Fatalf("output = %q, want %q", got, "yes")
	}
}

// TestVM_JumpIfFalseDoesNotPop checks that JUMP_IF_FALSE leaves its
// condition on the stack rather than consuming it: FALSE; JUMP_IF_FALSE 1;
// TRUE; FALSE; EQUAL; RETURN skips the TRUE push (since the top is
// falsey) and lands on a second FALSE. EQUAL then compares that second
// FALSE against whatever JUMP_IF_FALSE left behind: if the jump had
// wrongly popped its condition, only one operand would remain and EQUAL
// would underflow the stack instead of returning true.
func TestVM_JumpIfFalseDoesNotPop(t *testing.T) {
	var chunk bytecode.Chunk
	chunk.WriteOpcode(bytecode.OpFalse, 1)       // off0 -> off1
	chunk.WriteOpcode(bytecode.OpJumpIfFalse, 1) // off1, 3 bytes -> off4
	chunk.WriteU16(1, 1)                         // target = next(4)+1 = 5, skipping TRUE at off4
	chunk.WriteOpcode(bytecode.OpTrue, 1)        // off4 -> off5 (skipped)
	chunk.WriteOpcode(bytecode.OpFalse, 1)       // off5 -> off6
	chunk.WriteOpcode(bytecode.OpEqual, 1)       // off6 -> off7
	chunk.WriteOpcode(bytecode.OpReturn, 1)      // off7 -> off8

	m := NewVM(&chunk, bytecode.NewInternPool())
	v, _, err := m.Interpret()
	if err != nil {
		t.Fatalf("Interpret error: %v", err)
	}
	if v.Kind != bytecode.KindBool || v.Bool != true {
		t.Fatalf("expected EQUAL to see two operands and return true, got %s", v.String())
	}
}

// TestVM_WhileLoop counts a local down from 2 to 0, printing each step.
func TestVM_WhileLoop(t *testing.T) {
	var chunk bytecode.Chunk
	cInit := chunk.AddConstant(bytecode.Number(2))
	cZero := chunk.AddConstant(bytecode.Number(0))
	cOne := chunk.AddConstant(bytecode.Number(1))

	chunk.WriteOpcode(bytecode.OpConstant, 1) // off0: declare local i = 2, lands in slot 1
	chunk.WriteByte(byte(cInit), 1)           // -> off2

	// loopStart = off2
	chunk.WriteOpcode(bytecode.OpGetLocal, 2)
	chunk.WriteByte(1, 2) // off2 -> off4
	chunk.WriteOpcode(bytecode.OpConstant, 2)
	chunk.WriteByte(byte(cZero), 2) // off4 -> off6
	chunk.WriteOpcode(bytecode.OpLess, 2) // off6 -> off7
	chunk.WriteOpcode(bytecode.OpNot, 2)  // off7 -> off8
	chunk.WriteOpcode(bytecode.OpJumpIfFalse, 2)
	chunk.WriteU16(15, 2) // off8: 3 bytes -> off11, target = 11+15 = 26
	chunk.WriteOpcode(bytecode.OpPop, 3) // off11 -> off12
	chunk.WriteOpcode(bytecode.OpGetLocal, 3)
	chunk.WriteByte(1, 3) // off12 -> off14
	chunk.WriteOpcode(bytecode.OpPrint, 3) // off14 -> off15
	chunk.WriteOpcode(bytecode.OpGetLocal, 4)
	chunk.WriteByte(1, 4) // off15 -> off17
	chunk.WriteOpcode(bytecode.OpConstant, 4)
	chunk.WriteByte(byte(cOne), 4) // off17 -> off19
	chunk.WriteOpcode(bytecode.OpSub, 4) // off19 -> off20
	chunk.WriteOpcode(bytecode.OpSetLocal, 4)
	chunk.WriteByte(1, 4) // off20 -> off22
	chunk.WriteOpcode(bytecode.OpPop, 4) // off22 -> off23
	chunk.WriteOpcode(bytecode.OpLoop, 4)
	chunk.WriteU16(24, 4) // off23: 3 bytes -> off26, target = 26-24 = 2 = loopStart
	chunk.WriteOpcode(bytecode.OpPop, 5) // off26: loop end, pop false condition
	chunk.WriteOpcode(bytecode.OpNil, 5)
	chunk.WriteOpcode(bytecode.OpReturn, 5)

	var out bytes.Buffer
	m := NewVM(&chunk, bytecode.NewInternPool())
	m.SetOutput(&out)
	_, _, err := m.Interpret()
	if err != nil {
		t.Fatalf("Interpret error: %v", err)
	}
	if got := strings.TrimRight(out.String(), "\n"); got != "2\n1\n0" {
		t.Fatalf("output = %q, want %q", got, "2\\n1\\n0")
	}
}

// TestVM_FactorialRecursion computes 5! = 120 via a self-referencing global
// function value (no CLOSURE opcode involved).
func TestVM_FactorialRecursion(t *testing.T) {
	pool := bytecode.NewInternPool()
	nameFac := pool.Intern([]byte("fac"))

	var facChunk bytecode.Chunk
	cTwo := facChunk.AddConstant(bytecode.Number(2))
	cOne := facChunk.AddConstant(bytecode.Number(1))
	cName := facChunk.AddConstant(bytecode.StringValue(nameFac))

	facChunk.WriteOpcode(bytecode.OpGetLocal, 1)
	facChunk.WriteByte(1, 1) // off0 -> off2: push n
	facChunk.WriteOpcode(bytecode.OpConstant, 1)
	facChunk.WriteByte(byte(cTwo), 1) // off2 -> off4
	facChunk.WriteOpcode(bytecode.OpLess, 1) // off4 -> off5
	facChunk.WriteOpcode(bytecode.OpJumpIfFalse, 1)
	facChunk.WriteU16(4, 1) // off5: 3 bytes -> off8, target = 8+4=12
	facChunk.WriteOpcode(bytecode.OpPop, 2) // off8 -> off9
	facChunk.WriteOpcode(bytecode.OpConstant, 2)
	facChunk.WriteByte(byte(cOne), 2) // off9 -> off11
	facChunk.WriteOpcode(bytecode.OpReturn, 2) // off11 -> off12
	facChunk.WriteOpcode(bytecode.OpPop, 3) // off12: else branch target -> off13
	facChunk.WriteOpcode(bytecode.OpGetLocal, 3)
	facChunk.WriteByte(1, 3) // off13 -> off15: push n
	facChunk.WriteOpcode(bytecode.OpConstant, 3)
	facChunk.WriteByte(byte(cName), 3) // off15 -> off17
	facChunk.WriteOpcode(bytecode.OpGetGlobal, 3) // off17 -> off18: push fac
	facChunk.WriteOpcode(bytecode.OpGetLocal, 3)
	facChunk.WriteByte(1, 3) // off18 -> off20: push n
	facChunk.WriteOpcode(bytecode.OpConstant, 3)
	facChunk.WriteByte(byte(cOne), 3) // off20 -> off22
	facChunk.WriteOpcode(bytecode.OpSub, 3) // off22 -> off23: n-1
	facChunk.WriteOpcode(bytecode.OpCall, 3)
	facChunk.WriteByte(1, 3) // off23 -> off25: call fac(n-1)
	facChunk.WriteOpcode(bytecode.OpMul, 3) // off25 -> off26: n * fac(n-1)
	facChunk.WriteOpcode(bytecode.OpReturn, 3)

	facFn := &bytecode.Function{Name: "fac", Arity: 1, Chunk: &facChunk}

	var top bytecode.Chunk
	cFn := top.AddConstant(bytecode.FunctionValue(facFn))
	cNameTop := top.AddConstant(bytecode.StringValue(nameFac))
	cFive := top.AddConstant(bytecode.Number(5))

	top.WriteOpcode(bytecode.OpConstant, 1)
	top.WriteByte(byte(cFn), 1)
	top.WriteOpcode(bytecode.OpConstant, 1)
	top.WriteByte(byte(cNameTop), 1)
	top.WriteOpcode(bytecode.OpDefineGlobal, 1)

	top.WriteOpcode(bytecode.OpConstant, 2)
	top.WriteByte(byte(cNameTop), 2)
	top.WriteOpcode(bytecode.OpGetGlobal, 2)
	top.WriteOpcode(bytecode.OpConstant, 2)
	top.WriteByte(byte(cFive), 2)
	top.WriteOpcode(bytecode.OpCall, 2)
	top.WriteByte(1, 2)
	top.WriteOpcode(bytecode.OpReturn, 2)

	m := NewVM(&top, pool)
	v, _, err := m.Interpret()
	if err != nil {
		t.Fatalf("Interpret error: %v", err)
	}
	if v.Kind != bytecode.KindNumber || v.Number != 120 {
		t.Fatalf("expected 120, got %s", v.String())
	}
}

// TestVM_TypeErrorOnMixedArithmetic checks that ADD between a number and a
// boolean raises a Type RuntimeError rather than silently coercing.
func TestVM_TypeErrorOnMixedArithmetic(t *testing.T) {
	var chunk bytecode.Chunk
	cNum := chunk.AddConstant(bytecode.Number(1))

	chunk.WriteOpcode(bytecode.OpConstant, 1)
	chunk.WriteByte(byte(cNum), 1)
	chunk.WriteOpcode(bytecode.OpTrue, 1)
	chunk.WriteOpcode(bytecode.OpAdd, 1)
	chunk.WriteOpcode(bytecode.OpReturn, 1)

	m := NewVM(&chunk, bytecode.NewInternPool())
	_, res, err := m.Interpret()
	if res != ResultRuntimeError {
		t.Fatalf("expected ResultRuntimeError, got %s", res)
	}
	rerr, ok := err.(*RuntimeError)
	if !ok {
		t.Fatalf("expected *RuntimeError, got %T", err)
	}
	if rerr.Kind != bytecode.ErrType {
		t.Fatalf("expected ErrType, got %s", rerr.Kind)
	}
}

// TestVM_UnboundGlobal checks GET_GLOBAL on an undefined name.
func TestVM_UnboundGlobal(t *testing.T) {
	var chunk bytecode.Chunk
	pool := bytecode.NewInternPool()
	cName := chunk.AddConstant(bytecode.StringValue(pool.Intern([]byte("missing"))))

	chunk.WriteOpcode(bytecode.OpConstant, 1)
	chunk.WriteByte(byte(cName), 1)
	chunk.WriteOpcode(bytecode.OpGetGlobal, 1)
	chunk.WriteOpcode(bytecode.OpReturn, 1)

	m := NewVM(&chunk, pool)
	_, res, err := m.Interpret()
	if res != ResultRuntimeError {
		t.Fatalf("expected ResultRuntimeError, got %s", res)
	}
	rerr := err.(*RuntimeError)
	if rerr.Kind != bytecode.ErrUnboundGlobal {
		t.Fatalf("expected ErrUnboundGlobal, got %s", rerr.Kind)
	}
}

// TestVM_CallTargetNotCallable checks CALL on a non-callable value.
func TestVM_CallTargetNotCallable(t *testing.T) {
	var chunk bytecode.Chunk
	cNum := chunk.AddConstant(bytecode.Number(42))

	chunk.WriteOpcode(bytecode.OpConstant, 1)
	chunk.WriteByte(byte(cNum), 1)
	chunk.WriteOpcode(bytecode.OpCall, 1)
	chunk.WriteByte(0, 1)
	chunk.WriteOpcode(bytecode.OpReturn, 1)

	m := NewVM(&chunk, bytecode.NewInternPool())
	_, res, err := m.Interpret()
	if res != ResultRuntimeError {
		t.Fatalf("expected ResultRuntimeError, got %s", res)
	}
	rerr := err.(*RuntimeError)
	if rerr.Kind != bytecode.ErrCallTarget {
		t.Fatalf("expected ErrCallTarget, got %s", rerr.Kind)
	}
}

// TestVM_ArityMismatch checks that calling a 1-arg function with 0 args
// raises ArityMismatch.
func TestVM_ArityMismatch(t *testing.T) {
	var fnChunk bytecode.Chunk
	fnChunk.WriteOpcode(bytecode.OpNil, 1)
	fnChunk.WriteOpcode(bytecode.OpReturn, 1)
	fn := &bytecode.Function{Name: "needs_one", Arity: 1, Chunk: &fnChunk}

	var chunk bytecode.Chunk
	cFn := chunk.AddConstant(bytecode.FunctionValue(fn))
	chunk.WriteOpcode(bytecode.OpConstant, 1)
	chunk.WriteByte(byte(cFn), 1)
	chunk.WriteOpcode(bytecode.OpCall, 1)
	chunk.WriteByte(0, 1)
	chunk.WriteOpcode(bytecode.OpReturn, 1)

	m := NewVM(&chunk, bytecode.NewInternPool())
	_, res, err := m.Interpret()
	if res != ResultRuntimeError {
		t.Fatalf("expected ResultRuntimeError, got %s", res)
	}
	rerr := err.(*RuntimeError)
	if rerr.Kind != bytecode.ErrArityMismatch {
		t.Fatalf("expected ErrArityMismatch, got %s", rerr.Kind)
	}
}

// TestVM_ClosureUpvalues builds a closure-making function that captures a
// local and returns it unchanged, proving open-upvalue capture works: inner
// reads n through an open upvalue while outer's frame is still live. The
// upvalue is never closed in this program.
func TestVM_ClosureUpvalues(t *testing.T) {
	// inner(): GET_UPVALUE 0; RETURN
	var innerChunk bytecode.Chunk
	innerChunk.WriteOpcode(bytecode.OpGetUpvalue, 1)
	innerChunk.WriteByte(0, 1)
	innerChunk.WriteOpcode(bytecode.OpReturn, 1)
	innerFn := &bytecode.Function{
		Name:     "inner",
		Arity:    0,
		Chunk:    &innerChunk,
		Upvalues: []bytecode.UpvalueInfo{{IsLocal: true, Index: 1}},
	}

	// outer(n): CLOSURE inner (capturing local n); CALL 0; RETURN
	var outerChunk bytecode.Chunk
	cInner := outerChunk.AddConstant(bytecode.FunctionValue(innerFn))
	outerChunk.WriteOpcode(bytecode.OpClosure, 1)
	outerChunk.WriteByte(byte(cInner), 1)
	outerChunk.WriteByte(1, 1) // isLocal = true
	outerChunk.WriteByte(1, 1) // index = slot 1 (the parameter n)
	outerChunk.WriteOpcode(bytecode.OpCall, 1)
	outerChunk.WriteByte(0, 1)
	outerChunk.WriteOpcode(bytecode.OpReturn, 1)
	outerFn := &bytecode.Function{Name: "outer", Arity: 1, Chunk: &outerChunk}

	var top bytecode.Chunk
	cOuter := top.AddConstant(bytecode.FunctionValue(outerFn))
	cArg := top.AddConstant(bytecode.Number(7))
	top.WriteOpcode(bytecode.OpConstant, 1)
	top.WriteByte(byte(cOuter), 1)
	top.WriteOpcode(bytecode.OpConstant, 1)
	top.WriteByte(byte(cArg), 1)
	top.WriteOpcode(bytecode.OpCall, 1)
	top.WriteByte(1, 1)
	top.WriteOpcode(bytecode.OpReturn, 1)

	m := NewVM(&top, bytecode.NewInternPool())
	v, _, err := m.Interpret()
	if err != nil {
		t.Fatalf("Interpret error: %v", err)
	}
	if v.Kind != bytecode.KindNumber || v.Number != 7 {
		t.Fatalf("expected 7, got %s", v.String())
	}
}

// TestChunk_DisassembleInstructionWalksWithoutGaps checks that repeatedly
// calling DisassembleInstruction from 0 using the returned next offset
// visits every byte exactly once.
func TestChunk_DisassembleInstructionWalksWithoutGaps(t *testing.T) {
	var chunk bytecode.Chunk
	c0 := chunk.AddConstant(bytecode.Number(1))
	chunk.WriteOpcode(bytecode.OpConstant, 1)
	chunk.WriteByte(byte(c0), 1)
	chunk.WriteOpcode(bytecode.OpReturn, 1)

	offset := 0
	count := 0
	for offset < chunk.Len() {
		_, next := chunk.DisassembleInstruction(offset)
		if next <= offset {
			t.Fatalf("disassembler made no forward progress at offset %d", offset)
		}
		offset = next
		count++
	}
	if offset != chunk.Len() {
		t.Fatalf("walk ended at %d, chunk length is %d", offset, chunk.Len())
	}
	if count != 2 {
		t.Fatalf("expected 2 instructions, counted %d", count)
	}
}

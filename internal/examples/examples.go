// Package examples hand-assembles a handful of chunks the CLI's -x flag
// can run. It is a thin consumer of the bytecode-building API, not a
// general front-end: there is no parser here, only Go code constructing
// instruction streams directly.
package examples

import "avenirvm/internal/bytecode"

// Example pairs a name with a chunk builder. Build takes the pool the
// caller's VM will use, so any interned string constants the example
// needs share that VM's identity guarantees.
type Example struct {
	Name        string
	Description string
	Build       func(pool *bytecode.InternPool) *bytecode.Chunk
}

// List returns every built-in example, in a stable order, each a small
// hand-assembled chunk exercising one corner of the instruction set end
// to end.
func List() []Example {
	return []Example{
		{"arithmetic", "(3.4 + 2.6) * 2.0", buildArithmetic},
		{"booleans", "short boolean chain: AND, OR, NOT", buildBooleans},
		{"globals", "define and read back a global", buildGlobals},
		{"conditional", "if/else via JUMP_IF_FALSE", buildConditional},
		{"loop", "while loop counting 2, 1, 0", buildLoop},
		{"factorial", "factorial(5) via global self-recursion", buildFactorial},
		{"closure", "a closure capturing an outer local", buildClosure},
	}
}

// Find looks an example up by name, for the CLI's -x flag.
func Find(name string) (Example, bool) {
	for _, ex := range List() {
		if ex.Name == name {
			return ex, true
		}
	}
	return Example{}, false
}

func buildArithmetic(pool *bytecode.InternPool) *bytecode.Chunk {
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
	chunk.WriteOpcode(bytecode.OpPrint, 1)
	chunk.WriteOpcode(bytecode.OpNil, 1)
	chunk.WriteOpcode(bytecode.OpReturn, 1)
	return &chunk
}

func buildBooleans(pool *bytecode.InternPool) *bytecode.Chunk {
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
	return &chunk
}

func buildGlobals(pool *bytecode.InternPool) *bytecode.Chunk {
	var chunk bytecode.Chunk
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
	chunk.WriteOpcode(bytecode.OpPrint, 2)
	chunk.WriteOpcode(bytecode.OpNil, 2)
	chunk.WriteOpcode(bytecode.OpReturn, 2)
	return &chunk
}

func buildConditional(pool *bytecode.InternPool) *bytecode.Chunk {
	var chunk bytecode.Chunk
	cYes := chunk.AddConstant(bytecode.StringValue(pool.Intern([]byte("yes"))))
	cNo := chunk.AddConstant(bytecode.StringValue(pool.Intern([]byte("no"))))

	chunk.WriteOpcode(bytecode.OpTrue, 1)
	chunk.WriteOpcode(bytecode.OpJumpIfFalse, 1)
	chunk.WriteU16(7, 1)
	chunk.WriteOpcode(bytecode.OpPop, 2)
	chunk.WriteOpcode(bytecode.OpConstant, 2)
	chunk.WriteByte(byte(cYes), 2)
	chunk.WriteOpcode(bytecode.OpPrint, 2)
	chunk.WriteOpcode(bytecode.OpJump, 2)
	chunk.WriteU16(4, 2)
	chunk.WriteOpcode(bytecode.OpPop, 3)
	chunk.WriteOpcode(bytecode.OpConstant, 3)
	chunk.WriteByte(byte(cNo), 3)
	chunk.WriteOpcode(bytecode.OpPrint, 3)
	chunk.WriteOpcode(bytecode.OpNil, 4)
	chunk.WriteOpcode(bytecode.OpReturn, 4)
	return &chunk
}

func buildLoop(pool *bytecode.InternPool) *bytecode.Chunk {
	var chunk bytecode.Chunk
	cInit := chunk.AddConstant(bytecode.Number(2))
	cZero := chunk.AddConstant(bytecode.Number(0))
	cOne := chunk.AddConstant(bytecode.Number(1))

	chunk.WriteOpcode(bytecode.OpConstant, 1)
	chunk.WriteByte(byte(cInit), 1)

	chunk.WriteOpcode(bytecode.OpGetLocal, 2)
	chunk.WriteByte(1, 2)
	chunk.WriteOpcode(bytecode.OpConstant, 2)
	chunk.WriteByte(byte(cZero), 2)
	chunk.WriteOpcode(bytecode.OpLess, 2)
	chunk.WriteOpcode(bytecode.OpNot, 2)
	chunk.WriteOpcode(bytecode.OpJumpIfFalse, 2)
	chunk.WriteU16(15, 2)
	chunk.WriteOpcode(bytecode.OpPop, 3)
	chunk.WriteOpcode(bytecode.OpGetLocal, 3)
	chunk.WriteByte(1, 3)
	chunk.WriteOpcode(bytecode.OpPrint, 3)
	chunk.WriteOpcode(bytecode.OpGetLocal, 4)
	chunk.WriteByte(1, 4)
	chunk.WriteOpcode(bytecode.OpConstant, 4)
	chunk.WriteByte(byte(cOne), 4)
	chunk.WriteOpcode(bytecode.OpSub, 4)
	chunk.WriteOpcode(bytecode.OpSetLocal, 4)
	chunk.WriteByte(1, 4)
	chunk.WriteOpcode(bytecode.OpPop, 4)
	chunk.WriteOpcode(bytecode.OpLoop, 4)
	chunk.WriteU16(24, 4)
	chunk.WriteOpcode(bytecode.OpPop, 5)
	chunk.WriteOpcode(bytecode.OpNil, 5)
	chunk.WriteOpcode(bytecode.OpReturn, 5)
	return &chunk
}

func buildFactorial(pool *bytecode.InternPool) *bytecode.Chunk {
	nameFac := pool.Intern([]byte("fac"))

	var facChunk bytecode.Chunk
	cTwo := facChunk.AddConstant(bytecode.Number(2))
	cOne := facChunk.AddConstant(bytecode.Number(1))
	cName := facChunk.AddConstant(bytecode.StringValue(nameFac))

	facChunk.WriteOpcode(bytecode.OpGetLocal, 1)
	facChunk.WriteByte(1, 1)
	facChunk.WriteOpcode(bytecode.OpConstant, 1)
	facChunk.WriteByte(byte(cTwo), 1)
	facChunk.WriteOpcode(bytecode.OpLess, 1)
	facChunk.WriteOpcode(bytecode.OpJumpIfFalse, 1)
	facChunk.WriteU16(4, 1)
	facChunk.WriteOpcode(bytecode.OpPop, 2)
	facChunk.WriteOpcode(bytecode.OpConstant, 2)
	facChunk.WriteByte(byte(cOne), 2)
	facChunk.WriteOpcode(bytecode.OpReturn, 2)
	facChunk.WriteOpcode(bytecode.OpPop, 3)
	facChunk.WriteOpcode(bytecode.OpGetLocal, 3)
	facChunk.WriteByte(1, 3)
	facChunk.WriteOpcode(bytecode.OpConstant, 3)
	facChunk.WriteByte(byte(cName), 3)
	facChunk.WriteOpcode(bytecode.OpGetGlobal, 3)
	facChunk.WriteOpcode(bytecode.OpGetLocal, 3)
	facChunk.WriteByte(1, 3)
	facChunk.WriteOpcode(bytecode.OpConstant, 3)
	facChunk.WriteByte(byte(cOne), 3)
	facChunk.WriteOpcode(bytecode.OpSub, 3)
	facChunk.WriteOpcode(bytecode.OpCall, 3)
	facChunk.WriteByte(1, 3)
	facChunk.WriteOpcode(bytecode.OpMul, 3)
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
	top.WriteOpcode(bytecode.OpPrint, 2)
	top.WriteOpcode(bytecode.OpNil, 2)
	top.WriteOpcode(bytecode.OpReturn, 2)
	return &top
}

func buildClosure(pool *bytecode.InternPool) *bytecode.Chunk {
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

	var outerChunk bytecode.Chunk
	cInner := outerChunk.AddConstant(bytecode.FunctionValue(innerFn))
	outerChunk.WriteOpcode(bytecode.OpClosure, 1)
	outerChunk.WriteByte(byte(cInner), 1)
	outerChunk.WriteByte(1, 1)
	outerChunk.WriteByte(1, 1)
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
	top.WriteOpcode(bytecode.OpPrint, 1)
	top.WriteOpcode(bytecode.OpNil, 1)
	top.WriteOpcode(bytecode.OpReturn, 1)
	return &top
}

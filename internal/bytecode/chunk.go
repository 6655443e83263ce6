package bytecode

import (
	"fmt"

	"avenirvm/internal/bytebuffer"
	"avenirvm/internal/linetable"
)

// Chunk bundles an instruction stream, the constant pool it indexes into,
// and the line run-list used for disassembly and diagnostics. A Chunk
// exclusively owns all three; destroying a Chunk destroys them.
type Chunk struct {
	code      bytebuffer.Buffer
	lines     linetable.Table
	constants []Value
}

// WriteOpcode appends an opcode byte, recording line for it.
func (c *Chunk) WriteOpcode(op OpCode, line int) {
	c.WriteByte(byte(op), line)
}

// WriteByte appends a raw byte (an opcode or an operand byte), recording
// line for it.
func (c *Chunk) WriteByte(b byte, line int) {
	c.code.Push(b)
	c.lines.Add(line)
}

// WriteU16 appends a big-endian 16-bit operand across two bytes, both
// attributed to line. Used for jump offsets.
func (c *Chunk) WriteU16(v uint16, line int) {
	c.WriteByte(byte(v>>8), line)
	c.WriteByte(byte(v), line)
}

// AddConstant appends v to the constant pool and returns its index.
func (c *Chunk) AddConstant(v Value) int {
	c.constants = append(c.constants, v)
	return len(c.constants) - 1
}

// Len returns the number of instruction bytes in the chunk.
func (c *Chunk) Len() int {
	return c.code.Len()
}

// ByteAt returns the raw byte at offset i.
func (c *Chunk) ByteAt(i int) (byte, error) {
	return c.code.At(i)
}

// ConstantAt returns the constant at idx.
func (c *Chunk) ConstantAt(idx int) (Value, error) {
	if idx < 0 || idx >= len(c.constants) {
		return Value{}, fmt.Errorf("bytecode: constant index %d out of range (len=%d)", idx, len(c.constants))
	}
	return c.constants[idx], nil
}

// NumConstants returns the size of the constant pool.
func (c *Chunk) NumConstants() int {
	return len(c.constants)
}

// LineAt returns the source line covering byte offset.
func (c *Chunk) LineAt(offset int) (int, error) {
	return c.lines.GetLine(offset)
}

// TotalLineCount mirrors the code length; callers use it to check the
// lines.total_count == code.len invariant.
func (c *Chunk) TotalLineCount() int {
	return c.lines.TotalCount()
}

// ReadU16At reads the big-endian 16-bit operand starting at offset.
func (c *Chunk) ReadU16At(offset int) (uint16, error) {
	hi, err := c.code.At(offset)
	if err != nil {
		return 0, err
	}
	lo, err := c.code.At(offset + 1)
	if err != nil {
		return 0, err
	}
	return uint16(hi)<<8 | uint16(lo), nil
}

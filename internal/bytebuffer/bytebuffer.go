// Package bytebuffer implements the append-only byte stream that backs a
// bytecode chunk's instruction stream.
package bytebuffer

import "fmt"

// Buffer is an append-only sequence of bytes with indexed reads.
type Buffer struct {
	bytes []byte
}

// Push appends b to the end of the buffer.
func (buf *Buffer) Push(b byte) {
	buf.bytes = append(buf.bytes, b)
}

// At returns the byte at index i, or an error if i is out of range.
func (buf *Buffer) At(i int) (byte, error) {
	if i < 0 || i >= len(buf.bytes) {
		return 0, fmt.Errorf("bytebuffer: index %d out of range (len=%d)", i, len(buf.bytes))
	}
	return buf.bytes[i], nil
}

// Len returns the number of bytes currently stored.
func (buf *Buffer) Len() int {
	return len(buf.bytes)
}

// Bytes exposes the underlying slice for read-only iteration (disassembly,
// tracing). Callers must not mutate the result.
func (buf *Buffer) Bytes() []byte {
	return buf.bytes
}

package bytecode

import (
	"fmt"
	"strings"

	"github.com/dustin/go-humanize"
)

// Disassemble renders the full instruction stream of c as a human-readable
// listing, used both for the CLI's preamble print and (one instruction at
// a time, via DisassembleInstruction) for step tracing.
func (c *Chunk) Disassemble(name string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "== %s (%s bytes, %s constants) ==\n",
		name, humanize.Comma(int64(c.Len())), humanize.Comma(int64(c.NumConstants())))
	for offset := 0; offset < c.Len(); {
		line, next := c.DisassembleInstruction(offset)
		b.WriteString(line)
		b.WriteByte('\n')
		offset = next
	}
	return b.String()
}

// DisassembleInstruction pretty-prints the instruction at offset and
// returns the byte offset of the next instruction, taking the decoded
// operand width into account.
func (c *Chunk) DisassembleInstruction(offset int) (string, int) {
	raw, err := c.ByteAt(offset)
	if err != nil {
		return fmt.Sprintf("%04d ERROR %v", offset, err), offset + 1
	}
	op := OpCode(raw)

	lineCol := "   |"
	if line, err := c.LineAt(offset); err == nil {
		if offset == 0 {
			lineCol = fmt.Sprintf("%4d", line)
		} else if prevLine, prevErr := c.LineAt(offset - 1); prevErr == nil && prevLine == line {
			lineCol = "   |"
		} else {
			lineCol = fmt.Sprintf("%4d", line)
		}
	}

	name := op.String()
	if name == "UNKNOWN" {
		return fmt.Sprintf("%04d %s %-14s %d", offset, lineCol, name, raw), offset + 1
	}

	next := offset + 1
	detail := ""

	switch op {
	case OpConstant:
		idx, err := c.ByteAt(next)
		if err != nil {
			return fmt.Sprintf("%04d %s %-14s <truncated>", offset, lineCol, name), next
		}
		next++
		if v, err := c.ConstantAt(int(idx)); err == nil {
			detail = fmt.Sprintf("%-4d ; %s", idx, v.String())
		} else {
			detail = fmt.Sprintf("%-4d ; <invalid>", idx)
		}

	case OpGetLocal, OpSetLocal, OpCall, OpGetUpvalue, OpSetUpvalue:
		slot, err := c.ByteAt(next)
		if err != nil {
			return fmt.Sprintf("%04d %s %-14s <truncated>", offset, lineCol, name), next
		}
		next++
		detail = fmt.Sprintf("%d", slot)

	case OpJump, OpJumpIfFalse, OpLoop:
		off, err := c.ReadU16At(next)
		if err != nil {
			return fmt.Sprintf("%04d %s %-14s <truncated>", offset, lineCol, name), next + 2
		}
		next += 2
		if op == OpLoop {
			detail = fmt.Sprintf("%d -> %d", off, next-int(off))
		} else {
			detail = fmt.Sprintf("%d -> %d", off, next+int(off))
		}

	case OpClosure:
		fnIdx, err := c.ByteAt(next)
		if err != nil {
			return fmt.Sprintf("%04d %s %-14s <truncated>", offset, lineCol, name), next
		}
		next++
		detail = fmt.Sprintf("%d", fnIdx)
		if fv, err := c.ConstantAt(int(fnIdx)); err == nil && fv.Kind == KindFunction && fv.Fn != nil {
			for i := 0; i < len(fv.Fn.Upvalues); i++ {
				isLocal, err1 := c.ByteAt(next)
				idx, err2 := c.ByteAt(next + 1)
				if err1 != nil || err2 != nil {
					break
				}
				next += 2
				kind := "upvalue"
				if isLocal != 0 {
					kind = "local"
				}
				detail += fmt.Sprintf(" (%s %d)", kind, idx)
			}
		}
	}

	if detail == "" {
		return fmt.Sprintf("%04d %s %-14s", offset, lineCol, name), next
	}
	return fmt.Sprintf("%04d %s %-14s %s", offset, lineCol, name, detail), next
}

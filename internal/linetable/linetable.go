// Package linetable implements a run-length-encoded mapping from bytecode
// offset to source line, used by the disassembler and by runtime
// diagnostics to report a line number for a faulting instruction.
package linetable

import "fmt"

// run is a contiguous span of instruction bytes that share a source line.
type run struct {
	count int
	line  int
}

// Table is a run-length-encoded offset -> line mapping.
type Table struct {
	runs  []run
	total int
}

// Add records that the next instruction byte belongs to line. If line
// matches the most recent run it extends that run; otherwise it starts a
// new one.
func (t *Table) Add(line int) {
	if n := len(t.runs); n > 0 && t.runs[n-1].line == line {
		t.runs[n-1].count++
	} else {
		t.runs = append(t.runs, run{count: 1, line: line})
	}
	t.total++
}

// GetLine returns the source line covering byte offset, or an error if
// offset is not covered by any run.
func (t *Table) GetLine(offset int) (int, error) {
	if offset < 0 || offset >= t.total {
		return 0, fmt.Errorf("linetable: offset %d out of range (total=%d)", offset, t.total)
	}
	remaining := offset
	for _, r := range t.runs {
		if remaining < r.count {
			return r.line, nil
		}
		remaining -= r.count
	}
	return 0, fmt.Errorf("linetable: offset %d not covered by any run", offset)
}

// TotalCount returns the number of instruction bytes the table covers. It
// must always equal the owning chunk's code length.
func (t *Table) TotalCount() int {
	return t.total
}

package linetable

import "testing"

func TestTable_RunLengthCollapsesRepeats(t *testing.T) {
	var tbl Table
	tbl.Add(1)
	tbl.Add(1)
	tbl.Add(1)
	tbl.Add(2)
	tbl.Add(2)

	if tbl.TotalCount() != 5 {
		t.Fatalf("TotalCount() = %d, want 5", tbl.TotalCount())
	}
	if len(tbl.runs) != 2 {
		t.Fatalf("expected 2 runs, got %d", len(tbl.runs))
	}

	for offset, want := range map[int]int{0: 1, 1: 1, 2: 1, 3: 2, 4: 2} {
		got, err := tbl.GetLine(offset)
		if err != nil {
			t.Fatalf("GetLine(%d) error: %v", offset, err)
		}
		if got != want {
			t.Fatalf("GetLine(%d) = %d, want %d", offset, got, want)
		}
	}
}

func TestTable_GetLineOutOfRange(t *testing.T) {
	var tbl Table
	tbl.Add(1)
	if _, err := tbl.GetLine(1); err == nil {
		t.Fatal("expected an error for offset == total")
	}
	if _, err := tbl.GetLine(-1); err == nil {
		t.Fatal("expected an error for negative offset")
	}
}

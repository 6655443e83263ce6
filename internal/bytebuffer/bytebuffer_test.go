package bytebuffer

import "testing"

func TestBuffer_PushAndAt(t *testing.T) {
	var buf Buffer
	for i := byte(0); i < 5; i++ {
		buf.Push(i)
	}
	if buf.Len() != 5 {
		t.Fatalf("Len() = %d, want 5", buf.Len())
	}
	for i := byte(0); i < 5; i++ {
		got, err := buf.At(int(i))
		if err != nil {
			t.Fatalf("At(%d) error: %v", i, err)
		}
		if got != i {
			t.Fatalf("At(%d) = %d, want %d", i, got, i)
		}
	}
}

func TestBuffer_AtOutOfRange(t *testing.T) {
	var buf Buffer
	buf.Push(1)
	if _, err := buf.At(-1); err == nil {
		t.Fatal("expected an error for negative index")
	}
	if _, err := buf.At(1); err == nil {
		t.Fatal("expected an error for index == len")
	}
}

func TestBuffer_Bytes(t *testing.T) {
	var buf Buffer
	buf.Push(9)
	buf.Push(8)
	got := buf.Bytes()
	if len(got) != 2 || got[0] != 9 || got[1] != 8 {
		t.Fatalf("Bytes() = %v, want [9 8]", got)
	}
}

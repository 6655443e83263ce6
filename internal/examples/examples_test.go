package examples

import (
	"bytes"
	"testing"

	"avenirvm/internal/bytecode"
	"avenirvm/internal/vm"
)

func TestExamples_AllRunWithoutError(t *testing.T) {
	for _, ex := range List() {
		ex := ex
		t.Run(ex.Name, func(t *testing.T) {
			pool := bytecode.NewInternPool()
			chunk := ex.Build(pool)

			var out bytes.Buffer
			m := vm.NewVM(chunk, pool)
			m.SetOutput(&out)

			_, result, err := m.Interpret()
			if err != nil {
				t.Fatalf("%s: Interpret error: %v", ex.Name, err)
			}
			if result != vm.ResultOk {
				t.Fatalf("%s: expected ResultOk, got %s", ex.Name, result)
			}
		})
	}
}

func TestExamples_FactorialPrints120(t *testing.T) {
	ex, ok := Find("factorial")
	if !ok {
		t.Fatal("factorial example not registered")
	}
	pool := bytecode.NewInternPool()
	chunk := ex.Build(pool)

	var out bytes.Buffer
	m := vm.NewVM(chunk, pool)
	m.SetOutput(&out)

	if _, _, err := m.Interpret(); err != nil {
		t.Fatalf("Interpret error: %v", err)
	}
	got := out.String()
	if got != "120\n" {
		t.Fatalf("output = %q, want %q", got, "120\n")
	}
}

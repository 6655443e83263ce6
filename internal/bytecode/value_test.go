package bytecode

import "testing"

func TestInternPool_IdentityForEqualBytes(t *testing.T) {
	pool := NewInternPool()
	a := pool.Intern([]byte("hello"))
	b := pool.Intern([]byte("hello"))
	if a != b {
		t.Fatal("expected two interns of the same bytes to return the same *String")
	}

	c := pool.Intern([]byte("world"))
	if a == c {
		t.Fatal("expected different bytes to intern to different *String handles")
	}
}

func TestValue_EqualByKindRules(t *testing.T) {
	pool := NewInternPool()
	s1 := StringValue(pool.Intern([]byte("x")))
	s2 := StringValue(pool.Intern([]byte("x")))

	cases := []struct {
		name string
		a, b Value
		want bool
	}{
		{"nil==nil", Nil(), Nil(), true},
		{"numbers equal", Number(1), Number(1), true},
		{"numbers differ", Number(1), Number(2), false},
		{"bools equal", Bool(true), Bool(true), true},
		{"interned strings equal", s1, s2, true},
		{"different kinds never equal", Number(0), Bool(false), false},
	}
	for _, c := range cases {
		if got := c.a.Equal(c.b); got != c.want {
			t.Errorf("%s: Equal() = %v, want %v", c.name, got, c.want)
		}
	}
}

func TestAdd_StringConcatenation(t *testing.T) {
	pool := NewInternPool()
	a := StringValue(pool.Intern([]byte("foo")))
	b := StringValue(pool.Intern([]byte("bar")))

	res, err := Add(pool, a, b)
	if err != nil {
		t.Fatalf("Add error: %v", err)
	}
	if res.Kind != KindString || res.Str.String() != "foobar" {
		t.Fatalf("Add(%q, %q) = %v, want %q", "foo", "bar", res.String(), "foobar")
	}
}

func TestAdd_TypeErrorOnMismatch(t *testing.T) {
	pool := NewInternPool()
	_, err := Add(pool, Number(1), Bool(true))
	if err == nil {
		t.Fatal("expected a Type error adding a number and a boolean")
	}
	opErr, ok := err.(*OpError)
	if !ok {
		t.Fatalf("expected *OpError, got %T", err)
	}
	if opErr.Kind != ErrType {
		t.Fatalf("expected ErrType, got %s", opErr.Kind)
	}
}

func TestDiv_ByZeroIsTypeError(t *testing.T) {
	_, err := Div(Number(1), Number(0))
	if err == nil {
		t.Fatal("expected an error dividing by zero")
	}
	if opErr, ok := err.(*OpError); !ok || opErr.Kind != ErrType {
		t.Fatalf("expected a Type *OpError, got %v", err)
	}
}

func TestMod_ByZeroIsTypeError(t *testing.T) {
	_, err := Mod(Number(1), Number(0))
	if err == nil {
		t.Fatal("expected an error for modulo by zero")
	}
	if opErr, ok := err.(*OpError); !ok || opErr.Kind != ErrType {
		t.Fatalf("expected a Type *OpError, got %v", err)
	}
}

func TestAnd_Or_RejectNonBooleans(t *testing.T) {
	if _, err := And(Number(1), Bool(true)); err == nil {
		t.Fatal("expected And to reject a non-boolean operand")
	}
	if _, err := Or(Bool(true), Number(1)); err == nil {
		t.Fatal("expected Or to reject a non-boolean operand")
	}
}

func TestIsFalsey_RequiresBoolean(t *testing.T) {
	if _, err := IsFalsey(Number(0)); err == nil {
		t.Fatal("expected IsFalsey to reject a non-boolean")
	}
	falsey, err := IsFalsey(Bool(false))
	if err != nil || !falsey {
		t.Fatalf("IsFalsey(false) = (%v, %v), want (true, nil)", falsey, err)
	}
}

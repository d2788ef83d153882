package vm

import (
	"math"
	"testing"
)

// ---------------------------------------------------------------------------
// NaN-boxing round trips
// ---------------------------------------------------------------------------

func TestValueFloatRoundTrip(t *testing.T) {
	cases := []float64{0, 1.5, -2.25, math.MaxFloat64, math.SmallestNonzeroFloat64, math.Inf(1), math.Inf(-1)}
	for _, f := range cases {
		v := FromFloat64(f)
		if !v.IsFloat() {
			t.Errorf("FromFloat64(%v).IsFloat() = false", f)
		}
		if v.Float64() != f {
			t.Errorf("Float64() = %v, want %v", v.Float64(), f)
		}
	}
}

func TestValueRealNaNIsFloat(t *testing.T) {
	v := FromFloat64(math.NaN())
	if !v.IsFloat() {
		t.Error("NaN should still be a float")
	}
	if v.IsSmallInt() || v.IsCons() || v.IsSymbol() || v.IsSpecial() {
		t.Error("NaN misidentified as a tagged value")
	}
}

func TestValueZeroIsFloatZero(t *testing.T) {
	// The zero Value is float 0.0, not nil.
	var v Value
	if !v.IsFloat() || v.Float64() != 0 {
		t.Errorf("zero Value: IsFloat = %v Float64 = %v, want float 0", v.IsFloat(), v.Float64())
	}
	if v.IsNil() {
		t.Error("zero Value misidentified as nil")
	}
}

func TestValueSmallIntRoundTrip(t *testing.T) {
	cases := []int64{0, 1, -1, 42, -42, MaxSmallInt, MinSmallInt}
	for _, n := range cases {
		v := FromSmallInt(n)
		if !v.IsSmallInt() {
			t.Errorf("FromSmallInt(%d).IsSmallInt() = false", n)
		}
		if v.SmallInt() != n {
			t.Errorf("SmallInt() = %d, want %d", v.SmallInt(), n)
		}
		if v.IsFloat() {
			t.Errorf("FromSmallInt(%d) misidentified as float", n)
		}
	}
}

func TestValueTryFromSmallIntBounds(t *testing.T) {
	if _, ok := TryFromSmallInt(MaxSmallInt); !ok {
		t.Error("MaxSmallInt rejected")
	}
	if _, ok := TryFromSmallInt(MinSmallInt); !ok {
		t.Error("MinSmallInt rejected")
	}
	if _, ok := TryFromSmallInt(MaxSmallInt + 1); ok {
		t.Error("MaxSmallInt+1 accepted")
	}
	if _, ok := TryFromSmallInt(MinSmallInt - 1); ok {
		t.Error("MinSmallInt-1 accepted")
	}
}

func TestValueSpecials(t *testing.T) {
	if !Nil.IsNil() || !Nil.IsSpecial() || Nil.IsBool() {
		t.Error("Nil predicates wrong")
	}
	if !True.IsBool() || !False.IsBool() || True.IsNil() {
		t.Error("bool predicates wrong")
	}
	if Nil == True || True == False || Nil == False {
		t.Error("specials not distinct")
	}
}

func TestValueSymbolRoundTrip(t *testing.T) {
	v := FromSymbolID(SymQuote)
	if !v.IsSymbol() || v.SymbolID() != SymQuote {
		t.Errorf("symbol round trip failed: %v", v.SymbolID())
	}
	if v.IsFloat() || v.IsNumber() {
		t.Error("symbol misidentified as number")
	}
}

func TestValueTruthy(t *testing.T) {
	cases := []struct {
		v    Value
		want bool
	}{
		{True, true},
		{False, false},
		{Nil, false},
		{FromSmallInt(0), true},
		{FromFloat64(0), true},
		{FromSymbolID(SymQuote), true},
	}
	for _, c := range cases {
		if c.v.Truthy() != c.want {
			t.Errorf("Truthy(%#x) = %v, want %v", uint64(c.v), c.v.Truthy(), c.want)
		}
	}
}

func TestValueIsErrorSymbol(t *testing.T) {
	for id := symErrorFirst; id <= symErrorLast; id++ {
		if !FromSymbolID(id).IsErrorSymbol() {
			t.Errorf("symbol %d not recognized as error", id)
		}
	}
	if FromSymbolID(SymQuote).IsErrorSymbol() {
		t.Error("quote recognized as error symbol")
	}
	if FromSmallInt(int64(SymEvalError)).IsErrorSymbol() {
		t.Error("integer recognized as error symbol")
	}
}

func TestValueIsNumber(t *testing.T) {
	if !FromSmallInt(1).IsNumber() || !FromFloat64(1.5).IsNumber() {
		t.Error("numbers not recognized")
	}
	if Nil.IsNumber() || True.IsNumber() {
		t.Error("specials recognized as numbers")
	}
}

// ---------------------------------------------------------------------------
// Heap values
// ---------------------------------------------------------------------------

func TestHeapConsCarCdr(t *testing.T) {
	m, _ := newTestVM(Config{})
	c := m.Cons(num(1), num(2))
	if !c.IsCons() {
		t.Fatal("Cons did not produce a cons")
	}
	if a := m.Car(c); !a.IsSmallInt() || a.SmallInt() != 1 {
		t.Errorf("Car = %v, want 1", m.Str(a))
	}
	if d := m.Cdr(c); !d.IsSmallInt() || d.SmallInt() != 2 {
		t.Errorf("Cdr = %v, want 2", m.Str(d))
	}
}

func TestHeapCarCdrOfNil(t *testing.T) {
	m, _ := newTestVM(Config{})
	if m.Car(Nil) != Nil || m.Cdr(Nil) != Nil {
		t.Error("car/cdr of nil should be nil")
	}
}

func TestHeapStringRoundTrip(t *testing.T) {
	m, _ := newTestVM(Config{})
	v := m.NewString("hello world")
	if !v.IsString() {
		t.Fatal("NewString did not produce a string")
	}
	if got := m.StringOf(v); got != "hello world" {
		t.Errorf("StringOf = %q, want %q", got, "hello world")
	}
}

func TestHeapListHelpers(t *testing.T) {
	m, _ := newTestVM(Config{})
	l := m.List(num(1), num(2), num(3))
	if got := m.ListLength(l); got != 3 {
		t.Errorf("ListLength = %d, want 3", got)
	}
	r := m.ListReverse(l)
	if got := m.Str(r); got != "(3 2 1)" {
		t.Errorf("ListReverse = %v, want (3 2 1)", got)
	}
	if m.ListLength(Nil) != 0 {
		t.Errorf("ListLength(nil) = %d, want 0", m.ListLength(Nil))
	}
}

func TestHeapEqual(t *testing.T) {
	m, _ := newTestVM(Config{})
	a := m.List(num(1), m.List(num(2), num(3)))
	b := m.List(num(1), m.List(num(2), num(3)))
	c := m.List(num(1), m.List(num(2), num(4)))
	if !m.Equal(a, b) {
		t.Error("structurally equal lists reported unequal")
	}
	if m.Equal(a, c) {
		t.Error("different lists reported equal")
	}
	if !m.Equal(m.NewString("x"), m.NewString("x")) {
		t.Error("equal strings reported unequal")
	}
}

// ---------------------------------------------------------------------------
// Symbols
// ---------------------------------------------------------------------------

func TestSymbolInternStable(t *testing.T) {
	st := NewSymbolTable()
	a := st.Intern("foo")
	b := st.Intern("foo")
	if a != b {
		t.Errorf("Intern not stable: %d vs %d", a, b)
	}
	if st.Name(a) != "foo" {
		t.Errorf("Name = %q, want foo", st.Name(a))
	}
}

func TestSymbolReservedSeeded(t *testing.T) {
	st := NewSymbolTable()
	if st.Intern("quote") != SymQuote {
		t.Error("quote not at its reserved id")
	}
	if st.Intern("eval-error") != SymEvalError {
		t.Error("eval-error not at its reserved id")
	}
	if st.Name(SymStackError) != "stack-error" {
		t.Errorf("Name(SymStackError) = %q", st.Name(SymStackError))
	}
}

// ---------------------------------------------------------------------------
// Printer
// ---------------------------------------------------------------------------

func TestPrinter(t *testing.T) {
	m, _ := newTestVM(Config{})
	cases := []struct {
		v    Value
		want string
	}{
		{Nil, "nil"},
		{True, "#t"},
		{False, "#f"},
		{num(42), "42"},
		{num(-7), "-7"},
		{m.Sym("abc"), "abc"},
		{m.NewString("hi"), "\"hi\""},
		{m.List(num(1), num(2)), "(1 2)"},
		{m.Cons(num(1), num(2)), "(1 . 2)"},
		{m.List(), "nil"},
	}
	for _, c := range cases {
		if got := m.Str(c.v); got != c.want {
			t.Errorf("Str = %q, want %q", got, c.want)
		}
	}
}

// ---------------------------------------------------------------------------
// Continuation stack
// ---------------------------------------------------------------------------

func TestContStackOverflow(t *testing.T) {
	s := newContStack(2)
	if !s.push(frame{kind: contProgn}) || !s.push(frame{kind: contProgn}) {
		t.Fatal("pushes within capacity failed")
	}
	if s.push(frame{kind: contProgn}) {
		t.Error("push past capacity succeeded")
	}
	if s.depth() != 2 {
		t.Errorf("depth = %d, want 2", s.depth())
	}
	s.pop()
	s.pop()
	if !s.empty() {
		t.Error("stack not empty after popping everything")
	}
}

package vm

// ---------------------------------------------------------------------------
// Cell arena: cons cells and strings, owned by a VM
// ---------------------------------------------------------------------------
//
// Cons cells live in a growable arena and are addressed by index, so a
// cons Value stays a plain 64-bit word with no pointer inside it. Cells
// are immutable once written except for the cdr of environment binding
// pairs, which define and let update in place. The arena is reclaimed
// only when the VM itself is dropped; results handed out by RemoveDone
// therefore stay readable for the life of the VM.

type cell struct {
	car Value
	cdr Value
}

// Cons allocates a cons cell with the given car and cdr.
func (vm *VM) Cons(car, cdr Value) Value {
	vm.heapMu.Lock()
	defer vm.heapMu.Unlock()
	i := len(vm.cells)
	vm.cells = append(vm.cells, cell{car: car, cdr: cdr})
	return fromConsIndex(i)
}

// Car returns the car of v. The car of nil is nil; the car of any other
// non-cons value is a type-error symbol.
func (vm *VM) Car(v Value) Value {
	if v.IsNil() {
		return Nil
	}
	if !v.IsCons() {
		return FromSymbolID(SymTypeError)
	}
	vm.heapMu.RLock()
	defer vm.heapMu.RUnlock()
	return vm.cells[v.consIndex()].car
}

// Cdr returns the cdr of v. The cdr of nil is nil; the cdr of any other
// non-cons value is a type-error symbol.
func (vm *VM) Cdr(v Value) Value {
	if v.IsNil() {
		return Nil
	}
	if !v.IsCons() {
		return FromSymbolID(SymTypeError)
	}
	vm.heapMu.RLock()
	defer vm.heapMu.RUnlock()
	return vm.cells[v.consIndex()].cdr
}

// setCdr updates the cdr of an existing cons cell. Only environment
// binding pairs are ever mutated this way.
func (vm *VM) setCdr(v, cdr Value) {
	vm.heapMu.Lock()
	defer vm.heapMu.Unlock()
	vm.cells[v.consIndex()].cdr = cdr
}

// ---------------------------------------------------------------------------
// Strings
// ---------------------------------------------------------------------------

// NewString allocates a string value.
func (vm *VM) NewString(s string) Value {
	vm.heapMu.Lock()
	defer vm.heapMu.Unlock()
	i := len(vm.strs)
	vm.strs = append(vm.strs, s)
	return fromStringIndex(i)
}

// StringOf returns the Go string backing a string value.
// Panics if v is not a string.
func (vm *VM) StringOf(v Value) string {
	if !v.IsString() {
		panic("VM.StringOf: not a string")
	}
	vm.heapMu.RLock()
	defer vm.heapMu.RUnlock()
	return vm.strs[v.stringIndex()]
}

// ---------------------------------------------------------------------------
// List helpers
// ---------------------------------------------------------------------------

// List builds a proper list from vals.
func (vm *VM) List(vals ...Value) Value {
	l := Nil
	for i := len(vals) - 1; i >= 0; i-- {
		l = vm.Cons(vals[i], l)
	}
	return l
}

// ListLength returns the number of cells in a proper list.
func (vm *VM) ListLength(v Value) int {
	n := 0
	for v.IsCons() {
		n++
		v = vm.Cdr(v)
	}
	return n
}

// ListReverse returns a fresh list with the elements of v reversed.
func (vm *VM) ListReverse(v Value) Value {
	l := Nil
	for v.IsCons() {
		l = vm.Cons(vm.Car(v), l)
		v = vm.Cdr(v)
	}
	return l
}

// listToSlice collects the elements of a proper list.
func (vm *VM) listToSlice(v Value) []Value {
	out := make([]Value, 0, 4)
	for v.IsCons() {
		out = append(out, vm.Car(v))
		v = vm.Cdr(v)
	}
	return out
}

// Sym interns name and returns it as a symbol value.
func (vm *VM) Sym(name string) Value {
	return FromSymbolID(vm.Symbols.Intern(name))
}

// Equal reports structural equality: atoms compare by value, cons
// structure is compared recursively.
func (vm *VM) Equal(a, b Value) bool {
	if a == b {
		return true
	}
	if a.IsCons() && b.IsCons() {
		return vm.Equal(vm.Car(a), vm.Car(b)) && vm.Equal(vm.Cdr(a), vm.Cdr(b))
	}
	if a.IsString() && b.IsString() {
		return vm.StringOf(a) == vm.StringOf(b)
	}
	return false
}

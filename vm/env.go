package vm

// ---------------------------------------------------------------------------
// Environments: association lists of (symbol . value) pairs
// ---------------------------------------------------------------------------
//
// An environment is itself a value, which means a continuation frame or
// closure captures one by holding a single Value. Local binding
// prepends a pair; define mutates the VM's global environment root.

// envExtend binds sym to val in front of env.
func (vm *VM) envExtend(env Value, sym SymbolID, val Value) Value {
	return vm.Cons(vm.Cons(FromSymbolID(sym), val), env)
}

// envLookupLocal finds sym in env only.
func (vm *VM) envLookupLocal(sym SymbolID, env Value) (Value, bool) {
	for e := env; e.IsCons(); e = vm.Cdr(e) {
		pair := vm.Car(e)
		if !pair.IsCons() {
			continue
		}
		key := vm.Car(pair)
		if key.IsSymbol() && key.SymbolID() == sym {
			return vm.Cdr(pair), true
		}
	}
	return Nil, false
}

// envLookup finds sym in env, falling back to the global environment.
func (vm *VM) envLookup(sym SymbolID, env Value) (Value, bool) {
	if v, ok := vm.envLookupLocal(sym, env); ok {
		return v, true
	}
	vm.envMu.RLock()
	global := vm.globalEnv
	vm.envMu.RUnlock()
	return vm.envLookupLocal(sym, global)
}

// envSetLocal rebinds an existing binding of sym inside env in place.
// Used by let to resolve the pre-bound placeholder bindings.
func (vm *VM) envSetLocal(sym SymbolID, val, env Value) bool {
	for e := env; e.IsCons(); e = vm.Cdr(e) {
		pair := vm.Car(e)
		if !pair.IsCons() {
			continue
		}
		key := vm.Car(pair)
		if key.IsSymbol() && key.SymbolID() == sym {
			vm.setCdr(pair, val)
			return true
		}
	}
	return false
}

// Define binds sym to val in the global environment, replacing any
// existing global binding of sym.
func (vm *VM) Define(sym SymbolID, val Value) {
	vm.envMu.Lock()
	global := vm.globalEnv
	vm.envMu.Unlock()

	if vm.envSetLocal(sym, val, global) {
		return
	}

	vm.envMu.Lock()
	vm.globalEnv = vm.envExtend(vm.globalEnv, sym, val)
	vm.envMu.Unlock()
}

// Lookup resolves sym in the global environment.
func (vm *VM) Lookup(sym SymbolID) (Value, bool) {
	vm.envMu.RLock()
	global := vm.globalEnv
	vm.envMu.RUnlock()
	return vm.envLookupLocal(sym, global)
}

// Binding is one global environment entry, as reported by GlobalBindings.
type Binding struct {
	Sym SymbolID
	Val Value
}

// GlobalBindings returns a snapshot of the global environment, newest
// binding first.
func (vm *VM) GlobalBindings() []Binding {
	vm.envMu.RLock()
	global := vm.globalEnv
	vm.envMu.RUnlock()

	var out []Binding
	for e := global; e.IsCons(); e = vm.Cdr(e) {
		pair := vm.Car(e)
		if !pair.IsCons() {
			continue
		}
		key := vm.Car(pair)
		if key.IsSymbol() {
			out = append(out, Binding{Sym: key.SymbolID(), Val: vm.Cdr(pair)})
		}
	}
	return out
}

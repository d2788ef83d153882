package vm

import (
	"math"
)

// ---------------------------------------------------------------------------
// Fundamental operations
// ---------------------------------------------------------------------------
//
// Built-ins are ordinary Extensions registered under reserved-free
// symbols at VM construction. They receive fully evaluated arguments
// and report failure by returning an error symbol, which the evaluator
// converts into a terminal context result.

func registerFundamentals(vm *VM) {
	vm.AddExtension("+", fundAdd)
	vm.AddExtension("-", fundSub)
	vm.AddExtension("*", fundMul)
	vm.AddExtension("/", fundDiv)
	vm.AddExtension("mod", fundMod)
	vm.AddExtension("=", fundNumEq)
	vm.AddExtension("<", fundLess)
	vm.AddExtension(">", fundGreater)
	vm.AddExtension("<=", fundLessEq)
	vm.AddExtension(">=", fundGreaterEq)
	vm.AddExtension("cons", fundCons)
	vm.AddExtension("car", fundCar)
	vm.AddExtension("cdr", fundCdr)
	vm.AddExtension("list", fundList)
	vm.AddExtension("length", fundLength)
	vm.AddExtension("eq", fundEq)
	vm.AddExtension("not", fundNot)
	vm.AddExtension("list?", fundIsList)
	vm.AddExtension("number?", fundIsNumber)
	vm.AddExtension("symbol?", fundIsSymbol)
	vm.AddExtension("string?", fundIsString)
}

func errVal(sym SymbolID) Value {
	return FromSymbolID(sym)
}

// numericFold reduces args with intOp/floatOp, promoting to float as
// soon as any float is seen. intOp reports false when its result does
// not fit in int64; the fold then promotes the remaining work to
// float. Guest arithmetic never panics and never wraps.
func numericFold(args []Value, intOp func(int64, int64) (int64, bool), floatOp func(float64, float64) float64) Value {
	if len(args) == 0 {
		return errVal(SymArityError)
	}
	for _, a := range args {
		if !a.IsNumber() {
			return errVal(SymTypeError)
		}
	}

	useFloat := false
	for _, a := range args {
		if a.IsFloat() {
			useFloat = true
			break
		}
	}

	if useFloat {
		acc := numToFloat(args[0])
		for _, a := range args[1:] {
			acc = floatOp(acc, numToFloat(a))
		}
		return FromFloat64(acc)
	}

	acc := args[0].SmallInt()
	for i, a := range args[1:] {
		next, ok := intOp(acc, a.SmallInt())
		if !ok {
			facc := float64(acc)
			for _, b := range args[1+i:] {
				facc = floatOp(facc, numToFloat(b))
			}
			return FromFloat64(facc)
		}
		acc = next
	}
	v, ok := TryFromSmallInt(acc)
	if !ok {
		return FromFloat64(float64(acc))
	}
	return v
}

func numToFloat(v Value) float64 {
	if v.IsSmallInt() {
		return float64(v.SmallInt())
	}
	return v.Float64()
}

func fundAdd(vm *VM, args []Value) Value {
	return numericFold(args,
		func(a, b int64) (int64, bool) {
			c := a + b
			if (c > a) != (b > 0) && b != 0 {
				return 0, false
			}
			return c, true
		},
		func(a, b float64) float64 { return a + b })
}

func fundSub(vm *VM, args []Value) Value {
	if len(args) == 1 {
		if !args[0].IsNumber() {
			return errVal(SymTypeError)
		}
		if args[0].IsSmallInt() {
			n := args[0].SmallInt()
			// -MinSmallInt does not fit; promote like the folds do.
			if v, ok := TryFromSmallInt(-n); ok {
				return v
			}
			return FromFloat64(-float64(n))
		}
		return FromFloat64(-args[0].Float64())
	}
	return numericFold(args,
		func(a, b int64) (int64, bool) {
			c := a - b
			if (c < a) != (b > 0) && b != 0 {
				return 0, false
			}
			return c, true
		},
		func(a, b float64) float64 { return a - b })
}

func fundMul(vm *VM, args []Value) Value {
	return numericFold(args,
		func(a, b int64) (int64, bool) {
			if a == 0 || b == 0 {
				return 0, true
			}
			if a == -1 && b == math.MinInt64 || b == -1 && a == math.MinInt64 {
				return 0, false
			}
			c := a * b
			if c/a != b {
				return 0, false
			}
			return c, true
		},
		func(a, b float64) float64 { return a * b })
}

func fundDiv(vm *VM, args []Value) Value {
	if len(args) < 2 {
		return errVal(SymArityError)
	}
	for _, a := range args[1:] {
		if a.IsNumber() && numToFloat(a) == 0 {
			return errVal(SymDivisionByZero)
		}
	}
	return numericFold(args,
		func(a, b int64) (int64, bool) {
			if b == 0 || (a == math.MinInt64 && b == -1) {
				return 0, false
			}
			return a / b, true
		},
		func(a, b float64) float64 { return a / b })
}

func fundMod(vm *VM, args []Value) Value {
	if len(args) != 2 {
		return errVal(SymArityError)
	}
	if !args[0].IsSmallInt() || !args[1].IsSmallInt() {
		return errVal(SymTypeError)
	}
	if args[1].SmallInt() == 0 {
		return errVal(SymDivisionByZero)
	}
	return FromSmallInt(args[0].SmallInt() % args[1].SmallInt())
}

// numericCompare applies cmp pairwise across args.
func numericCompare(args []Value, cmp func(float64, float64) bool) Value {
	if len(args) < 2 {
		return errVal(SymArityError)
	}
	for _, a := range args {
		if !a.IsNumber() {
			return errVal(SymTypeError)
		}
	}
	for i := 0; i < len(args)-1; i++ {
		if !cmp(numToFloat(args[i]), numToFloat(args[i+1])) {
			return False
		}
	}
	return True
}

func fundNumEq(vm *VM, args []Value) Value {
	return numericCompare(args, func(a, b float64) bool { return a == b })
}

func fundLess(vm *VM, args []Value) Value {
	return numericCompare(args, func(a, b float64) bool { return a < b })
}

func fundGreater(vm *VM, args []Value) Value {
	return numericCompare(args, func(a, b float64) bool { return a > b })
}

func fundLessEq(vm *VM, args []Value) Value {
	return numericCompare(args, func(a, b float64) bool { return a <= b })
}

func fundGreaterEq(vm *VM, args []Value) Value {
	return numericCompare(args, func(a, b float64) bool { return a >= b })
}

func fundCons(vm *VM, args []Value) Value {
	if len(args) != 2 {
		return errVal(SymArityError)
	}
	return vm.Cons(args[0], args[1])
}

func fundCar(vm *VM, args []Value) Value {
	if len(args) != 1 {
		return errVal(SymArityError)
	}
	if !args[0].IsCons() && !args[0].IsNil() {
		return errVal(SymTypeError)
	}
	return vm.Car(args[0])
}

func fundCdr(vm *VM, args []Value) Value {
	if len(args) != 1 {
		return errVal(SymArityError)
	}
	if !args[0].IsCons() && !args[0].IsNil() {
		return errVal(SymTypeError)
	}
	return vm.Cdr(args[0])
}

func fundList(vm *VM, args []Value) Value {
	return vm.List(args...)
}

func fundLength(vm *VM, args []Value) Value {
	if len(args) != 1 {
		return errVal(SymArityError)
	}
	if !args[0].IsCons() && !args[0].IsNil() {
		return errVal(SymTypeError)
	}
	return FromSmallInt(int64(vm.ListLength(args[0])))
}

func fundEq(vm *VM, args []Value) Value {
	if len(args) != 2 {
		return errVal(SymArityError)
	}
	if vm.Equal(args[0], args[1]) {
		return True
	}
	return False
}

func fundNot(vm *VM, args []Value) Value {
	if len(args) != 1 {
		return errVal(SymArityError)
	}
	if args[0].Truthy() {
		return False
	}
	return True
}

func fundIsList(vm *VM, args []Value) Value {
	if len(args) != 1 {
		return errVal(SymArityError)
	}
	if args[0].IsCons() || args[0].IsNil() {
		return True
	}
	return False
}

func fundIsNumber(vm *VM, args []Value) Value {
	if len(args) != 1 {
		return errVal(SymArityError)
	}
	if args[0].IsNumber() {
		return True
	}
	return False
}

func fundIsSymbol(vm *VM, args []Value) Value {
	if len(args) != 1 {
		return errVal(SymArityError)
	}
	if args[0].IsSymbol() {
		return True
	}
	return False
}

func fundIsString(vm *VM, args []Value) Value {
	if len(args) != 1 {
		return errVal(SymArityError)
	}
	if args[0].IsString() {
		return True
	}
	return False
}

package vm

// ---------------------------------------------------------------------------
// CPS evaluator: the single-step function
// ---------------------------------------------------------------------------
//
// One step either tears an expression apart (reduce mode: push the
// frames encoding the remaining work, descend into a subexpression) or
// consumes the value in the result register via the top continuation
// frame (apply mode). All recursion is explicit in the continuation
// stack, so a context can be suspended between any two steps.
//
// Tail positions (if branches, progn/let/and/or tails, closure bodies)
// replace the current work instead of pushing frames, which keeps K
// bounded under guest-level iterative recursion.

// stepOutcome reports what the scheduler should do with the context.
type stepOutcome uint8

const (
	stepContinue stepOutcome = iota
	stepBlockedMailbox
	stepBlockedSleep
	stepFinished
	stepError
)

// step advances ctx by one unit of work. Called with the VM lock held,
// on the evaluator goroutine only.
func (vm *VM) step(ctx *Context) stepOutcome {
	if ctx.appCont {
		return vm.applyCont(ctx)
	}
	return vm.reduce(ctx)
}

// fail converts a guest error into a terminal error-symbol result.
// Guest errors are local to one context by construction: the scheduler
// treats stepError exactly like stepFinished.
func (vm *VM) fail(ctx *Context, sym SymbolID) stepOutcome {
	ctx.r = FromSymbolID(sym)
	return stepError
}

// pushK pushes a continuation frame, converting overflow into a
// context-local stack error.
func (vm *VM) pushK(ctx *Context, f frame) bool {
	return ctx.K.push(f)
}

// ---------------------------------------------------------------------------
// Reduce mode
// ---------------------------------------------------------------------------

func (vm *VM) reduce(ctx *Context) stepOutcome {
	exp := ctx.currExp

	if exp.IsAtom() {
		if exp.IsSymbol() {
			return vm.reduceSymbol(ctx, exp)
		}
		// Numbers, strings, nil, booleans are self-evaluating.
		ctx.r = exp
		ctx.appCont = true
		return stepContinue
	}

	head := vm.Car(exp)
	if head.IsSymbol() {
		switch head.SymbolID() {
		case SymQuote:
			ctx.r = vm.Car(vm.Cdr(exp))
			ctx.appCont = true
			return stepContinue
		case SymIf:
			return vm.reduceIf(ctx, exp)
		case SymLambda:
			return vm.reduceLambda(ctx, exp)
		case SymClosure:
			// A closure is represented as cons structure and
			// evaluates to itself.
			ctx.r = exp
			ctx.appCont = true
			return stepContinue
		case SymLet:
			return vm.reduceLet(ctx, exp)
		case SymProgn:
			return vm.reduceProgn(ctx, exp)
		case SymDefine:
			return vm.reduceDefine(ctx, exp)
		case SymAnd:
			return vm.reduceAndOr(ctx, exp, contAnd, True)
		case SymOr:
			return vm.reduceAndOr(ctx, exp, contOr, False)
		case SymSpawn:
			return vm.reduceSpawn(ctx, exp)
		case SymYield:
			ctx.r = True
			ctx.appCont = true
			ctx.sleepUs = 0
			return stepBlockedSleep
		case SymSleep:
			if !vm.pushK(ctx, frame{kind: contSleep}) {
				return vm.fail(ctx, SymStackError)
			}
			ctx.currExp = vm.Car(vm.Cdr(exp))
			return stepContinue
		case SymSend:
			return vm.reduceSend(ctx, exp)
		case SymReceive:
			return vm.reduceReceive(ctx)
		}
	}

	// Function application: evaluate the operator first, then the
	// operands left to right, accumulating into the frame.
	if !vm.pushK(ctx, frame{kind: contApplyArgs, a: vm.Cdr(exp), b: ctx.currEnv, c: Nil}) {
		return vm.fail(ctx, SymStackError)
	}
	ctx.currExp = head
	return stepContinue
}

func (vm *VM) reduceSymbol(ctx *Context, exp Value) stepOutcome {
	id := exp.SymbolID()
	if v, ok := vm.envLookup(id, ctx.currEnv); ok {
		ctx.r = v
		ctx.appCont = true
		return stepContinue
	}
	// Built-ins and error symbols evaluate to themselves, so they can
	// be applied and passed around as values.
	if _, ok := vm.funs[id]; ok || exp.IsErrorSymbol() {
		ctx.r = exp
		ctx.appCont = true
		return stepContinue
	}
	return vm.fail(ctx, SymVariableNotBound)
}

func (vm *VM) reduceIf(ctx *Context, exp Value) stepOutcome {
	rest := vm.Cdr(exp)
	thenBr := vm.Car(vm.Cdr(rest))
	elseBr := vm.Car(vm.Cdr(vm.Cdr(rest)))
	if !vm.pushK(ctx, frame{kind: contIfBranch, a: thenBr, b: elseBr, c: ctx.currEnv}) {
		return vm.fail(ctx, SymStackError)
	}
	ctx.currExp = vm.Car(rest)
	return stepContinue
}

func (vm *VM) reduceLambda(ctx *Context, exp Value) stepOutcome {
	params := vm.Car(vm.Cdr(exp))
	body := vm.bodyOf(vm.Cdr(vm.Cdr(exp)))
	ctx.r = vm.List(FromSymbolID(SymClosure), params, body, ctx.currEnv)
	ctx.appCont = true
	return stepContinue
}

// bodyOf wraps a multi-form body in progn; a single form stands alone.
func (vm *VM) bodyOf(forms Value) Value {
	if !forms.IsCons() {
		return Nil
	}
	if !vm.Cdr(forms).IsCons() {
		return vm.Car(forms)
	}
	return vm.Cons(FromSymbolID(SymProgn), forms)
}

func (vm *VM) reduceLet(ctx *Context, exp Value) stepOutcome {
	bindings := vm.Car(vm.Cdr(exp))
	body := vm.bodyOf(vm.Cdr(vm.Cdr(exp)))

	if !bindings.IsCons() {
		ctx.currExp = body
		return stepContinue
	}

	// Pre-bind every symbol to nil so binding expressions can refer
	// to (capture) later bindings, then resolve them in order.
	env := ctx.currEnv
	for b := bindings; b.IsCons(); b = vm.Cdr(b) {
		pair := vm.Car(b)
		sym := vm.Car(pair)
		if !pair.IsCons() || !sym.IsSymbol() {
			return vm.fail(ctx, SymEvalError)
		}
		env = vm.envExtend(env, sym.SymbolID(), Nil)
	}

	first := vm.Car(bindings)
	if !vm.pushK(ctx, frame{
		kind: contLetBind,
		a:    vm.Car(first),
		b:    vm.Cdr(bindings),
		c:    env,
		d:    body,
	}) {
		return vm.fail(ctx, SymStackError)
	}
	ctx.currEnv = env
	ctx.currExp = vm.Car(vm.Cdr(first))
	return stepContinue
}

func (vm *VM) reduceProgn(ctx *Context, exp Value) stepOutcome {
	forms := vm.Cdr(exp)
	if !forms.IsCons() {
		ctx.r = Nil
		ctx.appCont = true
		return stepContinue
	}
	rest := vm.Cdr(forms)
	if rest.IsCons() {
		if !vm.pushK(ctx, frame{kind: contProgn, a: rest, b: ctx.currEnv}) {
			return vm.fail(ctx, SymStackError)
		}
	}
	ctx.currExp = vm.Car(forms)
	return stepContinue
}

func (vm *VM) reduceDefine(ctx *Context, exp Value) stepOutcome {
	sym := vm.Car(vm.Cdr(exp))
	if !sym.IsSymbol() {
		return vm.fail(ctx, SymEvalError)
	}
	if !vm.pushK(ctx, frame{kind: contSetGlobal, a: sym}) {
		return vm.fail(ctx, SymStackError)
	}
	ctx.currExp = vm.Car(vm.Cdr(vm.Cdr(exp)))
	return stepContinue
}

func (vm *VM) reduceAndOr(ctx *Context, exp Value, kind contKind, empty Value) stepOutcome {
	forms := vm.Cdr(exp)
	if !forms.IsCons() {
		ctx.r = empty
		ctx.appCont = true
		return stepContinue
	}
	rest := vm.Cdr(forms)
	if rest.IsCons() {
		if !vm.pushK(ctx, frame{kind: kind, a: rest, b: ctx.currEnv}) {
			return vm.fail(ctx, SymStackError)
		}
	}
	ctx.currExp = vm.Car(forms)
	return stepContinue
}

func (vm *VM) reduceSpawn(ctx *Context, exp Value) stepOutcome {
	forms := vm.Cdr(exp)
	cid := vm.launchLocked(forms, vm.cfg.DefaultStackSize, ctx.currEnv)
	if cid == 0 {
		return vm.fail(ctx, SymEvalError)
	}
	ctx.r = FromSmallInt(int64(cid))
	ctx.appCont = true
	return stepContinue
}

func (vm *VM) reduceSend(ctx *Context, exp Value) stepOutcome {
	rest := vm.Cdr(exp)
	if !vm.pushK(ctx, frame{kind: contSendTarget, a: vm.Car(vm.Cdr(rest)), b: ctx.currEnv}) {
		return vm.fail(ctx, SymStackError)
	}
	ctx.currExp = vm.Car(rest)
	return stepContinue
}

// reduceReceive dequeues the oldest message, or blocks without
// advancing: the context's current expression stays (receive), so it
// re-runs when a message admission makes the context ready again.
func (vm *VM) reduceReceive(ctx *Context) stepOutcome {
	if len(ctx.mailbox) > 0 {
		ctx.r = ctx.mailboxPop()
		ctx.appCont = true
		return stepContinue
	}
	return stepBlockedMailbox
}

// ---------------------------------------------------------------------------
// Apply-continuation mode
// ---------------------------------------------------------------------------

func (vm *VM) applyCont(ctx *Context) stepOutcome {
	f := ctx.K.pop()

	switch f.kind {
	case contDone:
		if ctx.program.IsCons() {
			ctx.currExp = vm.Car(ctx.program)
			ctx.program = vm.Cdr(ctx.program)
			ctx.currEnv = f.a
			ctx.K.push(frame{kind: contDone, a: f.a})
			ctx.appCont = false
			return stepContinue
		}
		if ctx.r.IsErrorSymbol() {
			return stepError
		}
		return stepFinished

	case contSetGlobal:
		vm.Define(f.a.SymbolID(), ctx.r)
		ctx.r = f.a
		return stepContinue

	case contIfBranch:
		if ctx.r.Truthy() {
			ctx.currExp = f.a
		} else {
			ctx.currExp = f.b
		}
		ctx.currEnv = f.c
		ctx.appCont = false
		return stepContinue

	case contProgn:
		return vm.applySequence(ctx, f, contProgn)

	case contAnd:
		if !ctx.r.Truthy() {
			return stepContinue
		}
		return vm.applySequence(ctx, f, contAnd)

	case contOr:
		if ctx.r.Truthy() {
			return stepContinue
		}
		return vm.applySequence(ctx, f, contOr)

	case contLetBind:
		return vm.applyLetBind(ctx, f)

	case contApplyArgs:
		return vm.applyArgs(ctx, f)

	case contSleep:
		if !ctx.r.IsNumber() {
			return vm.fail(ctx, SymTypeError)
		}
		ctx.sleepUs = numToInt(ctx.r)
		ctx.r = True
		return stepBlockedSleep

	case contSendTarget:
		if !ctx.r.IsSmallInt() {
			return vm.fail(ctx, SymTypeError)
		}
		if !vm.pushK(ctx, frame{kind: contSendMessage, a: ctx.r}) {
			return vm.fail(ctx, SymStackError)
		}
		ctx.currExp = f.a
		ctx.currEnv = f.b
		ctx.appCont = false
		return stepContinue

	case contSendMessage:
		if vm.sendLocked(CID(f.a.SmallInt()), ctx.r) {
			ctx.r = True
		} else {
			ctx.r = False
		}
		return stepContinue
	}

	return vm.fail(ctx, SymEvalError)
}

// applySequence advances progn/and/or to their next form. The frame is
// only ever present when forms remain; the final form runs in tail
// position with no frame behind it.
func (vm *VM) applySequence(ctx *Context, f frame, kind contKind) stepOutcome {
	rest := vm.Cdr(f.a)
	if rest.IsCons() {
		if !vm.pushK(ctx, frame{kind: kind, a: rest, b: f.b}) {
			return vm.fail(ctx, SymStackError)
		}
	}
	ctx.currExp = vm.Car(f.a)
	ctx.currEnv = f.b
	ctx.appCont = false
	return stepContinue
}

func (vm *VM) applyLetBind(ctx *Context, f frame) stepOutcome {
	vm.envSetLocal(f.a.SymbolID(), ctx.r, f.c)

	if f.b.IsCons() {
		next := vm.Car(f.b)
		sym := vm.Car(next)
		if !next.IsCons() || !sym.IsSymbol() {
			return vm.fail(ctx, SymEvalError)
		}
		if !vm.pushK(ctx, frame{kind: contLetBind, a: sym, b: vm.Cdr(f.b), c: f.c, d: f.d}) {
			return vm.fail(ctx, SymStackError)
		}
		ctx.currExp = vm.Car(vm.Cdr(next))
	} else {
		// Bindings resolved; the body runs in tail position.
		ctx.currExp = f.d
	}
	ctx.currEnv = f.c
	ctx.appCont = false
	return stepContinue
}

func (vm *VM) applyArgs(ctx *Context, f frame) stepOutcome {
	acc := vm.Cons(ctx.r, f.c)

	if f.a.IsCons() {
		if !vm.pushK(ctx, frame{kind: contApplyArgs, a: vm.Cdr(f.a), b: f.b, c: acc}) {
			return vm.fail(ctx, SymStackError)
		}
		ctx.currExp = vm.Car(f.a)
		ctx.currEnv = f.b
		ctx.appCont = false
		return stepContinue
	}

	vals := vm.listToSlice(vm.ListReverse(acc))
	return vm.apply(ctx, vals[0], vals[1:])
}

// apply performs the call once operator and operands are evaluated.
// Built-ins run to completion inside the step; closures replace the
// current work with the closure body, so a call in tail position does
// not grow K.
func (vm *VM) apply(ctx *Context, fun Value, args []Value) stepOutcome {
	if fun.IsSymbol() {
		if fn, ok := vm.funs[fun.SymbolID()]; ok {
			r := fn(vm, args)
			if r.IsErrorSymbol() {
				return vm.fail(ctx, r.SymbolID())
			}
			ctx.r = r
			return stepContinue
		}
		return vm.fail(ctx, SymVariableNotBound)
	}

	if fun.IsCons() {
		head := vm.Car(fun)
		if head.IsSymbol() && head.SymbolID() == SymClosure {
			rest := vm.Cdr(fun)
			params := vm.Car(rest)
			body := vm.Car(vm.Cdr(rest))
			env := vm.Car(vm.Cdr(vm.Cdr(rest)))

			i := 0
			for p := params; p.IsCons(); p = vm.Cdr(p) {
				sym := vm.Car(p)
				if !sym.IsSymbol() || i >= len(args) {
					return vm.fail(ctx, SymArityError)
				}
				env = vm.envExtend(env, sym.SymbolID(), args[i])
				i++
			}
			if i != len(args) {
				return vm.fail(ctx, SymArityError)
			}

			ctx.currExp = body
			ctx.currEnv = env
			ctx.appCont = false
			return stepContinue
		}
	}

	return vm.fail(ctx, SymTypeError)
}

// numToInt truncates a numeric value to int64.
func numToInt(v Value) int64 {
	if v.IsSmallInt() {
		return v.SmallInt()
	}
	return int64(v.Float64())
}

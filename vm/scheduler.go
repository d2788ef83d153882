package vm

// ---------------------------------------------------------------------------
// Scheduler: cooperative round-robin over ready contexts
// ---------------------------------------------------------------------------
//
// Exactly one goroutine (the one in Run) advances contexts. Every
// context is in exactly one of the ready, blocked, or done queues at
// all times; moving one is popping it from one slice and appending to
// another under the VM lock. The lock is held for the whole of a
// context's scheduling slice, which is what bounds the latency of the
// concurrent control API to at most one slice.

// Run executes the scheduler loop until Kill. It is the blocking entry
// point of the runtime and is intended to occupy a dedicated goroutine;
// everything else happens through the control API.
func (vm *VM) Run() {
	vm.nextState.CompareAndSwap(uint32(StateInit), uint32(StateRunning))

	for {
		st := vm.requestedState()
		vm.state.Store(uint32(st))

		switch st {
		case StateKill:
			return
		case StatePaused:
			vm.platform.SleepUs(pauseSleepUs)
		case StateStep:
			vm.schedulePass(1)
			// A step request performs one pass and reverts to
			// paused, unless a kill arrived meanwhile.
			vm.nextState.CompareAndSwap(uint32(StateStep), uint32(StatePaused))
		default:
			vm.schedulePass(vm.cfg.Quota)
		}
	}
}

// schedulePass wakes due sleepers, then gives the front ready context a
// slice of at most quota evaluator steps.
func (vm *VM) schedulePass(quota int) {
	idle := false

	vm.mu.Lock()
	vm.wakeSleepers(vm.platform.NowUs())

	if len(vm.ready) == 0 {
		idle = true
	} else {
		ctx := vm.ready[0]

		var outcome stepOutcome
		for i := 0; i < quota; i++ {
			outcome = vm.step(ctx)
			if outcome != stepContinue {
				break
			}
			if s := vm.requestedState(); s != StateRunning && s != StateStep {
				break
			}
		}

		if vm.killRequested() {
			// Kill discards in-flight work; leave the context where
			// it is and let Run return.
			vm.mu.Unlock()
			return
		}

		vm.ready = vm.ready[1:]
		switch outcome {
		case stepBlockedSleep:
			ctx.state = ctxBlocked
			ctx.reason = blockSleep
			ctx.timestampUs = vm.platform.NowUs()
			vm.blocked = append(vm.blocked, ctx)
		case stepBlockedMailbox:
			if len(ctx.mailbox) > 0 {
				// A message arrived during the slice; stay ready.
				vm.ready = append(vm.ready, ctx)
			} else {
				ctx.state = ctxBlocked
				ctx.reason = blockMailbox
				vm.blocked = append(vm.blocked, ctx)
			}
		case stepFinished, stepError:
			vm.finalize(ctx)
		default:
			vm.ready = append(vm.ready, ctx)
		}
	}
	vm.mu.Unlock()

	if idle {
		vm.platform.SleepUs(idleSleepUs)
	}
}

// wakeSleepers moves timed-blocked contexts whose wake time has passed
// back to the ready queue. There is no timer interrupt; the scheduler
// re-checks blocked contexts on every pass. Caller holds the lock.
func (vm *VM) wakeSleepers(nowUs int64) {
	kept := vm.blocked[:0]
	for _, ctx := range vm.blocked {
		if ctx.reason == blockSleep && nowUs >= ctx.timestampUs+ctx.sleepUs {
			ctx.state = ctxReady
			ctx.reason = blockNone
			vm.ready = append(vm.ready, ctx)
		} else {
			kept = append(kept, ctx)
		}
	}
	vm.blocked = kept
}

// finalize moves a context to the done queue. The platform's done
// callback fires synchronously before the context is queued, and every
// waiter is woken afterwards. Caller holds the lock and has already
// removed the context from its queue.
func (vm *VM) finalize(ctx *Context) {
	ctx.done = true
	ctx.state = ctxDone
	vm.platform.ContextDone(ctx)
	vm.done = append(vm.done, ctx)
	vm.doneCond.Broadcast()
}

// ---------------------------------------------------------------------------
// Cross-goroutine control surface
// ---------------------------------------------------------------------------

// Send appends msg to the mailbox of the context cid. If that context
// was blocked on its mailbox it becomes ready again. Send reports
// false if cid is unknown, already done, or its mailbox is full; a
// failed send never raises anything inside the target.
func (vm *VM) Send(cid CID, msg Value) bool {
	vm.mu.Lock()
	defer vm.mu.Unlock()
	return vm.sendLocked(cid, msg)
}

// sendLocked is Send for callers already holding the lock (the public
// entry point and in-guest send, which runs inside a step).
func (vm *VM) sendLocked(cid CID, msg Value) bool {
	ctx := vm.findLive(cid)
	if ctx == nil {
		return false
	}
	if !ctx.mailboxPush(msg) {
		return false
	}
	if ctx.state == ctxBlocked && ctx.reason == blockMailbox {
		vm.unblock(ctx)
	}
	return true
}

// findLive locates a context in the ready or blocked queues. Done
// contexts cannot receive. Caller holds the lock.
func (vm *VM) findLive(cid CID) *Context {
	for _, ctx := range vm.ready {
		if ctx.id == cid {
			return ctx
		}
	}
	for _, ctx := range vm.blocked {
		if ctx.id == cid {
			return ctx
		}
	}
	return nil
}

// unblock moves a blocked context to the ready queue. Caller holds the
// lock.
func (vm *VM) unblock(ctx *Context) {
	for i, c := range vm.blocked {
		if c == ctx {
			vm.blocked = append(vm.blocked[:i], vm.blocked[i+1:]...)
			break
		}
	}
	ctx.state = ctxReady
	ctx.reason = blockNone
	vm.ready = append(vm.ready, ctx)
}

// Wait blocks the calling goroutine until the context cid reaches the
// done queue, then returns its result. Waiting on a context that never
// finishes blocks until the VM is killed, in which case Wait returns
// ok == false.
func (vm *VM) Wait(cid CID) (Value, bool) {
	vm.mu.Lock()
	defer vm.mu.Unlock()

	for {
		for _, ctx := range vm.done {
			if ctx.id == cid {
				return ctx.r, true
			}
		}
		if vm.killRequested() {
			return Nil, false
		}
		vm.doneCond.Wait()
	}
}

// RemoveDone removes a finished context, releasing its continuation
// stack and mailbox, and returns its result. It reports false if cid
// is not in the done queue. The result value itself is handed to the
// caller and stays valid for the life of the VM.
func (vm *VM) RemoveDone(cid CID) (Value, bool) {
	vm.mu.Lock()
	defer vm.mu.Unlock()

	for i, ctx := range vm.done {
		if ctx.id == cid {
			vm.done = append(vm.done[:i], vm.done[i+1:]...)
			vm.live--
			r := ctx.r
			ctx.release()
			return r, true
		}
	}
	return Nil, false
}

// ---------------------------------------------------------------------------
// Queue iterators
// ---------------------------------------------------------------------------

// RunningDo applies f to every ready context. The traversal is
// read-only: f must not call back into the VM or retain the context.
func (vm *VM) RunningDo(f func(*Context)) {
	vm.mu.Lock()
	defer vm.mu.Unlock()
	for _, ctx := range vm.ready {
		f(ctx)
	}
}

// BlockedDo applies f to every blocked context. Same rules as RunningDo.
func (vm *VM) BlockedDo(f func(*Context)) {
	vm.mu.Lock()
	defer vm.mu.Unlock()
	for _, ctx := range vm.blocked {
		f(ctx)
	}
}

// DoneDo applies f to every finished, unremoved context. Same rules as
// RunningDo.
func (vm *VM) DoneDo(f func(*Context)) {
	vm.mu.Lock()
	defer vm.mu.Unlock()
	for _, ctx := range vm.done {
		f(ctx)
	}
}

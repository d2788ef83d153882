package vm

import (
	"testing"
	"time"
)

// ---------------------------------------------------------------------------
// Launch and context identity
// ---------------------------------------------------------------------------

func TestLaunchDistinctIDs(t *testing.T) {
	m, _ := newTestVM(Config{})
	seen := map[CID]bool{}
	for i := 0; i < 5; i++ {
		cid := m.Launch(m.List(num(int64(i))))
		if cid == 0 {
			t.Fatalf("launch %d returned 0", i)
		}
		if seen[cid] {
			t.Fatalf("id %d handed out twice", cid)
		}
		seen[cid] = true
	}
	if got := countReady(m); got != 5 {
		t.Errorf("ready contexts = %d, want 5", got)
	}
}

func TestLaunchIDsNeverReused(t *testing.T) {
	m, _ := newTestVM(Config{})
	first := m.Launch(m.List(num(1)))
	runToDone(t, m, first, 100)

	second := m.Launch(m.List(num(2)))
	if second <= first {
		t.Errorf("second id = %d, want > %d", second, first)
	}
}

func TestLaunchInvalidStackSize(t *testing.T) {
	m, _ := newTestVM(Config{})
	if cid := m.LaunchExt(m.List(num(1)), 0); cid != 0 {
		t.Errorf("stack size 0: cid = %d, want 0", cid)
	}
	if cid := m.LaunchExt(m.List(num(1)), -1); cid != 0 {
		t.Errorf("negative stack size: cid = %d, want 0", cid)
	}
	if cid := m.LaunchExt(m.List(num(1)), maxStackSize+1); cid != 0 {
		t.Errorf("oversized stack: cid = %d, want 0", cid)
	}
	if got := countReady(m); got != 0 {
		t.Errorf("ready contexts = %d, want 0", got)
	}
}

func TestLaunchMaxContexts(t *testing.T) {
	m, _ := newTestVM(Config{MaxContexts: 2})
	a := m.Launch(m.List(num(1)))
	b := m.Launch(m.List(num(2)))
	if a == 0 || b == 0 {
		t.Fatal("launches under the limit failed")
	}
	if cid := m.Launch(m.List(num(3))); cid != 0 {
		t.Errorf("over-limit launch: cid = %d, want 0", cid)
	}

	// Finished contexts still count until removed.
	runToDone(t, m, a, 100)
	if cid := m.Launch(m.List(num(4))); cid == 0 {
		t.Error("launch after RemoveDone failed")
	}
}

// ---------------------------------------------------------------------------
// Queues
// ---------------------------------------------------------------------------

func TestQueuesPartitionContexts(t *testing.T) {
	m, _ := newTestVM(Config{})
	m.Launch(m.List(m.List(m.Sym("sleep"), num(5000)), num(1)))
	m.Launch(m.List(num(2)))
	m.Launch(m.List(m.List(m.Sym("receive"))))

	// Drive until the plain context finishes.
	for i := 0; i < 50 && countDone(m) < 1; i++ {
		m.schedulePass(m.cfg.Quota)
	}

	// Every context is in exactly one queue.
	ids := map[CID]int{}
	m.RunningDo(func(c *Context) { ids[c.ID()]++ })
	m.BlockedDo(func(c *Context) { ids[c.ID()]++ })
	m.DoneDo(func(c *Context) { ids[c.ID()]++ })
	if len(ids) != 3 {
		t.Fatalf("distinct contexts across queues = %d, want 3", len(ids))
	}
	for cid, n := range ids {
		if n != 1 {
			t.Errorf("context %d appears in %d queues, want 1", cid, n)
		}
	}
	if got := countDone(m); got != 1 {
		t.Errorf("done contexts = %d, want 1", got)
	}
}

func TestRoundRobinRequeue(t *testing.T) {
	m, _ := newTestVM(Config{Quota: 2})
	// Two long-running contexts; neither may finish in one slice, so
	// the scheduler must alternate between them.
	a := m.LaunchExt(countdownProgram(m, 200), 64)
	b := m.LaunchExt(countdownProgram(m, 200), 64)

	va := runToDone(t, m, a, 100000)
	vb := runToDone(t, m, b, 100000)
	if !va.IsSmallInt() || va.SmallInt() != 42 {
		t.Errorf("context a = %v, want 42", m.Str(va))
	}
	if !vb.IsSmallInt() || vb.SmallInt() != 42 {
		t.Errorf("context b = %v, want 42", m.Str(vb))
	}
}

// ---------------------------------------------------------------------------
// Timed blocking
// ---------------------------------------------------------------------------

func TestSleepBlocksUntilDeadline(t *testing.T) {
	m, p := newTestVM(Config{})
	cid := m.Launch(m.List(m.List(m.Sym("sleep"), num(1000)), num(7)))

	// Run until the context parks in the blocked queue.
	for i := 0; i < 50 && countBlocked(m) == 0; i++ {
		m.schedulePass(m.cfg.Quota)
	}
	if countBlocked(m) != 1 {
		t.Fatal("context never blocked on sleep")
	}
	blockedAt := p.NowUs()

	v := runToDone(t, m, cid, 1000)
	if !v.IsSmallInt() || v.SmallInt() != 7 {
		t.Errorf("result = %v, want 7", m.Str(v))
	}
	if woke := p.NowUs(); woke < blockedAt+1000 {
		t.Errorf("woke at %dus after blocking at %dus, want >= 1000us later", woke, blockedAt)
	}
}

func TestSleepReturnsTrue(t *testing.T) {
	m, _ := newTestVM(Config{})
	cid := m.Launch(m.List(m.List(m.Sym("sleep"), num(10))))
	v := runToDone(t, m, cid, 1000)
	if v != True {
		t.Errorf("(sleep 10) = %v, want #t", m.Str(v))
	}
}

func TestSleepNonNumericDuration(t *testing.T) {
	m, _ := newTestVM(Config{})
	cid := m.Launch(m.List(m.List(m.Sym("sleep"), True)))
	v := runToDone(t, m, cid, 1000)
	if v != FromSymbolID(SymTypeError) {
		t.Errorf("result = %v, want type-error", m.Str(v))
	}
}

func TestYieldRequeues(t *testing.T) {
	m, _ := newTestVM(Config{})
	a := m.Launch(m.List(m.List(m.Sym("yield")), num(1)))
	b := m.Launch(m.List(num(2)))

	va := runToDone(t, m, a, 1000)
	vb := runToDone(t, m, b, 1000)
	if !va.IsSmallInt() || va.SmallInt() != 1 {
		t.Errorf("yielding context = %v, want 1", m.Str(va))
	}
	if !vb.IsSmallInt() || vb.SmallInt() != 2 {
		t.Errorf("sibling context = %v, want 2", m.Str(vb))
	}
}

// ---------------------------------------------------------------------------
// Wait, RemoveDone, done callback
// ---------------------------------------------------------------------------

func TestWaitReturnsResult(t *testing.T) {
	m := New(Config{}, nil)
	go m.Run()
	defer m.Kill()

	cid := m.Launch(m.List(m.List(m.Sym("+"), num(40), num(2))))
	v, ok := m.Wait(cid)
	if !ok {
		t.Fatal("Wait returned ok = false")
	}
	if !v.IsSmallInt() || v.SmallInt() != 42 {
		t.Errorf("result = %v, want 42", m.Str(v))
	}
}

func TestWaitUnblocksOnKill(t *testing.T) {
	m := New(Config{}, nil)
	go m.Run()

	// A context blocked on an empty mailbox never finishes.
	cid := m.Launch(m.List(m.List(m.Sym("receive"))))

	got := make(chan bool, 1)
	go func() {
		_, ok := m.Wait(cid)
		got <- ok
	}()

	time.Sleep(10 * time.Millisecond)
	m.Kill()

	select {
	case ok := <-got:
		if ok {
			t.Error("Wait after Kill: ok = true, want false")
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Wait did not return after Kill")
	}
}

func TestRemoveDone(t *testing.T) {
	m, _ := newTestVM(Config{})
	cid := m.Launch(m.List(num(9)))
	for i := 0; i < 100 && countDone(m) == 0; i++ {
		m.schedulePass(m.cfg.Quota)
	}

	v, ok := m.RemoveDone(cid)
	if !ok {
		t.Fatal("RemoveDone returned false for a finished context")
	}
	if !v.IsSmallInt() || v.SmallInt() != 9 {
		t.Errorf("result = %v, want 9", m.Str(v))
	}
	if _, ok := m.RemoveDone(cid); ok {
		t.Error("second RemoveDone returned true")
	}
	if got := countDone(m); got != 0 {
		t.Errorf("done contexts = %d, want 0", got)
	}
}

func TestRemoveDoneUnknown(t *testing.T) {
	m, _ := newTestVM(Config{})
	if _, ok := m.RemoveDone(99); ok {
		t.Error("RemoveDone(99) returned true")
	}
}

func TestDoneCallbackFiresOncePerContext(t *testing.T) {
	m, p := newTestVM(Config{})
	a := m.Launch(m.List(num(1)))
	b := m.Launch(m.List(m.Sym("no-such-var"))) // finishes with an error
	runToDone(t, m, a, 100)
	runToDone(t, m, b, 100)

	p.mu.Lock()
	defer p.mu.Unlock()
	if len(p.doneIDs) != 2 {
		t.Fatalf("done callbacks = %d, want 2", len(p.doneIDs))
	}
	seen := map[CID]bool{p.doneIDs[0]: true, p.doneIDs[1]: true}
	if !seen[a] || !seen[b] {
		t.Errorf("done callbacks for %v, want {%d, %d}", p.doneIDs, a, b)
	}
}

// ---------------------------------------------------------------------------
// Evaluator state machine
// ---------------------------------------------------------------------------

func waitForState(t *testing.T, m *VM, want EvalState) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if m.State() == want {
			return
		}
		time.Sleep(time.Millisecond)
	}
	t.Fatalf("state = %v, want %v", m.State(), want)
}

func TestStateMachinePauseResumeKill(t *testing.T) {
	m := New(Config{}, nil)
	if m.State() != StateInit {
		t.Fatalf("initial state = %v, want init", m.State())
	}

	stopped := make(chan struct{})
	go func() {
		m.Run()
		close(stopped)
	}()
	waitForState(t, m, StateRunning)

	m.Pause()
	waitForState(t, m, StatePaused)

	m.Resume()
	waitForState(t, m, StateRunning)

	m.Kill()
	select {
	case <-stopped:
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return after Kill")
	}
}

func TestStateMachineStepRevertsToPaused(t *testing.T) {
	m := New(Config{}, nil)
	go m.Run()
	defer m.Kill()

	m.Pause()
	waitForState(t, m, StatePaused)

	cid := m.Launch(m.List(m.List(m.Sym("+"), num(1), num(2))))

	isDone := func() bool {
		found := false
		m.DoneDo(func(c *Context) {
			if c.ID() == cid {
				found = true
			}
		})
		return found
	}

	// Single-stepping eventually finishes the context; after every
	// step request the loop must return to paused on its own.
	deadline := time.Now().Add(2 * time.Second)
	for !isDone() {
		if time.Now().After(deadline) {
			t.Fatal("stepping never finished the context")
		}
		m.StepEval()
		waitForState(t, m, StatePaused)
	}
	if m.State() != StatePaused {
		t.Errorf("state after stepping = %v, want paused", m.State())
	}
}

func TestPausedEvaluatorDoesNotAdvance(t *testing.T) {
	m := New(Config{}, nil)
	go m.Run()
	defer m.Kill()
	waitForState(t, m, StateRunning)

	m.Pause()
	waitForState(t, m, StatePaused)

	// Launched while paused; must still be sitting in the ready
	// queue untouched after a grace period.
	cid := m.Launch(m.List(num(1)))
	time.Sleep(20 * time.Millisecond)
	if got := countDone(m); got != 0 {
		t.Errorf("done contexts while paused = %d, want 0", got)
	}

	m.Resume()
	if v, ok := m.Wait(cid); !ok || !v.IsSmallInt() || v.SmallInt() != 1 {
		t.Errorf("after resume: result = %v ok = %v, want 1 true", m.Str(v), ok)
	}
}

package vm

import (
	"sync"
	"sync/atomic"
	"testing"
)

// ---------------------------------------------------------------------------
// Test harness: fake platform plus synchronous scheduling helpers
// ---------------------------------------------------------------------------

// testPlatform is a Platform with a fake microsecond clock. SleepUs
// advances the clock instead of blocking, which makes timed tests
// deterministic and instant.
type testPlatform struct {
	nowUs atomic.Int64

	mu      sync.Mutex
	doneIDs []CID
}

func (p *testPlatform) SleepUs(us int64) {
	p.nowUs.Add(us)
}

func (p *testPlatform) NowUs() int64 {
	return p.nowUs.Load()
}

func (p *testPlatform) ContextDone(ctx *Context) {
	p.mu.Lock()
	p.doneIDs = append(p.doneIDs, ctx.ID())
	p.mu.Unlock()
}

func (p *testPlatform) doneCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.doneIDs)
}

// newTestVM builds a VM on a fake clock and marks it running, so tests
// can drive schedulePass directly without a Run goroutine.
func newTestVM(cfg Config) (*VM, *testPlatform) {
	p := &testPlatform{}
	m := New(cfg, p)
	m.requestState(StateRunning)
	return m, p
}

// runToDone drives the scheduler until context cid finishes, then
// removes it and returns its result.
func runToDone(t *testing.T, m *VM, cid CID, maxPasses int) Value {
	t.Helper()
	for i := 0; i < maxPasses; i++ {
		m.schedulePass(m.cfg.Quota)
		if v, ok := m.RemoveDone(cid); ok {
			return v
		}
	}
	t.Fatalf("context %d did not finish within %d passes", cid, maxPasses)
	return Nil
}

// evalExpr launches a one-form program and runs it to completion.
func evalExpr(t *testing.T, m *VM, exp Value) Value {
	t.Helper()
	cid := m.Launch(m.List(exp))
	if cid == 0 {
		t.Fatal("Launch returned 0")
	}
	return runToDone(t, m, cid, 10000)
}

func num(n int64) Value {
	return FromSmallInt(n)
}

func countReady(m *VM) int {
	n := 0
	m.RunningDo(func(*Context) { n++ })
	return n
}

func countBlocked(m *VM) int {
	n := 0
	m.BlockedDo(func(*Context) { n++ })
	return n
}

func countDone(m *VM) int {
	n := 0
	m.DoneDo(func(*Context) { n++ })
	return n
}

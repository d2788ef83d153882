package vm

import (
	"sync"
	"sync/atomic"
)

// ---------------------------------------------------------------------------
// VM: the wisp runtime
// ---------------------------------------------------------------------------

// EvalState is the process-wide evaluator state machine.
type EvalState uint32

const (
	StateInit EvalState = iota
	StatePaused
	StateRunning
	StateStep
	StateKill
)

func (s EvalState) String() string {
	switch s {
	case StateInit:
		return "init"
	case StatePaused:
		return "paused"
	case StateRunning:
		return "running"
	case StateStep:
		return "step"
	case StateKill:
		return "kill"
	}
	return "unknown"
}

// Config tunes a VM. Zero values take defaults.
type Config struct {
	// Quota is the number of evaluator steps a ready context gets per
	// scheduler visit before being requeued at the back.
	Quota int

	// DefaultStackSize is the continuation stack capacity used by
	// Launch. LaunchExt overrides it per context.
	DefaultStackSize int

	// MailboxSize caps each context's mailbox.
	MailboxSize int

	// MaxContexts bounds how many live (not yet removed) contexts can
	// exist at once. 0 means unlimited.
	MaxContexts int
}

const (
	defaultQuota       = 30
	defaultStackSize   = 256
	defaultMailboxSize = 16
	maxStackSize       = 1 << 20

	// Microseconds the loop sleeps when paused or idle.
	pauseSleepUs = 1000
	idleSleepUs  = 500
)

func (c Config) withDefaults() Config {
	if c.Quota <= 0 {
		c.Quota = defaultQuota
	}
	if c.DefaultStackSize <= 0 {
		c.DefaultStackSize = defaultStackSize
	}
	if c.MailboxSize <= 0 {
		c.MailboxSize = defaultMailboxSize
	}
	return c
}

// Extension is a host function callable from guest code. It receives
// fully evaluated arguments and returns a result value; failures are
// reported by returning an error symbol.
type Extension func(vm *VM, args []Value) Value

// VM is a wisp runtime instance: value heap, symbol table, global
// environment, built-in table, and the cooperative scheduler. All
// process-wide state lives here; independent VMs do not share
// anything.
//
// Run occupies one goroutine for the life of the VM. Every other
// exported method is safe to call concurrently with Run; the control
// requests (Pause, Resume, StepEval, Kill) are observed by the loop at
// its next safe point, so callers must poll State rather than assume
// immediate effect.
type VM struct {
	Symbols *SymbolTable

	cfg      Config
	platform Platform

	// Value heap.
	heapMu sync.RWMutex
	cells  []cell
	strs   []string

	// Global environment root.
	envMu     sync.RWMutex
	globalEnv Value

	// Built-ins and registered extensions, keyed by symbol. Fixed
	// after Run starts.
	funs map[SymbolID]Extension

	// Scheduler state. mu guards the queues, every context's fields,
	// and mailboxes. doneCond is broadcast on every done transition
	// so Wait cannot race past one.
	mu       sync.Mutex
	doneCond *sync.Cond
	ready    []*Context
	blocked  []*Context
	done     []*Context
	nextCID  CID
	live     int

	// state is what the loop last observed; nextState is what the
	// control API most recently requested. The loop adopts nextState
	// at each safe point, so callers must poll State to learn when a
	// request has taken effect.
	state     atomic.Uint32
	nextState atomic.Uint32
}

// New creates a VM. The platform may be nil, in which case a
// HostPlatform is used.
func New(cfg Config, p Platform) *VM {
	if p == nil {
		p = NewHostPlatform()
	}
	vm := &VM{
		Symbols:   NewSymbolTable(),
		cfg:       cfg.withDefaults(),
		platform:  p,
		globalEnv: Nil,
		funs:      make(map[SymbolID]Extension),
		nextCID:   1,
	}
	vm.doneCond = sync.NewCond(&vm.mu)
	vm.state.Store(uint32(StateInit))
	vm.nextState.Store(uint32(StateInit))
	registerFundamentals(vm)
	return vm
}

// AddExtension registers a host function under name. Extensions must
// be registered before Run starts.
func (vm *VM) AddExtension(name string, fn Extension) {
	vm.funs[vm.Symbols.Intern(name)] = fn
}

// State returns the evaluator state as last observed by the loop.
// Control requests are asynchronous: after Pause, for example, the
// evaluator has stopped advancing contexts only once State reports
// StatePaused.
func (vm *VM) State() EvalState {
	return EvalState(vm.state.Load())
}

func (vm *VM) requestState(s EvalState) {
	vm.nextState.Store(uint32(s))
}

func (vm *VM) requestedState() EvalState {
	return EvalState(vm.nextState.Load())
}

func (vm *VM) killRequested() bool {
	return vm.requestedState() == StateKill
}

// Pause requests that the evaluator stop advancing contexts at its
// next safe point. Poll State to observe the transition.
func (vm *VM) Pause() {
	vm.requestState(StatePaused)
}

// Resume continues a paused evaluator.
func (vm *VM) Resume() {
	vm.requestState(StateRunning)
}

// StepEval performs one scheduling pass (one context, one step) and
// returns the evaluator to paused. Meaningful only while paused.
func (vm *VM) StepEval() {
	vm.requestState(StateStep)
}

// Kill shuts the evaluator down: Run returns at its next safe point,
// discarding any in-flight ready and blocked contexts. This is the
// only cancellation primitive and it is global.
func (vm *VM) Kill() {
	vm.requestState(StateKill)
	// Unstick external waiters; their contexts will never finish.
	vm.mu.Lock()
	vm.doneCond.Broadcast()
	vm.mu.Unlock()
}

// Launch creates a ready context for program (a list of top-level
// forms) with the default continuation stack size. It returns the new
// context id, or 0 if no context could be created. Nothing runs until
// Run is active.
func (vm *VM) Launch(program Value) CID {
	return vm.LaunchExt(program, vm.cfg.DefaultStackSize)
}

// LaunchExt is Launch with an explicit continuation stack size.
func (vm *VM) LaunchExt(program Value, stackSize int) CID {
	vm.mu.Lock()
	defer vm.mu.Unlock()
	return vm.launchLocked(program, stackSize, Nil)
}

// launchLocked allocates and enqueues a context. Caller holds the
// lock; spawn calls this from inside a step. env seeds the context's
// environment, which is how spawn captures the parent's.
func (vm *VM) launchLocked(program Value, stackSize int, env Value) CID {
	if stackSize <= 0 || stackSize > maxStackSize {
		return 0
	}
	if vm.cfg.MaxContexts > 0 && vm.live >= vm.cfg.MaxContexts {
		return 0
	}

	id := vm.nextCID
	vm.nextCID++
	ctx := newContext(id, program, stackSize, vm.cfg.MailboxSize)
	ctx.currEnv = env
	ctx.K.frames[0].a = env
	vm.ready = append(vm.ready, ctx)
	vm.live++
	return id
}

// LaunchDefinedExpression launches a context evaluating the expression
// bound to name in the global environment. Returns 0 if name is
// unbound.
func (vm *VM) LaunchDefinedExpression(name string) CID {
	v, ok := vm.Lookup(vm.Symbols.Intern(name))
	if !ok {
		return 0
	}
	return vm.Launch(vm.List(v))
}

// LaunchDefinedProgram launches a context evaluating the program (list
// of forms) bound to name in the global environment. Returns 0 if name
// is unbound or not a list.
func (vm *VM) LaunchDefinedProgram(name string) CID {
	v, ok := vm.Lookup(vm.Symbols.Intern(name))
	if !ok || !v.IsCons() {
		return 0
	}
	return vm.Launch(v)
}

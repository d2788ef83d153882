package vm

// ---------------------------------------------------------------------------
// Context: one lightweight wisp process
// ---------------------------------------------------------------------------

// CID identifies a context. IDs are small positive integers handed out
// by Launch; 0 is reserved to mean "no context" and doubles as the
// failure return of the launch calls. IDs are never reused.
type CID int32

// ctxState mirrors which scheduler queue a context occupies. A context
// is in exactly one queue at any time.
type ctxState uint8

const (
	ctxReady ctxState = iota
	ctxBlocked
	ctxDone
)

// blockReason records why a blocked context is blocked.
type blockReason uint8

const (
	blockNone blockReason = iota
	blockMailbox
	blockSleep
)

// Context is the unit of concurrency: a guest program plus the explicit
// machine state needed to suspend and resume it between scheduler
// slices. Contexts are owned by the scheduler queues; external code
// only ever observes them through the queue iterators and the done
// callback, and must treat them as read-only.
type Context struct {
	id CID

	program Value // remaining top-level forms
	currExp Value // expression being reduced
	currEnv Value // lexical environment of currExp

	r       Value // result register
	done    bool
	appCont bool // consume r via K rather than reduce currExp

	K contStack

	mailbox    []Value
	mailboxCap int

	// Scheduling metadata. timestampUs is the time the context
	// blocked; sleepUs the requested sleep duration.
	state       ctxState
	reason      blockReason
	timestampUs int64
	sleepUs     int64
}

// ID returns the context id.
func (c *Context) ID() CID { return c.id }

// Result returns the context's result register. Meaningful for
// observation once the context is done.
func (c *Context) Result() Value { return c.r }

// IsDone reports whether the context has finished.
func (c *Context) IsDone() bool { return c.done }

// StackDepth returns the current continuation stack depth.
func (c *Context) StackDepth() int { return c.K.depth() }

// MailboxLen returns the number of pending messages.
func (c *Context) MailboxLen() int { return len(c.mailbox) }

// newContext builds a ready-to-run context for a program (a list of
// top-level forms). The initial machine state is apply-continuation
// mode over the sentinel frame, which pulls the first form out of the
// program on the first step.
func newContext(id CID, program Value, stackSize, mailboxCap int) *Context {
	c := &Context{
		id:         id,
		program:    program,
		currExp:    Nil,
		currEnv:    Nil,
		r:          Nil,
		appCont:    true,
		K:          newContStack(stackSize),
		mailboxCap: mailboxCap,
		state:      ctxReady,
	}
	c.K.push(frame{kind: contDone, a: Nil, b: Nil, c: Nil, d: Nil})
	return c
}

// mailboxPush appends a message, reporting false when the mailbox is
// full. Caller holds the VM lock.
func (c *Context) mailboxPush(msg Value) bool {
	if len(c.mailbox) >= c.mailboxCap {
		return false
	}
	c.mailbox = append(c.mailbox, msg)
	return true
}

// mailboxPop dequeues the oldest message. Caller holds the VM lock and
// has checked the mailbox is non-empty.
func (c *Context) mailboxPop() Value {
	msg := c.mailbox[0]
	copy(c.mailbox, c.mailbox[1:])
	c.mailbox = c.mailbox[:len(c.mailbox)-1]
	return msg
}

// release drops the bulky per-context state once the context has been
// removed from the done queue. The result value is not touched; it is
// handed to the caller of RemoveDone.
func (c *Context) release() {
	c.K.frames = nil
	c.mailbox = nil
	c.program = Nil
	c.currExp = Nil
	c.currEnv = Nil
}

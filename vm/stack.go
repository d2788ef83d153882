package vm

// ---------------------------------------------------------------------------
// Continuation stack
// ---------------------------------------------------------------------------
//
// The continuation stack makes guest recursion explicit: frames are
// pushed as an expression is torn apart and popped as results bubble
// up. Because the whole stack is heap data, a context can be suspended
// and resumed at arbitrary depth without unwinding anything native.
//
// Each context owns one stack with a fixed capacity chosen at launch.
// Overflow is reported to the caller of push, never panicked: running
// out of continuation stack is a context-level error, not a VM-level
// one.

// contKind tags a continuation frame with the syntactic work it resumes.
type contKind uint8

const (
	// contDone is the sentinel bottom frame. Popping it with an empty
	// program finishes the context.
	contDone contKind = iota

	// contSetGlobal binds the produced value to a symbol (define).
	// a: the symbol.
	contSetGlobal

	// contIfBranch selects a branch with the produced condition.
	// a: then-expression, b: else-expression, c: saved environment.
	contIfBranch

	// contProgn evaluates the rest of a sequence, discarding the
	// produced value. a: remaining forms, b: saved environment.
	contProgn

	// contApplyArgs accumulates evaluated operator/operands.
	// a: remaining argument expressions, b: saved environment,
	// c: evaluated values so far, reversed, operator innermost.
	contApplyArgs

	// contLetBind resolves one let binding.
	// a: symbol being bound, b: remaining bindings, c: extended
	// environment, d: body.
	contLetBind

	// contAnd and contOr evaluate short-circuit sequences.
	// a: remaining forms, b: saved environment.
	contAnd
	contOr

	// contSleep blocks the context once the duration is evaluated.
	contSleep

	// contSendTarget has evaluated the target cid; it evaluates the
	// message next. a: message expression, b: saved environment.
	contSendTarget

	// contSendMessage delivers the evaluated message. a: target cid.
	contSendMessage
)

// frame is one continuation record: a kind plus up to four captured
// values. Everything a frame needs to resume is itself a Value, so the
// collector contract for roots is simply "every slot of every frame".
type frame struct {
	kind contKind
	a    Value
	b    Value
	c    Value
	d    Value
}

// contStack is a bounded stack of continuation frames.
type contStack struct {
	frames []frame
	max    int
}

func newContStack(size int) contStack {
	return contStack{
		frames: make([]frame, 0, size),
		max:    size,
	}
}

// push appends a frame, reporting false on overflow.
func (s *contStack) push(f frame) bool {
	if len(s.frames) >= s.max {
		return false
	}
	s.frames = append(s.frames, f)
	return true
}

// pop removes and returns the top frame. The caller must ensure the
// stack is non-empty; while a context is live the sentinel bottom
// frame guarantees that.
func (s *contStack) pop() frame {
	f := s.frames[len(s.frames)-1]
	s.frames = s.frames[:len(s.frames)-1]
	return f
}

func (s *contStack) depth() int {
	return len(s.frames)
}

func (s *contStack) empty() bool {
	return len(s.frames) == 0
}

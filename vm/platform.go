package vm

import (
	"time"
)

// Platform is the capability object the embedder supplies to a VM. It
// covers the three hooks the scheduler needs from its host: a way to
// sleep when there is no ready work, a monotonic clock for timed
// blocking, and notification of every context that finishes.
//
// ContextDone fires synchronously on the evaluator goroutine at the
// moment a context transitions to done, before the context enters the
// done queue. The callback must not call back into the control API.
type Platform interface {
	// SleepUs blocks the evaluator goroutine for roughly us
	// microseconds.
	SleepUs(us int64)

	// NowUs returns a monotonic timestamp in microseconds.
	NowUs() int64

	// ContextDone is invoked for every context that finishes.
	ContextDone(ctx *Context)
}

// HostPlatform is the default Platform backed by the Go runtime clock.
type HostPlatform struct {
	start time.Time

	// OnDone, when set, is forwarded every finished context.
	OnDone func(ctx *Context)
}

// NewHostPlatform creates a Platform using the host clock.
func NewHostPlatform() *HostPlatform {
	return &HostPlatform{start: time.Now()}
}

func (p *HostPlatform) SleepUs(us int64) {
	time.Sleep(time.Duration(us) * time.Microsecond)
}

func (p *HostPlatform) NowUs() int64 {
	return time.Since(p.start).Microseconds()
}

func (p *HostPlatform) ContextDone(ctx *Context) {
	if p.OnDone != nil {
		p.OnDone(ctx)
	}
}

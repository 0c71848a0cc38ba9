// Package delay runs deferred state changes where only the most recent
// request counts. A newer Schedule supersedes the pending one, whose effect
// is discarded.
package delay

import (
	"context"
	"sync"
	"time"
)

// Outcome is how a scheduled operation ended.
type Outcome int

const (
	Pending Outcome = iota
	Applied
	Superseded
	Cancelled
)

func (o Outcome) String() string {
	switch o {
	case Applied:
		return "applied"
	case Superseded:
		return "superseded"
	case Cancelled:
		return "cancelled"
	default:
		return "pending"
	}
}

// Op is a handle on one scheduled operation. Its outcome is decided exactly
// once.
type Op struct {
	gen  uint64
	done chan struct{}

	once    sync.Once
	outcome Outcome
	timer   *time.Timer
}

func newOp(gen uint64) *Op {
	return &Op{gen: gen, done: make(chan struct{})}
}

func (o *Op) finish(out Outcome) bool {
	won := false
	o.once.Do(func() {
		o.outcome = out
		won = true
		close(o.done)
	})
	return won
}

// Done is closed once the outcome is known.
func (o *Op) Done() <-chan struct{} { return o.done }

// Outcome returns the final outcome, or Pending if it is not known yet.
func (o *Op) Outcome() Outcome {
	select {
	case <-o.done:
		return o.outcome
	default:
		return Pending
	}
}

// Wait blocks until the outcome is known or ctx ends. Giving up on the wait
// does not cancel the operation.
func (o *Op) Wait(ctx context.Context) (Outcome, error) {
	select {
	case <-o.done:
		return o.outcome, nil
	case <-ctx.Done():
		return Pending, ctx.Err()
	}
}

// Latest applies the most recently scheduled function after a fixed delay.
// Applications never overlap, and an operation that is no longer the newest
// by the time it gets to run is superseded instead of applied.
type Latest struct {
	delay time.Duration

	// applyMu serialises calls to scheduled functions.
	applyMu sync.Mutex

	mu      sync.Mutex
	gen     uint64
	pending *Op
}

// New returns a Latest with the given delay. A delay of zero or less applies
// synchronously inside Schedule.
func New(d time.Duration) *Latest {
	return &Latest{delay: d}
}

func (l *Latest) Delay() time.Duration { return l.delay }

// Schedule supersedes any pending operation and arranges for fn to run after
// the delay.
func (l *Latest) Schedule(fn func()) *Op {
	l.mu.Lock()
	l.gen++
	op := newOp(l.gen)
	l.dropPendingLocked(Superseded)

	if l.delay <= 0 {
		l.mu.Unlock()
		l.apply(op, fn)
		return op
	}

	l.pending = op
	op.timer = time.AfterFunc(l.delay, func() { l.fire(op, fn) })
	l.mu.Unlock()
	return op
}

func (l *Latest) fire(op *Op, fn func()) {
	l.mu.Lock()
	if l.pending == op {
		l.pending = nil
	}
	l.mu.Unlock()
	l.apply(op, fn)
}

// apply runs fn for op unless a newer Schedule or a Cancel happened first.
// The generation is checked with applyMu held, so an older operation can
// never run after a newer one.
func (l *Latest) apply(op *Op, fn func()) {
	l.applyMu.Lock()
	defer l.applyMu.Unlock()

	l.mu.Lock()
	stale := l.gen != op.gen
	l.mu.Unlock()
	if stale {
		op.finish(Superseded)
		return
	}

	if fn != nil {
		fn()
	}
	op.finish(Applied)
}

// Cancel discards the pending operation, if any.
func (l *Latest) Cancel() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.gen++
	l.dropPendingLocked(Cancelled)
}

// Pending reports whether an operation is waiting to fire.
func (l *Latest) Pending() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.pending != nil
}

func (l *Latest) dropPendingLocked(out Outcome) {
	if l.pending == nil {
		return
	}
	if l.pending.timer != nil {
		l.pending.timer.Stop()
	}
	l.pending.finish(out)
	l.pending = nil
}

// Sleep waits for d or until ctx ends, whichever comes first.
func Sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Package event provides the cooperative event loop, cancelable timers and
// typed signal emitters that the notification state machines run on.
package event

import (
	"context"
	"sync"
	"sync/atomic"
	"time"
)

// TimerHandle is a cancelable deferred callback armed on a Scheduler.
type TimerHandle interface {
	// Stop cancels the timer. Canceling an already-fired or already-stopped
	// timer is a safe no-op. After Stop returns the callback will not run.
	Stop()
}

// Scheduler schedules callbacks onto a single control goroutine.
// Callbacks posted via Post run in the order they were posted.
type Scheduler interface {
	Post(fn func())
	AfterFunc(d time.Duration, fn func()) TimerHandle
}

// Loop is the daemon's control loop. All notification state transitions run
// on it, so the components it drives need no locking of their own.
type Loop struct {
	work chan func()

	mu      sync.Mutex
	stopped bool
	done    chan struct{}
}

// NewLoop creates a Loop. Run must be called before posted work executes.
func NewLoop() *Loop {
	return &Loop{
		work: make(chan func(), 256),
		done: make(chan struct{}),
	}
}

// Run executes posted callbacks until ctx is canceled or Stop is called.
func (l *Loop) Run(ctx context.Context) {
	defer close(l.done)
	for {
		select {
		case fn := <-l.work:
			fn()
		case <-ctx.Done():
			l.drain()
			return
		}
	}
}

// drain runs whatever was already queued so shutdown observers still fire.
func (l *Loop) drain() {
	for {
		select {
		case fn := <-l.work:
			fn()
		default:
			return
		}
	}
}

// Post schedules fn to run on the loop goroutine. Posts from the same
// goroutine run in order. Posting to a stopped loop discards fn.
func (l *Loop) Post(fn func()) {
	l.mu.Lock()
	stopped := l.stopped
	l.mu.Unlock()
	if stopped {
		return
	}
	select {
	case l.work <- fn:
	case <-l.done:
	}
}

// Stop marks the loop as stopped; pending work already queued still runs
// if Run is draining.
func (l *Loop) Stop() {
	l.mu.Lock()
	l.stopped = true
	l.mu.Unlock()
}

// AfterFunc arms a timer that posts fn onto the loop after d. The returned
// handle's Stop is synchronous and idempotent: once Stop returns, fn is
// guaranteed not to run even if the underlying timer already fired.
func (l *Loop) AfterFunc(d time.Duration, fn func()) TimerHandle {
	lt := &loopTimer{}
	lt.timer = time.AfterFunc(d, func() {
		l.Post(func() {
			if lt.canceled.Load() {
				return
			}
			fn()
		})
	})
	return lt
}

type loopTimer struct {
	timer    *time.Timer
	canceled atomic.Bool
}

func (lt *loopTimer) Stop() {
	lt.canceled.Store(true)
	lt.timer.Stop()
}

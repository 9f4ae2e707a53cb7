// Package eventloop runs closures one at a time on a single goroutine.
//
// A Loop is the logical owner of a viewing session: every mutation of
// session state is posted to it, so components never need their own locks.
// Blocking work runs elsewhere and rejoins the loop by posting its result.
package eventloop

import (
	"errors"
	"sync"
	"sync/atomic"
	"time"
)

// ErrClosed is returned by Call once the loop has stopped.
var ErrClosed = errors.New("eventloop: closed")

// Executor accepts closures to run on the loop goroutine.
type Executor interface {
	Post(fn func())
}

// Loop is a single-goroutine cooperative scheduler.
type Loop struct {
	mu     sync.Mutex
	queue  []func()
	closed bool
	wake   chan struct{}
	done   chan struct{}
}

// New starts a loop goroutine.
func New() *Loop {
	l := &Loop{
		wake: make(chan struct{}, 1),
		done: make(chan struct{}),
	}
	go l.run()
	return l
}

// Post queues fn. It never blocks; closures posted after Close are dropped.
func (l *Loop) Post(fn func()) {
	if fn == nil {
		return
	}
	l.mu.Lock()
	if l.closed {
		l.mu.Unlock()
		return
	}
	l.queue = append(l.queue, fn)
	l.mu.Unlock()
	l.signal()
}

// Call runs fn on the loop and waits for it to return.
// It must not be called from the loop goroutine itself.
func (l *Loop) Call(fn func()) error {
	ran := make(chan struct{})
	l.mu.Lock()
	if l.closed {
		l.mu.Unlock()
		return ErrClosed
	}
	l.queue = append(l.queue, func() {
		defer close(ran)
		fn()
	})
	l.mu.Unlock()
	l.signal()

	select {
	case <-ran:
		return nil
	case <-l.done:
		select {
		case <-ran:
			return nil
		default:
			return ErrClosed
		}
	}
}

// Repeat posts fn every interval until the returned cancel func is called
// or the loop stops. At most one tick is queued at a time, and a tick queued
// before cancel does not run after it.
func (l *Loop) Repeat(interval time.Duration, fn func()) (cancel func()) {
	if interval <= 0 {
		interval = 16 * time.Millisecond
	}
	var (
		canceled atomic.Bool
		pending  atomic.Bool
		once     sync.Once
	)
	stop := make(chan struct{})
	tick := func() {
		pending.Store(false)
		if canceled.Load() {
			return
		}
		fn()
	}

	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-stop:
				return
			case <-l.done:
				return
			case <-ticker.C:
				if pending.CompareAndSwap(false, true) {
					l.Post(tick)
				}
			}
		}
	}()

	return func() {
		once.Do(func() {
			canceled.Store(true)
			close(stop)
		})
	}
}

// Close stops the loop after the closures already queued have run.
func (l *Loop) Close() {
	l.mu.Lock()
	if l.closed {
		l.mu.Unlock()
		return
	}
	l.closed = true
	l.mu.Unlock()
	l.signal()
}

// Done is closed when the loop goroutine exits.
func (l *Loop) Done() <-chan struct{} {
	return l.done
}

// signal wakes the loop goroutine without blocking.
func (l *Loop) signal() {
	select {
	case l.wake <- struct{}{}:
	default:
	}
}

// run drains the queue until the loop is closed and empty.
func (l *Loop) run() {
	defer close(l.done)
	for {
		l.mu.Lock()
		batch := l.queue
		l.queue = nil
		closed := l.closed
		l.mu.Unlock()

		for _, fn := range batch {
			fn()
		}
		if len(batch) > 0 {
			continue
		}
		if closed {
			return
		}
		<-l.wake
	}
}

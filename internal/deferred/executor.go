// Package deferred runs single-shot callbacks after a delay. Callbacks are
// handed to a serializer so they run in the same execution context as the
// key and render hooks.
package deferred

import (
	"sync"
	"time"

	"kbd-indicator/internal/logger"
)

// Token identifies a scheduled callback. The zero Token is never issued.
type Token uint64

const InvalidToken Token = 0

// Serializer runs fn in the owner's execution context.
type Serializer func(fn func())

type Executor struct {
	logger *logger.Logger
	run    Serializer

	mu      sync.Mutex
	next    Token
	pending map[Token]*time.Timer
	stopped bool
}

// New creates an executor. A nil run executes callbacks directly on the
// timer goroutine.
func New(l *logger.Logger, run Serializer) *Executor {
	if run == nil {
		run = func(fn func()) { fn() }
	}
	return &Executor{
		logger:  l,
		run:     run,
		pending: make(map[Token]*time.Timer),
	}
}

// Defer schedules fn after delay.
func (e *Executor) Defer(delay time.Duration, fn func()) Token {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.stopped {
		return InvalidToken
	}

	e.next++
	tok := e.next
	e.pending[tok] = time.AfterFunc(delay, func() {
		e.run(func() {
			if !e.take(tok) {
				return
			}
			fn()
		})
	})
	e.logger.Debugf("Deferred callback %d in %v", tok, delay)
	return tok
}

// Cancel drops a pending callback. A callback whose timer already fired but
// has not yet been run by the serializer is dropped as well.
func (e *Executor) Cancel(tok Token) bool {
	e.mu.Lock()
	defer e.mu.Unlock()

	t, ok := e.pending[tok]
	if !ok {
		return false
	}
	t.Stop()
	delete(e.pending, tok)
	e.logger.Debugf("Cancelled deferred callback %d", tok)
	return true
}

// Pending reports the number of outstanding callbacks.
func (e *Executor) Pending() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.pending)
}

// Stop cancels everything and refuses new callbacks.
func (e *Executor) Stop() {
	e.mu.Lock()
	defer e.mu.Unlock()

	for tok, t := range e.pending {
		t.Stop()
		delete(e.pending, tok)
	}
	e.stopped = true
}

func (e *Executor) take(tok Token) bool {
	e.mu.Lock()
	defer e.mu.Unlock()

	if _, ok := e.pending[tok]; !ok {
		return false
	}
	delete(e.pending, tok)
	return true
}

// Package scheduler runs all tool work on one goroutine and coalesces bursts
// of change notifications into single deferred passes.
package scheduler

import (
	"errors"
	"fmt"
	"sync"
	"time"
)

// ErrClosed is returned when work is submitted to a closed loop.
var ErrClosed = errors.New("scheduler loop closed")

// Logger interface for pluggable logging.
type Logger interface {
	Debug(msg string, keysAndValues ...any)
	Info(msg string, keysAndValues ...any)
	Error(msg string, keysAndValues ...any)
}

// Loop executes posted tasks one at a time, in order, on its own goroutine.
type Loop struct {
	tasks  *Queue[func()]
	wake   chan struct{}
	quit   chan struct{}
	done   chan struct{}
	logger Logger

	mu     sync.Mutex
	closed bool
}

// NewLoop starts a loop.
func NewLoop(logger Logger) *Loop {
	l := &Loop{
		tasks:  NewQueue[func()](),
		wake:   make(chan struct{}, 1),
		quit:   make(chan struct{}),
		done:   make(chan struct{}),
		logger: logger,
	}
	go l.run()
	return l
}

// Post queues fn. It returns false if the loop is closed.
func (l *Loop) Post(fn func()) bool {
	l.mu.Lock()
	if l.closed {
		l.mu.Unlock()
		return false
	}
	l.tasks.Push(fn)
	l.mu.Unlock()

	select {
	case l.wake <- struct{}{}:
	default:
	}
	return true
}

// Do runs fn on the loop and waits for it to return. It must not be called
// from a task running on the same loop.
func (l *Loop) Do(fn func()) error {
	done := make(chan struct{})
	if !l.Post(func() {
		defer close(done)
		fn()
	}) {
		return ErrClosed
	}
	<-done
	return nil
}

// After posts fn once d has elapsed. The returned timer can cancel it.
func (l *Loop) After(d time.Duration, fn func()) *time.Timer {
	return time.AfterFunc(d, func() {
		l.Post(fn)
	})
}

// Close stops accepting tasks, runs the ones already queued and waits for the
// loop goroutine to exit.
func (l *Loop) Close() {
	l.mu.Lock()
	if l.closed {
		l.mu.Unlock()
		<-l.done
		return
	}
	l.closed = true
	l.mu.Unlock()

	close(l.quit)
	<-l.done
}

func (l *Loop) run() {
	defer close(l.done)
	for {
		l.runQueued()
		select {
		case <-l.wake:
		case <-l.quit:
			l.runQueued()
			return
		}
	}
}

func (l *Loop) runQueued() {
	for {
		fn, ok := l.tasks.Pop()
		if !ok {
			return
		}
		l.exec(fn)
	}
}

func (l *Loop) exec(fn func()) {
	defer func() {
		if r := recover(); r != nil {
			l.logger.Error("task panicked", "error", fmt.Sprint(r))
		}
	}()
	fn()
}

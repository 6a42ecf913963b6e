// Package uithread provides the serial executor that owns presentation state.
//
// Every task submitted to a Loop runs on the Loop's single goroutine, in
// submission order. Code that mutates a presentation surface (an editor
// buffer, a client connection) does so only from inside a task.
package uithread

import (
	"log/slog"
	"runtime/debug"
	"sync"
	"sync/atomic"
)

// Loop is a single-goroutine FIFO executor with an unbounded queue.
type Loop struct {
	logger *slog.Logger

	mu     sync.Mutex
	cond   *sync.Cond
	queue  []func()
	closed bool

	executing atomic.Bool
	done      chan struct{}
}

// New starts a Loop. A nil logger discards panic reports.
func New(logger *slog.Logger) *Loop {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	l := &Loop{
		logger: logger,
		done:   make(chan struct{}),
	}
	l.cond = sync.NewCond(&l.mu)
	go l.run()
	return l
}

// Submit enqueues a task and returns immediately. It reports false when the
// Loop is closed and the task was dropped.
func (l *Loop) Submit(task func()) bool {
	if task == nil {
		return false
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.closed {
		return false
	}
	l.queue = append(l.queue, task)
	l.cond.Signal()
	return true
}

// Close stops intake, runs the tasks already queued and waits for the
// Loop goroutine to exit. Calling Close from inside a task deadlocks.
func (l *Loop) Close() {
	l.mu.Lock()
	if !l.closed {
		l.closed = true
		l.cond.Signal()
	}
	l.mu.Unlock()
	<-l.done
}

// Done is closed once the Loop has drained after Close.
func (l *Loop) Done() <-chan struct{} {
	return l.done
}

// Executing reports whether a task is running right now.
func (l *Loop) Executing() bool {
	return l.executing.Load()
}

// Pending returns the number of queued tasks not yet started.
func (l *Loop) Pending() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.queue)
}

func (l *Loop) run() {
	defer close(l.done)
	for {
		l.mu.Lock()
		for len(l.queue) == 0 && !l.closed {
			l.cond.Wait()
		}
		if len(l.queue) == 0 {
			l.mu.Unlock()
			return
		}
		task := l.queue[0]
		l.queue[0] = nil
		l.queue = l.queue[1:]
		l.mu.Unlock()

		l.exec(task)
	}
}

func (l *Loop) exec(task func()) {
	l.executing.Store(true)
	defer l.executing.Store(false)
	defer func() {
		if r := recover(); r != nil {
			l.logger.Error("ui task panicked", "panic", r, "stack", string(debug.Stack()))
		}
	}()
	task()
}

// Package completion delivers the outcome of a streaming completion request
// to its consumer.
//
// A Session tracks one outstanding request. The driver streams fragments
// into it with Append and then reports exactly one terminal callback on a
// Listener. SessionListener is the standard Listener: it releases the
// session's progress handle, hands the result to a PresentationSink through
// a serial Executor, and reports failures through a NotificationChannel.
package completion

import (
	"errors"
	"strings"
	"sync"

	"github.com/google/uuid"
)

// ErrSessionClosed is returned by Append once the session has settled.
var ErrSessionClosed = errors.New("completion: session closed")

// Session is one outstanding completion request.
type Session struct {
	id       string
	anchor   Position
	progress ProgressHandle

	mu      sync.Mutex
	buf     strings.Builder
	outcome Outcome

	doneOnce sync.Once
	done     chan struct{}
}

// NewSession creates a pending session anchored at anchor. A nil progress
// handle is replaced by NoProgress.
func NewSession(anchor Position, progress ProgressHandle) *Session {
	if progress == nil {
		progress = NoProgress()
	}
	return &Session{
		id:       uuid.NewString(),
		anchor:   anchor,
		progress: progress,
		done:     make(chan struct{}),
	}
}

func (s *Session) ID() string { return s.id }

func (s *Session) Anchor() Position { return s.anchor }

// Append adds a generated fragment to the buffer.
func (s *Session) Append(fragment string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.outcome.Kind.Terminal() {
		return ErrSessionClosed
	}
	s.buf.WriteString(fragment)
	return nil
}

// Text returns everything appended so far.
func (s *Session) Text() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.buf.String()
}

func (s *Session) State() OutcomeKind {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.outcome.Kind
}

// Outcome returns the settled outcome, or a pending one.
func (s *Session) Outcome() Outcome {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.outcome
}

// Done is closed after the terminal callback has returned.
func (s *Session) Done() <-chan struct{} {
	return s.done
}

// settle moves a pending session to o. Only the first call wins.
func (s *Session) settle(o Outcome) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.outcome.Kind.Terminal() {
		return false
	}
	s.outcome = o
	return true
}

func (s *Session) markDone() {
	s.doneOnce.Do(func() { close(s.done) })
}

package completion

import (
	"errors"
	"log/slog"
)

// ErrExecutorClosed is logged when a result could not be scheduled because
// the executor no longer accepts tasks.
var ErrExecutorClosed = errors.New("completion: executor closed")

// Listener receives the terminal callback of a session. Exactly one of the
// methods is meant to be called, from any goroutine.
type Listener interface {
	OnComplete(text string)
	OnError(details ErrorDetails, cause error)
	OnCancelled(partial string)
}

// PresentationSink mutates the visible document. Its methods are only
// called from tasks running on the Executor.
type PresentationSink interface {
	ApplyGeneratedText(at Position, text string)
	ClearPendingPreview(at Position)
}

// Action is a remediation offered alongside an error notification.
type Action struct {
	ID    string `json:"id"`
	Title string `json:"title"`
}

// OpenSettingsAction points the user at the provider settings.
var OpenSettingsAction = Action{ID: "open_settings", Title: "Open Settings"}

// NotificationChannel shows a message to the user.
type NotificationChannel interface {
	NotifyError(message string, action Action)
}

// Executor runs tasks serially. Submit must not block.
type Executor interface {
	Submit(task func()) bool
}

// ListenerConfig holds the collaborators of a SessionListener.
type ListenerConfig struct {
	Sink     PresentationSink
	Executor Executor

	// Notifier is optional; without it errors are only logged.
	Notifier NotificationChannel

	Logger *slog.Logger

	// Remediation overrides OpenSettingsAction.
	Remediation *Action
}

// SessionListener is the Listener bound to one Session.
type SessionListener struct {
	session     *Session
	sink        PresentationSink
	executor    Executor
	notifier    NotificationChannel
	logger      *slog.Logger
	remediation Action
}

var _ Listener = (*SessionListener)(nil)

// NewListener binds a listener to s.
func NewListener(s *Session, cfg ListenerConfig) (*SessionListener, error) {
	if s == nil {
		return nil, errors.New("completion: nil session")
	}
	if cfg.Sink == nil {
		return nil, errors.New("completion: presentation sink is required")
	}
	if cfg.Executor == nil {
		return nil, errors.New("completion: executor is required")
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	remediation := OpenSettingsAction
	if cfg.Remediation != nil {
		remediation = *cfg.Remediation
	}
	return &SessionListener{
		session:     s,
		sink:        cfg.Sink,
		executor:    cfg.Executor,
		notifier:    cfg.Notifier,
		logger:      logger.With("session", s.ID()),
		remediation: remediation,
	}, nil
}

// Session returns the bound session.
func (l *SessionListener) Session() *Session { return l.session }

// OnComplete schedules insertion of text at the anchor. Empty text only
// clears the pending preview.
func (l *SessionListener) OnComplete(text string) {
	if !l.begin(Outcome{Kind: OutcomeComplete, Text: text}) {
		return
	}
	defer l.session.markDone()

	l.finishProgress()

	anchor, sink := l.session.Anchor(), l.sink
	ok := l.executor.Submit(func() {
		sink.ClearPendingPreview(anchor)
		if text != "" {
			sink.ApplyGeneratedText(anchor, text)
		}
	})
	if !ok {
		l.logger.Warn("completion result dropped", "error", ErrExecutorClosed, "len", len(text))
		return
	}
	l.logger.Debug("completion scheduled", "len", len(text))
}

// OnError logs the failure and notifies the user once. Nothing is inserted.
func (l *SessionListener) OnError(details ErrorDetails, cause error) {
	if !l.begin(Outcome{Kind: OutcomeError, Details: details, Cause: cause}) {
		return
	}
	defer l.session.markDone()

	l.logError("code completion failed",
		"error", cause,
		"code", details.Code,
		"status", details.StatusCode,
	)
	l.finishProgress()
	l.notify("Code completion failed: " + details.Describe(cause))
}

// OnCancelled releases the progress handle. Partial text is discarded.
func (l *SessionListener) OnCancelled(partial string) {
	if !l.begin(Outcome{Kind: OutcomeCancelled, Text: partial}) {
		return
	}
	defer l.session.markDone()

	l.logger.Info("code completion cancelled", "partial_len", len(partial))
	l.finishProgress()
}

func (l *SessionListener) begin(o Outcome) bool {
	if l.session.settle(o) {
		return true
	}
	l.logger.Warn("ignoring callback on settled session",
		"callback", o.Kind.String(),
		"outcome", l.session.State().String(),
	)
	return false
}

func (l *SessionListener) finishProgress() {
	defer func() {
		if r := recover(); r != nil {
			l.logError("progress finish panicked", "panic", r)
		}
	}()
	l.session.progress.Finish()
}

func (l *SessionListener) notify(message string) {
	if l.notifier == nil {
		return
	}
	defer func() {
		if r := recover(); r != nil {
			l.logError("error notification failed", "panic", r)
		}
	}()
	l.notifier.NotifyError(message, l.remediation)
}

// logError logs at error level. A failing log handler must not keep the
// session from finishing progress and notifying, so its panic is dropped.
func (l *SessionListener) logError(msg string, args ...any) {
	defer func() { _ = recover() }()
	l.logger.Error(msg, args...)
}

package completion_test

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/Paranoid-AF/ghostline/completion"
)

type sinkCall struct {
	op   string
	at   completion.Position
	text string
}

type recordingSink struct {
	mu    sync.Mutex
	calls []sinkCall
}

func (s *recordingSink) ApplyGeneratedText(at completion.Position, text string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls = append(s.calls, sinkCall{op: "apply", at: at, text: text})
}

func (s *recordingSink) ClearPendingPreview(at completion.Position) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls = append(s.calls, sinkCall{op: "clear", at: at})
}

func (s *recordingSink) Calls() []sinkCall {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]sinkCall(nil), s.calls...)
}

func (s *recordingSink) Applied() []sinkCall {
	var out []sinkCall
	for _, c := range s.Calls() {
		if c.op == "apply" {
			out = append(out, c)
		}
	}
	return out
}

// manualExecutor queues tasks until RunAll is called.
type manualExecutor struct {
	mu     sync.Mutex
	tasks  []func()
	closed bool
}

func (e *manualExecutor) Submit(task func()) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return false
	}
	e.tasks = append(e.tasks, task)
	return true
}

func (e *manualExecutor) Pending() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.tasks)
}

func (e *manualExecutor) RunAll() {
	e.mu.Lock()
	tasks := e.tasks
	e.tasks = nil
	e.mu.Unlock()
	for _, t := range tasks {
		t()
	}
}

type notification struct {
	message string
	action  completion.Action
}

type recordingNotifier struct {
	mu        sync.Mutex
	sent      []notification
	panicWith any
}

func (n *recordingNotifier) NotifyError(message string, action completion.Action) {
	n.mu.Lock()
	n.sent = append(n.sent, notification{message, action})
	n.mu.Unlock()
	if n.panicWith != nil {
		panic(n.panicWith)
	}
}

func (n *recordingNotifier) Sent() []notification {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]notification(nil), n.sent...)
}

// countingProgress counts every Finish call, including repeated ones.
type countingProgress struct {
	n atomic.Int32
}

func (p *countingProgress) Finish() { p.n.Add(1) }

func (p *countingProgress) Count() int { return int(p.n.Load()) }

type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

// Records decodes the JSON log lines written so far.
func (b *syncBuffer) Records() []map[string]any {
	b.mu.Lock()
	defer b.mu.Unlock()
	var out []map[string]any
	sc := bufio.NewScanner(bytes.NewReader(b.buf.Bytes()))
	for sc.Scan() {
		var rec map[string]any
		if json.Unmarshal(sc.Bytes(), &rec) == nil {
			out = append(out, rec)
		}
	}
	return out
}

func (b *syncBuffer) AtLevel(level string) []map[string]any {
	var out []map[string]any
	for _, rec := range b.Records() {
		if rec["level"] == level {
			out = append(out, rec)
		}
	}
	return out
}

// panickingHandler is a slog.Handler whose Handle panics at error level.
type panickingHandler struct{}

func (panickingHandler) Enabled(context.Context, slog.Level) bool { return true }

func (panickingHandler) Handle(_ context.Context, r slog.Record) error {
	if r.Level >= slog.LevelError {
		panic("log sink closed")
	}
	return nil
}

func (h panickingHandler) WithAttrs([]slog.Attr) slog.Handler { return h }

func (h panickingHandler) WithGroup(string) slog.Handler { return h }

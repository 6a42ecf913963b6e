package main

import (
	"encoding/json"
	"log/slog"
	"net"

	ghostline "github.com/Paranoid-AF/ghostline"
	"github.com/Paranoid-AF/ghostline/completion"
)

// eventWriter writes the event stream of one completion request. It is
// only used from tasks running on the connection's uithread.Loop.
type eventWriter struct {
	conn      net.Conn
	requestID int
	logger    *slog.Logger
	broken    bool
}

func (w *eventWriter) write(ev ghostline.Event) {
	if w.broken {
		return
	}
	ev.RequestID = w.requestID

	data, err := json.Marshal(ev)
	if err != nil {
		w.logger.Error("failed to marshal event", "type", ev.Type, "error", err)
		return
	}
	w.logger.Debug("event", "data", string(data))

	if _, err := w.conn.Write(append(data, '\n')); err != nil {
		// The client went away; later events have nowhere to go.
		w.broken = true
		w.logger.Debug("client disconnected", "error", err)
	}
}

// connSink presents results by writing clear_preview and apply events.
type connSink struct {
	out *eventWriter
}

func (s *connSink) ClearPendingPreview(at completion.Position) {
	s.out.write(ghostline.Event{Type: ghostline.EventClearPreview, Anchor: at.Offset})
}

func (s *connSink) ApplyGeneratedText(at completion.Position, text string) {
	s.out.write(ghostline.Event{Type: ghostline.EventApply, Anchor: at.Offset, Text: text})
}

// connNotifier turns error notifications into notify events. NotifyError
// may be called from any goroutine; the write happens on the loop.
type connNotifier struct {
	loop completion.Executor
	out  *eventWriter
}

func (n *connNotifier) NotifyError(message string, action completion.Action) {
	ev := ghostline.Event{
		Type: ghostline.EventNotify,
		Notification: &ghostline.Notification{
			Level:   "error",
			Message: message,
			Action:  &ghostline.Action{ID: action.ID, Title: action.Title},
		},
	}
	n.loop.Submit(func() { n.out.write(ev) })
}

// newConnProgress returns a progress handle that brackets the request with
// progress_begin and progress_end events.
func newConnProgress(loop completion.Executor, out *eventWriter, title string) *completion.Progress {
	loop.Submit(func() {
		out.write(ghostline.Event{Type: ghostline.EventProgressBegin, Title: title})
	})
	return completion.NewProgress(func() {
		loop.Submit(func() {
			out.write(ghostline.Event{Type: ghostline.EventProgressEnd})
		})
	})
}

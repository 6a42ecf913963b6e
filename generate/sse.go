package generate

import (
	"bufio"
	"io"
	"strings"
)

// sseEvent is one server-sent event.
type sseEvent struct {
	Type string
	ID   string
	Data string
}

// sseReader parses a text/event-stream body.
type sseReader struct {
	scanner *bufio.Scanner
	current sseEvent
	hasData bool
}

func newSSEReader(src io.Reader) *sseReader {
	scanner := bufio.NewScanner(src)
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)
	return &sseReader{scanner: scanner}
}

// Next blocks until a complete event is available. It returns nil, nil once
// the source is exhausted.
func (r *sseReader) Next() (*sseEvent, error) {
	for r.scanner.Scan() {
		line := strings.TrimSuffix(r.scanner.Text(), "\r")

		if line == "" {
			if r.hasData {
				return r.take(), nil
			}
			// A block without data lines is not dispatched.
			r.current = sseEvent{}
			continue
		}
		if strings.HasPrefix(line, ":") {
			continue
		}
		r.parseLine(line)
	}

	if err := r.scanner.Err(); err != nil {
		return nil, err
	}
	// Stream ended without a trailing blank line.
	if r.hasData {
		return r.take(), nil
	}
	return nil, nil
}

func (r *sseReader) parseLine(line string) {
	field, value, _ := strings.Cut(line, ":")
	value = strings.TrimPrefix(value, " ")

	switch field {
	case "data":
		if r.hasData {
			r.current.Data += "\n"
		}
		r.current.Data += value
		r.hasData = true
	case "event":
		r.current.Type = value
	case "id":
		r.current.ID = value
	}
}

func (r *sseReader) take() *sseEvent {
	ev := r.current
	r.current = sseEvent{}
	r.hasData = false
	return &ev
}

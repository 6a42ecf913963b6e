package generate

import (
	"strings"
	"testing"
)

func TestSSEReaderEvents(t *testing.T) {
	stream := "data: {\"a\":1}\n\n" +
		": keep-alive\n" +
		"event: message\r\n" +
		"data: line1\n" +
		"data: line2\n\n" +
		"data: tail"
	r := newSSEReader(strings.NewReader(stream))

	want := []sseEvent{
		{Data: `{"a":1}`},
		{Type: "message", Data: "line1\nline2"},
		{Data: "tail"},
	}
	for i, w := range want {
		ev, err := r.Next()
		if err != nil {
			t.Fatalf("event %d: %v", i, err)
		}
		if ev == nil {
			t.Fatalf("event %d: unexpected end of stream", i)
		}
		if *ev != w {
			t.Errorf("event %d: expected %+v, got %+v", i, w, *ev)
		}
	}

	ev, err := r.Next()
	if err != nil || ev != nil {
		t.Errorf("expected nil, nil at end of stream, got %+v, %v", ev, err)
	}
}

func TestSSEReaderSkipsBlankLines(t *testing.T) {
	r := newSSEReader(strings.NewReader("\n\n\ndata: [DONE]\n\n"))
	ev, err := r.Next()
	if err != nil {
		t.Fatal(err)
	}
	if ev == nil || ev.Data != "[DONE]" {
		t.Errorf("expected [DONE], got %+v", ev)
	}
}

func TestSSEReaderDropsBlocksWithoutData(t *testing.T) {
	r := newSSEReader(strings.NewReader("event: ping\n\nid: 3\n\ndata: a\ndata:\ndata: b\n\n"))
	ev, err := r.Next()
	if err != nil {
		t.Fatal(err)
	}
	if ev == nil || ev.Type != "" || ev.ID != "" || ev.Data != "a\n\nb" {
		t.Errorf("expected only the data event with a fresh type, got %+v", ev)
	}
	if ev, err := r.Next(); ev != nil || err != nil {
		t.Errorf("expected end of stream, got %+v, %v", ev, err)
	}
}

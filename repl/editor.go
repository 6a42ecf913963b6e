package main

import (
	"errors"
	"fmt"
	"io"
	"os"
	"unicode/utf8"

	"golang.org/x/term"
)

// ErrInterrupt is returned when the user presses Ctrl-C.
var ErrInterrupt = errors.New("interrupted")

// Line is one submitted buffer and the caret within it.
type Line struct {
	Text   string
	Offset int
}

// Editor is a single-line editor that tracks the caret byte offset, so the
// offset can be sent as the completion anchor.
type Editor struct {
	rw      io.ReadWriter
	restore func()

	buf     []byte
	pos     int
	history []string
	hpos    int
}

// OpenTTY opens /dev/tty in raw mode. Reading from the tty keeps stdout
// free for records.
func OpenTTY() (*Editor, *os.File, error) {
	tty, err := os.OpenFile("/dev/tty", os.O_RDWR, 0)
	if err != nil {
		return nil, nil, fmt.Errorf("open /dev/tty: %w", err)
	}
	old, err := term.MakeRaw(int(tty.Fd()))
	if err != nil {
		tty.Close()
		return nil, nil, fmt.Errorf("raw mode: %w", err)
	}
	e := newEditor(tty)
	e.restore = func() {
		term.Restore(int(tty.Fd()), old)
		tty.Close()
	}
	return e, tty, nil
}

func newEditor(rw io.ReadWriter) *Editor {
	return &Editor{rw: rw}
}

// Close restores the terminal.
func (e *Editor) Close() {
	if e.restore != nil {
		e.restore()
	}
}

// ReadLine reads one line. It returns io.EOF on Ctrl-D with an empty
// buffer and ErrInterrupt on Ctrl-C.
func (e *Editor) ReadLine(prompt string) (Line, error) {
	e.buf = e.buf[:0]
	e.pos = 0
	e.hpos = len(e.history)
	e.redraw(prompt)

	for {
		b, err := e.readByte()
		if err != nil {
			return Line{}, err
		}

		switch b {
		case 3: // Ctrl-C
			fmt.Fprint(e.rw, "\r\n")
			return Line{}, ErrInterrupt
		case 4: // Ctrl-D
			if len(e.buf) == 0 {
				fmt.Fprint(e.rw, "\r\n")
				return Line{}, io.EOF
			}
		case '\r', '\n':
			fmt.Fprint(e.rw, "\r\n")
			line := Line{Text: string(e.buf), Offset: e.pos}
			if line.Text != "" {
				e.history = append(e.history, line.Text)
			}
			return line, nil
		case 127, 8:
			e.deleteBefore()
		case 1: // Ctrl-A
			e.pos = 0
		case 5: // Ctrl-E
			e.pos = len(e.buf)
		case 21: // Ctrl-U
			e.buf = e.buf[:0]
			e.pos = 0
		case 27:
			if err := e.escape(); err != nil {
				return Line{}, err
			}
		default:
			if b >= 32 {
				if err := e.insert(b); err != nil {
					return Line{}, err
				}
			}
		}

		e.redraw(prompt)
	}
}

func (e *Editor) readByte() (byte, error) {
	var b [1]byte
	for {
		n, err := e.rw.Read(b[:])
		if n == 1 {
			return b[0], nil
		}
		if err != nil {
			return 0, err
		}
	}
}

// escape handles CSI sequences: arrows, Home, End and Delete.
func (e *Editor) escape() error {
	b, err := e.readByte()
	if err != nil || b != '[' {
		return err
	}
	code, err := e.readByte()
	if err != nil {
		return err
	}
	switch code {
	case 'A':
		e.recall(-1)
	case 'B':
		e.recall(1)
	case 'D':
		if e.pos > 0 {
			e.pos -= lastRuneLen(e.buf[:e.pos])
		}
	case 'C':
		if e.pos < len(e.buf) {
			_, size := utf8.DecodeRune(e.buf[e.pos:])
			e.pos += size
		}
	case 'H':
		e.pos = 0
	case 'F':
		e.pos = len(e.buf)
	case '1', '3', '4':
		if _, err := e.readByte(); err != nil { // '~'
			return err
		}
		switch code {
		case '1':
			e.pos = 0
		case '4':
			e.pos = len(e.buf)
		case '3':
			e.deleteAt()
		}
	}
	return nil
}

func (e *Editor) insert(lead byte) error {
	ch := []byte{lead}
	for extra := runeLen(lead) - 1; extra > 0; extra-- {
		b, err := e.readByte()
		if err != nil {
			return err
		}
		ch = append(ch, b)
	}
	tail := append([]byte(nil), e.buf[e.pos:]...)
	e.buf = append(append(e.buf[:e.pos], ch...), tail...)
	e.pos += len(ch)
	return nil
}

func (e *Editor) deleteBefore() {
	if e.pos == 0 {
		return
	}
	size := lastRuneLen(e.buf[:e.pos])
	e.buf = append(e.buf[:e.pos-size], e.buf[e.pos:]...)
	e.pos -= size
}

func (e *Editor) deleteAt() {
	if e.pos >= len(e.buf) {
		return
	}
	_, size := utf8.DecodeRune(e.buf[e.pos:])
	e.buf = append(e.buf[:e.pos], e.buf[e.pos+size:]...)
}

// recall moves through the history; moving past the newest entry clears
// the buffer.
func (e *Editor) recall(delta int) {
	next := e.hpos + delta
	if next < 0 || next > len(e.history) {
		return
	}
	e.hpos = next
	e.buf = e.buf[:0]
	if next < len(e.history) {
		e.buf = append(e.buf, e.history[next]...)
	}
	e.pos = len(e.buf)
}

func (e *Editor) redraw(prompt string) {
	fmt.Fprintf(e.rw, "\r\x1b[K%s%s", prompt, e.buf)
	if tail := utf8.RuneCount(e.buf[e.pos:]); tail > 0 {
		fmt.Fprintf(e.rw, "\x1b[%dD", tail)
	}
}

func lastRuneLen(b []byte) int {
	_, size := utf8.DecodeLastRune(b)
	return size
}

// runeLen returns the length of a UTF-8 sequence from its leading byte.
func runeLen(lead byte) int {
	switch {
	case lead < 0xC0:
		return 1
	case lead < 0xE0:
		return 2
	case lead < 0xF0:
		return 3
	default:
		return 4
	}
}

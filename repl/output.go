package main

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/BurntSushi/toml"
	"golang.org/x/term"

	"github.com/Paranoid-AF/ghostline/completion"
)

// termWriter converts \n to \r\n when f is a terminal, since raw mode turns
// off the kernel's translation. Redirected output passes through unchanged.
func termWriter(f *os.File) io.Writer {
	if term.IsTerminal(int(f.Fd())) {
		return &crlfWriter{w: f}
	}
	return f
}

type crlfWriter struct {
	w io.Writer
}

func (c *crlfWriter) Write(p []byte) (int, error) {
	_, err := c.w.Write(bytes.ReplaceAll(p, []byte("\n"), []byte("\r\n")))
	return len(p), err
}

// Record is one request and its outcome, written to stdout as a TOML
// document so that a session can be replayed or diffed later.
type Record struct {
	Request RecordRequest `toml:"request"`
	Result  RecordResult  `toml:"result"`
}

type RecordRequest struct {
	Timestamp  time.Time `toml:"timestamp"`
	Text       string    `toml:"text"`
	Offset     int       `toml:"offset"`
	LanguageID string    `toml:"language_id,omitempty"`
	Cwd        string    `toml:"cwd"`
}

type RecordResult struct {
	Outcome string `toml:"outcome"`
	Text    string `toml:"text,omitempty"`
	Error   string `toml:"error,omitempty"`
	Elapsed string `toml:"elapsed"`
}

func newRecord(line Line, languageID, cwd string, start time.Time, outcome completion.Outcome) Record {
	r := Record{
		Request: RecordRequest{
			Timestamp:  start.UTC().Truncate(time.Second),
			Text:       line.Text,
			Offset:     line.Offset,
			LanguageID: languageID,
			Cwd:        cwd,
		},
		Result: RecordResult{
			Outcome: outcome.Kind.String(),
			Text:    outcome.Text,
			Elapsed: time.Since(start).Round(time.Millisecond).String(),
		},
	}
	if outcome.Kind == completion.OutcomeError {
		r.Result.Error = outcome.Details.Describe(outcome.Cause)
	}
	return r
}

// writeRecord appends r to w, separated from the previous record by a
// comment rule.
func writeRecord(w io.Writer, r Record) error {
	if _, err := fmt.Fprintf(w, "# %s\n", bytes.Repeat([]byte("="), 60)); err != nil {
		return err
	}
	if err := toml.NewEncoder(w).Encode(r); err != nil {
		return fmt.Errorf("encode record: %w", err)
	}
	_, err := fmt.Fprintln(w)
	return err
}

// preview renders text with the completion spliced in at offset, the
// insertion wrapped in faint ANSI attributes.
func preview(text string, offset int, insert string) string {
	if offset < 0 || offset > len(text) {
		offset = len(text)
	}
	return text[:offset] + "\x1b[2m" + insert + "\x1b[0m" + text[offset:]
}

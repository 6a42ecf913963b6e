// Command ghostline-repl is an interactive playground for inline
// completions. It reads one line at a time from the terminal, sends the
// caret offset as the completion anchor, shows the generated text spliced
// into the line, and writes every request as a TOML record to stdout.
//
// Usage:
//
//	./ghostline-repl                 # records on screen
//	./ghostline-repl > log.toml      # prompt on screen, records to file
//	./ghostline-repl -language go    # tag requests with a language id
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"time"

	ghostline "github.com/Paranoid-AF/ghostline"
	"github.com/Paranoid-AF/ghostline/completion"
	"github.com/Paranoid-AF/ghostline/generate"
	"github.com/Paranoid-AF/ghostline/logger"
	"github.com/Paranoid-AF/ghostline/uithread"
)

const prompt = "> "

func main() {
	language := flag.String("language", "shellscript", "language id sent with each request")
	debug := flag.Bool("debug", false, "log to stderr at debug level")
	flag.Parse()

	log := logger.Nop()
	if *debug {
		log = logger.New(logger.WithDebug(true), logger.WithWriter(os.Stderr))
	}
	slog.SetDefault(log)

	editor, tty, err := OpenTTY()
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
	defer editor.Close()

	cwd, err := os.Getwd()
	if err != nil {
		fmt.Fprintf(tty, "error: cannot determine cwd: %v\r\n", err)
		return
	}

	engine := generate.NewEngine()
	defer engine.Close()
	if err := engine.LoadIndexCache(context.Background()); err != nil {
		log.Debug("no snippet index loaded", "error", err)
	}
	defer func() {
		if err := engine.SaveIndexCache(); err != nil {
			log.Warn("failed to save snippet index", "error", err)
		}
	}()

	r := &repl{
		engine:   engine,
		tty:      tty,
		out:      termWriter(os.Stdout),
		language: *language,
		cwd:      cwd,
		logger:   log,
	}
	r.banner()
	engine.WarmContext(context.Background(), cwd)

	for {
		line, err := editor.ReadLine(prompt)
		if errors.Is(err, io.EOF) || errors.Is(err, ErrInterrupt) {
			return
		}
		if err != nil {
			fmt.Fprintf(tty, "read error: %v\r\n", err)
			return
		}
		if !r.command(line) {
			return
		}
	}
}

type repl struct {
	engine   *generate.Engine
	tty      io.Writer
	out      io.Writer
	language string
	cwd      string
	logger   *slog.Logger
	reqID    int
}

func (r *repl) banner() {
	fmt.Fprint(r.tty, "\x1b[2J\x1b[H")
	fmt.Fprint(r.tty, "ghostline repl\r\n")
	fmt.Fprintf(r.tty, "cwd: %s\r\n", r.cwd)
	if !r.engine.Configured() {
		fmt.Fprint(r.tty, "warning: no generation API key configured\r\n")
	}
	fmt.Fprint(r.tty, "\r\ncommands:\r\n")
	fmt.Fprint(r.tty, "  :cwd <path>     set working directory\r\n")
	fmt.Fprint(r.tty, "  :lang <id>      set language id\r\n")
	fmt.Fprint(r.tty, "  :accept <text>  add a snippet to the index\r\n")
	fmt.Fprint(r.tty, "  :quit           exit\r\n\r\n")
}

// command handles one line and reports whether the loop should continue.
func (r *repl) command(line Line) bool {
	text := line.Text
	switch {
	case text == "":
		return true
	case text == ":quit" || text == ":q":
		return false
	case strings.HasPrefix(text, ":cwd "):
		dir := strings.TrimSpace(strings.TrimPrefix(text, ":cwd "))
		info, err := os.Stat(dir)
		if err != nil || !info.IsDir() {
			fmt.Fprintf(r.tty, "error: not a directory: %s\r\n", dir)
			return true
		}
		r.cwd = dir
		r.engine.WarmContext(context.Background(), dir)
		fmt.Fprintf(r.tty, "cwd: %s\r\n\r\n", dir)
	case strings.HasPrefix(text, ":lang "):
		r.language = strings.TrimSpace(strings.TrimPrefix(text, ":lang "))
		fmt.Fprintf(r.tty, "language: %s\r\n\r\n", r.language)
	case strings.HasPrefix(text, ":accept "):
		snippet := strings.TrimPrefix(text, ":accept ")
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := r.engine.Accept(ctx, r.language, snippet); err != nil {
			fmt.Fprintf(r.tty, "error: %v\r\n", err)
		}
	default:
		return r.complete(line)
	}
	return true
}

func (r *repl) complete(line Line) bool {
	r.reqID++
	req := &ghostline.Request{
		RequestID:  r.reqID,
		SessionID:  "repl",
		URI:        "repl://line",
		LanguageID: r.language,
		Text:       line.Text,
		Offset:     line.Offset,
		Cwd:        r.cwd,
	}

	start := time.Now()
	outcome, err := r.run(req, line)
	if err != nil {
		fmt.Fprintf(r.tty, "error: %v\r\n", err)
		return true
	}

	switch outcome.Kind {
	case completion.OutcomeComplete:
		if outcome.Text == "" {
			fmt.Fprint(r.tty, "(no completion)\r\n")
		}
	case completion.OutcomeCancelled:
		fmt.Fprint(r.tty, "(cancelled)\r\n")
	case completion.OutcomeError:
		if generate.IsNotConfigured(outcome.Cause) {
			fmt.Fprint(r.tty, "hint: set GHOSTLINE_GENERATION_API_KEY or generation.api_key in config.json\r\n")
		}
	}
	fmt.Fprint(r.tty, "\r\n")

	if err := writeRecord(r.out, newRecord(line, r.language, r.cwd, start, outcome)); err != nil {
		r.logger.Warn("failed to write record", "error", err)
	}
	return true
}

// run drives one session to its outcome. Ctrl-C is read as a byte in raw
// mode, so SIGINT only arrives when the tty is not the controlling terminal.
func (r *repl) run(req *ghostline.Request, line Line) (completion.Outcome, error) {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	loop := uithread.New(r.logger)
	defer loop.Close()

	sess := completion.NewSession(completion.Position{URI: req.URI, Offset: req.Offset}, nil)
	l, err := completion.NewListener(sess, completion.ListenerConfig{
		Sink:     &ttySink{w: r.tty, line: line},
		Executor: loop,
		Notifier: ttyNotifier{r.tty},
		Logger:   r.logger,
	})
	if err != nil {
		return completion.Outcome{}, err
	}

	r.engine.Run(ctx, req, sess, l)
	<-sess.Done()
	return sess.Outcome(), nil
}

// ttySink renders the submitted line with the generated text spliced in at
// the anchor. It runs on the session's loop.
type ttySink struct {
	w    io.Writer
	line Line
}

func (s *ttySink) ApplyGeneratedText(at completion.Position, text string) {
	fmt.Fprintf(s.w, "  %s\r\n", preview(s.line.Text, at.Offset, text))
}

// ClearPendingPreview has nothing to clear: previews are printed, never
// drawn inline.
func (s *ttySink) ClearPendingPreview(completion.Position) {}

type ttyNotifier struct {
	w io.Writer
}

func (n ttyNotifier) NotifyError(message string, action completion.Action) {
	fmt.Fprintf(n.w, "error: %s [%s]\r\n", message, action.Title)
}

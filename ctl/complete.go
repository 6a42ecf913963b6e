package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	ghostline "github.com/Paranoid-AF/ghostline"
)

const completeLongDesc string = `Request a completion for a file and print the event stream.

Each event is printed as one JSON line. Interrupting the command cancels the
request; the daemon still finishes the stream with a "cancelled" done event.
The offset defaults to the end of the file.

Examples:
  ghostline complete --file main.go --offset 120
  ghostline complete --file deploy.sh --language shellscript --progress`

type completeOptions struct {
	file     string
	offset   int
	language string
	session  string
	cwd      string
	progress bool
	text     bool
}

func newCompleteCmd(root *rootOptions) *cobra.Command {
	opts := &completeOptions{}

	cmd := &cobra.Command{
		Use:   "complete",
		Short: "Request a completion and print its events",
		Long:  completeLongDesc,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return runComplete(ctx, cmd, root.client(), opts)
		},
	}

	flags := cmd.Flags()
	flags.StringVarP(&opts.file, "file", "f", "", "file to complete in")
	flags.IntVarP(&opts.offset, "offset", "o", -1, "byte offset of the caret")
	flags.StringVarP(&opts.language, "language", "l", "", "language id (guessed from the extension)")
	flags.StringVar(&opts.session, "session", "", "session id (random when empty)")
	flags.StringVar(&opts.cwd, "cwd", "", "project directory (defaults to the file's directory)")
	flags.BoolVar(&opts.progress, "progress", false, "ask for progress events")
	flags.BoolVar(&opts.text, "text", false, "print only the applied text")
	cmd.MarkFlagRequired("file")

	return cmd
}

func runComplete(ctx context.Context, cmd *cobra.Command, c *client, opts *completeOptions) error {
	path, err := filepath.Abs(opts.file)
	if err != nil {
		return err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("reading %s: %w", opts.file, err)
	}

	offset := opts.offset
	if offset < 0 || offset > len(data) {
		offset = len(data)
	}
	language := opts.language
	if language == "" {
		language = languageFromPath(path)
	}
	session := opts.session
	if session == "" {
		session = uuid.NewString()
	}
	cwd := opts.cwd
	if cwd == "" {
		cwd = filepath.Dir(path)
	}

	req := &ghostline.Request{
		RequestID:  1,
		SessionID:  session,
		URI:        "file://" + filepath.ToSlash(path),
		LanguageID: language,
		Text:       string(data),
		Offset:     offset,
		Cwd:        cwd,
		Progress:   opts.progress,
	}

	// The stream runs detached from ctx so that an interrupt turns into a
	// cancel request and the done event is still read.
	finished := make(chan struct{})
	defer close(finished)
	go func() {
		select {
		case <-ctx.Done():
			var resp ghostline.CancelResponse
			if err := c.call(context.Background(), ghostline.CancelRequest{Type: "cancel", SessionID: session}, &resp); err != nil {
				slog.Warn("failed to cancel completion", "error", err)
			}
		case <-finished:
		}
	}()

	out := cmd.OutOrStdout()
	done, err := c.stream(context.Background(), req, func(ev ghostline.Event) {
		if opts.text {
			if ev.Type == ghostline.EventApply {
				fmt.Fprint(out, ev.Text)
			}
			return
		}
		line, _ := json.Marshal(ev)
		fmt.Fprintln(out, string(line))
	})
	if err != nil {
		return err
	}

	switch done.Outcome {
	case "complete":
		return nil
	case "cancelled":
		return errors.New("completion cancelled")
	default:
		return fmt.Errorf("completion %s", done.Outcome)
	}
}

// languageFromPath guesses an editor language id from a file extension.
func languageFromPath(path string) string {
	base := filepath.Base(path)
	switch base {
	case "Makefile", "makefile", "GNUmakefile":
		return "makefile"
	case "Dockerfile":
		return "dockerfile"
	case ".bashrc", ".zshrc", ".profile":
		return "shellscript"
	}

	switch strings.ToLower(filepath.Ext(base)) {
	case ".go":
		return "go"
	case ".py":
		return "python"
	case ".rs":
		return "rust"
	case ".js", ".mjs", ".cjs":
		return "javascript"
	case ".jsx":
		return "javascriptreact"
	case ".ts":
		return "typescript"
	case ".tsx":
		return "typescriptreact"
	case ".sh", ".bash", ".zsh":
		return "shellscript"
	case ".rb":
		return "ruby"
	case ".java":
		return "java"
	case ".c", ".h":
		return "c"
	case ".cc", ".cpp", ".hpp":
		return "cpp"
	case ".md":
		return "markdown"
	case ".json":
		return "json"
	case ".yaml", ".yml":
		return "yaml"
	case ".toml":
		return "toml"
	}
	return ""
}

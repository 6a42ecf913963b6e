// Package generate drives completion requests: it gathers context, builds
// the prompt, streams the model output into a completion.Session and
// reports the outcome to the session's listener.
package generate

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"time"

	ghostline "github.com/Paranoid-AF/ghostline"
	"github.com/Paranoid-AF/ghostline/completion"
	"github.com/Paranoid-AF/ghostline/index"
)

const (
	defaultRetryBackoff = 250 * time.Millisecond
	maxRetryBackoff     = 2 * time.Second
)

// Engine orchestrates context gathering and model inference for completions.
// It is safe for concurrent use.
type Engine struct {
	gatherer     *Gatherer
	generator    *Generator
	config       *ghostline.Config
	customPrompt string // loaded custom prompt template (empty = use default)
	retryBackoff time.Duration
}

// NewEngine creates an engine from the user's config file and prompt.
func NewEngine() *Engine {
	cfg, err := ghostline.LoadConfig()
	if err != nil {
		slog.Warn("failed to load config, using defaults", "error", err)
		cfg = ghostline.DefaultConfig()
	}

	customPrompt := loadCustomPrompt()
	if customPrompt == "" {
		slog.Debug("no custom prompt, using built-in default")
	}

	return NewEngineWithConfig(cfg, customPrompt)
}

// NewEngineWithConfig creates an engine from an explicit config.
func NewEngineWithConfig(cfg *ghostline.Config, customPrompt string) *Engine {
	var embedder *index.Embedder
	if ghostline.EmbeddingEnabled(cfg) {
		embedder = index.NewEmbedder(
			cfg.Embedding.BaseURL,
			cfg.Embedding.APIKey,
			cfg.Embedding.Model,
			cfg.Embedding.Dimensions,
		)
	}

	var gen *Generator
	if cfg.Generation.APIKey != "" {
		gen = NewGenerator(cfg.Generation, ghostline.OpenRouterTelemetryEnabled(cfg))
	} else {
		slog.Warn("generation API key not configured")
	}

	return &Engine{
		gatherer:     NewGatherer(embedder, cfg),
		generator:    gen,
		config:       cfg,
		customPrompt: customPrompt,
		retryBackoff: defaultRetryBackoff,
	}
}

// loadCustomPrompt loads a custom prompt template.
// Returns empty string if no custom prompt exists.
func loadCustomPrompt() string {
	promptPath := ghostline.PromptPath()
	data, err := os.ReadFile(promptPath)
	if err != nil {
		return ""
	}
	slog.Info("loaded custom prompt", "path", promptPath)
	return string(data)
}

// Config returns the configuration the engine was built from.
func (e *Engine) Config() *ghostline.Config {
	return e.config
}

// Configured reports whether a generation API key is available.
func (e *Engine) Configured() bool {
	return e.generator != nil
}

// Close releases resources held by the engine.
func (e *Engine) Close() {
	if e.generator != nil {
		e.generator.Close()
	}
	e.gatherer.Close()
}

// WarmContext pre-populates the project context cache for the given path.
func (e *Engine) WarmContext(ctx context.Context, cwd string) {
	e.gatherer.Warm(ctx, cwd)
}

// Accept records a suggestion the user accepted.
func (e *Engine) Accept(ctx context.Context, languageID, text string) error {
	return e.gatherer.Accept(ctx, languageID, text)
}

// LoadIndexCache restores accepted snippets saved by a previous run.
func (e *Engine) LoadIndexCache(ctx context.Context) error {
	return e.gatherer.LoadCache(ctx, ghostline.IndexCachePath())
}

// SaveIndexCache persists accepted snippets.
func (e *Engine) SaveIndexCache() error {
	return e.gatherer.SaveCache(ghostline.IndexCachePath())
}

// Run generates a completion for req, streaming fragments into sess, and
// delivers exactly one terminal callback to l before returning. Cancelling
// ctx ends the request with OnCancelled and the text received so far.
func (e *Engine) Run(ctx context.Context, req *ghostline.Request, sess *completion.Session, l completion.Listener) {
	if e.generator == nil {
		l.OnError(errorDetails(ErrNotConfigured), ErrNotConfigured)
		return
	}
	if ctx.Err() != nil {
		l.OnCancelled(sess.Text())
		return
	}

	gen := e.config.Generation
	w := newWindow(req.Text, req.Offset, gen.PrefixMaxBytes, gen.SuffixMaxBytes).redact(req.LanguageID)
	info := e.gatherer.Gather(ctx, req, w)

	prompt := buildPrompt(e.customPrompt, req, w, info)
	slog.Debug("prompt", "session", sess.ID(), "system", prompt.System, "user", prompt.User)

	start := time.Now()
	err := e.stream(ctx, prompt, sess)
	switch {
	case ctx.Err() != nil:
		l.OnCancelled(sess.Text())
	case err != nil:
		l.OnError(errorDetails(err), err)
	default:
		text := cleanCompletion(sess.Text(), w)
		slog.Debug("completion generated",
			"session", sess.ID(),
			"model", e.generator.Model(),
			"raw_len", len(sess.Text()),
			"len", len(text),
			"elapsed", time.Since(start),
		)
		l.OnComplete(text)
	}
}

// stream runs the generator, retrying transient failures that happen before
// the first fragment arrives.
func (e *Engine) stream(ctx context.Context, p Prompt, sess *completion.Session) error {
	backoff := e.retryBackoff
	for attempt := 0; ; attempt++ {
		received := false
		err := e.generator.Stream(ctx, p, func(delta string) error {
			received = true
			return sess.Append(delta)
		})
		if err == nil || received || attempt >= e.config.Generation.MaxRetries || !isRetryable(err) {
			return err
		}

		slog.Warn("generation attempt failed, retrying", "attempt", attempt+1, "backoff", backoff, "error", err)
		if err := sleepWithContext(ctx, backoff); err != nil {
			return err
		}
		backoff = nextBackoff(backoff, maxRetryBackoff)
	}
}

// sleepWithContext sleeps for d or returns early if ctx is cancelled.
func sleepWithContext(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

func nextBackoff(current, limit time.Duration) time.Duration {
	next := current * 2
	if limit > 0 && next > limit {
		return limit
	}
	return next
}

// IsNotConfigured reports whether err means the engine has no API key.
func IsNotConfigured(err error) bool {
	return errors.Is(err, ErrNotConfigured)
}

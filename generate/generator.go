package generate

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	ghostline "github.com/Paranoid-AF/ghostline"
)

// Prompt is what gets sent to the model. Chat endpoints receive System and
// User; plain completion endpoints receive Text and Suffix.
type Prompt struct {
	System string
	User   string
	Text   string
	Suffix string
}

// Generator streams completions from an OpenAI-compatible API.
type Generator struct {
	baseURL     string
	apiKey      string
	model       string
	apiType     string // "completions" or "chat_completions"
	maxTokens   int
	temperature float64
	stop        []string
	telemetry   bool // send OpenRouter attribution headers
	client      *http.Client
}

// NewGenerator creates a generator from config.
func NewGenerator(cfg ghostline.GenerationConfig, telemetry bool) *Generator {
	return &Generator{
		baseURL:     strings.TrimRight(cfg.BaseURL, "/"),
		apiKey:      cfg.APIKey,
		model:       cfg.Model,
		apiType:     cfg.APIType,
		maxTokens:   cfg.MaxTokens,
		temperature: cfg.Temperature,
		stop:        cfg.Stop,
		telemetry:   telemetry,
		client: &http.Client{
			// No overall timeout: the stream is bounded by the request context.
			Transport: &http.Transport{
				Proxy:                 http.ProxyFromEnvironment,
				ResponseHeaderTimeout: 30 * time.Second,
				IdleConnTimeout:       90 * time.Second,
			},
		},
	}
}

// Model returns the configured model name.
func (g *Generator) Model() string { return g.model }

// Stream sends the prompt and calls onDelta for every non-empty text
// fragment, in order. It returns when the stream ends, fails, or ctx is
// cancelled. An error from onDelta aborts the stream.
func (g *Generator) Stream(ctx context.Context, p Prompt, onDelta func(string) error) error {
	path, body, err := g.requestBody(p)
	if err != nil {
		return err
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, g.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return err
	}
	g.setHeaders(httpReq)

	resp, err := g.client.Do(httpReq)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		data, _ := io.ReadAll(io.LimitReader(resp.Body, 64*1024))
		return parseAPIError(resp.StatusCode, data)
	}

	reader := newSSEReader(resp.Body)
	for {
		ev, err := reader.Next()
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return fmt.Errorf("reading stream: %w", err)
		}
		if ev == nil {
			// Some servers close without [DONE].
			return nil
		}
		if ev.Data == "[DONE]" {
			return nil
		}
		if strings.TrimSpace(ev.Data) == "" {
			continue
		}

		text, done, err := g.parseChunk(ev.Data)
		if err != nil {
			return err
		}
		if text != "" {
			if err := onDelta(text); err != nil {
				return err
			}
		}
		if done {
			return nil
		}
	}
}

// Close releases idle connections.
func (g *Generator) Close() {
	g.client.CloseIdleConnections()
}

// --- Completions API ---

type completionsRequest struct {
	Model       string   `json:"model"`
	Prompt      string   `json:"prompt"`
	Suffix      string   `json:"suffix,omitempty"`
	MaxTokens   int      `json:"max_tokens,omitempty"`
	Temperature float64  `json:"temperature,omitempty"`
	Stop        []string `json:"stop,omitempty"`
	Stream      bool     `json:"stream"`
}

// --- Chat Completions API ---

type chatCompletionsRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	MaxTokens   int           `json:"max_tokens,omitempty"`
	Temperature float64       `json:"temperature,omitempty"`
	Stop        []string      `json:"stop,omitempty"`
	Stream      bool          `json:"stream"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// streamChunk covers both chunk shapes.
type streamChunk struct {
	Choices []struct {
		Text  string `json:"text"`
		Delta struct {
			Content string `json:"content"`
		} `json:"delta"`
		FinishReason *string `json:"finish_reason"`
	} `json:"choices"`
	Error *struct {
		Message string `json:"message"`
		Type    string `json:"type"`
		Code    any    `json:"code"`
	} `json:"error"`
}

func (g *Generator) requestBody(p Prompt) (string, []byte, error) {
	if g.apiType == ghostline.APITypeChatCompletions {
		data, err := json.Marshal(chatCompletionsRequest{
			Model: g.model,
			Messages: []chatMessage{
				{Role: "system", Content: p.System},
				{Role: "user", Content: p.User},
			},
			MaxTokens:   g.maxTokens,
			Temperature: g.temperature,
			Stop:        g.stop,
			Stream:      true,
		})
		return "/chat/completions", data, err
	}
	data, err := json.Marshal(completionsRequest{
		Model:       g.model,
		Prompt:      p.Text,
		Suffix:      p.Suffix,
		MaxTokens:   g.maxTokens,
		Temperature: g.temperature,
		Stop:        g.stop,
		Stream:      true,
	})
	return "/completions", data, err
}

func (g *Generator) parseChunk(data string) (text string, done bool, err error) {
	var chunk streamChunk
	if err := json.Unmarshal([]byte(data), &chunk); err != nil {
		return "", false, fmt.Errorf("failed to parse stream chunk: %w (data: %s)", err, truncate(data, 256))
	}
	if chunk.Error != nil {
		apiErr := &APIError{Message: chunk.Error.Message, Type: chunk.Error.Type}
		if chunk.Error.Code != nil {
			apiErr.Code = fmt.Sprint(chunk.Error.Code)
		}
		return "", false, apiErr
	}
	if len(chunk.Choices) == 0 {
		return "", false, nil
	}
	c := chunk.Choices[0]
	text = c.Text
	if g.apiType == ghostline.APITypeChatCompletions {
		text = c.Delta.Content
	}
	return text, c.FinishReason != nil && *c.FinishReason != "", nil
}

// setHeaders sets common headers for API requests.
func (g *Generator) setHeaders(req *http.Request) {
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "text/event-stream")
	if g.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+g.apiKey)
	}
	if g.telemetry {
		req.Header.Set("X-Title", "Ghostline - inline code completion")
		req.Header.Set("HTTP-Referer", "https://github.com/Paranoid-AF/ghostline")
	}
}

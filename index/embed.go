package index

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// Embedder generates vector embeddings via an OpenAI-compatible /embeddings API.
type Embedder struct {
	baseURL    string
	apiKey     string
	model      string
	dimensions int
	client     *http.Client
}

// NewEmbedder creates an embedder for the given API endpoint. A zero
// dimensions lets the provider pick its default.
func NewEmbedder(baseURL, apiKey, model string, dimensions int) *Embedder {
	return &Embedder{
		baseURL:    strings.TrimRight(baseURL, "/"),
		apiKey:     apiKey,
		model:      model,
		dimensions: dimensions,
		client:     &http.Client{Timeout: 30 * time.Second},
	}
}

// Model returns the embedding model name.
func (e *Embedder) Model() string { return e.model }

// Dimensions returns the requested vector size; zero means the provider's
// default.
func (e *Embedder) Dimensions() int { return e.dimensions }

type embeddingRequest struct {
	Input      any    `json:"input"` // string or []string
	Model      string `json:"model"`
	Dimensions int    `json:"dimensions,omitempty"`
}

type embeddingResponse struct {
	Data []embeddingDataItem `json:"data"`
}

type embeddingDataItem struct {
	Index     int       `json:"index"`
	Embedding []float32 `json:"embedding"`
}

// Embed generates an embedding vector for the given text.
func (e *Embedder) Embed(ctx context.Context, text string) ([]float32, error) {
	items, err := e.do(ctx, text)
	if err != nil {
		return nil, err
	}
	if len(items) == 0 {
		return nil, fmt.Errorf("empty embedding response")
	}
	return items[0].Embedding, nil
}

// EmbedBatch generates embeddings for multiple texts in a single request.
// The result is ordered like texts.
func (e *Embedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}
	items, err := e.do(ctx, texts)
	if err != nil {
		return nil, err
	}
	if len(items) != len(texts) {
		return nil, fmt.Errorf("embedding response has %d vectors for %d inputs", len(items), len(texts))
	}
	vectors := make([][]float32, len(texts))
	for i, item := range items {
		pos := item.Index
		if pos < 0 || pos >= len(texts) || vectors[pos] != nil {
			pos = i
		}
		vectors[pos] = item.Embedding
	}
	return vectors, nil
}

func (e *Embedder) do(ctx context.Context, input any) ([]embeddingDataItem, error) {
	data, err := json.Marshal(embeddingRequest{Input: input, Model: e.model, Dimensions: e.dimensions})
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, e.baseURL+"/embeddings", bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	if e.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+e.apiKey)
	}

	resp, err := e.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("embedding API error (status %d): %s", resp.StatusCode, string(body))
	}

	var result embeddingResponse
	if err := json.Unmarshal(body, &result); err != nil {
		return nil, fmt.Errorf("failed to parse embedding response: %w (body: %s)", err, string(body))
	}
	return result.Data, nil
}

// Close releases idle connections.
func (e *Embedder) Close() {
	e.client.CloseIdleConnections()
}

// Package index keeps the suggestions a user accepted so later prompts can
// show the model what that user tends to write.
package index

import (
	"context"
	"crypto/sha256"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/coder/hnsw"
)

// DefaultMaxSnippets bounds the index when the config leaves it unset.
const DefaultMaxSnippets = 2000

// ErrDimensionMismatch is returned by SearchRelevant when the query vector
// does not have the size of the stored vectors.
var ErrDimensionMismatch = errors.New("index: embedding dimension mismatch")

// Snippet is one accepted suggestion, already redacted.
type Snippet struct {
	Hash       string
	Language   string
	Text       string
	AcceptedAt time.Time
}

type entry struct {
	Snippet
	vec []float32
}

// Indexer stores accepted snippets in insertion order and, when an embedder
// is configured, in an HNSW graph keyed by snippet hash.
type Indexer struct {
	embedder    *Embedder
	maxSnippets int

	mu      sync.RWMutex
	graph   *hnsw.Graph[string]
	entries map[string]*entry
	order   []string // hashes, oldest first
}

// NewIndexer creates an index holding at most maxSnippets entries.
// If embedder is nil, semantic search is disabled (Recent still works).
func NewIndexer(embedder *Embedder, maxSnippets int) *Indexer {
	if maxSnippets <= 0 {
		maxSnippets = DefaultMaxSnippets
	}
	return &Indexer{
		embedder:    embedder,
		maxSnippets: maxSnippets,
		graph:       hnsw.NewGraph[string](),
		entries:     make(map[string]*entry),
	}
}

// Add records an accepted snippet. Re-adding a known snippet only refreshes
// its recency. An embedding failure still keeps the snippet for Recent and
// is returned to the caller.
func (idx *Indexer) Add(ctx context.Context, language, text string) error {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil
	}
	redacted := Redact(language, text)
	hash := hashSnippet(language, redacted)

	idx.mu.Lock()
	if e, ok := idx.entries[hash]; ok {
		e.AcceptedAt = time.Now()
		idx.touch(hash)
		idx.mu.Unlock()
		return nil
	}
	idx.mu.Unlock()

	var (
		vec      []float32
		embedErr error
	)
	if idx.embedder != nil {
		vec, embedErr = idx.embedder.Embed(ctx, redacted)
		if embedErr != nil {
			embedErr = fmt.Errorf("embedding snippet: %w", embedErr)
		}
	}

	idx.mu.Lock()
	defer idx.mu.Unlock()
	if _, ok := idx.entries[hash]; ok {
		idx.touch(hash)
		return embedErr
	}
	if len(vec) > 0 && !idx.fits(vec) {
		idx.resetVectors(len(vec))
	}
	idx.insert(&entry{
		Snippet: Snippet{Hash: hash, Language: language, Text: redacted, AcceptedAt: time.Now()},
		vec:     vec,
	})
	idx.evict()
	return embedErr
}

// insert must be called with mu held. A vector whose size differs from the
// graph's is dropped; the snippet is kept for Recent and Reembed.
func (idx *Indexer) insert(e *entry) {
	idx.entries[e.Hash] = e
	idx.order = append(idx.order, e.Hash)
	if len(e.vec) == 0 {
		return
	}
	if !idx.fits(e.vec) {
		slog.Warn("dropping snippet vector of unexpected size",
			"got", len(e.vec), "want", idx.graph.Dims())
		e.vec = nil
		return
	}
	idx.graph.Add(hnsw.MakeNode(e.Hash, e.vec))
}

// resetVectors forgets every stored vector once the embedder starts
// returning another size. Snippets stay and can be re-embedded. Must be
// called with mu held.
func (idx *Indexer) resetVectors(dims int) {
	slog.Warn("embedding size changed, clearing snippet vectors",
		"was", idx.graph.Dims(), "now", dims)
	for _, e := range idx.entries {
		e.vec = nil
	}
	idx.graph = hnsw.NewGraph[string]()
}

// fits reports whether vec can join the graph. Must be called with mu held.
func (idx *Indexer) fits(vec []float32) bool {
	dims := idx.graph.Dims()
	return len(vec) > 0 && (dims == 0 || dims == len(vec))
}

// touch moves hash to the newest position. Must be called with mu held.
func (idx *Indexer) touch(hash string) {
	if i := slices.Index(idx.order, hash); i >= 0 {
		idx.order = append(slices.Delete(idx.order, i, i+1), hash)
	}
}

// evict drops the oldest snippets beyond maxSnippets and rebuilds the graph
// from the survivors. Must be called with mu held.
func (idx *Indexer) evict() {
	excess := len(idx.order) - idx.maxSnippets
	if excess <= 0 {
		return
	}
	dropped := 0
	for _, hash := range idx.order[:excess] {
		if len(idx.entries[hash].vec) > 0 {
			dropped++
		}
		delete(idx.entries, hash)
	}
	idx.order = slices.Clone(idx.order[excess:])

	if dropped == 0 {
		return
	}
	graph := hnsw.NewGraph[string]()
	nodes := make([]hnsw.Node[string], 0, len(idx.order))
	for _, hash := range idx.order {
		if e := idx.entries[hash]; len(e.vec) > 0 {
			nodes = append(nodes, hnsw.MakeNode(hash, e.vec))
		}
	}
	if len(nodes) > 0 {
		graph.Add(nodes...)
	}
	idx.graph = graph
	slog.Debug("snippet index evicted", "evicted", excess, "remaining", len(idx.order))
}

// Recent returns up to n snippets, newest first. An empty language matches
// every snippet.
func (idx *Indexer) Recent(language string, n int) []Snippet {
	if n <= 0 {
		return nil
	}
	idx.mu.RLock()
	defer idx.mu.RUnlock()

	var out []Snippet
	for i := len(idx.order) - 1; i >= 0 && len(out) < n; i-- {
		e := idx.entries[idx.order[i]]
		if language == "" || e.Language == language {
			out = append(out, e.Snippet)
		}
	}
	return out
}

// SearchRelevant embeds the query and returns the topK most similar snippets.
// It returns nothing when no embedder is configured.
func (idx *Indexer) SearchRelevant(ctx context.Context, query string, topK int) ([]Snippet, error) {
	if idx.embedder == nil || topK <= 0 {
		return nil, nil
	}

	idx.mu.RLock()
	empty := idx.graph.Len() == 0
	idx.mu.RUnlock()
	if empty {
		return nil, nil
	}

	queryVec, err := idx.embedder.Embed(ctx, RedactSecrets(query))
	if err != nil {
		return nil, err
	}

	idx.mu.RLock()
	defer idx.mu.RUnlock()

	if dims := idx.graph.Dims(); dims != 0 && dims != len(queryVec) {
		return nil, fmt.Errorf("%w: query has %d, index has %d", ErrDimensionMismatch, len(queryVec), dims)
	}
	neighbors := idx.graph.Search(queryVec, topK)
	out := make([]Snippet, 0, len(neighbors))
	for _, n := range neighbors {
		if e, ok := idx.entries[n.Key]; ok {
			out = append(out, e.Snippet)
		}
	}
	return out, nil
}

// Len returns the number of stored snippets.
func (idx *Indexer) Len() int {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	return len(idx.order)
}

// Close releases resources held by the indexer.
func (idx *Indexer) Close() {
	if idx.embedder != nil {
		idx.embedder.Close()
	}
}

func hashSnippet(language, text string) string {
	h := sha256.Sum256([]byte(language + "\x00" + text))
	return fmt.Sprintf("%x", h)
}

const embedBatchSize = 32

// Reembed embeds every stored snippet that has no vector yet, in batches.
// It is used after loading a cache written with another embedding model.
func (idx *Indexer) Reembed(ctx context.Context) (int, error) {
	if idx.embedder == nil {
		return 0, nil
	}

	idx.mu.RLock()
	var pending []Snippet
	for _, hash := range idx.order {
		if e := idx.entries[hash]; len(e.vec) == 0 {
			pending = append(pending, e.Snippet)
		}
	}
	idx.mu.RUnlock()

	embedded := 0
	for batch := range slices.Chunk(pending, embedBatchSize) {
		texts := make([]string, len(batch))
		for i, s := range batch {
			texts[i] = s.Text
		}
		vectors, err := idx.embedder.EmbedBatch(ctx, texts)
		if err != nil {
			return embedded, fmt.Errorf("embedding batch: %w", err)
		}

		idx.mu.Lock()
		for i, s := range batch {
			e, ok := idx.entries[s.Hash]
			if !ok || len(e.vec) > 0 || !idx.fits(vectors[i]) {
				continue
			}
			e.vec = vectors[i]
			idx.graph.Add(hnsw.MakeNode(s.Hash, e.vec))
			embedded++
		}
		idx.mu.Unlock()
	}
	return embedded, nil
}

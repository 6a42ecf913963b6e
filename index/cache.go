package index

import (
	"encoding/json"
	"os"
	"time"
)

type cacheFile struct {
	Model      string       `json:"model"`
	Dimensions int          `json:"dimensions,omitempty"`
	Entries    []cacheEntry `json:"entries"`
}

type cacheEntry struct {
	Hash       string    `json:"hash"`
	Language   string    `json:"language"`
	Text       string    `json:"text"`
	AcceptedAt time.Time `json:"accepted_at"`
	Embedding  []float32 `json:"embedding,omitempty"`
}

// EmbeddingModel returns the model name used by the embedder, or empty if disabled.
func (idx *Indexer) EmbeddingModel() string {
	if idx.embedder == nil {
		return ""
	}
	return idx.embedder.Model()
}

func (idx *Indexer) embeddingDims() int {
	if idx.embedder == nil {
		return 0
	}
	return idx.embedder.Dimensions()
}

// SaveCache writes the snippets and their embeddings to disk, oldest first.
func (idx *Indexer) SaveCache(path string, model string) error {
	idx.mu.RLock()
	entries := make([]cacheEntry, 0, len(idx.order))
	for _, hash := range idx.order {
		e := idx.entries[hash]
		entries = append(entries, cacheEntry{
			Hash:       hash,
			Language:   e.Language,
			Text:       e.Text,
			AcceptedAt: e.AcceptedAt,
			Embedding:  e.vec,
		})
	}
	idx.mu.RUnlock()

	data, err := json.Marshal(cacheFile{
		Model:      model,
		Dimensions: idx.embeddingDims(),
		Entries:    entries,
	})
	if err != nil {
		return err
	}

	return os.WriteFile(path, data, 0600)
}

// LoadCache loads a previously saved index from disk.
// Embeddings made with a different model or vector size are dropped; the
// text is kept so Reembed can restore them.
func (idx *Indexer) LoadCache(path string, model string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}

	var cf cacheFile
	if err := json.Unmarshal(data, &cf); err != nil {
		return err
	}
	sameSpace := cf.Model == model && model != "" && cf.Dimensions == idx.embeddingDims()

	idx.mu.Lock()
	defer idx.mu.Unlock()

	for _, ce := range cf.Entries {
		if _, ok := idx.entries[ce.Hash]; ok || ce.Text == "" {
			continue
		}
		e := &entry{Snippet: Snippet{
			Hash:       ce.Hash,
			Language:   ce.Language,
			Text:       ce.Text,
			AcceptedAt: ce.AcceptedAt,
		}}
		if sameSpace {
			e.vec = ce.Embedding
		}
		idx.insert(e)
	}
	idx.evict()
	return nil
}

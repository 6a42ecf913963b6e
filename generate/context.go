package generate

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	ghostline "github.com/Paranoid-AF/ghostline"
	"github.com/Paranoid-AF/ghostline/index"
)

const (
	recentSnippets   = 3
	relevantSnippets = 3
	relevantTimeout  = 300 * time.Millisecond
	queryLines       = 6
)

// Info holds gathered context for a completion request.
type Info struct {
	Project          *ProjectContext
	RecentSnippets   []string
	RelevantSnippets []string
}

// Gatherer collects context for completion requests.
type Gatherer struct {
	indexer          *index.Indexer
	projects         *ProjectCache
	embeddingEnabled bool
}

// NewGatherer creates a new context gatherer.
// embedder may be nil to disable semantic features.
func NewGatherer(embedder *index.Embedder, cfg *ghostline.Config) *Gatherer {
	var maxSnippets int
	if cfg != nil {
		maxSnippets = cfg.Embedding.MaxSnippets
	}
	return &Gatherer{
		indexer:          index.NewIndexer(embedder, maxSnippets),
		projects:         NewProjectCache(0),
		embeddingEnabled: embedder != nil,
	}
}

// Gather collects context for req. It never blocks on project discovery:
// a cold project is gathered in the background for later requests.
func (g *Gatherer) Gather(ctx context.Context, req *ghostline.Request, w window) *Info {
	info := &Info{}

	if dir := projectDir(req); dir != "" {
		if pc := g.projects.Get(dir); pc != nil {
			info.Project = pc
		} else {
			g.projects.GatherAsync(dir)
		}
	}

	for _, s := range g.indexer.Recent(req.LanguageID, recentSnippets) {
		info.RecentSnippets = append(info.RecentSnippets, s.Text)
	}

	if g.embeddingEnabled {
		searchCtx, cancel := context.WithTimeout(ctx, relevantTimeout)
		defer cancel()
		found, err := g.indexer.SearchRelevant(searchCtx, lastLines(w.Prefix, queryLines), relevantSnippets)
		switch {
		case err != nil && ctx.Err() == nil:
			slog.Debug("related snippet search skipped", "error", err)
		case err == nil:
			for _, s := range found {
				if s.Language == req.LanguageID {
					info.RelevantSnippets = append(info.RelevantSnippets, s.Text)
				}
			}
		}
	}

	return info
}

// Warm gathers project context for dir synchronously.
func (g *Gatherer) Warm(ctx context.Context, dir string) *ProjectContext {
	return g.projects.Gather(ctx, dir)
}

// Accept records an accepted suggestion.
func (g *Gatherer) Accept(ctx context.Context, languageID, text string) error {
	return g.indexer.Add(ctx, languageID, text)
}

// LoadCache restores the snippet index from path. A missing file is not an
// error. Snippets embedded with another model are re-embedded.
func (g *Gatherer) LoadCache(ctx context.Context, path string) error {
	if err := g.indexer.LoadCache(path, g.indexer.EmbeddingModel()); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return err
	}
	if g.embeddingEnabled {
		n, err := g.indexer.Reembed(ctx)
		if n > 0 {
			slog.Info("re-embedded cached snippets", "count", n)
		}
		return err
	}
	return nil
}

// SaveCache persists the snippet index to path.
func (g *Gatherer) SaveCache(path string) error {
	if g.indexer.Len() == 0 {
		return nil
	}
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return err
	}
	return g.indexer.SaveCache(path, g.indexer.EmbeddingModel())
}

// Close releases resources held by the gatherer.
func (g *Gatherer) Close() {
	g.indexer.Close()
	g.projects.Close()
}

// projectDir picks the directory project context is gathered for: the
// client's cwd, else the directory of a file:// document.
func projectDir(req *ghostline.Request) string {
	if req.Cwd != "" {
		return strings.TrimRight(req.Cwd, "\n")
	}
	if p := filePath(req.URI); p != "" {
		return filepath.Dir(p)
	}
	return ""
}

func lastLines(s string, n int) string {
	lines := strings.Split(s, "\n")
	if len(lines) > n {
		lines = lines[len(lines)-n:]
	}
	return strings.Join(lines, "\n")
}

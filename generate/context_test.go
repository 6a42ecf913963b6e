package generate

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	ghostline "github.com/Paranoid-AF/ghostline"
)

func TestGatherRecentSnippets(t *testing.T) {
	g := NewGatherer(nil, ghostline.DefaultConfig())
	defer g.Close()

	ctx := context.Background()
	if err := g.Accept(ctx, "go", "fmt.Println(1)"); err != nil {
		t.Fatal(err)
	}
	if err := g.Accept(ctx, "python", "print(1)"); err != nil {
		t.Fatal(err)
	}

	info := g.Gather(ctx, &ghostline.Request{LanguageID: "go"}, window{})
	if len(info.RecentSnippets) != 1 || info.RecentSnippets[0] != "fmt.Println(1)" {
		t.Errorf("expected the go snippet only, got %q", info.RecentSnippets)
	}
	if info.RelevantSnippets != nil {
		t.Errorf("expected no relevant snippets without embedder, got %q", info.RelevantSnippets)
	}
}

func TestGatherWarmsProjectInBackground(t *testing.T) {
	g := NewGatherer(nil, nil)
	defer g.Close()

	dir := t.TempDir()
	req := &ghostline.Request{Cwd: dir}
	if info := g.Gather(context.Background(), req, window{}); info.Project != nil {
		t.Fatalf("expected cold project on first request, got %+v", info.Project)
	}

	deadline := time.Now().Add(5 * time.Second)
	for {
		info := g.Gather(context.Background(), req, window{})
		if info.Project != nil {
			if info.Project.Dir != dir {
				t.Errorf("expected project dir %s, got %s", dir, info.Project.Dir)
			}
			return
		}
		if time.Now().After(deadline) {
			t.Fatal("timed out waiting for project context")
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestGathererCacheRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cache", "snippets.json")
	ctx := context.Background()

	g := NewGatherer(nil, nil)
	if err := g.SaveCache(path); err != nil {
		t.Fatal(err)
	}
	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Fatal("expected no cache file for an empty index")
	}
	if err := g.Accept(ctx, "go", "return nil"); err != nil {
		t.Fatal(err)
	}
	if err := g.SaveCache(path); err != nil {
		t.Fatal(err)
	}
	g.Close()

	restored := NewGatherer(nil, nil)
	defer restored.Close()
	if err := restored.LoadCache(ctx, path); err != nil {
		t.Fatal(err)
	}
	info := restored.Gather(ctx, &ghostline.Request{LanguageID: "go"}, window{})
	if len(info.RecentSnippets) != 1 || info.RecentSnippets[0] != "return nil" {
		t.Errorf("expected restored snippet, got %q", info.RecentSnippets)
	}
}

func TestGathererLoadCacheMissingFile(t *testing.T) {
	g := NewGatherer(nil, nil)
	defer g.Close()
	if err := g.LoadCache(context.Background(), filepath.Join(t.TempDir(), "missing.json")); err != nil {
		t.Errorf("expected missing cache to be ignored, got %v", err)
	}
}

func TestProjectDir(t *testing.T) {
	if got := projectDir(&ghostline.Request{Cwd: "/work\n"}); got != "/work" {
		t.Errorf("expected cwd, got %q", got)
	}
	if got := projectDir(&ghostline.Request{URI: "file:///repo/src/a.go"}); got != "/repo/src" {
		t.Errorf("expected file directory, got %q", got)
	}
	if got := projectDir(&ghostline.Request{URI: "untitled:1"}); got != "" {
		t.Errorf("expected no directory, got %q", got)
	}
}

func TestLastLines(t *testing.T) {
	if got := lastLines("a\nb\nc", 2); got != "b\nc" {
		t.Errorf("unexpected %q", got)
	}
	if got := lastLines("a", 6); got != "a" {
		t.Errorf("unexpected %q", got)
	}
}

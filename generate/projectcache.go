package generate

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"slices"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/BurntSushi/toml"
	"github.com/jellydator/ttlcache/v3"
)

// ProjectContext describes the project a buffer belongs to.
type ProjectContext struct {
	Dir            string
	Root           string // git toplevel, empty outside a repository
	Branch         string
	Files          string            // space-separated top-level entries of Root (or Dir)
	Manifests      map[string]string // manifest label -> extracted summary
	PackageManager string
}

const (
	projectCacheTTL  = 30 * time.Minute
	gatherTimeout    = 5 * time.Second
	manifestMaxBytes = 512
	listingMaxBytes  = 512
)

// ProjectCache is a TTL cache of ProjectContext entries keyed by directory.
type ProjectCache struct {
	cache *ttlcache.Cache[string, *ProjectContext]

	mu       sync.Mutex
	inflight map[string]bool
}

// NewProjectCache creates a cache whose entries expire after ttl.
// A zero ttl uses the default.
func NewProjectCache(ttl time.Duration) *ProjectCache {
	if ttl <= 0 {
		ttl = projectCacheTTL
	}
	c := ttlcache.New[string, *ProjectContext](
		ttlcache.WithTTL[string, *ProjectContext](ttl),
		ttlcache.WithDisableTouchOnHit[string, *ProjectContext](),
	)
	go c.Start()
	return &ProjectCache{cache: c, inflight: make(map[string]bool)}
}

// Close stops the cache expiration loop.
func (pc *ProjectCache) Close() {
	pc.cache.Stop()
}

// Get returns the cached context for dir, or nil if not cached or expired.
func (pc *ProjectCache) Get(dir string) *ProjectContext {
	item := pc.cache.Get(dir)
	if item == nil {
		return nil
	}
	return item.Value()
}

// Len returns the number of live entries.
func (pc *ProjectCache) Len() int {
	return pc.cache.Len()
}

// GatherAsync starts a background Gather for dir unless one is running.
func (pc *ProjectCache) GatherAsync(dir string) {
	pc.mu.Lock()
	if pc.inflight[dir] {
		pc.mu.Unlock()
		return
	}
	pc.inflight[dir] = true
	pc.mu.Unlock()

	go func() {
		defer func() {
			pc.mu.Lock()
			delete(pc.inflight, dir)
			pc.mu.Unlock()
		}()
		pc.Gather(context.Background(), dir)
	}()
}

// Gather collects project context for dir and caches it.
func (pc *ProjectCache) Gather(ctx context.Context, dir string) *ProjectContext {
	ctx, cancel := context.WithTimeout(ctx, gatherTimeout)
	defer cancel()

	entry := &ProjectContext{
		Dir:       dir,
		Manifests: make(map[string]string),
	}

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		entry.Root = strings.TrimSpace(runCmd(ctx, dir, "git", "rev-parse", "--show-toplevel"))
	}()
	go func() {
		defer wg.Done()
		entry.Branch = strings.TrimSpace(runCmd(ctx, dir, "git", "rev-parse", "--abbrev-ref", "HEAD"))
	}()
	wg.Wait()

	base := dir
	if entry.Root != "" {
		base = entry.Root
	}
	entry.Files = listDir(base, listingMaxBytes)

	gatherManifests(dir, entry.Manifests)
	if entry.Root != "" && entry.Root != dir {
		// Manifests closer to the buffer win.
		rootManifests := make(map[string]string)
		gatherManifests(entry.Root, rootManifests)
		for k, v := range rootManifests {
			if _, ok := entry.Manifests[k]; !ok {
				entry.Manifests[k] = v
			}
		}
	}
	entry.PackageManager = detectPackageManager(dir, entry.Root)

	pc.cache.Set(dir, entry, ttlcache.DefaultTTL)
	slog.Debug("gathered project context", "dir", dir, "root", entry.Root, "manifests", len(entry.Manifests))
	return entry
}

// runCmd runs a command and returns its stdout, or empty string on error.
func runCmd(ctx context.Context, dir string, name string, args ...string) string {
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Dir = dir
	out, err := cmd.Output()
	if err != nil {
		return ""
	}
	return string(out)
}

func listDir(dir string, maxBytes int) string {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return ""
	}
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		name := e.Name()
		if name == ".git" {
			continue
		}
		if e.IsDir() {
			name += "/"
		}
		names = append(names, name)
	}
	return truncate(strings.Join(names, " "), maxBytes)
}

type manifestExtractor struct {
	file    string
	label   string
	extract func(string) string
}

var manifestExtractors = []manifestExtractor{
	{"go.mod", "go.mod", extractGoModInfo},
	{"package.json", "package.json", extractPackageJSONInfo},
	{"Cargo.toml", "Cargo.toml", extractCargoInfo},
	{"pyproject.toml", "pyproject.toml", extractPyprojectInfo},
	{"CMakeLists.txt", "CMakeLists.txt", extractCMakeInfo},
	{"Makefile", "make targets", extractMakeTargets},
	{"justfile", "just recipes", extractJustRecipes},
}

func gatherManifests(dir string, out map[string]string) {
	for _, m := range manifestExtractors {
		data, err := os.ReadFile(filepath.Join(dir, m.file))
		if err != nil {
			continue
		}
		if extracted := m.extract(string(data)); extracted != "" {
			out[m.label] = extracted
		}
	}
}

// extractPackageJSONInfo summarises name and dependency names of package.json.
func extractPackageJSONInfo(content string) string {
	var pkg struct {
		Name            string            `json:"name"`
		Type            string            `json:"type"`
		Dependencies    map[string]string `json:"dependencies"`
		DevDependencies map[string]string `json:"devDependencies"`
	}
	if err := json.Unmarshal([]byte(content), &pkg); err != nil {
		return ""
	}
	var parts []string
	if pkg.Name != "" {
		parts = append(parts, "name: "+pkg.Name)
	}
	if pkg.Type != "" {
		parts = append(parts, "type: "+pkg.Type)
	}
	if deps := sortedKeys(pkg.Dependencies); len(deps) > 0 {
		parts = append(parts, "deps: "+strings.Join(deps, " "))
	}
	if deps := sortedKeys(pkg.DevDependencies); len(deps) > 0 {
		parts = append(parts, "dev deps: "+strings.Join(deps, " "))
	}
	return truncate(strings.Join(parts, ", "), manifestMaxBytes)
}

type cargoToml struct {
	Package struct {
		Name    string `toml:"name"`
		Edition string `toml:"edition"`
	} `toml:"package"`
	Dependencies map[string]any `toml:"dependencies"`
}

// extractCargoInfo summarises name, edition and dependency names of Cargo.toml.
func extractCargoInfo(content string) string {
	var cargo cargoToml
	if _, err := toml.Decode(content, &cargo); err != nil {
		return ""
	}
	var parts []string
	if cargo.Package.Name != "" {
		parts = append(parts, fmt.Sprintf(`name = "%s"`, cargo.Package.Name))
	}
	if cargo.Package.Edition != "" {
		parts = append(parts, fmt.Sprintf(`edition = "%s"`, cargo.Package.Edition))
	}
	if deps := sortedKeys(cargo.Dependencies); len(deps) > 0 {
		parts = append(parts, "deps: "+strings.Join(deps, " "))
	}
	return truncate(strings.Join(parts, ", "), manifestMaxBytes)
}

type pyprojectToml struct {
	Project struct {
		Name           string   `toml:"name"`
		RequiresPython string   `toml:"requires-python"`
		Dependencies   []string `toml:"dependencies"`
	} `toml:"project"`
}

// extractPyprojectInfo summarises the [project] table of pyproject.toml.
func extractPyprojectInfo(content string) string {
	var pyproject pyprojectToml
	if _, err := toml.Decode(content, &pyproject); err != nil {
		return ""
	}
	p := pyproject.Project
	var parts []string
	if p.Name != "" {
		parts = append(parts, fmt.Sprintf(`name = "%s"`, p.Name))
	}
	if p.RequiresPython != "" {
		parts = append(parts, "python "+p.RequiresPython)
	}
	if len(p.Dependencies) > 0 {
		parts = append(parts, "deps: "+strings.Join(p.Dependencies, " "))
	}
	return truncate(strings.Join(parts, ", "), manifestMaxBytes)
}

// extractGoModInfo extracts the module path, Go version and required modules.
func extractGoModInfo(content string) string {
	var parts, requires []string
	inRequire := false
	scanner := bufio.NewScanner(strings.NewReader(content))
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		switch {
		case inRequire:
			if line == ")" {
				inRequire = false
			} else if f := strings.Fields(line); len(f) >= 2 && !strings.Contains(line, "// indirect") {
				requires = append(requires, f[0])
			}
		case strings.HasPrefix(line, "module "), strings.HasPrefix(line, "go ") && !strings.HasPrefix(line, "go."):
			parts = append(parts, line)
		case line == "require (":
			inRequire = true
		case strings.HasPrefix(line, "require "):
			if f := strings.Fields(line); len(f) >= 3 {
				requires = append(requires, f[1])
			}
		}
	}
	if len(requires) > 0 {
		parts = append(parts, "requires: "+strings.Join(requires, " "))
	}
	return truncate(strings.Join(parts, ", "), manifestMaxBytes)
}

// extractCMakeInfo extracts the project() line from CMakeLists.txt.
func extractCMakeInfo(content string) string {
	scanner := bufio.NewScanner(strings.NewReader(content))
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		lower := strings.ToLower(line)
		if strings.HasPrefix(lower, "project(") || strings.HasPrefix(lower, "project (") {
			return truncate(line, manifestMaxBytes)
		}
	}
	return ""
}

// extractMakeTargets lists explicit Makefile targets, skipping special
// targets, pattern rules and variable assignments.
func extractMakeTargets(content string) string {
	return extractRuleNames(content, func(head string) bool {
		return !strings.ContainsAny(head, "%$=") && !strings.HasPrefix(head, ".")
	})
}

// extractJustRecipes lists justfile recipe names.
func extractJustRecipes(content string) string {
	return extractRuleNames(content, func(head string) bool {
		return !strings.HasPrefix(head, "set ") && !strings.HasPrefix(head, "export ")
	})
}

// extractRuleNames collects the first word before ':' of every unindented,
// non-comment line that keep accepts.
func extractRuleNames(content string, keep func(head string) bool) string {
	var names []string
	seen := make(map[string]bool)
	scanner := bufio.NewScanner(strings.NewReader(content))
	for scanner.Scan() {
		line := scanner.Text()
		if line == "" || line[0] == ' ' || line[0] == '\t' || line[0] == '#' || line[0] == '@' {
			continue
		}
		head, _, ok := strings.Cut(line, ":")
		if !ok || strings.HasPrefix(line[len(head):], ":=") || !keep(head) {
			continue
		}
		fields := strings.Fields(head)
		if len(fields) == 0 || seen[fields[0]] {
			continue
		}
		seen[fields[0]] = true
		names = append(names, fields[0])
	}
	return truncate(strings.Join(names, " "), manifestMaxBytes)
}

// lockfiles maps lockfile names to package managers, most specific first.
var lockfiles = []struct {
	file    string
	manager string
}{
	{"pnpm-lock.yaml", "pnpm"},
	{"yarn.lock", "yarn"},
	{"bun.lockb", "bun"},
	{"package-lock.json", "npm"},
	{"Cargo.lock", "cargo"},
	{"go.sum", "go"},
	{"uv.lock", "uv"},
	{"poetry.lock", "poetry"},
}

// detectPackageManager checks dir first, then the repository root.
func detectPackageManager(dir, root string) string {
	for _, d := range []string{dir, root} {
		if d == "" {
			continue
		}
		for _, lf := range lockfiles {
			if _, err := os.Stat(filepath.Join(d, lf.file)); err == nil {
				return lf.manager
			}
		}
	}
	return ""
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys
}

// truncate cuts s to at most maxBytes on a rune boundary, appending "...".
func truncate(s string, maxBytes int) string {
	if len(s) <= maxBytes {
		return s
	}
	cut := maxBytes
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut] + "..."
}

package generate

import (
	"log/slog"
	"net/url"
	"path/filepath"
	"slices"
	"strings"
	"text/template"
	"unicode/utf8"

	ghostline "github.com/Paranoid-AF/ghostline"
	defaults "github.com/Paranoid-AF/ghostline/default"
	"github.com/Paranoid-AF/ghostline/index"
)

// cursorMarker marks the caret in chat prompts.
const cursorMarker = "█"

const (
	defaultPrefixMaxBytes = 4096
	defaultSuffixMaxBytes = 1024
)

// window is the part of the buffer around the caret that is sent to the model.
type window struct {
	Prefix string
	Suffix string
	// SameLine reports whether non-blank text follows the caret on its line.
	SameLine bool
}

// newWindow cuts text around offset. Offsets outside the text are clamped,
// offsets inside a UTF-8 sequence move back to the rune start. Windows that
// exceed their limit are trimmed to whole lines where possible.
func newWindow(text string, offset, prefixMax, suffixMax int) window {
	if prefixMax <= 0 {
		prefixMax = defaultPrefixMaxBytes
	}
	if suffixMax <= 0 {
		suffixMax = defaultSuffixMaxBytes
	}
	offset = max(0, min(offset, len(text)))
	for offset > 0 && offset < len(text) && !utf8.RuneStart(text[offset]) {
		offset--
	}

	prefix, suffix := text[:offset], text[offset:]
	if len(prefix) > prefixMax {
		prefix = prefix[len(prefix)-prefixMax:]
		if i := strings.IndexByte(prefix, '\n'); i >= 0 && i < len(prefix)-1 {
			prefix = prefix[i+1:]
		}
		for len(prefix) > 0 && !utf8.RuneStart(prefix[0]) {
			prefix = prefix[1:]
		}
	}
	if len(suffix) > suffixMax {
		suffix = suffix[:suffixMax]
		if i := strings.LastIndexByte(suffix, '\n'); i > 0 {
			suffix = suffix[:i+1]
		}
		for len(suffix) > 0 && !utf8.ValidString(suffix) {
			suffix = suffix[:len(suffix)-1]
		}
	}

	rest, _, _ := strings.Cut(suffix, "\n")
	return window{
		Prefix:   prefix,
		Suffix:   suffix,
		SameLine: strings.TrimSpace(rest) != "",
	}
}

// redact masks the window before it leaves the machine.
func (w window) redact(languageID string) window {
	w.Prefix = index.Redact(languageID, w.Prefix)
	w.Suffix = index.Redact(languageID, w.Suffix)
	return w
}

// PromptData holds the data passed to the system prompt template.
type PromptData struct {
	Language string
	// MaxLines caps the completion; zero means no cap.
	MaxLines int
	Snippets []string
}

var promptFuncs = template.FuncMap{
	"bullet": func(items []string) string {
		if len(items) == 0 {
			return ""
		}
		var sb strings.Builder
		for _, item := range items {
			sb.WriteString("- ")
			sb.WriteString(strings.ReplaceAll(item, "\n", "\n  "))
			sb.WriteString("\n")
		}
		return strings.TrimSuffix(sb.String(), "\n")
	},
	"join": func(items []string, sep string) string {
		return strings.Join(items, sep)
	},
}

// renderSystemPrompt renders the custom template, falling back to the
// embedded default when it does not parse or execute.
func renderSystemPrompt(custom string, data PromptData) string {
	tmplSrc := custom
	if tmplSrc == "" {
		tmplSrc = defaults.DefaultPrompt
	}

	t, err := template.New("prompt").Funcs(promptFuncs).Parse(tmplSrc)
	if err != nil {
		slog.Warn("failed to parse prompt template, falling back to default", "error", err)
		t = template.Must(template.New("prompt").Funcs(promptFuncs).Parse(defaults.DefaultPrompt))
	}

	var buf strings.Builder
	if err := t.Execute(&buf, data); err != nil {
		slog.Warn("failed to execute prompt template, falling back to default", "error", err)
		t = template.Must(template.New("prompt").Funcs(promptFuncs).Parse(defaults.DefaultPrompt))
		buf.Reset()
		t.Execute(&buf, data)
	}

	return strings.TrimRight(buf.String(), " \t\n")
}

// buildUserMessage lays out project context followed by the code with the
// caret marked.
func buildUserMessage(req *ghostline.Request, w window, project *ProjectContext) string {
	var sb strings.Builder
	line := func(label, value string) {
		if value == "" {
			return
		}
		sb.WriteString(label)
		sb.WriteString(": ")
		sb.WriteString(value)
		sb.WriteString("\n")
	}

	line("file", displayPath(req.URI, project))
	line("language", req.LanguageID)
	if project != nil {
		line("project root", project.Root)
		line("branch", project.Branch)
		line("project files", project.Files)
		line("pkg", project.PackageManager)
		names := make([]string, 0, len(project.Manifests))
		for name := range project.Manifests {
			names = append(names, name)
		}
		slices.Sort(names)
		for _, name := range names {
			line(name, project.Manifests[name])
		}
	}

	sb.WriteString("\nCode:\n")
	sb.WriteString(w.Prefix)
	sb.WriteString(cursorMarker)
	sb.WriteString(w.Suffix)
	return sb.String()
}

// displayPath returns the document path relative to the project root when
// possible.
func displayPath(uri string, project *ProjectContext) string {
	p := filePath(uri)
	if p == "" {
		return uri
	}
	if project != nil && project.Root != "" {
		if rel, err := filepath.Rel(project.Root, p); err == nil && !strings.HasPrefix(rel, "..") {
			return rel
		}
	}
	return p
}

// filePath returns the local path of a file:// URI, or "".
func filePath(uri string) string {
	u, err := url.Parse(uri)
	if err != nil || u.Scheme != "file" {
		return ""
	}
	return u.Path
}

// buildPrompt assembles both prompt shapes for a request.
func buildPrompt(custom string, req *ghostline.Request, w window, info *Info) Prompt {
	data := PromptData{Language: req.LanguageID}
	if w.SameLine {
		data.MaxLines = 1
	}
	data.Snippets = append(data.Snippets, info.RelevantSnippets...)
	for _, s := range info.RecentSnippets {
		if !slices.Contains(data.Snippets, s) {
			data.Snippets = append(data.Snippets, s)
		}
	}

	return Prompt{
		System: renderSystemPrompt(custom, data),
		User:   buildUserMessage(req, w, info.Project),
		Text:   w.Prefix,
		Suffix: w.Suffix,
	}
}

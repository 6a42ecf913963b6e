package generate

import (
	"strings"
)

const maxSuffixOverlap = 256

// cleanCompletion turns raw model output into the text to insert at the
// caret: markdown fences and echoed caret markers are stripped, a repeated
// current line is dropped, and text that merely re-types what already
// follows the caret is removed.
func cleanCompletion(raw string, w window) string {
	text := stripFences(raw)
	text = strings.ReplaceAll(text, cursorMarker, "")

	// Chat models sometimes repeat the line being completed.
	if lineStart := strings.LastIndexByte(w.Prefix, '\n') + 1; lineStart < len(w.Prefix) {
		current := w.Prefix[lineStart:]
		if len(strings.TrimSpace(current)) >= 4 && strings.HasPrefix(text, current) {
			text = text[len(current):]
		}
	}

	if w.SameLine {
		text, _, _ = strings.Cut(text, "\n")
	}

	text = trimSuffixOverlap(text, w.Suffix)

	if w.Suffix == "" || strings.HasPrefix(w.Suffix, "\n") {
		text = strings.TrimRight(text, " \t\r\n")
	}
	if strings.TrimSpace(text) == "" {
		return ""
	}
	return text
}

// stripFences removes a surrounding ```lang ... ``` block.
func stripFences(s string) string {
	trimmed := strings.TrimSpace(s)
	if !strings.HasPrefix(trimmed, "```") {
		return s
	}
	body := trimmed[3:]
	nl := strings.IndexByte(body, '\n')
	if nl < 0 {
		return strings.Trim(body, "`")
	}
	body = body[nl+1:]
	if end := strings.LastIndex(body, "```"); end >= 0 {
		body = body[:end]
	}
	return strings.TrimSuffix(body, "\n")
}

// trimSuffixOverlap drops the longest tail of text that equals the start of
// suffix.
func trimSuffixOverlap(text, suffix string) string {
	limit := min(len(text), len(suffix), maxSuffixOverlap)
	for k := limit; k > 0; k-- {
		if strings.HasSuffix(text, suffix[:k]) {
			return text[:len(text)-k]
		}
	}
	return text
}

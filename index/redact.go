package index

import (
	"bytes"
	"regexp"
	"strings"

	"mvdan.cc/sh/v3/syntax"
)

// safeVars are environment variables that are non-sensitive and useful for LLM context.
var safeVars = map[string]bool{
	"HOME": true, "USER": true, "PWD": true, "OLDPWD": true,
	"SHELL": true, "PATH": true, "LANG": true, "TERM": true,
	"EDITOR": true, "PAGER": true, "HOSTNAME": true, "LOGNAME": true,
	"TMPDIR": true, "XDG_CONFIG_HOME": true, "XDG_DATA_HOME": true,
	"XDG_RUNTIME_DIR": true, "DISPLAY": true, "GOPATH": true,
	"COLUMNS": true, "LINES": true, "LC_ALL": true, "LC_CTYPE": true,
}

// specialParams are shell special parameters that should not be redacted.
var specialParams = map[string]bool{
	"?": true, "!": true, "#": true, "@": true, "*": true,
	"-": true, "$": true, "_": true,
	"0": true, "1": true, "2": true, "3": true, "4": true,
	"5": true, "6": true, "7": true, "8": true, "9": true,
}

var shellLanguages = map[string]bool{
	"shellscript": true, "shell": true, "sh": true, "bash": true, "zsh": true,
}

// IsShellLanguage reports whether an editor language id denotes a shell script.
func IsShellLanguage(languageID string) bool {
	return shellLanguages[strings.ToLower(languageID)]
}

// Redact applies shell redaction to shell buffers and secret masking to all.
func Redact(languageID, text string) string {
	if IsShellLanguage(languageID) {
		text = RedactShell(text)
	}
	return RedactSecrets(text)
}

// RedactShell replaces sensitive parameter expansions and assignment values
// in shell source. Safe variables (PATH, HOME, etc.) and special shell
// parameters ($?, $!, etc.) are preserved. Source that does not parse falls
// back to regex redaction.
func RedactShell(src string) string {
	parser := syntax.NewParser(syntax.Variant(syntax.LangBash), syntax.KeepComments(true))
	prog, err := parser.Parse(strings.NewReader(src), "")
	if err != nil {
		return regexRedact(src)
	}

	syntax.Walk(prog, func(node syntax.Node) bool {
		switch n := node.(type) {
		case *syntax.ParamExp:
			if n.Param != nil && !safeVars[n.Param.Value] && !specialParams[n.Param.Value] {
				n.Param.Value = "REDACTED"
			}
		case *syntax.Assign:
			if n.Name != nil && !safeVars[n.Name.Value] && n.Value != nil {
				n.Value.Parts = []syntax.WordPart{&syntax.Lit{Value: "***"}}
			}
		}
		return true
	})

	var buf bytes.Buffer
	printer := syntax.NewPrinter(syntax.Indent(0))
	if err := printer.Print(&buf, prog); err != nil {
		return regexRedact(src)
	}
	return strings.TrimRight(buf.String(), "\n")
}

var (
	reBraceVar  = regexp.MustCompile(`\$\{([A-Za-z_][A-Za-z0-9_]*)\}`)
	reSimpleVar = regexp.MustCompile(`\$([A-Za-z_][A-Za-z0-9_]*)`)
	reAssign    = regexp.MustCompile(`\b([A-Za-z_][A-Za-z0-9_]*)=(\S+)`)
)

// regexRedact is a fallback for shell source that fails AST parsing.
func regexRedact(src string) string {
	// ${VAR} → ${REDACTED}
	src = reBraceVar.ReplaceAllStringFunc(src, func(m string) string {
		name := reBraceVar.FindStringSubmatch(m)[1]
		if safeVars[name] || specialParams[name] {
			return m
		}
		return "${REDACTED}"
	})

	// $VAR → $REDACTED
	src = reSimpleVar.ReplaceAllStringFunc(src, func(m string) string {
		name := reSimpleVar.FindStringSubmatch(m)[1]
		if name == "REDACTED" || safeVars[name] || specialParams[name] {
			return m
		}
		return "$REDACTED"
	})

	// VAR=value → VAR=***
	src = reAssign.ReplaceAllStringFunc(src, func(m string) string {
		name := reAssign.FindStringSubmatch(m)[1]
		if safeVars[name] {
			return m
		}
		return name + "=***"
	})

	return src
}

var (
	reBearer    = regexp.MustCompile(`(?i)(bearer\s+)[A-Za-z0-9._~+/=-]{8,}`)
	reSecretKey = regexp.MustCompile(`\b(sk|pk|rk)-[A-Za-z0-9_-]{16,}`)
	reAWSKey    = regexp.MustCompile(`\b(?:AKIA|ASIA)[0-9A-Z]{16}\b`)
	reSecretLit = regexp.MustCompile(`(?i)\b(\w*(?:password|passwd|secret|token|api_?key)\w*)(\s*[:=]\s*)(["'])[^"'\n]*(["'])`)
)

// RedactSecrets masks credentials that commonly leak into source: bearer
// tokens, sk-style API keys, AWS access key ids and quoted values assigned to
// password/secret/token/api_key names.
func RedactSecrets(text string) string {
	text = reBearer.ReplaceAllString(text, "${1}***")
	text = reSecretKey.ReplaceAllString(text, "${1}-***")
	text = reAWSKey.ReplaceAllString(text, "AKIA***")
	text = reSecretLit.ReplaceAllString(text, "${1}${2}${3}***${4}")
	return text
}

package sanitize

import (
	"errors"
	"strings"
	"unicode"
)

// ScriptStart marks the first line of a usable script.
const ScriptStart = "from manim"

const (
	fence       = "```"
	pythonFence = "```python"
)

// ErrEmptyScript reports LLM output that contains no usable script.
var ErrEmptyScript = errors.New("llm returned empty script")

// latexReplacer rewrites constructors that need a local LaTeX install.
// MathTex( must come first so it is not left as "MathText(".
var latexReplacer = strings.NewReplacer(
	"MathTex(", "Text(",
	"Tex(", "Text(",
	"Title(", "Text(",
)

var statementPrefixes = []string{
	"from ",
	"import ",
	"class ",
	"def ",
	"if ",
	"elif ",
	"else:",
	"for ",
	"while ",
	"with ",
	"try:",
	"except ",
	"finally:",
	"return ",
	"pass",
	"break",
	"continue",
	"raise ",
	"@",
}

// Clean turns raw LLM output into a script body ending in exactly one newline.
// It returns ErrEmptyScript when nothing usable remains.
func Clean(raw string) (string, error) {
	text := normalizeNewlines(raw)
	text = dropPreamble(text)
	text = stripFences(text)
	// Removing fences can join a start marker that a fence had split.
	text = dropPreamble(text)
	text = ReplaceLatex(text)
	// Trim before classifying lines so a lone indented line cannot survive
	// the first pass and be dropped by the second.
	text = trimTrailingProse(strings.TrimSpace(text))
	text = strings.TrimSpace(text)
	if text == "" {
		return "", ErrEmptyScript
	}
	return text + "\n", nil
}

// ReplaceLatex substitutes MathTex(, Tex( and Title( with Text(.
func ReplaceLatex(text string) string {
	return latexReplacer.Replace(text)
}

func normalizeNewlines(text string) string {
	text = strings.ReplaceAll(text, "\r\n", "\n")
	return strings.ReplaceAll(text, "\r", "\n")
}

func dropPreamble(text string) string {
	if idx := strings.Index(text, ScriptStart); idx >= 0 {
		return text[idx:]
	}
	return text
}

func stripFences(text string) string {
	last := strings.LastIndex(text, fence)
	if last < 0 {
		return text
	}
	text = text[:last]
	text = strings.ReplaceAll(text, pythonFence, "")
	return strings.ReplaceAll(text, fence, "")
}

func trimTrailingProse(text string) string {
	lines := strings.Split(text, "\n")
	lines = dropTrailingBlank(lines)
	for len(lines) > 0 && !looksLikeCode(lines[len(lines)-1]) {
		lines = dropTrailingBlank(lines[:len(lines)-1])
	}
	return strings.Join(lines, "\n")
}

func dropTrailingBlank(lines []string) []string {
	for len(lines) > 0 && strings.TrimSpace(lines[len(lines)-1]) == "" {
		lines = lines[:len(lines)-1]
	}
	return lines
}

func looksLikeCode(line string) bool {
	stripped := strings.TrimLeftFunc(line, unicode.IsSpace)
	if stripped == "" || stripped != line {
		return true
	}
	if strings.HasPrefix(stripped, "#") {
		return true
	}
	// A bare keyword must still count once the final trim has removed its
	// trailing space.
	bare := strings.TrimRight(stripped, " \t")
	for _, prefix := range statementPrefixes {
		if strings.HasPrefix(stripped, prefix) || bare == strings.TrimSpace(prefix) {
			return true
		}
	}
	return strings.ContainsAny(stripped, "=(){}[]")
}

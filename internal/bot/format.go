package bot

import (
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

var markdownEscaper = strings.NewReplacer(
	"_", "\\_",
	"*", "\\*",
	"[", "\\[",
	"`", "\\`",
)

// escapeMarkdown keeps user and model text from breaking legacy Markdown parsing.
func escapeMarkdown(text string) string {
	return markdownEscaper.Replace(text)
}

func truncate(text string, limit int) string {
	runes := []rune(strings.TrimSpace(text))
	if len(runes) <= limit {
		return string(runes)
	}
	return string(runes[:limit])
}

// A Caser is stateful, so each call builds its own.
func titleCase(value string) string {
	return cases.Title(language.English).String(value)
}

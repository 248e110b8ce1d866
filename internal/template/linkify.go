package template

import (
	"regexp"
	"strings"
)

var urlPattern = regexp.MustCompile(`(?i)(https?://[^\s<]+|\bwww\.[^\s<]+)`)

// linkifyHTML wraps bare URLs in styled anchors. URLs inside tag
// attributes or existing anchor elements are left untouched: tag
// interiors are copied verbatim and anchor elements are skipped as a
// whole.
func linkifyHTML(s string) string {
	var b strings.Builder
	b.Grow(len(s))

	for len(s) > 0 {
		lt := strings.IndexByte(s, '<')
		if lt < 0 {
			b.WriteString(linkifyText(s))
			break
		}
		b.WriteString(linkifyText(s[:lt]))
		s = s[lt:]

		if isAnchorOpen(s) {
			if end := strings.Index(strings.ToLower(s), "</a>"); end >= 0 {
				b.WriteString(s[:end+4])
				s = s[end+4:]
				continue
			}
		}

		gt := strings.IndexByte(s, '>')
		if gt < 0 {
			// Dangling '<'; treat the rest as text.
			b.WriteString(s)
			break
		}
		b.WriteString(s[:gt+1])
		s = s[gt+1:]
	}

	return b.String()
}

func linkifyText(text string) string {
	if text == "" {
		return text
	}
	return urlPattern.ReplaceAllStringFunc(text, anchorFor)
}

func isAnchorOpen(s string) bool {
	if len(s) < 3 || s[0] != '<' {
		return false
	}
	if s[1] != 'a' && s[1] != 'A' {
		return false
	}
	switch s[2] {
	case ' ', '\t', '\n', '>':
		return true
	}
	return false
}

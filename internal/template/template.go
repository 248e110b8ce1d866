package template

import (
	"errors"
	"fmt"
	"path/filepath"
	"regexp"
	"strings"
)

// Format identifies how a template body is interpreted when rendering.
type Format string

const (
	FormatPlain    Format = "plain"
	FormatMarkdown Format = "markdown"
	FormatHTML     Format = "html"
)

// ErrUnsupportedFormat is returned for template files that are not
// .txt, .md or .html.
var ErrUnsupportedFormat = errors.New("unsupported template file type")

// FormatFromName infers the template format from a file name.
func FormatFromName(name string) (Format, error) {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".txt":
		return FormatPlain, nil
	case ".md", ".markdown":
		return FormatMarkdown, nil
	case ".html", ".htm":
		return FormatHTML, nil
	default:
		return "", fmt.Errorf("%w: %s", ErrUnsupportedFormat, name)
	}
}

// Template is an uploaded email body. Immutable; a re-upload or manual
// edit replaces it wholesale.
type Template struct {
	Name   string
	Body   string
	Format Format
}

// New creates a template, inferring the format from the file name.
func New(name, body string) (*Template, error) {
	format, err := FormatFromName(name)
	if err != nil {
		return nil, err
	}
	return &Template{Name: name, Body: body, Format: format}, nil
}

// placeholderPattern matches <Name> tokens. Names may not contain the
// delimiter characters themselves.
var placeholderPattern = regexp.MustCompile(`<([^<>]+)>`)

// Placeholders extracts the distinct placeholder names from the
// template body in first-appearance order. It is recomputed on every
// call; nothing is cached across template edits.
func (t *Template) Placeholders() []string {
	if t == nil || t.Body == "" {
		return nil
	}

	seen := make(map[string]bool)
	var names []string
	for _, m := range placeholderPattern.FindAllStringSubmatch(t.Body, -1) {
		if !seen[m[1]] {
			seen[m[1]] = true
			names = append(names, m[1])
		}
	}
	return names
}

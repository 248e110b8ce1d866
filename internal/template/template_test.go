package template

import (
	"errors"
	"strings"
	"testing"
)

func TestFormatFromName(t *testing.T) {
	tests := []struct {
		name    string
		want    Format
		wantErr bool
	}{
		{"body.txt", FormatPlain, false},
		{"body.md", FormatMarkdown, false},
		{"body.markdown", FormatMarkdown, false},
		{"Body.MD", FormatMarkdown, false},
		{"body.html", FormatHTML, false},
		{"body.htm", FormatHTML, false},
		{"body.docx", "", true},
		{"body", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := FormatFromName(tt.name)
			if (err != nil) != tt.wantErr {
				t.Fatalf("FormatFromName(%q) error = %v, wantErr %v", tt.name, err, tt.wantErr)
			}
			if err != nil {
				if !errors.Is(err, ErrUnsupportedFormat) {
					t.Errorf("error = %v, want ErrUnsupportedFormat", err)
				}
				return
			}
			if got != tt.want {
				t.Errorf("FormatFromName(%q) = %q, want %q", tt.name, got, tt.want)
			}
		})
	}
}

func TestPlaceholders(t *testing.T) {
	tests := []struct {
		name string
		body string
		want []string
	}{
		{
			name: "distinct names in order",
			body: "Hi <FirstName>, your code is <Code>. Bye <FirstName>!",
			want: []string{"FirstName", "Code"},
		},
		{
			name: "no placeholders",
			body: "Hello there",
			want: nil,
		},
		{
			name: "empty body",
			body: "",
			want: nil,
		},
		{
			name: "nested delimiters not matched",
			body: "a <<b>> c",
			want: []string{"b"},
		},
		{
			name: "case sensitive",
			body: "<Name> and <name>",
			want: []string{"Name", "name"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tmpl := &Template{Name: "t.txt", Body: tt.body, Format: FormatPlain}
			got := tmpl.Placeholders()
			if len(got) != len(tt.want) {
				t.Fatalf("Placeholders() = %v, want %v", got, tt.want)
			}
			for i := range tt.want {
				if got[i] != tt.want[i] {
					t.Errorf("Placeholders()[%d] = %q, want %q", i, got[i], tt.want[i])
				}
			}
		})
	}
}

func TestPlaceholdersNoDuplicates(t *testing.T) {
	tmpl := &Template{Body: strings.Repeat("<X> ", 10), Format: FormatPlain}
	if got := tmpl.Placeholders(); len(got) != 1 {
		t.Errorf("Placeholders() = %v, want single element", got)
	}
}

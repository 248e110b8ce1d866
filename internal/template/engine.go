package template

import (
	"bytes"
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
	"github.com/yuin/goldmark/renderer/html"

	"github.com/zapsend/zapsend/internal/recipients"
)

// BannerCID is the Content-ID the rendered banner image references.
// The banner attachment must carry the same CID.
const BannerCID = "banner-image"

// brandColor styles every generated hyperlink.
const brandColor = "#F23E36"

// Renderer turns templates into final HTML email bodies.
type Renderer struct {
	md goldmark.Markdown
}

// NewRenderer creates a renderer. Raw HTML is passed through markdown
// conversion so substituted anchor values survive.
func NewRenderer() *Renderer {
	return &Renderer{
		md: goldmark.New(
			goldmark.WithExtensions(extension.GFM),
			goldmark.WithRendererOptions(html.WithUnsafe()),
		),
	}
}

// Render produces the HTML body for one email. When row is non-nil
// (personalized mode), placeholders are substituted from it; a missing
// or empty value is echoed back as an escaped literal rather than
// failing, since validation already filtered rows upstream. BCC mode
// passes a nil row and renders the raw template. The output is
// deterministic for identical inputs.
func (r *Renderer) Render(tmpl *Template, row recipients.Row, hasBanner bool) string {
	body := tmpl.Body

	if row != nil {
		body = placeholderPattern.ReplaceAllStringFunc(body, func(match string) string {
			name := match[1 : len(match)-1]
			value := row[name]
			if value == "" {
				return "&lt;" + name + "&gt;"
			}
			if isBareURL(value) {
				return anchorFor(value)
			}
			return value
		})
	}

	var processed string
	switch tmpl.Format {
	case FormatMarkdown:
		var buf bytes.Buffer
		if err := r.md.Convert([]byte(body), &buf); err != nil {
			// Conversion never fails on goldmark's default pipeline;
			// fall back to the plain treatment if it ever does.
			processed = strings.ReplaceAll(linkifyHTML(body), "\n", "<br />")
		} else {
			processed = linkifyHTML(buf.String())
		}
	case FormatHTML:
		processed = linkifyHTML(body)
	default:
		processed = strings.ReplaceAll(linkifyHTML(body), "\n", "<br />")
	}

	banner := ""
	if hasBanner {
		banner = `<img src="cid:` + BannerCID + `" alt="Banner" style="width:100%;max-width:600px;height:auto;display:block;margin:0 auto 16px auto;"/>`
	}

	return `<div style="font-family: Inter, sans-serif; color: #1a1a1a; line-height: 1.6;">` + banner + processed + `</div>`
}

func isBareURL(value string) bool {
	lower := strings.ToLower(value)
	return strings.HasPrefix(lower, "http://") ||
		strings.HasPrefix(lower, "https://") ||
		strings.HasPrefix(lower, "www.")
}

// anchorFor wraps a URL in a styled anchor, prefixing a scheme for
// www. addresses.
func anchorFor(url string) string {
	href := url
	if strings.HasPrefix(strings.ToLower(url), "www.") {
		href = "http://" + url
	}
	return `<a href="` + href + `" target="_blank" rel="noopener noreferrer" style="color: ` + brandColor + `; text-decoration: underline;">` + url + `</a>`
}

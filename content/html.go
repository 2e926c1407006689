package content

import (
	"bytes"
	"context"
	"html"
	"io"
	"net/url"
	"strconv"
	"strings"

	"github.com/a-h/templ"
	"github.com/microcosm-cc/bluemonday"
)

// inline sanitizes block text, which carries the editor's bold, italic, link
// and line-break markup. plain strips all markup for attributes.
var (
	inline = bluemonday.UGCPolicy()
	plain  = bluemonday.StrictPolicy()
)

// HTML returns a templ.Component that renders doc. Unknown blocks are
// skipped; they stay in the stored document.
func HTML(doc Document) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		var buf bytes.Buffer
		RenderHTML(&buf, doc)
		_, err := w.Write(buf.Bytes())
		return err
	})
}

// RenderHTML writes the HTML representation of doc to buf.
func RenderHTML(buf *bytes.Buffer, doc Document) {
	images := 0
	for _, b := range doc.Blocks {
		switch d := b.Data.(type) {
		case *Header:
			level := min(max(d.Level, 1), 6)
			tag := "h" + strconv.Itoa(level)
			buf.WriteString("<" + tag + ">")
			buf.WriteString(inline.Sanitize(d.Text))
			buf.WriteString("</" + tag + ">")
		case *Paragraph:
			text := strings.TrimSpace(d.Text)
			if text == "" || text == "<br>" {
				continue
			}
			buf.WriteString("<p>")
			buf.WriteString(inline.Sanitize(text))
			buf.WriteString("</p>")
		case *List:
			tag := "ul"
			if d.Style == ListOrdered {
				tag = "ol"
			}
			buf.WriteString("<" + tag + ">")
			for _, item := range d.Items {
				buf.WriteString("<li>")
				buf.WriteString(inline.Sanitize(item))
				buf.WriteString("</li>")
			}
			buf.WriteString("</" + tag + ">")
		case *Image:
			src := SafeURL(d.File.URL)
			if src == "" {
				continue
			}
			images++
			buf.WriteString("<figure>")
			if d.IsVideo() {
				buf.WriteString(`<video controls playsinline preload="metadata" src="` + src + `"`)
				if d.File.Mime != "" {
					buf.WriteString(` type="` + html.EscapeString(d.File.Mime) + `"`)
				}
				buf.WriteString(`></video>`)
			} else {
				loadAttr := `loading="lazy"`
				if images == 1 {
					loadAttr = `fetchpriority="high"`
				}
				alt := plain.Sanitize(d.Caption)
				buf.WriteString(`<img ` + loadAttr + ` alt="` + alt + `" src="` + src + `" decoding="async"/>`)
			}
			if caption := strings.TrimSpace(d.Caption); caption != "" {
				buf.WriteString("<figcaption>")
				buf.WriteString(inline.Sanitize(caption))
				buf.WriteString("</figcaption>")
			}
			buf.WriteString("</figure>")
		}
	}
}

// SafeURL validates a media URL for use in an HTML attribute. Only http,
// https and root-relative URLs are allowed.
func SafeURL(raw string) string {
	val := strings.TrimSpace(raw)
	if val == "" {
		return ""
	}
	if strings.HasPrefix(val, "/") && !strings.HasPrefix(val, "//") {
		return html.EscapeString(val)
	}
	parsed, err := url.Parse(val)
	if err != nil {
		return ""
	}
	switch strings.ToLower(parsed.Scheme) {
	case "http", "https":
		return html.EscapeString(val)
	default:
		return ""
	}
}

// Package views renders the public pages as templ components.
package views

import (
	"bytes"
	"context"
	"io"
	"net/url"
	"path"
	"strings"

	"github.com/a-h/templ"

	"github.com/aldomucciarone59-web/mute-magazine/article"
	"github.com/aldomucciarone59-web/mute-magazine/content"
	"github.com/aldomucciarone59-web/mute-magazine/media"
)

// Site carries the site-wide values every page needs.
type Site struct {
	Name string
	URL  string
}

// buildURL joins path segments onto a base URL, ensuring a trailing slash.
func buildURL(base string, pathSegments ...string) string {
	u, err := url.Parse(base)
	if err != nil {
		return base
	}
	u.Path = path.Join(u.Path, path.Join(pathSegments...))
	if len(pathSegments) > 0 && !strings.HasSuffix(u.Path, "/") {
		u.Path += "/"
	}
	return u.String()
}

func esc(s string) string { return templ.EscapeString(s) }

// layout wraps body in the page shell.
func layout(site Site, title, canonical string, body func(*bytes.Buffer)) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		var buf bytes.Buffer
		buf.WriteString(`<!DOCTYPE html><html lang="it"><head><meta charset="utf-8"/>`)
		buf.WriteString(`<meta name="viewport" content="width=device-width, initial-scale=1"/>`)
		buf.WriteString(`<title>` + esc(title) + `</title>`)
		if canonical != "" {
			buf.WriteString(`<link rel="canonical" href="` + esc(canonical) + `"/>`)
		}
		buf.WriteString(`</head><body><header><a href="/">` + esc(site.Name) + `</a></header><main>`)
		body(&buf)
		buf.WriteString(`</main></body></html>`)
		_, err := w.Write(buf.Bytes())
		return err
	})
}

// Article renders an article page: title block, cover and body.
func Article(site Site, a article.Article) templ.Component {
	title := a.Title
	if site.Name != "" {
		title += " | " + site.Name
	}
	canonical := buildURL(site.URL, "articoli", a.Category, a.ID)
	return layout(site, title, canonical, func(buf *bytes.Buffer) {
		buf.WriteString(`<article><p class="category">` + esc(article.CategoryLabel(a.Category)) + `</p>`)
		buf.WriteString(`<h1>` + esc(a.Title) + `</h1>`)
		if a.Subtitle != "" {
			buf.WriteString(`<p class="subtitle">` + esc(a.Subtitle) + `</p>`)
		}
		buf.WriteString(`<p class="byline">` + esc(a.Author))
		if a.Date != "" {
			buf.WriteString(` · <time datetime="` + esc(a.Date) + `">` + esc(a.Date) + `</time>`)
		}
		buf.WriteString(`</p>`)
		writeCover(buf, a.Cover, a.Title)
		buf.WriteString(`<div class="body">`)
		content.RenderHTML(buf, a.Content)
		buf.WriteString(`</div></article>`)
	})
}

func writeCover(buf *bytes.Buffer, cover, alt string) {
	src := content.SafeURL(cover)
	if src == "" {
		return
	}
	if ref, ok := media.ParseRef(cover); ok && ref.ResourceType == media.Video {
		buf.WriteString(`<video class="cover" autoplay muted loop playsinline src="` + src + `"></video>`)
		return
	}
	buf.WriteString(`<img class="cover" fetchpriority="high" alt="` + esc(alt) + `" src="` + src + `"/>`)
}

// NotFound renders the 404 page.
func NotFound(site Site) templ.Component {
	return layout(site, "Pagina non trovata", "", func(buf *bytes.Buffer) {
		buf.WriteString(`<h1>Pagina non trovata</h1><p><a href="/">Torna alla home</a></p>`)
	})
}

// ServerError renders the 500 page.
func ServerError(site Site) templ.Component {
	return layout(site, "Errore", "", func(buf *bytes.Buffer) {
		buf.WriteString(`<h1>Qualcosa è andato storto</h1><p>Riprova tra qualche minuto.</p>`)
	})
}

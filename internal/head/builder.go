// internal/head/builder.go
//
// The Builder collects everything that should appear inside a page’s
// <head> element.  It is scoped to a single render.  Page handlers push
// tags into the builder, then the theme layout decides where to emit each
// slice.
//
// Features
// --------
//   - SetTitle           – page title, rendered as "<page> | <site>".
//   - Description        – single meta description (last call wins).
//   - Meta, Link, Script – arbitrary pre-escaped tags, deduplicated.
//   - Render helpers     – methods that return template.HTML.
package head

import (
	"html/template"
	"strings"
	"sync"
)

// TurnstileScript loads the Cloudflare Turnstile widget.
const TurnstileScript = `<script src="https://challenges.cloudflare.com/turnstile/v0/api.js" async defer></script>`

// Builder is used by one goroutine per render; the mutex only guards
// against helpers that fan out.
type Builder struct {
	mu sync.Mutex

	site        string
	title       string
	description string

	metas   []string
	links   []string
	scripts []string

	seen map[string]struct{}
}

// New returns a Builder seeded with the charset and viewport tags.
func New(siteTitle string) *Builder {
	b := &Builder{site: siteTitle, seen: make(map[string]struct{})}
	b.Meta(`<meta charset="utf-8">`)
	b.Meta(`<meta name="viewport" content="width=device-width, initial-scale=1">`)
	return b
}

// ------------------------------------------------------------------
// Single-value helpers
// ------------------------------------------------------------------

// SetTitle sets the page part of the <title>.  The last caller wins.
func (b *Builder) SetTitle(t string) {
	b.mu.Lock()
	b.title = t
	b.mu.Unlock()
}

// Description sets the meta description.  The last caller wins.
func (b *Builder) Description(d string) {
	b.mu.Lock()
	b.description = d
	b.mu.Unlock()
}

// TitleText returns the composed title without markup.
func (b *Builder) TitleText() string {
	switch {
	case b.title == "":
		return b.site
	case b.site == "" || b.title == b.site:
		return b.title
	default:
		return b.title + " | " + b.site
	}
}

// Title returns a fully formed <title> tag or an empty string.
func (b *Builder) Title() template.HTML {
	t := b.TitleText()
	if t == "" {
		return ""
	}
	return template.HTML("<title>" + template.HTMLEscapeString(t) + "</title>")
}

// ------------------------------------------------------------------
// Slice helpers with deduplication
// ------------------------------------------------------------------

func (b *Builder) Meta(tag string)   { b.add("meta:"+tag, &b.metas, tag) }
func (b *Builder) Link(tag string)   { b.add("link:"+tag, &b.links, tag) }
func (b *Builder) Script(tag string) { b.add("script:"+tag, &b.scripts, tag) }

func (b *Builder) add(key string, tgt *[]string, tag string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if _, dup := b.seen[key]; dup {
		return
	}
	b.seen[key] = struct{}{}
	*tgt = append(*tgt, tag)
}

// ------------------------------------------------------------------
// Rendering helpers called from theme templates
// ------------------------------------------------------------------

// Metas returns the seeded metas plus the description, if any.
func (b *Builder) Metas() template.HTML {
	out := concat(b.metas)
	if b.description != "" {
		out += template.HTML(`<meta name="description" content="` +
			template.HTMLEscapeString(b.description) + `">`)
	}
	return out
}

func (b *Builder) Links() template.HTML   { return concat(b.links) }
func (b *Builder) Scripts() template.HTML { return concat(b.scripts) }

// concat joins pre-escaped tags without a separator.
func concat(sl []string) template.HTML {
	return template.HTML(strings.Join(sl, ""))
}

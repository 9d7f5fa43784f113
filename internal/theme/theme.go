// Package theme holds the data structures that describe one visual theme.
// A Theme combines:
//
//   - Name       – the theme directory name (for example, “default”).
//   - Root       – absolute path to that directory on disk.
//   - pages      – one template set per page, each a clone of the layout
//     with the page's {{ define "content" }} parsed on top.
//   - AssetFunc  – helper injected into templates so they can resolve
//     `{{ asset "css/site.css" }}` to a URL.
//
// Assets are served from /themes/<name>/assets/ by the site component.
package theme

import (
	"bytes"
	"fmt"
	"html/template"
	"io"
	"path/filepath"
	"sort"
)

// LayoutTemplate is the root template every page executes.
const LayoutTemplate = "layout"

// Theme is returned by the Manager once all templates are parsed.
type Theme struct {
	Name        string
	Root        string
	AssetPrefix string
	AssetFunc   func(string) string

	pages map[string]*template.Template
}

// New constructs a Theme with an AssetFunc that points to the assets folder.
func New(name, root string) *Theme {
	prefix := filepath.ToSlash("/themes/" + name + "/assets/")
	return &Theme{
		Name:        name,
		Root:        root,
		AssetPrefix: prefix,
		AssetFunc:   func(p string) string { return prefix + p },
		pages:       map[string]*template.Template{},
	}
}

// AssetsDir is the on-disk directory behind AssetPrefix.
func (t *Theme) AssetsDir() string { return filepath.Join(t.Root, "assets") }

// Has reports whether page was loaded.
func (t *Theme) Has(page string) bool {
	_, ok := t.pages[page]
	return ok
}

// Pages lists loaded page names in order.
func (t *Theme) Pages() []string {
	out := make([]string, 0, len(t.pages))
	for name := range t.pages {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

// Bytes executes page and returns the rendered document.
func (t *Theme) Bytes(page string, data any) ([]byte, error) {
	set, ok := t.pages[page]
	if !ok {
		return nil, fmt.Errorf("theme %s: no page %q", t.Name, page)
	}
	var buf bytes.Buffer
	if err := set.ExecuteTemplate(&buf, LayoutTemplate, data); err != nil {
		return nil, fmt.Errorf("render %s: %w", page, err)
	}
	return buf.Bytes(), nil
}

// Render executes page into w.  Output is buffered so a template error
// never leaves a half-written response.
func (t *Theme) Render(w io.Writer, page string, data any) error {
	out, err := t.Bytes(page, data)
	if err != nil {
		return err
	}
	_, err = w.Write(out)
	return err
}

package theme

import (
	"fmt"
	"html/template"
	"os"
	"path/filepath"
	"strings"
)

// Manager discovers and loads themes.
type Manager struct {
	BaseDir string // e.g., "themes" (relative) or "/srv/soundhouse/themes"
}

// Load parses one theme.  Expected layout:
//
//	themes/<name>/templates/layout.html     {{ define "layout" }} … {{ template "content" . }}
//	themes/<name>/templates/partials/*.html shared {{ define }} blocks
//	themes/<name>/templates/pages/*.html    one {{ define "content" }} per page
//	themes/<name>/assets/…                  static files
//
// Every page is parsed into its own clone of layout + partials so pages
// may reuse block names without clobbering each other.
func (m *Manager) Load(name string) (*Theme, error) {
	root := filepath.Join(m.BaseDir, name)
	if info, err := os.Stat(root); err != nil || !info.IsDir() {
		return nil, fmt.Errorf("theme %s not found at %s", name, root)
	}
	th := New(name, root)
	tplDir := filepath.Join(root, "templates")

	base := template.New("").Funcs(FuncMap(th.AssetFunc))
	if _, err := base.ParseFiles(filepath.Join(tplDir, "layout.html")); err != nil {
		return nil, fmt.Errorf("parse layout: %w", err)
	}
	if files, _ := CollectHTML(filepath.Join(tplDir, "partials")); len(files) > 0 {
		if _, err := base.ParseFiles(files...); err != nil {
			return nil, fmt.Errorf("parse partials: %w", err)
		}
	}
	if base.Lookup(LayoutTemplate) == nil {
		return nil, fmt.Errorf("theme %s: layout.html must define %q", name, LayoutTemplate)
	}

	pages, err := CollectHTML(filepath.Join(tplDir, "pages"))
	if err != nil {
		return nil, fmt.Errorf("list pages: %w", err)
	}
	for _, file := range pages {
		page := strings.TrimSuffix(filepath.Base(file), filepath.Ext(file))
		set, err := base.Clone()
		if err != nil {
			return nil, fmt.Errorf("clone layout for %s: %w", page, err)
		}
		if _, err := set.ParseFiles(file); err != nil {
			return nil, fmt.Errorf("parse page %s: %w", page, err)
		}
		th.pages[page] = set
	}
	if len(th.pages) == 0 {
		return nil, fmt.Errorf("theme %s has no pages", name)
	}
	return th, nil
}

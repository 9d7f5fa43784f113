//
//  internal/theme/helper.go
//
//  Template functions shared by every theme.  Short names keep page
//  markup readable.
//

package theme

import (
	"html/template"
	"strings"
	"time"
)

// FuncMap returns the global template function map.  asset resolves a
// theme-relative path to its public URL.
func FuncMap(asset func(string) string) template.FuncMap {
	return template.FuncMap{
		"asset": asset,
		"join":  strings.Join,
		"year":  func() int { return time.Now().Year() },
		"dict":  dict,
		"add":   func(a, b int) int { return a + b },
	}
}

// dict builds a map in templates: {{ dict "k" 1 "k2" "v" }}.
func dict(kv ...any) map[string]any {
	m := make(map[string]any, len(kv)/2)
	for i := 0; i+1 < len(kv); i += 2 {
		key, _ := kv[i].(string)
		m[key] = kv[i+1]
	}
	return m
}

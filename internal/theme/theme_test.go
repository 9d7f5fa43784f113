package theme

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeTheme(t *testing.T, files map[string]string) string {
	t.Helper()
	base := t.TempDir()
	for name, body := range files {
		p := filepath.Join(base, "demo", "templates", name)
		require.NoError(t, os.MkdirAll(filepath.Dir(p), 0o755))
		require.NoError(t, os.WriteFile(p, []byte(body), 0o644))
	}
	return base
}

func TestLoad_PagesDoNotClobberEachOther(t *testing.T) {
	base := writeTheme(t, map[string]string{
		"layout.html":       `{{ define "layout" }}[{{ template "brand" . }}|{{ template "content" . }}]{{ end }}`,
		"partials/top.html": `{{ define "brand" }}{{ .Name }}{{ end }}`,
		"pages/a.html":      `{{ define "content" }}A {{ asset "x.css" }}{{ end }}`,
		"pages/b.html":      `{{ define "content" }}B {{ add 1 2 }}{{ end }}`,
	})

	mgr := Manager{BaseDir: base}
	th, err := mgr.Load("demo")
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b"}, th.Pages())
	assert.True(t, th.Has("a"))
	assert.False(t, th.Has("c"))

	data := map[string]string{"Name": "S"}
	out, err := th.Bytes("a", data)
	require.NoError(t, err)
	assert.Equal(t, "[S|A /themes/demo/assets/x.css]", string(out))

	out, err = th.Bytes("b", data)
	require.NoError(t, err)
	assert.Equal(t, "[S|B 3]", string(out))

	_, err = th.Bytes("c", data)
	assert.Error(t, err)
}

func TestLoad_Errors(t *testing.T) {
	mgr := Manager{BaseDir: t.TempDir()}
	_, err := mgr.Load("missing")
	assert.Error(t, err)

	noLayout := writeTheme(t, map[string]string{
		"layout.html":  `{{ define "other" }}{{ end }}`,
		"pages/a.html": `{{ define "content" }}{{ end }}`,
	})
	mgr = Manager{BaseDir: noLayout}
	_, err = mgr.Load("demo")
	assert.ErrorContains(t, err, "layout")

	noPages := writeTheme(t, map[string]string{
		"layout.html": `{{ define "layout" }}{{ end }}`,
	})
	mgr = Manager{BaseDir: noPages}
	_, err = mgr.Load("demo")
	assert.ErrorContains(t, err, "no pages")
}

func TestDefaultThemeLoads(t *testing.T) {
	mgr := Manager{BaseDir: "../../themes"}
	th, err := mgr.Load("default")
	require.NoError(t, err)
	assert.Equal(t, []string{
		"about", "artist", "artists", "contact", "error", "gallery", "home", "notfound",
	}, th.Pages())
	assert.Equal(t, "/themes/default/assets/", th.AssetPrefix)
}

func TestCollectHTML_MissingDir(t *testing.T) {
	files, err := CollectHTML(filepath.Join(t.TempDir(), "nope"))
	assert.NoError(t, err)
	assert.Nil(t, files)
}

func TestDict(t *testing.T) {
	assert.Equal(t, map[string]any{"a": 1, "b": "x"}, dict("a", 1, "b", "x", "dangling"))
}

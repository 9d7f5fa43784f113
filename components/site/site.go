// components/site/site.go
//
// Site pages component.
//
// Routes
// ------
//   GET /                 home
//   GET /about            who we are
//   GET /gallery          every manifest image
//   GET /artists          artist grid
//   GET /artist/{slug}    artist detail with related images
//   GET /contact          booking form
//   GET /sitemap.xml      five top-level pages under site.base_url
//   GET /themes/<name>/assets/*   theme assets
//   anything else         file under public_dir, else the themed 404
//
// Every page reads content on each request, so editors see YAML and
// manifest changes immediately.

package site

import (
	"errors"
	"net/http"
	"path"

	"github.com/go-chi/chi/v5"

	"github.com/yanizio/soundhouse/internal/component"
	"github.com/yanizio/soundhouse/internal/config"
	"github.com/yanizio/soundhouse/internal/content"
	"github.com/yanizio/soundhouse/internal/head"
	"github.com/yanizio/soundhouse/internal/logger"
	"github.com/yanizio/soundhouse/internal/theme"
)

// Motto is shown on the home and about pages.
const Motto = "United by sound, lifted by the rhythm"

// NavLink is one entry of the navigation bar.
type NavLink struct {
	Name string
	Href string
}

// Nav is the menu shown on every page.
var Nav = []NavLink{
	{"Home", "/"},
	{"Who we are", "/about"},
	{"Gallery", "/gallery"},
	{"Artists", "/artists"},
	{"Contact us", "/contact"},
}

// Page is the root value every template receives.
type Page struct {
	Head  *head.Builder
	Nav   []NavLink
	Path  string
	Site  config.Site
	Motto string
	Data  any
}

// Component implements component.Component.
type Component struct {
	cfg     *config.Config
	content *content.Store
	theme   *theme.Theme
	public  http.FileSystem
}

func init() { component.Register(&Component{}) }

// Name implements component.Component.
func (c *Component) Name() string { return "site" }

// Init implements component.Component.
func (c *Component) Init(d component.Deps) error {
	switch {
	case d.Config == nil:
		return errors.New("site: config is required")
	case d.Content == nil:
		return errors.New("site: content store is required")
	case d.Theme == nil:
		return errors.New("site: theme is required")
	}
	c.cfg = d.Config
	c.content = d.Content
	c.theme = d.Theme
	c.public = http.Dir(d.Config.Site.PublicDir)
	return nil
}

// Routes implements component.Component.
func (c *Component) Routes(r chi.Router) {
	r.Get("/", c.home)
	r.Get("/about", c.about)
	r.Get("/gallery", c.gallery)
	r.Get("/artists", c.artists)
	r.Get("/artist/{slug}", c.artist)
	r.Get("/contact", c.contact)
	r.Get("/sitemap.xml", c.sitemap)

	assets := http.StripPrefix(c.theme.AssetPrefix, http.FileServer(http.Dir(c.theme.AssetsDir())))
	r.Handle(c.theme.AssetPrefix+"*", assets)

	r.NotFound(c.static)
}

//
// rendering
//

// newPage seeds the head builder shared by every page.
func (c *Component) newPage(r *http.Request, title string, data any) *Page {
	h := head.New(c.cfg.Site.Title)
	h.SetTitle(title)
	h.Link(`<link rel="icon" href="/favicon.ico">`)
	h.Link(`<link rel="stylesheet" href="` + c.theme.AssetFunc("css/site.css") + `">`)
	return &Page{
		Head:  h,
		Nav:   Nav,
		Path:  r.URL.Path,
		Site:  c.cfg.Site,
		Motto: Motto,
		Data:  data,
	}
}

func (c *Component) render(w http.ResponseWriter, r *http.Request, status int, page string, p *Page) {
	html, err := c.theme.Bytes(page, p)
	if err != nil {
		logger.FromContext(r.Context()).Errorw("render failed", "page", page, "err", err)
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	_, _ = w.Write(html)
}

func (c *Component) serverError(w http.ResponseWriter, r *http.Request, err error) {
	logger.FromContext(r.Context()).Errorw("page failed", "path", r.URL.Path, "err", err)
	c.render(w, r, http.StatusInternalServerError, "error",
		c.newPage(r, "Something went wrong", nil))
}

func (c *Component) notFound(w http.ResponseWriter, r *http.Request, msg string) {
	c.render(w, r, http.StatusNotFound, "notfound",
		c.newPage(r, "Not found", map[string]string{"Message": msg}))
}

// static serves a file from the public directory, or the themed 404.
// Directories are never listed.
func (c *Component) static(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet && r.Method != http.MethodHead {
		c.notFound(w, r, "Page not found")
		return
	}
	name := path.Clean("/" + r.URL.Path)
	f, err := c.public.Open(name)
	if err != nil {
		c.notFound(w, r, "Page not found")
		return
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil || info.IsDir() {
		c.notFound(w, r, "Page not found")
		return
	}
	http.ServeContent(w, r, info.Name(), info.ModTime(), f)
}

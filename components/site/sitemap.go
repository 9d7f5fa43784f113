package site

import (
	"encoding/xml"
	"net/http"
	"strings"
	"time"
)

// SitemapPaths are the top-level pages listed in /sitemap.xml.
var SitemapPaths = []string{"/", "/about", "/gallery", "/artists", "/contact"}

type urlset struct {
	XMLName xml.Name     `xml:"urlset"`
	Xmlns   string       `xml:"xmlns,attr"`
	URLs    []sitemapURL `xml:"url"`
}

type sitemapURL struct {
	Loc     string `xml:"loc"`
	LastMod string `xml:"lastmod"`
}

// buildSitemap lists SitemapPaths under baseURL, stamped with now.
func buildSitemap(baseURL string, now time.Time) urlset {
	base := strings.TrimRight(baseURL, "/")
	set := urlset{Xmlns: "http://www.sitemaps.org/schemas/sitemap/0.9"}
	for _, p := range SitemapPaths {
		set.URLs = append(set.URLs, sitemapURL{
			Loc:     base + p,
			LastMod: now.UTC().Format(time.RFC3339),
		})
	}
	return set
}

func (c *Component) sitemap(w http.ResponseWriter, r *http.Request) {
	out, err := xml.MarshalIndent(buildSitemap(c.cfg.Site.BaseURL, time.Now()), "", "  ")
	if err != nil {
		c.serverError(w, r, err)
		return
	}
	w.Header().Set("Content-Type", "application/xml; charset=utf-8")
	_, _ = w.Write([]byte(xml.Header))
	_, _ = w.Write(out)
}

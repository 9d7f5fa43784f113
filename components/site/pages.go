package site

import (
	"context"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/yanizio/soundhouse/internal/contact"
	"github.com/yanizio/soundhouse/internal/content"
	"github.com/yanizio/soundhouse/internal/head"
)

// Highlight is one card of the artist page's highlights section.
type Highlight struct {
	Title       string
	Description string
}

// Highlights are the same for every artist.
var Highlights = []Highlight{
	{"Top Achievement", "Performed in international music festivals and collaborated with top DJs."},
	{"Style & Influence", "Influenced by electronic, house, and progressive music genres."},
	{"Fan Base", "Millions of followers on social media worldwide."},
	{"Upcoming Events", "Check out their latest concerts and live performances."},
	{"Discography", "Released multiple singles and albums globally recognized."},
}

// NoQuote stands in for an artist without a quote.
const NoQuote = "No quote available"

// ArtistView is the data of the artist page.
type ArtistView struct {
	Artist     content.Artist
	Quote      string
	Images     []string
	Highlights []Highlight
}

// ContactView is the data of the contact page.
type ContactView struct {
	Suggestions []string
	DialCodes   []contact.DialCode
	SiteKey     string
}

func (c *Component) home(w http.ResponseWriter, r *http.Request) {
	c.render(w, r, http.StatusOK, "home", c.newPage(r, "", nil))
}

func (c *Component) about(w http.ResponseWriter, r *http.Request) {
	p := c.newPage(r, "Who we are", nil)
	p.Head.Description("Who we are: a label and booking agency for electronic artists.")
	c.render(w, r, http.StatusOK, "about", p)
}

func (c *Component) gallery(w http.ResponseWriter, r *http.Request) {
	images, err := c.content.Images(r.Context())
	if err != nil {
		c.serverError(w, r, err)
		return
	}
	c.render(w, r, http.StatusOK, "gallery", c.newPage(r, "Gallery", images))
}

func (c *Component) artists(w http.ResponseWriter, r *http.Request) {
	artists, err := c.content.Artists(r.Context())
	if err != nil {
		c.serverError(w, r, err)
		return
	}
	c.render(w, r, http.StatusOK, "artists", c.newPage(r, "Artists", artists))
}

func (c *Component) artist(w http.ResponseWriter, r *http.Request) {
	prof, err := c.content.Profile(r.Context(), chi.URLParam(r, "slug"))
	switch {
	case errors.Is(err, content.ErrArtistNotFound):
		c.notFound(w, r, "Artist not found")
		return
	case errors.Is(err, context.Canceled):
		return
	case err != nil:
		c.serverError(w, r, err)
		return
	}

	quote := prof.Artist.Quote
	if quote == "" {
		quote = NoQuote
	}
	p := c.newPage(r, prof.Artist.Name, ArtistView{
		Artist:     prof.Artist,
		Quote:      quote,
		Images:     prof.Images,
		Highlights: Highlights,
	})
	if prof.Artist.Description != "" {
		p.Head.Description(prof.Artist.Description)
	}
	c.render(w, r, http.StatusOK, "artist", p)
}

func (c *Component) contact(w http.ResponseWriter, r *http.Request) {
	sugg, err := c.content.Suggestions(r.Context())
	if err != nil {
		c.serverError(w, r, err)
		return
	}
	p := c.newPage(r, "Contact us", ContactView{
		Suggestions: sugg,
		DialCodes:   contact.DialCodes,
		SiteKey:     c.cfg.Contact.TurnstileSiteKey,
	})
	p.Head.Script(head.TurnstileScript)
	p.Head.Script(`<script src="` + c.theme.AssetFunc("js/contact.js") + `" defer></script>`)
	c.render(w, r, http.StatusOK, "contact", p)
}

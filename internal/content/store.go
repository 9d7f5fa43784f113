// internal/content/store.go
//
// Soundhouse – file-based content: artist records and the image manifest.
//
// Context
//   Editors drop one YAML file per artist into <data_dir>/artists and list
//   gallery images in <data_dir>/metadata.json.  Pages read both on every
//   render, so an edit shows up on the next request without a restart.
//
//   Store collapses identical concurrent loads with singleflight.  Nothing
//   is kept between calls.
//
// Layout
//   data/
//     artists/<slug>.yaml   name, artist-tag, profile-url, Genre, Description, Quote
//     metadata.json         [{"file": "a.jpg", "tags": ["tag1", "tag2"]}, …]
//
//------------------------------------------------------------------------------

package content

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"regexp"
	"slices"
	"strings"

	"github.com/go-playground/validator/v10"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"
	"gopkg.in/yaml.v3"

	"github.com/yanizio/soundhouse/internal/logger"
	"github.com/yanizio/soundhouse/internal/metrics"
)

// ErrArtistNotFound is returned for unknown or unsafe slugs.
var ErrArtistNotFound = errors.New("artist not found")

// GalleryPrefix is the public URL prefix for manifest images.
const GalleryPrefix = "/gallery/"

// Artist is one record from data/artists.
type Artist struct {
	Slug        string `yaml:"-"`
	Name        string `yaml:"name" validate:"required"`
	Tag         string `yaml:"artist-tag"`
	ProfileURL  string `yaml:"profile-url"`
	Genre       string `yaml:"Genre"`
	Description string `yaml:"Description"`
	Quote       string `yaml:"Quote"`
}

// Image is one manifest entry.
type Image struct {
	File string   `json:"file" validate:"required"`
	Tags []string `json:"tags"`
}

// URL returns the public gallery path of the image.
func (i Image) URL() string { return GalleryPrefix + i.File }

// HasTag reports whether tag is one of the image's tags.
func (i Image) HasTag(tag string) bool { return slices.Contains(i.Tags, tag) }

// Profile is everything the artist page needs.
type Profile struct {
	Artist Artist
	Images []string // gallery URLs tagged with the artist tag
}

var slugRE = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9_-]*$`)

// Store reads content from a data directory.
type Store struct {
	dir      string
	sfg      singleflight.Group
	validate *validator.Validate
}

// New returns a Store rooted at dataDir.
func New(dataDir string) *Store {
	return &Store{dir: dataDir, validate: validator.New()}
}

// Dir returns the data directory.
func (s *Store) Dir() string { return s.dir }

func (s *Store) artistsDir() string   { return filepath.Join(s.dir, "artists") }
func (s *Store) manifestPath() string { return filepath.Join(s.dir, "metadata.json") }

/*──────────────────────────── artists ──────────────────────────────────────*/

// Artists returns every record ordered by file name.  A missing artists
// directory yields an empty list.
func (s *Store) Artists(ctx context.Context) ([]Artist, error) {
	v, err := s.do(ctx, "artists", func() (any, error) { return s.readArtists(ctx) })
	if err != nil {
		s.loadFailed(ctx, "artists", err)
		return nil, err
	}
	return slices.Clone(v.([]Artist)), nil
}

// Artist returns the record stored under slug.
func (s *Store) Artist(ctx context.Context, slug string) (Artist, error) {
	if !slugRE.MatchString(slug) {
		return Artist{}, ErrArtistNotFound
	}
	v, err := s.do(ctx, "artist:"+slug, func() (any, error) { return s.readArtist(slug) })
	if err != nil {
		if !errors.Is(err, ErrArtistNotFound) {
			s.loadFailed(ctx, "artists", err)
		}
		return Artist{}, err
	}
	return v.(Artist), nil
}

// readArtists lists records whose file name is a valid slug.  Other files
// are skipped so the grid never links to a page that 404s.
func (s *Store) readArtists(ctx context.Context) ([]Artist, error) {
	entries, err := os.ReadDir(s.artistsDir())
	if errors.Is(err, fs.ErrNotExist) {
		return []Artist{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read artists dir: %w", err)
	}

	out := make([]Artist, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".yaml") {
			continue
		}
		slug := strings.TrimSuffix(e.Name(), ".yaml")
		if !slugRE.MatchString(slug) {
			logger.FromContext(ctx).Warnw("artist file skipped: name is not a valid slug", "file", e.Name())
			continue
		}
		a, err := s.readArtist(slug)
		if err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, nil
}

func (s *Store) readArtist(slug string) (Artist, error) {
	path := filepath.Join(s.artistsDir(), slug+".yaml")
	raw, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return Artist{}, ErrArtistNotFound
	}
	if err != nil {
		return Artist{}, fmt.Errorf("read %s: %w", path, err)
	}

	var a Artist
	if err := yaml.Unmarshal(raw, &a); err != nil {
		return Artist{}, fmt.Errorf("parse %s: %w", path, err)
	}
	if err := s.validate.Struct(a); err != nil {
		return Artist{}, fmt.Errorf("invalid %s: %w", path, err)
	}
	a.Slug = slug
	return a, nil
}

/*──────────────────────────── manifest ─────────────────────────────────────*/

// Images returns every manifest entry in file order.  A missing manifest
// yields an empty gallery.
func (s *Store) Images(ctx context.Context) ([]Image, error) {
	v, err := s.do(ctx, "manifest", func() (any, error) { return s.readManifest() })
	if err != nil {
		s.loadFailed(ctx, "manifest", err)
		return nil, err
	}
	return slices.Clone(v.([]Image)), nil
}

// RelatedImages returns gallery URLs of images tagged with a's tag.  An
// artist without a tag has no related images.
func (s *Store) RelatedImages(ctx context.Context, a Artist) ([]string, error) {
	images, err := s.Images(ctx)
	if err != nil {
		return nil, err
	}
	return related(images, a.Tag), nil
}

func related(images []Image, tag string) []string {
	out := []string{}
	if tag == "" {
		return out
	}
	for _, img := range images {
		if img.HasTag(tag) {
			out = append(out, img.URL())
		}
	}
	return out
}

func (s *Store) readManifest() ([]Image, error) {
	raw, err := os.ReadFile(s.manifestPath())
	if errors.Is(err, fs.ErrNotExist) {
		return []Image{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read manifest: %w", err)
	}

	var images []Image
	if err := json.Unmarshal(raw, &images); err != nil {
		return nil, fmt.Errorf("parse manifest: %w", err)
	}
	for i := range images {
		if err := s.validate.Struct(images[i]); err != nil {
			return nil, fmt.Errorf("manifest entry %d: %w", i, err)
		}
	}
	if images == nil {
		images = []Image{}
	}
	return images, nil
}

/*──────────────────────────── composites ───────────────────────────────────*/

// Profile loads the artist record and the manifest concurrently.
func (s *Store) Profile(ctx context.Context, slug string) (*Profile, error) {
	var (
		a      Artist
		images []Image
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		a, err = s.Artist(gctx, slug)
		return err
	})
	g.Go(func() (err error) {
		images, err = s.Images(gctx)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return &Profile{Artist: a, Images: related(images, a.Tag)}, nil
}

// Suggestions returns each artist's name then tag, de-duplicated in
// first-seen order.  The contact form offers these as completions.
func (s *Store) Suggestions(ctx context.Context) ([]string, error) {
	artists, err := s.Artists(ctx)
	if err != nil {
		return nil, err
	}

	seen := make(map[string]struct{}, len(artists)*2)
	out := make([]string, 0, len(artists)*2)
	add := func(v string) {
		if v == "" {
			return
		}
		if _, dup := seen[v]; dup {
			return
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	for _, a := range artists {
		add(a.Name)
		add(a.Tag)
	}
	return out, nil
}

/*──────────────────────────── helpers ──────────────────────────────────────*/

// do runs fn once per key across concurrent callers and honours ctx.
func (s *Store) do(ctx context.Context, key string, fn func() (any, error)) (any, error) {
	ch := s.sfg.DoChan(key, fn)
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case r := <-ch:
		return r.Val, r.Err
	}
}

func (s *Store) loadFailed(ctx context.Context, source string, err error) {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return
	}
	metrics.ContentLoadErrors.WithLabelValues(source).Inc()
	logger.FromContext(ctx).Errorw("content load failed", "source", source, "err", err)
}

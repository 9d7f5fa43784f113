package middleware

import (
	"net/http"
	"strings"
)

// ImmutableCacheControl is sent for long-lived static assets.
const ImmutableCacheControl = "public, max-age=31536000, immutable"

// CacheImmutable marks successful responses under any of prefixes as
// cacheable for a year.  Gallery and artist images never change name once
// published; a 404 for a file not yet uploaded stays uncached.
func CacheImmutable(prefixes ...string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			for _, p := range prefixes {
				if strings.HasPrefix(r.URL.Path, p) {
					next.ServeHTTP(&cacheOnSuccess{ResponseWriter: w}, r)
					return
				}
			}
			next.ServeHTTP(w, r)
		})
	}
}

// cacheOnSuccess adds ImmutableCacheControl when the status is 2xx or 304.
type cacheOnSuccess struct {
	http.ResponseWriter
	wroteHeader bool
}

func (c *cacheOnSuccess) WriteHeader(code int) {
	if !c.wroteHeader {
		c.wroteHeader = true
		if (code >= 200 && code < 300) || code == http.StatusNotModified {
			c.Header().Set("Cache-Control", ImmutableCacheControl)
		}
	}
	c.ResponseWriter.WriteHeader(code)
}

func (c *cacheOnSuccess) Write(b []byte) (int, error) {
	if !c.wroteHeader {
		c.WriteHeader(http.StatusOK)
	}
	return c.ResponseWriter.Write(b)
}

// Unwrap exposes the underlying writer to http.ResponseController.
func (c *cacheOnSuccess) Unwrap() http.ResponseWriter { return c.ResponseWriter }

// internal/requestinfo/middleware.go
//
// HTTP middleware that enriches each request with *RequestInfo.
//
/*
Context
--------
This handler sits right after the request logger.  For every request it:

  1. Takes the client address from `r.RemoteAddr` (rewritten by
     middleware.RealIP behind a trusted proxy) and keeps the first
     X-Forwarded-For entry separately for the bot check.
  2. Parses the User-Agent header and Accept-Language list.
  3. Performs a GeoLite2 lookup when a database was opened.
  4. Stores a `*RequestInfo` value in the request context, so handlers
     can log who submitted a form without reparsing headers.

Instrumentation
---------------
At debug level each invocation logs the address, country, browser,
device class, and bot flag.
*/
package requestinfo

import (
	"net/http"
	"time"

	"github.com/yanizio/soundhouse/internal/logger"
)

/*──────────────────────────── middleware ───────────────────────────────────*/

// Enrich wraps an http.Handler, attaches *RequestInfo, and forwards.
func Enrich(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		info := Collect(r)

		logger.FromContext(r.Context()).Debugw("request info", info.LogFields()...)

		next.ServeHTTP(w, r.WithContext(NewContext(r.Context(), info)))
	})
}

// Collect builds a RequestInfo for r without touching its context.
func Collect(r *http.Request) *RequestInfo {
	ip := ClientIP(r)
	return &RequestInfo{
		IP:        ip,
		Forwarded: ForwardedFor(r),
		UA:        parseUA(r.UserAgent(), r.Header.Get("Accept-Language")),
		Geo:       lookupGeo(ip),
		Timestamp: time.Now().UTC(),
	}
}

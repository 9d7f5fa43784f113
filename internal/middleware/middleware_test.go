package middleware

import (
	"context"
	"crypto/tls"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/yanizio/soundhouse/internal/logger"
	"github.com/yanizio/soundhouse/internal/metrics"
)

var okHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
	_, _ = w.Write([]byte("ok"))
})

/*──────────────────────────── https ────────────────────────────────────────*/

func TestForceHTTPS(t *testing.T) {
	h := ForceHTTPS(true)(okHandler)

	r := httptest.NewRequest(http.MethodGet, "http://example.com/artists?x=1", nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, r)
	assert.Equal(t, http.StatusPermanentRedirect, rec.Code)
	assert.Equal(t, "https://example.com/artists?x=1", rec.Header().Get("Location"))

	for _, mutate := range []func(*http.Request){
		func(r *http.Request) { r.Host = "localhost:8080" },
		func(r *http.Request) { r.Host = "127.0.0.1:8080" },
		func(r *http.Request) { r.Header.Set("X-Forwarded-Proto", "https") },
		func(r *http.Request) { r.TLS = &tls.ConnectionState{} },
	} {
		r := httptest.NewRequest(http.MethodGet, "http://example.com/", nil)
		mutate(r)
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, r)
		assert.Equal(t, http.StatusOK, rec.Code)
	}

	rec = httptest.NewRecorder()
	ForceHTTPS(false)(okHandler).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "http://example.com/", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestStripPort(t *testing.T) {
	assert.Equal(t, "example.com", stripPort("example.com:443"))
	assert.Equal(t, "example.com", stripPort("example.com"))
	assert.Equal(t, "::1", stripPort("[::1]:8080"))
}

/*──────────────────────────── security / cache / cors ─────────────────────*/

func TestSecurityHeaders(t *testing.T) {
	rec := httptest.NewRecorder()
	Security(okHandler).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	h := rec.Header()
	assert.Contains(t, h.Get("Content-Security-Policy"), "https://challenges.cloudflare.com")
	assert.Equal(t, "DENY", h.Get("X-Frame-Options"))
	assert.Equal(t, "nosniff", h.Get("X-Content-Type-Options"))
	assert.NotEmpty(t, h.Get("Strict-Transport-Security"))
	assert.NotEmpty(t, h.Get("Referrer-Policy"))
	assert.NotEmpty(t, h.Get("Permissions-Policy"))
}

func TestCacheImmutable(t *testing.T) {
	h := CacheImmutable("/gallery/", "/artists/")(okHandler)

	for path, want := range map[string]string{
		"/gallery/a.jpg":   ImmutableCacheControl,
		"/artists/dj.webp": ImmutableCacheControl,
		"/artists":         "",
		"/contact":         "",
	} {
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
		assert.Equal(t, want, rec.Header().Get("Cache-Control"), path)
	}
}

func TestCacheImmutable_SkipsErrors(t *testing.T) {
	h := CacheImmutable("/gallery/")(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/gallery/new.jpg":
			http.NotFound(w, r)
		case "/gallery/same.jpg":
			w.WriteHeader(http.StatusNotModified)
		default:
			w.WriteHeader(http.StatusOK)
		}
	}))

	for path, want := range map[string]string{
		"/gallery/new.jpg":  "",
		"/gallery/same.jpg": ImmutableCacheControl,
		"/gallery/a.jpg":    ImmutableCacheControl,
	} {
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
		assert.Equal(t, want, rec.Header().Get("Cache-Control"), path)
	}
}

func TestCORS(t *testing.T) {
	h := CORS([]string{"https://label.example"})(okHandler)

	r := httptest.NewRequest(http.MethodOptions, "/api/contact", nil)
	r.Header.Set("Origin", "https://label.example")
	r.Header.Set("Access-Control-Request-Method", "POST")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, r)
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, "https://label.example", rec.Header().Get("Access-Control-Allow-Origin"))

	r = httptest.NewRequest(http.MethodPost, "/api/contact", nil)
	r.Header.Set("Origin", "https://evil.example")
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, r)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, rec.Header().Get("Access-Control-Allow-Origin"))
}

/*──────────────────────────── request logger ───────────────────────────────*/

func TestRequestLogger(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	base := zap.New(core).Sugar()

	var ctxLogger *zap.SugaredLogger
	h := RequestLogger(base)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctxLogger = logger.FromContext(r.Context())
		w.WriteHeader(http.StatusTeapot)
	}))

	before := testutil.ToFloat64(metrics.HTTPRequests.WithLabelValues("418"))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/about", nil))

	id := rec.Header().Get(RequestIDHeader)
	assert.Len(t, id, 36)
	require.NotNil(t, ctxLogger)
	assert.Equal(t, before+1, testutil.ToFloat64(metrics.HTTPRequests.WithLabelValues("418")))

	entries := logs.FilterMessage("http request").All()
	require.Len(t, entries, 1)
	fields := entries[0].ContextMap()
	assert.Equal(t, id, fields["request_id"])
	assert.Equal(t, "/about", fields["path"])
	assert.EqualValues(t, http.StatusTeapot, fields["status"])

	r := httptest.NewRequest(http.MethodGet, "/", nil)
	r.Header.Set(RequestIDHeader, "abc-123")
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, r)
	assert.Equal(t, "abc-123", rec.Header().Get(RequestIDHeader))
}

/*──────────────────────────── rate limiting ────────────────────────────────*/

func post(h http.Handler, remote string) *httptest.ResponseRecorder {
	r := httptest.NewRequest(http.MethodPost, "/api/contact", nil)
	r.RemoteAddr = remote + ":40000"
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, r)
	return rec
}

func TestRateLimit_Memory(t *testing.T) {
	h := RateLimit(NewMemoryLimiter(1, 2))(okHandler)

	assert.Equal(t, http.StatusOK, post(h, "203.0.113.1").Code)
	assert.Equal(t, http.StatusOK, post(h, "203.0.113.1").Code)

	before := testutil.ToFloat64(metrics.RateLimited)
	rec := post(h, "203.0.113.1")
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, before+1, testutil.ToFloat64(metrics.RateLimited))

	var body map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "Too many requests", body["error"])

	assert.Equal(t, http.StatusOK, post(h, "203.0.113.2").Code, "other clients unaffected")
}

func TestRateLimit_IgnoresRotatingForwardedFor(t *testing.T) {
	l := NewMemoryLimiter(1, 1)
	h := RateLimit(l)(okHandler)

	passed := 0
	for i := 0; i < 50; i++ {
		r := httptest.NewRequest(http.MethodPost, "/api/contact", nil)
		r.RemoteAddr = "198.51.100.7:40000"
		r.Header.Set("X-Forwarded-For", fmt.Sprintf("10.0.0.%d", i))
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, r)
		if rec.Code == http.StatusOK {
			passed++
		}
	}
	assert.Equal(t, 1, passed)
	assert.Equal(t, 1, l.Len())
}

func TestMemoryLimiter_RefillAndSweep(t *testing.T) {
	l := NewMemoryLimiter(60, 1)
	now := time.Now()
	l.now = func() time.Time { return now }

	ok, _ := l.Allow(context.Background(), "a")
	assert.True(t, ok)
	ok, _ = l.Allow(context.Background(), "a")
	assert.False(t, ok)

	now = now.Add(time.Second)
	ok, _ = l.Allow(context.Background(), "a")
	assert.True(t, ok, "one token per second at 60/min")

	now = now.Add(sweepEvery + time.Second)
	_, _ = l.Allow(context.Background(), "b")
	assert.Equal(t, 1, l.Len(), "refilled key swept")
}

func TestMemoryLimiter_Bounded(t *testing.T) {
	l := NewMemoryLimiter(1, 1)
	l.max = 3
	now := time.Now()
	l.now = func() time.Time { return now }

	for i := 0; i < 10; i++ {
		now = now.Add(time.Millisecond)
		ok, _ := l.Allow(context.Background(), fmt.Sprintf("k%d", i))
		require.True(t, ok)
		require.LessOrEqual(t, l.Len(), 3)
	}

	ok, _ := l.Allow(context.Background(), "k9")
	assert.False(t, ok, "newest key keeps its drained bucket")
}

func TestMemoryLimiter_Disabled(t *testing.T) {
	l := NewMemoryLimiter(0, 0)
	for i := 0; i < 100; i++ {
		ok, err := l.Allow(context.Background(), "a")
		require.NoError(t, err)
		require.True(t, ok)
	}
	assert.Zero(t, l.Len())
}

func TestRateLimit_Redis(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	h := RateLimit(NewRedisLimiter(client, 3))(okHandler)
	for i := 0; i < 3; i++ {
		assert.Equal(t, http.StatusOK, post(h, "198.51.100.9").Code)
	}
	assert.Equal(t, http.StatusTooManyRequests, post(h, "198.51.100.9").Code)
	assert.True(t, mr.Exists("soundhouse:ratelimit:contact:198.51.100.9"))

	mr.FastForward(61 * time.Second)
	assert.Equal(t, http.StatusOK, post(h, "198.51.100.9").Code, "window expired")
}

func TestRedisLimiter_RestoresMissingTTL(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	key := "soundhouse:ratelimit:contact:198.51.100.9"
	require.NoError(t, mr.Set(key, "7"))
	require.Zero(t, mr.TTL(key))

	l := NewRedisLimiter(client, 3)
	ok, err := l.Allow(context.Background(), "198.51.100.9")
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Equal(t, time.Minute, mr.TTL(key))

	mr.FastForward(61 * time.Second)
	ok, err = l.Allow(context.Background(), "198.51.100.9")
	require.NoError(t, err)
	assert.True(t, ok)
}

/*──────────────────────────── real ip ──────────────────────────────────────*/

func TestParseTrustedProxies(t *testing.T) {
	got, err := ParseTrustedProxies([]string{"10.0.0.0/8", " 192.0.2.10 ", "2001:db8::/32"})
	require.NoError(t, err)
	require.Len(t, got, 3)
	assert.Equal(t, "192.0.2.10/32", got[1].String())

	_, err = ParseTrustedProxies([]string{"proxy.internal"})
	assert.Error(t, err)
}

func TestRealIP(t *testing.T) {
	trusted, err := ParseTrustedProxies([]string{"10.0.0.0/8"})
	require.NoError(t, err)

	var seen string
	h := RealIP(trusted)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = r.RemoteAddr
	}))

	cases := []struct {
		name, remote, xff, want string
	}{
		{"untrusted peer keeps socket", "198.51.100.7:5000", "203.0.113.1", "198.51.100.7:5000"},
		{"trusted peer, one hop", "10.1.2.3:5000", "203.0.113.1", "203.0.113.1:0"},
		{"spoofed leftmost ignored", "10.1.2.3:5000", "1.2.3.4, 203.0.113.1", "203.0.113.1:0"},
		{"proxy chain skipped", "10.1.2.3:5000", "203.0.113.1, 10.9.9.9", "203.0.113.1:0"},
		{"garbage hop keeps socket", "10.1.2.3:5000", "nonsense", "10.1.2.3:5000"},
		{"no header keeps socket", "10.1.2.3:5000", "", "10.1.2.3:5000"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			r := httptest.NewRequest(http.MethodGet, "/", nil)
			r.RemoteAddr = tc.remote
			if tc.xff != "" {
				r.Header.Set("X-Forwarded-For", tc.xff)
			}
			h.ServeHTTP(httptest.NewRecorder(), r)
			assert.Equal(t, tc.want, seen)
		})
	}
}

func TestRealIP_NoTrustedProxies(t *testing.T) {
	var seen string
	h := RealIP(nil)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = r.RemoteAddr
	}))
	r := httptest.NewRequest(http.MethodGet, "/", nil)
	r.RemoteAddr = "198.51.100.7:5000"
	r.Header.Set("X-Forwarded-For", "203.0.113.1")
	h.ServeHTTP(httptest.NewRecorder(), r)
	assert.Equal(t, "198.51.100.7:5000", seen)
}

type failingLimiter struct{}

func (failingLimiter) Allow(context.Context, string) (bool, error) {
	return false, errors.New("connection refused")
}

func TestRateLimit_StoreErrorLetsRequestThrough(t *testing.T) {
	assert.Equal(t, http.StatusOK, post(RateLimit(failingLimiter{})(okHandler), "203.0.113.1").Code)
}

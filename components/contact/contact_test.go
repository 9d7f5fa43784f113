package contact

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yanizio/soundhouse/internal/component"
	"github.com/yanizio/soundhouse/internal/config"
	"github.com/yanizio/soundhouse/internal/contact"
	"github.com/yanizio/soundhouse/internal/middleware"
	"github.com/yanizio/soundhouse/internal/requestinfo"
)

const minimal = `{"name":"A","company":"B","email":"a@b.com","agreeGDPR":true,` +
	`"confirmCorrect":true,"artists":[],"turnstileToken":"x"}`

type harness struct {
	router        http.Handler
	remoteIP      atomic.Value
	webhookStatus atomic.Int32
	webhookCalls  atomic.Int32
}

func newHarness(t *testing.T, limiter middleware.Limiter) *harness {
	t.Helper()
	h := &harness{}
	h.webhookStatus.Store(http.StatusNoContent)

	verify := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = r.ParseForm()
		h.remoteIP.Store(r.PostForm.Get("remoteip"))
		_, _ = w.Write([]byte(`{"success":true}`))
	}))
	t.Cleanup(verify.Close)

	hook := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		h.webhookCalls.Add(1)
		w.WriteHeader(int(h.webhookStatus.Load()))
	}))
	t.Cleanup(hook.Close)

	c := &Component{}
	require.NoError(t, c.Init(component.Deps{
		Config: &config.Config{},
		Dispatcher: contact.NewDispatcher(
			contact.NewTurnstile("secret", verify.URL, time.Second),
			contact.NewDiscord(hook.URL, time.Second),
		),
		Limiter: limiter,
	}))

	r := chi.NewRouter()
	r.Use(requestinfo.Enrich)
	c.Routes(r)
	h.router = r
	return h
}

func (h *harness) post(path, body, xff string) (*httptest.ResponseRecorder, map[string]any) {
	r := httptest.NewRequest(http.MethodPost, path, strings.NewReader(body))
	r.Header.Set("Content-Type", "application/json")
	if xff != "" {
		r.Header.Set("X-Forwarded-For", xff)
	}
	rec := httptest.NewRecorder()
	h.router.ServeHTTP(rec, r)

	var out map[string]any
	_ = json.Unmarshal(rec.Body.Bytes(), &out)
	return rec, out
}

func TestSubmit_Delivered(t *testing.T) {
	h := newHarness(t, nil)
	rec, body := h.post("/api/contact", minimal, "203.0.113.7, 10.0.0.1")

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
	assert.Equal(t, map[string]any{"ok": true}, body)
	assert.Equal(t, "203.0.113.7", h.remoteIP.Load())
	assert.EqualValues(t, 1, h.webhookCalls.Load())
}

func TestSubmit_MissingDate(t *testing.T) {
	h := newHarness(t, nil)
	withArtist := strings.Replace(minimal, `"artists":[]`, `"artists":["DJ X"]`, 1)
	rec, body := h.post("/api/contact", withArtist, "")

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, body["error"], "Date")
	assert.NotContains(t, body, "ok")
	assert.Zero(t, h.webhookCalls.Load())
}

func TestSubmit_WebhookFailure(t *testing.T) {
	h := newHarness(t, nil)
	h.webhookStatus.Store(http.StatusInternalServerError)
	rec, body := h.post("/api/contact", minimal, "")

	assert.Equal(t, http.StatusBadGateway, rec.Code)
	assert.Equal(t, "Failed to send to Discord", body["error"])
}

func TestSubmit_MalformedBody(t *testing.T) {
	h := newHarness(t, nil)
	rec, body := h.post("/api/contact", "name=A&company=B", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "Name is required", body["error"])

	rec, body = h.post("/api/contact", strings.Repeat("x", maxBody+1), "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "Name is required", body["error"])
}

func TestValidate_Endpoint(t *testing.T) {
	h := newHarness(t, nil)

	rec, body := h.post("/api/contact/validate", `{"name":"A"}`, "")
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	assert.Equal(t, "company", body["field"])
	assert.Equal(t, "Company is required", body["error"])

	rec, body = h.post("/api/contact/validate", minimal, "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, true, body["ok"])
	assert.Zero(t, h.webhookCalls.Load(), "validation never delivers")
}

func TestSubmit_RateLimited(t *testing.T) {
	h := newHarness(t, middleware.NewMemoryLimiter(1, 1))

	rec, _ := h.post("/api/contact", minimal, "198.51.100.1")
	assert.Equal(t, http.StatusOK, rec.Code)

	rec, body := h.post("/api/contact", minimal, "198.51.100.1")
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, "Too many requests", body["error"])
	assert.EqualValues(t, 1, h.webhookCalls.Load())
}

func TestSubmit_RotatingForwardedForStillLimited(t *testing.T) {
	h := newHarness(t, middleware.NewMemoryLimiter(1, 1))

	limited := 0
	for i := 0; i < 50; i++ {
		rec, _ := h.post("/api/contact", minimal, fmt.Sprintf("10.0.0.%d", i))
		if rec.Code == http.StatusTooManyRequests {
			limited++
		}
	}
	assert.Equal(t, 49, limited)
	assert.EqualValues(t, 1, h.webhookCalls.Load())
	assert.Equal(t, "10.0.0.0", h.remoteIP.Load(), "bot check still gets the forwarded address")
}

func TestSubmit_MethodNotAllowed(t *testing.T) {
	h := newHarness(t, nil)
	rec := httptest.NewRecorder()
	h.router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/contact", nil))
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}

func TestInit_RequiresDispatcher(t *testing.T) {
	assert.Error(t, (&Component{}).Init(component.Deps{}))
}

// components/contact/contact.go
//
// Contact API component.
//
// Routes
// ------
//   POST /api/contact           run the dispatcher, answer {ok:true} or {error}
//   POST /api/contact/validate  run the validator only, answer {ok:true} or
//                               422 {error, field}
//
// Both sit behind CORS and the per-client rate limiter.  The validate route
// gives the contact page instant feedback with the same rules the trust
// boundary applies; its answer is advisory and never skips a check on the
// real submission.

package contact

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/yanizio/soundhouse/internal/component"
	"github.com/yanizio/soundhouse/internal/contact"
	"github.com/yanizio/soundhouse/internal/logger"
	"github.com/yanizio/soundhouse/internal/middleware"
	"github.com/yanizio/soundhouse/internal/requestinfo"
)

// maxBody caps a submission body.  The form is well under 8 KiB.
const maxBody = 64 << 10

// Component implements component.Component.
type Component struct {
	dispatcher *contact.Dispatcher
	limiter    middleware.Limiter
	origins    []string
}

func init() { component.Register(&Component{}) }

// Name implements component.Component.
func (c *Component) Name() string { return "contact" }

// Init implements component.Component.
func (c *Component) Init(d component.Deps) error {
	if d.Dispatcher == nil {
		return errors.New("contact: dispatcher is required")
	}
	c.dispatcher = d.Dispatcher
	c.limiter = d.Limiter
	if d.Config != nil {
		c.origins = d.Config.HTTP.AllowedOrigins
	}
	return nil
}

// Routes implements component.Component.
func (c *Component) Routes(r chi.Router) {
	r.Route("/api/contact", func(api chi.Router) {
		api.Use(middleware.CORS(c.origins))
		if c.limiter != nil {
			api.Use(middleware.RateLimit(c.limiter))
		}
		api.Post("/", c.submit)
		api.Post("/validate", c.validate)
	})
}

//
// handlers
//

func (c *Component) submit(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := logger.FromContext(ctx)
	if info := requestinfo.FromContext(ctx); info != nil {
		log = log.With(info.LogFields()...)
		ctx = logger.WithContext(ctx, log)
	}

	body := readBody(w, r)
	out := c.dispatcher.Dispatch(ctx, body, requestinfo.ForwardedFor(r))
	if out.OK() {
		writeJSON(w, http.StatusOK, map[string]bool{"ok": true})
		return
	}
	writeJSON(w, out.Status, map[string]string{"error": out.Error})
}

func (c *Component) validate(w http.ResponseWriter, r *http.Request) {
	s := contact.ParseSubmission(readBody(w, r))
	if err := contact.Validate(&s); err != nil {
		var ve *contact.ValidationError
		if errors.As(err, &ve) {
			writeJSON(w, http.StatusUnprocessableEntity, ve)
			return
		}
		writeJSON(w, http.StatusUnprocessableEntity, map[string]string{"error": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"ok": true})
}

// readBody returns the request body, or nil when it is unreadable or too
// large.  A nil body decodes to an empty submission.
func readBody(w http.ResponseWriter, r *http.Request) []byte {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBody))
	if err != nil {
		logger.FromContext(r.Context()).Warnw("contact body unreadable", "err", err)
		return nil
	}
	return body
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

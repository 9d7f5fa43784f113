// internal/contact/dispatcher.go
//
// Soundhouse – contact pipeline: the submission dispatcher.
//
// Context
//   Dispatch runs one submission from raw body to terminal outcome:
//
//     parse → Validate → Verifier → webhook configured? → BuildEmbed → Notifier
//
//   It stops at the first failure and never retries.  Each outcome maps to a
//   fixed status and message; internal error detail goes to the log only.
//   A misconfigured Turnstile secret is reported exactly like a bad token so
//   the response does not reveal deployment state.
//
//------------------------------------------------------------------------------

package contact

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/yanizio/soundhouse/internal/logger"
	"github.com/yanizio/soundhouse/internal/metrics"
)

// Outcome labels, also used as the metrics label.
const (
	OutcomeOK             = "ok"
	OutcomeInvalid        = "invalid"
	OutcomeCaptchaFailed  = "captcha_failed"
	OutcomeNotConfigured  = "not_configured"
	OutcomeDeliveryFailed = "delivery_failed"
	OutcomeNetworkError   = "network_error"
)

// Fixed caller-visible messages.
const (
	MsgCaptchaFailed  = "Captcha verification failed"
	MsgNotConfigured  = "Server not configured: Discord webhook missing"
	MsgDeliveryFailed = "Failed to send to Discord"
	MsgNetworkError   = "Network error sending to Discord"
)

// Outcome is the terminal result of one Dispatch call.
type Outcome struct {
	Kind   string
	Status int
	Error  string // empty on success
	Field  string // set for validation failures
}

// OK reports whether the submission was delivered.
func (o Outcome) OK() bool { return o.Kind == OutcomeOK }

// Dispatcher wires the policy to the two external services.  A nil
// Notifier means no webhook URL was provisioned.
type Dispatcher struct {
	Verifier Verifier
	Notifier Notifier
	Now      func() time.Time
}

// NewDispatcher returns a Dispatcher using the wall clock.
func NewDispatcher(v Verifier, n Notifier) *Dispatcher {
	return &Dispatcher{Verifier: v, Notifier: n, Now: time.Now}
}

// Dispatch processes body for a caller at remoteIP.
func (d *Dispatcher) Dispatch(ctx context.Context, body []byte, remoteIP string) Outcome {
	log := logger.FromContext(ctx)
	s, err := decodeSubmission(body)
	if err != nil {
		field, reason := decodeFault(err)
		log.Warnw("contact body malformed; treating as empty", "field", field, "reason", reason)
	}

	out := d.run(ctx, &s, remoteIP)
	metrics.ContactSubmissions.WithLabelValues(out.Kind).Inc()

	fields := []any{
		"outcome", out.Kind,
		"status", out.Status,
		"artists", len(s.Artists),
		"remote_ip", remoteIP,
	}
	if out.OK() {
		log.Infow("contact request delivered", fields...)
	} else {
		log.Warnw("contact request rejected", append(fields, "reason", out.Error)...)
	}
	return out
}

func (d *Dispatcher) run(ctx context.Context, s *Submission, remoteIP string) Outcome {
	log := logger.FromContext(ctx)

	if err := Validate(s); err != nil {
		var ve *ValidationError
		if errors.As(err, &ve) {
			return Outcome{Kind: OutcomeInvalid, Status: http.StatusBadRequest, Error: ve.Message, Field: ve.Field}
		}
		return Outcome{Kind: OutcomeInvalid, Status: http.StatusBadRequest, Error: err.Error()}
	}

	if d.Verifier == nil {
		return Outcome{Kind: OutcomeCaptchaFailed, Status: http.StatusBadRequest, Error: MsgCaptchaFailed}
	}
	if err := d.Verifier.Verify(ctx, s.TurnstileToken, remoteIP); err != nil {
		log.Warnw("turnstile verification failed", "err", err)
		return Outcome{Kind: OutcomeCaptchaFailed, Status: http.StatusBadRequest, Error: MsgCaptchaFailed}
	}

	if d.Notifier == nil {
		log.Errorw("contact webhook not configured")
		return Outcome{Kind: OutcomeNotConfigured, Status: http.StatusBadRequest, Error: MsgNotConfigured}
	}

	now := time.Now
	if d.Now != nil {
		now = d.Now
	}
	if err := d.Notifier.Notify(ctx, BuildEmbed(s, now())); err != nil {
		var de *DeliveryError
		if errors.As(err, &de) {
			log.Errorw("contact webhook refused", "status", de.Status, "body", de.Body)
			return Outcome{Kind: OutcomeDeliveryFailed, Status: http.StatusBadGateway, Error: MsgDeliveryFailed}
		}
		log.Errorw("contact webhook unreachable", "err", err)
		return Outcome{Kind: OutcomeNetworkError, Status: http.StatusBadGateway, Error: MsgNetworkError}
	}

	return Outcome{Kind: OutcomeOK, Status: http.StatusOK}
}

// internal/contact/turnstile.go
//
// Soundhouse – contact pipeline: Cloudflare Turnstile verification.
//
// Context
//   The browser widget hands the form a one-time token.  Verify posts it,
//   together with our secret and the caller's address, to the siteverify
//   endpoint.  Every failure mode returns an error: no secret configured,
//   transport failure, undecodable body, or success=false.  Callers must
//   treat any error as "not verified".
//
//------------------------------------------------------------------------------

package contact

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/yanizio/soundhouse/internal/metrics"
)

// DefaultVerifyURL is Cloudflare's public siteverify endpoint.
const DefaultVerifyURL = "https://challenges.cloudflare.com/turnstile/v0/siteverify"

var (
	// ErrSecretMissing means no Turnstile secret was provisioned.
	ErrSecretMissing = errors.New("turnstile secret not configured")
	// ErrCaptchaRejected means siteverify answered without success=true.
	ErrCaptchaRejected = errors.New("turnstile rejected token")
)

// Verifier checks a bot-check token.  A nil error means verified.
type Verifier interface {
	Verify(ctx context.Context, token, remoteIP string) error
}

// Turnstile implements Verifier against the siteverify API.
type Turnstile struct {
	Secret    string
	VerifyURL string
	Client    *http.Client
}

// NewTurnstile builds a verifier with its own bounded HTTP client.
func NewTurnstile(secret, verifyURL string, timeout time.Duration) *Turnstile {
	if verifyURL == "" {
		verifyURL = DefaultVerifyURL
	}
	return &Turnstile{
		Secret:    secret,
		VerifyURL: verifyURL,
		Client:    &http.Client{Timeout: timeout},
	}
}

type siteverifyResponse struct {
	Success    *bool    `json:"success"`
	ErrorCodes []string `json:"error-codes"`
}

// Verify implements Verifier.
func (t *Turnstile) Verify(ctx context.Context, token, remoteIP string) (err error) {
	if t.Secret == "" {
		return ErrSecretMissing
	}

	start := time.Now()
	defer func() {
		result := "ok"
		if err != nil {
			result = "error"
		}
		metrics.OutboundDuration.WithLabelValues("turnstile", result).Observe(time.Since(start).Seconds())
	}()

	form := url.Values{}
	form.Set("secret", t.Secret)
	form.Set("response", token)
	if remoteIP != "" {
		form.Set("remoteip", remoteIP)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, t.VerifyURL, strings.NewReader(form.Encode()))
	if err != nil {
		return fmt.Errorf("turnstile request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := t.client().Do(req)
	if err != nil {
		return fmt.Errorf("turnstile call: %w", err)
	}
	defer resp.Body.Close()

	var out siteverifyResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return fmt.Errorf("turnstile decode (status %d): %w", resp.StatusCode, err)
	}
	if out.Success == nil || !*out.Success {
		return fmt.Errorf("%w: %v", ErrCaptchaRejected, out.ErrorCodes)
	}
	return nil
}

func (t *Turnstile) client() *http.Client {
	if t.Client != nil {
		return t.Client
	}
	return http.DefaultClient
}

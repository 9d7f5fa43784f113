// internal/contact/discord.go
//
// Soundhouse – contact pipeline: Discord embed and webhook delivery.
//
// Context
//   Operators read contact requests in a Discord channel.  BuildEmbed turns a
//   Submission into one embed; the placeholders ("-", "None", "(optional)",
//   "(required, missing)", "?") are what the channel's readers and bots
//   already expect, so they must not drift.
//
//   Discord.Notify posts {"embeds":[embed]} exactly once.  A non-2xx answer
//   becomes a *DeliveryError; a transport failure is returned wrapped.
//
//------------------------------------------------------------------------------

package contact

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/yanizio/soundhouse/internal/metrics"
)

// EmbedColor is the accent bar colour (#FACC15).
const EmbedColor = 0xFACC15

// EmbedField is one labelled row of an embed.
type EmbedField struct {
	Name   string `json:"name"`
	Value  string `json:"value"`
	Inline bool   `json:"inline"`
}

// Embed is the subset of Discord's embed object we send.
type Embed struct {
	Title       string       `json:"title"`
	Color       int          `json:"color"`
	Fields      []EmbedField `json:"fields"`
	Description string       `json:"description"`
	Timestamp   string       `json:"timestamp"`
}

// WebhookPayload is the request body for a Discord webhook.
type WebhookPayload struct {
	Embeds []Embed `json:"embeds"`
}

// BuildEmbed formats s.  now is injected so output is reproducible in tests.
func BuildEmbed(s *Submission, now time.Time) Embed {
	hasArtists := s.HasArtists()

	artists := "None"
	if hasArtists {
		artists = strings.Join(s.Artists, ", ")
	}

	fields := []EmbedField{
		{Name: "Name", Value: orDash(s.Name), Inline: true},
		{Name: "Company", Value: orDash(s.Company), Inline: true},
		{Name: "Business Email", Value: orDash(s.Email)},
		{Name: "Phone", Value: orDash(s.Phone())},
		{Name: "Artists of interest", Value: artists},
		{Name: "Event Name", Value: orDash(s.EventName)},
		{Name: "Date", Value: dateLine(s), Inline: true},
		{Name: "Country", Value: orConditional(s.Country, hasArtists), Inline: true},
		{Name: "Venue", Value: orConditional(s.Venue, hasArtists), Inline: true},
		{Name: "GDPR", Value: yesNo(s.AgreeGDPR), Inline: true},
		{Name: "Confirm Data Correct", Value: yesNo(s.ConfirmCorrect), Inline: true},
	}
	if hasArtists {
		fields = append(fields,
			EmbedField{Name: "Organizer covers logistics", Value: yesNo(s.AgreeAccommodation), Inline: true},
			EmbedField{Name: "15% booking fee acknowledged", Value: yesNo(s.AgreeBookingFee), Inline: true},
		)
	}

	desc := s.Message
	if desc == "" {
		desc = "(no message)"
	}

	return Embed{
		Title:       "New Contact Request",
		Color:       EmbedColor,
		Fields:      fields,
		Description: desc,
		Timestamp:   now.UTC().Format("2006-01-02T15:04:05.000Z07:00"),
	}
}

func dateLine(s *Submission) string {
	if !s.HasArtists() {
		return "(not provided)"
	}
	if s.IsMultiDay {
		return orQuestion(s.DateStart) + " → " + orQuestion(s.DateEnd)
	}
	return orQuestion(s.DateSingle)
}

func orDash(v string) string     { return orDefault(v, "-") }
func orQuestion(v string) string { return orDefault(v, "?") }

func orConditional(v string, required bool) string {
	if required {
		return orDefault(v, "(required, missing)")
	}
	return orDefault(v, "(optional)")
}

func orDefault(v, def string) string {
	if v == "" {
		return def
	}
	return v
}

func yesNo(b bool) string {
	if b {
		return "Yes"
	}
	return "No"
}

//
// Delivery
//

// Notifier delivers one embed.  Implementations must not retry.
type Notifier interface {
	Notify(ctx context.Context, e Embed) error
}

// DeliveryError reports a webhook that answered with a non-2xx status.
type DeliveryError struct {
	Status int
	Body   string
}

func (e *DeliveryError) Error() string {
	return fmt.Sprintf("webhook answered %d: %s", e.Status, e.Body)
}

// Discord posts embeds to a webhook URL.
type Discord struct {
	URL    string
	Client *http.Client
}

// NewDiscord builds a notifier with its own bounded HTTP client.
func NewDiscord(url string, timeout time.Duration) *Discord {
	return &Discord{URL: url, Client: &http.Client{Timeout: timeout}}
}

// Notify implements Notifier.
func (d *Discord) Notify(ctx context.Context, e Embed) (err error) {
	start := time.Now()
	defer func() {
		result := "ok"
		if err != nil {
			result = "error"
		}
		metrics.OutboundDuration.WithLabelValues("discord", result).Observe(time.Since(start).Seconds())
	}()

	body, err := json.Marshal(WebhookPayload{Embeds: []Embed{e}})
	if err != nil {
		return fmt.Errorf("encode embed: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, d.URL, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("webhook request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	client := d.Client
	if client == nil {
		client = http.DefaultClient
	}
	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("webhook call: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return &DeliveryError{Status: resp.StatusCode, Body: string(snippet)}
	}
	return nil
}

// internal/contact/submission.go
//
// Soundhouse – contact pipeline: the Submission record.
//
// Context
//   A Submission is decoded from the JSON body posted by the contact page.
//   It lives for one request and is never stored.  JSON keys match the form
//   script so older cached copies of the page keep working.
//
//------------------------------------------------------------------------------

package contact

import (
	"encoding/json"
	"errors"
	"strings"
)

// Submission is one contact request as posted by the browser.
type Submission struct {
	Name      string `json:"name"`
	Company   string `json:"company"`
	Email     string `json:"email"`
	EventName string `json:"eventName"`

	CountryDial string `json:"countryDial"` // "+44"
	PhoneRest   string `json:"phoneRest"`

	Artists []string `json:"artists"`

	IsMultiDay bool   `json:"isMultiDay"`
	DateSingle string `json:"dateSingle"` // YYYY-MM-DD
	DateStart  string `json:"dateStart"`
	DateEnd    string `json:"dateEnd"`

	Country string `json:"country"`
	Venue   string `json:"venue"`
	Message string `json:"message"`

	AgreeGDPR          bool `json:"agreeGDPR"`
	ConfirmCorrect     bool `json:"confirmCorrect"`
	AgreeAccommodation bool `json:"agreeAccommodation"`
	AgreeBookingFee    bool `json:"agreeBookingFee"`

	TurnstileToken string `json:"turnstileToken"`
}

// HasArtists reports whether the sender asked about at least one artist.
// Conditional fields are only required when this is true.
func (s *Submission) HasArtists() bool { return len(s.Artists) > 0 }

// Phone joins dial code and number, skipping empty parts.
func (s *Submission) Phone() string {
	parts := make([]string, 0, 2)
	for _, p := range []string{s.CountryDial, s.PhoneRest} {
		if p != "" {
			parts = append(parts, p)
		}
	}
	return strings.Join(parts, " ")
}

// ParseSubmission decodes body.  Malformed input yields an empty Submission
// so it fails validation with a field message instead of a parse error.
// That includes valid JSON with one mistyped field: the caller then sees
// "Name is required" even if a name was sent.  Dispatch logs the field.
func ParseSubmission(body []byte) Submission {
	s, _ := decodeSubmission(body)
	return s
}

func decodeSubmission(body []byte) (Submission, error) {
	var s Submission
	if err := json.Unmarshal(body, &s); err != nil {
		return Submission{}, err
	}
	return s, nil
}

// decodeFault names the field at fault in a decode error, when there is one.
func decodeFault(err error) (field, reason string) {
	var te *json.UnmarshalTypeError
	if errors.As(err, &te) {
		return te.Field, "want " + te.Type.String() + ", got " + te.Value
	}
	return "", err.Error()
}

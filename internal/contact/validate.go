// internal/contact/validate.go
//
// Soundhouse – contact pipeline: the request validation policy.
//
// Context
//   One rule list, checked in a fixed order so the first failure and its
//   message are deterministic.  The base rules always apply.  The artist
//   rules are appended only when the sender picked at least one artist.
//
//   Validate is pure.  The contact page calls it through
//   POST /api/contact/validate for instant feedback, and the dispatcher
//   calls it again before anything leaves the process.
//
//------------------------------------------------------------------------------

package contact

import (
	"regexp"
	"strings"
	"time"
)

// dateLayout is the value format of <input type="date">.
const dateLayout = "2006-01-02"

// emailShape is deliberately loose: something@something.something.
var emailShape = regexp.MustCompile(`.+@.+\..+`)

// ValidationError names the first rule a Submission broke.
type ValidationError struct {
	Field   string `json:"field"`
	Message string `json:"error"`
}

func (e *ValidationError) Error() string { return e.Message }

// rule returns a non-empty message when s violates it.
type rule struct {
	field string
	check func(s *Submission) string
}

var baseRules = []rule{
	{"name", required(func(s *Submission) string { return s.Name }, "Name is required")},
	{"company", required(func(s *Submission) string { return s.Company }, "Company is required")},
	{"email", func(s *Submission) string {
		if !ValidEmail(s.Email) {
			return "Valid business email is required"
		}
		return ""
	}},
	{"agreeGDPR", checked(func(s *Submission) bool { return s.AgreeGDPR }, "GDPR consent is required")},
	{"confirmCorrect", checked(func(s *Submission) bool { return s.ConfirmCorrect }, "You must confirm data accuracy")},
}

var artistRules = []rule{
	{"date", checkDates},
	{"country", required(func(s *Submission) string { return s.Country }, "Country is required when an artist is selected")},
	{"venue", required(func(s *Submission) string { return s.Venue }, "Venue is required when an artist is selected")},
	{"agreeAccommodation", checked(func(s *Submission) bool { return s.AgreeAccommodation }, "Accommodation/transport/meals acknowledgment is required")},
	{"agreeBookingFee", checked(func(s *Submission) bool { return s.AgreeBookingFee }, "Booking fee acknowledgment is required")},
}

// Validate returns the first violated rule as a *ValidationError, or nil.
func Validate(s *Submission) error {
	rules := baseRules
	if s.HasArtists() {
		rules = append(rules[:len(rules):len(rules)], artistRules...)
	}
	for _, r := range rules {
		if msg := r.check(s); msg != "" {
			return &ValidationError{Field: r.field, Message: msg}
		}
	}
	return nil
}

// ValidEmail applies the minimal local@domain.tld shape check.
func ValidEmail(email string) bool { return emailShape.MatchString(email) }

// checkDates covers both date modes.  Multi-day pairs must parse so they
// can be ordered; a single date only has to be present.
func checkDates(s *Submission) string {
	if !s.IsMultiDay {
		if blank(s.DateSingle) {
			return "Date is required when an artist is selected"
		}
		return ""
	}

	if blank(s.DateStart) || blank(s.DateEnd) {
		return "Start and end dates are required"
	}
	start, err1 := time.Parse(dateLayout, strings.TrimSpace(s.DateStart))
	end, err2 := time.Parse(dateLayout, strings.TrimSpace(s.DateEnd))
	if err1 != nil || err2 != nil {
		return "Start and end dates must be valid dates"
	}
	if start.After(end) {
		return "Start date must be before end date"
	}
	return ""
}

func required(get func(*Submission) string, msg string) func(*Submission) string {
	return func(s *Submission) string {
		if blank(get(s)) {
			return msg
		}
		return ""
	}
}

func checked(get func(*Submission) bool, msg string) func(*Submission) string {
	return func(s *Submission) string {
		if !get(s) {
			return msg
		}
		return ""
	}
}

func blank(v string) bool { return strings.TrimSpace(v) == "" }

// Package contact holds the normalized contact model produced by the
// ingestion pipeline, the per-row validator, and the outcome aggregator.
// It has no persistence or HTTP dependencies.
package contact

import (
	"net/mail"
	"regexp"

	"github.com/contactflow/importer/internal/mapping"
)

// Candidate is a normalized, not-yet-persisted contact derived from one
// input row. All fields are whitespace-trimmed.
type Candidate struct {
	ClientNumber string
	LastName     string
	FirstName    string
	CompanyName  string
	Role         string
	Email        string
	Phone        string
	Profile      string
	Status       string
}

// RejectReason classifies why a row was dropped before persistence.
type RejectReason string

const (
	ReasonMissingClientNumber   RejectReason = "MISSING_CLIENT_NUMBER"
	ReasonDuplicateClientNumber RejectReason = "DUPLICATE_CLIENT_NUMBER"
	ReasonDuplicatePhone        RejectReason = "DUPLICATE_PHONE"
	ReasonDuplicateEmail        RejectReason = "DUPLICATE_EMAIL"
	ReasonInvalidPhone          RejectReason = "INVALID_PHONE"
	ReasonInvalidEmail          RejectReason = "INVALID_EMAIL"
	ReasonOther                 RejectReason = "OTHER"
)

// Policy toggles the optional row-level checks. Everything except the
// mandatory client-number check defaults to off.
type Policy struct {
	// StrictMode makes the phone column mandatory in the mapping and a
	// missing phone value a row rejection.
	StrictMode bool

	CheckDuplicatePhone bool
	CheckDuplicateEmail bool
	ValidatePhoneFormat bool
	ValidateEmailFormat bool
}

// phoneRe accepts digits with optional leading +, separators allowed.
var phoneRe = regexp.MustCompile(`^\+?[0-9][0-9 .\-()]{5,24}$`)

// Validator projects raw rows into candidates using a resolved column
// mapping. It keeps per-file state for duplicate detection, so one
// Validator serves exactly one import run and must not be shared.
type Validator struct {
	resolved *mapping.Resolved
	policy   Policy

	// Request-level fallbacks applied when the mapped column is empty.
	defaultProfile string
	defaultStatus  string

	seenPhones map[string]struct{}
	seenEmails map[string]struct{}
}

// NewValidator builds a validator for one import run.
func NewValidator(resolved *mapping.Resolved, policy Policy, defaultProfile, defaultStatus string) *Validator {
	v := &Validator{
		resolved:       resolved,
		policy:         policy,
		defaultProfile: defaultProfile,
		defaultStatus:  defaultStatus,
	}
	if policy.CheckDuplicatePhone {
		v.seenPhones = make(map[string]struct{})
	}
	if policy.CheckDuplicateEmail {
		v.seenEmails = make(map[string]struct{})
	}
	return v
}

// Validate projects one raw row. On success ok is true and the candidate is
// ready for batching; otherwise reason classifies the rejection.
func (v *Validator) Validate(row []string) (Candidate, RejectReason, bool) {
	c := Candidate{
		ClientNumber: v.resolved.Value(row, mapping.FieldClientNumber),
		LastName:     v.resolved.Value(row, mapping.FieldLastName),
		FirstName:    v.resolved.Value(row, mapping.FieldFirstName),
		CompanyName:  v.resolved.Value(row, mapping.FieldCompanyName),
		Role:         v.resolved.Value(row, mapping.FieldRole),
		Email:        v.resolved.Value(row, mapping.FieldEmail),
		Phone:        v.resolved.Value(row, mapping.FieldPhone),
		Profile:      v.resolved.Value(row, mapping.FieldProfile),
		Status:       v.resolved.Value(row, mapping.FieldStatus),
	}

	if c.Profile == "" {
		c.Profile = v.defaultProfile
	}
	if c.Status == "" {
		c.Status = v.defaultStatus
	}

	if c.ClientNumber == "" {
		return Candidate{}, ReasonMissingClientNumber, false
	}

	if v.policy.StrictMode && c.Phone == "" {
		return Candidate{}, ReasonInvalidPhone, false
	}
	if v.policy.ValidatePhoneFormat && c.Phone != "" && !phoneRe.MatchString(c.Phone) {
		return Candidate{}, ReasonInvalidPhone, false
	}
	if v.policy.ValidateEmailFormat && c.Email != "" {
		if _, err := mail.ParseAddress(c.Email); err != nil {
			return Candidate{}, ReasonInvalidEmail, false
		}
	}
	if v.policy.CheckDuplicatePhone && c.Phone != "" {
		if _, dup := v.seenPhones[c.Phone]; dup {
			return Candidate{}, ReasonDuplicatePhone, false
		}
		v.seenPhones[c.Phone] = struct{}{}
	}
	if v.policy.CheckDuplicateEmail && c.Email != "" {
		if _, dup := v.seenEmails[c.Email]; dup {
			return Candidate{}, ReasonDuplicateEmail, false
		}
		v.seenEmails[c.Email] = struct{}{}
	}

	return c, "", true
}

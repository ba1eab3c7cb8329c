// Package validation checks submitted forms without any I/O. A failed check
// yields a field -> codes map that the form template renders next to each input.
package validation

import (
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/google/uuid"
)

const (
	CodeIsEmpty = "is_empty"
	CodeLength  = "length"
	CodeRange   = "range"
	CodeFormat  = "format"
)

// Errors maps a form field name to the list of failed rule codes.
type Errors map[string][]string

func (e Errors) Add(field, code string) {
	e[field] = append(e[field], code)
}

func (e Errors) AddIf(cond bool, field, code string) {
	if cond {
		e.Add(field, code)
	}
}

func (e Errors) Empty() bool { return len(e) == 0 }

// Has reports whether field failed with code.
func (e Errors) Has(field, code string) bool {
	for _, c := range e[field] {
		if c == code {
			return true
		}
	}
	return false
}

// ProfileForm is the raw add/edit submission. Every value is kept as typed so
// an invalid form can be shown back to the user unchanged.
type ProfileForm struct {
	ProfileID    string `form:"profile_id"`
	Name         string `form:"name"`
	Height       string `form:"height"`
	Weight       string `form:"weight"`
	City         string `form:"city"`
	PhoneNumber  string `form:"phone_number"`
	Description  string `form:"description"`
	CaptchaToken string `form:"captcha_token"`
}

// ProfileRequest is a validated, normalized ProfileForm.
type ProfileRequest struct {
	ProfileID    *uuid.UUID
	Name         string
	Height       int
	Weight       int
	City         string
	PhoneNumber  string
	Description  string
	CaptchaToken string
}

func ValidateProfile(f ProfileForm) (ProfileRequest, Errors) {
	errs := Errors{}
	name := strings.TrimSpace(f.Name)
	height := strings.TrimSpace(f.Height)
	weight := strings.TrimSpace(f.Weight)
	city := strings.TrimSpace(f.City)
	phone := strings.TrimSpace(f.PhoneNumber)
	description := strings.TrimSpace(f.Description)

	errs.AddIf(name == "", "name", CodeIsEmpty)
	errs.AddIf(!lengthIn(name, 3, 10), "name", CodeLength)

	errs.AddIf(height == "", "height", CodeIsEmpty)
	h, ok := intIn(height, 100, 220)
	errs.AddIf(!ok, "height", CodeRange)

	var w int
	if weight != "" {
		w, ok = intIn(weight, 30, 200)
		errs.AddIf(!ok, "weight", CodeRange)
	}

	errs.AddIf(city == "", "city", CodeIsEmpty)

	errs.AddIf(phone == "", "phone_number", CodeIsEmpty)
	errs.AddIf(!lengthIn(phone, 9, 9), "phone_number", CodeLength)

	errs.AddIf(description == "", "description", CodeIsEmpty)
	errs.AddIf(!lengthIn(description, 10, 600), "description", CodeLength)

	errs.AddIf(strings.TrimSpace(f.CaptchaToken) == "", "captcha_token", CodeIsEmpty)

	var profileID *uuid.UUID
	if raw := strings.TrimSpace(f.ProfileID); raw != "" {
		id, err := uuid.Parse(raw)
		if err != nil {
			errs.Add("profile_id", CodeFormat)
		} else {
			profileID = &id
		}
	}

	if !errs.Empty() {
		return ProfileRequest{}, errs
	}
	return ProfileRequest{
		ProfileID:    profileID,
		Name:         name,
		Height:       h,
		Weight:       w,
		City:         city,
		PhoneNumber:  phone,
		Description:  description,
		CaptchaToken: f.CaptchaToken,
	}, nil
}

func ValidateComment(text string) (string, Errors) {
	return validateText("text", text, 2, 500)
}

func ValidateReport(text string) (string, Errors) {
	return validateText("text", text, 5, 1000)
}

func validateText(field, text string, min, max int) (string, Errors) {
	errs := Errors{}
	text = strings.TrimSpace(text)
	errs.AddIf(text == "", field, CodeIsEmpty)
	errs.AddIf(!lengthIn(text, min, max), field, CodeLength)
	if !errs.Empty() {
		return "", errs
	}
	return text, nil
}

// ParseOptionalUUID returns nil for an empty string.
func ParseOptionalUUID(raw string) (*uuid.UUID, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, nil
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		return nil, err
	}
	return &id, nil
}

// lengthIn counts runes, not bytes.
func lengthIn(s string, min, max int) bool {
	n := utf8.RuneCountInString(s)
	return n >= min && n <= max
}

func intIn(s string, min, max int) (int, bool) {
	v, err := strconv.Atoi(s)
	if err != nil {
		return 0, false
	}
	return v, v >= min && v <= max
}

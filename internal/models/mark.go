// Package models defines the domain types for marksman.
package models

import (
	"strings"
	"unicode/utf8"

	validation "github.com/go-ozzo/ozzo-validation/v4"

	"github.com/starford/marksman/internal/apperr"
)

// Name and text limits.
const (
	MaxNameLength = 50
	MaxTextLength = 80
)

// unsafeNameChars are rejected in mark names because names double as file
// name fragments in exports.
const unsafeNameChars = `<>:"/\|?*`

// reservedNames are device names that cannot be used as mark names,
// compared case-insensitively.
var reservedNames = map[string]struct{}{
	"con": {}, "prn": {}, "aux": {}, "nul": {},
	"com1": {}, "com2": {}, "com3": {}, "com4": {}, "com5": {}, "com6": {}, "com7": {}, "com8": {}, "com9": {},
	"lpt1": {}, "lpt2": {}, "lpt3": {}, "lpt4": {}, "lpt5": {}, "lpt6": {}, "lpt7": {}, "lpt8": {}, "lpt9": {},
}

// Mark is a named bookmark to a position in a file.
type Mark struct {
	File        string `json:"file"`
	Line        int    `json:"line"`
	Col         int    `json:"col"`
	Text        string `json:"text,omitempty"`
	Description string `json:"description,omitempty"`
	CreatedAt   int64  `json:"created_at"`
	AccessedAt  int64  `json:"accessed_at,omitempty"`
}

// Validate checks the data invariants of a stored mark.
func (m *Mark) Validate() error {
	return validation.ValidateStruct(m,
		validation.Field(&m.File, validation.Required),
		validation.Field(&m.Line, validation.Required, validation.Min(1)),
		validation.Field(&m.Col, validation.Required, validation.Min(1)),
	)
}

// Location identifies a cursor position.
type Location struct {
	File string `json:"file"`
	Line int    `json:"line"`
	Col  int    `json:"col"`
}

// Entry is a mark together with its name and 1-based position in the order.
type Entry struct {
	Index int    `json:"index"`
	Name  string `json:"name"`
	Mark  Mark   `json:"mark"`
}

// NameValidator decides whether a user-supplied name is acceptable.
type NameValidator interface {
	Validate(name string) error
}

// DefaultNameValidator applies the standard naming rules.
type DefaultNameValidator struct{}

// Validate implements NameValidator.
func (DefaultNameValidator) Validate(name string) error {
	return ValidateName(name)
}

// ValidateName checks that name is 1-50 characters, not blank, free of
// filesystem-unsafe characters and not a reserved device name.
func ValidateName(name string) error {
	if strings.TrimSpace(name) == "" {
		return apperr.New(apperr.ErrInvalidName, "Mark name cannot be empty")
	}
	if utf8.RuneCountInString(name) > MaxNameLength {
		return apperr.New(apperr.ErrInvalidName, "Mark name too long (max %d characters): %s", MaxNameLength, name)
	}
	if strings.ContainsAny(name, unsafeNameChars) {
		return apperr.New(apperr.ErrInvalidName, "Mark name contains invalid characters (%s): %s", unsafeNameChars, name)
	}
	if _, ok := reservedNames[strings.ToLower(name)]; ok {
		return apperr.New(apperr.ErrInvalidName, "Mark name is reserved: %s", name)
	}
	return nil
}

// SanitizeName turns an arbitrary candidate into a valid name, returning
// fallback when nothing usable remains.
func SanitizeName(candidate, fallback string) string {
	var b strings.Builder
	for _, r := range strings.TrimSpace(candidate) {
		switch {
		case strings.ContainsRune(unsafeNameChars, r), r < 0x20:
			b.WriteRune('_')
		case r == ' ' || r == '\t':
			b.WriteRune('_')
		default:
			b.WriteRune(r)
		}
	}
	name := Truncate(strings.Trim(b.String(), "_"), MaxNameLength)
	if ValidateName(name) != nil {
		return fallback
	}
	return name
}

// Truncate shortens s to at most n runes.
func Truncate(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	r := []rune(s)
	return string(r[:n])
}

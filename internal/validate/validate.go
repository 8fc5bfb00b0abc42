// SPDX-License-Identifier: MIT

// Package validate collects configuration problems so they can be reported
// together instead of one per start attempt.
package validate

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"slices"
	"strings"
)

// Error is a single rejected field.
type Error struct {
	Field   string
	Value   any
	Message string
}

func (e Error) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// ValidationError carries every problem found by one Validator.
type ValidationError struct {
	errors []Error
}

// Errors returns the individual field errors.
func (e ValidationError) Errors() []Error { return e.errors }

func (e ValidationError) Error() string {
	msgs := make([]string, 0, len(e.errors))
	for _, err := range e.errors {
		msgs = append(msgs, err.Error())
	}
	return "invalid configuration: " + strings.Join(msgs, "; ")
}

// Validator accumulates field errors.
type Validator struct {
	errors []Error
}

// New returns an empty Validator.
func New() *Validator { return &Validator{} }

// Addf records a problem with field.
func (v *Validator) Addf(field string, value any, format string, args ...any) {
	v.errors = append(v.errors, Error{Field: field, Value: value, Message: fmt.Sprintf(format, args...)})
}

// Valid reports whether nothing has been recorded.
func (v *Validator) Valid() bool { return len(v.errors) == 0 }

// Err returns nil or a ValidationError snapshot of the recorded problems.
func (v *Validator) Err() error {
	if v.Valid() {
		return nil
	}
	return ValidationError{errors: slices.Clone(v.errors)}
}

// NotEmpty rejects blank strings.
func (v *Validator) NotEmpty(field, value string) {
	if strings.TrimSpace(value) == "" {
		v.Addf(field, value, "must not be empty")
	}
}

// OneOf rejects values outside allowed.
func (v *Validator) OneOf(field, value string, allowed []string) {
	if !slices.Contains(allowed, value) {
		v.Addf(field, value, "must be one of %s, got %q", strings.Join(allowed, "|"), value)
	}
}

// Range checks min <= value <= max.
func (v *Validator) Range(field string, value, minVal, maxVal int) {
	if value < minVal || value > maxVal {
		v.Addf(field, value, "must be within [%d, %d], got %d", minVal, maxVal, value)
	}
}

// FloatRange checks min <= value <= max.
func (v *Validator) FloatRange(field string, value, minVal, maxVal float64) {
	if value < minVal || value > maxVal {
		v.Addf(field, value, "must be within [%g, %g], got %g", minVal, maxVal, value)
	}
}

// Digits requires a non-empty run of ASCII digits, e.g. a country prefix.
func (v *Validator) Digits(field, value string) {
	if value == "" || strings.IndexFunc(value, func(r rune) bool { return r < '0' || r > '9' }) >= 0 {
		v.Addf(field, value, "must contain only digits, got %q", value)
	}
}

// URL requires an absolute URL with a host and one of schemes.
func (v *Validator) URL(field, value string, schemes []string) {
	u, err := url.Parse(value)
	switch {
	case value == "":
		v.Addf(field, value, "must not be empty")
	case err != nil:
		v.Addf(field, value, "invalid URL: %v", err)
	case u.Host == "":
		v.Addf(field, value, "URL must have a host")
	case len(schemes) > 0 && !slices.Contains(schemes, u.Scheme):
		v.Addf(field, value, "scheme %q not allowed (want %s)", u.Scheme, strings.Join(schemes, "|"))
	}
}

// Directory checks that path is a usable directory. A missing directory is
// created unless mustExist is set.
func (v *Validator) Directory(field, path string, mustExist bool) {
	if path == "" {
		v.Addf(field, path, "must not be empty")
		return
	}
	if slices.Contains(strings.Split(filepath.ToSlash(path), "/"), "..") {
		v.Addf(field, path, "must not contain '..'")
		return
	}

	info, err := os.Stat(path)
	switch {
	case os.IsNotExist(err) && mustExist:
		v.Addf(field, path, "directory does not exist")
	case os.IsNotExist(err):
		if err := os.MkdirAll(path, 0o750); err != nil {
			v.Addf(field, path, "cannot create directory: %v", err)
		}
	case err != nil:
		v.Addf(field, path, "cannot access directory: %v", err)
	case !info.IsDir():
		v.Addf(field, path, "not a directory")
	}
}

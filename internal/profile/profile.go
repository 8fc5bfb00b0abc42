// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package profile loads the pet profile, emergency contacts and care
// instructions that arming defaults to.
package profile

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/ManuGH/petwatch/internal/domain/watch"
	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

// ErrNotFound is returned when the profile file does not exist.
var ErrNotFound = errors.New("profile not found")

var validate *validator.Validate

func init() {
	validate = validator.New()
	_ = validate.RegisterValidation("phone", validatePhone)
}

// validatePhone accepts any formatting with 7 to 15 digits.
func validatePhone(fl validator.FieldLevel) bool {
	n := 0
	for _, r := range fl.Field().String() {
		if r >= '0' && r <= '9' {
			n++
		}
	}
	return n >= 7 && n <= 15
}

// Pet describes the animal being watched.
type Pet struct {
	Name  string `yaml:"name" json:"name" validate:"required"`
	Photo string `yaml:"photo,omitempty" json:"photo,omitempty"`
}

// Contact is one emergency contact.
type Contact struct {
	ID    string `yaml:"id,omitempty" json:"id,omitempty"`
	Name  string `yaml:"name" json:"name" validate:"required"`
	Phone string `yaml:"phone" json:"phone" validate:"required,phone"`
	Email string `yaml:"email,omitempty" json:"email,omitempty" validate:"omitempty,email"`
}

// Profile is the on-disk document.
type Profile struct {
	Pet      Pet                `yaml:"pet" json:"pet"`
	Contacts []Contact          `yaml:"contacts" json:"contacts" validate:"dive"`
	Care     watch.CareSnapshot `yaml:"care,omitempty" json:"care,omitempty"`
}

// Recipients converts the contacts to alert recipients.
func (p Profile) Recipients() []watch.Recipient {
	out := make([]watch.Recipient, 0, len(p.Contacts))
	for _, c := range p.Contacts {
		out = append(out, watch.Recipient{Name: c.Name, Phone: c.Phone})
	}
	return out
}

// Clone deep-copies the profile.
func (p Profile) Clone() Profile {
	out := p
	if p.Contacts != nil {
		out.Contacts = append([]Contact(nil), p.Contacts...)
	}
	out.Care = p.Care.Clone()
	return out
}

// Validate checks required fields and formats.
func (p Profile) Validate() error {
	if err := validate.Struct(p); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			msgs := make([]string, 0, len(verrs))
			for _, fe := range verrs {
				msgs = append(msgs, fmt.Sprintf("%s: failed %q", fe.Namespace(), fe.Tag()))
			}
			return fmt.Errorf("invalid profile: %s", strings.Join(msgs, "; "))
		}
		return fmt.Errorf("invalid profile: %w", err)
	}
	return nil
}

// Parse strictly decodes and validates a profile document.
func Parse(data []byte) (Profile, error) {
	var p Profile
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&p); err != nil {
		if errors.Is(err, io.EOF) {
			return p, errors.New("profile is empty")
		}
		return p, fmt.Errorf("decode profile: %w", err)
	}
	if err := p.Validate(); err != nil {
		return p, err
	}
	return p, nil
}

// Load reads the profile at path.
func Load(path string) (Profile, error) {
	data, err := os.ReadFile(path) // #nosec G304 -- operator-supplied path
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return Profile{}, fmt.Errorf("%w: %s", ErrNotFound, path)
		}
		return Profile{}, fmt.Errorf("read profile: %w", err)
	}
	return Parse(data)
}

// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package compose renders alert texts from a watch snapshot.
package compose

import (
	"fmt"
	"strings"
	"time"

	"github.com/ManuGH/petwatch/internal/domain/watch"
	"github.com/ManuGH/petwatch/internal/escalation"
)

// ContactPlaceholder is replaced with each recipient's name at send time.
const ContactPlaceholder = "{contactName}"

const fallbackContactName = "Friend"

// Priority of a local notification.
type Priority string

const (
	PriorityHigh Priority = "high"
	PriorityMax  Priority = "max"
)

// Notification is a local alert shown to the device owner.
type Notification struct {
	Title    string   `json:"title"`
	Body     string   `json:"body"`
	Priority Priority `json:"priority"`
	Sticky   bool     `json:"sticky"`
}

// Composer renders messages. The zero value is ready to use.
type Composer struct {
	// AppName is appended as the message signature.
	AppName string
	// Location formats wall-clock times; nil means UTC.
	Location *time.Location
}

func (c Composer) appName() string {
	if c.AppName == "" {
		return "PetWatch"
	}
	return c.AppName
}

func (c Composer) clock(t time.Time) string {
	loc := c.Location
	if loc == nil {
		loc = time.UTC
	}
	return t.In(loc).Format("Mon Jan 2 15:04 MST")
}

// AlertTemplate renders the SMS body for a timer once. The result still
// contains ContactPlaceholder; use ForRecipient to personalise it.
func (c Composer) AlertTemplate(t watch.Timer) string {
	var b strings.Builder
	pet := t.PetName
	if pet == "" {
		pet = "my pet"
	}

	b.WriteString("PET SAFETY ALERT\n\n")
	fmt.Fprintf(&b, "Hi %s, this is an automated emergency alert. ", ContactPlaceholder)
	fmt.Fprintf(&b, "%s's safety timer expired at %s and the owner has not checked in.\n\n", pet, c.clock(t.ExpiresAt()))
	b.WriteString("Please check on the pet immediately and contact the owner directly.\n")

	if care := careSummary(t.Care); care != "" {
		b.WriteString("\n")
		b.WriteString(care)
	}

	fmt.Fprintf(&b, "\nThis alert was sent automatically by %s.", c.appName())
	return b.String()
}

// ForRecipient substitutes the recipient name into a template.
func ForRecipient(template, name string) string {
	name = strings.TrimSpace(name)
	if name == "" {
		name = fallbackContactName
	}
	return strings.ReplaceAll(template, ContactPlaceholder, name)
}

func careSummary(care watch.CareSnapshot) string {
	if care.IsZero() {
		return ""
	}
	var b strings.Builder
	b.WriteString("Care instructions:\n")
	if care.FoodType != "" || care.FoodAmount != "" {
		food := strings.TrimSpace(strings.Join(nonEmpty(care.FoodAmount, care.FoodType), " "))
		fmt.Fprintf(&b, "- Food: %s\n", food)
	}
	if len(care.FeedingTimes) > 0 {
		fmt.Fprintf(&b, "- Feeding times: %s\n", strings.Join(care.FeedingTimes, ", "))
	}
	if care.FeedingNotes != "" {
		fmt.Fprintf(&b, "- Feeding notes: %s\n", care.FeedingNotes)
	}
	for _, med := range care.Medications {
		parts := nonEmpty(med.Dosage, med.Timing, med.Instructions)
		if len(parts) == 0 {
			fmt.Fprintf(&b, "- Medication: %s\n", med.Name)
			continue
		}
		fmt.Fprintf(&b, "- Medication: %s (%s)\n", med.Name, strings.Join(parts, ", "))
	}
	if vet := strings.Join(nonEmpty(care.VetName, care.VetPhone, care.VetAddress), ", "); vet != "" {
		fmt.Fprintf(&b, "- Vet: %s\n", vet)
	}
	if care.GeneralInstructions != "" {
		fmt.Fprintf(&b, "- Instructions: %s\n", care.GeneralInstructions)
	}
	if care.EmergencyNotes != "" {
		fmt.Fprintf(&b, "- Emergency notes: %s\n", care.EmergencyNotes)
	}
	return b.String()
}

func nonEmpty(values ...string) []string {
	out := make([]string, 0, len(values))
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			out = append(out, v)
		}
	}
	return out
}

// Notification renders the local notification for a planned event.
func (c Composer) Notification(kind escalation.Kind, petName string, minutesOverdue int) Notification {
	if petName == "" {
		petName = "your pet"
	}
	switch kind {
	case escalation.KindReminder:
		return Notification{
			Title:    "Pet Safety Timer - 5 Minutes Left",
			Body:     fmt.Sprintf("Your pet safety timer for %s expires in 5 minutes. Don't forget to check in!", petName),
			Priority: PriorityHigh,
		}
	case escalation.KindFollowUp:
		return Notification{
			Title:    fmt.Sprintf("PET ALERT - %d MINUTES OVERDUE!", minutesOverdue),
			Body:     fmt.Sprintf("CRITICAL: Still no check-in for %s! Emergency contacts are being notified. Respond immediately!", petName),
			Priority: PriorityMax,
			Sticky:   true,
		}
	default:
		return Notification{
			Title:    "PET ALERT - TIMER EXPIRED!",
			Body:     fmt.Sprintf("URGENT: Your pet safety timer has expired! Emergency contacts are being notified about %s.", petName),
			Priority: PriorityMax,
			Sticky:   true,
		}
	}
}

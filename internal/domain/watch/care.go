// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package watch

// Medication is a single entry of the pet's medication schedule.
type Medication struct {
	Name         string `json:"name" yaml:"name" validate:"required"`
	Dosage       string `json:"dosage,omitempty" yaml:"dosage,omitempty"`
	Timing       string `json:"timing,omitempty" yaml:"timing,omitempty"`
	Instructions string `json:"instructions,omitempty" yaml:"instructions,omitempty"`
}

// CareSnapshot is the care-instruction record copied into a Timer at arm time.
// All fields are optional.
type CareSnapshot struct {
	FoodType            string       `json:"foodType,omitempty" yaml:"foodType,omitempty"`
	FoodAmount          string       `json:"foodAmount,omitempty" yaml:"foodAmount,omitempty"`
	FeedingTimes        []string     `json:"feedingTimes,omitempty" yaml:"feedingTimes,omitempty"`
	FeedingNotes        string       `json:"feedingNotes,omitempty" yaml:"feedingNotes,omitempty"`
	Medications         []Medication `json:"medications,omitempty" yaml:"medications,omitempty" validate:"dive"`
	VetName             string       `json:"vetName,omitempty" yaml:"vetName,omitempty"`
	VetPhone            string       `json:"vetPhone,omitempty" yaml:"vetPhone,omitempty"`
	VetAddress          string       `json:"vetAddress,omitempty" yaml:"vetAddress,omitempty"`
	GeneralInstructions string       `json:"generalInstructions,omitempty" yaml:"generalInstructions,omitempty"`
	EmergencyNotes      string       `json:"emergencyNotes,omitempty" yaml:"emergencyNotes,omitempty"`
}

// Clone returns a deep copy of the snapshot.
func (c CareSnapshot) Clone() CareSnapshot {
	out := c
	if c.FeedingTimes != nil {
		out.FeedingTimes = append([]string(nil), c.FeedingTimes...)
	}
	if c.Medications != nil {
		out.Medications = append([]Medication(nil), c.Medications...)
	}
	return out
}

// IsZero reports whether no care information was recorded.
func (c CareSnapshot) IsZero() bool {
	return c.FoodType == "" && c.FoodAmount == "" && len(c.FeedingTimes) == 0 &&
		c.FeedingNotes == "" && len(c.Medications) == 0 && c.VetName == "" &&
		c.VetPhone == "" && c.VetAddress == "" && c.GeneralInstructions == "" &&
		c.EmergencyNotes == ""
}

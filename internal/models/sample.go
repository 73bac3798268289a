package models

import (
	"errors"
	"math"
	"time"
)

// Sample is one successful measurement poll. It is handed to the SLO
// tracker exactly once and not retained afterward.
type Sample struct {
	// Value is the measured temperature in fahrenheit.
	Value float64 `json:"value"`

	// Label names the location the measurement came from.
	Label string `json:"label"`

	// ObservedAt is when the measurement was taken.
	ObservedAt time.Time `json:"observed_at"`
}

// Validation errors
var (
	ErrBadValue       = errors.New("sample value is not a finite number")
	ErrEmptyLabel     = errors.New("sample label cannot be empty")
	ErrZeroObservedAt = errors.New("sample timestamp cannot be zero")
)

// Validate checks that the Sample is complete enough to evaluate.
func (s *Sample) Validate() error {
	if math.IsNaN(s.Value) || math.IsInf(s.Value, 0) {
		return ErrBadValue
	}
	if s.Label == "" {
		return ErrEmptyLabel
	}
	if s.ObservedAt.IsZero() {
		return ErrZeroObservedAt
	}
	return nil
}

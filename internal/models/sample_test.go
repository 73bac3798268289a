package models

import (
	"math"
	"testing"
	"time"
)

func TestSampleValidate(t *testing.T) {
	now := time.Now()

	tests := []struct {
		name    string
		sample  Sample
		wantErr error
	}{
		{
			name:   "valid",
			sample: Sample{Value: 92.3, Label: "Ridgewood", ObservedAt: now},
		},
		{
			name:    "nan value",
			sample:  Sample{Value: math.NaN(), Label: "Ridgewood", ObservedAt: now},
			wantErr: ErrBadValue,
		},
		{
			name:    "infinite value",
			sample:  Sample{Value: math.Inf(1), Label: "Ridgewood", ObservedAt: now},
			wantErr: ErrBadValue,
		},
		{
			name:    "empty label",
			sample:  Sample{Value: 92.3, ObservedAt: now},
			wantErr: ErrEmptyLabel,
		},
		{
			name:    "zero timestamp",
			sample:  Sample{Value: 92.3, Label: "Ridgewood"},
			wantErr: ErrZeroObservedAt,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.sample.Validate()
			if err != tt.wantErr {
				t.Errorf("Validate() = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestSeverityIsValid(t *testing.T) {
	for _, s := range []Severity{SeverityBreach, SeverityClear} {
		if !s.IsValid() {
			t.Errorf("expected %q to be valid", s)
		}
	}
	if Severity("panic").IsValid() {
		t.Error("expected unknown severity to be invalid")
	}
}

func TestNewNotification(t *testing.T) {
	at := time.Now()
	n := NewNotification(SeverityBreach, "threshold reached", at)

	if n.ID == "" {
		t.Error("expected a generated ID")
	}
	if n.Severity != SeverityBreach {
		t.Errorf("expected breach severity, got %s", n.Severity)
	}
	if n.Message != "threshold reached" {
		t.Errorf("unexpected message %q", n.Message)
	}
	if !n.At.Equal(at) {
		t.Errorf("unexpected timestamp %v", n.At)
	}

	if NewNotification(SeverityClear, "m", at).ID == n.ID {
		t.Error("expected unique IDs")
	}
}

package models

import (
	"time"

	"github.com/google/uuid"
)

// Severity classifies a notification.
type Severity string

const (
	SeverityBreach Severity = "breach"
	SeverityClear  Severity = "clear"
)

// IsValid checks if the severity level is valid
func (s Severity) IsValid() bool {
	switch s {
	case SeverityBreach, SeverityClear:
		return true
	default:
		return false
	}
}

// Notification is an ephemeral alert event: constructed by the tracker on
// a confirmed state transition, handed to the sink, then discarded.
type Notification struct {
	ID       string    `json:"id"`
	Severity Severity  `json:"severity"`
	Message  string    `json:"message"`
	At       time.Time `json:"at"`
}

// NewNotification builds a Notification with a fresh ID.
func NewNotification(severity Severity, message string, at time.Time) Notification {
	return Notification{
		ID:       uuid.NewString(),
		Severity: severity,
		Message:  message,
		At:       at,
	}
}

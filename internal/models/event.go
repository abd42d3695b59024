package models

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// EventStatus is the direction of an attendance event.
type EventStatus string

const (
	StatusIn  EventStatus = "IN"
	StatusOut EventStatus = "OUT"
)

// Opposite returns the flipped status.
func (s EventStatus) Opposite() EventStatus {
	if s == StatusIn {
		return StatusOut
	}
	return StatusIn
}

// AttendanceEvent is one confirmed IN/OUT decision for an identity.
// For a given identity and local calendar day the event sequence strictly
// alternates starting with IN. Events are append-only once reported; the
// backend deduplicates on the idempotency key.
type AttendanceEvent struct {
	EventID    uuid.UUID   `json:"event_id"`
	IdentityID int64       `json:"identity_id"`
	Name       string      `json:"name,omitempty"`
	Timestamp  time.Time   `json:"timestamp"`
	Status     EventStatus `json:"status"`
}

// IdempotencyKey is the stable key sent with every report attempt so a retry
// that lands after a prior attempt already succeeded cannot double-count.
func (e AttendanceEvent) IdempotencyKey() string {
	return fmt.Sprintf("%d-%d", e.IdentityID, e.Timestamp.UnixNano())
}

// ControlCommand is the process-wide run/pause/shutdown signal read from the
// backend. "run" is the default.
type ControlCommand string

const (
	CommandRun      ControlCommand = "run"
	CommandPause    ControlCommand = "pause"
	CommandShutdown ControlCommand = "shutdown"
)

// DayHoursSummary is derived from one identity's event sequence for one local
// calendar day. Never persisted; always recomputable from the event log.
type DayHoursSummary struct {
	IdentityID   int64       `json:"identity_id"`
	Name         string      `json:"name"`
	Date         string      `json:"date"` // YYYY-MM-DD in the terminal's timezone
	WorkedHours  float64     `json:"worked_hours"`
	OutsideHours float64     `json:"outside_hours"`
	LastStatus   EventStatus `json:"last_status"`
}

package dto

import "github.com/google/uuid"

// DecisionEvent is a WebSocket message carrying one confirmed attendance
// decision.
type DecisionEvent struct {
	Type       string    `json:"type"` // clock_in, clock_out
	EventID    uuid.UUID `json:"event_id"`
	IdentityID int64     `json:"identity_id"`
	Name       string    `json:"name,omitempty"`
	Status     string    `json:"status"`
	Timestamp  string    `json:"timestamp"`
}

// PresenceEntry is one row of GET /v1/presence.
type PresenceEntry struct {
	IdentityID    int64  `json:"identity_id"`
	Name          string `json:"name,omitempty"`
	Status        string `json:"status"`
	LastEventTime string `json:"last_event_time"`
}

type PresenceResponse struct {
	Date    string          `json:"date"`
	Entries []PresenceEntry `json:"entries"`
}

// HoursEntry is one row of GET /v1/hours.
type HoursEntry struct {
	IdentityID   int64   `json:"identity_id"`
	Name         string  `json:"name,omitempty"`
	Date         string  `json:"date"`
	WorkedHours  float64 `json:"worked_hours"`
	OutsideHours float64 `json:"outside_hours"`
	LastStatus   string  `json:"last_status"`
}

type HoursResponse struct {
	Date    string       `json:"date"`
	Entries []HoursEntry `json:"entries"`
}

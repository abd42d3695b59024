// Package hours derives per-day working time from an attendance event log.
// The numbers must match whatever the backend computes from the same log, so
// the rules here mirror the event semantics of the presence state machine:
// worked time counts closed IN/OUT pairs only, and time outside is the
// complement within the observed window.
package hours

import (
	"sort"
	"time"

	"github.com/your-org/kiosk/internal/backend"
	"github.com/your-org/kiosk/internal/models"
)

// Summary is the derived working time for one identity on one day.
type Summary struct {
	Worked  time.Duration
	Outside time.Duration
	// Open is set when the log ends on a dangling IN: the identity is still
	// present (or the terminal stopped mid-presence). The open interval
	// contributes nothing to Worked until it is closed.
	Open       bool
	LastStatus models.EventStatus
}

// Event is the minimal input the calculator needs.
type Event struct {
	Timestamp time.Time
	Status    models.EventStatus
}

// Summarize computes worked and outside time from one identity's events for
// one day. Events are sorted chronologically first, so recomputing from the
// same log always yields the same result. now bounds the observed window
// when the log ends on a dangling IN; a zero now clamps the window at the
// last event instead.
func Summarize(events []Event, now time.Time) Summary {
	var s Summary
	if len(events) == 0 {
		return s
	}

	sorted := make([]Event, len(events))
	copy(sorted, events)
	sort.Slice(sorted, func(i, j int) bool {
		return sorted[i].Timestamp.Before(sorted[j].Timestamp)
	})

	var firstIn, openIn time.Time
	for _, ev := range sorted {
		s.LastStatus = ev.Status
		switch ev.Status {
		case models.StatusIn:
			if firstIn.IsZero() {
				firstIn = ev.Timestamp
			}
			if openIn.IsZero() {
				openIn = ev.Timestamp
			}
		case models.StatusOut:
			if !openIn.IsZero() {
				s.Worked += ev.Timestamp.Sub(openIn)
				openIn = time.Time{}
			}
		}
	}

	if firstIn.IsZero() {
		return s // no IN observed: no window
	}

	end := sorted[len(sorted)-1].Timestamp
	if !openIn.IsZero() {
		s.Open = true
		if !now.IsZero() && now.After(end) {
			end = now
		}
	}

	window := end.Sub(firstIn)
	if out := window - s.Worked; out > 0 {
		s.Outside = out
	}
	return s
}

// SummarizeDay groups a full day's event log by identity and derives one
// DayHoursSummary per identity, ordered by identity ID.
func SummarizeDay(records []backend.EventRecord, date string, now time.Time) []models.DayHoursSummary {
	byID := make(map[int64][]Event)
	names := make(map[int64]string)
	for _, r := range records {
		byID[r.IdentityID] = append(byID[r.IdentityID], Event{Timestamp: r.Timestamp, Status: r.Status})
		if r.Name != "" {
			names[r.IdentityID] = r.Name
		}
	}

	ids := make([]int64, 0, len(byID))
	for id := range byID {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	out := make([]models.DayHoursSummary, 0, len(ids))
	for _, id := range ids {
		s := Summarize(byID[id], now)
		out = append(out, models.DayHoursSummary{
			IdentityID:   id,
			Name:         names[id],
			Date:         date,
			WorkedHours:  roundHours(s.Worked),
			OutsideHours: roundHours(s.Outside),
			LastStatus:   s.LastStatus,
		})
	}
	return out
}

// roundHours converts a duration to hours with two decimal places, matching
// the dashboard's display precision.
func roundHours(d time.Duration) float64 {
	return float64(int64(d.Hours()*100+0.5)) / 100
}

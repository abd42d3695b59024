package presence

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/your-org/kiosk/internal/models"
)

// Config carries the presence policy constants. All of them are tunable; the
// defaults live in the config package.
type Config struct {
	// DebounceWindow is the minimum gap between two state-changing events for
	// the same identity. A sighting inside the window is a continuation of
	// the same presence: no event, and the window is NOT extended.
	DebounceWindow time.Duration
	// MinVisible is the confirmation dwell: an identity must be continuously
	// visible this long before a sighting is confirmed. Zero disables the
	// dwell and every recognized sighting is confirmed immediately.
	MinVisible time.Duration
	// Location defines the local calendar day. State resets at local
	// midnight; a record from a previous day is never matched against a new
	// day's sighting.
	Location *time.Location
}

// record is the per-identity presence state for the current day.
// UNSET is represented by an empty status.
type record struct {
	day          civilDate
	status       models.EventStatus
	lastEvent    time.Time
	visibleSince time.Time
	lastSeen     time.Time
}

type civilDate struct {
	year  int
	month time.Month
	day   int
}

func dateOf(t time.Time, loc *time.Location) civilDate {
	y, m, d := t.In(loc).Date()
	return civilDate{y, m, d}
}

// Entry is a read-only view of one identity's presence state.
type Entry struct {
	IdentityID    int64              `json:"identity_id"`
	Status        models.EventStatus `json:"status"`
	LastEventTime time.Time          `json:"last_event_time"`
}

// Table is the presence state machine: per-identity IN/OUT state driving the
// dwell, debounce and toggle logic. All access is serialized by a single
// mutex so two frames observing the same identity cannot race to both decide
// a toggle.
type Table struct {
	mu      sync.Mutex
	cfg     Config
	records map[int64]*record
}

func NewTable(cfg Config) *Table {
	if cfg.Location == nil {
		cfg.Location = time.UTC
	}
	return &Table{cfg: cfg, records: make(map[int64]*record)}
}

// Observe registers a recognized sighting of identity id at time now and
// decides whether it produces an attendance event.
//
// Decision order:
//  1. a record from a previous calendar day is discarded (fresh UNSET);
//  2. the sighting must complete the confirmation dwell;
//  3. first confirmed sighting of the day emits IN;
//  4. a confirmed sighting inside the debounce window is suppressed without
//     advancing the window;
//  5. otherwise the status flips and an event of the new status is emitted.
func (t *Table) Observe(id int64, now time.Time) (models.AttendanceEvent, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	today := dateOf(now, t.cfg.Location)

	rec, ok := t.records[id]
	if !ok || rec.day != today {
		rec = &record{day: today}
		t.records[id] = rec
	}

	// Visibility streak: broken when the identity was unseen for longer than
	// the dwell itself.
	if rec.visibleSince.IsZero() || now.Sub(rec.lastSeen) > t.cfg.MinVisible {
		rec.visibleSince = now
	}
	rec.lastSeen = now

	if now.Sub(rec.visibleSince) < t.cfg.MinVisible {
		return models.AttendanceEvent{}, false // not yet confirmed
	}

	if rec.status == "" {
		return t.emit(rec, id, models.StatusIn, now), true
	}

	if now.Sub(rec.lastEvent) < t.cfg.DebounceWindow {
		// Lingering face: same presence. lastEvent is deliberately left
		// untouched so a face that never leaves frame still toggles once
		// the window elapses.
		return models.AttendanceEvent{}, false
	}

	return t.emit(rec, id, rec.status.Opposite(), now), true
}

func (t *Table) emit(rec *record, id int64, status models.EventStatus, now time.Time) models.AttendanceEvent {
	rec.status = status
	rec.lastEvent = now
	rec.visibleSince = time.Time{} // next toggle requires a fresh dwell
	return models.AttendanceEvent{
		EventID:    uuid.New(),
		IdentityID: id,
		Timestamp:  now,
		Status:     status,
	}
}

// Snapshot returns the presence entries for the given day, for the local
// /v1/presence surface. Records from other days are omitted.
func (t *Table) Snapshot(now time.Time) []Entry {
	t.mu.Lock()
	defer t.mu.Unlock()

	today := dateOf(now, t.cfg.Location)
	entries := make([]Entry, 0, len(t.records))
	for id, rec := range t.records {
		if rec.day != today || rec.status == "" {
			continue
		}
		entries = append(entries, Entry{
			IdentityID:    id,
			Status:        rec.status,
			LastEventTime: rec.lastEvent,
		})
	}
	return entries
}

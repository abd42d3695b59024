package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/your-org/kiosk/internal/backend"
	"github.com/your-org/kiosk/internal/hours"
	"github.com/your-org/kiosk/internal/presence"
	"github.com/your-org/kiosk/internal/roster"
	"github.com/your-org/kiosk/pkg/dto"
)

// AttendanceHandler serves the terminal's read-only attendance surfaces:
// the live presence table and the derived-hours query.
type AttendanceHandler struct {
	presence *presence.Table
	roster   *roster.Cache
	backend  *backend.Client
	loc      *time.Location
}

func NewAttendanceHandler(p *presence.Table, r *roster.Cache, b *backend.Client, loc *time.Location) *AttendanceHandler {
	return &AttendanceHandler{presence: p, roster: r, backend: b, loc: loc}
}

// Presence returns today's in-memory presence table.
func (h *AttendanceHandler) Presence(c *gin.Context) {
	now := time.Now().In(h.loc)
	snap := h.roster.Snapshot()

	entries := h.presence.Snapshot(now)
	out := make([]dto.PresenceEntry, 0, len(entries))
	for _, e := range entries {
		out = append(out, dto.PresenceEntry{
			IdentityID:    e.IdentityID,
			Name:          snap.Name(e.IdentityID),
			Status:        string(e.Status),
			LastEventTime: e.LastEventTime.In(h.loc).Format(time.RFC3339),
		})
	}

	c.JSON(http.StatusOK, dto.PresenceResponse{
		Date:    now.Format("2006-01-02"),
		Entries: out,
	})
}

// Hours computes per-identity worked and outside time for one day from the
// backend event log. Defaults to today.
func (h *AttendanceHandler) Hours(c *gin.Context) {
	now := time.Now().In(h.loc)

	date := c.Query("date")
	if date == "" {
		date = now.Format("2006-01-02")
	} else if _, err := time.ParseInLocation("2006-01-02", date, h.loc); err != nil {
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": "invalid date format, want YYYY-MM-DD"})
		return
	}

	records, err := h.backend.FetchEvents(c.Request.Context(), date)
	if err != nil {
		c.JSON(http.StatusBadGateway, gin.H{"error": err.Error()})
		return
	}

	summaries := hours.SummarizeDay(records, date, now)
	out := make([]dto.HoursEntry, 0, len(summaries))
	for _, s := range summaries {
		out = append(out, dto.HoursEntry{
			IdentityID:   s.IdentityID,
			Name:         s.Name,
			Date:         s.Date,
			WorkedHours:  s.WorkedHours,
			OutsideHours: s.OutsideHours,
			LastStatus:   string(s.LastStatus),
		})
	}

	c.JSON(http.StatusOK, dto.HoursResponse{Date: date, Entries: out})
}

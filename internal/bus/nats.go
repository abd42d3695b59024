// Package bus connects the terminal to an optional NATS broker: confirmed
// attendance decisions are published for dashboard consumers, and the
// backend can nudge an out-of-band roster refresh after an enrollment.
// Plain core NATS only; the terminal keeps no durable queue.
package bus

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/your-org/kiosk/internal/models"
)

const (
	DecisionSubjectBase  = "attendance.events"
	RosterRefreshSubject = "attendance.roster.refresh"
)

type Bus struct {
	nc *nats.Conn
}

func Connect(natsURL string) (*Bus, error) {
	nc, err := nats.Connect(natsURL,
		nats.RetryOnFailedConnect(true),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2*time.Second),
	)
	if err != nil {
		return nil, fmt.Errorf("connect to nats: %w", err)
	}
	return &Bus{nc: nc}, nil
}

// PublishDecision publishes one confirmed event, fire and forget. A
// disconnected broker is not an error worth surfacing: the reporter path is
// the authoritative delivery channel.
func (b *Bus) PublishDecision(ev models.AttendanceEvent) {
	payload, err := json.Marshal(ev)
	if err != nil {
		slog.Error("marshal decision", "error", err)
		return
	}

	subject := fmt.Sprintf("%s.%d", DecisionSubjectBase, ev.IdentityID)
	if err := b.nc.Publish(subject, payload); err != nil {
		slog.Debug("publish decision", "error", err)
	}
}

// SubscribeRosterRefresh invokes fn whenever a refresh nudge arrives.
func (b *Bus) SubscribeRosterRefresh(fn func()) error {
	_, err := b.nc.Subscribe(RosterRefreshSubject, func(_ *nats.Msg) {
		slog.Info("roster refresh requested via bus")
		fn()
	})
	if err != nil {
		return fmt.Errorf("subscribe roster refresh: %w", err)
	}
	return nil
}

func (b *Bus) Ping() error {
	if !b.nc.IsConnected() {
		return fmt.Errorf("nats not connected")
	}
	return nil
}

func (b *Bus) Close() {
	b.nc.Close()
}

package report

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/your-org/kiosk/internal/backend"
	"github.com/your-org/kiosk/internal/models"
	"github.com/your-org/kiosk/internal/observability"
)

// Sender posts one attendance event to the backend collaborator.
type Sender interface {
	PostEvent(ctx context.Context, ev models.AttendanceEvent) error
}

// Reporter delivers confirmed attendance events to the backend. Delivery is
// asynchronous: an event is decided the instant the state machine flips,
// so Report never blocks the capture loop. On transient failure the event
// stays in a bounded in-memory queue and is retried with backoff, then again
// whenever Flush is triggered (the roster cache calls it after every
// successful refresh). Overflow evicts the oldest event and surfaces a
// data-loss warning; the terminal has no durable local storage.
type Reporter struct {
	sender      Sender
	maxAttempts int
	baseBackoff time.Duration
	capacity    int

	mu      sync.Mutex
	pending []models.AttendanceEvent

	kick chan struct{}
}

type Options struct {
	MaxAttempts   int
	BaseBackoff   time.Duration
	QueueCapacity int
}

func New(sender Sender, opts Options) *Reporter {
	return &Reporter{
		sender:      sender,
		maxAttempts: opts.MaxAttempts,
		baseBackoff: opts.BaseBackoff,
		capacity:    opts.QueueCapacity,
		kick:        make(chan struct{}, 1),
	}
}

// Report enqueues an event for delivery. Never blocks and never drops the
// new event: if the queue is full the oldest entry is evicted instead.
func (r *Reporter) Report(ev models.AttendanceEvent) {
	r.mu.Lock()
	if len(r.pending) >= r.capacity {
		dropped := r.pending[0]
		r.pending = r.pending[1:]
		observability.EventsDropped.Inc()
		slog.Warn("report queue overflow, evicting oldest event",
			"event_id", dropped.EventID,
			"identity_id", dropped.IdentityID,
			"status", dropped.Status,
		)
	}
	r.pending = append(r.pending, ev)
	depth := len(r.pending)
	r.mu.Unlock()

	observability.ReporterQueueDepth.Set(float64(depth))
	r.signal()
}

// Flush asks the delivery loop to retry whatever is queued.
func (r *Reporter) Flush() {
	r.signal()
}

// QueueDepth returns the number of undelivered events.
func (r *Reporter) QueueDepth() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.pending)
}

func (r *Reporter) signal() {
	select {
	case r.kick <- struct{}{}:
	default:
	}
}

// Run is the delivery loop. It drains the queue head-first; when an event
// still fails after the bounded attempts it stays queued and the loop waits
// for the next signal rather than hammering the backend.
func (r *Reporter) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-r.kick:
		}
		r.drain(ctx)
	}
}

// drain delivers queued events in order until the queue is empty or the
// backend stays unreachable.
func (r *Reporter) drain(ctx context.Context) {
	for {
		r.mu.Lock()
		if len(r.pending) == 0 {
			r.mu.Unlock()
			observability.ReporterQueueDepth.Set(0)
			return
		}
		ev := r.pending[0]
		r.mu.Unlock()

		err := r.deliver(ctx, ev)
		if err != nil && !errors.Is(err, backend.ErrRejected) {
			return // transient: keep queued, wait for next signal
		}
		if errors.Is(err, backend.ErrRejected) {
			slog.Error("backend rejected event, discarding",
				"event_id", ev.EventID, "error", err)
		}

		r.mu.Lock()
		// The head may have been evicted by an overflow while we were
		// sending; only pop if it is still the same event.
		if len(r.pending) > 0 && r.pending[0].EventID == ev.EventID {
			r.pending = r.pending[1:]
		}
		depth := len(r.pending)
		r.mu.Unlock()
		observability.ReporterQueueDepth.Set(float64(depth))
	}
}

// deliver tries one event with bounded exponential backoff: 1s, 2s, 4s...
// capped at 8x the base.
func (r *Reporter) deliver(ctx context.Context, ev models.AttendanceEvent) error {
	var err error
	for attempt := 0; attempt < r.maxAttempts; attempt++ {
		if attempt > 0 {
			delay := r.baseBackoff << uint(attempt-1)
			if max := r.baseBackoff * 8; delay > max {
				delay = max
			}
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(delay):
			}
		}

		err = r.sender.PostEvent(ctx, ev)
		if err == nil {
			observability.ReportAttempts.WithLabelValues("ok").Inc()
			slog.Info("event reported",
				"event_id", ev.EventID,
				"identity_id", ev.IdentityID,
				"status", ev.Status,
			)
			return nil
		}
		if errors.Is(err, backend.ErrRejected) {
			observability.ReportAttempts.WithLabelValues("rejected").Inc()
			return err
		}
		observability.ReportAttempts.WithLabelValues("error").Inc()
		slog.Warn("event report failed",
			"event_id", ev.EventID, "attempt", attempt+1, "error", err)
	}
	return err
}

// Drain flushes the queue with a bounded grace period, for shutdown.
// Whatever cannot be delivered in time is lost and logged as such.
func (r *Reporter) Drain(grace time.Duration) {
	ctx, cancel := context.WithTimeout(context.Background(), grace)
	defer cancel()

	r.drain(ctx)

	if left := r.QueueDepth(); left > 0 {
		slog.Warn("shutdown with undelivered events", "count", left)
	}
}

package report

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/your-org/kiosk/internal/backend"
	"github.com/your-org/kiosk/internal/models"
)

// fakeSender scripts PostEvent outcomes: it pops one error per call until the
// script is exhausted, then succeeds.
type fakeSender struct {
	mu        sync.Mutex
	script    []error
	delivered []models.AttendanceEvent
}

func (f *fakeSender) PostEvent(_ context.Context, ev models.AttendanceEvent) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.script) > 0 {
		err := f.script[0]
		f.script = f.script[1:]
		if err != nil {
			return err
		}
	}
	f.delivered = append(f.delivered, ev)
	return nil
}

func (f *fakeSender) deliveredEvents() []models.AttendanceEvent {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]models.AttendanceEvent, len(f.delivered))
	copy(out, f.delivered)
	return out
}

func testEvent(id int64) models.AttendanceEvent {
	return models.AttendanceEvent{
		EventID:    uuid.New(),
		IdentityID: id,
		Timestamp:  time.Now(),
		Status:     models.StatusIn,
	}
}

func newTestReporter(s Sender, capacity int) *Reporter {
	return New(s, Options{
		MaxAttempts:   3,
		BaseBackoff:   time.Millisecond,
		QueueCapacity: capacity,
	})
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("condition not met in time")
}

func TestDeliversExactlyOnceAfterTransientFailures(t *testing.T) {
	sender := &fakeSender{script: []error{
		errors.New("connection refused"),
		errors.New("connection refused"),
	}}
	r := newTestReporter(sender, 8)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go r.Run(ctx)

	ev := testEvent(1)
	r.Report(ev)

	waitFor(t, func() bool { return r.QueueDepth() == 0 })

	delivered := sender.deliveredEvents()
	require.Len(t, delivered, 1)
	assert.Equal(t, ev.EventID, delivered[0].EventID)
}

func TestRejectedEventIsDiscarded(t *testing.T) {
	sender := &fakeSender{script: []error{
		fmt.Errorf("%w: status 422", backend.ErrRejected),
	}}
	r := newTestReporter(sender, 8)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go r.Run(ctx)

	r.Report(testEvent(1))
	good := testEvent(2)
	r.Report(good)

	waitFor(t, func() bool { return r.QueueDepth() == 0 })

	// The rejected event never delivers; the next one does.
	delivered := sender.deliveredEvents()
	require.Len(t, delivered, 1)
	assert.Equal(t, good.EventID, delivered[0].EventID)
}

func TestPersistentFailureKeepsEventQueued(t *testing.T) {
	sender := &fakeSender{script: []error{
		errors.New("down"), errors.New("down"), errors.New("down"),
		errors.New("down"), errors.New("down"), errors.New("down"),
	}}
	r := newTestReporter(sender, 8)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go r.Run(ctx)

	ev := testEvent(1)
	r.Report(ev)

	// Three attempts exhausted, event stays queued.
	waitFor(t, func() bool {
		sender.mu.Lock()
		defer sender.mu.Unlock()
		return len(sender.script) == 3
	})
	assert.Equal(t, 1, r.QueueDepth())

	// A flush retries; the remaining scripted failures exhaust and then the
	// next flush succeeds.
	r.Flush()
	waitFor(t, func() bool {
		sender.mu.Lock()
		defer sender.mu.Unlock()
		return len(sender.script) == 0
	})

	r.Flush()
	waitFor(t, func() bool { return r.QueueDepth() == 0 })

	delivered := sender.deliveredEvents()
	require.Len(t, delivered, 1)
	assert.Equal(t, ev.EventID, delivered[0].EventID)
}

func TestOverflowEvictsOldest(t *testing.T) {
	// No Run loop: events pile up.
	r := newTestReporter(&fakeSender{}, 3)

	events := make([]models.AttendanceEvent, 5)
	for i := range events {
		events[i] = testEvent(int64(i))
		r.Report(events[i])
	}

	assert.Equal(t, 3, r.QueueDepth())

	r.mu.Lock()
	defer r.mu.Unlock()
	require.Len(t, r.pending, 3)
	// Oldest two were evicted; the newest three remain in order.
	assert.Equal(t, events[2].EventID, r.pending[0].EventID)
	assert.Equal(t, events[4].EventID, r.pending[2].EventID)
}

func TestDrainFlushesWithinGrace(t *testing.T) {
	sender := &fakeSender{}
	r := newTestReporter(sender, 8)

	for i := 0; i < 4; i++ {
		r.Report(testEvent(int64(i)))
	}

	r.Drain(time.Second)

	assert.Equal(t, 0, r.QueueDepth())
	assert.Len(t, sender.deliveredEvents(), 4)
}

func TestDrainGivesUpWhenBackendStaysDown(t *testing.T) {
	sender := &fakeSender{script: []error{
		errors.New("down"), errors.New("down"), errors.New("down"),
	}}
	r := newTestReporter(sender, 8)

	r.Report(testEvent(1))
	r.Drain(200 * time.Millisecond)

	assert.Equal(t, 1, r.QueueDepth())
	assert.Empty(t, sender.deliveredEvents())
}

func TestDeliveryPreservesOrder(t *testing.T) {
	sender := &fakeSender{}
	r := newTestReporter(sender, 8)

	events := make([]models.AttendanceEvent, 4)
	for i := range events {
		events[i] = testEvent(int64(i))
		r.Report(events[i])
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go r.Run(ctx)
	r.Flush()

	waitFor(t, func() bool { return r.QueueDepth() == 0 })

	delivered := sender.deliveredEvents()
	require.Len(t, delivered, 4)
	for i, ev := range events {
		assert.Equal(t, ev.EventID, delivered[i].EventID)
	}
}

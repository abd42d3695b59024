// Package terminal runs the door-camera capture loop:
// frame → detect/encode → match → presence decision → report.
// Roster refresh and control polling run as independent periodic tasks; they
// share state with the loop only through the roster snapshot and the cached
// control state, never by blocking it.
package terminal

import (
	"bytes"
	"context"
	"errors"
	"image/jpeg"
	"log/slog"
	"time"

	"github.com/your-org/kiosk/internal/api/ws"
	"github.com/your-org/kiosk/internal/bus"
	"github.com/your-org/kiosk/internal/capture"
	"github.com/your-org/kiosk/internal/config"
	"github.com/your-org/kiosk/internal/control"
	"github.com/your-org/kiosk/internal/match"
	"github.com/your-org/kiosk/internal/observability"
	"github.com/your-org/kiosk/internal/presence"
	"github.com/your-org/kiosk/internal/report"
	"github.com/your-org/kiosk/internal/roster"
	"github.com/your-org/kiosk/internal/vision"
)

// frameSource is one capture session: it feeds frames to the callback until
// the callback asks to stop or the source fails.
type frameSource interface {
	Run(ctx context.Context, fn capture.FrameFunc) error
}

type Terminal struct {
	cfg      config.CameraConfig
	encoder  vision.Encoder
	matcher  match.Matcher
	roster   *roster.Cache
	presence *presence.Table
	reporter *report.Reporter
	control  *control.Poller
	hub      *ws.Hub
	bus      *bus.Bus // nil when no broker is configured

	newSource     func() frameSource
	reacquireBase time.Duration
}

func New(
	cfg config.CameraConfig,
	encoder vision.Encoder,
	matcher match.Matcher,
	rosterCache *roster.Cache,
	table *presence.Table,
	reporter *report.Reporter,
	poller *control.Poller,
	hub *ws.Hub,
	b *bus.Bus,
) *Terminal {
	return &Terminal{
		cfg:      cfg,
		encoder:  encoder,
		matcher:  matcher,
		roster:   rosterCache,
		presence: table,
		reporter: reporter,
		control:  poller,
		hub:      hub,
		bus:      b,
		newSource: func() frameSource {
			return &capture.Camera{
				Device: cfg.Device,
				FPS:    cfg.FPS,
				Width:  cfg.Width,
			}
		},
		reacquireBase: time.Second,
	}
}

// Run drives the capture loop until the context is cancelled, shutdown is
// commanded, or the camera fails beyond reacquisition. Pause stops the
// camera session; the loop idles until a later run command and then
// reacquires without a restart.
func (t *Terminal) Run(ctx context.Context) error {
	failures := 0

	for {
		if ctx.Err() != nil {
			return nil
		}

		switch t.control.State() {
		case control.Stopped:
			return nil

		case control.Paused:
			select {
			case <-ctx.Done():
				return nil
			case <-time.After(250 * time.Millisecond):
			}
			continue

		case control.Running:
		}

		cam := t.newSource()

		slog.Info("starting capture", "device", t.cfg.Device, "fps", t.cfg.FPS)
		sawFrames := false
		err := cam.Run(ctx, func(frameData []byte) error {
			sawFrames = true
			return t.handleFrame(ctx, frameData)
		})

		// A session that delivered frames was a recovery: the reacquisition
		// bound applies to consecutive failed attempts, not to the lifetime
		// of the terminal.
		if sawFrames {
			failures = 0
		}

		if errors.Is(err, capture.ErrStopCapture) || ctx.Err() != nil {
			continue // pause or shutdown; the state switch decides what next
		}

		// Camera failure: back off and reacquire.
		failures++
		observability.CameraRestarts.Inc()
		if failures > t.cfg.MaxReacquire {
			slog.Error("camera failed beyond reacquisition limit",
				"attempts", failures, "error", err)
			return err
		}

		delay := time.Duration(1<<uint(min(failures, 4))) * t.reacquireBase
		slog.Warn("camera lost, reacquiring",
			"attempt", failures, "delay", delay, "error", err)
		select {
		case <-ctx.Done():
			return nil
		case <-time.After(delay):
		}
	}
}

// handleFrame processes one captured JPEG frame. A frame that fails to
// decode is skipped; only control transitions end the session.
func (t *Terminal) handleFrame(ctx context.Context, frameData []byte) error {
	if ctx.Err() != nil || t.control.State() != control.Running {
		return capture.ErrStopCapture
	}

	observability.FramesProcessed.Inc()

	img, err := jpeg.Decode(bytes.NewReader(frameData))
	if err != nil {
		slog.Warn("decode frame", "error", err)
		return nil
	}

	faces, err := t.encoder.DetectAndEncode(img)
	if err != nil {
		slog.Warn("detect and encode", "error", err)
		return nil
	}
	if len(faces) == 0 {
		return nil // no faces: a normal outcome, not an error
	}
	observability.FacesDetected.Add(float64(len(faces)))

	snap := t.roster.Snapshot()
	now := time.Now()

	for _, face := range faces {
		res := t.matcher.Match(face.Embedding, snap)
		if !res.Known {
			observability.FacesUnknown.Inc()
			continue
		}

		observability.FacesMatched.Inc()
		if res.Ambiguous {
			observability.AmbiguousMatches.Inc()
			slog.Warn("low-confidence match: multiple identities within epsilon",
				"identity_id", res.IdentityID, "distance", res.Distance)
		}

		ev, emitted := t.presence.Observe(res.IdentityID, now)
		if !emitted {
			observability.SightingsSuppressed.Inc()
			continue
		}

		ev.Name = res.Name
		observability.EventsEmitted.WithLabelValues(string(ev.Status)).Inc()
		slog.Info("attendance decision",
			"identity_id", ev.IdentityID,
			"name", ev.Name,
			"status", ev.Status,
			"distance", res.Distance,
		)

		// The event is decided here; delivery is asynchronous.
		t.reporter.Report(ev)
		t.hub.BroadcastDecision(ev)
		if t.bus != nil {
			t.bus.PublishDecision(ev)
		}
	}

	return nil
}

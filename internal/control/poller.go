package control

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/your-org/kiosk/internal/models"
	"github.com/your-org/kiosk/internal/observability"
)

// State is the terminal's control state derived from backend commands.
type State int32

const (
	Running State = iota
	Paused
	Stopped // terminal state, reached only via shutdown
)

func (s State) String() string {
	switch s {
	case Running:
		return "running"
	case Paused:
		return "paused"
	case Stopped:
		return "stopped"
	}
	return "unknown"
}

// Fetcher is the backend capability the poller depends on.
type Fetcher interface {
	FetchControl(ctx context.Context) (models.ControlCommand, error)
}

// Poller periodically reads the backend control command and caches the last
// known value. Poll failures are transient: the cached state stands and the
// next tick retries. Polling continues while paused so a later "run" can
// resume the capture loop without a restart.
type Poller struct {
	fetcher  Fetcher
	interval time.Duration

	mu    sync.RWMutex
	state State

	stopOnce sync.Once
	stopped  chan struct{}
}

func NewPoller(fetcher Fetcher, interval time.Duration) *Poller {
	return &Poller{
		fetcher:  fetcher,
		interval: interval,
		state:    Running, // "run" is the default command
		stopped:  make(chan struct{}),
	}
}

// State returns the last known control state.
func (p *Poller) State() State {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.state
}

// Done is closed once a shutdown command has been observed.
func (p *Poller) Done() <-chan struct{} {
	return p.stopped
}

// Apply transitions the state machine on a command. Stopped is terminal:
// commands observed after shutdown are ignored.
func (p *Poller) Apply(cmd models.ControlCommand) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.state == Stopped {
		return
	}

	switch cmd {
	case models.CommandRun:
		if p.state == Paused {
			slog.Info("terminal resumed by admin")
		}
		p.state = Running
	case models.CommandPause:
		if p.state == Running {
			slog.Info("terminal paused by admin")
		}
		p.state = Paused
	case models.CommandShutdown:
		slog.Info("shutdown requested by admin")
		p.state = Stopped
		p.stopOnce.Do(func() { close(p.stopped) })
	}

	observability.ControlState.Set(float64(p.state))
}

// Run polls on the configured interval until the context is cancelled or a
// shutdown command arrives.
func (p *Poller) Run(ctx context.Context) {
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-p.stopped:
			return
		case <-ticker.C:
			cmd, err := p.fetcher.FetchControl(ctx)
			if err != nil {
				slog.Debug("control poll failed", "error", err)
				continue
			}
			p.Apply(cmd)
		}
	}
}

package control

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/your-org/kiosk/internal/models"
)

// scriptedFetcher returns commands in order, repeating the last one.
type scriptedFetcher struct {
	mu   sync.Mutex
	cmds []models.ControlCommand
	err  error
}

func (f *scriptedFetcher) FetchControl(context.Context) (models.ControlCommand, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return "", f.err
	}
	cmd := f.cmds[0]
	if len(f.cmds) > 1 {
		f.cmds = f.cmds[1:]
	}
	return cmd, nil
}

func TestApplyTransitions(t *testing.T) {
	tests := []struct {
		name string
		cmds []models.ControlCommand
		want State
	}{
		{"default is running", nil, Running},
		{"pause", []models.ControlCommand{models.CommandPause}, Paused},
		{"pause then resume", []models.ControlCommand{models.CommandPause, models.CommandRun}, Running},
		{"shutdown", []models.ControlCommand{models.CommandShutdown}, Stopped},
		{"run is idempotent", []models.ControlCommand{models.CommandRun, models.CommandRun}, Running},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := NewPoller(nil, time.Second)
			for _, cmd := range tt.cmds {
				p.Apply(cmd)
			}
			assert.Equal(t, tt.want, p.State())
		})
	}
}

func TestStoppedIsTerminal(t *testing.T) {
	p := NewPoller(nil, time.Second)
	p.Apply(models.CommandShutdown)
	require.Equal(t, Stopped, p.State())

	p.Apply(models.CommandRun)
	assert.Equal(t, Stopped, p.State())
	p.Apply(models.CommandPause)
	assert.Equal(t, Stopped, p.State())
}

func TestDoneClosesOnShutdown(t *testing.T) {
	p := NewPoller(nil, time.Second)

	select {
	case <-p.Done():
		t.Fatal("done closed before shutdown")
	default:
	}

	p.Apply(models.CommandShutdown)
	// Repeating the command must not panic on a double close.
	p.Apply(models.CommandShutdown)

	select {
	case <-p.Done():
	case <-time.After(time.Second):
		t.Fatal("done not closed after shutdown")
	}
}

func TestRunFollowsBackendCommands(t *testing.T) {
	fetcher := &scriptedFetcher{cmds: []models.ControlCommand{
		models.CommandPause,
		models.CommandRun,
		models.CommandShutdown,
	}}
	p := NewPoller(fetcher, 5*time.Millisecond)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	done := make(chan struct{})
	go func() {
		p.Run(ctx)
		close(done)
	}()

	select {
	case <-p.Done():
	case <-ctx.Done():
		t.Fatal("shutdown command never observed")
	}
	<-done
	assert.Equal(t, Stopped, p.State())
}

func TestPollFailureKeepsCachedState(t *testing.T) {
	fetcher := &scriptedFetcher{err: errors.New("backend unreachable")}
	p := NewPoller(fetcher, 5*time.Millisecond)
	p.Apply(models.CommandPause)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	p.Run(ctx)

	assert.Equal(t, Paused, p.State())
}

func TestStateString(t *testing.T) {
	assert.Equal(t, "running", Running.String())
	assert.Equal(t, "paused", Paused.String())
	assert.Equal(t, "stopped", Stopped.String())
}

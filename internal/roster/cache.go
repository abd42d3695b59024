package roster

import (
	"context"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/your-org/kiosk/internal/models"
	"github.com/your-org/kiosk/internal/observability"
)

// Fetcher is the backend capability the cache depends on.
type Fetcher interface {
	FetchRoster(ctx context.Context) ([]models.Identity, error)
}

// Snapshot is an immutable view of the roster for the matcher to scan.
// Identities are sorted by ascending ID so scan order is deterministic.
type Snapshot struct {
	Identities []models.Identity
	FetchedAt  time.Time
}

// Name resolves an identity ID to its enrolled name, or "" if absent.
func (s *Snapshot) Name(id int64) string {
	if s == nil {
		return ""
	}
	i := sort.Search(len(s.Identities), func(i int) bool {
		return s.Identities[i].ID >= id
	})
	if i < len(s.Identities) && s.Identities[i].ID == id {
		return s.Identities[i].Name
	}
	return ""
}

// Cache holds the terminal's read-only copy of the enrolled roster. Refresh
// atomically replaces the snapshot; on failure the previous snapshot is
// retained and the cache is flagged degraded. Deletion of an identity is
// eventual: stale entries survive until the next successful refresh.
type Cache struct {
	fetcher Fetcher

	mu       sync.RWMutex
	snap     *Snapshot
	degraded bool

	refreshCh chan struct{}
	onSuccess []func()
}

func NewCache(fetcher Fetcher) *Cache {
	return &Cache{
		fetcher:   fetcher,
		snap:      &Snapshot{},
		refreshCh: make(chan struct{}, 1),
	}
}

// OnRefreshSuccess registers a hook invoked after every successful refresh.
// The event reporter uses this to retry its local queue.
func (c *Cache) OnRefreshSuccess(fn func()) {
	c.onSuccess = append(c.onSuccess, fn)
}

// Refresh fetches the roster and atomically replaces the snapshot.
func (c *Cache) Refresh(ctx context.Context) error {
	identities, err := c.fetcher.FetchRoster(ctx)
	if err != nil {
		c.mu.Lock()
		c.degraded = true
		c.mu.Unlock()
		observability.RosterRefreshFailures.Inc()
		slog.Warn("roster refresh failed, keeping previous snapshot", "error", err)
		return err
	}

	sort.Slice(identities, func(i, j int) bool {
		return identities[i].ID < identities[j].ID
	})

	c.mu.Lock()
	c.snap = &Snapshot{Identities: identities, FetchedAt: time.Now()}
	c.degraded = false
	c.mu.Unlock()

	observability.RosterIdentities.Set(float64(len(identities)))
	slog.Info("roster refreshed", "identities", len(identities))

	for _, fn := range c.onSuccess {
		fn()
	}
	return nil
}

// Snapshot returns the current roster view. Never nil.
func (c *Cache) Snapshot() *Snapshot {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.snap
}

// Degraded reports whether the last refresh attempt failed.
func (c *Cache) Degraded() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.degraded
}

// TriggerRefresh requests an out-of-band refresh (e.g. after an enrollment
// notification). Coalesces if one is already pending.
func (c *Cache) TriggerRefresh() {
	select {
	case c.refreshCh <- struct{}{}:
	default:
	}
}

// Run refreshes the cache on the given interval and whenever TriggerRefresh
// is called, until the context is cancelled. Refresh failures never stop the
// loop.
func (c *Cache) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			_ = c.Refresh(ctx)
		case <-c.refreshCh:
			_ = c.Refresh(ctx)
		}
	}
}

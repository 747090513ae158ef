package listing

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Registry keeps the live list views of every browser session. A view is
// owned by the session that opened it and is disposed after sitting idle for
// the configured TTL.
type Registry struct {
	mu     sync.Mutex
	views  map[string]*registryEntry
	ttl    time.Duration
	now    func() time.Time
	logger *slog.Logger
}

type registryEntry struct {
	owner    string
	driver   Driver
	lastSeen time.Time
}

// NewRegistry constructs an empty registry.
func NewRegistry(ttl time.Duration, logger *slog.Logger) *Registry {
	if ttl <= 0 {
		ttl = 30 * time.Minute
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Registry{
		views:  make(map[string]*registryEntry),
		ttl:    ttl,
		now:    time.Now,
		logger: logger,
	}
}

// WithNow overrides the registry clock for testing.
func (r *Registry) WithNow(fn func() time.Time) {
	if fn != nil {
		r.now = fn
	}
}

// Open registers driver for owner and returns the new view id.
func (r *Registry) Open(owner string, driver Driver) string {
	id := uuid.NewString()
	r.mu.Lock()
	r.views[id] = &registryEntry{owner: owner, driver: driver, lastSeen: r.now()}
	r.mu.Unlock()
	return id
}

// Lookup returns the driver behind id when it belongs to owner.
func (r *Registry) Lookup(owner, id string) (Driver, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	entry, ok := r.views[id]
	if !ok || entry.owner != owner {
		return nil, ErrViewNotFound
	}
	entry.lastSeen = r.now()
	return entry.driver, nil
}

// Close disposes and forgets the view.
func (r *Registry) Close(owner, id string) error {
	r.mu.Lock()
	entry, ok := r.views[id]
	if !ok || entry.owner != owner {
		r.mu.Unlock()
		return ErrViewNotFound
	}
	delete(r.views, id)
	r.mu.Unlock()
	entry.driver.Dispose()
	return nil
}

// Len returns the number of live views.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.views)
}

// Sweep disposes views idle for longer than the TTL and returns how many
// were removed.
func (r *Registry) Sweep() int {
	cutoff := r.now().Add(-r.ttl)
	var expired []Driver
	r.mu.Lock()
	for id, entry := range r.views {
		if entry.lastSeen.Before(cutoff) {
			expired = append(expired, entry.driver)
			delete(r.views, id)
		}
	}
	r.mu.Unlock()
	for _, d := range expired {
		d.Dispose()
	}
	return len(expired)
}

// Run sweeps periodically until ctx is done, then disposes every view.
func (r *Registry) Run(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = time.Minute
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			r.Shutdown()
			return
		case <-ticker.C:
			if n := r.Sweep(); n > 0 {
				r.logger.Debug("expired list views", slog.Int("count", n))
			}
		}
	}
}

// Shutdown disposes every view.
func (r *Registry) Shutdown() {
	r.mu.Lock()
	views := r.views
	r.views = make(map[string]*registryEntry)
	r.mu.Unlock()
	for _, entry := range views {
		entry.driver.Dispose()
	}
}

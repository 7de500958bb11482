package configsource

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/user/button-relay/internal/adapter/metrics"
	"github.com/user/button-relay/internal/domain"
)

type tableKey struct {
	deviceID    string
	buttonIndex int
}

// Resolver serves per-button configuration from an in-memory snapshot of
// the full table, refreshed wholesale on TTL expiry. The table map is
// replaced atomically under the lock, never mutated in place, so readers
// never observe a partially-updated table. If a refresh fails but a stale
// table exists, the stale table is served with a warning; availability is
// favored over freshness for a low-frequency config.
type Resolver struct {
	source  domain.ConfigSource
	clock   clockwork.Clock
	ttl     time.Duration
	logger  *slog.Logger
	metrics *metrics.DeviceMetrics

	mu        sync.RWMutex
	table     map[tableKey]domain.ButtonConfig
	fetchedAt time.Time
}

// NewResolver creates a resolver over the given source. Pass nil metrics to
// disable instrumentation (e.g. in tests).
func NewResolver(source domain.ConfigSource, ttl time.Duration, clock clockwork.Clock, logger *slog.Logger, m *metrics.DeviceMetrics) *Resolver {
	return &Resolver{
		source:  source,
		clock:   clock,
		ttl:     ttl,
		logger:  logger.With("component", "config_resolver"),
		metrics: m,
	}
}

// Resolve returns the config snapshot for one physical button. Within the
// TTL window it answers from memory without a remote call; on expiry it
// fetches the full table exactly once even under concurrent callers.
func (r *Resolver) Resolve(ctx context.Context, deviceID string, buttonIndex int) (domain.ButtonConfig, error) {
	// 1. Fast path: fresh table under a read lock.
	r.mu.RLock()
	if r.table != nil && r.clock.Now().Before(r.fetchedAt.Add(r.ttl)) {
		cfg, ok := r.table[tableKey{deviceID, buttonIndex}]
		r.mu.RUnlock()
		if r.metrics != nil {
			r.metrics.CacheHits.Inc()
		}
		if !ok {
			return domain.ButtonConfig{}, fmt.Errorf("%w: device %s button %d", domain.ErrConfigNotFound, deviceID, buttonIndex)
		}
		return cfg, nil
	}
	r.mu.RUnlock()

	r.mu.Lock()
	defer r.mu.Unlock()

	// Double-check in case another goroutine refreshed while we waited for
	// the lock; this is what keeps expiry from causing a fetch storm.
	if r.table != nil && r.clock.Now().Before(r.fetchedAt.Add(r.ttl)) {
		return r.lookupLocked(deviceID, buttonIndex)
	}

	if r.metrics != nil {
		r.metrics.CacheMisses.Inc()
	}

	rows, err := r.source.FetchAll(ctx)
	if err != nil {
		if r.table != nil {
			if r.metrics != nil {
				r.metrics.CacheStaleServes.Inc()
			}
			r.logger.Warn("config refresh failed, serving stale table",
				"error", err, "table_age", r.clock.Now().Sub(r.fetchedAt).String())
			return r.lookupLocked(deviceID, buttonIndex)
		}
		return domain.ButtonConfig{}, fmt.Errorf("%w: %v", domain.ErrConfigSourceUnavailable, err)
	}

	table := make(map[tableKey]domain.ButtonConfig, len(rows))
	for _, row := range rows {
		table[tableKey{row.DeviceID, row.ButtonIndex}] = row
	}
	r.table = table
	r.fetchedAt = r.clock.Now()

	r.logger.Debug("config table refreshed", "rows", len(table))
	return r.lookupLocked(deviceID, buttonIndex)
}

// Invalidate drops the cached table so the next resolve refetches.
func (r *Resolver) Invalidate() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.fetchedAt = time.Time{}
}

func (r *Resolver) lookupLocked(deviceID string, buttonIndex int) (domain.ButtonConfig, error) {
	cfg, ok := r.table[tableKey{deviceID, buttonIndex}]
	if !ok {
		return domain.ButtonConfig{}, fmt.Errorf("%w: device %s button %d", domain.ErrConfigNotFound, deviceID, buttonIndex)
	}
	return cfg, nil
}

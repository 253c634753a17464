package pipeline

import (
	"context"
	"fmt"
	"sync"
	"time"

	"pipeboard/internal/crm"
	"pipeboard/internal/logging"

	"golang.org/x/sync/errgroup"
)

// DefaultCacheTTL is the snapshot staleness window.
const DefaultCacheTTL = 120 * time.Second

// Cache owns the current pipeline snapshot and decides when a fresh fetch is
// required. The snapshot is replaced wholesale by Load and swapped
// incrementally by the Store's optimistic mutations; no other writer exists.
type Cache struct {
	mu       sync.RWMutex
	gw       crm.Gateway
	registry *StageRegistry
	ttl      time.Duration
	snapshot *Snapshot
	lastErr  error
}

// NewCache creates a cache seeded with an empty, already-expired snapshot
// covering the registry's stages, so mutations work before the first load.
func NewCache(gw crm.Gateway, registry *StageRegistry, ttl time.Duration) *Cache {
	if ttl <= 0 {
		ttl = DefaultCacheTTL
	}
	return &Cache{
		gw:       gw,
		registry: registry,
		ttl:      ttl,
		snapshot: NewSnapshot(registry.Names()),
	}
}

// Snapshot returns the current snapshot without triggering a fetch.
func (c *Cache) Snapshot() *Snapshot {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.snapshot
}

// LastError returns the error recorded by the most recent failed load, or
// nil after a successful one.
func (c *Cache) LastError() error {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.lastErr
}

// SetTTL adjusts the staleness window (config hot-reload).
func (c *Cache) SetTTL(ttl time.Duration) {
	if ttl <= 0 {
		return
	}
	c.mu.Lock()
	c.ttl = ttl
	c.mu.Unlock()
}

// TTL returns the current staleness window.
func (c *Cache) TTL() time.Duration {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.ttl
}

// current reads the snapshot reference for a mutation to build on.
func (c *Cache) current() *Snapshot {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.snapshot
}

// swap publishes a snapshot. Used both to apply an optimistic mutation and
// to restore the pre-mutation reference on rollback; it is deliberately
// unconditional (last writer wins).
func (c *Cache) swap(s *Snapshot) {
	c.mu.Lock()
	c.snapshot = s
	c.mu.Unlock()
}

// Load returns the cached snapshot when it is inside the staleness window
// and force is false; no network call happens on that path. Otherwise it
// fetches leads and metrics concurrently, merges newly observed stage names
// into the registry, and replaces the snapshot wholesale. A failed fetch
// leaves the cache untouched, records the error, and returns it.
func (c *Cache) Load(ctx context.Context, force bool) (*Snapshot, error) {
	c.mu.RLock()
	cached, ttl := c.snapshot, c.ttl
	c.mu.RUnlock()

	if !force && !cached.Expired(ttl) {
		logging.CacheDebug("serving cached snapshot (age %v, ttl %v)", time.Since(cached.CachedAt), ttl)
		return cached, nil
	}

	timer := logging.StartTimer(logging.CategoryCache, "pipeline fetch")
	defer timer.Stop()

	var leadsEnv, metricsEnv *crm.Envelope
	eg, egCtx := errgroup.WithContext(ctx)
	eg.Go(func() error {
		env, err := c.gw.FetchLeads(egCtx)
		if err != nil {
			return fmt.Errorf("fetch leads: %w", err)
		}
		if err := env.Err(); err != nil {
			return fmt.Errorf("fetch leads: %w", err)
		}
		leadsEnv = env
		return nil
	})
	eg.Go(func() error {
		env, err := c.gw.FetchMetrics(egCtx)
		if err != nil {
			return fmt.Errorf("fetch metrics: %w", err)
		}
		if err := env.Err(); err != nil {
			return fmt.Errorf("fetch metrics: %w", err)
		}
		metricsEnv = env
		return nil
	})

	if err := eg.Wait(); err != nil {
		c.mu.Lock()
		c.lastErr = err
		c.mu.Unlock()
		logging.Get(logging.CategoryCache).Error("pipeline load failed: %v", err)
		return nil, err
	}

	leads, err := leadsEnv.DecodeLeads()
	if err != nil {
		c.recordError(err)
		return nil, err
	}
	metrics, err := metricsEnv.DecodeMetrics()
	if err != nil {
		c.recordError(err)
		return nil, err
	}

	// Monotonic union: every observed stage joins the registry, and every
	// registered stage keeps a list even when the server returned none for
	// it. Locally created empty columns survive a refresh this way.
	for stage := range leads {
		c.registry.Register(stage)
	}
	byStage := make(map[string][]*crm.Lead, c.registry.Len())
	for _, stage := range c.registry.Names() {
		if observed, ok := leads[stage]; ok {
			byStage[stage] = observed
		} else {
			byStage[stage] = []*crm.Lead{}
		}
	}

	now := time.Now()
	next := &Snapshot{
		LeadsByStage: byStage,
		Metrics:      metrics,
		LastUpdated:  now,
		CachedAt:     now,
	}

	c.mu.Lock()
	c.snapshot = next
	c.lastErr = nil
	c.mu.Unlock()

	logging.Cache("snapshot refreshed: %d leads across %d stages", next.TotalLeads(), len(byStage))
	return next, nil
}

func (c *Cache) recordError(err error) {
	c.mu.Lock()
	c.lastErr = err
	c.mu.Unlock()
}

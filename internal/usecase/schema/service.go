package schema

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/nxx-sync/nxx/internal/domain"
	domschema "github.com/nxx-sync/nxx/internal/domain/schema"
)

const defaultTTL = time.Minute

type entry struct {
	app     domschema.Application
	expires time.Time
}

// Registry resolves application schemas, caching loaded ones for a TTL.
// One Registry is built per process and shared by every component that needs schemas.
type Registry struct {
	repo       Repository
	ttl        time.Duration
	now        func() time.Time
	cacheTotal *prometheus.CounterVec

	mu      sync.RWMutex
	entries map[string]entry
}

// New creates a Registry. ttl <= 0 uses the default.
func New(repo Repository, ttl time.Duration) *Registry {
	if ttl <= 0 {
		ttl = defaultTTL
	}
	return &Registry{
		repo:    repo,
		ttl:     ttl,
		now:     time.Now,
		entries: make(map[string]entry),
	}
}

// WithCacheMetrics sets a counter vec with label "result" ("hit"/"miss").
func (r *Registry) WithCacheMetrics(cacheTotal *prometheus.CounterVec) *Registry {
	r.cacheTotal = cacheTotal
	return r
}

// WithClock replaces the time source.
func (r *Registry) WithClock(now func() time.Time) *Registry {
	r.now = now
	return r
}

// Register validates and stores the schema of appID.
func (r *Registry) Register(ctx context.Context, appID string, app domschema.Application) error {
	if appID == "" || strings.Contains(appID, ":") {
		return fmt.Errorf("application id %q: %w", appID, domain.ErrInvalidSchema)
	}
	if err := app.Validate(); err != nil {
		return fmt.Errorf("validate schema: %w", err)
	}
	if err := r.repo.Save(ctx, appID, app); err != nil {
		return fmt.Errorf("save schema: %w", err)
	}
	r.Invalidate(appID)
	return nil
}

// Get returns the schema of appID, or domain.ErrSchemaNotFound.
func (r *Registry) Get(ctx context.Context, appID string) (domschema.Application, error) {
	now := r.now()

	r.mu.RLock()
	e, ok := r.entries[appID]
	r.mu.RUnlock()
	if ok && now.Before(e.expires) {
		r.incCache("hit")
		return e.app, nil
	}
	r.incCache("miss")

	app, err := r.repo.Get(ctx, appID)
	if err != nil {
		return domschema.Application{}, fmt.Errorf("load schema: %w", err)
	}

	r.mu.Lock()
	r.entries[appID] = entry{app: app, expires: now.Add(r.ttl)}
	r.mu.Unlock()
	return app, nil
}

// Delete removes the schema of appID. An unknown app yields domain.ErrSchemaNotFound and
// still drops any cached copy.
func (r *Registry) Delete(ctx context.Context, appID string) error {
	err := r.repo.Delete(ctx, appID)
	if err == nil || errors.Is(err, domain.ErrSchemaNotFound) {
		r.Invalidate(appID)
	}
	if err != nil {
		return fmt.Errorf("delete schema: %w", err)
	}
	return nil
}

// Invalidate drops appID from the cache.
func (r *Registry) Invalidate(appID string) {
	r.mu.Lock()
	delete(r.entries, appID)
	r.mu.Unlock()
}

func (r *Registry) incCache(result string) {
	if r.cacheTotal != nil {
		r.cacheTotal.WithLabelValues(result).Inc()
	}
}

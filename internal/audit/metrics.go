package audit

import (
	"sync"

	"github.com/grobertson/Rosey-Robot-sub001/internal/domain"
)

// bucket holds the running counters for one tenant (or the global aggregate).
type bucket struct {
	requests int64
	errors   int64
	slow     int64
	totalMs  float64
	maxMs    float64
}

func (b *bucket) observe(elapsedMs float64, isError, isSlow bool) {
	b.requests++
	if isError {
		b.errors++
	}
	if isSlow {
		b.slow++
	}
	b.totalMs += elapsedMs
	if elapsedMs > b.maxMs {
		b.maxMs = elapsedMs
	}
}

func (b *bucket) metrics(tenant string) domain.TenantMetrics {
	m := domain.TenantMetrics{
		Tenant:        tenant,
		TotalRequests: b.requests,
		TotalErrors:   b.errors,
		TotalSlow:     b.slow,
		TotalMs:       b.totalMs,
		MaxMs:         b.maxMs,
	}
	if b.requests > 0 {
		m.AvgMs = b.totalMs / float64(b.requests)
		m.ErrorRate = float64(b.errors) / float64(b.requests)
		m.SlowRate = float64(b.slow) / float64(b.requests)
	}
	return m
}

// Counters accumulates per-tenant and global request statistics. It is the
// only mutable state the audit logger shares across requests, guarded by a
// single mutex.
type Counters struct {
	mu      sync.Mutex
	global  bucket
	tenants map[string]*bucket
}

func NewCounters() *Counters {
	return &Counters{tenants: make(map[string]*bucket)}
}

func (c *Counters) Observe(tenant string, elapsedMs float64, isError, isSlow bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.global.observe(elapsedMs, isError, isSlow)
	b, ok := c.tenants[tenant]
	if !ok {
		b = &bucket{}
		c.tenants[tenant] = b
	}
	b.observe(elapsedMs, isError, isSlow)
}

// Snapshot recomputes the derived aggregate for every known tenant plus the
// global totals.
func (c *Counters) Snapshot() domain.MetricsSnapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	snap := domain.MetricsSnapshot{
		Global:  c.global.metrics("*"),
		Tenants: make(map[string]domain.TenantMetrics, len(c.tenants)),
	}
	for tenant, b := range c.tenants {
		snap.Tenants[tenant] = b.metrics(tenant)
	}
	return snap
}

// Tenant returns one tenant's derived metrics. The second return is false
// when the tenant has never been observed.
func (c *Counters) Tenant(tenant string) (domain.TenantMetrics, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	b, ok := c.tenants[tenant]
	if !ok {
		return domain.TenantMetrics{Tenant: tenant}, false
	}
	return b.metrics(tenant), true
}

// Reset clears one tenant's counters. The global aggregate is untouched so
// it keeps reflecting process-lifetime totals.
func (c *Counters) Reset(tenant string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.tenants, tenant)
}

// ResetAll clears every counter including the global aggregate.
func (c *Counters) ResetAll() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.global = bucket{}
	c.tenants = make(map[string]*bucket)
}

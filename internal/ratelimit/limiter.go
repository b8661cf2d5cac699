// Package ratelimit implements per-tenant sliding-window admission control.
//
// Unlike a fixed-bucket counter, the trailing window never resets at a
// boundary, so a tenant can never double its burst by straddling two
// buckets. Windows are pruned lazily on each check.
package ratelimit

import (
	"sync"
	"time"
)

// Config holds the limiter defaults.
type Config struct {
	// DefaultLimit is the number of requests a tenant may make per Window
	// unless an override is set. Zero blocks tenants without an override.
	DefaultLimit int

	// Window is the trailing interval over which requests are counted.
	Window time.Duration
}

// Status describes a tenant's current admission state.
type Status struct {
	Tenant    string    `json:"tenant"`
	Limit     int       `json:"limit"`
	Current   int       `json:"current"`
	Remaining int       `json:"remaining"`
	ResetAt   time.Time `json:"reset_at"`
}

// window is one tenant's request history. Owned exclusively by the Limiter;
// timestamps are kept in insertion (and therefore chronological) order.
type window struct {
	stamps []time.Time
}

// Limiter admits or rejects requests per tenant. Safe for concurrent use;
// admission is linearizable under the single mutex, so two racing requests
// can never both slip past the limit.
type Limiter struct {
	mu        sync.Mutex
	cfg       Config
	windows   map[string]*window
	overrides map[string]int
	now       func() time.Time
}

// New creates a Limiter with the given configuration.
func New(cfg Config) *Limiter {
	return &Limiter{
		cfg:       cfg,
		windows:   make(map[string]*window),
		overrides: make(map[string]int),
		now:       time.Now,
	}
}

// Check records and admits one request for the tenant, or rejects it with
// the duration after which a retry can succeed.
func (l *Limiter) Check(tenant string) (retryAfter time.Duration, ok bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.check(tenant, true)
}

// Peek reports whether a request would currently be admitted, without
// consuming quota. Pre-flight use only; admission is not reserved.
func (l *Limiter) Peek(tenant string) (retryAfter time.Duration, ok bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.check(tenant, false)
}

func (l *Limiter) check(tenant string, record bool) (time.Duration, bool) {
	now := l.now()
	limit := l.limitFor(tenant)
	if limit <= 0 {
		// Quota of zero blocks the tenant entirely; the window length is the
		// only honest retry hint we can give.
		return l.cfg.Window, false
	}

	w := l.windows[tenant]
	if w == nil {
		w = &window{}
		l.windows[tenant] = w
	}
	l.prune(w, now)

	if len(w.stamps) >= limit {
		oldest := w.stamps[0]
		retry := oldest.Add(l.cfg.Window).Sub(now)
		if retry < time.Millisecond {
			retry = time.Millisecond
		}
		return retry, false
	}
	if record {
		w.stamps = append(w.stamps, now)
	}
	return 0, true
}

// prune drops timestamps at or before the window cutoff.
func (l *Limiter) prune(w *window, now time.Time) {
	cutoff := now.Add(-l.cfg.Window)
	i := 0
	for i < len(w.stamps) && !w.stamps[i].After(cutoff) {
		i++
	}
	if i > 0 {
		w.stamps = append(w.stamps[:0], w.stamps[i:]...)
	}
}

func (l *Limiter) limitFor(tenant string) int {
	if override, ok := l.overrides[tenant]; ok {
		return override
	}
	return l.cfg.DefaultLimit
}

// SetLimit installs a tenant-specific quota override. A limit of zero blocks
// the tenant entirely.
func (l *Limiter) SetLimit(tenant string, limit int) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.overrides[tenant] = limit
}

// ClearLimit removes a tenant's override so it falls back to the default.
func (l *Limiter) ClearLimit(tenant string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.overrides, tenant)
}

// Status returns a snapshot of the tenant's admission state.
func (l *Limiter) Status(tenant string) Status {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	limit := l.limitFor(tenant)
	current := 0
	resetAt := now
	if w := l.windows[tenant]; w != nil {
		l.prune(w, now)
		current = len(w.stamps)
		if current > 0 {
			resetAt = w.stamps[0].Add(l.cfg.Window)
		}
	}
	remaining := limit - current
	if remaining < 0 {
		remaining = 0
	}
	return Status{Tenant: tenant, Limit: limit, Current: current, Remaining: remaining, ResetAt: resetAt}
}

// Sweep prunes all windows and drops tenants with no recent activity,
// returning the number of windows removed. Called periodically so idle
// tenants do not accumulate forever.
func (l *Limiter) Sweep() int {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	removed := 0
	for tenant, w := range l.windows {
		l.prune(w, now)
		if len(w.stamps) == 0 {
			delete(l.windows, tenant)
			removed++
		}
	}
	return removed
}

package ratelimit

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeClock lets tests advance time deterministically.
type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *fakeClock) now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(d)
}

func newTestLimiter(limit int, window time.Duration) (*Limiter, *fakeClock) {
	clock := &fakeClock{t: time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)}
	l := New(Config{DefaultLimit: limit, Window: window})
	l.now = clock.now
	return l, clock
}

func TestLimiter_Boundary(t *testing.T) {
	l, clock := newTestLimiter(5, time.Minute)

	for i := 0; i < 5; i++ {
		_, ok := l.Check("trivia")
		require.True(t, ok, "request %d within quota", i+1)
		clock.advance(time.Second)
	}

	retry, ok := l.Check("trivia")
	require.False(t, ok, "sixth request must be rejected")
	assert.Greater(t, retry, time.Duration(0))

	// Sleep past the window: the oldest stamps fall out and requests pass.
	clock.advance(time.Minute)
	_, ok = l.Check("trivia")
	assert.True(t, ok)
}

func TestLimiter_SlidingNotFixed(t *testing.T) {
	l, clock := newTestLimiter(2, time.Minute)

	_, ok := l.Check("t")
	require.True(t, ok)
	clock.advance(50 * time.Second)
	_, ok = l.Check("t")
	require.True(t, ok)

	// 20s later the first stamp (70s old) is gone but the second (20s old)
	// remains: exactly one slot free, not a fresh bucket of two.
	clock.advance(20 * time.Second)
	_, ok = l.Check("t")
	require.True(t, ok)
	_, ok = l.Check("t")
	assert.False(t, ok)
}

func TestLimiter_RetryAfterMatchesOldestStamp(t *testing.T) {
	l, clock := newTestLimiter(1, time.Minute)

	_, ok := l.Check("t")
	require.True(t, ok)

	clock.advance(15 * time.Second)
	retry, ok := l.Check("t")
	require.False(t, ok)
	assert.Equal(t, 45*time.Second, retry)
}

func TestLimiter_TenantsAreIndependent(t *testing.T) {
	l, _ := newTestLimiter(1, time.Minute)

	_, ok := l.Check("trivia")
	require.True(t, ok)
	_, ok = l.Check("trivia")
	require.False(t, ok)

	_, ok = l.Check("playlist")
	assert.True(t, ok, "another tenant's quota is unaffected")
}

func TestLimiter_Overrides(t *testing.T) {
	l, _ := newTestLimiter(5, time.Minute)

	l.SetLimit("blocked", 0)
	retry, ok := l.Check("blocked")
	require.False(t, ok)
	assert.Equal(t, time.Minute, retry)

	l.SetLimit("vip", 10)
	for i := 0; i < 10; i++ {
		_, ok := l.Check("vip")
		require.True(t, ok)
	}
	_, ok = l.Check("vip")
	require.False(t, ok)

	l.ClearLimit("blocked")
	_, ok = l.Check("blocked")
	assert.True(t, ok, "cleared override falls back to the default")
}

func TestLimiter_PeekDoesNotConsume(t *testing.T) {
	l, _ := newTestLimiter(1, time.Minute)

	for i := 0; i < 3; i++ {
		_, ok := l.Peek("t")
		require.True(t, ok)
	}
	_, ok := l.Check("t")
	require.True(t, ok, "peeks must not have consumed the only slot")
	_, ok = l.Peek("t")
	assert.False(t, ok)
}

func TestLimiter_Status(t *testing.T) {
	l, clock := newTestLimiter(3, time.Minute)

	st := l.Status("t")
	assert.Equal(t, 3, st.Limit)
	assert.Equal(t, 0, st.Current)
	assert.Equal(t, 3, st.Remaining)

	l.Check("t")
	l.Check("t")
	st = l.Status("t")
	assert.Equal(t, 2, st.Current)
	assert.Equal(t, 1, st.Remaining)
	assert.Equal(t, clock.now().Add(time.Minute), st.ResetAt)
}

func TestLimiter_Sweep(t *testing.T) {
	l, clock := newTestLimiter(5, time.Minute)

	l.Check("a")
	l.Check("b")
	assert.Equal(t, 0, l.Sweep(), "active windows are kept")

	clock.advance(2 * time.Minute)
	l.Check("c")
	assert.Equal(t, 2, l.Sweep(), "expired windows are dropped")
}

func TestLimiter_ConcurrentAdmissionNeverExceedsLimit(t *testing.T) {
	l, _ := newTestLimiter(50, time.Minute)

	var wg sync.WaitGroup
	var mu sync.Mutex
	admitted := 0
	for i := 0; i < 200; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, ok := l.Check("t"); ok {
				mu.Lock()
				admitted++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, 50, admitted)
}

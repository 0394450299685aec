package ratelimit

import (
	"sync"
	"time"

	"pigeon-observer/src/models"
)

// -----------------------------------------------------------------------------
// Fixed-window per-source rate limiter.
//
// Each upstream source owns one MRateWindow. The reset-then-check sequence
// runs under a per-source mutex so two concurrent callers can never both
// pass a check that only one budget unit can satisfy. Calls beyond the
// limit fail closed: the limiter answers false, it never errors and never
// retries.
// -----------------------------------------------------------------------------

const (
	defaultWindow = time.Minute
	defaultLimit  = 50
)

type sourceWindow struct {
	mu     sync.Mutex
	state  models.MRateWindow
	window time.Duration
}

// -----------------------------------------------------------------------------

// Limiter is constructed once per process and injected into the fetchers.
type Limiter struct {
	mu      sync.RWMutex
	sources map[string]*sourceWindow
	configs map[string]models.MRateLimitConfig
	now     func() time.Time // swappable clock for tests
}

// -----------------------------------------------------------------------------

func NewLimiter(configs []models.MRateLimitConfig) *Limiter {
	cfgMap := make(map[string]models.MRateLimitConfig, len(configs))
	for _, c := range configs {
		cfgMap[c.SourceID] = c
	}
	return &Limiter{
		sources: make(map[string]*sourceWindow),
		configs: cfgMap,
		now:     time.Now,
	}
}

// -----------------------------------------------------------------------------

// TryAcquire consumes one budget unit for the source if the current window
// still has room. resetAt tells the caller when the window rolls over.
func (l *Limiter) TryAcquire(sourceID string) (bool, time.Time) {
	sw := l.getWindow(sourceID)

	sw.mu.Lock()
	defer sw.mu.Unlock()

	now := l.now()

	// Expired window resets atomically before the budget is evaluated
	if now.Sub(sw.state.WindowStart) >= sw.window {
		sw.state.WindowStart = now
		sw.state.Count = 0
	}

	resetAt := sw.state.WindowStart.Add(sw.window)
	if sw.state.Count >= sw.state.Limit {
		return false, resetAt
	}

	sw.state.Count++
	return true, resetAt
}

// -----------------------------------------------------------------------------

// Reset clears every window. Intended for tests.
func (l *Limiter) Reset() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.sources = make(map[string]*sourceWindow)
}

// -----------------------------------------------------------------------------

// Window returns a copy of the current window state for a source, for
// inspection on the metrics surface.
func (l *Limiter) Window(sourceID string) models.MRateWindow {
	sw := l.getWindow(sourceID)
	sw.mu.Lock()
	defer sw.mu.Unlock()
	return sw.state
}

// -----------------------------------------------------------------------------

func (l *Limiter) getWindow(sourceID string) *sourceWindow {
	l.mu.RLock()
	sw, ok := l.sources[sourceID]
	l.mu.RUnlock()
	if ok {
		return sw
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	if sw, ok = l.sources[sourceID]; ok {
		return sw
	}

	window := defaultWindow
	limit := defaultLimit
	if cfg, ok := l.configs[sourceID]; ok {
		window = time.Duration(cfg.WindowSeconds) * time.Second
		limit = cfg.Limit
	}

	sw = &sourceWindow{
		state: models.MRateWindow{
			SourceID:    sourceID,
			WindowStart: l.now(),
			Count:       0,
			Limit:       limit,
		},
		window: window,
	}
	l.sources[sourceID] = sw
	return sw
}

package ratelimit

import (
	"sync"
	"time"
)

// localCounter is the development-only fallback: a fixed window per
// identifier (count + window start), reset when the window elapses.
// It is process-local shared state and explicitly not safe across
// multiple instances; it must never carry production traffic.
type localCounter struct {
	mu      sync.Mutex
	entries map[string]*windowEntry
}

type windowEntry struct {
	count    int
	start    time.Time
	lastSeen time.Time
}

func newLocalCounter() *localCounter {
	return &localCounter{entries: make(map[string]*windowEntry)}
}

// Record counts one request for the key and returns the count in the
// current window, including this one.
func (l *localCounter) Record(key string, window time.Duration, now time.Time) int {
	l.mu.Lock()
	defer l.mu.Unlock()

	e, ok := l.entries[key]
	if !ok {
		if len(l.entries) >= 10000 {
			l.cleanup(now)
		}
		e = &windowEntry{start: now}
		l.entries[key] = e
	}

	if now.Sub(e.start) >= window {
		e.count = 0
		e.start = now
	}
	e.count++
	e.lastSeen = now
	return e.count
}

// cleanup removes entries not seen in the last 10 minutes.
// Must be called with l.mu held.
func (l *localCounter) cleanup(now time.Time) {
	cutoff := now.Add(-10 * time.Minute)
	for key, e := range l.entries {
		if e.lastSeen.Before(cutoff) {
			delete(l.entries, key)
		}
	}
}

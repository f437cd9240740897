package rate

import (
	"sync"
	"time"
)

type window struct {
	hits  int
	start time.Time
}

// Limiter is a fixed-window in-memory counter keyed by route+client.
// Stale windows are swept lazily on the next Allow call.
type Limiter struct {
	mu      sync.Mutex
	windows map[string]window
	sweptAt time.Time
}

func NewLimiter() *Limiter {
	return &Limiter{windows: map[string]window{}, sweptAt: time.Now().UTC()}
}

func (l *Limiter) Allow(key string, limit int, span time.Duration) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	now := time.Now().UTC()
	if now.Sub(l.sweptAt) > time.Minute {
		for k, w := range l.windows {
			if now.Sub(w.start) > 3*span {
				delete(l.windows, k)
			}
		}
		l.sweptAt = now
	}
	w, ok := l.windows[key]
	if !ok || now.Sub(w.start) >= span {
		l.windows[key] = window{hits: 1, start: now}
		return true
	}
	if w.hits >= limit {
		return false
	}
	w.hits++
	l.windows[key] = w
	return true
}

package studio

import (
	"sync"
	"time"
)

// LinkLimiter rate-limits magic-link requests per IP address, so the login
// form cannot be used to flood an inbox.
type LinkLimiter struct {
	mu       sync.Mutex
	attempts map[string][]time.Time
	max      int
	window   time.Duration
	done     chan struct{}
}

// NewLinkLimiter creates a LinkLimiter that allows max requests per window.
func NewLinkLimiter(max int, window time.Duration) *LinkLimiter {
	l := &LinkLimiter{
		attempts: make(map[string][]time.Time),
		max:      max,
		window:   window,
		done:     make(chan struct{}),
	}
	go l.cleanup()
	return l
}

func (l *LinkLimiter) cleanup() {
	ticker := time.NewTicker(l.window)
	defer ticker.Stop()
	for {
		select {
		case <-l.done:
			return
		case now := <-ticker.C:
			l.mu.Lock()
			for ip := range l.attempts {
				if kept := l.recent(ip, now); len(kept) == 0 {
					delete(l.attempts, ip)
				}
			}
			l.mu.Unlock()
		}
	}
}

// recent drops hits of ip older than the window and returns the rest.
// l.mu must be held.
func (l *LinkLimiter) recent(ip string, now time.Time) []time.Time {
	cutoff := now.Add(-l.window)
	hits := l.attempts[ip]
	kept := hits[:0]
	for _, t := range hits {
		if t.After(cutoff) {
			kept = append(kept, t)
		}
	}
	l.attempts[ip] = kept
	return kept
}

// Allow reports whether ip may request another link and, if so, records it.
func (l *LinkLimiter) Allow(ip string) bool {
	now := time.Now()

	l.mu.Lock()
	defer l.mu.Unlock()

	if len(l.recent(ip, now)) >= l.max {
		return false
	}
	l.attempts[ip] = append(l.attempts[ip], now)
	return true
}

// Stop ends the cleanup goroutine.
func (l *LinkLimiter) Stop() {
	select {
	case <-l.done:
	default:
		close(l.done)
	}
}

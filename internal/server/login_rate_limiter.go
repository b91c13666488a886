package server

import (
	"sync"
	"time"
)

// loginRateLimiter blocks a login key after repeated failures inside a
// sliding window.
type loginRateLimiter struct {
	mu          sync.Mutex
	failures    map[string][]time.Time
	blocked     map[string]time.Time
	maxFailures int
	window      time.Duration
	blockedFor  time.Duration
}

func newLoginRateLimiter(maxFailures int, window, blockedFor time.Duration) *loginRateLimiter {
	if maxFailures <= 0 || window <= 0 || blockedFor <= 0 {
		return nil
	}
	return &loginRateLimiter{
		failures:    make(map[string][]time.Time),
		blocked:     make(map[string]time.Time),
		maxFailures: maxFailures,
		window:      window,
		blockedFor:  blockedFor,
	}
}

func (l *loginRateLimiter) Allow(key string, now time.Time) bool {
	if l == nil || key == "" {
		return true
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	until, ok := l.blocked[key]
	if !ok {
		return true
	}
	if now.Before(until) {
		return false
	}
	delete(l.blocked, key)
	return true
}

func (l *loginRateLimiter) RegisterFailure(key string, now time.Time) {
	if l == nil || key == "" {
		return
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	recent := l.failures[key][:0]
	for _, at := range l.failures[key] {
		if now.Sub(at) <= l.window {
			recent = append(recent, at)
		}
	}
	recent = append(recent, now)
	if len(recent) >= l.maxFailures {
		l.blocked[key] = now.Add(l.blockedFor)
		delete(l.failures, key)
		return
	}
	l.failures[key] = recent
}

func (l *loginRateLimiter) Reset(key string) {
	if l == nil || key == "" {
		return
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.failures, key)
	delete(l.blocked, key)
}

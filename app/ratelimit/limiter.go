package ratelimit

import (
	"crypto/sha256"
	"encoding/hex"
	"sync"
	"time"

	cache "github.com/go-pkgz/expirable-cache/v3"
)

// Default per-action budgets, all over a 60 second window.
const (
	Window = 60 * time.Second

	ListLimit     = 30
	AddLimit      = 10
	RefreshLimit  = 30
	SearchLimit   = 30
	PlaylistLimit = 60
)

type window struct {
	count   int
	resetAt time.Time
}

// Limiter implements fixed-window counters per (action, caller identity).
// The window is anchored at the first call; counters live in an expiring
// cache so a fresh budget starts once the window elapses.
type Limiter struct {
	mu       sync.Mutex
	counters cache.Cache[string, window]
	now      func() time.Time
}

func NewLimiter() *Limiter {
	return &Limiter{
		counters: cache.NewCache[string, window](),
		now:      time.Now,
	}
}

// Allow reports whether the call fits the window budget. The increment
// and comparison happen under one lock, so concurrent callers sharing an
// identity cannot lose updates. Exceeding the limit has no side effect
// beyond the read.
func (l *Limiter) Allow(action, identity string, limit int, windowSize time.Duration) bool {
	key := action + "|" + identity

	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()

	current, ok := l.counters.Get(key)
	if !ok || !current.resetAt.After(now) {
		current = window{count: 0, resetAt: now.Add(windowSize)}
	}

	if current.count >= limit {
		return false
	}

	current.count++
	l.counters.Set(key, current, current.resetAt.Sub(now))
	return true
}

// Identity derives a limiter identity: the authenticated caller id when
// present, otherwise a hash of the remote address so anonymous callers
// are grouped without storing raw addresses.
func Identity(callerID, remoteAddr string) string {
	if callerID != "" {
		return callerID
	}
	hash := sha256.Sum256([]byte(remoteAddr))
	return "anon:" + hex.EncodeToString(hash[:8])
}

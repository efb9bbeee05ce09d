// internal/ratelimit/ratelimit.go
//
// Package ratelimit provides per-key token buckets with an optional penalty block,
// used for chat, hints and WebSocket handshakes.
package ratelimit

import (
	"context"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"
	"golang.org/x/time/rate"
)

// Limiter decides whether the next event for key may proceed.
type Limiter interface {
	Allow(key string) bool
}

type bucket struct {
	lim          *rate.Limiter
	blockedUntil time.Time
	lastSeen     time.Time
}

// Keyed holds one token bucket per key. Buckets are created on first use and
// dropped by Prune once idle.
type Keyed struct {
	mu      sync.Mutex
	buckets map[string]*bucket

	name  string
	limit rate.Limit
	burst int
	per   time.Duration
	block time.Duration
	now   func() time.Time
}

// New allows points events per window for each key. When block is non-zero, a key
// that exceeds its budget is refused for the whole block duration.
func New(name string, points int, per, block time.Duration) *Keyed {
	return &Keyed{
		buckets: make(map[string]*bucket),
		name:    name,
		limit:   rate.Every(per / time.Duration(points)),
		burst:   points,
		per:     per,
		block:   block,
		now:     time.Now,
	}
}

// Chat allows 9 messages per 5 seconds, then blocks for 10 seconds.
func Chat() *Keyed { return New("chat", 9, 5*time.Second, 10*time.Second) }

// Hint allows 1 hint per 2 seconds.
func Hint() *Keyed { return New("hint", 1, 2*time.Second, 0) }

// Connect allows 2 handshakes per 10 seconds for each address.
func Connect() *Keyed { return New("connect", 2, 10*time.Second, 0) }

// Allow consumes one token for key.
func (k *Keyed) Allow(key string) bool {
	k.mu.Lock()
	defer k.mu.Unlock()

	now := k.now()
	b, ok := k.buckets[key]
	if !ok {
		b = &bucket{lim: rate.NewLimiter(k.limit, k.burst)}
		k.buckets[key] = b
	}
	b.lastSeen = now

	if now.Before(b.blockedUntil) {
		return false
	}
	if b.lim.AllowN(now, 1) {
		return true
	}
	if k.block > 0 {
		b.blockedUntil = now.Add(k.block)
		log.Debugf("ratelimit %s: blocking %s until %s", k.name, key, b.blockedUntil.Format(time.RFC3339))
	}
	return false
}

// Forget drops the bucket for key.
func (k *Keyed) Forget(key string) {
	k.mu.Lock()
	defer k.mu.Unlock()
	delete(k.buckets, key)
}

// Prune removes buckets that have been idle long enough to be full again and
// are no longer blocked. It returns how many were removed.
func (k *Keyed) Prune() int {
	k.mu.Lock()
	defer k.mu.Unlock()

	now := k.now()
	removed := 0
	for key, b := range k.buckets {
		if now.Sub(b.lastSeen) > k.per && !now.Before(b.blockedUntil) {
			delete(k.buckets, key)
			removed++
		}
	}
	return removed
}

// Len returns the number of tracked keys.
func (k *Keyed) Len() int {
	k.mu.Lock()
	defer k.mu.Unlock()
	return len(k.buckets)
}

// Run prunes every interval until ctx is done.
func (k *Keyed) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := k.Prune(); n > 0 {
				log.Debugf("ratelimit %s: pruned %d idle keys", k.name, n)
			}
		}
	}
}

package webhook

import (
	"fmt"
	"time"

	"github.com/mkoberg/signalmarket/internal/pkg/cache"
)

// DefaultReplayTTL bounds the window in which a nonce is remembered.
const DefaultReplayTTL = 10 * time.Minute

// ReplayGuard remembers nonces for a bounded window. The store is shared
// (redis), not process-local, so multiple instances agree on what replays.
type ReplayGuard interface {
	// CheckAndRemember returns true when the nonce is fresh and records it;
	// false means the nonce was already used within the TTL window.
	CheckAndRemember(provider, nonce string) (bool, error)
}

type redisReplayGuard struct {
	ttl time.Duration
}

// NewReplayGuard creates a redis-backed replay guard.
func NewReplayGuard(ttl time.Duration) ReplayGuard {
	if ttl <= 0 {
		ttl = DefaultReplayTTL
	}
	return &redisReplayGuard{ttl: ttl}
}

func (g *redisReplayGuard) CheckAndRemember(provider, nonce string) (bool, error) {
	key := fmt.Sprintf("webhook_nonce:%s:%s", provider, nonce)
	fresh, err := cache.SetNX(key, 1, g.ttl)
	if err != nil {
		return false, fmt.Errorf("replay guard unavailable: %w", err)
	}
	return fresh, nil
}

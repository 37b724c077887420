// Package registry tracks which (owner, peer) pairs hold a live channel.
// The process-local table is authoritative for delivery; the shared key-value
// mirror exists for cross-process discovery and coarse presence, and is
// strictly best-effort: its failures never affect persistence.
package registry

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// Channel is one live outbound leg of a connection. Implementations must be
// safe for concurrent sends.
type Channel interface {
	SendJSON(v any) error
}

const (
	connHashPrefix = "ws:conns:"
	onlinePrefix   = "online:"
)

// Registry is the injected, process-owned connection table. One instance per
// process; every delivery engine shares it.
type Registry struct {
	mu    sync.RWMutex
	conns map[string]Channel

	rdb       *redis.Client
	log       *zap.Logger
	connTTL   time.Duration
	onlineTTL time.Duration
}

// New builds a Registry. rdb may be nil, in which case the shared mirror and
// presence markers are disabled and only local lookup works.
func New(rdb *redis.Client, log *zap.Logger, connTTL, onlineTTL time.Duration) *Registry {
	if log == nil {
		log = zap.NewNop()
	}
	return &Registry{
		conns:     make(map[string]Channel),
		rdb:       rdb,
		log:       log,
		connTTL:   connTTL,
		onlineTTL: onlineTTL,
	}
}

func localKey(owner, peer string) string { return owner + "|" + peer }

// Register records a live channel for (owner, peer) and mirrors it to the
// shared registry with a refreshed expiry and online marker.
func (r *Registry) Register(ctx context.Context, owner, peer string, ch Channel) {
	r.mu.Lock()
	r.conns[localKey(owner, peer)] = ch
	r.mu.Unlock()

	if r.rdb == nil {
		return
	}
	connKey := fmt.Sprintf("%s-%s", owner, peer)
	pipe := r.rdb.Pipeline()
	pipe.HSet(ctx, connHashPrefix+owner, peer, connKey)
	pipe.Expire(ctx, connHashPrefix+owner, r.connTTL)
	pipe.Set(ctx, onlinePrefix+owner, "1", r.onlineTTL)
	if _, err := pipe.Exec(ctx); err != nil {
		r.log.Warn("registry mirror register failed", zap.String("owner", owner), zap.String("peer", peer), zap.Error(err))
	}
}

// Lookup returns the live channel for (owner, peer) in this process, if any.
func (r *Registry) Lookup(owner, peer string) (Channel, bool) {
	r.mu.RLock()
	ch, ok := r.conns[localKey(owner, peer)]
	r.mu.RUnlock()
	return ch, ok
}

// Unregister removes the channel for (owner, peer). It is idempotent: a
// second call for the same pair is a no-op. When the owner's last shared
// entry goes away the online marker is cleared too.
func (r *Registry) Unregister(ctx context.Context, owner, peer string) {
	r.mu.Lock()
	key := localKey(owner, peer)
	_, existed := r.conns[key]
	delete(r.conns, key)
	r.mu.Unlock()

	if !existed || r.rdb == nil {
		return
	}
	if err := r.rdb.HDel(ctx, connHashPrefix+owner, peer).Err(); err != nil {
		r.log.Warn("registry mirror unregister failed", zap.String("owner", owner), zap.String("peer", peer), zap.Error(err))
		return
	}
	remaining, err := r.rdb.HLen(ctx, connHashPrefix+owner).Result()
	if err != nil {
		r.log.Warn("registry mirror hlen failed", zap.String("owner", owner), zap.Error(err))
		return
	}
	if remaining == 0 {
		if err := r.rdb.Del(ctx, onlinePrefix+owner).Err(); err != nil {
			r.log.Warn("online marker clear failed", zap.String("owner", owner), zap.Error(err))
		}
	}
}

// IsOnline checks the coarse shared presence marker. A user can show online
// for up to the marker TTL after going idle.
func (r *Registry) IsOnline(ctx context.Context, user string) bool {
	if r.rdb == nil {
		return false
	}
	n, err := r.rdb.Exists(ctx, onlinePrefix+user).Result()
	if err != nil {
		r.log.Warn("online marker check failed", zap.String("user", user), zap.Error(err))
		return false
	}
	return n > 0
}

// Heartbeat refreshes the owner's online marker.
func (r *Registry) Heartbeat(ctx context.Context, owner string) {
	if r.rdb == nil {
		return
	}
	if err := r.rdb.Set(ctx, onlinePrefix+owner, "1", r.onlineTTL).Err(); err != nil {
		r.log.Warn("online marker refresh failed", zap.String("owner", owner), zap.Error(err))
	}
}

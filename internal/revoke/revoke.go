// Package revoke keeps the ids of access tokens that were signed out before expiry.
package revoke

import (
	"context"
	"time"

	gocache "github.com/patrickmn/go-cache"
	rdb "github.com/redis/go-redis/v9"
)

// Store remembers revoked token ids until the token would have expired anyway.
type Store interface {
	// Revoke marks id revoked for ttl. A non-positive ttl is a no-op.
	Revoke(ctx context.Context, id string, ttl time.Duration) error
	// Revoked reports whether id was revoked.
	Revoked(ctx context.Context, id string) (bool, error)
}

// Memory is a process-local Store.
type Memory struct{ c *gocache.Cache }

// NewMemory constructs an in-memory store with periodic cleanup of expired ids.
func NewMemory(cleanup time.Duration) *Memory {
	return &Memory{c: gocache.New(gocache.NoExpiration, cleanup)}
}

func (m *Memory) Revoke(_ context.Context, id string, ttl time.Duration) error {
	if ttl <= 0 {
		return nil
	}
	m.c.Set(id, struct{}{}, ttl)
	return nil
}

func (m *Memory) Revoked(_ context.Context, id string) (bool, error) {
	_, ok := m.c.Get(id)
	return ok, nil
}

const keyPrefix = "pk:revoked:"

// Redis shares revocations between server replicas.
type Redis struct{ c *rdb.Client }

// NewRedis connects lazily to addr.
func NewRedis(addr string, db int) *Redis {
	return &Redis{c: rdb.NewClient(&rdb.Options{Addr: addr, DB: db})}
}

// NewRedisWithClient wraps an existing client.
func NewRedisWithClient(c *rdb.Client) *Redis { return &Redis{c: c} }

func (r *Redis) Revoke(ctx context.Context, id string, ttl time.Duration) error {
	if ttl <= 0 {
		return nil
	}
	return r.c.Set(ctx, keyPrefix+id, 1, ttl).Err()
}

func (r *Redis) Revoked(ctx context.Context, id string) (bool, error) {
	n, err := r.c.Exists(ctx, keyPrefix+id).Result()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// Ping checks connectivity.
func (r *Redis) Ping(ctx context.Context) error { return r.c.Ping(ctx).Err() }

// Close releases the connection pool.
func (r *Redis) Close() error { return r.c.Close() }

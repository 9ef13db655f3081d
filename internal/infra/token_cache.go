package infra

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// POSToken is a bearer credential and the instant it stops being valid.
type POSToken struct {
	Value  string    `json:"token"`
	Expiry time.Time `json:"expiry"`
}

// Valid reports whether the token can still be used at now, keeping a
// safety margin so that a request never starts with an about-to-expire token.
func (t POSToken) Valid(now time.Time, skew time.Duration) bool {
	return t.Value != "" && now.Add(skew).Before(t.Expiry)
}

// TokenCache stores the POS bearer token between requests. The client owns
// one instance; nothing about it is process-global.
type TokenCache interface {
	Get(ctx context.Context) (POSToken, bool, error)
	Set(ctx context.Context, tok POSToken) error
	Invalidate(ctx context.Context) error
}

// ── In-memory ─────────────────────────────────────────────────────────────────

type MemoryTokenCache struct {
	mu  sync.Mutex
	tok POSToken
}

func NewMemoryTokenCache() *MemoryTokenCache { return &MemoryTokenCache{} }

func (c *MemoryTokenCache) Get(_ context.Context) (POSToken, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.tok, c.tok.Value != "", nil
}

func (c *MemoryTokenCache) Set(_ context.Context, tok POSToken) error {
	c.mu.Lock()
	c.tok = tok
	c.mu.Unlock()
	return nil
}

func (c *MemoryTokenCache) Invalidate(_ context.Context) error {
	c.mu.Lock()
	c.tok = POSToken{}
	c.mu.Unlock()
	return nil
}

// ── Redis ─────────────────────────────────────────────────────────────────────
// Shares one token across server instances and the sync CLI so that the
// auth endpoint is hit once per validity window, not once per process.

const redisTokenKey = "fudo:token"

type RedisTokenCache struct {
	rdb *redis.Client
	key string
}

func NewRedisTokenCache(rdb *redis.Client) *RedisTokenCache {
	return &RedisTokenCache{rdb: rdb, key: redisTokenKey}
}

func (c *RedisTokenCache) Get(ctx context.Context) (POSToken, bool, error) {
	raw, err := c.rdb.Get(ctx, c.key).Bytes()
	if errors.Is(err, redis.Nil) {
		return POSToken{}, false, nil
	}
	if err != nil {
		return POSToken{}, false, err
	}
	var tok POSToken
	if err := json.Unmarshal(raw, &tok); err != nil {
		// A corrupt entry is treated as a miss and overwritten on the next Set.
		return POSToken{}, false, nil
	}
	return tok, true, nil
}

func (c *RedisTokenCache) Set(ctx context.Context, tok POSToken) error {
	ttl := time.Until(tok.Expiry)
	if ttl <= 0 {
		return nil
	}
	data, err := json.Marshal(tok)
	if err != nil {
		return err
	}
	return c.rdb.Set(ctx, c.key, data, ttl).Err()
}

func (c *RedisTokenCache) Invalidate(ctx context.Context) error {
	return c.rdb.Del(ctx, c.key).Err()
}

package cache

import (
	"context"
	"time"
)

// Cache is a JSON read-through cache. The transcript service uses it to keep
// finished transcripts, which are hot right after processing, off Postgres.
type Cache interface {
	GetJSON(ctx context.Context, key string, dst any) (hit bool, err error)
	SetJSON(ctx context.Context, key string, val any, ttl time.Duration) error
	Del(ctx context.Context, keys ...string) error
}

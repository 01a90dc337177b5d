package stopflag

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisFlag signals through redis keys, for deployments where the API and the
// bot runners do not share a filesystem.
type RedisFlag struct {
	Client *redis.Client
	// TTL bounds how long an unobserved flag lingers. Zero means no expiry.
	TTL time.Duration
}

func NewRedisFlag(client *redis.Client) *RedisFlag {
	return &RedisFlag{Client: client, TTL: 24 * time.Hour}
}

func key(sessionID string) string {
	return "bot:" + sessionID + ":stop"
}

func (r *RedisFlag) Set(sessionID string) error {
	return r.Client.Set(context.Background(), key(sessionID), "stop", r.TTL).Err()
}

func (r *RedisFlag) IsSet(sessionID string) bool {
	n, err := r.Client.Exists(context.Background(), key(sessionID)).Result()
	return err == nil && n > 0
}

func (r *RedisFlag) Clear(sessionID string) error {
	return r.Client.Del(context.Background(), key(sessionID)).Err()
}

package cache

import (
	"context"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/recallkit/recall/internal/model"
)

// DefaultTTL bounds staleness of the distributed tier. Entries expire on
// their own even when explicit invalidation never reaches them.
const DefaultTTL = time.Hour

const keyPrefix = "memory:"

// Distributed is the shared cache tier in front of the durable store.
// Every method is best-effort: a failure is indistinguishable from a miss.
type Distributed interface {
	Get(ctx context.Context, id string) (*model.Memory, bool)
	Set(ctx context.Context, m *model.Memory)
	Delete(ctx context.Context, id string)
	Close() error
}

// redisClient is the slice of go-redis the tier needs. Tests substitute
// a stub; production passes *redis.Client.
type redisClient interface {
	Ping(ctx context.Context) *redis.StatusCmd
	Get(ctx context.Context, key string) *redis.StringCmd
	Set(ctx context.Context, key string, value any, expiration time.Duration) *redis.StatusCmd
	Del(ctx context.Context, keys ...string) *redis.IntCmd
	Close() error
}

// Redis implements Distributed on a Redis server.
type Redis struct {
	client redisClient
	ttl    time.Duration
	log    zerolog.Logger
}

// Connect dials Redis once at startup. A nil return means the tier is
// disabled for the life of the process; the engine keeps running on the
// remaining tiers.
func Connect(ctx context.Context, url string, log zerolog.Logger) *Redis {
	if url == "" {
		return nil
	}
	opts, err := redis.ParseURL(url)
	if err != nil {
		log.Debug().Err(err).Msg("invalid redis url, distributed cache disabled")
		return nil
	}

	client := redis.NewClient(opts)
	pingCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		client.Close()
		log.Debug().Err(err).Msg("redis unreachable, distributed cache disabled")
		return nil
	}

	return &Redis{client: client, ttl: DefaultTTL, log: log}
}

func (r *Redis) Get(ctx context.Context, id string) (*model.Memory, bool) {
	raw, err := r.client.Get(ctx, keyPrefix+id).Result()
	if err != nil {
		if err != redis.Nil {
			r.log.Debug().Err(err).Str("id", id).Msg("redis get failed")
		}
		return nil, false
	}
	var m model.Memory
	if err := json.Unmarshal([]byte(raw), &m); err != nil {
		return nil, false
	}
	return &m, true
}

func (r *Redis) Set(ctx context.Context, m *model.Memory) {
	b, err := json.Marshal(m)
	if err != nil {
		return
	}
	if err := r.client.Set(ctx, keyPrefix+m.ID, b, r.ttl).Err(); err != nil {
		r.log.Debug().Err(err).Str("id", m.ID).Msg("redis set failed")
	}
}

func (r *Redis) Delete(ctx context.Context, id string) {
	if err := r.client.Del(ctx, keyPrefix+id).Err(); err != nil {
		r.log.Debug().Err(err).Str("id", id).Msg("redis del failed")
	}
}

func (r *Redis) Close() error {
	return r.client.Close()
}

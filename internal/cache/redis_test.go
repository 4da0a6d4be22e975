package cache

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/recallkit/recall/internal/model"
)

// stubRedis implements redisClient in memory, optionally failing every
// call to simulate an unreachable server.
type stubRedis struct {
	data map[string]string
	fail bool
}

func newStubRedis() *stubRedis {
	return &stubRedis{data: map[string]string{}}
}

var errDown = errors.New("connection refused")

func (s *stubRedis) Ping(ctx context.Context) *redis.StatusCmd {
	if s.fail {
		return redis.NewStatusResult("", errDown)
	}
	return redis.NewStatusResult("PONG", nil)
}

func (s *stubRedis) Get(ctx context.Context, key string) *redis.StringCmd {
	if s.fail {
		return redis.NewStringResult("", errDown)
	}
	v, ok := s.data[key]
	if !ok {
		return redis.NewStringResult("", redis.Nil)
	}
	return redis.NewStringResult(v, nil)
}

func (s *stubRedis) Set(ctx context.Context, key string, value any, _ time.Duration) *redis.StatusCmd {
	if s.fail {
		return redis.NewStatusResult("", errDown)
	}
	s.data[key] = string(value.([]byte))
	return redis.NewStatusResult("OK", nil)
}

func (s *stubRedis) Del(ctx context.Context, keys ...string) *redis.IntCmd {
	if s.fail {
		return redis.NewIntResult(0, errDown)
	}
	var n int64
	for _, k := range keys {
		if _, ok := s.data[k]; ok {
			delete(s.data, k)
			n++
		}
	}
	return redis.NewIntResult(n, nil)
}

func (s *stubRedis) Close() error { return nil }

func newTestRedis(stub *stubRedis) *Redis {
	return &Redis{client: stub, ttl: DefaultTTL, log: zerolog.Nop()}
}

func TestRedisRoundTrip(t *testing.T) {
	ctx := context.Background()
	r := newTestRedis(newStubRedis())

	m := &model.Memory{ID: "m1", Content: "hello", Owner: "alice", Tags: []string{"x"}}
	r.Set(ctx, m)

	got, ok := r.Get(ctx, "m1")
	if !ok {
		t.Fatal("expected hit")
	}
	if got.Content != "hello" || got.Owner != "alice" {
		t.Errorf("got %+v", got)
	}

	r.Delete(ctx, "m1")
	if _, ok := r.Get(ctx, "m1"); ok {
		t.Error("expected miss after delete")
	}
}

func TestRedisMissOnAbsent(t *testing.T) {
	r := newTestRedis(newStubRedis())
	if _, ok := r.Get(context.Background(), "ghost"); ok {
		t.Error("expected miss")
	}
}

func TestRedisErrorsAreMisses(t *testing.T) {
	ctx := context.Background()
	stub := newStubRedis()
	r := newTestRedis(stub)

	stub.fail = true

	// No call may return an error or panic; failures degrade to misses.
	r.Set(ctx, &model.Memory{ID: "m1", Content: "x", Owner: "o"})
	if _, ok := r.Get(ctx, "m1"); ok {
		t.Error("expected miss while unreachable")
	}
	r.Delete(ctx, "m1")
}

func TestRedisCorruptEntryIsMiss(t *testing.T) {
	stub := newStubRedis()
	stub.data[keyPrefix+"m1"] = "{not json"
	r := newTestRedis(stub)

	if _, ok := r.Get(context.Background(), "m1"); ok {
		t.Error("expected corrupt entry treated as miss")
	}
}

func TestConnectBadURLDisablesTier(t *testing.T) {
	if r := Connect(context.Background(), "not a url", zerolog.Nop()); r != nil {
		t.Error("expected nil tier for invalid url")
	}
	if r := Connect(context.Background(), "", zerolog.Nop()); r != nil {
		t.Error("expected nil tier for empty url")
	}
}

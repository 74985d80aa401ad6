package redis

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/angelmondragon/packfinderz-inventory/pkg/config"
)

func TestIncrWithTTLStartsWindowOnce(t *testing.T) {
	ctx := context.Background()
	mock := newMockCmdable()
	client := &Client{store: mock}
	key := client.RateLimitKey("reserve:10.0.0.1")

	for want := int64(1); want <= 3; want++ {
		got, err := client.IncrWithTTL(ctx, key, time.Minute)
		if err != nil {
			t.Fatalf("incr: %v", err)
		}
		if got != want {
			t.Fatalf("expected %d, got %d", want, got)
		}
	}
	if mock.ttls[key] != time.Minute {
		t.Fatalf("expected one minute window, got %v", mock.ttls[key])
	}
	if mock.ttlSets != 1 {
		t.Fatalf("ttl should be set only on the first hit, set %d times", mock.ttlSets)
	}
}

func TestDelIfValueOnlyRemovesOwnedKey(t *testing.T) {
	ctx := context.Background()
	mock := newMockCmdable()
	client := &Client{store: mock}

	if ok, err := client.SetNX(ctx, "pf:lock", "owner-a", time.Minute); err != nil || !ok {
		t.Fatalf("setnx ok=%v err=%v", ok, err)
	}
	if removed, err := client.DelIfValue(ctx, "pf:lock", "owner-b"); err != nil || removed {
		t.Fatalf("foreign owner removed lock: removed=%v err=%v", removed, err)
	}
	if removed, err := client.DelIfValue(ctx, "pf:lock", "owner-a"); err != nil || !removed {
		t.Fatalf("owner could not remove lock: removed=%v err=%v", removed, err)
	}
	if _, err := client.Get(ctx, "pf:lock"); err != redis.Nil {
		t.Fatalf("expected redis.Nil after delete, got %v", err)
	}
}

func TestCheckoutLocationRoundTrip(t *testing.T) {
	ctx := context.Background()
	client := &Client{store: newMockCmdable()}

	key := client.CheckoutLocationKey("sess-1")
	if err := client.Set(ctx, key, "loc-a", time.Hour); err != nil {
		t.Fatalf("set failed: %v", err)
	}
	if value, err := client.Get(ctx, key); err != nil || value != "loc-a" {
		t.Fatalf("get returned %q err=%v", value, err)
	}
	if err := client.Del(ctx, key); err != nil {
		t.Fatalf("del failed: %v", err)
	}
	if _, err := client.Get(ctx, key); err != redis.Nil {
		t.Fatalf("expected redis.Nil after del, got %v", err)
	}
}

func TestUninitializedClient(t *testing.T) {
	client := &Client{}
	if err := client.Set(context.Background(), "k", "v", 0); err != errNotInitialized {
		t.Fatalf("expected not initialized error, got %v", err)
	}
	if _, err := client.IncrWithTTL(context.Background(), "k", time.Second); err != errNotInitialized {
		t.Fatalf("expected not initialized error, got %v", err)
	}
	if err := client.Close(); err != nil {
		t.Fatalf("close without a connection should be a no-op, got %v", err)
	}
	var nilClient *Client
	if err := nilClient.Ping(context.Background()); err != errNotInitialized {
		t.Fatalf("nil client ping: %v", err)
	}
}

func TestKeyBuilders(t *testing.T) {
	client := &Client{}
	cases := map[string]string{
		client.IdempotencyKey("scope", "id"): "pf:idempotency:scope:id",
		client.IdempotencyKey("", "id"):      "pf:idempotency:id",
		client.RateLimitKey("reserve"):       "pf:rate_limit:reserve",
		client.CheckoutLocationKey(" sess "): "pf:checkout_location:sess",
	}
	for got, want := range cases {
		if got != want {
			t.Fatalf("expected %s, got %s", want, got)
		}
	}
}

func TestOptionsFromConfig(t *testing.T) {
	opts, err := optionsFromConfig(config.RedisConfig{
		URL:         "redis://:secret@cache:6380/2",
		PoolSize:    7,
		DialTimeout: 3 * time.Second,
	})
	if err != nil {
		t.Fatalf("options: %v", err)
	}
	if opts.Addr != "cache:6380" || opts.DB != 2 || opts.Password != "secret" {
		t.Fatalf("url not applied: %+v", opts)
	}
	if opts.PoolSize != 7 || opts.DialTimeout != 3*time.Second {
		t.Fatalf("config fallbacks not applied: pool=%d dial=%v", opts.PoolSize, opts.DialTimeout)
	}

	opts, err = optionsFromConfig(config.RedisConfig{Address: "localhost:6379", DB: 4})
	if err != nil || opts.Addr != "localhost:6379" || opts.DB != 4 {
		t.Fatalf("address config not applied: %+v err=%v", opts, err)
	}

	if _, err := optionsFromConfig(config.RedisConfig{}); err == nil {
		t.Fatal("expected error without url or address")
	}
}

type mockCmdable struct {
	data    map[string]string
	ttls    map[string]time.Duration
	ttlSets int
}

func newMockCmdable() *mockCmdable {
	return &mockCmdable{data: map[string]string{}, ttls: map[string]time.Duration{}}
}

func (m *mockCmdable) Ping(context.Context) *redis.StatusCmd {
	return redis.NewStatusResult("PONG", nil)
}

func (m *mockCmdable) Get(_ context.Context, key string) *redis.StringCmd {
	v, ok := m.data[key]
	if !ok {
		return redis.NewStringResult("", redis.Nil)
	}
	return redis.NewStringResult(v, nil)
}

func (m *mockCmdable) Set(_ context.Context, key string, value any, ttl time.Duration) *redis.StatusCmd {
	m.data[key] = fmt.Sprint(value)
	m.ttls[key] = ttl
	return redis.NewStatusResult("OK", nil)
}

func (m *mockCmdable) SetNX(_ context.Context, key string, value any, ttl time.Duration) *redis.BoolCmd {
	if _, exists := m.data[key]; exists {
		return redis.NewBoolResult(false, nil)
	}
	m.data[key] = fmt.Sprint(value)
	m.ttls[key] = ttl
	return redis.NewBoolResult(true, nil)
}

func (m *mockCmdable) Del(_ context.Context, keys ...string) *redis.IntCmd {
	var n int64
	for _, key := range keys {
		if _, ok := m.data[key]; ok {
			n++
		}
		delete(m.data, key)
	}
	return redis.NewIntResult(n, nil)
}

// Eval emulates the two scripts the client ships.
func (m *mockCmdable) Eval(_ context.Context, script string, keys []string, args ...any) *redis.Cmd {
	key := keys[0]
	switch script {
	case incrExpireScript:
		var n int64
		fmt.Sscan(m.data[key], &n)
		n++
		m.data[key] = fmt.Sprint(n)
		if n == 1 {
			m.ttls[key] = time.Duration(args[0].(int64)) * time.Millisecond
			m.ttlSets++
		}
		return redis.NewCmdResult(n, nil)
	case delIfValueScript:
		if v, ok := m.data[key]; ok && v == args[0] {
			delete(m.data, key)
			return redis.NewCmdResult(int64(1), nil)
		}
		return redis.NewCmdResult(int64(0), nil)
	}
	return redis.NewCmdResult(nil, fmt.Errorf("unexpected script"))
}

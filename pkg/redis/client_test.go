package redis

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/gebeya-market/gebeya-backend/pkg/config"
)

func TestIncrWithTTLStartsExpiryOnce(t *testing.T) {
	ctx := context.Background()
	fake := newFakeCommands()
	client := &Client{cmd: fake}
	key := client.RateLimitKey("payout_verification:ip:10.0.0.1")

	for want := int64(1); want <= 3; want++ {
		got, err := client.IncrWithTTL(ctx, key, time.Minute)
		if err != nil {
			t.Fatalf("incr: %v", err)
		}
		if got != want {
			t.Fatalf("expected %d got %d", want, got)
		}
	}
	if fake.expiries[key] != 1 {
		t.Fatalf("expiry should be set exactly once, got %d", fake.expiries[key])
	}
}

func TestCompareAndDeleteOnlyRemovesOwnedValue(t *testing.T) {
	ctx := context.Background()
	fake := newFakeCommands()
	client := &Client{cmd: fake}
	key := client.LockKey("cron-worker:prod")
	fake.data[key] = "owner-a"

	ok, err := client.CompareAndDelete(ctx, key, "owner-b")
	if err != nil || ok {
		t.Fatalf("foreign owner must not delete: ok=%v err=%v", ok, err)
	}
	ok, err = client.CompareAndExpire(ctx, key, "owner-a", time.Minute)
	if err != nil || !ok {
		t.Fatalf("owner should extend: ok=%v err=%v", ok, err)
	}
	ok, err = client.CompareAndDelete(ctx, key, "owner-a")
	if err != nil || !ok {
		t.Fatalf("owner should delete: ok=%v err=%v", ok, err)
	}
	if _, err := client.Get(ctx, key); !errors.Is(err, Nil) {
		t.Fatalf("expected Nil after delete, got %v", err)
	}
}

func TestVerificationCodeLifecycle(t *testing.T) {
	ctx := context.Background()
	client := &Client{cmd: newFakeCommands()}
	key := client.VerificationKey("payout", "pm-1")

	if err := client.Set(ctx, key, "hash", 10*time.Minute); err != nil {
		t.Fatalf("set failed: %v", err)
	}
	got, err := client.Get(ctx, key)
	if err != nil || got != "hash" {
		t.Fatalf("expected stored hash, got %q err=%v", got, err)
	}
	if err := client.Del(ctx, key); err != nil {
		t.Fatalf("del failed: %v", err)
	}
	if _, err := client.Get(ctx, key); !errors.Is(err, Nil) {
		t.Fatalf("expected Nil after delete, got %v", err)
	}
}

func TestPublishRecordsChannel(t *testing.T) {
	fake := newFakeCommands()
	client := &Client{cmd: fake}
	channel := client.NotificationChannel("user-1")
	if err := client.Publish(context.Background(), channel, `{"unread":3}`); err != nil {
		t.Fatalf("publish failed: %v", err)
	}
	if len(fake.published[channel]) != 1 {
		t.Fatalf("expected one message on %s", channel)
	}
}

func TestUnconnectedClientFails(t *testing.T) {
	client := &Client{}
	if err := client.Ping(context.Background()); !errors.Is(err, errNotConnected) {
		t.Fatalf("expected errNotConnected, got %v", err)
	}
	if _, err := client.PSubscribe(context.Background(), client.NotificationPattern()); err == nil {
		t.Fatalf("expected PSubscribe to need a connection")
	}
	if err := client.Close(); err != nil {
		t.Fatalf("close without connection: %v", err)
	}
}

func TestKeyBuilders(t *testing.T) {
	client := &Client{}
	tests := []struct {
		got  string
		want string
	}{
		{got: client.IdempotencyKey("scope", "id"), want: "gebeya:idempotency:scope:id"},
		{got: client.RateLimitKey("scope"), want: "gebeya:rate_limit:scope"},
		{got: client.CounterKey("unread:u1"), want: "gebeya:counter:unread:u1"},
		{got: client.VerificationKey("payout", "pm"), want: "gebeya:verify:payout:pm"},
		{got: client.LockKey("cron-worker:dev"), want: "gebeya:lock:cron-worker:dev"},
		{got: client.NotificationChannel("u1"), want: "gebeya:notify:u1"},
		{got: client.NotificationPattern(), want: "gebeya:notify:*"},
		{got: client.IdempotencyKey("", " trimmed "), want: "gebeya:idempotency:trimmed"},
	}
	for _, tt := range tests {
		if tt.got != tt.want {
			t.Fatalf("unexpected key %s, want %s", tt.got, tt.want)
		}
	}
}

func TestOptionsFillFromConfig(t *testing.T) {
	opts, err := options(config.RedisConfig{URL: "redis://localhost:6379/2", PoolSize: 20, DialTimeout: 3 * time.Second})
	if err != nil {
		t.Fatalf("options: %v", err)
	}
	if opts.DB != 2 || opts.PoolSize != 20 || opts.DialTimeout != 3*time.Second {
		t.Fatalf("unexpected options: db=%d pool=%d dial=%v", opts.DB, opts.PoolSize, opts.DialTimeout)
	}
	if _, err := options(config.RedisConfig{}); err == nil {
		t.Fatalf("expected error without url or address")
	}
}

// fakeCommands understands the three scripts the client sends.
type fakeCommands struct {
	data      map[string]string
	expiries  map[string]int
	published map[string][]string
}

func newFakeCommands() *fakeCommands {
	return &fakeCommands{
		data:      map[string]string{},
		expiries:  map[string]int{},
		published: map[string][]string{},
	}
}

func (f *fakeCommands) Ping(context.Context) *redis.StatusCmd {
	return redis.NewStatusResult("PONG", nil)
}

func (f *fakeCommands) Set(_ context.Context, key string, value any, _ time.Duration) *redis.StatusCmd {
	f.data[key] = fmt.Sprint(value)
	return redis.NewStatusResult("OK", nil)
}

func (f *fakeCommands) SetNX(_ context.Context, key string, value any, _ time.Duration) *redis.BoolCmd {
	if _, ok := f.data[key]; ok {
		return redis.NewBoolResult(false, nil)
	}
	f.data[key] = fmt.Sprint(value)
	return redis.NewBoolResult(true, nil)
}

func (f *fakeCommands) Get(_ context.Context, key string) *redis.StringCmd {
	v, ok := f.data[key]
	if !ok {
		return redis.NewStringResult("", redis.Nil)
	}
	return redis.NewStringResult(v, nil)
}

func (f *fakeCommands) Del(_ context.Context, keys ...string) *redis.IntCmd {
	for _, k := range keys {
		delete(f.data, k)
	}
	return redis.NewIntResult(int64(len(keys)), nil)
}

func (f *fakeCommands) Eval(_ context.Context, script string, keys []string, args ...any) *redis.Cmd {
	key := keys[0]
	switch script {
	case incrExpireScript:
		n, _ := strconv.ParseInt(f.data[key], 10, 64)
		n++
		f.data[key] = strconv.FormatInt(n, 10)
		if n == 1 {
			f.expiries[key]++
		}
		return redis.NewCmdResult(n, nil)
	case compareDeleteScript:
		if f.data[key] == fmt.Sprint(args[0]) {
			delete(f.data, key)
			return redis.NewCmdResult(int64(1), nil)
		}
		return redis.NewCmdResult(int64(0), nil)
	case compareExpireScript:
		if f.data[key] == fmt.Sprint(args[0]) {
			f.expiries[key]++
			return redis.NewCmdResult(int64(1), nil)
		}
		return redis.NewCmdResult(int64(0), nil)
	}
	return redis.NewCmdResult(nil, fmt.Errorf("unexpected script"))
}

func (f *fakeCommands) Publish(_ context.Context, channel string, message any) *redis.IntCmd {
	f.published[channel] = append(f.published[channel], fmt.Sprint(message))
	return redis.NewIntResult(1, nil)
}

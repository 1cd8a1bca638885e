package utils

import (
	"context"
	"testing"
	"time"
)

func TestScriptsInitialized(t *testing.T) {
	if lockAcquireScript == nil || lockReleaseScript == nil || rateWindowScript == nil {
		t.Fatalf("expected scripts to be initialized")
	}
}

func TestAcquireLock_ValidatesArgs(t *testing.T) {
	ctx := context.Background()
	if _, err := AcquireLock(ctx, nil, "k", time.Second); err == nil {
		t.Fatalf("expected error for nil client")
	}
	if _, err := AllowRate(ctx, nil, "k", 1, time.Second); err == nil {
		t.Fatalf("expected error for nil client")
	}
}

func TestLockRelease_NilIsNoop(t *testing.T) {
	var l *Lock
	if err := l.Release(context.Background()); err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
}

func TestRedisDefaults(t *testing.T) {
	c := RedisConfig{Addr: "localhost:6379"}.withDefaults()
	if c.PoolSize != 20 || c.PingTimeout != 2*time.Second {
		t.Fatalf("unexpected defaults: %+v", c)
	}
}

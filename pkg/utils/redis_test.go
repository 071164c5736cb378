package utils

import (
	"testing"
	"time"
)

func TestTickScriptsCompile(t *testing.T) {
	// Compile-time smoke test: scripts should be initialized.
	if tickAcquireScript == nil || tickReleaseScript == nil {
		t.Fatalf("expected scripts to be initialized")
	}
}

func TestRedisConfigDefaults(t *testing.T) {
	cfg := RedisConfig{Addr: "localhost:6379"}.withDefaults()
	if cfg.DialTimeout != 3*time.Second {
		t.Fatalf("unexpected dial timeout: %v", cfg.DialTimeout)
	}
	if cfg.PoolSize != 20 {
		t.Fatalf("unexpected pool size: %d", cfg.PoolSize)
	}
}

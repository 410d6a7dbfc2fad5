package quote

import (
	"context"
	"testing"

	"limitless/engine"
)

func TestConfigFromEnvUsesDefaults(t *testing.T) {
	cfg := ConfigFromEnv(func(key, def string) string { return def })

	if cfg.Addr != "localhost:6379" || cfg.DB != 0 || cfg.TTL.Seconds() != 5 {
		t.Fatalf("unexpected defaults: %+v", cfg)
	}
}

func TestConfigFromEnvHonorsOverrides(t *testing.T) {
	env := map[string]string{
		"QUOTE_REDIS_ADDR":  "cache.internal:6380",
		"QUOTE_TTL_SECONDS": "30",
	}
	cfg := ConfigFromEnv(func(key, def string) string {
		if v, ok := env[key]; ok {
			return v
		}
		return def
	})

	if cfg.Addr != "cache.internal:6380" || cfg.TTL.Seconds() != 30 {
		t.Fatalf("unexpected overridden config: %+v", cfg)
	}
}

func TestNilCacheMethodsAreNoOps(t *testing.T) {
	var c *Cache
	c.PublishLevels("LMT", engine.OrderbookLevelInfos{})

	if _, ok := c.Levels(context.Background(), "LMT"); ok {
		t.Fatalf("expected no cached levels from a nil cache")
	}
	if err := c.Close(); err != nil {
		t.Fatalf("expected nil close error, got %v", err)
	}
}

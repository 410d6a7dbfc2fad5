// Package quote caches book-level snapshots in Redis so read-heavy clients
// (market data pollers, dashboards) don't compete with order flow for the
// engine's single mutex. Like journal, every write is best-effort.
package quote

import (
	"context"
	"encoding/json"
	"log"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"limitless/engine"
)

type Config struct {
	Addr         string
	Username     string
	Password     string
	DB           int
	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	TTL          time.Duration
}

func ConfigFromEnv(getenv func(string, string) string) Config {
	db, err := strconv.Atoi(getenv("QUOTE_REDIS_DB", "0"))
	if err != nil {
		db = 0
	}
	ttlSec, err := strconv.Atoi(getenv("QUOTE_TTL_SECONDS", "5"))
	if err != nil {
		ttlSec = 5
	}

	return Config{
		Addr:         getenv("QUOTE_REDIS_ADDR", "localhost:6379"),
		Username:     getenv("QUOTE_REDIS_USERNAME", ""),
		Password:     getenv("QUOTE_REDIS_PASSWORD", ""),
		DB:           db,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  2 * time.Second,
		WriteTimeout: 2 * time.Second,
		TTL:          time.Duration(ttlSec) * time.Second,
	}
}

// Cache publishes the latest OrderbookLevelInfos snapshot for a symbol. The
// zero value is not usable; construct with Open. Every method tolerates a
// nil *Cache as a no-op so callers can skip wiring Redis entirely.
type Cache struct {
	client *redis.Client
	ttl    time.Duration
}

func Open(ctx context.Context, cfg Config) (*Cache, error) {
	client := redis.NewClient(&redis.Options{
		Addr:         cfg.Addr,
		Username:     cfg.Username,
		Password:     cfg.Password,
		DB:           cfg.DB,
		DialTimeout:  cfg.DialTimeout,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	})

	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, err
	}

	return &Cache{client: client, ttl: cfg.TTL}, nil
}

func (c *Cache) Close() error {
	if c == nil || c.client == nil {
		return nil
	}
	return c.client.Close()
}

// PublishLevels stores the current book depth for symbol, best-effort.
func (c *Cache) PublishLevels(symbol string, infos engine.OrderbookLevelInfos) {
	if c == nil || c.client == nil {
		return
	}

	payload, err := json.Marshal(infos)
	if err != nil {
		log.Printf("quote: failed to marshal levels for %s: %v", symbol, err)
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 1*time.Second)
	defer cancel()

	if err := c.client.Set(ctx, levelsKey(symbol), payload, c.ttl).Err(); err != nil {
		log.Printf("quote: failed to publish levels for %s: %v", symbol, err)
	}
}

// Levels returns the last published snapshot for symbol, if it hasn't expired.
func (c *Cache) Levels(ctx context.Context, symbol string) (engine.OrderbookLevelInfos, bool) {
	if c == nil || c.client == nil {
		return engine.OrderbookLevelInfos{}, false
	}

	raw, err := c.client.Get(ctx, levelsKey(symbol)).Bytes()
	if err != nil {
		return engine.OrderbookLevelInfos{}, false
	}

	var infos engine.OrderbookLevelInfos
	if err := json.Unmarshal(raw, &infos); err != nil {
		log.Printf("quote: failed to unmarshal cached levels for %s: %v", symbol, err)
		return engine.OrderbookLevelInfos{}, false
	}
	return infos, true
}

func levelsKey(symbol string) string {
	return "limitbookd:levels:" + symbol
}

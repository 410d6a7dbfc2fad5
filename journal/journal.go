// Package journal persists executed trades to Postgres for later audit and
// replay. Writes are best-effort: a failed or slow database never blocks the
// matching loop, since trade execution has already happened by the time a
// batch reaches here.
package journal

import (
	"context"
	"fmt"
	"log"
	"strconv"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"limitless/engine"
)

// Config mirrors the connection tunables the example pack's Postgres pool
// wrapper exposes, driven entirely from environment variables so cmd/limitbookd
// can wire it up without a dedicated flag set.
type Config struct {
	Host            string
	Port            string
	User            string
	Password        string
	DBName          string
	SSLMode         string
	MaxConns        int32
	MaxConnLifetime time.Duration
	MaxConnIdleTime time.Duration
}

func ConfigFromEnv(getenv func(string, string) string) Config {
	maxConns, err := strconv.Atoi(getenv("JOURNAL_DB_MAX_CONNS", "10"))
	if err != nil {
		maxConns = 10
	}
	lifetimeSec, err := strconv.Atoi(getenv("JOURNAL_DB_MAX_CONN_LIFETIME", "3600"))
	if err != nil {
		lifetimeSec = 3600
	}
	idleSec, err := strconv.Atoi(getenv("JOURNAL_DB_MAX_CONN_IDLE_TIME", "1800"))
	if err != nil {
		idleSec = 1800
	}

	return Config{
		Host:            getenv("JOURNAL_DB_HOST", "localhost"),
		Port:            getenv("JOURNAL_DB_PORT", "5432"),
		User:            getenv("JOURNAL_DB_USER", "limitbookd"),
		Password:        getenv("JOURNAL_DB_PASSWORD", ""),
		DBName:          getenv("JOURNAL_DB_NAME", "limitbookd"),
		SSLMode:         getenv("JOURNAL_DB_SSLMODE", "disable"),
		MaxConns:        int32(maxConns),
		MaxConnLifetime: time.Duration(lifetimeSec) * time.Second,
		MaxConnIdleTime: time.Duration(idleSec) * time.Second,
	}
}

func (c Config) connString() string {
	return fmt.Sprintf("postgresql://%s:%s@%s:%s/%s?sslmode=%s",
		c.User, c.Password, c.Host, c.Port, c.DBName, c.SSLMode)
}

// Journal wraps a pgx connection pool and appends executed trades to the
// trades table. The zero value is not usable; construct with Open.
type Journal struct {
	pool *pgxpool.Pool
}

// Open connects to Postgres and ensures the trades table exists. Callers
// that can't afford a database dependency (tests, local loadgen runs) should
// skip constructing a Journal entirely rather than pointing it at nothing;
// every write method tolerates a nil *Journal as a no-op.
func Open(ctx context.Context, cfg Config) (*Journal, error) {
	poolCfg, err := pgxpool.ParseConfig(cfg.connString())
	if err != nil {
		return nil, fmt.Errorf("journal: parse config: %w", err)
	}
	poolCfg.MaxConns = cfg.MaxConns
	poolCfg.MaxConnLifetime = cfg.MaxConnLifetime
	poolCfg.MaxConnIdleTime = cfg.MaxConnIdleTime

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("journal: connect: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("journal: ping: %w", err)
	}

	j := &Journal{pool: pool}
	if err := j.createTable(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	return j, nil
}

func (j *Journal) createTable(ctx context.Context) error {
	const query = `
	CREATE TABLE IF NOT EXISTS trades (
		id BIGSERIAL PRIMARY KEY,
		symbol VARCHAR(20) NOT NULL,
		bid_order_id VARCHAR(64) NOT NULL,
		ask_order_id VARCHAR(64) NOT NULL,
		price BIGINT NOT NULL,
		quantity BIGINT NOT NULL,
		executed_at TIMESTAMPTZ NOT NULL DEFAULT now()
	);`
	_, err := j.pool.Exec(ctx, query)
	return err
}

func (j *Journal) Close() {
	if j == nil || j.pool == nil {
		return
	}
	j.pool.Close()
}

// Record appends trades resulting from a single AddOrder/ModifyOrder call.
// It never blocks the caller past a short timeout and only logs on failure;
// the matching engine has already committed the trade regardless of whether
// the journal write lands.
func (j *Journal) Record(symbol string, trades engine.Trades) {
	if j == nil || j.pool == nil || len(trades) == 0 {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	const query = `INSERT INTO trades (symbol, bid_order_id, ask_order_id, price, quantity) VALUES ($1, $2, $3, $4, $5)`
	batch := &pgx.Batch{}
	for _, t := range trades {
		batch.Queue(query, symbol, t.Bid.OrderID, t.Ask.OrderID, t.Bid.Price, t.Bid.Quantity)
	}

	results := j.pool.SendBatch(ctx, batch)
	err := results.Close()
	if err != nil {
		log.Printf("journal: failed to record %d trade(s) for %s: %v", len(trades), symbol, err)
	}
}

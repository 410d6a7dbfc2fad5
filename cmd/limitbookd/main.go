// Command limitbookd runs the matching engine behind an HTTP/WebSocket
// front end, with optional trade journaling and quote caching wired in from
// the environment. Every ambient dependency degrades to a no-op when it
// can't connect, so a bare `go run` with no Postgres or Redis nearby still
// serves a working book.
package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"

	"limitless/bots"
	"limitless/engine"
	"limitless/journal"
	"limitless/quote"
	"limitless/server"
)

const (
	defaultListenAddr = ":8080"
	defaultSymbol     = "LMT"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Printf("no .env file loaded: %v", err)
	}

	listenAddr := getEnv("LISTEN_ADDR", defaultListenAddr)
	symbol := getEnv("SYMBOL", defaultSymbol)
	tickSize := parseIntEnv("TICK_SIZE", 1)
	authToken := os.Getenv("AUTH_TOKEN")
	corsOrigin := getEnv("CORS_ORIGIN", "*")
	cutoffHour := int(parseIntEnv("GOOD_FOR_DAY_CUTOFF_HOUR", 16))
	botsEnabled := getEnv("ENABLE_BOTS", "false") == "true"

	book := engine.NewOrderbook(engine.WithCutoffHour(cutoffHour))
	defer book.Stop()

	recorder := connectJournal()
	if recorder != nil {
		defer recorder.Close()
	}
	publisher := connectQuoteCache()
	if publisher != nil {
		defer publisher.Close()
	}

	srv := server.New(book, server.Config{
		Symbol:     symbol,
		TickSize:   tickSize,
		AuthToken:  authToken,
		CORSOrigin: corsOrigin,
	}, recorder, publisher)

	if botsEnabled {
		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()
		sup := bots.NewSupervisor(book, symbol, tickSize, 50*time.Millisecond)
		go sup.Start(ctx)
	}

	log.Printf("listening on %s for symbol %s", listenAddr, symbol)
	if err := http.ListenAndServe(listenAddr, srv.Routes()); err != nil {
		log.Fatal(err)
	}
}

// connectJournal opens the Postgres trade journal when JOURNAL_ENABLED is
// "true" and returns nil otherwise; a connection failure is logged and
// treated as "no journal configured" rather than a fatal startup error.
func connectJournal() *journal.Journal {
	if os.Getenv("JOURNAL_ENABLED") != "true" {
		return nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	j, err := journal.Open(ctx, journal.ConfigFromEnv(getEnv))
	if err != nil {
		log.Printf("journal disabled: %v", err)
		return nil
	}
	return j
}

func connectQuoteCache() *quote.Cache {
	if os.Getenv("QUOTE_CACHE_ENABLED") != "true" {
		return nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	c, err := quote.Open(ctx, quote.ConfigFromEnv(getEnv))
	if err != nil {
		log.Printf("quote cache disabled: %v", err)
		return nil
	}
	return c
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func parseIntEnv(key string, defaultValue int64) int64 {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	parsed, err := strconv.ParseInt(value, 10, 64)
	if err != nil {
		log.Printf("invalid %s value %s: %v, falling back to %d", key, value, err, defaultValue)
		return defaultValue
	}
	return parsed
}

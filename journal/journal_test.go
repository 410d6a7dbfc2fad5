package journal

import (
	"testing"

	"limitless/engine"
)

func TestConfigFromEnvUsesDefaults(t *testing.T) {
	cfg := ConfigFromEnv(func(key, def string) string { return def })

	if cfg.Host != "localhost" || cfg.Port != "5432" || cfg.MaxConns != 10 {
		t.Fatalf("unexpected defaults: %+v", cfg)
	}
}

func TestConfigFromEnvHonorsOverrides(t *testing.T) {
	env := map[string]string{
		"JOURNAL_DB_HOST":      "db.internal",
		"JOURNAL_DB_MAX_CONNS": "25",
		"JOURNAL_DB_SSLMODE":   "require",
	}
	cfg := ConfigFromEnv(func(key, def string) string {
		if v, ok := env[key]; ok {
			return v
		}
		return def
	})

	if cfg.Host != "db.internal" || cfg.MaxConns != 25 || cfg.SSLMode != "require" {
		t.Fatalf("unexpected overridden config: %+v", cfg)
	}
}

func TestNilJournalMethodsAreNoOps(t *testing.T) {
	var j *Journal
	j.Record("LMT", engine.Trades{{Bid: engine.TradeInfo{OrderID: "1"}, Ask: engine.TradeInfo{OrderID: "2"}}})
	j.Close()
}

package config

import (
	"testing"
	"time"
)

func TestParseSQLiteDefaults(t *testing.T) {
	t.Setenv("APP_PORT", "8080")
	t.Setenv("JWT_SECRET", "secret")
	t.Setenv("DB_DRIVER", "SQLite")

	cfg, err := Parse()
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if cfg.DBDriver != DriverSQLite || cfg.SQLitePath != "sponsorship.db" {
		t.Fatalf("db = %q %q", cfg.DBDriver, cfg.SQLitePath)
	}
	if cfg.AccessTTL() != 15*time.Minute || cfg.RefreshTTL() != 30*24*time.Hour {
		t.Fatalf("ttl = %v %v", cfg.AccessTTL(), cfg.RefreshTTL())
	}
	if cfg.DecisionQueue != "partnership.decisions" || cfg.DefaultLanguage != "en" {
		t.Fatalf("defaults = %+v", cfg)
	}
}

func TestParseRejectsMissingValues(t *testing.T) {
	tests := []struct {
		name string
		env  map[string]string
	}{
		{name: "no port", env: map[string]string{"JWT_SECRET": "s", "DB_DRIVER": "sqlite"}},
		{name: "no secret", env: map[string]string{"APP_PORT": "1", "DB_DRIVER": "sqlite"}},
		{name: "mysql without host", env: map[string]string{"APP_PORT": "1", "JWT_SECRET": "s", "DB_USER": "u", "DB_NAME": "n"}},
		{name: "unknown driver", env: map[string]string{"APP_PORT": "1", "JWT_SECRET": "s", "DB_DRIVER": "oracle"}},
		{name: "bad bcrypt cost", env: map[string]string{"APP_PORT": "1", "JWT_SECRET": "s", "DB_DRIVER": "sqlite", "BCRYPT_COST": "2"}},
	}
	keys := []string{"APP_PORT", "JWT_SECRET", "DB_DRIVER", "DB_USER", "DB_HOST", "DB_NAME", "BCRYPT_COST"}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			for _, k := range keys {
				t.Setenv(k, tc.env[k])
			}
			if _, err := Parse(); err == nil {
				t.Fatalf("expected error")
			}
		})
	}
}

func TestRateLimitNormalize(t *testing.T) {
	t.Setenv("RATE_LIMIT_BURST", "10")
	t.Setenv("RATE_LIMIT_REFILL_EVERY", "2s")
	t.Setenv("RATE_LIMIT_TTL", "1s")

	cfg := LoadRateLimitConfig()
	if cfg.Capacity != 10 || cfg.RefillTokens != 1 || cfg.RefillInterval != 2*time.Second {
		t.Fatalf("cfg = %+v", cfg)
	}
	if cfg.TTL != 10*time.Second {
		t.Fatalf("ttl = %v", cfg.TTL)
	}
}

func TestCacheMethods(t *testing.T) {
	t.Setenv("CACHE_METHODS", "get, head")
	cfg := LoadCacheConfig()
	if !cfg.Methods["GET"] || !cfg.Methods["HEAD"] || cfg.Methods["POST"] {
		t.Fatalf("methods = %v", cfg.Methods)
	}
}

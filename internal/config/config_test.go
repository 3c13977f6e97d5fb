package config

import (
	"strings"
	"testing"
	"time"
)

func env(m map[string]string) func(string) string {
	return func(k string) string { return m[k] }
}

const secret = "0123456789abcdef0123456789abcdef"

func TestFromEnvDefaults(t *testing.T) {
	cfg, err := FromEnv(env(map[string]string{"JWT_SECRET": secret}))
	if err != nil {
		t.Fatalf("FromEnv: %v", err)
	}
	if cfg.HTTPAddr != "0.0.0.0:8000" || cfg.StoreDriver != DriverPostgres {
		t.Fatalf("unexpected server defaults: %+v", cfg)
	}
	if cfg.AccessTokenTTL != 7*24*time.Hour {
		t.Fatalf("expected 7 day ttl, got %v", cfg.AccessTokenTTL)
	}
	if cfg.BcryptCost != 12 || cfg.LoginMaxAttempts != 5 || cfg.LoginLockWindow != 15*time.Minute {
		t.Fatalf("unexpected auth defaults: %+v", cfg)
	}
	if cfg.JWTIssuer != "stylepin-api" {
		t.Fatalf("unexpected issuer %q", cfg.JWTIssuer)
	}
	if len(cfg.TrustedProxies) != 0 {
		t.Fatalf("no proxy must be trusted by default, got %v", cfg.TrustedProxies)
	}
	if cfg.Database.TimeZone != "UTC" || cfg.Log.Level != "info" {
		t.Fatalf("unexpected database or log defaults: %+v %+v", cfg.Database, cfg.Log)
	}
}

func TestFromEnvOverrides(t *testing.T) {
	cfg, err := FromEnv(env(map[string]string{
		"JWT_SECRET":                  secret,
		"STORE_DRIVER":                "Memory",
		"ACCESS_TOKEN_EXPIRE_MINUTES": "30",
		"LOGIN_MAX_ATTEMPTS":          "3",
		"AUTH_RATE_WINDOW_SECONDS":    "10",
		"TRUSTED_PROXIES":             "10.0.0.0/8, 192.0.2.1",
		"DATABASE_URL":                "postgres://app@db:5432/stylepin",
		"DATABASE_TIMEZONE":           "America/Mexico_City",
		"LOG_LEVEL":                   "warn",
		"LOG_MAX_AGE_DAYS":            "30",
	}))
	if err != nil {
		t.Fatalf("FromEnv: %v", err)
	}
	if cfg.StoreDriver != DriverMemory || cfg.AccessTokenTTL != 30*time.Minute || cfg.LoginMaxAttempts != 3 {
		t.Fatalf("overrides not applied: %+v", cfg)
	}
	if cfg.AuthRateWindow != 10*time.Second {
		t.Fatalf("unexpected rate window %v", cfg.AuthRateWindow)
	}
	if len(cfg.TrustedProxies) != 2 || cfg.TrustedProxies[1].String() != "192.0.2.1/32" {
		t.Fatalf("unexpected trusted proxies %v", cfg.TrustedProxies)
	}
	if cfg.Database.DSN != "postgres://app@db:5432/stylepin" || cfg.Database.TimeZone != "America/Mexico_City" {
		t.Fatalf("database settings must come from the lookup: %+v", cfg.Database)
	}
	if cfg.Log.Level != "warn" || cfg.Log.MaxAgeDays != 30 {
		t.Fatalf("log settings must come from the lookup: %+v", cfg.Log)
	}
}

func TestFromEnvRejectsInvalid(t *testing.T) {
	cases := map[string]map[string]string{
		"missing secret": {},
		"short secret":   {"JWT_SECRET": "short"},
		"bad int":        {"JWT_SECRET": secret, "BCRYPT_COST": "twelve"},
		"bad cost":       {"JWT_SECRET": secret, "BCRYPT_COST": "40"},
		"bad driver":     {"JWT_SECRET": secret, "STORE_DRIVER": "mongo"},
		"zero attempts":  {"JWT_SECRET": secret, "LOGIN_MAX_ATTEMPTS": "0"},
		"bad proxy":      {"JWT_SECRET": secret, "TRUSTED_PROXIES": "10.0.0.0/40"},
	}
	for name, m := range cases {
		if _, err := FromEnv(env(m)); err == nil {
			t.Fatalf("%s: expected error", name)
		}
	}
}

func TestFromEnvJoinsErrors(t *testing.T) {
	_, err := FromEnv(env(map[string]string{"STORE_DRIVER": "mongo"}))
	if err == nil || !strings.Contains(err.Error(), "JWT_SECRET") || !strings.Contains(err.Error(), "STORE_DRIVER") {
		t.Fatalf("expected both problems reported, got %v", err)
	}
}

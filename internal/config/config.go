// Package config loads the service settings once at startup.
package config

import (
	"errors"
	"fmt"
	"net/netip"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"github.com/AlessandraU03/stylepin-api/internal/auth"
	"github.com/AlessandraU03/stylepin-api/internal/ratelimit"
	"github.com/AlessandraU03/stylepin-api/pkg/database"
	"github.com/AlessandraU03/stylepin-api/pkg/utilities"
)

const (
	DriverPostgres = "postgres"
	DriverMemory   = "memory"
)

type Config struct {
	AppName    string
	AppVersion string
	HTTPAddr   string

	StoreDriver string
	Database    database.Config

	JWTSecret        []byte
	JWTIssuer        string
	AccessTokenTTL   time.Duration
	BcryptCost       int
	LoginMaxAttempts int
	LoginLockWindow  time.Duration

	RedisURL        string
	AuthRateLimit   int
	AuthRateWindow  time.Duration
	TrustedProxies  []netip.Prefix
	SnowflakeNodeID int64

	Log utilities.Config
}

// Load reads an optional .env file and then the process environment.
func Load() (Config, error) {
	// best-effort: a missing .env is fine
	_ = godotenv.Load()
	return FromEnv(os.Getenv)
}

// FromEnv builds a Config from a lookup function.
func FromEnv(getenv func(string) string) (Config, error) {
	p := parser{getenv: getenv}
	cfg := Config{
		AppName:    p.str("APP_NAME", "StylePin API"),
		AppVersion: p.str("APP_VERSION", "1.0.0"),
		HTTPAddr:   p.str("HTTP_ADDR", "0.0.0.0:8000"),

		StoreDriver: strings.ToLower(p.str("STORE_DRIVER", DriverPostgres)),

		JWTSecret:        []byte(getenv("JWT_SECRET")),
		JWTIssuer:        p.str("JWT_ISSUER", "stylepin-api"),
		AccessTokenTTL:   time.Duration(p.int("ACCESS_TOKEN_EXPIRE_MINUTES", 60*24*7)) * time.Minute,
		BcryptCost:       p.int("BCRYPT_COST", auth.DefaultCost),
		LoginMaxAttempts: p.int("LOGIN_MAX_ATTEMPTS", 5),
		LoginLockWindow:  time.Duration(p.int("LOGIN_LOCK_MINUTES", 15)) * time.Minute,

		RedisURL:        getenv("REDIS_URL"),
		AuthRateLimit:   p.int("AUTH_RATE_LIMIT", 20),
		AuthRateWindow:  time.Duration(p.int("AUTH_RATE_WINDOW_SECONDS", 60)) * time.Second,
		SnowflakeNodeID: int64(p.int("SNOWFLAKE_NODE", 1)),
	}
	cfg.Database = database.ConfigFrom(getenv)
	cfg.Log = utilities.ConfigFrom(getenv)
	cfg.TrustedProxies = p.prefixes("TRUSTED_PROXIES")

	if p.err != nil {
		return Config{}, p.err
	}
	if err := cfg.validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) validate() error {
	var errs []error
	if len(c.JWTSecret) < auth.MinSecretBytes {
		errs = append(errs, fmt.Errorf("JWT_SECRET must be at least %d bytes", auth.MinSecretBytes))
	}
	if c.StoreDriver != DriverPostgres && c.StoreDriver != DriverMemory {
		errs = append(errs, fmt.Errorf("STORE_DRIVER must be %q or %q, got %q", DriverPostgres, DriverMemory, c.StoreDriver))
	}
	if c.AccessTokenTTL <= 0 {
		errs = append(errs, errors.New("ACCESS_TOKEN_EXPIRE_MINUTES must be positive"))
	}
	if _, err := auth.NewBcryptHasher(c.BcryptCost); err != nil {
		errs = append(errs, fmt.Errorf("BCRYPT_COST: %w", err))
	}
	if c.LoginMaxAttempts < 1 {
		errs = append(errs, errors.New("LOGIN_MAX_ATTEMPTS must be at least 1"))
	}
	if c.LoginLockWindow <= 0 {
		errs = append(errs, errors.New("LOGIN_LOCK_MINUTES must be positive"))
	}
	if c.AuthRateLimit < 1 || c.AuthRateWindow <= 0 {
		errs = append(errs, errors.New("AUTH_RATE_LIMIT and AUTH_RATE_WINDOW_SECONDS must be positive"))
	}
	if c.SnowflakeNodeID < 0 || c.SnowflakeNodeID > 1023 {
		errs = append(errs, errors.New("SNOWFLAKE_NODE must be within 0..1023"))
	}
	return errors.Join(errs...)
}

type parser struct {
	getenv func(string) string
	err    error
}

func (p *parser) str(key, def string) string {
	if v := strings.TrimSpace(p.getenv(key)); v != "" {
		return v
	}
	return def
}

func (p *parser) int(key string, def int) int {
	raw := strings.TrimSpace(p.getenv(key))
	if raw == "" {
		return def
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		p.err = errors.Join(p.err, fmt.Errorf("%s: %q is not an integer", key, raw))
		return def
	}
	return n
}

func (p *parser) prefixes(key string) []netip.Prefix {
	out, err := ratelimit.ParsePrefixes(p.getenv(key))
	if err != nil {
		p.err = errors.Join(p.err, fmt.Errorf("%s: %w", key, err))
		return nil
	}
	return out
}

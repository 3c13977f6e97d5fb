package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/AlessandraU03/stylepin-api/internal/auth"
	"github.com/AlessandraU03/stylepin-api/internal/config"
	"github.com/AlessandraU03/stylepin-api/internal/pin"
	pinrepo "github.com/AlessandraU03/stylepin-api/internal/pin/repo"
	"github.com/AlessandraU03/stylepin-api/internal/ratelimit"
	"github.com/AlessandraU03/stylepin-api/internal/router"
	"github.com/AlessandraU03/stylepin-api/internal/user"
	userrepo "github.com/AlessandraU03/stylepin-api/internal/user/repo"
	"github.com/AlessandraU03/stylepin-api/internal/validate"
	"github.com/AlessandraU03/stylepin-api/pkg/database"
	"github.com/AlessandraU03/stylepin-api/pkg/utilities"
)

type stores struct {
	users  user.AccountStore
	owners pin.Owners
	pins   pin.Store
	close  func() error
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "invalid configuration: %v\n", err)
		os.Exit(1)
	}

	lg, err := utilities.Init(cfg.Log)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to init logger: %v\n", err)
		os.Exit(1)
	}
	defer lg.Sync()

	sugar := lg.Sugar()
	sugar.Infow("starting", "app", cfg.AppName, "version", cfg.AppVersion, "store", cfg.StoreDriver)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	st, err := openStores(ctx, cfg)
	if err != nil {
		sugar.Fatalf("store init: %v", err)
	}
	defer st.close()

	ids, err := utilities.NewIDGenerator(cfg.SnowflakeNodeID)
	if err != nil {
		sugar.Fatalf("id generator: %v", err)
	}
	hasher, err := auth.NewBcryptHasher(cfg.BcryptCost)
	if err != nil {
		sugar.Fatalf("password hasher: %v", err)
	}
	tokens, err := auth.NewTokenService(auth.TokenConfig{
		Secret: cfg.JWTSecret,
		Issuer: cfg.JWTIssuer,
		TTL:    cfg.AccessTokenTTL,
	})
	if err != nil {
		sugar.Fatalf("token service: %v", err)
	}

	throttle, closeThrottle := newThrottle(ctx, cfg, sugar)
	defer closeThrottle()

	pinSvc := pin.NewService(st.pins, st.owners, ids.PinID, nil, sugar.Named("pin"))
	userSvc := user.NewService(st.users, hasher, tokens, sugar.Named("user"), user.Options{
		MaxAttempts: cfg.LoginMaxAttempts,
		LockWindow:  cfg.LoginLockWindow,
		NewID:       ids.AccountID,
		Pins:        pinSvc,
	})

	v := validate.New()
	handler := router.RegisterRoutes(router.Deps{
		Logger:     sugar,
		AppName:    cfg.AppName,
		AppVersion: cfg.AppVersion,
		Gate:       auth.NewGate(tokens, userSvc, nil, sugar.Named("auth")),
		Throttle:   throttle,
		ClientIPs:  ratelimit.ClientIPs{Trusted: cfg.TrustedProxies},
		Users:      user.NewHandler(userSvc, v, sugar),
		Pins:       pin.NewHandler(pinSvc, v, sugar),
	})
	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			sugar.Fatalf("http server failed: %v", err)
		}
	}()
	sugar.Infow("listening", "addr", cfg.HTTPAddr)

	<-ctx.Done()
	sugar.Info("shutting down")

	doneCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(doneCtx); err != nil {
		sugar.Warnf("http server shutdown failed: %v", err)
	}
	sugar.Info("goodbye")
}

func openStores(ctx context.Context, cfg config.Config) (*stores, error) {
	if cfg.StoreDriver == config.DriverMemory {
		users := userrepo.NewMemoryRepo()
		pins := pinrepo.NewMemoryRepo().WithOwners(users)
		return &stores{users: users, owners: users, pins: pins, close: func() error { return nil }}, nil
	}

	db, err := database.Open(cfg.Database)
	if err != nil {
		return nil, err
	}
	if err := migrate(ctx, db); err != nil {
		db.Close()
		return nil, err
	}
	users := userrepo.NewUserRepo(db)
	return &stores{users: users, owners: users, pins: pinrepo.NewPinRepo(db), close: db.Close}, nil
}

// migrate creates the tables in dependency order.
func migrate(ctx context.Context, db *sqlx.DB) error {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := userrepo.NewUserRepo(db).EnsureTable(ctx); err != nil {
		return fmt.Errorf("ensure users table: %w", err)
	}
	if err := pinrepo.NewPinRepo(db).EnsureTable(ctx); err != nil {
		return fmt.Errorf("ensure pins table: %w", err)
	}
	return nil
}

// newThrottle uses Redis when REDIS_URL is set, otherwise an in-process limiter.
func newThrottle(ctx context.Context, cfg config.Config, logger *zap.SugaredLogger) (ratelimit.Limiter, func()) {
	rl := ratelimit.Config{Max: cfg.AuthRateLimit, Window: cfg.AuthRateWindow, Prefix: "stylepin:auth"}
	if cfg.RedisURL == "" {
		return ratelimit.NewMemoryLimiter(rl, nil), func() {}
	}
	opts, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		logger.Warnw("invalid REDIS_URL, using in-process throttle", "err", err)
		return ratelimit.NewMemoryLimiter(rl, nil), func() {}
	}
	rdb := redis.NewClient(opts)
	pingCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	if err := rdb.Ping(pingCtx).Err(); err != nil {
		logger.Warnw("redis unreachable at startup, throttle fails open until it recovers", "err", err)
	}
	return ratelimit.NewRedisLimiter(rdb, rl), func() { _ = rdb.Close() }
}

package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	goredis "github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/expense-tracker/graphql-api/internal/api"
	"github.com/expense-tracker/graphql-api/internal/api/handler"
	"github.com/expense-tracker/graphql-api/internal/api/session"
	"github.com/expense-tracker/graphql-api/internal/core/ports"
	"github.com/expense-tracker/graphql-api/internal/core/service"
	"github.com/expense-tracker/graphql-api/internal/infrastructure/db/mongo"
	"github.com/expense-tracker/graphql-api/internal/infrastructure/db/redis"
	"github.com/expense-tracker/graphql-api/internal/infrastructure/keepalive"
	"github.com/expense-tracker/graphql-api/internal/pkg/config"
	"github.com/expense-tracker/graphql-api/pkg/logger"
)

const shutdownTimeout = 15 * time.Second

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load(ctx)
	if err != nil {
		// Logger options come from config, so fall back to a bare logger here.
		bare := zerolog.New(os.Stderr)
		bare.Fatal().Err(err).Msg("failed to load configuration")
	}

	log := logger.Init(logger.Options{
		Level:   cfg.LogLevel,
		Pretty:  !cfg.IsProduction(),
		Service: "expense-tracker",
	})

	if err := run(ctx, cfg, log); err != nil {
		log.Fatal().Err(err).Msg("server exited with error")
	}
	log.Info().Msg("server stopped")
}

func run(ctx context.Context, cfg *config.Config, log zerolog.Logger) error {
	// --- MongoDB ---
	client, db, err := mongo.Connect(ctx, mongo.Config{URI: cfg.Mongo.URI, Database: cfg.Mongo.Database})
	if err != nil {
		return err
	}
	defer func() {
		dctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := client.Disconnect(dctx); err != nil {
			log.Warn().Err(err).Msg("mongo disconnect failed")
		}
	}()
	if err := mongo.EnsureIndexes(ctx, db); err != nil {
		return err
	}
	log.Info().Str("database", cfg.Mongo.Database).Msg("connected to MongoDB")

	readiness := map[string]handler.Pinger{
		"mongodb": handler.PingerFunc(func(ctx context.Context) error { return client.Ping(ctx, nil) }),
	}

	// --- Redis (optional statistics cache) ---
	var statsCache ports.StatsCache
	if cfg.Redis.Addr != "" {
		rdb, err := redis.Connect(ctx, redis.Config{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		if err != nil {
			return err
		}
		defer rdb.Close()
		statsCache = redis.NewStatsCache(rdb, cfg.Redis.StatsTTL)
		readiness["redis"] = pingRedis(rdb)
		log.Info().Str("addr", cfg.Redis.Addr).Msg("connected to Redis")
	} else {
		log.Info().Msg("statistics cache disabled - no REDIS_ADDR provided")
	}

	// --- Services ---
	authService := service.NewAuthService(
		mongo.NewUserRepository(db),
		mongo.NewSessionRepository(db),
		cfg.Session.TTL,
		logger.Component("auth"),
	)
	txService := service.NewTransactionService(
		mongo.NewTransactionRepository(db),
		statsCache,
		logger.Component("transactions"),
	)

	e, err := api.NewRouter(api.Deps{
		Auth:         authService,
		Transactions: txService,
		Session:      session.Options{Secret: cfg.Session.Secret, Secure: cfg.Session.CookieSecure},
		CORSOrigin:   cfg.HTTP.CORSOrigin,
		Readiness:    readiness,
		Logger:       logger.Component("http"),
	})
	if err != nil {
		return err
	}

	pinger := keepalive.NewPinger(cfg.Keepalive.URL, cfg.Keepalive.Interval, nil, logger.Component("keepalive"))

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		log.Info().Str("port", cfg.Port).Msg("server ready at /graphql")
		if err := e.Start(":" + cfg.Port); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	g.Go(func() error {
		return pinger.Run(gctx)
	})

	g.Go(func() error {
		<-gctx.Done()
		log.Info().Msg("shutting down")
		sctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return e.Shutdown(sctx)
	})

	return g.Wait()
}

func pingRedis(rdb *goredis.Client) handler.Pinger {
	return handler.PingerFunc(func(ctx context.Context) error { return rdb.Ping(ctx).Err() })
}

package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	amqpad "jetstay/internal/adapters/amqp"
	server "jetstay/internal/adapters/http_server"
	"jetstay/internal/adapters/observability"
	redisad "jetstay/internal/adapters/redis"
	"jetstay/internal/app"
	"jetstay/internal/domain"
	"jetstay/internal/shared"
	mysqlrepo "jetstay/internal/storage/mysql"
)

func main() {
	cfg := shared.Load()

	// set global logger (console in dev, JSON otherwise)
	log.Logger = observability.NewLogger(cfg.AppEnv, cfg.LogLevel)

	observability.Serve(cfg.MetricsAddr)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	db, err := mysqlrepo.Open(ctx, cfg.MySQLDSN, mysqlrepo.Pool{
		MaxOpen:  cfg.DBMaxOpenConns,
		MaxIdle:  cfg.DBMaxIdleConns,
		Lifetime: cfg.DBConnLifetime,
	})
	if err != nil {
		log.Fatal().Err(err).Msg("database unavailable")
	}
	defer db.Close()
	log.Info().Msg("database connection ok")

	// deps
	repo := mysqlrepo.New(db, cfg.LockWaitTimeout)
	cache := redisad.New(cfg.RedisAddr, cfg.RedisPass, cfg.RedisDB)
	defer cache.Close()
	if err := cache.Ping(ctx); err != nil {
		log.Warn().Err(err).Msg("redis unreachable; reads will go to the database")
	}

	var events domain.EventPublisher = amqpad.LogPublisher{}
	if cfg.AMQPURL != "" {
		pub := amqpad.New(cfg.AMQPURL)
		defer pub.Close()
		events = pub
	}

	bookings := app.NewBookingService(repo, cache, events)
	queries := app.NewQueryService(repo, repo, cache, cfg.CacheTTL)
	reviews := app.NewReviewService(repo, repo, cache)

	// http
	srv := server.New()
	reg := observability.InitRegistry()
	srv.Mount("/metrics", observability.MetricsHandler(reg))
	srv.MountHandlers(&server.Handlers{
		Q:         queries,
		B:         bookings,
		R:         reviews,
		JWTSecret: cfg.JWTSecret,
		Limiter:   server.NewLimiter(cfg.BookingRPS, cfg.BookingBurst),
	})

	httpSrv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           srv.Mux(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info().Str("addr", cfg.HTTPAddr).Msg("API listening")
		if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		log.Info().Msg("shutting down")
		return httpSrv.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		log.Error().Err(err).Msg("http server failed")
		os.Exit(1)
	}
	log.Info().Msg("stopped")
}

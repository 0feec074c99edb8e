package main

import (
	"context"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"

	amqpad "jetstay/internal/adapters/amqp"
	"jetstay/internal/adapters/observability"
	redisad "jetstay/internal/adapters/redis"
	"jetstay/internal/app"
	"jetstay/internal/domain"
	"jetstay/internal/shared"
	mysqlrepo "jetstay/internal/storage/mysql"
)

// sweeper cancels PENDING hotel bookings whose check-in is close, on a
// fixed interval, until SIGINT/SIGTERM.
func main() {
	cfg := shared.Load()
	log.Logger = observability.NewLogger(cfg.AppEnv, cfg.LogLevel)
	observability.Serve(cfg.MetricsAddr)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	log.Info().
		Dur("interval", cfg.SweepInterval).
		Int("workers", cfg.SweepWorkers).
		Int("batch", cfg.SweepBatch).
		Int("days", cfg.PendingCancelDays).
		Msg("sweeper starting")

	db, err := mysqlrepo.Open(ctx, cfg.MySQLDSN, mysqlrepo.Pool{
		MaxOpen:  cfg.SweepWorkers + 1,
		MaxIdle:  cfg.SweepWorkers,
		Lifetime: cfg.DBConnLifetime,
	})
	if err != nil {
		log.Fatal().Err(err).Msg("database unavailable")
	}
	defer db.Close()

	repo := mysqlrepo.New(db, cfg.LockWaitTimeout)
	cache := redisad.New(cfg.RedisAddr, cfg.RedisPass, cfg.RedisDB)
	defer cache.Close()

	var events domain.EventPublisher = amqpad.LogPublisher{}
	if cfg.AMQPURL != "" {
		pub := amqpad.New(cfg.AMQPURL)
		defer pub.Close()
		events = pub
	}
	svc := app.NewBookingService(repo, cache, events)

	sweep := func() {
		n, err := svc.ExpirePending(ctx, cfg.PendingCancelDays, cfg.SweepWorkers, cfg.SweepBatch)
		if err != nil && ctx.Err() == nil {
			log.Error().Err(err).Msg("sweep failed")
			return
		}
		log.Info().Int("cancelled", n).Msg("sweep done")
	}

	sweep()
	t := time.NewTicker(cfg.SweepInterval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			log.Info().Msg("sweeper stopped")
			return
		case <-t.C:
			sweep()
		}
	}
}

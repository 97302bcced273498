package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"outbound-dialer/internal/calls"
	"outbound-dialer/internal/campaigns"
	"outbound-dialer/internal/config"
	"outbound-dialer/internal/jobs"
	"outbound-dialer/internal/telephony"
	"outbound-dialer/internal/wallet"
	"outbound-dialer/internal/worker"
	"outbound-dialer/pkg/logger"
	"outbound-dialer/pkg/utils"

	_ "github.com/jackc/pgx/v5/stdlib"
)

func main() {
	rootCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load()
	if err != nil {
		slog.Error("config load failed", "err", err)
		os.Exit(1)
	}

	log := logger.New(cfg.App.Env, "worker")
	slog.SetDefault(log)
	ctx := logger.With(rootCtx, log)

	db, err := utils.OpenPostgres(ctx, "pgx", cfg.PostgresDSN(), utils.PoolForWorkers(cfg.Worker.Count))
	if err != nil {
		log.Error("postgres init failed", "err", err)
		os.Exit(1)
	}
	defer db.Close()

	rdb, err := utils.OpenRedis(ctx, utils.RedisConfig{Addr: cfg.RedisAddr()})
	if err != nil {
		log.Error("redis init failed", "err", err)
		os.Exit(1)
	}
	defer rdb.Close()

	gateway, err := telephony.NewHTTPGateway(cfg.Gateway)
	if err != nil {
		log.Error("gateway init failed", "err", err)
		os.Exit(1)
	}

	settings := campaigns.NewConfigCache(campaigns.NewPostgresRepo(db), cfg.Dispatch.ConfigTTL)
	go func() {
		if err := campaigns.NewInvalidationBus(rdb).Subscribe(ctx, settings); err != nil {
			// The TTL still bounds staleness without the bus.
			log.Warn("config invalidation subscription ended", "err", err)
		}
	}()

	deps := calls.Deps{
		Store:          jobs.NewPostgresStore(db, cfg.Dispatch.MaxAttempts),
		Settings:       settings,
		Balance:        wallet.NewGuard(wallet.NewPostgresRepo(db)),
		Gateway:        gateway,
		Defaults:       cfg.Dispatch,
		GatewayDefault: cfg.Gateway,
	}
	if cfg.Dispatch.AccountCallCap > 0 {
		// Each slot is sized to its batch's call window on Acquire; this is the floor.
		ttl := cfg.Dispatch.RingTimeout + cfg.Dispatch.MaxCallDuration + 2*time.Minute
		deps.Cap = utils.NewAccountCallCap(rdb, cfg.Dispatch.AccountCallCap, ttl)
	}
	orch, err := calls.NewOrchestrator(deps)
	if err != nil {
		log.Error("orchestrator init failed", "err", err)
		os.Exit(1)
	}

	pool := worker.NewPool(deps.Store, orch, worker.Config{
		Count:         cfg.Worker.Count,
		LeaseDuration: cfg.Dispatch.LeaseDuration,
		IdleBackoff:   cfg.Worker.IdleBackoff,
		SweepInterval: cfg.Worker.SweepInterval,
	})
	if err := pool.Run(ctx); err != nil {
		log.Error("worker pool failed", "err", err)
		os.Exit(1)
	}
	log.Info("worker stopped")
}

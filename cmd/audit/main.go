package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"github.com/ariefcatur/go-farm-market.git/internal/audit"
	"github.com/ariefcatur/go-farm-market.git/internal/config"
	kafkax "github.com/ariefcatur/go-farm-market.git/internal/kafka"
	"github.com/ariefcatur/go-farm-market.git/internal/observability"
	"github.com/ariefcatur/go-farm-market.git/internal/orders"
	"github.com/ariefcatur/go-farm-market.git/internal/postgres"
	"github.com/ariefcatur/go-farm-market.git/internal/redisx"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	if cfg.StoreDriver != config.StorePostgres {
		log.Fatalf("audit consumer needs STORE_DRIVER=postgres")
	}
	if len(cfg.KafkaBrokers) == 0 || cfg.RedisAddr == "" {
		log.Fatalf("audit consumer needs KAFKA_BROKERS and REDIS_ADDR")
	}
	service := cfg.ServiceName + "-audit"

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	shutdownTelemetry, err := observability.SetupTelemetry(ctx, observability.TelemetryConfig{
		ServiceName: service,
		Endpoint:    cfg.OtelEndpoint,
		AuthHeader:  cfg.OtelAuthHeader,
		Insecure:    cfg.OtelInsecure,
	})
	if err != nil {
		log.Printf("telemetry setup: %v", err)
	}
	defer func() { _ = shutdownTelemetry(context.Background()) }()

	logger, err := observability.NewLogger(cfg.Env)
	if err != nil {
		log.Fatalf("logger: %v", err)
	}
	if cfg.OtelEndpoint != "" {
		logger = observability.WithOTel(logger, service)
	}
	defer func() { _ = logger.Sync() }()

	// DB
	db, err := postgres.Connect(ctx, cfg.PostgresDSN, int32(cfg.DBMaxConns))
	if err != nil {
		logger.Fatal("db connect", zap.Error(err))
	}
	defer db.Close()
	if err := postgres.Migrate(ctx, db); err != nil {
		logger.Fatal("db migrate", zap.Error(err))
	}

	// Redis
	rdb := redisx.New(cfg.RedisAddr)
	defer rdb.Close()
	if err := redisx.Ping(ctx, rdb); err != nil {
		logger.Fatal("redis", zap.Error(err))
	}

	svc := audit.NewService(redisx.NewDeduper(rdb, "audit"), &audit.Repo{DB: db}, logger)
	cons := kafkax.NewConsumer(cfg.KafkaBrokers, cfg.AuditGroup, orders.AllTopics, cfg.AuditWorkers, logger)

	done := make(chan struct{})
	go func() {
		defer close(done)
		logger.Info("audit consumer started",
			zap.String("group", cfg.AuditGroup),
			zap.Strings("topics", orders.AllTopics),
			zap.Int("workers", cfg.AuditWorkers))
		if err := cons.Start(ctx, svc.Handle); err != nil {
			logger.Error("consumer exit", zap.Error(err))
			cancel()
		}
	}()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	select {
	case <-sig:
		logger.Info("shutting down consumer")
	case <-ctx.Done():
	}
	cancel()
	<-done
}

package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.uber.org/zap"

	"github.com/ariefcatur/go-farm-market.git/internal/config"
	"github.com/ariefcatur/go-farm-market.git/internal/httpx"
	"github.com/ariefcatur/go-farm-market.git/internal/inventory"
	kafkax "github.com/ariefcatur/go-farm-market.git/internal/kafka"
	"github.com/ariefcatur/go-farm-market.git/internal/memstore"
	"github.com/ariefcatur/go-farm-market.git/internal/observability"
	"github.com/ariefcatur/go-farm-market.git/internal/orders"
	"github.com/ariefcatur/go-farm-market.git/internal/postgres"
	"github.com/ariefcatur/go-farm-market.git/internal/redisx"
	"github.com/ariefcatur/go-farm-market.git/internal/stats"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	if err := cfg.RequireAuth(); err != nil {
		log.Fatalf("config: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	shutdownTelemetry, err := observability.SetupTelemetry(ctx, observability.TelemetryConfig{
		ServiceName: cfg.ServiceName,
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
		logger = observability.WithOTel(logger, cfg.ServiceName)
	}
	defer func() { _ = logger.Sync() }()

	// Store
	var store orders.Store
	switch cfg.StoreDriver {
	case config.StoreMemory:
		logger.Warn("using in-memory store, data is lost on exit")
		store = memstore.New()
	default:
		db, err := postgres.Connect(ctx, cfg.PostgresDSN, int32(cfg.DBMaxConns))
		if err != nil {
			logger.Fatal("db connect", zap.Error(err))
		}
		defer db.Close()
		if err := postgres.Migrate(ctx, db); err != nil {
			logger.Fatal("db migrate", zap.Error(err))
		}
		store = &orders.Repo{DB: db}
	}

	// Redis (opsional)
	var (
		orderStore orders.OrderStore = store
		idem       httpx.IdempotencyStore
	)
	if cfg.RedisAddr != "" {
		rdb := redisx.New(cfg.RedisAddr)
		defer rdb.Close()
		if err := redisx.Ping(ctx, rdb); err != nil {
			logger.Fatal("redis", zap.Error(err))
		}
		orderStore = redisx.NewCachedOrderStore(store, rdb, logger)
		idem = redisx.NewIdempotency(rdb)
	}

	// Kafka producer (opsional)
	var (
		pub  orders.Publisher = orders.NopPublisher{}
		prod *kafkax.Producer
	)
	if len(cfg.KafkaBrokers) > 0 {
		prod = kafkax.NewProducer(cfg.KafkaBrokers, 1024, logger)
		prod.Start(ctx)
		pub = kafkax.NewEventPublisher(prod, logger)
	}

	ledger := inventory.NewLedger(store,
		inventory.WithLogger(logger),
		inventory.WithMaxAttempts(cfg.LedgerMaxAttempts),
		inventory.WithBackoff(cfg.LedgerBackoff),
	)
	manager := orders.NewManager(orderStore, ledger, pub, logger, orders.ManagerConfig{
		RestockOnReject: cfg.RejectRestock,
		Producer:        cfg.ServiceName,
	})
	catalog := orders.NewCatalog(store, ledger, logger)
	aggregator := stats.NewAggregator(store)

	router := httpx.NewRouter(httpx.NewAuthenticator(cfg.JWTSecret),
		&httpx.OrdersHandler{Orders: manager, Idem: idem, Log: logger},
		&httpx.ProductsHandler{Products: catalog, Stats: aggregator, Log: logger},
	)

	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           otelhttp.NewHandler(router, "http.server"),
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		logger.Info("HTTP listening", zap.String("addr", cfg.HTTPAddr), zap.String("store", cfg.StoreDriver))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("listen", zap.Error(err))
		}
	}()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig
	logger.Info("shutting down")

	ctx2, cancel2 := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel2()
	if err := srv.Shutdown(ctx2); err != nil {
		logger.Warn("http shutdown", zap.Error(err))
	}
	if prod != nil {
		prod.Close()      // tutup inbox -> flush & close writer
		prod.WaitClosed() // drain
	}
	cancel()
}

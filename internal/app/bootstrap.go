package app

import (
	"context"
	"log/slog"
	"time"

	"merchant_go/internal/infra"
	"merchant_go/internal/infra/fulcrum"
	"merchant_go/internal/infra/psfmsg"
	"merchant_go/internal/infra/rates"
	"merchant_go/internal/infra/storage"
	"merchant_go/internal/infra/wallet"
	"merchant_go/internal/service"
	"merchant_go/internal/timer"
	"merchant_go/internal/transport/rest"
)

// Bootstrap orchestrates the application startup sequence
type Bootstrap struct {
	Config   *infra.Config
	Storage  *storage.Storage
	Keyring  *wallet.Keyring
	Rates    *rates.Client
	Fulcrum  *fulcrum.Client
	Notifier *psfmsg.Adapter
	Service  *service.OrderService
	Server   *rest.Server
	Timer    *timer.Controller
}

// NewBootstrap creates a new Bootstrap instance
func NewBootstrap() *Bootstrap {
	return &Bootstrap{}
}

// Initialize performs core system initialization (config, DB, wallet, adapters)
func (b *Bootstrap) Initialize() error {
	slog.Info("🚀 Bootstrapping Merchant Go...")

	// 1. Load Config
	cfg, err := infra.LoadConfig("configs/config.yaml")
	if err != nil {
		return err // Let main handle the error
	}
	b.Config = cfg

	// 2. Setup Logger
	logger := infra.NewLogger(cfg.Logging.Level)
	slog.SetDefault(logger)

	// 3. Initialize Storage (DB)
	store, err := storage.NewStorage(cfg.Storage.Path)
	if err != nil {
		return err
	}
	b.Storage = store
	slog.Info("✅ Database initialized")

	// 4. Wallet keyring, backed by the persisted address cursor
	keyring, err := wallet.NewKeyring(cfg.Wallet.Seed, store)
	if err != nil {
		return err
	}
	b.Keyring = keyring
	slog.Info("✅ Wallet keyring ready")

	// 5. External adapters
	b.Rates = rates.NewClientWithConfig(cfg.API.Rates.URL, cfg.API.Rates.PollIntervalSec)
	b.Fulcrum = fulcrum.NewClient(cfg.API.Fulcrum.WSURL)
	b.Notifier = psfmsg.NewAdapter(cfg.API.Consumer.RestURL)

	// 6. Order lifecycle service
	b.Service = service.NewOrderService(
		service.Config{
			UnitPriceUSD: cfg.Orders.UnitPriceUSD,
			MerchantAddr: cfg.Wallet.MerchantAddr,
			TTL:          time.Duration(cfg.Orders.TTLHours) * time.Hour,
			MaxParallel:  cfg.Orders.MaxParallel,
			CallTimeout:  time.Duration(cfg.Orders.CallTimeoutSec) * time.Second,
		},
		service.Deps{
			Orders:    store,
			Paid:      store,
			Allocator: keyring,
			Rates:     b.Rates,
			Balance:   b.Fulcrum,
			Notifier:  b.Notifier,
		},
	)

	// 7. Transport and scheduler
	b.Server = rest.NewServer(cfg.Server.Addr, b.Service, logger)
	b.Timer = timer.NewController(
		time.Duration(cfg.Orders.CheckIntervalSec)*time.Second,
		b.Service.Reconcile,
		logger,
	)

	return nil
}

// Start brings up the background machinery: the rate poller and the
// reconciliation scheduler. The REST server is run by the caller so it
// can own the listener's error.
func (b *Bootstrap) Start(ctx context.Context) error {
	if err := b.Rates.Start(ctx); err != nil {
		return err
	}
	b.Timer.Start(ctx)
	return nil
}

// Shutdown stops everything in reverse order and logs a final metrics
// snapshot.
func (b *Bootstrap) Shutdown(ctx context.Context) {
	b.Timer.Stop()

	if err := b.Server.Shutdown(ctx); err != nil {
		slog.Error("REST server shutdown failed", slog.Any("error", err))
	}

	b.Rates.Stop()
	b.Fulcrum.Close()

	snap := infra.GlobalMetrics.Snapshot()
	slog.Info("📊 Final metrics",
		slog.Uint64("cycles_run", snap.CyclesRun),
		slog.Uint64("cycles_failed", snap.CyclesFailed),
		slog.Uint64("orders_created", snap.OrdersCreated),
		slog.Uint64("orders_paid", snap.OrdersPaid),
		slog.Uint64("orders_expired", snap.OrdersExpired),
		slog.Uint64("notify_failures", snap.NotifyFailures),
	)
}

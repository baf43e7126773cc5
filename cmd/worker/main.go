package main

import (
	"context"
	"errors"
	"log"
	"log/slog"
	"os"
	"time"

	"ecliptvpn/backend/internal/billing"
	"ecliptvpn/backend/internal/config"
	"ecliptvpn/backend/internal/db"
	"ecliptvpn/backend/internal/integrations"
	"ecliptvpn/backend/internal/logging"
	"ecliptvpn/backend/internal/models"
	"ecliptvpn/backend/internal/payments"
	"ecliptvpn/backend/internal/payments/cryptopay"
	"ecliptvpn/backend/internal/payments/crystalpay"
	"ecliptvpn/backend/internal/repository"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config error: %v", err)
	}

	logger, cleanup, err := logging.New(cfg.Logging)
	if err != nil {
		log.Fatalf("log error: %v", err)
	}
	defer func() {
		_ = cleanup()
	}()
	logger = logger.With("service", "worker")
	slog.SetDefault(logger)

	ctx := context.Background()
	pool, err := db.NewPool(ctx, cfg.DatabaseURL)
	if err != nil {
		logger.Error("db error", "error", err)
		os.Exit(1)
	}
	defer pool.Close()

	if err := db.Migrate(ctx, pool); err != nil {
		logger.Error("migrate error", "error", err)
		os.Exit(1)
	}

	repo := repository.New(pool)
	telegram := integrations.NewTelegramClient(cfg.TelegramToken)
	notifier := integrations.NewOperatorNotifier(telegram, adminChatIDs(cfg.AdminTGIDs))

	providers := buildProviders(cfg, logger)
	svc := billing.NewService(billing.Config{Regions: cfg.Regions, StarsPerUSD: cfg.Rates.StarsPerUSD}, repo, providers, notifier, logger)

	logger.Info("worker_started", "interval", cfg.Worker.Interval.String(), "grace", cfg.Worker.Grace.String())
	for {
		sweepOpenInvoices(ctx, repo, svc, cfg.Worker, logger)
		time.Sleep(cfg.Worker.Interval)
	}
}

// sweepOpenInvoices drives pending and errored invoices nobody is
// polling anymore toward a terminal status. Invoices younger than the
// grace window are left to the client-driven checks.
func sweepOpenInvoices(ctx context.Context, repo *repository.Repository, svc *billing.Service, cfg config.WorkerConfig, logger *slog.Logger) {
	invoices, err := repo.ListStaleOpenInvoices(ctx, cfg.Grace, cfg.BatchSize)
	if err != nil {
		logger.Error("sweep_fetch_error", "error", err)
		return
	}
	if len(invoices) == 0 {
		return
	}
	logger.Info("sweep_started", "count", len(invoices))

	for _, inv := range invoices {
		result, err := svc.Reconcile(ctx, inv.ID)
		if err != nil {
			switch {
			case errors.Is(err, billing.ErrInventoryExhausted):
				// Escalated already, the invoice stays paid until an
				// operator restocks the pool.
				logger.Warn("sweep_inventory_exhausted", "invoice_id", inv.ID)
			case errors.Is(err, payments.ErrNotSupported), errors.Is(err, billing.ErrUnknownProvider):
				// In-chat invoices have nothing to poll.
			case errors.Is(err, payments.ErrProvider):
				logger.Warn("sweep_provider_error", "invoice_id", inv.ID, "provider", inv.Provider, "error", err)
			default:
				logger.Error("sweep_reconcile_error", "invoice_id", inv.ID, "error", err)
			}
			continue
		}
		if result.Invoice.Status != inv.Status {
			logger.Info("sweep_settled", "invoice_id", inv.ID, "invoice_status", result.Invoice.Status)
		}
	}
}

func buildProviders(cfg *config.Config, logger *slog.Logger) map[string]payments.Provider {
	providers := make(map[string]payments.Provider)
	if cfg.CryptoPay.Token != "" {
		providers[models.ProviderCryptoPay] = cryptopay.NewClient(cryptopay.Config{
			BaseURL: cfg.CryptoPay.BaseURL,
			Token:   cfg.CryptoPay.Token,
			Asset:   cfg.CryptoPay.Asset,
		}, nil, logger)
	}
	if cfg.CrystalPay.Login != "" && cfg.CrystalPay.Secret != "" {
		providers[models.ProviderCrystalPay] = crystalpay.NewClient(crystalpay.Config{
			BaseURL:   cfg.CrystalPay.BaseURL,
			Login:     cfg.CrystalPay.Login,
			Secret:    cfg.CrystalPay.Secret,
			RubPerUSD: cfg.Rates.RubPerUSD,
		}, nil, logger)
	}
	return providers
}

func adminChatIDs(set map[int64]struct{}) []int64 {
	out := make([]int64, 0, len(set))
	for id := range set {
		out = append(out, id)
	}
	return out
}

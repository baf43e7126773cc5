package main

import (
	"context"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"ecliptvpn/backend/internal/billing"
	"ecliptvpn/backend/internal/config"
	"ecliptvpn/backend/internal/db"
	"ecliptvpn/backend/internal/http/handlers"
	"ecliptvpn/backend/internal/http/middleware"
	"ecliptvpn/backend/internal/integrations"
	"ecliptvpn/backend/internal/logging"
	"ecliptvpn/backend/internal/models"
	"ecliptvpn/backend/internal/payments"
	"ecliptvpn/backend/internal/payments/cryptopay"
	"ecliptvpn/backend/internal/payments/crystalpay"
	"ecliptvpn/backend/internal/payments/stars"
	"ecliptvpn/backend/internal/repository"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
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
	logger = logger.With("service", "api")
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

	providers := buildProviders(cfg, telegram, logger)
	billingSvc := billing.NewService(billing.Config{Regions: cfg.Regions, StarsPerUSD: cfg.Rates.StarsPerUSD}, repo, providers, notifier, logger)

	h := handlers.New(repo, billingSvc, cfg, telegram, logger)

	r := chi.NewRouter()
	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(middleware.RequestLogger(logger))
	r.Use(chimw.Recoverer)
	r.Use(chimw.Timeout(10 * time.Second))
	r.Use(corsMiddleware)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	r.Post("/auth/gateway", h.AuthGateway)
	r.Post("/payments/events/telegram", h.TelegramPaymentEvent)
	r.Post("/payments/events/crystalpay", h.CrystalPayEvent)

	r.Group(func(r chi.Router) {
		r.Use(middleware.AuthMiddleware(cfg.JWTSecret))
		r.Get("/plans", h.ListPlans)
		r.Get("/balance", h.GetBalance)
		r.Get("/orders", h.ListMyOrders)
		r.Get("/orders/{id}/credential", h.GetOrderCredential)
		r.Get("/invoices", h.ListMyInvoices)
		r.Post("/invoices", h.CreateInvoice)
		r.Post("/invoices/{id}/reconcile", h.ReconcileInvoice)
		r.Post("/promo/redeem", h.RedeemPromo)
		r.Post("/purchases/balance", h.PurchaseWithBalance)

		r.Group(func(r chi.Router) {
			r.Use(middleware.AdminOnly)
			r.Get("/admin/inventory/stats", h.AdminInventoryStats)
			r.Post("/admin/credentials", h.AdminAddCredentials)
			r.Get("/admin/promo-codes", h.AdminListPromoCodes)
			r.Post("/admin/promo-codes", h.AdminCreatePromoCode)
			r.Patch("/admin/promo-codes/{code}", h.AdminUpdatePromoCode)
			r.Delete("/admin/promo-codes/{code}", h.AdminDeletePromoCode)
			r.Post("/admin/grant", h.AdminGrant)
			r.Get("/admin/stats", h.AdminStats)
		})
	})

	srv := &http.Server{
		Addr:    cfg.HTTPAddr,
		Handler: r,
	}

	go func() {
		logger.Info("api_listening", "addr", cfg.HTTPAddr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	logger.Info("shutdown", "service", "api")
	ctxShutdown, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = srv.Shutdown(ctxShutdown)
}

func buildProviders(cfg *config.Config, telegram *integrations.TelegramClient, logger *slog.Logger) map[string]payments.Provider {
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
	providers[models.ProviderStars] = stars.NewProvider(stars.Config{StarsPerUSD: cfg.Rates.StarsPerUSD}, telegram, logger)
	return providers
}

func adminChatIDs(set map[int64]struct{}) []int64 {
	out := make([]int64, 0, len(set))
	for id := range set {
		out = append(out, id)
	}
	return out
}

func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET,POST,PATCH,DELETE,OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Authorization,Content-Type")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

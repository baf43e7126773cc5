package handlers

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"ecliptvpn/backend/internal/billing"
	"ecliptvpn/backend/internal/config"
	authmw "ecliptvpn/backend/internal/http/middleware"
	"ecliptvpn/backend/internal/integrations"
	"ecliptvpn/backend/internal/rate"
	"ecliptvpn/backend/internal/repository"

	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-playground/validator/v10"
)

type Handler struct {
	repo         *repository.Repository
	billing      *billing.Service
	cfg          *config.Config
	tg           *integrations.TelegramClient
	logger       *slog.Logger
	validator    *validator.Validate
	checkLimiter *rate.WindowLimiter
}

func New(repo *repository.Repository, billingSvc *billing.Service, cfg *config.Config, tg *integrations.TelegramClient, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{
		repo:         repo,
		billing:      billingSvc,
		cfg:          cfg,
		tg:           tg,
		logger:       logger,
		validator:    validator.New(),
		checkLimiter: rate.NewWindowLimiter(10, time.Minute),
	}
}

func (h *Handler) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, 5*time.Second)
}

func (h *Handler) loggerForRequest(r *http.Request) *slog.Logger {
	logger := h.logger
	if logger == nil {
		return slog.Default()
	}
	if reqID := chimw.GetReqID(r.Context()); reqID != "" {
		logger = logger.With("request_id", reqID)
	}
	if userID, ok := authmw.UserIDFromContext(r.Context()); ok {
		logger = logger.With("user_id", userID)
	}
	if tgID, ok := authmw.TelegramIDFromContext(r.Context()); ok {
		logger = logger.With("telegram_id", tgID)
	}
	return logger
}

package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"ecliptvpn/backend/internal/models"
	"ecliptvpn/backend/internal/repository"

	"github.com/go-chi/chi/v5"
	"github.com/jackc/pgx/v5"
)

func (h *Handler) AdminInventoryStats(w http.ResponseWriter, r *http.Request) {
	logger := h.loggerForRequest(r)
	region := strings.ToLower(strings.TrimSpace(r.URL.Query().Get("region")))

	ctx, cancel := h.withTimeout(r.Context())
	defer cancel()
	stats, err := h.repo.CredentialStats(ctx, region)
	if err != nil {
		logger.Error("action", "action", "admin_inventory_stats", "status", "db_error", "error", err)
		writeError(w, http.StatusInternalServerError, "db error")
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"inventory": stats})
}

type addCredentialsRequest struct {
	PlanID  int      `json:"planId" validate:"required,gt=0"`
	Region  string   `json:"region" validate:"required,min=2,max=8"`
	Secrets []string `json:"secrets" validate:"required,min=1,max=1000,dive,required"`
}

func (h *Handler) AdminAddCredentials(w http.ResponseWriter, r *http.Request) {
	logger := h.loggerForRequest(r)

	var req addCredentialsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json")
		return
	}
	req.Region = strings.ToLower(strings.TrimSpace(req.Region))
	if err := h.validator.Struct(req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request")
		return
	}

	ctx, cancel := h.withTimeout(r.Context())
	defer cancel()
	if _, err := h.repo.GetPlan(ctx, req.PlanID); err != nil {
		if errors.Is(err, repository.ErrPlanNotFound) {
			writeError(w, http.StatusNotFound, "plan not found")
			return
		}
		logger.Error("action", "action", "admin_add_credentials", "status", "db_error", "error", err)
		writeError(w, http.StatusInternalServerError, "db error")
		return
	}
	added, err := h.repo.AddCredentials(ctx, req.PlanID, req.Region, req.Secrets)
	if err != nil {
		logger.Error("action", "action", "admin_add_credentials", "status", "db_error", "error", err)
		writeError(w, http.StatusInternalServerError, "db error")
		return
	}

	logger.Info("action", "action", "admin_add_credentials", "status", "success", "plan_id", req.PlanID, "region", req.Region, "added", added)
	writeJSON(w, http.StatusCreated, map[string]interface{}{"added": added})
}

type createPromoRequest struct {
	Code           string     `json:"code" validate:"required,min=3,max=64"`
	AmountCents    int64      `json:"amountCents" validate:"required,gt=0"`
	MaxActivations *int       `json:"maxActivations" validate:"omitempty,gt=0"`
	ExpiresAt      *time.Time `json:"expiresAt"`
}

func (h *Handler) AdminCreatePromoCode(w http.ResponseWriter, r *http.Request) {
	logger := h.loggerForRequest(r)

	var req createPromoRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json")
		return
	}
	if err := h.validator.Struct(req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request")
		return
	}

	ctx, cancel := h.withTimeout(r.Context())
	defer cancel()
	code, err := h.repo.CreatePromoCode(ctx, models.PromoCodeInput{
		Code:           req.Code,
		AmountCents:    req.AmountCents,
		MaxActivations: req.MaxActivations,
		ExpiresAt:      req.ExpiresAt,
		IsActive:       true,
	})
	if err != nil {
		if errors.Is(err, repository.ErrPromoExists) {
			writeError(w, http.StatusConflict, "promo code already exists")
			return
		}
		logger.Error("action", "action", "admin_create_promo", "status", "db_error", "error", err)
		writeError(w, http.StatusInternalServerError, "db error")
		return
	}

	logger.Info("action", "action", "admin_create_promo", "status", "success", "code", code.Code, "amount_cents", code.AmountCents)
	writeJSON(w, http.StatusCreated, code)
}

func (h *Handler) AdminListPromoCodes(w http.ResponseWriter, r *http.Request) {
	logger := h.loggerForRequest(r)
	activeOnly := r.URL.Query().Get("active") == "true"

	ctx, cancel := h.withTimeout(r.Context())
	defer cancel()
	codes, err := h.repo.ListPromoCodes(ctx, activeOnly)
	if err != nil {
		logger.Error("action", "action", "admin_list_promo", "status", "db_error", "error", err)
		writeError(w, http.StatusInternalServerError, "db error")
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"promoCodes": codes})
}

type updatePromoRequest struct {
	IsActive bool `json:"isActive"`
}

func (h *Handler) AdminUpdatePromoCode(w http.ResponseWriter, r *http.Request) {
	logger := h.loggerForRequest(r)
	code := strings.TrimSpace(chi.URLParam(r, "code"))
	if code == "" {
		writeError(w, http.StatusBadRequest, "promo code is required")
		return
	}

	var req updatePromoRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json")
		return
	}

	ctx, cancel := h.withTimeout(r.Context())
	defer cancel()
	if err := h.repo.SetPromoActive(ctx, code, req.IsActive); err != nil {
		if errors.Is(err, repository.ErrPromoNotFound) {
			writeError(w, http.StatusNotFound, "promo code not found")
			return
		}
		logger.Error("action", "action", "admin_update_promo", "status", "db_error", "error", err)
		writeError(w, http.StatusInternalServerError, "db error")
		return
	}

	logger.Info("action", "action", "admin_update_promo", "status", "success", "code", code, "active", req.IsActive)
	writeJSON(w, http.StatusOK, map[string]interface{}{"ok": true})
}

func (h *Handler) AdminDeletePromoCode(w http.ResponseWriter, r *http.Request) {
	logger := h.loggerForRequest(r)
	code := strings.TrimSpace(chi.URLParam(r, "code"))
	if code == "" {
		writeError(w, http.StatusBadRequest, "promo code is required")
		return
	}

	ctx, cancel := h.withTimeout(r.Context())
	defer cancel()
	if err := h.repo.DeletePromoCode(ctx, code); err != nil {
		if errors.Is(err, repository.ErrPromoNotFound) {
			writeError(w, http.StatusNotFound, "promo code not found")
			return
		}
		logger.Error("action", "action", "admin_delete_promo", "status", "db_error", "error", err)
		writeError(w, http.StatusInternalServerError, "db error")
		return
	}

	logger.Info("action", "action", "admin_delete_promo", "status", "success", "code", code)
	writeJSON(w, http.StatusOK, map[string]interface{}{"ok": true})
}

type grantRequest struct {
	TelegramID  int64 `json:"telegramId" validate:"required"`
	AmountCents int64 `json:"amountCents" validate:"required,gt=0"`
}

// AdminGrant credits a user balance manually, for refunds and goodwill.
func (h *Handler) AdminGrant(w http.ResponseWriter, r *http.Request) {
	logger := h.loggerForRequest(r)

	var req grantRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json")
		return
	}
	if err := h.validator.Struct(req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request")
		return
	}

	ctx, cancel := h.withTimeout(r.Context())
	defer cancel()
	user, err := h.repo.GetUserByTelegramID(ctx, req.TelegramID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			writeError(w, http.StatusNotFound, "user not found")
			return
		}
		logger.Error("action", "action", "admin_grant", "status", "db_error", "error", err)
		writeError(w, http.StatusInternalServerError, "db error")
		return
	}
	balance, err := h.repo.AddBalance(ctx, user.ID, req.AmountCents)
	if err != nil {
		logger.Error("action", "action", "admin_grant", "status", "db_error", "error", err)
		writeError(w, http.StatusInternalServerError, "db error")
		return
	}

	logger.Info("action", "action", "admin_grant", "status", "success", "target_user_id", user.ID, "amount_cents", req.AmountCents)
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"userId":       user.ID,
		"balanceCents": balance,
	})
}

func (h *Handler) AdminStats(w http.ResponseWriter, r *http.Request) {
	logger := h.loggerForRequest(r)

	ctx, cancel := h.withTimeout(r.Context())
	defer cancel()
	stats, err := h.repo.AdminStats(ctx)
	if err != nil {
		logger.Error("action", "action", "admin_stats", "status", "db_error", "error", err)
		writeError(w, http.StatusInternalServerError, "db error")
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

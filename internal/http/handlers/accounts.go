package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"ecliptvpn/backend/internal/billing"
	"ecliptvpn/backend/internal/http/middleware"

	"github.com/go-chi/chi/v5"
	"github.com/jackc/pgx/v5"
)

func (h *Handler) GetBalance(w http.ResponseWriter, r *http.Request) {
	logger := h.loggerForRequest(r)
	userID, ok := middleware.UserIDFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	ctx, cancel := h.withTimeout(r.Context())
	defer cancel()
	user, err := h.repo.GetUser(ctx, userID)
	if err != nil {
		logger.Error("action", "action", "get_balance", "status", "db_error", "error", err)
		writeError(w, http.StatusInternalServerError, "db error")
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"balanceCents": user.BalanceCents})
}

func (h *Handler) ListMyOrders(w http.ResponseWriter, r *http.Request) {
	logger := h.loggerForRequest(r)
	userID, ok := middleware.UserIDFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	ctx, cancel := h.withTimeout(r.Context())
	defer cancel()
	orders, err := h.repo.ListUserOrders(ctx, userID)
	if err != nil {
		logger.Error("action", "action", "list_orders", "status", "db_error", "error", err)
		writeError(w, http.StatusInternalServerError, "db error")
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"orders": orders})
}

func (h *Handler) ListPlans(w http.ResponseWriter, r *http.Request) {
	logger := h.loggerForRequest(r)
	ctx, cancel := h.withTimeout(r.Context())
	defer cancel()
	plans, err := h.repo.ListPlans(ctx)
	if err != nil {
		logger.Error("action", "action", "list_plans", "status", "db_error", "error", err)
		writeError(w, http.StatusInternalServerError, "db error")
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"plans":   plans,
		"regions": h.cfg.Regions,
	})
}

// GetOrderCredential re-delivers the secret for one of the user's own
// orders.
func (h *Handler) GetOrderCredential(w http.ResponseWriter, r *http.Request) {
	logger := h.loggerForRequest(r)
	userID, ok := middleware.UserIDFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	orderID, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || orderID <= 0 {
		writeError(w, http.StatusBadRequest, "invalid order id")
		return
	}

	ctx, cancel := h.withTimeout(r.Context())
	defer cancel()
	cred, err := h.repo.GetOrderCredential(ctx, orderID, userID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			writeError(w, http.StatusNotFound, "order not found")
			return
		}
		logger.Error("action", "action", "get_order_credential", "status", "db_error", "error", err)
		writeError(w, http.StatusInternalServerError, "db error")
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"id":     cred.ID,
		"region": cred.Region,
		"secret": cred.Secret,
	})
}

type balancePurchaseRequest struct {
	PlanID int    `json:"planId" validate:"required,gt=0"`
	Region string `json:"region" validate:"required,min=2,max=8"`
}

func (h *Handler) PurchaseWithBalance(w http.ResponseWriter, r *http.Request) {
	logger := h.loggerForRequest(r)
	userID, ok := middleware.UserIDFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	var req balancePurchaseRequest
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
	result, err := h.billing.PurchaseWithBalance(ctx, userID, req.PlanID, req.Region)
	if err != nil {
		switch {
		case errors.Is(err, billing.ErrValidation):
			writeError(w, http.StatusBadRequest, "invalid request")
		case errors.Is(err, billing.ErrInsufficientBalance):
			logger.Warn("action", "action", "balance_purchase", "status", "insufficient_balance", "plan_id", req.PlanID)
			writeError(w, http.StatusPaymentRequired, "insufficient balance")
		case errors.Is(err, billing.ErrInventoryExhausted):
			logger.Warn("action", "action", "balance_purchase", "status", "inventory_exhausted", "plan_id", req.PlanID, "region", req.Region)
			writeError(w, http.StatusConflict, "no credentials available for this plan and region")
		default:
			logger.Error("action", "action", "balance_purchase", "status", "error", "error", err)
			writeError(w, http.StatusInternalServerError, "internal error")
		}
		return
	}

	logger.Info("action", "action", "balance_purchase", "status", "success", "plan_id", req.PlanID, "region", req.Region)
	writeJSON(w, http.StatusCreated, reconcileResponse(result, ""))
}

package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"ecliptvpn/backend/internal/billing"
	"ecliptvpn/backend/internal/http/middleware"
	"ecliptvpn/backend/internal/payments"

	"github.com/go-chi/chi/v5"
)

type createInvoiceRequest struct {
	Kind        string `json:"kind" validate:"required,oneof=TOPUP PURCHASE"`
	Provider    string `json:"provider" validate:"required,oneof=CRYPTOPAY CRYSTALPAY STARS"`
	PlanID      int    `json:"planId"`
	Region      string `json:"region"`
	AmountCents int64  `json:"amountCents"`
}

func (h *Handler) CreateInvoice(w http.ResponseWriter, r *http.Request) {
	logger := h.loggerForRequest(r)
	userID, ok := middleware.UserIDFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	telegramID, _ := middleware.TelegramIDFromContext(r.Context())

	var req createInvoiceRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		logger.Warn("action", "action", "create_invoice", "status", "invalid_json")
		writeError(w, http.StatusBadRequest, "invalid json")
		return
	}
	req.Kind = strings.ToUpper(strings.TrimSpace(req.Kind))
	req.Provider = strings.ToUpper(strings.TrimSpace(req.Provider))
	if err := h.validator.Struct(req); err != nil {
		logger.Warn("action", "action", "create_invoice", "status", "invalid_request", "error", err)
		writeError(w, http.StatusBadRequest, "invalid request")
		return
	}

	ctx, cancel := h.withTimeout(r.Context())
	defer cancel()
	inv, err := h.billing.CreateInvoice(ctx, billing.CreateInvoiceInput{
		UserID:      userID,
		TelegramID:  telegramID,
		Kind:        req.Kind,
		PlanID:      req.PlanID,
		Region:      req.Region,
		AmountCents: req.AmountCents,
		Provider:    req.Provider,
	})
	if err != nil {
		switch {
		case errors.Is(err, billing.ErrValidation), errors.Is(err, billing.ErrUnknownProvider):
			logger.Warn("action", "action", "create_invoice", "status", "invalid_request", "error", err)
			writeError(w, http.StatusBadRequest, "invalid request")
		case errors.Is(err, payments.ErrProvider):
			logger.Warn("action", "action", "create_invoice", "status", "provider_unavailable", "error", err)
			writeError(w, http.StatusBadGateway, "payment provider unavailable, try again")
		default:
			logger.Error("action", "action", "create_invoice", "status", "error", "error", err)
			writeError(w, http.StatusInternalServerError, "internal error")
		}
		return
	}

	logger.Info("action", "action", "create_invoice", "status", "success", "invoice_id", inv.ID, "provider", inv.Provider)
	writeJSON(w, http.StatusCreated, inv)
}

func (h *Handler) ReconcileInvoice(w http.ResponseWriter, r *http.Request) {
	logger := h.loggerForRequest(r)
	userID, ok := middleware.UserIDFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	invoiceID := strings.TrimSpace(chi.URLParam(r, "id"))
	if invoiceID == "" {
		writeError(w, http.StatusBadRequest, "invoice id is required")
		return
	}
	if !h.checkLimiter.Allow(strconv.FormatInt(userID, 10)) {
		logger.Warn("action", "action", "reconcile_invoice", "status", "rate_limited")
		writeError(w, http.StatusTooManyRequests, "too many checks, slow down")
		return
	}

	ctx, cancel := h.withTimeout(r.Context())
	defer cancel()

	// Ownership check before touching the provider.
	inv, err := h.repo.GetInvoice(ctx, invoiceID)
	if err != nil {
		if errors.Is(err, billing.ErrInvoiceNotFound) {
			writeError(w, http.StatusNotFound, "invoice not found")
			return
		}
		logger.Error("action", "action", "reconcile_invoice", "status", "db_error", "error", err)
		writeError(w, http.StatusInternalServerError, "db error")
		return
	}
	if inv.UserID != userID {
		writeError(w, http.StatusNotFound, "invoice not found")
		return
	}

	result, err := h.billing.Reconcile(ctx, invoiceID)
	if err != nil {
		switch {
		case errors.Is(err, billing.ErrInventoryExhausted):
			// Payment is settled but the pool is empty. Operators are
			// already alerted; the client sees the paid invoice.
			logger.Warn("action", "action", "reconcile_invoice", "status", "inventory_exhausted", "invoice_id", invoiceID)
			writeJSON(w, http.StatusOK, reconcileResponse(result, "credential delivery delayed, operators notified"))
		case errors.Is(err, payments.ErrPayloadMismatch):
			logger.Warn("action", "action", "reconcile_invoice", "status", "payload_mismatch", "invoice_id", invoiceID)
			writeError(w, http.StatusConflict, "payment verification failed")
		case errors.Is(err, payments.ErrProvider):
			logger.Warn("action", "action", "reconcile_invoice", "status", "provider_unavailable", "error", err)
			writeError(w, http.StatusBadGateway, "payment provider unavailable, try again")
		default:
			logger.Error("action", "action", "reconcile_invoice", "status", "error", "error", err)
			writeError(w, http.StatusInternalServerError, "internal error")
		}
		return
	}

	logger.Info("action", "action", "reconcile_invoice", "status", "success", "invoice_id", invoiceID, "invoice_status", result.Invoice.Status)
	writeJSON(w, http.StatusOK, reconcileResponse(result, ""))
}

func (h *Handler) ListMyInvoices(w http.ResponseWriter, r *http.Request) {
	logger := h.loggerForRequest(r)
	userID, ok := middleware.UserIDFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	offset, _ := strconv.Atoi(r.URL.Query().Get("offset"))

	ctx, cancel := h.withTimeout(r.Context())
	defer cancel()
	items, err := h.repo.ListUserInvoices(ctx, userID, limit, offset)
	if err != nil {
		logger.Error("action", "action", "list_invoices", "status", "db_error", "error", err)
		writeError(w, http.StatusInternalServerError, "db error")
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"invoices": items})
}

func reconcileResponse(result billing.ReconcileResult, note string) map[string]interface{} {
	out := map[string]interface{}{
		"invoice": result.Invoice,
	}
	if result.Order != nil {
		out["order"] = result.Order
	}
	if result.Credential != nil {
		out["credential"] = map[string]interface{}{
			"id":     result.Credential.ID,
			"region": result.Credential.Region,
			"secret": result.Credential.Secret,
		}
	}
	if note != "" {
		out["note"] = note
	}
	return out
}

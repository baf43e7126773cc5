package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"ecliptvpn/backend/internal/http/middleware"
	"ecliptvpn/backend/internal/repository"
)

type redeemPromoRequest struct {
	Code string `json:"code" validate:"required,min=3,max=64"`
}

func (h *Handler) RedeemPromo(w http.ResponseWriter, r *http.Request) {
	logger := h.loggerForRequest(r)
	userID, ok := middleware.UserIDFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	var req redeemPromoRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json")
		return
	}
	req.Code = strings.TrimSpace(req.Code)
	if err := h.validator.Struct(req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request")
		return
	}

	ctx, cancel := h.withTimeout(r.Context())
	defer cancel()
	amount, balance, err := h.repo.RedeemPromo(ctx, req.Code, userID)
	if err != nil {
		switch {
		case errors.Is(err, repository.ErrPromoNotFound):
			logger.Warn("action", "action", "redeem_promo", "status", "not_found", "code", req.Code)
			writeError(w, http.StatusNotFound, "promo code not found")
		case errors.Is(err, repository.ErrPromoInactive):
			writeError(w, http.StatusConflict, "promo code is inactive")
		case errors.Is(err, repository.ErrPromoExpired):
			writeError(w, http.StatusConflict, "promo code has expired")
		case errors.Is(err, repository.ErrPromoExhausted):
			writeError(w, http.StatusConflict, "promo code activation limit reached")
		case errors.Is(err, repository.ErrPromoAlreadyRedeemed):
			writeError(w, http.StatusConflict, "promo code already redeemed")
		default:
			logger.Error("action", "action", "redeem_promo", "status", "error", "error", err)
			writeError(w, http.StatusInternalServerError, "internal error")
		}
		return
	}

	logger.Info("action", "action", "redeem_promo", "status", "success", "code", req.Code, "amount_cents", amount)
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"amountCents":  amount,
		"balanceCents": balance,
	})
}

package handlers

import (
	"crypto/subtle"
	"encoding/json"
	"net/http"

	"ecliptvpn/backend/internal/auth"
	"ecliptvpn/backend/internal/models"
)

type gatewayAuthRequest struct {
	TelegramID int64  `json:"telegramId" validate:"required"`
	Username   string `json:"username"`
	FirstName  string `json:"firstName"`
	LastName   string `json:"lastName"`
}

// AuthGateway exchanges the shared gateway secret plus a Telegram user
// identity for an access token, upserting the account on the way.
func (h *Handler) AuthGateway(w http.ResponseWriter, r *http.Request) {
	logger := h.loggerForRequest(r)
	provided := r.Header.Get("X-Gateway-Token")
	if subtle.ConstantTimeCompare([]byte(provided), []byte(h.cfg.GatewaySecret)) != 1 {
		logger.Warn("action", "action", "auth_gateway", "status", "forbidden")
		writeError(w, http.StatusForbidden, "forbidden")
		return
	}

	var req gatewayAuthRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		logger.Warn("action", "action", "auth_gateway", "status", "invalid_json")
		writeError(w, http.StatusBadRequest, "invalid json")
		return
	}
	if err := h.validator.Struct(req); err != nil {
		logger.Warn("action", "action", "auth_gateway", "status", "invalid_request", "error", err)
		writeError(w, http.StatusBadRequest, "invalid request")
		return
	}

	ctx, cancel := h.withTimeout(r.Context())
	defer cancel()
	user, err := h.repo.UpsertUser(ctx, models.User{
		TelegramID: req.TelegramID,
		Username:   req.Username,
		FirstName:  req.FirstName,
		LastName:   req.LastName,
	})
	if err != nil {
		logger.Error("action", "action", "auth_gateway", "status", "db_error", "error", err)
		writeError(w, http.StatusInternalServerError, "db error")
		return
	}

	_, isAdmin := h.cfg.AdminTGIDs[user.TelegramID]
	token, err := auth.SignAccessToken(h.cfg.JWTSecret, user.ID, user.TelegramID, isAdmin)
	if err != nil {
		logger.Error("action", "action", "auth_gateway", "status", "token_error", "error", err)
		writeError(w, http.StatusInternalServerError, "token error")
		return
	}

	logger.Info("action", "action", "auth_gateway", "status", "success", "user_id", user.ID, "is_admin", isAdmin)
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"token": token,
		"user":  user,
	})
}

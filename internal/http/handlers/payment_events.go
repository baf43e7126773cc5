package handlers

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"ecliptvpn/backend/internal/billing"
	"ecliptvpn/backend/internal/models"
)

type telegramUpdate struct {
	UpdateID         int64 `json:"update_id"`
	PreCheckoutQuery *struct {
		ID             string `json:"id"`
		From           struct {
			ID int64 `json:"id"`
		} `json:"from"`
		InvoicePayload string `json:"invoice_payload"`
	} `json:"pre_checkout_query"`
	Message *struct {
		Chat struct {
			ID int64 `json:"id"`
		} `json:"chat"`
		SuccessfulPayment *struct {
			Currency                string `json:"currency"`
			TotalAmount             int64  `json:"total_amount"`
			InvoicePayload          string `json:"invoice_payload"`
			TelegramPaymentChargeID string `json:"telegram_payment_charge_id"`
		} `json:"successful_payment"`
	} `json:"message"`
}

// TelegramPaymentEvent receives bot updates for in-chat payments. It
// approves pre-checkout queries against live invoices and completes
// the invoice when the payment confirmation arrives.
func (h *Handler) TelegramPaymentEvent(w http.ResponseWriter, r *http.Request) {
	logger := h.loggerForRequest(r)
	secret := r.Header.Get("X-Telegram-Bot-Api-Secret-Token")
	if subtle.ConstantTimeCompare([]byte(secret), []byte(h.cfg.GatewaySecret)) != 1 {
		logger.Warn("action", "action", "telegram_event", "status", "forbidden")
		writeError(w, http.StatusForbidden, "forbidden")
		return
	}

	var update telegramUpdate
	if err := json.NewDecoder(r.Body).Decode(&update); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json")
		return
	}

	ctx, cancel := h.withTimeout(r.Context())
	defer cancel()

	if q := update.PreCheckoutQuery; q != nil {
		ok, reason := h.approvePreCheckout(ctx, q.InvoicePayload)
		if h.tg != nil {
			if err := h.tg.AnswerPreCheckoutQuery(q.ID, ok, reason); err != nil {
				logger.Warn("action", "action", "telegram_event", "status", "answer_failed", "error", err)
			}
		}
		logger.Info("action", "action", "telegram_event", "status", "pre_checkout", "approved", ok)
		writeJSON(w, http.StatusOK, map[string]interface{}{"ok": true})
		return
	}

	if update.Message != nil && update.Message.SuccessfulPayment != nil {
		payment := update.Message.SuccessfulPayment
		result, err := h.billing.ConfirmInChat(ctx, billing.InChatConfirmation{
			Payload:     payment.InvoicePayload,
			Currency:    payment.Currency,
			TotalAmount: payment.TotalAmount,
		})
		if err != nil {
			switch {
			case errors.Is(err, billing.ErrInventoryExhausted):
				// Payment stands, delivery is escalated. The update is
				// acknowledged so the bot API stops retrying it.
				logger.Warn("action", "action", "telegram_event", "status", "inventory_exhausted", "invoice_id", result.Invoice.ID)
			case errors.Is(err, billing.ErrValidation), errors.Is(err, billing.ErrInvoiceNotFound):
				logger.Warn("action", "action", "telegram_event", "status", "unmatched_payment", "charge_id", payment.TelegramPaymentChargeID, "error", err)
			default:
				logger.Error("action", "action", "telegram_event", "status", "error", "error", err)
				writeError(w, http.StatusInternalServerError, "internal error")
				return
			}
		} else {
			logger.Info("action", "action", "telegram_event", "status", "payment_confirmed", "invoice_id", result.Invoice.ID)
		}
		writeJSON(w, http.StatusOK, map[string]interface{}{"ok": true})
		return
	}

	// Updates we do not handle are acknowledged silently.
	writeJSON(w, http.StatusOK, map[string]interface{}{"ok": true})
}

// approvePreCheckout verifies the payload references a live pending
// invoice before the user is charged.
func (h *Handler) approvePreCheckout(ctx context.Context, rawPayload string) (bool, string) {
	payload, err := billing.DecodePayload(rawPayload)
	if err != nil {
		return false, "unknown payment"
	}
	inv, err := h.repo.GetInvoice(ctx, payload.InvoiceID)
	if err != nil {
		return false, "invoice not found"
	}
	if inv.Status != models.InvoiceStatusPending {
		return false, "invoice is no longer payable"
	}
	return true, ""
}

type crystalPayCallback struct {
	ID    string `json:"id"`
	State string `json:"state"`
	Extra string `json:"extra"`
}

// CrystalPayEvent handles invoice callbacks. The callback is treated as
// a hint only: the invoice is reconciled against the provider, so a
// forged callback cannot settle anything.
func (h *Handler) CrystalPayEvent(w http.ResponseWriter, r *http.Request) {
	logger := h.loggerForRequest(r)

	var cb crystalPayCallback
	if err := json.NewDecoder(r.Body).Decode(&cb); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json")
		return
	}
	payload, err := billing.DecodePayload(cb.Extra)
	if err != nil || strings.TrimSpace(payload.InvoiceID) == "" {
		logger.Warn("action", "action", "crystalpay_event", "status", "unmatched_callback", "external_id", cb.ID)
		writeJSON(w, http.StatusOK, map[string]interface{}{"ok": true})
		return
	}

	ctx, cancel := h.withTimeout(r.Context())
	defer cancel()
	result, err := h.billing.Reconcile(ctx, payload.InvoiceID)
	if err != nil {
		switch {
		case errors.Is(err, billing.ErrInventoryExhausted):
			logger.Warn("action", "action", "crystalpay_event", "status", "inventory_exhausted", "invoice_id", payload.InvoiceID)
		case errors.Is(err, billing.ErrInvoiceNotFound):
			logger.Warn("action", "action", "crystalpay_event", "status", "unknown_invoice", "invoice_id", payload.InvoiceID)
		default:
			logger.Error("action", "action", "crystalpay_event", "status", "error", "invoice_id", payload.InvoiceID, "error", err)
			writeError(w, http.StatusInternalServerError, "internal error")
			return
		}
	} else {
		logger.Info("action", "action", "crystalpay_event", "status", "reconciled", "invoice_id", payload.InvoiceID, "invoice_status", result.Invoice.Status)
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"ok": true})
}

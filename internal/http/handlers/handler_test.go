package handlers

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"ecliptvpn/backend/internal/config"
)

func newTestHandler() *Handler {
	cfg := &config.Config{
		JWTSecret:     "test-jwt-secret",
		GatewaySecret: "test-gateway-secret",
		Regions:       []string{"de", "ch", "nl", "fi"},
	}
	return New(nil, nil, cfg, nil, nil)
}

// TestAuthGatewayRejectsBadSecret verifies auth gateway rejects bad secret behavior.
func TestAuthGatewayRejectsBadSecret(t *testing.T) {
	h := newTestHandler()

	req := httptest.NewRequest(http.MethodPost, "/auth/gateway", strings.NewReader(`{"telegramId":700}`))
	req.Header.Set("X-Gateway-Token", "wrong-secret")
	rec := httptest.NewRecorder()
	h.AuthGateway(rec, req)
	if rec.Code != http.StatusForbidden {
		t.Fatalf("expected 403, got %d", rec.Code)
	}
}

// TestAuthGatewayRejectsBadBody verifies auth gateway rejects bad body behavior.
func TestAuthGatewayRejectsBadBody(t *testing.T) {
	h := newTestHandler()

	req := httptest.NewRequest(http.MethodPost, "/auth/gateway", strings.NewReader(`not json`))
	req.Header.Set("X-Gateway-Token", "test-gateway-secret")
	rec := httptest.NewRecorder()
	h.AuthGateway(rec, req)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for bad json, got %d", rec.Code)
	}

	req = httptest.NewRequest(http.MethodPost, "/auth/gateway", strings.NewReader(`{"username":"x"}`))
	req.Header.Set("X-Gateway-Token", "test-gateway-secret")
	rec = httptest.NewRecorder()
	h.AuthGateway(rec, req)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for missing telegram id, got %d", rec.Code)
	}
}

// TestTelegramPaymentEventRejectsBadSecret verifies telegram payment event rejects bad secret behavior.
func TestTelegramPaymentEventRejectsBadSecret(t *testing.T) {
	h := newTestHandler()

	req := httptest.NewRequest(http.MethodPost, "/payments/events/telegram", strings.NewReader(`{}`))
	req.Header.Set("X-Telegram-Bot-Api-Secret-Token", "wrong")
	rec := httptest.NewRecorder()
	h.TelegramPaymentEvent(rec, req)
	if rec.Code != http.StatusForbidden {
		t.Fatalf("expected 403, got %d", rec.Code)
	}
}

// TestTelegramPaymentEventIgnoresUnrelatedUpdate verifies telegram payment event ignores unrelated update behavior.
func TestTelegramPaymentEventIgnoresUnrelatedUpdate(t *testing.T) {
	h := newTestHandler()

	req := httptest.NewRequest(http.MethodPost, "/payments/events/telegram", strings.NewReader(`{"update_id":1,"message":{"chat":{"id":700}}}`))
	req.Header.Set("X-Telegram-Bot-Api-Secret-Token", "test-gateway-secret")
	rec := httptest.NewRecorder()
	h.TelegramPaymentEvent(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 ack, got %d", rec.Code)
	}
}

// TestCrystalPayEventIgnoresUnmatchedCallback verifies crystal pay event ignores unmatched callback behavior.
func TestCrystalPayEventIgnoresUnmatchedCallback(t *testing.T) {
	h := newTestHandler()

	req := httptest.NewRequest(http.MethodPost, "/payments/events/crystalpay", strings.NewReader(`{"id":"cp-1","state":"payed","extra":"garbage"}`))
	rec := httptest.NewRecorder()
	h.CrystalPayEvent(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 ack, got %d", rec.Code)
	}
}

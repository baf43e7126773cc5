package billing

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"ecliptvpn/backend/internal/models"
	"ecliptvpn/backend/internal/payments"
	"ecliptvpn/backend/internal/payments/cryptopay"
)

// TestReconcileThroughCryptoPayClient verifies reconcile through crypto pay client behavior.
// It drives the real adapter against a fake API that stores the payload
// from createInvoice and echoes it back with a paid status, the way the
// live API does.
func TestReconcileThroughCryptoPayClient(t *testing.T) {
	t.Parallel()

	var mu sync.Mutex
	storedPayload := ""
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/createInvoice":
			var req map[string]interface{}
			if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
				t.Fatalf("decode createInvoice request: %v", err)
			}
			mu.Lock()
			storedPayload, _ = req["payload"].(string)
			mu.Unlock()
			_ = json.NewEncoder(w).Encode(map[string]interface{}{
				"ok": true,
				"result": map[string]interface{}{
					"invoice_id": 987,
					"status":     "active",
					"pay_url":    "https://t.me/pay/987",
					"payload":    req["payload"],
				},
			})
		case "/getInvoices":
			mu.Lock()
			payload := storedPayload
			mu.Unlock()
			_ = json.NewEncoder(w).Encode(map[string]interface{}{
				"ok": true,
				"result": map[string]interface{}{
					"items": []map[string]interface{}{
						{"invoice_id": 987, "status": "paid", "payload": payload},
					},
				},
			})
		default:
			t.Fatalf("unexpected path: %s", r.URL.Path)
		}
	}))
	defer srv.Close()

	store := newFakeStore()
	client := cryptopay.NewClient(cryptopay.Config{BaseURL: srv.URL, Token: "test-token"}, srv.Client(), nil)
	svc := NewService(
		Config{Regions: []string{"de"}, StarsPerUSD: 70},
		store,
		map[string]payments.Provider{models.ProviderCryptoPay: client},
		nil,
		nil,
	)

	inv, err := svc.CreateInvoice(context.Background(), CreateInvoiceInput{
		UserID:      7,
		Kind:        models.InvoiceKindTopup,
		AmountCents: 500,
		Provider:    models.ProviderCryptoPay,
	})
	if err != nil {
		t.Fatalf("create invoice: %v", err)
	}
	if inv.ExternalRef != "987" {
		t.Fatalf("expected external ref 987, got %q", inv.ExternalRef)
	}

	result, err := svc.Reconcile(context.Background(), inv.ID)
	if err != nil {
		t.Fatalf("reconcile: %v", err)
	}
	if result.Invoice.Status != models.InvoiceStatusPaid || !result.Invoice.Fulfilled {
		t.Fatalf("expected paid fulfilled invoice, got %#v", result.Invoice)
	}
	if got := store.balance(7); got != 1500 {
		t.Fatalf("expected balance 1500, got %d", got)
	}
}

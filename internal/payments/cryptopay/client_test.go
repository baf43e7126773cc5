package cryptopay

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"ecliptvpn/backend/internal/payments"
)

// TestCreateInvoice verifies create invoice behavior.
func TestCreateInvoice(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/createInvoice" {
			t.Fatalf("unexpected path: %s", r.URL.Path)
		}
		if got := r.Header.Get("Crypto-Pay-API-Token"); got != "test-token" {
			t.Fatalf("unexpected token header: %s", got)
		}
		var req map[string]interface{}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Fatalf("decode request: %v", err)
		}
		if req["asset"] != "USDT" {
			t.Fatalf("unexpected asset: %#v", req["asset"])
		}
		if req["amount"] != "2.50" {
			t.Fatalf("unexpected amount: %#v", req["amount"])
		}
		if req["payload"] != "corr-1" {
			t.Fatalf("unexpected payload: %#v", req["payload"])
		}
		_ = json.NewEncoder(w).Encode(map[string]interface{}{
			"ok": true,
			"result": map[string]interface{}{
				"invoice_id": 12345,
				"status":     "active",
				"pay_url":    "https://t.me/CryptoBot?start=IVabc",
				"payload":    "corr-1",
			},
		})
	}))
	defer srv.Close()

	client := NewClient(Config{BaseURL: srv.URL, Token: "test-token"}, srv.Client(), nil)
	created, err := client.CreateInvoice(context.Background(), payments.CreateRequest{
		AmountCents: 250,
		Description: "Balance topup 2.50 USD",
		Payload:     "corr-1",
	})
	if err != nil {
		t.Fatalf("create invoice: %v", err)
	}
	if created.ExternalRef != "12345" {
		t.Fatalf("unexpected external ref: %s", created.ExternalRef)
	}
	if created.PayURL == "" {
		t.Fatalf("expected pay url")
	}
}

// TestGetStatusMapping verifies get status mapping behavior.
func TestGetStatusMapping(t *testing.T) {
	t.Parallel()

	cases := []struct {
		native string
		want   payments.Status
	}{
		{"active", payments.StatusPending},
		{"paid", payments.StatusPaid},
		{"expired", payments.StatusExpired},
		{"something_new", payments.StatusUnknown},
	}
	for _, tc := range cases {
		native := tc.native
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.URL.Path != "/getInvoices" {
				t.Fatalf("unexpected path: %s", r.URL.Path)
			}
			if got := r.URL.Query().Get("invoice_ids"); got != "12345" {
				t.Fatalf("unexpected invoice_ids: %s", got)
			}
			_ = json.NewEncoder(w).Encode(map[string]interface{}{
				"ok": true,
				"result": map[string]interface{}{
					"items": []map[string]interface{}{
						{"invoice_id": 12345, "status": native, "payload": `{"kind":"TOPUP","invoiceId":"corr-1"}`},
					},
				},
			})
		}))

		client := NewClient(Config{BaseURL: srv.URL, Token: "test-token"}, srv.Client(), nil)
		status, err := client.GetStatus(context.Background(), "12345", "corr-1")
		srv.Close()
		if err != nil {
			t.Fatalf("get status (%s): %v", tc.native, err)
		}
		if status != tc.want {
			t.Fatalf("status %s: expected %s, got %s", tc.native, tc.want, status)
		}
	}
}

// TestGetStatusPayloadMismatch verifies get status payload mismatch behavior.
func TestGetStatusPayloadMismatch(t *testing.T) {
	t.Parallel()

	// Both a foreign bare string and a well-formed payload carrying a
	// different invoice id must be rejected.
	for _, echoed := range []string{"someone-else", `{"kind":"TOPUP","invoiceId":"other-invoice"}`} {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			_ = json.NewEncoder(w).Encode(map[string]interface{}{
				"ok": true,
				"result": map[string]interface{}{
					"items": []map[string]interface{}{
						{"invoice_id": 12345, "status": "paid", "payload": echoed},
					},
				},
			})
		}))

		client := NewClient(Config{BaseURL: srv.URL, Token: "test-token"}, srv.Client(), nil)
		_, err := client.GetStatus(context.Background(), "12345", "corr-1")
		srv.Close()
		if !errors.Is(err, payments.ErrPayloadMismatch) {
			t.Fatalf("payload %q: expected ErrPayloadMismatch, got %v", echoed, err)
		}
	}
}

// TestPayloadMatches verifies payload matches behavior.
func TestPayloadMatches(t *testing.T) {
	t.Parallel()

	cases := []struct {
		echoed string
		corr   string
		want   bool
	}{
		{`{"kind":"TOPUP","invoiceId":"inv-1"}`, "inv-1", true},
		{`{"kind":"PURCHASE","invoiceId":"inv-1","planId":3,"region":"de"}`, "inv-1", true},
		{"inv-1", "inv-1", true},
		{`{"kind":"TOPUP","invoiceId":"inv-2"}`, "inv-1", false},
		{"", "inv-1", false},
		{"not json", "inv-1", false},
		{`{"kind":"TOPUP","invoiceId":"inv-1"}`, "", false},
	}
	for _, tc := range cases {
		if got := payloadMatches(tc.echoed, tc.corr); got != tc.want {
			t.Fatalf("payloadMatches(%q, %q) = %v, want %v", tc.echoed, tc.corr, got, tc.want)
		}
	}
}

// TestGetStatusAPIError verifies get status a p i error behavior.
func TestGetStatusAPIError(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"ok":false}`))
	}))
	defer srv.Close()

	client := NewClient(Config{BaseURL: srv.URL, Token: "bad-token"}, srv.Client(), nil)
	_, err := client.GetStatus(context.Background(), "12345", "corr-1")
	if !errors.Is(err, payments.ErrProvider) {
		t.Fatalf("expected ErrProvider, got %v", err)
	}
}

// TestFormatCents verifies format cents behavior.
func TestFormatCents(t *testing.T) {
	t.Parallel()

	if got := formatCents(250); got != "2.50" {
		t.Fatalf("expected 2.50, got %s", got)
	}
	if got := formatCents(5); got != "0.05" {
		t.Fatalf("expected 0.05, got %s", got)
	}
	if got := formatCents(-10); got != "0.00" {
		t.Fatalf("expected 0.00, got %s", got)
	}
}

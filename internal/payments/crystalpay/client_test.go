package crystalpay

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"ecliptvpn/backend/internal/payments"
)

// TestCreateInvoiceConvertsToRubles verifies create invoice converts to rubles behavior.
func TestCreateInvoiceConvertsToRubles(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/invoice/create/" {
			t.Fatalf("unexpected path: %s", r.URL.Path)
		}
		var req map[string]interface{}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Fatalf("decode request: %v", err)
		}
		if req["auth_login"] != "shop" || req["auth_secret"] != "secret" {
			t.Fatalf("unexpected auth: %#v", req)
		}
		// 500 cents at 100 rubles per dollar is 500 rubles.
		if req["amount"] != float64(500) {
			t.Fatalf("unexpected amount: %#v", req["amount"])
		}
		if req["lifetime"] != float64(300) {
			t.Fatalf("unexpected lifetime: %#v", req["lifetime"])
		}
		if req["extra"] != "corr-1" {
			t.Fatalf("unexpected extra: %#v", req["extra"])
		}
		_ = json.NewEncoder(w).Encode(map[string]interface{}{
			"error": false,
			"id":    "cp-1",
			"url":   "https://pay.crystalpay.io/?i=cp-1",
		})
	}))
	defer srv.Close()

	client := NewClient(Config{BaseURL: srv.URL, Login: "shop", Secret: "secret", RubPerUSD: 100}, srv.Client(), nil)
	created, err := client.CreateInvoice(context.Background(), payments.CreateRequest{
		AmountCents: 500,
		Payload:     "corr-1",
	})
	if err != nil {
		t.Fatalf("create invoice: %v", err)
	}
	if created.ExternalRef != "cp-1" || created.PayURL == "" {
		t.Fatalf("unexpected created invoice: %#v", created)
	}
}

// TestGetStatusStateMapping verifies get status state mapping behavior.
func TestGetStatusStateMapping(t *testing.T) {
	t.Parallel()

	cases := []struct {
		state string
		want  payments.Status
	}{
		{"notpayed", payments.StatusPending},
		{"payed", payments.StatusPaid},
		{"overpayed", payments.StatusPaid},
		{"error", payments.StatusError},
		{"wtf", payments.StatusUnknown},
	}
	for _, tc := range cases {
		state := tc.state
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.URL.Path != "/invoice/info/" {
				t.Fatalf("unexpected path: %s", r.URL.Path)
			}
			var req map[string]interface{}
			if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
				t.Fatalf("decode request: %v", err)
			}
			if req["id"] != "cp-1" {
				t.Fatalf("unexpected id: %#v", req["id"])
			}
			_ = json.NewEncoder(w).Encode(map[string]interface{}{
				"error": false,
				"state": state,
			})
		}))

		client := NewClient(Config{BaseURL: srv.URL, Login: "shop", Secret: "secret", RubPerUSD: 100}, srv.Client(), nil)
		status, err := client.GetStatus(context.Background(), "cp-1", "corr-1")
		srv.Close()
		if err != nil {
			t.Fatalf("get status (%s): %v", tc.state, err)
		}
		if status != tc.want {
			t.Fatalf("state %s: expected %s, got %s", tc.state, tc.want, status)
		}
	}
}

// TestGetStatusErrorFlag verifies get status error flag behavior.
func TestGetStatusErrorFlag(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]interface{}{
			"error": true,
		})
	}))
	defer srv.Close()

	client := NewClient(Config{BaseURL: srv.URL, Login: "shop", Secret: "secret", RubPerUSD: 100}, srv.Client(), nil)
	_, err := client.GetStatus(context.Background(), "cp-1", "corr-1")
	if !errors.Is(err, payments.ErrProvider) {
		t.Fatalf("expected ErrProvider, got %v", err)
	}
}

// TestCreateInvoiceRejectsBadResponse verifies create invoice rejects bad response behavior.
func TestCreateInvoiceRejectsBadResponse(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]interface{}{
			"error": false,
			"id":    "",
			"url":   "",
		})
	}))
	defer srv.Close()

	client := NewClient(Config{BaseURL: srv.URL, Login: "shop", Secret: "secret", RubPerUSD: 100}, srv.Client(), nil)
	_, err := client.CreateInvoice(context.Background(), payments.CreateRequest{AmountCents: 500})
	if !errors.Is(err, payments.ErrProvider) {
		t.Fatalf("expected ErrProvider, got %v", err)
	}
}

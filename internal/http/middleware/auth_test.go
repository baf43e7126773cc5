package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"ecliptvpn/backend/internal/auth"
)

// TestAuthMiddleware verifies auth middleware behavior.
func TestAuthMiddleware(t *testing.T) {
	secret := "test-secret"
	var gotUserID int64
	var gotTelegramID int64
	var gotAdmin bool
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotUserID, _ = UserIDFromContext(r.Context())
		gotTelegramID, _ = TelegramIDFromContext(r.Context())
		gotAdmin = IsAdminFromContext(r.Context())
		w.WriteHeader(http.StatusOK)
	})
	handler := AuthMiddleware(secret)(next)

	token, err := auth.SignAccessToken(secret, 7, 700, true)
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}

	req := httptest.NewRequest(http.MethodGet, "/balance", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if gotUserID != 7 || gotTelegramID != 700 || !gotAdmin {
		t.Fatalf("unexpected claims: user=%d tg=%d admin=%v", gotUserID, gotTelegramID, gotAdmin)
	}
}

// TestAuthMiddlewareRejects verifies auth middleware rejects behavior.
func TestAuthMiddlewareRejects(t *testing.T) {
	handler := AuthMiddleware("test-secret")(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatalf("next handler must not run")
	}))

	cases := []struct {
		name   string
		header string
	}{
		{"missing header", ""},
		{"not bearer", "Basic abc"},
		{"garbage token", "Bearer not.a.token"},
	}
	for _, tc := range cases {
		req := httptest.NewRequest(http.MethodGet, "/balance", nil)
		if tc.header != "" {
			req.Header.Set("Authorization", tc.header)
		}
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		if rec.Code != http.StatusUnauthorized {
			t.Fatalf("%s: expected 401, got %d", tc.name, rec.Code)
		}
	}
}

// TestAuthMiddlewareWrongSecret verifies auth middleware wrong secret behavior.
func TestAuthMiddlewareWrongSecret(t *testing.T) {
	token, err := auth.SignAccessToken("other-secret", 7, 700, false)
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}
	handler := AuthMiddleware("test-secret")(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatalf("next handler must not run")
	}))
	req := httptest.NewRequest(http.MethodGet, "/balance", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rec.Code)
	}
}

// TestAdminOnly verifies admin only behavior.
func TestAdminOnly(t *testing.T) {
	secret := "test-secret"
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	handler := AuthMiddleware(secret)(AdminOnly(next))

	adminToken, err := auth.SignAccessToken(secret, 1, 100, true)
	if err != nil {
		t.Fatalf("sign admin token: %v", err)
	}
	userToken, err := auth.SignAccessToken(secret, 2, 200, false)
	if err != nil {
		t.Fatalf("sign user token: %v", err)
	}

	req := httptest.NewRequest(http.MethodGet, "/admin/stats", nil)
	req.Header.Set("Authorization", "Bearer "+adminToken)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 for admin, got %d", rec.Code)
	}

	req = httptest.NewRequest(http.MethodGet, "/admin/stats", nil)
	req.Header.Set("Authorization", "Bearer "+userToken)
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusForbidden {
		t.Fatalf("expected 403 for non-admin, got %d", rec.Code)
	}
}

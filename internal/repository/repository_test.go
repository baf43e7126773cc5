package repository

import (
	"context"
	"fmt"
	"os"
	"testing"
	"time"

	"ecliptvpn/backend/internal/db"
	"ecliptvpn/backend/internal/models"

	"github.com/jackc/pgx/v5/pgxpool"
)

func testPool(t *testing.T) *pgxpool.Pool {
	t.Helper()
	dsn := os.Getenv("DATABASE_URL")
	if dsn == "" {
		t.Skip("DATABASE_URL not set")
	}
	ctx := context.Background()
	pool, err := db.NewPool(ctx, dsn)
	if err != nil {
		t.Fatalf("db connection: %v", err)
	}
	if err := db.Migrate(ctx, pool); err != nil {
		pool.Close()
		t.Fatalf("migrate: %v", err)
	}
	t.Cleanup(pool.Close)
	return pool
}

func insertTestUser(t *testing.T, pool *pgxpool.Pool, telegramID, balanceCents int64) int64 {
	t.Helper()
	ctx := context.Background()
	var id int64
	err := pool.QueryRow(ctx, `
INSERT INTO users (telegram_id, username, first_name, balance_cents)
VALUES ($1, $2, 'Test', $3)
ON CONFLICT (telegram_id) DO UPDATE SET balance_cents = EXCLUDED.balance_cents
RETURNING id;`, telegramID, fmt.Sprintf("test_%d", telegramID), balanceCents).Scan(&id)
	if err != nil {
		t.Fatalf("insert user: %v", err)
	}
	t.Cleanup(func() {
		_, _ = pool.Exec(ctx, `DELETE FROM promo_activations WHERE user_id = $1`, id)
		_, _ = pool.Exec(ctx, `DELETE FROM invoices WHERE user_id = $1`, id)
		_, _ = pool.Exec(ctx, `DELETE FROM orders WHERE user_id = $1`, id)
		_, _ = pool.Exec(ctx, `DELETE FROM users WHERE id = $1`, id)
	})
	return id
}

func insertTestPlan(t *testing.T, pool *pgxpool.Pool, planID int, priceCents int64) {
	t.Helper()
	ctx := context.Background()
	_, err := pool.Exec(ctx, `
INSERT INTO plans (id, name, months, price_cents)
VALUES ($1, 'Test Plan', 1, $2)
ON CONFLICT (id) DO UPDATE SET price_cents = EXCLUDED.price_cents;`, planID, priceCents)
	if err != nil {
		t.Fatalf("insert plan: %v", err)
	}
	t.Cleanup(func() {
		_, _ = pool.Exec(ctx, `DELETE FROM credentials WHERE plan_id = $1 AND claimed = false`, planID)
		_, _ = pool.Exec(ctx, `DELETE FROM plans WHERE id = $1 AND NOT EXISTS (SELECT 1 FROM orders WHERE plan_id = $1)`, planID)
	})
}

func insertTestCredentials(t *testing.T, pool *pgxpool.Pool, planID int, region string, count int) {
	t.Helper()
	ctx := context.Background()
	for i := 0; i < count; i++ {
		_, err := pool.Exec(ctx, `
INSERT INTO credentials (plan_id, region, secret)
VALUES ($1, $2, $3);`, planID, region, fmt.Sprintf("vpn://test-%d-%d-%d", planID, time.Now().UnixNano(), i))
		if err != nil {
			t.Fatalf("insert credential: %v", err)
		}
	}
}

func insertPendingInvoice(t *testing.T, pool *pgxpool.Pool, id string, userID int64, kind string, planID *int, region string, amountCents int64) {
	t.Helper()
	ctx := context.Background()
	repo := New(pool)
	inv := models.Invoice{
		ID:          id,
		UserID:      userID,
		Kind:        kind,
		PlanID:      planID,
		Region:      region,
		AmountCents: amountCents,
		Provider:    models.ProviderCryptoPay,
		Status:      models.InvoiceStatusPending,
	}
	if err := repo.InsertInvoice(ctx, inv); err != nil {
		t.Fatalf("insert invoice: %v", err)
	}
	t.Cleanup(func() {
		_, _ = pool.Exec(ctx, `DELETE FROM invoices WHERE id = $1`, id)
	})
}

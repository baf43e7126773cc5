package db

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

// NewPool creates pool.
func NewPool(ctx context.Context, connString string) (*pgxpool.Pool, error) {
	cfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, err
	}
	cfg.MaxConns = 25
	cfg.MinConns = 2
	cfg.MaxConnIdleTime = 5 * time.Minute
	return pgxpool.NewWithConfig(ctx, cfg)
}

// Migrate applies the schema. Statements are idempotent so both
// binaries can run it on startup.
func Migrate(ctx context.Context, pool *pgxpool.Pool) error {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS users (
			id BIGSERIAL PRIMARY KEY,
			telegram_id BIGINT NOT NULL UNIQUE,
			username TEXT,
			first_name TEXT NOT NULL DEFAULT '',
			last_name TEXT,
			balance_cents BIGINT NOT NULL DEFAULT 0 CHECK (balance_cents >= 0),
			created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
			updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
		);`,
		`CREATE TABLE IF NOT EXISTS plans (
			id INT PRIMARY KEY,
			name TEXT NOT NULL,
			months INT NOT NULL,
			price_cents BIGINT NOT NULL,
			stars_price BIGINT NOT NULL DEFAULT 0,
			description TEXT
		);`,
		`CREATE TABLE IF NOT EXISTS credentials (
			id BIGSERIAL PRIMARY KEY,
			plan_id INT NOT NULL REFERENCES plans(id),
			region TEXT NOT NULL,
			secret TEXT NOT NULL,
			claimed BOOLEAN NOT NULL DEFAULT false
		);`,
		`CREATE INDEX IF NOT EXISTS idx_credentials_pool
			ON credentials (plan_id, region)
			WHERE claimed = false;`,
		`CREATE TABLE IF NOT EXISTS orders (
			id BIGSERIAL PRIMARY KEY,
			user_id BIGINT NOT NULL REFERENCES users(id),
			plan_id INT NOT NULL REFERENCES plans(id),
			credential_id BIGINT NOT NULL UNIQUE REFERENCES credentials(id),
			region TEXT NOT NULL,
			created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
			expires_at TIMESTAMPTZ NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS invoices (
			id TEXT PRIMARY KEY,
			user_id BIGINT NOT NULL REFERENCES users(id),
			kind TEXT NOT NULL,
			plan_id INT REFERENCES plans(id),
			region TEXT,
			amount_cents BIGINT NOT NULL,
			provider TEXT NOT NULL,
			external_ref TEXT,
			pay_url TEXT,
			status TEXT NOT NULL DEFAULT 'PENDING',
			fulfilled BOOLEAN NOT NULL DEFAULT false,
			created_at TIMESTAMPTZ NOT NULL DEFAULT now()
		);`,
		`CREATE INDEX IF NOT EXISTS idx_invoices_open
			ON invoices (created_at)
			WHERE status IN ('PENDING', 'ERROR');`,
		`CREATE TABLE IF NOT EXISTS promo_codes (
			code TEXT PRIMARY KEY,
			amount_cents BIGINT NOT NULL,
			max_activations INT,
			used_activations INT NOT NULL DEFAULT 0,
			expires_at TIMESTAMPTZ,
			is_active BOOLEAN NOT NULL DEFAULT true,
			created_at TIMESTAMPTZ NOT NULL DEFAULT now()
		);`,
		`CREATE TABLE IF NOT EXISTS promo_activations (
			code TEXT NOT NULL REFERENCES promo_codes(code),
			user_id BIGINT NOT NULL REFERENCES users(id),
			activated_at TIMESTAMPTZ NOT NULL DEFAULT now(),
			UNIQUE (code, user_id)
		);`,
	}
	for _, stmt := range statements {
		if _, err := pool.Exec(ctx, stmt); err != nil {
			return err
		}
	}
	return nil
}

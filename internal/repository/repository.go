package repository

import (
	"context"
	"database/sql"
	"time"

	"ecliptvpn/backend/internal/models"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type Repository struct {
	pool *pgxpool.Pool
}

func New(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

func (r *Repository) WithTx(ctx context.Context, fn func(pgx.Tx) error) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return err
	}
	if err := fn(tx); err != nil {
		_ = tx.Rollback(ctx)
		return err
	}
	return tx.Commit(ctx)
}

func (r *Repository) UpsertUser(ctx context.Context, user models.User) (models.User, error) {
	query := `
INSERT INTO users (telegram_id, username, first_name, last_name)
VALUES ($1, $2, $3, $4)
ON CONFLICT (telegram_id) DO UPDATE SET
	username = EXCLUDED.username,
	first_name = EXCLUDED.first_name,
	last_name = EXCLUDED.last_name,
	updated_at = now()
RETURNING id, telegram_id, username, first_name, last_name, balance_cents, created_at, updated_at;`

	row := r.pool.QueryRow(ctx, query, user.TelegramID, nullString(user.Username), user.FirstName, nullString(user.LastName))
	return scanUser(row)
}

func (r *Repository) GetUser(ctx context.Context, userID int64) (models.User, error) {
	row := r.pool.QueryRow(ctx, `
SELECT id, telegram_id, username, first_name, last_name, balance_cents, created_at, updated_at
FROM users
WHERE id = $1;`, userID)
	return scanUser(row)
}

func (r *Repository) GetUserByTelegramID(ctx context.Context, telegramID int64) (models.User, error) {
	row := r.pool.QueryRow(ctx, `
SELECT id, telegram_id, username, first_name, last_name, balance_cents, created_at, updated_at
FROM users
WHERE telegram_id = $1;`, telegramID)
	return scanUser(row)
}

// AddBalance credits a user atomically and returns the new balance.
func (r *Repository) AddBalance(ctx context.Context, userID int64, amountCents int64) (int64, error) {
	row := r.pool.QueryRow(ctx, `
UPDATE users
SET balance_cents = balance_cents + $2,
	updated_at = now()
WHERE id = $1
RETURNING balance_cents;`, userID, amountCents)
	var balance int64
	if err := row.Scan(&balance); err != nil {
		return 0, err
	}
	return balance, nil
}

func scanUser(row pgx.Row) (models.User, error) {
	var out models.User
	var username sql.NullString
	var lastName sql.NullString
	err := row.Scan(&out.ID, &out.TelegramID, &username, &out.FirstName, &lastName, &out.BalanceCents, &out.CreatedAt, &out.UpdatedAt)
	if username.Valid {
		out.Username = username.String
	}
	if lastName.Valid {
		out.LastName = lastName.String
	}
	return out, err
}

func nullString(val string) interface{} {
	if val == "" {
		return nil
	}
	return val
}

func nullIntPtr(value *int) interface{} {
	if value == nil || *value <= 0 {
		return nil
	}
	return *value
}

func nullInt32ToIntPtr(value sql.NullInt32) *int {
	if !value.Valid {
		return nil
	}
	v := int(value.Int32)
	return &v
}

func nullTimeToPtr(value sql.NullTime) *time.Time {
	if !value.Valid {
		return nil
	}
	v := value.Time
	return &v
}

package repository

import (
	"context"

	"ecliptvpn/backend/internal/models"

	"github.com/jackc/pgx/v5"
)

// insertOrderTx records an order for a freshly claimed credential.
// Expiry is months times thirty days from now.
func insertOrderTx(ctx context.Context, tx pgx.Tx, userID int64, cred models.Credential) (models.Order, error) {
	var out models.Order
	err := tx.QueryRow(ctx, `
INSERT INTO orders (user_id, plan_id, credential_id, region, expires_at)
SELECT $1, $2, $3, $4, now() + p.months * interval '30 days'
FROM plans p
WHERE p.id = $2
RETURNING id, user_id, plan_id, credential_id, region, created_at, expires_at;`,
		userID, cred.PlanID, cred.ID, cred.Region,
	).Scan(&out.ID, &out.UserID, &out.PlanID, &out.CredentialID, &out.Region, &out.CreatedAt, &out.ExpiresAt)
	return out, err
}

func (r *Repository) ListUserOrders(ctx context.Context, userID int64) ([]models.Order, error) {
	rows, err := r.pool.Query(ctx, `
SELECT id, user_id, plan_id, credential_id, region, created_at, expires_at
FROM orders
WHERE user_id = $1
ORDER BY created_at DESC;`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	items := make([]models.Order, 0)
	for rows.Next() {
		var o models.Order
		if err := rows.Scan(&o.ID, &o.UserID, &o.PlanID, &o.CredentialID, &o.Region, &o.CreatedAt, &o.ExpiresAt); err != nil {
			return nil, err
		}
		items = append(items, o)
	}
	return items, rows.Err()
}

// GetOrderCredential resolves the delivered secret for one of the
// user's own orders.
func (r *Repository) GetOrderCredential(ctx context.Context, orderID, userID int64) (models.Credential, error) {
	var out models.Credential
	err := r.pool.QueryRow(ctx, `
SELECT c.id, c.plan_id, c.region, c.secret, c.claimed
FROM orders o
JOIN credentials c ON c.id = o.credential_id
WHERE o.id = $1
	AND o.user_id = $2;`, orderID, userID).Scan(&out.ID, &out.PlanID, &out.Region, &out.Secret, &out.Claimed)
	return out, err
}

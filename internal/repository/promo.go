package repository

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"ecliptvpn/backend/internal/billing"
	"ecliptvpn/backend/internal/models"

	"github.com/jackc/pgx/v5"
)

var (
	ErrPromoNotFound        = errors.New("promo code not found")
	ErrPromoInactive        = errors.New("promo code is inactive")
	ErrPromoExpired         = errors.New("promo code is expired")
	ErrPromoExhausted       = errors.New("promo code activation limit reached")
	ErrPromoAlreadyRedeemed = errors.New("promo code already redeemed")
	ErrPromoExists          = errors.New("promo code already exists")
)

// RedeemPromo credits a promo amount once per user, holding the code
// row locked so the activation cap survives concurrent redemptions.
func (r *Repository) RedeemPromo(ctx context.Context, code string, userID int64) (int64, int64, error) {
	code = strings.ToUpper(strings.TrimSpace(code))
	var amount int64
	var newBalance int64
	err := r.WithTx(ctx, func(tx pgx.Tx) error {
		var rule billing.PromoRule
		var maxActivations sql.NullInt32
		var expiresAt sql.NullTime
		if err := tx.QueryRow(ctx, `
SELECT code, amount_cents, max_activations, used_activations, expires_at, is_active
FROM promo_codes
WHERE code = $1
FOR UPDATE;`, code).Scan(
			&rule.Code,
			&rule.AmountCents,
			&maxActivations,
			&rule.UsedActivations,
			&expiresAt,
			&rule.IsActive,
		); err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return ErrPromoNotFound
			}
			return err
		}
		rule.MaxActivations = nullInt32ToIntPtr(maxActivations)
		rule.ExpiresAt = nullTimeToPtr(expiresAt)

		var alreadyRedeemed bool
		if err := tx.QueryRow(ctx, `
SELECT EXISTS(SELECT 1 FROM promo_activations WHERE code = $1 AND user_id = $2);`, code, userID).Scan(&alreadyRedeemed); err != nil {
			return err
		}

		result := billing.ValidatePromo(rule, billing.PromoValidationInput{
			Now:             time.Now().UTC(),
			AlreadyRedeemed: alreadyRedeemed,
		})
		if !result.Valid {
			return promoReasonError(result.Reason)
		}

		if _, err := tx.Exec(ctx, `
INSERT INTO promo_activations (code, user_id)
VALUES ($1, $2);`, code, userID); err != nil {
			return err
		}
		cmd, err := tx.Exec(ctx, `
UPDATE promo_codes
SET used_activations = used_activations + 1
WHERE code = $1
	AND (max_activations IS NULL OR used_activations < max_activations);`, code)
		if err != nil {
			return err
		}
		if cmd.RowsAffected() == 0 {
			return ErrPromoExhausted
		}
		if err := tx.QueryRow(ctx, `
UPDATE users
SET balance_cents = balance_cents + $2,
	updated_at = now()
WHERE id = $1
RETURNING balance_cents;`, userID, result.AmountCents).Scan(&newBalance); err != nil {
			return err
		}
		amount = result.AmountCents
		return nil
	})
	if err != nil {
		return 0, 0, err
	}
	return amount, newBalance, nil
}

func promoReasonError(reason string) error {
	switch reason {
	case billing.PromoReasonInactive:
		return ErrPromoInactive
	case billing.PromoReasonExpired:
		return ErrPromoExpired
	case billing.PromoReasonLimitReached:
		return ErrPromoExhausted
	case billing.PromoReasonAlreadyRedeemed:
		return ErrPromoAlreadyRedeemed
	default:
		return ErrPromoNotFound
	}
}

func (r *Repository) CreatePromoCode(ctx context.Context, in models.PromoCodeInput) (models.PromoCode, error) {
	row := r.pool.QueryRow(ctx, `
INSERT INTO promo_codes (code, amount_cents, max_activations, expires_at, is_active)
VALUES ($1, $2, $3, $4, $5)
ON CONFLICT (code) DO NOTHING
RETURNING code, amount_cents, max_activations, used_activations, expires_at, is_active, created_at;`,
		strings.ToUpper(strings.TrimSpace(in.Code)),
		in.AmountCents,
		nullIntPtr(in.MaxActivations),
		in.ExpiresAt,
		in.IsActive,
	)
	promo, err := scanPromoCode(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return models.PromoCode{}, ErrPromoExists
	}
	return promo, err
}

func (r *Repository) ListPromoCodes(ctx context.Context, activeOnly bool) ([]models.PromoCode, error) {
	rows, err := r.pool.Query(ctx, `
SELECT code, amount_cents, max_activations, used_activations, expires_at, is_active, created_at
FROM promo_codes
WHERE (NOT $1::boolean OR is_active)
ORDER BY created_at DESC;`, activeOnly)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	items := make([]models.PromoCode, 0)
	for rows.Next() {
		promo, err := scanPromoCode(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, promo)
	}
	return items, rows.Err()
}

func (r *Repository) SetPromoActive(ctx context.Context, code string, active bool) error {
	cmd, err := r.pool.Exec(ctx, `
UPDATE promo_codes
SET is_active = $2
WHERE code = $1;`, strings.ToUpper(strings.TrimSpace(code)), active)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return ErrPromoNotFound
	}
	return nil
}

// DeletePromoCode removes a code together with its activation history.
func (r *Repository) DeletePromoCode(ctx context.Context, code string) error {
	code = strings.ToUpper(strings.TrimSpace(code))
	return r.WithTx(ctx, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, `DELETE FROM promo_activations WHERE code = $1;`, code); err != nil {
			return err
		}
		cmd, err := tx.Exec(ctx, `DELETE FROM promo_codes WHERE code = $1;`, code)
		if err != nil {
			return err
		}
		if cmd.RowsAffected() == 0 {
			return ErrPromoNotFound
		}
		return nil
	})
}

func scanPromoCode(row pgx.Row) (models.PromoCode, error) {
	var out models.PromoCode
	var maxActivations sql.NullInt32
	var expiresAt sql.NullTime
	if err := row.Scan(
		&out.Code,
		&out.AmountCents,
		&maxActivations,
		&out.UsedActivations,
		&expiresAt,
		&out.IsActive,
		&out.CreatedAt,
	); err != nil {
		return out, err
	}
	out.MaxActivations = nullInt32ToIntPtr(maxActivations)
	out.ExpiresAt = nullTimeToPtr(expiresAt)
	return out, nil
}

package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"ecliptvpn/backend/internal/billing"
	"ecliptvpn/backend/internal/models"

	"github.com/jackc/pgx/v5"
)

var ErrAlreadyFulfilled = errors.New("invoice already fulfilled")

func (r *Repository) InsertInvoice(ctx context.Context, inv models.Invoice) error {
	_, err := r.pool.Exec(ctx, `
INSERT INTO invoices (id, user_id, kind, plan_id, region, amount_cents, provider, external_ref, pay_url, status, fulfilled)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11);`,
		inv.ID,
		inv.UserID,
		inv.Kind,
		nullIntPtr(inv.PlanID),
		nullString(inv.Region),
		inv.AmountCents,
		inv.Provider,
		nullString(inv.ExternalRef),
		nullString(inv.PayURL),
		inv.Status,
		inv.Fulfilled,
	)
	return err
}

func (r *Repository) GetInvoice(ctx context.Context, id string) (models.Invoice, error) {
	row := r.pool.QueryRow(ctx, `
SELECT id, user_id, kind, plan_id, region, amount_cents, provider, external_ref, pay_url, status, fulfilled, created_at
FROM invoices
WHERE id = $1;`, id)
	inv, err := scanInvoice(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return models.Invoice{}, billing.ErrInvoiceNotFound
	}
	return inv, err
}

func (r *Repository) SetInvoiceExternalRef(ctx context.Context, id, externalRef, payURL string) error {
	cmd, err := r.pool.Exec(ctx, `
UPDATE invoices
SET external_ref = $2,
	pay_url = $3
WHERE id = $1;`, id, nullString(externalRef), nullString(payURL))
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return billing.ErrInvoiceNotFound
	}
	return nil
}

// MarkInvoicePaid performs the transition to paid. Exactly one
// concurrent caller observes true.
func (r *Repository) MarkInvoicePaid(ctx context.Context, id string) (bool, error) {
	return r.MarkInvoiceSettled(ctx, id, models.InvoiceStatusPaid)
}

// MarkInvoiceSettled moves an open invoice into the given status and
// reports whether this call performed the transition. An errored
// invoice stays open: a later provider check may still settle it, so
// only paid and expired are unreachable source states.
func (r *Repository) MarkInvoiceSettled(ctx context.Context, id, status string) (bool, error) {
	cmd, err := r.pool.Exec(ctx, `
UPDATE invoices
SET status = $2
WHERE id = $1
	AND (status = $3 OR status = $4);`, id, status, models.InvoiceStatusPending, models.InvoiceStatusError)
	if err != nil {
		return false, err
	}
	return cmd.RowsAffected() > 0, nil
}

// FulfillTopup credits the user balance once per invoice. The fulfilled
// flag flip and the credit commit together.
func (r *Repository) FulfillTopup(ctx context.Context, invoiceID string, userID, amountCents int64) error {
	return r.WithTx(ctx, func(tx pgx.Tx) error {
		if err := flipFulfilled(ctx, tx, invoiceID); err != nil {
			return err
		}
		cmd, err := tx.Exec(ctx, `
UPDATE users
SET balance_cents = balance_cents + $2,
	updated_at = now()
WHERE id = $1;`, userID, amountCents)
		if err != nil {
			return err
		}
		if cmd.RowsAffected() == 0 {
			return fmt.Errorf("user %d not found", userID)
		}
		return nil
	})
}

// FulfillPurchase claims a credential and creates the order, once per
// invoice. An empty pool rolls everything back and the invoice stays
// paid and unfulfilled.
func (r *Repository) FulfillPurchase(ctx context.Context, invoiceID string, userID int64, planID int, region string) (models.Order, models.Credential, error) {
	var order models.Order
	var cred models.Credential
	err := r.WithTx(ctx, func(tx pgx.Tx) error {
		if err := flipFulfilled(ctx, tx, invoiceID); err != nil {
			return err
		}
		claimed, err := claimCredentialTx(ctx, tx, planID, region)
		if err != nil {
			return err
		}
		created, err := insertOrderTx(ctx, tx, userID, claimed)
		if err != nil {
			return err
		}
		order = created
		cred = claimed
		return nil
	})
	if err != nil {
		return models.Order{}, models.Credential{}, err
	}
	return order, cred, nil
}

// PurchaseWithBalance buys a plan from the account balance in one
// transaction: claim first, then the conditional debit. A rollback on
// insufficient funds releases the claim.
func (r *Repository) PurchaseWithBalance(ctx context.Context, inv models.Invoice) (models.Order, models.Credential, error) {
	if inv.PlanID == nil {
		return models.Order{}, models.Credential{}, fmt.Errorf("plan id is required")
	}
	var order models.Order
	var cred models.Credential
	err := r.WithTx(ctx, func(tx pgx.Tx) error {
		claimed, err := claimCredentialTx(ctx, tx, *inv.PlanID, inv.Region)
		if err != nil {
			return err
		}
		created, err := insertOrderTx(ctx, tx, inv.UserID, claimed)
		if err != nil {
			return err
		}
		cmd, err := tx.Exec(ctx, `
UPDATE users
SET balance_cents = balance_cents - $2,
	updated_at = now()
WHERE id = $1
	AND balance_cents >= $2;`, inv.UserID, inv.AmountCents)
		if err != nil {
			return err
		}
		if cmd.RowsAffected() == 0 {
			return billing.ErrInsufficientBalance
		}
		if _, err := tx.Exec(ctx, `
INSERT INTO invoices (id, user_id, kind, plan_id, region, amount_cents, provider, status, fulfilled)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9);`,
			inv.ID,
			inv.UserID,
			inv.Kind,
			*inv.PlanID,
			inv.Region,
			inv.AmountCents,
			inv.Provider,
			inv.Status,
			inv.Fulfilled,
		); err != nil {
			return err
		}
		order = created
		cred = claimed
		return nil
	})
	if err != nil {
		return models.Order{}, models.Credential{}, err
	}
	return order, cred, nil
}

func (r *Repository) ListUserInvoices(ctx context.Context, userID int64, limit, offset int) ([]models.Invoice, error) {
	if limit <= 0 {
		limit = 50
	}
	if limit > 200 {
		limit = 200
	}
	if offset < 0 {
		offset = 0
	}
	rows, err := r.pool.Query(ctx, `
SELECT id, user_id, kind, plan_id, region, amount_cents, provider, external_ref, pay_url, status, fulfilled, created_at
FROM invoices
WHERE user_id = $1
ORDER BY created_at DESC
LIMIT $2 OFFSET $3;`, userID, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	items := make([]models.Invoice, 0)
	for rows.Next() {
		inv, err := scanInvoice(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, inv)
	}
	return items, rows.Err()
}

// ListStaleOpenInvoices returns pending and errored invoices older
// than the grace period, oldest first, for the reconciliation sweep.
// Errored invoices are included so the sweep re-checks them.
func (r *Repository) ListStaleOpenInvoices(ctx context.Context, olderThan time.Duration, limit int) ([]models.Invoice, error) {
	if limit <= 0 {
		limit = 100
	}
	interval := fmt.Sprintf("%d seconds", int(olderThan.Seconds()))
	rows, err := r.pool.Query(ctx, `
SELECT id, user_id, kind, plan_id, region, amount_cents, provider, external_ref, pay_url, status, fulfilled, created_at
FROM invoices
WHERE (status = $1 OR status = $2)
	AND created_at <= now() - $3::interval
ORDER BY created_at ASC
LIMIT $4;`, models.InvoiceStatusPending, models.InvoiceStatusError, interval, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	items := make([]models.Invoice, 0)
	for rows.Next() {
		inv, err := scanInvoice(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, inv)
	}
	return items, rows.Err()
}

func flipFulfilled(ctx context.Context, tx pgx.Tx, invoiceID string) error {
	cmd, err := tx.Exec(ctx, `
UPDATE invoices
SET fulfilled = true
WHERE id = $1
	AND status = $2
	AND fulfilled = false;`, invoiceID, models.InvoiceStatusPaid)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return ErrAlreadyFulfilled
	}
	return nil
}

func scanInvoice(row pgx.Row) (models.Invoice, error) {
	var out models.Invoice
	var planID sql.NullInt32
	var region sql.NullString
	var externalRef sql.NullString
	var payURL sql.NullString
	if err := row.Scan(
		&out.ID,
		&out.UserID,
		&out.Kind,
		&planID,
		&region,
		&out.AmountCents,
		&out.Provider,
		&externalRef,
		&payURL,
		&out.Status,
		&out.Fulfilled,
		&out.CreatedAt,
	); err != nil {
		return out, err
	}
	out.PlanID = nullInt32ToIntPtr(planID)
	if region.Valid {
		out.Region = region.String
	}
	if externalRef.Valid {
		out.ExternalRef = externalRef.String
	}
	if payURL.Valid {
		out.PayURL = payURL.String
	}
	return out, nil
}

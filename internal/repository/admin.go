package repository

import (
	"context"

	"ecliptvpn/backend/internal/models"
)

// AdminStats aggregates the operator dashboard counters.
func (r *Repository) AdminStats(ctx context.Context) (models.AdminStats, error) {
	var out models.AdminStats
	err := r.pool.QueryRow(ctx, `
SELECT
	(SELECT count(*) FROM users),
	(SELECT count(*) FROM orders WHERE expires_at > now()),
	(SELECT COALESCE(sum(amount_cents), 0) FROM invoices WHERE status = $1 AND provider <> $2),
	(SELECT count(*) FROM promo_codes),
	(SELECT count(*) FROM promo_activations),
	(SELECT COALESCE(sum(p.amount_cents), 0)
		FROM promo_activations a
		JOIN promo_codes p ON p.code = a.code),
	(SELECT count(*) FROM invoices WHERE status = $1 AND fulfilled = false);`,
		models.InvoiceStatusPaid, models.ProviderBalance,
	).Scan(
		&out.UsersCount,
		&out.ActiveOrders,
		&out.RevenueCents,
		&out.PromoCodesTotal,
		&out.PromoActivations,
		&out.PromoGrantedCents,
		&out.UnfulfilledInvoices,
	)
	return out, err
}

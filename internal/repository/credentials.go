package repository

import (
	"context"
	"errors"
	"strings"

	"ecliptvpn/backend/internal/billing"
	"ecliptvpn/backend/internal/models"

	"github.com/jackc/pgx/v5"
)

// claimCredentialTx marks one unclaimed credential as claimed and
// returns it. SKIP LOCKED keeps concurrent claimants on distinct rows.
func claimCredentialTx(ctx context.Context, tx pgx.Tx, planID int, region string) (models.Credential, error) {
	var out models.Credential
	err := tx.QueryRow(ctx, `
WITH cte AS (
	SELECT id
	FROM credentials
	WHERE plan_id = $1
		AND region = $2
		AND claimed = false
	ORDER BY id ASC
	LIMIT 1
	FOR UPDATE SKIP LOCKED
)
UPDATE credentials c
SET claimed = true
FROM cte
WHERE c.id = cte.id
RETURNING c.id, c.plan_id, c.region, c.secret, c.claimed;`, planID, strings.ToLower(strings.TrimSpace(region))).Scan(
		&out.ID,
		&out.PlanID,
		&out.Region,
		&out.Secret,
		&out.Claimed,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return out, billing.ErrInventoryExhausted
	}
	return out, err
}

// AddCredentials loads a batch of fresh secrets into the pool.
func (r *Repository) AddCredentials(ctx context.Context, planID int, region string, secrets []string) (int, error) {
	region = strings.ToLower(strings.TrimSpace(region))
	inserted := 0
	err := r.WithTx(ctx, func(tx pgx.Tx) error {
		for _, secret := range secrets {
			secret = strings.TrimSpace(secret)
			if secret == "" {
				continue
			}
			if _, err := tx.Exec(ctx, `
INSERT INTO credentials (plan_id, region, secret)
VALUES ($1, $2, $3);`, planID, region, secret); err != nil {
				return err
			}
			inserted++
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return inserted, nil
}

// CredentialStats reports unclaimed counts per plan and region.
func (r *Repository) CredentialStats(ctx context.Context, region string) ([]models.CredentialStat, error) {
	region = strings.ToLower(strings.TrimSpace(region))
	rows, err := r.pool.Query(ctx, `
SELECT plan_id, region, count(*)
FROM credentials
WHERE claimed = false
	AND ($1::text = '' OR region = $1)
GROUP BY plan_id, region
ORDER BY plan_id ASC, region ASC;`, region)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	stats := make([]models.CredentialStat, 0)
	for rows.Next() {
		var s models.CredentialStat
		if err := rows.Scan(&s.PlanID, &s.Region, &s.Available); err != nil {
			return nil, err
		}
		stats = append(stats, s)
	}
	return stats, rows.Err()
}

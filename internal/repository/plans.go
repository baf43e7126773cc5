package repository

import (
	"context"
	"database/sql"
	"errors"

	"ecliptvpn/backend/internal/models"

	"github.com/jackc/pgx/v5"
)

var ErrPlanNotFound = errors.New("plan not found")

func (r *Repository) GetPlan(ctx context.Context, id int) (models.Plan, error) {
	row := r.pool.QueryRow(ctx, `
SELECT id, name, months, price_cents, stars_price, description
FROM plans
WHERE id = $1;`, id)
	plan, err := scanPlan(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return models.Plan{}, ErrPlanNotFound
	}
	return plan, err
}

func (r *Repository) ListPlans(ctx context.Context) ([]models.Plan, error) {
	rows, err := r.pool.Query(ctx, `
SELECT id, name, months, price_cents, stars_price, description
FROM plans
ORDER BY months ASC;`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	items := make([]models.Plan, 0)
	for rows.Next() {
		plan, err := scanPlan(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, plan)
	}
	return items, rows.Err()
}

func scanPlan(row pgx.Row) (models.Plan, error) {
	var out models.Plan
	var description sql.NullString
	if err := row.Scan(&out.ID, &out.Name, &out.Months, &out.PriceCents, &out.StarsPrice, &description); err != nil {
		return out, err
	}
	if description.Valid {
		out.Description = description.String
	}
	return out, nil
}

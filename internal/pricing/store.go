package pricing

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/ariefcatur/go-commerce-checkout.git/internal/commerce"
)

// PgxStore reads price inputs from Postgres. Soft deletion is filtered
// explicitly in each query, never by a proxy layer.
type PgxStore struct{ DB *pgxpool.Pool }

func (s *PgxStore) BasePrice(ctx context.Context, variantID, currencyCode string) (decimal.Decimal, error) {
	var amount decimal.Decimal
	err := s.DB.QueryRow(ctx, `
		SELECT amount FROM variant_prices
		WHERE variant_id=$1 AND currency_code=$2`,
		variantID, currencyCode).Scan(&amount)
	if errors.Is(err, pgx.ErrNoRows) {
		return decimal.Zero, commerce.ErrNotFound
	}
	if err != nil {
		return decimal.Zero, err
	}
	return amount, nil
}

func (s *PgxStore) ActiveListPrices(ctx context.Context, q Query, now time.Time) ([]Candidate, error) {
	rows, err := s.DB.Query(ctx, `
		SELECT pl.name, plp.amount
		FROM price_list_prices plp
		JOIN price_lists pl ON pl.id = plp.price_list_id
		WHERE plp.variant_id = $1
		  AND plp.currency_code = $2
		  AND plp.min_quantity <= $3
		  AND pl.status = 'ACTIVE'
		  AND pl.deleted_at IS NULL
		  AND (pl.starts_at IS NULL OR pl.starts_at <= $4)
		  AND (pl.ends_at IS NULL OR pl.ends_at >= $4)
		  AND (
			NOT EXISTS (
				SELECT 1 FROM price_list_customer_groups g
				WHERE g.price_list_id = pl.id
			)
			OR ($5::text IS NOT NULL AND EXISTS (
				SELECT 1 FROM price_list_customer_groups g
				WHERE g.price_list_id = pl.id AND g.customer_group_id = $5
			))
		  )`,
		q.VariantID, q.CurrencyCode, q.Quantity, now, q.CustomerGroupID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Candidate
	for rows.Next() {
		var name string
		var amount decimal.Decimal
		if err := rows.Scan(&name, &amount); err != nil {
			return nil, err
		}
		out = append(out, Candidate{Amount: amount, Source: fmt.Sprintf("price_list:%s", name)})
	}
	return out, rows.Err()
}

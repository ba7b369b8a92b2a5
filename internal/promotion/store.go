package promotion

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/ariefcatur/go-commerce-checkout.git/internal/commerce"
)

// Querier is satisfied by both *pgxpool.Pool and pgx.Tx, so the same store
// serves standalone validation and the checkout transaction.
type Querier interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

type PgxStore struct {
	Q Querier
	// Lock makes FindByCode take a row lock. Set inside a checkout
	// transaction so the usage-limit re-check and the usage insert
	// serialize against concurrent checkouts using the same code.
	Lock bool
}

const promotionCols = `
	id, code, type, value, usage_limit, usage_count, per_customer_limit,
	min_order_amount, starts_at, ends_at, is_active, is_automatic, deleted_at`

func (s *PgxStore) FindByCode(ctx context.Context, code string) (*commerce.Promotion, error) {
	q := `SELECT` + promotionCols + ` FROM promotions WHERE code=$1`
	if s.Lock {
		q += ` FOR UPDATE`
	}
	p := &commerce.Promotion{}
	err := s.Q.QueryRow(ctx, q, code).Scan(
		&p.ID, &p.Code, &p.Type, &p.Value, &p.UsageLimit, &p.UsageCount,
		&p.PerCustomerLimit, &p.MinOrderAmount, &p.StartsAt, &p.EndsAt,
		&p.IsActive, &p.IsAutomatic, &p.DeletedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, commerce.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return p, nil
}

func (s *PgxStore) UsageCountByCustomer(ctx context.Context, promotionID, customerID string) (int, error) {
	var n int
	err := s.Q.QueryRow(ctx, `
		SELECT COUNT(*) FROM promotion_usages
		WHERE promotion_id=$1 AND customer_id=$2`, promotionID, customerID).Scan(&n)
	return n, err
}

func (s *PgxStore) ListAutomatic(ctx context.Context) ([]commerce.Promotion, error) {
	rows, err := s.Q.Query(ctx, `
		SELECT`+promotionCols+`
		FROM promotions
		WHERE is_automatic AND is_active AND deleted_at IS NULL`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []commerce.Promotion
	for rows.Next() {
		var p commerce.Promotion
		if err := rows.Scan(
			&p.ID, &p.Code, &p.Type, &p.Value, &p.UsageLimit, &p.UsageCount,
			&p.PerCustomerLimit, &p.MinOrderAmount, &p.StartsAt, &p.EndsAt,
			&p.IsActive, &p.IsAutomatic, &p.DeletedAt); err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

// RecordUsage appends one row to the usage ledger and bumps the counter.
// Must run on a transaction that holds the promotion row lock.
func RecordUsage(ctx context.Context, q Querier, u commerce.PromotionUsage) error {
	if _, err := q.Exec(ctx, `
		INSERT INTO promotion_usages(promotion_id, order_id, customer_id, created_at)
		VALUES ($1,$2,$3,now())`, u.PromotionID, u.OrderID, u.CustomerID); err != nil {
		return err
	}
	_, err := q.Exec(ctx,
		`UPDATE promotions SET usage_count = usage_count + 1 WHERE id=$1`, u.PromotionID)
	return err
}

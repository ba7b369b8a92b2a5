// Package orders guards order status progression after checkout. The
// transition table lives in internal/commerce; this service applies it
// under a row lock so two callers cannot race the same order.
package orders

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"

	"github.com/ariefcatur/go-commerce-checkout.git/internal/commerce"
)

type Service struct {
	DB  *pgxpool.Pool
	Log zerolog.Logger
}

func NewService(db *pgxpool.Pool, log zerolog.Logger) *Service {
	return &Service{DB: db, Log: log.With().Str("component", "orders").Logger()}
}

// Transition moves an order to next if the transition table allows it.
// CANCELLED additionally stamps canceled_at. Returns the updated order
// status fields.
func (s *Service) Transition(ctx context.Context, orderID string, next commerce.OrderStatus) (*commerce.Order, error) {
	tx, err := s.DB.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx)

	o := &commerce.Order{ID: orderID}
	err = tx.QueryRow(ctx,
		`SELECT status, canceled_at FROM orders WHERE id=$1 FOR UPDATE`, orderID).
		Scan(&o.Status, &o.CanceledAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, commerce.ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	if !commerce.CanTransition(o.Status, next) {
		return nil, commerce.ErrInvalidTransition
	}

	if next == commerce.OrderCancelled {
		now := time.Now().UTC()
		if _, err := tx.Exec(ctx,
			`UPDATE orders SET status=$2, canceled_at=$3, updated_at=now() WHERE id=$1`,
			orderID, next, now); err != nil {
			return nil, err
		}
		o.CanceledAt = &now
	} else {
		if _, err := tx.Exec(ctx,
			`UPDATE orders SET status=$2, updated_at=now() WHERE id=$1`,
			orderID, next); err != nil {
			return nil, err
		}
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}

	o.Status = next
	s.Log.Info().Str("order_id", orderID).Str("status", string(next)).Msg("order transitioned")
	return o, nil
}

// Get loads one order with its items.
func (s *Service) Get(ctx context.Context, orderID string) (*commerce.Order, error) {
	o := &commerce.Order{ID: orderID}
	err := s.DB.QueryRow(ctx, `
		SELECT cart_id, customer_id, email, currency_code, status, payment_status,
		       fulfillment_status, subtotal, discount_total, tax_total, shipping_total,
		       total, tax_rate, promotion_id, shipping_address_id, billing_address_id,
		       canceled_at, created_at, updated_at
		FROM orders WHERE id=$1`, orderID).
		Scan(&o.CartID, &o.CustomerID, &o.Email, &o.CurrencyCode, &o.Status,
			&o.PaymentStatus, &o.FulfillmentStatus, &o.Subtotal, &o.DiscountTotal,
			&o.TaxTotal, &o.ShippingTotal, &o.Total, &o.TaxRate, &o.PromotionID,
			&o.ShippingAddressID, &o.BillingAddressID, &o.CanceledAt, &o.CreatedAt, &o.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, commerce.ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	rows, err := s.DB.Query(ctx, `
		SELECT id, variant_id, title, qty, unit_price, total
		FROM order_items WHERE order_id=$1`, orderID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	for rows.Next() {
		it := commerce.OrderItem{OrderID: orderID}
		if err := rows.Scan(&it.ID, &it.VariantID, &it.Title, &it.Quantity, &it.UnitPrice, &it.Total); err != nil {
			return nil, err
		}
		o.Items = append(o.Items, it)
	}
	return o, rows.Err()
}

package checkout

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/ariefcatur/go-commerce-checkout.git/internal/commerce"
	"github.com/ariefcatur/go-commerce-checkout.git/internal/promotion"
)

// PgxBeginner implements Beginner on a pgx pool.
type PgxBeginner struct{ DB *pgxpool.Pool }

func (b *PgxBeginner) WithinTx(ctx context.Context, fn func(ctx context.Context, uow UnitOfWork) error) error {
	tx, err := b.DB.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	if err := fn(ctx, &pgxUnitOfWork{tx: tx}); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

type pgxUnitOfWork struct{ tx pgx.Tx }

func (u *pgxUnitOfWork) Carts() CartStore        { return &pgxCartStore{tx: u.tx} }
func (u *pgxUnitOfWork) Orders() OrderStore      { return &pgxOrderStore{tx: u.tx} }
func (u *pgxUnitOfWork) Addresses() AddressStore { return &pgxAddressStore{tx: u.tx} }
func (u *pgxUnitOfWork) Shipping() ShippingStore { return &pgxShippingStore{tx: u.tx} }
func (u *pgxUnitOfWork) Promotions() promotion.Store {
	return &promotion.PgxStore{Q: u.tx, Lock: true}
}

func (u *pgxUnitOfWork) RecordPromotionUsage(ctx context.Context, usage commerce.PromotionUsage) error {
	return promotion.RecordUsage(ctx, u.tx, usage)
}

type pgxCartStore struct{ tx pgx.Tx }

func (s *pgxCartStore) GetWithItems(ctx context.Context, cartID string) (*commerce.Cart, error) {
	c := &commerce.Cart{ID: cartID}
	err := s.tx.QueryRow(ctx, `
		SELECT customer_id, email, currency_code, discount_code, completed_at, created_at, updated_at
		FROM carts WHERE id=$1 AND deleted_at IS NULL FOR UPDATE`, cartID).
		Scan(&c.CustomerID, &c.Email, &c.CurrencyCode, &c.DiscountCode,
			&c.CompletedAt, &c.CreatedAt, &c.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, commerce.ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	rows, err := s.tx.Query(ctx, `
		SELECT id, variant_id, title, qty, unit_price, total
		FROM cart_items WHERE cart_id=$1`, cartID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	for rows.Next() {
		it := commerce.CartItem{CartID: cartID}
		if err := rows.Scan(&it.ID, &it.VariantID, &it.Title, &it.Quantity, &it.UnitPrice, &it.Total); err != nil {
			return nil, err
		}
		c.Items = append(c.Items, it)
	}
	return c, rows.Err()
}

func (s *pgxCartStore) MarkCompleted(ctx context.Context, cartID string, t Totals, at time.Time) error {
	_, err := s.tx.Exec(ctx, `
		UPDATE carts
		SET subtotal=$2, discount_total=$3, tax_total=$4, shipping_total=$5,
		    total=$6, completed_at=$7, updated_at=now()
		WHERE id=$1`,
		cartID, t.Subtotal, t.DiscountTotal, t.TaxTotal, t.ShippingTotal, t.Total, at)
	return err
}

type pgxOrderStore struct{ tx pgx.Tx }

func (s *pgxOrderStore) Create(ctx context.Context, o *commerce.Order) error {
	_, err := s.tx.Exec(ctx, `
		INSERT INTO orders(
			id, cart_id, customer_id, email, currency_code, status, payment_status,
			fulfillment_status, subtotal, discount_total, tax_total, shipping_total,
			total, tax_rate, promotion_id, shipping_address_id, billing_address_id,
			created_at, updated_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$18,$18)`,
		o.ID, o.CartID, o.CustomerID, o.Email, o.CurrencyCode, o.Status, o.PaymentStatus,
		o.FulfillmentStatus, o.Subtotal, o.DiscountTotal, o.TaxTotal, o.ShippingTotal,
		o.Total, o.TaxRate, o.PromotionID, o.ShippingAddressID, o.BillingAddressID,
		o.CreatedAt)
	if err != nil {
		return err
	}
	for i := range o.Items {
		it := &o.Items[i]
		if _, err := s.tx.Exec(ctx, `
			INSERT INTO order_items(id, order_id, variant_id, title, qty, unit_price, total)
			VALUES ($1,$2,$3,$4,$5,$6,$7)`,
			it.ID, it.OrderID, it.VariantID, it.Title, it.Quantity, it.UnitPrice, it.Total); err != nil {
			return err
		}
	}
	return nil
}

type pgxAddressStore struct{ tx pgx.Tx }

func (s *pgxAddressStore) Create(ctx context.Context, a *commerce.Address) (string, error) {
	if a.ID == "" {
		a.ID = uuid.NewString()
	}
	_, err := s.tx.Exec(ctx, `
		INSERT INTO addresses(id, first_name, last_name, line1, line2, city, province,
			postal_code, country_code, phone, created_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,now())`,
		a.ID, a.FirstName, a.LastName, a.Line1, a.Line2, a.City, a.Province,
		a.PostalCode, a.CountryCode, a.Phone)
	if err != nil {
		return "", err
	}
	return a.ID, nil
}

type pgxShippingStore struct{ tx pgx.Tx }

func (s *pgxShippingStore) MethodPrice(ctx context.Context, shippingMethodID string) (decimal.Decimal, error) {
	var price decimal.Decimal
	err := s.tx.QueryRow(ctx, `
		SELECT price FROM shipping_methods
		WHERE id=$1 AND deleted_at IS NULL`, shippingMethodID).Scan(&price)
	if errors.Is(err, pgx.ErrNoRows) {
		return decimal.Zero, commerce.ErrNotFound
	}
	if err != nil {
		return decimal.Zero, err
	}
	return price, nil
}

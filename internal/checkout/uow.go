package checkout

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"github.com/ariefcatur/go-commerce-checkout.git/internal/commerce"
	"github.com/ariefcatur/go-commerce-checkout.git/internal/promotion"
)

// Totals carries the money fields stamped onto the cart at completion.
type Totals struct {
	Subtotal      decimal.Decimal
	DiscountTotal decimal.Decimal
	TaxTotal      decimal.Decimal
	ShippingTotal decimal.Decimal
	Total         decimal.Decimal
}

type CartStore interface {
	// GetWithItems locks the cart row for the transaction so two
	// checkouts of the same cart serialize.
	GetWithItems(ctx context.Context, cartID string) (*commerce.Cart, error)
	MarkCompleted(ctx context.Context, cartID string, totals Totals, at time.Time) error
}

type OrderStore interface {
	// Create persists the order and all of its items.
	Create(ctx context.Context, o *commerce.Order) error
}

type AddressStore interface {
	Create(ctx context.Context, a *commerce.Address) (string, error)
}

type ShippingStore interface {
	// MethodPrice returns commerce.ErrNotFound for an unknown method.
	MethodPrice(ctx context.Context, shippingMethodID string) (decimal.Decimal, error)
}

// UnitOfWork scopes every store to one database transaction. Atomicity of
// the cart-to-order conversion is guaranteed by construction: a component
// cannot take part in a checkout without going through this interface.
type UnitOfWork interface {
	Carts() CartStore
	Orders() OrderStore
	Addresses() AddressStore
	Shipping() ShippingStore
	Promotions() promotion.Store
	RecordPromotionUsage(ctx context.Context, u commerce.PromotionUsage) error
}

// Beginner runs fn inside one transaction; any error rolls everything back.
type Beginner interface {
	WithinTx(ctx context.Context, fn func(ctx context.Context, uow UnitOfWork) error) error
}

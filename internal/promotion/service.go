// Package promotion validates discount codes and computes their monetary
// effect. A promotion that fails validation is a miss, not an error: the
// caller gets nil and applies no discount.
package promotion

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/ariefcatur/go-commerce-checkout.git/internal/commerce"
)

var hundred = decimal.NewFromInt(100)

// Store loads promotions and their usage ledger. Implementations exist for
// the pool (standalone validation) and for a checkout transaction, so the
// usage-limit re-check runs under the same row locks as the usage insert.
type Store interface {
	// FindByCode returns the promotion regardless of soft deletion;
	// eligibility decides. commerce.ErrNotFound when no such code.
	FindByCode(ctx context.Context, code string) (*commerce.Promotion, error)
	UsageCountByCustomer(ctx context.Context, promotionID, customerID string) (int, error)
	ListAutomatic(ctx context.Context) ([]commerce.Promotion, error)
}

// Eligible runs the ordered rejection sequence: inactive, soft-deleted,
// outside the activation window, global usage limit reached, per-customer
// limit reached, order below the minimum amount.
func Eligible(p *commerce.Promotion, orderAmount decimal.Decimal, perCustomerUsed int, now time.Time) bool {
	if p == nil || !p.IsActive || p.DeletedAt != nil {
		return false
	}
	if p.StartsAt != nil && now.Before(*p.StartsAt) {
		return false
	}
	if p.EndsAt != nil && now.After(*p.EndsAt) {
		return false
	}
	if p.UsageLimit != nil && p.UsageCount >= *p.UsageLimit {
		return false
	}
	if p.PerCustomerLimit != nil && perCustomerUsed >= *p.PerCustomerLimit {
		return false
	}
	if p.MinOrderAmount != nil && orderAmount.LessThan(*p.MinOrderAmount) {
		return false
	}
	return true
}

// CalculateDiscount computes the monetary effect of a promotion on a
// subtotal. FREE_SHIPPING and BUY_X_GET_Y are modeled but not computed
// here; they return zero with ErrUnsupportedPromotionType so callers can
// tell "no discount" from "not implemented".
func CalculateDiscount(p *commerce.Promotion, subtotal decimal.Decimal) (decimal.Decimal, error) {
	switch p.Type {
	case commerce.PromotionPercentage:
		return subtotal.Mul(p.Value).Div(hundred), nil
	case commerce.PromotionFixed:
		if p.Value.GreaterThan(subtotal) {
			return subtotal, nil
		}
		return p.Value, nil
	default:
		return decimal.Zero, commerce.ErrUnsupportedPromotionType
	}
}

type Service struct {
	Store Store
	Log   zerolog.Logger
}

func NewService(store Store, log zerolog.Logger) *Service {
	return &Service{Store: store, Log: log.With().Str("component", "promotion").Logger()}
}

// ValidateCode returns the promotion when every condition passes, nil when
// any check misses. Only infrastructure failures surface as errors.
func (s *Service) ValidateCode(ctx context.Context, code string, orderAmount decimal.Decimal, customerID *string) (*commerce.Promotion, error) {
	return ValidateCode(ctx, s.Store, code, orderAmount, customerID, time.Now().UTC())
}

// ValidateCode is the shared validation path; checkout runs it with a
// tx-scoped store so limit enforcement races with concurrent checkouts on
// the promotion row lock, not on stale reads.
func ValidateCode(ctx context.Context, store Store, code string, orderAmount decimal.Decimal, customerID *string, now time.Time) (*commerce.Promotion, error) {
	p, err := store.FindByCode(ctx, code)
	if errors.Is(err, commerce.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	used := 0
	if customerID != nil && p.PerCustomerLimit != nil {
		used, err = store.UsageCountByCustomer(ctx, p.ID, *customerID)
		if err != nil {
			return nil, err
		}
	}
	if !Eligible(p, orderAmount, used, now) {
		return nil, nil
	}
	return p, nil
}

// AutomaticPromotions returns every active automatic promotion whose window
// and minimum order amount match right now.
func (s *Service) AutomaticPromotions(ctx context.Context, orderAmount decimal.Decimal) ([]commerce.Promotion, error) {
	all, err := s.Store.ListAutomatic(ctx)
	if err != nil {
		return nil, err
	}
	now := time.Now().UTC()
	out := make([]commerce.Promotion, 0, len(all))
	for i := range all {
		if Eligible(&all[i], orderAmount, 0, now) {
			out = append(out, all[i])
		}
	}
	return out, nil
}

// Package checkout converts a mutable cart into an immutable order in one
// database transaction. Partial orders are never observable: any failure
// rolls back every write of the attempt.
package checkout

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/ariefcatur/go-commerce-checkout.git/internal/commerce"
	"github.com/ariefcatur/go-commerce-checkout.git/internal/promotion"
)

type Input struct {
	CartID           string
	ShippingAddress  commerce.Address
	BillingAddress   *commerce.Address // defaults to shipping when nil
	ShippingMethodID *string
	Email            *string
}

type Service struct {
	UoW     Beginner
	TaxRate decimal.Decimal
	Log     zerolog.Logger
}

func NewService(uow Beginner, taxRate decimal.Decimal, log zerolog.Logger) *Service {
	return &Service{UoW: uow, TaxRate: taxRate, Log: log.With().Str("component", "checkout").Logger()}
}

// Complete runs the full cart-to-order conversion. The discount code is
// revalidated inside the transaction under the promotion row lock, so a
// usage limit cannot be exceeded by concurrent checkouts. An invalid or
// missing code yields a zero discount and never aborts the checkout.
func (s *Service) Complete(ctx context.Context, in Input) (*commerce.Order, error) {
	var order *commerce.Order
	err := s.UoW.WithinTx(ctx, func(ctx context.Context, uow UnitOfWork) error {
		now := time.Now().UTC()

		cart, err := uow.Carts().GetWithItems(ctx, in.CartID)
		if err != nil {
			return err
		}
		if cart.Completed() {
			return commerce.ErrCartCompleted
		}
		if len(cart.Items) == 0 {
			return commerce.ErrEmptyCart
		}

		subtotal := cart.ItemSubtotal()

		discount := decimal.Zero
		var promo *commerce.Promotion
		if cart.DiscountCode != nil && *cart.DiscountCode != "" {
			promo, err = promotion.ValidateCode(ctx, uow.Promotions(), *cart.DiscountCode, subtotal, cart.CustomerID, now)
			if err != nil {
				return err
			}
			if promo != nil {
				d, derr := promotion.CalculateDiscount(promo, subtotal)
				if derr != nil {
					if !errors.Is(derr, commerce.ErrUnsupportedPromotionType) {
						return derr
					}
					// no monetary effect computed here; no usage recorded
					s.Log.Info().Str("cart_id", cart.ID).Str("type", string(promo.Type)).
						Msg("promotion type has no checkout discount")
					promo = nil
				} else {
					discount = d.Round(2)
				}
			}
		}

		tax := subtotal.Sub(discount).Mul(s.TaxRate).Round(2)

		shipping := decimal.Zero
		if in.ShippingMethodID != nil {
			shipping, err = uow.Shipping().MethodPrice(ctx, *in.ShippingMethodID)
			if err != nil {
				return err
			}
		}

		total := subtotal.Sub(discount).Add(tax).Add(shipping)

		shipAddr := in.ShippingAddress
		shipID, err := uow.Addresses().Create(ctx, &shipAddr)
		if err != nil {
			return err
		}
		billID := shipID
		if in.BillingAddress != nil {
			billAddr := *in.BillingAddress
			billID, err = uow.Addresses().Create(ctx, &billAddr)
			if err != nil {
				return err
			}
		}

		order = &commerce.Order{
			ID:                uuid.NewString(),
			CartID:            cart.ID,
			CustomerID:        cart.CustomerID,
			Email:             orderEmail(in.Email, cart.Email),
			CurrencyCode:      cart.CurrencyCode,
			Status:            commerce.OrderPending,
			PaymentStatus:     commerce.PaymentAwaiting,
			FulfillmentStatus: commerce.FulfillmentNotFulfilled,
			Subtotal:          subtotal,
			DiscountTotal:     discount,
			TaxTotal:          tax,
			ShippingTotal:     shipping,
			Total:             total,
			TaxRate:           s.TaxRate,
			ShippingAddressID: shipID,
			BillingAddressID:  billID,
			CreatedAt:         now,
			UpdatedAt:         now,
		}
		if promo != nil {
			order.PromotionID = &promo.ID
		}
		// order items are an exact copy of the cart's lines and prices
		order.Items = make([]commerce.OrderItem, 0, len(cart.Items))
		for _, it := range cart.Items {
			order.Items = append(order.Items, commerce.OrderItem{
				ID:        uuid.NewString(),
				OrderID:   order.ID,
				VariantID: it.VariantID,
				Title:     it.Title,
				Quantity:  it.Quantity,
				UnitPrice: it.UnitPrice,
				Total:     it.Total,
			})
		}
		if err := uow.Orders().Create(ctx, order); err != nil {
			return err
		}

		if promo != nil {
			usage := commerce.PromotionUsage{
				PromotionID: promo.ID,
				OrderID:     order.ID,
				CustomerID:  cart.CustomerID,
			}
			if err := uow.RecordPromotionUsage(ctx, usage); err != nil {
				return err
			}
		}

		totals := Totals{
			Subtotal:      subtotal,
			DiscountTotal: discount,
			TaxTotal:      tax,
			ShippingTotal: shipping,
			Total:         total,
		}
		return uow.Carts().MarkCompleted(ctx, cart.ID, totals, now)
	})
	if err != nil {
		return nil, err
	}

	s.Log.Info().Str("order_id", order.ID).Str("cart_id", in.CartID).
		Str("total", order.Total.String()).Msg("checkout completed")
	return order, nil
}

func orderEmail(override *string, cartEmail *string) string {
	if override != nil && *override != "" {
		return *override
	}
	if cartEmail != nil {
		return *cartEmail
	}
	return ""
}

package promotion

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/ariefcatur/go-commerce-checkout.git/internal/commerce"
)

type fakeStore struct {
	promos map[string]*commerce.Promotion
	usage  map[string]int // promotionID:customerID -> count
	auto   []commerce.Promotion
}

func (f *fakeStore) FindByCode(ctx context.Context, code string) (*commerce.Promotion, error) {
	p, ok := f.promos[code]
	if !ok {
		return nil, commerce.ErrNotFound
	}
	cp := *p
	return &cp, nil
}

func (f *fakeStore) UsageCountByCustomer(ctx context.Context, promotionID, customerID string) (int, error) {
	return f.usage[promotionID+":"+customerID], nil
}

func (f *fakeStore) ListAutomatic(ctx context.Context) ([]commerce.Promotion, error) {
	return f.auto, nil
}

func str(s string) *string           { return &s }
func num(n int) *int                 { return &n }
func dec(s string) decimal.Decimal   { d, _ := decimal.NewFromString(s); return d }
func decp(s string) *decimal.Decimal { d := dec(s); return &d }
func ts(t time.Time) *time.Time      { return &t }

func activePromo(code string) *commerce.Promotion {
	return &commerce.Promotion{
		ID:       "promo-" + code,
		Code:     str(code),
		Type:     commerce.PromotionPercentage,
		Value:    dec("10"),
		IsActive: true,
	}
}

func TestValidateCodeMissIsNotAnError(t *testing.T) {
	svc := NewService(&fakeStore{promos: map[string]*commerce.Promotion{}}, zerolog.Nop())
	p, err := svc.ValidateCode(context.Background(), "NOPE", dec("100"), nil)
	if err != nil {
		t.Fatalf("miss must not error: %v", err)
	}
	if p != nil {
		t.Fatal("unknown code must return nil")
	}
}

func TestValidateCodeRejections(t *testing.T) {
	now := time.Now().UTC()
	cases := []struct {
		name   string
		mutate func(*commerce.Promotion)
	}{
		{"inactive", func(p *commerce.Promotion) { p.IsActive = false }},
		{"soft deleted", func(p *commerce.Promotion) { p.DeletedAt = ts(now.Add(-time.Hour)) }},
		{"not started", func(p *commerce.Promotion) { p.StartsAt = ts(now.Add(time.Hour)) }},
		{"ended", func(p *commerce.Promotion) { p.EndsAt = ts(now.Add(-time.Hour)) }},
		{"usage limit reached", func(p *commerce.Promotion) { p.UsageLimit = num(5); p.UsageCount = 5 }},
		{"below min order amount", func(p *commerce.Promotion) { p.MinOrderAmount = decp("50") }},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			promo := activePromo("SALE")
			c.mutate(promo)
			svc := NewService(&fakeStore{promos: map[string]*commerce.Promotion{"SALE": promo}}, zerolog.Nop())
			p, err := svc.ValidateCode(context.Background(), "SALE", dec("25"), nil)
			if err != nil {
				t.Fatalf("rejection must not error: %v", err)
			}
			if p != nil {
				t.Fatal("expected nil (rejected)")
			}
		})
	}
}

func TestValidateCodeUsageLimitBoundary(t *testing.T) {
	// everything else passes, usageCount == usageLimit still rejects
	promo := activePromo("WELCOME10")
	promo.UsageLimit = num(100)
	promo.UsageCount = 100
	promo.StartsAt = ts(time.Now().UTC().Add(-time.Hour))
	promo.EndsAt = ts(time.Now().UTC().Add(time.Hour))
	svc := NewService(&fakeStore{promos: map[string]*commerce.Promotion{"WELCOME10": promo}}, zerolog.Nop())

	p, err := svc.ValidateCode(context.Background(), "WELCOME10", dec("1000"), nil)
	if err != nil || p != nil {
		t.Fatalf("exhausted code must miss: p=%v err=%v", p, err)
	}

	promo.UsageCount = 99
	p, err = svc.ValidateCode(context.Background(), "WELCOME10", dec("1000"), nil)
	if err != nil || p == nil {
		t.Fatalf("one use left must pass: p=%v err=%v", p, err)
	}
}

func TestValidateCodePerCustomerLimit(t *testing.T) {
	promo := activePromo("ONCE")
	promo.PerCustomerLimit = num(1)
	store := &fakeStore{
		promos: map[string]*commerce.Promotion{"ONCE": promo},
		usage:  map[string]int{"promo-ONCE:cust-1": 1},
	}
	svc := NewService(store, zerolog.Nop())

	if p, _ := svc.ValidateCode(context.Background(), "ONCE", dec("25"), str("cust-1")); p != nil {
		t.Fatal("customer at limit must miss")
	}
	if p, _ := svc.ValidateCode(context.Background(), "ONCE", dec("25"), str("cust-2")); p == nil {
		t.Fatal("fresh customer must pass")
	}
	// anonymous caller has no per-customer history to count
	if p, _ := svc.ValidateCode(context.Background(), "ONCE", dec("25"), nil); p == nil {
		t.Fatal("anonymous must pass")
	}
}

func TestCalculateDiscountPercentage(t *testing.T) {
	p := &commerce.Promotion{Type: commerce.PromotionPercentage, Value: dec("10")}
	d, err := CalculateDiscount(p, dec("25.00"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !d.Equal(dec("2.5")) {
		t.Fatalf("got %s, want 2.5", d)
	}
}

func TestCalculateDiscountFixedCapped(t *testing.T) {
	p := &commerce.Promotion{Type: commerce.PromotionFixed, Value: dec("30")}
	d, err := CalculateDiscount(p, dec("25.00"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !d.Equal(dec("25.00")) {
		t.Fatalf("fixed discount must never exceed subtotal: got %s", d)
	}

	p.Value = dec("5")
	d, _ = CalculateDiscount(p, dec("25.00"))
	if !d.Equal(dec("5")) {
		t.Fatalf("got %s, want 5", d)
	}
}

func TestCalculateDiscountUnsupportedTypes(t *testing.T) {
	for _, typ := range []commerce.PromotionType{commerce.PromotionFreeShipping, commerce.PromotionBuyXGetY} {
		p := &commerce.Promotion{Type: typ, Value: dec("1")}
		d, err := CalculateDiscount(p, dec("25.00"))
		if !errors.Is(err, commerce.ErrUnsupportedPromotionType) {
			t.Errorf("%s: expected ErrUnsupportedPromotionType, got %v", typ, err)
		}
		if !d.IsZero() {
			t.Errorf("%s: discount must be zero, got %s", typ, d)
		}
	}
}

func TestAutomaticPromotions(t *testing.T) {
	now := time.Now().UTC()
	store := &fakeStore{auto: []commerce.Promotion{
		{ID: "a", IsActive: true, IsAutomatic: true},
		{ID: "b", IsActive: true, IsAutomatic: true, MinOrderAmount: decp("100")},
		{ID: "c", IsActive: true, IsAutomatic: true, EndsAt: ts(now.Add(-time.Minute))},
	}}
	svc := NewService(store, zerolog.Nop())

	got, err := svc.AutomaticPromotions(context.Background(), dec("50"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(got) != 1 || got[0].ID != "a" {
		t.Fatalf("got %+v, want only promo a", got)
	}
}

package checkout

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/ariefcatur/go-commerce-checkout.git/internal/commerce"
	"github.com/ariefcatur/go-commerce-checkout.git/internal/promotion"
)

// memState is the datastore behind the in-memory unit of work. WithinTx
// clones it, runs the transaction against the clone and swaps it in on
// success, so rollback semantics match the real implementation.
type memState struct {
	carts   map[string]commerce.Cart
	orders  map[string]commerce.Order
	addrs   map[string]commerce.Address
	methods map[string]decimal.Decimal
	promos  map[string]commerce.Promotion // by code
	usages  []commerce.PromotionUsage
}

func newMemState() *memState {
	return &memState{
		carts:   map[string]commerce.Cart{},
		orders:  map[string]commerce.Order{},
		addrs:   map[string]commerce.Address{},
		methods: map[string]decimal.Decimal{},
		promos:  map[string]commerce.Promotion{},
	}
}

func (s *memState) clone() *memState {
	c := newMemState()
	for k, v := range s.carts {
		v.Items = append([]commerce.CartItem(nil), v.Items...)
		c.carts[k] = v
	}
	for k, v := range s.orders {
		v.Items = append([]commerce.OrderItem(nil), v.Items...)
		c.orders[k] = v
	}
	for k, v := range s.addrs {
		c.addrs[k] = v
	}
	for k, v := range s.methods {
		c.methods[k] = v
	}
	for k, v := range s.promos {
		c.promos[k] = v
	}
	c.usages = append([]commerce.PromotionUsage(nil), s.usages...)
	return c
}

type memBeginner struct {
	mu sync.Mutex
	st *memState
}

func (b *memBeginner) WithinTx(ctx context.Context, fn func(ctx context.Context, uow UnitOfWork) error) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	work := b.st.clone()
	if err := fn(ctx, &memUoW{st: work}); err != nil {
		return err
	}
	b.st = work
	return nil
}

type memUoW struct{ st *memState }

func (u *memUoW) Carts() CartStore            { return (*memCarts)(u) }
func (u *memUoW) Orders() OrderStore          { return (*memOrders)(u) }
func (u *memUoW) Addresses() AddressStore     { return (*memAddrs)(u) }
func (u *memUoW) Shipping() ShippingStore     { return (*memShipping)(u) }
func (u *memUoW) Promotions() promotion.Store { return (*memPromos)(u) }

func (u *memUoW) RecordPromotionUsage(ctx context.Context, usage commerce.PromotionUsage) error {
	u.st.usages = append(u.st.usages, usage)
	for code, p := range u.st.promos {
		if p.ID == usage.PromotionID {
			p.UsageCount++
			u.st.promos[code] = p
		}
	}
	return nil
}

type memCarts memUoW

func (m *memCarts) GetWithItems(ctx context.Context, cartID string) (*commerce.Cart, error) {
	c, ok := m.st.carts[cartID]
	if !ok {
		return nil, commerce.ErrNotFound
	}
	return &c, nil
}

func (m *memCarts) MarkCompleted(ctx context.Context, cartID string, t Totals, at time.Time) error {
	c := m.st.carts[cartID]
	c.Subtotal, c.DiscountTotal, c.TaxTotal = t.Subtotal, t.DiscountTotal, t.TaxTotal
	c.ShippingTotal, c.Total = t.ShippingTotal, t.Total
	c.CompletedAt = &at
	m.st.carts[cartID] = c
	return nil
}

type memOrders memUoW

func (m *memOrders) Create(ctx context.Context, o *commerce.Order) error {
	cp := *o
	cp.Items = append([]commerce.OrderItem(nil), o.Items...)
	m.st.orders[o.ID] = cp
	return nil
}

type memAddrs memUoW

func (m *memAddrs) Create(ctx context.Context, a *commerce.Address) (string, error) {
	if a.ID == "" {
		a.ID = uuid.NewString()
	}
	m.st.addrs[a.ID] = *a
	return a.ID, nil
}

type memShipping memUoW

func (m *memShipping) MethodPrice(ctx context.Context, id string) (decimal.Decimal, error) {
	p, ok := m.st.methods[id]
	if !ok {
		return decimal.Zero, commerce.ErrNotFound
	}
	return p, nil
}

type memPromos memUoW

func (m *memPromos) FindByCode(ctx context.Context, code string) (*commerce.Promotion, error) {
	p, ok := m.st.promos[code]
	if !ok {
		return nil, commerce.ErrNotFound
	}
	return &p, nil
}

func (m *memPromos) UsageCountByCustomer(ctx context.Context, promotionID, customerID string) (int, error) {
	n := 0
	for _, u := range m.st.usages {
		if u.PromotionID == promotionID && u.CustomerID != nil && *u.CustomerID == customerID {
			n++
		}
	}
	return n, nil
}

func (m *memPromos) ListAutomatic(ctx context.Context) ([]commerce.Promotion, error) {
	var out []commerce.Promotion
	for _, p := range m.st.promos {
		if p.IsAutomatic {
			out = append(out, p)
		}
	}
	return out, nil
}

func dec(s string) decimal.Decimal { d, _ := decimal.NewFromString(s); return d }
func str(s string) *string         { return &s }
func num(n int) *int               { return &n }

func cartFixture(id string, code *string) commerce.Cart {
	return commerce.Cart{
		ID:           id,
		CustomerID:   str("cust-1"),
		Email:        str("buyer@example.com"),
		CurrencyCode: "USD",
		DiscountCode: code,
		Items: []commerce.CartItem{
			{ID: "ci-1", CartID: id, VariantID: "var-1", Title: "Tee", Quantity: 2, UnitPrice: dec("10.00"), Total: dec("20.00")},
			{ID: "ci-2", CartID: id, VariantID: "var-2", Title: "Mug", Quantity: 1, UnitPrice: dec("5.00"), Total: dec("5.00")},
		},
	}
}

func welcome10() commerce.Promotion {
	return commerce.Promotion{
		ID:       "promo-w10",
		Code:     str("WELCOME10"),
		Type:     commerce.PromotionPercentage,
		Value:    dec("10"),
		IsActive: true,
	}
}

func newService(st *memState) (*Service, *memBeginner) {
	b := &memBeginner{st: st}
	return NewService(b, dec("0.10"), zerolog.Nop()), b
}

func shipInput(cartID string) Input {
	return Input{
		CartID: cartID,
		ShippingAddress: commerce.Address{
			FirstName: "Ada", LastName: "L", Line1: "1 Main St",
			City: "Springfield", PostalCode: "12345", CountryCode: "US",
		},
		ShippingMethodID: str("std"),
	}
}

func TestCompleteEndToEnd(t *testing.T) {
	st := newMemState()
	st.carts["cart-1"] = cartFixture("cart-1", str("WELCOME10"))
	st.promos["WELCOME10"] = welcome10()
	st.methods["std"] = dec("5.99")
	svc, b := newService(st)

	order, err := svc.Complete(context.Background(), shipInput("cart-1"))
	if err != nil {
		t.Fatalf("checkout failed: %v", err)
	}

	wants := []struct {
		name string
		got  decimal.Decimal
		want string
	}{
		{"subtotal", order.Subtotal, "25.00"},
		{"discount", order.DiscountTotal, "2.50"},
		{"tax", order.TaxTotal, "2.25"},
		{"shipping", order.ShippingTotal, "5.99"},
		{"total", order.Total, "30.74"},
	}
	for _, w := range wants {
		if !w.got.Equal(dec(w.want)) {
			t.Errorf("%s = %s, want %s", w.name, w.got, w.want)
		}
	}

	if order.Status != commerce.OrderPending || order.PaymentStatus != commerce.PaymentAwaiting {
		t.Errorf("fresh order must be PENDING/AWAITING, got %s/%s", order.Status, order.PaymentStatus)
	}
	if order.Email != "buyer@example.com" {
		t.Errorf("email = %q", order.Email)
	}
	if order.BillingAddressID != order.ShippingAddressID {
		t.Error("billing must default to shipping when omitted")
	}

	// order items are an exact copy of the cart's lines
	cart := st.carts["cart-1"]
	if len(order.Items) != len(cart.Items) {
		t.Fatalf("item count %d != %d", len(order.Items), len(cart.Items))
	}
	for i, it := range order.Items {
		ci := cart.Items[i]
		if it.VariantID != ci.VariantID || it.Quantity != ci.Quantity ||
			!it.UnitPrice.Equal(ci.UnitPrice) || !it.Total.Equal(ci.Total) {
			t.Errorf("item %d diverged from cart line: %+v vs %+v", i, it, ci)
		}
	}

	// committed state: cart stamped, usage recorded
	final := b.st
	if final.carts["cart-1"].CompletedAt == nil {
		t.Error("cart not marked completed")
	}
	if !final.carts["cart-1"].Total.Equal(dec("30.74")) {
		t.Errorf("cart total = %s", final.carts["cart-1"].Total)
	}
	if len(final.usages) != 1 || final.usages[0].OrderID != order.ID {
		t.Errorf("usage ledger: %+v", final.usages)
	}
	if final.promos["WELCOME10"].UsageCount != 1 {
		t.Errorf("usage count = %d", final.promos["WELCOME10"].UsageCount)
	}
}

func TestCompleteCartNotFound(t *testing.T) {
	svc, _ := newService(newMemState())
	_, err := svc.Complete(context.Background(), Input{CartID: "ghost"})
	if !errors.Is(err, commerce.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestCompleteAlreadyCompleted(t *testing.T) {
	st := newMemState()
	c := cartFixture("cart-1", nil)
	done := time.Now().UTC()
	c.CompletedAt = &done
	st.carts["cart-1"] = c
	svc, _ := newService(st)

	_, err := svc.Complete(context.Background(), Input{CartID: "cart-1"})
	if !errors.Is(err, commerce.ErrCartCompleted) {
		t.Fatalf("expected ErrCartCompleted, got %v", err)
	}
}

func TestCompleteEmptyCart(t *testing.T) {
	st := newMemState()
	c := cartFixture("cart-1", nil)
	c.Items = nil
	st.carts["cart-1"] = c
	svc, _ := newService(st)

	_, err := svc.Complete(context.Background(), Input{CartID: "cart-1"})
	if !errors.Is(err, commerce.ErrEmptyCart) {
		t.Fatalf("expected ErrEmptyCart, got %v", err)
	}
}

func TestInvalidCodeNeverAbortsCheckout(t *testing.T) {
	st := newMemState()
	st.carts["cart-1"] = cartFixture("cart-1", str("DOES-NOT-EXIST"))
	svc, b := newService(st)

	in := shipInput("cart-1")
	in.ShippingMethodID = nil
	order, err := svc.Complete(context.Background(), in)
	if err != nil {
		t.Fatalf("invalid code must not abort: %v", err)
	}
	if !order.DiscountTotal.IsZero() {
		t.Errorf("discount = %s, want 0", order.DiscountTotal)
	}
	// 25.00 + 10% tax, no shipping
	if !order.Total.Equal(dec("27.50")) {
		t.Errorf("total = %s, want 27.50", order.Total)
	}
	if len(b.st.usages) != 0 {
		t.Errorf("no usage must be recorded: %+v", b.st.usages)
	}
}

func TestUnsupportedPromotionTypeYieldsZeroDiscount(t *testing.T) {
	st := newMemState()
	st.carts["cart-1"] = cartFixture("cart-1", str("FREESHIP"))
	st.promos["FREESHIP"] = commerce.Promotion{
		ID: "promo-fs", Code: str("FREESHIP"),
		Type: commerce.PromotionFreeShipping, Value: dec("1"), IsActive: true,
	}
	svc, b := newService(st)

	in := shipInput("cart-1")
	in.ShippingMethodID = nil
	order, err := svc.Complete(context.Background(), in)
	if err != nil {
		t.Fatalf("unsupported type must not abort: %v", err)
	}
	if !order.DiscountTotal.IsZero() {
		t.Errorf("discount = %s, want 0", order.DiscountTotal)
	}
	if order.PromotionID != nil {
		t.Error("promotion without monetary effect must not be attached")
	}
	if len(b.st.usages) != 0 {
		t.Errorf("no usage for unsupported type: %+v", b.st.usages)
	}
}

func TestFailureRollsBackEverything(t *testing.T) {
	st := newMemState()
	st.carts["cart-1"] = cartFixture("cart-1", str("WELCOME10"))
	st.promos["WELCOME10"] = welcome10()
	// shipping method deliberately absent
	svc, b := newService(st)

	_, err := svc.Complete(context.Background(), shipInput("cart-1"))
	if !errors.Is(err, commerce.ErrNotFound) {
		t.Fatalf("expected ErrNotFound for shipping method, got %v", err)
	}

	final := b.st
	if len(final.orders) != 0 {
		t.Error("no order may survive a failed checkout")
	}
	if len(final.addrs) != 0 {
		t.Error("no address may survive a failed checkout")
	}
	if final.carts["cart-1"].CompletedAt != nil {
		t.Error("cart must stay open after rollback")
	}
	if len(final.usages) != 0 || final.promos["WELCOME10"].UsageCount != 0 {
		t.Error("promotion usage must roll back")
	}
}

func TestSeparateBillingAddress(t *testing.T) {
	st := newMemState()
	st.carts["cart-1"] = cartFixture("cart-1", nil)
	svc, b := newService(st)

	in := shipInput("cart-1")
	in.ShippingMethodID = nil
	in.BillingAddress = &commerce.Address{
		FirstName: "Billy", Line1: "9 Invoice Rd", City: "Ledgerton",
		PostalCode: "99999", CountryCode: "US",
	}
	order, err := svc.Complete(context.Background(), in)
	if err != nil {
		t.Fatalf("checkout failed: %v", err)
	}
	if order.BillingAddressID == order.ShippingAddressID {
		t.Error("explicit billing address must get its own row")
	}
	if len(b.st.addrs) != 2 {
		t.Errorf("address rows = %d, want 2", len(b.st.addrs))
	}
}

// Two checkouts race the same single-use code: the in-tx revalidation plus
// the usage append must let exactly one order carry the discount.
func TestUsageLimitHoldsAcrossCheckouts(t *testing.T) {
	st := newMemState()
	c1 := cartFixture("cart-1", str("ONESHOT"))
	c2 := cartFixture("cart-2", str("ONESHOT"))
	c2.CustomerID = str("cust-2")
	st.carts["cart-1"] = c1
	st.carts["cart-2"] = c2
	promo := welcome10()
	promo.Code = str("ONESHOT")
	promo.UsageLimit = num(1)
	st.promos["ONESHOT"] = promo
	svc, b := newService(st)

	var wg sync.WaitGroup
	results := make([]*commerce.Order, 2)
	for i, id := range []string{"cart-1", "cart-2"} {
		wg.Add(1)
		go func(i int, id string) {
			defer wg.Done()
			in := shipInput(id)
			in.ShippingMethodID = nil
			o, err := svc.Complete(context.Background(), in)
			if err != nil {
				t.Errorf("checkout %s failed: %v", id, err)
				return
			}
			results[i] = o
		}(i, id)
	}
	wg.Wait()

	discounted := 0
	for _, o := range results {
		if o != nil && o.DiscountTotal.GreaterThan(decimal.Zero) {
			discounted++
		}
	}
	if discounted != 1 {
		t.Fatalf("exactly one checkout may use the code, got %d", discounted)
	}
	if len(b.st.usages) != 1 {
		t.Fatalf("usage ledger rows = %d, want 1", len(b.st.usages))
	}
	if b.st.promos["ONESHOT"].UsageCount != 1 {
		t.Fatalf("usage count = %d, want 1", b.st.promos["ONESHOT"].UsageCount)
	}
}

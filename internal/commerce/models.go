package commerce

import (
	"time"

	"github.com/shopspring/decimal"
)

// InventoryLevel is the stock counter row for one (variant, location) pair.
// available = onHand - reserved at every committed state.
type InventoryLevel struct {
	VariantID         string    `json:"variant_id"`
	StockLocationID   string    `json:"stock_location_id"`
	OnHand            int       `json:"on_hand"`
	Reserved          int       `json:"reserved"`
	Available         int       `json:"available"`
	LowStockThreshold int       `json:"low_stock_threshold"`
	UpdatedAt         time.Time `json:"updated_at"`
}

// CanReserve reports whether qty units can be held right now.
func (l *InventoryLevel) CanReserve(qty int) bool {
	return qty > 0 && l.Available >= qty
}

// ApplyReserve moves qty from available to reserved.
func (l *InventoryLevel) ApplyReserve(qty int) error {
	if !l.CanReserve(qty) {
		return ErrInsufficientStock
	}
	l.Available -= qty
	l.Reserved += qty
	return nil
}

// ApplyRelease returns a held qty to available.
func (l *InventoryLevel) ApplyRelease(qty int) {
	l.Available += qty
	l.Reserved -= qty
}

// ApplyConfirm converts a held qty into a permanent deduction.
func (l *InventoryLevel) ApplyConfirm(qty int) {
	l.OnHand -= qty
	l.Reserved -= qty
}

// LowStock reports whether available has dropped to or below the threshold.
func (l *InventoryLevel) LowStock() bool {
	return l.LowStockThreshold > 0 && l.Available <= l.LowStockThreshold
}

// StockReservation is a time-bounded claim against one inventory row.
// ReleasedAt is stamped by both release (stock returned) and confirm
// (stock deducted); once set the reservation is terminal.
type StockReservation struct {
	ID              string     `json:"id"`
	VariantID       string     `json:"variant_id"`
	StockLocationID string     `json:"stock_location_id"`
	Quantity        int        `json:"qty"`
	OrderID         *string    `json:"order_id,omitempty"`
	ExpiresAt       time.Time  `json:"expires_at"`
	ReleasedAt      *time.Time `json:"released_at,omitempty"`
	CreatedAt       time.Time  `json:"created_at"`
}

func (r *StockReservation) Held() bool { return r.ReleasedAt == nil }

func (r *StockReservation) Expired(now time.Time) bool {
	return r.Held() && now.After(r.ExpiresAt)
}

type Cart struct {
	ID            string          `json:"id"`
	CustomerID    *string         `json:"customer_id,omitempty"`
	Email         *string         `json:"email,omitempty"`
	CurrencyCode  string          `json:"currency_code"`
	DiscountCode  *string         `json:"discount_code,omitempty"`
	Subtotal      decimal.Decimal `json:"subtotal"`
	DiscountTotal decimal.Decimal `json:"discount_total"`
	TaxTotal      decimal.Decimal `json:"tax_total"`
	ShippingTotal decimal.Decimal `json:"shipping_total"`
	Total         decimal.Decimal `json:"total"`
	CompletedAt   *time.Time      `json:"completed_at,omitempty"`
	Items         []CartItem      `json:"items"`
	CreatedAt     time.Time       `json:"created_at"`
	UpdatedAt     time.Time       `json:"updated_at"`
}

func (c *Cart) Completed() bool { return c.CompletedAt != nil }

// ItemSubtotal sums the stored line totals.
func (c *Cart) ItemSubtotal() decimal.Decimal {
	sum := decimal.Zero
	for _, it := range c.Items {
		sum = sum.Add(it.Total)
	}
	return sum
}

type CartItem struct {
	ID        string          `json:"id"`
	CartID    string          `json:"cart_id"`
	VariantID string          `json:"variant_id"`
	Title     string          `json:"title"`
	Quantity  int             `json:"qty"`
	UnitPrice decimal.Decimal `json:"unit_price"`
	Total     decimal.Decimal `json:"total"`
}

type PriceListStatus string

const (
	PriceListDraft  PriceListStatus = "DRAFT"
	PriceListActive PriceListStatus = "ACTIVE"
)

type PriceList struct {
	ID               string          `json:"id"`
	Name             string          `json:"name"`
	Status           PriceListStatus `json:"status"`
	StartsAt         *time.Time      `json:"starts_at,omitempty"`
	EndsAt           *time.Time      `json:"ends_at,omitempty"`
	CustomerGroupIDs []string        `json:"customer_group_ids,omitempty"`
}

type PriceListPrice struct {
	PriceListID  string          `json:"price_list_id"`
	VariantID    string          `json:"variant_id"`
	CurrencyCode string          `json:"currency_code"`
	MinQuantity  int             `json:"min_quantity"`
	Amount       decimal.Decimal `json:"amount"`
}

type PromotionType string

const (
	PromotionPercentage   PromotionType = "PERCENTAGE"
	PromotionFixed        PromotionType = "FIXED"
	PromotionFreeShipping PromotionType = "FREE_SHIPPING"
	PromotionBuyXGetY     PromotionType = "BUY_X_GET_Y"
)

type Promotion struct {
	ID               string           `json:"id"`
	Code             *string          `json:"code,omitempty"`
	Type             PromotionType    `json:"type"`
	Value            decimal.Decimal  `json:"value"`
	UsageLimit       *int             `json:"usage_limit,omitempty"`
	UsageCount       int              `json:"usage_count"`
	PerCustomerLimit *int             `json:"per_customer_limit,omitempty"`
	MinOrderAmount   *decimal.Decimal `json:"min_order_amount,omitempty"`
	StartsAt         *time.Time       `json:"starts_at,omitempty"`
	EndsAt           *time.Time       `json:"ends_at,omitempty"`
	IsActive         bool             `json:"is_active"`
	IsAutomatic      bool             `json:"is_automatic"`
	DeletedAt        *time.Time       `json:"-"`
}

// PromotionUsage is an append-only ledger row backing usage limits.
type PromotionUsage struct {
	PromotionID string    `json:"promotion_id"`
	OrderID     string    `json:"order_id"`
	CustomerID  *string   `json:"customer_id,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
}

type Order struct {
	ID                string            `json:"id"`
	CartID            string            `json:"cart_id"`
	CustomerID        *string           `json:"customer_id,omitempty"`
	Email             string            `json:"email"`
	CurrencyCode      string            `json:"currency_code"`
	Status            OrderStatus       `json:"status"`
	PaymentStatus     PaymentStatus     `json:"payment_status"`
	FulfillmentStatus FulfillmentStatus `json:"fulfillment_status"`
	Subtotal          decimal.Decimal   `json:"subtotal"`
	DiscountTotal     decimal.Decimal   `json:"discount_total"`
	TaxTotal          decimal.Decimal   `json:"tax_total"`
	ShippingTotal     decimal.Decimal   `json:"shipping_total"`
	Total             decimal.Decimal   `json:"total"`
	TaxRate           decimal.Decimal   `json:"tax_rate"`
	PromotionID       *string           `json:"promotion_id,omitempty"`
	ShippingAddressID string            `json:"shipping_address_id"`
	BillingAddressID  string            `json:"billing_address_id"`
	CanceledAt        *time.Time        `json:"canceled_at,omitempty"`
	CreatedAt         time.Time         `json:"created_at"`
	UpdatedAt         time.Time         `json:"updated_at"`
	Items             []OrderItem       `json:"items"`
}

type OrderItem struct {
	ID        string          `json:"id"`
	OrderID   string          `json:"order_id"`
	VariantID string          `json:"variant_id"`
	Title     string          `json:"title"`
	Quantity  int             `json:"qty"`
	UnitPrice decimal.Decimal `json:"unit_price"`
	Total     decimal.Decimal `json:"total"`
}

type Address struct {
	ID          string    `json:"id,omitempty"`
	FirstName   string    `json:"first_name"`
	LastName    string    `json:"last_name"`
	Line1       string    `json:"line1"`
	Line2       string    `json:"line2,omitempty"`
	City        string    `json:"city"`
	Province    string    `json:"province,omitempty"`
	PostalCode  string    `json:"postal_code"`
	CountryCode string    `json:"country_code"`
	Phone       string    `json:"phone,omitempty"`
	CreatedAt   time.Time `json:"created_at,omitempty"`
}

type ShippingMethod struct {
	ID    string          `json:"id"`
	Name  string          `json:"name"`
	Price decimal.Decimal `json:"price"`
}

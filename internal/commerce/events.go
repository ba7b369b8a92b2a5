package commerce

import (
	"encoding/json"
	"time"
)

const (
	EventCheckoutCompleted = "CheckoutCompleted"
	EventStockReserved     = "StockReserved"
	EventStockReleased     = "StockReleased"
	EventOrderCancelled    = "OrderCancelled"
)

type Envelope struct {
	EventID       string          `json:"event_id"`
	EventType     string          `json:"event_type"`
	EventVersion  int             `json:"event_version"`
	OccurredAt    time.Time       `json:"occurred_at"`
	Producer      string          `json:"producer"`
	TraceID       string          `json:"trace_id,omitempty"`
	CorrelationID string          `json:"correlation_id,omitempty"`
	Payload       json.RawMessage `json:"payload"`
}

type CheckoutCompletedPayload struct {
	OrderID       string `json:"order_id"`
	CartID        string `json:"cart_id"`
	CustomerID    string `json:"customer_id,omitempty"`
	CurrencyCode  string `json:"currency_code"`
	Subtotal      string `json:"subtotal"`
	DiscountTotal string `json:"discount_total"`
	TaxTotal      string `json:"tax_total"`
	ShippingTotal string `json:"shipping_total"`
	Total         string `json:"total"`
}

type StockReservedPayload struct {
	ReservationID   string `json:"reservation_id"`
	VariantID       string `json:"variant_id"`
	StockLocationID string `json:"stock_location_id"`
	Quantity        int    `json:"qty"`
	OrderID         string `json:"order_id,omitempty"`
	ExpiresAt       string `json:"expires_at"`
}

type StockReleasedPayload struct {
	ReservationID   string `json:"reservation_id,omitempty"`
	VariantID       string `json:"variant_id,omitempty"`
	StockLocationID string `json:"stock_location_id,omitempty"`
	Quantity        int    `json:"qty,omitempty"`
	Reason          string `json:"reason"` // MANUAL | EXPIRED | ORDER_CANCELLED
	Confirmed       bool   `json:"confirmed,omitempty"`
}

type OrderCancelledPayload struct {
	OrderID    string `json:"order_id"`
	CanceledAt string `json:"canceled_at"`
}

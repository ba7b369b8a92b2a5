package httpx

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	kafkago "github.com/segmentio/kafka-go"
	"github.com/shopspring/decimal"

	"github.com/ariefcatur/go-commerce-checkout.git/internal/checkout"
	"github.com/ariefcatur/go-commerce-checkout.git/internal/commerce"
	kafkax "github.com/ariefcatur/go-commerce-checkout.git/internal/kafka"
	"github.com/ariefcatur/go-commerce-checkout.git/internal/metrics"
	"github.com/ariefcatur/go-commerce-checkout.git/internal/orders"
	"github.com/ariefcatur/go-commerce-checkout.git/internal/pricing"
	"github.com/ariefcatur/go-commerce-checkout.git/internal/promotion"
	"github.com/ariefcatur/go-commerce-checkout.git/internal/redisx"
	"github.com/ariefcatur/go-commerce-checkout.git/internal/stock"
	"github.com/ariefcatur/go-commerce-checkout.git/internal/sweeper"
)

type CommerceHandler struct {
	Checkout *checkout.Service
	Pricing  *pricing.Resolver
	Promos   *promotion.Service
	Orders   *orders.Service
	Ledger   *stock.Ledger
	Sweeper  *sweeper.Sweeper
	Redis    *redis.Client
	Metrics  *metrics.Metrics
	Service  string

	CheckoutProducer *kafkax.Producer // commerce.checkout.completed
	CancelProducer   *kafkax.Producer // commerce.order.cancelled
	ReserveProducer  *kafkax.Producer // commerce.stock.reserved
	ReleaseProducer  *kafkax.Producer // commerce.stock.released
}

func (h *CommerceHandler) Register(r *chi.Mux) {
	r.Post("/carts/{id}/complete", h.completeCheckout)
	r.Get("/pricing", h.resolvePrice)
	r.Post("/promotions/validate", h.validatePromotion)
	r.Get("/promotions/automatic", h.automaticPromotions)
	r.Get("/orders/{id}", h.getOrder)
	r.Post("/orders/{id}/status", h.transitionOrder)
	r.Post("/stock/reservations", h.reserveStock)
	r.Post("/stock/reservations/{id}/release", h.releaseStock)
	r.Post("/stock/reservations/{id}/confirm", h.confirmStock)
	r.Post("/stock/sweep", h.sweepNow)
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func writeErr(w http.ResponseWriter, err error) {
	code := http.StatusInternalServerError
	switch {
	case errors.Is(err, commerce.ErrNotFound):
		code = http.StatusNotFound
	case errors.Is(err, commerce.ErrCartCompleted),
		errors.Is(err, commerce.ErrAlreadyReleased),
		errors.Is(err, commerce.ErrInvalidTransition):
		code = http.StatusConflict
	case errors.Is(err, commerce.ErrEmptyCart),
		errors.Is(err, commerce.ErrInsufficientStock):
		code = http.StatusUnprocessableEntity
	}
	writeJSON(w, code, map[string]string{"error": err.Error()})
}

type CompleteCheckoutReq struct {
	ShippingAddress  commerce.Address  `json:"shipping_address"`
	BillingAddress   *commerce.Address `json:"billing_address,omitempty"`
	ShippingMethodID *string           `json:"shipping_method_id,omitempty"`
	Email            *string           `json:"email,omitempty"`
}

func (h *CommerceHandler) completeCheckout(w http.ResponseWriter, r *http.Request) {
	cartID := chi.URLParam(r, "id")
	var req CompleteCheckoutReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid json"})
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 10*time.Second)
	defer cancel()

	// fast-path idempotency: a completed cart maps to one order id
	idemKey := fmt.Sprintf(redisx.KeyIdemCheckout, cartID)
	if orderID, err := h.Redis.Get(ctx, idemKey).Result(); err == nil && orderID != "" {
		if o, err := h.Orders.Get(ctx, orderID); err == nil {
			writeJSON(w, http.StatusOK, o)
			return
		}
	}

	start := time.Now()
	order, err := h.Checkout.Complete(ctx, checkout.Input{
		CartID:           cartID,
		ShippingAddress:  req.ShippingAddress,
		BillingAddress:   req.BillingAddress,
		ShippingMethodID: req.ShippingMethodID,
		Email:            req.Email,
	})
	h.Metrics.CheckoutDurationMS.Observe(float64(time.Since(start).Milliseconds()))
	if err != nil {
		h.Metrics.CheckoutsTotal.WithLabelValues("failed").Inc()
		writeErr(w, err)
		return
	}
	h.Metrics.CheckoutsTotal.WithLabelValues("completed").Inc()

	_ = h.Redis.Set(ctx, idemKey, order.ID, redisx.TTLIdempotency).Err()

	h.publish(h.CheckoutProducer, commerce.EventCheckoutCompleted, order.ID,
		r.Header.Get("X-Request-Id"), commerce.CheckoutCompletedPayload{
			OrderID:       order.ID,
			CartID:        order.CartID,
			CustomerID:    deref(order.CustomerID),
			CurrencyCode:  order.CurrencyCode,
			Subtotal:      order.Subtotal.String(),
			DiscountTotal: order.DiscountTotal.String(),
			TaxTotal:      order.TaxTotal.String(),
			ShippingTotal: order.ShippingTotal.String(),
			Total:         order.Total.String(),
		})

	writeJSON(w, http.StatusCreated, order)
}

func (h *CommerceHandler) resolvePrice(w http.ResponseWriter, r *http.Request) {
	q := pricing.Query{
		VariantID:    r.URL.Query().Get("variant_id"),
		CurrencyCode: r.URL.Query().Get("currency_code"),
		Quantity:     1,
	}
	if v := r.URL.Query().Get("qty"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid qty"})
			return
		}
		q.Quantity = n
	}
	if g := r.URL.Query().Get("customer_group_id"); g != "" {
		q.CustomerGroupID = &g
	}
	if q.VariantID == "" || q.CurrencyCode == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "missing fields"})
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	res, err := h.Pricing.Resolve(ctx, q)
	if err != nil {
		writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

type ValidatePromotionReq struct {
	Code        string          `json:"code"`
	OrderAmount decimal.Decimal `json:"order_amount"`
	CustomerID  *string         `json:"customer_id,omitempty"`
}

func (h *CommerceHandler) validatePromotion(w http.ResponseWriter, r *http.Request) {
	var req ValidatePromotionReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Code == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request"})
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	promo, err := h.Promos.ValidateCode(ctx, req.Code, req.OrderAmount, req.CustomerID)
	if err != nil {
		writeErr(w, err)
		return
	}
	if promo == nil {
		// a miss is data, not an error
		writeJSON(w, http.StatusOK, map[string]any{"valid": false})
		return
	}
	discount, derr := promotion.CalculateDiscount(promo, req.OrderAmount)
	resp := map[string]any{"valid": true, "promotion": promo, "discount": discount}
	if derr != nil {
		resp["discount_note"] = derr.Error()
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *CommerceHandler) automaticPromotions(w http.ResponseWriter, r *http.Request) {
	amount := decimal.Zero
	if v := r.URL.Query().Get("order_amount"); v != "" {
		d, err := decimal.NewFromString(v)
		if err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid order_amount"})
			return
		}
		amount = d
	}

	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	promos, err := h.Promos.AutomaticPromotions(ctx, amount)
	if err != nil {
		writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, promos)
}

func (h *CommerceHandler) getOrder(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	o, err := h.Orders.Get(ctx, chi.URLParam(r, "id"))
	if err != nil {
		writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, o)
}

type TransitionReq struct {
	Status commerce.OrderStatus `json:"status"`
}

func (h *CommerceHandler) transitionOrder(w http.ResponseWriter, r *http.Request) {
	orderID := chi.URLParam(r, "id")
	var req TransitionReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Status == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request"})
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	o, err := h.Orders.Transition(ctx, orderID, req.Status)
	if err != nil {
		writeErr(w, err)
		return
	}

	if req.Status == commerce.OrderCancelled {
		h.publish(h.CancelProducer, commerce.EventOrderCancelled, orderID,
			r.Header.Get("X-Request-Id"), commerce.OrderCancelledPayload{
				OrderID:    orderID,
				CanceledAt: o.CanceledAt.UTC().Format(time.RFC3339),
			})
	}
	writeJSON(w, http.StatusOK, map[string]any{"order_id": orderID, "status": o.Status})
}

type ReserveReq struct {
	VariantID       string  `json:"variant_id"`
	StockLocationID string  `json:"stock_location_id"`
	Qty             int     `json:"qty"`
	OrderID         *string `json:"order_id,omitempty"`
}

func (h *CommerceHandler) reserveStock(w http.ResponseWriter, r *http.Request) {
	var req ReserveReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid json"})
		return
	}
	if req.VariantID == "" || req.StockLocationID == "" || req.Qty <= 0 {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "missing fields"})
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	res, err := h.Ledger.Reserve(ctx, req.VariantID, req.StockLocationID, req.Qty, req.OrderID)
	if err != nil {
		h.Metrics.ReservationsTotal.WithLabelValues("reserve", "failed").Inc()
		writeErr(w, err)
		return
	}
	h.Metrics.ReservationsTotal.WithLabelValues("reserve", "ok").Inc()

	h.publish(h.ReserveProducer, commerce.EventStockReserved, deref(res.OrderID),
		r.Header.Get("X-Request-Id"), commerce.StockReservedPayload{
			ReservationID:   res.ID,
			VariantID:       res.VariantID,
			StockLocationID: res.StockLocationID,
			Quantity:        res.Quantity,
			OrderID:         deref(res.OrderID),
			ExpiresAt:       res.ExpiresAt.Format(time.RFC3339),
		})
	writeJSON(w, http.StatusCreated, res)
}

func (h *CommerceHandler) releaseStock(w http.ResponseWriter, r *http.Request) {
	h.settleStock(w, r, false)
}

func (h *CommerceHandler) confirmStock(w http.ResponseWriter, r *http.Request) {
	h.settleStock(w, r, true)
}

func (h *CommerceHandler) settleStock(w http.ResponseWriter, r *http.Request, confirm bool) {
	id := chi.URLParam(r, "id")
	op := "release"
	if confirm {
		op = "confirm"
	}

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	var res *commerce.StockReservation
	var err error
	if confirm {
		res, err = h.Ledger.Confirm(ctx, id)
	} else {
		res, err = h.Ledger.Release(ctx, id)
	}
	if err != nil {
		h.Metrics.ReservationsTotal.WithLabelValues(op, "failed").Inc()
		writeErr(w, err)
		return
	}
	h.Metrics.ReservationsTotal.WithLabelValues(op, "ok").Inc()

	h.publish(h.ReleaseProducer, commerce.EventStockReleased, deref(res.OrderID),
		r.Header.Get("X-Request-Id"), commerce.StockReleasedPayload{
			ReservationID:   res.ID,
			VariantID:       res.VariantID,
			StockLocationID: res.StockLocationID,
			Quantity:        res.Quantity,
			Reason:          "MANUAL",
			Confirmed:       confirm,
		})
	writeJSON(w, http.StatusOK, res)
}

func (h *CommerceHandler) sweepNow(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 30*time.Second)
	defer cancel()

	released, err := h.Sweeper.RunOnce(ctx)
	if err != nil {
		writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]int{"released": released})
}

func (h *CommerceHandler) publish(p *kafkax.Producer, eventType, correlationID, traceID string, payload any) {
	if p == nil {
		return
	}
	ev := commerce.Envelope{
		EventID:       uuid.NewString(),
		EventType:     eventType,
		EventVersion:  1,
		OccurredAt:    time.Now().UTC(),
		Producer:      h.Service,
		TraceID:       traceID,
		CorrelationID: correlationID,
		Payload:       kafkax.MustMarshal(payload),
	}
	key := correlationID
	if key == "" {
		key = ev.EventID
	}
	p.Publish(commerce.PartitionKey(key), kafkax.MustMarshal(ev),
		kafkago.Header{Key: "x-event-type", Value: []byte(eventType)},
		kafkago.Header{Key: "x-event-version", Value: []byte("1")},
	)
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

package commerce

type OrderStatus string

const (
	OrderPending    OrderStatus = "PENDING"
	OrderConfirmed  OrderStatus = "CONFIRMED"
	OrderProcessing OrderStatus = "PROCESSING"
	OrderShipped    OrderStatus = "SHIPPED"
	OrderDelivered  OrderStatus = "DELIVERED"
	OrderCancelled  OrderStatus = "CANCELLED"
)

type PaymentStatus string

const (
	PaymentAwaiting PaymentStatus = "AWAITING"
	PaymentCaptured PaymentStatus = "CAPTURED"
	PaymentRefunded PaymentStatus = "REFUNDED"
)

type FulfillmentStatus string

const (
	FulfillmentNotFulfilled FulfillmentStatus = "NOT_FULFILLED"
	FulfillmentShipped      FulfillmentStatus = "SHIPPED"
	FulfillmentDelivered    FulfillmentStatus = "DELIVERED"
)

// Explicit transition table; CANCELLED is reachable from every
// non-terminal state, DELIVERED and CANCELLED are terminal.
var validNext = map[OrderStatus]map[OrderStatus]bool{
	OrderPending:    {OrderConfirmed: true, OrderCancelled: true},
	OrderConfirmed:  {OrderProcessing: true, OrderCancelled: true},
	OrderProcessing: {OrderShipped: true, OrderCancelled: true},
	OrderShipped:    {OrderDelivered: true, OrderCancelled: true},
	OrderDelivered:  {},
	OrderCancelled:  {},
}

func CanTransition(from, to OrderStatus) bool {
	return validNext[from][to]
}

func (s OrderStatus) Terminal() bool {
	return len(validNext[s]) == 0
}

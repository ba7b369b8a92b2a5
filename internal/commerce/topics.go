package commerce

const (
	TopicCheckoutCompleted = "commerce.checkout.completed"
	TopicStockReserved     = "commerce.stock.reserved"
	TopicStockReleased     = "commerce.stock.released"
	TopicOrderCancelled    = "commerce.order.cancelled"
)

// Partition key = order_id so all events of one order keep their order.
func PartitionKey(id string) []byte { return []byte(id) }

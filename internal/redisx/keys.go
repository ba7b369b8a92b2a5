package redisx

import "time"

const (
	// Resolved price cache: price:{variant_id}:{qty}:{currency}:{group} -> json
	KeyPrice = "price:%s:%d:%s:%s"

	// Checkout idempotency fast-path: idem:checkout:{cart_id} -> order_id
	KeyIdemCheckout = "idem:checkout:%s"

	// Dedup event processing: dedup:{service}:{event_id}
	KeyDedup = "dedup:%s:%s"
)

var (
	// Price-list membership changes rarely relative to request volume,
	// so a short TTL keeps staleness bounded without hammering Postgres.
	TTLPrice = 60 * time.Second

	TTLIdempotency = 24 * time.Hour
	TTLDedup       = 48 * time.Hour
)

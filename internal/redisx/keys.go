package redisx

import "time"

const (
	// Idempotency create order: idem:order:create:{user_id}:{key} -> order_id ("pending" while in flight)
	KeyIdemOrderCreate = "idem:order:create:%d:%s"

	// Cache status order: order_status:{order_id} -> {"status": "...", "updated_at": "..."}
	KeyOrderStatus = "order_status:%d"

	// Dedup event processing: dedup:{service}:{id} (id = event_id)
	KeyDedup = "dedup:%s:%s"

	// Low stock alert throttle: stock_low:{product_id}
	KeyStockLow = "stock_low:%d"
)

var (
	TTLIdempotency  = 24 * time.Hour
	TTLIdemInFlight = 30 * time.Second
	TTLStatusCache  = 5 * time.Minute
	TTLDedup        = 48 * time.Hour
	TTLStockLow     = time.Hour
)

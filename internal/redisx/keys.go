package redisx

import (
	"fmt"
	"time"
)

const (
	// Idempotency create order: idem:order:create:{buyer_id}:{key} -> order_id,
	// or "in-flight" while the create runs
	KeyIdemOrderCreate = "idem:order:create:%s:%s"

	// Cache order: order:{order_id} -> hash {v: order version, doc: JSON order}
	KeyOrder = "order:%s"

	// Dedup event processing: dedup:{service}:{event_id}
	KeyDedup = "dedup:%s:%s"
)

var (
	TTLIdempotency = 24 * time.Hour
	// a crashed request frees its key after this
	TTLIdempotencyClaim = 30 * time.Second
	TTLOrderCache       = 5 * time.Minute
	TTLDedup            = 48 * time.Hour
)

func IdemOrderCreateKey(buyerID, key string) string {
	return fmt.Sprintf(KeyIdemOrderCreate, buyerID, key)
}

func OrderKey(orderID string) string { return fmt.Sprintf(KeyOrder, orderID) }

func DedupKey(service, eventID string) string { return fmt.Sprintf(KeyDedup, service, eventID) }

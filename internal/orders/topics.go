package orders

const (
	TopicOrderCreated       = "order.created"
	TopicOrderStatusChanged = "order.status.changed"
	TopicOrderCancelled     = "order.cancelled"
)

// AllTopics dipakai consumer audit (satu group, semua topic order).
var AllTopics = []string{TopicOrderCreated, TopicOrderStatusChanged, TopicOrderCancelled}

// Partition key = order_id, supaya semua event 1 order maintain urutan.
func PartitionKey(orderID string) []byte { return []byte(orderID) }

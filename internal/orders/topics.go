package orders

import "strconv"

const (
	TopicOrderCreated       = "order.created"
	TopicOrderStatusChanged = "order.status.changed"
	TopicStockLow           = "inventory.stock.low"
)

// Partition key = order_id, supaya semua event 1 order maintain urutan.
func PartitionKey(orderID int64) []byte { return []byte(strconv.FormatInt(orderID, 10)) }

// Topics consumed by the worker.
func WorkerTopics() []string {
	return []string{TopicOrderCreated, TopicOrderStatusChanged}
}

package kafka

import "time"

// EventType определяет тип события
type EventType string

const (
	// События жизненного цикла заказа
	EventTypeOrderCreated EventType = "order.created"
	// EventTypeOrderOrphaned — аномалия консистентности: компенсирующее
	// удаление не удалось и заказ остался без позиций.
	EventTypeOrderOrphaned EventType = "order.orphaned"
)

// Topics для Kafka
const (
	TopicOrderEvents     = "market.order.events"
	TopicDeadLetterQueue = "market.order.dlq" // Dead Letter Queue для failed messages
)

// OrderEvent представляет событие заказа
type OrderEvent struct {
	EventType   EventType `json:"event_type"`
	OrderID     int64     `json:"order_id"`
	StoreID     int64     `json:"store_id,omitempty"`
	TotalAmount int64     `json:"total_amount"`
	ItemCount   int       `json:"item_count"`
	Status      string    `json:"status"`
	WriteMode   string    `json:"write_mode,omitempty"`
	Timestamp   time.Time `json:"timestamp"`
}

// NewOrderEvent создает новое событие заказа
func NewOrderEvent(eventType EventType, orderID, storeID, totalAmount int64, itemCount int, status, writeMode string) *OrderEvent {
	return &OrderEvent{
		EventType:   eventType,
		OrderID:     orderID,
		StoreID:     storeID,
		TotalAmount: totalAmount,
		ItemCount:   itemCount,
		Status:      status,
		WriteMode:   writeMode,
		Timestamp:   time.Now().UTC(),
	}
}

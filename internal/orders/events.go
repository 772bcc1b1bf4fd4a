package orders

import (
	"context"
	"encoding/json"
	"strconv"
	"time"

	kafkax "github.com/ariefcatur/go-shop-backend.git/internal/kafka"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	kafkago "github.com/segmentio/kafka-go"
	"github.com/shopspring/decimal"
)

const (
	EventOrderCreated       = "OrderCreated"
	EventOrderStatusChanged = "OrderStatusChanged"
	EventStockLow           = "StockLow"
)

type Envelope struct {
	EventID       string          `json:"event_id"`      // uuid
	EventType     string          `json:"event_type"`    // salah satu const di atas
	EventVersion  int             `json:"event_version"` // 1
	OccurredAt    time.Time       `json:"occurred_at"`   // RFC3339
	Producer      string          `json:"producer"`      // e.g., "shop-api"
	TraceID       string          `json:"trace_id,omitempty"`
	CorrelationID string          `json:"correlation_id,omitempty"` // biasanya order_id
	Payload       json.RawMessage `json:"payload"`                  // payload spesifik
}

// ---- Payload tipe per event ----

type ItemQty struct {
	ProductID int64 `json:"product_id"`
	Quantity  int   `json:"quantity"`
}

type ItemPrice struct {
	ProductID   int64           `json:"product_id"`
	Quantity    int             `json:"quantity"`
	PriceAtTime decimal.Decimal `json:"price_at_time"`
}

type OrderCreatedPayload struct {
	OrderID       int64           `json:"order_id"`
	OrderNumber   string          `json:"order_number"`
	UserID        int64           `json:"user_id"`
	PaymentMethod PaymentMethod   `json:"payment_method"`
	Items         []ItemPrice     `json:"items"`
	TotalAmount   decimal.Decimal `json:"total_amount"`
}

type OrderStatusChangedPayload struct {
	OrderID     int64     `json:"order_id"`
	OrderNumber string    `json:"order_number"`
	UserID      int64     `json:"user_id"`
	From        Status    `json:"from"`
	To          Status    `json:"to"`
	Reason      string    `json:"reason,omitempty"`
	Replenished []ItemQty `json:"replenished,omitempty"` // cancelled | declined
}

type StockLowPayload struct {
	ProductID     int64  `json:"product_id"`
	Name          string `json:"name"`
	StockQuantity int    `json:"stock_quantity"`
	Threshold     int    `json:"threshold"`
}

// Publisher receives order events after their transaction has committed.
type Publisher interface {
	PublishOrderCreated(ctx context.Context, o *Order) error
	PublishStatusChanged(ctx context.Context, o *Order, from Status) error
}

type NopPublisher struct{}

func (NopPublisher) PublishOrderCreated(context.Context, *Order) error { return nil }
func (NopPublisher) PublishStatusChanged(context.Context, *Order, Status) error { return nil }

// EventPublisher wraps order events in an Envelope and hands them to Kafka.
type EventPublisher struct {
	Producer *kafkax.Producer
	Service  string
}

func (p *EventPublisher) PublishOrderCreated(ctx context.Context, o *Order) error {
	items := make([]ItemPrice, 0, len(o.Items))
	for _, it := range o.Items {
		items = append(items, ItemPrice{ProductID: it.ProductID, Quantity: it.Quantity, PriceAtTime: it.PriceAtTime})
	}
	return p.publish(ctx, TopicOrderCreated, EventOrderCreated, o.ID, OrderCreatedPayload{
		OrderID:       o.ID,
		OrderNumber:   o.OrderNumber,
		UserID:        o.UserID,
		PaymentMethod: o.PaymentMethod,
		Items:         items,
		TotalAmount:   o.TotalAmount,
	})
}

func (p *EventPublisher) PublishStatusChanged(ctx context.Context, o *Order, from Status) error {
	payload := OrderStatusChangedPayload{
		OrderID:     o.ID,
		OrderNumber: o.OrderNumber,
		UserID:      o.UserID,
		From:        from,
		To:          o.Status,
		Reason:      o.DeclineReason,
	}
	if o.Status.ReleasesStock() {
		for _, it := range o.Items {
			payload.Replenished = append(payload.Replenished, ItemQty{ProductID: it.ProductID, Quantity: it.Quantity})
		}
	}
	return p.publish(ctx, TopicOrderStatusChanged, EventOrderStatusChanged, o.ID, payload)
}

// PublishStockLow is used by the worker's inventory watcher.
func (p *EventPublisher) PublishStockLow(ctx context.Context, payload StockLowPayload) error {
	return p.publish(ctx, TopicStockLow, EventStockLow, payload.ProductID, payload)
}

func (p *EventPublisher) publish(ctx context.Context, topic, eventType string, key int64, payload any) error {
	ev := NewEnvelope(eventType, p.Service, middleware.GetReqID(ctx), strconv.FormatInt(key, 10), payload)
	return p.Producer.Publish(ctx, topic, PartitionKey(key), kafkax.MustMarshal(ev),
		kafkago.Header{Key: "x-event-type", Value: []byte(eventType)},
		kafkago.Header{Key: "x-event-version", Value: []byte("1")},
	)
}

func NewEnvelope(eventType, producer, traceID, correlationID string, payload any) Envelope {
	return Envelope{
		EventID:       uuid.NewString(),
		EventType:     eventType,
		EventVersion:  1,
		OccurredAt:    time.Now().UTC(),
		Producer:      producer,
		TraceID:       traceID,
		CorrelationID: correlationID,
		Payload:       kafkax.MustMarshal(payload),
	}
}

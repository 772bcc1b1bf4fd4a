package inventory

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/ariefcatur/go-shop-backend.git/internal/catalog"
	kafkax "github.com/ariefcatur/go-shop-backend.git/internal/kafka"
	"github.com/ariefcatur/go-shop-backend.git/internal/logger"
	"github.com/ariefcatur/go-shop-backend.git/internal/orders"
	"github.com/ariefcatur/go-shop-backend.git/internal/redisx"
	kafkago "github.com/segmentio/kafka-go"
)

type StockReader interface {
	LowStock(ctx context.Context, ids []int64, threshold int) ([]catalog.Product, error)
}

type AlertPublisher interface {
	PublishStockLow(ctx context.Context, p orders.StockLowPayload) error
}

type StatusWriter interface {
	Set(ctx context.Context, e redisx.StatusEntry) error
}

type Marker interface {
	Once(ctx context.Context, key string, ttl time.Duration) (bool, error)
	Forget(ctx context.Context, key string) error
}

// Service consumes order events: it keeps the order status cache fresh and
// raises low-stock alerts after placements.
type Service struct {
	Stock     StockReader
	Alerts    AlertPublisher
	Cache     StatusWriter
	Seen      Marker
	Threshold int
	Name      string
	Log       *logger.Logger
}

// Handle dipasang sebagai handler consumer. An error makes the consumer
// retry the message a few times before it moves past it.
func (s *Service) Handle(ctx context.Context, m kafkago.Message) error {
	// 1) decode envelope
	var env orders.Envelope
	if err := json.Unmarshal(m.Value, &env); err != nil {
		// retrying cannot fix a malformed message
		s.Log.Warn("dropping malformed event", "topic", m.Topic, "offset", m.Offset, "err", err)
		return nil
	}

	// 2) dedup via Redis (pakai event_id)
	dkey := fmt.Sprintf(redisx.KeyDedup, s.Name, env.EventID)
	first, err := s.Seen.Once(ctx, dkey, redisx.TTLDedup)
	if err != nil {
		return fmt.Errorf("dedup %s: %w", env.EventID, err)
	}
	if !first {
		return nil
	}

	switch env.EventType {
	case orders.EventOrderCreated:
		err = s.orderCreated(ctx, env)
	case orders.EventOrderStatusChanged:
		err = s.statusChanged(ctx, env)
	default:
		return nil // ignore
	}
	if err != nil {
		// allow the redelivery through
		if ferr := s.Seen.Forget(ctx, dkey); ferr != nil {
			s.Log.Warn("forget dedup key failed", "key", dkey, "err", ferr)
		}
		return err
	}
	return nil
}

func (s *Service) orderCreated(ctx context.Context, env orders.Envelope) error {
	p, err := kafkax.UnwrapPayload[orders.OrderCreatedPayload](env.Payload)
	if err != nil {
		s.Log.Warn("dropping event", "event_id", env.EventID, "err", err)
		return nil
	}

	if err := s.Cache.Set(ctx, redisx.StatusEntry{
		OrderID:     p.OrderID,
		UserID:      p.UserID,
		OrderNumber: p.OrderNumber,
		Status:      string(orders.StatusPending),
		UpdatedAt:   env.OccurredAt,
	}); err != nil {
		return fmt.Errorf("cache status: %w", err)
	}

	ids := make([]int64, 0, len(p.Items))
	for _, it := range p.Items {
		ids = append(ids, it.ProductID)
	}
	low, err := s.Stock.LowStock(ctx, ids, s.Threshold)
	if err != nil {
		return err
	}
	for _, prod := range low {
		// satu alert per produk per TTL
		first, err := s.Seen.Once(ctx, fmt.Sprintf(redisx.KeyStockLow, prod.ID), redisx.TTLStockLow)
		if err != nil {
			return fmt.Errorf("throttle stock alert: %w", err)
		}
		if !first {
			continue
		}
		if err := s.Alerts.PublishStockLow(ctx, orders.StockLowPayload{
			ProductID:     prod.ID,
			Name:          prod.Name,
			StockQuantity: prod.StockQuantity,
			Threshold:     s.Threshold,
		}); err != nil {
			return fmt.Errorf("publish stock low: %w", err)
		}
		s.Log.Info("stock low", "product_id", prod.ID, "stock", prod.StockQuantity, "order_id", p.OrderID)
	}
	return nil
}

func (s *Service) statusChanged(ctx context.Context, env orders.Envelope) error {
	p, err := kafkax.UnwrapPayload[orders.OrderStatusChangedPayload](env.Payload)
	if err != nil {
		s.Log.Warn("dropping event", "event_id", env.EventID, "err", err)
		return nil
	}
	if err := s.Cache.Set(ctx, redisx.StatusEntry{
		OrderID:     p.OrderID,
		UserID:      p.UserID,
		OrderNumber: p.OrderNumber,
		Status:      string(p.To),
		UpdatedAt:   env.OccurredAt,
	}); err != nil {
		return fmt.Errorf("cache status: %w", err)
	}
	if len(p.Replenished) > 0 {
		s.Log.Info("stock replenished", "order_id", p.OrderID, "status", p.To, "lines", len(p.Replenished))
	}
	return nil
}

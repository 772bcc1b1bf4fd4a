package orders

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/ariefcatur/go-shop-backend.git/internal/logger"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

const maxOrderNumberAttempts = 5

type Service struct {
	store     Store
	publisher Publisher
	log       *logger.Logger

	// NewOrderNumber is swappable so tests can force collisions.
	NewOrderNumber func() string
}

func NewService(store Store, publisher Publisher, log *logger.Logger) *Service {
	if publisher == nil {
		publisher = NopPublisher{}
	}
	if log == nil {
		log = logger.Nop()
	}
	return &Service{
		store:          store,
		publisher:      publisher,
		log:            log,
		NewOrderNumber: GenerateOrderNumber,
	}
}

// GenerateOrderNumber returns ORD- followed by 8 upper-case hex characters.
func GenerateOrderNumber() string {
	id := uuid.New()
	return fmt.Sprintf("ORD-%X", id[:4])
}

type PlaceOrderInput struct {
	UserID          int64
	ShippingAddress string
	PaymentMethod   PaymentMethod
	// ProductIDs restricts checkout to these cart entries; empty means the whole cart.
	ProductIDs []int64
}

func (in PlaceOrderInput) validate() error {
	if in.UserID <= 0 {
		return invalid("user_id is required")
	}
	if strings.TrimSpace(in.ShippingAddress) == "" {
		return invalid("shipping_address is required")
	}
	if !in.PaymentMethod.Valid() {
		return invalid("invalid payment method %q", in.PaymentMethod)
	}
	return nil
}

// PlaceOrder turns the selected cart entries into a pending order. Stock
// check, decrement, item snapshot and cart cleanup commit together or not at all.
func (s *Service) PlaceOrder(ctx context.Context, in PlaceOrderInput) (*Order, error) {
	if err := in.validate(); err != nil {
		return nil, err
	}

	var order *Order
	err := s.store.WithTx(ctx, func(tx Tx) error {
		lines, err := tx.CartLines(ctx, in.UserID, in.ProductIDs)
		if err != nil {
			return err
		}
		if len(lines) == 0 {
			return ErrEmptySelection
		}

		total := decimal.Zero
		items := make([]OrderItem, 0, len(lines))
		checkedOut := make([]int64, 0, len(lines))
		for _, l := range lines {
			if !l.IsActive {
				return invalid("product %q is no longer available", l.ProductName)
			}
			if l.Quantity > l.StockQuantity {
				return &StockError{ProductID: l.ProductID, Name: l.ProductName, Required: l.Quantity, Available: l.StockQuantity}
			}
			item := OrderItem{
				ProductID:   l.ProductID,
				ProductName: l.ProductName,
				Quantity:    l.Quantity,
				PriceAtTime: l.UnitPrice,
			}
			total = total.Add(item.LineTotal())
			items = append(items, item)
			checkedOut = append(checkedOut, l.ProductID)
		}

		o := &Order{
			UserID:          in.UserID,
			TotalAmount:     total,
			ShippingAddress: strings.TrimSpace(in.ShippingAddress),
			PaymentMethod:   in.PaymentMethod,
			Status:          StatusPending,
		}
		if err := s.insertOrder(ctx, tx, o); err != nil {
			return err
		}

		for i := range items {
			it := &items[i]
			// the read above is advisory; this conditional update is what guards stock
			ok, available, err := tx.DecrementStock(ctx, it.ProductID, it.Quantity)
			if err != nil {
				return err
			}
			if !ok {
				return &StockError{ProductID: it.ProductID, Name: it.ProductName, Required: it.Quantity, Available: available}
			}
			it.OrderID = o.ID
			if err := tx.InsertItem(ctx, it); err != nil {
				return err
			}
		}

		if err := tx.DeleteCartEntries(ctx, in.UserID, checkedOut); err != nil {
			return err
		}
		o.Items = items
		order = o
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.log.Info("order placed", "order_id", order.ID, "order_number", order.OrderNumber, "user_id", order.UserID, "total", order.TotalAmount.StringFixed(2))
	if err := s.publisher.PublishOrderCreated(ctx, order); err != nil {
		s.log.Warn("publish order created", "order_id", order.ID, "err", err)
	}
	return order, nil
}

func (s *Service) insertOrder(ctx context.Context, tx Tx, o *Order) error {
	for attempt := 1; attempt <= maxOrderNumberAttempts; attempt++ {
		o.OrderNumber = s.NewOrderNumber()
		err := tx.InsertOrder(ctx, o)
		if errors.Is(err, ErrDuplicateOrderNumber) {
			s.log.Warn("order number collision", "order_number", o.OrderNumber, "attempt", attempt)
			continue
		}
		return err
	}
	return storage("generate order number", fmt.Errorf("no unique value after %d attempts", maxOrderNumberAttempts))
}

// CancelOrder is the customer-initiated cancel. Only pending orders qualify.
// userID scopes the lookup to the owner; 0 skips the ownership check.
func (s *Service) CancelOrder(ctx context.Context, orderID, userID int64) (*Order, error) {
	return s.transition(ctx, orderID, userID, StatusCancelled, "", func(from Status) bool {
		return from == StatusPending
	})
}

// SetOrderStatus is the admin entry point for every lifecycle move.
// Declining requires a reason.
func (s *Service) SetOrderStatus(ctx context.Context, orderID int64, target Status, reason string) (*Order, error) {
	if !target.Valid() {
		return nil, invalid("invalid status %q", target)
	}
	reason = strings.TrimSpace(reason)
	if target == StatusDeclined && reason == "" {
		return nil, invalid("decline_reason is required when declining an order")
	}
	return s.transition(ctx, orderID, 0, target, reason, nil)
}

// ApproveOrder moves a pending order to processing.
func (s *Service) ApproveOrder(ctx context.Context, orderID int64) (*Order, error) {
	return s.SetOrderStatus(ctx, orderID, StatusProcessing, "")
}

// DeclineOrder rejects a pending order and returns its stock.
func (s *Service) DeclineOrder(ctx context.Context, orderID int64, reason string) (*Order, error) {
	return s.SetOrderStatus(ctx, orderID, StatusDeclined, reason)
}

func (s *Service) transition(ctx context.Context, orderID, userID int64, target Status, reason string, allowFrom func(Status) bool) (*Order, error) {
	var (
		order *Order
		from  Status
	)
	err := s.store.WithTx(ctx, func(tx Tx) error {
		o, err := tx.LockOrder(ctx, orderID)
		if err != nil {
			return err
		}
		if userID != 0 && o.UserID != userID {
			return ErrNotFound
		}
		from = o.Status
		if !CanTransition(from, target) || (allowFrom != nil && !allowFrom(from)) {
			return &TransitionError{From: from, To: target}
		}

		items, err := tx.OrderItems(ctx, o.ID)
		if err != nil {
			return err
		}
		if target.ReleasesStock() {
			for _, it := range items {
				if err := tx.IncrementStock(ctx, it.ProductID, it.Quantity); err != nil {
					return err
				}
			}
		}

		o.Status = target
		if target == StatusDeclined {
			o.DeclineReason = reason
		}
		if err := tx.UpdateOrder(ctx, o); err != nil {
			return err
		}
		o.Items = items
		order = o
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.log.Info("order status changed", "order_id", order.ID, "from", from, "to", order.Status)
	if err := s.publisher.PublishStatusChanged(ctx, order, from); err != nil {
		s.log.Warn("publish status changed", "order_id", order.ID, "err", err)
	}
	return order, nil
}

// AttachPaymentProof records the uploaded proof for an online-payment order
// and moves it from pending to processing.
func (s *Service) AttachPaymentProof(ctx context.Context, orderID, userID int64, proof PaymentProof) (*Order, error) {
	if strings.TrimSpace(proof.URL) == "" {
		return nil, invalid("payment proof reference is required")
	}
	var (
		order *Order
		from  Status
	)
	err := s.store.WithTx(ctx, func(tx Tx) error {
		o, err := tx.LockOrder(ctx, orderID)
		if err != nil {
			return err
		}
		if userID != 0 && o.UserID != userID {
			return ErrNotFound
		}
		if o.PaymentMethod != PaymentOnline {
			return invalid("order %s is not an online payment order", o.OrderNumber)
		}
		from = o.Status
		if from != StatusPending {
			return &TransitionError{From: from, To: StatusProcessing}
		}
		o.PaymentProofURL = proof.URL
		o.PaymentProofFile = proof.Filename
		o.Status = StatusProcessing
		if err := tx.UpdateOrder(ctx, o); err != nil {
			return err
		}
		items, err := tx.OrderItems(ctx, o.ID)
		if err != nil {
			return err
		}
		o.Items = items
		order = o
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.log.Info("payment proof attached", "order_id", order.ID, "file", proof.Filename)
	if err := s.publisher.PublishStatusChanged(ctx, order, from); err != nil {
		s.log.Warn("publish status changed", "order_id", order.ID, "err", err)
	}
	return order, nil
}

func (s *Service) GetOrder(ctx context.Context, orderID int64) (*Order, error) {
	return s.store.GetOrder(ctx, orderID)
}

func (s *Service) ListUserOrders(ctx context.Context, userID int64) ([]Order, error) {
	if userID <= 0 {
		return nil, invalid("user_id is required")
	}
	return s.store.ListOrders(ctx, ListFilter{UserID: userID})
}

func (s *Service) ListOrders(ctx context.Context, status Status, limit int) ([]Order, error) {
	if status != "" && !status.Valid() {
		return nil, invalid("invalid status %q", status)
	}
	return s.store.ListOrders(ctx, ListFilter{Status: status, Limit: limit})
}

package orders

import "context"

// Store is the persistence boundary of the order core. Every mutating
// operation runs inside WithTx; fn's error aborts and rolls back.
type Store interface {
	WithTx(ctx context.Context, fn func(tx Tx) error) error
	GetOrder(ctx context.Context, id int64) (*Order, error)
	ListOrders(ctx context.Context, f ListFilter) ([]Order, error)
}

// Tx is the set of statements available inside one unit of work.
type Tx interface {
	// CartLines returns the user's cart joined with product data, ordered by
	// product id. An empty productIDs selects the whole cart.
	CartLines(ctx context.Context, userID int64, productIDs []int64) ([]CartLine, error)
	// DecrementStock takes qty off the product only if enough is left.
	// ok=false reports the quantity that was available instead.
	DecrementStock(ctx context.Context, productID int64, qty int) (ok bool, available int, err error)
	IncrementStock(ctx context.Context, productID int64, qty int) error
	InsertOrder(ctx context.Context, o *Order) error
	InsertItem(ctx context.Context, it *OrderItem) error
	DeleteCartEntries(ctx context.Context, userID int64, productIDs []int64) error
	// LockOrder loads the order header and holds it until the tx ends.
	LockOrder(ctx context.Context, id int64) (*Order, error)
	OrderItems(ctx context.Context, orderID int64) ([]OrderItem, error)
	UpdateOrder(ctx context.Context, o *Order) error
}

type ListFilter struct {
	UserID int64
	Status Status
	Limit  int
}

package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/ariefcatur/go-shop-backend.git/internal/orders"
	"github.com/shopspring/decimal"
)

type Product struct {
	ID       int64
	Name     string
	Price    decimal.Decimal
	Stock    int
	Inactive bool
}

type cartKey struct{ userID, productID int64 }

type state struct {
	products    map[int64]Product
	cart        map[cartKey]int
	orders      map[int64]orders.Order
	items       map[int64][]orders.OrderItem
	numbers     map[string]int64
	nextOrderID int64
	nextItemID  int64
}

func (s *state) clone() *state {
	c := &state{
		products:    make(map[int64]Product, len(s.products)),
		cart:        make(map[cartKey]int, len(s.cart)),
		orders:      make(map[int64]orders.Order, len(s.orders)),
		items:       make(map[int64][]orders.OrderItem, len(s.items)),
		numbers:     make(map[string]int64, len(s.numbers)),
		nextOrderID: s.nextOrderID,
		nextItemID:  s.nextItemID,
	}
	for k, v := range s.products {
		c.products[k] = v
	}
	for k, v := range s.cart {
		c.cart[k] = v
	}
	for k, v := range s.orders {
		c.orders[k] = v
	}
	for k, v := range s.items {
		c.items[k] = append([]orders.OrderItem(nil), v...)
	}
	for k, v := range s.numbers {
		c.numbers[k] = v
	}
	return c
}

// Store is an in-process orders.Store. Transactions are serialised by one
// mutex and work on a copy of the state that replaces the original on commit.
type Store struct {
	mu sync.Mutex
	st *state

	// FailInsertItem, when set, is returned by the next InsertItem call.
	FailInsertItem error
}

var _ orders.Store = (*Store)(nil)

func NewStore() *Store {
	return &Store{st: &state{
		products: map[int64]Product{},
		cart:     map[cartKey]int{},
		orders:   map[int64]orders.Order{},
		items:    map[int64][]orders.OrderItem{},
		numbers:  map[string]int64{},
	}}
}

func (s *Store) AddProduct(p Product) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.st.products[p.ID] = p
}

func (s *Store) SetPrice(productID int64, price decimal.Decimal) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p := s.st.products[productID]
	p.Price = price
	s.st.products[productID] = p
}

func (s *Store) PutCart(userID, productID int64, qty int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.st.cart[cartKey{userID, productID}] = qty
}

func (s *Store) Stock(productID int64) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.st.products[productID].Stock
}

func (s *Store) CartQuantity(userID, productID int64) (int, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	q, ok := s.st.cart[cartKey{userID, productID}]
	return q, ok
}

// ReservedQuantity sums order item quantities for productID over orders
// that still hold their stock.
func (s *Store) ReservedQuantity(productID int64) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for id, o := range s.st.orders {
		if o.Status.ReleasesStock() {
			continue
		}
		for _, it := range s.st.items[id] {
			if it.ProductID == productID {
				n += it.Quantity
			}
		}
	}
	return n
}

func (s *Store) WithTx(ctx context.Context, fn func(tx orders.Tx) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := ctx.Err(); err != nil {
		return err
	}

	work := s.st.clone()
	if err := fn(&memTx{s: s, st: work}); err != nil {
		return err
	}
	s.st = work
	return nil
}

func (s *Store) GetOrder(_ context.Context, id int64) (*orders.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	o, ok := s.st.orders[id]
	if !ok {
		return nil, orders.ErrNotFound
	}
	o.Items = append([]orders.OrderItem(nil), s.st.items[id]...)
	return &o, nil
}

func (s *Store) ListOrders(_ context.Context, f orders.ListFilter) ([]orders.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []orders.Order
	for id, o := range s.st.orders {
		if f.UserID != 0 && o.UserID != f.UserID {
			continue
		}
		if f.Status != "" && o.Status != f.Status {
			continue
		}
		o.Items = append([]orders.OrderItem(nil), s.st.items[id]...)
		out = append(out, o)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID > out[j].ID })
	if f.Limit > 0 && len(out) > f.Limit {
		out = out[:f.Limit]
	}
	return out, nil
}

type memTx struct {
	s  *Store
	st *state
}

func (t *memTx) CartLines(_ context.Context, userID int64, productIDs []int64) ([]orders.CartLine, error) {
	want := map[int64]bool{}
	for _, id := range productIDs {
		want[id] = true
	}
	var out []orders.CartLine
	for k, qty := range t.st.cart {
		if k.userID != userID || (len(want) > 0 && !want[k.productID]) {
			continue
		}
		p, ok := t.st.products[k.productID]
		if !ok {
			continue
		}
		out = append(out, orders.CartLine{
			UserID:        userID,
			ProductID:     p.ID,
			ProductName:   p.Name,
			Quantity:      qty,
			UnitPrice:     p.Price,
			StockQuantity: p.Stock,
			IsActive:      !p.Inactive,
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ProductID < out[j].ProductID })
	return out, nil
}

func (t *memTx) DecrementStock(_ context.Context, productID int64, qty int) (bool, int, error) {
	p, ok := t.st.products[productID]
	if !ok {
		return false, 0, nil
	}
	if p.Stock < qty {
		return false, p.Stock, nil
	}
	p.Stock -= qty
	t.st.products[productID] = p
	return true, 0, nil
}

func (t *memTx) IncrementStock(_ context.Context, productID int64, qty int) error {
	p, ok := t.st.products[productID]
	if !ok {
		return orders.ErrNotFound
	}
	p.Stock += qty
	t.st.products[productID] = p
	return nil
}

func (t *memTx) InsertOrder(_ context.Context, o *orders.Order) error {
	if _, taken := t.st.numbers[o.OrderNumber]; taken {
		return orders.ErrDuplicateOrderNumber
	}
	t.st.nextOrderID++
	now := time.Now().UTC()
	o.ID = t.st.nextOrderID
	o.CreatedAt, o.UpdatedAt = now, now
	stored := *o
	stored.Items = nil
	t.st.orders[o.ID] = stored
	t.st.numbers[o.OrderNumber] = o.ID
	return nil
}

func (t *memTx) InsertItem(_ context.Context, it *orders.OrderItem) error {
	if err := t.s.FailInsertItem; err != nil {
		t.s.FailInsertItem = nil
		return err
	}
	t.st.nextItemID++
	it.ID = t.st.nextItemID
	t.st.items[it.OrderID] = append(t.st.items[it.OrderID], *it)
	return nil
}

func (t *memTx) DeleteCartEntries(_ context.Context, userID int64, productIDs []int64) error {
	for _, id := range productIDs {
		delete(t.st.cart, cartKey{userID, id})
	}
	return nil
}

func (t *memTx) LockOrder(_ context.Context, id int64) (*orders.Order, error) {
	o, ok := t.st.orders[id]
	if !ok {
		return nil, orders.ErrNotFound
	}
	return &o, nil
}

func (t *memTx) OrderItems(_ context.Context, orderID int64) ([]orders.OrderItem, error) {
	return append([]orders.OrderItem(nil), t.st.items[orderID]...), nil
}

func (t *memTx) UpdateOrder(_ context.Context, o *orders.Order) error {
	if _, ok := t.st.orders[o.ID]; !ok {
		return orders.ErrNotFound
	}
	o.UpdatedAt = time.Now().UTC()
	stored := *o
	stored.Items = nil
	t.st.orders[o.ID] = stored
	return nil
}

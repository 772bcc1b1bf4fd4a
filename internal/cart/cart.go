package cart

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/ariefcatur/go-shop-backend.git/internal/orders"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
)

type Item struct {
	ProductID     int64           `json:"product_id"`
	Name          string          `json:"name"`
	Price         decimal.Decimal `json:"price"`
	ImageURL      string          `json:"image_url,omitempty"`
	StockQuantity int             `json:"stock_quantity"`
	Quantity      int             `json:"quantity"`
	ItemTotal     decimal.Decimal `json:"item_total"`
	AddedAt       time.Time       `json:"added_at"`
}

type Cart struct {
	UserID    int64           `json:"user_id"`
	Items     []Item          `json:"items"`
	Subtotal  decimal.Decimal `json:"subtotal"`
	ItemCount int             `json:"item_count"`
}

func newCart(userID int64, items []Item) *Cart {
	c := &Cart{UserID: userID, Items: items, Subtotal: decimal.Zero}
	if c.Items == nil {
		c.Items = []Item{}
	}
	for i := range c.Items {
		it := &c.Items[i]
		it.ItemTotal = it.Price.Mul(decimal.NewFromInt(int64(it.Quantity)))
		c.Subtotal = c.Subtotal.Add(it.ItemTotal)
	}
	c.ItemCount = len(c.Items)
	return c
}

type Repo struct{ DB *pgxpool.Pool }

func storageErr(op string, err error) error {
	return fmt.Errorf("%w: %s: %v", orders.ErrStorage, op, err)
}

func (r *Repo) Get(ctx context.Context, userID int64) (*Cart, error) {
	if userID <= 0 {
		return nil, fmt.Errorf("%w: user_id is required", orders.ErrValidation)
	}
	rows, err := r.DB.Query(ctx, `
		SELECT c.product_id, p.name, p.price, COALESCE(p.image_url, ''), p.stock_quantity, c.quantity, c.added_at
		FROM cart c JOIN products p ON p.id = c.product_id
		WHERE c.user_id = $1
		ORDER BY c.added_at DESC, c.id DESC`, userID)
	if err != nil {
		return nil, storageErr("get cart", err)
	}
	defer rows.Close()

	var items []Item
	for rows.Next() {
		var it Item
		if err := rows.Scan(&it.ProductID, &it.Name, &it.Price, &it.ImageURL, &it.StockQuantity, &it.Quantity, &it.AddedAt); err != nil {
			return nil, storageErr("scan cart", err)
		}
		items = append(items, it)
	}
	if err := rows.Err(); err != nil {
		return nil, storageErr("get cart", err)
	}
	return newCart(userID, items), nil
}

// Add puts qty more of the product in the cart. The accumulated quantity
// may not exceed current stock.
func (r *Repo) Add(ctx context.Context, userID, productID int64, qty int) (int, error) {
	if userID <= 0 || productID <= 0 {
		return 0, fmt.Errorf("%w: user_id and product_id are required", orders.ErrValidation)
	}
	if qty < 1 {
		return 0, fmt.Errorf("%w: quantity must be at least 1", orders.ErrValidation)
	}
	return r.write(ctx, userID, productID, func(current int) int { return current + qty })
}

// SetQuantity replaces the quantity; 0 removes the entry.
func (r *Repo) SetQuantity(ctx context.Context, userID, productID int64, qty int) (int, error) {
	if qty < 0 {
		return 0, fmt.Errorf("%w: quantity must not be negative", orders.ErrValidation)
	}
	if qty == 0 {
		return 0, r.Remove(ctx, userID, productID)
	}
	return r.write(ctx, userID, productID, func(current int) int {
		if current == 0 {
			return -1
		}
		return qty
	})
}

// write locks the cart row, then the product row, the same order checkout
// takes them in, so the stock comparison holds until commit.
func (r *Repo) write(ctx context.Context, userID, productID int64, next func(current int) int) (int, error) {
	tx, err := r.DB.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return 0, storageErr("begin", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	var current int
	err = tx.QueryRow(ctx, `SELECT quantity FROM cart WHERE user_id=$1 AND product_id=$2 FOR UPDATE`, userID, productID).Scan(&current)
	if err != nil && !errors.Is(err, pgx.ErrNoRows) {
		return 0, storageErr("load cart entry", err)
	}

	var (
		name   string
		stock  int
		active bool
	)
	err = tx.QueryRow(ctx, `SELECT name, stock_quantity, is_active FROM products WHERE id=$1 FOR SHARE`, productID).Scan(&name, &stock, &active)
	if errors.Is(err, pgx.ErrNoRows) || (err == nil && !active) {
		return 0, fmt.Errorf("%w: product %d", orders.ErrNotFound, productID)
	}
	if err != nil {
		return 0, storageErr("load product", err)
	}

	qty := next(current)
	if qty < 0 {
		return 0, fmt.Errorf("%w: cart entry for product %d", orders.ErrNotFound, productID)
	}
	if qty > stock {
		return 0, &orders.StockError{ProductID: productID, Name: name, Required: qty, Available: stock}
	}

	_, err = tx.Exec(ctx, `
		INSERT INTO cart(user_id, product_id, quantity) VALUES ($1, $2, $3)
		ON CONFLICT ON CONSTRAINT cart_user_product_key DO UPDATE SET quantity = EXCLUDED.quantity`,
		userID, productID, qty)
	if err != nil {
		return 0, storageErr("write cart", err)
	}
	if err := tx.Commit(ctx); err != nil {
		return 0, storageErr("commit", err)
	}
	return qty, nil
}

func (r *Repo) Remove(ctx context.Context, userID, productID int64) error {
	ct, err := r.DB.Exec(ctx, `DELETE FROM cart WHERE user_id=$1 AND product_id=$2`, userID, productID)
	if err != nil {
		return storageErr("remove cart entry", err)
	}
	if ct.RowsAffected() == 0 {
		return fmt.Errorf("%w: cart entry for product %d", orders.ErrNotFound, productID)
	}
	return nil
}

func (r *Repo) Clear(ctx context.Context, userID int64) error {
	if _, err := r.DB.Exec(ctx, `DELETE FROM cart WHERE user_id=$1`, userID); err != nil {
		return storageErr("clear cart", err)
	}
	return nil
}

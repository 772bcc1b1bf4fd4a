package orders

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

const uniqueViolation = "23505"

// Repo is the PostgreSQL Store.
type Repo struct{ DB *pgxpool.Pool }

var _ Store = (*Repo)(nil)

const orderColumns = `id, user_id, order_number, total_amount, shipping_address, payment_method, status,
	COALESCE(decline_reason, ''), COALESCE(payment_proof_url, ''), COALESCE(payment_proof_filename, ''),
	created_at, updated_at`

func scanOrder(row pgx.Row) (*Order, error) {
	var o Order
	err := row.Scan(&o.ID, &o.UserID, &o.OrderNumber, &o.TotalAmount, &o.ShippingAddress, &o.PaymentMethod,
		&o.Status, &o.DeclineReason, &o.PaymentProofURL, &o.PaymentProofFile, &o.CreatedAt, &o.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, storage("scan order", err)
	}
	return &o, nil
}

// WithTx: satu transaksi per unit of work, rollback via defer kalau fn gagal.
func (r *Repo) WithTx(ctx context.Context, fn func(tx Tx) error) error {
	tx, err := r.DB.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return storage("begin", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if err := fn(&pgTx{tx: tx}); err != nil {
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		return storage("commit", err)
	}
	return nil
}

func (r *Repo) GetOrder(ctx context.Context, id int64) (*Order, error) {
	o, err := scanOrder(r.DB.QueryRow(ctx, `SELECT `+orderColumns+` FROM orders WHERE id=$1`, id))
	if err != nil {
		return nil, err
	}
	items, err := queryItems(ctx, r.DB, `WHERE oi.order_id = $1`, id)
	if err != nil {
		return nil, err
	}
	o.Items = items
	return o, nil
}

func (r *Repo) ListOrders(ctx context.Context, f ListFilter) ([]Order, error) {
	if f.Limit <= 0 || f.Limit > 500 {
		f.Limit = 100
	}
	rows, err := r.DB.Query(ctx, `SELECT `+orderColumns+` FROM orders
		WHERE ($1::bigint = 0 OR user_id = $1) AND ($2::text = '' OR status = $2)
		ORDER BY created_at DESC, id DESC
		LIMIT $3`, f.UserID, string(f.Status), f.Limit)
	if err != nil {
		return nil, storage("list orders", err)
	}
	defer rows.Close()

	var out []Order
	byID := map[int64]int{}
	ids := []int64{}
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, err
		}
		byID[o.ID] = len(out)
		ids = append(ids, o.ID)
		out = append(out, *o)
	}
	if err := rows.Err(); err != nil {
		return nil, storage("list orders", err)
	}
	if len(ids) == 0 {
		return out, nil
	}

	items, err := queryItems(ctx, r.DB, `WHERE oi.order_id = ANY($1)`, ids)
	if err != nil {
		return nil, err
	}
	for _, it := range items {
		i := byID[it.OrderID]
		out[i].Items = append(out[i].Items, it)
	}
	return out, nil
}

type querier interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

func queryItems(ctx context.Context, q querier, where string, arg any) ([]OrderItem, error) {
	rows, err := q.Query(ctx, `SELECT oi.id, oi.order_id, oi.product_id, p.name, oi.quantity, oi.price_at_time
		FROM order_items oi JOIN products p ON p.id = oi.product_id `+where+`
		ORDER BY oi.order_id, oi.id`, arg)
	if err != nil {
		return nil, storage("query items", err)
	}
	defer rows.Close()

	var out []OrderItem
	for rows.Next() {
		var it OrderItem
		if err := rows.Scan(&it.ID, &it.OrderID, &it.ProductID, &it.ProductName, &it.Quantity, &it.PriceAtTime); err != nil {
			return nil, storage("scan item", err)
		}
		out = append(out, it)
	}
	if err := rows.Err(); err != nil {
		return nil, storage("query items", err)
	}
	return out, nil
}

type pgTx struct{ tx pgx.Tx }

func (t *pgTx) CartLines(ctx context.Context, userID int64, productIDs []int64) ([]CartLine, error) {
	var sel []int64
	if len(productIDs) > 0 {
		sel = productIDs
	}
	// lock baris cart supaya checkout paralel user yang sama tidak double.
	rows, err := t.tx.Query(ctx, `
		SELECT c.user_id, c.product_id, p.name, c.quantity, p.price, p.stock_quantity, p.is_active
		FROM cart c
		JOIN products p ON p.id = c.product_id
		WHERE c.user_id = $1 AND ($2::bigint[] IS NULL OR c.product_id = ANY($2))
		ORDER BY c.product_id
		FOR UPDATE OF c`, userID, sel)
	if err != nil {
		return nil, storage("load cart", err)
	}
	defer rows.Close()

	var out []CartLine
	for rows.Next() {
		var l CartLine
		if err := rows.Scan(&l.UserID, &l.ProductID, &l.ProductName, &l.Quantity, &l.UnitPrice, &l.StockQuantity, &l.IsActive); err != nil {
			return nil, storage("scan cart", err)
		}
		out = append(out, l)
	}
	if err := rows.Err(); err != nil {
		return nil, storage("load cart", err)
	}
	return out, nil
}

func (t *pgTx) DecrementStock(ctx context.Context, productID int64, qty int) (bool, int, error) {
	ct, err := t.tx.Exec(ctx, `
		UPDATE products SET stock_quantity = stock_quantity - $2, updated_at = now()
		WHERE id = $1 AND stock_quantity >= $2`, productID, qty)
	if err != nil {
		return false, 0, storage("decrement stock", err)
	}
	if ct.RowsAffected() == 1 {
		return true, 0, nil
	}

	var available int
	err = t.tx.QueryRow(ctx, `SELECT stock_quantity FROM products WHERE id=$1`, productID).Scan(&available)
	if errors.Is(err, pgx.ErrNoRows) {
		return false, 0, nil
	}
	if err != nil {
		return false, 0, storage("read stock", err)
	}
	return false, available, nil
}

func (t *pgTx) IncrementStock(ctx context.Context, productID int64, qty int) error {
	ct, err := t.tx.Exec(ctx, `UPDATE products SET stock_quantity = stock_quantity + $2, updated_at = now() WHERE id=$1`, productID, qty)
	if err != nil {
		return storage("replenish stock", err)
	}
	if ct.RowsAffected() != 1 {
		return ErrNotFound
	}
	return nil
}

// InsertOrder runs under a savepoint so an order_number collision leaves the
// outer transaction usable for the retry.
func (t *pgTx) InsertOrder(ctx context.Context, o *Order) error {
	sp, err := t.tx.Begin(ctx)
	if err != nil {
		return storage("savepoint", err)
	}
	err = sp.QueryRow(ctx, `
		INSERT INTO orders(user_id, order_number, total_amount, shipping_address, payment_method, status)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id, created_at, updated_at`,
		o.UserID, o.OrderNumber, o.TotalAmount, o.ShippingAddress, string(o.PaymentMethod), string(o.Status),
	).Scan(&o.ID, &o.CreatedAt, &o.UpdatedAt)
	if err != nil {
		_ = sp.Rollback(ctx)
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation && pgErr.ConstraintName == "orders_order_number_key" {
			return ErrDuplicateOrderNumber
		}
		return storage("insert order", err)
	}
	if err := sp.Commit(ctx); err != nil {
		return storage("release savepoint", err)
	}
	return nil
}

func (t *pgTx) InsertItem(ctx context.Context, it *OrderItem) error {
	err := t.tx.QueryRow(ctx, `
		INSERT INTO order_items(order_id, product_id, quantity, price_at_time)
		VALUES ($1, $2, $3, $4)
		RETURNING id`, it.OrderID, it.ProductID, it.Quantity, it.PriceAtTime).Scan(&it.ID)
	if err != nil {
		return storage("insert item", err)
	}
	return nil
}

func (t *pgTx) DeleteCartEntries(ctx context.Context, userID int64, productIDs []int64) error {
	if len(productIDs) == 0 {
		return nil
	}
	if _, err := t.tx.Exec(ctx, `DELETE FROM cart WHERE user_id=$1 AND product_id = ANY($2)`, userID, productIDs); err != nil {
		return storage("clear cart", err)
	}
	return nil
}

func (t *pgTx) LockOrder(ctx context.Context, id int64) (*Order, error) {
	return scanOrder(t.tx.QueryRow(ctx, `SELECT `+orderColumns+` FROM orders WHERE id=$1 FOR UPDATE`, id))
}

func (t *pgTx) OrderItems(ctx context.Context, orderID int64) ([]OrderItem, error) {
	return queryItems(ctx, t.tx, `WHERE oi.order_id = $1`, orderID)
}

func (t *pgTx) UpdateOrder(ctx context.Context, o *Order) error {
	err := t.tx.QueryRow(ctx, `
		UPDATE orders SET status=$2, decline_reason=NULLIF($3, ''),
			payment_proof_url=NULLIF($4, ''), payment_proof_filename=NULLIF($5, ''), updated_at=now()
		WHERE id=$1
		RETURNING updated_at`,
		o.ID, string(o.Status), o.DeclineReason, o.PaymentProofURL, o.PaymentProofFile,
	).Scan(&o.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return ErrNotFound
	}
	if err != nil {
		return storage("update order", err)
	}
	return nil
}

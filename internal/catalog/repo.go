package catalog

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/ariefcatur/go-shop-backend.git/internal/orders"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

type Repo struct{ DB *pgxpool.Pool }

const productColumns = `p.id, p.category_id, COALESCE(c.name, ''), p.name, COALESCE(p.description, ''), p.price,
	p.stock_quantity, COALESCE(p.image_url, ''), p.is_active, p.created_at, p.updated_at`

const productFrom = `FROM products p LEFT JOIN categories c ON c.id = p.category_id`

func scanProduct(row pgx.Row) (*Product, error) {
	var p Product
	err := row.Scan(&p.ID, &p.CategoryID, &p.CategoryName, &p.Name, &p.Description, &p.Price,
		&p.StockQuantity, &p.ImageURL, &p.IsActive, &p.CreatedAt, &p.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, orders.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("%w: scan product: %v", orders.ErrStorage, err)
	}
	return &p, nil
}

func mapWriteErr(op string, err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case "23505":
			return fmt.Errorf("%w: %s already exists", orders.ErrConflict, strings.TrimSuffix(pgErr.TableName, "s"))
		case "23503":
			return fmt.Errorf("%w: referenced row does not exist", orders.ErrValidation)
		case "23514":
			return fmt.Errorf("%w: %s", orders.ErrValidation, pgErr.ConstraintName)
		}
	}
	return fmt.Errorf("%w: %s: %v", orders.ErrStorage, op, err)
}

func (r *Repo) ListProducts(ctx context.Context, q ProductQuery) (*Page, error) {
	q.normalize()
	where, args := q.where()

	var total int
	if err := r.DB.QueryRow(ctx, `SELECT COUNT(*) `+productFrom+` `+where, args...).Scan(&total); err != nil {
		return nil, fmt.Errorf("%w: count products: %v", orders.ErrStorage, err)
	}

	n := len(args)
	sql := fmt.Sprintf(`SELECT %s %s %s ORDER BY %s LIMIT $%d OFFSET $%d`,
		productColumns, productFrom, where, sortOrders[q.Sort], n+1, n+2)
	rows, err := r.DB.Query(ctx, sql, append(args, q.PerPage, q.offset())...)
	if err != nil {
		return nil, fmt.Errorf("%w: list products: %v", orders.ErrStorage, err)
	}
	defer rows.Close()

	page := &Page{Products: []Product{}, Total: total, Page: q.Page, PerPage: q.PerPage}
	page.TotalPages = (total + q.PerPage - 1) / q.PerPage
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, err
		}
		page.Products = append(page.Products, *p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: list products: %v", orders.ErrStorage, err)
	}
	return page, nil
}

// GetProduct hides inactive products unless includeInactive is set.
func (r *Repo) GetProduct(ctx context.Context, id int64, includeInactive bool) (*Product, error) {
	p, err := scanProduct(r.DB.QueryRow(ctx, `SELECT `+productColumns+` `+productFrom+` WHERE p.id=$1`, id))
	if err != nil {
		return nil, err
	}
	if !p.IsActive && !includeInactive {
		return nil, orders.ErrNotFound
	}
	return p, nil
}

const FeaturedLimit = 8

// Featured picks a random handful of active products for the storefront.
func (r *Repo) Featured(ctx context.Context, limit int) ([]Product, error) {
	if limit <= 0 || limit > MaxPerPage {
		limit = FeaturedLimit
	}
	rows, err := r.DB.Query(ctx, `SELECT `+productColumns+` `+productFrom+`
		WHERE p.is_active ORDER BY random() LIMIT $1`, limit)
	if err != nil {
		return nil, fmt.Errorf("%w: featured products: %v", orders.ErrStorage, err)
	}
	defer rows.Close()

	out := []Product{}
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *p)
	}
	return out, rows.Err()
}

// LowStock returns the products among ids whose stock is at or below threshold.
func (r *Repo) LowStock(ctx context.Context, ids []int64, threshold int) ([]Product, error) {
	rows, err := r.DB.Query(ctx, `SELECT `+productColumns+` `+productFrom+`
		WHERE p.id = ANY($1) AND p.stock_quantity <= $2 ORDER BY p.id`, ids, threshold)
	if err != nil {
		return nil, fmt.Errorf("%w: low stock: %v", orders.ErrStorage, err)
	}
	defer rows.Close()

	var out []Product
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *p)
	}
	return out, rows.Err()
}

func (r *Repo) CreateProduct(ctx context.Context, in ProductInput) (*Product, error) {
	if err := in.validate(); err != nil {
		return nil, err
	}
	var id int64
	err := r.DB.QueryRow(ctx, `
		INSERT INTO products(category_id, name, description, price, stock_quantity, image_url)
		VALUES ($1, $2, NULLIF($3, ''), $4, $5, NULLIF($6, ''))
		RETURNING id`,
		in.CategoryID, strings.TrimSpace(in.Name), in.Description, in.Price, in.StockQuantity, in.ImageURL,
	).Scan(&id)
	if err != nil {
		return nil, mapWriteErr("create product", err)
	}
	return r.GetProduct(ctx, id, true)
}

func (r *Repo) UpdateProduct(ctx context.Context, id int64, patch ProductPatch) (*Product, error) {
	if err := patch.validate(); err != nil {
		return nil, err
	}
	set, args := patch.setClause()
	if set == "" {
		return r.GetProduct(ctx, id, true)
	}
	ct, err := r.DB.Exec(ctx, `UPDATE products SET `+set+`, updated_at = now() WHERE id = $1`, append([]any{id}, args...)...)
	if err != nil {
		return nil, mapWriteErr("update product", err)
	}
	if ct.RowsAffected() == 0 {
		return nil, orders.ErrNotFound
	}
	return r.GetProduct(ctx, id, true)
}

// DeleteProduct removes the product, or deactivates it when order history
// still references it. softDeleted reports which happened.
func (r *Repo) DeleteProduct(ctx context.Context, id int64) (softDeleted bool, err error) {
	tx, err := r.DB.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return false, fmt.Errorf("%w: begin: %v", orders.ErrStorage, err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	var referenced bool
	if err := tx.QueryRow(ctx, `SELECT EXISTS(SELECT 1 FROM order_items WHERE product_id=$1)`, id).Scan(&referenced); err != nil {
		return false, fmt.Errorf("%w: check references: %v", orders.ErrStorage, err)
	}
	var ct pgconn.CommandTag
	if referenced {
		ct, err = tx.Exec(ctx, `UPDATE products SET is_active = FALSE, updated_at = now() WHERE id=$1`, id)
	} else {
		ct, err = tx.Exec(ctx, `DELETE FROM products WHERE id=$1`, id)
	}
	if err != nil {
		return false, mapWriteErr("delete product", err)
	}
	if ct.RowsAffected() == 0 {
		return false, orders.ErrNotFound
	}
	if err := tx.Commit(ctx); err != nil {
		return false, fmt.Errorf("%w: commit: %v", orders.ErrStorage, err)
	}
	return referenced, nil
}

func (r *Repo) ListCategories(ctx context.Context) ([]Category, error) {
	rows, err := r.DB.Query(ctx, `
		SELECT c.id, c.name, COALESCE(c.description, ''), c.created_at,
		       COUNT(p.id) FILTER (WHERE p.is_active)
		FROM categories c LEFT JOIN products p ON p.category_id = c.id
		GROUP BY c.id
		ORDER BY c.name`)
	if err != nil {
		return nil, fmt.Errorf("%w: list categories: %v", orders.ErrStorage, err)
	}
	defer rows.Close()

	out := []Category{}
	for rows.Next() {
		var c Category
		if err := rows.Scan(&c.ID, &c.Name, &c.Description, &c.CreatedAt, &c.ProductCount); err != nil {
			return nil, fmt.Errorf("%w: scan category: %v", orders.ErrStorage, err)
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

func (r *Repo) CreateCategory(ctx context.Context, in CategoryInput) (*Category, error) {
	if err := in.validate(); err != nil {
		return nil, err
	}
	c := Category{Name: strings.TrimSpace(in.Name), Description: in.Description}
	err := r.DB.QueryRow(ctx, `INSERT INTO categories(name, description) VALUES ($1, NULLIF($2, '')) RETURNING id, created_at`,
		c.Name, c.Description).Scan(&c.ID, &c.CreatedAt)
	if err != nil {
		return nil, mapWriteErr("create category", err)
	}
	return &c, nil
}

func (r *Repo) UpdateCategory(ctx context.Context, id int64, in CategoryInput) (*Category, error) {
	if err := in.validate(); err != nil {
		return nil, err
	}
	c := Category{ID: id, Name: strings.TrimSpace(in.Name), Description: in.Description}
	err := r.DB.QueryRow(ctx, `UPDATE categories SET name=$2, description=NULLIF($3, '') WHERE id=$1 RETURNING created_at`,
		id, c.Name, c.Description).Scan(&c.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, orders.ErrNotFound
	}
	if err != nil {
		return nil, mapWriteErr("update category", err)
	}
	return &c, nil
}

// DeleteCategory refuses while active products still use the category.
func (r *Repo) DeleteCategory(ctx context.Context, id int64) error {
	var inUse bool
	if err := r.DB.QueryRow(ctx, `SELECT EXISTS(SELECT 1 FROM products WHERE category_id=$1 AND is_active)`, id).Scan(&inUse); err != nil {
		return fmt.Errorf("%w: check category: %v", orders.ErrStorage, err)
	}
	if inUse {
		return fmt.Errorf("%w: category still has active products", orders.ErrConflict)
	}
	ct, err := r.DB.Exec(ctx, `DELETE FROM categories WHERE id=$1`, id)
	if err != nil {
		return mapWriteErr("delete category", err)
	}
	if ct.RowsAffected() == 0 {
		return orders.ErrNotFound
	}
	return nil
}

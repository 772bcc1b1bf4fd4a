package catalog

import (
	"fmt"
	"strings"

	"github.com/ariefcatur/go-shop-backend.git/internal/orders"
	"github.com/shopspring/decimal"
)

const (
	DefaultPerPage = 12
	MaxPerPage     = 100
)

// sort key -> ORDER BY; anything else falls back to newest.
var sortOrders = map[string]string{
	"newest":     "p.created_at DESC, p.id DESC",
	"price_low":  "p.price ASC, p.id",
	"price_high": "p.price DESC, p.id",
	"name":       "p.name ASC, p.id",
}

type ProductQuery struct {
	CategoryID int64
	Search     string
	MinPrice   *decimal.Decimal
	MaxPrice   *decimal.Decimal
	Sort       string
	Page       int
	PerPage    int
	// IncludeInactive is for admin listings.
	IncludeInactive bool
}

func (q *ProductQuery) normalize() {
	if q.Page < 1 {
		q.Page = 1
	}
	if q.PerPage < 1 {
		q.PerPage = DefaultPerPage
	}
	if q.PerPage > MaxPerPage {
		q.PerPage = MaxPerPage
	}
	if _, ok := sortOrders[q.Sort]; !ok {
		q.Sort = "newest"
	}
	q.Search = strings.TrimSpace(q.Search)
}

func (q ProductQuery) offset() int { return (q.Page - 1) * q.PerPage }

// where builds the filter clause; values always travel as parameters.
func (q ProductQuery) where() (string, []any) {
	var (
		conds []string
		args  []any
	)
	add := func(cond string, v any) {
		args = append(args, v)
		conds = append(conds, fmt.Sprintf(cond, len(args)))
	}
	if !q.IncludeInactive {
		conds = append(conds, "p.is_active")
	}
	if q.CategoryID > 0 {
		add("p.category_id = $%d", q.CategoryID)
	}
	if q.Search != "" {
		add("(p.name ILIKE $%[1]d OR p.description ILIKE $%[1]d)", "%"+escapeLike(q.Search)+"%")
	}
	if q.MinPrice != nil {
		add("p.price >= $%d", *q.MinPrice)
	}
	if q.MaxPrice != nil {
		add("p.price <= $%d", *q.MaxPrice)
	}
	if len(conds) == 0 {
		return "", args
	}
	return "WHERE " + strings.Join(conds, " AND "), args
}

func escapeLike(s string) string {
	return strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`).Replace(s)
}

// setClause turns a patch into "col = $n" pairs. Column names come only from
// this function, never from the request. Parameter numbering starts at 2
// because $1 is the product id.
func (p ProductPatch) setClause() (string, []any) {
	var (
		sets []string
		args []any
	)
	set := func(col string, v any) {
		args = append(args, v)
		sets = append(sets, fmt.Sprintf("%s = $%d", col, len(args)+1))
	}
	if p.CategoryID != nil {
		set("category_id", *p.CategoryID)
	}
	if p.Name != nil {
		set("name", strings.TrimSpace(*p.Name))
	}
	if p.Description != nil {
		set("description", *p.Description)
	}
	if p.Price != nil {
		set("price", *p.Price)
	}
	if p.StockQuantity != nil {
		set("stock_quantity", *p.StockQuantity)
	}
	if p.ImageURL != nil {
		set("image_url", *p.ImageURL)
	}
	if p.IsActive != nil {
		set("is_active", *p.IsActive)
	}
	return strings.Join(sets, ", "), args
}

func (in ProductInput) validate() error {
	return validateProduct(&in.Name, &in.Price, &in.StockQuantity)
}

func (p ProductPatch) validate() error {
	return validateProduct(p.Name, p.Price, p.StockQuantity)
}

func validateProduct(name *string, price *decimal.Decimal, stock *int) error {
	if name != nil {
		n := len(strings.TrimSpace(*name))
		if n == 0 || n > 200 {
			return fmt.Errorf("%w: name must be 1-200 characters", orders.ErrValidation)
		}
	}
	if price != nil && price.IsNegative() {
		return fmt.Errorf("%w: price must not be negative", orders.ErrValidation)
	}
	if stock != nil && *stock < 0 {
		return fmt.Errorf("%w: stock_quantity must not be negative", orders.ErrValidation)
	}
	return nil
}

func (in CategoryInput) validate() error {
	n := len(strings.TrimSpace(in.Name))
	if n == 0 || n > 100 {
		return fmt.Errorf("%w: name must be 1-100 characters", orders.ErrValidation)
	}
	return nil
}

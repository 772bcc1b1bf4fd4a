package catalog

import (
	"testing"

	"github.com/ariefcatur/go-shop-backend.git/internal/orders"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func TestProductQueryNormalize(t *testing.T) {
	q := ProductQuery{Page: 0, PerPage: 1000, Sort: "price; DROP TABLE products", Search: "  mug "}
	q.normalize()

	assert.Equal(t, 1, q.Page)
	assert.Equal(t, MaxPerPage, q.PerPage)
	assert.Equal(t, "newest", q.Sort)
	assert.Equal(t, "mug", q.Search)
	assert.Equal(t, 0, q.offset())

	q = ProductQuery{Page: 3}
	q.normalize()
	assert.Equal(t, DefaultPerPage, q.PerPage)
	assert.Equal(t, 24, q.offset())
}

func TestProductQueryWhere(t *testing.T) {
	lo := decimal.NewFromInt(5)
	hi := decimal.NewFromInt(50)
	q := ProductQuery{CategoryID: 3, Search: "50%_off", MinPrice: &lo, MaxPrice: &hi}

	where, args := q.where()
	assert.Equal(t, "WHERE p.is_active AND p.category_id = $1 AND (p.name ILIKE $2 OR p.description ILIKE $2) AND p.price >= $3 AND p.price <= $4", where)
	assert.Equal(t, []any{int64(3), `%50\%\_off%`, lo, hi}, args)
}

func TestProductQueryWhereAdmin(t *testing.T) {
	where, args := ProductQuery{IncludeInactive: true}.where()
	assert.Empty(t, where)
	assert.Empty(t, args)
}

func TestProductPatchSetClause(t *testing.T) {
	name := " Desk Lamp "
	stock := 7
	active := false
	set, args := ProductPatch{Name: &name, StockQuantity: &stock, IsActive: &active}.setClause()

	assert.Equal(t, "name = $2, stock_quantity = $3, is_active = $4", set)
	assert.Equal(t, []any{"Desk Lamp", 7, false}, args)

	set, args = ProductPatch{}.setClause()
	assert.Empty(t, set)
	assert.Empty(t, args)
}

func TestProductValidation(t *testing.T) {
	neg := decimal.NewFromInt(-1)
	negStock := -2
	blank := " "

	assert.ErrorIs(t, ProductInput{Name: "", Price: decimal.NewFromInt(1)}.validate(), orders.ErrValidation)
	assert.ErrorIs(t, ProductInput{Name: "Mug", Price: neg}.validate(), orders.ErrValidation)
	assert.NoError(t, ProductInput{Name: "Mug", Price: decimal.RequireFromString("4.50"), StockQuantity: 3}.validate())

	assert.ErrorIs(t, ProductPatch{StockQuantity: &negStock}.validate(), orders.ErrValidation)
	assert.ErrorIs(t, ProductPatch{Name: &blank}.validate(), orders.ErrValidation)
	assert.NoError(t, ProductPatch{}.validate())

	assert.ErrorIs(t, CategoryInput{Name: ""}.validate(), orders.ErrValidation)
	assert.NoError(t, CategoryInput{Name: "Books"}.validate())
}

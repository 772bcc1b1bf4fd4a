package postgres_test

import (
	"context"
	"os"
	"testing"

	"github.com/ariefcatur/go-shop-backend.git/internal/cart"
	"github.com/ariefcatur/go-shop-backend.git/internal/catalog"
	"github.com/ariefcatur/go-shop-backend.git/internal/logger"
	"github.com/ariefcatur/go-shop-backend.git/internal/orders"
	"github.com/ariefcatur/go-shop-backend.git/internal/postgres"
	"github.com/ariefcatur/go-shop-backend.git/internal/users"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

// testDB connects to POSTGRES_DSN, applies the schema and empties every
// table. The tests in this package share one database and must not run in
// parallel.
func testDB(t *testing.T) *pgxpool.Pool {
	t.Helper()
	dsn := os.Getenv("POSTGRES_DSN")
	if dsn == "" {
		t.Skip("POSTGRES_DSN not set; skipping database test")
	}
	ctx := context.Background()
	db, err := postgres.Connect(ctx, dsn, 16)
	require.NoError(t, err)
	t.Cleanup(db.Close)

	require.NoError(t, postgres.Migrate(ctx, db))
	require.NoError(t, postgres.Migrate(ctx, db), "schema must be re-appliable")
	_, err = db.Exec(ctx, `TRUNCATE order_items, orders, cart, products, categories, users RESTART IDENTITY CASCADE`)
	require.NoError(t, err)
	return db
}

type shop struct {
	db      *pgxpool.Pool
	orders  *orders.Repo
	svc     *orders.Service
	cart    *cart.Repo
	catalog *catalog.Repo
	users   *users.Repo
}

func newShop(t *testing.T) *shop {
	t.Helper()
	db := testDB(t)
	repo := &orders.Repo{DB: db}
	return &shop{
		db:      db,
		orders:  repo,
		svc:     orders.NewService(repo, nil, logger.Nop()),
		cart:    &cart.Repo{DB: db},
		catalog: &catalog.Repo{DB: db},
		users:   &users.Repo{DB: db},
	}
}

func (s *shop) user(t *testing.T, name string) int64 {
	t.Helper()
	u, err := s.users.Register(context.Background(), users.RegisterInput{
		Username: name, Email: name + "@example.com", Password: "rahasia", FirstName: name,
	})
	require.NoError(t, err)
	return u.ID
}

func (s *shop) product(t *testing.T, name, price string, stock int) int64 {
	t.Helper()
	p, err := s.catalog.CreateProduct(context.Background(), catalog.ProductInput{
		Name: name, Price: decimal.RequireFromString(price), StockQuantity: stock,
	})
	require.NoError(t, err)
	return p.ID
}

func (s *shop) stock(t *testing.T, productID int64) int {
	t.Helper()
	var n int
	require.NoError(t, s.db.QueryRow(context.Background(), `SELECT stock_quantity FROM products WHERE id=$1`, productID).Scan(&n))
	return n
}

// reserved sums the quantities held by orders that have not given their
// stock back.
func (s *shop) reserved(t *testing.T, productID int64) int {
	t.Helper()
	var n int
	require.NoError(t, s.db.QueryRow(context.Background(), `
		SELECT COALESCE(SUM(oi.quantity), 0)
		FROM order_items oi JOIN orders o ON o.id = oi.order_id
		WHERE oi.product_id = $1 AND o.status NOT IN ('cancelled', 'declined')`, productID).Scan(&n))
	return n
}

func (s *shop) cartQty(t *testing.T, userID, productID int64) int {
	t.Helper()
	var n int
	require.NoError(t, s.db.QueryRow(context.Background(),
		`SELECT COALESCE((SELECT quantity FROM cart WHERE user_id=$1 AND product_id=$2), 0)`, userID, productID).Scan(&n))
	return n
}

func (s *shop) place(ctx context.Context, userID int64, ids ...int64) (*orders.Order, error) {
	return s.svc.PlaceOrder(ctx, orders.PlaceOrderInput{
		UserID:          userID,
		ShippingAddress: "Jl. Gatot Subroto 12",
		PaymentMethod:   orders.PaymentCashOnDelivery,
		ProductIDs:      ids,
	})
}

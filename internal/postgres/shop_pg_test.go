package postgres_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/ariefcatur/go-shop-backend.git/internal/catalog"
	"github.com/ariefcatur/go-shop-backend.git/internal/orders"
	"github.com/ariefcatur/go-shop-backend.git/internal/reports"
	"github.com/ariefcatur/go-shop-backend.git/internal/users"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCartStockBoundPostgres(t *testing.T) {
	s := newShop(t)
	ctx := context.Background()
	keyboard := s.product(t, "Keyboard", "19.99", 5)
	alice := s.user(t, "alice")

	qty, err := s.cart.Add(ctx, alice, keyboard, 3)
	require.NoError(t, err)
	assert.Equal(t, 3, qty)

	_, err = s.cart.Add(ctx, alice, keyboard, 3)
	var se *orders.StockError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, 6, se.Required)
	assert.Equal(t, 5, se.Available)
	assert.Equal(t, 3, s.cartQty(t, alice, keyboard), "rejected add must not change the entry")

	qty, err = s.cart.Add(ctx, alice, keyboard, 2)
	require.NoError(t, err)
	assert.Equal(t, 5, qty)

	_, err = s.cart.SetQuantity(ctx, alice, keyboard, 6)
	assert.ErrorIs(t, err, orders.ErrInsufficientStock)
	qty, err = s.cart.SetQuantity(ctx, alice, keyboard, 2)
	require.NoError(t, err)
	assert.Equal(t, 2, qty)

	c, err := s.cart.Get(ctx, alice)
	require.NoError(t, err)
	require.Len(t, c.Items, 1)
	assert.Equal(t, "39.98", c.Subtotal.StringFixed(2))
	assert.Equal(t, 1, c.ItemCount)
}

func TestCartSetQuantityZeroRemovesPostgres(t *testing.T) {
	s := newShop(t)
	ctx := context.Background()
	keyboard := s.product(t, "Keyboard", "19.99", 5)
	alice := s.user(t, "alice")

	_, err := s.cart.Add(ctx, alice, keyboard, 2)
	require.NoError(t, err)
	qty, err := s.cart.SetQuantity(ctx, alice, keyboard, 0)
	require.NoError(t, err)
	assert.Zero(t, qty)

	c, err := s.cart.Get(ctx, alice)
	require.NoError(t, err)
	assert.Empty(t, c.Items)
	assert.True(t, c.Subtotal.IsZero())

	_, err = s.cart.SetQuantity(ctx, alice, keyboard, 0)
	assert.ErrorIs(t, err, orders.ErrNotFound)
	_, err = s.cart.SetQuantity(ctx, alice, keyboard, 1)
	assert.ErrorIs(t, err, orders.ErrNotFound, "set on a missing entry must not create it")
	assert.ErrorIs(t, s.cart.Remove(ctx, alice, keyboard), orders.ErrNotFound)
}

// Cart writes and checkout lock the cart row before the product row; the
// other order would deadlock here and surface as a storage error.
func TestCartWritesRaceCheckoutWithoutDeadlock(t *testing.T) {
	s := newShop(t)
	ctx := context.Background()
	keyboard := s.product(t, "Keyboard", "19.99", 1000)
	alice := s.user(t, "alice")

	for round := 0; round < 20; round++ {
		_, err := s.cart.Add(ctx, alice, keyboard, 1)
		require.NoError(t, err)

		var wg sync.WaitGroup
		var addErr, placeErr error
		wg.Add(2)
		go func() {
			defer wg.Done()
			_, addErr = s.cart.Add(ctx, alice, keyboard, 1)
		}()
		go func() {
			defer wg.Done()
			_, placeErr = s.place(ctx, alice)
		}()
		wg.Wait()

		require.NoError(t, addErr, "round %d", round)
		if placeErr != nil && !errors.Is(placeErr, orders.ErrEmptySelection) {
			t.Fatalf("round %d: %v", round, placeErr)
		}
		require.NoError(t, s.cart.Clear(ctx, alice))
	}
	assert.Equal(t, 1000, s.stock(t, keyboard)+s.reserved(t, keyboard))
}

func TestCartRejectsInactiveProductPostgres(t *testing.T) {
	s := newShop(t)
	ctx := context.Background()
	keyboard := s.product(t, "Keyboard", "19.99", 5)
	alice := s.user(t, "alice")
	inactive := false
	_, err := s.catalog.UpdateProduct(ctx, keyboard, catalog.ProductPatch{IsActive: &inactive})
	require.NoError(t, err)

	_, err = s.cart.Add(ctx, alice, keyboard, 1)
	assert.ErrorIs(t, err, orders.ErrNotFound)
	_, err = s.cart.Add(ctx, alice, 9999, 1)
	assert.ErrorIs(t, err, orders.ErrNotFound)
}

func TestUsersPostgres(t *testing.T) {
	s := newShop(t)
	ctx := context.Background()
	alice := s.user(t, "alice")

	_, err := s.users.Register(ctx, users.RegisterInput{
		Username: "alice", Email: "other@example.com", Password: "rahasia", FirstName: "A",
	})
	assert.ErrorIs(t, err, orders.ErrConflict)
	_, err = s.users.Register(ctx, users.RegisterInput{
		Username: "alice2", Email: "ALICE@example.com", Password: "rahasia", FirstName: "A",
	})
	assert.ErrorIs(t, err, orders.ErrConflict, "emails are stored lower-cased")

	taken, err := s.users.Exists(ctx, users.FieldUsername, "alice")
	require.NoError(t, err)
	assert.True(t, taken)
	taken, err = s.users.Exists(ctx, users.FieldUsername, "nobody")
	require.NoError(t, err)
	assert.False(t, taken)
	taken, err = s.users.Exists(ctx, users.FieldEmail, " Alice@Example.com ")
	require.NoError(t, err)
	assert.True(t, taken)

	u, err := s.users.Login(ctx, "alice", "rahasia")
	require.NoError(t, err)
	assert.Equal(t, alice, u.ID)
	_, err = s.users.Login(ctx, "alice", "salah123")
	assert.ErrorIs(t, err, users.ErrBadCredentials)
	_, err = s.users.Login(ctx, "nobody", "rahasia")
	assert.ErrorIs(t, err, users.ErrBadCredentials)

	require.NoError(t, s.users.ResetPassword(ctx, alice, "baru1234"))
	_, err = s.users.Login(ctx, "alice", "baru1234")
	require.NoError(t, err)

	_, err = s.users.SetActive(ctx, alice, false)
	require.NoError(t, err)
	_, err = s.users.Login(ctx, "alice", "baru1234")
	assert.ErrorIs(t, err, users.ErrBadCredentials)

	admin := s.user(t, "admin")
	_, err = s.db.Exec(ctx, `UPDATE users SET is_admin = TRUE WHERE id=$1`, admin)
	require.NoError(t, err)
	_, err = s.users.SetActive(ctx, admin, false)
	assert.ErrorIs(t, err, orders.ErrConflict)
	assert.ErrorIs(t, s.users.ResetPassword(ctx, admin, "baru1234"), orders.ErrConflict)
	_, err = s.users.SetActive(ctx, 9999, false)
	assert.ErrorIs(t, err, orders.ErrNotFound)

	keyboard := s.product(t, "Keyboard", "19.99", 5)
	bob := s.user(t, "bobby")
	_, err = s.cart.Add(ctx, bob, keyboard, 1)
	require.NoError(t, err)
	_, err = s.place(ctx, bob)
	require.NoError(t, err)

	customers, err := s.users.ListCustomers(ctx)
	require.NoError(t, err)
	require.Len(t, customers, 2, "admins are not listed")
	counts := map[string]int{}
	for _, c := range customers {
		counts[c.Username] = c.OrderCount
	}
	assert.Equal(t, map[string]int{"alice": 0, "bobby": 1}, counts)
}

func TestCatalogPostgres(t *testing.T) {
	s := newShop(t)
	ctx := context.Background()
	keyboard := s.product(t, "Keyboard", "19.99", 5)
	mouse := s.product(t, "Mouse", "0.10", 2)
	cable := s.product(t, "Cable", "3.00", 9)
	inactive := false
	_, err := s.catalog.UpdateProduct(ctx, cable, catalog.ProductPatch{IsActive: &inactive})
	require.NoError(t, err)

	featured, err := s.catalog.Featured(ctx, 0)
	require.NoError(t, err)
	ids := []int64{}
	for _, p := range featured {
		ids = append(ids, p.ID)
	}
	assert.ElementsMatch(t, []int64{keyboard, mouse}, ids)

	one, err := s.catalog.Featured(ctx, 1)
	require.NoError(t, err)
	assert.Len(t, one, 1)

	page, err := s.catalog.ListProducts(ctx, catalog.ProductQuery{Search: "key"})
	require.NoError(t, err)
	require.Len(t, page.Products, 1)
	assert.Equal(t, keyboard, page.Products[0].ID)

	low, err := s.catalog.LowStock(ctx, []int64{keyboard, mouse}, 2)
	require.NoError(t, err)
	require.Len(t, low, 1)
	assert.Equal(t, mouse, low[0].ID)

	alice := s.user(t, "alice")
	_, err = s.cart.Add(ctx, alice, keyboard, 1)
	require.NoError(t, err)
	_, err = s.place(ctx, alice)
	require.NoError(t, err)

	soft, err := s.catalog.DeleteProduct(ctx, keyboard)
	require.NoError(t, err)
	assert.True(t, soft, "ordered products are only deactivated")
	p, err := s.catalog.GetProduct(ctx, keyboard, true)
	require.NoError(t, err)
	assert.False(t, p.IsActive)
	_, err = s.catalog.GetProduct(ctx, keyboard, false)
	assert.ErrorIs(t, err, orders.ErrNotFound)

	soft, err = s.catalog.DeleteProduct(ctx, mouse)
	require.NoError(t, err)
	assert.False(t, soft)
	_, err = s.catalog.GetProduct(ctx, mouse, true)
	assert.ErrorIs(t, err, orders.ErrNotFound)
}

func TestReportsPostgres(t *testing.T) {
	s := newShop(t)
	ctx := context.Background()
	rep := &reports.Repo{DB: s.db}
	keyboard := s.product(t, "Keyboard", "10.00", 10)
	mouse := s.product(t, "Mouse", "2.50", 10)

	place := func(name string, qty int) *orders.Order {
		t.Helper()
		u := s.user(t, name)
		_, err := s.cart.Add(ctx, u, keyboard, qty)
		require.NoError(t, err)
		_, err = s.cart.Add(ctx, u, mouse, 1)
		require.NoError(t, err)
		o, err := s.place(ctx, u)
		require.NoError(t, err)
		return o
	}
	approved := place("alice", 2)
	_, err := s.svc.ApproveOrder(ctx, approved.ID)
	require.NoError(t, err)
	place("bobby", 1)
	cancelled := place("carol", 3)
	_, err = s.svc.CancelOrder(ctx, cancelled.ID, cancelled.UserID)
	require.NoError(t, err)

	now := time.Now()
	sales, err := rep.Sales(ctx, reports.Range{Period: "custom", Start: now.Add(-time.Hour), End: now.Add(time.Hour)})
	require.NoError(t, err)
	assert.Equal(t, 1, sales.OrderCount, "only approved orders count as sales")
	assert.Equal(t, "22.50", sales.TotalSales.StringFixed(2))
	require.Len(t, sales.Products, 2)
	assert.Equal(t, keyboard, sales.Products[0].ProductID)
	assert.Equal(t, 2, sales.Products[0].Quantity)

	past, err := rep.Sales(ctx, reports.Range{Start: now.Add(-48 * time.Hour), End: now.Add(-24 * time.Hour)})
	require.NoError(t, err)
	assert.Zero(t, past.OrderCount)
	assert.Empty(t, past.Products)

	d, err := rep.Dashboard(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, d.TotalProducts)
	assert.Equal(t, 3, d.TotalOrders)
	assert.Equal(t, 1, d.PendingOrders)
	assert.Equal(t, 3, d.TotalCustomers)
	assert.Equal(t, "22.50", d.Revenue.StringFixed(2))
	require.Len(t, d.RecentOrders, 3)
	assert.Equal(t, cancelled.ID, d.RecentOrders[0].ID)
	assert.Equal(t, "carol", d.RecentOrders[0].Username)
	assert.Equal(t, orders.StatusCancelled, d.RecentOrders[0].Status)
}

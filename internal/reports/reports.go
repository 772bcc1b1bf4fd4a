package reports

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"time"

	"github.com/ariefcatur/go-shop-backend.git/internal/orders"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
)

const (
	PeriodDaily   = "daily"
	PeriodWeekly  = "weekly"
	PeriodMonthly = "monthly"
	PeriodDefault = "last_30_days"
)

// Range is half-open: Start <= t < End.
type Range struct {
	Period string    `json:"period"`
	Start  time.Time `json:"start"`
	End    time.Time `json:"end"`
}

// RangeFor resolves a period name against now, in now's location.
// Unknown names fall back to the last 30 days including today.
func RangeFor(period string, now time.Time) Range {
	y, m, d := now.Date()
	today := time.Date(y, m, d, 0, 0, 0, 0, now.Location())
	tomorrow := today.AddDate(0, 0, 1)

	switch period {
	case PeriodDaily:
		return Range{Period: period, Start: today, End: tomorrow}
	case PeriodWeekly:
		// minggu mulai hari Senin
		back := (int(today.Weekday()) + 6) % 7
		start := today.AddDate(0, 0, -back)
		return Range{Period: period, Start: start, End: start.AddDate(0, 0, 7)}
	case PeriodMonthly:
		start := time.Date(y, m, 1, 0, 0, 0, 0, now.Location())
		return Range{Period: period, Start: start, End: start.AddDate(0, 1, 0)}
	default:
		return Range{Period: PeriodDefault, Start: tomorrow.AddDate(0, 0, -30), End: tomorrow}
	}
}

type ProductSales struct {
	ProductID int64           `json:"product_id"`
	Name      string          `json:"name"`
	Quantity  int             `json:"quantity"`
	Revenue   decimal.Decimal `json:"revenue"`
}

type Report struct {
	Range
	TotalSales decimal.Decimal `json:"total_sales"`
	OrderCount int             `json:"order_count"`
	Products   []ProductSales  `json:"products"`
}

type Repo struct{ DB *pgxpool.Pool }

func salesStatuses() []string {
	ss := orders.SalesStatuses()
	out := make([]string, len(ss))
	for i, s := range ss {
		out[i] = string(s)
	}
	return out
}

func (r *Repo) Sales(ctx context.Context, rg Range) (*Report, error) {
	rep := &Report{Range: rg, TotalSales: decimal.Zero, Products: []ProductSales{}}
	statuses := salesStatuses()

	err := r.DB.QueryRow(ctx, `
		SELECT COALESCE(SUM(total_amount), 0), COUNT(*)
		FROM orders
		WHERE status = ANY($1) AND created_at >= $2 AND created_at < $3`,
		statuses, rg.Start, rg.End).Scan(&rep.TotalSales, &rep.OrderCount)
	if err != nil {
		return nil, fmt.Errorf("%w: sales totals: %v", orders.ErrStorage, err)
	}

	rows, err := r.DB.Query(ctx, `
		SELECT oi.product_id, p.name, SUM(oi.quantity), SUM(oi.price_at_time * oi.quantity)
		FROM order_items oi
		JOIN orders o ON o.id = oi.order_id
		JOIN products p ON p.id = oi.product_id
		WHERE o.status = ANY($1) AND o.created_at >= $2 AND o.created_at < $3
		GROUP BY oi.product_id, p.name
		ORDER BY 4 DESC, oi.product_id`,
		statuses, rg.Start, rg.End)
	if err != nil {
		return nil, fmt.Errorf("%w: product sales: %v", orders.ErrStorage, err)
	}
	defer rows.Close()
	for rows.Next() {
		var ps ProductSales
		if err := rows.Scan(&ps.ProductID, &ps.Name, &ps.Quantity, &ps.Revenue); err != nil {
			return nil, fmt.Errorf("%w: scan product sales: %v", orders.ErrStorage, err)
		}
		rep.Products = append(rep.Products, ps)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: product sales: %v", orders.ErrStorage, err)
	}
	return rep, nil
}

type RecentOrder struct {
	ID          int64           `json:"id"`
	OrderNumber string          `json:"order_number"`
	Username    string          `json:"username"`
	Status      orders.Status   `json:"status"`
	TotalAmount decimal.Decimal `json:"total_amount"`
	CreatedAt   time.Time       `json:"created_at"`
}

// Dashboard is the admin landing summary. Revenue counts the same statuses
// as Sales, over all time.
type Dashboard struct {
	TotalProducts  int             `json:"total_products"`
	TotalOrders    int             `json:"total_orders"`
	PendingOrders  int             `json:"pending_orders"`
	TotalCustomers int             `json:"total_customers"`
	Revenue        decimal.Decimal `json:"revenue"`
	RecentOrders   []RecentOrder   `json:"recent_orders"`
}

const recentOrderCount = 10

func (r *Repo) Dashboard(ctx context.Context) (*Dashboard, error) {
	d := &Dashboard{RecentOrders: []RecentOrder{}}
	err := r.DB.QueryRow(ctx, `
		SELECT
			(SELECT COUNT(*) FROM products),
			(SELECT COUNT(*) FROM orders),
			(SELECT COUNT(*) FROM orders WHERE status = $1),
			(SELECT COUNT(*) FROM users WHERE NOT is_admin),
			(SELECT COALESCE(SUM(total_amount), 0) FROM orders WHERE status = ANY($2))`,
		string(orders.StatusPending), salesStatuses(),
	).Scan(&d.TotalProducts, &d.TotalOrders, &d.PendingOrders, &d.TotalCustomers, &d.Revenue)
	if err != nil {
		return nil, fmt.Errorf("%w: dashboard counts: %v", orders.ErrStorage, err)
	}

	rows, err := r.DB.Query(ctx, `
		SELECT o.id, o.order_number, u.username, o.status, o.total_amount, o.created_at
		FROM orders o JOIN users u ON u.id = o.user_id
		ORDER BY o.created_at DESC, o.id DESC
		LIMIT $1`, recentOrderCount)
	if err != nil {
		return nil, fmt.Errorf("%w: recent orders: %v", orders.ErrStorage, err)
	}
	defer rows.Close()
	for rows.Next() {
		var ro RecentOrder
		if err := rows.Scan(&ro.ID, &ro.OrderNumber, &ro.Username, &ro.Status, &ro.TotalAmount, &ro.CreatedAt); err != nil {
			return nil, fmt.Errorf("%w: scan recent order: %v", orders.ErrStorage, err)
		}
		d.RecentOrders = append(d.RecentOrders, ro)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: recent orders: %v", orders.ErrStorage, err)
	}
	return d, nil
}

// WriteCSV writes a summary block followed by one row per product.
func WriteCSV(w io.Writer, rep *Report) error {
	cw := csv.NewWriter(w)
	const day = "2006-01-02"
	records := [][]string{
		{"period", rep.Period},
		{"start", rep.Start.Format(day)},
		{"end", rep.End.Format(day)},
		{"total_sales", rep.TotalSales.StringFixed(2)},
		{"order_count", fmt.Sprint(rep.OrderCount)},
		{},
		{"product_id", "name", "quantity", "revenue"},
	}
	for _, p := range rep.Products {
		records = append(records, []string{fmt.Sprint(p.ProductID), p.Name, fmt.Sprint(p.Quantity), p.Revenue.StringFixed(2)})
	}
	if err := cw.WriteAll(records); err != nil {
		return fmt.Errorf("write csv: %w", err)
	}
	return nil
}

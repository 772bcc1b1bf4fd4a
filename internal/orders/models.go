package orders

import (
	"time"

	"github.com/shopspring/decimal"
)

type Order struct {
	ID               int64           `json:"id"`
	UserID           int64           `json:"user_id"`
	OrderNumber      string          `json:"order_number"`
	TotalAmount      decimal.Decimal `json:"total_amount"`
	ShippingAddress  string          `json:"shipping_address"`
	PaymentMethod    PaymentMethod   `json:"payment_method"`
	Status           Status          `json:"status"` // lihat status.go
	DeclineReason    string          `json:"decline_reason,omitempty"`
	PaymentProofURL  string          `json:"payment_proof_url,omitempty"`
	PaymentProofFile string          `json:"payment_proof_filename,omitempty"`
	Items            []OrderItem     `json:"items,omitempty"`
	CreatedAt        time.Time       `json:"created_at"`
	UpdatedAt        time.Time       `json:"updated_at"`
}

type OrderItem struct {
	ID          int64           `json:"id"`
	OrderID     int64           `json:"order_id"`
	ProductID   int64           `json:"product_id"`
	ProductName string          `json:"name,omitempty"`
	Quantity    int             `json:"quantity"`
	PriceAtTime decimal.Decimal `json:"price_at_time"`
}

// LineTotal is the price snapshot times quantity.
func (it OrderItem) LineTotal() decimal.Decimal {
	return it.PriceAtTime.Mul(decimal.NewFromInt(int64(it.Quantity)))
}

// CartLine is a cart entry joined with the product columns checkout needs.
type CartLine struct {
	UserID        int64
	ProductID     int64
	ProductName   string
	Quantity      int
	UnitPrice     decimal.Decimal
	StockQuantity int
	IsActive      bool
}

// PaymentProof references a stored upload.
type PaymentProof struct {
	URL      string `json:"payment_proof_url"`
	Filename string `json:"filename"`
}

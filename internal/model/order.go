package model

import (
	"time"
)

// GuestUserID is the buyer reference for checkouts started without a login.
const GuestUserID = "guest"

type OrderStatus string

const (
	StatusPending    OrderStatus = "pending"
	StatusProcessing OrderStatus = "processing"
	StatusPaid       OrderStatus = "paid"
	StatusFailed     OrderStatus = "failed"
)

func (s OrderStatus) Valid() bool {
	switch s {
	case StatusPending, StatusProcessing, StatusPaid, StatusFailed:
		return true
	}
	return false
}

type OrderItem struct {
	ProductID      string `json:"product_id"`
	Name           string `json:"name"`
	Quantity       int64  `json:"quantity"`
	UnitPriceCents int64  `json:"unit_price_cents"`
	// LineTotalCents is what the provider charged for the line. It can differ
	// from Quantity*UnitPriceCents by the unit price rounding.
	LineTotalCents int64  `json:"line_total_cents"`
}

// Total is the charged line amount, or quantity × unit price for items
// recorded without one.
func (it OrderItem) Total() int64 {
	if it.LineTotalCents > 0 {
		return it.LineTotalCents
	}
	return it.Quantity * it.UnitPriceCents
}

// Order is keyed by the payment provider's checkout session id.
type Order struct {
	ID              string      `json:"id"`
	UserID          string      `json:"user_id"`
	Items           []OrderItem `json:"items"`
	TotalCents      int64       `json:"total_cents"`
	Currency        string      `json:"currency"`
	Status          OrderStatus `json:"status"`
	ShippingAddress *Address    `json:"shipping_address,omitempty"`
	CustomerEmail   string      `json:"customer_email,omitempty"`
	CustomerName    string      `json:"customer_name,omitempty"`
	CreatedAt       time.Time   `json:"created_at"`
	UpdatedAt       time.Time   `json:"updated_at"`
}

// ItemsTotalCents sums the line totals of the stored items.
func (o *Order) ItemsTotalCents() int64 {
	var sum int64
	for _, it := range o.Items {
		sum += it.Total()
	}
	return sum
}

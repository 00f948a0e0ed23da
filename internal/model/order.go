package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// OrderStatus is the lifecycle state of a customer order.
type OrderStatus string

const (
	OrderCompleted OrderStatus = "completed"
	OrderCancelled OrderStatus = "cancelled"
	OrderPending   OrderStatus = "pending"
)

// Order represents a row in orders.csv.
type Order struct {
	ID            string
	CustomerID    string
	Date          time.Time
	Timestamp     time.Time
	Amount        decimal.Decimal
	PaymentMethod string
	Status        OrderStatus
}

// RefundStatus is the lifecycle state of a refund.
type RefundStatus string

const (
	RefundApproved  RefundStatus = "approved"
	RefundCompleted RefundStatus = "completed"
	RefundPending   RefundStatus = "pending"
	RefundRejected  RefundStatus = "rejected"
)

// Refund represents a row in refunds.csv. Only approved or completed
// refunds reduce an order's net value.
type Refund struct {
	ID        string
	OrderID   string
	Date      time.Time
	Timestamp time.Time
	Amount    decimal.Decimal
	Reason    string
	Status    RefundStatus
}

// CountsTowardNet reports whether this refund reduces the order's net value.
func (r Refund) CountsTowardNet() bool {
	return r.Status == RefundApproved || r.Status == RefundCompleted
}

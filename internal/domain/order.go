package domain

import "time"

// OrderStatus enumerates order fulfilment states.
type OrderStatus string

const (
	OrderStatusPending   OrderStatus = "PENDING"
	OrderStatusPaid      OrderStatus = "PAID"
	OrderStatusShipped   OrderStatus = "SHIPPED"
	OrderStatusDelivered OrderStatus = "DELIVERED"
	OrderStatusCancelled OrderStatus = "CANCELLED"
)

// Order is the commerce entity tickets attach to. The support core only
// reads it to validate ownership; order mutation lives outside this
// service.
type Order struct {
	ID         string
	UserID     string
	TotalCents int64
	Status     OrderStatus
	CreatedAt  time.Time
}

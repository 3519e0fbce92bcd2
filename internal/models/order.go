package models

// OrderSide represents the order side
type OrderSide string

const (
	OrderSideBuy  OrderSide = "buy"
	OrderSideSell OrderSide = "sell"
)

// OrderStatus represents the order status as it moves through the
// execution state machine. The terminal states are never left.
type OrderStatus string

const (
	OrderStatusOpen     OrderStatus = "open"
	OrderStatusClosed   OrderStatus = "closed"
	OrderStatusFilled   OrderStatus = "filled"
	OrderStatusCanceled OrderStatus = "canceled"
	OrderStatusRejected OrderStatus = "rejected"
	OrderStatusTimedOut OrderStatus = "timed_out"
	OrderStatusError    OrderStatus = "error"
)

// Order is the normalized view of an exchange order. It is created on
// placement and mutated only by the monitoring loop that owns it.
type Order struct {
	ID               string      `json:"id"`
	Symbol           string      `json:"symbol"`
	Side             OrderSide   `json:"side"`
	Amount           float64     `json:"amount"`
	Price            float64     `json:"price,omitempty"`
	Status           OrderStatus `json:"status"`
	AverageFillPrice float64     `json:"average_fill_price"`
	FilledQuantity   float64     `json:"filled_quantity"`
	Timestamp        int64       `json:"timestamp"`
}

// IsTerminal reports whether no further status transition can occur.
func (o *Order) IsTerminal() bool {
	switch o.Status {
	case OrderStatusClosed, OrderStatusFilled, OrderStatusCanceled,
		OrderStatusRejected, OrderStatusTimedOut, OrderStatusError:
		return true
	}
	return false
}

// IsFilled reports whether the order ended with executed quantity.
func (o *Order) IsFilled() bool {
	return (o.Status == OrderStatusClosed || o.Status == OrderStatusFilled) &&
		o.FilledQuantity > 0
}

// PositionSide derives the position direction from the order side.
func (o *Order) PositionSide() string {
	if o.Side == OrderSideBuy {
		return "long"
	}
	return "short"
}

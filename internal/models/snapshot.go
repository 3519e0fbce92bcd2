package models

import (
	"time"
)

// OrderBookSnapshot is a persisted point-in-time copy of an order book,
// captured by the recorder job. Bid and ask levels are stored as JSON.
type OrderBookSnapshot struct {
	ID         uint      `gorm:"primaryKey" json:"id"`
	Exchange   string    `gorm:"size:30;not null;index:idx_snapshots_market" json:"exchange"`
	Symbol     string    `gorm:"size:20;not null;index:idx_snapshots_market" json:"symbol"`
	Bids       string    `gorm:"type:text;not null" json:"bids"`
	Asks       string    `gorm:"type:text;not null" json:"asks"`
	CapturedAt time.Time `gorm:"index" json:"captured_at"`
}

// TableName specifies the table name for OrderBookSnapshot model
func (OrderBookSnapshot) TableName() string {
	return "orderbook_snapshots"
}

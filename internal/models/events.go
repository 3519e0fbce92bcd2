package models

// EventStatus marks the pipeline stage an outbound event belongs to.
type EventStatus string

const (
	StatusProcessing EventStatus = "processing"
	StatusPlaced     EventStatus = "placed"
	StatusFilled     EventStatus = "filled"
	StatusClosed     EventStatus = "closed"
	StatusCanceled   EventStatus = "canceled"
	StatusRejected   EventStatus = "rejected"
	StatusError      EventStatus = "error"
	StatusMonitoring EventStatus = "monitoring"
	StatusStopped    EventStatus = "stopped"
	StatusCompleted  EventStatus = "completed"
)

// EventPayload is the stage-specific result of a request.
type EventPayload struct {
	Action  Action      `json:"action"`
	Status  EventStatus `json:"status"`
	Data    interface{} `json:"data,omitempty"`
	Message string      `json:"message,omitempty"`
}

// Envelope addresses an event payload to the user who submitted the
// originating request, regardless of which worker produced it.
type Envelope struct {
	UserID  string       `json:"user_id"`
	Payload EventPayload `json:"payload"`
}

// PnLSnapshot is one point-in-time unrealized-PnL observation for a
// filled position.
type PnLSnapshot struct {
	AccountLabel   string  `json:"account_label"`
	Symbol         string  `json:"symbol"`
	EntryTimestamp int64   `json:"entry_timestamp"`
	EntryPrice     float64 `json:"entry_price"`
	Quantity       float64 `json:"quantity"`
	PositionSide   string  `json:"position_side"`
	CurrentPrice   float64 `json:"current_price"`
	NetPnL         float64 `json:"net_pnl"`
}

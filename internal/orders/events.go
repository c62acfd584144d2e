package orders

import "time"

// EventOrderConfirmed is the event_type attribute of a ConfirmedEvent message.
const EventOrderConfirmed = "order_confirmed"

// ConfirmedEvent is the payload sent from API -> SQS -> worker after a commit.
type ConfirmedEvent struct {
	OrderID       int64     `json:"order_id"`
	CorrelationID string    `json:"correlation_id,omitempty"`
	ConfirmedAt   time.Time `json:"confirmed_at"`
}

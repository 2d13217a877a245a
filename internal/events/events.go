package events

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"storefront/internal/model"
)

const (
	EventOrderPaid = "OrderPaid"
	Producer       = "storefront-api"
)

type Envelope struct {
	EventID       string          `json:"event_id"`
	EventType     string          `json:"event_type"`
	EventVersion  int             `json:"event_version"`
	OccurredAt    time.Time       `json:"occurred_at"`
	Producer      string          `json:"producer"`
	CorrelationID string          `json:"correlation_id,omitempty"`
	Payload       json.RawMessage `json:"payload"`
}

type OrderPaidPayload struct {
	OrderID       string            `json:"order_id"`
	UserID        string            `json:"user_id"`
	Items         []model.OrderItem `json:"items"`
	TotalCents    int64             `json:"total_cents"`
	Currency      string            `json:"currency"`
	CustomerEmail string            `json:"customer_email,omitempty"`
}

func NewOrderPaid(o *model.Order) (Envelope, error) {
	payload, err := json.Marshal(OrderPaidPayload{
		OrderID:       o.ID,
		UserID:        o.UserID,
		Items:         o.Items,
		TotalCents:    o.TotalCents,
		Currency:      o.Currency,
		CustomerEmail: o.CustomerEmail,
	})
	if err != nil {
		return Envelope{}, fmt.Errorf("encode payload: %w", err)
	}
	return Envelope{
		EventID:       uuid.NewString(),
		EventType:     EventOrderPaid,
		EventVersion:  1,
		OccurredAt:    time.Now().UTC(),
		Producer:      Producer,
		CorrelationID: o.ID,
		Payload:       payload,
	}, nil
}

package events

import (
	"context"
	"time"

	"rental-reservation-backend/internal/logger"

	"github.com/google/uuid"
)

const (
	TypeReservationCreated      = "reservation.created"
	TypeReservationTransitioned = "reservation.transitioned"
	TypeReservationRescheduled  = "reservation.rescheduled"
	TypeStockChanged            = "stock.changed"
	TypeCheckoutCompleted       = "checkout.completed"
)

type Event struct {
	ID         string    `json:"event_id"`
	Type       string    `json:"event_type"`
	Key        string    `json:"aggregate_id"`
	OccurredAt time.Time `json:"occurred_at"`
	Payload    any       `json:"data"`
}

func New(eventType, key string, payload any) Event {
	return Event{
		ID:         uuid.NewString(),
		Type:       eventType,
		Key:        key,
		OccurredAt: time.Now().UTC(),
		Payload:    payload,
	}
}

// Publisher delivers domain events. Callers treat failures as best effort.
type Publisher interface {
	Publish(ctx context.Context, event Event) error
	Close() error
}

type logPublisher struct{}

// NewLogPublisher writes events to the debug log; used when no brokers are configured.
func NewLogPublisher() Publisher { return logPublisher{} }

func (logPublisher) Publish(ctx context.Context, event Event) error {
	logger.DebugContext(ctx, "Domain event", "event_type", event.Type, "key", event.Key, "event_id", event.ID)
	return nil
}

func (logPublisher) Close() error { return nil }

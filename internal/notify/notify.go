// Package notify carries lifecycle and payment transitions to the
// notification channel. Dispatch is best-effort: a failed publish is
// logged and dropped, never rolled back into the state mutation that
// produced it.
package notify

import (
	"context"
	"log"
	"time"
)

type Audience string

const (
	AudienceOperator Audience = "operator"
	AudienceCustomer Audience = "customer"
)

const (
	EventOrderCreated  = "order.created"
	EventOrderStatus   = "order.status_changed"
	EventPaymentUpdate = "payment.updated"
)

type Event struct {
	Event         string    `json:"event"`
	Audience      Audience  `json:"audience"`
	OrderID       uint      `json:"order_id"`
	OrderNumber   string    `json:"order_number"`
	OrderStatus   string    `json:"order_status,omitempty"`
	PaymentStatus string    `json:"payment_status,omitempty"`
	Total         int64     `json:"total,omitempty"`
	Message       string    `json:"message,omitempty"`
	OccurredAt    time.Time `json:"occurred_at"`
}

type Dispatcher interface {
	Dispatch(ctx context.Context, ev Event)
}

// LogDispatcher is the fallback when no broker is configured.
type LogDispatcher struct{}

func (LogDispatcher) Dispatch(ctx context.Context, ev Event) {
	log.Printf("notify [%s] %s order=%s status=%s payment=%s",
		ev.Audience, ev.Event, ev.OrderNumber, ev.OrderStatus, ev.PaymentStatus)
}

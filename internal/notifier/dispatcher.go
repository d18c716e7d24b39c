package notifier

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/omnibank/backoffice/internal/usecases"
)

// Broadcaster pushes an event to connected admin dashboards.
type Broadcaster interface {
	Broadcast(payload []byte)
}

// Dispatcher fans a committed transition out to the customer (email) and to
// connected dashboards (websocket). Delivery is best effort: the transition
// is already committed, so failures are logged and never propagated. The
// durable path to the event bus goes through the outbox relay instead.
type Dispatcher struct {
	logger      *slog.Logger
	email       *EmailClient
	broadcaster Broadcaster
}

func NewDispatcher(logger *slog.Logger, email *EmailClient, broadcaster Broadcaster) *Dispatcher {
	return &Dispatcher{logger: logger, email: email, broadcaster: broadcaster}
}

func (d *Dispatcher) Notify(ctx context.Context, event usecases.TransitionEvent) {
	if d.broadcaster != nil {
		payload, err := json.Marshal(event)
		if err != nil {
			d.logger.ErrorContext(ctx, "Failed to marshal event for broadcast", "error", err)
		} else {
			d.broadcaster.Broadcast(payload)
		}
	}

	if d.email == nil || event.OwnerEmail == "" {
		return
	}

	subject, body := composeEmail(event)
	if err := d.email.Send(ctx, event.OwnerEmail, subject, body); err != nil {
		d.logger.ErrorContext(ctx, "Failed to send notification email",
			"error", err,
			"entity_type", event.EntityType,
			"entity_id", event.EntityID,
			"to", event.OwnerEmail)
	}
}

func composeEmail(event usecases.TransitionEvent) (string, string) {
	entity := strings.ReplaceAll(event.EntityType, "_", " ")

	subject := fmt.Sprintf("Your %s #%d is now %s", entity, event.EntityID, event.NewStatus)
	if event.Action == "payment" {
		subject = fmt.Sprintf("Payment received on %s #%d", entity, event.EntityID)
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Hello,\n\n")
	if event.Action == "payment" {
		fmt.Fprintf(&b, "We recorded a payment of %s %s on your %s #%d.\n",
			event.Amount, event.Currency, entity, event.EntityID)
	} else {
		fmt.Fprintf(&b, "The status of your %s #%d changed from %s to %s.\n",
			entity, event.EntityID, event.PreviousStatus, event.NewStatus)
	}
	if event.Reason != "" {
		fmt.Fprintf(&b, "Reason: %s\n", event.Reason)
	}
	fmt.Fprintf(&b, "\nIf you did not expect this change, please contact support.\n")

	return subject, b.String()
}

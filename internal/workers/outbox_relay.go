package workers

import (
	"context"
	"log/slog"
	"time"

	"github.com/omnibank/backoffice/internal/entities"
	"github.com/omnibank/backoffice/internal/usecases"
)

// Publisher delivers one outbox payload to the event bus.
type Publisher interface {
	Publish(ctx context.Context, key string, payload []byte) error
}

// OutboxStore is the portion of the outbox repository the relay needs.
// MarkFailed keeps the event pending for retry until maxAttempts deliveries
// have failed.
type OutboxStore interface {
	FetchPending(ctx context.Context, limit int) ([]entities.OutboxEvent, error)
	MarkProcessed(ctx context.Context, id string) error
	MarkFailed(ctx context.Context, id string, maxAttempts int) error
}

// OutboxRelay worker drains pending outbox events to the event bus. Each
// batch is claimed inside one transaction, so concurrent relay instances do
// not double-publish.
type OutboxRelay struct {
	logger     *slog.Logger
	transactor usecases.Transactor
	outbox     OutboxStore
	publisher  Publisher

	// How often to poll for pending events
	pollInterval time.Duration

	// Maximum events drained per poll
	batchSize int

	// Deliveries to attempt before an event is parked as failed
	maxAttempts int
}

func NewOutboxRelay(
	logger *slog.Logger,
	transactor usecases.Transactor,
	outbox OutboxStore,
	publisher Publisher,
	pollInterval time.Duration,
	batchSize int,
	maxAttempts int,
) *OutboxRelay {
	return &OutboxRelay{
		logger:       logger,
		transactor:   transactor,
		outbox:       outbox,
		publisher:    publisher,
		pollInterval: pollInterval,
		batchSize:    batchSize,
		maxAttempts:  maxAttempts,
	}
}

// Start begins the periodic draining of the outbox.
func (w *OutboxRelay) Start(ctx context.Context) {
	w.logger.Info("Starting outbox relay worker",
		"poll_interval", w.pollInterval.String(),
		"batch_size", w.batchSize)

	// Drain anything left over from before the last shutdown
	if err := w.drain(ctx); err != nil {
		w.logger.Error("Initial outbox drain failed", "error", err)
	}

	ticker := time.NewTicker(w.pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			w.logger.Info("Outbox relay worker stopped")
			return
		case <-ticker.C:
			if err := w.drain(ctx); err != nil {
				w.logger.Error("Outbox drain failed", "error", err)
			}
		}
	}
}

func (w *OutboxRelay) drain(ctx context.Context) error {
	return w.transactor.WithinTransaction(ctx, func(txCtx context.Context) error {
		events, err := w.outbox.FetchPending(txCtx, w.batchSize)
		if err != nil {
			return err
		}
		if len(events) == 0 {
			return nil
		}

		published := 0
		for _, event := range events {
			if err = w.publisher.Publish(txCtx, event.Type, event.Payload); err != nil {
				w.logger.Error("Failed to publish outbox event",
					"error", err,
					"event_id", event.ID,
					"event_type", event.Type)
				if err = w.outbox.MarkFailed(txCtx, event.ID, w.maxAttempts); err != nil {
					return err
				}
				continue
			}

			if err = w.outbox.MarkProcessed(txCtx, event.ID); err != nil {
				return err
			}
			published++
		}

		if published > 0 {
			w.logger.Info("Published outbox events", "count", published)
		}

		return nil
	})
}

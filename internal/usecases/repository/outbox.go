package repository

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	tx "github.com/Thiht/transactor/pgx"
	"github.com/jackc/pgx/v5"

	"github.com/omnibank/backoffice/internal/entities"
	"github.com/omnibank/backoffice/pkg/database"
)

type OutboxRepository struct {
	logger *slog.Logger
	db     tx.DBGetter
}

func NewOutboxRepository(logger *slog.Logger, pg *database.Postgres) *OutboxRepository {
	return &OutboxRepository{logger: logger, db: pg.DBGetter}
}

func (r *OutboxRepository) Enqueue(ctx context.Context, event *entities.OutboxEvent) error {
	_, err := r.db(ctx).Exec(ctx,
		`INSERT INTO outbox_events (id, type, payload, status, attempts, created_at)
         VALUES ($1, $2, $3, $4, 0, $5)`,
		event.ID, event.Type, event.Payload, event.Status, event.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to enqueue outbox event: %w", err)
	}
	return nil
}

// FetchPending claims a batch of pending events with SKIP LOCKED so multiple
// relay instances never pick up the same event.
func (r *OutboxRepository) FetchPending(ctx context.Context, limit int) ([]entities.OutboxEvent, error) {
	query := `SELECT id, type, payload, status, attempts, created_at, processed_at
                FROM outbox_events
               WHERE status = 'pending'
               ORDER BY created_at
               LIMIT $1
                 FOR UPDATE SKIP LOCKED`

	rows, err := r.db(ctx).Query(ctx, query, limit)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query pending outbox events: %w", err)
	}

	events, err := pgx.CollectRows(rows, pgx.RowToStructByName[entities.OutboxEvent])
	if err != nil {
		r.logger.Error("failed to collect outbox rows", "error", err)
		return nil, err
	}

	return events, nil
}

func (r *OutboxRepository) MarkProcessed(ctx context.Context, id string) error {
	_, err := r.db(ctx).Exec(ctx,
		`UPDATE outbox_events
            SET status = 'processed', processed_at = NOW(), attempts = attempts + 1
          WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to mark outbox event processed: %w", err)
	}
	return nil
}

// MarkFailed counts one failed delivery. The event stays pending so the next
// poll retries it; only past maxAttempts is it parked as failed.
func (r *OutboxRepository) MarkFailed(ctx context.Context, id string, maxAttempts int) error {
	_, err := r.db(ctx).Exec(ctx,
		`UPDATE outbox_events
            SET attempts = attempts + 1,
                status = CASE WHEN attempts + 1 >= $2 THEN 'failed' ELSE 'pending' END
          WHERE id = $1`, id, maxAttempts)
	if err != nil {
		return fmt.Errorf("failed to mark outbox event failed: %w", err)
	}
	return nil
}

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

type AuditRepository struct {
	logger *slog.Logger
	db     tx.DBGetter
}

func NewAuditRepository(logger *slog.Logger, pg *database.Postgres) *AuditRepository {
	return &AuditRepository{logger: logger, db: pg.DBGetter}
}

func (r *AuditRepository) Record(ctx context.Context, record *entities.AuditRecord) error {
	_, err := r.db(ctx).Exec(ctx,
		`INSERT INTO audit_log (actor, entity_type, entity_id, action, from_status, to_status, reason, created_at)
         VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		record.Actor, record.EntityType, record.EntityID, record.Action,
		record.FromStatus, record.ToStatus, record.Reason, record.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to insert audit record: %w", err)
	}
	return nil
}

func (r *AuditRepository) ListByEntity(ctx context.Context, entityType string, entityID int64) ([]entities.AuditRecord, error) {
	query := `SELECT id, actor, entity_type, entity_id, action, from_status, to_status, reason, created_at
                FROM audit_log
               WHERE entity_type = $1 AND entity_id = $2
               ORDER BY id`

	rows, err := r.db(ctx).Query(ctx, query, entityType, entityID)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query audit records: %w", err)
	}

	records, err := pgx.CollectRows(rows, pgx.RowToStructByName[entities.AuditRecord])
	if err != nil {
		r.logger.Error("failed to collect audit rows", "error", err)
		return nil, err
	}

	return records, nil
}

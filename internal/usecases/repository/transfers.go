package repository

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	sq "github.com/Masterminds/squirrel"
	tx "github.com/Thiht/transactor/pgx"
	"github.com/jackc/pgx/v5"
	"go.openly.dev/pointy"

	"github.com/omnibank/backoffice/internal/entities"
	"github.com/omnibank/backoffice/internal/transitions"
	"github.com/omnibank/backoffice/internal/usecases"
	"github.com/omnibank/backoffice/pkg/database"
)

const transferColumns = `id, owner_id, account_id, amount, fee, currency, beneficiary, beneficiary_iban, swift_code,
       status, status_reason, status_notes, updated_by,
       approved_at, rejected_at, completed_at, cancelled_at, reversed_at, created_at, updated_at`

// Status timestamps recorded per reached status.
var transferTimestamps = map[transitions.Status]string{
	transitions.StatusProcessing: "approved_at",
	transitions.StatusRejected:   "rejected_at",
	transitions.StatusCompleted:  "completed_at",
	transitions.StatusCancelled:  "cancelled_at",
	transitions.StatusReversed:   "reversed_at",
}

type TransfersRepository struct {
	logger *slog.Logger
	db     tx.DBGetter
}

func NewTransfersRepository(logger *slog.Logger, pg *database.Postgres) *TransfersRepository {
	return &TransfersRepository{logger: logger, db: pg.DBGetter}
}

func (r *TransfersRepository) GetByID(ctx context.Context, id int64) (*entities.WireTransfer, error) {
	query := fmt.Sprintf(`SELECT %s FROM wire_transfers WHERE id = $1`, transferColumns)

	rows, err := r.db(ctx).Query(ctx, query, id)
	if err != nil {
		return nil, fmt.Errorf("failed to query wire transfer by id: %w", err)
	}

	transfer, err := pgx.CollectOneRow(rows, pgx.RowToStructByName[entities.WireTransfer])
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to collect wire transfer row: %w", err)
	}

	return &transfer, nil
}

func (r *TransfersRepository) FindEntity(ctx context.Context, id int64) (*usecases.EntitySnapshot, error) {
	query := `SELECT t.id, t.owner_id, COALESCE(c.email, ''), t.account_id, t.status, t.amount, t.fee, t.currency
                FROM wire_transfers t
                LEFT JOIN customers c ON c.id = t.owner_id
               WHERE t.id = $1`

	var snapshot usecases.EntitySnapshot
	err := r.db(ctx).QueryRow(ctx, query, id).Scan(
		&snapshot.ID,
		&snapshot.OwnerID,
		&snapshot.OwnerEmail,
		&snapshot.AccountID,
		&snapshot.Status,
		&snapshot.Amount,
		&snapshot.Fee,
		&snapshot.Currency,
	)

	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query wire transfer snapshot: %w", err)
	}

	return &snapshot, nil
}

// UpdateEntityStatus applies the status change only if the row still holds
// the expected status. Zero rows affected means a concurrent transition won.
func (r *TransfersRepository) UpdateEntityStatus(ctx context.Context, id int64, expected, next transitions.Status, meta usecases.TransitionMeta) (bool, error) {
	now := time.Now().UTC()

	builder := sq.Update("wire_transfers").
		Set("status", string(next)).
		Set("status_reason", meta.Reason).
		Set("status_notes", meta.Notes).
		Set("updated_by", meta.Actor).
		Set("updated_at", now).
		Where(sq.Eq{"id": id, "status": string(expected)}).
		PlaceholderFormat(sq.Dollar)

	if column, ok := transferTimestamps[next]; ok {
		builder = builder.Set(column, pointy.Pointer(now))
	}

	query, args, err := builder.ToSql()
	if err != nil {
		return false, fmt.Errorf("failed to build status update: %w", err)
	}

	tag, err := r.db(ctx).Exec(ctx, query, args...)
	if err != nil {
		return false, fmt.Errorf("failed to update wire transfer status: %w", err)
	}

	return tag.RowsAffected() > 0, nil
}

func (r *TransfersRepository) List(ctx context.Context, filter usecases.TransferFilter) ([]entities.WireTransfer, error) {
	limit := filter.Limit
	if limit == 0 {
		limit = 100
	}

	builder := sq.Select(transferColumns).
		From("wire_transfers").
		OrderBy("id DESC").
		Limit(limit).
		PlaceholderFormat(sq.Dollar)

	if filter.Status != "" {
		builder = builder.Where(sq.Eq{"status": filter.Status})
	}
	if filter.OwnerID != 0 {
		builder = builder.Where(sq.Eq{"owner_id": filter.OwnerID})
	}

	query, args, err := builder.ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build transfer listing: %w", err)
	}

	rows, err := r.db(ctx).Query(ctx, query, args...)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query wire transfers: %w", err)
	}

	transfers, err := pgx.CollectRows(rows, pgx.RowToStructByName[entities.WireTransfer])
	if err != nil {
		r.logger.Error("failed to collect wire transfer rows", "error", err)
		return nil, err
	}

	return transfers, nil
}

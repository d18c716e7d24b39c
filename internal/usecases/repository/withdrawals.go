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

const withdrawalColumns = `id, owner_id, account_id, amount, method, destination,
       status, status_reason, status_notes, updated_by,
       approved_at, rejected_at, completed_at, created_at, updated_at`

var withdrawalTimestamps = map[transitions.Status]string{
	transitions.StatusApproved:  "approved_at",
	transitions.StatusRejected:  "rejected_at",
	transitions.StatusCompleted: "completed_at",
}

type WithdrawalsRepository struct {
	logger *slog.Logger
	db     tx.DBGetter
}

func NewWithdrawalsRepository(logger *slog.Logger, pg *database.Postgres) *WithdrawalsRepository {
	return &WithdrawalsRepository{logger: logger, db: pg.DBGetter}
}

func (r *WithdrawalsRepository) GetByID(ctx context.Context, id int64) (*entities.Withdrawal, error) {
	query := fmt.Sprintf(`SELECT %s FROM withdrawals WHERE id = $1`, withdrawalColumns)

	rows, err := r.db(ctx).Query(ctx, query, id)
	if err != nil {
		return nil, fmt.Errorf("failed to query withdrawal by id: %w", err)
	}

	withdrawal, err := pgx.CollectOneRow(rows, pgx.RowToStructByName[entities.Withdrawal])
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to collect withdrawal row: %w", err)
	}

	return &withdrawal, nil
}

// FindEntity fills the currency from the account: withdrawals are always
// denominated in the source account's currency.
func (r *WithdrawalsRepository) FindEntity(ctx context.Context, id int64) (*usecases.EntitySnapshot, error) {
	query := `SELECT w.id, w.owner_id, COALESCE(c.email, ''), w.account_id, w.status, w.amount,
                     COALESCE(a.currency, '')
                FROM withdrawals w
                LEFT JOIN customers c ON c.id = w.owner_id
                LEFT JOIN accounts a ON a.id = w.account_id
               WHERE w.id = $1`

	var snapshot usecases.EntitySnapshot
	err := r.db(ctx).QueryRow(ctx, query, id).Scan(
		&snapshot.ID,
		&snapshot.OwnerID,
		&snapshot.OwnerEmail,
		&snapshot.AccountID,
		&snapshot.Status,
		&snapshot.Amount,
		&snapshot.Currency,
	)

	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query withdrawal snapshot: %w", err)
	}

	return &snapshot, nil
}

func (r *WithdrawalsRepository) UpdateEntityStatus(ctx context.Context, id int64, expected, next transitions.Status, meta usecases.TransitionMeta) (bool, error) {
	now := time.Now().UTC()

	builder := sq.Update("withdrawals").
		Set("status", string(next)).
		Set("status_reason", meta.Reason).
		Set("status_notes", meta.Notes).
		Set("updated_by", meta.Actor).
		Set("updated_at", now).
		Where(sq.Eq{"id": id, "status": string(expected)}).
		PlaceholderFormat(sq.Dollar)

	if column, ok := withdrawalTimestamps[next]; ok {
		builder = builder.Set(column, pointy.Pointer(now))
	}

	query, args, err := builder.ToSql()
	if err != nil {
		return false, fmt.Errorf("failed to build status update: %w", err)
	}

	tag, err := r.db(ctx).Exec(ctx, query, args...)
	if err != nil {
		return false, fmt.Errorf("failed to update withdrawal status: %w", err)
	}

	return tag.RowsAffected() > 0, nil
}

func (r *WithdrawalsRepository) List(ctx context.Context, filter usecases.WithdrawalFilter) ([]entities.Withdrawal, error) {
	limit := filter.Limit
	if limit == 0 {
		limit = 100
	}

	builder := sq.Select(withdrawalColumns).
		From("withdrawals").
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
		return nil, fmt.Errorf("failed to build withdrawal listing: %w", err)
	}

	rows, err := r.db(ctx).Query(ctx, query, args...)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query withdrawals: %w", err)
	}

	withdrawals, err := pgx.CollectRows(rows, pgx.RowToStructByName[entities.Withdrawal])
	if err != nil {
		r.logger.Error("failed to collect withdrawal rows", "error", err)
		return nil, err
	}

	return withdrawals, nil
}

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

const depositColumns = `id, owner_id, account_id, asset, tx_hash, from_address, amount,
       status, status_reason, status_notes, updated_by,
       confirmed_at, rejected_at, reversed_at, created_at, updated_at`

var depositTimestamps = map[transitions.Status]string{
	transitions.StatusConfirmed: "confirmed_at",
	transitions.StatusRejected:  "rejected_at",
	transitions.StatusReversed:  "reversed_at",
}

type DepositsRepository struct {
	logger *slog.Logger
	db     tx.DBGetter
}

func NewDepositsRepository(logger *slog.Logger, pg *database.Postgres) *DepositsRepository {
	return &DepositsRepository{logger: logger, db: pg.DBGetter}
}

func (r *DepositsRepository) GetByID(ctx context.Context, id int64) (*entities.CryptoDeposit, error) {
	query := fmt.Sprintf(`SELECT %s FROM crypto_deposits WHERE id = $1`, depositColumns)

	rows, err := r.db(ctx).Query(ctx, query, id)
	if err != nil {
		return nil, fmt.Errorf("failed to query crypto deposit by id: %w", err)
	}

	deposit, err := pgx.CollectOneRow(rows, pgx.RowToStructByName[entities.CryptoDeposit])
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to collect crypto deposit row: %w", err)
	}

	return &deposit, nil
}

func (r *DepositsRepository) FindEntity(ctx context.Context, id int64) (*usecases.EntitySnapshot, error) {
	query := `SELECT d.id, d.owner_id, COALESCE(c.email, ''), d.account_id, d.status, d.amount, d.asset
                FROM crypto_deposits d
                LEFT JOIN customers c ON c.id = d.owner_id
               WHERE d.id = $1`

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
		return nil, fmt.Errorf("failed to query crypto deposit snapshot: %w", err)
	}

	return &snapshot, nil
}

func (r *DepositsRepository) UpdateEntityStatus(ctx context.Context, id int64, expected, next transitions.Status, meta usecases.TransitionMeta) (bool, error) {
	now := time.Now().UTC()

	builder := sq.Update("crypto_deposits").
		Set("status", string(next)).
		Set("status_reason", meta.Reason).
		Set("status_notes", meta.Notes).
		Set("updated_by", meta.Actor).
		Set("updated_at", now).
		Where(sq.Eq{"id": id, "status": string(expected)}).
		PlaceholderFormat(sq.Dollar)

	if column, ok := depositTimestamps[next]; ok {
		builder = builder.Set(column, pointy.Pointer(now))
	}

	query, args, err := builder.ToSql()
	if err != nil {
		return false, fmt.Errorf("failed to build status update: %w", err)
	}

	tag, err := r.db(ctx).Exec(ctx, query, args...)
	if err != nil {
		return false, fmt.Errorf("failed to update crypto deposit status: %w", err)
	}

	return tag.RowsAffected() > 0, nil
}

func (r *DepositsRepository) List(ctx context.Context, filter usecases.DepositFilter) ([]entities.CryptoDeposit, error) {
	limit := filter.Limit
	if limit == 0 {
		limit = 100
	}

	builder := sq.Select(depositColumns).
		From("crypto_deposits").
		OrderBy("id DESC").
		Limit(limit).
		PlaceholderFormat(sq.Dollar)

	if filter.Status != "" {
		builder = builder.Where(sq.Eq{"status": filter.Status})
	}
	if filter.OwnerID != 0 {
		builder = builder.Where(sq.Eq{"owner_id": filter.OwnerID})
	}
	if filter.Asset != "" {
		builder = builder.Where(sq.Eq{"asset": filter.Asset})
	}

	query, args, err := builder.ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build deposit listing: %w", err)
	}

	rows, err := r.db(ctx).Query(ctx, query, args...)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query crypto deposits: %w", err)
	}

	deposits, err := pgx.CollectRows(rows, pgx.RowToStructByName[entities.CryptoDeposit])
	if err != nil {
		r.logger.Error("failed to collect crypto deposit rows", "error", err)
		return nil, err
	}

	return deposits, nil
}

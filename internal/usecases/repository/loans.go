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
	"github.com/shopspring/decimal"
	"go.openly.dev/pointy"

	"github.com/omnibank/backoffice/internal/entities"
	"github.com/omnibank/backoffice/internal/transitions"
	"github.com/omnibank/backoffice/internal/usecases"
	"github.com/omnibank/backoffice/pkg/database"
)

const loanColumns = `id, owner_id, account_id, principal, remaining_balance, monthly_payment,
       annual_rate, term_months, status, status_reason, status_notes, updated_by,
       approved_at, rejected_at, closed_at, created_at, updated_at`

var loanTimestamps = map[transitions.Status]string{
	transitions.StatusActive:   "approved_at",
	transitions.StatusRejected: "rejected_at",
	transitions.StatusClosed:   "closed_at",
}

type LoansRepository struct {
	logger *slog.Logger
	db     tx.DBGetter
}

func NewLoansRepository(logger *slog.Logger, pg *database.Postgres) *LoansRepository {
	return &LoansRepository{logger: logger, db: pg.DBGetter}
}

func (r *LoansRepository) GetByID(ctx context.Context, id int64) (*entities.Loan, error) {
	query := fmt.Sprintf(`SELECT %s FROM loans WHERE id = $1`, loanColumns)

	rows, err := r.db(ctx).Query(ctx, query, id)
	if err != nil {
		return nil, fmt.Errorf("failed to query loan by id: %w", err)
	}

	loan, err := pgx.CollectOneRow(rows, pgx.RowToStructByName[entities.Loan])
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to collect loan row: %w", err)
	}

	return &loan, nil
}

// FindEntity exposes the principal as the snapshot amount: approving a
// pending loan credits the disbursement to the customer account. Loans have
// no currency of their own, so the account's currency fills the snapshot.
func (r *LoansRepository) FindEntity(ctx context.Context, id int64) (*usecases.EntitySnapshot, error) {
	query := `SELECT l.id, l.owner_id, COALESCE(c.email, ''), l.account_id, l.status, l.principal,
                     COALESCE(a.currency, '')
                FROM loans l
                LEFT JOIN customers c ON c.id = l.owner_id
                LEFT JOIN accounts a ON a.id = l.account_id
               WHERE l.id = $1`

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
		return nil, fmt.Errorf("failed to query loan snapshot: %w", err)
	}

	return &snapshot, nil
}

func (r *LoansRepository) UpdateEntityStatus(ctx context.Context, id int64, expected, next transitions.Status, meta usecases.TransitionMeta) (bool, error) {
	now := time.Now().UTC()

	builder := sq.Update("loans").
		Set("status", string(next)).
		Set("status_reason", meta.Reason).
		Set("status_notes", meta.Notes).
		Set("updated_by", meta.Actor).
		Set("updated_at", now).
		Where(sq.Eq{"id": id, "status": string(expected)}).
		PlaceholderFormat(sq.Dollar)

	if column, ok := loanTimestamps[next]; ok {
		builder = builder.Set(column, pointy.Pointer(now))
	}

	query, args, err := builder.ToSql()
	if err != nil {
		return false, fmt.Errorf("failed to build status update: %w", err)
	}

	tag, err := r.db(ctx).Exec(ctx, query, args...)
	if err != nil {
		return false, fmt.Errorf("failed to update loan status: %w", err)
	}

	return tag.RowsAffected() > 0, nil
}

func (r *LoansRepository) List(ctx context.Context, filter usecases.LoanFilter) ([]entities.Loan, error) {
	limit := filter.Limit
	if limit == 0 {
		limit = 100
	}

	builder := sq.Select(loanColumns).
		From("loans").
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
		return nil, fmt.Errorf("failed to build loan listing: %w", err)
	}

	rows, err := r.db(ctx).Query(ctx, query, args...)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query loans: %w", err)
	}

	loans, err := pgx.CollectRows(rows, pgx.RowToStructByName[entities.Loan])
	if err != nil {
		r.logger.Error("failed to collect loan rows", "error", err)
		return nil, err
	}

	return loans, nil
}

func (r *LoansRepository) FindPaymentByKey(ctx context.Context, loanID int64, key string) (*entities.LoanPayment, error) {
	query := `SELECT id, loan_id, amount, interest_amount, principal_amount, balance_after,
                     idempotency_key, recorded_by, created_at
                FROM loan_payments
               WHERE loan_id = $1 AND idempotency_key = $2`

	rows, err := r.db(ctx).Query(ctx, query, loanID, key)
	if err != nil {
		return nil, fmt.Errorf("failed to query loan payment by key: %w", err)
	}

	payment, err := pgx.CollectOneRow(rows, pgx.RowToStructByName[entities.LoanPayment])
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to collect loan payment row: %w", err)
	}

	return &payment, nil
}

func (r *LoansRepository) InsertPayment(ctx context.Context, payment *entities.LoanPayment) (int64, error) {
	var id int64
	err := r.db(ctx).QueryRow(ctx,
		`INSERT INTO loan_payments (loan_id, amount, interest_amount, principal_amount, balance_after,
                                    idempotency_key, recorded_by, created_at)
         VALUES ($1, $2, $3, $4, $5, $6, $7, NOW())
      RETURNING id`,
		payment.LoanID, payment.Amount, payment.InterestAmount, payment.PrincipalAmount,
		payment.BalanceAfter, payment.IdempotencyKey, payment.RecordedBy).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("failed to insert loan payment: %w", err)
	}
	return id, nil
}

// UpdateRemainingBalance succeeds only if the stored balance still equals the
// expected value, so two concurrent payments cannot both apply their split.
func (r *LoansRepository) UpdateRemainingBalance(ctx context.Context, loanID int64, expected, next decimal.Decimal) (bool, error) {
	tag, err := r.db(ctx).Exec(ctx,
		`UPDATE loans SET remaining_balance = $1, updated_at = NOW()
          WHERE id = $2 AND remaining_balance = $3`,
		next, loanID, expected)
	if err != nil {
		return false, fmt.Errorf("failed to update remaining balance: %w", err)
	}
	return tag.RowsAffected() > 0, nil
}

func (r *LoansRepository) ListPayments(ctx context.Context, loanID int64) ([]entities.LoanPayment, error) {
	query := `SELECT id, loan_id, amount, interest_amount, principal_amount, balance_after,
                     idempotency_key, recorded_by, created_at
                FROM loan_payments
               WHERE loan_id = $1
               ORDER BY id`

	rows, err := r.db(ctx).Query(ctx, query, loanID)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query loan payments: %w", err)
	}

	payments, err := pgx.CollectRows(rows, pgx.RowToStructByName[entities.LoanPayment])
	if err != nil {
		r.logger.Error("failed to collect loan payment rows", "error", err)
		return nil, err
	}

	return payments, nil
}

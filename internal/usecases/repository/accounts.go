package repository

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	tx "github.com/Thiht/transactor/pgx"
	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"

	"github.com/omnibank/backoffice/internal/entities"
	"github.com/omnibank/backoffice/pkg/database"
)

// AccountsRepository persists accounts and their ledger entries. It is the
// postgres implementation of ledger.Store: the row lock taken by
// GetAccountForUpdate holds until the transaction carried by ctx commits.
type AccountsRepository struct {
	logger *slog.Logger
	db     tx.DBGetter
}

func NewAccountsRepository(logger *slog.Logger, pg *database.Postgres) *AccountsRepository {
	return &AccountsRepository{logger: logger, db: pg.DBGetter}
}

func (r *AccountsRepository) GetByID(ctx context.Context, id int64) (*entities.Account, error) {
	query := `SELECT id, owner_id, number, currency, balance, status, created_at, updated_at
                FROM accounts
               WHERE id = $1`

	var account entities.Account
	err := r.db(ctx).QueryRow(ctx, query, id).Scan(
		&account.ID,
		&account.OwnerID,
		&account.Number,
		&account.Currency,
		&account.Balance,
		&account.Status,
		&account.CreatedAt,
		&account.UpdatedAt,
	)

	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query account by id: %w", err)
	}

	return &account, nil
}

// GetAccountForUpdate loads the account with a FOR UPDATE row lock so
// concurrent mutations on the same account serialize on the database.
func (r *AccountsRepository) GetAccountForUpdate(ctx context.Context, accountID int64) (*entities.Account, error) {
	query := `SELECT id, owner_id, number, currency, balance, status, created_at, updated_at
                FROM accounts
               WHERE id = $1
                 FOR UPDATE`

	var account entities.Account
	err := r.db(ctx).QueryRow(ctx, query, accountID).Scan(
		&account.ID,
		&account.OwnerID,
		&account.Number,
		&account.Currency,
		&account.Balance,
		&account.Status,
		&account.CreatedAt,
		&account.UpdatedAt,
	)

	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to lock account for update: %w", err)
	}

	return &account, nil
}

func (r *AccountsRepository) UpdateBalance(ctx context.Context, accountID int64, balance decimal.Decimal) error {
	_, err := r.db(ctx).Exec(ctx,
		"UPDATE accounts SET balance = $1, updated_at = NOW() WHERE id = $2",
		balance, accountID)
	if err != nil {
		return fmt.Errorf("failed to update account balance: %w", err)
	}
	return nil
}

func (r *AccountsRepository) FindEntryByReference(ctx context.Context, accountID int64, reference string) (*entities.LedgerEntry, error) {
	query := `SELECT id, account_id, amount, balance_before, balance_after, status, reference, reason, created_at
                FROM ledger_entries
               WHERE account_id = $1 AND reference = $2`

	var entry entities.LedgerEntry
	err := r.db(ctx).QueryRow(ctx, query, accountID, reference).Scan(
		&entry.ID,
		&entry.AccountID,
		&entry.Amount,
		&entry.BalanceBefore,
		&entry.BalanceAfter,
		&entry.Status,
		&entry.Reference,
		&entry.Reason,
		&entry.CreatedAt,
	)

	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query ledger entry by reference: %w", err)
	}

	return &entry, nil
}

func (r *AccountsRepository) InsertEntry(ctx context.Context, entry *entities.LedgerEntry) (int64, error) {
	var id int64
	err := r.db(ctx).QueryRow(ctx,
		`INSERT INTO ledger_entries (account_id, amount, balance_before, balance_after, status, reference, reason, created_at)
         VALUES ($1, $2, $3, $4, $5, $6, $7, NOW())
      RETURNING id`,
		entry.AccountID, entry.Amount, entry.BalanceBefore, entry.BalanceAfter,
		entry.Status, entry.Reference, entry.Reason).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("failed to insert ledger entry: %w", err)
	}
	return id, nil
}

func (r *AccountsRepository) ListEntries(ctx context.Context, accountID int64, limit uint64) ([]entities.LedgerEntry, error) {
	if limit == 0 {
		limit = 100
	}

	query := `SELECT id, account_id, amount, balance_before, balance_after, status, reference, reason, created_at
                FROM ledger_entries
               WHERE account_id = $1
               ORDER BY id DESC
               LIMIT $2`

	rows, err := r.db(ctx).Query(ctx, query, accountID, limit)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query ledger entries: %w", err)
	}

	entries, err := pgx.CollectRows(rows, pgx.RowToStructByName[entities.LedgerEntry])
	if err != nil {
		r.logger.Error("failed to collect ledger entry rows", "error", err)
		return nil, err
	}

	return entries, nil
}

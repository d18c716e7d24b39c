// Package ledger applies signed balance deltas to accounts and records a
// ledger entry for every committed change.
package ledger

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/shopspring/decimal"

	"github.com/omnibank/backoffice/internal/entities"
)

// Store is the persistence contract the mutator runs against. The postgres
// implementation joins the transaction carried by ctx, so an account update
// and its ledger entry always commit together.
type Store interface {
	// GetAccountForUpdate loads the account and locks its row for the
	// remainder of the enclosing transaction. Returns nil, nil when the
	// account does not exist.
	GetAccountForUpdate(ctx context.Context, accountID int64) (*entities.Account, error)
	// FindEntryByReference returns the ledger entry previously recorded for
	// the account under the given reference, or nil, nil.
	FindEntryByReference(ctx context.Context, accountID int64, reference string) (*entities.LedgerEntry, error)
	UpdateBalance(ctx context.Context, accountID int64, balance decimal.Decimal) error
	InsertEntry(ctx context.Context, entry *entities.LedgerEntry) (int64, error)
}

// Mutation is the outcome of one applied (or de-duplicated) delta.
type Mutation struct {
	EntryID       int64           `json:"ledger_entry_id"`
	BalanceBefore decimal.Decimal `json:"balance_before"`
	BalanceAfter  decimal.Decimal `json:"balance_after"`
	Deduplicated  bool            `json:"deduplicated"`
}

// Mutator performs read-modify-write balance changes. Mutations on the same
// account are serialized by a per-account mutex in addition to the row lock
// taken by the store, so two in-flight requests cannot both read the same
// balance.
type Mutator struct {
	logger *slog.Logger
	store  Store

	muMap map[int64]*sync.Mutex
	mapMu sync.Mutex
}

func NewMutator(logger *slog.Logger, store Store) *Mutator {
	return &Mutator{
		logger: logger,
		store:  store,
		muMap:  make(map[int64]*sync.Mutex),
	}
}

func (m *Mutator) accountLock(accountID int64) *sync.Mutex {
	m.mapMu.Lock()
	defer m.mapMu.Unlock()

	if _, exists := m.muMap[accountID]; !exists {
		m.muMap[accountID] = &sync.Mutex{}
	}
	return m.muMap[accountID]
}

// ApplyDelta adds the signed amount to the account balance and inserts a
// ledger entry capturing the before/after snapshots. The reference is the
// idempotency key: a repeated call with the same (account, reference) pair
// returns the recorded mutation without writing anything, and a repeat whose
// amount disagrees with the recorded entry fails with
// entities.ErrReconciliationRequired.
func (m *Mutator) ApplyDelta(ctx context.Context, accountID int64, amount decimal.Decimal, reason, reference string) (*Mutation, error) {
	lock := m.accountLock(accountID)
	lock.Lock()
	defer lock.Unlock()

	account, err := m.store.GetAccountForUpdate(ctx, accountID)
	if err != nil {
		return nil, fmt.Errorf("failed to load account %d: %w", accountID, err)
	}
	if account == nil {
		return nil, entities.ErrAccountNotFound
	}

	// The de-dup check runs only after the row lock is held: a concurrent
	// writer with the same reference has either committed its entry by the
	// time the lock is granted, or has not started.
	existing, err := m.store.FindEntryByReference(ctx, accountID, reference)
	if err != nil {
		return nil, fmt.Errorf("failed to check for existing ledger entry: %w", err)
	}

	if existing != nil {
		if !existing.Amount.Equal(amount) {
			m.logger.ErrorContext(ctx, "Duplicate reference with different amount",
				"account_id", accountID,
				"reference", reference,
				"recorded_amount", existing.Amount.String(),
				"requested_amount", amount.String())
			return nil, fmt.Errorf("reference %q already recorded with amount %s: %w",
				reference, existing.Amount.String(), entities.ErrReconciliationRequired)
		}

		m.logger.InfoContext(ctx, "Ledger mutation already applied, skipping",
			"account_id", accountID, "reference", reference)
		return &Mutation{
			EntryID:       existing.ID,
			BalanceBefore: existing.BalanceBefore,
			BalanceAfter:  existing.BalanceAfter,
			Deduplicated:  true,
		}, nil
	}

	if account.Status != entities.AccountActive {
		return nil, fmt.Errorf("account %d has status %q: %w", accountID, account.Status, entities.ErrAccountNotActive)
	}

	balanceAfter := account.Balance.Add(amount)
	if balanceAfter.IsNegative() {
		return nil, fmt.Errorf("balance %s, delta %s: %w",
			account.Balance.String(), amount.String(), entities.ErrInsufficientFunds)
	}

	if err = m.store.UpdateBalance(ctx, accountID, balanceAfter); err != nil {
		return nil, fmt.Errorf("failed to update balance for account %d: %w", accountID, err)
	}

	entry := &entities.LedgerEntry{
		AccountID:     accountID,
		Amount:        amount,
		BalanceBefore: account.Balance,
		BalanceAfter:  balanceAfter,
		Status:        entities.LedgerEntryCompleted,
		Reference:     reference,
		Reason:        reason,
	}

	entryID, err := m.store.InsertEntry(ctx, entry)
	if err != nil {
		return nil, fmt.Errorf("failed to insert ledger entry: %w", err)
	}

	m.logger.InfoContext(ctx, "Ledger mutation applied",
		"account_id", accountID,
		"amount", amount.String(),
		"balance_before", account.Balance.String(),
		"balance_after", balanceAfter.String(),
		"reference", reference)

	return &Mutation{
		EntryID:       entryID,
		BalanceBefore: account.Balance,
		BalanceAfter:  balanceAfter,
	}, nil
}

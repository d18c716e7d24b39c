package ledger

import (
	"context"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/omnibank/backoffice/internal/entities"
)

// MemoryStore is an in-memory Store used by tests and local development. It
// has no transaction envelope; the Mutator's per-account locks are what keep
// it consistent under concurrent use.
type MemoryStore struct {
	mu       sync.RWMutex
	accounts map[int64]*entities.Account
	entries  []*entities.LedgerEntry
	nextID   int64
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		accounts: make(map[int64]*entities.Account),
		nextID:   1,
	}
}

// PutAccount seeds or replaces an account.
func (s *MemoryStore) PutAccount(account *entities.Account) {
	s.mu.Lock()
	defer s.mu.Unlock()

	copied := *account
	s.accounts[account.ID] = &copied
}

func (s *MemoryStore) GetAccountForUpdate(_ context.Context, accountID int64) (*entities.Account, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	account, ok := s.accounts[accountID]
	if !ok {
		return nil, nil
	}
	copied := *account
	return &copied, nil
}

func (s *MemoryStore) FindEntryByReference(_ context.Context, accountID int64, reference string) (*entities.LedgerEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, entry := range s.entries {
		if entry.AccountID == accountID && entry.Reference == reference {
			copied := *entry
			return &copied, nil
		}
	}
	return nil, nil
}

func (s *MemoryStore) UpdateBalance(_ context.Context, accountID int64, balance decimal.Decimal) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	account, ok := s.accounts[accountID]
	if !ok {
		return entities.ErrAccountNotFound
	}
	account.Balance = balance
	account.UpdatedAt = time.Now().UTC()
	return nil
}

func (s *MemoryStore) InsertEntry(_ context.Context, entry *entities.LedgerEntry) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	copied := *entry
	copied.ID = s.nextID
	copied.CreatedAt = time.Now().UTC()
	s.nextID++
	s.entries = append(s.entries, &copied)
	return copied.ID, nil
}

// Entries returns a snapshot of all recorded ledger entries.
func (s *MemoryStore) Entries() []entities.LedgerEntry {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]entities.LedgerEntry, 0, len(s.entries))
	for _, entry := range s.entries {
		out = append(out, *entry)
	}
	return out
}

var _ Store = (*MemoryStore)(nil)

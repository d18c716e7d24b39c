package usecases

import (
	"context"

	"github.com/omnibank/backoffice/internal/entities"
)

type AccountsRepository interface {
	GetByID(ctx context.Context, id int64) (*entities.Account, error)
	ListEntries(ctx context.Context, accountID int64, limit uint64) ([]entities.LedgerEntry, error)
}

// AccountService serves the read-only account views of the admin dashboard.
type AccountService struct {
	repo AccountsRepository
}

func NewAccountService(repo AccountsRepository) *AccountService {
	return &AccountService{repo: repo}
}

func (s *AccountService) Get(ctx context.Context, id int64) (*entities.Account, error) {
	return s.repo.GetByID(ctx, id)
}

func (s *AccountService) Ledger(ctx context.Context, accountID int64, limit uint64) ([]entities.LedgerEntry, error) {
	return s.repo.ListEntries(ctx, accountID, limit)
}

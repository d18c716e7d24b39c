package usecases

import (
	"context"

	"github.com/omnibank/backoffice/internal/entities"
	"github.com/omnibank/backoffice/internal/transitions"
)

const EntityWithdrawal = "withdrawal"

type WithdrawalFilter struct {
	Status  string
	OwnerID int64
	Limit   uint64
}

type WithdrawalsRepository interface {
	EntityStore
	GetByID(ctx context.Context, id int64) (*entities.Withdrawal, error)
	List(ctx context.Context, filter WithdrawalFilter) ([]entities.Withdrawal, error)
}

type WithdrawalService struct {
	engine *Engine
	repo   WithdrawalsRepository
}

func NewWithdrawalService(engine *Engine, repo WithdrawalsRepository) *WithdrawalService {
	return &WithdrawalService{engine: engine, repo: repo}
}

func (s *WithdrawalService) Transition(ctx context.Context, id int64, action transitions.Action, meta TransitionMeta) (*TransitionResult, error) {
	return s.engine.Transition(ctx, EntityWithdrawal, transitions.Withdrawals, s.repo, id, action, meta)
}

func (s *WithdrawalService) Get(ctx context.Context, id int64) (*entities.Withdrawal, error) {
	return s.repo.GetByID(ctx, id)
}

func (s *WithdrawalService) List(ctx context.Context, filter WithdrawalFilter) ([]entities.Withdrawal, error) {
	return s.repo.List(ctx, filter)
}

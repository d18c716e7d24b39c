package usecases

import (
	"context"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"

	"github.com/omnibank/backoffice/internal/entities"
	"github.com/omnibank/backoffice/internal/transitions"
)

const EntityDeposit = "deposit"

type DepositFilter struct {
	Status  string
	OwnerID int64
	Asset   string
	Limit   uint64
}

type DepositsRepository interface {
	EntityStore
	GetByID(ctx context.Context, id int64) (*entities.CryptoDeposit, error)
	List(ctx context.Context, filter DepositFilter) ([]entities.CryptoDeposit, error)
}

// DepositService exposes crypto deposit transitions. Confirming a deposit
// checks the recorded chain data first: a malformed tx hash or source
// address means the deposit was mis-captured upstream and must not credit
// the account.
type DepositService struct {
	engine *Engine
	repo   DepositsRepository
}

func NewDepositService(engine *Engine, repo DepositsRepository) *DepositService {
	return &DepositService{engine: engine, repo: repo}
}

func (s *DepositService) Transition(ctx context.Context, id int64, action transitions.Action, meta TransitionMeta) (*TransitionResult, error) {
	if action == transitions.ActionConfirm {
		deposit, err := s.repo.GetByID(ctx, id)
		if err != nil {
			return nil, fmt.Errorf("failed to load deposit %d: %w", id, err)
		}
		if deposit == nil {
			return nil, fmt.Errorf("deposit %d: %w", id, entities.ErrEntityNotFound)
		}
		if err = validateChainData(deposit); err != nil {
			return nil, err
		}
	}

	return s.engine.Transition(ctx, EntityDeposit, transitions.Deposits, s.repo, id, action, meta)
}

func (s *DepositService) Get(ctx context.Context, id int64) (*entities.CryptoDeposit, error) {
	return s.repo.GetByID(ctx, id)
}

func (s *DepositService) List(ctx context.Context, filter DepositFilter) ([]entities.CryptoDeposit, error) {
	return s.repo.List(ctx, filter)
}

func validateChainData(deposit *entities.CryptoDeposit) error {
	raw, err := hexutil.Decode(deposit.TxHash)
	if err != nil || len(raw) != common.HashLength {
		return fmt.Errorf("deposit %d has malformed tx hash %q: %w",
			deposit.ID, deposit.TxHash, entities.ErrInvalidTransition)
	}
	if deposit.FromAddress != "" && !common.IsHexAddress(deposit.FromAddress) {
		return fmt.Errorf("deposit %d has malformed source address %q: %w",
			deposit.ID, deposit.FromAddress, entities.ErrInvalidTransition)
	}
	return nil
}

package usecases

import (
	"context"

	"github.com/omnibank/backoffice/internal/entities"
	"github.com/omnibank/backoffice/internal/transitions"
)

const EntityTransfer = "transfer"

// TransferFilter narrows admin listing queries.
type TransferFilter struct {
	Status  string
	OwnerID int64
	Limit   uint64
}

type TransfersRepository interface {
	EntityStore
	GetByID(ctx context.Context, id int64) (*entities.WireTransfer, error)
	List(ctx context.Context, filter TransferFilter) ([]entities.WireTransfer, error)
}

// TransferService exposes the wire transfer transitions to the HTTP layer.
type TransferService struct {
	engine *Engine
	repo   TransfersRepository
}

func NewTransferService(engine *Engine, repo TransfersRepository) *TransferService {
	return &TransferService{engine: engine, repo: repo}
}

func (s *TransferService) Transition(ctx context.Context, id int64, action transitions.Action, meta TransitionMeta) (*TransitionResult, error) {
	return s.engine.Transition(ctx, EntityTransfer, transitions.Transfers, s.repo, id, action, meta)
}

func (s *TransferService) Get(ctx context.Context, id int64) (*entities.WireTransfer, error) {
	return s.repo.GetByID(ctx, id)
}

func (s *TransferService) List(ctx context.Context, filter TransferFilter) ([]entities.WireTransfer, error) {
	return s.repo.List(ctx, filter)
}

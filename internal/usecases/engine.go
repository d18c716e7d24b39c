package usecases

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/shopspring/decimal"

	"github.com/omnibank/backoffice/internal/entities"
	"github.com/omnibank/backoffice/internal/ledger"
	"github.com/omnibank/backoffice/internal/transitions"
)

// Transactor runs a function inside one database transaction. Satisfied by
// the pgx transactor wired in pkg/database.
type Transactor interface {
	WithinTransaction(ctx context.Context, fn func(ctx context.Context) error) error
}

// TransitionMeta carries who requested a transition and why.
type TransitionMeta struct {
	Actor          string
	Reason         string
	Notes          string
	IdempotencyKey string
}

// EntitySnapshot is the view of a stateful request entity the engine needs:
// identity, current status, and the money a transition may move.
type EntitySnapshot struct {
	ID         int64
	OwnerID    int64
	OwnerEmail string
	AccountID  int64
	Status     transitions.Status
	Amount     decimal.Decimal
	Fee        decimal.Decimal
	Currency   string
}

// EntityStore loads entities and applies optimistic status updates. An
// update with zero rows affected means another request won the race.
type EntityStore interface {
	FindEntity(ctx context.Context, id int64) (*EntitySnapshot, error)
	UpdateEntityStatus(ctx context.Context, id int64, expected, next transitions.Status, meta TransitionMeta) (bool, error)
}

// AuditStore records admin actions; write-only from the engine's view.
type AuditStore interface {
	Record(ctx context.Context, record *entities.AuditRecord) error
}

// OutboxStore persists events in the same transaction as the change they
// describe.
type OutboxStore interface {
	Enqueue(ctx context.Context, event *entities.OutboxEvent) error
}

// Notifier delivers a committed transition to the customer and the admin
// live feed. Best effort: failures are logged by the implementation and
// never reach the caller.
type Notifier interface {
	Notify(ctx context.Context, event TransitionEvent)
}

// TransitionEvent is the JSON payload written to the outbox and handed to
// the notifier after commit.
type TransitionEvent struct {
	EntityType     string    `json:"entity_type"`
	EntityID       int64     `json:"entity_id"`
	OwnerID        int64     `json:"owner_id"`
	OwnerEmail     string    `json:"owner_email,omitempty"`
	Action         string    `json:"action"`
	PreviousStatus string    `json:"previous_status"`
	NewStatus      string    `json:"new_status"`
	Amount         string    `json:"amount"`
	Currency       string    `json:"currency"`
	BalanceAfter   string    `json:"balance_after,omitempty"`
	Actor          string    `json:"actor"`
	Reason         string    `json:"reason,omitempty"`
	OccurredAt     time.Time `json:"occurred_at"`
}

// TransitionResult reports the committed outcome to the HTTP layer.
type TransitionResult struct {
	EntityType     string
	EntityID       int64
	PreviousStatus transitions.Status
	NewStatus      transitions.Status
	Mutation       *ledger.Mutation
}

// Engine drives every admin-triggered status transition: validate against
// the entity's table, apply the implied ledger effect, update the status
// optimistically, and record audit and outbox rows. All of it commits in one
// database transaction, so there is no compensating write path: a failure
// anywhere rolls back everything.
type Engine struct {
	logger     *slog.Logger
	transactor Transactor
	ledger     *ledger.Mutator
	audit      AuditStore
	outbox     OutboxStore
	notifier   Notifier
}

func NewEngine(logger *slog.Logger, transactor Transactor, mutator *ledger.Mutator, audit AuditStore, outbox OutboxStore, notifier Notifier) *Engine {
	return &Engine{
		logger:     logger,
		transactor: transactor,
		ledger:     mutator,
		audit:      audit,
		outbox:     outbox,
		notifier:   notifier,
	}
}

// Transition applies action to the entity identified by id. Validation,
// not-found, illegal-transition and insufficient-funds errors are returned
// before any write; entities.ErrTransitionConflict means a concurrent
// request already moved the entity.
func (e *Engine) Transition(ctx context.Context, entityType string, table transitions.Table, store EntityStore, id int64, action transitions.Action, meta TransitionMeta) (*TransitionResult, error) {
	var (
		result *TransitionResult
		event  TransitionEvent
	)

	err := e.transactor.WithinTransaction(ctx, func(txCtx context.Context) error {
		snapshot, err := store.FindEntity(txCtx, id)
		if err != nil {
			return fmt.Errorf("failed to load %s %d: %w", entityType, id, err)
		}
		if snapshot == nil {
			return fmt.Errorf("%s %d: %w", entityType, id, entities.ErrEntityNotFound)
		}

		decision, err := table.Decide(snapshot.Status, action)
		if err != nil {
			return err
		}

		var mutation *ledger.Mutation
		if decision.Effect.Kind != transitions.EffectNone {
			amount := snapshot.Amount
			if decision.Effect.IncludeFee {
				amount = amount.Add(snapshot.Fee)
			}
			if decision.Effect.Kind == transitions.EffectDebit {
				amount = amount.Neg()
			}

			reference := meta.IdempotencyKey
			if reference == "" {
				reference = fmt.Sprintf("%s:%d:%s", entityType, id, action)
			}

			mutation, err = e.ledger.ApplyDelta(txCtx, snapshot.AccountID, amount, meta.Reason, reference)
			if err != nil {
				return err
			}
		}

		updated, err := store.UpdateEntityStatus(txCtx, id, snapshot.Status, decision.Next, meta)
		if err != nil {
			return fmt.Errorf("failed to update %s %d status: %w", entityType, id, err)
		}
		if !updated {
			return fmt.Errorf("%s %d: %w", entityType, id, entities.ErrTransitionConflict)
		}

		now := time.Now().UTC()
		if err = e.audit.Record(txCtx, &entities.AuditRecord{
			Actor:      meta.Actor,
			EntityType: entityType,
			EntityID:   id,
			Action:     string(action),
			FromStatus: string(snapshot.Status),
			ToStatus:   string(decision.Next),
			Reason:     meta.Reason,
			CreatedAt:  now,
		}); err != nil {
			return fmt.Errorf("failed to record audit entry: %w", err)
		}

		event = TransitionEvent{
			EntityType:     entityType,
			EntityID:       id,
			OwnerID:        snapshot.OwnerID,
			OwnerEmail:     snapshot.OwnerEmail,
			Action:         string(action),
			PreviousStatus: string(snapshot.Status),
			NewStatus:      string(decision.Next),
			Amount:         snapshot.Amount.String(),
			Currency:       snapshot.Currency,
			Actor:          meta.Actor,
			Reason:         meta.Reason,
			OccurredAt:     now,
		}
		if mutation != nil {
			event.BalanceAfter = mutation.BalanceAfter.String()
		}

		payload, err := json.Marshal(event)
		if err != nil {
			return fmt.Errorf("failed to marshal transition event: %w", err)
		}
		if err = e.outbox.Enqueue(txCtx, entities.NewOutboxEvent(entityType+"."+string(action), payload)); err != nil {
			return fmt.Errorf("failed to enqueue outbox event: %w", err)
		}

		result = &TransitionResult{
			EntityType:     entityType,
			EntityID:       id,
			PreviousStatus: snapshot.Status,
			NewStatus:      decision.Next,
			Mutation:       mutation,
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	e.logger.InfoContext(ctx, "Transition committed",
		"entity_type", entityType,
		"entity_id", id,
		"action", string(action),
		"from", string(result.PreviousStatus),
		"to", string(result.NewStatus),
		"actor", meta.Actor)

	// Notification never blocks or unwinds the financial write path.
	e.notifier.Notify(context.WithoutCancel(ctx), event)

	return result, nil
}

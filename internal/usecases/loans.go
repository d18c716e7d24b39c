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

const EntityLoan = "loan"

var monthsPerYear = decimal.NewFromInt(12)

type LoanFilter struct {
	Status  string
	OwnerID int64
	Limit   uint64
}

type LoansRepository interface {
	EntityStore
	GetByID(ctx context.Context, id int64) (*entities.Loan, error)
	List(ctx context.Context, filter LoanFilter) ([]entities.Loan, error)
	FindPaymentByKey(ctx context.Context, loanID int64, key string) (*entities.LoanPayment, error)
	InsertPayment(ctx context.Context, payment *entities.LoanPayment) (int64, error)
	// UpdateRemainingBalance is conditional on the expected current value;
	// zero rows affected means a concurrent payment was recorded first.
	UpdateRemainingBalance(ctx context.Context, loanID int64, expected, next decimal.Decimal) (bool, error)
	ListPayments(ctx context.Context, loanID int64) ([]entities.LoanPayment, error)
}

// PaymentResult reports a committed loan payment with its exact split.
type PaymentResult struct {
	PaymentID        int64
	InterestAmount   decimal.Decimal
	PrincipalAmount  decimal.Decimal
	RemainingBalance decimal.Decimal
	Mutation         *ledger.Mutation
	Deduplicated     bool
}

// LoanService handles loan transitions and payment recording. Payments need
// their own orchestration because they mutate the loan's remaining balance
// and write a payment row in addition to the ledger effect.
type LoanService struct {
	logger     *slog.Logger
	engine     *Engine
	repo       LoansRepository
	transactor Transactor
	ledger     *ledger.Mutator
	audit      AuditStore
	outbox     OutboxStore
	notifier   Notifier
}

func NewLoanService(
	logger *slog.Logger,
	engine *Engine,
	repo LoansRepository,
	transactor Transactor,
	mutator *ledger.Mutator,
	audit AuditStore,
	outbox OutboxStore,
	notifier Notifier,
) *LoanService {
	return &LoanService{
		logger:     logger,
		engine:     engine,
		repo:       repo,
		transactor: transactor,
		ledger:     mutator,
		audit:      audit,
		outbox:     outbox,
		notifier:   notifier,
	}
}

func (s *LoanService) Transition(ctx context.Context, id int64, action transitions.Action, meta TransitionMeta) (*TransitionResult, error) {
	if action == transitions.ActionClose {
		loan, err := s.repo.GetByID(ctx, id)
		if err != nil {
			return nil, fmt.Errorf("failed to load loan %d: %w", id, err)
		}
		if loan == nil {
			return nil, fmt.Errorf("loan %d: %w", id, entities.ErrEntityNotFound)
		}
		if !loan.RemainingBalance.IsZero() {
			return nil, fmt.Errorf("loan %d has remaining balance %s: %w",
				id, loan.RemainingBalance.String(), entities.ErrInvalidTransition)
		}
	}

	return s.engine.Transition(ctx, EntityLoan, transitions.Loans, s.repo, id, action, meta)
}

func (s *LoanService) Get(ctx context.Context, id int64) (*entities.Loan, error) {
	return s.repo.GetByID(ctx, id)
}

func (s *LoanService) List(ctx context.Context, filter LoanFilter) ([]entities.Loan, error) {
	return s.repo.List(ctx, filter)
}

func (s *LoanService) Payments(ctx context.Context, loanID int64) ([]entities.LoanPayment, error) {
	return s.repo.ListPayments(ctx, loanID)
}

// MonthlyInterest computes the interest portion of one payment: remaining
// balance times annual rate over twelve, rounded to two decimal places.
func MonthlyInterest(remaining, annualRate decimal.Decimal) decimal.Decimal {
	return remaining.Mul(annualRate).Div(monthsPerYear).Round(2)
}

// RecordPayment applies one payment against an active loan: the amount is
// debited from the customer account, split into interest and principal, and
// the remaining balance is reduced by the principal portion. The idempotency
// key is required; retrying with the same key returns the recorded payment
// without moving money again.
func (s *LoanService) RecordPayment(ctx context.Context, loanID int64, amount decimal.Decimal, meta TransitionMeta) (*PaymentResult, error) {
	if meta.IdempotencyKey == "" {
		return nil, fmt.Errorf("idempotency key is required: %w", entities.ErrInvalidAmount)
	}
	if !amount.IsPositive() {
		return nil, fmt.Errorf("payment amount must be positive: %w", entities.ErrInvalidAmount)
	}

	var (
		result *PaymentResult
		event  TransitionEvent
	)

	err := s.transactor.WithinTransaction(ctx, func(txCtx context.Context) error {
		loan, err := s.repo.GetByID(txCtx, loanID)
		if err != nil {
			return fmt.Errorf("failed to load loan %d: %w", loanID, err)
		}
		if loan == nil {
			return fmt.Errorf("loan %d: %w", loanID, entities.ErrEntityNotFound)
		}
		if transitions.Status(loan.Status) != transitions.StatusActive {
			return fmt.Errorf("loan %d has status %q: %w", loanID, loan.Status, entities.ErrInvalidTransition)
		}

		existing, err := s.repo.FindPaymentByKey(txCtx, loanID, meta.IdempotencyKey)
		if err != nil {
			return fmt.Errorf("failed to check for existing payment: %w", err)
		}
		if existing != nil {
			if !existing.Amount.Equal(amount) {
				return fmt.Errorf("payment key %q already recorded with amount %s: %w",
					meta.IdempotencyKey, existing.Amount.String(), entities.ErrReconciliationRequired)
			}
			result = &PaymentResult{
				PaymentID:        existing.ID,
				InterestAmount:   existing.InterestAmount,
				PrincipalAmount:  existing.PrincipalAmount,
				RemainingBalance: existing.BalanceAfter,
				Deduplicated:     true,
			}
			return nil
		}

		interest := MonthlyInterest(loan.RemainingBalance, loan.AnnualRate)
		principal := amount.Sub(interest)
		if principal.IsNegative() {
			return fmt.Errorf("payment %s does not cover interest %s: %w",
				amount.String(), interest.String(), entities.ErrInvalidAmount)
		}
		if principal.GreaterThan(loan.RemainingBalance) {
			return fmt.Errorf("principal %s exceeds remaining balance %s: %w",
				principal.String(), loan.RemainingBalance.String(), entities.ErrInvalidAmount)
		}
		newRemaining := loan.RemainingBalance.Sub(principal)

		mutation, err := s.ledger.ApplyDelta(txCtx, loan.AccountID, amount.Neg(),
			"loan payment", "loan-payment:"+meta.IdempotencyKey)
		if err != nil {
			return err
		}

		updated, err := s.repo.UpdateRemainingBalance(txCtx, loanID, loan.RemainingBalance, newRemaining)
		if err != nil {
			return fmt.Errorf("failed to update loan %d balance: %w", loanID, err)
		}
		if !updated {
			return fmt.Errorf("loan %d: %w", loanID, entities.ErrTransitionConflict)
		}

		paymentID, err := s.repo.InsertPayment(txCtx, &entities.LoanPayment{
			LoanID:          loanID,
			Amount:          amount,
			InterestAmount:  interest,
			PrincipalAmount: principal,
			BalanceAfter:    newRemaining,
			IdempotencyKey:  meta.IdempotencyKey,
			RecordedBy:      meta.Actor,
		})
		if err != nil {
			return fmt.Errorf("failed to insert loan payment: %w", err)
		}

		now := time.Now().UTC()
		if err = s.audit.Record(txCtx, &entities.AuditRecord{
			Actor:      meta.Actor,
			EntityType: EntityLoan,
			EntityID:   loanID,
			Action:     "payment",
			FromStatus: loan.Status,
			ToStatus:   loan.Status,
			Reason:     meta.Reason,
			CreatedAt:  now,
		}); err != nil {
			return fmt.Errorf("failed to record audit entry: %w", err)
		}

		snapshot, err := s.repo.FindEntity(txCtx, loanID)
		if err != nil {
			return fmt.Errorf("failed to reload loan %d: %w", loanID, err)
		}

		event = TransitionEvent{
			EntityType:     EntityLoan,
			EntityID:       loanID,
			OwnerID:        loan.OwnerID,
			Action:         "payment",
			PreviousStatus: loan.Status,
			NewStatus:      loan.Status,
			Amount:         amount.String(),
			BalanceAfter:   mutation.BalanceAfter.String(),
			Actor:          meta.Actor,
			Reason:         meta.Reason,
			OccurredAt:     now,
		}
		if snapshot != nil {
			event.OwnerEmail = snapshot.OwnerEmail
			event.Currency = snapshot.Currency
		}

		payload, err := json.Marshal(event)
		if err != nil {
			return fmt.Errorf("failed to marshal payment event: %w", err)
		}
		if err = s.outbox.Enqueue(txCtx, entities.NewOutboxEvent("loan.payment", payload)); err != nil {
			return fmt.Errorf("failed to enqueue outbox event: %w", err)
		}

		result = &PaymentResult{
			PaymentID:        paymentID,
			InterestAmount:   interest,
			PrincipalAmount:  principal,
			RemainingBalance: newRemaining,
			Mutation:         mutation,
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	if !result.Deduplicated {
		s.logger.InfoContext(ctx, "Loan payment recorded",
			"loan_id", loanID,
			"amount", amount.String(),
			"interest", result.InterestAmount.String(),
			"principal", result.PrincipalAmount.String(),
			"remaining", result.RemainingBalance.String())
		s.notifier.Notify(context.WithoutCancel(ctx), event)
	}

	return result, nil
}

package ports

import (
	"context"

	"github.com/shopspring/decimal"

	"github.com/omnibank/backoffice/internal/entities"
	"github.com/omnibank/backoffice/internal/transitions"
	"github.com/omnibank/backoffice/internal/usecases"
)

// TransferService defines the wire transfer operations used by the HTTP layer.
type TransferService interface {
	Transition(ctx context.Context, id int64, action transitions.Action, meta usecases.TransitionMeta) (*usecases.TransitionResult, error)
	Get(ctx context.Context, id int64) (*entities.WireTransfer, error)
	List(ctx context.Context, filter usecases.TransferFilter) ([]entities.WireTransfer, error)
}

type DepositService interface {
	Transition(ctx context.Context, id int64, action transitions.Action, meta usecases.TransitionMeta) (*usecases.TransitionResult, error)
	Get(ctx context.Context, id int64) (*entities.CryptoDeposit, error)
	List(ctx context.Context, filter usecases.DepositFilter) ([]entities.CryptoDeposit, error)
}

type WithdrawalService interface {
	Transition(ctx context.Context, id int64, action transitions.Action, meta usecases.TransitionMeta) (*usecases.TransitionResult, error)
	Get(ctx context.Context, id int64) (*entities.Withdrawal, error)
	List(ctx context.Context, filter usecases.WithdrawalFilter) ([]entities.Withdrawal, error)
}

type LoanService interface {
	Transition(ctx context.Context, id int64, action transitions.Action, meta usecases.TransitionMeta) (*usecases.TransitionResult, error)
	Get(ctx context.Context, id int64) (*entities.Loan, error)
	List(ctx context.Context, filter usecases.LoanFilter) ([]entities.Loan, error)
	RecordPayment(ctx context.Context, loanID int64, amount decimal.Decimal, meta usecases.TransitionMeta) (*usecases.PaymentResult, error)
	Payments(ctx context.Context, loanID int64) ([]entities.LoanPayment, error)
}

// AccountService serves the read-only account views.
type AccountService interface {
	Get(ctx context.Context, id int64) (*entities.Account, error)
	Ledger(ctx context.Context, accountID int64, limit uint64) ([]entities.LedgerEntry, error)
}

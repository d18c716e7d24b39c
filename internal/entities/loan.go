package entities

import (
	"time"

	"github.com/shopspring/decimal"
)

// Loan is a customer loan managed by the back office. Approving a pending
// loan disburses the principal to the customer account; payments reduce the
// remaining balance split into interest and principal portions.
type Loan struct {
	ID               int64           `db:"id" json:"id"`
	OwnerID          int64           `db:"owner_id" json:"owner_id"`
	AccountID        int64           `db:"account_id" json:"account_id"`
	Principal        decimal.Decimal `db:"principal" json:"principal"`
	RemainingBalance decimal.Decimal `db:"remaining_balance" json:"remaining_balance"`
	MonthlyPayment   decimal.Decimal `db:"monthly_payment" json:"monthly_payment"`
	AnnualRate       decimal.Decimal `db:"annual_rate" json:"annual_rate"`
	TermMonths       int             `db:"term_months" json:"term_months"`
	Status           string          `db:"status" json:"status"`
	StatusReason     string          `db:"status_reason" json:"status_reason"`
	StatusNotes      string          `db:"status_notes" json:"status_notes"`
	UpdatedBy        string          `db:"updated_by" json:"updated_by"`
	ApprovedAt       *time.Time      `db:"approved_at" json:"approved_at,omitempty"`
	RejectedAt       *time.Time      `db:"rejected_at" json:"rejected_at,omitempty"`
	ClosedAt         *time.Time      `db:"closed_at" json:"closed_at,omitempty"`
	CreatedAt        time.Time       `db:"created_at" json:"created_at"`
	UpdatedAt        time.Time       `db:"updated_at" json:"updated_at"`
}

// LoanPayment records one payment against a loan with the exact interest and
// principal split computed at payment time.
type LoanPayment struct {
	ID              int64           `db:"id" json:"id"`
	LoanID          int64           `db:"loan_id" json:"loan_id"`
	Amount          decimal.Decimal `db:"amount" json:"amount"`
	InterestAmount  decimal.Decimal `db:"interest_amount" json:"interest_amount"`
	PrincipalAmount decimal.Decimal `db:"principal_amount" json:"principal_amount"`
	BalanceAfter    decimal.Decimal `db:"balance_after" json:"balance_after"`
	IdempotencyKey  string          `db:"idempotency_key" json:"idempotency_key"`
	RecordedBy      string          `db:"recorded_by" json:"recorded_by"`
	CreatedAt       time.Time       `db:"created_at" json:"created_at"`
}

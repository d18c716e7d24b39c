package entities

import (
	"time"

	"github.com/shopspring/decimal"
)

// WireTransfer is an outgoing wire held for back-office review. The amount
// plus fee is debited from the source account when the transfer is created
// by the customer-facing flow; rejecting or cancelling the transfer refunds
// amount+fee, reinstating a cancelled transfer re-debits it.
type WireTransfer struct {
	ID              int64           `db:"id" json:"id"`
	OwnerID         int64           `db:"owner_id" json:"owner_id"`
	AccountID       int64           `db:"account_id" json:"account_id"`
	Amount          decimal.Decimal `db:"amount" json:"amount"`
	Fee             decimal.Decimal `db:"fee" json:"fee"`
	Currency        string          `db:"currency" json:"currency"`
	Beneficiary     string          `db:"beneficiary" json:"beneficiary"`
	BeneficiaryIBAN string          `db:"beneficiary_iban" json:"beneficiary_iban"`
	SwiftCode       string          `db:"swift_code" json:"swift_code"`
	Status          string          `db:"status" json:"status"`
	StatusReason    string          `db:"status_reason" json:"status_reason"`
	StatusNotes     string          `db:"status_notes" json:"status_notes"`
	UpdatedBy       string          `db:"updated_by" json:"updated_by"`
	ApprovedAt      *time.Time      `db:"approved_at" json:"approved_at,omitempty"`
	RejectedAt      *time.Time      `db:"rejected_at" json:"rejected_at,omitempty"`
	CompletedAt     *time.Time      `db:"completed_at" json:"completed_at,omitempty"`
	CancelledAt     *time.Time      `db:"cancelled_at" json:"cancelled_at,omitempty"`
	ReversedAt      *time.Time      `db:"reversed_at" json:"reversed_at,omitempty"`
	CreatedAt       time.Time       `db:"created_at" json:"created_at"`
	UpdatedAt       time.Time       `db:"updated_at" json:"updated_at"`
}

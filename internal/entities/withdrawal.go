package entities

import (
	"time"

	"github.com/shopspring/decimal"
)

// Withdrawal is a customer cash-out request. The amount is debited from the
// account when the request is created by the customer-facing flow, so a
// rejection at any stage before completion refunds it.
type Withdrawal struct {
	ID           int64           `db:"id" json:"id"`
	OwnerID      int64           `db:"owner_id" json:"owner_id"`
	AccountID    int64           `db:"account_id" json:"account_id"`
	Amount       decimal.Decimal `db:"amount" json:"amount"`
	Method       string          `db:"method" json:"method"`
	Destination  string          `db:"destination" json:"destination"`
	Status       string          `db:"status" json:"status"`
	StatusReason string          `db:"status_reason" json:"status_reason"`
	StatusNotes  string          `db:"status_notes" json:"status_notes"`
	UpdatedBy    string          `db:"updated_by" json:"updated_by"`
	ApprovedAt   *time.Time      `db:"approved_at" json:"approved_at,omitempty"`
	RejectedAt   *time.Time      `db:"rejected_at" json:"rejected_at,omitempty"`
	CompletedAt  *time.Time      `db:"completed_at" json:"completed_at,omitempty"`
	CreatedAt    time.Time       `db:"created_at" json:"created_at"`
	UpdatedAt    time.Time       `db:"updated_at" json:"updated_at"`
}

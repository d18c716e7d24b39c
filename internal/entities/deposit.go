package entities

import (
	"time"

	"github.com/shopspring/decimal"
)

// CryptoDeposit is an on-chain deposit awaiting back-office confirmation.
// Confirming it credits the fiat equivalent to the customer account;
// reversing a confirmed deposit debits it back.
type CryptoDeposit struct {
	ID           int64           `db:"id" json:"id"`
	OwnerID      int64           `db:"owner_id" json:"owner_id"`
	AccountID    int64           `db:"account_id" json:"account_id"`
	Asset        string          `db:"asset" json:"asset"`
	TxHash       string          `db:"tx_hash" json:"tx_hash"`
	FromAddress  string          `db:"from_address" json:"from_address"`
	Amount       decimal.Decimal `db:"amount" json:"amount"`
	Status       string          `db:"status" json:"status"`
	StatusReason string          `db:"status_reason" json:"status_reason"`
	StatusNotes  string          `db:"status_notes" json:"status_notes"`
	UpdatedBy    string          `db:"updated_by" json:"updated_by"`
	ConfirmedAt  *time.Time      `db:"confirmed_at" json:"confirmed_at,omitempty"`
	RejectedAt   *time.Time      `db:"rejected_at" json:"rejected_at,omitempty"`
	ReversedAt   *time.Time      `db:"reversed_at" json:"reversed_at,omitempty"`
	CreatedAt    time.Time       `db:"created_at" json:"created_at"`
	UpdatedAt    time.Time       `db:"updated_at" json:"updated_at"`
}

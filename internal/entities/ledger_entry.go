package entities

import (
	"time"

	"github.com/shopspring/decimal"
)

type LedgerEntryStatus string

const (
	LedgerEntryCompleted LedgerEntryStatus = "completed"
	LedgerEntryReversed  LedgerEntryStatus = "reversed"
)

// LedgerEntry is an append-only record of one signed balance change with
// before/after snapshots. A reversal creates a new offsetting entry; the
// original is never mutated. The (account_id, reference) pair is unique and
// is the de-duplication guard against applying the same effect twice.
type LedgerEntry struct {
	ID            int64             `db:"id" json:"id"`
	AccountID     int64             `db:"account_id" json:"account_id"`
	Amount        decimal.Decimal   `db:"amount" json:"amount"`
	BalanceBefore decimal.Decimal   `db:"balance_before" json:"balance_before"`
	BalanceAfter  decimal.Decimal   `db:"balance_after" json:"balance_after"`
	Status        LedgerEntryStatus `db:"status" json:"status"`
	Reference     string            `db:"reference" json:"reference"`
	Reason        string            `db:"reason" json:"reason"`
	CreatedAt     time.Time         `db:"created_at" json:"created_at"`
}

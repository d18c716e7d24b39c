package entities

import "errors"

var (
	// ErrAccountNotFound indicates the referenced account does not exist.
	ErrAccountNotFound = errors.New("account not found")
	// ErrEntityNotFound indicates the referenced request entity does not exist.
	ErrEntityNotFound = errors.New("entity not found")
	// ErrInvalidTransition indicates the requested action is not legal from
	// the entity's current status.
	ErrInvalidTransition = errors.New("invalid status transition")
	// ErrInsufficientFunds indicates a debit would drive the balance negative.
	ErrInsufficientFunds = errors.New("insufficient funds")
	// ErrAccountNotActive indicates the account is frozen or closed and must
	// not be mutated.
	ErrAccountNotActive = errors.New("account is not active")
	// ErrInvalidAmount indicates a monetary input that fails validation
	// before any read or write.
	ErrInvalidAmount = errors.New("invalid amount")
	// ErrTransitionConflict indicates a concurrent request already moved the
	// entity out of the expected status.
	ErrTransitionConflict = errors.New("entity was modified concurrently")
	// ErrReconciliationRequired indicates the ledger disagrees with the
	// requested mutation in a way that cannot be resolved automatically.
	// Manual reconciliation is required.
	ErrReconciliationRequired = errors.New("manual reconciliation required")
)

// Package transitions defines the status transition tables for the stateful
// request entities and the pure decision function shared by all of them.
package transitions

import (
	"fmt"

	"github.com/omnibank/backoffice/internal/entities"
)

type (
	Status string
	Action string
)

// EffectKind describes the ledger effect implied by a transition.
type EffectKind int

const (
	// EffectNone moves the entity between statuses without touching money.
	EffectNone EffectKind = iota
	// EffectCredit returns funds to the customer account.
	EffectCredit
	// EffectDebit takes funds from the customer account.
	EffectDebit
)

// Effect is the ledger effect attached to a transition rule. IncludeFee
// widens the moved amount to amount+fee for entities that carry a fee.
type Effect struct {
	Kind       EffectKind
	IncludeFee bool
}

// Rule is one legal transition: applying Action moves the entity to Next
// and implies Effect on the customer account.
type Rule struct {
	Action Action
	Next   Status
	Effect Effect
}

// Table maps each status to the transitions legal from it. Any pair not in
// the table is rejected; unknown statuses fail closed.
type Table map[Status][]Rule

// Decision is the outcome of a successful table lookup.
type Decision struct {
	Next   Status
	Effect Effect
}

// Decide returns the decision for applying action from current. It is pure:
// no side effects, and the caller must not mutate any state when an error is
// returned.
func (t Table) Decide(current Status, action Action) (Decision, error) {
	rules, ok := t[current]
	if !ok {
		return Decision{}, fmt.Errorf("status %q: %w", current, entities.ErrInvalidTransition)
	}

	for _, rule := range rules {
		if rule.Action == action {
			return Decision{Next: rule.Next, Effect: rule.Effect}, nil
		}
	}

	return Decision{}, fmt.Errorf("action %q from status %q: %w", action, current, entities.ErrInvalidTransition)
}

// Actions lists the actions legal from the given status, for error messages
// and the admin UI.
func (t Table) Actions(current Status) []Action {
	rules := t[current]
	actions := make([]Action, 0, len(rules))
	for _, rule := range rules {
		actions = append(actions, rule.Action)
	}
	return actions
}

package transitions

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/omnibank/backoffice/internal/entities"
)

func TestDecideLegalTransition(t *testing.T) {
	decision, err := Transfers.Decide(StatusPending, ActionApprove)
	require.NoError(t, err)
	require.Equal(t, StatusProcessing, decision.Next)
	require.Equal(t, EffectNone, decision.Effect.Kind)
}

func TestDecideTransitionWithEffect(t *testing.T) {
	decision, err := Transfers.Decide(StatusPending, ActionCancel)
	require.NoError(t, err)
	require.Equal(t, StatusCancelled, decision.Next)
	require.Equal(t, EffectCredit, decision.Effect.Kind)
	require.True(t, decision.Effect.IncludeFee)
}

func TestDecideIllegalAction(t *testing.T) {
	_, err := Transfers.Decide(StatusCompleted, ActionApprove)
	require.Error(t, err)
	require.True(t, errors.Is(err, entities.ErrInvalidTransition))
}

func TestDecideTerminalStatusHasNoActions(t *testing.T) {
	for _, status := range []Status{StatusRejected, StatusReversed} {
		_, err := Transfers.Decide(status, ActionApprove)
		require.Error(t, err, "status %s", status)
		require.True(t, errors.Is(err, entities.ErrInvalidTransition))
	}
}

func TestDecideUnknownStatusFailsClosed(t *testing.T) {
	_, err := Transfers.Decide(Status("garbage"), ActionApprove)
	require.Error(t, err)
	require.True(t, errors.Is(err, entities.ErrInvalidTransition))

	_, err = Deposits.Decide(Status(""), ActionConfirm)
	require.Error(t, err)
	require.True(t, errors.Is(err, entities.ErrInvalidTransition))
}

func TestDepositConfirmCreditsWithoutFee(t *testing.T) {
	decision, err := Deposits.Decide(StatusPending, ActionConfirm)
	require.NoError(t, err)
	require.Equal(t, StatusConfirmed, decision.Next)
	require.Equal(t, EffectCredit, decision.Effect.Kind)
	require.False(t, decision.Effect.IncludeFee)
}

func TestDepositRejectMovesNoMoney(t *testing.T) {
	decision, err := Deposits.Decide(StatusPending, ActionReject)
	require.NoError(t, err)
	require.Equal(t, StatusRejected, decision.Next)
	require.Equal(t, EffectNone, decision.Effect.Kind)
}

func TestWithdrawalRejectRefundsFromBothStatuses(t *testing.T) {
	for _, status := range []Status{StatusPending, StatusApproved} {
		decision, err := Withdrawals.Decide(status, ActionReject)
		require.NoError(t, err, "status %s", status)
		require.Equal(t, StatusRejected, decision.Next)
		require.Equal(t, EffectCredit, decision.Effect.Kind)
	}
}

func TestLoanApproveDisbursesPrincipal(t *testing.T) {
	decision, err := Loans.Decide(StatusPending, ActionApprove)
	require.NoError(t, err)
	require.Equal(t, StatusActive, decision.Next)
	require.Equal(t, EffectCredit, decision.Effect.Kind)
}

func TestReinstateDebitsRefundBack(t *testing.T) {
	decision, err := Transfers.Decide(StatusCancelled, ActionReinstate)
	require.NoError(t, err)
	require.Equal(t, StatusPending, decision.Next)
	require.Equal(t, EffectDebit, decision.Effect.Kind)
	require.True(t, decision.Effect.IncludeFee)
}

func TestActionsListing(t *testing.T) {
	actions := Transfers.Actions(StatusPending)
	require.ElementsMatch(t, []Action{ActionApprove, ActionReject, ActionHold, ActionCancel}, actions)

	require.Empty(t, Transfers.Actions(StatusRejected))
	require.Empty(t, Transfers.Actions(Status("garbage")))
}

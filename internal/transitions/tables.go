package transitions

// Shared status and action names. Entity types that use the same word for a
// status (e.g. "pending") share the constant.
const (
	StatusPending    Status = "pending"
	StatusProcessing Status = "processing"
	StatusOnHold     Status = "on_hold"
	StatusCompleted  Status = "completed"
	StatusRejected   Status = "rejected"
	StatusCancelled  Status = "cancelled"
	StatusReversed   Status = "reversed"
	StatusConfirmed  Status = "confirmed"
	StatusApproved   Status = "approved"
	StatusActive     Status = "active"
	StatusClosed     Status = "closed"
)

const (
	ActionApprove   Action = "approve"
	ActionReject    Action = "reject"
	ActionHold      Action = "hold"
	ActionResume    Action = "resume"
	ActionComplete  Action = "complete"
	ActionCancel    Action = "cancel"
	ActionReverse   Action = "reverse"
	ActionReinstate Action = "reinstate"
	ActionConfirm   Action = "confirm"
	ActionClose     Action = "close"
)

// Transfers: the amount+fee was debited when the transfer was created, so
// every path that abandons the transfer refunds amount+fee. Approval moves
// the transfer to processing without touching money.
var Transfers = Table{
	StatusPending: {
		{Action: ActionApprove, Next: StatusProcessing},
		{Action: ActionReject, Next: StatusRejected, Effect: Effect{Kind: EffectCredit, IncludeFee: true}},
		{Action: ActionHold, Next: StatusOnHold},
		{Action: ActionCancel, Next: StatusCancelled, Effect: Effect{Kind: EffectCredit, IncludeFee: true}},
	},
	StatusProcessing: {
		{Action: ActionComplete, Next: StatusCompleted},
		{Action: ActionHold, Next: StatusOnHold},
	},
	StatusOnHold: {
		{Action: ActionResume, Next: StatusProcessing},
		{Action: ActionReject, Next: StatusRejected, Effect: Effect{Kind: EffectCredit, IncludeFee: true}},
	},
	StatusCompleted: {
		{Action: ActionReverse, Next: StatusReversed, Effect: Effect{Kind: EffectCredit, IncludeFee: true}},
	},
	StatusCancelled: {
		{Action: ActionReinstate, Next: StatusPending, Effect: Effect{Kind: EffectDebit, IncludeFee: true}},
	},
	StatusRejected: {},
	StatusReversed: {},
}

// Deposits: funds enter the account only on confirmation, so rejecting a
// pending deposit moves no money and reversing a confirmed one debits it
// back.
var Deposits = Table{
	StatusPending: {
		{Action: ActionConfirm, Next: StatusConfirmed, Effect: Effect{Kind: EffectCredit}},
		{Action: ActionReject, Next: StatusRejected},
	},
	StatusConfirmed: {
		{Action: ActionReverse, Next: StatusReversed, Effect: Effect{Kind: EffectDebit}},
	},
	StatusRejected: {},
	StatusReversed: {},
}

// Withdrawals: the amount was debited at request time, so any rejection
// before completion refunds it.
var Withdrawals = Table{
	StatusPending: {
		{Action: ActionApprove, Next: StatusApproved},
		{Action: ActionReject, Next: StatusRejected, Effect: Effect{Kind: EffectCredit}},
	},
	StatusApproved: {
		{Action: ActionComplete, Next: StatusCompleted},
		{Action: ActionReject, Next: StatusRejected, Effect: Effect{Kind: EffectCredit}},
	},
	StatusCompleted: {},
	StatusRejected:  {},
}

// Loans: approval disburses the principal to the customer account. Payments
// are recorded through a dedicated operation, not a transition. Closing is
// only legal once the remaining balance reaches zero; that check lives in
// the loan service because it needs the entity, not just its status.
var Loans = Table{
	StatusPending: {
		{Action: ActionApprove, Next: StatusActive, Effect: Effect{Kind: EffectCredit}},
		{Action: ActionReject, Next: StatusRejected},
	},
	StatusActive: {
		{Action: ActionClose, Next: StatusClosed},
	},
	StatusRejected: {},
	StatusClosed:   {},
}

package usecases

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/omnibank/backoffice/internal/entities"
	"github.com/omnibank/backoffice/internal/ledger"
	"github.com/omnibank/backoffice/internal/transitions"
)

// passthroughTransactor runs the function directly; the memory stores have no
// transaction envelope.
type passthroughTransactor struct{}

func (passthroughTransactor) WithinTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	return fn(ctx)
}

// memEntityStore holds one entity snapshot and applies compare-and-swap
// status updates, mirroring the conditional UPDATE of the SQL repositories.
type memEntityStore struct {
	mu       sync.Mutex
	snapshot EntitySnapshot
}

func (s *memEntityStore) FindEntity(_ context.Context, id int64) (*EntitySnapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.snapshot.ID != id {
		return nil, nil
	}
	copied := s.snapshot
	return &copied, nil
}

func (s *memEntityStore) UpdateEntityStatus(_ context.Context, id int64, expected, next transitions.Status, _ TransitionMeta) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.snapshot.ID != id || s.snapshot.Status != expected {
		return false, nil
	}
	s.snapshot.Status = next
	return true, nil
}

type memAuditStore struct {
	mu      sync.Mutex
	records []entities.AuditRecord
}

func (s *memAuditStore) Record(_ context.Context, record *entities.AuditRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records = append(s.records, *record)
	return nil
}

type memOutboxStore struct {
	mu     sync.Mutex
	events []entities.OutboxEvent
}

func (s *memOutboxStore) Enqueue(_ context.Context, event *entities.OutboxEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, *event)
	return nil
}

type capturingNotifier struct {
	mu     sync.Mutex
	events []TransitionEvent
}

func (n *capturingNotifier) Notify(_ context.Context, event TransitionEvent) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.events = append(n.events, event)
}

type engineFixture struct {
	engine   *Engine
	store    *memEntityStore
	ledger   *ledger.MemoryStore
	audit    *memAuditStore
	outbox   *memOutboxStore
	notifier *capturingNotifier
}

func newEngineFixture(t *testing.T, balance string, snapshot EntitySnapshot) *engineFixture {
	t.Helper()

	ledgerStore := ledger.NewMemoryStore()
	ledgerStore.PutAccount(&entities.Account{
		ID:      snapshot.AccountID,
		OwnerID: snapshot.OwnerID,
		Balance: decimal.RequireFromString(balance),
		Status:  entities.AccountActive,
	})

	audit := &memAuditStore{}
	outbox := &memOutboxStore{}
	notifier := &capturingNotifier{}
	store := &memEntityStore{snapshot: snapshot}

	engine := NewEngine(slog.Default(), passthroughTransactor{},
		ledger.NewMutator(slog.Default(), ledgerStore), audit, outbox, notifier)

	return &engineFixture{
		engine:   engine,
		store:    store,
		ledger:   ledgerStore,
		audit:    audit,
		outbox:   outbox,
		notifier: notifier,
	}
}

func pendingTransfer() EntitySnapshot {
	return EntitySnapshot{
		ID:         5,
		OwnerID:    7,
		OwnerEmail: "customer@example.com",
		AccountID:  1,
		Status:     transitions.StatusPending,
		Amount:     decimal.RequireFromString("200.00"),
		Fee:        decimal.RequireFromString("10.00"),
		Currency:   "USD",
	}
}

func (f *engineFixture) balance(t *testing.T) decimal.Decimal {
	t.Helper()
	account, err := f.ledger.GetAccountForUpdate(context.Background(), 1)
	require.NoError(t, err)
	return account.Balance
}

func TestTransitionApproveMovesNoMoney(t *testing.T) {
	f := newEngineFixture(t, "790.00", pendingTransfer())

	result, err := f.engine.Transition(context.Background(), EntityTransfer,
		transitions.Transfers, f.store, 5, transitions.ActionApprove,
		TransitionMeta{Actor: "ops@omnibank.example", Reason: "documents verified"})
	require.NoError(t, err)
	require.Equal(t, transitions.StatusPending, result.PreviousStatus)
	require.Equal(t, transitions.StatusProcessing, result.NewStatus)
	require.Nil(t, result.Mutation)

	require.True(t, f.balance(t).Equal(decimal.RequireFromString("790.00")))
	require.Empty(t, f.ledger.Entries())

	require.Len(t, f.audit.records, 1)
	require.Equal(t, "ops@omnibank.example", f.audit.records[0].Actor)
	require.Equal(t, "approve", f.audit.records[0].Action)

	require.Len(t, f.outbox.events, 1)
	require.Equal(t, "transfer.approve", f.outbox.events[0].Type)
	require.Len(t, f.notifier.events, 1)
	require.Equal(t, "customer@example.com", f.notifier.events[0].OwnerEmail)
}

func TestTransitionCancelRefundsAmountPlusFee(t *testing.T) {
	f := newEngineFixture(t, "790.00", pendingTransfer())

	result, err := f.engine.Transition(context.Background(), EntityTransfer,
		transitions.Transfers, f.store, 5, transitions.ActionCancel,
		TransitionMeta{Actor: "ops@omnibank.example", Reason: "customer request"})
	require.NoError(t, err)
	require.Equal(t, transitions.StatusCancelled, result.NewStatus)
	require.NotNil(t, result.Mutation)
	require.True(t, result.Mutation.BalanceAfter.Equal(decimal.RequireFromString("1000.00")))

	require.True(t, f.balance(t).Equal(decimal.RequireFromString("1000.00")))

	entries := f.ledger.Entries()
	require.Len(t, entries, 1)
	require.True(t, entries[0].Amount.Equal(decimal.RequireFromString("210.00")))
	require.Equal(t, "transfer:5:cancel", entries[0].Reference)
}

func TestTransitionRoundTripRestoresBalance(t *testing.T) {
	f := newEngineFixture(t, "790.00", pendingTransfer())
	meta := TransitionMeta{Actor: "ops@omnibank.example"}

	_, err := f.engine.Transition(context.Background(), EntityTransfer,
		transitions.Transfers, f.store, 5, transitions.ActionCancel, meta)
	require.NoError(t, err)
	require.True(t, f.balance(t).Equal(decimal.RequireFromString("1000.00")))

	result, err := f.engine.Transition(context.Background(), EntityTransfer,
		transitions.Transfers, f.store, 5, transitions.ActionReinstate, meta)
	require.NoError(t, err)
	require.Equal(t, transitions.StatusPending, result.NewStatus)
	require.True(t, f.balance(t).Equal(decimal.RequireFromString("790.00")))
	require.Len(t, f.ledger.Entries(), 2)
}

func TestTransitionIllegalActionChangesNothing(t *testing.T) {
	f := newEngineFixture(t, "790.00", pendingTransfer())

	_, err := f.engine.Transition(context.Background(), EntityTransfer,
		transitions.Transfers, f.store, 5, transitions.ActionComplete,
		TransitionMeta{Actor: "ops@omnibank.example"})
	require.Error(t, err)
	require.True(t, errors.Is(err, entities.ErrInvalidTransition))

	require.Equal(t, transitions.StatusPending, f.store.snapshot.Status)
	require.True(t, f.balance(t).Equal(decimal.RequireFromString("790.00")))
	require.Empty(t, f.ledger.Entries())
	require.Empty(t, f.audit.records)
	require.Empty(t, f.outbox.events)
	require.Empty(t, f.notifier.events)
}

func TestTransitionUnknownEntity(t *testing.T) {
	f := newEngineFixture(t, "790.00", pendingTransfer())

	_, err := f.engine.Transition(context.Background(), EntityTransfer,
		transitions.Transfers, f.store, 404, transitions.ActionApprove,
		TransitionMeta{Actor: "ops@omnibank.example"})
	require.Error(t, err)
	require.True(t, errors.Is(err, entities.ErrEntityNotFound))
}

func TestTransitionInsufficientFundsRollsBackStatus(t *testing.T) {
	snapshot := pendingTransfer()
	snapshot.Status = transitions.StatusCancelled

	// Reinstate needs to debit 210.00 from a 100.00 balance
	f := newEngineFixture(t, "100.00", snapshot)

	_, err := f.engine.Transition(context.Background(), EntityTransfer,
		transitions.Transfers, f.store, 5, transitions.ActionReinstate,
		TransitionMeta{Actor: "ops@omnibank.example"})
	require.Error(t, err)
	require.True(t, errors.Is(err, entities.ErrInsufficientFunds))

	require.True(t, f.balance(t).Equal(decimal.RequireFromString("100.00")))
	require.Empty(t, f.ledger.Entries())
	require.Empty(t, f.outbox.events)
}

func TestTransitionExplicitIdempotencyKeyWinsOverDefaultReference(t *testing.T) {
	f := newEngineFixture(t, "790.00", pendingTransfer())

	result, err := f.engine.Transition(context.Background(), EntityTransfer,
		transitions.Transfers, f.store, 5, transitions.ActionCancel,
		TransitionMeta{Actor: "ops@omnibank.example", IdempotencyKey: "req-8841"})
	require.NoError(t, err)
	require.NotNil(t, result.Mutation)

	entries := f.ledger.Entries()
	require.Len(t, entries, 1)
	require.Equal(t, "req-8841", entries[0].Reference)
}

// gatedEntityStore holds every FindEntity caller at a barrier until all of
// them have loaded the snapshot, pinning the interleaving where concurrent
// requests both see the entity still pending.
type gatedEntityStore struct {
	*memEntityStore
	loaded *sync.WaitGroup
}

func (s *gatedEntityStore) FindEntity(ctx context.Context, id int64) (*EntitySnapshot, error) {
	snapshot, err := s.memEntityStore.FindEntity(ctx, id)
	s.loaded.Done()
	s.loaded.Wait()
	return snapshot, err
}

func TestTransitionConcurrentConfirmSingleWinner(t *testing.T) {
	f := newEngineFixture(t, "500.00", EntitySnapshot{
		ID:        3,
		OwnerID:   7,
		AccountID: 1,
		Status:    transitions.StatusPending,
		Amount:    decimal.RequireFromString("50.00"),
		Currency:  "BTC",
	})

	var loaded sync.WaitGroup
	loaded.Add(2)
	store := &gatedEntityStore{memEntityStore: f.store, loaded: &loaded}

	var wg sync.WaitGroup
	results := make([]error, 2)
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			_, results[n] = f.engine.Transition(context.Background(), EntityDeposit,
				transitions.Deposits, store, 3, transitions.ActionConfirm,
				TransitionMeta{Actor: "ops@omnibank.example"})
		}(i)
	}
	wg.Wait()

	// Both pass validation; the loser is caught by the reference de-dup and
	// the conditional status update.
	var successes, conflicts int
	for _, err := range results {
		switch {
		case err == nil:
			successes++
		case errors.Is(err, entities.ErrTransitionConflict):
			conflicts++
		default:
			t.Fatalf("unexpected error: %v", err)
		}
	}
	require.Equal(t, 1, successes)
	require.Equal(t, 1, conflicts)

	// The account was credited exactly once
	require.True(t, f.balance(t).Equal(decimal.RequireFromString("550.00")))
	require.Len(t, f.ledger.Entries(), 1)
}

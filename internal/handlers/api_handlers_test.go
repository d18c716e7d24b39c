package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gorilla/mux"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/omnibank/backoffice/internal/clients"
	"github.com/omnibank/backoffice/internal/entities"
	"github.com/omnibank/backoffice/internal/transitions"
	"github.com/omnibank/backoffice/internal/usecases"
)

type stubTransferService struct {
	transitionErr error
	result        *usecases.TransitionResult
	lastMeta      usecases.TransitionMeta
	transfer      *entities.WireTransfer
}

func (s *stubTransferService) Transition(_ context.Context, _ int64, _ transitions.Action, meta usecases.TransitionMeta) (*usecases.TransitionResult, error) {
	s.lastMeta = meta
	if s.transitionErr != nil {
		return nil, s.transitionErr
	}
	return s.result, nil
}

func (s *stubTransferService) Get(context.Context, int64) (*entities.WireTransfer, error) {
	return s.transfer, nil
}

func (s *stubTransferService) List(context.Context, usecases.TransferFilter) ([]entities.WireTransfer, error) {
	if s.transfer == nil {
		return nil, nil
	}
	return []entities.WireTransfer{*s.transfer}, nil
}

type stubLoanService struct {
	paymentErr error
	payment    *usecases.PaymentResult
}

func (s *stubLoanService) Transition(context.Context, int64, transitions.Action, usecases.TransitionMeta) (*usecases.TransitionResult, error) {
	return nil, entities.ErrEntityNotFound
}

func (s *stubLoanService) Get(context.Context, int64) (*entities.Loan, error) { return nil, nil }

func (s *stubLoanService) List(context.Context, usecases.LoanFilter) ([]entities.Loan, error) {
	return nil, nil
}

func (s *stubLoanService) RecordPayment(context.Context, int64, decimal.Decimal, usecases.TransitionMeta) (*usecases.PaymentResult, error) {
	if s.paymentErr != nil {
		return nil, s.paymentErr
	}
	return s.payment, nil
}

func (s *stubLoanService) Payments(context.Context, int64) ([]entities.LoanPayment, error) {
	return nil, nil
}

type staticVerifier struct {
	token string
}

func (v staticVerifier) VerifyToken(_ context.Context, token string) (*clients.Operator, error) {
	if token == v.token {
		return &clients.Operator{Email: "ops@omnibank.example", Role: "admin"}, nil
	}
	return nil, nil
}

func newTestRouter(t *testing.T, transfers *stubTransferService, loans *stubLoanService) *mux.Router {
	t.Helper()

	if transfers == nil {
		transfers = &stubTransferService{}
	}
	if loans == nil {
		loans = &stubLoanService{}
	}

	handler := NewHTTPHandler(slog.Default(), transfers, nil, nil, loans, nil)
	auth := NewAuthMiddleware(slog.Default(), staticVerifier{token: "secret-token"})

	router := mux.NewRouter()
	api := router.PathPrefix("/api").Subrouter()
	api.Use(auth.Handler)
	handler.RegisterRoutes(api)
	return router
}

func doRequest(t *testing.T, router *mux.Router, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()

	var reader *bytes.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(payload)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, reader)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func TestTransitionTransferSuccess(t *testing.T) {
	transfers := &stubTransferService{
		result: &usecases.TransitionResult{
			EntityType:     "transfer",
			EntityID:       5,
			PreviousStatus: transitions.StatusPending,
			NewStatus:      transitions.StatusProcessing,
		},
	}
	router := newTestRouter(t, transfers, nil)

	rec := doRequest(t, router, http.MethodPost, "/api/transfers/5/transition", "secret-token",
		map[string]string{"action": "approve", "reason": "documents verified"})
	require.Equal(t, http.StatusOK, rec.Code)

	var resp transitionResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	require.Equal(t, "processing", resp.NewStatus)

	// Actor comes from the verified token, not the body
	require.Equal(t, "ops@omnibank.example", transfers.lastMeta.Actor)
	require.Equal(t, "documents verified", transfers.lastMeta.Reason)
}

func TestTransitionRequiresToken(t *testing.T) {
	router := newTestRouter(t, nil, nil)

	rec := doRequest(t, router, http.MethodPost, "/api/transfers/5/transition", "",
		map[string]string{"action": "approve"})
	require.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestTransitionRejectsBadToken(t *testing.T) {
	router := newTestRouter(t, nil, nil)

	rec := doRequest(t, router, http.MethodPost, "/api/transfers/5/transition", "wrong-token",
		map[string]string{"action": "approve"})
	require.Equal(t, http.StatusForbidden, rec.Code)
}

func TestTransitionMissingAction(t *testing.T) {
	router := newTestRouter(t, nil, nil)

	rec := doRequest(t, router, http.MethodPost, "/api/transfers/5/transition", "secret-token",
		map[string]string{"reason": "no action supplied"})
	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestTransitionErrorMapping(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want int
	}{
		{"not found", entities.ErrEntityNotFound, http.StatusNotFound},
		{"illegal transition", entities.ErrInvalidTransition, http.StatusBadRequest},
		{"insufficient funds", entities.ErrInsufficientFunds, http.StatusBadRequest},
		{"conflict", entities.ErrTransitionConflict, http.StatusConflict},
		{"reconciliation", entities.ErrReconciliationRequired, http.StatusInternalServerError},
		{"persistence", fmt.Errorf("connection refused"), http.StatusInternalServerError},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			transfers := &stubTransferService{transitionErr: fmt.Errorf("wrapped: %w", tc.err)}
			router := newTestRouter(t, transfers, nil)

			rec := doRequest(t, router, http.MethodPost, "/api/transfers/5/transition", "secret-token",
				map[string]string{"action": "approve"})
			require.Equal(t, tc.want, rec.Code)
		})
	}
}

func TestTransitionReconciliationFlag(t *testing.T) {
	transfers := &stubTransferService{
		transitionErr: fmt.Errorf("amount mismatch: %w", entities.ErrReconciliationRequired),
	}
	router := newTestRouter(t, transfers, nil)

	rec := doRequest(t, router, http.MethodPost, "/api/transfers/5/transition", "secret-token",
		map[string]string{"action": "approve"})
	require.Equal(t, http.StatusInternalServerError, rec.Code)

	var resp errorResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	require.True(t, resp.ReconciliationNeeded)
}

func TestGetTransferNotFound(t *testing.T) {
	router := newTestRouter(t, &stubTransferService{}, nil)

	rec := doRequest(t, router, http.MethodGet, "/api/transfers/5", "secret-token", nil)
	require.Equal(t, http.StatusNotFound, rec.Code)
}

func TestRecordLoanPaymentRequiresIdempotencyKey(t *testing.T) {
	router := newTestRouter(t, nil, &stubLoanService{})

	rec := doRequest(t, router, http.MethodPost, "/api/loans/11/payments", "secret-token",
		map[string]string{"amount": "150.00"})
	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestRecordLoanPaymentSuccess(t *testing.T) {
	loans := &stubLoanService{
		payment: &usecases.PaymentResult{
			PaymentID:        1,
			InterestAmount:   decimal.RequireFromString("15.00"),
			PrincipalAmount:  decimal.RequireFromString("135.00"),
			RemainingBalance: decimal.RequireFromString("1365.00"),
		},
	}
	router := newTestRouter(t, nil, loans)

	payload, err := json.Marshal(map[string]string{"amount": "150.00"})
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodPost, "/api/loans/11/payments", bytes.NewReader(payload))
	req.Header.Set("Authorization", "Bearer secret-token")
	req.Header.Set("Idempotency-Key", "pay-001")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusCreated, rec.Code)

	var resp map[string]any
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	require.Equal(t, "15", resp["interest_amount"])
	require.Equal(t, "135", resp["principal_amount"])
	require.Equal(t, "1365", resp["remaining_balance"])
}

func TestRecordLoanPaymentInvalidAmount(t *testing.T) {
	router := newTestRouter(t, nil, &stubLoanService{})

	payload, err := json.Marshal(map[string]string{"amount": "abc"})
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodPost, "/api/loans/11/payments", bytes.NewReader(payload))
	req.Header.Set("Authorization", "Bearer secret-token")
	req.Header.Set("Idempotency-Key", "pay-001")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusBadRequest, rec.Code)
}

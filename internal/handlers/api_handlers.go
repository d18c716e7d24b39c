package handlers

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"
	"github.com/shopspring/decimal"

	"github.com/omnibank/backoffice/internal/core/ports"
	"github.com/omnibank/backoffice/internal/entities"
	"github.com/omnibank/backoffice/internal/transitions"
	"github.com/omnibank/backoffice/internal/usecases"
)

var _ ports.TransferService = (*usecases.TransferService)(nil)

type HTTPHandler struct {
	logger            *slog.Logger
	transferService   ports.TransferService
	depositService    ports.DepositService
	withdrawalService ports.WithdrawalService
	loanService       ports.LoanService
	accountService    ports.AccountService
}

func NewHTTPHandler(
	logger *slog.Logger,
	transferService ports.TransferService,
	depositService ports.DepositService,
	withdrawalService ports.WithdrawalService,
	loanService ports.LoanService,
	accountService ports.AccountService,
) *HTTPHandler {
	return &HTTPHandler{
		logger:            logger,
		transferService:   transferService,
		depositService:    depositService,
		withdrawalService: withdrawalService,
		loanService:       loanService,
		accountService:    accountService,
	}
}

func (h *HTTPHandler) RegisterRoutes(router *mux.Router) {
	// Wire transfers
	router.HandleFunc("/transfers", h.ListTransfers).Methods("GET")
	router.HandleFunc("/transfers/{id:[0-9]+}", h.GetTransfer).Methods("GET")
	router.HandleFunc("/transfers/{id:[0-9]+}/transition", h.TransitionTransfer).Methods("POST")

	// Crypto deposits
	router.HandleFunc("/deposits", h.ListDeposits).Methods("GET")
	router.HandleFunc("/deposits/{id:[0-9]+}", h.GetDeposit).Methods("GET")
	router.HandleFunc("/deposits/{id:[0-9]+}/transition", h.TransitionDeposit).Methods("POST")

	// Withdrawals
	router.HandleFunc("/withdrawals", h.ListWithdrawals).Methods("GET")
	router.HandleFunc("/withdrawals/{id:[0-9]+}", h.GetWithdrawal).Methods("GET")
	router.HandleFunc("/withdrawals/{id:[0-9]+}/transition", h.TransitionWithdrawal).Methods("POST")

	// Loans
	router.HandleFunc("/loans", h.ListLoans).Methods("GET")
	router.HandleFunc("/loans/{id:[0-9]+}", h.GetLoan).Methods("GET")
	router.HandleFunc("/loans/{id:[0-9]+}/transition", h.TransitionLoan).Methods("POST")
	router.HandleFunc("/loans/{id:[0-9]+}/payments", h.RecordLoanPayment).Methods("POST")
	router.HandleFunc("/loans/{id:[0-9]+}/payments", h.ListLoanPayments).Methods("GET")

	// Accounts
	router.HandleFunc("/accounts/{id:[0-9]+}", h.GetAccount).Methods("GET")
	router.HandleFunc("/accounts/{id:[0-9]+}/ledger", h.GetAccountLedger).Methods("GET")
}

type transitionRequest struct {
	Action string `json:"action"`
	Reason string `json:"reason"`
	Notes  string `json:"notes"`
}

type transitionResponse struct {
	EntityType     string `json:"entity_type"`
	EntityID       int64  `json:"entity_id"`
	PreviousStatus string `json:"previous_status"`
	NewStatus      string `json:"new_status"`
	BalanceAfter   string `json:"balance_after,omitempty"`
	Deduplicated   bool   `json:"deduplicated,omitempty"`
}

type paymentRequest struct {
	Amount string `json:"amount"`
	Reason string `json:"reason"`
}

type errorResponse struct {
	Error                string `json:"error"`
	ReconciliationNeeded bool   `json:"manual_reconciliation_required,omitempty"`
}

func (h *HTTPHandler) writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	resp := errorResponse{Error: err.Error()}

	switch {
	case errors.Is(err, entities.ErrEntityNotFound), errors.Is(err, entities.ErrAccountNotFound):
		status = http.StatusNotFound
	case errors.Is(err, entities.ErrInvalidTransition),
		errors.Is(err, entities.ErrInvalidAmount),
		errors.Is(err, entities.ErrInsufficientFunds),
		errors.Is(err, entities.ErrAccountNotActive):
		status = http.StatusBadRequest
	case errors.Is(err, entities.ErrTransitionConflict):
		status = http.StatusConflict
	case errors.Is(err, entities.ErrReconciliationRequired):
		resp.ReconciliationNeeded = true
	}

	if status == http.StatusInternalServerError {
		h.logger.Error("Request failed", "error", err)
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(resp)
}

func (h *HTTPHandler) writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		h.logger.Error("Failed to encode response", "error", err)
	}
}

func pathID(r *http.Request) (int64, bool) {
	idStr := mux.Vars(r)["id"]
	id, err := strconv.ParseInt(idStr, 10, 64)
	return id, err == nil && id > 0
}

// transitionMeta builds the actor-stamped metadata for a state change. The
// actor comes from the auth middleware, never from the request body.
func transitionMeta(r *http.Request, req transitionRequest) usecases.TransitionMeta {
	meta := usecases.TransitionMeta{
		Reason:         req.Reason,
		Notes:          req.Notes,
		IdempotencyKey: r.Header.Get("Idempotency-Key"),
	}
	if operator := OperatorFromContext(r.Context()); operator != nil {
		meta.Actor = operator.Email
	}
	return meta
}

func (h *HTTPHandler) decodeTransition(w http.ResponseWriter, r *http.Request) (transitionRequest, bool) {
	var req transitionRequest
	r.Body = http.MaxBytesReader(w, r.Body, ports.MaxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return req, false
	}
	if req.Action == "" {
		http.Error(w, "Missing required field: action", http.StatusBadRequest)
		return req, false
	}
	return req, true
}

func (h *HTTPHandler) writeTransition(w http.ResponseWriter, result *usecases.TransitionResult) {
	resp := transitionResponse{
		EntityType:     result.EntityType,
		EntityID:       result.EntityID,
		PreviousStatus: string(result.PreviousStatus),
		NewStatus:      string(result.NewStatus),
	}
	if result.Mutation != nil {
		resp.BalanceAfter = result.Mutation.BalanceAfter.String()
		resp.Deduplicated = result.Mutation.Deduplicated
	}
	h.writeJSON(w, http.StatusOK, resp)
}

func listParams(r *http.Request) (status string, ownerID int64, limit uint64) {
	q := r.URL.Query()
	status = q.Get("status")
	ownerID, _ = strconv.ParseInt(q.Get("owner_id"), 10, 64)
	limit, _ = strconv.ParseUint(q.Get("limit"), 10, 64)
	if limit == 0 || limit > ports.MaxListLimit {
		limit = ports.DefaultListLimit
	}
	return status, ownerID, limit
}

// --- Wire transfers ---

func (h *HTTPHandler) TransitionTransfer(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		http.Error(w, "Invalid transfer ID", http.StatusBadRequest)
		return
	}
	req, ok := h.decodeTransition(w, r)
	if !ok {
		return
	}

	result, err := h.transferService.Transition(r.Context(), id, transitions.Action(req.Action), transitionMeta(r, req))
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeTransition(w, result)
}

func (h *HTTPHandler) GetTransfer(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		http.Error(w, "Invalid transfer ID", http.StatusBadRequest)
		return
	}

	transfer, err := h.transferService.Get(r.Context(), id)
	if err != nil {
		h.writeError(w, err)
		return
	}
	if transfer == nil {
		http.Error(w, "Transfer not found", http.StatusNotFound)
		return
	}
	h.writeJSON(w, http.StatusOK, transfer)
}

func (h *HTTPHandler) ListTransfers(w http.ResponseWriter, r *http.Request) {
	status, ownerID, limit := listParams(r)

	transfers, err := h.transferService.List(r.Context(), usecases.TransferFilter{
		Status:  status,
		OwnerID: ownerID,
		Limit:   limit,
	})
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, transfers)
}

// --- Crypto deposits ---

func (h *HTTPHandler) TransitionDeposit(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		http.Error(w, "Invalid deposit ID", http.StatusBadRequest)
		return
	}
	req, ok := h.decodeTransition(w, r)
	if !ok {
		return
	}

	result, err := h.depositService.Transition(r.Context(), id, transitions.Action(req.Action), transitionMeta(r, req))
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeTransition(w, result)
}

func (h *HTTPHandler) GetDeposit(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		http.Error(w, "Invalid deposit ID", http.StatusBadRequest)
		return
	}

	deposit, err := h.depositService.Get(r.Context(), id)
	if err != nil {
		h.writeError(w, err)
		return
	}
	if deposit == nil {
		http.Error(w, "Deposit not found", http.StatusNotFound)
		return
	}
	h.writeJSON(w, http.StatusOK, deposit)
}

func (h *HTTPHandler) ListDeposits(w http.ResponseWriter, r *http.Request) {
	status, ownerID, limit := listParams(r)

	deposits, err := h.depositService.List(r.Context(), usecases.DepositFilter{
		Status:  status,
		OwnerID: ownerID,
		Asset:   r.URL.Query().Get("asset"),
		Limit:   limit,
	})
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, deposits)
}

// --- Withdrawals ---

func (h *HTTPHandler) TransitionWithdrawal(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		http.Error(w, "Invalid withdrawal ID", http.StatusBadRequest)
		return
	}
	req, ok := h.decodeTransition(w, r)
	if !ok {
		return
	}

	result, err := h.withdrawalService.Transition(r.Context(), id, transitions.Action(req.Action), transitionMeta(r, req))
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeTransition(w, result)
}

func (h *HTTPHandler) GetWithdrawal(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		http.Error(w, "Invalid withdrawal ID", http.StatusBadRequest)
		return
	}

	withdrawal, err := h.withdrawalService.Get(r.Context(), id)
	if err != nil {
		h.writeError(w, err)
		return
	}
	if withdrawal == nil {
		http.Error(w, "Withdrawal not found", http.StatusNotFound)
		return
	}
	h.writeJSON(w, http.StatusOK, withdrawal)
}

func (h *HTTPHandler) ListWithdrawals(w http.ResponseWriter, r *http.Request) {
	status, ownerID, limit := listParams(r)

	withdrawals, err := h.withdrawalService.List(r.Context(), usecases.WithdrawalFilter{
		Status:  status,
		OwnerID: ownerID,
		Limit:   limit,
	})
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, withdrawals)
}

// --- Loans ---

func (h *HTTPHandler) TransitionLoan(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		http.Error(w, "Invalid loan ID", http.StatusBadRequest)
		return
	}
	req, ok := h.decodeTransition(w, r)
	if !ok {
		return
	}

	result, err := h.loanService.Transition(r.Context(), id, transitions.Action(req.Action), transitionMeta(r, req))
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeTransition(w, result)
}

func (h *HTTPHandler) GetLoan(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		http.Error(w, "Invalid loan ID", http.StatusBadRequest)
		return
	}

	loan, err := h.loanService.Get(r.Context(), id)
	if err != nil {
		h.writeError(w, err)
		return
	}
	if loan == nil {
		http.Error(w, "Loan not found", http.StatusNotFound)
		return
	}
	h.writeJSON(w, http.StatusOK, loan)
}

func (h *HTTPHandler) ListLoans(w http.ResponseWriter, r *http.Request) {
	status, ownerID, limit := listParams(r)

	loans, err := h.loanService.List(r.Context(), usecases.LoanFilter{
		Status:  status,
		OwnerID: ownerID,
		Limit:   limit,
	})
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, loans)
}

// RecordLoanPayment applies one payment to an active loan. The Idempotency-Key
// header is required so client retries never move money twice.
func (h *HTTPHandler) RecordLoanPayment(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		http.Error(w, "Invalid loan ID", http.StatusBadRequest)
		return
	}

	var req paymentRequest
	r.Body = http.MaxBytesReader(w, r.Body, ports.MaxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	amount, err := decimal.NewFromString(req.Amount)
	if err != nil {
		http.Error(w, "Invalid amount format", http.StatusBadRequest)
		return
	}

	meta := transitionMeta(r, transitionRequest{Reason: req.Reason})
	if meta.IdempotencyKey == "" {
		http.Error(w, "Missing required header: Idempotency-Key", http.StatusBadRequest)
		return
	}

	result, err := h.loanService.RecordPayment(r.Context(), id, amount, meta)
	if err != nil {
		h.writeError(w, err)
		return
	}

	status := http.StatusCreated
	if result.Deduplicated {
		status = http.StatusOK
	}
	h.writeJSON(w, status, map[string]any{
		"payment_id":        result.PaymentID,
		"interest_amount":   result.InterestAmount.String(),
		"principal_amount":  result.PrincipalAmount.String(),
		"remaining_balance": result.RemainingBalance.String(),
		"deduplicated":      result.Deduplicated,
	})
}

func (h *HTTPHandler) ListLoanPayments(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		http.Error(w, "Invalid loan ID", http.StatusBadRequest)
		return
	}

	payments, err := h.loanService.Payments(r.Context(), id)
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, payments)
}

// --- Accounts ---

func (h *HTTPHandler) GetAccount(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		http.Error(w, "Invalid account ID", http.StatusBadRequest)
		return
	}

	account, err := h.accountService.Get(r.Context(), id)
	if err != nil {
		h.writeError(w, err)
		return
	}
	if account == nil {
		http.Error(w, "Account not found", http.StatusNotFound)
		return
	}
	h.writeJSON(w, http.StatusOK, account)
}

func (h *HTTPHandler) GetAccountLedger(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		http.Error(w, "Invalid account ID", http.StatusBadRequest)
		return
	}

	limit, _ := strconv.ParseUint(r.URL.Query().Get("limit"), 10, 64)
	if limit == 0 || limit > ports.MaxListLimit {
		limit = ports.DefaultListLimit
	}

	entries, err := h.accountService.Ledger(r.Context(), id, limit)
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, entries)
}

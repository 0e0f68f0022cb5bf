// Package api is the thin HTTP edge: request decoding, validation, and
// error-to-status translation. All business rules live in the services.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.uber.org/zap"

	"github.com/dkwon/balancebook/internal/domain"
	"github.com/dkwon/balancebook/internal/lock"
	"github.com/dkwon/balancebook/internal/service"
)

var (
	httpRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "balance_http_requests_total",
		Help: "Total HTTP requests processed, labeled by status code",
	}, []string{"method", "endpoint", "status"})

	httpRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "balance_http_request_duration_seconds",
		Help:    "Latency distribution of HTTP requests",
		Buckets: []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2},
	}, []string{"method", "endpoint"})
)

// TransactionOps is what the handler needs from the lock-guarded engine.
type TransactionOps interface {
	UseBalance(ctx context.Context, req service.UseBalanceRequest) (*domain.Transaction, error)
	CancelBalance(ctx context.Context, req service.CancelBalanceRequest) (*domain.Transaction, error)
	QueryTransaction(ctx context.Context, transactionID string) (*domain.Transaction, error)
}

// AccountOps is what the handler needs from the account service.
type AccountOps interface {
	CreateAccount(ctx context.Context, userID, initialBalance int64) (*domain.Account, error)
	CloseAccount(ctx context.Context, userID int64, accountNumber string) (*domain.Account, error)
	ListAccounts(ctx context.Context, userID int64) ([]domain.Account, error)
}

type Handler struct {
	transactions TransactionOps
	accounts     AccountOps
	logger       *zap.Logger
}

func NewHandler(transactions TransactionOps, accounts AccountOps, logger *zap.Logger) *Handler {
	return &Handler{transactions: transactions, accounts: accounts, logger: logger}
}

// Routes registers every endpoint on the router.
func (h *Handler) Routes(r *mux.Router) {
	r.HandleFunc("/transaction/use", h.UseBalance).Methods("POST")
	r.HandleFunc("/transaction/cancel", h.CancelBalance).Methods("POST")
	r.HandleFunc("/transaction/{transactionId}", h.QueryTransaction).Methods("GET")
	r.HandleFunc("/accounts", h.CreateAccount).Methods("POST")
	r.HandleFunc("/accounts", h.CloseAccount).Methods("DELETE")
	r.HandleFunc("/accounts", h.ListAccounts).Methods("GET").Queries("user_id", "{userId}")
}

type transactionResponse struct {
	AccountNumber   string `json:"account_number"`
	TransactionType string `json:"transaction_type"`
	Result          string `json:"transaction_result"`
	TransactionID   string `json:"transaction_id"`
	Amount          int64  `json:"amount"`
	BalanceSnapshot int64  `json:"balance_snapshot"`
	TransactedAt    string `json:"transacted_at"`
}

func newTransactionResponse(accountNumber string, rec *domain.Transaction) transactionResponse {
	return transactionResponse{
		AccountNumber:   accountNumber,
		TransactionType: string(rec.Type),
		Result:          string(rec.Result),
		TransactionID:   rec.TransactionID,
		Amount:          rec.Amount,
		BalanceSnapshot: rec.BalanceSnapshot,
		TransactedAt:    rec.TransactedAt.Format(time.RFC3339),
	}
}

func (h *Handler) UseBalance(w http.ResponseWriter, r *http.Request) {
	timer := prometheus.NewTimer(httpRequestDuration.WithLabelValues("POST", "/transaction/use"))
	defer timer.ObserveDuration()

	var req service.UseBalanceRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.respondError(w, http.StatusBadRequest, domain.CodeInvalidRequest, "invalid JSON", "POST", "/transaction/use")
		return
	}
	if req.UserID <= 0 || req.AccountNumber == "" || req.Amount <= 0 {
		h.respondError(w, http.StatusBadRequest, domain.CodeInvalidRequest, "user_id, account_number and a positive amount are required", "POST", "/transaction/use")
		return
	}

	rec, err := h.transactions.UseBalance(r.Context(), req)
	if err != nil {
		h.respondFailure(w, err, "POST", "/transaction/use")
		return
	}
	h.respondJSON(w, http.StatusOK, newTransactionResponse(req.AccountNumber, rec), "POST", "/transaction/use")
}

func (h *Handler) CancelBalance(w http.ResponseWriter, r *http.Request) {
	timer := prometheus.NewTimer(httpRequestDuration.WithLabelValues("POST", "/transaction/cancel"))
	defer timer.ObserveDuration()

	var req service.CancelBalanceRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.respondError(w, http.StatusBadRequest, domain.CodeInvalidRequest, "invalid JSON", "POST", "/transaction/cancel")
		return
	}
	if req.TransactionID == "" || req.AccountNumber == "" || req.Amount <= 0 {
		h.respondError(w, http.StatusBadRequest, domain.CodeInvalidRequest, "transaction_id, account_number and a positive amount are required", "POST", "/transaction/cancel")
		return
	}

	rec, err := h.transactions.CancelBalance(r.Context(), req)
	if err != nil {
		h.respondFailure(w, err, "POST", "/transaction/cancel")
		return
	}
	h.respondJSON(w, http.StatusOK, newTransactionResponse(req.AccountNumber, rec), "POST", "/transaction/cancel")
}

func (h *Handler) QueryTransaction(w http.ResponseWriter, r *http.Request) {
	transactionID := mux.Vars(r)["transactionId"]

	rec, err := h.transactions.QueryTransaction(r.Context(), transactionID)
	if err != nil {
		h.respondFailure(w, err, "GET", "/transaction/{transactionId}")
		return
	}
	h.respondJSON(w, http.StatusOK, rec, "GET", "/transaction/{transactionId}")
}

type createAccountRequest struct {
	UserID         int64 `json:"user_id"`
	InitialBalance int64 `json:"initial_balance"`
}

func (h *Handler) CreateAccount(w http.ResponseWriter, r *http.Request) {
	var req createAccountRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.respondError(w, http.StatusBadRequest, domain.CodeInvalidRequest, "invalid JSON", "POST", "/accounts")
		return
	}
	if req.UserID <= 0 || req.InitialBalance < 0 {
		h.respondError(w, http.StatusBadRequest, domain.CodeInvalidRequest, "user_id and a non-negative initial_balance are required", "POST", "/accounts")
		return
	}

	account, err := h.accounts.CreateAccount(r.Context(), req.UserID, req.InitialBalance)
	if err != nil {
		h.respondFailure(w, err, "POST", "/accounts")
		return
	}
	h.respondJSON(w, http.StatusCreated, account, "POST", "/accounts")
}

type closeAccountRequest struct {
	UserID        int64  `json:"user_id"`
	AccountNumber string `json:"account_number"`
}

func (h *Handler) CloseAccount(w http.ResponseWriter, r *http.Request) {
	var req closeAccountRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.respondError(w, http.StatusBadRequest, domain.CodeInvalidRequest, "invalid JSON", "DELETE", "/accounts")
		return
	}
	if req.UserID <= 0 || req.AccountNumber == "" {
		h.respondError(w, http.StatusBadRequest, domain.CodeInvalidRequest, "user_id and account_number are required", "DELETE", "/accounts")
		return
	}

	account, err := h.accounts.CloseAccount(r.Context(), req.UserID, req.AccountNumber)
	if err != nil {
		h.respondFailure(w, err, "DELETE", "/accounts")
		return
	}
	h.respondJSON(w, http.StatusOK, account, "DELETE", "/accounts")
}

func (h *Handler) ListAccounts(w http.ResponseWriter, r *http.Request) {
	userID, err := strconv.ParseInt(r.URL.Query().Get("user_id"), 10, 64)
	if err != nil || userID <= 0 {
		h.respondError(w, http.StatusBadRequest, domain.CodeInvalidRequest, "a numeric user_id query parameter is required", "GET", "/accounts")
		return
	}

	accounts, err := h.accounts.ListAccounts(r.Context(), userID)
	if err != nil {
		h.respondFailure(w, err, "GET", "/accounts")
		return
	}
	if accounts == nil {
		accounts = []domain.Account{}
	}
	h.respondJSON(w, http.StatusOK, accounts, "GET", "/accounts")
}

type errorResponse struct {
	ErrorCode string `json:"error_code"`
	Message   string `json:"message"`
}

// respondFailure maps service errors to transport responses. Lock contention is
// a retryable conflict, an unreachable coordination store is a 503, domain
// rejections map by code, and everything else is a 500.
func (h *Handler) respondFailure(w http.ResponseWriter, err error, method, endpoint string) {
	switch {
	case errors.Is(err, lock.ErrAcquisitionFailed):
		h.respondError(w, http.StatusConflict, "LOCK_ACQUISITION_FAILED", "account is busy, try again", method, endpoint)
	case errors.Is(err, lock.ErrServiceUnavailable):
		h.respondError(w, http.StatusServiceUnavailable, "LOCK_SERVICE_UNAVAILABLE", "temporarily unable to process transactions", method, endpoint)
	case domain.IsBusinessError(err):
		var e *domain.Error
		errors.As(err, &e)
		h.respondError(w, statusForCode(e.Code), e.Code, e.Message, method, endpoint)
	default:
		h.logger.Error("request failed", zap.String("endpoint", endpoint), zap.Error(err))
		h.respondError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "internal server error", method, endpoint)
	}
}

func statusForCode(code domain.ErrorCode) int {
	switch code {
	case domain.CodeUserNotFound, domain.CodeAccountNotFound, domain.CodeTransactionNotFound:
		return http.StatusNotFound
	case domain.CodeInvalidRequest:
		return http.StatusBadRequest
	default:
		// Mismatches, closed accounts, overdraws, cancel-rule violations: the
		// request was well-formed but the data state rejects it.
		return http.StatusUnprocessableEntity
	}
}

func (h *Handler) respondJSON(w http.ResponseWriter, code int, payload any, method, endpoint string) {
	httpRequestsTotal.WithLabelValues(method, endpoint, strconv.Itoa(code)).Inc()
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(payload)
}

func (h *Handler) respondError(w http.ResponseWriter, code int, errorCode domain.ErrorCode, msg, method, endpoint string) {
	h.respondJSON(w, code, errorResponse{ErrorCode: string(errorCode), Message: msg}, method, endpoint)
}

package api

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"slices"
	"strconv"
	"time"

	"github.com/abkawan/atm-teller/internal/models"
	"github.com/abkawan/atm-teller/internal/service"
	"github.com/gorilla/mux"
)

// Handler is for handling api requests
type Handler struct {
	accounts *service.AccountService
	auth     *service.AuthService
	engine   *service.TransactionEngine
	journal  *service.JournalService
	sessions *sessionRegistry
}

// Option configures a Handler
type Option func(*Handler)

// WithSessionIdleTimeout logs out sessions left unused for longer than d.
// A zero or negative d keeps sessions until logout.
func WithSessionIdleTimeout(d time.Duration) Option {
	return func(h *Handler) {
		h.sessions.idle = d
	}
}

// creates a Handler. journal may be nil when no journal database is configured.
func NewHandler(accounts *service.AccountService, auth *service.AuthService, engine *service.TransactionEngine, journal *service.JournalService, opts ...Option) *Handler {
	h := &Handler{
		accounts: accounts,
		auth:     auth,
		engine:   engine,
		journal:  journal,
		sessions: newSessionRegistry(DefaultSessionIdleTimeout),
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// respondJSON sends a JSON response
func respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

// for error response
func respondError(w http.ResponseWriter, status int, code, message string) {
	respondJSON(w, status, map[string]string{"error": message, "code": code})
}

// respondServiceError maps a service error onto a status and error code
func respondServiceError(w http.ResponseWriter, err error) {
	status, code := http.StatusInternalServerError, "internal"

	switch {
	case errors.Is(err, service.ErrAccountNotFound):
		status, code = http.StatusNotFound, "account_not_found"
	case errors.Is(err, service.ErrAccountLocked):
		status, code = http.StatusLocked, "account_locked"
	case errors.Is(err, service.ErrInvalidPin):
		status, code = http.StatusUnauthorized, "invalid_pin"
	case errors.Is(err, service.ErrSessionNotAuthenticated):
		status, code = http.StatusUnauthorized, "session_not_authenticated"
	case errors.Is(err, service.ErrAccountExists):
		status, code = http.StatusConflict, "account_exists"
	case errors.Is(err, service.ErrInvalidAccountNumber):
		status, code = http.StatusBadRequest, "invalid_account_number"
	case errors.Is(err, service.ErrInvalidHolderName):
		status, code = http.StatusBadRequest, "invalid_holder_name"
	case errors.Is(err, service.ErrInvalidAmount):
		status, code = http.StatusUnprocessableEntity, "invalid_amount"
	case errors.Is(err, service.ErrDailyLimitExceeded):
		status, code = http.StatusUnprocessableEntity, "daily_limit_exceeded"
	case errors.Is(err, service.ErrInsufficientFunds):
		status, code = http.StatusUnprocessableEntity, "insufficient_funds"
	case errors.Is(err, service.ErrPinMismatch):
		status, code = http.StatusUnprocessableEntity, "pin_mismatch"
	case errors.Is(err, service.ErrPinUnchanged):
		status, code = http.StatusUnprocessableEntity, "pin_unchanged"
	case errors.Is(err, service.ErrStore):
		status, code = http.StatusInternalServerError, "store_error"
	}

	if status == http.StatusInternalServerError {
		log.Printf("Request failed: %v", err)
	}

	respondError(w, status, code, err.Error())
}

func toAccountResponse(a *models.Account) models.AccountResponse {
	return models.AccountResponse{
		AccountNumber: a.AccountNumber,
		HolderName:    a.HolderName,
		Balance:       a.Balance,
		Status:        a.Status,
		CreatedAt:     a.CreatedAt,
	}
}

// account creation
func (h *Handler) CreateAccount(w http.ResponseWriter, r *http.Request) {
	var req models.CreateAccountRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", "invalid request payload")
		return
	}

	account, err := h.accounts.OpenAccount(r.Context(), req)
	if err != nil {
		respondServiceError(w, err)
		return
	}

	respondJSON(w, http.StatusCreated, toAccountResponse(account))
}

// administrative lockout reset
func (h *Handler) UnlockAccount(w http.ResponseWriter, r *http.Request) {
	number := mux.Vars(r)["number"]

	account, err := h.accounts.Unlock(r.Context(), number)
	if err != nil {
		respondServiceError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, toAccountResponse(account))
}

// handles cardholder login
func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	var req models.LoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", "invalid request payload")
		return
	}

	session, err := h.auth.Login(r.Context(), req.AccountNumber, req.Pin)
	if err != nil {
		respondServiceError(w, err)
		return
	}

	name, err := session.HolderName()
	if err != nil {
		respondServiceError(w, err)
		return
	}

	respondJSON(w, http.StatusCreated, models.LoginResponse{
		Token:      h.sessions.add(session),
		HolderName: name,
	})
}

// Logout always succeeds, including for unknown tokens
func (h *Handler) Logout(w http.ResponseWriter, r *http.Request) {
	h.sessions.remove(mux.Vars(r)["token"])
	w.WriteHeader(http.StatusNoContent)
}

// session resolves the {token} route variable
func (h *Handler) session(w http.ResponseWriter, r *http.Request) (*service.Session, bool) {
	s, ok := h.sessions.lookup(mux.Vars(r)["token"])
	if !ok || !s.IsAuthenticated() {
		respondServiceError(w, service.ErrSessionNotAuthenticated)
		return nil, false
	}
	return s, true
}

func (h *Handler) GetBalance(w http.ResponseWriter, r *http.Request) {
	s, ok := h.session(w, r)
	if !ok {
		return
	}

	name, err := s.HolderName()
	if err != nil {
		respondServiceError(w, err)
		return
	}
	balance, err := s.Balance(r.Context())
	if err != nil {
		respondServiceError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, models.BalanceResponse{HolderName: name, Balance: balance})
}

// GetStatement returns the mini statement, or with full=true every retained
// entry plus a summary
func (h *Handler) GetStatement(w http.ResponseWriter, r *http.Request) {
	s, ok := h.session(w, r)
	if !ok {
		return
	}

	name, err := s.HolderName()
	if err != nil {
		respondServiceError(w, err)
		return
	}
	balance, err := s.Balance(r.Context())
	if err != nil {
		respondServiceError(w, err)
		return
	}

	response := models.StatementResponse{HolderName: name, Balance: balance}

	if full, _ := strconv.ParseBool(r.URL.Query().Get("full")); full {
		response.Entries, err = s.History(r.Context())
		if err != nil {
			respondServiceError(w, err)
			return
		}

		summary, err := s.Summary(r.Context(), time.Time{})
		if err != nil {
			respondServiceError(w, err)
			return
		}
		response.Summary = &summary
	} else {
		seq, err := s.MiniStatement(r.Context())
		if err != nil {
			respondServiceError(w, err)
			return
		}
		response.Entries = slices.Collect(seq)
	}

	if response.Entries == nil {
		response.Entries = []models.TransactionEntry{}
	}

	respondJSON(w, http.StatusOK, response)
}

// GetJournal pages through archived entries beyond the retained history
func (h *Handler) GetJournal(w http.ResponseWriter, r *http.Request) {
	s, ok := h.session(w, r)
	if !ok {
		return
	}

	if h.journal == nil {
		respondError(w, http.StatusServiceUnavailable, "journal_unavailable", "journal is not configured")
		return
	}

	// Parsing the query parameters
	limitStr := r.URL.Query().Get("limit")
	offsetStr := r.URL.Query().Get("offset")

	// default limit is set to 10
	limit := 10
	if limitStr != "" {
		parsedLimit, err := strconv.Atoi(limitStr)
		if err == nil && parsedLimit > 0 {
			limit = parsedLimit
		}
	}

	//default offset is set to 0
	offset := 0
	if offsetStr != "" {
		parsedOffset, err := strconv.Atoi(offsetStr)
		if err == nil && parsedOffset >= 0 {
			offset = parsedOffset
		}
	}

	entries, err := h.journal.GetEntries(r.Context(), s, limit, offset)
	if err != nil {
		respondServiceError(w, err)
		return
	}
	if entries == nil {
		entries = []models.TransactionEntry{}
	}

	respondJSON(w, http.StatusOK, entries)
}

type amountOp func(h *Handler, r *http.Request, s *service.Session, amount string) (models.TransactionEntry, error)

func (h *Handler) moveMoney(op amountOp) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s, ok := h.session(w, r)
		if !ok {
			return
		}

		var req models.AmountRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			respondError(w, http.StatusBadRequest, "invalid_request", "invalid request payload")
			return
		}

		entry, err := op(h, r, s, req.Amount)
		if err != nil {
			respondServiceError(w, err)
			return
		}

		respondJSON(w, http.StatusCreated, models.AmountResponse{Entry: entry, Balance: entry.ResultingBalance})
	}
}

func deposit(h *Handler, r *http.Request, s *service.Session, amount string) (models.TransactionEntry, error) {
	return h.engine.Deposit(r.Context(), s, amount)
}

func withdraw(h *Handler, r *http.Request, s *service.Session, amount string) (models.TransactionEntry, error) {
	return h.engine.Withdraw(r.Context(), s, amount)
}

func (h *Handler) ChangePin(w http.ResponseWriter, r *http.Request) {
	s, ok := h.session(w, r)
	if !ok {
		return
	}

	var req models.ChangePinRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", "invalid request payload")
		return
	}

	if _, err := h.engine.ChangePin(r.Context(), s, req.CurrentPin, req.NewPin, req.ConfirmPin); err != nil {
		respondServiceError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// handles health check
func (h *Handler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// sets up the API routes
func SetupRoutes(r *mux.Router, h *Handler) {
	// Health check (check if API is working)
	r.HandleFunc("/health", h.HealthCheck).Methods("GET")

	// Account administration
	r.HandleFunc("/accounts", h.CreateAccount).Methods("POST")
	r.HandleFunc("/accounts/{number}/unlock", h.UnlockAccount).Methods("POST")

	// Teller sessions
	r.HandleFunc("/sessions", h.Login).Methods("POST")
	r.HandleFunc("/sessions/{token}", h.Logout).Methods("DELETE")
	r.HandleFunc("/sessions/{token}/balance", h.GetBalance).Methods("GET")
	r.HandleFunc("/sessions/{token}/statement", h.GetStatement).Methods("GET")
	r.HandleFunc("/sessions/{token}/journal", h.GetJournal).Methods("GET")
	r.HandleFunc("/sessions/{token}/deposits", h.moveMoney(deposit)).Methods("POST")
	r.HandleFunc("/sessions/{token}/withdrawals", h.moveMoney(withdraw)).Methods("POST")
	r.HandleFunc("/sessions/{token}/pin", h.ChangePin).Methods("PUT")
}

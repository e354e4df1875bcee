// Package httphandler is the HTTP driving adapter serving the REST API.
package httphandler

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/ericfisherdev/mailledger/internal/application"
	"github.com/ericfisherdev/mailledger/internal/domain/model"
	"github.com/ericfisherdev/mailledger/internal/domain/port/driven"
)

// Handler serves the REST API: on-demand sync runs, stored
// transactions, and account registration.
type Handler struct {
	accounts     driven.AccountStore
	transactions driven.TransactionStore
	syncSvc      *application.SyncService
	logger       *slog.Logger
}

// NewHandler creates a Handler with all required dependencies.
func NewHandler(
	accounts driven.AccountStore,
	transactions driven.TransactionStore,
	syncSvc *application.SyncService,
	logger *slog.Logger,
) *Handler {
	return &Handler{
		accounts:     accounts,
		transactions: transactions,
		syncSvc:      syncSvc,
		logger:       logger,
	}
}

// NewServeMux creates an http.Handler with all routes registered and wrapped
// with logging and recovery middleware.
func NewServeMux(h *Handler, logger *slog.Logger) http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /api/v1/health", h.Health)
	mux.HandleFunc("GET /api/v1/providers", h.ListProviders)
	mux.HandleFunc("GET /api/v1/stats", h.Stats)
	mux.HandleFunc("GET /api/v1/transactions", h.ListTransactions)
	mux.HandleFunc("GET /api/v1/accounts", h.ListAccounts)
	mux.HandleFunc("POST /api/v1/accounts", h.RegisterAccount)
	mux.HandleFunc("POST /api/v1/sync/sender/{sender}", h.SyncBySender)
	mux.HandleFunc("POST /api/v1/sync/content/{text}", h.SyncByContent)
	mux.HandleFunc("POST /api/v1/sync/subject/{subject}", h.SyncBySubject)
	mux.HandleFunc("POST /api/v1/sync/daily", h.SyncDaily)

	// Recovery innermost so panics are caught before logging.
	wrapped := recoveryMiddleware(logger, mux)
	wrapped = loggingMiddleware(logger, wrapped)

	return wrapped
}

// Health returns a simple health check response.
func (h *Handler) Health(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, HealthResponse{
		Status: "ok",
		Time:   time.Now().UTC().Format(time.RFC3339),
	})
}

// ListProviders returns the registered extractor names in priority order.
func (h *Handler) ListProviders(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, ProvidersResponse{
		Providers: h.syncSvc.Registry().Names(),
	})
}

// Stats returns stored transaction counts grouped by provider.
func (h *Handler) Stats(w http.ResponseWriter, r *http.Request) {
	counts, err := h.transactions.CountByProvider(r.Context())
	if err != nil {
		h.logger.Error("failed to count transactions", "error", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	total := 0
	for _, n := range counts {
		total += n
	}
	if counts == nil {
		counts = map[string]int{}
	}
	writeJSON(w, http.StatusOK, StatsResponse{Total: total, ByProvider: counts})
}

// ListTransactions returns stored transactions, optionally filtered by owner.
func (h *Handler) ListTransactions(w http.ResponseWriter, r *http.Request) {
	limit := queryInt(r, "limit", 100)

	var txs []model.Transaction
	var err error
	if owner := r.URL.Query().Get("owner"); owner != "" {
		txs, err = h.transactions.ListByOwner(r.Context(), owner, limit)
	} else {
		txs, err = h.transactions.ListRecent(r.Context(), limit)
	}
	if err != nil {
		h.logger.Error("failed to list transactions", "error", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	resp := make([]TransactionResponse, 0, len(txs))
	for _, tx := range txs {
		resp = append(resp, toTransactionResponse(tx))
	}
	writeJSON(w, http.StatusOK, resp)
}

// ListAccounts returns active OAuth accounts with secrets redacted.
func (h *Handler) ListAccounts(w http.ResponseWriter, r *http.Request) {
	accts, err := h.accounts.ListActive(r.Context(), model.AuthKindOAuth)
	if err != nil {
		h.logger.Error("failed to list accounts", "error", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	resp := make([]AccountResponse, 0, len(accts))
	for _, acct := range accts {
		resp = append(resp, toAccountResponse(acct))
	}
	writeJSON(w, http.StatusOK, resp)
}

// RegisterAccount adds a new OAuth mail account.
func (h *Handler) RegisterAccount(w http.ResponseWriter, r *http.Request) {
	var req RegisterAccountRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if req.OwnerID == "" || req.RefreshToken == "" || !strings.Contains(req.Address, "@") {
		writeError(w, http.StatusBadRequest, "owner_id, address, and refresh_token are required")
		return
	}

	acct := model.MailAccount{
		ID:           uuid.NewString(),
		OwnerID:      req.OwnerID,
		Address:      req.Address,
		AuthKind:     model.AuthKindOAuth,
		RefreshToken: req.RefreshToken,
		Scopes:       req.Scopes,
		Senders:      req.Senders,
		Active:       true,
	}

	if err := h.accounts.Create(r.Context(), acct); err != nil {
		if errors.Is(err, driven.ErrEncryptionKeyNotSet) {
			writeError(w, http.StatusServiceUnavailable, "token encryption is not configured")
			return
		}
		if strings.Contains(err.Error(), "UNIQUE constraint") {
			writeError(w, http.StatusConflict, "account already exists")
			return
		}
		h.logger.Error("failed to register account", "address", req.Address, "error", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	writeJSON(w, http.StatusCreated, toAccountResponse(acct))
}

// SyncBySender runs a sync for mail from one sender across all accounts.
func (h *Handler) SyncBySender(w http.ResponseWriter, r *http.Request) {
	sender := r.PathValue("sender")
	if !strings.Contains(sender, "@") {
		writeError(w, http.StatusBadRequest, "invalid sender address")
		return
	}
	h.runSync(w, r, application.SyncRequest{Sender: sender})
}

// SyncByContent runs a sync for mail whose text matches across all accounts.
func (h *Handler) SyncByContent(w http.ResponseWriter, r *http.Request) {
	h.runSync(w, r, application.SyncRequest{Text: r.PathValue("text")})
}

// SyncBySubject runs a sync for mail whose subject matches across all accounts.
func (h *Handler) SyncBySubject(w http.ResponseWriter, r *http.Request) {
	h.runSync(w, r, application.SyncRequest{Subject: r.PathValue("subject")})
}

// runSync merges the optional body parameters into the request and
// executes it.
func (h *Handler) runSync(w http.ResponseWriter, r *http.Request, req application.SyncRequest) {
	var params SyncParams
	if err := decodeOptionalBody(r, &params); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	req.Limit = params.Limit
	var err error
	if req.Since, err = parseDate(params.StartDate); err != nil {
		writeError(w, http.StatusBadRequest, "start_date must be YYYY-MM-DD")
		return
	}
	if req.Until, err = parseDate(params.EndDate); err != nil {
		writeError(w, http.StatusBadRequest, "end_date must be YYYY-MM-DD")
		return
	}

	outcome, err := h.syncSvc.SyncSender(r.Context(), req)
	if err != nil {
		h.logger.Error("sync run failed", "error", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}
	writeJSON(w, http.StatusOK, toBatchResponse(outcome))
}

// SyncDaily runs the per-account sender-filtered sync for one day,
// defaulting to today.
func (h *Handler) SyncDaily(w http.ResponseWriter, r *http.Request) {
	var params DailySyncParams
	if err := decodeOptionalBody(r, &params); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	day := time.Now().UTC()
	if params.Date != "" {
		parsed, err := time.Parse("2006-01-02", params.Date)
		if err != nil {
			writeError(w, http.StatusBadRequest, "date must be YYYY-MM-DD")
			return
		}
		day = parsed
	}

	outcome, err := h.syncSvc.SyncDay(r.Context(), day)
	if err != nil {
		h.logger.Error("daily sync failed", "error", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}
	writeJSON(w, http.StatusOK, toBatchResponse(outcome))
}

// decodeOptionalBody decodes a JSON body into v, treating an empty
// body as all defaults.
func decodeOptionalBody(r *http.Request, v any) error {
	err := json.NewDecoder(r.Body).Decode(v)
	if err == nil || errors.Is(err, io.EOF) {
		return nil
	}
	return errors.New("invalid request body")
}

func parseDate(s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, nil
	}
	return time.Parse("2006-01-02", s)
}

func queryInt(r *http.Request, key string, fallback int) int {
	v := r.URL.Query().Get(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil || n <= 0 {
		return fallback
	}
	return n
}

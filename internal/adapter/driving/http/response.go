package httphandler

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/ericfisherdev/mailledger/internal/domain/model"
)

// writeJSON marshals v to JSON and writes it to the response with the given
// status code. If marshaling fails, a 500 error is written instead.
func writeJSON(w http.ResponseWriter, status int, v any) {
	data, err := json.Marshal(v)
	if err != nil {
		w.Header().Set("Content-Type", "application/json; charset=utf-8")
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte(`{"error":"internal server error"}`))
		return
	}

	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_, _ = w.Write(data)
}

// writeError writes a JSON error response with the given status code and message.
func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, errorResponse{Error: message})
}

// errorResponse is the standard error response body.
type errorResponse struct {
	Error string `json:"error"`
}

// HealthResponse is the health check response body.
type HealthResponse struct {
	Status string `json:"status"`
	Time   string `json:"time"`
}

// ProvidersResponse lists the registered extractor names.
type ProvidersResponse struct {
	Providers []string `json:"providers"`
}

// StatsResponse reports stored transaction counts.
type StatsResponse struct {
	Total      int            `json:"total"`
	ByProvider map[string]int `json:"by_provider"`
}

// RegisterAccountRequest is the account registration request body.
type RegisterAccountRequest struct {
	OwnerID      string   `json:"owner_id"`
	Address      string   `json:"address"`
	RefreshToken string   `json:"refresh_token"`
	Scopes       []string `json:"scopes"`
	Senders      []string `json:"senders"`
}

// SyncParams are the optional body parameters of the sync endpoints.
type SyncParams struct {
	Limit     int    `json:"limit"`
	StartDate string `json:"start_date"`
	EndDate   string `json:"end_date"`
}

// DailySyncParams are the optional body parameters of the daily sync endpoint.
type DailySyncParams struct {
	Date string `json:"date"`
}

// AccountResponse is the JSON representation of a mail account. Tokens
// never appear in responses.
type AccountResponse struct {
	ID         string   `json:"id"`
	OwnerID    string   `json:"owner_id"`
	Address    string   `json:"address"`
	AuthKind   string   `json:"auth_kind"`
	Scopes     []string `json:"scopes"`
	Senders    []string `json:"senders"`
	Active     bool     `json:"active"`
	LastSyncAt string   `json:"last_sync_at,omitempty"`
}

func toAccountResponse(acct model.MailAccount) AccountResponse {
	resp := AccountResponse{
		ID:       acct.ID,
		OwnerID:  acct.OwnerID,
		Address:  acct.Address,
		AuthKind: string(acct.AuthKind),
		Scopes:   acct.Scopes,
		Senders:  acct.Senders,
		Active:   acct.Active,
	}
	if resp.Scopes == nil {
		resp.Scopes = []string{}
	}
	if resp.Senders == nil {
		resp.Senders = []string{}
	}
	if acct.LastSyncAt != nil {
		resp.LastSyncAt = acct.LastSyncAt.UTC().Format(time.RFC3339)
	}
	return resp
}

// TransactionResponse is the JSON representation of a transaction.
type TransactionResponse struct {
	ID          int64   `json:"id"`
	OwnerID     string  `json:"owner_id"`
	AccountID   string  `json:"account_id"`
	Amount      float64 `json:"amount"`
	Currency    string  `json:"currency"`
	PaidBy      string  `json:"paid_by,omitempty"`
	PaidTo      string  `json:"paid_to,omitempty"`
	Status      string  `json:"status"`
	ExternalRef string  `json:"external_ref"`
	OccurredAt  string  `json:"occurred_at"`
	Direction   string  `json:"direction"`
	Provider    string  `json:"provider"`
	Description string  `json:"description,omitempty"`
}

func toTransactionResponse(tx model.Transaction) TransactionResponse {
	return TransactionResponse{
		ID:          tx.ID,
		OwnerID:     tx.OwnerID,
		AccountID:   tx.AccountID,
		Amount:      tx.Amount,
		Currency:    tx.Currency,
		PaidBy:      tx.PaidBy,
		PaidTo:      tx.PaidTo,
		Status:      string(tx.Status),
		ExternalRef: tx.ExternalRef,
		OccurredAt:  tx.OccurredAt.Format(time.RFC3339),
		Direction:   string(tx.Direction),
		Provider:    tx.Provider,
		Description: tx.Description,
	}
}

// AccountOutcomeResponse is one account's share of a sync run.
type AccountOutcomeResponse struct {
	AccountID     string   `json:"account_id"`
	Address       string   `json:"address"`
	Seen          int      `json:"seen"`
	Parsed        int      `json:"parsed"`
	Inserted      int      `json:"inserted"`
	Duplicates    int      `json:"duplicates"`
	ParseFailures int      `json:"parse_failures"`
	Errors        []string `json:"errors"`
}

// BatchResponse summarizes a full sync run.
type BatchResponse struct {
	StartedAt  string                   `json:"started_at"`
	FinishedAt string                   `json:"finished_at"`
	Seen       int                      `json:"seen"`
	Parsed     int                      `json:"parsed"`
	Inserted   int                      `json:"inserted"`
	Duplicates int                      `json:"duplicates"`
	Accounts   []AccountOutcomeResponse `json:"accounts"`
}

func toBatchResponse(b *model.BatchOutcome) BatchResponse {
	seen, parsed, inserted, duplicates, _ := b.Totals()
	resp := BatchResponse{
		StartedAt:  b.StartedAt.UTC().Format(time.RFC3339),
		FinishedAt: b.FinishedAt.UTC().Format(time.RFC3339),
		Seen:       seen,
		Parsed:     parsed,
		Inserted:   inserted,
		Duplicates: duplicates,
		Accounts:   make([]AccountOutcomeResponse, 0, len(b.Accounts)),
	}
	for _, a := range b.Accounts {
		errs := a.Errors
		if errs == nil {
			errs = []string{}
		}
		resp.Accounts = append(resp.Accounts, AccountOutcomeResponse{
			AccountID:     a.AccountID,
			Address:       a.Address,
			Seen:          a.Seen,
			Parsed:        a.Parsed,
			Inserted:      a.Inserted,
			Duplicates:    a.Duplicates,
			ParseFailures: a.Failures,
			Errors:        errs,
		})
	}
	return resp
}

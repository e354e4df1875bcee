package httphandler_test

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	httphandler "github.com/ericfisherdev/mailledger/internal/adapter/driving/http"
	"github.com/ericfisherdev/mailledger/internal/application"
	"github.com/ericfisherdev/mailledger/internal/domain/model"
	"github.com/ericfisherdev/mailledger/internal/domain/port/driven"
	"github.com/ericfisherdev/mailledger/internal/parser"
)

// --- Mock implementations ---

type mockAccountStore struct {
	accounts  []model.MailAccount
	created   []model.MailAccount
	createErr error
	listErr   error
}

func (m *mockAccountStore) Create(_ context.Context, acct model.MailAccount) error {
	if m.createErr != nil {
		return m.createErr
	}
	m.created = append(m.created, acct)
	return nil
}

func (m *mockAccountStore) Get(_ context.Context, _ string) (*model.MailAccount, error) {
	return nil, driven.ErrAccountNotFound
}

func (m *mockAccountStore) ListActive(_ context.Context, _ model.AuthKind) ([]model.MailAccount, error) {
	return m.accounts, m.listErr
}

func (m *mockAccountStore) UpdateToken(_ context.Context, _ string, _ string, _ time.Time) error {
	return nil
}

func (m *mockAccountStore) UpdateLastSync(_ context.Context, _ string, _ time.Time) error {
	return nil
}

func (m *mockAccountStore) Deactivate(_ context.Context, _ string) error { return nil }

type mockTransactionStore struct {
	txs    []model.Transaction
	counts map[string]int
	err    error
}

func (m *mockTransactionStore) Insert(_ context.Context, _ model.Transaction) (driven.InsertStatus, error) {
	return driven.InsertedNew, nil
}

func (m *mockTransactionStore) ListByOwner(_ context.Context, owner string, _ int) ([]model.Transaction, error) {
	var out []model.Transaction
	for _, tx := range m.txs {
		if tx.OwnerID == owner {
			out = append(out, tx)
		}
	}
	return out, m.err
}

func (m *mockTransactionStore) ListRecent(_ context.Context, _ int) ([]model.Transaction, error) {
	return m.txs, m.err
}

func (m *mockTransactionStore) CountByProvider(_ context.Context) (map[string]int, error) {
	return m.counts, m.err
}

type mockSession struct {
	msgs []model.RawMessage
}

func (m *mockSession) Search(_ context.Context, _ driven.MailQuery) ([]model.RawMessage, error) {
	return m.msgs, nil
}

func (m *mockSession) Close() error { return nil }

type mockMailClient struct {
	session *mockSession
}

func (m *mockMailClient) Open(_ context.Context, _ *model.MailAccount) (driven.MailSession, error) {
	if m.session == nil {
		return &mockSession{}, nil
	}
	return m.session, nil
}

type mockExchanger struct{}

func (m *mockExchanger) Exchange(_ context.Context, _ string) (string, time.Time, error) {
	return "ya29.fresh", time.Now().Add(time.Hour), nil
}

// --- Helpers ---

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestServer(accounts *mockAccountStore, txs *mockTransactionStore, mail *mockMailClient) http.Handler {
	tokens := application.NewTokenService(&mockExchanger{}, accounts, 5*time.Minute)
	syncSvc := application.NewSyncService(accounts, txs, mail, tokens, parser.DefaultRegistry(), time.Minute, 0)
	h := httphandler.NewHandler(accounts, txs, syncSvc, testLogger())
	return httphandler.NewServeMux(h, testLogger())
}

func activeAccount() model.MailAccount {
	return model.MailAccount{
		ID:           "acct-1",
		OwnerID:      "owner-1",
		Address:      "alice@example.com",
		AuthKind:     model.AuthKindOAuth,
		AccessToken:  "ya29.secret",
		RefreshToken: "1//secret",
		TokenExpiry:  time.Now().Add(time.Hour),
		Senders:      []string{"cash@square.com"},
		Active:       true,
	}
}

// --- Tests ---

func TestHealth(t *testing.T) {
	mux := newTestServer(&mockAccountStore{}, &mockTransactionStore{}, &mockMailClient{})

	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/health", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	var resp httphandler.HealthResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "ok", resp.Status)
}

func TestListProviders(t *testing.T) {
	mux := newTestServer(&mockAccountStore{}, &mockTransactionStore{}, &mockMailClient{})

	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/providers", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	var resp httphandler.ProvidersResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, []string{"cashapp", "generic"}, resp.Providers)
}

func TestStats(t *testing.T) {
	txs := &mockTransactionStore{counts: map[string]int{"square": 3, "venmo": 2}}
	mux := newTestServer(&mockAccountStore{}, txs, &mockMailClient{})

	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/stats", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	var resp httphandler.StatsResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, 5, resp.Total)
	assert.Equal(t, 3, resp.ByProvider["square"])
}

func TestListTransactions_OwnerFilter(t *testing.T) {
	txs := &mockTransactionStore{txs: []model.Transaction{
		{OwnerID: "owner-1", Amount: 450, ExternalRef: "#A", Provider: "square", OccurredAt: time.Now()},
		{OwnerID: "owner-2", Amount: 25, ExternalRef: "#B", Provider: "venmo", OccurredAt: time.Now()},
	}}
	mux := newTestServer(&mockAccountStore{}, txs, &mockMailClient{})

	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/transactions?owner=owner-1", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	var resp []httphandler.TransactionResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Len(t, resp, 1)
	assert.Equal(t, "#A", resp[0].ExternalRef)
}

func TestListAccounts_TokensRedacted(t *testing.T) {
	accounts := &mockAccountStore{accounts: []model.MailAccount{activeAccount()}}
	mux := newTestServer(accounts, &mockTransactionStore{}, &mockMailClient{})

	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/accounts", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.NotContains(t, rec.Body.String(), "secret", "tokens must never appear in responses")

	var resp []httphandler.AccountResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Len(t, resp, 1)
	assert.Equal(t, "alice@example.com", resp[0].Address)
}

func TestRegisterAccount(t *testing.T) {
	accounts := &mockAccountStore{}
	mux := newTestServer(accounts, &mockTransactionStore{}, &mockMailClient{})

	body := `{"owner_id":"owner-1","address":"alice@example.com","refresh_token":"1//tok","senders":["cash@square.com"]}`
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/v1/accounts", strings.NewReader(body)))

	require.Equal(t, http.StatusCreated, rec.Code)
	require.Len(t, accounts.created, 1)
	assert.NotEmpty(t, accounts.created[0].ID)
	assert.Equal(t, model.AuthKindOAuth, accounts.created[0].AuthKind)
	assert.True(t, accounts.created[0].Active)
	assert.NotContains(t, rec.Body.String(), "1//tok")
}

func TestRegisterAccount_MissingFields(t *testing.T) {
	mux := newTestServer(&mockAccountStore{}, &mockTransactionStore{}, &mockMailClient{})

	body := `{"address":"not-an-address"}`
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/v1/accounts", strings.NewReader(body)))

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestRegisterAccount_NoEncryptionKey(t *testing.T) {
	accounts := &mockAccountStore{createErr: driven.ErrEncryptionKeyNotSet}
	mux := newTestServer(accounts, &mockTransactionStore{}, &mockMailClient{})

	body := `{"owner_id":"owner-1","address":"alice@example.com","refresh_token":"1//tok"}`
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/v1/accounts", strings.NewReader(body)))

	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestRegisterAccount_Duplicate(t *testing.T) {
	accounts := &mockAccountStore{createErr: errors.New("constraint failed: UNIQUE constraint failed: accounts.address")}
	mux := newTestServer(accounts, &mockTransactionStore{}, &mockMailClient{})

	body := `{"owner_id":"owner-1","address":"alice@example.com","refresh_token":"1//tok"}`
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/v1/accounts", strings.NewReader(body)))

	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestSyncBySender(t *testing.T) {
	accounts := &mockAccountStore{accounts: []model.MailAccount{activeAccount()}}
	mail := &mockMailClient{session: &mockSession{msgs: []model.RawMessage{{
		Sender:  "cash@square.com",
		Subject: "Barbara Amador sent you $450.00",
		Body:    "Barbara Amador sent you $450.00 for rent\n#D-QQENK44E\n",
		Date:    time.Now(),
	}}}}
	mux := newTestServer(accounts, &mockTransactionStore{}, mail)

	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/v1/sync/sender/cash@square.com", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	var resp httphandler.BatchResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, 1, resp.Seen)
	assert.Equal(t, 1, resp.Inserted)
	require.Len(t, resp.Accounts, 1)
	assert.Equal(t, "alice@example.com", resp.Accounts[0].Address)
}

func TestSyncBySender_InvalidSender(t *testing.T) {
	mux := newTestServer(&mockAccountStore{}, &mockTransactionStore{}, &mockMailClient{})

	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/v1/sync/sender/not-an-address", nil))

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestSyncBySender_BadDateParam(t *testing.T) {
	mux := newTestServer(&mockAccountStore{}, &mockTransactionStore{}, &mockMailClient{})

	body := `{"start_date":"28-08-2026"}`
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/v1/sync/sender/cash@square.com", strings.NewReader(body)))

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestSyncBySender_ListFailure(t *testing.T) {
	accounts := &mockAccountStore{listErr: errors.New("database is locked")}
	mux := newTestServer(accounts, &mockTransactionStore{}, &mockMailClient{})

	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/v1/sync/sender/cash@square.com", nil))

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}

func TestSyncDaily(t *testing.T) {
	accounts := &mockAccountStore{accounts: []model.MailAccount{activeAccount()}}
	mux := newTestServer(accounts, &mockTransactionStore{}, &mockMailClient{})

	body := `{"date":"2026-08-28"}`
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/v1/sync/daily", strings.NewReader(body)))

	require.Equal(t, http.StatusOK, rec.Code)
	var resp httphandler.BatchResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Len(t, resp.Accounts, 1)
}

func TestSyncDaily_BadDate(t *testing.T) {
	mux := newTestServer(&mockAccountStore{}, &mockTransactionStore{}, &mockMailClient{})

	body := `{"date":"yesterday"}`
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/v1/sync/daily", strings.NewReader(body)))

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

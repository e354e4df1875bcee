package application

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/ericfisherdev/mailledger/internal/domain/model"
	"github.com/ericfisherdev/mailledger/internal/domain/port/driven"
	"github.com/ericfisherdev/mailledger/internal/parser"
)

// SyncRequest narrows an on-demand sync run. Exactly one of Sender,
// Text, or Subject should be set. Limit caps results per account,
// 0 meaning unbounded; Since and Until bound the date range when
// non-zero.
type SyncRequest struct {
	Sender  string
	Text    string
	Subject string
	Limit   int
	Since   time.Time
	Until   time.Time
}

// SyncService walks every active OAuth account sequentially: refresh
// the token if needed, open the mailbox, search, parse, insert. A
// failing account is recorded in its outcome and never stops the
// accounts after it; the only run-level error is failing to list
// accounts at all.
type SyncService struct {
	accounts     driven.AccountStore
	transactions driven.TransactionStore
	mail         driven.MailClient
	tokens       *TokenService
	registry     *parser.Registry
	fetchTimeout time.Duration
	interval     time.Duration
}

// NewSyncService creates a SyncService. fetchTimeout bounds the work
// done per account; interval drives Start's scheduled daily runs, 0
// disabling them.
func NewSyncService(
	accounts driven.AccountStore,
	transactions driven.TransactionStore,
	mail driven.MailClient,
	tokens *TokenService,
	registry *parser.Registry,
	fetchTimeout time.Duration,
	interval time.Duration,
) *SyncService {
	return &SyncService{
		accounts:     accounts,
		transactions: transactions,
		mail:         mail,
		tokens:       tokens,
		registry:     registry,
		fetchTimeout: fetchTimeout,
		interval:     interval,
	}
}

// Registry exposes the extractor registry for listing endpoints.
func (s *SyncService) Registry() *parser.Registry {
	return s.registry
}

// SyncSender runs one query against every active OAuth account.
func (s *SyncService) SyncSender(ctx context.Context, req SyncRequest) (*model.BatchOutcome, error) {
	q := driven.MailQuery{
		Sender:  req.Sender,
		Text:    req.Text,
		Subject: req.Subject,
		Since:   req.Since,
		Before:  req.Until,
		Limit:   req.Limit,
	}
	return s.run(ctx, func(*model.MailAccount) []driven.MailQuery {
		return []driven.MailQuery{q}
	})
}

// SyncDay syncs one calendar day for every account, querying each of
// the account's configured provider senders. Accounts with no senders
// configured produce an empty outcome rather than an error.
func (s *SyncService) SyncDay(ctx context.Context, day time.Time) (*model.BatchOutcome, error) {
	since := time.Date(day.Year(), day.Month(), day.Day(), 0, 0, 0, 0, time.UTC)
	before := since.Add(24 * time.Hour)

	return s.run(ctx, func(acct *model.MailAccount) []driven.MailQuery {
		queries := make([]driven.MailQuery, 0, len(acct.Senders))
		for _, sender := range acct.Senders {
			queries = append(queries, driven.MailQuery{
				Sender: sender,
				Since:  since,
				Before: before,
			})
		}
		return queries
	})
}

// Start runs an immediate daily sync, then repeats on the configured
// interval until the context is canceled. A zero interval disables
// scheduled runs entirely.
func (s *SyncService) Start(ctx context.Context) {
	if s.interval <= 0 {
		slog.Info("scheduled sync disabled")
		return
	}

	if _, err := s.SyncDay(ctx, time.Now().UTC()); err != nil {
		slog.Error("initial sync failed", "error", err)
	}

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			slog.Info("sync service stopped")
			return
		case <-ticker.C:
			if _, err := s.SyncDay(ctx, time.Now().UTC()); err != nil {
				slog.Error("sync cycle failed", "error", err)
			}
		}
	}
}

// run is the shared account loop. queriesFor decides what each account
// searches for.
func (s *SyncService) run(ctx context.Context, queriesFor func(*model.MailAccount) []driven.MailQuery) (*model.BatchOutcome, error) {
	start := time.Now().UTC()

	accts, err := s.accounts.ListActive(ctx, model.AuthKindOAuth)
	if err != nil {
		return nil, fmt.Errorf("list accounts: %w", err)
	}

	outcome := &model.BatchOutcome{StartedAt: start}
	for i := range accts {
		if ctx.Err() != nil {
			outcome.FinishedAt = time.Now().UTC()
			return outcome, ctx.Err()
		}

		acct := &accts[i]
		outcome.Accounts = append(outcome.Accounts, s.syncAccount(ctx, acct, queriesFor(acct)))
	}
	outcome.FinishedAt = time.Now().UTC()

	failedAccounts := 0
	for i := range outcome.Accounts {
		if outcome.Accounts[i].Failed() {
			failedAccounts++
		}
	}

	seen, parsed, inserted, duplicates, failures := outcome.Totals()
	slog.Info("sync run complete",
		"accounts", len(accts),
		"failed_accounts", failedAccounts,
		"seen", seen,
		"parsed", parsed,
		"inserted", inserted,
		"duplicates", duplicates,
		"parse_failures", failures,
		"duration", time.Since(start).Round(time.Millisecond),
	)
	return outcome, nil
}

// syncAccount processes one account end to end. Every failure lands in
// the returned outcome; nothing escapes to abort the run.
func (s *SyncService) syncAccount(ctx context.Context, acct *model.MailAccount, queries []driven.MailQuery) model.AccountOutcome {
	out := model.AccountOutcome{AccountID: acct.ID, Address: acct.Address}

	if len(queries) == 0 {
		return out
	}

	actx := ctx
	if s.fetchTimeout > 0 {
		var cancel context.CancelFunc
		actx, cancel = context.WithTimeout(ctx, s.fetchTimeout)
		defer cancel()
	}

	if err := s.tokens.EnsureFresh(actx, acct); err != nil {
		slog.Error("token refresh failed", "account", acct.Address, "error", err)
		out.Errors = append(out.Errors, err.Error())
		return out
	}

	session, err := s.openSession(actx, acct)
	if err != nil {
		slog.Error("mailbox open failed", "account", acct.Address, "error", err)
		out.Errors = append(out.Errors, err.Error())
		return out
	}
	defer func() { _ = session.Close() }()

	processed := false
	for _, q := range queries {
		msgs, err := session.Search(actx, q)
		if err != nil {
			slog.Error("mailbox search failed", "account", acct.Address, "error", err)
			out.Errors = append(out.Errors, err.Error())
			continue
		}
		processed = true
		s.processMessages(actx, acct, msgs, &out)
	}

	// Any successfully processed query advances the sync cursor, even
	// when a sibling query or an individual insert failed.
	if processed {
		if err := s.accounts.UpdateLastSync(ctx, acct.ID, time.Now().UTC()); err != nil {
			slog.Error("update last sync failed", "account", acct.Address, "error", err)
		}
	}

	slog.Info("account synced",
		"account", acct.Address,
		"seen", out.Seen,
		"parsed", out.Parsed,
		"inserted", out.Inserted,
		"duplicates", out.Duplicates,
		"parse_failures", out.Failures,
		"errors", len(out.Errors),
	)
	return out
}

// openSession opens the mailbox, retrying exactly once with a forced
// token refresh when the server rejects a token the expiry still
// considered valid.
func (s *SyncService) openSession(ctx context.Context, acct *model.MailAccount) (driven.MailSession, error) {
	session, err := s.mail.Open(ctx, acct)
	if err == nil || !driven.IsCredentialRejected(err) {
		return session, err
	}

	slog.Info("credential rejected, forcing token refresh", "account", acct.Address)
	if rerr := s.tokens.ForceRefresh(ctx, acct); rerr != nil {
		return nil, rerr
	}
	return s.mail.Open(ctx, acct)
}

// processMessages parses and inserts one search's results. Messages no
// extractor claims are skipped silently; claimed messages that fail to
// parse are counted but never recorded as account errors.
func (s *SyncService) processMessages(ctx context.Context, acct *model.MailAccount, msgs []model.RawMessage, out *model.AccountOutcome) {
	out.Seen += len(msgs)

	for _, msg := range msgs {
		extractor := s.registry.Select(msg)
		if extractor == nil {
			continue
		}

		tx, err := extractor.Parse(msg)
		if err != nil {
			out.Failures++
			continue
		}
		out.Parsed++

		tx.OwnerID = acct.OwnerID
		tx.AccountID = acct.ID

		status, err := s.transactions.Insert(ctx, *tx)
		if err != nil {
			slog.Error("transaction insert failed",
				"account", acct.Address,
				"ref", tx.ExternalRef,
				"error", err,
			)
			out.Errors = append(out.Errors, err.Error())
			continue
		}
		switch status {
		case driven.InsertedNew:
			out.Inserted++
		case driven.InsertedDuplicate:
			out.Duplicates++
		}
	}
}

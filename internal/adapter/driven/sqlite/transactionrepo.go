package sqlite

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/ericfisherdev/mailledger/internal/domain/model"
	"github.com/ericfisherdev/mailledger/internal/domain/port/driven"
	sqlitedriver "modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"
)

// Compile-time interface satisfaction check.
var _ driven.TransactionStore = (*TransactionRepo)(nil)

// TransactionRepo is the SQLite implementation of the TransactionStore port
// interface. Deduplication rests on the unique index over
// (owner_id, external_ref, provider); a constraint violation on insert is
// reported as InsertedDuplicate, not an error.
type TransactionRepo struct {
	db *DB
}

// NewTransactionRepo creates a new TransactionRepo backed by the given DB.
func NewTransactionRepo(db *DB) *TransactionRepo {
	return &TransactionRepo{db: db}
}

// Insert writes one transaction. The unique index is the authority on
// duplicates, so concurrent inserts of the same record resolve to exactly
// one row without any read-before-write.
func (r *TransactionRepo) Insert(ctx context.Context, tx model.Transaction) (driven.InsertStatus, error) {
	const query = `
		INSERT INTO transactions (
			owner_id, account_id, amount, currency, paid_by, paid_to,
			status, external_ref, occurred_at, direction, provider, description
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err := r.db.Writer.ExecContext(ctx, query,
		tx.OwnerID, tx.AccountID, tx.Amount, tx.Currency, tx.PaidBy, tx.PaidTo,
		string(tx.Status), tx.ExternalRef, tx.OccurredAt.Format(time.RFC3339),
		string(tx.Direction), tx.Provider, tx.Description,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return driven.InsertedDuplicate, nil
		}
		return 0, fmt.Errorf("insert transaction %s/%s: %w", tx.Provider, tx.ExternalRef, err)
	}
	return driven.InsertedNew, nil
}

// ListByOwner returns the owner's transactions, most recent first.
func (r *TransactionRepo) ListByOwner(ctx context.Context, ownerID string, limit int) ([]model.Transaction, error) {
	const query = txSelect + ` WHERE owner_id = ? ORDER BY occurred_at DESC LIMIT ?`
	return r.queryTransactions(ctx, query, ownerID, normalizeLimit(limit))
}

// ListRecent returns the most recent transactions across all owners.
func (r *TransactionRepo) ListRecent(ctx context.Context, limit int) ([]model.Transaction, error) {
	const query = txSelect + ` ORDER BY occurred_at DESC LIMIT ?`
	return r.queryTransactions(ctx, query, normalizeLimit(limit))
}

// CountByProvider returns per-provider transaction counts.
func (r *TransactionRepo) CountByProvider(ctx context.Context) (map[string]int, error) {
	const query = `SELECT provider, COUNT(*) FROM transactions GROUP BY provider`

	rows, err := r.db.Reader.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("count by provider: %w", err)
	}
	defer rows.Close()

	counts := make(map[string]int)
	for rows.Next() {
		var provider string
		var n int
		if err := rows.Scan(&provider, &n); err != nil {
			return nil, fmt.Errorf("scan provider count: %w", err)
		}
		counts[provider] = n
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate provider counts: %w", err)
	}
	return counts, nil
}

const txSelect = `
	SELECT id, owner_id, account_id, amount, currency, paid_by, paid_to,
	       status, external_ref, occurred_at, direction, provider, description, created_at
	FROM transactions`

func (r *TransactionRepo) queryTransactions(ctx context.Context, query string, args ...any) ([]model.Transaction, error) {
	rows, err := r.db.Reader.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query transactions: %w", err)
	}
	defer rows.Close()

	var txs []model.Transaction
	for rows.Next() {
		tx, err := scanTransaction(rows)
		if err != nil {
			return nil, fmt.Errorf("scan transaction: %w", err)
		}
		txs = append(txs, *tx)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate transactions: %w", err)
	}
	return txs, nil
}

func scanTransaction(s scanner) (*model.Transaction, error) {
	var tx model.Transaction
	var status, direction, occurredAt, createdAt string

	err := s.Scan(
		&tx.ID, &tx.OwnerID, &tx.AccountID, &tx.Amount, &tx.Currency,
		&tx.PaidBy, &tx.PaidTo, &status, &tx.ExternalRef, &occurredAt,
		&direction, &tx.Provider, &tx.Description, &createdAt,
	)
	if err != nil {
		return nil, err
	}

	tx.Status = model.TxStatus(status)
	tx.Direction = model.Direction(direction)

	if tx.OccurredAt, err = parseTime(occurredAt); err != nil {
		return nil, fmt.Errorf("parse occurred_at: %w", err)
	}
	if tx.CreatedAt, err = parseTime(createdAt); err != nil {
		return nil, fmt.Errorf("parse created_at: %w", err)
	}

	return &tx, nil
}

// isUniqueViolation reports whether err is a SQLite UNIQUE constraint
// failure.
func isUniqueViolation(err error) bool {
	var se *sqlitedriver.Error
	if !errors.As(err, &se) {
		return false
	}
	code := se.Code()
	return code == sqlite3.SQLITE_CONSTRAINT_UNIQUE || code == sqlite3.SQLITE_CONSTRAINT_PRIMARYKEY
}

func normalizeLimit(limit int) int {
	if limit <= 0 {
		return 100
	}
	return limit
}

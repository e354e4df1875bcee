package driven

import (
	"context"

	"github.com/ericfisherdev/mailledger/internal/domain/model"
)

// InsertStatus reports what a single Insert call did.
type InsertStatus int

const (
	// InsertedNew means the row was written.
	InsertedNew InsertStatus = iota
	// InsertedDuplicate means a row with the same owner, external
	// reference, and provider already existed and nothing was written.
	InsertedDuplicate
)

// TransactionStore defines the driven port for the transaction sink.
// The store owns deduplication: inserting the same transaction twice is
// always safe and reports InsertedDuplicate on every attempt after the
// first, including under concurrent writers.
type TransactionStore interface {
	// Insert writes one transaction. A uniqueness collision on
	// (owner, external reference, provider) is not an error.
	Insert(ctx context.Context, tx model.Transaction) (InsertStatus, error)

	// ListByOwner returns the owner's transactions, most recent first.
	ListByOwner(ctx context.Context, ownerID string, limit int) ([]model.Transaction, error)

	// ListRecent returns the most recent transactions across owners.
	ListRecent(ctx context.Context, limit int) ([]model.Transaction, error)

	// CountByProvider returns per-provider transaction counts.
	CountByProvider(ctx context.Context) (map[string]int, error)
}

package driven

import (
	"context"
	"time"

	"github.com/ericfisherdev/mailledger/internal/domain/model"
)

// MailQuery narrows a mailbox search. Exactly one of Sender, Text, or
// Subject should be set; Since and Before bound the date range when
// non-zero. Limit caps the result to the most recent N messages, 0
// meaning unbounded.
type MailQuery struct {
	Sender  string
	Text    string
	Subject string
	Since   time.Time
	Before  time.Time
	Limit   int
}

// MailClient defines the driven port for opening mailbox sessions.
type MailClient interface {
	// Open connects and authenticates a session for the account using
	// its current access token. A rejected credential is reported as an
	// AccessError with KindCredential.
	Open(ctx context.Context, acct *model.MailAccount) (MailSession, error)
}

// MailSession is a live connection to one mailbox. Sessions are not
// safe for concurrent use and must be closed before the next account
// is processed.
type MailSession interface {
	// Search runs the query server-side and returns matching messages
	// with their bodies flattened to plain text.
	Search(ctx context.Context, q MailQuery) ([]model.RawMessage, error)

	// Close logs out and releases the connection.
	Close() error
}

package driven

import (
	"context"
	"errors"
	"time"

	"github.com/ericfisherdev/mailledger/internal/domain/model"
)

// Sentinel errors returned by AccountStore implementations.
var (
	ErrAccountNotFound = errors.New("account not found")

	// ErrEncryptionKeyNotSet is returned when MAILLEDGER_SECRET_KEY has
	// not been configured and an operation needs to touch stored tokens.
	ErrEncryptionKeyNotSet = errors.New("encryption key not configured: set MAILLEDGER_SECRET_KEY")
)

// AccountStore defines the driven port for mail account persistence.
// Token fields cross this boundary as plaintext; the adapter encrypts
// them at rest.
type AccountStore interface {
	// Create stores a new account. The caller assigns the ID.
	Create(ctx context.Context, acct model.MailAccount) error

	// Get returns the account with the given ID, tokens decrypted.
	// Returns ErrAccountNotFound if it does not exist.
	Get(ctx context.Context, id string) (*model.MailAccount, error)

	// ListActive returns every active account of the given auth kind,
	// ordered by address. Tokens are decrypted plaintext.
	ListActive(ctx context.Context, kind model.AuthKind) ([]model.MailAccount, error)

	// UpdateToken replaces the stored access token and expiry for one
	// account. The refresh token is left untouched.
	UpdateToken(ctx context.Context, id string, accessToken string, expiry time.Time) error

	// UpdateLastSync records when the account was last processed.
	UpdateLastSync(ctx context.Context, id string, at time.Time) error

	// Deactivate marks the account inactive so sync runs skip it.
	Deactivate(ctx context.Context, id string) error
}

package model

import "time"

// MailAccount is a mailbox the pipeline reads from. AccessToken and
// RefreshToken are plaintext in memory only; the store encrypts them at
// rest. Senders lists the provider addresses this account is synced
// against during scheduled runs.
type MailAccount struct {
	ID           string
	OwnerID      string
	Address      string
	AuthKind     AuthKind
	AccessToken  string
	RefreshToken string
	TokenExpiry  time.Time
	Scopes       []string
	Senders      []string
	Active       bool
	LastSyncAt   *time.Time
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// TokenValid reports whether the access token is still usable at least
// margin into the future. A zero expiry is treated as expired.
func (a *MailAccount) TokenValid(now time.Time, margin time.Duration) bool {
	if a.TokenExpiry.IsZero() {
		return false
	}
	return now.Add(margin).Before(a.TokenExpiry)
}

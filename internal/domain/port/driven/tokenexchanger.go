package driven

import (
	"context"
	"time"
)

// TokenExchanger defines the driven port for redeeming a refresh token
// at the identity provider's token endpoint.
type TokenExchanger interface {
	// Exchange trades the refresh token for a new access token and its
	// absolute expiry. Failures are reported as a *RefreshError.
	Exchange(ctx context.Context, refreshToken string) (accessToken string, expiry time.Time, err error)
}

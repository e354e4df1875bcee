package application

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/ericfisherdev/mailledger/internal/domain/model"
	"github.com/ericfisherdev/mailledger/internal/domain/port/driven"
)

// TokenService keeps account access tokens usable. A token is treated
// as expired once it is within the safety margin of its expiry, so a
// mail session opened right after EnsureFresh cannot outlive its token
// mid-search.
type TokenService struct {
	exchanger driven.TokenExchanger
	accounts  driven.AccountStore
	margin    time.Duration
}

// NewTokenService creates a TokenService with the given expiry margin.
func NewTokenService(exchanger driven.TokenExchanger, accounts driven.AccountStore, margin time.Duration) *TokenService {
	return &TokenService{
		exchanger: exchanger,
		accounts:  accounts,
		margin:    margin,
	}
}

// EnsureFresh refreshes the account's access token only when it is
// missing or inside the expiry margin. A still-valid token costs no
// exchange call and no store write. The account is mutated in place on
// refresh.
func (s *TokenService) EnsureFresh(ctx context.Context, acct *model.MailAccount) error {
	if acct.TokenValid(time.Now(), s.margin) {
		return nil
	}
	return s.refresh(ctx, acct)
}

// ForceRefresh refreshes regardless of the recorded expiry. Used after
// a mail server rejects a token the expiry said was still good.
func (s *TokenService) ForceRefresh(ctx context.Context, acct *model.MailAccount) error {
	return s.refresh(ctx, acct)
}

func (s *TokenService) refresh(ctx context.Context, acct *model.MailAccount) error {
	if acct.RefreshToken == "" {
		return &driven.RefreshError{Rejected: true, Err: errors.New("account has no refresh token")}
	}

	access, expiry, err := s.exchanger.Exchange(ctx, acct.RefreshToken)
	if err != nil {
		return err
	}

	if err := s.accounts.UpdateToken(ctx, acct.ID, access, expiry); err != nil {
		return fmt.Errorf("persist refreshed token for %s: %w", acct.Address, err)
	}

	acct.AccessToken = access
	acct.TokenExpiry = expiry

	slog.Info("access token refreshed",
		"account", acct.Address,
		"expires", expiry.UTC().Format(time.RFC3339),
	)
	return nil
}

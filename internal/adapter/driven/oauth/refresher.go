// Package oauth implements the TokenExchanger port against an OAuth2
// token endpoint using the refresh token grant.
package oauth

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"golang.org/x/oauth2"

	"github.com/ericfisherdev/mailledger/internal/domain/port/driven"
)

// Compile-time interface satisfaction check.
var _ driven.TokenExchanger = (*Refresher)(nil)

// Refresher exchanges refresh tokens at a fixed token endpoint with a
// single client identity. Accounts carry their own refresh tokens; the
// client id and secret are shared installation credentials.
type Refresher struct {
	conf       *oauth2.Config
	httpClient *http.Client
}

// NewRefresher creates a Refresher for the given token endpoint and
// client credentials.
func NewRefresher(tokenURL, clientID, clientSecret string) *Refresher {
	return NewRefresherWithHTTPClient(tokenURL, clientID, clientSecret, nil)
}

// NewRefresherWithHTTPClient creates a Refresher that performs the
// exchange over the given HTTP client. Used by tests to point at a
// local token endpoint.
func NewRefresherWithHTTPClient(tokenURL, clientID, clientSecret string, httpClient *http.Client) *Refresher {
	return &Refresher{
		conf: &oauth2.Config{
			ClientID:     clientID,
			ClientSecret: clientSecret,
			Endpoint:     oauth2.Endpoint{TokenURL: tokenURL},
		},
		httpClient: httpClient,
	}
}

// Exchange trades the refresh token for a new access token. A token
// endpoint response rejecting the grant (revoked or invalid refresh
// token) is reported as a RefreshError with Rejected set; transport
// failures leave Rejected false so callers can tell a dead token from
// a flaky network.
func (r *Refresher) Exchange(ctx context.Context, refreshToken string) (string, time.Time, error) {
	if r.httpClient != nil {
		ctx = context.WithValue(ctx, oauth2.HTTPClient, r.httpClient)
	}

	src := r.conf.TokenSource(ctx, &oauth2.Token{RefreshToken: refreshToken})
	tok, err := src.Token()
	if err != nil {
		var re *oauth2.RetrieveError
		if errors.As(err, &re) && re.Response != nil &&
			re.Response.StatusCode >= 400 && re.Response.StatusCode < 500 {
			return "", time.Time{}, &driven.RefreshError{Rejected: true, Err: err}
		}
		return "", time.Time{}, &driven.RefreshError{Err: err}
	}

	if tok.AccessToken == "" {
		return "", time.Time{}, &driven.RefreshError{Err: fmt.Errorf("token endpoint returned empty access token")}
	}
	return tok.AccessToken, tok.Expiry, nil
}

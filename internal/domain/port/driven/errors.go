package driven

import (
	"errors"
	"fmt"
)

// RefreshError reports a failed token exchange. Rejected means the
// identity provider explicitly refused the refresh token (revoked or
// invalid grant) rather than a transport failure; rejected accounts
// need operator attention, transport failures are retryable.
type RefreshError struct {
	Rejected bool
	Err      error
}

func (e *RefreshError) Error() string {
	if e.Rejected {
		return fmt.Sprintf("token refresh rejected: %v", e.Err)
	}
	return fmt.Sprintf("token refresh failed: %v", e.Err)
}

func (e *RefreshError) Unwrap() error { return e.Err }

// AccessKind classifies mailbox access failures.
type AccessKind string

const (
	// KindCredential means the server rejected authentication. A fresh
	// token may fix it.
	KindCredential AccessKind = "credential"
	// KindTransport covers dial, TLS, and protocol failures.
	KindTransport AccessKind = "transport"
)

// AccessError reports a failed mailbox open or search.
type AccessError struct {
	Kind AccessKind
	Err  error
}

func (e *AccessError) Error() string {
	return fmt.Sprintf("mailbox access failed (%s): %v", e.Kind, e.Err)
}

func (e *AccessError) Unwrap() error { return e.Err }

// IsCredentialRejected reports whether err is an AccessError caused by
// a rejected credential.
func IsCredentialRejected(err error) bool {
	var ae *AccessError
	return errors.As(err, &ae) && ae.Kind == KindCredential
}

// Package imap implements the MailClient port over IMAP using
// OAUTHBEARER authentication for OAuth accounts.
package imap

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net"
	"strconv"
	"strings"

	"github.com/emersion/go-imap/v2"
	"github.com/emersion/go-imap/v2/imapclient"
	"github.com/emersion/go-message/mail"
	"github.com/emersion/go-sasl"

	"github.com/ericfisherdev/mailledger/internal/domain/model"
	"github.com/ericfisherdev/mailledger/internal/domain/port/driven"
	"github.com/ericfisherdev/mailledger/internal/parser"
)

// Compile-time interface satisfaction check.
var _ driven.MailClient = (*Client)(nil)

// Client opens authenticated IMAP sessions against a fixed server.
type Client struct {
	host string
	port int
}

// NewClient creates a Client for the given IMAP server.
func NewClient(host string, port int) *Client {
	return &Client{host: host, port: port}
}

// Open dials the server over TLS, authenticates the account, and
// selects INBOX. OAuth accounts authenticate with OAUTHBEARER using
// the current access token; password accounts fall back to LOGIN.
func (c *Client) Open(ctx context.Context, acct *model.MailAccount) (driven.MailSession, error) {
	if err := ctx.Err(); err != nil {
		return nil, &driven.AccessError{Kind: driven.KindTransport, Err: err}
	}

	addr := net.JoinHostPort(c.host, strconv.Itoa(c.port))
	client, err := imapclient.DialTLS(addr, nil)
	if err != nil {
		return nil, &driven.AccessError{
			Kind: driven.KindTransport,
			Err:  fmt.Errorf("dial %s: %w", addr, err),
		}
	}

	if acct.AuthKind == model.AuthKindOAuth {
		saslClient := sasl.NewOAuthBearerClient(&sasl.OAuthBearerOptions{
			Username: acct.Address,
			Token:    acct.AccessToken,
			Host:     c.host,
			Port:     c.port,
		})
		err = client.Authenticate(saslClient)
	} else {
		err = client.Login(acct.Address, acct.AccessToken).Wait()
	}
	if err != nil {
		_ = client.Close()
		return nil, &driven.AccessError{
			Kind: driven.KindCredential,
			Err:  fmt.Errorf("authenticate %s: %w", acct.Address, err),
		}
	}

	if _, err := client.Select("INBOX", nil).Wait(); err != nil {
		_ = client.Logout().Wait()
		return nil, &driven.AccessError{
			Kind: driven.KindTransport,
			Err:  fmt.Errorf("select INBOX: %w", err),
		}
	}

	return &session{client: client}, nil
}

// session is one selected INBOX connection.
type session struct {
	client *imapclient.Client
}

var _ driven.MailSession = (*session)(nil)

// Search runs the query server-side, fetches the matching messages
// with bodies unmarked (Peek), and flattens each to a RawMessage.
func (s *session) Search(ctx context.Context, q driven.MailQuery) ([]model.RawMessage, error) {
	if err := ctx.Err(); err != nil {
		return nil, &driven.AccessError{Kind: driven.KindTransport, Err: err}
	}

	criteria := buildCriteria(q)

	searchData, err := s.client.UIDSearch(criteria, nil).Wait()
	if err != nil {
		return nil, &driven.AccessError{
			Kind: driven.KindTransport,
			Err:  fmt.Errorf("search: %w", err),
		}
	}

	uids := capUIDs(searchData.AllUIDs(), q.Limit)
	if len(uids) == 0 {
		return nil, nil
	}

	bodySection := &imap.FetchItemBodySection{Peek: true}
	fetchOpts := &imap.FetchOptions{
		Envelope:    true,
		UID:         true,
		BodySection: []*imap.FetchItemBodySection{bodySection},
	}

	fetchCmd := s.client.Fetch(imap.UIDSetNum(uids...), fetchOpts)
	defer fetchCmd.Close()

	var msgs []model.RawMessage
	for {
		msg := fetchCmd.Next()
		if msg == nil {
			break
		}

		buf, err := msg.Collect()
		if err != nil {
			continue
		}

		raw := model.RawMessage{}
		if buf.Envelope != nil {
			raw.Subject = buf.Envelope.Subject
			raw.Date = buf.Envelope.Date
			if len(buf.Envelope.From) > 0 {
				raw.Sender = buf.Envelope.From[0].Addr()
			}
		}
		if rawBody := buf.FindBodySection(bodySection); rawBody != nil {
			raw.Body = flattenBody(rawBody)
		}

		msgs = append(msgs, raw)
	}

	if err := fetchCmd.Close(); err != nil {
		return msgs, &driven.AccessError{
			Kind: driven.KindTransport,
			Err:  fmt.Errorf("fetch: %w", err),
		}
	}
	return msgs, nil
}

// Close logs out and drops the connection.
func (s *session) Close() error {
	return s.client.Logout().Wait()
}

// buildCriteria maps a MailQuery onto IMAP SEARCH criteria. All
// filtering happens server-side so only matching messages are
// transferred.
func buildCriteria(q driven.MailQuery) *imap.SearchCriteria {
	criteria := &imap.SearchCriteria{}

	if q.Sender != "" {
		criteria.Header = append(criteria.Header, imap.SearchCriteriaHeaderField{
			Key: "From", Value: q.Sender,
		})
	}
	if q.Subject != "" {
		criteria.Header = append(criteria.Header, imap.SearchCriteriaHeaderField{
			Key: "Subject", Value: q.Subject,
		})
	}
	if q.Text != "" {
		criteria.Text = append(criteria.Text, q.Text)
	}
	if !q.Since.IsZero() {
		criteria.Since = q.Since
	}
	if !q.Before.IsZero() {
		criteria.Before = q.Before
	}

	return criteria
}

// capUIDs keeps the most recent limit UIDs. UIDs ascend with arrival
// order, so the tail of the slice is the newest mail.
func capUIDs(uids []imap.UID, limit int) []imap.UID {
	if limit > 0 && len(uids) > limit {
		return uids[len(uids)-limit:]
	}
	return uids
}

// flattenBody extracts a plain-text body from a raw RFC 5322 message.
// text/plain parts win; text/html parts are stripped to text. A body
// that fails MIME parsing is used as-is.
func flattenBody(raw []byte) string {
	mr, err := mail.CreateReader(bytes.NewReader(raw))
	if err != nil {
		return string(raw)
	}
	defer mr.Close()

	var htmlBody string
	for {
		part, err := mr.NextPart()
		if err == io.EOF {
			break
		}
		if err != nil {
			break
		}

		h, ok := part.Header.(*mail.InlineHeader)
		if !ok {
			continue
		}
		contentType, _, _ := h.ContentType()
		body, readErr := io.ReadAll(part.Body)
		if readErr != nil {
			continue
		}

		switch {
		case strings.HasPrefix(contentType, "text/plain"):
			return string(body)
		case strings.HasPrefix(contentType, "text/html"):
			htmlBody = string(body)
		}
	}

	if htmlBody != "" {
		return parser.HTMLToText(htmlBody)
	}
	return string(raw)
}

package sqlite

import (
	"context"
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"database/sql"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/ericfisherdev/mailledger/internal/domain/model"
	"github.com/ericfisherdev/mailledger/internal/domain/port/driven"
)

// Compile-time interface satisfaction check.
var _ driven.AccountStore = (*AccountRepo)(nil)

// AccountRepo is the SQLite implementation of the AccountStore port interface.
// Access and refresh tokens are encrypted with AES-256-GCM before write and
// decrypted after read.
type AccountRepo struct {
	db  *DB
	key []byte // 32-byte AES-256 key; nil when encryption is disabled.
}

// NewAccountRepo creates a new AccountRepo. key must be 32 bytes for
// AES-256-GCM, or nil to disable token storage (operations touching tokens
// will return ErrEncryptionKeyNotSet).
func NewAccountRepo(db *DB, key []byte) *AccountRepo {
	return &AccountRepo{db: db, key: key}
}

// Create stores a new account with its tokens encrypted.
func (r *AccountRepo) Create(ctx context.Context, acct model.MailAccount) error {
	accessEnc, err := r.encrypt(acct.AccessToken)
	if err != nil {
		return err
	}
	refreshEnc, err := r.encrypt(acct.RefreshToken)
	if err != nil {
		return err
	}

	scopes, err := marshalStrings(acct.Scopes)
	if err != nil {
		return fmt.Errorf("marshal scopes: %w", err)
	}
	senders, err := marshalStrings(acct.Senders)
	if err != nil {
		return fmt.Errorf("marshal senders: %w", err)
	}

	active := 0
	if acct.Active {
		active = 1
	}

	const query = `
		INSERT INTO accounts (
			id, owner_id, address, auth_kind, access_token, refresh_token,
			token_expiry, scopes, senders, active
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`
	_, err = r.db.Writer.ExecContext(ctx, query,
		acct.ID, acct.OwnerID, acct.Address, string(acct.AuthKind),
		accessEnc, refreshEnc, nullableTime(acct.TokenExpiry),
		scopes, senders, active,
	)
	if err != nil {
		return fmt.Errorf("create account %q: %w", acct.Address, err)
	}
	return nil
}

// Get returns the account with the given ID, tokens decrypted.
func (r *AccountRepo) Get(ctx context.Context, id string) (*model.MailAccount, error) {
	const query = accountSelect + ` WHERE id = ?`

	acct, err := r.scanAccount(r.db.Reader.QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, driven.ErrAccountNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get account %q: %w", id, err)
	}
	return acct, nil
}

// ListActive returns every active account of the given auth kind, ordered
// by address, tokens decrypted.
func (r *AccountRepo) ListActive(ctx context.Context, kind model.AuthKind) ([]model.MailAccount, error) {
	const query = accountSelect + ` WHERE active = 1 AND auth_kind = ? ORDER BY address`

	rows, err := r.db.Reader.QueryContext(ctx, query, string(kind))
	if err != nil {
		return nil, fmt.Errorf("list active accounts: %w", err)
	}
	defer rows.Close()

	var accts []model.MailAccount
	for rows.Next() {
		acct, err := r.scanAccount(rows)
		if err != nil {
			return nil, fmt.Errorf("scan account: %w", err)
		}
		accts = append(accts, *acct)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate accounts: %w", err)
	}
	return accts, nil
}

// UpdateToken replaces the stored access token and expiry for one account.
func (r *AccountRepo) UpdateToken(ctx context.Context, id string, accessToken string, expiry time.Time) error {
	accessEnc, err := r.encrypt(accessToken)
	if err != nil {
		return err
	}

	const query = `
		UPDATE accounts
		SET access_token = ?, token_expiry = ?, updated_at = CURRENT_TIMESTAMP
		WHERE id = ?
	`
	res, err := r.db.Writer.ExecContext(ctx, query, accessEnc, expiry.UTC().Format(time.RFC3339), id)
	if err != nil {
		return fmt.Errorf("update token for account %q: %w", id, err)
	}
	return requireRowAffected(res, id)
}

// UpdateLastSync records when the account was last processed.
func (r *AccountRepo) UpdateLastSync(ctx context.Context, id string, at time.Time) error {
	const query = `
		UPDATE accounts
		SET last_sync_at = ?, updated_at = CURRENT_TIMESTAMP
		WHERE id = ?
	`
	res, err := r.db.Writer.ExecContext(ctx, query, at.UTC().Format(time.RFC3339), id)
	if err != nil {
		return fmt.Errorf("update last sync for account %q: %w", id, err)
	}
	return requireRowAffected(res, id)
}

// Deactivate marks the account inactive.
func (r *AccountRepo) Deactivate(ctx context.Context, id string) error {
	const query = `
		UPDATE accounts
		SET active = 0, updated_at = CURRENT_TIMESTAMP
		WHERE id = ?
	`
	res, err := r.db.Writer.ExecContext(ctx, query, id)
	if err != nil {
		return fmt.Errorf("deactivate account %q: %w", id, err)
	}
	return requireRowAffected(res, id)
}

const accountSelect = `
	SELECT id, owner_id, address, auth_kind, access_token, refresh_token,
	       token_expiry, scopes, senders, active, last_sync_at, created_at, updated_at
	FROM accounts`

// scanner abstracts *sql.Row and *sql.Rows for shared scan logic.
type scanner interface {
	Scan(dest ...any) error
}

func (r *AccountRepo) scanAccount(s scanner) (*model.MailAccount, error) {
	var acct model.MailAccount
	var authKind, accessEnc, refreshEnc, scopesJSON, sendersJSON string
	var tokenExpiry, lastSyncAt sql.NullString
	var active int
	var createdAt, updatedAt string

	err := s.Scan(
		&acct.ID, &acct.OwnerID, &acct.Address, &authKind,
		&accessEnc, &refreshEnc, &tokenExpiry,
		&scopesJSON, &sendersJSON, &active, &lastSyncAt,
		&createdAt, &updatedAt,
	)
	if err != nil {
		return nil, err
	}

	acct.AuthKind = model.AuthKind(authKind)
	acct.Active = active != 0

	if acct.AccessToken, err = r.decrypt(accessEnc); err != nil {
		return nil, fmt.Errorf("decrypt access token: %w", err)
	}
	if acct.RefreshToken, err = r.decrypt(refreshEnc); err != nil {
		return nil, fmt.Errorf("decrypt refresh token: %w", err)
	}

	if err := json.Unmarshal([]byte(scopesJSON), &acct.Scopes); err != nil {
		return nil, fmt.Errorf("unmarshal scopes: %w", err)
	}
	if err := json.Unmarshal([]byte(sendersJSON), &acct.Senders); err != nil {
		return nil, fmt.Errorf("unmarshal senders: %w", err)
	}

	if tokenExpiry.Valid && tokenExpiry.String != "" {
		if acct.TokenExpiry, err = parseTime(tokenExpiry.String); err != nil {
			return nil, fmt.Errorf("parse token_expiry: %w", err)
		}
	}
	if lastSyncAt.Valid && lastSyncAt.String != "" {
		t, err := parseTime(lastSyncAt.String)
		if err != nil {
			return nil, fmt.Errorf("parse last_sync_at: %w", err)
		}
		acct.LastSyncAt = &t
	}
	if acct.CreatedAt, err = parseTime(createdAt); err != nil {
		return nil, fmt.Errorf("parse created_at: %w", err)
	}
	if acct.UpdatedAt, err = parseTime(updatedAt); err != nil {
		return nil, fmt.Errorf("parse updated_at: %w", err)
	}

	return &acct, nil
}

// encrypt encrypts plaintext using AES-256-GCM and returns a base64-encoded
// string containing the nonce (12 bytes) prepended to the ciphertext.
// Empty plaintext round-trips as an empty string without touching the key.
func (r *AccountRepo) encrypt(plaintext string) (string, error) {
	if plaintext == "" {
		return "", nil
	}
	if r.key == nil {
		return "", driven.ErrEncryptionKeyNotSet
	}

	block, err := aes.NewCipher(r.key)
	if err != nil {
		return "", fmt.Errorf("aes.NewCipher: %w", err)
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return "", fmt.Errorf("cipher.NewGCM: %w", err)
	}

	nonce := make([]byte, gcm.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return "", fmt.Errorf("rand nonce: %w", err)
	}

	// Seal appends the ciphertext to nonce, producing: nonce || ciphertext || tag.
	ciphertext := gcm.Seal(nonce, nonce, []byte(plaintext), nil)
	return base64.StdEncoding.EncodeToString(ciphertext), nil
}

// decrypt decrypts a base64-encoded AES-256-GCM ciphertext.
func (r *AccountRepo) decrypt(encoded string) (string, error) {
	if encoded == "" {
		return "", nil
	}
	if r.key == nil {
		return "", driven.ErrEncryptionKeyNotSet
	}

	data, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return "", fmt.Errorf("base64 decode: %w", err)
	}

	block, err := aes.NewCipher(r.key)
	if err != nil {
		return "", fmt.Errorf("aes.NewCipher: %w", err)
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return "", fmt.Errorf("cipher.NewGCM: %w", err)
	}

	nonceSize := gcm.NonceSize()
	if len(data) < nonceSize {
		return "", errors.New("ciphertext too short")
	}

	nonce, ciphertext := data[:nonceSize], data[nonceSize:]
	plaintext, err := gcm.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return "", fmt.Errorf("gcm.Open: %w", err)
	}

	return string(plaintext), nil
}

func marshalStrings(ss []string) (string, error) {
	if ss == nil {
		ss = []string{}
	}
	b, err := json.Marshal(ss)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

func nullableTime(t time.Time) any {
	if t.IsZero() {
		return nil
	}
	return t.UTC().Format(time.RFC3339)
}

func requireRowAffected(res sql.Result, id string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("account %q: %w", id, driven.ErrAccountNotFound)
	}
	return nil
}

package auth

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"errors"
	"fmt"
	"time"
)

// TokenPrefix marks every issued token so leaked values are recognizable
// in logs and secret scanners.
const TokenPrefix = "bco_"

// displayLength is how much of the token is kept in clear for listing
const displayLength = 12

var (
	// ErrInvalidToken indicates the presented token is unknown, revoked, or expired
	ErrInvalidToken = errors.New("invalid token")
	// ErrTokenNotFound indicates no token matches the given name
	ErrTokenNotFound = errors.New("token not found")
)

// Token is the stored metadata of an issued API token. The token value
// itself is returned once at creation and never stored.
type Token struct {
	Display   string     `json:"token_prefix"`
	Username  string     `json:"username"`
	Name      string     `json:"name"`
	CreatedAt time.Time  `json:"created_at"`
	ExpiresAt *time.Time `json:"expires_at,omitempty"`
	RevokedAt *time.Time `json:"revoked_at,omitempty"`
}

// TokenService issues and checks API tokens
type TokenService struct {
	db *sql.DB
}

// NewTokenService creates a token service
func NewTokenService(db *sql.DB) *TokenService {
	return &TokenService{db: db}
}

func hashToken(plaintext string) string {
	sum := sha256.Sum256([]byte(plaintext))
	return hex.EncodeToString(sum[:])
}

// EnsureUser records a username, doing nothing if it already exists
func (s *TokenService) EnsureUser(ctx context.Context, username string) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO users (username, created_at) VALUES ($1, $2)
		ON CONFLICT (username) DO NOTHING`,
		username, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("failed to ensure user %s: %w", username, err)
	}
	return nil
}

// Create issues a new token for a user. The plaintext is returned exactly
// once; a ttl of zero means the token never expires.
func (s *TokenService) Create(ctx context.Context, username, name string, ttl time.Duration) (string, *Token, error) {
	raw := make([]byte, 32)
	if _, err := rand.Read(raw); err != nil {
		return "", nil, fmt.Errorf("failed to generate token: %w", err)
	}
	plaintext := TokenPrefix + hex.EncodeToString(raw)

	token := &Token{
		Display:   plaintext[:displayLength],
		Username:  username,
		Name:      name,
		CreatedAt: time.Now().UTC(),
	}
	if ttl > 0 {
		expires := token.CreatedAt.Add(ttl)
		token.ExpiresAt = &expires
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO api_tokens (token_hash, token_prefix, username, name, created_at, expires_at)
		VALUES ($1, $2, $3, $4, $5, $6)`,
		hashToken(plaintext), token.Display, username, name, token.CreatedAt, token.ExpiresAt)
	if err != nil {
		return "", nil, fmt.Errorf("failed to store token: %w", err)
	}
	return plaintext, token, nil
}

// Validate resolves a presented token to its username. Unknown, revoked,
// and expired tokens all return ErrInvalidToken without distinguishing.
func (s *TokenService) Validate(ctx context.Context, plaintext string) (string, error) {
	var username string
	var expiresAt, revokedAt *time.Time
	err := s.db.QueryRowContext(ctx, `
		SELECT username, expires_at, revoked_at FROM api_tokens WHERE token_hash = $1`,
		hashToken(plaintext)).Scan(&username, &expiresAt, &revokedAt)
	if err == sql.ErrNoRows {
		return "", ErrInvalidToken
	}
	if err != nil {
		return "", fmt.Errorf("failed to look up token: %w", err)
	}

	if revokedAt != nil {
		return "", ErrInvalidToken
	}
	if expiresAt != nil && expiresAt.Before(time.Now()) {
		return "", ErrInvalidToken
	}
	return username, nil
}

// Revoke marks a user's token invalid by name
func (s *TokenService) Revoke(ctx context.Context, username, name string) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE api_tokens SET revoked_at = $1
		WHERE username = $2 AND name = $3 AND revoked_at IS NULL`,
		time.Now().UTC(), username, name)
	if err != nil {
		return fmt.Errorf("failed to revoke token: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to revoke token: %w", err)
	}
	if n == 0 {
		return ErrTokenNotFound
	}
	return nil
}

// List returns a user's token metadata, newest first
func (s *TokenService) List(ctx context.Context, username string) ([]*Token, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT token_prefix, username, name, created_at, expires_at, revoked_at
		FROM api_tokens WHERE username = $1
		ORDER BY created_at DESC`, username)
	if err != nil {
		return nil, fmt.Errorf("failed to list tokens: %w", err)
	}
	defer rows.Close()

	var out []*Token
	for rows.Next() {
		var t Token
		if err := rows.Scan(&t.Display, &t.Username, &t.Name, &t.CreatedAt, &t.ExpiresAt, &t.RevokedAt); err != nil {
			return nil, fmt.Errorf("failed to scan token: %w", err)
		}
		out = append(out, &t)
	}
	return out, rows.Err()
}

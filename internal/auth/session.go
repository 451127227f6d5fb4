// Package auth resolves bearer session tokens to viewers. Raw tokens are
// generated with crypto/rand, hashed with SHA-256 before storage, and
// validated by comparing hashes against the sessions table. Reads work
// anonymously; mutations require a resolved viewer.
package auth

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/echo-social/echonet/pkg/postgres"
)

var (
	ErrInvalidToken = errors.New("invalid session token")
	ErrExpiredToken = errors.New("session token expired")
)

// Viewer is the authenticated principal attached to a request.
type Viewer struct {
	ID       string `json:"id"`
	Username string `json:"username"`
	Name     string `json:"name"`
}

// Validator validates session tokens against the sessions table.
type Validator struct {
	db     *postgres.Client
	logger *slog.Logger
}

// NewValidator creates a session validator backed by PostgreSQL.
func NewValidator(db *postgres.Client) *Validator {
	return &Validator{
		db:     db,
		logger: slog.Default().With("component", "session-validator"),
	}
}

// Validate resolves a raw session token to its viewer. Returns
// ErrInvalidToken or ErrExpiredToken on failure.
func (v *Validator) Validate(ctx context.Context, rawToken string) (*Viewer, error) {
	hash := HashToken(rawToken)

	var viewer Viewer
	var expiresAt sql.NullTime

	err := v.db.DB.QueryRowContext(ctx,
		`SELECT u.id, u.username, u.name, s.expires_at
		 FROM sessions s
		 JOIN users u ON u.id = s.user_id
		 WHERE s.token_hash = $1`,
		hash,
	).Scan(&viewer.ID, &viewer.Username, &viewer.Name, &expiresAt)

	if err == sql.ErrNoRows {
		return nil, ErrInvalidToken
	}
	if err != nil {
		return nil, fmt.Errorf("querying session: %w", err)
	}

	if expiresAt.Valid && expiresAt.Time.Before(time.Now()) {
		return nil, ErrExpiredToken
	}

	return &viewer, nil
}

// CreateSession generates a new session token for the user, stores its hash,
// and returns the raw token. The raw token cannot be retrieved again.
func (v *Validator) CreateSession(ctx context.Context, userID string, ttl time.Duration) (string, error) {
	rawToken := generateRawToken()
	hash := HashToken(rawToken)

	var expiry sql.NullTime
	if ttl > 0 {
		expiry = sql.NullTime{Time: time.Now().Add(ttl), Valid: true}
	}

	_, err := v.db.DB.ExecContext(ctx,
		`INSERT INTO sessions (token_hash, user_id, expires_at) VALUES ($1, $2, $3)`,
		hash, userID, expiry,
	)
	if err != nil {
		return "", fmt.Errorf("creating session: %w", err)
	}

	v.logger.Info("session created", "user_id", userID)
	return rawToken, nil
}

// RevokeSession deletes a session so its token can no longer be used.
func (v *Validator) RevokeSession(ctx context.Context, rawToken string) error {
	hash := HashToken(rawToken)

	result, err := v.db.DB.ExecContext(ctx,
		`DELETE FROM sessions WHERE token_hash = $1`,
		hash,
	)
	if err != nil {
		return fmt.Errorf("revoking session: %w", err)
	}
	rows, _ := result.RowsAffected()
	if rows == 0 {
		return ErrInvalidToken
	}
	return nil
}

// HashToken returns the hex SHA-256 digest of a raw token.
func HashToken(rawToken string) string {
	sum := sha256.Sum256([]byte(rawToken))
	return hex.EncodeToString(sum[:])
}

func generateRawToken() string {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		panic(fmt.Sprintf("crypto/rand failed: %v", err))
	}
	return "ent_" + hex.EncodeToString(buf)
}

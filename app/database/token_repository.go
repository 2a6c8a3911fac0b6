package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

// TokenKey is the single well-known key the bearer token is stored under.
const TokenKey = "token"

// TokenRepository persists the session token between runs. At most one row
// exists for TokenKey, so at most one token is ever persisted.
type TokenRepository struct {
	db *DB
}

func NewTokenRepository(db *DB) *TokenRepository {
	return &TokenRepository{db: db}
}

// LoadToken returns "" when no token is persisted.
func (r *TokenRepository) LoadToken(ctx context.Context) (string, error) {
	var token string
	err := r.db.QueryRowContext(ctx,
		`SELECT value FROM client_state WHERE key = ?`, TokenKey).Scan(&token)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("failed to load token: %w", err)
	}
	return token, nil
}

func (r *TokenRepository) SaveToken(ctx context.Context, token string) error {
	if token == "" {
		return r.ClearToken(ctx)
	}

	_, err := r.db.ExecContext(ctx, `
		INSERT INTO client_state (key, value, updated_at)
		VALUES (?, ?, CURRENT_TIMESTAMP)
		ON CONFLICT (key) DO UPDATE SET
			value = excluded.value,
			updated_at = excluded.updated_at
	`, TokenKey, token)
	if err != nil {
		return fmt.Errorf("failed to save token: %w", err)
	}
	return nil
}

func (r *TokenRepository) ClearToken(ctx context.Context) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM client_state WHERE key = ?`, TokenKey)
	if err != nil {
		return fmt.Errorf("failed to clear token: %w", err)
	}
	return nil
}

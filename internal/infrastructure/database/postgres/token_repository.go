package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/devilmonastery/discordsync/internal/domain/entities"
	"github.com/devilmonastery/discordsync/internal/domain/repositories"
)

// TokenRepository implements repositories.TokenRepository for PostgreSQL
type TokenRepository struct {
	db *sqlx.DB
}

// NewTokenRepository creates a new bridge token repository
func NewTokenRepository(db *sqlx.DB) repositories.TokenRepository {
	return &TokenRepository{db: db}
}

const tokenColumns = `id, name, role, digest, created_at, expires_at, revoked_at, last_used_at`

// Create stores a newly issued token record
func (r *TokenRepository) Create(ctx context.Context, token *entities.BridgeToken) error {
	query := `
		INSERT INTO bridge_tokens (id, name, role, digest, created_at, expires_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`

	_, err := r.db.ExecContext(ctx, query,
		token.ID,
		token.Name,
		token.Role,
		token.Digest,
		token.CreatedAt,
		token.ExpiresAt,
	)
	if err != nil {
		return fmt.Errorf("failed to store token: %w", err)
	}
	return nil
}

// Get retrieves a token record by ID
func (r *TokenRepository) Get(ctx context.Context, id string) (*entities.BridgeToken, error) {
	query := `SELECT ` + tokenColumns + ` FROM bridge_tokens WHERE id = $1`

	var token entities.BridgeToken
	err := r.db.GetContext(ctx, &token, query, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, repositories.ErrTokenNotFound
		}
		return nil, err
	}
	return &token, nil
}

// List retrieves all token records, newest first
func (r *TokenRepository) List(ctx context.Context) ([]*entities.BridgeToken, error) {
	query := `SELECT ` + tokenColumns + ` FROM bridge_tokens ORDER BY created_at DESC`

	var tokens []*entities.BridgeToken
	if err := r.db.SelectContext(ctx, &tokens, query); err != nil {
		return nil, fmt.Errorf("failed to list tokens: %w", err)
	}
	return tokens, nil
}

// Revoke marks a token revoked
func (r *TokenRepository) Revoke(ctx context.Context, id string) error {
	query := `UPDATE bridge_tokens SET revoked_at = $2 WHERE id = $1 AND revoked_at IS NULL`

	result, err := r.db.ExecContext(ctx, query, id, time.Now())
	if err != nil {
		return err
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return repositories.ErrTokenNotFound
	}
	return nil
}

// Touch updates the last_used timestamp
func (r *TokenRepository) Touch(ctx context.Context, id string) error {
	query := `UPDATE bridge_tokens SET last_used_at = $2 WHERE id = $1`

	_, err := r.db.ExecContext(ctx, query, id, time.Now())
	return err
}

package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/devilmonastery/discordsync/internal/domain/entities"
	"github.com/devilmonastery/discordsync/internal/domain/repositories"
)

// UserRepository implements repositories.UserRepository for PostgreSQL
type UserRepository struct {
	db *sqlx.DB
}

// NewUserRepository creates a new user repository
func NewUserRepository(db *sqlx.DB) repositories.UserRepository {
	return &UserRepository{db: db}
}

const userColumns = `minecraft_uuid, discord_id, last_seen_name, linked_at, created_at, updated_at`

// GetOrCreate retrieves the profile for a Minecraft UUID, inserting the
// default record when none exists yet
func (r *UserRepository) GetOrCreate(ctx context.Context, minecraftUUID string) (*entities.User, error) {
	user, err := r.Get(ctx, minecraftUUID)
	if err == nil {
		return user, nil
	}
	if !errors.Is(err, repositories.ErrUserNotFound) {
		return nil, err
	}

	fresh := entities.NewUser(minecraftUUID)
	query := `
		INSERT INTO users (minecraft_uuid, discord_id, last_seen_name, created_at, updated_at)
		VALUES ($1, '', $2, $3, $3)
		ON CONFLICT (minecraft_uuid) DO NOTHING
	`
	if _, err := r.db.ExecContext(ctx, query, fresh.MinecraftUUID, fresh.LastSeenName, fresh.CreatedAt); err != nil {
		return nil, err
	}

	// Re-read so a concurrent creator's row wins
	return r.Get(ctx, minecraftUUID)
}

// Get retrieves an existing profile
func (r *UserRepository) Get(ctx context.Context, minecraftUUID string) (*entities.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE minecraft_uuid = $1`

	var user entities.User
	err := r.db.GetContext(ctx, &user, query, minecraftUUID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, repositories.ErrUserNotFound
		}
		return nil, err
	}
	return &user, nil
}

// GetByDiscordID retrieves the profile bound to a Discord account
func (r *UserRepository) GetByDiscordID(ctx context.Context, discordID string) (*entities.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE discord_id = $1`

	var user entities.User
	err := r.db.GetContext(ctx, &user, query, discordID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, repositories.ErrUserNotFound
		}
		return nil, err
	}
	return &user, nil
}

// GetByLastSeenName retrieves a profile by cached in-game name
func (r *UserRepository) GetByLastSeenName(ctx context.Context, name string) (*entities.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE last_seen_name = $1`

	var user entities.User
	err := r.db.GetContext(ctx, &user, query, name)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, repositories.ErrUserNotFound
		}
		return nil, err
	}
	return &user, nil
}

// SetDiscordID binds a Discord account to a profile. The partial unique
// index on discord_id turns a double-link into ErrDiscordAccountLinked.
func (r *UserRepository) SetDiscordID(ctx context.Context, minecraftUUID, discordID string) error {
	query := `
		UPDATE users
		SET discord_id = $2, linked_at = $3, updated_at = $3
		WHERE minecraft_uuid = $1
	`

	result, err := r.db.ExecContext(ctx, query, minecraftUUID, discordID, time.Now())
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code.Name() == "unique_violation" {
			return repositories.ErrDiscordAccountLinked
		}
		return err
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return repositories.ErrUserNotFound
	}
	return nil
}

// UpdateLastSeenName refreshes the cached in-game name
func (r *UserRepository) UpdateLastSeenName(ctx context.Context, minecraftUUID, name string) error {
	query := `
		UPDATE users
		SET last_seen_name = $2, updated_at = $3
		WHERE minecraft_uuid = $1
	`

	result, err := r.db.ExecContext(ctx, query, minecraftUUID, name, time.Now())
	if err != nil {
		return err
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return repositories.ErrUserNotFound
	}
	return nil
}

// List retrieves all profiles ordered by cached name
func (r *UserRepository) List(ctx context.Context) ([]*entities.User, error) {
	query := `SELECT ` + userColumns + ` FROM users ORDER BY last_seen_name`

	var users []*entities.User
	if err := r.db.SelectContext(ctx, &users, query); err != nil {
		return nil, fmt.Errorf("failed to list users: %w", err)
	}
	return users, nil
}

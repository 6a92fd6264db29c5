package postgres

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/devilmonastery/discordsync/internal/domain/entities"
	"github.com/devilmonastery/discordsync/internal/domain/repositories"
)

// AuditRepository implements repositories.AuditRepository for PostgreSQL
type AuditRepository struct {
	db *sqlx.DB
}

// NewAuditRepository creates a new sync action audit repository
func NewAuditRepository(db *sqlx.DB) repositories.AuditRepository {
	return &AuditRepository{db: db}
}

// Record stores one sync action
func (r *AuditRepository) Record(ctx context.Context, action *entities.SyncAction) error {
	query := `
		INSERT INTO sync_actions (
			id, minecraft_uuid, discord_id, action, side,
			role_label, group_name, discord_role_id, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`

	_, err := r.db.ExecContext(ctx, query,
		action.ID,
		action.MinecraftUUID,
		action.DiscordID,
		action.Action,
		action.Side,
		action.RoleLabel,
		action.GroupName,
		action.DiscordRoleID,
		action.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to record sync action: %w", err)
	}
	return nil
}

// ListForUser retrieves recent actions for a profile, newest first
func (r *AuditRepository) ListForUser(ctx context.Context, minecraftUUID string, limit int) ([]*entities.SyncAction, error) {
	query := `
		SELECT id, minecraft_uuid, discord_id, action, side,
		       role_label, group_name, discord_role_id, created_at
		FROM sync_actions
		WHERE minecraft_uuid = $1
		ORDER BY created_at DESC
		LIMIT $2
	`

	var actions []*entities.SyncAction
	if err := r.db.SelectContext(ctx, &actions, query, minecraftUUID, limit); err != nil {
		return nil, fmt.Errorf("failed to list sync actions: %w", err)
	}
	return actions, nil
}

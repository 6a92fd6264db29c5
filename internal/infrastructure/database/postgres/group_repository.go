package postgres

import (
	"context"
	"fmt"
	"strings"

	"github.com/jmoiron/sqlx"

	"github.com/devilmonastery/discordsync/internal/domain/repositories"
)

// GroupRepository implements repositories.GroupRepository against the
// LuckPerms SQL storage. Group membership is a `group.<name>` permission node
// in luckperms_user_permissions; the game server picks changes up on its next
// permission calculation. LuckPerms owns that schema, this repo only
// reads/writes rows in its format.
type GroupRepository struct {
	db *sqlx.DB
}

// NewGroupRepository creates a LuckPerms-backed group repository
func NewGroupRepository(db *sqlx.DB) repositories.GroupRepository {
	return &GroupRepository{db: db}
}

const groupNodePrefix = "group."

// InheritedGroups returns the permission groups the player currently holds
func (r *GroupRepository) InheritedGroups(ctx context.Context, minecraftUUID string) ([]string, error) {
	query := `
		SELECT permission FROM luckperms_user_permissions
		WHERE uuid = $1 AND permission LIKE 'group.%' AND value = true
	`

	var nodes []string
	if err := r.db.SelectContext(ctx, &nodes, query, minecraftUUID); err != nil {
		return nil, fmt.Errorf("failed to fetch permission nodes: %w", err)
	}

	groups := make([]string, 0, len(nodes))
	for _, node := range nodes {
		groups = append(groups, strings.TrimPrefix(node, groupNodePrefix))
	}
	return groups, nil
}

// AddGroup grants membership in a permission group. Idempotent: an existing
// node is left alone.
func (r *GroupRepository) AddGroup(ctx context.Context, minecraftUUID, group string) error {
	query := `
		INSERT INTO luckperms_user_permissions (uuid, permission, value, server, world, expiry, contexts)
		SELECT $1, $2, true, 'global', 'global', 0, '{}'
		WHERE NOT EXISTS (
			SELECT 1 FROM luckperms_user_permissions
			WHERE uuid = $1 AND permission = $2 AND value = true
		)
	`

	if _, err := r.db.ExecContext(ctx, query, minecraftUUID, groupNodePrefix+group); err != nil {
		return fmt.Errorf("failed to insert group node: %w", err)
	}
	return nil
}

// RemoveGroup revokes membership in a permission group
func (r *GroupRepository) RemoveGroup(ctx context.Context, minecraftUUID, group string) error {
	query := `
		DELETE FROM luckperms_user_permissions
		WHERE uuid = $1 AND permission = $2
	`

	if _, err := r.db.ExecContext(ctx, query, minecraftUUID, groupNodePrefix+group); err != nil {
		return fmt.Errorf("failed to delete group node: %w", err)
	}
	return nil
}

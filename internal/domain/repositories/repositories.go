package repositories

import (
	"context"

	"github.com/devilmonastery/discordsync/internal/domain/entities"
)

// UserRepository handles Minecraft profile persistence. One flat record per
// Minecraft UUID.
type UserRepository interface {
	// GetOrCreate retrieves the profile for a Minecraft UUID, creating the
	// default record on first observation
	GetOrCreate(ctx context.Context, minecraftUUID string) (*entities.User, error)

	// Get retrieves an existing profile
	Get(ctx context.Context, minecraftUUID string) (*entities.User, error)

	// GetByDiscordID retrieves the profile bound to a Discord account
	GetByDiscordID(ctx context.Context, discordID string) (*entities.User, error)

	// GetByLastSeenName retrieves a profile by the name the player last
	// carried in game
	GetByLastSeenName(ctx context.Context, name string) (*entities.User, error)

	// SetDiscordID binds a Discord account to a profile. Returns
	// ErrDiscordAccountLinked if another profile already holds that account.
	SetDiscordID(ctx context.Context, minecraftUUID, discordID string) error

	// UpdateLastSeenName refreshes the cached in-game name
	UpdateLastSeenName(ctx context.Context, minecraftUUID, name string) error

	// List retrieves all profiles
	List(ctx context.Context) ([]*entities.User, error)
}

// GroupRepository is the boundary to the LuckPerms storage engine. Grants and
// revokes are written straight to its tables, which the game server reads.
type GroupRepository interface {
	// InheritedGroups returns the permission groups the player currently holds
	InheritedGroups(ctx context.Context, minecraftUUID string) ([]string, error)

	// AddGroup grants membership in a permission group
	AddGroup(ctx context.Context, minecraftUUID, group string) error

	// RemoveGroup revokes membership in a permission group
	RemoveGroup(ctx context.Context, minecraftUUID, group string) error
}

// TokenRepository handles bridge API token persistence
type TokenRepository interface {
	// Create stores a newly issued token record
	Create(ctx context.Context, token *entities.BridgeToken) error

	// Get retrieves a token record by ID
	Get(ctx context.Context, id string) (*entities.BridgeToken, error)

	// List retrieves all token records
	List(ctx context.Context) ([]*entities.BridgeToken, error)

	// Revoke marks a token revoked
	Revoke(ctx context.Context, id string) error

	// Touch updates the last_used timestamp
	Touch(ctx context.Context, id string) error
}

// AuditRepository records grant/revoke actions
type AuditRepository interface {
	// Record stores one sync action
	Record(ctx context.Context, action *entities.SyncAction) error

	// ListForUser retrieves recent actions for a profile, newest first
	ListForUser(ctx context.Context, minecraftUUID string, limit int) ([]*entities.SyncAction, error)
}

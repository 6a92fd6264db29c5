package services

import "context"

// DiscordDirectory is the slice of the Discord connection the domain services
// consume: membership and role state for the configured guild, plus direct
// messages. The bot package implements it.
type DiscordDirectory interface {
	// Running reports whether the connection is in the running state. Role
	// queries and mutations must not be attempted while it is not.
	Running() bool

	// MemberRoles returns the Discord role IDs the member currently holds
	MemberRoles(ctx context.Context, discordID string) ([]string, error)

	// MemberDisplayName returns the member's effective display name in the
	// guild
	MemberDisplayName(ctx context.Context, discordID string) (string, error)

	// AddRole assigns a guild role to the member
	AddRole(ctx context.Context, discordID, roleID string) error

	// RemoveRole removes a guild role from the member
	RemoveRole(ctx context.Context, discordID, roleID string) error

	// DirectMessage sends a DM to the Discord user
	DirectMessage(ctx context.Context, discordID, content string) error
}

// Presence is the view of who is currently on the game server. The bridge's
// presence tracker implements it.
type Presence interface {
	// OnlineName returns the player's current in-game name and whether the
	// player is online at all
	OnlineName(minecraftUUID string) (string, bool)

	// IsOp reports whether an online player has operator privilege
	IsOp(minecraftUUID string) bool

	// Online returns the UUIDs of all players currently on the server
	Online() []string
}

// Messenger delivers chat messages into the game server. Delivery is
// best-effort; messages to offline players are dropped.
type Messenger interface {
	// Tell queues a message for one player
	Tell(minecraftUUID, message string)

	// AnnounceOps queues a message for every online operator
	AnnounceOps(message string)
}

// Syncer triggers a reconciliation pass for one profile
type Syncer interface {
	Sync(ctx context.Context, minecraftUUID string) error
}

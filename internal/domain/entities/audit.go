package entities

import "time"

// Sync action kinds
const (
	ActionGrant  = "grant"
	ActionRevoke = "revoke"
)

// Sync action sides
const (
	SideNameMinecraft = "minecraft"
	SideNameDiscord   = "discord"
)

// SyncAction is one grant or revoke issued by the reconciliation engine or an
// administrative command, recorded for audit.
type SyncAction struct {
	ID            string    `db:"id"`
	MinecraftUUID string    `db:"minecraft_uuid"`
	DiscordID     string    `db:"discord_id"`
	Action        string    `db:"action"`
	Side          string    `db:"side"`
	RoleLabel     string    `db:"role_label"`
	GroupName     string    `db:"group_name"`
	DiscordRoleID string    `db:"discord_role_id"`
	CreatedAt     time.Time `db:"created_at"`
}

package entities

// RoleMapping pairs a Discord role with the LuckPerms group it mirrors to.
// Mappings come from configuration and are read-only after load.
type RoleMapping struct {
	// Label is the normalized config key, used only for lookup by name
	Label string

	// DiscordRoleID is the Discord role snowflake
	DiscordRoleID string

	// GroupName is the LuckPerms group name
	GroupName string
}

package entities

import "time"

// DefaultLastSeenName is the placeholder name a profile carries until the
// player has been observed online at least once.
const DefaultLastSeenName = "no name found"

// User is the durable profile for one Minecraft account. DiscordID is empty
// until the player completes the link flow.
type User struct {
	MinecraftUUID string     `db:"minecraft_uuid"`
	DiscordID     string     `db:"discord_id"`
	LastSeenName  string     `db:"last_seen_name"`
	LinkedAt      *time.Time `db:"linked_at"`
	CreatedAt     time.Time  `db:"created_at"`
	UpdatedAt     time.Time  `db:"updated_at"`
}

// Linked reports whether the profile is bound to a Discord account
func (u *User) Linked() bool {
	return u.DiscordID != ""
}

// NewUser returns the default profile for a Minecraft account that has no
// stored record yet.
func NewUser(minecraftUUID string) *User {
	now := time.Now()
	return &User{
		MinecraftUUID: minecraftUUID,
		LastSeenName:  DefaultLastSeenName,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
}

package entities

import "time"

// Bridge token roles
const (
	TokenRoleBridge = "bridge" // game-server plugin: events, link, profiles
	TokenRoleAdmin  = "admin"  // everything, including lifecycle control
)

// BridgeToken is the stored record of an issued bridge API token. Only a
// sha256 digest of the JWT is kept; the token itself is shown once at
// creation time.
type BridgeToken struct {
	ID         string     `db:"id"`
	Name       string     `db:"name"`
	Role       string     `db:"role"`
	Digest     string     `db:"digest"`
	CreatedAt  time.Time  `db:"created_at"`
	ExpiresAt  time.Time  `db:"expires_at"`
	RevokedAt  *time.Time `db:"revoked_at"`
	LastUsedAt *time.Time `db:"last_used_at"`
}

// Usable reports whether the token may authenticate a request right now
func (t *BridgeToken) Usable(now time.Time) bool {
	return t.RevokedAt == nil && now.Before(t.ExpiresAt)
}

package entities

import "time"

// LinkRequest is one in-flight attempt to bind a Discord account to a
// Minecraft profile. It lives only in memory, owned by the link registry.
type LinkRequest struct {
	Code      int
	DiscordID string
	CreatedAt time.Time
	Consumed  bool
}

// Valid reports whether the request can still be redeemed at the given
// instant. Expiry is evaluated lazily here; culling is only a memory
// optimization.
func (r *LinkRequest) Valid(now time.Time, timeout time.Duration) bool {
	return !r.Consumed && now.Sub(r.CreatedAt) < timeout
}

// Package presence holds the bridge-side view of the game server: who is
// online right now, and messages waiting to be delivered into game chat.
// The game-server plugin reports joins and quits and drains the outbox; no
// state here survives a restart, mirroring the server's own session state.
package presence

import "sync"

type player struct {
	name string
	op   bool
}

// Tracker records which players are currently on the game server, as
// reported by join/quit events from the plugin.
type Tracker struct {
	mu      sync.RWMutex
	players map[string]player
}

// NewTracker creates an empty presence tracker
func NewTracker() *Tracker {
	return &Tracker{players: make(map[string]player)}
}

// Join records a player arriving, refreshing name and op flag on repeat
// joins
func (t *Tracker) Join(minecraftUUID, name string, op bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.players[minecraftUUID] = player{name: name, op: op}
}

// Quit records a player leaving
func (t *Tracker) Quit(minecraftUUID string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.players, minecraftUUID)
}

// OnlineName returns the player's current in-game name and whether the
// player is online
func (t *Tracker) OnlineName(minecraftUUID string) (string, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	p, ok := t.players[minecraftUUID]
	return p.name, ok
}

// IsOp reports whether an online player has operator privilege
func (t *Tracker) IsOp(minecraftUUID string) bool {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.players[minecraftUUID].op
}

// Online returns the UUIDs of all players currently on the server
func (t *Tracker) Online() []string {
	t.mu.RLock()
	defer t.mu.RUnlock()
	uuids := make([]string, 0, len(t.players))
	for uuid := range t.players {
		uuids = append(uuids, uuid)
	}
	return uuids
}

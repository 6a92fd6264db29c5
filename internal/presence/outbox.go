package presence

import "sync"

// maxQueued bounds the per-player queue so a plugin that stops draining
// cannot grow memory without limit. Oldest messages are dropped first.
const maxQueued = 100

// Outbox queues chat messages for delivery into the game server. The plugin
// drains a player's queue on its poll or together with the join response.
// Messages for offline players are dropped at enqueue time.
type Outbox struct {
	mu      sync.Mutex
	queues  map[string][]string
	tracker *Tracker
}

// NewOutbox creates an outbox bound to a presence tracker
func NewOutbox(tracker *Tracker) *Outbox {
	return &Outbox{
		queues:  make(map[string][]string),
		tracker: tracker,
	}
}

// Tell queues a message for one player if they are online
func (o *Outbox) Tell(minecraftUUID, message string) {
	if _, online := o.tracker.OnlineName(minecraftUUID); !online {
		return
	}

	o.mu.Lock()
	defer o.mu.Unlock()
	q := append(o.queues[minecraftUUID], message)
	if len(q) > maxQueued {
		q = q[len(q)-maxQueued:]
	}
	o.queues[minecraftUUID] = q
}

// AnnounceOps queues a message for every online operator
func (o *Outbox) AnnounceOps(message string) {
	for _, uuid := range o.tracker.Online() {
		if o.tracker.IsOp(uuid) {
			o.Tell(uuid, message)
		}
	}
}

// Drain removes and returns all queued messages for a player
func (o *Outbox) Drain(minecraftUUID string) []string {
	o.mu.Lock()
	defer o.mu.Unlock()
	q := o.queues[minecraftUUID]
	delete(o.queues, minecraftUUID)
	return q
}

package services

import (
	"context"
	"io"
	"log/slog"
	"sync"

	"github.com/devilmonastery/discordsync/internal/domain/entities"
	"github.com/devilmonastery/discordsync/internal/domain/repositories"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// fakeUsers is an in-memory UserRepository
type fakeUsers struct {
	mu            sync.Mutex
	users         map[string]*entities.User
	setDiscordErr error
	nameUpdates   int
}

func newFakeUsers() *fakeUsers {
	return &fakeUsers{users: make(map[string]*entities.User)}
}

func (f *fakeUsers) GetOrCreate(_ context.Context, minecraftUUID string) (*entities.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if u, ok := f.users[minecraftUUID]; ok {
		copy := *u
		return &copy, nil
	}
	u := entities.NewUser(minecraftUUID)
	f.users[minecraftUUID] = u
	copy := *u
	return &copy, nil
}

func (f *fakeUsers) Get(_ context.Context, minecraftUUID string) (*entities.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	u, ok := f.users[minecraftUUID]
	if !ok {
		return nil, repositories.ErrUserNotFound
	}
	copy := *u
	return &copy, nil
}

func (f *fakeUsers) GetByDiscordID(_ context.Context, discordID string) (*entities.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, u := range f.users {
		if u.DiscordID == discordID {
			copy := *u
			return &copy, nil
		}
	}
	return nil, repositories.ErrUserNotFound
}

func (f *fakeUsers) GetByLastSeenName(_ context.Context, name string) (*entities.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, u := range f.users {
		if u.LastSeenName == name {
			copy := *u
			return &copy, nil
		}
	}
	return nil, repositories.ErrUserNotFound
}

func (f *fakeUsers) SetDiscordID(_ context.Context, minecraftUUID, discordID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.setDiscordErr != nil {
		return f.setDiscordErr
	}
	for uuid, u := range f.users {
		if u.DiscordID == discordID && uuid != minecraftUUID {
			return repositories.ErrDiscordAccountLinked
		}
	}
	u, ok := f.users[minecraftUUID]
	if !ok {
		return repositories.ErrUserNotFound
	}
	u.DiscordID = discordID
	return nil
}

func (f *fakeUsers) UpdateLastSeenName(_ context.Context, minecraftUUID, name string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	u, ok := f.users[minecraftUUID]
	if !ok {
		return repositories.ErrUserNotFound
	}
	u.LastSeenName = name
	f.nameUpdates++
	return nil
}

func (f *fakeUsers) List(_ context.Context) ([]*entities.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]*entities.User, 0, len(f.users))
	for _, u := range f.users {
		copy := *u
		out = append(out, &copy)
	}
	return out, nil
}

func (f *fakeUsers) put(u *entities.User) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.users[u.MinecraftUUID] = u
}

// fakeGroups is an in-memory GroupRepository recording every mutation
type fakeGroups struct {
	mu        sync.Mutex
	groups    map[string]map[string]bool
	adds      []string
	removes   []string
	addErr    error
	removeErr error
	listErr   error
}

func newFakeGroups() *fakeGroups {
	return &fakeGroups{groups: make(map[string]map[string]bool)}
}

func (f *fakeGroups) InheritedGroups(_ context.Context, minecraftUUID string) ([]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.listErr != nil {
		return nil, f.listErr
	}
	var out []string
	for g := range f.groups[minecraftUUID] {
		out = append(out, g)
	}
	return out, nil
}

func (f *fakeGroups) AddGroup(_ context.Context, minecraftUUID, group string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.addErr != nil {
		return f.addErr
	}
	if f.groups[minecraftUUID] == nil {
		f.groups[minecraftUUID] = make(map[string]bool)
	}
	f.groups[minecraftUUID][group] = true
	f.adds = append(f.adds, group)
	return nil
}

func (f *fakeGroups) RemoveGroup(_ context.Context, minecraftUUID, group string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.removeErr != nil {
		return f.removeErr
	}
	delete(f.groups[minecraftUUID], group)
	f.removes = append(f.removes, group)
	return nil
}

func (f *fakeGroups) grant(minecraftUUID, group string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.groups[minecraftUUID] == nil {
		f.groups[minecraftUUID] = make(map[string]bool)
	}
	f.groups[minecraftUUID][group] = true
}

func (f *fakeGroups) mutationCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.adds) + len(f.removes)
}

// fakeAudit records sync actions in memory
type fakeAudit struct {
	mu      sync.Mutex
	actions []*entities.SyncAction
}

func (f *fakeAudit) Record(_ context.Context, action *entities.SyncAction) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.actions = append(f.actions, action)
	return nil
}

func (f *fakeAudit) ListForUser(_ context.Context, minecraftUUID string, limit int) ([]*entities.SyncAction, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*entities.SyncAction
	for i := len(f.actions) - 1; i >= 0 && len(out) < limit; i-- {
		if f.actions[i].MinecraftUUID == minecraftUUID {
			out = append(out, f.actions[i])
		}
	}
	return out, nil
}

// fakeDirectory is a scriptable DiscordDirectory
type fakeDirectory struct {
	mu         sync.Mutex
	running    bool
	roles      map[string][]string
	names      map[string]string
	dms        map[string]int
	rolesErr   error
	addedRoles []string
	removed    []string
}

func newFakeDirectory() *fakeDirectory {
	return &fakeDirectory{
		running: true,
		roles:   make(map[string][]string),
		names:   make(map[string]string),
		dms:     make(map[string]int),
	}
}

func (f *fakeDirectory) Running() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.running
}

func (f *fakeDirectory) MemberRoles(_ context.Context, discordID string) ([]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.rolesErr != nil {
		return nil, f.rolesErr
	}
	return f.roles[discordID], nil
}

func (f *fakeDirectory) MemberDisplayName(_ context.Context, discordID string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if name, ok := f.names[discordID]; ok {
		return name, nil
	}
	return discordID, nil
}

func (f *fakeDirectory) AddRole(_ context.Context, discordID, roleID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.roles[discordID] = append(f.roles[discordID], roleID)
	f.addedRoles = append(f.addedRoles, roleID)
	return nil
}

func (f *fakeDirectory) RemoveRole(_ context.Context, discordID, roleID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.removed = append(f.removed, roleID)
	return nil
}

func (f *fakeDirectory) DirectMessage(_ context.Context, discordID, content string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.dms[discordID]++
	return nil
}

// fakePresence is a scriptable Presence view
type fakePresence struct {
	mu      sync.Mutex
	players map[string]string
	ops     map[string]bool
}

func newFakePresence() *fakePresence {
	return &fakePresence{players: make(map[string]string), ops: make(map[string]bool)}
}

func (f *fakePresence) join(minecraftUUID, name string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.players[minecraftUUID] = name
}

func (f *fakePresence) OnlineName(minecraftUUID string) (string, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	name, ok := f.players[minecraftUUID]
	return name, ok
}

func (f *fakePresence) IsOp(minecraftUUID string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.ops[minecraftUUID]
}

func (f *fakePresence) Online() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, 0, len(f.players))
	for uuid := range f.players {
		out = append(out, uuid)
	}
	return out
}

// fakeMessenger records queued chat messages
type fakeMessenger struct {
	mu    sync.Mutex
	tells map[string][]string
}

func newFakeMessenger() *fakeMessenger {
	return &fakeMessenger{tells: make(map[string][]string)}
}

func (f *fakeMessenger) Tell(minecraftUUID, message string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.tells[minecraftUUID] = append(f.tells[minecraftUUID], message)
}

func (f *fakeMessenger) AnnounceOps(message string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.tells["__ops__"] = append(f.tells["__ops__"], message)
}

func (f *fakeMessenger) messagesFor(minecraftUUID string) []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.tells[minecraftUUID]
}

// fakeSyncer records sync triggers
type fakeSyncer struct {
	mu    sync.Mutex
	calls []string
	err   error
}

func (f *fakeSyncer) Sync(_ context.Context, minecraftUUID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, minecraftUUID)
	return f.err
}

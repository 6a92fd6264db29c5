package services

import (
	"log/slog"
	"sync"

	"github.com/gosimple/slug"

	"github.com/devilmonastery/discordsync/internal/config"
	"github.com/devilmonastery/discordsync/internal/domain/entities"
)

// RoleTable holds the configured Discord role / LuckPerms group pairings.
// Load replaces the table wholesale; lookups are linear scans over the loaded
// order and the first match wins. The table is expected to stay small.
type RoleTable struct {
	mu       sync.RWMutex
	mappings []entities.RoleMapping
	log      *slog.Logger
}

// NewRoleTable creates an empty role table
func NewRoleTable(log *slog.Logger) *RoleTable {
	return &RoleTable{log: log}
}

// Load replaces all mappings with the given config entries. Labels are
// normalized with slug so lookups by name are insensitive to case and
// spacing. Duplicate role IDs or group names are tolerated (first match
// wins) but reported.
func (t *RoleTable) Load(entries []config.RoleMappingConfig) {
	mappings := make([]entities.RoleMapping, 0, len(entries))
	seenRole := make(map[string]bool, len(entries))
	seenGroup := make(map[string]bool, len(entries))

	for _, e := range entries {
		m := entities.RoleMapping{
			Label:         slug.Make(e.Label),
			DiscordRoleID: e.DiscordRoleID,
			GroupName:     e.GroupName,
		}
		if seenRole[m.DiscordRoleID] {
			t.log.Warn("duplicate discord role id in role list, first entry wins",
				slog.String("label", m.Label),
				slog.String("discord_role_id", m.DiscordRoleID))
		}
		if seenGroup[m.GroupName] {
			t.log.Warn("duplicate luck perms group in role list, first entry wins",
				slog.String("label", m.Label),
				slog.String("group", m.GroupName))
		}
		seenRole[m.DiscordRoleID] = true
		seenGroup[m.GroupName] = true
		mappings = append(mappings, m)
	}

	t.mu.Lock()
	t.mappings = mappings
	t.mu.Unlock()

	t.log.Info("role list loaded", slog.Int("count", len(mappings)))
}

// ByDiscordRoleID returns the mapping for a Discord role, or nil
func (t *RoleTable) ByDiscordRoleID(roleID string) *entities.RoleMapping {
	t.mu.RLock()
	defer t.mu.RUnlock()
	for i := range t.mappings {
		if t.mappings[i].DiscordRoleID == roleID {
			m := t.mappings[i]
			return &m
		}
	}
	return nil
}

// ByGroupName returns the mapping for a LuckPerms group, or nil
func (t *RoleTable) ByGroupName(group string) *entities.RoleMapping {
	t.mu.RLock()
	defer t.mu.RUnlock()
	for i := range t.mappings {
		if t.mappings[i].GroupName == group {
			m := t.mappings[i]
			return &m
		}
	}
	return nil
}

// ByLabel returns the mapping with the given label, or nil. The argument is
// normalized the same way labels are at load time.
func (t *RoleTable) ByLabel(label string) *entities.RoleMapping {
	want := slug.Make(label)
	t.mu.RLock()
	defer t.mu.RUnlock()
	for i := range t.mappings {
		if t.mappings[i].Label == want {
			m := t.mappings[i]
			return &m
		}
	}
	return nil
}

// Count returns the number of loaded mappings
func (t *RoleTable) Count() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.mappings)
}

// At returns the mapping at the given load-order index
func (t *RoleTable) At(index int) entities.RoleMapping {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.mappings[index]
}

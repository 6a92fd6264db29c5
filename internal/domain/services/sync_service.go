package services

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/devilmonastery/discordsync/internal/domain/entities"
	"github.com/devilmonastery/discordsync/internal/domain/repositories"
	"github.com/devilmonastery/discordsync/internal/pkg/idgen"
	"github.com/devilmonastery/discordsync/internal/pkg/metrics"
)

// Side selects which platforms a role mutation applies to
type Side int

const (
	SideMinecraft Side = iota
	SideDiscord
	SideBoth
)

// AppliesToMinecraft reports whether the side includes LuckPerms
func (s Side) AppliesToMinecraft() bool {
	return s == SideMinecraft || s == SideBoth
}

// AppliesToDiscord reports whether the side includes Discord
func (s Side) AppliesToDiscord() bool {
	return s == SideDiscord || s == SideBoth
}

const linkPrompt = "You need to link your minecraft and discord accounts, " +
	"run the /link-account command in discord to begin the process."

// SyncService is the reconciliation engine. Sync mirrors a player's Discord
// role state onto their LuckPerms groups, one direction only, one profile at
// a time.
type SyncService struct {
	users     repositories.UserRepository
	groups    repositories.GroupRepository
	audit     repositories.AuditRepository
	roles     *RoleTable
	discord   DiscordDirectory
	presence  Presence
	messenger Messenger
	log       *slog.Logger
}

// NewSyncService creates the reconciliation engine
func NewSyncService(
	users repositories.UserRepository,
	groups repositories.GroupRepository,
	audit repositories.AuditRepository,
	roles *RoleTable,
	discord DiscordDirectory,
	presence Presence,
	messenger Messenger,
	log *slog.Logger,
) *SyncService {
	return &SyncService{
		users:     users,
		groups:    groups,
		audit:     audit,
		roles:     roles,
		discord:   discord,
		presence:  presence,
		messenger: messenger,
		log:       log,
	}
}

// Sync runs one reconciliation pass for a profile.
//
// The pass always refreshes the cached in-game name when the player is
// online, even for unlinked profiles. Unlinked players get a link nudge and
// no mutations. For linked players the engine fetches current Discord roles
// and current LuckPerms groups, grants every mapped group the Discord side
// says the player should have, and revokes every mapped group the Discord
// side no longer backs. Membership is checked before every mutation, so a
// second pass with unchanged inputs issues no calls.
//
// A collaborator failure aborts the pass without rolling back mutations
// already applied; callers retry on the next natural trigger.
func (s *SyncService) Sync(ctx context.Context, minecraftUUID string) error {
	start := time.Now()
	defer func() {
		metrics.SyncDuration.Observe(float64(time.Since(start).Milliseconds()))
	}()

	user, err := s.users.GetOrCreate(ctx, minecraftUUID)
	if err != nil {
		metrics.SyncPasses.WithLabelValues("error").Inc()
		return fmt.Errorf("failed to load profile: %w", err)
	}

	// Presence-driven name refresh happens unconditionally, linked or not
	name, online := s.presence.OnlineName(minecraftUUID)
	if online && name != user.LastSeenName {
		if err := s.users.UpdateLastSeenName(ctx, minecraftUUID, name); err != nil {
			metrics.SyncPasses.WithLabelValues("error").Inc()
			return fmt.Errorf("failed to refresh last seen name: %w", err)
		}
		user.LastSeenName = name
	}

	if !user.Linked() {
		if online {
			s.messenger.Tell(minecraftUUID, linkPrompt)
		}
		metrics.SyncPasses.WithLabelValues("unlinked").Inc()
		return nil
	}

	// Role state lives on the Discord connection; without it the pass is
	// meaningless and must not touch LuckPerms.
	if !s.discord.Running() {
		metrics.SyncPasses.WithLabelValues("not_running").Inc()
		return ErrBotNotRunning
	}

	discordRoles, err := s.discord.MemberRoles(ctx, user.DiscordID)
	if err != nil {
		metrics.SyncPasses.WithLabelValues("error").Inc()
		return fmt.Errorf("failed to fetch discord roles: %w", err)
	}
	heldGroups, err := s.groups.InheritedGroups(ctx, minecraftUUID)
	if err != nil {
		metrics.SyncPasses.WithLabelValues("error").Inc()
		return fmt.Errorf("failed to fetch permission groups: %w", err)
	}

	roleSet := make(map[string]bool, len(discordRoles))
	for _, id := range discordRoles {
		roleSet[id] = true
	}
	groupSet := make(map[string]bool, len(heldGroups))
	for _, g := range heldGroups {
		groupSet[g] = true
	}

	// Grant phase: every mapped Discord role the player holds must be
	// backed by group membership
	for _, roleID := range discordRoles {
		mapping := s.roles.ByDiscordRoleID(roleID)
		if mapping == nil || groupSet[mapping.GroupName] {
			continue
		}
		if err := s.groups.AddGroup(ctx, minecraftUUID, mapping.GroupName); err != nil {
			metrics.SyncPasses.WithLabelValues("error").Inc()
			return fmt.Errorf("failed to grant group %q: %w", mapping.GroupName, err)
		}
		s.recordAction(ctx, user, mapping, entities.ActionGrant, entities.SideNameMinecraft)
		metrics.SyncMutations.WithLabelValues(entities.ActionGrant, entities.SideNameMinecraft).Inc()
	}

	// Revoke phase: every mapped group without a backing Discord role goes
	// away. A group granted above is never revoked here because its role is
	// in roleSet by construction.
	for _, group := range heldGroups {
		mapping := s.roles.ByGroupName(group)
		if mapping == nil || roleSet[mapping.DiscordRoleID] {
			continue
		}
		if err := s.groups.RemoveGroup(ctx, minecraftUUID, group); err != nil {
			metrics.SyncPasses.WithLabelValues("error").Inc()
			return fmt.Errorf("failed to revoke group %q: %w", group, err)
		}
		s.recordAction(ctx, user, mapping, entities.ActionRevoke, entities.SideNameMinecraft)
		metrics.SyncMutations.WithLabelValues(entities.ActionRevoke, entities.SideNameMinecraft).Inc()
	}

	metrics.SyncPasses.WithLabelValues("ok").Inc()
	return nil
}

// GiveRole grants a mapped role on the selected sides, bypassing the diff.
// Administrative commands use it to push a pairing directly.
func (s *SyncService) GiveRole(ctx context.Context, minecraftUUID string, mapping *entities.RoleMapping, side Side) error {
	user, err := s.users.GetOrCreate(ctx, minecraftUUID)
	if err != nil {
		return fmt.Errorf("failed to load profile: %w", err)
	}

	if side.AppliesToDiscord() {
		if !user.Linked() {
			return fmt.Errorf("profile %s is not linked to discord", minecraftUUID)
		}
		if !s.discord.Running() {
			return ErrBotNotRunning
		}
		if err := s.discord.AddRole(ctx, user.DiscordID, mapping.DiscordRoleID); err != nil {
			return fmt.Errorf("failed to add discord role: %w", err)
		}
		s.recordAction(ctx, user, mapping, entities.ActionGrant, entities.SideNameDiscord)
		metrics.SyncMutations.WithLabelValues(entities.ActionGrant, entities.SideNameDiscord).Inc()
	}

	if side.AppliesToMinecraft() {
		if err := s.groups.AddGroup(ctx, minecraftUUID, mapping.GroupName); err != nil {
			return fmt.Errorf("failed to grant group %q: %w", mapping.GroupName, err)
		}
		s.recordAction(ctx, user, mapping, entities.ActionGrant, entities.SideNameMinecraft)
		metrics.SyncMutations.WithLabelValues(entities.ActionGrant, entities.SideNameMinecraft).Inc()
	}

	return nil
}

// RemoveRole revokes a mapped role on the selected sides, bypassing the diff
func (s *SyncService) RemoveRole(ctx context.Context, minecraftUUID string, mapping *entities.RoleMapping, side Side) error {
	user, err := s.users.GetOrCreate(ctx, minecraftUUID)
	if err != nil {
		return fmt.Errorf("failed to load profile: %w", err)
	}

	if side.AppliesToDiscord() {
		if !user.Linked() {
			return fmt.Errorf("profile %s is not linked to discord", minecraftUUID)
		}
		if !s.discord.Running() {
			return ErrBotNotRunning
		}
		if err := s.discord.RemoveRole(ctx, user.DiscordID, mapping.DiscordRoleID); err != nil {
			return fmt.Errorf("failed to remove discord role: %w", err)
		}
		s.recordAction(ctx, user, mapping, entities.ActionRevoke, entities.SideNameDiscord)
		metrics.SyncMutations.WithLabelValues(entities.ActionRevoke, entities.SideNameDiscord).Inc()
	}

	if side.AppliesToMinecraft() {
		if err := s.groups.RemoveGroup(ctx, minecraftUUID, mapping.GroupName); err != nil {
			return fmt.Errorf("failed to revoke group %q: %w", mapping.GroupName, err)
		}
		s.recordAction(ctx, user, mapping, entities.ActionRevoke, entities.SideNameMinecraft)
		metrics.SyncMutations.WithLabelValues(entities.ActionRevoke, entities.SideNameMinecraft).Inc()
	}

	return nil
}

// SyncedRoles returns the mapped roles a linked player currently holds on
// Discord. Used by the profile views.
func (s *SyncService) SyncedRoles(ctx context.Context, user *entities.User) ([]entities.RoleMapping, error) {
	if !user.Linked() {
		return nil, nil
	}
	if !s.discord.Running() {
		return nil, ErrBotNotRunning
	}

	discordRoles, err := s.discord.MemberRoles(ctx, user.DiscordID)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch discord roles: %w", err)
	}

	var synced []entities.RoleMapping
	for _, roleID := range discordRoles {
		if mapping := s.roles.ByDiscordRoleID(roleID); mapping != nil {
			synced = append(synced, *mapping)
		}
	}
	return synced, nil
}

// recordAction writes one audit row. Audit failures never abort the
// mutation they describe.
func (s *SyncService) recordAction(ctx context.Context, user *entities.User, mapping *entities.RoleMapping, action, side string) {
	err := s.audit.Record(ctx, &entities.SyncAction{
		ID:            idgen.GenerateID(),
		MinecraftUUID: user.MinecraftUUID,
		DiscordID:     user.DiscordID,
		Action:        action,
		Side:          side,
		RoleLabel:     mapping.Label,
		GroupName:     mapping.GroupName,
		DiscordRoleID: mapping.DiscordRoleID,
		CreatedAt:     time.Now(),
	})
	if err != nil {
		s.log.Warn("failed to record sync action",
			slog.String("minecraft_uuid", user.MinecraftUUID),
			slog.String("action", action),
			slog.String("group", mapping.GroupName),
			slog.String("error", err.Error()))
	}
}

package bot

import (
	"context"
	"fmt"

	"github.com/bwmarrin/discordgo"

	"github.com/devilmonastery/discordsync/internal/domain/services"
)

// The bot is the services.DiscordDirectory for the domain layer. Every
// method checks the lifecycle state first; none of them may touch Discord
// while the connection is not running.
var _ services.DiscordDirectory = (*Bot)(nil)

// MemberRoles returns the Discord role IDs the member currently holds in
// the configured guild
func (b *Bot) MemberRoles(ctx context.Context, discordID string) ([]string, error) {
	member, err := b.guildMember(ctx, discordID)
	if err != nil {
		return nil, err
	}
	return member.Roles, nil
}

// MemberDisplayName returns the member's effective display name in the
// configured guild
func (b *Bot) MemberDisplayName(ctx context.Context, discordID string) (string, error) {
	member, err := b.guildMember(ctx, discordID)
	if err != nil {
		return "", err
	}
	if member.Nick != "" {
		return member.Nick, nil
	}
	if member.User != nil {
		if member.User.GlobalName != "" {
			return member.User.GlobalName, nil
		}
		return member.User.Username, nil
	}
	return discordID, nil
}

// AddRole assigns a guild role to the member
func (b *Bot) AddRole(ctx context.Context, discordID, roleID string) error {
	session := b.sessionSnapshot()
	if session == nil {
		return services.ErrBotNotRunning
	}
	if err := session.GuildMemberRoleAdd(b.cfg.Bot.GuildID, discordID, roleID, discordgo.WithContext(ctx)); err != nil {
		return fmt.Errorf("failed to add discord role: %w", err)
	}
	return nil
}

// RemoveRole removes a guild role from the member
func (b *Bot) RemoveRole(ctx context.Context, discordID, roleID string) error {
	session := b.sessionSnapshot()
	if session == nil {
		return services.ErrBotNotRunning
	}
	if err := session.GuildMemberRoleRemove(b.cfg.Bot.GuildID, discordID, roleID, discordgo.WithContext(ctx)); err != nil {
		return fmt.Errorf("failed to remove discord role: %w", err)
	}
	return nil
}

// DirectMessage sends a DM to the Discord user
func (b *Bot) DirectMessage(ctx context.Context, discordID, content string) error {
	session := b.sessionSnapshot()
	if session == nil {
		return services.ErrBotNotRunning
	}

	channel, err := session.UserChannelCreate(discordID, discordgo.WithContext(ctx))
	if err != nil {
		return fmt.Errorf("failed to open DM channel: %w", err)
	}
	if _, err := session.ChannelMessageSend(channel.ID, content, discordgo.WithContext(ctx)); err != nil {
		return fmt.Errorf("failed to send DM: %w", err)
	}
	return nil
}

// guildMember fetches the member from the session state cache, falling back
// to the REST API on a miss
func (b *Bot) guildMember(ctx context.Context, discordID string) (*discordgo.Member, error) {
	session := b.sessionSnapshot()
	if session == nil {
		return nil, services.ErrBotNotRunning
	}

	if member, err := session.State.Member(b.cfg.Bot.GuildID, discordID); err == nil {
		return member, nil
	}

	member, err := session.GuildMember(b.cfg.Bot.GuildID, discordID, discordgo.WithContext(ctx))
	if err != nil {
		return nil, fmt.Errorf("failed to fetch guild member: %w", err)
	}
	return member, nil
}

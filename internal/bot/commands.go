package bot

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/bwmarrin/discordgo"

	"github.com/devilmonastery/discordsync/internal/domain/repositories"
)

var adminPermission = int64(discordgo.PermissionAdministrator)

// CommandDefinitions returns the slash commands the bot serves. The register
// subcommand pushes these to Discord with a bulk overwrite.
func CommandDefinitions() []*discordgo.ApplicationCommand {
	dmFalse := false
	return []*discordgo.ApplicationCommand{
		{
			Name:        "link-account",
			Description: "Begins the process of linking your minecraft account with your discord account.",
		},
		{
			Name:                     "get-guild-id",
			Description:              "Gets the ID for this discord server.",
			DefaultMemberPermissions: &adminPermission,
			DMPermission:             &dmFalse,
		},
		{
			Name:                     "get-role-id",
			Description:              "Gets the ID for a role.",
			DefaultMemberPermissions: &adminPermission,
			DMPermission:             &dmFalse,
			Options: []*discordgo.ApplicationCommandOption{
				{
					Type:        discordgo.ApplicationCommandOptionRole,
					Name:        "role",
					Description: "The role to get the ID of.",
					Required:    true,
				},
			},
		},
		{
			Name:                     "view-profile",
			Description:              "Displays a user's minecraft profile.",
			DefaultMemberPermissions: &adminPermission,
			Options: []*discordgo.ApplicationCommandOption{
				{
					Type:        discordgo.ApplicationCommandOptionUser,
					Name:        "user",
					Description: "The user whose profile you want to view.",
					Required:    true,
				},
			},
		},
	}
}

type commandHandler func(s *discordgo.Session, i *discordgo.InteractionCreate)

// onInteraction routes slash commands through the handler table
func (b *Bot) onInteraction(s *discordgo.Session, i *discordgo.InteractionCreate) {
	if i.Type != discordgo.InteractionApplicationCommand {
		return
	}

	name := i.ApplicationCommandData().Name
	b.log.Info("command received",
		slog.String("command", name),
		slog.String("user_id", interactionUserID(i)),
		slog.String("guild_id", i.GuildID),
	)

	handler, ok := b.handlers[name]
	if !ok {
		b.respondEphemeral(s, i, "Unknown command.")
		return
	}
	handler(s, i)
}

func (b *Bot) handleLinkAccount(s *discordgo.Session, i *discordgo.InteractionCreate) {
	discordID := interactionUserID(i)
	if discordID == "" {
		b.respondEphemeral(s, i, "Could not work out who you are, try again.")
		return
	}

	code, err := b.link.CreateRequest(discordID)
	if err != nil {
		b.log.Error("failed to create link request", slog.String("error", err.Error()))
		b.respondEphemeral(s, i, "Could not start a link process right now, try again in a moment.")
		return
	}

	minutes := int(b.link.Timeout().Minutes())
	b.respondEphemeral(s, i, fmt.Sprintf(
		"Link process initiated, run the command `/link-account %d` in the minecraft server to "+
			"link your accounts. This process will expire in %d minutes.", code, minutes))
}

func (b *Bot) handleGetGuildID(s *discordgo.Session, i *discordgo.InteractionCreate) {
	b.respondEphemeral(s, i, fmt.Sprintf("This server's ID is `%s`", i.GuildID))
}

func (b *Bot) handleGetRoleID(s *discordgo.Session, i *discordgo.InteractionCreate) {
	opts := i.ApplicationCommandData().Options
	if len(opts) == 0 {
		b.respondEphemeral(s, i, "You must provide a role.")
		return
	}

	role := opts[0].RoleValue(s, i.GuildID)
	if role == nil {
		b.respondEphemeral(s, i, "Could not resolve that role.")
		return
	}
	b.respondEphemeral(s, i, fmt.Sprintf("%s's ID is `%s`", role.Mention(), role.ID))
}

func (b *Bot) handleViewProfile(s *discordgo.Session, i *discordgo.InteractionCreate) {
	opts := i.ApplicationCommandData().Options
	if len(opts) == 0 {
		b.respondEphemeral(s, i, "You must provide a user.")
		return
	}

	target := opts[0].UserValue(s)
	if target == nil {
		b.respondEphemeral(s, i, "Could not resolve that user.")
		return
	}

	user, err := b.users.GetByDiscordID(context.Background(), target.ID)
	if err != nil {
		if errors.Is(err, repositories.ErrUserNotFound) {
			b.respondEphemeral(s, i, "This person hasn't linked their minecraft account.")
			return
		}
		b.log.Error("failed to look up profile",
			slog.String("discord_id", target.ID),
			slog.String("error", err.Error()))
		b.respondEphemeral(s, i, "Profile lookup failed, try again later.")
		return
	}

	b.respondEphemeral(s, i, fmt.Sprintf(
		"%s's minecraft UUID is `%s` and their name was `%s` when they last joined the minecraft server.",
		target.Mention(), user.MinecraftUUID, user.LastSeenName))
}

// respondEphemeral replies to an interaction visibly only to its invoker
func (b *Bot) respondEphemeral(s *discordgo.Session, i *discordgo.InteractionCreate, content string) {
	err := s.InteractionRespond(i.Interaction, &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseChannelMessageWithSource,
		Data: &discordgo.InteractionResponseData{
			Content: content,
			Flags:   discordgo.MessageFlagsEphemeral,
		},
	})
	if err != nil {
		b.log.Error("failed to respond to interaction", slog.String("error", err.Error()))
	}
}

// interactionUserID works for both guild and DM invocations
func interactionUserID(i *discordgo.InteractionCreate) string {
	if i.Member != nil && i.Member.User != nil {
		return i.Member.User.ID
	}
	if i.User != nil {
		return i.User.ID
	}
	return ""
}

package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/bwmarrin/discordgo"
	"github.com/spf13/cobra"

	"github.com/devilmonastery/discordsync/internal/bot"
	"github.com/devilmonastery/discordsync/internal/config"
)

func newRegisterCommand() *cobra.Command {
	var (
		configPath string
		global     bool
		cleanup    bool
	)

	cmd := &cobra.Command{
		Use:   "register",
		Short: "Register slash commands with Discord",
		Long: `Register the slash commands with the Discord API.
By default commands are registered on the configured guild (instant). Use
--global for all guilds (takes up to an hour to propagate). Use --cleanup to
remove all commands without registering new ones.

Registration is a bulk overwrite: it atomically replaces every command, so
stale definitions disappear on their own.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			log := slog.New(slog.NewTextHandler(os.Stdout, nil))

			cfg, err := config.Load(configPath)
			if err != nil {
				return fmt.Errorf("failed to load config: %w", err)
			}

			session, err := discordgo.New("Bot " + cfg.Bot.Token)
			if err != nil {
				return fmt.Errorf("failed to create Discord session: %w", err)
			}

			guildID := cfg.Bot.GuildID
			if global {
				guildID = ""
			} else if guildID == "" {
				return fmt.Errorf("discord-bot.guild-id must be set when not using --global")
			}

			definitions := bot.CommandDefinitions()
			if cleanup {
				definitions = []*discordgo.ApplicationCommand{}
				log.Info("removing all commands", slog.Bool("global", global))
			} else {
				log.Info("registering commands using bulk overwrite",
					slog.Bool("global", global),
					slog.Int("command_count", len(definitions)))
			}

			registered, err := session.ApplicationCommandBulkOverwrite(cfg.Bot.ApplicationID, guildID, definitions)
			if err != nil {
				return fmt.Errorf("failed to bulk overwrite commands: %w", err)
			}

			for _, c := range registered {
				log.Info("registered command", slog.String("name", c.Name))
			}
			log.Info("command registration complete")
			return nil
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "configs/discordsync.yaml", "path to configuration file")
	cmd.Flags().BoolVar(&global, "global", false, "register commands globally instead of on the configured guild")
	cmd.Flags().BoolVar(&cleanup, "cleanup", false, "remove all commands without registering new ones")

	return cmd
}

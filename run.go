package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/devilmonastery/discordsync/internal/auth"
	"github.com/devilmonastery/discordsync/internal/bot"
	"github.com/devilmonastery/discordsync/internal/bridge"
	"github.com/devilmonastery/discordsync/internal/config"
	"github.com/devilmonastery/discordsync/internal/domain/services"
	"github.com/devilmonastery/discordsync/internal/infrastructure/database/postgres"
	"github.com/devilmonastery/discordsync/internal/pkg/logger"
	"github.com/devilmonastery/discordsync/internal/presence"
	"github.com/devilmonastery/discordsync/migrations"
)

// cullInterval is how often expired link requests are swept. Sweeping is a
// memory optimization only; lookups never see an expired request.
const cullInterval = time.Second

func newRunCommand() *cobra.Command {
	var (
		configPath string
		logLevel   string
		logFormat  string
	)

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Start the sync service",
		Long: `Start the sync service: connect the Discord bot, apply database migrations,
and serve the bridge API for the game-server plugin.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(configPath)
			if err != nil {
				return fmt.Errorf("failed to load config: %w", err)
			}

			// Use config file logging settings if not overridden by flags
			if !cmd.Flags().Changed("log-level") && cfg.Logging.Level != "" {
				logLevel = cfg.Logging.Level
			}
			if !cmd.Flags().Changed("log-format") && cfg.Logging.Format != "" {
				logFormat = cfg.Logging.Format
			}

			log, err := logger.Setup(logger.Config{
				Level:   logger.ParseLevel(logLevel),
				Format:  logFormat,
				LogFile: cfg.Logging.File,
			})
			if err != nil {
				return fmt.Errorf("failed to set up logging: %w", err)
			}

			if cfg.Bridge.Secret == "" {
				return fmt.Errorf("bridge.secret is required - the game-server plugin cannot authenticate without it. Generate tokens with 'discordsync token create' once it is set")
			}

			log.Info("starting discordsync",
				slog.String("config", configPath),
				slog.String("guild_id", cfg.Bot.GuildID),
			)

			conn, err := postgres.NewConnection(cfg.Database.URL)
			if err != nil {
				return fmt.Errorf("failed to connect to database: %w", err)
			}
			defer conn.Close()

			if err := conn.RunMigrations(migrations.FS); err != nil {
				return fmt.Errorf("failed to run migrations: %w", err)
			}

			users := postgres.NewUserRepository(conn.DB)
			groups := postgres.NewGroupRepository(conn.DB)
			tokens := postgres.NewTokenRepository(conn.DB)
			audit := postgres.NewAuditRepository(conn.DB)

			roles := services.NewRoleTable(log)
			roles.Load(cfg.Roles)

			tracker := presence.NewTracker()
			outbox := presence.NewOutbox(tracker)

			b := bot.New(cfg, outbox, log)
			syncSvc := services.NewSyncService(users, groups, audit, roles, b, tracker, outbox, log)
			linkSvc := services.NewLinkService(cfg.LinkTimeout(), users, b, tracker, outbox, syncSvc, log)

			// Once the bot reaches running, reconcile everyone already on
			// the server
			syncOnline := func() {
				for _, uuid := range tracker.Online() {
					if err := syncSvc.Sync(context.Background(), uuid); err != nil {
						log.Warn("startup sync failed",
							slog.String("minecraft_uuid", uuid),
							slog.String("error", err.Error()))
					}
				}
			}
			b.Bind(linkSvc, users, syncOnline)

			srv := bridge.NewServer(log, tracker, outbox, users, linkSvc, syncSvc, b,
				auth.NewJWTManager(cfg.Bridge.Secret), tokens)

			httpServer := &http.Server{
				Addr:              cfg.Bridge.Listen,
				Handler:           srv.Router(),
				ReadHeaderTimeout: 10 * time.Second,
			}
			go func() {
				log.Info("bridge API listening", slog.String("address", cfg.Bridge.Listen))
				if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					log.Error("bridge server failed", slog.String("error", err.Error()))
				}
			}()

			// The service stays up on a failed start: operators can fix the
			// token and hit /v1/control/reload without a restart
			if err := b.Start(); err != nil {
				log.Error("discord bot did not start", slog.String("error", err.Error()))
			}

			cullCtx, stopCull := context.WithCancel(context.Background())
			go func() {
				ticker := time.NewTicker(cullInterval)
				defer ticker.Stop()
				for {
					select {
					case <-cullCtx.Done():
						return
					case <-ticker.C:
						linkSvc.Cull()
					}
				}
			}()

			stop := make(chan os.Signal, 1)
			signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
			<-stop

			log.Info("shutting down")
			stopCull()

			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := httpServer.Shutdown(shutdownCtx); err != nil {
				log.Warn("bridge server shutdown failed", slog.String("error", err.Error()))
			}

			if err := b.Stop(); err != nil {
				log.Error("error stopping discord bot", slog.String("error", err.Error()))
			}

			log.Info("stopped")
			return nil
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "configs/discordsync.yaml", "path to configuration file")
	cmd.Flags().StringVar(&logLevel, "log-level", "info", "log level (debug, info, warn, error)")
	cmd.Flags().StringVar(&logFormat, "log-format", "json", "log format (json, text)")

	return cmd
}

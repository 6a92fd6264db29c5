package bot

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/bwmarrin/discordgo"

	"github.com/devilmonastery/discordsync/internal/config"
	"github.com/devilmonastery/discordsync/internal/domain/repositories"
	"github.com/devilmonastery/discordsync/internal/domain/services"
	"github.com/devilmonastery/discordsync/internal/pkg/metrics"
)

const (
	// readyTimeout bounds the wait for the gateway READY event during start
	readyTimeout = 30 * time.Second

	// shutdownTimeout bounds stop; in-flight requests are abandoned after it
	shutdownTimeout = 2 * time.Second
)

// GuildWarning is shown to operators while the configured guild cannot be
// resolved.
const GuildWarning = "Could not retrieve the discord server, make sure discord-bot.guild-id " +
	"is properly set in the config. Once the bot is running in your discord server, run the " +
	"/get-guild-id command there to get the id."

// Bot owns the Discord session and its lifecycle state machine, and serves
// the slash commands. It implements services.DiscordDirectory for the
// domain services.
type Bot struct {
	cfg       *config.Config
	log       *slog.Logger
	messenger services.Messenger

	mu       sync.Mutex
	session  *discordgo.Session
	status   Status
	guildOK  bool
	handlers map[string]commandHandler

	// Bound after construction, see Bind
	link  *services.LinkService
	users repositories.UserRepository

	// onRunning, when set, is called on its own goroutine after every
	// transition into the running state
	onRunning func()
}

// New creates the bot in the not-running state. Bind must be called before
// Start.
func New(cfg *config.Config, messenger services.Messenger, log *slog.Logger) *Bot {
	b := &Bot{
		cfg:       cfg,
		log:       log,
		messenger: messenger,
		status:    StatusNotRunning,
	}
	b.handlers = map[string]commandHandler{
		"link-account": b.handleLinkAccount,
		"get-guild-id": b.handleGetGuildID,
		"get-role-id":  b.handleGetRoleID,
		"view-profile": b.handleViewProfile,
	}
	return b
}

// Bind attaches the domain services the command handlers need. Split from
// New because the link service itself depends on the bot.
func (b *Bot) Bind(link *services.LinkService, users repositories.UserRepository, onRunning func()) {
	b.link = link
	b.users = users
	b.onRunning = onRunning
}

// Status returns the current lifecycle state
func (b *Bot) Status() Status {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.status
}

// Running reports whether the connection is in the running state
func (b *Bot) Running() bool {
	return b.Status() == StatusRunning
}

// GuildResolved reports whether the configured guild could be retrieved
func (b *Bot) GuildResolved() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.guildOK
}

func (b *Bot) setStatusLocked(s Status) {
	b.status = s
	metrics.BotTransitions.WithLabelValues(s.String()).Inc()
	if s == StatusRunning {
		metrics.BotRunning.Set(1)
	} else {
		metrics.BotRunning.Set(0)
	}
}

// Start connects to Discord and waits for the session to become ready.
// It fails fast with ErrInvalidOperation when the current state cannot
// start, and ends in the invalid-token or load-error state on failure.
func (b *Bot) Start() error {
	b.mu.Lock()
	if !b.status.CanStart() {
		status := b.status
		b.mu.Unlock()
		return fmt.Errorf("%w: cannot start discord bot while %s", services.ErrInvalidOperation, status)
	}
	b.setStatusLocked(StatusLoading)
	b.mu.Unlock()

	b.log.Info("starting discord bot")

	session, err := discordgo.New("Bot " + b.cfg.Bot.Token)
	if err != nil {
		return b.failStart(StatusLoadError, fmt.Errorf("failed to create discord session: %w", err))
	}

	session.Identify.Intents = discordgo.IntentsGuilds | discordgo.IntentsGuildMembers

	ready := make(chan struct{})
	session.AddHandlerOnce(func(s *discordgo.Session, r *discordgo.Ready) {
		close(ready)
	})
	session.AddHandler(b.onInteraction)

	if err := session.Open(); err != nil {
		if isInvalidToken(err) {
			return b.failStart(StatusInvalidToken, fmt.Errorf("discord token rejected: %w", err))
		}
		return b.failStart(StatusLoadError, fmt.Errorf("failed to open discord connection: %w", err))
	}

	select {
	case <-ready:
	case <-time.After(readyTimeout):
		_ = session.Close()
		return b.failStart(StatusLoadError, errors.New("timed out waiting for discord ready"))
	}

	guildOK := true
	if _, err := session.Guild(b.cfg.Bot.GuildID); err != nil {
		guildOK = false
		b.log.Warn("could not retrieve guild, role sync will be inert until fixed",
			slog.String("guild_id", b.cfg.Bot.GuildID),
			slog.String("error", err.Error()))
		b.messenger.AnnounceOps(GuildWarning)
	}

	b.mu.Lock()
	b.session = session
	b.guildOK = guildOK
	b.setStatusLocked(StatusRunning)
	b.mu.Unlock()

	b.log.Info("discord bot is running")
	b.messenger.AnnounceOps(StatusRunning.Message())

	if b.onRunning != nil {
		go b.onRunning()
	}
	return nil
}

// failStart records a failed start and tells operators about it
func (b *Bot) failStart(status Status, err error) error {
	b.mu.Lock()
	b.session = nil
	b.setStatusLocked(status)
	b.mu.Unlock()

	b.log.Error("could not start discord bot", slog.String("error", err.Error()))
	b.messenger.AnnounceOps(status.Message())
	return err
}

// Stop closes the Discord connection. It is a no-op unless the bot is
// running. The close is bounded; outstanding requests are abandoned after
// the shutdown timeout rather than blocking indefinitely.
func (b *Bot) Stop() error {
	b.mu.Lock()
	if !b.status.CanStop() {
		b.mu.Unlock()
		return nil
	}
	session := b.session
	b.setStatusLocked(StatusShuttingDown)
	b.mu.Unlock()

	b.log.Info("shutting down discord bot")

	closed := make(chan error, 1)
	go func() {
		closed <- session.Close()
	}()

	select {
	case err := <-closed:
		if err != nil {
			b.log.Warn("error closing discord session", slog.String("error", err.Error()))
		}
	case <-time.After(shutdownTimeout):
		b.log.Warn("discord session close timed out, abandoning in-flight requests")
	}

	b.mu.Lock()
	b.session = nil
	b.guildOK = false
	b.setStatusLocked(StatusNotRunning)
	b.mu.Unlock()

	b.log.Info("discord bot is shutdown")
	b.messenger.AnnounceOps("Discord bot is shutdown.")
	return nil
}

// Reload stops and then restarts the bot, picking up config changes such as
// a new token
func (b *Bot) Reload() error {
	if err := b.Stop(); err != nil {
		return err
	}
	return b.Start()
}

// StatusForOps returns the messages a newly-arrived operator should see
// about the bot's state
func (b *Bot) StatusForOps() []string {
	b.mu.Lock()
	status := b.status
	guildOK := b.guildOK
	b.mu.Unlock()

	var msgs []string
	if status.NotifyOps() {
		msgs = append(msgs, status.Message())
	}
	if status == StatusRunning && !guildOK {
		msgs = append(msgs, GuildWarning)
	}
	return msgs
}

// sessionSnapshot returns the live session, or nil when not running
func (b *Bot) sessionSnapshot() *discordgo.Session {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.status != StatusRunning {
		return nil
	}
	return b.session
}

// isInvalidToken distinguishes a rejected credential from transient
// connect failures. Discord closes the gateway with code 4004 on bad
// authentication.
func isInvalidToken(err error) bool {
	if errors.Is(err, discordgo.ErrUnauthorized) {
		return true
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "4004") || strings.Contains(msg, "authentication failed")
}

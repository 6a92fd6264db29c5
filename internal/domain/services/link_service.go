package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand"
	"sync"
	"time"

	"github.com/devilmonastery/discordsync/internal/domain/entities"
	"github.com/devilmonastery/discordsync/internal/domain/repositories"
	"github.com/devilmonastery/discordsync/internal/pkg/metrics"
)

// Link codes are 5-digit numbers
const (
	linkCodeMin = 10000
	linkCodeMax = 100000
)

// maxCodeAttempts bounds collision re-rolls on create. With a 90k code space
// this only trips if the registry is absurdly full.
const maxCodeAttempts = 100

// LinkService owns all pending link requests, keyed by confirmation code.
// A request is redeemable only while unconsumed and younger than the
// configured timeout; that check is evaluated lazily on every lookup, so
// Cull exists purely to free memory.
type LinkService struct {
	mu       sync.Mutex
	requests map[int]*entities.LinkRequest

	timeout   time.Duration
	users     repositories.UserRepository
	discord   DiscordDirectory
	presence  Presence
	messenger Messenger
	sync      Syncer
	log       *slog.Logger

	now     func() time.Time
	randInt func(n int) int
}

// NewLinkService creates the link registry
func NewLinkService(
	timeout time.Duration,
	users repositories.UserRepository,
	discord DiscordDirectory,
	presence Presence,
	messenger Messenger,
	syncer Syncer,
	log *slog.Logger,
) *LinkService {
	return &LinkService{
		requests:  make(map[int]*entities.LinkRequest),
		timeout:   timeout,
		users:     users,
		discord:   discord,
		presence:  presence,
		messenger: messenger,
		sync:      syncer,
		log:       log,
		now:       time.Now,
		randInt:   rand.Intn,
	}
}

// Timeout returns how long a request stays redeemable
func (s *LinkService) Timeout() time.Duration {
	return s.timeout
}

// CreateRequest starts a link attempt for a Discord account and returns the
// confirmation code the player must enter in game. Codes are re-rolled until
// they do not collide with any currently valid request; stale entries may be
// overwritten.
func (s *LinkService) CreateRequest(discordID string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	for attempt := 0; attempt < maxCodeAttempts; attempt++ {
		code := linkCodeMin + s.randInt(linkCodeMax-linkCodeMin)
		if existing, ok := s.requests[code]; ok && existing.Valid(now, s.timeout) {
			continue
		}
		s.requests[code] = &entities.LinkRequest{
			Code:      code,
			DiscordID: discordID,
			CreatedAt: now,
		}
		metrics.LinkRequests.Inc()
		metrics.LinkPending.Set(float64(len(s.requests)))
		return code, nil
	}
	return 0, ErrNoFreeCodes
}

// Lookup returns the request for a code if it is present and still valid.
// Expired or consumed entries behave as absent even before Cull removes them.
func (s *LinkService) Lookup(code int) *entities.LinkRequest {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lookupLocked(code)
}

func (s *LinkService) lookupLocked(code int) *entities.LinkRequest {
	r, ok := s.requests[code]
	if !ok || !r.Valid(s.now(), s.timeout) {
		return nil
	}
	return r
}

// Redeem consumes a valid code and binds its Discord account to the given
// Minecraft profile, then runs a reconciliation pass. Returns
// ErrLinkCodeNotFound for absent, expired, or already-consumed codes.
func (s *LinkService) Redeem(ctx context.Context, code int, minecraftUUID string) error {
	s.mu.Lock()
	r := s.lookupLocked(code)
	if r == nil {
		s.mu.Unlock()
		metrics.LinkRedemptions.WithLabelValues("not_found").Inc()
		return ErrLinkCodeNotFound
	}
	r.Consumed = true
	delete(s.requests, code)
	metrics.LinkPending.Set(float64(len(s.requests)))
	s.mu.Unlock()

	if _, err := s.users.GetOrCreate(ctx, minecraftUUID); err != nil {
		metrics.LinkRedemptions.WithLabelValues("error").Inc()
		return fmt.Errorf("failed to load profile: %w", err)
	}
	if err := s.users.SetDiscordID(ctx, minecraftUUID, r.DiscordID); err != nil {
		if errors.Is(err, repositories.ErrDiscordAccountLinked) {
			metrics.LinkRedemptions.WithLabelValues("conflict").Inc()
		} else {
			metrics.LinkRedemptions.WithLabelValues("error").Inc()
		}
		return fmt.Errorf("failed to link profile: %w", err)
	}

	s.log.Info("accounts linked",
		slog.String("minecraft_uuid", minecraftUUID),
		slog.String("discord_id", r.DiscordID))
	metrics.LinkRedemptions.WithLabelValues("ok").Inc()

	s.notifyLinked(ctx, r.DiscordID, minecraftUUID)

	// Sync errors are opportunistic here: the next presence event retries
	if err := s.sync.Sync(ctx, minecraftUUID); err != nil {
		s.log.Warn("post-link sync failed",
			slog.String("minecraft_uuid", minecraftUUID),
			slog.String("error", err.Error()))
	}
	return nil
}

// notifyLinked tells both sides the link completed
func (s *LinkService) notifyLinked(ctx context.Context, discordID, minecraftUUID string) {
	displayName, err := s.discord.MemberDisplayName(ctx, discordID)
	if err != nil {
		s.log.Warn("failed to resolve discord display name",
			slog.String("discord_id", discordID),
			slog.String("error", err.Error()))
		displayName = "your discord account"
	}
	s.messenger.Tell(minecraftUUID, fmt.Sprintf("Linked to %s for syncing.", displayName))

	playerName, online := s.presence.OnlineName(minecraftUUID)
	if !online {
		playerName = minecraftUUID
	}
	if err := s.discord.DirectMessage(ctx, discordID, fmt.Sprintf("Linked to %s for syncing.", playerName)); err != nil {
		s.log.Warn("failed to DM link confirmation",
			slog.String("discord_id", discordID),
			slog.String("error", err.Error()))
	}
}

// Cull removes every request that is no longer valid. It runs on a fixed
// period and only frees memory; Lookup never returns an invalid entry
// whether or not Cull has run.
func (s *LinkService) Cull() {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	for code, r := range s.requests {
		if !r.Valid(now, s.timeout) {
			delete(s.requests, code)
		}
	}
	metrics.LinkPending.Set(float64(len(s.requests)))
}

// Pending returns the number of requests currently held, including invalid
// ones not yet culled
func (s *LinkService) Pending() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.requests)
}

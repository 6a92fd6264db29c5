package bridge

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/google/uuid"
	"github.com/gorilla/mux"

	"github.com/devilmonastery/discordsync/internal/domain/repositories"
	"github.com/devilmonastery/discordsync/internal/domain/services"
)

// codeNotFoundMessage matches the in-game guidance players saw historically
const codeNotFoundMessage = "That code does not match a valid and active link process, make sure " +
	"you typed the code correctly and try again. If your code has expired or you have lost the " +
	"code, just re-run the command in discord to get a new code."

type joinRequest struct {
	UUID string `json:"uuid"`
	Name string `json:"name"`
	Op   bool   `json:"op"`
}

type quitRequest struct {
	UUID string `json:"uuid"`
}

type linkRequest struct {
	UUID string `json:"uuid"`
	Code int    `json:"code"`
}

type messagesResponse struct {
	Messages []string `json:"messages"`
}

// handleJoin records a player arriving, runs a reconciliation pass, and
// returns everything queued for them, including the bot status line for
// operators.
func (s *Server) handleJoin(w http.ResponseWriter, r *http.Request) {
	var req joinRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	playerUUID, err := normalizeUUID(req.UUID)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid minecraft uuid")
		return
	}
	if req.Name == "" {
		writeError(w, http.StatusBadRequest, "name is required")
		return
	}

	s.tracker.Join(playerUUID, req.Name, req.Op)

	// Sync errors are logged and dropped: the next join retries
	if err := s.sync.Sync(r.Context(), playerUUID); err != nil {
		s.log.Warn("join sync failed",
			slog.String("minecraft_uuid", playerUUID),
			slog.String("error", err.Error()))
	}

	if req.Op {
		for _, msg := range s.bot.StatusForOps() {
			s.outbox.Tell(playerUUID, msg)
		}
	}

	writeJSON(w, http.StatusOK, messagesResponse{Messages: drained(s, playerUUID)})
}

// handleQuit records a player leaving
func (s *Server) handleQuit(w http.ResponseWriter, r *http.Request) {
	var req quitRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	playerUUID, err := normalizeUUID(req.UUID)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid minecraft uuid")
		return
	}

	s.tracker.Quit(playerUUID)
	w.WriteHeader(http.StatusNoContent)
}

// handleLink redeems a confirmation code for the player
func (s *Server) handleLink(w http.ResponseWriter, r *http.Request) {
	var req linkRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	playerUUID, err := normalizeUUID(req.UUID)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid minecraft uuid")
		return
	}

	if err := s.link.Redeem(r.Context(), req.Code, playerUUID); err != nil {
		switch {
		case errors.Is(err, services.ErrLinkCodeNotFound):
			writeError(w, http.StatusNotFound, codeNotFoundMessage)
		case errors.Is(err, repositories.ErrDiscordAccountLinked):
			writeError(w, http.StatusConflict, "that discord account is already linked to another player")
		default:
			s.log.Error("link redemption failed",
				slog.String("minecraft_uuid", playerUUID),
				slog.String("error", err.Error()))
			writeError(w, http.StatusInternalServerError, "link failed, try again later")
		}
		return
	}

	writeJSON(w, http.StatusOK, messagesResponse{Messages: drained(s, playerUUID)})
}

// handleOutbox drains queued chat messages for a player
func (s *Server) handleOutbox(w http.ResponseWriter, r *http.Request) {
	playerUUID, err := normalizeUUID(mux.Vars(r)["uuid"])
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid minecraft uuid")
		return
	}
	writeJSON(w, http.StatusOK, messagesResponse{Messages: drained(s, playerUUID)})
}

type profileSummary struct {
	Name   string `json:"name"`
	Linked bool   `json:"linked"`
}

// handleListProfiles lists every known profile with its link state
func (s *Server) handleListProfiles(w http.ResponseWriter, r *http.Request) {
	users, err := s.users.List(r.Context())
	if err != nil {
		s.log.Error("failed to list profiles", slog.String("error", err.Error()))
		writeError(w, http.StatusInternalServerError, "profile listing failed")
		return
	}

	profiles := make([]profileSummary, 0, len(users))
	for _, u := range users {
		profiles = append(profiles, profileSummary{Name: u.LastSeenName, Linked: u.Linked()})
	}
	writeJSON(w, http.StatusOK, map[string]any{"profiles": profiles})
}

type syncedRole struct {
	Label         string `json:"label"`
	DiscordRoleID string `json:"discord_role_id"`
	Group         string `json:"group"`
}

type profileResponse struct {
	MinecraftUUID string       `json:"minecraft_uuid"`
	Name          string       `json:"name"`
	Linked        bool         `json:"linked"`
	DiscordName   string       `json:"discord_name,omitempty"`
	SyncedRoles   []syncedRole `json:"synced_roles,omitempty"`
}

// handleViewProfile shows one profile by last-seen name, including the role
// pairings currently backed by Discord
func (s *Server) handleViewProfile(w http.ResponseWriter, r *http.Request) {
	name := mux.Vars(r)["name"]

	user, err := s.users.GetByLastSeenName(r.Context(), name)
	if err != nil {
		if errors.Is(err, repositories.ErrUserNotFound) {
			writeError(w, http.StatusNotFound, "there is no profile with that name")
			return
		}
		s.log.Error("failed to load profile", slog.String("error", err.Error()))
		writeError(w, http.StatusInternalServerError, "profile lookup failed")
		return
	}

	resp := profileResponse{
		MinecraftUUID: user.MinecraftUUID,
		Name:          user.LastSeenName,
		Linked:        user.Linked(),
	}

	if user.Linked() && s.bot.Running() {
		if displayName, err := s.bot.MemberDisplayName(r.Context(), user.DiscordID); err == nil {
			resp.DiscordName = displayName
		}
		roles, err := s.sync.SyncedRoles(r.Context(), user)
		if err != nil {
			s.log.Warn("failed to resolve synced roles",
				slog.String("minecraft_uuid", user.MinecraftUUID),
				slog.String("error", err.Error()))
		}
		for _, m := range roles {
			resp.SyncedRoles = append(resp.SyncedRoles, syncedRole{
				Label:         m.Label,
				DiscordRoleID: m.DiscordRoleID,
				Group:         m.GroupName,
			})
		}
	}

	writeJSON(w, http.StatusOK, resp)
}

type statusResponse struct {
	State         string `json:"state"`
	Message       string `json:"message"`
	GuildResolved bool   `json:"guild_resolved"`
}

// handleStatus reports the lifecycle state
func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	status := s.bot.Status()
	writeJSON(w, http.StatusOK, statusResponse{
		State:         status.String(),
		Message:       status.Message(),
		GuildResolved: s.bot.GuildResolved(),
	})
}

// handleControl runs a lifecycle operation. Invalid transitions come back
// as 409 rather than being retried.
func (s *Server) handleControl(w http.ResponseWriter, r *http.Request) {
	action := mux.Vars(r)["action"]

	var err error
	switch action {
	case "start":
		err = s.bot.Start()
	case "stop":
		err = s.bot.Stop()
	case "reload":
		err = s.bot.Reload()
	default:
		writeError(w, http.StatusNotFound, "unknown control action")
		return
	}

	if err != nil {
		if errors.Is(err, services.ErrInvalidOperation) {
			writeError(w, http.StatusConflict, err.Error())
			return
		}
		s.log.Error("control action failed",
			slog.String("action", action),
			slog.String("error", err.Error()))
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, statusResponse{
		State:   s.bot.Status().String(),
		Message: s.bot.Status().Message(),
	})
}

// drained empties the player's outbox, never returning null in JSON
func drained(s *Server, playerUUID string) []string {
	msgs := s.outbox.Drain(playerUUID)
	if msgs == nil {
		msgs = []string{}
	}
	return msgs
}

// normalizeUUID canonicalizes a Minecraft UUID (lowercase, hyphenated)
func normalizeUUID(raw string) (string, error) {
	parsed, err := uuid.Parse(strings.TrimSpace(raw))
	if err != nil {
		return "", err
	}
	return parsed.String(), nil
}

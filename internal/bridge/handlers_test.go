package bridge

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/devilmonastery/discordsync/internal/auth"
	"github.com/devilmonastery/discordsync/internal/bot"
	"github.com/devilmonastery/discordsync/internal/config"
	"github.com/devilmonastery/discordsync/internal/domain/entities"
	"github.com/devilmonastery/discordsync/internal/domain/repositories"
	"github.com/devilmonastery/discordsync/internal/domain/services"
	"github.com/devilmonastery/discordsync/internal/presence"
)

const (
	steveUUID      = "069a79f4-44e9-4726-a5be-fca90e38aaf5"
	testDiscordID  = "123456789012345678"
	bridgeTokenID  = "tok-bridge"
	adminTokenID   = "tok-admin"
	revokedTokenID = "tok-revoked"
)

// memUsers is an in-memory UserRepository for handler tests
type memUsers struct {
	mu    sync.Mutex
	users map[string]*entities.User
}

func newMemUsers() *memUsers {
	return &memUsers{users: make(map[string]*entities.User)}
}

func (m *memUsers) GetOrCreate(_ context.Context, minecraftUUID string) (*entities.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if u, ok := m.users[minecraftUUID]; ok {
		copy := *u
		return &copy, nil
	}
	u := entities.NewUser(minecraftUUID)
	m.users[minecraftUUID] = u
	copy := *u
	return &copy, nil
}

func (m *memUsers) Get(_ context.Context, minecraftUUID string) (*entities.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[minecraftUUID]
	if !ok {
		return nil, repositories.ErrUserNotFound
	}
	copy := *u
	return &copy, nil
}

func (m *memUsers) GetByDiscordID(_ context.Context, discordID string) (*entities.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, u := range m.users {
		if u.DiscordID == discordID {
			copy := *u
			return &copy, nil
		}
	}
	return nil, repositories.ErrUserNotFound
}

func (m *memUsers) GetByLastSeenName(_ context.Context, name string) (*entities.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, u := range m.users {
		if u.LastSeenName == name {
			copy := *u
			return &copy, nil
		}
	}
	return nil, repositories.ErrUserNotFound
}

func (m *memUsers) SetDiscordID(_ context.Context, minecraftUUID, discordID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for uuid, u := range m.users {
		if u.DiscordID == discordID && uuid != minecraftUUID {
			return repositories.ErrDiscordAccountLinked
		}
	}
	u, ok := m.users[minecraftUUID]
	if !ok {
		return repositories.ErrUserNotFound
	}
	u.DiscordID = discordID
	return nil
}

func (m *memUsers) UpdateLastSeenName(_ context.Context, minecraftUUID, name string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[minecraftUUID]
	if !ok {
		return repositories.ErrUserNotFound
	}
	u.LastSeenName = name
	return nil
}

func (m *memUsers) List(_ context.Context) ([]*entities.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]*entities.User, 0, len(m.users))
	for _, u := range m.users {
		copy := *u
		out = append(out, &copy)
	}
	return out, nil
}

// memGroups is an in-memory GroupRepository
type memGroups struct {
	mu     sync.Mutex
	groups map[string]map[string]bool
}

func newMemGroups() *memGroups {
	return &memGroups{groups: make(map[string]map[string]bool)}
}

func (m *memGroups) InheritedGroups(_ context.Context, minecraftUUID string) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []string
	for g := range m.groups[minecraftUUID] {
		out = append(out, g)
	}
	return out, nil
}

func (m *memGroups) AddGroup(_ context.Context, minecraftUUID, group string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.groups[minecraftUUID] == nil {
		m.groups[minecraftUUID] = make(map[string]bool)
	}
	m.groups[minecraftUUID][group] = true
	return nil
}

func (m *memGroups) RemoveGroup(_ context.Context, minecraftUUID, group string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.groups[minecraftUUID], group)
	return nil
}

// memAudit discards audit rows
type memAudit struct{}

func (memAudit) Record(context.Context, *entities.SyncAction) error { return nil }
func (memAudit) ListForUser(context.Context, string, int) ([]*entities.SyncAction, error) {
	return nil, nil
}

// memTokens serves a fixed set of token records
type memTokens struct {
	records map[string]*entities.BridgeToken
}

func (m *memTokens) Create(_ context.Context, token *entities.BridgeToken) error {
	m.records[token.ID] = token
	return nil
}

func (m *memTokens) Get(_ context.Context, id string) (*entities.BridgeToken, error) {
	t, ok := m.records[id]
	if !ok {
		return nil, repositories.ErrTokenNotFound
	}
	return t, nil
}

func (m *memTokens) List(context.Context) ([]*entities.BridgeToken, error) { return nil, nil }
func (m *memTokens) Revoke(context.Context, string) error                  { return nil }
func (m *memTokens) Touch(context.Context, string) error                   { return nil }

type fixture struct {
	router  http.Handler
	users   *memUsers
	tracker *presence.Tracker
	outbox  *presence.Outbox
	link    *services.LinkService
	bot     *bot.Bot

	bridgeToken string
	adminToken  string
	revoked     string
}

// newFixture wires a full bridge server around in-memory storage and a bot
// that never connects.
func newFixture(t *testing.T) *fixture {
	t.Helper()
	log := slog.New(slog.NewTextHandler(io.Discard, nil))

	cfg := &config.Config{}
	cfg.Bot.GuildID = "1000"

	users := newMemUsers()
	groups := newMemGroups()
	tracker := presence.NewTracker()
	outbox := presence.NewOutbox(tracker)

	roles := services.NewRoleTable(log)
	roles.Load([]config.RoleMappingConfig{
		{Label: "Supporter", DiscordRoleID: "R1", GroupName: "supporter"},
	})

	b := bot.New(cfg, outbox, log)
	syncSvc := services.NewSyncService(users, groups, memAudit{}, roles, b, tracker, outbox, log)
	linkSvc := services.NewLinkService(5*time.Minute, users, b, tracker, outbox, syncSvc, log)
	b.Bind(linkSvc, users, nil)

	manager := auth.NewJWTManager("test-secret")
	now := time.Now()
	revokedAt := now.Add(-time.Minute)
	tokens := &memTokens{records: map[string]*entities.BridgeToken{
		bridgeTokenID:  {ID: bridgeTokenID, Role: entities.TokenRoleBridge, ExpiresAt: now.Add(time.Hour)},
		adminTokenID:   {ID: adminTokenID, Role: entities.TokenRoleAdmin, ExpiresAt: now.Add(time.Hour)},
		revokedTokenID: {ID: revokedTokenID, Role: entities.TokenRoleBridge, ExpiresAt: now.Add(time.Hour), RevokedAt: &revokedAt},
	}}

	f := &fixture{
		users:   users,
		tracker: tracker,
		outbox:  outbox,
		link:    linkSvc,
		bot:     b,
	}
	f.bridgeToken = mustToken(t, manager, entities.TokenRoleBridge, bridgeTokenID)
	f.adminToken = mustToken(t, manager, entities.TokenRoleAdmin, adminTokenID)
	f.revoked = mustToken(t, manager, entities.TokenRoleBridge, revokedTokenID)

	srv := NewServer(log, tracker, outbox, users, linkSvc, syncSvc, b, manager, tokens)
	f.router = srv.Router()
	return f
}

func mustToken(t *testing.T, manager *auth.JWTManager, role, id string) string {
	t.Helper()
	tokenString, _, err := manager.GenerateToken("test", role, id, time.Hour)
	if err != nil {
		t.Fatalf("GenerateToken() error = %v", err)
	}
	return tokenString
}

func (f *fixture) do(t *testing.T, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal body: %v", err)
		}
		reader = bytes.NewReader(data)
	}
	req := httptest.NewRequest(method, path, reader)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	f.router.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.NewDecoder(rec.Body).Decode(&v); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	return v
}

func TestAuthRequired(t *testing.T) {
	f := newFixture(t)

	tests := []struct {
		name   string
		token  string
		status int
	}{
		{"no token", "", http.StatusUnauthorized},
		{"garbage token", "not-a-jwt", http.StatusUnauthorized},
		{"revoked token", f.revoked, http.StatusUnauthorized},
		{"valid token", f.bridgeToken, http.StatusOK},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := f.do(t, "GET", "/v1/status", tt.token, nil)
			if rec.Code != tt.status {
				t.Errorf("status = %d, want %d", rec.Code, tt.status)
			}
		})
	}
}

func TestControlNeedsAdminRole(t *testing.T) {
	f := newFixture(t)

	rec := f.do(t, "POST", "/v1/control/stop", f.bridgeToken, nil)
	if rec.Code != http.StatusForbidden {
		t.Errorf("bridge token on control = %d, want 403", rec.Code)
	}

	// Stop while not running is a no-op, not an error
	rec = f.do(t, "POST", "/v1/control/stop", f.adminToken, nil)
	if rec.Code != http.StatusOK {
		t.Errorf("admin stop = %d, want 200", rec.Code)
	}
	resp := decode[statusResponse](t, rec)
	if resp.State != "not_running" {
		t.Errorf("state = %q, want not_running", resp.State)
	}

	rec = f.do(t, "POST", "/v1/control/flail", f.adminToken, nil)
	if rec.Code != http.StatusNotFound {
		t.Errorf("unknown action = %d, want 404", rec.Code)
	}
}

func TestHealthIsOpen(t *testing.T) {
	f := newFixture(t)
	rec := f.do(t, "GET", "/health", "", nil)
	if rec.Code != http.StatusOK {
		t.Errorf("health = %d, want 200 without auth", rec.Code)
	}
}

func TestJoinTracksAndNudges(t *testing.T) {
	f := newFixture(t)

	rec := f.do(t, "POST", "/v1/events/join", f.bridgeToken,
		joinRequest{UUID: steveUUID, Name: "Steve", Op: false})
	if rec.Code != http.StatusOK {
		t.Fatalf("join = %d, want 200: %s", rec.Code, rec.Body.String())
	}

	if name, online := f.tracker.OnlineName(steveUUID); !online || name != "Steve" {
		t.Errorf("tracker = %q/%v, want Steve online", name, online)
	}

	// An unlinked player gets the link nudge in the join response
	resp := decode[messagesResponse](t, rec)
	if len(resp.Messages) != 1 || !strings.Contains(resp.Messages[0], "/link-account") {
		t.Errorf("messages = %v, want the link nudge", resp.Messages)
	}

	// The pass refreshed the stored name
	user, err := f.users.Get(context.Background(), steveUUID)
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if user.LastSeenName != "Steve" {
		t.Errorf("LastSeenName = %q, want Steve", user.LastSeenName)
	}
}

func TestJoinShowsBotStatusToOps(t *testing.T) {
	f := newFixture(t)

	rec := f.do(t, "POST", "/v1/events/join", f.bridgeToken,
		joinRequest{UUID: steveUUID, Name: "Steve", Op: true})
	if rec.Code != http.StatusOK {
		t.Fatalf("join = %d, want 200", rec.Code)
	}

	resp := decode[messagesResponse](t, rec)
	var sawStatus bool
	for _, msg := range resp.Messages {
		if strings.Contains(msg, "not currently running") {
			sawStatus = true
		}
	}
	if !sawStatus {
		t.Errorf("messages = %v, want the bot status notice for an operator", resp.Messages)
	}
}

func TestJoinRejectsBadInput(t *testing.T) {
	f := newFixture(t)

	tests := []struct {
		name string
		body joinRequest
	}{
		{"bad uuid", joinRequest{UUID: "zombie", Name: "Steve"}},
		{"missing name", joinRequest{UUID: steveUUID}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := f.do(t, "POST", "/v1/events/join", f.bridgeToken, tt.body)
			if rec.Code != http.StatusBadRequest {
				t.Errorf("join = %d, want 400", rec.Code)
			}
		})
	}
}

func TestQuitRemovesPlayer(t *testing.T) {
	f := newFixture(t)
	f.tracker.Join(steveUUID, "Steve", false)

	rec := f.do(t, "POST", "/v1/events/quit", f.bridgeToken, quitRequest{UUID: steveUUID})
	if rec.Code != http.StatusNoContent {
		t.Fatalf("quit = %d, want 204", rec.Code)
	}
	if _, online := f.tracker.OnlineName(steveUUID); online {
		t.Error("player still online after quit")
	}
}

func TestLinkRedeemsCode(t *testing.T) {
	f := newFixture(t)
	f.tracker.Join(steveUUID, "Steve", false)

	code, err := f.link.CreateRequest(testDiscordID)
	if err != nil {
		t.Fatalf("CreateRequest() error = %v", err)
	}

	rec := f.do(t, "POST", "/v1/link", f.bridgeToken, linkRequest{UUID: steveUUID, Code: code})
	if rec.Code != http.StatusOK {
		t.Fatalf("link = %d, want 200: %s", rec.Code, rec.Body.String())
	}

	user, err := f.users.Get(context.Background(), steveUUID)
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if user.DiscordID != testDiscordID {
		t.Errorf("DiscordID = %q, want %q", user.DiscordID, testDiscordID)
	}

	resp := decode[messagesResponse](t, rec)
	if len(resp.Messages) == 0 {
		t.Error("messages empty, want the link confirmation")
	}
}

func TestLinkUnknownCode(t *testing.T) {
	f := newFixture(t)

	rec := f.do(t, "POST", "/v1/link", f.bridgeToken, linkRequest{UUID: steveUUID, Code: 54321})
	if rec.Code != http.StatusNotFound {
		t.Fatalf("link = %d, want 404", rec.Code)
	}
	resp := decode[map[string]string](t, rec)
	if !strings.Contains(resp["error"], "re-run the command in discord") {
		t.Errorf("error = %q, want the retry guidance", resp["error"])
	}
}

func TestLinkConflict(t *testing.T) {
	f := newFixture(t)

	// Another profile holds the Discord account already
	other := "11111111-2222-3333-4444-555555555555"
	if _, err := f.users.GetOrCreate(context.Background(), other); err != nil {
		t.Fatalf("GetOrCreate() error = %v", err)
	}
	if err := f.users.SetDiscordID(context.Background(), other, testDiscordID); err != nil {
		t.Fatalf("SetDiscordID() error = %v", err)
	}

	code, err := f.link.CreateRequest(testDiscordID)
	if err != nil {
		t.Fatalf("CreateRequest() error = %v", err)
	}
	rec := f.do(t, "POST", "/v1/link", f.bridgeToken, linkRequest{UUID: steveUUID, Code: code})
	if rec.Code != http.StatusConflict {
		t.Errorf("link = %d, want 409", rec.Code)
	}
}

func TestOutboxDrain(t *testing.T) {
	f := newFixture(t)
	f.tracker.Join(steveUUID, "Steve", false)
	f.outbox.Tell(steveUUID, "hello")

	rec := f.do(t, "GET", "/v1/outbox/"+steveUUID, f.bridgeToken, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("outbox = %d, want 200", rec.Code)
	}
	resp := decode[messagesResponse](t, rec)
	if len(resp.Messages) != 1 || resp.Messages[0] != "hello" {
		t.Errorf("messages = %v, want [hello]", resp.Messages)
	}

	// Drained queues come back as an empty list, never null
	rec = f.do(t, "GET", "/v1/outbox/"+steveUUID, f.bridgeToken, nil)
	if !strings.Contains(rec.Body.String(), `"messages":[]`) {
		t.Errorf("body = %s, want an empty messages list", rec.Body.String())
	}
}

func TestProfiles(t *testing.T) {
	f := newFixture(t)

	if _, err := f.users.GetOrCreate(context.Background(), steveUUID); err != nil {
		t.Fatalf("GetOrCreate() error = %v", err)
	}
	if err := f.users.UpdateLastSeenName(context.Background(), steveUUID, "Steve"); err != nil {
		t.Fatalf("UpdateLastSeenName() error = %v", err)
	}

	rec := f.do(t, "GET", "/v1/profiles", f.bridgeToken, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("profiles = %d, want 200", rec.Code)
	}
	list := decode[map[string][]profileSummary](t, rec)
	if len(list["profiles"]) != 1 || list["profiles"][0].Name != "Steve" {
		t.Errorf("profiles = %v, want one named Steve", list["profiles"])
	}

	rec = f.do(t, "GET", "/v1/profiles/Steve", f.bridgeToken, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("profile = %d, want 200", rec.Code)
	}
	profile := decode[profileResponse](t, rec)
	if profile.MinecraftUUID != steveUUID || profile.Linked {
		t.Errorf("profile = %+v, want Steve's unlinked profile", profile)
	}

	rec = f.do(t, "GET", "/v1/profiles/Herobrine", f.bridgeToken, nil)
	if rec.Code != http.StatusNotFound {
		t.Errorf("unknown profile = %d, want 404", rec.Code)
	}
}

func TestStatusEndpoint(t *testing.T) {
	f := newFixture(t)

	rec := f.do(t, "GET", "/v1/status", f.bridgeToken, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	resp := decode[statusResponse](t, rec)
	if resp.State != "not_running" {
		t.Errorf("state = %q, want not_running", resp.State)
	}
	if resp.Message == "" {
		t.Error("message empty, want the status description")
	}
}

func TestUUIDNormalization(t *testing.T) {
	f := newFixture(t)

	// Plugins may send the compact, uppercase form; the tracker stores the
	// canonical one.
	rec := f.do(t, "POST", "/v1/events/join", f.bridgeToken,
		joinRequest{UUID: "069A79F444E94726A5BEFCA90E38AAF5", Name: "Steve"})
	if rec.Code != http.StatusOK {
		t.Fatalf("join = %d, want 200", rec.Code)
	}
	if _, online := f.tracker.OnlineName(steveUUID); !online {
		t.Error("canonical uuid not found in tracker after compact-form join")
	}
}

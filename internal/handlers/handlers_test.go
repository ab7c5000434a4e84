package handlers_test

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/helpmh2023/sekretos-hunt-quest/internal/api"
	"github.com/helpmh2023/sekretos-hunt-quest/internal/content"
	"github.com/helpmh2023/sekretos-hunt-quest/internal/feed"
	"github.com/helpmh2023/sekretos-hunt-quest/internal/handlers"
	"github.com/helpmh2023/sekretos-hunt-quest/internal/identity"
	"github.com/helpmh2023/sekretos-hunt-quest/internal/models"
	"github.com/helpmh2023/sekretos-hunt-quest/internal/registration"
	"github.com/helpmh2023/sekretos-hunt-quest/internal/riddle"
	"github.com/helpmh2023/sekretos-hunt-quest/internal/store"
)

// testRiddle is the only riddle in the test pool so answers are predictable.
var testRiddle = riddle.Riddle{ID: "clock", Prompt: "I have hands but no arms.", Answer: "CLOCK"}

type testEnv struct {
	server *httptest.Server
	db     *store.SQLiteStore
	redis  *store.RedisStore
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	ctx := context.Background()
	logger := zerolog.Nop()

	db, err := store.NewSQLiteStore(ctx, ":memory:")
	require.NoError(t, err)
	t.Cleanup(db.Close)

	mr := miniredis.RunT(t)
	rs := store.NewRedisStoreFromClient(redis.NewClient(&redis.Options{Addr: mr.Addr()}))
	t.Cleanup(func() { rs.Close() })

	gameContent, err := content.Load("")
	require.NoError(t, err)

	provider := identity.NewProvider(db, rs, "test-signing-secret", time.Hour)
	registrar := registration.NewRegistrar(db, provider, logger)
	feedSvc := feed.NewService(rs, feed.DefaultTTL, logger)
	riddles := riddle.NewPool([]riddle.Riddle{testRiddle})

	h := handlers.NewHandler(db, rs, feedSvc, registrar, provider, riddles, gameContent, logger)
	server := httptest.NewServer(api.NewRouter(logger, h, provider, db))
	t.Cleanup(server.Close)

	return &testEnv{server: server, db: db, redis: rs}
}

func (env *testEnv) seed(t *testing.T, names ...string) {
	t.Helper()
	for _, name := range names {
		require.NoError(t, env.db.UpsertCredential(context.Background(), &models.Credential{
			ID:          models.NormalizeID(name),
			AgentName:   name,
			Secret:      "secret-" + name,
			LoginHandle: models.DeriveHandle(name),
		}))
	}
}

func (env *testEnv) do(t *testing.T, method, path, token string, body, out any) *http.Response {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(data)
	} else {
		reader = bytes.NewReader(nil)
	}

	req, err := http.NewRequest(method, env.server.URL+path, reader)
	require.NoError(t, err)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := env.server.Client().Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	if out != nil {
		require.NoError(t, json.NewDecoder(resp.Body).Decode(out))
	}
	return resp
}

// register runs the riddle + register flow and returns the assigned
// credential.
func (env *testEnv) register(t *testing.T) handlers.RegisterResponse {
	t.Helper()
	var challenge handlers.RiddleResponse
	resp := env.do(t, http.MethodGet, "/riddle", "", nil, &challenge)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.NotEmpty(t, challenge.Token)
	require.Equal(t, testRiddle.Prompt, challenge.Prompt)

	var result handlers.RegisterResponse
	resp = env.do(t, http.MethodPost, "/register", "",
		handlers.RegisterRequest{Token: challenge.Token, Answer: "clock"}, &result)
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	return result
}

// login signs the registered agent in and returns the session token.
func (env *testEnv) login(t *testing.T, agentName, secret string) string {
	t.Helper()
	var session handlers.LoginResponse
	resp := env.do(t, http.MethodPost, "/login", "",
		handlers.LoginRequest{AgentName: agentName, Secret: secret}, &session)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.NotEmpty(t, session.Token)
	return session.Token
}

func TestRegisterFlow(t *testing.T) {
	env := newTestEnv(t)
	env.seed(t, "ORCA")

	result := env.register(t)
	assert.Equal(t, "ORCA", result.AgentName)
	assert.Equal(t, "secret-ORCA", result.Secret)
	assert.NotEmpty(t, result.Identity)

	token := env.login(t, "ORCA", result.Secret)

	var profile handlers.ProfileResponse
	resp := env.do(t, http.MethodGet, "/profile", token, nil, &profile)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "ORCA", profile.AgentName)
	assert.Equal(t, 100, profile.Points)
	assert.Equal(t, "INITIATE", profile.Rank)
	assert.Equal(t, "OPERATIVE", profile.NextRank)
	assert.Equal(t, 0, profile.MissionsCompleted)
}

func TestRegisterWrongAnswerBurnsToken(t *testing.T) {
	env := newTestEnv(t)
	env.seed(t, "ORCA")

	var challenge handlers.RiddleResponse
	resp := env.do(t, http.MethodGet, "/riddle", "", nil, &challenge)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp = env.do(t, http.MethodPost, "/register", "",
		handlers.RegisterRequest{Token: challenge.Token, Answer: "sundial"}, nil)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)

	// The token was consumed by the failed attempt.
	resp = env.do(t, http.MethodPost, "/register", "",
		handlers.RegisterRequest{Token: challenge.Token, Answer: "clock"}, nil)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
}

func TestRegisterPoolExhausted(t *testing.T) {
	env := newTestEnv(t)
	env.seed(t, "ORCA")
	env.register(t)

	var challenge handlers.RiddleResponse
	env.do(t, http.MethodGet, "/riddle", "", nil, &challenge)
	resp := env.do(t, http.MethodPost, "/register", "",
		handlers.RegisterRequest{Token: challenge.Token, Answer: "clock"}, nil)
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
}

func TestLoginRejectsWrongSecret(t *testing.T) {
	env := newTestEnv(t)
	env.seed(t, "ORCA")
	env.register(t)

	resp := env.do(t, http.MethodPost, "/login", "",
		handlers.LoginRequest{AgentName: "ORCA", Secret: "wrong"}, nil)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestLogoutRevokesSession(t *testing.T) {
	env := newTestEnv(t)
	env.seed(t, "ORCA")
	result := env.register(t)
	token := env.login(t, "ORCA", result.Secret)

	resp := env.do(t, http.MethodPost, "/logout", token, nil, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp = env.do(t, http.MethodGet, "/profile", token, nil, nil)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestAuthRequired(t *testing.T) {
	env := newTestEnv(t)

	for _, path := range []string{"/profile", "/feed"} {
		resp := env.do(t, http.MethodGet, path, "", nil, nil)
		assert.Equal(t, http.StatusUnauthorized, resp.StatusCode, path)
	}

	resp := env.do(t, http.MethodGet, "/profile", "garbage-token", nil, nil)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestTransmitAndFeed(t *testing.T) {
	env := newTestEnv(t)
	env.seed(t, "ORCA")
	result := env.register(t)
	token := env.login(t, "ORCA", result.Secret)

	var published handlers.TransmitResponse
	resp := env.do(t, http.MethodPost, "/feed", token,
		handlers.TransmitRequest{Body: "the eagle has landed"}, &published)
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	assert.NotEmpty(t, published.ID)
	assert.Equal(t, published.CreatedAt+feed.DefaultTTL.Milliseconds(), published.ExpiresAt)

	var view handlers.FeedResponse
	resp = env.do(t, http.MethodGet, "/feed", token, nil, &view)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Len(t, view.Messages, 1)
	assert.Equal(t, "the eagle has landed", view.Messages[0].Body)
	assert.Equal(t, "ORCA", view.Messages[0].AgentName)
	assert.Greater(t, view.Messages[0].RemainingMS, int64(0))
	assert.NotEmpty(t, view.Messages[0].Countdown)

	// Transmissions counter shows on the profile.
	var profile handlers.ProfileResponse
	env.do(t, http.MethodGet, "/profile", token, nil, &profile)
	assert.EqualValues(t, 1, profile.Transmissions)
}

func TestTransmitValidation(t *testing.T) {
	env := newTestEnv(t)
	env.seed(t, "ORCA")
	result := env.register(t)
	token := env.login(t, "ORCA", result.Secret)

	resp := env.do(t, http.MethodPost, "/feed", token, handlers.TransmitRequest{Body: "   "}, nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp = env.do(t, http.MethodPost, "/feed", token,
		handlers.TransmitRequest{Body: strings.Repeat("x", 5000)}, nil)
	assert.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)
}

func TestCompleteMission(t *testing.T) {
	env := newTestEnv(t)
	env.seed(t, "ORCA")
	result := env.register(t)
	token := env.login(t, "ORCA", result.Secret)

	var done handlers.CompleteMissionResponse
	resp := env.do(t, http.MethodPost, "/missions/infiltrate-network/complete", token, nil, &done)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, 350, done.Points)
	assert.Equal(t, "OPERATIVE", done.Rank)
	assert.False(t, done.Repeat)

	resp = env.do(t, http.MethodPost, "/missions/infiltrate-network/complete", token, nil, &done)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, 350, done.Points)
	assert.True(t, done.Repeat)

	resp = env.do(t, http.MethodPost, "/missions/no-such-op/complete", token, nil, nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestMissionsAndMilestones(t *testing.T) {
	env := newTestEnv(t)

	var missions handlers.MissionsResponse
	resp := env.do(t, http.MethodGet, "/missions", "", nil, &missions)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, 5, missions.Total)

	var milestones handlers.MilestonesResponse
	resp = env.do(t, http.MethodGet, "/milestones", "", nil, &milestones)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Len(t, milestones.Milestones, 6)
}

func TestLeaderboardOrder(t *testing.T) {
	env := newTestEnv(t)
	env.seed(t, "ORCA", "LYNX")

	first := env.register(t)
	second := env.register(t)

	// Push one agent up the board.
	token := env.login(t, second.AgentName, second.Secret)
	env.do(t, http.MethodPost, "/missions/infiltrate-network/complete", token, nil, nil)

	var board handlers.LeaderboardResponse
	resp := env.do(t, http.MethodGet, "/leaderboard", "", nil, &board)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Len(t, board.Agents, 2)
	assert.Equal(t, second.AgentName, board.Agents[0].AgentName)
	assert.Equal(t, 1, board.Agents[0].Place)
	assert.Equal(t, 350, board.Agents[0].Points)
	assert.Equal(t, first.AgentName, board.Agents[1].AgentName)
}

func TestStats(t *testing.T) {
	env := newTestEnv(t)
	env.seed(t, "ORCA", "LYNX")
	env.register(t)

	var stats handlers.StatsResponse
	resp := env.do(t, http.MethodGet, "/stats", "", nil, &stats)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.EqualValues(t, 1, stats.TotalAgents)
	assert.EqualValues(t, 1, stats.SecretsRemaining)
	assert.Len(t, stats.TopAgents, 1)
}

func TestHealth(t *testing.T) {
	env := newTestEnv(t)

	var health handlers.HealthResponse
	resp := env.do(t, http.MethodGet, "/health", "", nil, &health)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "healthy", health.Status)
	assert.Equal(t, "pass", health.Checks["database"].Status)
	assert.Equal(t, "pass", health.Checks["redis"].Status)
}

func TestFeedStream(t *testing.T) {
	env := newTestEnv(t)
	env.seed(t, "ORCA")
	result := env.register(t)
	token := env.login(t, "ORCA", result.Secret)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, env.server.URL+"/feed/stream", nil)
	require.NoError(t, err)
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := env.server.Client().Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "text/event-stream", resp.Header.Get("Content-Type"))

	scanner := bufio.NewScanner(resp.Body)
	var sawSnapshot bool
	for scanner.Scan() {
		line := scanner.Text()
		if line == "event: snapshot" {
			sawSnapshot = true
			continue
		}
		if sawSnapshot && strings.HasPrefix(line, "data: ") {
			var snap feed.Snapshot
			require.NoError(t, json.Unmarshal([]byte(strings.TrimPrefix(line, "data: ")), &snap))
			return
		}
	}
	t.Fatal("no snapshot event received before stream ended")
}

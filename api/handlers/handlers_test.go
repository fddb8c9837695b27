package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/groxaxo/chatmode/llm"
	"github.com/groxaxo/chatmode/memory"
	"github.com/groxaxo/chatmode/orchestrator"
	"github.com/groxaxo/chatmode/speech"
	"github.com/groxaxo/chatmode/store"
	"github.com/groxaxo/chatmode/testutil/mocks"
	"github.com/groxaxo/chatmode/tools"
)

type stubFactory struct{ provider llm.Provider }

func (f stubFactory) Provider(name string) (llm.Provider, error) {
	if name != "mock" {
		return nil, fmt.Errorf("unknown provider %q", name)
	}
	return f.provider, nil
}

type testEnv struct {
	server *httptest.Server
	store  *store.Store
	orch   *orchestrator.Orchestrator
	synth  *speech.Synthesizer
	token  string
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	logger := zap.NewNop()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	require.NoError(t, err)
	st, err := store.New(db, logger)
	require.NoError(t, err)

	_, err = st.CreateUser(context.Background(), "root", "hunter2", "admin")
	require.NoError(t, err)

	idx := memory.NewIndex(mocks.NewEmbedder(), memory.NewInMemoryStore(logger), logger)
	reg := tools.NewRegistry(logger)
	require.NoError(t, tools.RegisterBuiltins(reg))
	synth := speech.NewSynthesizer(mocks.NewTTSProvider(), speech.NewMemoryCache(),
		speech.DefaultSynthesizerConfig(), logger)

	cfg := orchestrator.DefaultConfig()
	cfg.TurnDelay = 10 * time.Millisecond
	cfg.IdleInterval = 10 * time.Millisecond
	cfg.ModeratorProvider = "mock"

	orch := orchestrator.New(cfg, st, stubFactory{provider: mocks.NewChatProvider()},
		idx, synth, reg, nil, logger)
	t.Cleanup(orch.Stop)

	auth := NewAuthHandler(st, "test-secret", time.Hour, logger)
	session := NewSessionHandler(orch, st, logger)
	agents := NewAgentHandler(st, logger)
	audio := NewAudioHandler(synth, logger)
	health := NewHealthHandler("test", logger)

	mux := http.NewServeMux()
	mux.HandleFunc("POST /v1/auth/login", auth.Login)
	mux.HandleFunc("GET /healthz", health.Live)
	mux.HandleFunc("GET /readyz", health.Ready)

	protected := http.NewServeMux()
	protected.HandleFunc("POST /v1/session/start", auth.Admin(session.Start))
	protected.HandleFunc("POST /v1/session/stop", auth.Admin(session.Stop))
	protected.HandleFunc("POST /v1/session/resume", auth.Admin(session.Resume))
	protected.HandleFunc("GET /v1/session/status", session.Status)
	protected.HandleFunc("GET /v1/session/history", session.History)
	protected.HandleFunc("POST /v1/session/inject", auth.Admin(session.Inject))
	protected.HandleFunc("GET /v1/session/transcript", session.Transcript)
	protected.HandleFunc("POST /v1/memory/clear", auth.Admin(session.ClearMemory))
	protected.HandleFunc("GET /v1/session/agents", session.AgentStates)
	protected.HandleFunc("POST /v1/session/agents/{id}/{action}", auth.Admin(session.AgentAction))
	protected.HandleFunc("GET /v1/session/agents/{id}/tools", session.ListTools)
	protected.HandleFunc("POST /v1/session/agents/{id}/tools/call", auth.Admin(session.CallTool))
	protected.HandleFunc("GET /v1/agents", agents.List)
	protected.HandleFunc("POST /v1/agents", auth.Admin(agents.Create))
	protected.HandleFunc("GET /v1/agents/{id}", agents.Get)
	protected.HandleFunc("PUT /v1/agents/{id}", auth.Admin(agents.Update))
	protected.HandleFunc("POST /v1/agents/{id}/disable", auth.Admin(agents.Disable))
	protected.HandleFunc("POST /v1/agents/{id}/enable", auth.Admin(agents.Enable))
	protected.HandleFunc("GET /v1/audit", agents.Audit)
	protected.HandleFunc("GET /v1/audio/{key}", audio.Get)
	mux.Handle("/v1/", auth.Middleware(protected))

	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)

	env := &testEnv{server: server, store: st, orch: orch, synth: synth}
	env.token = env.login(t, "root", "hunter2")
	return env
}

func (e *testEnv) login(t *testing.T, username, password string) string {
	t.Helper()
	body, _ := json.Marshal(map[string]string{"username": username, "password": password})
	resp, err := http.Post(e.server.URL+"/v1/auth/login", "application/json", bytes.NewReader(body))
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var envelope struct {
		Data struct {
			Token string `json:"token"`
		} `json:"data"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&envelope))
	require.NotEmpty(t, envelope.Data.Token)
	return envelope.Data.Token
}

func (e *testEnv) request(t *testing.T, method, path string, body interface{}) *http.Response {
	t.Helper()
	return e.requestAs(t, e.token, method, path, body)
}

func (e *testEnv) requestAs(t *testing.T, token, method, path string, body interface{}) *http.Response {
	t.Helper()
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(data)
	}
	req, err := http.NewRequest(method, e.server.URL+path, reader)
	require.NoError(t, err)
	req.Header.Set("Authorization", "Bearer "+token)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	return resp
}

func decodeData(t *testing.T, resp *http.Response, dst interface{}) {
	t.Helper()
	defer resp.Body.Close()
	var envelope struct {
		Success bool            `json:"success"`
		Data    json.RawMessage `json:"data"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&envelope))
	if dst != nil {
		require.NoError(t, json.Unmarshal(envelope.Data, dst))
	}
}

func (e *testEnv) createAgent(t *testing.T, name string) string {
	t.Helper()
	resp := e.request(t, http.MethodPost, "/v1/agents", map[string]interface{}{
		"name":          name,
		"system_prompt": "You are " + name + ".",
		"provider":      "mock",
		"model":         "mock-model",
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	var profile store.AgentProfile
	decodeData(t, resp, &profile)
	return profile.ID
}

func TestAuthRequired(t *testing.T) {
	env := newTestEnv(t)

	resp, err := http.Get(env.server.URL + "/v1/session/status")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	resp2 := env.request(t, http.MethodGet, "/v1/session/status", nil)
	defer resp2.Body.Close()
	assert.Equal(t, http.StatusOK, resp2.StatusCode)
}

func TestLoginRejectsBadCredentials(t *testing.T) {
	env := newTestEnv(t)
	body, _ := json.Marshal(map[string]string{"username": "root", "password": "wrong"})
	resp, err := http.Post(env.server.URL+"/v1/auth/login", "application/json", bytes.NewReader(body))
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestSessionLifecycleOverHTTP(t *testing.T) {
	env := newTestEnv(t)
	a := env.createAgent(t, "Ada")
	b := env.createAgent(t, "Ben")

	resp := env.request(t, http.MethodPost, "/v1/session/start", map[string]interface{}{
		"topic":     "test topic",
		"agent_ids": []string{a, b},
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var snap orchestrator.StatusSnapshot
	decodeData(t, resp, &snap)
	assert.Equal(t, orchestrator.StatusRunning, snap.Status)
	assert.Len(t, snap.Agents, 2)

	// Inject is visible in history.
	resp = env.request(t, http.MethodPost, "/v1/session/inject", map[string]string{
		"content": "hello from the operator",
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	resp.Body.Close()

	resp = env.request(t, http.MethodGet, "/v1/session/history", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var history []orchestrator.Message
	decodeData(t, resp, &history)
	var foundInject bool
	for _, m := range history {
		if m.Content == "hello from the operator" {
			foundInject = true
		}
	}
	assert.True(t, foundInject)

	// Transcript downloads as markdown by default.
	resp = env.request(t, http.MethodGet, "/v1/session/transcript", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, resp.Header.Get("Content-Type"), "text/markdown")
	data, err := io.ReadAll(resp.Body)
	resp.Body.Close()
	require.NoError(t, err)
	assert.Contains(t, string(data), "# test topic")

	resp = env.request(t, http.MethodPost, "/v1/session/stop", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	decodeData(t, resp, &snap)
	assert.Equal(t, orchestrator.StatusStopped, snap.Status)

	resp = env.request(t, http.MethodPost, "/v1/session/resume", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	decodeData(t, resp, &snap)
	assert.Equal(t, orchestrator.StatusRunning, snap.Status)
}

func TestStartRequiresTopic(t *testing.T) {
	env := newTestEnv(t)
	resp := env.request(t, http.MethodPost, "/v1/session/start", map[string]interface{}{
		"agent_ids": []string{"x"},
	})
	defer resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestResumeWithoutSessionConflicts(t *testing.T) {
	env := newTestEnv(t)
	resp := env.request(t, http.MethodPost, "/v1/session/resume", nil)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
}

func TestAgentActionOverHTTP(t *testing.T) {
	env := newTestEnv(t)
	a := env.createAgent(t, "Ada")
	b := env.createAgent(t, "Ben")

	resp := env.request(t, http.MethodPost, "/v1/session/start", map[string]interface{}{
		"topic":     "actions",
		"agent_ids": []string{a, b},
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	resp.Body.Close()

	resp = env.request(t, http.MethodPost, "/v1/session/agents/"+a+"/pause", map[string]string{
		"reason": "manual pause",
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var snap orchestrator.AgentSnapshot
	decodeData(t, resp, &snap)
	assert.Equal(t, orchestrator.StatePaused, snap.State)
	assert.Equal(t, "manual pause", snap.Reason)

	resp = env.request(t, http.MethodPost, "/v1/session/agents/"+a+"/launch", nil)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp = env.request(t, http.MethodPost, "/v1/session/agents/ghost/pause", nil)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestAgentCRUDOverHTTP(t *testing.T) {
	env := newTestEnv(t)
	id := env.createAgent(t, "Ada")

	resp := env.request(t, http.MethodGet, "/v1/agents/"+id, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var profile store.AgentProfile
	decodeData(t, resp, &profile)
	assert.Equal(t, "Ada", profile.Name)

	profile.SystemPrompt = "Updated."
	resp = env.request(t, http.MethodPut, "/v1/agents/"+id, profile)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	resp.Body.Close()

	resp = env.request(t, http.MethodPost, "/v1/agents/"+id+"/disable", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	resp.Body.Close()

	resp = env.request(t, http.MethodGet, "/v1/agents", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var listed []store.AgentProfile
	decodeData(t, resp, &listed)
	assert.Empty(t, listed)

	resp = env.request(t, http.MethodGet, "/v1/agents?include_disabled=true", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	decodeData(t, resp, &listed)
	assert.Len(t, listed, 1)

	// Mutations left an audit trail.
	resp = env.request(t, http.MethodGet, "/v1/audit", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var entries []store.AuditLog
	decodeData(t, resp, &entries)
	assert.NotEmpty(t, entries)
	assert.Equal(t, "root", entries[0].Actor)
}

func TestViewerRoleCannotMutate(t *testing.T) {
	env := newTestEnv(t)
	_, err := env.store.CreateUser(context.Background(), "watcher", "hunter2", "viewer")
	require.NoError(t, err)
	viewerToken := env.login(t, "watcher", "hunter2")

	resp := env.requestAs(t, viewerToken, http.MethodPost, "/v1/agents", map[string]interface{}{
		"name":          "Ada",
		"system_prompt": "You are Ada.",
		"provider":      "mock",
		"model":         "mock-model",
	})
	resp.Body.Close()
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)

	resp = env.requestAs(t, viewerToken, http.MethodGet, "/v1/agents", nil)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestAudioServing(t *testing.T) {
	env := newTestEnv(t)

	artifact, err := env.synth.Synthesize(context.Background(), &speech.SynthesizeRequest{
		Text:  "Hello world",
		Voice: "alloy",
	})
	require.NoError(t, err)

	resp := env.request(t, http.MethodGet, "/v1/audio/"+artifact.Key, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	data, err := io.ReadAll(resp.Body)
	resp.Body.Close()
	require.NoError(t, err)
	assert.Equal(t, "audio:Hello world", string(data))
	assert.Contains(t, resp.Header.Get("Cache-Control"), "immutable")

	resp = env.request(t, http.MethodGet, "/v1/audio/not-a-key", nil)
	resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	missing := "0000000000000000000000000000000000000000000000000000000000000000"
	resp = env.request(t, http.MethodGet, "/v1/audio/"+missing, nil)
	resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestHealthEndpoints(t *testing.T) {
	env := newTestEnv(t)

	resp, err := http.Get(env.server.URL + "/healthz")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestReadyReportsFailures(t *testing.T) {
	logger := zap.NewNop()
	health := NewHealthHandler("test", logger).
		AddCheck("db", func(ctx context.Context) error { return nil }).
		AddCheck("redis", func(ctx context.Context) error { return errors.New("connection refused") })

	rec := httptest.NewRecorder()
	health.Ready(rec, httptest.NewRequest(http.MethodGet, "/readyz", nil))

	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Contains(t, rec.Body.String(), "connection refused")
	assert.Contains(t, rec.Body.String(), `"db":"ok"`)
}

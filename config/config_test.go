package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaults(t *testing.T) {
	cfg, err := NewLoader().Load()
	require.NoError(t, err)

	assert.Equal(t, 8080, cfg.Server.HTTPPort)
	assert.Equal(t, "sqlite", cfg.Database.Driver)
	assert.Equal(t, "openai", cfg.LLM.DefaultProvider)
	assert.Equal(t, 2*time.Second, cfg.Orchestrator.TurnDelay)
	assert.Equal(t, 5, cfg.Orchestrator.DefaultTopK)
}

func TestLoadFromFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	content := `
server:
  http_port: 9090
orchestrator:
  turn_delay: 500ms
  history_window: 6
llm:
  providers:
    - name: local
      base_url: http://localhost:11434/v1
auth:
  jwt_secret: file-secret
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	cfg, err := NewLoader().WithConfigPath(path).Load()
	require.NoError(t, err)

	assert.Equal(t, 9090, cfg.Server.HTTPPort)
	assert.Equal(t, 500*time.Millisecond, cfg.Orchestrator.TurnDelay)
	assert.Equal(t, 6, cfg.Orchestrator.HistoryWindow)
	require.Len(t, cfg.LLM.Providers, 1)
	assert.Equal(t, "local", cfg.LLM.Providers[0].Name)

	// Untouched sections keep their defaults.
	assert.Equal(t, "sqlite", cfg.Database.Driver)
}

func TestMissingFileUsesDefaults(t *testing.T) {
	cfg, err := NewLoader().WithConfigPath("/does/not/exist.yaml").Load()
	require.NoError(t, err)
	assert.Equal(t, 8080, cfg.Server.HTTPPort)
}

func TestEnvOverridesFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("server:\n  http_port: 9090\n"), 0o600))

	t.Setenv("CHATMODE_SERVER_HTTP_PORT", "7070")
	t.Setenv("CHATMODE_AUTH_JWT_SECRET", "env-secret")
	t.Setenv("CHATMODE_ORCHESTRATOR_TURN_DELAY", "3s")
	t.Setenv("CHATMODE_LOG_OUTPUT_PATHS", "stdout, /var/log/chatmode.log")

	cfg, err := NewLoader().WithConfigPath(path).Load()
	require.NoError(t, err)

	assert.Equal(t, 7070, cfg.Server.HTTPPort)
	assert.Equal(t, "env-secret", cfg.Auth.JWTSecret)
	assert.Equal(t, 3*time.Second, cfg.Orchestrator.TurnDelay)
	assert.Equal(t, []string{"stdout", "/var/log/chatmode.log"}, cfg.Log.OutputPaths)
}

func TestValidate(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Auth.JWTSecret = "secret"
	require.NoError(t, cfg.Validate())

	cfg.Server.HTTPPort = 0
	assert.Error(t, cfg.Validate())

	cfg = DefaultConfig()
	cfg.Auth.JWTSecret = "secret"
	cfg.Database.Driver = "mongodb"
	assert.Error(t, cfg.Validate())

	cfg = DefaultConfig()
	cfg.Auth.JWTSecret = "secret"
	cfg.LLM.Providers = []ProviderConfig{{Name: "a"}, {Name: "a"}}
	assert.Error(t, cfg.Validate())

	cfg = DefaultConfig()
	assert.Error(t, cfg.Validate(), "missing jwt secret must fail validation")
}

func TestDatabaseDSN(t *testing.T) {
	pg := DatabaseConfig{Driver: "postgres", Host: "db", Port: 5432, User: "u", Password: "p", Name: "chatmode", SSLMode: "disable"}
	assert.Contains(t, pg.DSN(), "host=db")
	assert.Contains(t, pg.DSN(), "dbname=chatmode")

	my := DatabaseConfig{Driver: "mysql", Host: "db", Port: 3306, User: "u", Password: "p", Name: "chatmode"}
	assert.Contains(t, my.DSN(), "tcp(db:3306)")

	lite := DatabaseConfig{Driver: "sqlite", Name: "file.db"}
	assert.Equal(t, "file.db", lite.DSN())
}

func TestBuildLogger(t *testing.T) {
	logger, err := LogConfig{Level: "debug", Format: "console"}.BuildLogger()
	require.NoError(t, err)
	logger.Sync()

	_, err = LogConfig{Level: "verbose"}.BuildLogger()
	assert.Error(t, err)
}

package store

import (
	"context"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/groxaxo/chatmode/types"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	require.NoError(t, err)

	s, err := New(db, zap.NewNop())
	require.NoError(t, err)
	return s
}

func sampleProfile(name string) *AgentProfile {
	return &AgentProfile{
		Name:         name,
		SystemPrompt: "You are " + name + ".",
		Provider:     "openai",
		Model:        "gpt-4o-mini",
		Tools:        []string{"current_time"},
	}
}

func TestAgentCRUD(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	profile := sampleProfile("Ada")
	require.NoError(t, s.CreateAgent(ctx, profile))
	require.NotEmpty(t, profile.ID)
	assert.True(t, profile.Enabled)

	loaded, err := s.GetAgent(ctx, profile.ID)
	require.NoError(t, err)
	assert.Equal(t, "Ada", loaded.Name)
	assert.Equal(t, []string{"current_time"}, loaded.Tools)

	loaded.SystemPrompt = "Updated persona"
	require.NoError(t, s.UpdateAgent(ctx, loaded))

	again, err := s.GetAgent(ctx, profile.ID)
	require.NoError(t, err)
	assert.Equal(t, "Updated persona", again.SystemPrompt)

	_, err = s.GetAgent(ctx, "missing")
	assert.True(t, types.IsCode(err, types.ErrAgentNotFound))
}

func TestEnabledNameUniqueness(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	require.NoError(t, s.CreateAgent(ctx, sampleProfile("Ada")))

	err := s.CreateAgent(ctx, sampleProfile("Ada"))
	assert.True(t, types.IsCode(err, types.ErrInvalidRequest))

	// A disabled profile releases its name.
	second := sampleProfile("Ben")
	require.NoError(t, s.CreateAgent(ctx, second))
	require.NoError(t, s.DisableAgent(ctx, second.ID))
	require.NoError(t, s.CreateAgent(ctx, sampleProfile("Ben")))

	// The disabled original cannot come back while the name is taken.
	err = s.EnableAgent(ctx, second.ID)
	assert.True(t, types.IsCode(err, types.ErrInvalidRequest))
}

func TestRenameChecksUniqueness(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	require.NoError(t, s.CreateAgent(ctx, sampleProfile("Ada")))
	ben := sampleProfile("Ben")
	require.NoError(t, s.CreateAgent(ctx, ben))

	ben.Name = "Ada"
	err := s.UpdateAgent(ctx, ben)
	assert.True(t, types.IsCode(err, types.ErrInvalidRequest))
}

func TestListAgentsFiltersDisabled(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	ada := sampleProfile("Ada")
	ben := sampleProfile("Ben")
	require.NoError(t, s.CreateAgent(ctx, ada))
	require.NoError(t, s.CreateAgent(ctx, ben))
	require.NoError(t, s.DisableAgent(ctx, ben.ID))

	enabled, err := s.ListAgents(ctx, false)
	require.NoError(t, err)
	require.Len(t, enabled, 1)
	assert.Equal(t, "Ada", enabled[0].Name)

	all, err := s.ListAgents(ctx, true)
	require.NoError(t, err)
	assert.Len(t, all, 2)
}

func TestResolveAgents(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	ada := sampleProfile("Ada")
	ben := sampleProfile("Ben")
	cle := sampleProfile("Cleo")
	require.NoError(t, s.CreateAgent(ctx, ada))
	require.NoError(t, s.CreateAgent(ctx, ben))
	require.NoError(t, s.CreateAgent(ctx, cle))
	require.NoError(t, s.DisableAgent(ctx, ben.ID))

	// Request order becomes rotation order; disabled and unknown ids are
	// silently absent.
	configs, err := s.ResolveAgents(ctx, []string{cle.ID, ben.ID, "ghost", ada.ID})
	require.NoError(t, err)
	require.Len(t, configs, 2)
	assert.Equal(t, "Cleo", configs[0].Name)
	assert.Equal(t, "Ada", configs[1].Name)

	none, err := s.ResolveAgents(ctx, nil)
	require.NoError(t, err)
	assert.Empty(t, none)
}

func TestUserAuthentication(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	user, err := s.CreateUser(ctx, "root", "hunter2", "admin")
	require.NoError(t, err)
	assert.NotEqual(t, "hunter2", user.PasswordHash)

	authed, err := s.Authenticate(ctx, "root", "hunter2")
	require.NoError(t, err)
	assert.Equal(t, user.ID, authed.ID)

	_, err = s.Authenticate(ctx, "root", "wrong")
	assert.True(t, types.IsCode(err, types.ErrUnauthorized))

	_, err = s.Authenticate(ctx, "nobody", "hunter2")
	assert.True(t, types.IsCode(err, types.ErrUnauthorized))

	count, err := s.CountUsers(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 1, count)
}

func TestAuditTrail(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	s.RecordAudit(ctx, "root", "agent.create", "agent/abc", "created Ada")
	s.RecordAudit(ctx, "root", "session.start", "session/s1", "")

	entries, err := s.ListAudit(ctx, 10)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	// Newest first.
	assert.Equal(t, "session.start", entries[0].Action)
	assert.Equal(t, "agent.create", entries[1].Action)
}

func TestListAgentsQueryError(t *testing.T) {
	sqlDB, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer sqlDB.Close()

	mock.ExpectQuery("SELECT").WillReturnError(assert.AnError)

	db, err := gorm.Open(postgres.New(postgres.Config{
		Conn:                 sqlDB,
		PreferSimpleProtocol: true,
	}), &gorm.Config{Logger: gormlogger.Default.LogMode(gormlogger.Silent)})
	require.NoError(t, err)

	s := &Store{db: db, logger: zap.NewNop()}
	_, err = s.ListAgents(context.Background(), true)
	assert.Error(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

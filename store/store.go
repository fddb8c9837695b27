package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/groxaxo/chatmode/orchestrator"
	"github.com/groxaxo/chatmode/types"
)

// Store is the persistence layer for agent profiles, users, and audit
// records. It implements orchestrator.ProfileSource.
type Store struct {
	db     *gorm.DB
	logger *zap.Logger
}

// New creates a store and migrates its schema.
func New(db *gorm.DB, logger *zap.Logger) (*Store, error) {
	if err := db.AutoMigrate(&AgentProfile{}, &User{}, &AuditLog{}); err != nil {
		return nil, fmt.Errorf("migrate schema: %w", err)
	}
	return &Store{
		db:     db,
		logger: logger.With(zap.String("component", "store")),
	}, nil
}

// =============================================================================
// Agent profiles
// =============================================================================

// CreateAgent persists a new enabled profile. The name must be unique among
// enabled profiles.
func (s *Store) CreateAgent(ctx context.Context, profile *AgentProfile) error {
	if profile.Name == "" {
		return types.NewError(types.ErrInvalidRequest, "agent name is required")
	}
	if profile.ID == "" {
		profile.ID = uuid.New().String()
	}
	profile.Enabled = true

	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		taken, err := s.nameTaken(tx, profile.Name, profile.ID)
		if err != nil {
			return err
		}
		if taken {
			return types.NewError(types.ErrInvalidRequest,
				fmt.Sprintf("an enabled agent named %q already exists", profile.Name))
		}
		if err := tx.Create(profile).Error; err != nil {
			return fmt.Errorf("create agent: %w", err)
		}
		s.logger.Info("agent created",
			zap.String("agent_id", profile.ID),
			zap.String("name", profile.Name))
		return nil
	})
}

// GetAgent loads one profile by ID.
func (s *Store) GetAgent(ctx context.Context, id string) (*AgentProfile, error) {
	var profile AgentProfile
	err := s.db.WithContext(ctx).First(&profile, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, types.NewError(types.ErrAgentNotFound, fmt.Sprintf("agent %s not found", id))
	}
	if err != nil {
		return nil, fmt.Errorf("get agent: %w", err)
	}
	return &profile, nil
}

// ListAgents returns profiles ordered by name. Disabled profiles are
// included only when requested.
func (s *Store) ListAgents(ctx context.Context, includeDisabled bool) ([]AgentProfile, error) {
	q := s.db.WithContext(ctx).Order("name")
	if !includeDisabled {
		q = q.Where("enabled = ?", true)
	}
	var profiles []AgentProfile
	if err := q.Find(&profiles).Error; err != nil {
		return nil, fmt.Errorf("list agents: %w", err)
	}
	return profiles, nil
}

// UpdateAgent replaces the mutable fields of an existing profile. Renames
// are checked against the enabled-name uniqueness rule.
func (s *Store) UpdateAgent(ctx context.Context, profile *AgentProfile) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var existing AgentProfile
		err := tx.First(&existing, "id = ?", profile.ID).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return types.NewError(types.ErrAgentNotFound, fmt.Sprintf("agent %s not found", profile.ID))
		}
		if err != nil {
			return fmt.Errorf("update agent: %w", err)
		}

		if existing.Enabled && profile.Name != existing.Name {
			taken, err := s.nameTaken(tx, profile.Name, profile.ID)
			if err != nil {
				return err
			}
			if taken {
				return types.NewError(types.ErrInvalidRequest,
					fmt.Sprintf("an enabled agent named %q already exists", profile.Name))
			}
		}

		profile.Enabled = existing.Enabled
		profile.CreatedAt = existing.CreatedAt
		if err := tx.Save(profile).Error; err != nil {
			return fmt.Errorf("update agent: %w", err)
		}
		s.logger.Info("agent updated", zap.String("agent_id", profile.ID))
		return nil
	})
}

// DisableAgent soft-disables a profile. It disappears from resolution and
// default listings but its history attribution survives.
func (s *Store) DisableAgent(ctx context.Context, id string) error {
	return s.setEnabled(ctx, id, false)
}

// EnableAgent re-enables a disabled profile, subject to name uniqueness.
func (s *Store) EnableAgent(ctx context.Context, id string) error {
	return s.setEnabled(ctx, id, true)
}

func (s *Store) setEnabled(ctx context.Context, id string, enabled bool) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var profile AgentProfile
		err := tx.First(&profile, "id = ?", id).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return types.NewError(types.ErrAgentNotFound, fmt.Sprintf("agent %s not found", id))
		}
		if err != nil {
			return fmt.Errorf("load agent: %w", err)
		}
		if profile.Enabled == enabled {
			return nil
		}

		if enabled {
			taken, err := s.nameTaken(tx, profile.Name, id)
			if err != nil {
				return err
			}
			if taken {
				return types.NewError(types.ErrInvalidRequest,
					fmt.Sprintf("an enabled agent named %q already exists", profile.Name))
			}
		}

		if err := tx.Model(&profile).Update("enabled", enabled).Error; err != nil {
			return fmt.Errorf("set enabled: %w", err)
		}
		s.logger.Info("agent enabled flag changed",
			zap.String("agent_id", id),
			zap.Bool("enabled", enabled))
		return nil
	})
}

// nameTaken reports whether another enabled profile already uses the name.
func (s *Store) nameTaken(tx *gorm.DB, name, excludeID string) (bool, error) {
	var count int64
	err := tx.Model(&AgentProfile{}).
		Where("name = ? AND enabled = ? AND id <> ?", name, true, excludeID).
		Count(&count).Error
	if err != nil {
		return false, fmt.Errorf("check name uniqueness: %w", err)
	}
	return count > 0, nil
}

// ResolveAgents implements orchestrator.ProfileSource. Unknown and disabled
// identifiers are silently absent from the result; the orchestrator decides
// whether what remains is enough to start.
func (s *Store) ResolveAgents(ctx context.Context, ids []string) ([]orchestrator.AgentConfig, error) {
	if len(ids) == 0 {
		return nil, nil
	}

	var profiles []AgentProfile
	err := s.db.WithContext(ctx).
		Where("id IN ? AND enabled = ?", ids, true).
		Find(&profiles).Error
	if err != nil {
		return nil, fmt.Errorf("resolve agents: %w", err)
	}

	byID := make(map[string]*AgentProfile, len(profiles))
	for i := range profiles {
		byID[profiles[i].ID] = &profiles[i]
	}

	// Preserve the caller's ordering; it becomes the rotation order.
	out := make([]orchestrator.AgentConfig, 0, len(ids))
	for _, id := range ids {
		if p, ok := byID[id]; ok {
			out = append(out, p.ToAgentConfig())
		}
	}
	return out, nil
}

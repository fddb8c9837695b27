package store

import (
	"context"
	"fmt"

	"go.uber.org/zap"
)

// RecordAudit appends one audit entry. Audit failures are logged, never
// propagated; a broken audit trail must not block the mutation itself.
func (s *Store) RecordAudit(ctx context.Context, actor, action, resource, detail string) {
	entry := &AuditLog{
		Actor:    actor,
		Action:   action,
		Resource: resource,
		Detail:   detail,
	}
	if err := s.db.WithContext(ctx).Create(entry).Error; err != nil {
		s.logger.Error("audit write failed",
			zap.String("actor", actor),
			zap.String("action", action),
			zap.Error(err))
	}
}

// ListAudit returns the most recent audit entries, newest first.
func (s *Store) ListAudit(ctx context.Context, limit int) ([]AuditLog, error) {
	if limit <= 0 || limit > 1000 {
		limit = 100
	}
	var entries []AuditLog
	err := s.db.WithContext(ctx).
		Order("id DESC").
		Limit(limit).
		Find(&entries).Error
	if err != nil {
		return nil, fmt.Errorf("list audit: %w", err)
	}
	return entries, nil
}

package registry

import (
	"context"
	"fmt"
	"strings"

	"datareg.org/internal/auth"
)

// AppendAudit records an action performed outside the lifecycle operations.
// It runs in its own unit of work.
func (s *Service) AppendAudit(ctx context.Context, actor auth.Actor, action, resourceType string, resourceID int64, detail string) (AuditEntry, error) {
	if err := requireActor(actor); err != nil {
		return AuditEntry{}, err
	}
	action = strings.TrimSpace(action)
	resourceType = strings.TrimSpace(resourceType)
	if action == "" || resourceType == "" {
		return AuditEntry{}, fmt.Errorf("%w: action and resource type are required", ErrInvalidInput)
	}

	var entry AuditEntry
	err := s.store.WithinTx(ctx, func(ctx context.Context, tx Tx) error {
		var err error
		entry, err = tx.AppendAudit(ctx, newEntry(ctx, actor, action, resourceType, resourceID, detail))
		return err
	})
	if err != nil {
		return AuditEntry{}, err
	}
	committed(ctx, actor, entry, nil)
	return entry, nil
}

// ListAudit pages through the audit log, newest first.
func (s *Service) ListAudit(ctx context.Context, actor auth.Actor, f AuditFilter) ([]AuditEntry, error) {
	if err := authorize(actor, auth.ActionViewAudit); err != nil {
		return nil, err
	}
	return s.store.ListAudit(ctx, f.Normalize())
}

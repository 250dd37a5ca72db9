package registry

import (
	"context"
	"errors"
	"fmt"

	"datareg.org/internal/audit"
	"datareg.org/internal/auth"
	"datareg.org/internal/blob"
	"datareg.org/internal/obs"
)

// Service is the registry core. Every mutating call is permission checked,
// runs in a single unit of work and appends exactly one audit entry in that
// same unit of work.
type Service struct {
	store Store
	blobs blob.Store
}

func NewService(store Store, blobs blob.Store) (*Service, error) {
	if store == nil {
		return nil, errors.New("registry: store is required")
	}
	if blobs == nil {
		return nil, errors.New("registry: blob store is required")
	}
	return &Service{store: store, blobs: blobs}, nil
}

// Ready reports whether the backing store is reachable.
func (s *Service) Ready(ctx context.Context) error {
	return s.store.Ping(ctx)
}

func requireActor(actor auth.Actor) error {
	if actor.ID <= 0 || !actor.Role.Valid() {
		return fmt.Errorf("%w: %v", ErrForbidden, auth.ErrNoActor)
	}
	return nil
}

func authorize(actor auth.Actor, action auth.Action) error {
	if err := requireActor(actor); err != nil {
		return err
	}
	if !auth.Allowed(actor.Role, action) {
		return fmt.Errorf("%w: role %s may not %s", ErrForbidden, actor.Role, action)
	}
	return nil
}

func newEntry(ctx context.Context, actor auth.Actor, action, resourceType string, resourceID int64, detail string) AuditEntry {
	return AuditEntry{
		ActorID:      actor.ID,
		ActorName:    actor.DisplayName(),
		Action:       action,
		ResourceType: resourceType,
		ResourceID:   resourceID,
		Detail:       detail,
		Origin:       audit.OriginFromContext(ctx),
	}
}

// committed emits the structured audit line once the unit of work is durable.
func committed(ctx context.Context, actor auth.Actor, e AuditEntry, fields map[string]any) {
	if fields == nil {
		fields = map[string]any{}
	}
	fields["audit_id"] = e.ID
	fields["resource_id"] = e.ResourceID
	ctx = auth.ContextWithActor(ctx, actor)
	if err := audit.LogEvent(ctx, e.ResourceType+"."+e.Action, fields); err != nil {
		obs.Log("error", "audit log failed", map[string]any{"error": err.Error()})
	}
}

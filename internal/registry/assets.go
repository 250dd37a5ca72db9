package registry

import (
	"context"
	"fmt"
	"strings"

	"datareg.org/internal/auth"
)

// NewAsset carries the caller supplied attributes of an asset.
type NewAsset struct {
	Name               string `json:"name"`
	Description        string `json:"description"`
	AssetType          string `json:"asset_type"`
	DataClassification string `json:"data_classification"`
}

// CreateAsset registers an asset owned by the actor's organization at the
// first stage.
func (s *Service) CreateAsset(ctx context.Context, actor auth.Actor, in NewAsset) (Asset, error) {
	if err := authorize(actor, auth.ActionCreateAsset); err != nil {
		return Asset{}, err
	}
	if !actor.HasOrganization() {
		return Asset{}, fmt.Errorf("%w: user %d has no organization", ErrInvalidInput, actor.ID)
	}
	name := strings.TrimSpace(in.Name)
	if name == "" {
		return Asset{}, fmt.Errorf("%w: name is required", ErrInvalidInput)
	}

	var (
		asset Asset
		entry AuditEntry
	)
	err := s.store.WithinTx(ctx, func(ctx context.Context, tx Tx) error {
		var err error
		asset, err = tx.CreateAsset(ctx, Asset{
			Name:               name,
			Description:        strings.TrimSpace(in.Description),
			OrganizationID:     actor.OrganizationID,
			CurrentStage:       InitialStage,
			AssetType:          strings.TrimSpace(in.AssetType),
			DataClassification: strings.TrimSpace(in.DataClassification),
			CreatedBy:          actor.ID,
		})
		if err != nil {
			return fmt.Errorf("create asset: %w", err)
		}
		entry, err = tx.AppendAudit(ctx, newEntry(ctx, actor, ActionCreate, ResourceAsset, asset.ID, "created asset "+asset.Name))
		return err
	})
	if err != nil {
		return Asset{}, err
	}
	committed(ctx, actor, entry, map[string]any{"organization_id": asset.OrganizationID})
	return asset, nil
}

// ListAssets returns the assets visible to actor, newest first. An empty
// stage matches every stage.
func (s *Service) ListAssets(ctx context.Context, actor auth.Actor, stage Stage) ([]Asset, error) {
	if err := requireActor(actor); err != nil {
		return nil, err
	}
	if stage != "" && !stage.Valid() {
		return nil, fmt.Errorf("%w: unknown stage %q", ErrInvalidInput, stage)
	}
	return s.store.ListAssets(ctx, AssetFilter{Scope: auth.VisibilityScope(actor), Stage: stage})
}

// GetAsset returns the asset if actor may see it. Assets outside the actor's
// visibility are reported as not found.
func (s *Service) GetAsset(ctx context.Context, actor auth.Actor, id int64) (Asset, error) {
	if err := requireActor(actor); err != nil {
		return Asset{}, err
	}
	asset, err := s.store.GetAsset(ctx, id)
	if err != nil {
		return Asset{}, err
	}
	if !auth.CanSeeOrganization(actor, asset.OrganizationID) {
		return Asset{}, fmt.Errorf("%w: asset %d", ErrNotFound, id)
	}
	return asset, nil
}

func hiddenAsset(actor auth.Actor, a Asset) error {
	if auth.CanSeeOrganization(actor, a.OrganizationID) {
		return nil
	}
	return fmt.Errorf("%w: asset %d", ErrNotFound, a.ID)
}

// visibleRecord loads a record and hides it when its asset is not visible.
func (s *Service) visibleRecord(ctx context.Context, actor auth.Actor, id int64) (StageRecord, error) {
	rec, err := s.store.GetStageRecord(ctx, id)
	if err != nil {
		return StageRecord{}, err
	}
	asset, err := s.store.GetAsset(ctx, rec.AssetID)
	if err != nil {
		return StageRecord{}, err
	}
	if err := hiddenAsset(actor, asset); err != nil {
		return StageRecord{}, fmt.Errorf("%w: stage record %d", ErrNotFound, id)
	}
	return rec, nil
}

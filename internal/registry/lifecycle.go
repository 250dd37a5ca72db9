package registry

import (
	"context"
	"fmt"

	"datareg.org/internal/auth"
	"datareg.org/internal/obs"
)

// Submit opens a review for the asset's current stage. Only one submitted
// record may exist per (asset, stage); a second attempt fails with ErrConflict.
func (s *Service) Submit(ctx context.Context, actor auth.Actor, assetID int64) (StageRecord, error) {
	if err := authorize(actor, auth.ActionSubmitStage); err != nil {
		return StageRecord{}, err
	}

	var (
		rec   StageRecord
		entry AuditEntry
	)
	err := s.store.WithinTx(ctx, func(ctx context.Context, tx Tx) error {
		asset, err := tx.LockAsset(ctx, assetID)
		if err != nil {
			return err
		}
		if err := hiddenAsset(actor, asset); err != nil {
			return err
		}
		if _, pending, err := tx.PendingRecord(ctx, asset.ID, asset.CurrentStage); err != nil {
			return fmt.Errorf("check pending record: %w", err)
		} else if pending {
			return fmt.Errorf("%w: stage %s of asset %d is already awaiting review", ErrConflict, asset.CurrentStage, asset.ID)
		}
		rec, err = tx.CreateStageRecord(ctx, StageRecord{
			AssetID:     asset.ID,
			Stage:       asset.CurrentStage,
			Status:      StatusSubmitted,
			SubmittedBy: actor.ID,
		})
		if err != nil {
			return fmt.Errorf("create stage record: %w", err)
		}
		entry, err = tx.AppendAudit(ctx, newEntry(ctx, actor, ActionSubmit, ResourceStage, rec.ID,
			fmt.Sprintf("asset %d submitted at stage %s", asset.ID, rec.Stage)))
		return err
	})
	if err != nil {
		return StageRecord{}, err
	}
	committed(ctx, actor, entry, map[string]any{"asset_id": rec.AssetID, "stage": rec.Stage})
	obs.ObserveTransition(ActionSubmit, string(rec.Stage))
	return rec, nil
}

// Approve accepts a submitted record and moves its asset one stage forward.
// At the terminal stage the asset stays put and only the record changes.
func (s *Service) Approve(ctx context.Context, actor auth.Actor, recordID int64) (StageRecord, error) {
	if err := authorize(actor, auth.ActionReviewStage); err != nil {
		return StageRecord{}, err
	}

	var (
		rec      StageRecord
		entry    AuditEntry
		from, to Stage
	)
	err := s.store.WithinTx(ctx, func(ctx context.Context, tx Tx) error {
		var err error
		rec, err = tx.LockStageRecord(ctx, recordID)
		if err != nil {
			return err
		}
		if rec.Status != StatusSubmitted {
			return fmt.Errorf("%w: stage record %d is %s", ErrInvalidState, rec.ID, rec.Status)
		}
		asset, err := tx.LockAsset(ctx, rec.AssetID)
		if err != nil {
			return err
		}

		rec.Status = StatusApproved
		rec.ApprovedBy = actor.ID
		if err := tx.ResolveStageRecord(ctx, rec); err != nil {
			return fmt.Errorf("approve stage record: %w", err)
		}

		from, to = asset.CurrentStage, asset.CurrentStage
		if next, ok := asset.CurrentStage.Next(); ok {
			if err := tx.SetAssetStage(ctx, asset.ID, next); err != nil {
				return fmt.Errorf("advance asset: %w", err)
			}
			to = next
		}
		entry, err = tx.AppendAudit(ctx, newEntry(ctx, actor, ActionApprove, ResourceStage, rec.ID,
			fmt.Sprintf("asset %d stage %s -> %s", asset.ID, from, to)))
		return err
	})
	if err != nil {
		return StageRecord{}, err
	}
	committed(ctx, actor, entry, map[string]any{"asset_id": rec.AssetID, "from": from, "to": to})
	obs.ObserveTransition(ActionApprove, string(rec.Stage))
	return rec, nil
}

// Reject closes a submitted record without moving the asset. The reason is
// stored exactly as given, including the empty string.
func (s *Service) Reject(ctx context.Context, actor auth.Actor, recordID int64, reason string) (StageRecord, error) {
	if err := authorize(actor, auth.ActionReviewStage); err != nil {
		return StageRecord{}, err
	}

	var (
		rec   StageRecord
		entry AuditEntry
	)
	err := s.store.WithinTx(ctx, func(ctx context.Context, tx Tx) error {
		var err error
		rec, err = tx.LockStageRecord(ctx, recordID)
		if err != nil {
			return err
		}
		if rec.Status != StatusSubmitted {
			return fmt.Errorf("%w: stage record %d is %s", ErrInvalidState, rec.ID, rec.Status)
		}
		rec.Status = StatusRejected
		rec.ApprovedBy = actor.ID
		rec.RejectReason = &reason
		if err := tx.ResolveStageRecord(ctx, rec); err != nil {
			return fmt.Errorf("reject stage record: %w", err)
		}
		entry, err = tx.AppendAudit(ctx, newEntry(ctx, actor, ActionReject, ResourceStage, rec.ID, reason))
		return err
	})
	if err != nil {
		return StageRecord{}, err
	}
	committed(ctx, actor, entry, map[string]any{"asset_id": rec.AssetID, "stage": rec.Stage})
	obs.ObserveTransition(ActionReject, string(rec.Stage))
	return rec, nil
}

// GetStageRecord returns a record whose asset is visible to actor.
func (s *Service) GetStageRecord(ctx context.Context, actor auth.Actor, id int64) (StageRecord, error) {
	if err := requireActor(actor); err != nil {
		return StageRecord{}, err
	}
	return s.visibleRecord(ctx, actor, id)
}

// ListStageRecords returns the submission history of a visible asset, oldest first.
func (s *Service) ListStageRecords(ctx context.Context, actor auth.Actor, assetID int64) ([]StageRecord, error) {
	if _, err := s.GetAsset(ctx, actor, assetID); err != nil {
		return nil, err
	}
	return s.store.ListStageRecords(ctx, assetID)
}

// ListPendingRecords is the review queue: every record awaiting a decision.
func (s *Service) ListPendingRecords(ctx context.Context, actor auth.Actor) ([]StageRecord, error) {
	if err := authorize(actor, auth.ActionReviewStage); err != nil {
		return nil, err
	}
	return s.store.ListPendingRecords(ctx)
}

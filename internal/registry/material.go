package registry

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"

	"datareg.org/internal/auth"
	"datareg.org/internal/blob"
	"datareg.org/internal/obs"
)

// HashContent returns the hex encoded SHA-256 digest of data.
func HashContent(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

// Upload is a fully received material file.
type Upload struct {
	FileName    string
	ContentType string
	Data        []byte
}

// SaveMaterial stores a new version of a file under a stage record. Versions
// count from 1 per (record, cleaned base name), so "a/b.pdf" and "b.pdf" share
// a sequence. Identical content is accepted as a new version.
func (s *Service) SaveMaterial(ctx context.Context, actor auth.Actor, recordID int64, up Upload) (Material, error) {
	if err := authorize(actor, auth.ActionUploadMaterial); err != nil {
		return Material{}, err
	}
	name, err := blob.CleanFilename(up.FileName)
	if err != nil {
		return Material{}, fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}
	digest := HashContent(up.Data)

	var (
		mat    Material
		entry  AuditEntry
		stored string
	)
	err = s.store.WithinTx(ctx, func(ctx context.Context, tx Tx) error {
		rec, err := tx.LockStageRecord(ctx, recordID)
		if err != nil {
			return err
		}
		asset, err := tx.GetAsset(ctx, rec.AssetID)
		if err != nil {
			return err
		}
		if hiddenAsset(actor, asset) != nil {
			return fmt.Errorf("%w: stage record %d", ErrNotFound, recordID)
		}
		latest, err := tx.LatestMaterialVersion(ctx, rec.ID, name)
		if err != nil {
			return fmt.Errorf("latest material version: %w", err)
		}
		version := latest + 1
		key := blob.MaterialKey(rec.ID, version, name)
		if err := s.blobs.Put(ctx, key, up.Data); err != nil {
			return fmt.Errorf("store material: %w", err)
		}
		stored = key

		mat, err = tx.CreateMaterial(ctx, Material{
			StageRecordID: rec.ID,
			FileName:      name,
			StorageKey:    key,
			Size:          int64(len(up.Data)),
			ContentType:   strings.TrimSpace(up.ContentType),
			SHA256:        digest,
			Version:       version,
			UploadedBy:    actor.ID,
		})
		if err != nil {
			return fmt.Errorf("create material: %w", err)
		}
		entry, err = tx.AppendAudit(ctx, newEntry(ctx, actor, ActionUpload, ResourceMaterial, mat.ID,
			fmt.Sprintf("%s v%d sha256=%s", mat.FileName, mat.Version, mat.SHA256)))
		return err
	})
	if err != nil {
		if stored != "" {
			if derr := s.blobs.Delete(context.WithoutCancel(ctx), stored); derr != nil {
				obs.Log("warn", "orphaned material blob", map[string]any{"key": stored, "error": derr.Error()})
			}
		}
		return Material{}, err
	}
	committed(ctx, actor, entry, map[string]any{
		"stage_record_id": mat.StageRecordID,
		"file_name":       mat.FileName,
		"version":         mat.Version,
		"sha256":          mat.SHA256,
	})
	obs.ObserveMaterial(mat.Size)
	return mat, nil
}

// ListMaterials returns every version stored under a visible record, newest first.
func (s *Service) ListMaterials(ctx context.Context, actor auth.Actor, recordID int64) ([]Material, error) {
	if err := requireActor(actor); err != nil {
		return nil, err
	}
	if _, err := s.visibleRecord(ctx, actor, recordID); err != nil {
		return nil, err
	}
	return s.store.ListMaterials(ctx, recordID)
}

// OpenMaterial loads the stored bytes and checks them against the recorded hash.
func (s *Service) OpenMaterial(ctx context.Context, actor auth.Actor, id int64) (Material, []byte, error) {
	if err := requireActor(actor); err != nil {
		return Material{}, nil, err
	}
	mat, err := s.store.GetMaterial(ctx, id)
	if err != nil {
		return Material{}, nil, err
	}
	if _, err := s.visibleRecord(ctx, actor, mat.StageRecordID); err != nil {
		return Material{}, nil, fmt.Errorf("%w: material %d", ErrNotFound, id)
	}
	data, err := s.blobs.Get(ctx, mat.StorageKey)
	if errors.Is(err, blob.ErrNotFound) {
		return Material{}, nil, fmt.Errorf("%w: content of material %d is missing", ErrIntegrity, id)
	}
	if err != nil {
		return Material{}, nil, fmt.Errorf("read material: %w", err)
	}
	if HashContent(data) != mat.SHA256 {
		return Material{}, nil, fmt.Errorf("%w: material %d", ErrIntegrity, id)
	}
	return mat, data, nil
}

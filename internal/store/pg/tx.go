package pg

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"datareg.org/internal/registry"
)

type pgTx struct {
	q queryer
}

var _ registry.Tx = (*pgTx)(nil)

func (t *pgTx) CreateOrganization(ctx context.Context, org registry.Organization) (registry.Organization, error) {
	row := t.q.QueryRowContext(ctx, `
		insert into organizations (name, org_type, credit_code, contact_person, contact_phone)
		values ($1, $2, $3, $4, $5)
		returning `+orgColumns,
		org.Name, org.OrgType, nullIfEmpty(org.CreditCode), org.ContactPerson, org.ContactPhone)
	created, err := scanOrganization(row)
	if err != nil {
		return registry.Organization{}, mapError(err)
	}
	return created, nil
}

func (t *pgTx) GetOrganization(ctx context.Context, id int64) (registry.Organization, error) {
	return getOrganization(ctx, t.q, id)
}

func (t *pgTx) CreateUser(ctx context.Context, u registry.User) (registry.User, error) {
	row := t.q.QueryRowContext(ctx, `
		insert into users (username, password_hash, real_name, role, organization_id, active)
		values ($1, $2, $3, $4, $5, $6)
		returning `+userColumns,
		u.Username, u.PasswordHash, u.RealName, string(u.Role), nullIfZero(u.OrganizationID), u.Active)
	created, err := scanUser(row)
	if err != nil {
		return registry.User{}, mapError(err)
	}
	return created, nil
}

func (t *pgTx) CreateAsset(ctx context.Context, a registry.Asset) (registry.Asset, error) {
	row := t.q.QueryRowContext(ctx, `
		insert into data_assets (name, description, organization_id, current_stage, asset_type, data_classification, created_by)
		values ($1, $2, $3, $4, $5, $6, $7)
		returning `+assetColumns,
		a.Name, a.Description, a.OrganizationID, string(a.CurrentStage), a.AssetType, a.DataClassification, a.CreatedBy)
	created, err := scanAsset(row)
	if err != nil {
		return registry.Asset{}, mapError(err)
	}
	return created, nil
}

func (t *pgTx) GetAsset(ctx context.Context, id int64) (registry.Asset, error) {
	return getAsset(ctx, t.q, id, false)
}

func (t *pgTx) LockAsset(ctx context.Context, id int64) (registry.Asset, error) {
	return getAsset(ctx, t.q, id, true)
}

func (t *pgTx) SetAssetStage(ctx context.Context, id int64, stage registry.Stage) error {
	res, err := t.q.ExecContext(ctx, `
		update data_assets set current_stage = $2, updated_at = now()
		where id = $1
	`, id, string(stage))
	if err != nil {
		return mapError(err)
	}
	return expectOneRow(res, "asset", id)
}

func (t *pgTx) PendingRecord(ctx context.Context, assetID int64, stage registry.Stage) (registry.StageRecord, bool, error) {
	row := t.q.QueryRowContext(ctx, `
		select `+recordColumns+`
		from stage_records
		where asset_id = $1 and stage = $2 and status = 'submitted'
		limit 1
	`, assetID, string(stage))
	r, err := scanRecord(row)
	if errors.Is(err, sql.ErrNoRows) {
		return registry.StageRecord{}, false, nil
	}
	if err != nil {
		return registry.StageRecord{}, false, err
	}
	return r, true, nil
}

func (t *pgTx) CreateStageRecord(ctx context.Context, r registry.StageRecord) (registry.StageRecord, error) {
	row := t.q.QueryRowContext(ctx, `
		insert into stage_records (asset_id, stage, status, submitted_by)
		values ($1, $2, $3, $4)
		returning `+recordColumns,
		r.AssetID, string(r.Stage), string(r.Status), nullIfZero(r.SubmittedBy))
	created, err := scanRecord(row)
	if err != nil {
		return registry.StageRecord{}, mapError(err)
	}
	return created, nil
}

func (t *pgTx) LockStageRecord(ctx context.Context, id int64) (registry.StageRecord, error) {
	return getRecord(ctx, t.q, id, true)
}

func (t *pgTx) ResolveStageRecord(ctx context.Context, r registry.StageRecord) error {
	var reason sql.NullString
	if r.RejectReason != nil {
		reason = sql.NullString{String: *r.RejectReason, Valid: true}
	}
	res, err := t.q.ExecContext(ctx, `
		update stage_records
		set status = $2, approved_by = $3, reject_reason = $4, updated_at = now()
		where id = $1
	`, r.ID, string(r.Status), nullIfZero(r.ApprovedBy), reason)
	if err != nil {
		return mapError(err)
	}
	return expectOneRow(res, "stage record", r.ID)
}

func (t *pgTx) LatestMaterialVersion(ctx context.Context, recordID int64, fileName string) (int, error) {
	var latest int
	err := t.q.QueryRowContext(ctx, `
		select coalesce(max(version), 0)
		from stage_materials
		where stage_record_id = $1 and file_name = $2
	`, recordID, fileName).Scan(&latest)
	return latest, err
}

func (t *pgTx) CreateMaterial(ctx context.Context, m registry.Material) (registry.Material, error) {
	row := t.q.QueryRowContext(ctx, `
		insert into stage_materials (stage_record_id, file_name, storage_key, file_size, content_type, hash_sha256, version, uploaded_by)
		values ($1, $2, $3, $4, $5, $6, $7, $8)
		returning `+materialColumns,
		m.StageRecordID, m.FileName, m.StorageKey, m.Size, m.ContentType, m.SHA256, m.Version, m.UploadedBy)
	created, err := scanMaterial(row)
	if err != nil {
		return registry.Material{}, mapError(err)
	}
	return created, nil
}

func (t *pgTx) AppendAudit(ctx context.Context, e registry.AuditEntry) (registry.AuditEntry, error) {
	row := t.q.QueryRowContext(ctx, `
		insert into audit_logs (user_id, username, action, resource_type, resource_id, detail, ip_address)
		values ($1, $2, $3, $4, $5, $6, $7)
		returning `+auditColumns,
		e.ActorID, e.ActorName, e.Action, e.ResourceType, nullIfZero(e.ResourceID), e.Detail, e.Origin)
	created, err := scanAudit(row)
	if err != nil {
		return registry.AuditEntry{}, fmt.Errorf("append audit: %w", mapError(err))
	}
	return created, nil
}

func expectOneRow(res sql.Result, what string, id int64) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n != 1 {
		return fmt.Errorf("%w: %s %d", registry.ErrNotFound, what, id)
	}
	return nil
}

func getOrganization(ctx context.Context, q queryer, id int64) (registry.Organization, error) {
	org, err := scanOrganization(q.QueryRowContext(ctx, `select `+orgColumns+` from organizations where id = $1`, id))
	if err != nil {
		return registry.Organization{}, notFound(err, "organization", id)
	}
	return org, nil
}

func getAsset(ctx context.Context, q queryer, id int64, lock bool) (registry.Asset, error) {
	query := `select ` + assetColumns + ` from data_assets where id = $1`
	if lock {
		query += ` for update`
	}
	a, err := scanAsset(q.QueryRowContext(ctx, query, id))
	if err != nil {
		return registry.Asset{}, notFound(err, "asset", id)
	}
	return a, nil
}

func getRecord(ctx context.Context, q queryer, id int64, lock bool) (registry.StageRecord, error) {
	query := `select ` + recordColumns + ` from stage_records where id = $1`
	if lock {
		query += ` for update`
	}
	r, err := scanRecord(q.QueryRowContext(ctx, query, id))
	if err != nil {
		return registry.StageRecord{}, notFound(err, "stage record", id)
	}
	return r, nil
}

package pg

import (
	"database/sql"

	"datareg.org/internal/auth"
	"datareg.org/internal/registry"
)

const (
	orgColumns      = `id, name, org_type, coalesce(credit_code, ''), contact_person, contact_phone, created_at`
	userColumns     = `id, username, password_hash, real_name, role, coalesce(organization_id, 0), active, created_at`
	assetColumns    = `id, name, description, organization_id, current_stage, asset_type, data_classification, created_by, created_at, updated_at`
	recordColumns   = `id, asset_id, stage, status, coalesce(submitted_by, 0), coalesce(approved_by, 0), reject_reason, created_at, updated_at`
	materialColumns = `id, stage_record_id, file_name, storage_key, file_size, content_type, hash_sha256, version, uploaded_by, created_at`
	auditColumns    = `id, user_id, username, action, resource_type, coalesce(resource_id, 0), detail, ip_address, created_at`
)

type scanner interface {
	Scan(dest ...any) error
}

func scanOrganization(row scanner) (registry.Organization, error) {
	var org registry.Organization
	err := row.Scan(&org.ID, &org.Name, &org.OrgType, &org.CreditCode, &org.ContactPerson, &org.ContactPhone, &org.CreatedAt)
	return org, err
}

func scanUser(row scanner) (registry.User, error) {
	var (
		u    registry.User
		role string
	)
	err := row.Scan(&u.ID, &u.Username, &u.PasswordHash, &u.RealName, &role, &u.OrganizationID, &u.Active, &u.CreatedAt)
	u.Role = auth.Role(role)
	return u, err
}

func scanAsset(row scanner) (registry.Asset, error) {
	var (
		a     registry.Asset
		stage string
	)
	err := row.Scan(&a.ID, &a.Name, &a.Description, &a.OrganizationID, &stage, &a.AssetType,
		&a.DataClassification, &a.CreatedBy, &a.CreatedAt, &a.UpdatedAt)
	a.CurrentStage = registry.Stage(stage)
	return a, err
}

func scanRecord(row scanner) (registry.StageRecord, error) {
	var (
		r             registry.StageRecord
		stage, status string
		reason        sql.NullString
	)
	err := row.Scan(&r.ID, &r.AssetID, &stage, &status, &r.SubmittedBy, &r.ApprovedBy, &reason, &r.CreatedAt, &r.UpdatedAt)
	r.Stage = registry.Stage(stage)
	r.Status = registry.Status(status)
	if reason.Valid {
		r.RejectReason = &reason.String
	}
	return r, err
}

func scanMaterial(row scanner) (registry.Material, error) {
	var m registry.Material
	err := row.Scan(&m.ID, &m.StageRecordID, &m.FileName, &m.StorageKey, &m.Size, &m.ContentType,
		&m.SHA256, &m.Version, &m.UploadedBy, &m.CreatedAt)
	return m, err
}

func scanAudit(row scanner) (registry.AuditEntry, error) {
	var e registry.AuditEntry
	err := row.Scan(&e.ID, &e.ActorID, &e.ActorName, &e.Action, &e.ResourceType, &e.ResourceID,
		&e.Detail, &e.Origin, &e.CreatedAt)
	return e, err
}

func collect[T any](rows *sql.Rows, scan func(scanner) (T, error)) ([]T, error) {
	defer rows.Close()
	out := []T{}
	for rows.Next() {
		v, err := scan(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

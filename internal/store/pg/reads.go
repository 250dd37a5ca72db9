package pg

import (
	"context"
	"fmt"
	"strings"

	"datareg.org/internal/registry"
)

func (s *Store) GetOrganization(ctx context.Context, id int64) (registry.Organization, error) {
	return getOrganization(ctx, s.db, id)
}

func (s *Store) ListOrganizations(ctx context.Context) ([]registry.Organization, error) {
	rows, err := s.db.QueryContext(ctx, `select `+orgColumns+` from organizations order by name, id`)
	if err != nil {
		return nil, err
	}
	return collect(rows, scanOrganization)
}

func (s *Store) GetUser(ctx context.Context, id int64) (registry.User, error) {
	u, err := scanUser(s.db.QueryRowContext(ctx, `select `+userColumns+` from users where id = $1`, id))
	if err != nil {
		return registry.User{}, notFound(err, "user", id)
	}
	return u, nil
}

func (s *Store) GetUserByUsername(ctx context.Context, username string) (registry.User, error) {
	u, err := scanUser(s.db.QueryRowContext(ctx, `select `+userColumns+` from users where username = $1`, username))
	if err != nil {
		return registry.User{}, notFound(err, "user", username)
	}
	return u, nil
}

func (s *Store) GetAsset(ctx context.Context, id int64) (registry.Asset, error) {
	return getAsset(ctx, s.db, id, false)
}

func (s *Store) ListAssets(ctx context.Context, f registry.AssetFilter) ([]registry.Asset, error) {
	if f.Scope.Empty() {
		return []registry.Asset{}, nil
	}
	var (
		where []string
		args  []any
	)
	if !f.Scope.All {
		args = append(args, f.Scope.OrganizationID)
		where = append(where, fmt.Sprintf("organization_id = $%d", len(args)))
	}
	if f.Stage != "" {
		args = append(args, string(f.Stage))
		where = append(where, fmt.Sprintf("current_stage = $%d", len(args)))
	}
	query := `select ` + assetColumns + ` from data_assets`
	if len(where) > 0 {
		query += ` where ` + strings.Join(where, " and ")
	}
	query += ` order by created_at desc, id desc`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	return collect(rows, scanAsset)
}

func (s *Store) GetStageRecord(ctx context.Context, id int64) (registry.StageRecord, error) {
	return getRecord(ctx, s.db, id, false)
}

func (s *Store) ListStageRecords(ctx context.Context, assetID int64) ([]registry.StageRecord, error) {
	rows, err := s.db.QueryContext(ctx, `
		select `+recordColumns+`
		from stage_records
		where asset_id = $1
		order by id
	`, assetID)
	if err != nil {
		return nil, err
	}
	return collect(rows, scanRecord)
}

func (s *Store) ListPendingRecords(ctx context.Context) ([]registry.StageRecord, error) {
	rows, err := s.db.QueryContext(ctx, `
		select `+recordColumns+`
		from stage_records
		where status = 'submitted'
		order by id
	`)
	if err != nil {
		return nil, err
	}
	return collect(rows, scanRecord)
}

func (s *Store) GetMaterial(ctx context.Context, id int64) (registry.Material, error) {
	m, err := scanMaterial(s.db.QueryRowContext(ctx, `select `+materialColumns+` from stage_materials where id = $1`, id))
	if err != nil {
		return registry.Material{}, notFound(err, "material", id)
	}
	return m, nil
}

func (s *Store) ListMaterials(ctx context.Context, recordID int64) ([]registry.Material, error) {
	rows, err := s.db.QueryContext(ctx, `
		select `+materialColumns+`
		from stage_materials
		where stage_record_id = $1
		order by id desc
	`, recordID)
	if err != nil {
		return nil, err
	}
	return collect(rows, scanMaterial)
}

func (s *Store) ListAudit(ctx context.Context, f registry.AuditFilter) ([]registry.AuditEntry, error) {
	f = f.Normalize()
	var (
		where []string
		args  []any
	)
	if f.Action != "" {
		args = append(args, f.Action)
		where = append(where, fmt.Sprintf("action = $%d", len(args)))
	}
	if f.ResourceType != "" {
		args = append(args, f.ResourceType)
		where = append(where, fmt.Sprintf("resource_type = $%d", len(args)))
	}
	if f.ActorID > 0 {
		args = append(args, f.ActorID)
		where = append(where, fmt.Sprintf("user_id = $%d", len(args)))
	}
	query := `select ` + auditColumns + ` from audit_logs`
	if len(where) > 0 {
		query += ` where ` + strings.Join(where, " and ")
	}
	args = append(args, f.Limit, f.Offset)
	query += fmt.Sprintf(` order by id desc limit $%d offset $%d`, len(args)-1, len(args))

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	return collect(rows, scanAudit)
}

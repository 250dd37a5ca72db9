package registry

import (
	"context"

	"datareg.org/internal/auth"
)

const (
	DefaultAuditLimit = 50
	MaxAuditLimit     = 200
)

// AssetFilter narrows ListAssets. A zero Scope matches nothing.
type AssetFilter struct {
	Scope auth.Scope
	Stage Stage
}

// AuditFilter narrows ListAudit. Zero values mean "any".
type AuditFilter struct {
	Action       string
	ResourceType string
	ActorID      int64
	Limit        int
	Offset       int
}

// Normalize applies the default and maximum page size.
func (f AuditFilter) Normalize() AuditFilter {
	if f.Limit <= 0 {
		f.Limit = DefaultAuditLimit
	}
	if f.Limit > MaxAuditLimit {
		f.Limit = MaxAuditLimit
	}
	if f.Offset < 0 {
		f.Offset = 0
	}
	return f
}

// Tx is the unit of work handed to WithinTx. Everything written through a Tx
// becomes visible together on commit or not at all. Audit entries and
// materials can only be appended.
type Tx interface {
	CreateOrganization(ctx context.Context, org Organization) (Organization, error)
	GetOrganization(ctx context.Context, id int64) (Organization, error)
	CreateUser(ctx context.Context, u User) (User, error)

	CreateAsset(ctx context.Context, a Asset) (Asset, error)
	GetAsset(ctx context.Context, id int64) (Asset, error)
	// LockAsset reads the asset and holds it exclusively until the unit of work ends.
	LockAsset(ctx context.Context, id int64) (Asset, error)
	SetAssetStage(ctx context.Context, id int64, stage Stage) error

	// PendingRecord returns the submitted record for (asset, stage), if any.
	PendingRecord(ctx context.Context, assetID int64, stage Stage) (StageRecord, bool, error)
	CreateStageRecord(ctx context.Context, r StageRecord) (StageRecord, error)
	// LockStageRecord reads the record and holds it exclusively until the unit of work ends.
	LockStageRecord(ctx context.Context, id int64) (StageRecord, error)
	ResolveStageRecord(ctx context.Context, r StageRecord) error

	LatestMaterialVersion(ctx context.Context, recordID int64, fileName string) (int, error)
	CreateMaterial(ctx context.Context, m Material) (Material, error)

	AppendAudit(ctx context.Context, e AuditEntry) (AuditEntry, error)
}

// Store is the durable backend. Reads outside a unit of work see committed state.
type Store interface {
	WithinTx(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error

	GetOrganization(ctx context.Context, id int64) (Organization, error)
	ListOrganizations(ctx context.Context) ([]Organization, error)
	GetUser(ctx context.Context, id int64) (User, error)
	GetUserByUsername(ctx context.Context, username string) (User, error)

	GetAsset(ctx context.Context, id int64) (Asset, error)
	ListAssets(ctx context.Context, f AssetFilter) ([]Asset, error)

	GetStageRecord(ctx context.Context, id int64) (StageRecord, error)
	ListStageRecords(ctx context.Context, assetID int64) ([]StageRecord, error)
	ListPendingRecords(ctx context.Context) ([]StageRecord, error)

	GetMaterial(ctx context.Context, id int64) (Material, error)
	ListMaterials(ctx context.Context, recordID int64) ([]Material, error)

	ListAudit(ctx context.Context, f AuditFilter) ([]AuditEntry, error)
	Ping(ctx context.Context) error
}

package registry

import (
	"time"

	"datareg.org/internal/auth"
)

type Organization struct {
	ID            int64     `json:"id"`
	Name          string    `json:"name"`
	OrgType       string    `json:"org_type"`
	CreditCode    string    `json:"credit_code"`
	ContactPerson string    `json:"contact_person,omitempty"`
	ContactPhone  string    `json:"contact_phone,omitempty"`
	CreatedAt     time.Time `json:"created_at"`
}

type User struct {
	ID             int64     `json:"id"`
	Username       string    `json:"username"`
	PasswordHash   string    `json:"-"`
	RealName       string    `json:"real_name,omitempty"`
	Role           auth.Role `json:"role"`
	OrganizationID int64     `json:"organization_id,omitempty"`
	Active         bool      `json:"active"`
	CreatedAt      time.Time `json:"created_at"`
}

// Actor converts the stored user into the identity handed to the policy.
func (u User) Actor() auth.Actor {
	return auth.Actor{
		ID:             u.ID,
		Username:       u.Username,
		Role:           u.Role,
		OrganizationID: u.OrganizationID,
	}
}

type Asset struct {
	ID                 int64     `json:"id"`
	Name               string    `json:"name"`
	Description        string    `json:"description,omitempty"`
	OrganizationID     int64     `json:"organization_id"`
	CurrentStage       Stage     `json:"current_stage"`
	AssetType          string    `json:"asset_type,omitempty"`
	DataClassification string    `json:"data_classification,omitempty"`
	CreatedBy          int64     `json:"created_by"`
	CreatedAt          time.Time `json:"created_at"`
	UpdatedAt          time.Time `json:"updated_at"`
}

// StageRecord is one submission-for-approval attempt. Stage is a snapshot of
// the asset's stage when the record was submitted.
type StageRecord struct {
	ID           int64     `json:"id"`
	AssetID      int64     `json:"asset_id"`
	Stage        Stage     `json:"stage"`
	Status       Status    `json:"status"`
	SubmittedBy  int64     `json:"submitted_by"`
	ApprovedBy   int64     `json:"approved_by,omitempty"`
	RejectReason *string   `json:"reject_reason,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

type Material struct {
	ID            int64     `json:"id"`
	StageRecordID int64     `json:"stage_record_id"`
	FileName      string    `json:"file_name"`
	StorageKey    string    `json:"-"`
	Size          int64     `json:"file_size"`
	ContentType   string    `json:"file_type,omitempty"`
	SHA256        string    `json:"hash_sha256"`
	Version       int       `json:"version"`
	UploadedBy    int64     `json:"uploaded_by"`
	CreatedAt     time.Time `json:"created_at"`
}

// AuditEntry is an append-only log row. ActorName is a snapshot taken when the
// action happened and is not updated if the user later changes.
type AuditEntry struct {
	ID           int64     `json:"id"`
	ActorID      int64     `json:"user_id"`
	ActorName    string    `json:"username"`
	Action       string    `json:"action"`
	ResourceType string    `json:"resource_type"`
	ResourceID   int64     `json:"resource_id,omitempty"`
	Detail       string    `json:"detail,omitempty"`
	Origin       string    `json:"ip_address,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
}

// Audit action verbs.
const (
	ActionCreate   = "create"
	ActionRegister = "register"
	ActionSubmit   = "submit"
	ActionApprove  = "approve"
	ActionReject   = "reject"
	ActionUpload   = "upload"
)

// Audit resource types.
const (
	ResourceOrganization = "organization"
	ResourceUser         = "user"
	ResourceAsset        = "asset"
	ResourceStage        = "stage"
	ResourceMaterial     = "material"
)

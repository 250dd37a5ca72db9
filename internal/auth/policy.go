package auth

// Action identifies a capability checked by the access policy.
type Action string

const (
	ActionCreateAsset         Action = "asset.create"
	ActionReadAnyAsset        Action = "asset.read.any"
	ActionReadOwnAsset        Action = "asset.read.own"
	ActionSubmitStage         Action = "stage.submit"
	ActionReviewStage         Action = "stage.review"
	ActionUploadMaterial      Action = "material.upload"
	ActionViewAudit           Action = "audit.view"
	ActionManageOrganizations Action = "organization.manage"
)

// rolePermissions is the complete role -> action matrix. Anything absent is denied.
var rolePermissions = map[Role][]Action{
	RoleDataHolder: {
		ActionCreateAsset, ActionReadOwnAsset, ActionSubmitStage, ActionUploadMaterial,
	},
	RoleRegistryCenter: {
		ActionReadAnyAsset, ActionSubmitStage, ActionReviewStage, ActionUploadMaterial, ActionViewAudit,
	},
	RoleAssessor: {
		ActionReadAnyAsset, ActionSubmitStage, ActionUploadMaterial,
	},
	RoleCompliance: {
		ActionReadAnyAsset, ActionSubmitStage, ActionUploadMaterial,
	},
	RoleRegulator: {
		ActionReadAnyAsset, ActionSubmitStage, ActionUploadMaterial, ActionViewAudit,
	},
	RoleAdmin: {
		ActionCreateAsset, ActionReadAnyAsset, ActionSubmitStage, ActionReviewStage,
		ActionUploadMaterial, ActionViewAudit, ActionManageOrganizations,
	},
}

var permissionSets = func() map[Role]map[Action]struct{} {
	sets := make(map[Role]map[Action]struct{}, len(rolePermissions))
	for role, actions := range rolePermissions {
		set := make(map[Action]struct{}, len(actions))
		for _, a := range actions {
			set[a] = struct{}{}
		}
		sets[role] = set
	}
	return sets
}()

// Allowed reports whether role carries the capability for action.
func Allowed(role Role, action Action) bool {
	_, ok := permissionSets[role][action]
	return ok
}

// Permissions lists the actions granted to role.
func Permissions(role Role) []Action {
	actions := rolePermissions[role]
	out := make([]Action, len(actions))
	copy(out, actions)
	return out
}

// CanSeeOrganization applies the visibility rule to a resource owned by orgID.
func CanSeeOrganization(a Actor, orgID int64) bool {
	if Allowed(a.Role, ActionReadAnyAsset) {
		return true
	}
	if Allowed(a.Role, ActionReadOwnAsset) {
		return a.HasOrganization() && a.OrganizationID == orgID
	}
	return false
}

// Scope describes which owners an actor may list resources for.
type Scope struct {
	All            bool
	OrganizationID int64
}

// Empty reports whether the scope matches nothing.
func (s Scope) Empty() bool {
	return !s.All && s.OrganizationID <= 0
}

// VisibilityScope returns the listing filter equivalent to CanSeeOrganization.
func VisibilityScope(a Actor) Scope {
	switch {
	case Allowed(a.Role, ActionReadAnyAsset):
		return Scope{All: true}
	case Allowed(a.Role, ActionReadOwnAsset) && a.HasOrganization():
		return Scope{OrganizationID: a.OrganizationID}
	default:
		return Scope{}
	}
}

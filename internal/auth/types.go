package auth

import (
	"fmt"
	"strings"
)

// Role is one of the six fixed capability profiles.
type Role string

const (
	RoleDataHolder     Role = "data_holder"
	RoleRegistryCenter Role = "registry_center"
	RoleAssessor       Role = "assessor"
	RoleCompliance     Role = "compliance"
	RoleRegulator      Role = "regulator"
	RoleAdmin          Role = "admin"
)

var allRoles = []Role{
	RoleDataHolder,
	RoleRegistryCenter,
	RoleAssessor,
	RoleCompliance,
	RoleRegulator,
	RoleAdmin,
}

// Roles returns every known role in declaration order.
func Roles() []Role {
	out := make([]Role, len(allRoles))
	copy(out, allRoles)
	return out
}

// Valid reports whether r is one of the known roles.
func (r Role) Valid() bool {
	for _, known := range allRoles {
		if r == known {
			return true
		}
	}
	return false
}

// ParseRole normalises v and validates it against the known roles.
func ParseRole(v string) (Role, error) {
	r := Role(strings.TrimSpace(strings.ToLower(v)))
	if !r.Valid() {
		return "", fmt.Errorf("%w: unknown role %q", ErrInvalidRole, v)
	}
	return r, nil
}

// Actor is an authenticated caller as supplied by the identity layer.
type Actor struct {
	ID             int64  `json:"id"`
	Username       string `json:"username"`
	Role           Role   `json:"role"`
	OrganizationID int64  `json:"organization_id,omitempty"`
}

// HasOrganization reports whether the actor belongs to an organization.
func (a Actor) HasOrganization() bool {
	return a.OrganizationID > 0
}

// DisplayName is the name recorded in audit entries.
func (a Actor) DisplayName() string {
	if name := strings.TrimSpace(a.Username); name != "" {
		return name
	}
	return fmt.Sprintf("user-%d", a.ID)
}

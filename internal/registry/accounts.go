package registry

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"datareg.org/internal/auth"
)

type NewOrganization struct {
	Name          string `json:"name"`
	OrgType       string `json:"org_type"`
	CreditCode    string `json:"credit_code"`
	ContactPerson string `json:"contact_person"`
	ContactPhone  string `json:"contact_phone"`
}

// CreateOrganization registers an organization. The credit code, when given,
// must be unique.
func (s *Service) CreateOrganization(ctx context.Context, actor auth.Actor, in NewOrganization) (Organization, error) {
	if err := authorize(actor, auth.ActionManageOrganizations); err != nil {
		return Organization{}, err
	}
	org := Organization{
		Name:          strings.TrimSpace(in.Name),
		OrgType:       strings.TrimSpace(in.OrgType),
		CreditCode:    strings.TrimSpace(in.CreditCode),
		ContactPerson: strings.TrimSpace(in.ContactPerson),
		ContactPhone:  strings.TrimSpace(in.ContactPhone),
	}
	if org.Name == "" || org.OrgType == "" {
		return Organization{}, fmt.Errorf("%w: name and org_type are required", ErrInvalidInput)
	}

	var entry AuditEntry
	err := s.store.WithinTx(ctx, func(ctx context.Context, tx Tx) error {
		var err error
		org, err = tx.CreateOrganization(ctx, org)
		if err != nil {
			return fmt.Errorf("create organization: %w", err)
		}
		entry, err = tx.AppendAudit(ctx, newEntry(ctx, actor, ActionCreate, ResourceOrganization, org.ID, "created organization "+org.Name))
		return err
	})
	if err != nil {
		return Organization{}, err
	}
	committed(ctx, actor, entry, nil)
	return org, nil
}

func (s *Service) ListOrganizations(ctx context.Context) ([]Organization, error) {
	return s.store.ListOrganizations(ctx)
}

type NewUser struct {
	Username       string    `json:"username"`
	Password       string    `json:"password"`
	RealName       string    `json:"real_name"`
	Role           auth.Role `json:"role"`
	OrganizationID int64     `json:"org_id"`
}

// RegisterUser creates an account. The admin role cannot be self-assigned.
func (s *Service) RegisterUser(ctx context.Context, in NewUser) (User, error) {
	if role, err := auth.ParseRole(string(in.Role)); err == nil && role == auth.RoleAdmin {
		return User{}, fmt.Errorf("%w: admin accounts cannot self-register", ErrForbidden)
	}
	u, err := buildUser(in)
	if err != nil {
		return User{}, err
	}
	return s.createUser(ctx, u)
}

// ProvisionUser creates an account with any role, including admin. It backs
// the seed command and is not reachable over HTTP.
func (s *Service) ProvisionUser(ctx context.Context, in NewUser) (User, error) {
	u, err := buildUser(in)
	if err != nil {
		return User{}, err
	}
	return s.createUser(ctx, u)
}

func buildUser(in NewUser) (User, error) {
	username := strings.TrimSpace(in.Username)
	if username == "" || in.Password == "" {
		return User{}, fmt.Errorf("%w: username and password are required", ErrInvalidInput)
	}
	role, err := auth.ParseRole(string(in.Role))
	if err != nil {
		return User{}, fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}
	if in.OrganizationID < 0 {
		return User{}, fmt.Errorf("%w: invalid organization id", ErrInvalidInput)
	}
	hash, err := auth.HashPassword(in.Password)
	if err != nil {
		return User{}, fmt.Errorf("hash password: %w", err)
	}
	return User{
		Username:       username,
		PasswordHash:   hash,
		RealName:       strings.TrimSpace(in.RealName),
		Role:           role,
		OrganizationID: in.OrganizationID,
		Active:         true,
	}, nil
}

func (s *Service) createUser(ctx context.Context, u User) (User, error) {
	var entry AuditEntry
	err := s.store.WithinTx(ctx, func(ctx context.Context, tx Tx) error {
		if u.OrganizationID > 0 {
			if _, err := tx.GetOrganization(ctx, u.OrganizationID); err != nil {
				return err
			}
		}
		var err error
		u, err = tx.CreateUser(ctx, u)
		if err != nil {
			return fmt.Errorf("create user: %w", err)
		}
		entry, err = tx.AppendAudit(ctx, newEntry(ctx, u.Actor(), ActionRegister, ResourceUser, u.ID, "registered as "+string(u.Role)))
		return err
	})
	if err != nil {
		return User{}, err
	}
	committed(ctx, u.Actor(), entry, map[string]any{"role": u.Role})
	return u, nil
}

// Authenticate checks a username and password. Unknown users, inactive users
// and wrong passwords all yield ErrInvalidCredentials.
func (s *Service) Authenticate(ctx context.Context, username, password string) (User, error) {
	u, err := s.store.GetUserByUsername(ctx, strings.TrimSpace(username))
	if errors.Is(err, ErrNotFound) {
		return User{}, ErrInvalidCredentials
	}
	if err != nil {
		return User{}, err
	}
	if !u.Active {
		return User{}, ErrInvalidCredentials
	}
	if err := auth.VerifyPassword(u.PasswordHash, password); err != nil {
		if errors.Is(err, auth.ErrPasswordMismatch) {
			return User{}, ErrInvalidCredentials
		}
		return User{}, err
	}
	return u, nil
}

// ResolveActor loads the current identity behind a token subject.
func (s *Service) ResolveActor(ctx context.Context, userID int64) (auth.Actor, error) {
	u, err := s.store.GetUser(ctx, userID)
	if err != nil {
		return auth.Actor{}, err
	}
	if !u.Active {
		return auth.Actor{}, fmt.Errorf("%w: user %d is inactive", ErrNotFound, userID)
	}
	return u.Actor(), nil
}

// User returns the stored user record.
func (s *Service) User(ctx context.Context, id int64) (User, error) {
	return s.store.GetUser(ctx, id)
}

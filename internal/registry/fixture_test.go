package registry

import (
	"context"
	"testing"

	"datareg.org/internal/auth"
	"datareg.org/internal/blob"
)

type fixture struct {
	svc   *Service
	store *Memory
	blobs *blob.Memory

	org, otherOrg Organization

	admin, registry, holder, otherHolder, assessor, regulator auth.Actor
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{store: NewMemory(), blobs: blob.NewMemory()}
	svc, err := NewService(f.store, f.blobs)
	if err != nil {
		t.Fatalf("NewService: %v", err)
	}
	f.svc = svc

	f.org = f.seedOrg(t, "Acme Data", "91110000000000001X")
	f.otherOrg = f.seedOrg(t, "Globex", "91110000000000002Y")

	f.admin = f.seedUser(t, "admin", auth.RoleAdmin, 0)
	f.registry = f.seedUser(t, "registry", auth.RoleRegistryCenter, 0)
	f.holder = f.seedUser(t, "holder", auth.RoleDataHolder, f.org.ID)
	f.otherHolder = f.seedUser(t, "other-holder", auth.RoleDataHolder, f.otherOrg.ID)
	f.assessor = f.seedUser(t, "assessor", auth.RoleAssessor, 0)
	f.regulator = f.seedUser(t, "regulator", auth.RoleRegulator, 0)
	return f
}

func (f *fixture) seedOrg(t *testing.T, name, code string) Organization {
	t.Helper()
	var org Organization
	err := f.store.WithinTx(context.Background(), func(ctx context.Context, tx Tx) error {
		var err error
		org, err = tx.CreateOrganization(ctx, Organization{Name: name, OrgType: "enterprise", CreditCode: code})
		return err
	})
	if err != nil {
		t.Fatalf("seed organization: %v", err)
	}
	return org
}

// seedUser skips bcrypt so fixtures stay fast.
func (f *fixture) seedUser(t *testing.T, username string, role auth.Role, orgID int64) auth.Actor {
	t.Helper()
	var u User
	err := f.store.WithinTx(context.Background(), func(ctx context.Context, tx Tx) error {
		var err error
		u, err = tx.CreateUser(ctx, User{Username: username, PasswordHash: "-", Role: role, OrganizationID: orgID, Active: true})
		return err
	})
	if err != nil {
		t.Fatalf("seed user: %v", err)
	}
	return u.Actor()
}

func (f *fixture) createAsset(t *testing.T, actor auth.Actor, name string) Asset {
	t.Helper()
	a, err := f.svc.CreateAsset(context.Background(), actor, NewAsset{Name: name})
	if err != nil {
		t.Fatalf("CreateAsset: %v", err)
	}
	return a
}

func (f *fixture) asset(t *testing.T, id int64) Asset {
	t.Helper()
	a, err := f.store.GetAsset(context.Background(), id)
	if err != nil {
		t.Fatalf("GetAsset: %v", err)
	}
	return a
}

func (f *fixture) auditLen() int {
	f.store.mu.RLock()
	defer f.store.mu.RUnlock()
	return len(f.store.audit)
}

func (f *fixture) lastAudit(t *testing.T) AuditEntry {
	t.Helper()
	f.store.mu.RLock()
	defer f.store.mu.RUnlock()
	if len(f.store.audit) == 0 {
		t.Fatal("audit log is empty")
	}
	return f.store.audit[len(f.store.audit)-1]
}

var scopeAll = auth.Scope{All: true}

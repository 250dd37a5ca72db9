package registry

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestMemoryRollbackDiscardsWrites(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	boom := errors.New("boom")

	err := f.store.WithinTx(ctx, func(ctx context.Context, tx Tx) error {
		a, err := tx.CreateAsset(ctx, Asset{Name: "ghost", OrganizationID: f.org.ID, CurrentStage: InitialStage})
		if err != nil {
			return err
		}
		if _, err := tx.AppendAudit(ctx, AuditEntry{Action: ActionCreate, ResourceType: ResourceAsset, ResourceID: a.ID}); err != nil {
			return err
		}
		return boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("expected boom, got %v", err)
	}
	if f.auditLen() != 0 {
		t.Fatalf("rolled back audit entry persisted")
	}
	assets, _ := f.store.ListAssets(ctx, AssetFilter{Scope: scopeAll})
	if len(assets) != 0 {
		t.Fatalf("rolled back asset persisted")
	}
}

func TestMemoryCreateAssetRequiresOrganization(t *testing.T) {
	m := NewMemory()
	err := m.WithinTx(context.Background(), func(ctx context.Context, tx Tx) error {
		_, err := tx.CreateAsset(ctx, Asset{Name: "x", OrganizationID: 42})
		return err
	})
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestMemoryDifferentAssetsDoNotBlock(t *testing.T) {
	f := newFixture(t)
	a := f.createAsset(t, f.holder, "a")
	b := f.createAsset(t, f.holder, "b")

	locked := make(chan struct{})
	release := make(chan struct{})
	go func() {
		_ = f.store.WithinTx(context.Background(), func(ctx context.Context, tx Tx) error {
			if _, err := tx.LockAsset(ctx, a.ID); err != nil {
				return err
			}
			close(locked)
			<-release
			return nil
		})
	}()
	<-locked
	defer close(release)

	done := make(chan error, 1)
	go func() {
		_, err := f.svc.Submit(context.Background(), f.holder, b.ID)
		done <- err
	}()
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("submit on other asset: %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("submit on an unrelated asset blocked")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	if _, err := f.svc.Submit(ctx, f.holder, a.ID); !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected the locked asset to wait until the deadline, got %v", err)
	}
}

func TestMemorySetStageRequiresLock(t *testing.T) {
	f := newFixture(t)
	a := f.createAsset(t, f.holder, "unlocked")
	err := f.store.WithinTx(context.Background(), func(ctx context.Context, tx Tx) error {
		return tx.SetAssetStage(ctx, a.ID, StageAssetInventory)
	})
	if err == nil {
		t.Fatal("expected error when changing an unlocked asset")
	}
	if f.asset(t, a.ID).CurrentStage != StageResourceInventory {
		t.Fatal("stage changed without a lock")
	}
}

func TestMemoryUniqueConstraints(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	err := f.store.WithinTx(ctx, func(ctx context.Context, tx Tx) error {
		_, err := tx.CreateUser(ctx, User{Username: "holder", Role: "assessor"})
		return err
	})
	if !errors.Is(err, ErrConflict) {
		t.Fatalf("duplicate username: expected ErrConflict, got %v", err)
	}
	err = f.store.WithinTx(ctx, func(ctx context.Context, tx Tx) error {
		_, err := tx.CreateOrganization(ctx, Organization{Name: "dup", CreditCode: f.org.CreditCode})
		return err
	})
	if !errors.Is(err, ErrConflict) {
		t.Fatalf("duplicate credit code: expected ErrConflict, got %v", err)
	}
}

func TestMemoryAuditListsByIDAcrossLateCommits(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()

	var outer, inner AuditEntry
	err := m.WithinTx(ctx, func(ctx context.Context, tx Tx) error {
		var err error
		outer, err = tx.AppendAudit(ctx, AuditEntry{Action: ActionCreate, ResourceType: ResourceAsset, ResourceID: 1})
		if err != nil {
			return err
		}
		// a second unit of work starts later but commits first
		return m.WithinTx(ctx, func(ctx context.Context, tx Tx) error {
			inner, err = tx.AppendAudit(ctx, AuditEntry{Action: ActionApprove, ResourceType: ResourceStage, ResourceID: 2})
			return err
		})
	})
	if err != nil {
		t.Fatalf("WithinTx: %v", err)
	}

	got, err := m.ListAudit(ctx, AuditFilter{})
	if err != nil {
		t.Fatalf("ListAudit: %v", err)
	}
	if len(got) != 2 || got[0].ID != inner.ID || got[1].ID != outer.ID || inner.ID < outer.ID {
		t.Fatalf("expected newest id first, got %+v", got)
	}
}

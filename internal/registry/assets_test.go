package registry

import (
	"context"
	"errors"
	"testing"

	"datareg.org/internal/auth"
)

func TestCreateAssetChecks(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	before := f.auditLen()
	if _, err := f.svc.CreateAsset(ctx, f.assessor, NewAsset{Name: "x"}); !errors.Is(err, ErrForbidden) {
		t.Fatalf("assessor: expected ErrForbidden, got %v", err)
	}
	if _, err := f.svc.CreateAsset(ctx, f.registry, NewAsset{Name: "x"}); !errors.Is(err, ErrForbidden) {
		t.Fatalf("registry: expected ErrForbidden, got %v", err)
	}
	// admin is allowed by role but has no organization
	if _, err := f.svc.CreateAsset(ctx, f.admin, NewAsset{Name: "x"}); !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("admin without org: expected ErrInvalidInput, got %v", err)
	}
	if _, err := f.svc.CreateAsset(ctx, f.holder, NewAsset{Name: "  "}); !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("blank name: expected ErrInvalidInput, got %v", err)
	}
	if _, err := f.svc.CreateAsset(ctx, auth.Actor{}, NewAsset{Name: "x"}); !errors.Is(err, ErrForbidden) {
		t.Fatalf("anonymous: expected ErrForbidden, got %v", err)
	}
	if f.auditLen() != before {
		t.Fatalf("rejected creations wrote audit entries")
	}

	a, err := f.svc.CreateAsset(ctx, f.holder, NewAsset{
		Name:               " Sales events ",
		Description:        "clickstream",
		AssetType:          "dataset",
		DataClassification: "internal",
	})
	if err != nil {
		t.Fatalf("CreateAsset: %v", err)
	}
	if a.Name != "Sales events" || a.OrganizationID != f.org.ID || a.CreatedBy != f.holder.ID {
		t.Fatalf("unexpected asset %+v", a)
	}
	if a.CurrentStage != StageResourceInventory {
		t.Fatalf("asset starts at %s", a.CurrentStage)
	}
}

func TestAssetVisibility(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	mine := f.createAsset(t, f.holder, "mine")
	theirs := f.createAsset(t, f.otherHolder, "theirs")

	if _, err := f.svc.GetAsset(ctx, f.holder, mine.ID); err != nil {
		t.Fatalf("own asset: %v", err)
	}
	_, err := f.svc.GetAsset(ctx, f.holder, theirs.ID)
	if !errors.Is(err, ErrNotFound) || errors.Is(err, ErrForbidden) {
		t.Fatalf("foreign asset must look missing, got %v", err)
	}
	for _, actor := range []auth.Actor{f.admin, f.registry, f.assessor, f.regulator} {
		if _, err := f.svc.GetAsset(ctx, actor, theirs.ID); err != nil {
			t.Fatalf("%s should see every asset: %v", actor.Role, err)
		}
	}

	list, err := f.svc.ListAssets(ctx, f.holder, "")
	if err != nil || len(list) != 1 || list[0].ID != mine.ID {
		t.Fatalf("holder list: %+v (%v)", list, err)
	}
	all, err := f.svc.ListAssets(ctx, f.regulator, "")
	if err != nil || len(all) != 2 {
		t.Fatalf("regulator list: %+v (%v)", all, err)
	}
	if all[0].ID != theirs.ID {
		t.Fatalf("expected newest first, got %d", all[0].ID)
	}

	orphan := f.seedUser(t, "orphan", auth.RoleDataHolder, 0)
	none, err := f.svc.ListAssets(ctx, orphan, "")
	if err != nil || len(none) != 0 {
		t.Fatalf("holder without org should see nothing: %+v (%v)", none, err)
	}
}

func TestListAssetsByStage(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	moved := f.createAsset(t, f.holder, "moved")
	f.createAsset(t, f.holder, "stayed")

	rec, err := f.svc.Submit(ctx, f.holder, moved.ID)
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	if _, err := f.svc.Approve(ctx, f.registry, rec.ID); err != nil {
		t.Fatalf("approve: %v", err)
	}

	got, err := f.svc.ListAssets(ctx, f.holder, StageAssetInventory)
	if err != nil || len(got) != 1 || got[0].ID != moved.ID {
		t.Fatalf("stage filter: %+v (%v)", got, err)
	}
	if _, err := f.svc.ListAssets(ctx, f.holder, Stage("archived")); !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput for unknown stage, got %v", err)
	}
}

func TestStageRecordHistoryIsScoped(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	asset := f.createAsset(t, f.holder, "history")
	first, err := f.svc.Submit(ctx, f.holder, asset.ID)
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	if _, err := f.svc.Reject(ctx, f.registry, first.ID, "no"); err != nil {
		t.Fatalf("reject: %v", err)
	}
	second, err := f.svc.Submit(ctx, f.holder, asset.ID)
	if err != nil {
		t.Fatalf("submit: %v", err)
	}

	history, err := f.svc.ListStageRecords(ctx, f.holder, asset.ID)
	if err != nil {
		t.Fatalf("ListStageRecords: %v", err)
	}
	if len(history) != 2 || history[0].ID != first.ID || history[1].ID != second.ID {
		t.Fatalf("unexpected history %+v", history)
	}
	if _, err := f.svc.ListStageRecords(ctx, f.otherHolder, asset.ID); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound for foreign history, got %v", err)
	}
	if _, err := f.svc.GetStageRecord(ctx, f.otherHolder, first.ID); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound for foreign record, got %v", err)
	}
}

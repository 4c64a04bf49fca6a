package groups

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/biocompute/bcodb/pkg/storage"
)

func seedUser(t *testing.T, db *sql.DB, username string) {
	t.Helper()
	_, err := db.ExecContext(context.Background(),
		"INSERT INTO users (username, created_at) VALUES ($1, $2)", username, time.Now())
	if err != nil {
		t.Fatalf("failed to seed user %s: %v", username, err)
	}
}

func TestService_GroupCRUD(t *testing.T) {
	db := storage.OpenTestDB(t)
	ctx := context.Background()
	svc := NewService(db)

	group := &Group{Name: "bco_drafters", Description: "draft writers"}
	if err := svc.CreateGroup(ctx, group); err != nil {
		t.Fatalf("CreateGroup failed: %v", err)
	}

	if err := svc.CreateGroup(ctx, &Group{Name: "bco_drafters"}); !errors.Is(err, ErrDuplicate) {
		t.Errorf("expected ErrDuplicate, got %v", err)
	}

	got, err := svc.GetGroup(ctx, "bco_drafters")
	if err != nil {
		t.Fatalf("GetGroup failed: %v", err)
	}
	if got.Description != "draft writers" {
		t.Errorf("Description = %q, want %q", got.Description, "draft writers")
	}

	list, err := svc.ListGroups(ctx)
	if err != nil {
		t.Fatalf("ListGroups failed: %v", err)
	}
	if len(list) != 1 {
		t.Fatalf("expected 1 group, got %d", len(list))
	}

	if err := svc.DeleteGroup(ctx, "bco_drafters"); err != nil {
		t.Fatalf("DeleteGroup failed: %v", err)
	}
	if _, err := svc.GetGroup(ctx, "bco_drafters"); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound after delete, got %v", err)
	}
}

func TestService_Membership(t *testing.T) {
	db := storage.OpenTestDB(t)
	ctx := context.Background()
	svc := NewService(db)

	seedUser(t, db, "alice")
	seedUser(t, db, "bob")
	for _, name := range []string{"bco_drafters", "bco_publishers"} {
		if err := svc.CreateGroup(ctx, &Group{Name: name}); err != nil {
			t.Fatalf("CreateGroup(%s) failed: %v", name, err)
		}
	}

	if err := svc.AddMember(ctx, "bco_drafters", "alice", true); err != nil {
		t.Fatalf("AddMember failed: %v", err)
	}
	if err := svc.AddMember(ctx, "bco_drafters", "bob", false); err != nil {
		t.Fatalf("AddMember failed: %v", err)
	}
	if err := svc.AddMember(ctx, "bco_publishers", "alice", false); err != nil {
		t.Fatalf("AddMember failed: %v", err)
	}

	members, err := svc.ListMembers(ctx, "bco_drafters")
	if err != nil {
		t.Fatalf("ListMembers failed: %v", err)
	}
	if len(members) != 2 {
		t.Fatalf("expected 2 members, got %d", len(members))
	}

	memberships, err := svc.MembershipsFor(ctx, "alice")
	if err != nil {
		t.Fatalf("MembershipsFor failed: %v", err)
	}
	if len(memberships) != 2 {
		t.Fatalf("expected 2 memberships for alice, got %v", memberships)
	}

	owner, err := svc.IsOwner(ctx, "bco_drafters", "alice")
	if err != nil || !owner {
		t.Errorf("IsOwner(alice) = %v, %v; want true", owner, err)
	}
	owner, err = svc.IsOwner(ctx, "bco_drafters", "bob")
	if err != nil || owner {
		t.Errorf("IsOwner(bob) = %v, %v; want false", owner, err)
	}

	// Re-adding promotes without duplicating the row.
	if err := svc.AddMember(ctx, "bco_drafters", "bob", true); err != nil {
		t.Fatalf("AddMember upsert failed: %v", err)
	}
	owner, _ = svc.IsOwner(ctx, "bco_drafters", "bob")
	if !owner {
		t.Error("expected bob promoted to owner")
	}

	if err := svc.RemoveMember(ctx, "bco_drafters", "bob"); err != nil {
		t.Fatalf("RemoveMember failed: %v", err)
	}
	if err := svc.RemoveMember(ctx, "bco_drafters", "bob"); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound on second removal, got %v", err)
	}
}

func TestService_AddMemberUnknownReference(t *testing.T) {
	db := storage.OpenTestDB(t)
	ctx := context.Background()
	svc := NewService(db)

	seedUser(t, db, "carol")
	if err := svc.CreateGroup(ctx, &Group{Name: "team"}); err != nil {
		t.Fatalf("CreateGroup failed: %v", err)
	}

	// No user row for dave yet.
	if err := svc.AddMember(ctx, "team", "dave", false); !errors.Is(err, ErrNotFound) {
		t.Errorf("AddMember(unknown user) = %v, want ErrNotFound", err)
	}
	if err := svc.AddMember(ctx, "ghost", "carol", false); !errors.Is(err, ErrNotFound) {
		t.Errorf("AddMember(unknown group) = %v, want ErrNotFound", err)
	}
}

package permissions

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/biocompute/bcodb/pkg/storage"
)

// mapDirectory is a PrefixDirectory backed by a map for tests
type mapDirectory map[string]string

func (d mapDirectory) ResolveOwner(_ context.Context, name string) (string, bool, error) {
	owner, ok := d[name]
	return owner, ok, nil
}

func seedGroup(t *testing.T, db *sql.DB, name string) {
	t.Helper()
	_, err := db.ExecContext(context.Background(),
		"INSERT INTO groups (name, created_at) VALUES ($1, $2)", name, time.Now())
	if err != nil {
		t.Fatalf("failed to seed group %s: %v", name, err)
	}
}

func newTestGate(t *testing.T, dir mapDirectory) (*StoreGate, *GrantStore) {
	t.Helper()
	db := storage.OpenTestDB(t)
	seedGroup(t, db, "bco_drafters")
	seedGroup(t, db, "bco_publishers")
	grants := NewGrantStore(db, nil)
	return NewStoreGate(grants, dir), grants
}

func TestGate_SuperuserBypassesEverything(t *testing.T) {
	gate, _ := newTestGate(t, mapDirectory{})
	ctx := context.Background()

	// No prefix exists and no grants are held; wheel still passes.
	for _, action := range []Action{ActionDraftCreate, ActionPublish, ActionPrefixDelete} {
		dec, err := gate.Authorize(ctx, Identity{Username: "wheel"}, action, Target{Prefix: "NOPE"})
		if err != nil {
			t.Fatalf("Authorize(%s) failed: %v", action, err)
		}
		if !dec.Allowed {
			t.Errorf("wheel denied %s: %+v", action, dec)
		}
	}

	dec, err := gate.Authorize(ctx, Identity{Username: "ops", Groups: []string{"wheel"}},
		ActionDraftDelete, Target{Prefix: "NOPE", ObjectID: "NOPE_000001/DRAFT"})
	if err != nil {
		t.Fatalf("Authorize failed: %v", err)
	}
	if !dec.Allowed {
		t.Errorf("wheel group member denied: %+v", dec)
	}
}

func TestGate_AnonymousDeniedAllWrites(t *testing.T) {
	gate, _ := newTestGate(t, mapDirectory{"BCO": "alice"})
	ctx := context.Background()

	for _, identity := range []Identity{{}, {Username: "anon"}} {
		for _, action := range []Action{ActionDraftCreate, ActionPublish, ActionPrefixCreate} {
			dec, err := gate.Authorize(ctx, identity, action, Target{Prefix: "BCO"})
			if err != nil {
				t.Fatalf("Authorize(%s) failed: %v", action, err)
			}
			if dec.Allowed {
				t.Errorf("anonymous allowed %s", action)
			}
			if dec.Reason != ReasonInsufficientPermissions {
				t.Errorf("reason = %s, want %s", dec.Reason, ReasonInsufficientPermissions)
			}
		}
	}
}

func TestGate_ObjectActionRequiresMembershipAndGrant(t *testing.T) {
	gate, grants := newTestGate(t, mapDirectory{"BCO": "alice"})
	ctx := context.Background()
	target := Target{Prefix: "BCO", OwnerGroup: "bco_drafters"}

	// Not a member of the owning group.
	dec, err := gate.Authorize(ctx, Identity{Username: "mallory", Groups: []string{"bco_publishers"}},
		ActionDraftCreate, target)
	if err != nil {
		t.Fatalf("Authorize failed: %v", err)
	}
	if dec.Allowed || dec.Reason != ReasonNotInOwnerGroup {
		t.Errorf("got %+v, want deny %s", dec, ReasonNotInOwnerGroup)
	}

	// Member, but the group holds no capability yet.
	alice := Identity{Username: "alice", Groups: []string{"bco_drafters"}}
	dec, err = gate.Authorize(ctx, alice, ActionDraftCreate, target)
	if err != nil {
		t.Fatalf("Authorize failed: %v", err)
	}
	if dec.Allowed || dec.Reason != ReasonInsufficientPermissions {
		t.Errorf("got %+v, want deny %s", dec, ReasonInsufficientPermissions)
	}

	if err := grants.GrantCapability(ctx, Grant{
		GroupName: "bco_drafters", Prefix: "BCO", Class: ClassDraft, Capability: CapabilityAdd,
	}); err != nil {
		t.Fatalf("GrantCapability failed: %v", err)
	}

	dec, err = gate.Authorize(ctx, alice, ActionDraftCreate, target)
	if err != nil {
		t.Fatalf("Authorize failed: %v", err)
	}
	if !dec.Allowed {
		t.Errorf("denied after grant: %+v", dec)
	}

	// The draft add grant does not confer publish.
	dec, err = gate.Authorize(ctx, alice, ActionPublish, target)
	if err != nil {
		t.Fatalf("Authorize failed: %v", err)
	}
	if dec.Allowed {
		t.Error("publish allowed without a publish add grant")
	}
}

func TestGate_UnknownPrefixAndObject(t *testing.T) {
	gate, _ := newTestGate(t, mapDirectory{"BCO": "alice"})
	ctx := context.Background()
	alice := Identity{Username: "alice", Groups: []string{"bco_drafters"}}

	dec, err := gate.Authorize(ctx, alice, ActionDraftCreate, Target{Prefix: "GONE"})
	if err != nil {
		t.Fatalf("Authorize failed: %v", err)
	}
	if dec.Allowed || dec.Reason != ReasonUnknownPrefix {
		t.Errorf("got %+v, want deny %s", dec, ReasonUnknownPrefix)
	}

	// Known prefix but the referenced object never resolved to an owner.
	dec, err = gate.Authorize(ctx, alice, ActionDraftModify,
		Target{Prefix: "BCO", ObjectID: "BCO_999999/DRAFT"})
	if err != nil {
		t.Fatalf("Authorize failed: %v", err)
	}
	if dec.Allowed || dec.Reason != ReasonUnknownObject {
		t.Errorf("got %+v, want deny %s", dec, ReasonUnknownObject)
	}
}

func TestGate_PrefixAdministration(t *testing.T) {
	gate, _ := newTestGate(t, mapDirectory{"TEST": "alice"})
	ctx := context.Background()

	admin := Identity{Username: "carol", Groups: []string{PrefixAdminsGroup}}
	owner := Identity{Username: "alice", Groups: []string{"bco_drafters"}}
	outsider := Identity{Username: "bob", Groups: []string{"bco_drafters"}}

	dec, err := gate.Authorize(ctx, admin, ActionPrefixCreate, Target{Prefix: "NEWPX"})
	if err != nil {
		t.Fatalf("Authorize failed: %v", err)
	}
	if !dec.Allowed {
		t.Errorf("prefix admin denied creation: %+v", dec)
	}

	dec, err = gate.Authorize(ctx, outsider, ActionPrefixCreate, Target{Prefix: "NEWPX"})
	if err != nil {
		t.Fatalf("Authorize failed: %v", err)
	}
	if dec.Allowed {
		t.Error("non-admin allowed prefix creation")
	}

	// Owner may modify their own prefix without admin membership.
	dec, err = gate.Authorize(ctx, owner, ActionPrefixModify, Target{Prefix: "TEST"})
	if err != nil {
		t.Fatalf("Authorize failed: %v", err)
	}
	if !dec.Allowed {
		t.Errorf("prefix owner denied modification: %+v", dec)
	}

	dec, err = gate.Authorize(ctx, outsider, ActionPrefixDelete, Target{Prefix: "TEST"})
	if err != nil {
		t.Fatalf("Authorize failed: %v", err)
	}
	if dec.Allowed || dec.Reason != ReasonInsufficientPermissions {
		t.Errorf("got %+v, want deny %s", dec, ReasonInsufficientPermissions)
	}

	dec, err = gate.Authorize(ctx, admin, ActionPrefixModify, Target{Prefix: "GONE"})
	if err != nil {
		t.Fatalf("Authorize failed: %v", err)
	}
	if dec.Allowed || dec.Reason != ReasonUnknownPrefix {
		t.Errorf("got %+v, want deny %s", dec, ReasonUnknownPrefix)
	}
}

func TestGrantStore_RevokeAllForPrefix(t *testing.T) {
	db := storage.OpenTestDB(t)
	ctx := context.Background()
	seedGroup(t, db, "bco_drafters")
	grants := NewGrantStore(db, nil)

	for _, cap := range []Capability{CapabilityAdd, CapabilityChange, CapabilityDelete} {
		if err := grants.GrantCapability(ctx, Grant{
			GroupName: "bco_drafters", Prefix: "TMP", Class: ClassDraft, Capability: cap,
		}); err != nil {
			t.Fatalf("GrantCapability failed: %v", err)
		}
	}
	if err := grants.GrantCapability(ctx, Grant{
		GroupName: "bco_drafters", Prefix: "KEEP", Class: ClassDraft, Capability: CapabilityAdd,
	}); err != nil {
		t.Fatalf("GrantCapability failed: %v", err)
	}

	if err := grants.RevokeAllForPrefix(ctx, "TMP"); err != nil {
		t.Fatalf("RevokeAllForPrefix failed: %v", err)
	}

	list, err := grants.ListForGroup(ctx, "bco_drafters")
	if err != nil {
		t.Fatalf("ListForGroup failed: %v", err)
	}
	if len(list) != 1 || list[0].Prefix != "KEEP" {
		t.Errorf("remaining grants = %+v, want only KEEP", list)
	}
}

package bootstrap

import (
	"context"
	"io"
	"testing"

	"github.com/biocompute/bcodb/pkg/auth"
	"github.com/biocompute/bcodb/pkg/groups"
	"github.com/biocompute/bcodb/pkg/observability"
	"github.com/biocompute/bcodb/pkg/permissions"
	"github.com/biocompute/bcodb/pkg/prefixes"
	"github.com/biocompute/bcodb/pkg/storage"
)

func TestInitialize_IsIdempotent(t *testing.T) {
	db := storage.OpenTestDB(t)
	ctx := context.Background()
	svc := Services{
		Tokens:   auth.NewTokenService(db),
		Groups:   groups.NewService(db),
		Prefixes: prefixes.NewService(db),
		Grants:   permissions.NewGrantStore(db, nil),
	}
	logger := observability.NewLogger(observability.ErrorLevel, io.Discard)

	for run := 0; run < 2; run++ {
		if err := Initialize(ctx, svc, logger); err != nil {
			t.Fatalf("Initialize run %d failed: %v", run, err)
		}
	}

	list, err := svc.Groups.ListGroups(ctx)
	if err != nil {
		t.Fatalf("ListGroups failed: %v", err)
	}
	if len(list) != 4 {
		t.Errorf("expected 4 default groups, got %d", len(list))
	}

	p, err := svc.Prefixes.Get(ctx, DefaultPrefix)
	if err != nil {
		t.Fatalf("default prefix missing: %v", err)
	}
	if p.OwnerGroup != "bco_drafters" {
		t.Errorf("prefix owner group = %s, want bco_drafters", p.OwnerGroup)
	}

	held, err := svc.Grants.HasCapability(ctx, permissions.Grant{
		GroupName:  "bco_drafters",
		Prefix:     DefaultPrefix,
		Class:      permissions.ClassDraft,
		Capability: permissions.CapabilityAdd,
	})
	if err != nil || !held {
		t.Errorf("HasCapability = (%v, %v), want (true, nil)", held, err)
	}

	owner, err := svc.Groups.IsOwner(ctx, permissions.WheelGroup, permissions.WheelUser)
	if err != nil || !owner {
		t.Errorf("wheel ownership = (%v, %v), want (true, nil)", owner, err)
	}
}

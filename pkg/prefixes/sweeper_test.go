package prefixes

import (
	"context"
	"io"
	"testing"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/biocompute/bcodb/pkg/storage"
)

type recordingRevoker struct {
	revoked []string
}

func (r *recordingRevoker) RevokeAllForPrefix(_ context.Context, prefix string) error {
	r.revoked = append(r.revoked, prefix)
	return nil
}

func TestSweeper_RetiresOnlyExpiredPrefixes(t *testing.T) {
	db := storage.OpenTestDB(t)
	ctx := context.Background()
	svc := NewService(db)

	past := time.Now().UTC().Add(-time.Hour)
	future := time.Now().UTC().Add(time.Hour)
	for _, p := range []*Prefix{
		{Name: "OLD1", OwnerUser: "alice", OwnerGroup: "g", ExpiresAt: &past},
		{Name: "OLD2", OwnerUser: "alice", OwnerGroup: "g", ExpiresAt: &past},
		{Name: "LIVE", OwnerUser: "alice", OwnerGroup: "g", ExpiresAt: &future},
	} {
		if err := svc.Create(ctx, p); err != nil {
			t.Fatalf("Create(%s) failed: %v", p.Name, err)
		}
	}

	logger := logrus.New()
	logger.SetOutput(io.Discard)
	revoker := &recordingRevoker{}
	sweeper := NewSweeper(svc, revoker, logger)

	if err := sweeper.Sweep(ctx); err != nil {
		t.Fatalf("Sweep failed: %v", err)
	}

	if len(revoker.revoked) != 2 {
		t.Fatalf("revoked %v, want OLD1 and OLD2", revoker.revoked)
	}
	for i, want := range []string{"OLD1", "OLD2"} {
		if revoker.revoked[i] != want {
			t.Errorf("revoked[%d] = %s, want %s", i, revoker.revoked[i], want)
		}
	}

	// The prefix rows survive retirement.
	if _, err := svc.Get(ctx, "OLD1"); err != nil {
		t.Errorf("expected retired prefix row kept, got %v", err)
	}
}

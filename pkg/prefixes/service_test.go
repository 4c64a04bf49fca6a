package prefixes

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"

	"github.com/biocompute/bcodb/pkg/storage"
)

func TestValidateName(t *testing.T) {
	valid := []string{"B", "BCO", "TEST", "AB123", "12345"}
	for _, name := range valid {
		if err := ValidateName(name); err != nil {
			t.Errorf("ValidateName(%q) = %v, want nil", name, err)
		}
	}

	invalid := []string{"", "TOOLONG", "bco", "BC-1", "BC O", "BCÖ"}
	for _, name := range invalid {
		if err := ValidateName(name); err == nil {
			t.Errorf("ValidateName(%q) = nil, want error", name)
		}
	}
}

func TestService_CRUD(t *testing.T) {
	db := storage.OpenTestDB(t)
	ctx := context.Background()
	svc := NewService(db)

	p := &Prefix{Name: "TEST", OwnerUser: "alice", OwnerGroup: "bco_drafters", Description: "test namespace"}
	if err := svc.Create(ctx, p); err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	if err := svc.Create(ctx, &Prefix{Name: "TEST", OwnerUser: "bob", OwnerGroup: "g"}); !errors.Is(err, ErrDuplicate) {
		t.Errorf("expected ErrDuplicate, got %v", err)
	}
	if err := svc.Create(ctx, &Prefix{Name: "toolowercase", OwnerUser: "alice", OwnerGroup: "g"}); err == nil {
		t.Error("expected name validation error")
	}

	got, err := svc.Get(ctx, "TEST")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if got.OwnerUser != "alice" || got.Counter != 0 {
		t.Errorf("Get = %+v, want owner alice counter 0", got)
	}

	got.Description = "updated"
	expiry := time.Now().UTC().Add(24 * time.Hour)
	got.ExpiresAt = &expiry
	if err := svc.Update(ctx, got); err != nil {
		t.Fatalf("Update failed: %v", err)
	}
	got, err = svc.Get(ctx, "TEST")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if got.Description != "updated" || got.ExpiresAt == nil {
		t.Errorf("Get after update = %+v", got)
	}

	owner, found, err := svc.ResolveOwner(ctx, "TEST")
	if err != nil || !found || owner != "alice" {
		t.Errorf("ResolveOwner = (%q, %v, %v), want (alice, true, nil)", owner, found, err)
	}
	_, found, err = svc.ResolveOwner(ctx, "GONE")
	if err != nil || found {
		t.Errorf("ResolveOwner(GONE) = (_, %v, %v), want (false, nil)", found, err)
	}

	if err := svc.Delete(ctx, "TEST"); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}
	if err := svc.Delete(ctx, "TEST"); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestService_NextSequenceIsMonotonic(t *testing.T) {
	db := storage.OpenTestDB(t)
	ctx := context.Background()
	svc := NewService(db)

	if err := svc.Create(ctx, &Prefix{Name: "BCO", OwnerUser: "alice", OwnerGroup: "bco_drafters"}); err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	for want := int64(1); want <= 5; want++ {
		seq, err := svc.NextSequence(ctx, "BCO")
		if err != nil {
			t.Fatalf("NextSequence failed: %v", err)
		}
		if seq != want {
			t.Fatalf("NextSequence = %d, want %d", seq, want)
		}
	}

	if _, err := svc.NextSequence(ctx, "GONE"); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

// The counter advance must be a single atomic statement, not a read
// followed by a write.
func TestService_NextSequenceSingleStatement(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock failed: %v", err)
	}
	defer db.Close()
	svc := NewService(db)

	mock.ExpectQuery(`UPDATE prefixes SET counter = counter \+ 1 WHERE name = \$1 RETURNING counter`).
		WithArgs("BCO").
		WillReturnRows(sqlmock.NewRows([]string{"counter"}).AddRow(42))

	seq, err := svc.NextSequence(context.Background(), "BCO")
	if err != nil {
		t.Fatalf("NextSequence failed: %v", err)
	}
	if seq != 42 {
		t.Errorf("NextSequence = %d, want 42", seq)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unmet expectations: %v", err)
	}
}

func TestService_ListExpired(t *testing.T) {
	db := storage.OpenTestDB(t)
	ctx := context.Background()
	svc := NewService(db)

	past := time.Now().UTC().Add(-time.Hour)
	future := time.Now().UTC().Add(time.Hour)
	for _, p := range []*Prefix{
		{Name: "OLD", OwnerUser: "alice", OwnerGroup: "g", ExpiresAt: &past},
		{Name: "NEW", OwnerUser: "alice", OwnerGroup: "g", ExpiresAt: &future},
		{Name: "EVER", OwnerUser: "alice", OwnerGroup: "g"},
	} {
		if err := svc.Create(ctx, p); err != nil {
			t.Fatalf("Create(%s) failed: %v", p.Name, err)
		}
	}

	expired, err := svc.ListExpired(ctx, time.Now().UTC())
	if err != nil {
		t.Fatalf("ListExpired failed: %v", err)
	}
	if len(expired) != 1 || expired[0].Name != "OLD" {
		t.Errorf("ListExpired = %+v, want only OLD", expired)
	}
}

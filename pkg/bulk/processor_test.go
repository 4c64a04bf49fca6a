package bulk

import (
	"context"
	"database/sql"
	"encoding/json"
	"io"
	"net/http"
	"testing"
	"time"

	"github.com/biocompute/bcodb/pkg/objects"
	"github.com/biocompute/bcodb/pkg/observability"
	"github.com/biocompute/bcodb/pkg/permissions"
	"github.com/biocompute/bcodb/pkg/prefixes"
	"github.com/biocompute/bcodb/pkg/schema"
	"github.com/biocompute/bcodb/pkg/storage"
)

// countingValidator records validation calls and returns canned results
type countingValidator struct {
	calls      int
	violations []schema.ValidationError
	err        error
}

func (v *countingValidator) ValidateKey(interface{}, string) ([]schema.ValidationError, error) {
	v.calls++
	if v.err != nil {
		return nil, v.err
	}
	if v.violations != nil {
		return v.violations, nil
	}
	return []schema.ValidationError{}, nil
}

type testEnv struct {
	db        *sql.DB
	processor *Processor
	validator *countingValidator
	store     *objects.Store
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	db := storage.OpenTestDB(t)
	ctx := context.Background()

	if _, err := db.ExecContext(ctx,
		"INSERT INTO groups (name, created_at) VALUES ('bco_drafters', $1)", time.Now()); err != nil {
		t.Fatalf("failed to seed group: %v", err)
	}

	prefixSvc := prefixes.NewService(db)
	if err := prefixSvc.Create(ctx, &prefixes.Prefix{
		Name: "BCO", OwnerUser: "alice", OwnerGroup: "bco_drafters",
	}); err != nil {
		t.Fatalf("failed to seed prefix: %v", err)
	}

	grants := permissions.NewGrantStore(db, nil)
	for _, g := range []permissions.Grant{
		{GroupName: "bco_drafters", Prefix: "BCO", Class: permissions.ClassDraft, Capability: permissions.CapabilityAdd},
		{GroupName: "bco_drafters", Prefix: "BCO", Class: permissions.ClassDraft, Capability: permissions.CapabilityChange},
		{GroupName: "bco_drafters", Prefix: "BCO", Class: permissions.ClassDraft, Capability: permissions.CapabilityDelete},
		{GroupName: "bco_drafters", Prefix: "BCO", Class: permissions.ClassPublish, Capability: permissions.CapabilityAdd},
	} {
		if err := grants.GrantCapability(ctx, g); err != nil {
			t.Fatalf("failed to seed grant: %v", err)
		}
	}

	validator := &countingValidator{}
	store := objects.NewStore(db)
	processor := NewProcessor(
		permissions.NewStoreGate(grants, prefixSvc),
		validator,
		objects.NewAllocator(prefixSvc),
		store,
		observability.NewMetrics(),
		observability.NewLogger(observability.ErrorLevel, io.Discard),
	)
	return &testEnv{db: db, processor: processor, validator: validator, store: store}
}

func drafter() permissions.Identity {
	return permissions.Identity{Username: "alice", Groups: []string{"bco_drafters"}}
}

func TestParseBatch(t *testing.T) {
	direct := []byte(`[{"prefix":"BCO","schema":"IEEE","contents":{}}]`)
	items, err := ParseBatch(OpDraftCreate, direct)
	if err != nil {
		t.Fatalf("ParseBatch(array) failed: %v", err)
	}
	if len(items) != 1 || items[0].Prefix != "BCO" {
		t.Errorf("items = %+v", items)
	}

	legacy := []byte(`{"POST_api_objects_drafts_create":[{"prefix":"BCO"},{"prefix":"TEST"}]}`)
	items, err = ParseBatch(OpDraftCreate, legacy)
	if err != nil {
		t.Fatalf("ParseBatch(legacy) failed: %v", err)
	}
	if len(items) != 2 || items[1].Prefix != "TEST" {
		t.Errorf("items = %+v", items)
	}

	for _, bad := range []string{
		`{"wrong_key":[]}`,
		`{"POST_api_objects_drafts_create":[],"extra":[]}`,
		`"just a string"`,
	} {
		if _, err := ParseBatch(OpDraftCreate, []byte(bad)); err == nil {
			t.Errorf("ParseBatch(%s) = nil error, want failure", bad)
		}
	}
}

func TestAggregateStatus(t *testing.T) {
	tests := []struct {
		name    string
		results []ItemResult
		want    int
	}{
		{"empty", nil, http.StatusBadRequest},
		{"all created", []ItemResult{{StatusCode: 201}, {StatusCode: 201}}, http.StatusCreated},
		{"all ok", []ItemResult{{StatusCode: 200}}, http.StatusOK},
		{"success mix of classes", []ItemResult{{StatusCode: 200}, {StatusCode: 201}}, http.StatusOK},
		{"uniform failure", []ItemResult{{StatusCode: 403}, {StatusCode: 403}}, http.StatusForbidden},
		{"varied failure", []ItemResult{{StatusCode: 403}, {StatusCode: 404}}, http.StatusBadRequest},
		{"mixed", []ItemResult{{StatusCode: 201}, {StatusCode: 403}}, http.StatusMultiStatus},
	}
	for _, tt := range tests {
		if got := AggregateStatus(tt.results); got != tt.want {
			t.Errorf("%s: AggregateStatus = %d, want %d", tt.name, got, tt.want)
		}
	}
}

func TestProcessor_CreateDraft(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	batch, err := env.processor.Process(ctx, drafter(), OpDraftCreate, []Item{
		{Prefix: "BCO", OwnerGroup: "bco_drafters", Schema: "IEEE", Contents: json.RawMessage(`{}`)},
	})
	if err != nil {
		t.Fatalf("Process failed: %v", err)
	}
	if batch.Status != http.StatusCreated {
		t.Errorf("batch status = %d, want 201", batch.Status)
	}
	if len(batch.Results) != 1 {
		t.Fatalf("expected 1 result, got %d", len(batch.Results))
	}
	r := batch.Results[0]
	if r.StatusCode != http.StatusCreated || r.ObjectID != "BCO_000001/DRAFT" {
		t.Errorf("result = %+v, want 201 BCO_000001/DRAFT", r)
	}

	if _, err := env.store.GetDraft(ctx, "BCO_000001/DRAFT"); err != nil {
		t.Errorf("draft not persisted: %v", err)
	}
}

func TestProcessor_DeniedItemSkipsValidation(t *testing.T) {
	env := newTestEnv(t)
	outsider := permissions.Identity{Username: "mallory", Groups: []string{"other_group"}}

	batch, err := env.processor.Process(context.Background(), outsider, OpDraftCreate, []Item{
		{Prefix: "BCO", OwnerGroup: "bco_drafters", Schema: "IEEE", Contents: json.RawMessage(`{}`)},
	})
	if err != nil {
		t.Fatalf("Process failed: %v", err)
	}
	if batch.Status != http.StatusForbidden {
		t.Errorf("batch status = %d, want 403", batch.Status)
	}
	if env.validator.calls != 0 {
		t.Errorf("validator called %d times for a denied item, want 0", env.validator.calls)
	}
}

func TestProcessor_ValidationFailureWritesNothing(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	env.validator.violations = []schema.ValidationError{
		{Path: "object_id", Message: "object_id is required"},
		{Path: "etag", Message: "etag is required"},
	}

	batch, err := env.processor.Process(ctx, drafter(), OpDraftCreate, []Item{
		{Prefix: "BCO", OwnerGroup: "bco_drafters", Schema: "IEEE", Contents: json.RawMessage(`{}`)},
	})
	if err != nil {
		t.Fatalf("Process failed: %v", err)
	}
	r := batch.Results[0]
	if r.StatusCode != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", r.StatusCode)
	}
	violations, ok := r.Data.([]schema.ValidationError)
	if !ok || len(violations) != 2 {
		t.Errorf("data = %+v, want both violations", r.Data)
	}

	var count int
	if err := env.db.QueryRow("SELECT COUNT(*) FROM objects").Scan(&count); err != nil {
		t.Fatalf("count failed: %v", err)
	}
	if count != 0 {
		t.Errorf("objects table has %d rows after rejected validation, want 0", count)
	}
}

func TestProcessor_ModifyAndDelete(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	batch, err := env.processor.Process(ctx, drafter(), OpDraftCreate, []Item{
		{Prefix: "BCO", OwnerGroup: "bco_drafters", Schema: "IEEE", Contents: json.RawMessage(`{"etag":"a"}`)},
	})
	if err != nil || batch.Results[0].StatusCode != http.StatusCreated {
		t.Fatalf("create failed: %v %+v", err, batch)
	}
	id := batch.Results[0].ObjectID

	batch, err = env.processor.Process(ctx, drafter(), OpDraftModify, []Item{
		{ObjectID: id, Schema: "IEEE", Contents: json.RawMessage(`{"etag":"b"}`)},
	})
	if err != nil {
		t.Fatalf("modify failed: %v", err)
	}
	if batch.Status != http.StatusOK {
		t.Errorf("modify status = %d, want 200", batch.Status)
	}

	draft, err := env.store.GetDraft(ctx, id)
	if err != nil {
		t.Fatalf("GetDraft failed: %v", err)
	}
	var contents map[string]string
	if err := json.Unmarshal(draft.Contents, &contents); err != nil {
		t.Fatalf("unmarshal failed: %v", err)
	}
	if contents["etag"] != "b" {
		t.Errorf("etag = %q, want b", contents["etag"])
	}

	batch, err = env.processor.Process(ctx, drafter(), OpDraftDelete, []Item{{ObjectID: id}})
	if err != nil {
		t.Fatalf("delete failed: %v", err)
	}
	if batch.Status != http.StatusOK {
		t.Errorf("delete status = %d, want 200", batch.Status)
	}
	if _, err := env.store.GetDraft(ctx, id); err == nil {
		t.Error("draft survived delete")
	}
}

func TestProcessor_PublishMissingDraftSiblingsIndependent(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	batch, err := env.processor.Process(ctx, drafter(), OpDraftCreate, []Item{
		{Prefix: "BCO", OwnerGroup: "bco_drafters", Schema: "IEEE", Contents: json.RawMessage(`{}`)},
	})
	if err != nil || batch.Results[0].StatusCode != http.StatusCreated {
		t.Fatalf("create failed: %v %+v", err, batch)
	}
	existing := batch.Results[0].ObjectID

	batch, err = env.processor.Process(ctx, drafter(), OpPublish, []Item{
		{ObjectID: "BCO_999999/DRAFT"},
		{ObjectID: existing, DeleteDraft: true},
	})
	if err != nil {
		t.Fatalf("publish failed: %v", err)
	}

	if batch.Status != http.StatusMultiStatus {
		t.Errorf("batch status = %d, want 207", batch.Status)
	}
	if len(batch.Results) != 2 {
		t.Fatalf("expected 2 results, got %d", len(batch.Results))
	}
	if batch.Results[0].StatusCode != http.StatusNotFound {
		t.Errorf("missing draft status = %d, want 404", batch.Results[0].StatusCode)
	}
	if batch.Results[1].StatusCode != http.StatusCreated || batch.Results[1].ObjectID != "BCO_000001/1" {
		t.Errorf("publish result = %+v, want 201 BCO_000001/1", batch.Results[1])
	}

	// delete_draft retired the source draft.
	if _, err := env.store.GetDraft(ctx, existing); err == nil {
		t.Error("draft survived publish with delete_draft")
	}
}

func TestProcessor_PublishPrefixMismatch(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	batch, err := env.processor.Process(ctx, drafter(), OpDraftCreate, []Item{
		{Prefix: "BCO", OwnerGroup: "bco_drafters", Schema: "IEEE", Contents: json.RawMessage(`{}`)},
	})
	if err != nil || batch.Results[0].StatusCode != http.StatusCreated {
		t.Fatalf("create failed: %v %+v", err, batch)
	}

	batch, err = env.processor.Process(ctx, drafter(), OpPublish, []Item{
		{Prefix: "TEST", ObjectID: batch.Results[0].ObjectID},
	})
	if err != nil {
		t.Fatalf("publish failed: %v", err)
	}
	if batch.Results[0].StatusCode != http.StatusBadRequest {
		t.Errorf("status = %d, want 400 for prefix mismatch", batch.Results[0].StatusCode)
	}
}

func TestProcessor_CreateRejectsConcreteObjectID(t *testing.T) {
	env := newTestEnv(t)

	batch, err := env.processor.Process(context.Background(), drafter(), OpDraftCreate, []Item{
		{Prefix: "BCO", OwnerGroup: "bco_drafters", Schema: "IEEE",
			Contents: json.RawMessage(`{}`), ObjectID: "BCO_000007/DRAFT"},
		{Prefix: "BCO", OwnerGroup: "bco_drafters", Schema: "IEEE",
			Contents: json.RawMessage(`{}`), ObjectID: "NEW"},
	})
	if err != nil {
		t.Fatalf("Process failed: %v", err)
	}
	if batch.Results[0].StatusCode != http.StatusBadRequest {
		t.Errorf("concrete id status = %d, want 400", batch.Results[0].StatusCode)
	}
	if batch.Results[1].StatusCode != http.StatusCreated {
		t.Errorf("NEW sentinel status = %d, want 201", batch.Results[1].StatusCode)
	}
}

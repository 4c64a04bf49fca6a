package objects

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"
)

// Store persists objects in the draft and published tables
type Store struct {
	db *sql.DB
}

// NewStore creates an object store
func NewStore(db *sql.DB) *Store {
	return &Store{db: db}
}

const objectColumns = "object_id, prefix, sequence, version, state, schema_id, contents, owner_group, last_update"

func scanObject(row interface{ Scan(...interface{}) error }) (*Object, error) {
	var o Object
	err := row.Scan(&o.ObjectID, &o.Prefix, &o.Sequence, &o.Version, &o.State,
		&o.SchemaID, &o.Contents, &o.OwnerGroup, &o.LastUpdate)
	if err != nil {
		return nil, err
	}
	return &o, nil
}

// CreateDraft inserts a new draft row
func (s *Store) CreateDraft(ctx context.Context, o *Object) error {
	o.State = StateDraft
	o.Version = 0
	if o.LastUpdate.IsZero() {
		o.LastUpdate = time.Now().UTC()
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO objects (object_id, prefix, sequence, version, state, schema_id, contents, owner_group, last_update)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		o.ObjectID, o.Prefix, o.Sequence, o.Version, string(o.State),
		o.SchemaID, string(o.Contents), o.OwnerGroup, o.LastUpdate,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrDuplicate
		}
		return fmt.Errorf("failed to create draft: %w", err)
	}
	return nil
}

// GetDraft fetches a draft by its identifier
func (s *Store) GetDraft(ctx context.Context, objectID string) (*Object, error) {
	row := s.db.QueryRowContext(ctx,
		"SELECT "+objectColumns+" FROM objects WHERE object_id = $1 AND state = $2",
		objectID, string(StateDraft))
	o, err := scanObject(row)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get draft: %w", err)
	}
	return o, nil
}

// GetPublished fetches a published version by its identifier
func (s *Store) GetPublished(ctx context.Context, objectID string) (*Object, error) {
	row := s.db.QueryRowContext(ctx,
		"SELECT "+objectColumns+" FROM objects WHERE object_id = $1 AND state = $2",
		objectID, string(StatePublished))
	o, err := scanObject(row)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get published object: %w", err)
	}
	return o, nil
}

// Get fetches an object addressed by either table's identifier form
func (s *Store) Get(ctx context.Context, objectID string) (*Object, error) {
	parsed, err := ParseObjectID(objectID)
	if err != nil {
		return nil, err
	}
	canonical := FormatPublishedID(parsed.Prefix, parsed.Sequence, parsed.Version)
	if parsed.IsDraft {
		canonical = FormatDraftID(parsed.Prefix, parsed.Sequence)
		return s.GetDraft(ctx, canonical)
	}
	return s.GetPublished(ctx, canonical)
}

// UpdateDraft replaces a draft's contents and schema binding
func (s *Store) UpdateDraft(ctx context.Context, o *Object) error {
	o.LastUpdate = time.Now().UTC()
	res, err := s.db.ExecContext(ctx, `
		UPDATE objects SET schema_id = $1, contents = $2, last_update = $3
		WHERE object_id = $4 AND state = $5`,
		o.SchemaID, string(o.Contents), o.LastUpdate, o.ObjectID, string(StateDraft),
	)
	if err != nil {
		return fmt.Errorf("failed to update draft: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to update draft: %w", err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// DeleteDraft removes a draft row. Published versions are untouched.
func (s *Store) DeleteDraft(ctx context.Context, objectID string) error {
	res, err := s.db.ExecContext(ctx,
		"DELETE FROM objects WHERE object_id = $1 AND state = $2",
		objectID, string(StateDraft))
	if err != nil {
		return fmt.Errorf("failed to delete draft: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to delete draft: %w", err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// Publish copies a draft into the published table under the lineage's next
// version number and optionally removes the draft. The version counter row
// advances inside the same transaction, so a deleted version's number is
// never handed out again.
func (s *Store) Publish(ctx context.Context, draftID string, deleteDraft bool) (*Object, error) {
	draft, err := s.GetDraft(ctx, draftID)
	if err != nil {
		return nil, err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin publish: %w", err)
	}
	defer tx.Rollback()

	var version int64
	err = tx.QueryRowContext(ctx, `
		INSERT INTO version_counters (prefix, sequence, last_version)
		VALUES ($1, $2, 1)
		ON CONFLICT (prefix, sequence)
		DO UPDATE SET last_version = version_counters.last_version + 1
		RETURNING last_version`,
		draft.Prefix, draft.Sequence,
	).Scan(&version)
	if err != nil {
		return nil, fmt.Errorf("failed to advance version counter: %w", err)
	}

	published := &Object{
		ObjectID:   FormatPublishedID(draft.Prefix, draft.Sequence, version),
		Prefix:     draft.Prefix,
		Sequence:   draft.Sequence,
		Version:    version,
		State:      StatePublished,
		SchemaID:   draft.SchemaID,
		Contents:   draft.Contents,
		OwnerGroup: draft.OwnerGroup,
		LastUpdate: time.Now().UTC(),
	}
	_, err = tx.ExecContext(ctx, `
		INSERT INTO objects (object_id, prefix, sequence, version, state, schema_id, contents, owner_group, last_update)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		published.ObjectID, published.Prefix, published.Sequence, published.Version,
		string(published.State), published.SchemaID, string(published.Contents),
		published.OwnerGroup, published.LastUpdate,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to insert published object: %w", err)
	}

	if deleteDraft {
		if _, err := tx.ExecContext(ctx,
			"DELETE FROM objects WHERE object_id = $1 AND state = $2",
			draftID, string(StateDraft)); err != nil {
			return nil, fmt.Errorf("failed to delete source draft: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit publish: %w", err)
	}
	return published, nil
}

// ListVersions returns all published versions of a lineage, oldest first
func (s *Store) ListVersions(ctx context.Context, prefix string, sequence int64) ([]*Object, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+objectColumns+` FROM objects
		WHERE prefix = $1 AND sequence = $2 AND state = $3
		ORDER BY version`,
		prefix, sequence, string(StatePublished))
	if err != nil {
		return nil, fmt.Errorf("failed to list versions: %w", err)
	}
	defer rows.Close()

	var out []*Object
	for rows.Next() {
		o, err := scanObject(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan object: %w", err)
		}
		out = append(out, o)
	}
	return out, rows.Err()
}

func isUniqueViolation(err error) bool {
	msg := err.Error()
	return strings.Contains(msg, "duplicate key") || strings.Contains(msg, "UNIQUE constraint")
}

package prefixes

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"
)

// Service persists prefixes and mints sequence numbers
type Service struct {
	db *sql.DB
}

// NewService creates a prefix service
func NewService(db *sql.DB) *Service {
	return &Service{db: db}
}

// Create registers a new prefix. The counter starts at zero so the first
// minted sequence is 1.
func (s *Service) Create(ctx context.Context, p *Prefix) error {
	if err := ValidateName(p.Name); err != nil {
		return err
	}
	if p.CreatedAt.IsZero() {
		p.CreatedAt = time.Now().UTC()
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO prefixes (name, owner_user, owner_group, description, created_at, expires_at, counter)
		VALUES ($1, $2, $3, $4, $5, $6, 0)`,
		p.Name, p.OwnerUser, p.OwnerGroup, p.Description, p.CreatedAt, p.ExpiresAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrDuplicate
		}
		return fmt.Errorf("failed to create prefix: %w", err)
	}
	return nil
}

// Get returns a prefix by name
func (s *Service) Get(ctx context.Context, name string) (*Prefix, error) {
	var p Prefix
	err := s.db.QueryRowContext(ctx, `
		SELECT name, owner_user, owner_group, description, created_at, expires_at, counter
		FROM prefixes WHERE name = $1`, name,
	).Scan(&p.Name, &p.OwnerUser, &p.OwnerGroup, &p.Description, &p.CreatedAt, &p.ExpiresAt, &p.Counter)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get prefix: %w", err)
	}
	return &p, nil
}

// List returns all registered prefixes ordered by name
func (s *Service) List(ctx context.Context) ([]*Prefix, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT name, owner_user, owner_group, description, created_at, expires_at, counter
		FROM prefixes ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("failed to list prefixes: %w", err)
	}
	defer rows.Close()

	var out []*Prefix
	for rows.Next() {
		var p Prefix
		if err := rows.Scan(&p.Name, &p.OwnerUser, &p.OwnerGroup, &p.Description,
			&p.CreatedAt, &p.ExpiresAt, &p.Counter); err != nil {
			return nil, fmt.Errorf("failed to scan prefix: %w", err)
		}
		out = append(out, &p)
	}
	return out, rows.Err()
}

// Update changes a prefix's ownership, description, or expiry. The counter
// is never writable through this path.
func (s *Service) Update(ctx context.Context, p *Prefix) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE prefixes
		SET owner_user = $1, owner_group = $2, description = $3, expires_at = $4
		WHERE name = $5`,
		p.OwnerUser, p.OwnerGroup, p.Description, p.ExpiresAt, p.Name,
	)
	if err != nil {
		return fmt.Errorf("failed to update prefix: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to update prefix: %w", err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// Delete removes a prefix. Objects referencing it block deletion through
// the foreign key; callers retire objects first.
func (s *Service) Delete(ctx context.Context, name string) error {
	res, err := s.db.ExecContext(ctx, "DELETE FROM prefixes WHERE name = $1", name)
	if err != nil {
		return fmt.Errorf("failed to delete prefix: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to delete prefix: %w", err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// NextSequence atomically advances the prefix counter and returns the new
// value. Concurrent callers never observe the same number, and the counter
// never rewinds when objects are deleted.
func (s *Service) NextSequence(ctx context.Context, name string) (int64, error) {
	var seq int64
	err := s.db.QueryRowContext(ctx,
		"UPDATE prefixes SET counter = counter + 1 WHERE name = $1 RETURNING counter", name,
	).Scan(&seq)
	if err == sql.ErrNoRows {
		return 0, ErrNotFound
	}
	if err != nil {
		return 0, fmt.Errorf("failed to advance counter for %s: %w", name, err)
	}
	return seq, nil
}

// ResolveOwner implements the permission gate's prefix directory
func (s *Service) ResolveOwner(ctx context.Context, name string) (string, bool, error) {
	var owner string
	err := s.db.QueryRowContext(ctx,
		"SELECT owner_user FROM prefixes WHERE name = $1", name).Scan(&owner)
	if err == sql.ErrNoRows {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("failed to resolve prefix owner: %w", err)
	}
	return owner, true, nil
}

// ListExpired returns prefixes whose registration lapsed before now
func (s *Service) ListExpired(ctx context.Context, now time.Time) ([]*Prefix, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT name, owner_user, owner_group, description, created_at, expires_at, counter
		FROM prefixes WHERE expires_at IS NOT NULL AND expires_at < $1
		ORDER BY name`, now)
	if err != nil {
		return nil, fmt.Errorf("failed to list expired prefixes: %w", err)
	}
	defer rows.Close()

	var out []*Prefix
	for rows.Next() {
		var p Prefix
		if err := rows.Scan(&p.Name, &p.OwnerUser, &p.OwnerGroup, &p.Description,
			&p.CreatedAt, &p.ExpiresAt, &p.Counter); err != nil {
			return nil, fmt.Errorf("failed to scan prefix: %w", err)
		}
		out = append(out, &p)
	}
	return out, rows.Err()
}

func isUniqueViolation(err error) bool {
	msg := err.Error()
	return strings.Contains(msg, "duplicate key") || strings.Contains(msg, "UNIQUE constraint")
}

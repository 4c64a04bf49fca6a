package permissions

import (
	"context"
	"database/sql"
	"fmt"
)

// Grant is one capability held by a group on a prefix table class
type Grant struct {
	GroupName  string     `json:"group_name"`
	Prefix     string     `json:"prefix"`
	Class      TableClass `json:"table_class"`
	Capability Capability `json:"capability"`
}

// GrantStore persists capability grants
type GrantStore struct {
	db    *sql.DB
	cache *DecisionCache
}

// NewGrantStore creates a grant store. The cache may be nil.
func NewGrantStore(db *sql.DB, cache *DecisionCache) *GrantStore {
	return &GrantStore{db: db, cache: cache}
}

// GrantCapability records a capability for a group on a prefix table class
func (s *GrantStore) GrantCapability(ctx context.Context, grant Grant) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO group_permissions (group_name, prefix, table_class, capability)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (group_name, prefix, table_class, capability) DO NOTHING`,
		grant.GroupName, grant.Prefix, string(grant.Class), string(grant.Capability),
	)
	if err != nil {
		return fmt.Errorf("failed to grant capability: %w", err)
	}
	if s.cache != nil {
		s.cache.Invalidate(ctx, grant)
	}
	return nil
}

// RevokeCapability removes a capability grant
func (s *GrantStore) RevokeCapability(ctx context.Context, grant Grant) error {
	_, err := s.db.ExecContext(ctx, `
		DELETE FROM group_permissions
		WHERE group_name = $1 AND prefix = $2 AND table_class = $3 AND capability = $4`,
		grant.GroupName, grant.Prefix, string(grant.Class), string(grant.Capability),
	)
	if err != nil {
		return fmt.Errorf("failed to revoke capability: %w", err)
	}
	if s.cache != nil {
		s.cache.Invalidate(ctx, grant)
	}
	return nil
}

// RevokeAllForPrefix removes every grant scoped to a prefix. Used when a
// prefix is deleted or expires.
func (s *GrantStore) RevokeAllForPrefix(ctx context.Context, prefix string) error {
	_, err := s.db.ExecContext(ctx,
		"DELETE FROM group_permissions WHERE prefix = $1", prefix)
	if err != nil {
		return fmt.Errorf("failed to revoke prefix grants: %w", err)
	}
	if s.cache != nil {
		s.cache.InvalidatePrefix(ctx, prefix)
	}
	return nil
}

// HasCapability reports whether the group holds the capability, consulting
// the cache first when one is configured.
func (s *GrantStore) HasCapability(ctx context.Context, grant Grant) (bool, error) {
	if s.cache != nil {
		if held, ok := s.cache.Get(ctx, grant); ok {
			return held, nil
		}
	}

	var one int
	err := s.db.QueryRowContext(ctx, `
		SELECT 1 FROM group_permissions
		WHERE group_name = $1 AND prefix = $2 AND table_class = $3 AND capability = $4`,
		grant.GroupName, grant.Prefix, string(grant.Class), string(grant.Capability),
	).Scan(&one)

	held := err == nil
	if err != nil && err != sql.ErrNoRows {
		return false, fmt.Errorf("failed to check capability: %w", err)
	}

	if s.cache != nil {
		s.cache.Set(ctx, grant, held)
	}
	return held, nil
}

// ListForGroup returns all grants held by a group
func (s *GrantStore) ListForGroup(ctx context.Context, groupName string) ([]Grant, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT group_name, prefix, table_class, capability
		FROM group_permissions
		WHERE group_name = $1
		ORDER BY prefix, table_class, capability`,
		groupName,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list grants: %w", err)
	}
	defer rows.Close()

	var grants []Grant
	for rows.Next() {
		var g Grant
		if err := rows.Scan(&g.GroupName, &g.Prefix, &g.Class, &g.Capability); err != nil {
			return nil, fmt.Errorf("failed to scan grant: %w", err)
		}
		grants = append(grants, g)
	}
	return grants, rows.Err()
}

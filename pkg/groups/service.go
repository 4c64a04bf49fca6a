package groups

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"
)

// Service provides group and membership operations over the SQL store
type Service struct {
	db *sql.DB
}

// NewService creates a new group service
func NewService(db *sql.DB) *Service {
	return &Service{db: db}
}

// CreateGroup creates a new group
func (s *Service) CreateGroup(ctx context.Context, group *Group) error {
	if group.CreatedAt.IsZero() {
		group.CreatedAt = time.Now()
	}

	_, err := s.db.ExecContext(ctx,
		"INSERT INTO groups (name, description, created_at) VALUES ($1, $2, $3)",
		group.Name, group.Description, group.CreatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("%w: %s", ErrDuplicate, group.Name)
		}
		return fmt.Errorf("failed to create group: %w", err)
	}
	return nil
}

// GetGroup retrieves a group by name
func (s *Service) GetGroup(ctx context.Context, name string) (*Group, error) {
	group := &Group{}
	err := s.db.QueryRowContext(ctx,
		"SELECT name, description, created_at FROM groups WHERE name = $1", name,
	).Scan(&group.Name, &group.Description, &group.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, name)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get group: %w", err)
	}
	return group, nil
}

// ListGroups returns all groups ordered by name
func (s *Service) ListGroups(ctx context.Context) ([]*Group, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT name, description, created_at FROM groups ORDER BY name")
	if err != nil {
		return nil, fmt.Errorf("failed to list groups: %w", err)
	}
	defer rows.Close()

	var list []*Group
	for rows.Next() {
		group := &Group{}
		if err := rows.Scan(&group.Name, &group.Description, &group.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan group: %w", err)
		}
		list = append(list, group)
	}
	return list, rows.Err()
}

// DeleteGroup removes a group; memberships and capability grants cascade
func (s *Service) DeleteGroup(ctx context.Context, name string) error {
	result, err := s.db.ExecContext(ctx, "DELETE FROM groups WHERE name = $1", name)
	if err != nil {
		return fmt.Errorf("failed to delete group: %w", err)
	}
	if n, _ := result.RowsAffected(); n == 0 {
		return fmt.Errorf("%w: %s", ErrNotFound, name)
	}
	return nil
}

// AddMember adds a user to a group, updating ownership if already present
func (s *Service) AddMember(ctx context.Context, groupName, username string, isOwner bool) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO group_members (group_name, username, is_owner)
		VALUES ($1, $2, $3)
		ON CONFLICT (group_name, username) DO UPDATE SET is_owner = $3`,
		groupName, username, isOwner,
	)
	if err != nil {
		if isForeignKeyViolation(err) {
			return fmt.Errorf("%w: group %s or user %s", ErrNotFound, groupName, username)
		}
		return fmt.Errorf("failed to add member: %w", err)
	}
	return nil
}

// RemoveMember removes a user from a group
func (s *Service) RemoveMember(ctx context.Context, groupName, username string) error {
	result, err := s.db.ExecContext(ctx,
		"DELETE FROM group_members WHERE group_name = $1 AND username = $2",
		groupName, username,
	)
	if err != nil {
		return fmt.Errorf("failed to remove member: %w", err)
	}
	if n, _ := result.RowsAffected(); n == 0 {
		return fmt.Errorf("%w: %s has no member %s", ErrNotFound, groupName, username)
	}
	return nil
}

// ListMembers returns all members of a group
func (s *Service) ListMembers(ctx context.Context, groupName string) ([]*Member, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT group_name, username, is_owner
		FROM group_members
		WHERE group_name = $1
		ORDER BY username`,
		groupName,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list members: %w", err)
	}
	defer rows.Close()

	var members []*Member
	for rows.Next() {
		m := &Member{}
		if err := rows.Scan(&m.GroupName, &m.Username, &m.IsOwner); err != nil {
			return nil, fmt.Errorf("failed to scan member: %w", err)
		}
		members = append(members, m)
	}
	return members, rows.Err()
}

// MembershipsFor returns the names of all groups the user belongs to
func (s *Service) MembershipsFor(ctx context.Context, username string) ([]string, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT group_name FROM group_members WHERE username = $1 ORDER BY group_name",
		username,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve memberships: %w", err)
	}
	defer rows.Close()

	var memberships []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("failed to scan membership: %w", err)
		}
		memberships = append(memberships, name)
	}
	return memberships, rows.Err()
}

// IsOwner reports whether the user owns the group
func (s *Service) IsOwner(ctx context.Context, groupName, username string) (bool, error) {
	var isOwner bool
	err := s.db.QueryRowContext(ctx,
		"SELECT is_owner FROM group_members WHERE group_name = $1 AND username = $2",
		groupName, username,
	).Scan(&isOwner)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to check ownership: %w", err)
	}
	return isOwner, nil
}

// isUniqueViolation matches unique constraint errors from both drivers
func isUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	return strings.Contains(msg, "duplicate key") || strings.Contains(msg, "UNIQUE constraint")
}

// isForeignKeyViolation matches referential integrity errors from both drivers
func isForeignKeyViolation(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	return strings.Contains(msg, "foreign key") || strings.Contains(msg, "FOREIGN KEY")
}

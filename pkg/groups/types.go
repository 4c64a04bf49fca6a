package groups

import (
	"errors"
	"time"
)

// ErrNotFound is returned when a group does not exist
var ErrNotFound = errors.New("group not found")

// ErrDuplicate is returned when creating a group whose name is taken
var ErrDuplicate = errors.New("group already exists")

// Group is a named collection of users
type Group struct {
	Name        string    `json:"name"`
	Description string    `json:"description,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
}

// Member is one user's membership in a group. Owners may administer the
// group; plain members only confer its permissions.
type Member struct {
	GroupName string `json:"group_name"`
	Username  string `json:"username"`
	IsOwner   bool   `json:"is_owner"`
}

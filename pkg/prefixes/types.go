package prefixes

import (
	"errors"
	"fmt"
	"time"
)

var (
	// ErrNotFound indicates the prefix does not exist
	ErrNotFound = errors.New("prefix not found")
	// ErrDuplicate indicates the prefix name is already registered
	ErrDuplicate = errors.New("prefix already exists")
)

// MaxNameLength bounds prefix names
const MaxNameLength = 5

// Prefix is a registered object namespace
type Prefix struct {
	Name        string     `json:"prefix"`
	OwnerUser   string     `json:"owner_user"`
	OwnerGroup  string     `json:"owner_group"`
	Description string     `json:"description,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
	ExpiresAt   *time.Time `json:"expires_at,omitempty"`
	Counter     int64      `json:"counter"`
}

// Expired reports whether the prefix's registration lapsed before now
func (p *Prefix) Expired(now time.Time) bool {
	return p.ExpiresAt != nil && p.ExpiresAt.Before(now)
}

// ValidateName enforces the prefix naming rule: one to five characters,
// uppercase letters and digits only.
func ValidateName(name string) error {
	if len(name) == 0 || len(name) > MaxNameLength {
		return fmt.Errorf("prefix name must be 1-%d characters, got %q", MaxNameLength, name)
	}
	for _, c := range name {
		if (c < 'A' || c > 'Z') && (c < '0' || c > '9') {
			return fmt.Errorf("prefix name must be uppercase alphanumeric, got %q", name)
		}
	}
	return nil
}

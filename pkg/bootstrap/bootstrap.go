// Package bootstrap seeds the accounts, groups, and grants a fresh
// deployment needs. Initialization is explicit and idempotent: it runs
// once at process startup after migrations and is safe to rerun.
package bootstrap

import (
	"context"
	"errors"
	"fmt"

	"github.com/biocompute/bcodb/pkg/auth"
	"github.com/biocompute/bcodb/pkg/groups"
	"github.com/biocompute/bcodb/pkg/observability"
	"github.com/biocompute/bcodb/pkg/permissions"
	"github.com/biocompute/bcodb/pkg/prefixes"
)

// DefaultPrefix is the namespace registered out of the box
const DefaultPrefix = "BCO"

const (
	draftersGroup   = "bco_drafters"
	publishersGroup = "bco_publishers"
)

// Services bundles everything initialization writes through
type Services struct {
	Tokens   *auth.TokenService
	Groups   *groups.Service
	Prefixes *prefixes.Service
	Grants   *permissions.GrantStore
}

// Initialize seeds default users, groups, the BCO prefix, and its grants.
// Every step tolerates already-present state.
func Initialize(ctx context.Context, svc Services, logger *observability.Logger) error {
	for _, username := range []string{permissions.AnonUser, permissions.WheelUser} {
		if err := svc.Tokens.EnsureUser(ctx, username); err != nil {
			return err
		}
	}

	defaults := []groups.Group{
		{Name: permissions.WheelGroup, Description: "superusers"},
		{Name: permissions.PrefixAdminsGroup, Description: "prefix administrators"},
		{Name: draftersGroup, Description: "default draft writers"},
		{Name: publishersGroup, Description: "default publishers"},
	}
	for i := range defaults {
		err := svc.Groups.CreateGroup(ctx, &defaults[i])
		if err != nil && !errors.Is(err, groups.ErrDuplicate) {
			return fmt.Errorf("failed to seed group %s: %w", defaults[i].Name, err)
		}
	}

	if err := svc.Groups.AddMember(ctx, permissions.WheelGroup, permissions.WheelUser, true); err != nil {
		return fmt.Errorf("failed to seed wheel membership: %w", err)
	}

	err := svc.Prefixes.Create(ctx, &prefixes.Prefix{
		Name:        DefaultPrefix,
		OwnerUser:   permissions.WheelUser,
		OwnerGroup:  draftersGroup,
		Description: "default BioCompute namespace",
	})
	if err != nil && !errors.Is(err, prefixes.ErrDuplicate) {
		return fmt.Errorf("failed to seed prefix %s: %w", DefaultPrefix, err)
	}

	grants := []permissions.Grant{
		{GroupName: draftersGroup, Prefix: DefaultPrefix, Class: permissions.ClassDraft, Capability: permissions.CapabilityAdd},
		{GroupName: draftersGroup, Prefix: DefaultPrefix, Class: permissions.ClassDraft, Capability: permissions.CapabilityChange},
		{GroupName: draftersGroup, Prefix: DefaultPrefix, Class: permissions.ClassDraft, Capability: permissions.CapabilityDelete},
		{GroupName: draftersGroup, Prefix: DefaultPrefix, Class: permissions.ClassDraft, Capability: permissions.CapabilityView},
		{GroupName: publishersGroup, Prefix: DefaultPrefix, Class: permissions.ClassPublish, Capability: permissions.CapabilityAdd},
		{GroupName: publishersGroup, Prefix: DefaultPrefix, Class: permissions.ClassPublish, Capability: permissions.CapabilityView},
	}
	for _, g := range grants {
		if err := svc.Grants.GrantCapability(ctx, g); err != nil {
			return fmt.Errorf("failed to seed grant for %s: %w", g.GroupName, err)
		}
	}

	logger.WithField("prefix", DefaultPrefix).Info("bootstrap complete")
	return nil
}

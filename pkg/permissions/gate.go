package permissions

import (
	"context"
	"fmt"
)

// PrefixDirectory resolves prefix metadata for authorization decisions
type PrefixDirectory interface {
	// ResolveOwner returns the prefix's owner user, or found=false when the
	// prefix does not exist.
	ResolveOwner(ctx context.Context, name string) (ownerUser string, found bool, err error)
}

// Gate decides whether an identity may perform an action against a target
type Gate interface {
	Authorize(ctx context.Context, identity Identity, action Action, target Target) (Decision, error)
}

// StoreGate implements Gate against the grant store and prefix directory
type StoreGate struct {
	grants   *GrantStore
	prefixes PrefixDirectory
}

// NewStoreGate creates the production permission gate
func NewStoreGate(grants *GrantStore, prefixes PrefixDirectory) *StoreGate {
	return &StoreGate{grants: grants, prefixes: prefixes}
}

// Authorize applies the permission model. Errors are infrastructure faults
// only; a policy "no" is a Deny decision, not an error.
func (g *StoreGate) Authorize(ctx context.Context, identity Identity, action Action, target Target) (Decision, error) {
	if identity.IsSuperuser() {
		return Allow(), nil
	}

	if action.IsPrefixAdmin() {
		return g.authorizePrefixAdmin(ctx, identity, action, target)
	}
	return g.authorizeObjectAction(ctx, identity, action, target)
}

// authorizePrefixAdmin gates prefix create/modify/delete
func (g *StoreGate) authorizePrefixAdmin(ctx context.Context, identity Identity, action Action, target Target) (Decision, error) {
	if identity.IsAnonymous() {
		return Deny(ReasonInsufficientPermissions, "anonymous callers cannot administer prefixes"), nil
	}

	// Creation has no existing prefix to own; admins group only.
	if action == ActionPrefixCreate {
		if identity.IsMember(PrefixAdminsGroup) {
			return Allow(), nil
		}
		return Deny(ReasonInsufficientPermissions, "prefix creation requires "+PrefixAdminsGroup), nil
	}

	ownerUser, found, err := g.prefixes.ResolveOwner(ctx, target.Prefix)
	if err != nil {
		return Decision{}, fmt.Errorf("failed to resolve prefix %s: %w", target.Prefix, err)
	}
	if !found {
		return Deny(ReasonUnknownPrefix, target.Prefix), nil
	}

	if ownerUser == identity.Username || identity.IsMember(PrefixAdminsGroup) {
		return Allow(), nil
	}
	return Deny(ReasonInsufficientPermissions, "not prefix owner or admin"), nil
}

// authorizeObjectAction gates draft and publish actions
func (g *StoreGate) authorizeObjectAction(ctx context.Context, identity Identity, action Action, target Target) (Decision, error) {
	bound, ok := objectBindings[action]
	if !ok {
		return Decision{}, fmt.Errorf("unknown action: %s", action)
	}

	if identity.IsAnonymous() {
		return Deny(ReasonInsufficientPermissions, "anonymous callers hold view on published tables only"), nil
	}

	_, found, err := g.prefixes.ResolveOwner(ctx, target.Prefix)
	if err != nil {
		return Decision{}, fmt.Errorf("failed to resolve prefix %s: %w", target.Prefix, err)
	}
	if !found {
		return Deny(ReasonUnknownPrefix, target.Prefix), nil
	}

	// An object target without a resolved owning group is an object that
	// could not be found.
	if target.ObjectID != "" && target.OwnerGroup == "" {
		return Deny(ReasonUnknownObject, target.ObjectID), nil
	}

	if !identity.IsMember(target.OwnerGroup) {
		return Deny(ReasonNotInOwnerGroup, target.OwnerGroup), nil
	}

	held, err := g.grants.HasCapability(ctx, Grant{
		GroupName:  target.OwnerGroup,
		Prefix:     target.Prefix,
		Class:      bound.Class,
		Capability: bound.Capability,
	})
	if err != nil {
		return Decision{}, err
	}
	if !held {
		return Deny(ReasonInsufficientPermissions,
			fmt.Sprintf("%s lacks %s on %s %s", target.OwnerGroup, bound.Capability, target.Prefix, bound.Class)), nil
	}

	return Allow(), nil
}

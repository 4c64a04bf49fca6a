// Package permissions decides whether an identity may perform an action
// against a prefix namespace or a specific object.
//
// Draft and publish actions are bound at compile time to a (table class,
// capability) pair; the target object's owning group must hold that
// capability for the target prefix. Prefix administration actions require
// membership in the prefix_admins group or prefix ownership. The wheel
// superuser bypasses every check; the anonymous identity can only view
// published material.
//
// Every denial carries a structured reason so the bulk processor can map it
// to a per-item status without parsing error strings.
package permissions

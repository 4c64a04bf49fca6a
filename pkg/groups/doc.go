// Package groups manages groups and group memberships. A group has zero or
// more owners and members; membership is what the permission gate checks when
// deciding whether an identity may act on an object owned by a group.
package groups

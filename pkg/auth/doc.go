// Package auth issues API tokens and resolves inbound credentials into an
// identity the permission gate can reason about.
//
// Tokens are random values with a bco_ prefix; only their SHA-256 digest
// is stored. Requests without credentials resolve to the anonymous
// identity rather than being rejected, so read-only endpoints stay open.
package auth

// Package bulk processes batches of draft and publish lifecycle requests.
//
// Each batch item walks the same pipeline: authorize, resolve its object
// identifier, validate contents against the declared schema, then persist.
// Items are independent; one item's rejection never aborts its siblings,
// and each item is its own transaction boundary. A denied item never
// reaches the validator, and a validation failure never reaches the store.
//
// The batch response carries one entry per input item in input order. The
// aggregate status is the shared per-item status when outcomes are uniform
// and 207 Multi-Status when they are mixed.
package bulk

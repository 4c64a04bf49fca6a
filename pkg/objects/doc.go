// Package objects stores draft and published objects and owns the object
// identifier grammar.
//
// Identifiers name a prefix and a zero-padded sequence number, for example
// BCO_000042/DRAFT for the draft table or BCO_000042/3 for version 3 in
// the published table. Sequence numbers come from the prefix counter and
// versions from a per-lineage counter; neither is ever reused, so a
// published version that was deleted never reappears under a new publish.
package objects

// Package prefixes manages registered object namespaces.
//
// A prefix names a namespace (for example BCO or TEST), carries an owning
// user and group, and holds the monotonic counter that mints object
// sequence numbers. Counters only move forward; deleting objects never
// returns their numbers to the pool.
package prefixes

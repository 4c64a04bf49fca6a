// Package schema loads JSON Schema documents from a directory tree and
// validates payloads against them.
//
// # Loading
//
// The Store walks each configured root folder for files with a matching
// extension, parses them and assigns every document a synthetic identifier
// "file:" + its absolute path. Cross-document references are rewritten into
// absolute file: URIs so the underlying engine can resolve them from any
// position in the tree; same-document anchors ("#/...") are left untouched.
//
// Loaded documents are immutable and safe to share across concurrent
// requests. A filesystem watcher can invalidate and reload the store when a
// schema file changes on disk.
//
// # Validation
//
// The Validator applies draft-07 structural validation and returns every
// violation as a structured record. It never prints diagnostics and never
// returns a nil slice on success.
//
// # Related Packages
//
//   - pkg/bulk: validates batch item contents before any write
//   - pkg/api: serves the schema discovery tree
package schema

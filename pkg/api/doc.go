// Package api exposes the REST surface: bulk draft and publish endpoints,
// object retrieval, prefix and group administration, token management, and
// schema discovery. Handlers translate between HTTP and the domain
// packages; no business rules live here.
package api

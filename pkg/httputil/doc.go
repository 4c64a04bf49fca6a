// Package httputil provides HTTP handler utilities for consistent error
// handling, JSON encoding/decoding and request parsing, plus the request-ID
// and access-log middleware shared by all API routes.
package httputil

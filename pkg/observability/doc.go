// Package observability provides structured logging, Prometheus metrics and
// health reporting for the BCO database server.
//
// # Logging
//
// The Logger wraps stdlib slog with a JSON handler. Request-scoped values
// (request ID, username) travel on the context and are attached to every log
// line emitted through FromContext:
//
//	logger := observability.FromContext(r.Context())
//	logger.WithField("prefix", "BCO").Info("draft created")
//
// # Metrics
//
// Metrics records batch item outcomes, schema validations and permission
// denials. Register them once at startup:
//
//	metrics := observability.NewMetrics()
//	metrics.MustRegister(prometheus.DefaultRegisterer)
//
// # Related Packages
//
//   - pkg/api: installs the request-ID middleware and /metrics endpoint
//   - pkg/bulk: records per-item outcome metrics
package observability

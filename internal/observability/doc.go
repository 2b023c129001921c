// Package observability provides structured logging, Prometheus metrics,
// and OpenTelemetry tracing for concordd.
//
// Logging is built on log/slog with request/session/user/provider
// correlation pulled from context and automatic redaction of API keys,
// tokens, and passwords. Metrics track provider requests, tool executions,
// consensus turns, HTTP requests, and database queries. Tracing exports
// spans over OTLP/gRPC when an endpoint is configured, and degrades to a
// no-op tracer otherwise.
package observability

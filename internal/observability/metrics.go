package observability

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics is a centralized set of Prometheus collectors for concordd: LLM
// provider call latency and token usage, tool execution, consensus turns,
// HTTP request latency, and database query latency.
type Metrics struct {
	// ProviderRequestDuration measures one provider adapter call's latency.
	// Labels: provider (openai|grok|anthropic|deepseek), model.
	ProviderRequestDuration *prometheus.HistogramVec

	// ProviderRequestCounter counts provider adapter calls by outcome.
	// Labels: provider, model, status (success|error).
	ProviderRequestCounter *prometheus.CounterVec

	// ProviderTokensUsed tracks token consumption.
	// Labels: provider, model, type (prompt|completion).
	ProviderTokensUsed *prometheus.CounterVec

	// ToolExecutionDuration measures tool execution time in seconds.
	// Labels: tool_name.
	ToolExecutionDuration *prometheus.HistogramVec

	// ToolExecutionCounter counts tool invocations by outcome.
	// Labels: tool_name, status (success|error|denied).
	ToolExecutionCounter *prometheus.CounterVec

	// ConsensusTurnDuration measures one full generation, from
	// post_user_message to the terminal new_message event.
	ConsensusTurnDuration *prometheus.HistogramVec

	// ConsensusTurnCounter counts turns by outcome.
	// Labels: status (success|error|all_providers_failed).
	ConsensusTurnCounter *prometheus.CounterVec

	// ActiveSessions tracks the current number of sessions with at least
	// one subscriber on the realtime hub.
	ActiveSessions prometheus.Gauge

	// SessionQueueDepth tracks sessions currently holding a queued
	// generation behind an in-flight one.
	SessionQueueDepth prometheus.Gauge

	// HTTPRequestDuration measures HTTP API request latency.
	// Labels: method, path, status.
	HTTPRequestDuration *prometheus.HistogramVec

	// DatabaseQueryDuration measures database query latency.
	// Labels: operation (select|insert|update|delete), table.
	DatabaseQueryDuration *prometheus.HistogramVec

	// DatabaseQueryCounter counts database queries by outcome.
	DatabaseQueryCounter *prometheus.CounterVec

	// ErrorCounter tracks errors by component and error kind.
	// Labels: component, error_kind.
	ErrorCounter *prometheus.CounterVec
}

// NewMetrics creates and registers every collector with Prometheus's default
// registry. Call once at process startup.
func NewMetrics() *Metrics {
	return &Metrics{
		ProviderRequestDuration: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "concord_provider_request_duration_seconds",
				Help:    "Duration of LLM provider requests in seconds",
				Buckets: []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60},
			},
			[]string{"provider", "model"},
		),
		ProviderRequestCounter: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "concord_provider_requests_total",
				Help: "Total LLM provider requests by provider, model, and status",
			},
			[]string{"provider", "model", "status"},
		),
		ProviderTokensUsed: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "concord_provider_tokens_total",
				Help: "Total tokens used by provider, model, and type",
			},
			[]string{"provider", "model", "type"},
		),
		ToolExecutionDuration: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "concord_tool_execution_duration_seconds",
				Help:    "Duration of tool executions in seconds",
				Buckets: []float64{0.01, 0.05, 0.1, 0.5, 1, 5, 10, 30},
			},
			[]string{"tool_name"},
		),
		ToolExecutionCounter: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "concord_tool_executions_total",
				Help: "Total tool executions by tool name and status",
			},
			[]string{"tool_name", "status"},
		),
		ConsensusTurnDuration: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "concord_consensus_turn_duration_seconds",
				Help:    "Duration of a full consensus turn in seconds",
				Buckets: []float64{0.5, 1, 2, 5, 10, 20, 30, 60, 120},
			},
			[]string{"status"},
		),
		ConsensusTurnCounter: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "concord_consensus_turns_total",
				Help: "Total consensus turns by outcome",
			},
			[]string{"status"},
		),
		ActiveSessions: promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "concord_active_sessions",
				Help: "Current number of sessions with at least one realtime subscriber",
			},
		),
		SessionQueueDepth: promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "concord_session_queue_depth",
				Help: "Current number of sessions with a generation queued behind another",
			},
		),
		HTTPRequestDuration: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "concord_http_request_duration_seconds",
				Help:    "Duration of HTTP requests in seconds",
				Buckets: []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 5},
			},
			[]string{"method", "path", "status"},
		),
		DatabaseQueryDuration: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "concord_database_query_duration_seconds",
				Help:    "Duration of database queries in seconds",
				Buckets: []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 5},
			},
			[]string{"operation", "table"},
		),
		DatabaseQueryCounter: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "concord_database_queries_total",
				Help: "Total database queries by operation, table, and status",
			},
			[]string{"operation", "table", "status"},
		),
		ErrorCounter: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "concord_errors_total",
				Help: "Total errors by component and error kind",
			},
			[]string{"component", "error_kind"},
		),
	}
}

// RecordProviderRequest records one provider adapter call.
func (m *Metrics) RecordProviderRequest(provider, model, status string, durationSeconds float64, promptTokens, completionTokens int) {
	m.ProviderRequestCounter.WithLabelValues(provider, model, status).Inc()
	m.ProviderRequestDuration.WithLabelValues(provider, model).Observe(durationSeconds)
	if promptTokens > 0 {
		m.ProviderTokensUsed.WithLabelValues(provider, model, "prompt").Add(float64(promptTokens))
	}
	if completionTokens > 0 {
		m.ProviderTokensUsed.WithLabelValues(provider, model, "completion").Add(float64(completionTokens))
	}
}

// RecordToolExecution records one tool invocation.
func (m *Metrics) RecordToolExecution(toolName, status string, durationSeconds float64) {
	m.ToolExecutionCounter.WithLabelValues(toolName, status).Inc()
	m.ToolExecutionDuration.WithLabelValues(toolName).Observe(durationSeconds)
}

// RecordConsensusTurn records one completed generation.
func (m *Metrics) RecordConsensusTurn(status string, durationSeconds float64) {
	m.ConsensusTurnCounter.WithLabelValues(status).Inc()
	m.ConsensusTurnDuration.WithLabelValues(status).Observe(durationSeconds)
}

// RecordHTTPRequest records one HTTP request/response cycle.
func (m *Metrics) RecordHTTPRequest(method, path, status string, durationSeconds float64) {
	m.HTTPRequestDuration.WithLabelValues(method, path, status).Observe(durationSeconds)
}

// RecordDatabaseQuery records one database query.
func (m *Metrics) RecordDatabaseQuery(operation, table, status string, durationSeconds float64) {
	m.DatabaseQueryCounter.WithLabelValues(operation, table, status).Inc()
	m.DatabaseQueryDuration.WithLabelValues(operation, table).Observe(durationSeconds)
}

// RecordError increments the error counter for a component and error kind.
func (m *Metrics) RecordError(component, errorKind string) {
	m.ErrorCounter.WithLabelValues(component, errorKind).Inc()
}

// HTTPMiddleware records RecordHTTPRequest for every request that passes
// through it. Mirrors Logger.HTTPMiddleware's status-capturing approach so
// the two middlewares can be chained without either needing the other's
// internals.
func (m *Metrics) HTTPMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		sw := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(sw, r)
		m.RecordHTTPRequest(r.Method, r.URL.Path, strconv.Itoa(sw.status), time.Since(start).Seconds())
	})
}

package observability

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

// NewMetrics registers with the default Prometheus registry, so these tests
// exercise the recording methods against hand-built collectors instead of
// calling NewMetrics() directly, avoiding duplicate-registration panics
// across test runs.

func TestRecordProviderRequest(t *testing.T) {
	counter := prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "test_provider_requests_total", Help: "test"},
		[]string{"provider", "model", "status"},
	)
	duration := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{Name: "test_provider_request_duration_seconds", Help: "test"},
		[]string{"provider", "model"},
	)
	tokens := prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "test_provider_tokens_total", Help: "test"},
		[]string{"provider", "model", "type"},
	)
	m := &Metrics{ProviderRequestCounter: counter, ProviderRequestDuration: duration, ProviderTokensUsed: tokens}

	m.RecordProviderRequest("anthropic", "claude-opus-4", "success", 1.5, 100, 250)

	if got := testutil.ToFloat64(counter.WithLabelValues("anthropic", "claude-opus-4", "success")); got != 1 {
		t.Errorf("expected counter 1, got %v", got)
	}
	if got := testutil.ToFloat64(tokens.WithLabelValues("anthropic", "claude-opus-4", "completion")); got != 250 {
		t.Errorf("expected 250 completion tokens, got %v", got)
	}
}

func TestRecordToolExecution(t *testing.T) {
	counter := prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "test_tool_executions_total", Help: "test"},
		[]string{"tool_name", "status"},
	)
	duration := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{Name: "test_tool_execution_duration_seconds", Help: "test"},
		[]string{"tool_name"},
	)
	m := &Metrics{ToolExecutionCounter: counter, ToolExecutionDuration: duration}

	m.RecordToolExecution("drive_search", "success", 0.3)

	if got := testutil.ToFloat64(counter.WithLabelValues("drive_search", "success")); got != 1 {
		t.Errorf("expected counter 1, got %v", got)
	}
}

func TestRecordConsensusTurn(t *testing.T) {
	counter := prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "test_consensus_turns_total", Help: "test"},
		[]string{"status"},
	)
	duration := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{Name: "test_consensus_turn_duration_seconds", Help: "test"},
		[]string{"status"},
	)
	m := &Metrics{ConsensusTurnCounter: counter, ConsensusTurnDuration: duration}

	m.RecordConsensusTurn("success", 4.2)
	m.RecordConsensusTurn("error", 1.1)

	if got := testutil.ToFloat64(counter.WithLabelValues("success")); got != 1 {
		t.Errorf("expected success counter 1, got %v", got)
	}
	if got := testutil.ToFloat64(counter.WithLabelValues("error")); got != 1 {
		t.Errorf("expected error counter 1, got %v", got)
	}
}

func TestRecordError(t *testing.T) {
	counter := prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "test_errors_total", Help: "test"},
		[]string{"component", "error_kind"},
	)
	m := &Metrics{ErrorCounter: counter}

	m.RecordError("session", "all_providers_failed")

	if got := testutil.ToFloat64(counter.WithLabelValues("session", "all_providers_failed")); got != 1 {
		t.Errorf("expected counter 1, got %v", got)
	}
}

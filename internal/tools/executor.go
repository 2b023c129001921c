package tools

import (
	"context"
	"sync"
	"time"

	"github.com/concordhq/concord/internal/observability"
	"github.com/concordhq/concord/pkg/models"
)

// ExecutorConfig configures concurrency and per-call timeouts for the
// bounded worker pool.
type ExecutorConfig struct {
	// Concurrency is the maximum number of tool calls one
	// ExecuteConcurrently call runs at once. The limit is not shared:
	// concurrent ExecuteConcurrently calls, for the same user or not, each
	// get their own. Default: 4.
	Concurrency int

	// PerToolTimeout bounds one tool call's execution. Default: 30s.
	PerToolTimeout time.Duration
}

// DefaultExecutorConfig returns the default worker pool sizing.
func DefaultExecutorConfig() ExecutorConfig {
	return ExecutorConfig{Concurrency: 4, PerToolTimeout: 30 * time.Second}
}

// Executor runs tool calls concurrently against a Registry, bounding the
// concurrency of each ExecuteConcurrently call with a semaphore.
type Executor struct {
	registry *Registry
	config   ExecutorConfig
	metrics  *observability.Metrics
}

// NewExecutor creates an Executor bound to registry.
func NewExecutor(registry *Registry, config ExecutorConfig) *Executor {
	if config.Concurrency <= 0 {
		config.Concurrency = 4
	}
	if config.PerToolTimeout <= 0 {
		config.PerToolTimeout = 30 * time.Second
	}
	return &Executor{registry: registry, config: config}
}

// WithMetrics attaches m so every subsequent ExecuteConcurrently call
// records RecordToolExecution per call. Returns e for chaining at
// construction time.
func (e *Executor) WithMetrics(m *observability.Metrics) *Executor {
	e.metrics = m
	return e
}

// ExecResult pairs one tool call with its completed result, preserving the
// input's index so cross-model tool ordering can be reconstructed by the
// caller even though the underlying goroutines run unordered.
type ExecResult struct {
	Index    int
	ToolCall models.ToolCall
	Result   ToolResult
}

// ExecuteConcurrently runs calls on behalf of userID, one goroutine per
// call with at most ExecutorConfig.Concurrency executing at once, and
// returns results in the same order as calls regardless of completion
// order. A call that fails after its PerToolTimeout expires gets a result
// prefixed with "HandlerTimeout: ".
func (e *Executor) ExecuteConcurrently(ctx context.Context, userID string, calls []models.ToolCall) []ExecResult {
	results := make([]ExecResult, len(calls))
	sem := make(chan struct{}, e.config.Concurrency)
	var wg sync.WaitGroup

	for i, call := range calls {
		wg.Add(1)
		go func(idx int, tc models.ToolCall) {
			defer wg.Done()
			defer func() {
				if r := recover(); r != nil {
					results[idx] = ExecResult{Index: idx, ToolCall: tc, Result: ToolResult{Content: "tool panicked", IsError: true}}
				}
			}()

			select {
			case sem <- struct{}{}:
				defer func() { <-sem }()
			case <-ctx.Done():
				results[idx] = ExecResult{Index: idx, ToolCall: tc, Result: ToolResult{Content: "context canceled", IsError: true}}
				return
			}

			tool, ok := e.registry.Get(tc.Name)
			if !ok {
				results[idx] = ExecResult{Index: idx, ToolCall: tc, Result: ToolResult{Content: "tool not found: " + tc.Name, IsError: true}}
				e.recordExecution(tc.Name, "error", 0)
				return
			}
			if err := e.registry.Validate(tc.Name, tc.Arguments); err != nil {
				results[idx] = ExecResult{Index: idx, ToolCall: tc, Result: ToolResult{Content: err.Error(), IsError: true}}
				e.recordExecution(tc.Name, "denied", 0)
				return
			}

			callCtx, cancel := context.WithTimeout(ctx, e.config.PerToolTimeout)
			defer cancel()

			start := time.Now()
			res, err := tool.Execute(callCtx, userID, tc.Arguments)
			duration := time.Since(start).Seconds()
			if err != nil {
				content := err.Error()
				if callCtx.Err() == context.DeadlineExceeded {
					content = "HandlerTimeout: " + content
				}
				results[idx] = ExecResult{Index: idx, ToolCall: tc, Result: ToolResult{Content: content, IsError: true}}
				e.recordExecution(tc.Name, "error", duration)
				return
			}
			results[idx] = ExecResult{Index: idx, ToolCall: tc, Result: *res}
			status := "success"
			if res.IsError {
				status = "error"
			}
			e.recordExecution(tc.Name, status, duration)
		}(i, call)
	}

	wg.Wait()
	return results
}

func (e *Executor) recordExecution(toolName, status string, durationSeconds float64) {
	if e.metrics == nil {
		return
	}
	e.metrics.RecordToolExecution(toolName, status, durationSeconds)
}

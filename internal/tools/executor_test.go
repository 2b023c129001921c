package tools

import (
	"context"
	"encoding/json"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/concordhq/concord/pkg/models"
)

type testTool struct {
	name     string
	writes   bool
	execFunc func(ctx context.Context, userID string, params json.RawMessage) (*ToolResult, error)
}

func (m *testTool) Name() string            { return m.name }
func (m *testTool) Description() string     { return "test tool" }
func (m *testTool) Schema() json.RawMessage {
	return json.RawMessage(`{"type":"object","properties":{"x":{"type":"string"}},"required":["x"],"additionalProperties":false}`)
}
func (m *testTool) Writes() bool { return m.writes }
func (m *testTool) Execute(ctx context.Context, userID string, params json.RawMessage) (*ToolResult, error) {
	return m.execFunc(ctx, userID, params)
}

func TestRegistryRejectsInvalidSchema(t *testing.T) {
	r := NewRegistry()
	bad := &testTool{name: "bad"}
	bad.execFunc = func(context.Context, string, json.RawMessage) (*ToolResult, error) { return nil, nil }
	// Override Schema via an anonymous struct embedding would require a
	// second type; reuse testTool but corrupt via a second instance whose
	// Schema returns malformed JSON.
	badSchema := &brokenSchemaTool{testTool: *bad}
	if err := r.Register(badSchema); err == nil {
		t.Fatal("expected registration to fail for invalid schema")
	}
}

type brokenSchemaTool struct {
	testTool
}

func (b *brokenSchemaTool) Schema() json.RawMessage { return json.RawMessage(`{not json`) }

func TestRegistryValidateRejectsMissingRequired(t *testing.T) {
	r := NewRegistry()
	tool := &testTool{name: "echo", execFunc: func(context.Context, string, json.RawMessage) (*ToolResult, error) {
		return &ToolResult{Content: "ok"}, nil
	}}
	if err := r.Register(tool); err != nil {
		t.Fatalf("unexpected registration error: %v", err)
	}
	if err := r.Validate("echo", json.RawMessage(`{}`)); err == nil {
		t.Fatal("expected validation error for missing required field")
	}
	if err := r.Validate("echo", json.RawMessage(`{"x":"hi"}`)); err != nil {
		t.Fatalf("unexpected validation error: %v", err)
	}
}

func TestExecuteConcurrentlyRespectsConcurrencyLimit(t *testing.T) {
	const maxConcurrency = 2
	const numCalls = 6

	var concurrent, maxConcurrent int32
	var mu sync.Mutex

	r := NewRegistry()
	tool := &testTool{
		name: "blocking",
		execFunc: func(ctx context.Context, userID string, params json.RawMessage) (*ToolResult, error) {
			cur := atomic.AddInt32(&concurrent, 1)
			mu.Lock()
			if cur > maxConcurrent {
				maxConcurrent = cur
			}
			mu.Unlock()
			time.Sleep(30 * time.Millisecond)
			atomic.AddInt32(&concurrent, -1)
			return &ToolResult{Content: "done"}, nil
		},
	}
	if err := r.Register(tool); err != nil {
		t.Fatalf("register: %v", err)
	}

	exec := NewExecutor(r, ExecutorConfig{Concurrency: maxConcurrency, PerToolTimeout: time.Second})
	calls := make([]models.ToolCall, numCalls)
	for i := range calls {
		calls[i] = models.ToolCall{ID: string(rune('a' + i)), Name: "blocking", Arguments: json.RawMessage(`{"x":"hi"}`)}
	}

	results := exec.ExecuteConcurrently(context.Background(), "user-1", calls)
	if len(results) != numCalls {
		t.Fatalf("expected %d results, got %d", numCalls, len(results))
	}
	for i, res := range results {
		if res.Index != i {
			t.Errorf("result %d has index %d, order must match input", i, res.Index)
		}
		if res.Result.IsError {
			t.Errorf("unexpected error result at %d: %s", i, res.Result.Content)
		}
	}
	if maxConcurrent > maxConcurrency {
		t.Errorf("observed concurrency %d exceeds limit %d", maxConcurrent, maxConcurrency)
	}
}

func TestExecuteConcurrentlyReportsUnknownTool(t *testing.T) {
	r := NewRegistry()
	exec := NewExecutor(r, DefaultExecutorConfig())
	results := exec.ExecuteConcurrently(context.Background(), "user-1", []models.ToolCall{
		{ID: "1", Name: "missing", Arguments: json.RawMessage(`{}`)},
	})
	if !results[0].Result.IsError {
		t.Error("expected error result for unregistered tool")
	}
}

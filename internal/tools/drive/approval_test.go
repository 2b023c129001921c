package drive

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/concordhq/concord/internal/tools"
)

// countingTool records how many times Execute actually ran, so tests can
// assert a retried call did not repeat the underlying side effect.
type countingTool struct {
	name  string
	calls int
}

func (c *countingTool) Name() string            { return c.name }
func (c *countingTool) Description() string     { return "counts executions" }
func (c *countingTool) Schema() json.RawMessage { return json.RawMessage(`{"type":"object"}`) }
func (c *countingTool) Writes() bool            { return true }
func (c *countingTool) Execute(ctx context.Context, userID string, params json.RawMessage) (*tools.ToolResult, error) {
	c.calls++
	return &tools.ToolResult{Content: "did it"}, nil
}

func sessionOf(string) int64 { return 1 }

func TestApprovalGateRetryAfterApprovalDoesNotRepeatTheWrite(t *testing.T) {
	inner := &countingTool{name: "move_file"}
	store := NewMemoryApprovalStore()
	gate := NewApprovalGate(inner, store, true, sessionOf)

	params := json.RawMessage(`{"file_id":"abc","dest_parent_id":"xyz"}`)

	first, err := gate.Execute(context.Background(), "user-1", params)
	if err != nil {
		t.Fatalf("unexpected error creating approval: %v", err)
	}
	if inner.calls != 0 {
		t.Fatalf("expected no execution before approval, got %d calls", inner.calls)
	}

	var created struct {
		ID string `json:"id"`
	}
	decodeApprovalRequest(t, first.Content, &created)

	if _, err := store.Resolve(context.Background(), created.ID, true); err != nil {
		t.Fatalf("resolve: %v", err)
	}

	approved := json.RawMessage(`{"approval_id":"` + created.ID + `"}`)
	if _, err := gate.Execute(context.Background(), "user-1", approved); err != nil {
		t.Fatalf("unexpected error on approved execute: %v", err)
	}
	if inner.calls != 1 {
		t.Fatalf("expected exactly one execution after approval, got %d", inner.calls)
	}

	// A second, duplicated call against the same already-approved request
	// (e.g. a client retry after a cancelled response) must not repeat
	// the write: the idempotency marker from the first approved call
	// should short-circuit it.
	if _, err := gate.Execute(context.Background(), "user-1", approved); err != nil {
		t.Fatalf("unexpected error on retried execute: %v", err)
	}
	if inner.calls != 1 {
		t.Fatalf("expected retry to be deduped, got %d executions", inner.calls)
	}
}

func TestApprovalGateBypassIsStillIdempotentPerSession(t *testing.T) {
	inner := &countingTool{name: "delete_file"}
	store := NewMemoryApprovalStore()
	gate := NewApprovalGate(inner, store, false, sessionOf)

	params := json.RawMessage(`{"file_id":"abc"}`)

	if _, err := gate.Execute(context.Background(), "user-1", params); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := gate.Execute(context.Background(), "user-1", params); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if inner.calls != 1 {
		t.Fatalf("expected the retried identical call to be deduped, got %d executions", inner.calls)
	}
}

func decodeApprovalRequest(t *testing.T, content string, out any) {
	t.Helper()
	const prefix = "approval required: "
	if len(content) < len(prefix) {
		t.Fatalf("unexpected content: %q", content)
	}
	if err := json.Unmarshal([]byte(content[len(prefix):]), out); err != nil {
		t.Fatalf("decode approval request: %v", err)
	}
}

package drive

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/concordhq/concord/internal/tools"
	"github.com/concordhq/concord/pkg/models"
	"github.com/google/uuid"
)

// ApprovalStore persists and resolves ApprovalRequests. The in-memory
// implementation below is sufficient for a single-process deployment; a
// durable implementation can be swapped in behind the same interface.
type ApprovalStore interface {
	Create(ctx context.Context, req *models.ApprovalRequest) error
	Get(ctx context.Context, id string) (*models.ApprovalRequest, error)
	Resolve(ctx context.Context, id string, approve bool) (*models.ApprovalRequest, error)
}

// MemoryApprovalStore is an in-memory ApprovalStore, guarded by a mutex.
type MemoryApprovalStore struct {
	mu       sync.Mutex
	requests map[string]*models.ApprovalRequest
}

// NewMemoryApprovalStore creates an empty store.
func NewMemoryApprovalStore() *MemoryApprovalStore {
	return &MemoryApprovalStore{requests: make(map[string]*models.ApprovalRequest)}
}

func (s *MemoryApprovalStore) Create(ctx context.Context, req *models.ApprovalRequest) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.requests[req.ID] = req
	return nil
}

func (s *MemoryApprovalStore) Get(ctx context.Context, id string) (*models.ApprovalRequest, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	req, ok := s.requests[id]
	if !ok {
		return nil, fmt.Errorf("approval request not found: %s", id)
	}
	return req, nil
}

func (s *MemoryApprovalStore) Resolve(ctx context.Context, id string, approve bool) (*models.ApprovalRequest, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	req, ok := s.requests[id]
	if !ok {
		return nil, fmt.Errorf("approval request not found: %s", id)
	}
	if req.Terminal() {
		return nil, fmt.Errorf("approval request %s already resolved", id)
	}
	now := time.Now()
	if approve {
		req.Status = models.ApprovalApproved
	} else {
		req.Status = models.ApprovalRejected
	}
	req.ResolvedAt = &now
	return req, nil
}

// IdempotencyKey derives a stable key for a (tool, arguments, session)
// triple so a retried or duplicated tool call against the same approval
// doesn't re-execute a write twice. Arguments are re-marshaled with sorted
// keys before hashing so key order in the original JSON doesn't matter.
func IdempotencyKey(toolName string, arguments json.RawMessage, sessionID int64) string {
	var m map[string]any
	canonical := arguments
	if err := json.Unmarshal(arguments, &m); err == nil {
		keys := make([]string, 0, len(m))
		for k := range m {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		ordered := make(map[string]any, len(m))
		for _, k := range keys {
			ordered[k] = m[k]
		}
		if b, err := json.Marshal(ordered); err == nil {
			canonical = b
		}
	}
	h := sha256.New()
	fmt.Fprintf(h, "%s:%d:", toolName, sessionID)
	h.Write(canonical)
	return hex.EncodeToString(h.Sum(nil))
}

// markerState is the lifecycle of one idempotency-keyed write attempt.
type markerState int

const (
	markerInProgress markerState = iota
	markerCompleted
)

// pendingMarker records one write attempt under its IdempotencyKey. It is
// written before the side effect runs (markerInProgress) and updated with
// the outcome once the underlying tool returns (markerCompleted), so a
// retried call carrying the same key short-circuits to the cached result
// instead of running the write a second time.
type pendingMarker struct {
	state  markerState
	result *tools.ToolResult
	err    error
}

// ApprovalGate wraps a Facade-backed write tool so that, when required is
// true, the first call creates a pending ApprovalRequest and returns
// without executing; only a subsequent call carrying an already-approved
// request id executes the underlying tool. Once a request is approved,
// the actual side effect is keyed by IdempotencyKey and recorded in
// markers before it runs, so a call retried after a cancellation detects
// the prior attempt rather than repeating the write.
type ApprovalGate struct {
	inner     tools.Tool
	store     ApprovalStore
	sessionID func(userID string) int64
	required  bool
	ttl       time.Duration

	markersMu sync.Mutex
	markers   map[string]*pendingMarker
}

// NewApprovalGate wraps inner, a write-capable tool, behind approval_required
// gating. sessionIDOf resolves the session a given call belongs to, used
// for idempotency keys and scoping the ApprovalRequest.
func NewApprovalGate(inner tools.Tool, store ApprovalStore, required bool, sessionIDOf func(userID string) int64) *ApprovalGate {
	return &ApprovalGate{
		inner:     inner,
		store:     store,
		required:  required,
		sessionID: sessionIDOf,
		ttl:       15 * time.Minute,
		markers:   make(map[string]*pendingMarker),
	}
}

// executeOnce runs inner's side effect at most once for a given
// (tool, arguments, session) triple. A pending marker is recorded before
// the call, so a retry finds it instead of executing the write again: one
// that arrives while the first attempt is still in flight gets an error
// result saying so, and one that arrives after it completed gets the
// recorded outcome.
func (g *ApprovalGate) executeOnce(ctx context.Context, userID string, sessionID int64, arguments json.RawMessage) (*tools.ToolResult, error) {
	key := IdempotencyKey(g.inner.Name(), arguments, sessionID)

	g.markersMu.Lock()
	if m, ok := g.markers[key]; ok {
		g.markersMu.Unlock()
		if m.state == markerInProgress {
			return &tools.ToolResult{Content: "write already in progress", IsError: true}, nil
		}
		return m.result, m.err
	}
	g.markers[key] = &pendingMarker{state: markerInProgress}
	g.markersMu.Unlock()

	result, err := g.inner.Execute(ctx, userID, arguments)

	g.markersMu.Lock()
	g.markers[key] = &pendingMarker{state: markerCompleted, result: result, err: err}
	g.markersMu.Unlock()

	return result, err
}

func (g *ApprovalGate) Name() string            { return g.inner.Name() }
func (g *ApprovalGate) Description() string     { return g.inner.Description() }
func (g *ApprovalGate) Schema() json.RawMessage { return g.inner.Schema() }
func (g *ApprovalGate) Writes() bool            { return true }

// Execute consults the approval store before delegating to the wrapped
// tool. params must carry an "approval_id" referencing an already-approved
// request once APPROVAL_REQUIRED_FOR_WRITES is enabled; otherwise a fresh
// pending request is created and the call returns without side effects.
func (g *ApprovalGate) Execute(ctx context.Context, userID string, params json.RawMessage) (*tools.ToolResult, error) {
	if !g.required {
		return g.executeOnce(ctx, userID, g.sessionID(userID), params)
	}

	var withApproval struct {
		ApprovalID string `json:"approval_id"`
	}
	_ = json.Unmarshal(params, &withApproval)

	if withApproval.ApprovalID == "" {
		sessionID := g.sessionID(userID)
		req := &models.ApprovalRequest{
			ID:        uuid.NewString(),
			SessionID: sessionID,
			ToolName:  g.inner.Name(),
			Arguments: params,
			Status:    models.ApprovalPending,
			CreatedAt: time.Now(),
			ExpiresAt: time.Now().Add(g.ttl),
		}
		if err := g.store.Create(ctx, req); err != nil {
			return nil, err
		}
		b, _ := json.Marshal(req)
		return &tools.ToolResult{Content: "approval required: " + string(b)}, nil
	}

	req, err := g.store.Get(ctx, withApproval.ApprovalID)
	if err != nil {
		return nil, err
	}
	if req.Expire(time.Now()) {
		return &tools.ToolResult{Content: "approval request expired", IsError: true}, nil
	}
	switch req.Status {
	case models.ApprovalApproved:
		return g.executeOnce(ctx, userID, req.SessionID, req.Arguments)
	case models.ApprovalRejected:
		return &tools.ToolResult{Content: "write was rejected by the user", IsError: true}, nil
	default:
		return &tools.ToolResult{Content: "approval still pending", IsError: true}, nil
	}
}

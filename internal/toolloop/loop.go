// Package toolloop implements Concord's Tool Loop Driver: within a single
// adapter call, iterate provider -> tool execution -> provider until the
// model returns a final answer, an iteration cap trips, or the deadline
// expires.
package toolloop

import (
	"context"
	"time"

	"github.com/concordhq/concord/internal/providers"
	"github.com/concordhq/concord/internal/tools"
	"github.com/concordhq/concord/pkg/models"
)

// Phase is one state in the loop's state machine.
type Phase string

const (
	PhaseCalling   Phase = "calling"
	PhaseExecuting Phase = "executing"
	PhaseResuming  Phase = "resuming"
	PhaseFinalized Phase = "finalized"
	PhaseAborted   Phase = "aborted"
)

// Config bounds one loop run.
type Config struct {
	// MaxIterations caps the number of Calling/Executing round trips.
	// Default: 10.
	MaxIterations int

	// ToolTimeout bounds a single tool call's execution. Default: 30s.
	ToolTimeout time.Duration

	// Deadline, if non-zero, is an absolute wall-clock time after which the
	// loop aborts regardless of iteration count.
	Deadline time.Time
}

// DefaultConfig returns the default iteration cap and tool timeout.
func DefaultConfig() Config {
	return Config{MaxIterations: 10, ToolTimeout: 30 * time.Second}
}

// Loop drives a single adapter through repeated tool calls until it
// produces a final answer.
type Loop struct {
	adapter  providers.Adapter
	executor *tools.Executor
	registry *tools.Registry
	config   Config
}

// New builds a Loop bound to one adapter, the shared tool registry, and the
// executor that bounds per-user tool concurrency.
func New(adapter providers.Adapter, registry *tools.Registry, executor *tools.Executor, config Config) *Loop {
	if config.MaxIterations <= 0 {
		config.MaxIterations = 10
	}
	if config.ToolTimeout <= 0 {
		config.ToolTimeout = 30 * time.Second
	}
	return &Loop{adapter: adapter, executor: executor, registry: registry, config: config}
}

// Run iterates Calling -> Executing -> Resuming until the adapter returns
// final content (Finalized), the iteration cap or deadline trips (Aborted),
// or the context is cancelled.
func (l *Loop) Run(ctx context.Context, userID string, env providers.Envelope, toolDescs []providers.ToolDescriptor, cc providers.CompletionConfig) (*models.ModelResponse, Phase) {
	phase := PhaseCalling
	messages := append([]providers.Message(nil), env.Messages...)

	for iter := 0; iter < l.config.MaxIterations; iter++ {
		if !l.config.Deadline.IsZero() && time.Now().After(l.config.Deadline) {
			return l.aborted(messages, "deadline exceeded"), PhaseAborted
		}
		select {
		case <-ctx.Done():
			return l.aborted(messages, ctx.Err().Error()), PhaseAborted
		default:
		}

		phase = PhaseCalling
		resp, err := l.adapter.Generate(ctx, providers.Envelope{System: env.System, Messages: messages}, toolDescs, cc)
		if err != nil {
			return &models.ModelResponse{ModelID: cc.Model, Error: err.Error()}, PhaseAborted
		}

		if len(resp.ToolEvidence) == 0 {
			phase = PhaseFinalized
			return resp, phase
		}

		phase = PhaseExecuting
		pending := make([]models.ToolCall, len(resp.ToolEvidence))
		copy(pending, resp.ToolEvidence)

		toolCtx, cancelTools := context.WithTimeout(ctx, l.config.ToolTimeout)
		execResults := l.executor.ExecuteConcurrently(toolCtx, userID, pending)
		cancelTools()

		phase = PhaseResuming
		messages = append(messages, providers.Message{
			Role:      "assistant",
			Content:   resp.Content,
			ToolCalls: pending,
		})

		toolResults := make([]providers.ToolResultTurn, len(execResults))
		for i, r := range execResults {
			toolResults[i] = providers.ToolResultTurn{
				ToolCallID: r.ToolCall.ID,
				Content:    r.Result.Content,
				IsError:    r.Result.IsError,
			}
		}
		messages = append(messages, providers.Message{Role: "tool", ToolResults: toolResults})
	}

	return l.aborted(messages, "iteration cap exceeded"), PhaseAborted
}

// aborted synthesizes the terminal ModelResponse returned when the
// iteration cap or deadline trips: whatever content the loop accumulated,
// tagged with an IterationCapExceeded-style error.
func (l *Loop) aborted(messages []providers.Message, reason string) *models.ModelResponse {
	var last string
	for i := len(messages) - 1; i >= 0; i-- {
		if messages[i].Role == "assistant" && messages[i].Content != "" {
			last = messages[i].Content
			break
		}
	}
	return &models.ModelResponse{
		ModelID: string(l.adapter.Provider()),
		Content: last,
		Error:   "IterationCapExceeded: " + reason,
	}
}

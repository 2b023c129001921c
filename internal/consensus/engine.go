// Package consensus implements Concord's Consensus Engine: fan-out over
// selected models, gather with partial tolerance, and judge synthesis into
// a single ConsensusResult.
package consensus

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.opentelemetry.io/otel/trace"

	"github.com/concordhq/concord/internal/observability"
	"github.com/concordhq/concord/internal/providers"
	"github.com/concordhq/concord/internal/ratelimit"
	"github.com/concordhq/concord/internal/tools"
	"github.com/concordhq/concord/internal/toolloop"
	"github.com/concordhq/concord/pkg/models"
)

// ErrAllProvidersFailed is returned when every selected model's call failed.
var ErrAllProvidersFailed = errors.New("all providers failed")

// LoopFactory builds a toolloop.Loop bound to the adapter for one model
// call. Each call gets its own Loop instance since Loop carries per-run
// iteration state.
type LoopFactory func(adapter providers.Adapter) *toolloop.Loop

// Engine orchestrates fan-out, gather, and judge synthesis.
type Engine struct {
	registry    *providers.Registry
	toolReg     *tools.Registry
	loopFactory LoopFactory
	judge       *Judge
	metrics     *observability.Metrics
	tracer      *observability.Tracer
	providerRL  *ratelimit.Limiter
}

// New builds an Engine. loopFactory constructs a fresh toolloop.Loop for
// each fanned-out model call; judge performs synthesis once all calls
// complete.
func New(registry *providers.Registry, toolReg *tools.Registry, loopFactory LoopFactory, judge *Judge) *Engine {
	return &Engine{registry: registry, toolReg: toolReg, loopFactory: loopFactory, judge: judge}
}

// WithMetrics attaches m so Generate records RecordConsensusTurn and
// fanOut records RecordProviderRequest per model call. Returns e for
// chaining at construction time.
func (e *Engine) WithMetrics(m *observability.Metrics) *Engine {
	e.metrics = m
	return e
}

// WithTracer attaches t so fanOut emits a provider.<name> span around each
// model call. The enclosing consensus.turn span is started by the session
// coordinator, not by the engine. Returns e for chaining at construction
// time.
func (e *Engine) WithTracer(t *observability.Tracer) *Engine {
	e.tracer = t
	return e
}

// WithProviderRateLimiter attaches l so fanOut throttles outbound calls per
// provider (not per model: two models behind the same provider share a
// bucket) before ever reaching the adapter. A call denied by l fails its
// task with RateLimited rather than being sent. Returns e for chaining at
// construction time.
func (e *Engine) WithProviderRateLimiter(l *ratelimit.Limiter) *Engine {
	e.providerRL = l
	return e
}

// modelTask pairs one selected model with its resolved adapter.
type modelTask struct {
	modelID string
	adapter providers.Adapter
}

// Generate runs generate_consensus: fan out to every selected model, gather
// with partial tolerance, and (when more than one model was selected)
// synthesize via the judge. PerModel is keyed by the requested model id
// regardless of fan-out completion order.
func (e *Engine) Generate(ctx context.Context, userID string, env providers.Envelope, selectedModels []string, judgeModel string, deadline time.Time) (result *models.ConsensusResult, err error) {
	if len(selectedModels) == 0 {
		return nil, errors.New("at least one model must be selected")
	}

	turnStart := time.Now()
	defer func() {
		status := "success"
		if err != nil {
			status = "error"
			if errors.Is(err, ErrAllProvidersFailed) {
				status = "all_providers_failed"
			}
			if e.metrics != nil {
				e.metrics.RecordError("consensus.engine", status)
			}
		}
		e.recordTurn(status, time.Since(turnStart).Seconds())
	}()

	callCtx := ctx
	var cancel context.CancelFunc
	if !deadline.IsZero() {
		callCtx, cancel = context.WithDeadline(ctx, deadline)
		defer cancel()
	}

	tasks := make([]modelTask, 0, len(selectedModels))
	for _, modelID := range selectedModels {
		tag, err := e.registry.ProviderForModel(modelID)
		if err != nil {
			continue
		}
		adapter, err := e.registry.Get(tag)
		if err != nil {
			continue
		}
		tasks = append(tasks, modelTask{modelID: modelID, adapter: adapter})
	}

	responses := e.fanOut(callCtx, userID, env, tasks)

	perModel := make(map[string]models.ModelResponse, len(tasks))
	anySucceeded := false
	for i, t := range tasks {
		perModel[t.modelID] = responses[i]
		if !responses[i].Failed() {
			anySucceeded = true
		}
	}
	for _, modelID := range selectedModels {
		if _, resolved := perModel[modelID]; !resolved {
			perModel[modelID] = models.ModelResponse{ModelID: modelID, Error: "model not available"}
		}
	}
	if !anySucceeded {
		return nil, ErrAllProvidersFailed
	}

	if len(selectedModels) == 1 {
		resp := perModel[selectedModels[0]]
		return &models.ConsensusResult{
			FinalConsensus: resp.Content,
			Confidence:     clamp01(min(resp.Confidence, 0.9)),
			Reasoning:      resp.Reasoning,
			DebatePoints:   []string{},
			PerModel:       perModel,
		}, nil
	}

	return e.judge.Synthesize(callCtx, env, perModel, judgeModel)
}

// fanOut runs every task's tool loop concurrently and returns responses in
// tasks order, preserving selected-models order regardless of completion
// order.
func (e *Engine) fanOut(ctx context.Context, userID string, env providers.Envelope, tasks []modelTask) []models.ModelResponse {
	results := make([]models.ModelResponse, len(tasks))
	var wg sync.WaitGroup
	wg.Add(len(tasks))

	for i, task := range tasks {
		go func(idx int, t modelTask) {
			defer wg.Done()
			defer func() {
				if r := recover(); r != nil {
					results[idx] = models.ModelResponse{ModelID: t.modelID, Error: fmt.Sprintf("panic during generation: %v", r)}
				}
			}()

			if e.providerRL != nil {
				key := ratelimit.CompositeKey("provider", string(t.adapter.Provider()))
				if !e.providerRL.Allow(key) {
					results[idx] = models.ModelResponse{ModelID: t.modelID, Error: "RateLimited"}
					e.recordProviderRequest(string(t.adapter.Provider()), t.modelID, "rate_limited", 0)
					return
				}
			}

			var toolDescs []providers.ToolDescriptor
			if t.adapter.SupportsTools() {
				toolDescs = e.toolReg.Descriptors()
			}

			spanCtx := ctx
			if e.tracer != nil {
				var span trace.Span
				spanCtx, span = e.tracer.TraceProviderRequest(ctx, string(t.adapter.Provider()), t.modelID)
				defer span.End()
			}

			start := time.Now()
			loop := e.loopFactory(t.adapter)
			resp, phase := loop.Run(spanCtx, userID, env, toolDescs, providers.CompletionConfig{Model: t.modelID})
			resp.ModelID = t.modelID
			if phase == toolloop.PhaseAborted && resp.Error == "" {
				resp.Error = "Timeout"
			}
			status := "success"
			if resp.Failed() {
				status = "error"
			}
			e.recordProviderRequest(string(t.adapter.Provider()), t.modelID, status, time.Since(start).Seconds())
			results[idx] = *resp
		}(i, task)
	}

	wg.Wait()
	return results
}

func (e *Engine) recordProviderRequest(provider, model, status string, durationSeconds float64) {
	if e.metrics == nil {
		return
	}
	e.metrics.RecordProviderRequest(provider, model, status, durationSeconds, 0, 0)
}

func (e *Engine) recordTurn(status string, durationSeconds float64) {
	if e.metrics == nil {
		return
	}
	e.metrics.RecordConsensusTurn(status, durationSeconds)
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

func min(a, b float64) float64 {
	if a < b {
		return a
	}
	return b
}

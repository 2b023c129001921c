// Package session owns the live conversation for a user: session id
// parsing, single-writer enforcement per session, and the orchestration
// that turns one user message into a consensus turn delivered over the
// realtime hub.
package session

import (
	"context"
	"log/slog"
	"strconv"
	"strings"
	"sync"
	"time"

	"go.opentelemetry.io/otel/trace"

	"github.com/concordhq/concord/internal/apperr"
	ctxbuilder "github.com/concordhq/concord/internal/context"
	"github.com/concordhq/concord/internal/consensus"
	"github.com/concordhq/concord/internal/observability"
	"github.com/concordhq/concord/internal/providers"
	"github.com/concordhq/concord/internal/realtime"
	"github.com/concordhq/concord/internal/storage"
	"github.com/concordhq/concord/pkg/models"
)

const userVisibleFailureMessage = "I'm sorry, I encountered an error while processing your request. Please try again."

// titlePreviewChars bounds the auto-generated title for a newly created
// session to the first N characters of the triggering message.
const titlePreviewChars = 60

// Config tunes the coordinator's generation behavior.
type Config struct {
	// JudgeModel is the model id used to synthesize multi-model turns.
	JudgeModel string
	// GenerationTimeout bounds one post_user_message's whole async
	// generation, including every fanned-out provider call.
	GenerationTimeout time.Duration
	// DefaultContextWindow is used when no model-specific window is known.
	DefaultContextWindow int
}

func (c Config) withDefaults() Config {
	if c.GenerationTimeout <= 0 {
		c.GenerationTimeout = 90 * time.Second
	}
	if c.DefaultContextWindow <= 0 {
		c.DefaultContextWindow = 32000
	}
	return c
}

// Coordinator enforces invariant C1 (at most one generation in flight per
// session, depth-1 FIFO queue beyond that) and drives the full
// post_user_message pipeline: persist, build context, consensus-generate,
// persist the result, publish terminal events.
type Coordinator struct {
	stores storage.StoreSet
	engine *consensus.Engine
	hub    *realtime.Hub
	config Config
	logger *slog.Logger
	tracer *observability.Tracer

	mu    sync.Mutex
	locks map[int64]*sessionLock

	cancelMu sync.Mutex
	cancels  map[int64]context.CancelFunc
}

type sessionLock struct {
	busy    bool
	pending chan func()
}

// ErrSessionBusy is returned when a session already has one generation in
// flight and one already queued behind it.
var ErrSessionBusy = apperr.New(apperr.KindCapacity, "session", "a message is already queued for this session")

// New constructs a Coordinator.
func New(stores storage.StoreSet, engine *consensus.Engine, hub *realtime.Hub, config Config, logger *slog.Logger) *Coordinator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Coordinator{
		stores:  stores,
		engine:  engine,
		hub:     hub,
		config:  config.withDefaults(),
		logger:  logger,
		locks:   make(map[int64]*sessionLock),
		cancels: make(map[int64]context.CancelFunc),
	}
}

// WithTracer attaches t so runGeneration emits a consensus.turn span
// covering the full turn, from context assembly through the terminal
// event. Returns c for chaining at construction time.
func (c *Coordinator) WithTracer(t *observability.Tracer) *Coordinator {
	c.tracer = t
	return c
}

// PostMessageInput is the request shape for PostUserMessage.
type PostMessageInput struct {
	UserID          string
	SessionID       string // empty means "create a new session"
	Text            string
	AttachedFileIDs []string
	SelectedModels  []string
}

// Acknowledgement is returned synchronously; the generation itself
// completes asynchronously and is delivered over the realtime hub.
type Acknowledgement struct {
	SessionID      int64
	UserMessageID  string
	SessionCreated bool
}

// PostUserMessage resolves the target session (creating one if
// session_id_or_null is empty), persists the user's message, and schedules
// the consensus generation subject to the per-session single-writer queue.
func (c *Coordinator) PostUserMessage(ctx context.Context, in PostMessageInput) (Acknowledgement, error) {
	sessionID, created, err := c.resolveSession(ctx, in.UserID, in.SessionID, in.Text)
	if err != nil {
		return Acknowledgement{}, err
	}

	userMsg := &models.Message{
		SessionID: sessionID,
		Role:      models.RoleUser,
		Content:   in.Text,
		CreatedAt: time.Now(),
	}
	if err := c.stores.Messages.Append(ctx, userMsg); err != nil {
		return Acknowledgement{}, apperr.Wrap(apperr.KindFatal, "session", err, "failed to persist user message")
	}

	if err := c.schedule(sessionID, func() {
		c.runGeneration(sessionID, in)
	}); err != nil {
		return Acknowledgement{}, err
	}

	return Acknowledgement{
		SessionID:      sessionID,
		UserMessageID:  userMsg.ID,
		SessionCreated: created,
	}, nil
}

func (c *Coordinator) resolveSession(ctx context.Context, userID, rawSessionID, text string) (int64, bool, error) {
	if strings.TrimSpace(rawSessionID) == "" {
		newSession := &models.ChatSession{
			UserID:    userID,
			Title:     deriveTitle(text),
			CreatedAt: time.Now(),
			UpdatedAt: time.Now(),
		}
		if err := c.stores.Sessions.Create(ctx, newSession); err != nil {
			return 0, false, apperr.Wrap(apperr.KindFatal, "session", err, "failed to create session")
		}
		c.hub.Publish(newSession.ID, models.EventSessionCreated, models.SessionCreatedPayload{
			SessionID: newSession.ID,
			Title:     newSession.Title,
		})
		return newSession.ID, true, nil
	}

	sessionID, err := ParseID(rawSessionID)
	if err != nil {
		return 0, false, err
	}

	existing, err := c.stores.Sessions.Get(ctx, sessionID)
	if err == storage.ErrNotFound {
		return 0, false, apperr.New(apperr.KindValidation, "session", "session not found")
	}
	if err != nil {
		return 0, false, apperr.Wrap(apperr.KindFatal, "session", err, "failed to load session")
	}
	if existing.UserID != userID {
		return 0, false, apperr.New(apperr.KindAuth, "session", "session does not belong to this user")
	}
	return sessionID, false, nil
}

func deriveTitle(text string) string {
	trimmed := strings.TrimSpace(text)
	runes := []rune(trimmed)
	if len(runes) <= titlePreviewChars {
		return trimmed
	}
	return string(runes[:titlePreviewChars])
}

// schedule enforces C1. If the session has no generation in flight, task
// runs immediately in a new goroutine. If one is in flight and nothing is
// queued yet, task is queued and runs immediately after. If one is already
// queued, ErrSessionBusy is returned and task is discarded.
func (c *Coordinator) schedule(sessionID int64, task func()) error {
	c.mu.Lock()
	lock, ok := c.locks[sessionID]
	if !ok {
		lock = &sessionLock{pending: make(chan func(), 1)}
		c.locks[sessionID] = lock
	}

	if !lock.busy {
		lock.busy = true
		c.mu.Unlock()
		go c.drain(sessionID, lock, task)
		return nil
	}

	select {
	case lock.pending <- task:
		c.mu.Unlock()
		return nil
	default:
		c.mu.Unlock()
		return ErrSessionBusy
	}
}

func (c *Coordinator) drain(sessionID int64, lock *sessionLock, task func()) {
	for task != nil {
		task()

		c.mu.Lock()
		select {
		case next := <-lock.pending:
			task = next
			c.mu.Unlock()
		default:
			lock.busy = false
			delete(c.locks, sessionID)
			c.mu.Unlock()
			task = nil
		}
	}
}

// Subscribe joins a client to a session's delivery room.
func (c *Coordinator) Subscribe(sessionID int64) (<-chan models.DeliveryEvent, func()) {
	return c.hub.Subscribe(sessionID)
}

// SubscriberCount reports the current number of clients subscribed to
// sessionID's room.
func (c *Coordinator) SubscriberCount(sessionID int64) int {
	return c.hub.SubscriberCount(sessionID)
}

// Cancel aborts any in-flight generation for sessionID. A no-op if nothing
// is running.
func (c *Coordinator) Cancel(sessionID int64) {
	c.cancelMu.Lock()
	cancel, ok := c.cancels[sessionID]
	c.cancelMu.Unlock()
	if ok {
		cancel()
	}
}

// runGeneration executes one full turn: build context, fan out to the
// consensus engine, persist the result, and publish the terminal event.
// It owns its own background context rather than the request's, since it
// outlives the HTTP/WS call that triggered it.
func (c *Coordinator) runGeneration(sessionID int64, in PostMessageInput) {
	ctx, cancel := context.WithTimeout(context.Background(), c.config.GenerationTimeout)
	if c.tracer != nil {
		var span trace.Span
		ctx, span = c.tracer.TraceConsensusTurn(ctx, strconv.FormatInt(sessionID, 10))
		defer span.End()
	}
	c.cancelMu.Lock()
	c.cancels[sessionID] = cancel
	c.cancelMu.Unlock()
	defer func() {
		cancel()
		c.cancelMu.Lock()
		delete(c.cancels, sessionID)
		c.cancelMu.Unlock()
	}()

	c.hub.Publish(sessionID, models.EventProcessingStatus, models.ProcessingStatusPayload{Stage: "analyzing"})

	envelope, err := c.buildEnvelope(ctx, sessionID, in)
	if err != nil {
		c.fail(sessionID, "context_build_failed", err)
		return
	}

	c.hub.Publish(sessionID, models.EventProcessingStatus, models.ProcessingStatusPayload{Stage: "consensus"})

	result, err := c.engine.Generate(ctx, in.UserID, envelope, in.SelectedModels, c.config.JudgeModel, time.Now().Add(c.config.GenerationTimeout))
	if err != nil {
		c.fail(sessionID, "consensus_generation_failed", err)
		return
	}

	c.hub.Publish(sessionID, models.EventProcessingStatus, models.ProcessingStatusPayload{Stage: "finalizing"})

	assistantMsg := &models.Message{
		SessionID:     sessionID,
		Role:          models.RoleAssistant,
		Content:       result.FinalConsensus,
		ModelUsed:     modelUsedSummary(in.SelectedModels),
		ConsensusData: result,
		CreatedAt:     time.Now(),
	}
	if err := c.stores.Messages.Append(ctx, assistantMsg); err != nil {
		c.logger.Error("failed to persist assistant message", "session_id", sessionID, "error", err)
	}
	if err := c.stores.Sessions.Touch(ctx, sessionID); err != nil {
		c.logger.Error("failed to touch session", "session_id", sessionID, "error", err)
	}

	c.hub.Publish(sessionID, models.EventNewMessage, models.NewMessagePayload{
		Role:          models.RoleAssistant,
		Content:       assistantMsg.Content,
		ModelUsed:     assistantMsg.ModelUsed,
		ConsensusData: result,
	})
}

// buildEnvelope assembles the Context Builder input. If loading the
// knowledge-base files fails, it degrades gracefully by dropping the KB
// section and proceeding with attached files and history only.
func (c *Coordinator) buildEnvelope(ctx context.Context, sessionID int64, in PostMessageInput) (providers.Envelope, error) {
	history, err := c.stores.Messages.ListBySession(ctx, sessionID, 0)
	if err != nil {
		return providers.Envelope{}, apperr.Wrap(apperr.KindFatal, "session", err, "failed to load session history")
	}

	attached := make([]models.File, 0, len(in.AttachedFileIDs))
	for _, id := range in.AttachedFileIDs {
		file, err := c.stores.Files.Get(ctx, id)
		if err != nil {
			c.logger.Warn("attached file unavailable, skipping", "file_id", id, "error", err)
			continue
		}
		attached = append(attached, *file)
	}

	kb, err := c.stores.Files.ListByOwner(ctx, in.UserID)
	if err != nil {
		c.logger.Warn("knowledge base unavailable, degrading to attached files only", "user_id", in.UserID, "error", err)
		kb = nil
	}

	return ctxbuilder.Build(ctxbuilder.BuildInput{
		History:       history,
		UserMessage:   in.Text,
		AttachedFiles: attached,
		KnowledgeBase: kb,
		ContextWindow: c.config.DefaultContextWindow,
	}), nil
}

func (c *Coordinator) fail(sessionID int64, code string, err error) {
	c.logger.Error("generation failed", "session_id", sessionID, "code", code, "error", err)

	c.hub.Publish(sessionID, models.EventError, models.ErrorPayload{Code: code, Message: err.Error()})

	failureMsg := &models.Message{
		SessionID: sessionID,
		Role:      models.RoleAssistant,
		Content:   userVisibleFailureMessage,
		CreatedAt: time.Now(),
	}
	if persistErr := c.stores.Messages.Append(context.Background(), failureMsg); persistErr != nil {
		c.logger.Error("failed to persist failure message", "session_id", sessionID, "error", persistErr)
	}

	c.hub.Publish(sessionID, models.EventNewMessage, models.NewMessagePayload{
		Role:    models.RoleAssistant,
		Content: userVisibleFailureMessage,
	})
}

func modelUsedSummary(selected []string) string {
	if len(selected) == 1 {
		return selected[0]
	}
	return "consensus:" + strings.Join(selected, ",")
}

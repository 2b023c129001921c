package httpapi

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/santhosh-tekuri/jsonschema/v5"

	"github.com/concordhq/concord/internal/session"
	"github.com/concordhq/concord/pkg/models"
)

const (
	wsMaxPayloadBytes = 1 << 20
	wsPongWait        = 45 * time.Second
	wsPingInterval    = 20 * time.Second
	wsWriteWait       = 10 * time.Second
	wsSendBuffer      = 64
)

// wsFrame is the inbound frame shape: {type, id, method, params}, with
// two supported inbound methods: join and send_message.
type wsFrame struct {
	Type   string          `json:"type"`
	ID     string          `json:"id,omitempty"`
	Method string          `json:"method"`
	Params json.RawMessage `json:"params,omitempty"`
}

type wsJoinParams struct {
	SessionID json.RawMessage `json:"session_id"`
}

type wsSendMessageParams struct {
	SessionID       json.RawMessage `json:"session_id,omitempty"`
	Message         string          `json:"message"`
	Token           string          `json:"token"`
	AttachedFileIDs []string        `json:"attached_file_ids,omitempty"`
	UseConsensus    *bool           `json:"use_consensus,omitempty"`
	SelectedModels  []string        `json:"selected_models,omitempty"`
	UserName        string          `json:"user_name,omitempty"`
}

const wsJoinParamsSchema = `{
  "type": "object",
  "required": ["session_id"],
  "properties": {
    "session_id": { "type": ["string", "integer"] }
  },
  "additionalProperties": false
}`

const wsSendMessageParamsSchema = `{
  "type": "object",
  "required": ["message", "token"],
  "properties": {
    "session_id": { "type": ["string", "integer", "null"] },
    "message": { "type": "string", "minLength": 1 },
    "token": { "type": "string", "minLength": 1 },
    "attached_file_ids": { "type": "array", "items": { "type": "string" } },
    "use_consensus": { "type": "boolean" },
    "selected_models": { "type": "array", "items": { "type": "string" } },
    "user_name": { "type": "string" }
  },
  "additionalProperties": false
}`

var wsSchemas struct {
	once sync.Once
	err  error
	join *jsonschema.Schema
	send *jsonschema.Schema
}

func compileWSSchemas() error {
	wsSchemas.once.Do(func() {
		join, err := jsonschema.CompileString("ws_join", wsJoinParamsSchema)
		if err != nil {
			wsSchemas.err = err
			return
		}
		send, err := jsonschema.CompileString("ws_send_message", wsSendMessageParamsSchema)
		if err != nil {
			wsSchemas.err = err
			return
		}
		wsSchemas.join = join
		wsSchemas.send = send
	})
	return wsSchemas.err
}

func validateWSParams(schema *jsonschema.Schema, raw json.RawMessage) error {
	var payload any
	if len(raw) == 0 {
		payload = map[string]any{}
	} else if err := json.Unmarshal(raw, &payload); err != nil {
		return err
	}
	return schema.Validate(payload)
}

// wsHandler upgrades HTTP connections to the real-time pub/sub channel
// used for session join notifications and message delivery.
type wsHandler struct {
	deps     Deps
	upgrader websocket.Upgrader
}

func newWSHandler(deps Deps) *wsHandler {
	return &wsHandler{
		deps: deps,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  8192,
			WriteBufferSize: 8192,
			CheckOrigin:     func(*http.Request) bool { return true },
		},
	}
}

func (h *wsHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if err := compileWSSchemas(); err != nil {
		http.Error(w, "ws schemas failed to compile", http.StatusInternalServerError)
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}

	ctx, cancel := context.WithCancel(context.Background())
	sess := &wsClientSession{
		id:     uuid.NewString(),
		deps:   h.deps,
		conn:   conn,
		send:   make(chan []byte, wsSendBuffer),
		ctx:    ctx,
		cancel: cancel,
	}
	sess.run()
}

// wsClientSession is one connected client. It may join at most one session
// room at a time; joining a new one releases the previous subscription.
type wsClientSession struct {
	id     string
	deps   Deps
	conn   *websocket.Conn
	send   chan []byte
	ctx    context.Context
	cancel context.CancelFunc

	mu           sync.Mutex
	unsubscribe  func()
	subscribedTo int64
}

func (s *wsClientSession) run() {
	defer s.close()
	go s.writeLoop()
	s.readLoop()
}

func (s *wsClientSession) close() {
	s.cancel()
	s.mu.Lock()
	if s.unsubscribe != nil {
		s.unsubscribe()
		s.unsubscribe = nil
	}
	s.mu.Unlock()
	close(s.send)
	_ = s.conn.Close()
}

func (s *wsClientSession) readLoop() {
	s.conn.SetReadLimit(wsMaxPayloadBytes)
	_ = s.conn.SetReadDeadline(time.Now().Add(wsPongWait))
	s.conn.SetPongHandler(func(string) error {
		return s.conn.SetReadDeadline(time.Now().Add(wsPongWait))
	})

	for {
		messageType, data, err := s.conn.ReadMessage()
		if err != nil {
			return
		}
		if messageType != websocket.TextMessage {
			continue
		}

		var frame wsFrame
		if err := json.Unmarshal(data, &frame); err != nil {
			s.sendError("", "InvalidFrame", err.Error())
			continue
		}

		switch frame.Method {
		case "join":
			s.handleJoin(frame)
		case "send_message":
			s.handleSendMessage(frame)
		default:
			s.sendError(frame.ID, "UnknownMethod", fmt.Sprintf("unknown method %q", frame.Method))
		}
	}
}

func (s *wsClientSession) writeLoop() {
	ticker := time.NewTicker(wsPingInterval)
	defer ticker.Stop()
	for {
		select {
		case <-s.ctx.Done():
			return
		case <-ticker.C:
			_ = s.conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
			if err := s.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case msg, ok := <-s.send:
			if !ok {
				return
			}
			_ = s.conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
			if err := s.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				return
			}
		}
	}
}

func (s *wsClientSession) handleJoin(frame wsFrame) {
	if err := validateWSParams(wsSchemas.join, frame.Params); err != nil {
		s.sendError(frame.ID, "ArgumentInvalid", err.Error())
		return
	}
	var params wsJoinParams
	_ = json.Unmarshal(frame.Params, &params)

	rawID, err := rawWireValueToString(params.SessionID)
	if err != nil {
		s.sendError(frame.ID, "InvalidSessionId", err.Error())
		return
	}
	sessionID, err := session.ParseID(rawID)
	if err != nil {
		s.sendError(frame.ID, "InvalidSessionId", err.Error())
		return
	}

	ch, cancel := s.deps.Coordinator.Subscribe(sessionID)

	s.mu.Lock()
	if s.unsubscribe != nil {
		s.unsubscribe()
	}
	s.unsubscribe = cancel
	s.subscribedTo = sessionID
	s.mu.Unlock()

	go s.relay(ch)

	s.enqueue(map[string]any{"type": "joined", "id": frame.ID, "session_id": rawID})
}

// relay forwards every event published to a session's room, until the
// channel closes (on unsubscribe) or the client disconnects.
func (s *wsClientSession) relay(ch <-chan models.DeliveryEvent) {
	for {
		select {
		case <-s.ctx.Done():
			return
		case event, ok := <-ch:
			if !ok {
				return
			}
			s.enqueue(event)
		}
	}
}

func (s *wsClientSession) handleSendMessage(frame wsFrame) {
	if err := validateWSParams(wsSchemas.send, frame.Params); err != nil {
		s.sendError(frame.ID, "ArgumentInvalid", err.Error())
		return
	}
	var params wsSendMessageParams
	if err := json.Unmarshal(frame.Params, &params); err != nil {
		s.sendError(frame.ID, "ArgumentInvalid", err.Error())
		return
	}

	user, err := s.authenticate(params.Token)
	if err != nil {
		s.sendError(frame.ID, "Unauthorized", "invalid token")
		return
	}

	var rawSessionID string
	if len(params.SessionID) > 0 && string(params.SessionID) != "null" {
		rawSessionID, err = rawWireValueToString(params.SessionID)
		if err != nil {
			s.sendError(frame.ID, "InvalidSessionId", err.Error())
			return
		}
	}

	ack, err := s.deps.Coordinator.PostUserMessage(s.ctx, session.PostMessageInput{
		UserID:          user.ID,
		SessionID:       rawSessionID,
		Text:            params.Message,
		AttachedFileIDs: params.AttachedFileIDs,
		SelectedModels:  params.SelectedModels,
	})
	if err != nil {
		s.sendError(frame.ID, "RequestFailed", err.Error())
		return
	}

	s.mu.Lock()
	alreadyJoined := s.subscribedTo == ack.SessionID && s.unsubscribe != nil
	s.mu.Unlock()
	if !alreadyJoined {
		ch, cancel := s.deps.Coordinator.Subscribe(ack.SessionID)
		s.mu.Lock()
		if s.unsubscribe != nil {
			s.unsubscribe()
		}
		s.unsubscribe = cancel
		s.subscribedTo = ack.SessionID
		s.mu.Unlock()
		go s.relay(ch)
	}

	s.enqueue(map[string]any{
		"type":            "accepted",
		"id":              frame.ID,
		"session_id":      ack.SessionID,
		"user_message_id": ack.UserMessageID,
		"session_created": ack.SessionCreated,
	})
}

func (s *wsClientSession) authenticate(token string) (*models.User, error) {
	if user, err := s.deps.Auth.ValidateJWT(token); err == nil {
		return user, nil
	}
	if user, err := s.deps.Auth.ValidateAPIKey(token); err == nil {
		return user, nil
	}
	return nil, fmt.Errorf("invalid credentials")
}

func (s *wsClientSession) sendError(id, code, message string) {
	s.enqueue(map[string]any{
		"type":    "error",
		"id":      id,
		"code":    code,
		"message": message,
	})
}

func (s *wsClientSession) enqueue(v any) {
	data, err := json.Marshal(v)
	if err != nil {
		return
	}
	select {
	case s.send <- data:
	default:
	}
}

func rawWireValueToString(raw json.RawMessage) (string, error) {
	if len(raw) == 0 {
		return "", fmt.Errorf("session id is required")
	}
	if string(raw) == "null" {
		return "", fmt.Errorf("session id must be a string or number, not null")
	}
	var asString string
	if err := json.Unmarshal(raw, &asString); err == nil {
		return asString, nil
	}
	var asNumber json.Number
	if err := json.Unmarshal(raw, &asNumber); err == nil {
		return asNumber.String(), nil
	}
	return "", fmt.Errorf("session id must be a string or number")
}

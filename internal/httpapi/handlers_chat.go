package httpapi

import (
	"encoding/json"
	"net/http"
	"strconv"
	"strings"

	"github.com/concordhq/concord/internal/apperr"
	"github.com/concordhq/concord/internal/auth"
	"github.com/concordhq/concord/internal/session"
)

type postMessageRequest struct {
	SessionID       string   `json:"session_id,omitempty"`
	Message         string   `json:"message"`
	AttachedFileIDs []string `json:"attached_file_ids,omitempty"`
	SelectedModels  []string `json:"selected_models,omitempty"`
}

type postMessageResponse struct {
	SessionID      string `json:"session_id"`
	UserMessageID  string `json:"user_message_id"`
	SessionCreated bool   `json:"session_created"`
}

// postMessage is the HTTP fallback for posting a user message; the
// primary path is the WebSocket send_message event (§4.7).
func (h *handlers) postMessage(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "Validation", "method not allowed")
		return
	}
	user, ok := auth.UserFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "Unauthorized", "no authenticated user")
		return
	}
	if h.rateLimited(w, r, "user:"+user.ID) {
		return
	}

	var req postMessageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "ArgumentInvalid", "malformed request body")
		return
	}
	if strings.TrimSpace(req.Message) == "" {
		writeError(w, http.StatusBadRequest, "ArgumentInvalid", "message is required")
		return
	}

	ack, err := h.deps.Coordinator.PostUserMessage(r.Context(), session.PostMessageInput{
		UserID:          user.ID,
		SessionID:       req.SessionID,
		Text:            req.Message,
		AttachedFileIDs: req.AttachedFileIDs,
		SelectedModels:  req.SelectedModels,
	})
	if err != nil {
		writeAppError(w, err)
		return
	}

	writeJSON(w, http.StatusAccepted, postMessageResponse{
		SessionID:      strconv.FormatInt(ack.SessionID, 10),
		UserMessageID:  ack.UserMessageID,
		SessionCreated: ack.SessionCreated,
	})
}

// listSessions lists the authenticated user's sessions, newest first.
func (h *handlers) listSessions(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "Validation", "method not allowed")
		return
	}
	user, ok := auth.UserFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "Unauthorized", "no authenticated user")
		return
	}

	limit := queryInt(r, "limit", 50)
	offset := queryInt(r, "offset", 0)

	sessions, err := h.deps.Stores.Sessions.ListByUser(r.Context(), user.ID, limit, offset)
	if err != nil {
		writeAppError(w, apperr.Wrap(apperr.KindFatal, "httpapi.chat", err, "failed to list sessions"))
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"sessions": sessions})
}

// sessionMessages handles GET /api/chat/sessions/{id}/messages.
func (h *handlers) sessionMessages(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "Validation", "method not allowed")
		return
	}
	user, ok := auth.UserFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "Unauthorized", "no authenticated user")
		return
	}

	rest := strings.TrimPrefix(r.URL.Path, "/api/chat/sessions/")
	parts := strings.Split(strings.Trim(rest, "/"), "/")
	if len(parts) != 2 || parts[1] != "messages" {
		writeError(w, http.StatusNotFound, "NotFound", "unknown route")
		return
	}

	sessionID, err := session.ParseID(parts[0])
	if err != nil {
		writeAppError(w, err)
		return
	}

	owned, err := h.deps.Stores.Sessions.Get(r.Context(), sessionID)
	if err != nil {
		writeAppError(w, apperr.Wrap(apperr.KindValidation, "httpapi.chat", err, "session not found"))
		return
	}
	if owned.UserID != user.ID {
		writeError(w, http.StatusForbidden, "Forbidden", "session does not belong to this user")
		return
	}

	limit := queryInt(r, "limit", 0)
	messages, err := h.deps.Stores.Messages.ListBySession(r.Context(), sessionID, limit)
	if err != nil {
		writeAppError(w, apperr.Wrap(apperr.KindFatal, "httpapi.chat", err, "failed to load messages"))
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"messages": messages})
}

func queryInt(r *http.Request, key string, def int) int {
	raw := r.URL.Query().Get(key)
	if raw == "" {
		return def
	}
	v, err := strconv.Atoi(raw)
	if err != nil || v < 0 {
		return def
	}
	return v
}

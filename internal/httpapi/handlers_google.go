package httpapi

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/concordhq/concord/internal/apperr"
	"github.com/concordhq/concord/internal/auth"
)

// googleCallback completes the Drive OAuth handshake and exchanges the
// resulting identity for a Concord JWT, mirroring the generic OAuth flow
// in internal/auth but bound to the "google" provider name.
func (h *handlers) googleCallback(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "Validation", "method not allowed")
		return
	}
	if h.deps.GoogleOAuth == nil {
		writeError(w, http.StatusServiceUnavailable, "ProviderUnavailable", "google oauth is not configured")
		return
	}

	code := r.URL.Query().Get("code")
	if strings.TrimSpace(code) == "" {
		writeError(w, http.StatusBadRequest, "ArgumentInvalid", "missing authorization code")
		return
	}

	result, err := h.deps.Auth.HandleCallback(r.Context(), "google", code)
	if err != nil {
		writeAppError(w, apperr.Wrap(apperr.KindAuth, "httpapi.google", err, "oauth callback failed"))
		return
	}

	if h.deps.DriveTokens != nil && result.ProviderToken != nil {
		if err := h.deps.DriveTokens.SaveToken(result.User.ID, result.ProviderToken); err != nil {
			writeAppError(w, apperr.Wrap(apperr.KindFatal, "httpapi.google", err, "failed to persist drive token"))
			return
		}
	}

	writeJSON(w, http.StatusOK, loginResponse{AccessToken: result.Token, TokenType: "Bearer"})
}

// driveProxyRequest is the body of a POST to /api/google/drive/{action}.
type driveProxyRequest struct {
	Query    string `json:"query,omitempty"`
	FolderID string `json:"folder_id,omitempty"`
	FileID   string `json:"file_id,omitempty"`
	RangeA1  string `json:"range_a1,omitempty"`
	Limit    int    `json:"limit,omitempty"`
}

// driveProxy exposes a thin subset of the Drive facade over HTTP for
// clients that need direct file access outside of a consensus turn's
// tool calls. The full 17-tool surface remains available to models
// through internal/tools/drive during generation.
func (h *handlers) driveProxy(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "Validation", "method not allowed")
		return
	}
	user, ok := auth.UserFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "Unauthorized", "no authenticated user")
		return
	}
	if h.deps.DriveFacades == nil {
		writeError(w, http.StatusServiceUnavailable, "ProviderUnavailable", "drive is not configured")
		return
	}

	action := strings.TrimPrefix(r.URL.Path, "/api/google/drive/")
	if action == "" {
		writeError(w, http.StatusNotFound, "NotFound", "missing drive action")
		return
	}

	var req driveProxyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "ArgumentInvalid", "malformed request body")
		return
	}

	facade, err := h.deps.DriveFacades(user.ID)
	if err != nil {
		writeAppError(w, apperr.Wrap(apperr.KindAuth, "httpapi.google", err, "failed to build drive client"))
		return
	}

	ctx := r.Context()
	switch action {
	case "search":
		entries, err := facade.Search(ctx, req.Query, req.Limit)
		if err != nil {
			writeAppError(w, apperr.Wrap(apperr.KindProvider, "httpapi.google", err, "drive search failed"))
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"entries": entries})
	case "list":
		entries, err := facade.List(ctx, req.FolderID)
		if err != nil {
			writeAppError(w, apperr.Wrap(apperr.KindProvider, "httpapi.google", err, "drive list failed"))
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"entries": entries})
	case "read_doc":
		text, err := facade.ReadDoc(ctx, req.FileID)
		if err != nil {
			writeAppError(w, apperr.Wrap(apperr.KindProvider, "httpapi.google", err, "drive read_doc failed"))
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"content": text})
	case "read_sheet":
		values, err := facade.ReadSheet(ctx, req.FileID, req.RangeA1)
		if err != nil {
			writeAppError(w, apperr.Wrap(apperr.KindProvider, "httpapi.google", err, "drive read_sheet failed"))
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"values": values})
	default:
		writeError(w, http.StatusNotFound, "UnknownTool", "unknown drive action: "+action)
	}
}

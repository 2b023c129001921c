package httpapi

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/concordhq/concord/internal/apperr"
)

type loginRequest struct {
	APIKey string `json:"api_key"`
}

type loginResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
}

// login exchanges a static API key for a JWT. It is the only endpoint
// that issues credentials directly; OAuth identities are exchanged via
// googleCallback instead.
func (h *handlers) login(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "Validation", "method not allowed")
		return
	}

	var req loginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "ArgumentInvalid", "malformed request body")
		return
	}
	if strings.TrimSpace(req.APIKey) == "" {
		writeError(w, http.StatusBadRequest, "ArgumentInvalid", "api_key is required")
		return
	}

	user, err := h.deps.Auth.ValidateAPIKey(req.APIKey)
	if err != nil {
		writeAppError(w, apperr.Wrap(apperr.KindAuth, "httpapi.auth", err, "invalid api key"))
		return
	}

	token, err := h.deps.Auth.GenerateJWT(user)
	if err != nil {
		writeAppError(w, apperr.Wrap(apperr.KindFatal, "httpapi.auth", err, "failed to issue token"))
		return
	}

	writeJSON(w, http.StatusOK, loginResponse{AccessToken: token, TokenType: "Bearer"})
}

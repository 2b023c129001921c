package httpapi

import (
	"encoding/json"
	"net/http"

	"github.com/concordhq/concord/internal/apperr"
)

// errorResponse is the JSON body written for every non-2xx response.
type errorResponse struct {
	Kind    string `json:"kind"`
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, kind, message string) {
	writeJSON(w, status, errorResponse{Kind: kind, Message: message})
}

// writeAppError maps one of apperr's Kinds to an HTTP status and writes
// the response.
func writeAppError(w http.ResponseWriter, err error) {
	appErr, ok := apperr.As(err)
	if !ok {
		writeError(w, http.StatusInternalServerError, "Fatal", err.Error())
		return
	}

	status := http.StatusInternalServerError
	switch appErr.Kind {
	case apperr.KindAuth:
		status = http.StatusUnauthorized
	case apperr.KindValidation:
		status = http.StatusBadRequest
	case apperr.KindCapacity:
		status = http.StatusTooManyRequests
	case apperr.KindProvider:
		status = http.StatusBadGateway
	case apperr.KindTool:
		status = http.StatusUnprocessableEntity
	case apperr.KindFatal:
		status = http.StatusInternalServerError
	}
	writeError(w, status, string(appErr.Kind), appErr.Message)
}

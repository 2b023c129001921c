package httpapi

import (
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/concordhq/concord/internal/apperr"
	"github.com/concordhq/concord/internal/auth"
	"github.com/concordhq/concord/pkg/models"
)

// maxUploadBytes bounds a single file upload. Text extraction itself is
// out of scope (SPEC_FULL §4.3); this layer only persists metadata and,
// when the upload is plain text, its content as ExtractedText so it is
// immediately eligible for context injection.
const maxUploadBytes = 10 << 20

// filesCollection handles GET (list) and POST (upload) on /api/files.
func (h *handlers) filesCollection(w http.ResponseWriter, r *http.Request) {
	user, ok := auth.UserFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "Unauthorized", "no authenticated user")
		return
	}

	switch r.Method {
	case http.MethodGet:
		files, err := h.deps.Stores.Files.ListByOwner(r.Context(), user.ID)
		if err != nil {
			writeAppError(w, apperr.Wrap(apperr.KindFatal, "httpapi.files", err, "failed to list files"))
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"files": files})
	case http.MethodPost:
		h.uploadFile(w, r, user.ID)
	default:
		writeError(w, http.StatusMethodNotAllowed, "Validation", "method not allowed")
	}
}

func (h *handlers) uploadFile(w http.ResponseWriter, r *http.Request, userID string) {
	r.Body = http.MaxBytesReader(w, r.Body, maxUploadBytes)
	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		writeError(w, http.StatusBadRequest, "ArgumentInvalid", "malformed upload: "+err.Error())
		return
	}
	defer r.MultipartForm.RemoveAll() //nolint:errcheck

	part, header, err := r.FormFile("file")
	if err != nil {
		writeError(w, http.StatusBadRequest, "ArgumentInvalid", "missing \"file\" part")
		return
	}
	defer part.Close()

	content, err := io.ReadAll(part)
	if err != nil {
		writeError(w, http.StatusBadRequest, "ArgumentInvalid", "failed to read upload")
		return
	}

	mimeType := header.Header.Get("Content-Type")
	file := &models.File{
		ID:         uuid.NewString(),
		OwnerID:    userID,
		Filename:   header.Filename,
		MimeType:   mimeType,
		UploadedAt: time.Now(),
	}
	if err := h.deps.Stores.Files.Create(r.Context(), file); err != nil {
		writeAppError(w, apperr.Wrap(apperr.KindFatal, "httpapi.files", err, "failed to store file"))
		return
	}

	if strings.HasPrefix(mimeType, "text/") {
		if err := h.deps.Stores.Files.MarkProcessed(r.Context(), file.ID, string(content)); err != nil {
			writeAppError(w, apperr.Wrap(apperr.KindFatal, "httpapi.files", err, "failed to mark file processed"))
			return
		}
	}

	writeJSON(w, http.StatusCreated, file)
}

// filesItem handles GET (content retrieval) and DELETE on
// /api/files/{id}.
func (h *handlers) filesItem(w http.ResponseWriter, r *http.Request) {
	user, ok := auth.UserFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "Unauthorized", "no authenticated user")
		return
	}

	id := strings.TrimPrefix(r.URL.Path, "/api/files/")
	if id == "" {
		writeError(w, http.StatusNotFound, "NotFound", "missing file id")
		return
	}

	file, err := h.deps.Stores.Files.Get(r.Context(), id)
	if err != nil {
		writeAppError(w, apperr.Wrap(apperr.KindValidation, "httpapi.files", err, "file not found"))
		return
	}
	if file.OwnerID != user.ID {
		writeError(w, http.StatusForbidden, "Forbidden", "file does not belong to this user")
		return
	}

	switch r.Method {
	case http.MethodGet:
		writeJSON(w, http.StatusOK, file)
	case http.MethodDelete:
		if err := h.deps.Stores.Files.Delete(r.Context(), id); err != nil {
			writeAppError(w, apperr.Wrap(apperr.KindFatal, "httpapi.files", err, "failed to delete file"))
			return
		}
		w.WriteHeader(http.StatusNoContent)
	default:
		writeError(w, http.StatusMethodNotAllowed, "Validation", "method not allowed")
	}
}

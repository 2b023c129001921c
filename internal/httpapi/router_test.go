package httpapi

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/concordhq/concord/internal/auth"
	"github.com/concordhq/concord/internal/consensus"
	"github.com/concordhq/concord/internal/providers"
	"github.com/concordhq/concord/internal/realtime"
	"github.com/concordhq/concord/internal/session"
	"github.com/concordhq/concord/internal/storage"
	"github.com/concordhq/concord/internal/tools"
	"github.com/concordhq/concord/internal/toolloop"
	"github.com/concordhq/concord/pkg/models"
)

func newTestDeps(t *testing.T) (Deps, *auth.Service) {
	t.Helper()
	stores := storage.NewMemoryStores()
	registry := providers.NewRegistry(nil)
	toolReg := tools.NewRegistry()
	engine := consensus.New(registry, toolReg, func(a providers.Adapter) *toolloop.Loop {
		return toolloop.New(a, toolReg, tools.NewExecutor(toolReg, tools.DefaultExecutorConfig()), toolloop.DefaultConfig())
	}, consensus.NewJudge(registry))
	hub := realtime.NewHub()
	coord := session.New(stores, engine, hub, session.Config{GenerationTimeout: 2 * time.Second}, nil)

	authSvc := auth.NewService(auth.Config{
		JWTSecret: "test-secret",
		APIKeys: []auth.APIKeyConfig{
			{Key: "test-key", UserID: "user-1", Email: "a@example.com"},
		},
	})

	return Deps{
		Auth:        authSvc,
		Coordinator: coord,
		Stores:      stores,
		Providers:   registry,
	}, authSvc
}

func TestHealthzReturnsOK(t *testing.T) {
	deps, _ := newTestDeps(t)
	router := NewRouter(deps)

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusOK)
	}
}

func TestLoginExchangesAPIKeyForJWT(t *testing.T) {
	deps, _ := newTestDeps(t)
	router := NewRouter(deps)

	body := strings.NewReader(`{"api_key":"test-key"}`)
	req := httptest.NewRequest(http.MethodPost, "/api/auth/login", body)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d, body = %s", rec.Code, http.StatusOK, rec.Body.String())
	}
	if !strings.Contains(rec.Body.String(), "access_token") {
		t.Fatalf("expected access_token in response, got %s", rec.Body.String())
	}
}

func TestLoginRejectsUnknownAPIKey(t *testing.T) {
	deps, _ := newTestDeps(t)
	router := NewRouter(deps)

	body := strings.NewReader(`{"api_key":"wrong-key"}`)
	req := httptest.NewRequest(http.MethodPost, "/api/auth/login", body)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusUnauthorized)
	}
}

func TestPostMessageRejectsMissingCredentials(t *testing.T) {
	deps, _ := newTestDeps(t)
	router := NewRouter(deps)

	body := strings.NewReader(`{"message":"hello"}`)
	req := httptest.NewRequest(http.MethodPost, "/api/chat/message", body)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusUnauthorized)
	}
}

func TestPostMessageAcceptsValidAPIKey(t *testing.T) {
	deps, _ := newTestDeps(t)
	router := NewRouter(deps)

	body := strings.NewReader(`{"message":"hello there","selected_models":["unknown-model"]}`)
	req := httptest.NewRequest(http.MethodPost, "/api/chat/message", body)
	req.Header.Set("X-Api-Key", "test-key")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusAccepted {
		t.Fatalf("status = %d, want %d, body = %s", rec.Code, http.StatusAccepted, rec.Body.String())
	}
}

func TestPostMessageRejectsEmptyMessage(t *testing.T) {
	deps, _ := newTestDeps(t)
	router := NewRouter(deps)

	body := strings.NewReader(`{"message":""}`)
	req := httptest.NewRequest(http.MethodPost, "/api/chat/message", body)
	req.Header.Set("X-Api-Key", "test-key")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusBadRequest)
	}
}

func TestSessionMessagesRejectsMalformedSessionID(t *testing.T) {
	deps, _ := newTestDeps(t)
	router := NewRouter(deps)

	req := httptest.NewRequest(http.MethodGet, "/api/chat/sessions/not-a-number/messages", nil)
	req.Header.Set("X-Api-Key", "test-key")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want %d, body = %s", rec.Code, http.StatusBadRequest, rec.Body.String())
	}
}

func TestListModelsReturnsCatalog(t *testing.T) {
	deps, _ := newTestDeps(t)
	router := NewRouter(deps)

	req := httptest.NewRequest(http.MethodGet, "/api/models", nil)
	req.Header.Set("X-Api-Key", "test-key")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusOK)
	}
}

func TestFileUploadThenOwnerCanReadAndDelete(t *testing.T) {
	deps, _ := newTestDeps(t)
	router := NewRouter(deps)

	upload := strings.NewReader("--boundary\r\n" +
		"Content-Disposition: form-data; name=\"file\"; filename=\"note.txt\"\r\n" +
		"Content-Type: text/plain\r\n\r\n" +
		"hello\r\n--boundary--\r\n")
	req := httptest.NewRequest(http.MethodPost, "/api/files", upload)
	req.Header.Set("Content-Type", "multipart/form-data; boundary=boundary")
	req.Header.Set("X-Api-Key", "test-key")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	if rec.Code != http.StatusCreated {
		t.Fatalf("upload status = %d, want %d, body = %s", rec.Code, http.StatusCreated, rec.Body.String())
	}

	var uploaded models.File
	if err := json.Unmarshal(rec.Body.Bytes(), &uploaded); err != nil {
		t.Fatalf("decode upload response: %v", err)
	}
	if uploaded.ID == "" {
		t.Fatal("expected a non-empty file id")
	}

	getReq := httptest.NewRequest(http.MethodGet, "/api/files/"+uploaded.ID, nil)
	getReq.Header.Set("X-Api-Key", "test-key")
	getRec := httptest.NewRecorder()
	router.ServeHTTP(getRec, getReq)
	if getRec.Code != http.StatusOK {
		t.Fatalf("owner GET status = %d, want %d", getRec.Code, http.StatusOK)
	}

	delReq := httptest.NewRequest(http.MethodDelete, "/api/files/"+uploaded.ID, nil)
	delReq.Header.Set("X-Api-Key", "test-key")
	delRec := httptest.NewRecorder()
	router.ServeHTTP(delRec, delReq)
	if delRec.Code != http.StatusNoContent {
		t.Fatalf("delete status = %d, want %d", delRec.Code, http.StatusNoContent)
	}

	afterReq := httptest.NewRequest(http.MethodGet, "/api/files/"+uploaded.ID, nil)
	afterReq.Header.Set("X-Api-Key", "test-key")
	afterRec := httptest.NewRecorder()
	router.ServeHTTP(afterRec, afterReq)
	if afterRec.Code != http.StatusBadRequest {
		t.Fatalf("post-delete GET status = %d, want %d", afterRec.Code, http.StatusBadRequest)
	}
}

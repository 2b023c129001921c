package storage

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/concordhq/concord/pkg/models"
)

func TestMemoryUserStoreLifecycle(t *testing.T) {
	store := NewMemoryUserStore()
	user := &models.User{ID: uuid.NewString(), Email: "Ada@Example.com", Name: "Ada", CreatedAt: time.Now(), UpdatedAt: time.Now()}

	if err := store.Create(context.Background(), user); err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	if err := store.Create(context.Background(), user); err != ErrAlreadyExists {
		t.Fatalf("expected ErrAlreadyExists on duplicate create, got %v", err)
	}

	got, err := store.Get(context.Background(), user.ID)
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if got.Name != "Ada" {
		t.Fatalf("Get() name = %q", got.Name)
	}

	byEmail, err := store.GetByEmail(context.Background(), "ada@example.com")
	if err != nil {
		t.Fatalf("GetByEmail() error = %v", err)
	}
	if byEmail.ID != user.ID {
		t.Fatalf("GetByEmail() returned wrong user")
	}

	if _, err := store.Get(context.Background(), "missing"); err != ErrNotFound {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestMemorySessionStoreLifecycle(t *testing.T) {
	store := NewMemorySessionStore()
	session := &models.ChatSession{UserID: "user-1", Title: "First session", CreatedAt: time.Now(), UpdatedAt: time.Now()}

	if err := store.Create(context.Background(), session); err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	if session.ID == 0 {
		t.Fatal("Create() did not assign an id")
	}

	got, err := store.Get(context.Background(), session.ID)
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if got.Title != "First session" {
		t.Fatalf("Get() title = %q", got.Title)
	}

	other := &models.ChatSession{UserID: "user-1", Title: "Second session", CreatedAt: time.Now(), UpdatedAt: time.Now().Add(time.Minute)}
	if err := store.Create(context.Background(), other); err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	list, err := store.ListByUser(context.Background(), "user-1", 10, 0)
	if err != nil {
		t.Fatalf("ListByUser() error = %v", err)
	}
	if len(list) != 2 {
		t.Fatalf("ListByUser() expected 2, got %d", len(list))
	}
	if list[0].ID != other.ID {
		t.Fatal("ListByUser() expected most recently updated session first")
	}

	before := got.UpdatedAt
	time.Sleep(time.Millisecond)
	if err := store.Touch(context.Background(), session.ID); err != nil {
		t.Fatalf("Touch() error = %v", err)
	}
	touched, _ := store.Get(context.Background(), session.ID)
	if !touched.UpdatedAt.After(before) {
		t.Fatal("Touch() did not advance updated_at")
	}
}

func TestMemoryMessageStoreAppendAndList(t *testing.T) {
	store := NewMemoryMessageStore()
	for i := 0; i < 3; i++ {
		msg := &models.Message{SessionID: 1, Role: models.RoleUser, Content: "hello", CreatedAt: time.Now()}
		if err := store.Append(context.Background(), msg); err != nil {
			t.Fatalf("Append() error = %v", err)
		}
		if msg.ID == "" {
			t.Fatal("Append() did not assign an id")
		}
	}

	all, err := store.ListBySession(context.Background(), 1, 0)
	if err != nil {
		t.Fatalf("ListBySession() error = %v", err)
	}
	if len(all) != 3 {
		t.Fatalf("expected 3 messages, got %d", len(all))
	}

	limited, err := store.ListBySession(context.Background(), 1, 2)
	if err != nil {
		t.Fatalf("ListBySession() error = %v", err)
	}
	if len(limited) != 2 {
		t.Fatalf("expected 2 messages with limit, got %d", len(limited))
	}
}

func TestMemoryFileStoreLifecycle(t *testing.T) {
	store := NewMemoryFileStore()
	file := &models.File{ID: uuid.NewString(), OwnerID: "user-1", Filename: "report.pdf", UploadedAt: time.Now()}

	if err := store.Create(context.Background(), file); err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	if err := store.MarkProcessed(context.Background(), file.ID, "extracted text"); err != nil {
		t.Fatalf("MarkProcessed() error = %v", err)
	}

	got, err := store.Get(context.Background(), file.ID)
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if !got.Eligible() {
		t.Fatal("expected file to be eligible after MarkProcessed")
	}

	list, err := store.ListByOwner(context.Background(), "user-1")
	if err != nil {
		t.Fatalf("ListByOwner() error = %v", err)
	}
	if len(list) != 1 {
		t.Fatalf("expected 1 file, got %d", len(list))
	}
}

func TestMemoryApprovalStoreResolve(t *testing.T) {
	store := NewMemoryApprovalStore()
	req := &models.ApprovalRequest{
		ID:        uuid.NewString(),
		SessionID: 1,
		ToolName:  "delete_file",
		Status:    models.ApprovalPending,
		CreatedAt: time.Now(),
		ExpiresAt: time.Now().Add(time.Hour),
	}

	if err := store.Create(context.Background(), req); err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	resolved, err := store.Resolve(context.Background(), req.ID, true)
	if err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}
	if resolved.Status != models.ApprovalApproved {
		t.Fatalf("expected approved status, got %v", resolved.Status)
	}

	if _, err := store.Resolve(context.Background(), req.ID, true); err == nil {
		t.Fatal("expected error resolving an already-terminal request")
	}
}

func TestNewMemoryStoresWiresAllStores(t *testing.T) {
	stores := NewMemoryStores()
	if stores.Users == nil || stores.Sessions == nil || stores.Messages == nil || stores.Files == nil || stores.Approvals == nil {
		t.Fatal("NewMemoryStores() left a store unwired")
	}
	if err := stores.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}
}

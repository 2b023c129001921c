package main

import (
	"context"
	"testing"

	"github.com/concordhq/concord/internal/auth"
	"github.com/concordhq/concord/internal/storage"
)

func TestOAuthUserStoreCreatesUserOnFirstLogin(t *testing.T) {
	stores := storage.NewMemoryStores()
	store := &oauthUserStore{users: stores.Users}

	user, err := store.FindOrCreate(context.Background(), &auth.UserInfo{
		Email: "new@example.com",
		Name:  "New User",
	})
	if err != nil {
		t.Fatalf("FindOrCreate returned error: %v", err)
	}
	if user.ID == "" {
		t.Fatalf("expected generated user id")
	}
	if user.Email != "new@example.com" {
		t.Fatalf("expected email to be preserved, got %q", user.Email)
	}
}

func TestOAuthUserStoreReturnsExistingUserByEmail(t *testing.T) {
	stores := storage.NewMemoryStores()
	store := &oauthUserStore{users: stores.Users}
	ctx := context.Background()

	first, err := store.FindOrCreate(ctx, &auth.UserInfo{Email: "again@example.com", Name: "First"})
	if err != nil {
		t.Fatalf("first FindOrCreate returned error: %v", err)
	}

	second, err := store.FindOrCreate(ctx, &auth.UserInfo{Email: "again@example.com", Name: "Second"})
	if err != nil {
		t.Fatalf("second FindOrCreate returned error: %v", err)
	}

	if second.ID != first.ID {
		t.Fatalf("expected same user id on repeat login, got %q and %q", first.ID, second.ID)
	}
	if second.Name != "First" {
		t.Fatalf("expected existing user record to win, got name %q", second.Name)
	}
}

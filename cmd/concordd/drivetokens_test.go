package main

import (
	"testing"
	"time"

	"golang.org/x/oauth2"
)

func TestMemoryDriveTokenStoreRoundTrip(t *testing.T) {
	store := newMemoryDriveTokenStore()
	token := &oauth2.Token{AccessToken: "access", RefreshToken: "refresh", Expiry: time.Now().Add(time.Hour)}

	if err := store.SaveToken("user-1", token); err != nil {
		t.Fatalf("SaveToken returned error: %v", err)
	}

	got, err := store.LoadToken("user-1")
	if err != nil {
		t.Fatalf("LoadToken returned error: %v", err)
	}
	if got.AccessToken != token.AccessToken {
		t.Fatalf("expected access token %q, got %q", token.AccessToken, got.AccessToken)
	}
}

func TestMemoryDriveTokenStoreRejectsUnknownUser(t *testing.T) {
	store := newMemoryDriveTokenStore()
	if _, err := store.LoadToken("missing"); err == nil {
		t.Fatalf("expected error for unknown user")
	}
}

package main

import (
	"context"
	"fmt"
	"sync"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"

	"github.com/concordhq/concord/internal/tools/drive"
)

// memoryDriveTokenStore holds each user's Google OAuth2 token in memory,
// keyed by user id. Adequate for a single concordd process; a Postgres-
// backed implementation would follow the same shape as the other
// storage.* stores if persistence across restarts were required.
type memoryDriveTokenStore struct {
	mu     sync.RWMutex
	tokens map[string]*oauth2.Token
}

func newMemoryDriveTokenStore() *memoryDriveTokenStore {
	return &memoryDriveTokenStore{tokens: make(map[string]*oauth2.Token)}
}

func (s *memoryDriveTokenStore) SaveToken(userID string, token *oauth2.Token) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tokens[userID] = token
	return nil
}

func (s *memoryDriveTokenStore) LoadToken(userID string) (*oauth2.Token, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	tok, ok := s.tokens[userID]
	if !ok {
		return nil, fmt.Errorf("no drive token for user %q", userID)
	}
	return tok, nil
}

// newDriveFacadeFor builds the ctx-aware closure the Drive tool
// registrations call through (drive.FacadeFor), refreshing tokens
// through Google's endpoint as needed.
func newDriveFacadeFor(clientID, clientSecret string, tokens *memoryDriveTokenStore) drive.FacadeFor {
	oauthCfg := &oauth2.Config{
		ClientID:     clientID,
		ClientSecret: clientSecret,
		Endpoint:     google.Endpoint,
	}
	return func(ctx context.Context, userID string) (drive.Facade, error) {
		tok, err := tokens.LoadToken(userID)
		if err != nil {
			return nil, err
		}
		return drive.NewGoogleFacade(ctx, tok, oauthCfg.TokenSource(ctx, tok))
	}
}

// newHTTPDriveFacadeFor adapts the same token store to httpapi's
// plain (userID) -> Facade signature, used by the Drive HTTP proxy.
func newHTTPDriveFacadeFor(facadeFor drive.FacadeFor) func(userID string) (drive.Facade, error) {
	return func(userID string) (drive.Facade, error) {
		return facadeFor(context.Background(), userID)
	}
}

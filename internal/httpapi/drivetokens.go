package httpapi

import "golang.org/x/oauth2"

// DriveTokenStore persists the Google OAuth2 token obtained during login,
// so a later request can rebuild a per-user Drive facade without asking
// the user to re-authenticate. Concrete storage (in-memory, Postgres) is
// supplied by cmd/concordd at wiring time.
type DriveTokenStore interface {
	SaveToken(userID string, token *oauth2.Token) error
	LoadToken(userID string) (*oauth2.Token, error)
}

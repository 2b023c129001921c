// Package storage defines Concord's persistence interfaces and provides
// both an in-memory implementation (development, tests) and a Postgres
// implementation (production) behind the same contracts.
package storage

import (
	"context"
	"errors"

	"github.com/concordhq/concord/pkg/models"
)

var (
	ErrNotFound      = errors.New("not found")
	ErrAlreadyExists = errors.New("already exists")
)

// UserStore persists user identities.
type UserStore interface {
	Create(ctx context.Context, user *models.User) error
	Get(ctx context.Context, id string) (*models.User, error)
	GetByEmail(ctx context.Context, email string) (*models.User, error)
}

// SessionStore persists chat sessions.
type SessionStore interface {
	Create(ctx context.Context, session *models.ChatSession) error
	Get(ctx context.Context, id int64) (*models.ChatSession, error)
	ListByUser(ctx context.Context, userID string, limit, offset int) ([]*models.ChatSession, error)
	Touch(ctx context.Context, id int64) error
}

// MessageStore persists the message history within a session.
type MessageStore interface {
	Append(ctx context.Context, msg *models.Message) error
	ListBySession(ctx context.Context, sessionID int64, limit int) ([]models.Message, error)
}

// FileStore persists user-uploaded files eligible for context injection.
type FileStore interface {
	Create(ctx context.Context, file *models.File) error
	Get(ctx context.Context, id string) (*models.File, error)
	ListByOwner(ctx context.Context, ownerID string) ([]models.File, error)
	MarkProcessed(ctx context.Context, id string, extractedText string) error
	Delete(ctx context.Context, id string) error
}

// ApprovalStore persists pending write-tool approvals.
type ApprovalStore interface {
	Create(ctx context.Context, req *models.ApprovalRequest) error
	Get(ctx context.Context, id string) (*models.ApprovalRequest, error)
	Resolve(ctx context.Context, id string, approve bool) (*models.ApprovalRequest, error)
}

// StoreSet groups every persistence dependency Concord's components need.
type StoreSet struct {
	Users     UserStore
	Sessions  SessionStore
	Messages  MessageStore
	Files     FileStore
	Approvals ApprovalStore
	closer    func() error
}

// Close releases any underlying resources (e.g. a database connection pool).
func (s StoreSet) Close() error {
	if s.closer == nil {
		return nil
	}
	return s.closer()
}

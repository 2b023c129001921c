package main

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/concordhq/concord/internal/auth"
	"github.com/concordhq/concord/internal/storage"
	"github.com/concordhq/concord/pkg/models"
)

// oauthUserStore adapts storage.UserStore to auth.UserStore, resolving an
// OAuth identity to a Concord user by email, creating one on first login.
type oauthUserStore struct {
	users storage.UserStore
}

func (s *oauthUserStore) FindOrCreate(ctx context.Context, info *auth.UserInfo) (*models.User, error) {
	existing, err := s.users.GetByEmail(ctx, info.Email)
	if err == nil {
		return existing, nil
	}
	if !errors.Is(err, storage.ErrNotFound) {
		return nil, err
	}

	now := time.Now()
	user := &models.User{
		ID:        uuid.NewString(),
		Email:     info.Email,
		Name:      info.Name,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.users.Create(ctx, user); err != nil {
		return nil, err
	}
	return user, nil
}

package storage

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/concordhq/concord/pkg/models"
)

// MemoryUserStore provides an in-memory UserStore.
type MemoryUserStore struct {
	mu           sync.RWMutex
	users        map[string]*models.User
	usersByEmail map[string]string
}

// NewMemoryUserStore creates an in-memory user store.
func NewMemoryUserStore() *MemoryUserStore {
	return &MemoryUserStore{users: make(map[string]*models.User), usersByEmail: make(map[string]string)}
}

func (s *MemoryUserStore) Create(ctx context.Context, user *models.User) error {
	if user == nil || user.ID == "" {
		return fmt.Errorf("user is required")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.users[user.ID]; exists {
		return ErrAlreadyExists
	}
	email := strings.ToLower(strings.TrimSpace(user.Email))
	if email != "" {
		if _, exists := s.usersByEmail[email]; exists {
			return ErrAlreadyExists
		}
		s.usersByEmail[email] = user.ID
	}
	s.users[user.ID] = user
	return nil
}

func (s *MemoryUserStore) Get(ctx context.Context, id string) (*models.User, error) {
	if id == "" {
		return nil, ErrNotFound
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	user, ok := s.users[id]
	if !ok {
		return nil, ErrNotFound
	}
	return user, nil
}

func (s *MemoryUserStore) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" {
		return nil, ErrNotFound
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	id, ok := s.usersByEmail[email]
	if !ok {
		return nil, ErrNotFound
	}
	return s.users[id], nil
}

// MemorySessionStore provides an in-memory SessionStore.
type MemorySessionStore struct {
	mu       sync.RWMutex
	sessions map[int64]*models.ChatSession
	nextID   int64
}

// NewMemorySessionStore creates an in-memory session store.
func NewMemorySessionStore() *MemorySessionStore {
	return &MemorySessionStore{sessions: make(map[int64]*models.ChatSession)}
}

func (s *MemorySessionStore) Create(ctx context.Context, session *models.ChatSession) error {
	if session == nil {
		return fmt.Errorf("session is required")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextID++
	session.ID = s.nextID
	s.sessions[session.ID] = session
	return nil
}

func (s *MemorySessionStore) Get(ctx context.Context, id int64) (*models.ChatSession, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	session, ok := s.sessions[id]
	if !ok {
		return nil, ErrNotFound
	}
	return session, nil
}

func (s *MemorySessionStore) ListByUser(ctx context.Context, userID string, limit, offset int) ([]*models.ChatSession, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	sessions := make([]*models.ChatSession, 0, len(s.sessions))
	for _, session := range s.sessions {
		if session.UserID == userID {
			sessions = append(sessions, session)
		}
	}
	sort.Slice(sessions, func(i, j int) bool { return sessions[i].UpdatedAt.After(sessions[j].UpdatedAt) })
	return paginateSessions(sessions, limit, offset), nil
}

func paginateSessions(sessions []*models.ChatSession, limit, offset int) []*models.ChatSession {
	if offset < 0 {
		offset = 0
	}
	if offset > len(sessions) {
		offset = len(sessions)
	}
	end := len(sessions)
	if limit > 0 && offset+limit < end {
		end = offset + limit
	}
	return sessions[offset:end]
}

func (s *MemorySessionStore) Touch(ctx context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	session, ok := s.sessions[id]
	if !ok {
		return ErrNotFound
	}
	session.UpdatedAt = time.Now()
	return nil
}

// MemoryMessageStore provides an in-memory MessageStore.
type MemoryMessageStore struct {
	mu       sync.RWMutex
	messages map[int64][]models.Message
}

// NewMemoryMessageStore creates an in-memory message store.
func NewMemoryMessageStore() *MemoryMessageStore {
	return &MemoryMessageStore{messages: make(map[int64][]models.Message)}
}

func (s *MemoryMessageStore) Append(ctx context.Context, msg *models.Message) error {
	if msg == nil {
		return fmt.Errorf("message is required")
	}
	if msg.ID == "" {
		msg.ID = uuid.NewString()
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.messages[msg.SessionID] = append(s.messages[msg.SessionID], *msg)
	return nil
}

func (s *MemoryMessageStore) ListBySession(ctx context.Context, sessionID int64, limit int) ([]models.Message, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	all := s.messages[sessionID]
	if limit <= 0 || limit >= len(all) {
		out := make([]models.Message, len(all))
		copy(out, all)
		return out, nil
	}
	start := len(all) - limit
	out := make([]models.Message, limit)
	copy(out, all[start:])
	return out, nil
}

// MemoryFileStore provides an in-memory FileStore.
type MemoryFileStore struct {
	mu    sync.RWMutex
	files map[string]*models.File
}

// NewMemoryFileStore creates an in-memory file store.
func NewMemoryFileStore() *MemoryFileStore {
	return &MemoryFileStore{files: make(map[string]*models.File)}
}

func (s *MemoryFileStore) Create(ctx context.Context, file *models.File) error {
	if file == nil || file.ID == "" {
		return fmt.Errorf("file is required")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.files[file.ID]; exists {
		return ErrAlreadyExists
	}
	s.files[file.ID] = file
	return nil
}

func (s *MemoryFileStore) Get(ctx context.Context, id string) (*models.File, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	file, ok := s.files[id]
	if !ok {
		return nil, ErrNotFound
	}
	return file, nil
}

func (s *MemoryFileStore) ListByOwner(ctx context.Context, ownerID string) ([]models.File, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []models.File
	for _, f := range s.files {
		if f.OwnerID == ownerID {
			out = append(out, *f)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].UploadedAt.After(out[j].UploadedAt) })
	return out, nil
}

func (s *MemoryFileStore) MarkProcessed(ctx context.Context, id string, extractedText string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	file, ok := s.files[id]
	if !ok {
		return ErrNotFound
	}
	file.Processed = true
	file.ExtractedText = &extractedText
	return nil
}

func (s *MemoryFileStore) Delete(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.files[id]; !ok {
		return ErrNotFound
	}
	delete(s.files, id)
	return nil
}

// MemoryApprovalStore provides an in-memory ApprovalStore.
type MemoryApprovalStore struct {
	mu       sync.RWMutex
	requests map[string]*models.ApprovalRequest
}

// NewMemoryApprovalStore creates an in-memory approval store.
func NewMemoryApprovalStore() *MemoryApprovalStore {
	return &MemoryApprovalStore{requests: make(map[string]*models.ApprovalRequest)}
}

func (s *MemoryApprovalStore) Create(ctx context.Context, req *models.ApprovalRequest) error {
	if req == nil || req.ID == "" {
		return fmt.Errorf("approval request is required")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.requests[req.ID] = req
	return nil
}

func (s *MemoryApprovalStore) Get(ctx context.Context, id string) (*models.ApprovalRequest, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	req, ok := s.requests[id]
	if !ok {
		return nil, ErrNotFound
	}
	return req, nil
}

func (s *MemoryApprovalStore) Resolve(ctx context.Context, id string, approve bool) (*models.ApprovalRequest, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	req, ok := s.requests[id]
	if !ok {
		return nil, ErrNotFound
	}
	if req.Terminal() {
		return nil, fmt.Errorf("approval request %s already resolved", id)
	}
	now := time.Now()
	if approve {
		req.Status = models.ApprovalApproved
	} else {
		req.Status = models.ApprovalRejected
	}
	req.ResolvedAt = &now
	return req, nil
}

// NewMemoryStores constructs a StoreSet backed entirely by memory.
func NewMemoryStores() StoreSet {
	return StoreSet{
		Users:     NewMemoryUserStore(),
		Sessions:  NewMemorySessionStore(),
		Messages:  NewMemoryMessageStore(),
		Files:     NewMemoryFileStore(),
		Approvals: NewMemoryApprovalStore(),
	}
}

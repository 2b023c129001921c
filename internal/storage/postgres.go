package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	_ "github.com/lib/pq"

	"github.com/concordhq/concord/internal/observability"
	"github.com/concordhq/concord/pkg/models"
)

// PostgresConfig holds connection parameters for the production store.
type PostgresConfig struct {
	Host            string
	Port            int
	User            string
	Password        string
	Database        string
	SSLMode         string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
	ConnMaxIdleTime time.Duration
	ConnectTimeout  time.Duration
}

// DefaultPostgresConfig returns sane local-development defaults.
func DefaultPostgresConfig() *PostgresConfig {
	return &PostgresConfig{
		Host:            "localhost",
		Port:            5432,
		User:            "concord",
		Database:        "concord",
		SSLMode:         "disable",
		MaxOpenConns:    25,
		MaxIdleConns:    5,
		ConnMaxLifetime: 5 * time.Minute,
		ConnMaxIdleTime: 2 * time.Minute,
		ConnectTimeout:  10 * time.Second,
	}
}

// PostgresStores is a StoreSet backed by a single *sql.DB. Every store shares
// the connection pool; Close tears down the pool once.
type PostgresStores struct {
	db *sql.DB

	users     *postgresUserStore
	sessions  *postgresSessionStore
	messages  *postgresMessageStore
	files     *postgresFileStore
	approvals *postgresApprovalStore
}

// NewPostgresStores opens a connection pool and prepares every store.
func NewPostgresStores(config *PostgresConfig) (StoreSet, error) {
	if config == nil {
		config = DefaultPostgresConfig()
	}
	dsn := fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s connect_timeout=%d",
		config.Host, config.Port, config.User, config.Password,
		config.Database, config.SSLMode, int(config.ConnectTimeout.Seconds()),
	)
	return NewPostgresStoresFromDSN(dsn, config)
}

// NewPostgresStoresFromDSN opens a connection pool from a raw DSN/URL.
func NewPostgresStoresFromDSN(dsn string, config *PostgresConfig) (StoreSet, error) {
	return NewInstrumentedPostgresStoresFromDSN(dsn, config, nil)
}

// NewInstrumentedPostgresStoresFromDSN is NewPostgresStoresFromDSN with a
// Metrics attached; every query records RecordDatabaseQuery. metrics may be
// nil, in which case no metrics are recorded.
func NewInstrumentedPostgresStoresFromDSN(dsn string, config *PostgresConfig, metrics *observability.Metrics) (StoreSet, error) {
	if dsn == "" {
		return StoreSet{}, fmt.Errorf("dsn is required")
	}
	if config == nil {
		config = DefaultPostgresConfig()
	}

	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return StoreSet{}, fmt.Errorf("failed to open database: %w", err)
	}
	db.SetMaxOpenConns(config.MaxOpenConns)
	db.SetMaxIdleConns(config.MaxIdleConns)
	db.SetConnMaxLifetime(config.ConnMaxLifetime)
	db.SetConnMaxIdleTime(config.ConnMaxIdleTime)

	ctx, cancel := context.WithTimeout(context.Background(), config.ConnectTimeout)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return StoreSet{}, fmt.Errorf("failed to ping database: %w", err)
	}

	inst := instrumented{metrics: metrics}
	stores := &PostgresStores{
		db:        db,
		users:     &postgresUserStore{db: db, instrumented: inst},
		sessions:  &postgresSessionStore{db: db, instrumented: inst},
		messages:  &postgresMessageStore{db: db, instrumented: inst},
		files:     &postgresFileStore{db: db, instrumented: inst},
		approvals: &postgresApprovalStore{db: db, instrumented: inst},
	}

	return StoreSet{
		Users:     stores.users,
		Sessions:  stores.sessions,
		Messages:  stores.messages,
		Files:     stores.files,
		Approvals: stores.approvals,
		closer:    db.Close,
	}, nil
}

// instrumented records one query's outcome against Metrics when one is
// attached; embedded by every postgres*Store so each query site can call
// s.record without threading a *Metrics through every method signature.
type instrumented struct {
	metrics *observability.Metrics
}

func (i instrumented) record(operation, table string, start time.Time, err error) {
	if i.metrics == nil {
		return
	}
	status := "success"
	if err != nil && err != sql.ErrNoRows {
		status = "error"
	}
	i.metrics.RecordDatabaseQuery(operation, table, status, time.Since(start).Seconds())
}

type postgresUserStore struct {
	db *sql.DB
	instrumented
}

func (s *postgresUserStore) Create(ctx context.Context, user *models.User) error {
	start := time.Now()
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO users (id, email, name, created_at, updated_at) VALUES ($1, $2, $3, $4, $5)`,
		user.ID, user.Email, user.Name, user.CreatedAt, user.UpdatedAt,
	)
	s.record("insert", "users", start, err)
	if isUniqueViolation(err) {
		return ErrAlreadyExists
	}
	if err != nil {
		return fmt.Errorf("create user: %w", err)
	}
	return nil
}

func (s *postgresUserStore) Get(ctx context.Context, id string) (*models.User, error) {
	start := time.Now()
	user := &models.User{}
	err := s.db.QueryRowContext(ctx,
		`SELECT id, email, name, created_at, updated_at FROM users WHERE id = $1`, id,
	).Scan(&user.ID, &user.Email, &user.Name, &user.CreatedAt, &user.UpdatedAt)
	s.record("select", "users", start, err)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get user: %w", err)
	}
	return user, nil
}

func (s *postgresUserStore) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	start := time.Now()
	user := &models.User{}
	err := s.db.QueryRowContext(ctx,
		`SELECT id, email, name, created_at, updated_at FROM users WHERE email = $1`, email,
	).Scan(&user.ID, &user.Email, &user.Name, &user.CreatedAt, &user.UpdatedAt)
	s.record("select", "users", start, err)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get user by email: %w", err)
	}
	return user, nil
}

type postgresSessionStore struct {
	db *sql.DB
	instrumented
}

func (s *postgresSessionStore) Create(ctx context.Context, session *models.ChatSession) error {
	start := time.Now()
	err := s.db.QueryRowContext(ctx,
		`INSERT INTO chat_sessions (user_id, title, created_at, updated_at)
		 VALUES ($1, $2, $3, $4) RETURNING id`,
		session.UserID, session.Title, session.CreatedAt, session.UpdatedAt,
	).Scan(&session.ID)
	s.record("insert", "chat_sessions", start, err)
	return err
}

func (s *postgresSessionStore) Get(ctx context.Context, id int64) (*models.ChatSession, error) {
	start := time.Now()
	session := &models.ChatSession{}
	err := s.db.QueryRowContext(ctx,
		`SELECT id, user_id, title, created_at, updated_at FROM chat_sessions WHERE id = $1`, id,
	).Scan(&session.ID, &session.UserID, &session.Title, &session.CreatedAt, &session.UpdatedAt)
	s.record("select", "chat_sessions", start, err)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get session: %w", err)
	}
	return session, nil
}

func (s *postgresSessionStore) ListByUser(ctx context.Context, userID string, limit, offset int) ([]*models.ChatSession, error) {
	if limit <= 0 {
		limit = 50
	}
	start := time.Now()
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, user_id, title, created_at, updated_at FROM chat_sessions
		 WHERE user_id = $1 ORDER BY updated_at DESC LIMIT $2 OFFSET $3`,
		userID, limit, offset,
	)
	s.record("select", "chat_sessions", start, err)
	if err != nil {
		return nil, fmt.Errorf("list sessions: %w", err)
	}
	defer rows.Close()

	var sessions []*models.ChatSession
	for rows.Next() {
		session := &models.ChatSession{}
		if err := rows.Scan(&session.ID, &session.UserID, &session.Title, &session.CreatedAt, &session.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan session: %w", err)
		}
		sessions = append(sessions, session)
	}
	return sessions, rows.Err()
}

func (s *postgresSessionStore) Touch(ctx context.Context, id int64) error {
	start := time.Now()
	result, err := s.db.ExecContext(ctx, `UPDATE chat_sessions SET updated_at = $1 WHERE id = $2`, time.Now(), id)
	s.record("update", "chat_sessions", start, err)
	if err != nil {
		return fmt.Errorf("touch session: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("touch session rows affected: %w", err)
	}
	if rows == 0 {
		return ErrNotFound
	}
	return nil
}

type postgresMessageStore struct {
	db *sql.DB
	instrumented
}

func (s *postgresMessageStore) Append(ctx context.Context, msg *models.Message) error {
	start := time.Now()
	consensusJSON, err := json.Marshal(msg.ConsensusData)
	if err != nil {
		return fmt.Errorf("marshal consensus data: %w", err)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin append message tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	err = tx.QueryRowContext(ctx,
		`INSERT INTO messages (session_id, role, content, model_used, consensus_data, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6) RETURNING id`,
		msg.SessionID, msg.Role, msg.Content, msg.ModelUsed, consensusJSON, msg.CreatedAt,
	).Scan(&msg.ID)
	if err != nil {
		s.record("insert", "messages", start, err)
		return fmt.Errorf("append message: %w", err)
	}

	if _, err := tx.ExecContext(ctx, `UPDATE chat_sessions SET updated_at = $1 WHERE id = $2`, time.Now(), msg.SessionID); err != nil {
		s.record("insert", "messages", start, err)
		return fmt.Errorf("touch session on append: %w", err)
	}

	err = tx.Commit()
	s.record("insert", "messages", start, err)
	return err
}

func (s *postgresMessageStore) ListBySession(ctx context.Context, sessionID int64, limit int) ([]models.Message, error) {
	if limit <= 0 {
		limit = 200
	}
	start := time.Now()
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, session_id, role, content, model_used, consensus_data, created_at
		 FROM messages WHERE session_id = $1 ORDER BY created_at DESC LIMIT $2`,
		sessionID, limit,
	)
	s.record("select", "messages", start, err)
	if err != nil {
		return nil, fmt.Errorf("list messages: %w", err)
	}
	defer rows.Close()

	var messages []models.Message
	for rows.Next() {
		var msg models.Message
		var consensusJSON []byte
		if err := rows.Scan(&msg.ID, &msg.SessionID, &msg.Role, &msg.Content, &msg.ModelUsed, &consensusJSON, &msg.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan message: %w", err)
		}
		if len(consensusJSON) > 0 && string(consensusJSON) != "null" {
			if err := json.Unmarshal(consensusJSON, &msg.ConsensusData); err != nil {
				return nil, fmt.Errorf("unmarshal consensus data: %w", err)
			}
		}
		messages = append(messages, msg)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	for i, j := 0, len(messages)-1; i < j; i, j = i+1, j-1 {
		messages[i], messages[j] = messages[j], messages[i]
	}
	return messages, nil
}

type postgresFileStore struct {
	db *sql.DB
	instrumented
}

func (s *postgresFileStore) Create(ctx context.Context, file *models.File) error {
	start := time.Now()
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO files (id, owner_id, filename, mime_type, processed, extracted_text, uploaded_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		file.ID, file.OwnerID, file.Filename, file.MimeType, file.Processed, file.ExtractedText, file.UploadedAt,
	)
	s.record("insert", "files", start, err)
	if isUniqueViolation(err) {
		return ErrAlreadyExists
	}
	if err != nil {
		return fmt.Errorf("create file: %w", err)
	}
	return nil
}

func (s *postgresFileStore) Get(ctx context.Context, id string) (*models.File, error) {
	start := time.Now()
	file := &models.File{}
	err := s.db.QueryRowContext(ctx,
		`SELECT id, owner_id, filename, mime_type, processed, extracted_text, uploaded_at FROM files WHERE id = $1`, id,
	).Scan(&file.ID, &file.OwnerID, &file.Filename, &file.MimeType, &file.Processed, &file.ExtractedText, &file.UploadedAt)
	s.record("select", "files", start, err)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get file: %w", err)
	}
	return file, nil
}

func (s *postgresFileStore) ListByOwner(ctx context.Context, ownerID string) ([]models.File, error) {
	start := time.Now()
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, owner_id, filename, mime_type, processed, extracted_text, uploaded_at
		 FROM files WHERE owner_id = $1 ORDER BY uploaded_at DESC`, ownerID,
	)
	s.record("select", "files", start, err)
	if err != nil {
		return nil, fmt.Errorf("list files: %w", err)
	}
	defer rows.Close()

	var files []models.File
	for rows.Next() {
		var file models.File
		if err := rows.Scan(&file.ID, &file.OwnerID, &file.Filename, &file.MimeType, &file.Processed, &file.ExtractedText, &file.UploadedAt); err != nil {
			return nil, fmt.Errorf("scan file: %w", err)
		}
		files = append(files, file)
	}
	return files, rows.Err()
}

func (s *postgresFileStore) MarkProcessed(ctx context.Context, id string, extractedText string) error {
	start := time.Now()
	result, err := s.db.ExecContext(ctx,
		`UPDATE files SET processed = true, extracted_text = $1 WHERE id = $2`, extractedText, id,
	)
	s.record("update", "files", start, err)
	if err != nil {
		return fmt.Errorf("mark file processed: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("mark file processed rows affected: %w", err)
	}
	if rows == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *postgresFileStore) Delete(ctx context.Context, id string) error {
	start := time.Now()
	result, err := s.db.ExecContext(ctx, `DELETE FROM files WHERE id = $1`, id)
	s.record("delete", "files", start, err)
	if err != nil {
		return fmt.Errorf("delete file: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete file rows affected: %w", err)
	}
	if rows == 0 {
		return ErrNotFound
	}
	return nil
}

type postgresApprovalStore struct {
	db *sql.DB
	instrumented
}

func (s *postgresApprovalStore) Create(ctx context.Context, req *models.ApprovalRequest) error {
	start := time.Now()
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO approval_requests (id, session_id, tool_name, arguments, status, created_at, expires_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		req.ID, req.SessionID, req.ToolName, req.Arguments, req.Status, req.CreatedAt, req.ExpiresAt,
	)
	s.record("insert", "approval_requests", start, err)
	if isUniqueViolation(err) {
		return ErrAlreadyExists
	}
	if err != nil {
		return fmt.Errorf("create approval request: %w", err)
	}
	return nil
}

func (s *postgresApprovalStore) Get(ctx context.Context, id string) (*models.ApprovalRequest, error) {
	start := time.Now()
	req := &models.ApprovalRequest{}
	err := s.db.QueryRowContext(ctx,
		`SELECT id, session_id, tool_name, arguments, status, created_at, expires_at, resolved_at
		 FROM approval_requests WHERE id = $1`, id,
	).Scan(&req.ID, &req.SessionID, &req.ToolName, &req.Arguments, &req.Status, &req.CreatedAt, &req.ExpiresAt, &req.ResolvedAt)
	s.record("select", "approval_requests", start, err)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get approval request: %w", err)
	}
	return req, nil
}

func (s *postgresApprovalStore) Resolve(ctx context.Context, id string, approve bool) (*models.ApprovalRequest, error) {
	status := models.ApprovalRejected
	if approve {
		status = models.ApprovalApproved
	}
	now := time.Now()

	start := time.Now()
	req := &models.ApprovalRequest{}
	err := s.db.QueryRowContext(ctx,
		`UPDATE approval_requests SET status = $1, resolved_at = $2
		 WHERE id = $3 AND resolved_at IS NULL
		 RETURNING id, session_id, tool_name, arguments, status, created_at, expires_at, resolved_at`,
		status, now, id,
	).Scan(&req.ID, &req.SessionID, &req.ToolName, &req.Arguments, &req.Status, &req.CreatedAt, &req.ExpiresAt, &req.ResolvedAt)
	s.record("update", "approval_requests", start, err)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("approval request %s not found or already resolved", id)
	}
	if err != nil {
		return nil, fmt.Errorf("resolve approval request: %w", err)
	}
	return req, nil
}

// isUniqueViolation reports whether err is a Postgres unique-constraint
// violation (SQLSTATE 23505), without importing the pq driver's error type
// directly so tests can construct stores without a live connection.
func isUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	type pqError interface{ SQLState() string }
	if pe, ok := err.(pqError); ok {
		return pe.SQLState() == "23505"
	}
	return false
}

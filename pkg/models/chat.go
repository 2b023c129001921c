// Package models holds the persisted and wire types shared across Concord's
// components: users, sessions, messages, files, the model catalog, consensus
// results, and real-time delivery events.
package models

import "time"

// Role identifies the author of a Message.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleSystem    Role = "system"
)

// User is a stable identity that owns sessions and files.
type User struct {
	ID        string    `json:"id"`
	Email     string    `json:"email"`
	Name      string    `json:"name,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// ChatSession is an ordered conversation owned by one user.
//
// Invariant: messages within a session form a total order by CreatedAt
// (P1); no message may reference another user's session.
type ChatSession struct {
	ID        int64     `json:"id"`
	UserID    string    `json:"user_id"`
	Title     string    `json:"title"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Message is a single immutable entry in a ChatSession.
type Message struct {
	ID            string          `json:"id"`
	SessionID     int64           `json:"session_id"`
	Role          Role            `json:"role"`
	Content       string          `json:"content"`
	ModelUsed     string          `json:"model_used,omitempty"`
	ConsensusData *ConsensusResult `json:"consensus_data,omitempty"`
	CreatedAt     time.Time       `json:"created_at"`
}

// File is a user-owned document eligible for context injection once
// Processed is true and ExtractedText is non-nil and non-empty.
type File struct {
	ID            string    `json:"id"`
	OwnerID       string    `json:"owner_id"`
	Filename      string    `json:"filename"`
	MimeType      string    `json:"mime_type"`
	Processed     bool      `json:"processed"`
	ExtractedText *string   `json:"extracted_text,omitempty"`
	UploadedAt    time.Time `json:"uploaded_at"`
}

// Eligible reports whether the file may be used for automatic context
// injection (knowledge-base context) or attached-file context.
func (f *File) Eligible() bool {
	return f != nil && f.Processed && f.ExtractedText != nil && *f.ExtractedText != ""
}

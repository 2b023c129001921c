package models

import "time"

// ApprovalStatus is the current state of an ApprovalRequest.
type ApprovalStatus string

const (
	ApprovalPending  ApprovalStatus = "pending"
	ApprovalApproved ApprovalStatus = "approved"
	ApprovalRejected ApprovalStatus = "rejected"
	ApprovalExpired  ApprovalStatus = "expired"
)

// ApprovalRequest gates a write-capable Drive tool call behind explicit
// user confirmation when APPROVAL_REQUIRED_FOR_WRITES is enabled.
//
// Status is terminal once it leaves ApprovalPending; callers must not
// transition a request twice.
type ApprovalRequest struct {
	ID         string          `json:"id"`
	SessionID  int64           `json:"session_id"`
	ToolName   string          `json:"tool_name"`
	Arguments  []byte          `json:"arguments"`
	Status     ApprovalStatus  `json:"status"`
	CreatedAt  time.Time       `json:"created_at"`
	ResolvedAt *time.Time      `json:"resolved_at,omitempty"`
	ExpiresAt  time.Time       `json:"expires_at"`
}

// Terminal reports whether the request has left the pending state.
func (a *ApprovalRequest) Terminal() bool {
	return a.Status != ApprovalPending
}

// Expire transitions a still-pending request to ApprovalExpired if now
// is at or past ExpiresAt. Returns false if the request was already
// terminal or not yet expired.
func (a *ApprovalRequest) Expire(now time.Time) bool {
	if a.Terminal() || now.Before(a.ExpiresAt) {
		return false
	}
	a.Status = ApprovalExpired
	a.ResolvedAt = &now
	return true
}

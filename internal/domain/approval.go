package domain

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

type ApprovalStatus string

const (
	ApprovalPending  ApprovalStatus = "pending"
	ApprovalApproved ApprovalStatus = "approved"
	ApprovalRejected ApprovalStatus = "rejected"
)

func (s ApprovalStatus) Valid() bool {
	return s == ApprovalPending || s == ApprovalApproved || s == ApprovalRejected
}

// Decision is the user's verdict on a pending approval.
type Decision string

const (
	DecisionApprove Decision = "approve"
	DecisionReject  Decision = "reject"
)

// Status maps a decision onto the terminal approval status it produces.
func (d Decision) Status() (ApprovalStatus, bool) {
	switch d {
	case DecisionApprove:
		return ApprovalApproved, true
	case DecisionReject:
		return ApprovalRejected, true
	}
	return "", false
}

// Approval is one proposed change awaiting (or having received) a decision.
// DecidedAt is set iff Status != pending.
type Approval struct {
	ID              uuid.UUID       `json:"id"`
	SessionID       uuid.UUID       `json:"session_id"`
	OwnerID         uuid.UUID       `json:"owner_id"`
	DocumentID      *uuid.UUID      `json:"document_id,omitempty"`
	TaskID          *uuid.UUID      `json:"task_id,omitempty"`
	ChangeKind      string          `json:"change_kind"`
	OriginalContent string          `json:"original_content"`
	ProposedContent json.RawMessage `json:"proposed_content"`
	Status          ApprovalStatus  `json:"status"`
	Feedback        *string         `json:"feedback,omitempty"`
	CreatedAt       time.Time       `json:"created_at"`
	DecidedAt       *time.Time      `json:"decided_at,omitempty"`
}

// ApprovalItem is the input for one row of a batch insert. TaskID names the
// pipeline run that proposed the change.
type ApprovalItem struct {
	DocumentID      *uuid.UUID
	TaskID          *uuid.UUID
	ChangeKind      string
	OriginalContent string
	ProposedContent json.RawMessage
}

// ApprovalFilter narrows approval listings. OwnerID is mandatory.
type ApprovalFilter struct {
	SessionID uuid.UUID
	OwnerID   uuid.UUID
	Status    *ApprovalStatus
}

type ApprovalSummary struct {
	Pending  int  `json:"pending"`
	Approved int  `json:"approved"`
	Rejected int  `json:"rejected"`
	Resolved bool `json:"resolved"`
}

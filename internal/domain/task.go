package domain

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

type TaskKind string

const (
	TaskAnalysis           TaskKind = "analysis"
	TaskJobMatch           TaskKind = "job-match"
	TaskQuestionGeneration TaskKind = "question-generation"
	TaskLetterGeneration   TaskKind = "letter-generation"
	TaskArtifactGeneration TaskKind = "artifact-generation"
)

// Valid reports whether k is one of the known task kinds.
func (k TaskKind) Valid() bool {
	switch k {
	case TaskAnalysis, TaskJobMatch, TaskQuestionGeneration, TaskLetterGeneration, TaskArtifactGeneration:
		return true
	}
	return false
}

type TaskStatus string

const (
	TaskProcessing TaskStatus = "processing"
	TaskCompleted  TaskStatus = "completed"
	TaskFailed     TaskStatus = "failed"
)

// Terminal reports whether no further transition is allowed from s.
func (s TaskStatus) Terminal() bool {
	return s == TaskCompleted || s == TaskFailed
}

// Task is the durable ledger row of one pipeline execution.
//
// Lifecycle: processing -> completed | failed
type Task struct {
	ID           uuid.UUID              `json:"id"`
	SessionID    uuid.UUID              `json:"session_id"`
	OwnerID      uuid.UUID              `json:"owner_id"`
	Kind         TaskKind               `json:"kind"`
	Status       TaskStatus             `json:"status"`
	Metadata     map[string]interface{} `json:"metadata,omitempty"`
	Result       json.RawMessage        `json:"result,omitempty"`
	ErrorMessage *string                `json:"error_message,omitempty"`
	CreatedAt    time.Time              `json:"created_at"`
	CompletedAt  *time.Time             `json:"completed_at,omitempty"`
}

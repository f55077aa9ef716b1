package usecase

import (
	"context"

	"github.com/google/uuid"

	"resume-copilot/internal/domain"
	"resume-copilot/internal/model"
)

// Inputs are the caller-supplied parameters of one pipeline run.
type Inputs struct {
	Kind      domain.TaskKind
	OwnerID   uuid.UUID
	SessionID uuid.UUID
	// SourceText is the CV text. When empty, DocumentID names a parsed
	// document to read it from.
	SourceText string
	// SecondaryText is the job description for kinds that need one.
	SecondaryText string
	DocumentID    *uuid.UUID
	Language      string
}

// Outcome is what a pipeline run reports back to the caller.
type Outcome struct {
	TaskID uuid.UUID         `json:"taskId"`
	Status domain.TaskStatus `json:"status"`
	Error  string            `json:"error,omitempty"`
	Result *model.Result     `json:"result,omitempty"`
}

// PipelineState is created per run, threaded through the stages and dropped
// once the task row is written.
type PipelineState struct {
	Inputs Inputs
	TaskID uuid.UUID

	Source         string
	JobDescription string
	Result         *model.Result
	Items          []domain.ApprovalItem

	FailedStage string
	Err         error
}

func (s *PipelineState) degrade(stage string) {
	s.Result.Meta.Degraded = true
	s.Result.Meta.DegradedStages = append(s.Result.Meta.DegradedStages, stage)
}

// Stage is one step of a pipeline. A returned error stops the run; the
// persist step still writes the task row.
type Stage struct {
	Name string
	Run  func(ctx context.Context, st *PipelineState) error
}

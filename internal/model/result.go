package model

// Go models for the structured payloads the generation service returns, one
// union member per task kind.

import (
	"github.com/google/uuid"

	"resume-copilot/internal/domain"
)

type Confidence string

const (
	ConfidenceLow    Confidence = "low"
	ConfidenceMedium Confidence = "medium"
	ConfidenceHigh   Confidence = "high"
)

type Suggestion struct {
	Section    string     `json:"section"`
	ChangeKind string     `json:"change_kind,omitempty"`
	Original   string     `json:"original,omitempty"`
	Proposed   string     `json:"proposed"`
	Rationale  string     `json:"rationale,omitempty"`
	Confidence Confidence `json:"confidence,omitempty"`
}

// Kind returns the change kind recorded on the approval row.
func (s Suggestion) Kind() string {
	if s.ChangeKind != "" {
		return s.ChangeKind
	}
	if s.Section != "" {
		return s.Section
	}
	return "general"
}

type AnalysisResult struct {
	Summary     string       `json:"summary"`
	Score       float64      `json:"score"`
	Strengths   []string     `json:"strengths,omitempty"`
	Weaknesses  []string     `json:"weaknesses,omitempty"`
	Suggestions []Suggestion `json:"suggestions"`
	Fallback    bool         `json:"fallback,omitempty"`
}

type Question struct {
	Question string `json:"question"`
	Category string `json:"category,omitempty"`
	Hint     string `json:"hint,omitempty"`
}

type QuestionSet struct {
	Questions []Question `json:"questions"`
	Fallback  bool       `json:"fallback,omitempty"`
}

type LetterText struct {
	Greeting string `json:"greeting,omitempty"`
	Body     string `json:"body"`
	Closing  string `json:"closing,omitempty"`
	Fallback bool   `json:"fallback,omitempty"`
}

// Text joins the letter parts into the document a user would send.
func (l *LetterText) Text() string {
	out := ""
	for _, part := range []string{l.Greeting, l.Body, l.Closing} {
		if part == "" {
			continue
		}
		if out != "" {
			out += "\n\n"
		}
		out += part
	}
	return out
}

type ArtifactContent struct {
	Content     string      `json:"content"`
	ApprovalIDs []uuid.UUID `json:"approval_ids"`
}

type ResultMeta struct {
	Degraded       bool        `json:"degraded"`
	DegradedStages []string    `json:"degraded_stages,omitempty"`
	ApprovalIDs    []uuid.UUID `json:"approval_ids,omitempty"`
	CacheHits      int         `json:"cache_hits,omitempty"`
	SourceChars    int         `json:"source_chars,omitempty"`
}

// Result is the tagged union persisted as a task's result payload. Exactly
// one member matching Kind is set.
type Result struct {
	Kind      domain.TaskKind  `json:"kind"`
	Analysis  *AnalysisResult  `json:"analysis,omitempty"`
	Questions *QuestionSet     `json:"questions,omitempty"`
	Letter    *LetterText      `json:"letter,omitempty"`
	Artifact  *ArtifactContent `json:"artifact,omitempty"`
	Meta      ResultMeta       `json:"meta"`
}

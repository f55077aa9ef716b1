package usecase

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"resume-copilot/internal/domain"
	"resume-copilot/internal/model"
	"resume-copilot/pkg/ai/prompts"
)

// Artifact is a merged document built from a session's approved changes.
type Artifact struct {
	ID          uuid.UUID   `json:"artifactId"`
	SessionID   uuid.UUID   `json:"sessionId"`
	Content     string      `json:"content"`
	ApprovalIDs []uuid.UUID `json:"approvalIds"`
	CreatedAt   time.Time   `json:"createdAt"`
}

type ArtifactGenerator struct {
	ledger    *Ledger
	approvals *ApprovalGate
	completer Completer
	documents DocumentStore
	logger    *zap.Logger
}

func NewArtifactGenerator(ledger *Ledger, approvals *ApprovalGate, completer Completer, documents DocumentStore, logger *zap.Logger) *ArtifactGenerator {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ArtifactGenerator{ledger: ledger, approvals: approvals, completer: completer, documents: documents, logger: logger}
}

// ArtifactOptions tunes one Generate call. SourceTaskID picks the pipeline
// run whose approved changes are used when the session holds approved changes
// for more than one source.
type ArtifactOptions struct {
	Language     string
	SourceTaskID *uuid.UUID
}

// changeGroup is the set of approved changes aimed at one target: a CV text,
// or one generated cover letter.
type changeGroup struct {
	letter  bool
	source  string
	rows    []*domain.Approval
	taskIDs []uuid.UUID
}

func (cg *changeGroup) has(taskID uuid.UUID) bool {
	for _, id := range cg.taskIDs {
		if id == taskID {
			return true
		}
	}
	return false
}

// Generate builds the final document for the session's approved changes.
// Pending and rejected rows are never read. CV changes are merged into the
// text they were proposed against with one model call; an approved cover
// letter becomes the artifact as is. Changes aimed at different targets are
// never mixed: the caller picks one with opts.SourceTaskID.
// The artifact is recorded as an artifact-generation task whose id is the
// artifact id.
func (g *ArtifactGenerator) Generate(ctx context.Context, sessionID, ownerID uuid.UUID, opts ArtifactOptions) (*Artifact, error) {
	approved := domain.ApprovalApproved
	listed, err := g.approvals.ListBySessionAndStatus(ctx, sessionID, ownerID, &approved)
	if err != nil {
		return nil, err
	}
	rows := make([]*domain.Approval, 0, len(listed))
	for _, a := range listed {
		// The listing is already filtered; this guards a store that ignores the filter.
		if a.Status == domain.ApprovalApproved {
			rows = append(rows, a)
		}
	}
	if len(rows) == 0 {
		return nil, domain.ErrNoApprovedChanges
	}

	groups, err := g.groupBySource(ctx, sessionID, ownerID, rows)
	if err != nil {
		return nil, err
	}
	group, err := pickGroup(groups, opts.SourceTaskID)
	if err != nil {
		return nil, err
	}

	ids := make([]uuid.UUID, 0, len(group.rows))
	for _, a := range group.rows {
		ids = append(ids, a.ID)
	}

	ctx = context.WithoutCancel(ctx)
	meta := map[string]interface{}{
		"approval_ids":    ids,
		"source_chars":    len(group.source),
		"source_task_ids": group.taskIDs,
	}
	if group.letter {
		meta["change_kind"] = coverLetterKind
	}
	taskID, err := g.ledger.Create(ctx, domain.TaskArtifactGeneration, ownerID, sessionID, meta)
	if err != nil {
		return nil, err
	}

	var content string
	if group.letter {
		content = letterContent(group.rows)
	} else {
		changes := make([]prompts.Change, 0, len(group.rows))
		for _, a := range group.rows {
			changes = append(changes, prompts.Change{
				Kind:     a.ChangeKind,
				Original: a.OriginalContent,
				Proposed: proposedText(a.ProposedContent),
			})
		}
		raw, err := g.completer.Complete(ctx, prompts.Artifact(group.source, changes, opts.Language))
		if err != nil {
			g.fail(ctx, taskID, err.Error())
			if !errors.Is(err, domain.ErrUpstream) {
				err = fmt.Errorf("%w: %v", domain.ErrUpstream, err)
			}
			return nil, fmt.Errorf("%w: %w", domain.ErrArtifactGeneration, err)
		}
		content = model.StripCodeFences(raw)
	}
	if content == "" {
		g.fail(ctx, taskID, "generated document is empty")
		return nil, fmt.Errorf("%w: generated document is empty", domain.ErrArtifactGeneration)
	}

	result := &model.Result{
		Kind:     domain.TaskArtifactGeneration,
		Artifact: &model.ArtifactContent{Content: content, ApprovalIDs: ids},
		Meta:     model.ResultMeta{ApprovalIDs: ids, SourceChars: len(group.source)},
	}
	if err := g.ledger.Complete(ctx, taskID, result); err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrArtifactGeneration, err)
	}
	return &Artifact{ID: taskID, SessionID: sessionID, Content: content, ApprovalIDs: ids, CreatedAt: time.Now().UTC()}, nil
}

// Get loads a previously generated artifact.
func (g *ArtifactGenerator) Get(ctx context.Context, id, ownerID uuid.UUID) (*Artifact, error) {
	t, err := g.ledger.Get(ctx, id, ownerID)
	if err != nil {
		return nil, err
	}
	if t.Kind != domain.TaskArtifactGeneration {
		return nil, fmt.Errorf("get artifact: %w", domain.ErrNotFound)
	}
	switch t.Status {
	case domain.TaskFailed:
		msg := ""
		if t.ErrorMessage != nil {
			msg = *t.ErrorMessage
		}
		return nil, fmt.Errorf("%w: %s", domain.ErrArtifactGeneration, msg)
	case domain.TaskProcessing:
		return nil, fmt.Errorf("artifact %s still processing: %w", id, domain.ErrNotFound)
	}
	var res model.Result
	if err := json.Unmarshal(t.Result, &res); err != nil || res.Artifact == nil {
		return nil, fmt.Errorf("decode artifact %s: %w", id, domain.ErrArtifactGeneration)
	}
	a := &Artifact{ID: t.ID, SessionID: t.SessionID, Content: res.Artifact.Content, ApprovalIDs: res.Artifact.ApprovalIDs, CreatedAt: t.CreatedAt}
	if t.CompletedAt != nil {
		a.CreatedAt = *t.CompletedAt
	}
	return a, nil
}

func (g *ArtifactGenerator) fail(ctx context.Context, taskID uuid.UUID, msg string) {
	if err := g.ledger.Fail(ctx, taskID, msg); err != nil {
		g.logger.Error("artifact task not marked failed", zap.String("task_id", taskID.String()), zap.Error(err))
	}
}

// groupBySource splits approved rows by target. CV changes are keyed by the
// text they were proposed against, so runs over the same CV share a group.
// Each cover letter is its own group.
func (g *ArtifactGenerator) groupBySource(ctx context.Context, sessionID, ownerID uuid.UUID, rows []*domain.Approval) ([]*changeGroup, error) {
	var groups []*changeGroup
	byKey := make(map[string]*changeGroup)
	sources := make(map[uuid.UUID]string)
	for _, a := range rows {
		letter := a.ChangeKind == coverLetterKind
		var key, source string
		if letter {
			key = "letter:" + a.ID.String()
			if a.TaskID != nil {
				key = "letter:" + a.TaskID.String()
			}
		} else {
			text, err := g.rowSource(ctx, sessionID, ownerID, a, sources)
			if err != nil {
				return nil, err
			}
			key, source = "cv:"+text, text
		}
		cg, ok := byKey[key]
		if !ok {
			cg = &changeGroup{letter: letter, source: source}
			byKey[key] = cg
			groups = append(groups, cg)
		}
		cg.rows = append(cg.rows, a)
		if a.TaskID != nil && !cg.has(*a.TaskID) {
			cg.taskIDs = append(cg.taskIDs, *a.TaskID)
		}
	}
	return groups, nil
}

func pickGroup(groups []*changeGroup, sourceTaskID *uuid.UUID) (*changeGroup, error) {
	if sourceTaskID != nil {
		for _, cg := range groups {
			if cg.has(*sourceTaskID) {
				return cg, nil
			}
		}
		return nil, fmt.Errorf("%w: none proposed by task %s", domain.ErrNoApprovedChanges, *sourceTaskID)
	}
	if len(groups) == 1 {
		return groups[0], nil
	}
	var tasks []string
	for _, cg := range groups {
		for _, id := range cg.taskIDs {
			tasks = append(tasks, id.String())
		}
	}
	return nil, fmt.Errorf("%w: approved changes target %d different documents, choose a source task (%s)",
		domain.ErrConflict, len(groups), strings.Join(tasks, ", "))
}

// rowSource resolves the text a change was proposed against: its parsed
// document, else the input recorded on the task that proposed it. Rows
// without a task fall back to the session's latest completed analysis.
// Resolved task sources are memoized in sources.
func (g *ArtifactGenerator) rowSource(ctx context.Context, sessionID, ownerID uuid.UUID, a *domain.Approval, sources map[uuid.UUID]string) (string, error) {
	if a.DocumentID != nil {
		if text := g.documentText(ctx, *a.DocumentID, ownerID); text != "" {
			return text, nil
		}
	}
	if a.TaskID == nil {
		if text, ok := sources[uuid.Nil]; ok {
			return text, nil
		}
		text, err := g.sessionSource(ctx, sessionID, ownerID)
		if err != nil {
			return "", err
		}
		sources[uuid.Nil] = text
		return text, nil
	}

	text, ok := sources[*a.TaskID]
	if !ok {
		t, err := g.ledger.Get(ctx, *a.TaskID, ownerID)
		switch {
		case errors.Is(err, domain.ErrNotFound):
		case err != nil:
			return "", err
		default:
			text = g.taskSource(ctx, t, ownerID)
		}
		sources[*a.TaskID] = text
	}
	if text == "" {
		return "", fmt.Errorf("%w: no source document recorded for task %s", domain.ErrInvalidInput, *a.TaskID)
	}
	return text, nil
}

func (g *ArtifactGenerator) taskSource(ctx context.Context, t *domain.Task, ownerID uuid.UUID) string {
	if text, ok := t.Metadata["source_text"].(string); ok && strings.TrimSpace(text) != "" {
		return strings.TrimSpace(text)
	}
	if raw, ok := t.Metadata["document_id"].(string); ok {
		if docID, err := uuid.Parse(raw); err == nil {
			return g.documentText(ctx, docID, ownerID)
		}
	}
	return ""
}

func (g *ArtifactGenerator) documentText(ctx context.Context, docID, ownerID uuid.UUID) string {
	if g.documents == nil {
		return ""
	}
	doc, err := g.documents.GetParsedText(ctx, docID, ownerID)
	if err != nil {
		g.logger.Warn("approval document unavailable", zap.String("document_id", docID.String()), zap.Error(err))
		return ""
	}
	return strings.TrimSpace(doc.Text)
}

func (g *ArtifactGenerator) sessionSource(ctx context.Context, sessionID, ownerID uuid.UUID) (string, error) {
	for _, kind := range []domain.TaskKind{domain.TaskAnalysis, domain.TaskJobMatch} {
		k := kind
		tasks, err := g.ledger.ListSession(ctx, sessionID, ownerID, &k)
		if err != nil {
			return "", err
		}
		for _, t := range tasks {
			if t.Status != domain.TaskCompleted {
				continue
			}
			if text := g.taskSource(ctx, t, ownerID); text != "" {
				return text, nil
			}
		}
	}
	return "", fmt.Errorf("%w: no source document recorded for session %s", domain.ErrInvalidInput, sessionID)
}

// letterContent is the approved cover letter text, one letter per row.
func letterContent(rows []*domain.Approval) string {
	parts := make([]string, 0, len(rows))
	for _, a := range rows {
		if text := strings.TrimSpace(proposedText(a.ProposedContent)); text != "" {
			parts = append(parts, text)
		}
	}
	return strings.Join(parts, "\n\n")
}

// proposedText extracts the replacement text from an approval payload, which
// is either a suggestion object or a bare JSON string.
func proposedText(raw json.RawMessage) string {
	var s model.Suggestion
	if err := json.Unmarshal(raw, &s); err == nil && s.Proposed != "" {
		return s.Proposed
	}
	var text string
	if err := json.Unmarshal(raw, &text); err == nil {
		return text
	}
	return string(raw)
}

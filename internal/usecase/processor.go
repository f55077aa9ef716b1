package usecase

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"resume-copilot/internal/domain"
	"resume-copilot/internal/model"
)

const persistStage = "persist"

// PipelineDeps wires the collaborators of an Executor.
type PipelineDeps struct {
	Ledger    *Ledger
	Approvals *ApprovalGate
	Cache     *Cache
	Completer Completer
	Documents DocumentStore
	Logger    *zap.Logger
	// ModelTTL is how long a parsed model response is memoized.
	ModelTTL       time.Duration
	MaxSourceChars int
}

// Executor runs the fixed stage sequence for a task kind and records the
// outcome in the ledger.
type Executor struct {
	ledger    *Ledger
	approvals *ApprovalGate
	cache     *Cache
	completer Completer
	documents DocumentStore
	logger    *zap.Logger
	modelTTL  time.Duration
	maxChars  int
	stages    map[domain.TaskKind][]Stage
}

func NewExecutor(d PipelineDeps) *Executor {
	logger := d.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	e := &Executor{
		ledger:    d.Ledger,
		approvals: d.Approvals,
		cache:     d.Cache,
		completer: d.Completer,
		documents: d.Documents,
		logger:    logger,
		modelTTL:  d.ModelTTL,
		maxChars:  d.MaxSourceChars,
	}
	e.stages = e.defaultStages()
	return e
}

// Validate rejects inputs that can never produce a result, before a task row
// exists.
func (e *Executor) Validate(in Inputs) error {
	if _, ok := e.stages[in.Kind]; !ok {
		return fmt.Errorf("%w: task kind %q cannot be started as a pipeline", domain.ErrInvalidInput, in.Kind)
	}
	if in.OwnerID == uuid.Nil {
		return fmt.Errorf("%w: owner id is required", domain.ErrInvalidInput)
	}
	if in.SessionID == uuid.Nil {
		return fmt.Errorf("%w: session id is required", domain.ErrInvalidInput)
	}
	if strings.TrimSpace(in.SourceText) == "" && in.DocumentID == nil {
		return fmt.Errorf("%w: source text or document id is required", domain.ErrInvalidInput)
	}
	if needsJobDescription(in.Kind) && strings.TrimSpace(in.SecondaryText) == "" {
		return fmt.Errorf("%w: %s requires a job description", domain.ErrInvalidInput, in.Kind)
	}
	return nil
}

func needsJobDescription(kind domain.TaskKind) bool {
	return kind == domain.TaskJobMatch || kind == domain.TaskLetterGeneration
}

// Run executes one pipeline synchronously. Stage failures are not returned as
// errors: they end in a failed task whose message is in the Outcome. The
// returned error is reserved for invalid input and ledger failures.
//
// The run is detached from ctx cancellation so an abandoned request still
// writes its terminal task row.
func (e *Executor) Run(ctx context.Context, in Inputs) (*Outcome, error) {
	if err := e.Validate(in); err != nil {
		return nil, err
	}
	ctx = context.WithoutCancel(ctx)

	meta := map[string]interface{}{
		"source_chars": len(in.SourceText),
	}
	if in.SourceText != "" {
		meta["source_text"] = in.SourceText
	}
	if in.SecondaryText != "" {
		meta["source_text2"] = in.SecondaryText
	}
	if in.DocumentID != nil {
		meta["document_id"] = in.DocumentID.String()
	}
	if in.Language != "" {
		meta["language"] = in.Language
	}
	taskID, err := e.ledger.Create(ctx, in.Kind, in.OwnerID, in.SessionID, meta)
	if err != nil {
		return nil, err
	}

	st := &PipelineState{
		Inputs: in,
		TaskID: taskID,
		Result: &model.Result{Kind: in.Kind},
	}
	log := e.logger.With(zap.String("task_id", taskID.String()), zap.String("kind", string(in.Kind)))

	for _, stage := range e.stages[in.Kind] {
		start := time.Now()
		if err := stage.Run(ctx, st); err != nil {
			st.FailedStage = stage.Name
			st.Err = err
			log.Warn("pipeline stage failed", zap.String("stage", stage.Name), zap.Error(err))
			break
		}
		log.Debug("pipeline stage done", zap.String("stage", stage.Name), zap.Duration("took", time.Since(start)))
	}
	return e.persist(ctx, st, log)
}

// persist writes the terminal task row and, on success only, the approvals.
func (e *Executor) persist(ctx context.Context, st *PipelineState, log *zap.Logger) (*Outcome, error) {
	out := &Outcome{TaskID: st.TaskID}
	if st.Err != nil {
		msg := fmt.Sprintf("%s: %v", st.FailedStage, st.Err)
		if err := e.ledger.Fail(ctx, st.TaskID, msg); err != nil {
			return nil, err
		}
		out.Status = domain.TaskFailed
		out.Error = msg
		return out, nil
	}

	if len(st.Items) > 0 {
		ids, err := e.approvals.CreateBatch(ctx, st.Inputs.SessionID, st.Inputs.OwnerID, st.Items)
		if err != nil {
			log.Error("no approvals stored", zap.Int("items", len(st.Items)), zap.Error(err))
		} else if len(ids) < len(st.Items) {
			log.Warn("some approvals were not stored", zap.Int("items", len(st.Items)), zap.Int("stored", len(ids)))
		}
		st.Result.Meta.ApprovalIDs = ids
	}

	if err := e.ledger.Complete(ctx, st.TaskID, st.Result); err != nil {
		if errors.Is(err, domain.ErrConflict) {
			return nil, err
		}
		msg := fmt.Sprintf("%s: %v", persistStage, err)
		if ferr := e.ledger.Fail(ctx, st.TaskID, msg); ferr != nil {
			log.Error("task left in processing", zap.Error(ferr))
			return nil, err
		}
		out.Status = domain.TaskFailed
		out.Error = msg
		return out, nil
	}
	out.Status = domain.TaskCompleted
	out.Result = st.Result
	return out, nil
}

package usecase

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"resume-copilot/internal/domain"
)

type ServiceConfig struct {
	PipelineLimit  int
	PipelineWindow time.Duration
	// PollMaxAttempts caps the wait a caller may ask for on GetTask.
	PollMaxAttempts int
	PollInterval    time.Duration
}

// RateLimitError reports a denied request together with the limiter's view
// of the window.
type RateLimitError struct {
	Decision RateDecision
}

func (e *RateLimitError) Error() string {
	return fmt.Sprintf("rate limit exceeded, resets at %s", e.Decision.ResetAt.Format(time.RFC3339))
}

func (e *RateLimitError) Unwrap() error { return domain.ErrRateLimited }

// Service is the inbound surface of the core: every operation takes the
// owner id supplied by the identity layer.
type Service struct {
	executor  *Executor
	ledger    *Ledger
	approvals *ApprovalGate
	artifacts *ArtifactGenerator
	limiter   *Limiter
	markup    Markup
	renderer  Renderer
	cfg       ServiceConfig
	logger    *zap.Logger
}

type ServiceDeps struct {
	Executor  *Executor
	Ledger    *Ledger
	Approvals *ApprovalGate
	Artifacts *ArtifactGenerator
	Limiter   *Limiter
	Markup    Markup
	Renderer  Renderer
	Logger    *zap.Logger
}

func NewService(d ServiceDeps, cfg ServiceConfig) *Service {
	logger := d.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = time.Second
	}
	return &Service{
		executor:  d.Executor,
		ledger:    d.Ledger,
		approvals: d.Approvals,
		artifacts: d.Artifacts,
		limiter:   d.Limiter,
		markup:    d.Markup,
		renderer:  d.Renderer,
		cfg:       cfg,
		logger:    logger,
	}
}

// StartPipeline validates the inputs, applies the owner's rate limit and runs
// the pipeline to completion.
func (s *Service) StartPipeline(ctx context.Context, in Inputs) (*Outcome, error) {
	if err := s.executor.Validate(in); err != nil {
		return nil, err
	}
	if err := s.allow(ctx, in.OwnerID); err != nil {
		return nil, err
	}
	return s.executor.Run(ctx, in)
}

// GetTask returns the task. With wait > 0 it polls up to wait times (capped)
// for a terminal status and returns whatever it saw last.
func (s *Service) GetTask(ctx context.Context, id, ownerID uuid.UUID, wait int) (*domain.Task, error) {
	if wait <= 0 {
		return s.ledger.Get(ctx, id, ownerID)
	}
	if s.cfg.PollMaxAttempts > 0 && wait > s.cfg.PollMaxAttempts {
		wait = s.cfg.PollMaxAttempts
	}
	t, err := s.ledger.PollUntilTerminal(ctx, id, ownerID, wait, s.cfg.PollInterval)
	if errors.Is(err, domain.ErrPollTimeout) {
		return t, nil
	}
	return t, err
}

func (s *Service) ListTasks(ctx context.Context, sessionID, ownerID uuid.UUID, kind *domain.TaskKind) ([]*domain.Task, error) {
	return s.ledger.ListSession(ctx, sessionID, ownerID, kind)
}

func (s *Service) ListApprovals(ctx context.Context, sessionID, ownerID uuid.UUID, status *domain.ApprovalStatus) ([]*domain.Approval, error) {
	return s.approvals.ListBySessionAndStatus(ctx, sessionID, ownerID, status)
}

func (s *Service) DecideApproval(ctx context.Context, id, ownerID uuid.UUID, decision domain.Decision, feedback *string) (*domain.Approval, error) {
	return s.approvals.Decide(ctx, id, ownerID, decision, feedback)
}

func (s *Service) ApprovalSummary(ctx context.Context, sessionID, ownerID uuid.UUID) (domain.ApprovalSummary, error) {
	return s.approvals.Summary(ctx, sessionID, ownerID)
}

func (s *Service) GenerateArtifact(ctx context.Context, sessionID, ownerID uuid.UUID, opts ArtifactOptions) (*Artifact, error) {
	if sessionID == uuid.Nil || ownerID == uuid.Nil {
		return nil, fmt.Errorf("%w: session and owner are required", domain.ErrInvalidInput)
	}
	if err := s.allow(ctx, ownerID); err != nil {
		return nil, err
	}
	return s.artifacts.Generate(ctx, sessionID, ownerID, opts)
}

func (s *Service) GetArtifact(ctx context.Context, id, ownerID uuid.UUID) (*Artifact, error) {
	return s.artifacts.Get(ctx, id, ownerID)
}

func (s *Service) ExportArtifactHTML(ctx context.Context, id, ownerID uuid.UUID) (string, error) {
	a, err := s.artifacts.Get(ctx, id, ownerID)
	if err != nil {
		return "", err
	}
	if s.markup == nil {
		return "", fmt.Errorf("html export not configured")
	}
	html, err := s.markup.ToHTML("Artifact "+a.ID.String(), a.Content)
	if err != nil {
		return "", fmt.Errorf("render artifact html: %w", err)
	}
	return html, nil
}

func (s *Service) ExportArtifactPDF(ctx context.Context, id, ownerID uuid.UUID) ([]byte, error) {
	html, err := s.ExportArtifactHTML(ctx, id, ownerID)
	if err != nil {
		return nil, err
	}
	if s.renderer == nil {
		return nil, fmt.Errorf("pdf export not configured")
	}
	pdf, err := s.renderer.RenderHTMLToPDF(ctx, html)
	if err != nil {
		return nil, fmt.Errorf("render artifact pdf: %w", err)
	}
	return pdf, nil
}

func (s *Service) allow(ctx context.Context, ownerID uuid.UUID) error {
	if s.limiter == nil {
		return nil
	}
	d, err := s.limiter.CheckAndRecord(ctx, "owner:"+ownerID.String(), s.cfg.PipelineLimit, s.cfg.PipelineWindow)
	if err != nil {
		if errors.Is(err, domain.ErrInvalidInput) {
			return err
		}
		return &RateLimitError{Decision: d}
	}
	if !d.Allowed {
		return &RateLimitError{Decision: d}
	}
	return nil
}

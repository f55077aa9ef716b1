package http

import (
	"fmt"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"resume-copilot/internal/domain"
	"resume-copilot/internal/usecase"
)

type Handler struct {
	svc    *usecase.Service
	logger *zap.Logger
}

func NewHandler(svc *usecase.Service, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{svc: svc, logger: logger}
}

// RouterConfig holds the cross-cutting settings of the /api/v1 group.
type RouterConfig struct {
	JWTSecret  string
	Limiter    *usecase.Limiter
	HTTPLimit  int
	HTTPWindow time.Duration
}

// Register mounts the health check and the authenticated API on app.
func (h *Handler) Register(app fiber.Router, cfg RouterConfig) {
	app.Get("/healthz", h.Health)

	api := app.Group("/api/v1")
	if cfg.Limiter != nil {
		api.Use(RateLimit(cfg.Limiter, cfg.HTTPLimit, cfg.HTTPWindow, h.logger))
	}
	api.Use(Identity(cfg.JWTSecret))

	api.Post("/pipelines", h.StartPipeline)
	api.Get("/tasks/:id", h.GetTask)
	api.Get("/sessions/:sid/tasks", h.ListTasks)
	api.Get("/sessions/:sid/approvals", h.ListApprovals)
	api.Get("/sessions/:sid/approvals/summary", h.ApprovalSummary)
	api.Post("/approvals/:id/decision", h.DecideApproval)
	api.Post("/sessions/:sid/artifact", h.GenerateArtifact)
	api.Get("/artifacts/:id", h.GetArtifact)
	api.Get("/artifacts/:id/html", h.ExportArtifactHTML)
	api.Get("/artifacts/:id/pdf", h.ExportArtifactPDF)
}

func (h *Handler) Health(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{"ok": 1})
}

type startReq struct {
	Kind           string `json:"kind"`
	SessionID      string `json:"sessionId"`
	SourceText     string `json:"sourceText"`
	JobDescription string `json:"jobDescription,omitempty"`
	DocumentID     string `json:"documentId,omitempty"`
	Language       string `json:"language,omitempty"`
}

func (h *Handler) StartPipeline(c *fiber.Ctx) error {
	var req startReq
	if err := c.BodyParser(&req); err != nil {
		return respondError(c, fmt.Errorf("%w: invalid payload", domain.ErrInvalidInput))
	}
	sessionID, err := parseID(req.SessionID, "sessionId")
	if err != nil {
		return respondError(c, err)
	}
	in := usecase.Inputs{
		Kind:          domain.TaskKind(req.Kind),
		OwnerID:       ownerFrom(c),
		SessionID:     sessionID,
		SourceText:    req.SourceText,
		SecondaryText: req.JobDescription,
		Language:      req.Language,
	}
	if req.DocumentID != "" {
		docID, err := parseID(req.DocumentID, "documentId")
		if err != nil {
			return respondError(c, err)
		}
		in.DocumentID = &docID
	}

	out, err := h.svc.StartPipeline(c.UserContext(), in)
	if err != nil {
		return respondError(c, err)
	}
	h.logger.Info("pipeline finished",
		zap.String("task_id", out.TaskID.String()),
		zap.String("kind", req.Kind),
		zap.String("status", string(out.Status)),
	)
	return c.JSON(out)
}

func (h *Handler) GetTask(c *fiber.Ctx) error {
	id, err := parseID(c.Params("id"), "task id")
	if err != nil {
		return respondError(c, err)
	}
	wait := c.QueryInt("wait", 0)
	t, err := h.svc.GetTask(c.UserContext(), id, ownerFrom(c), wait)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(t)
}

func (h *Handler) ListTasks(c *fiber.Ctx) error {
	sessionID, err := parseID(c.Params("sid"), "session id")
	if err != nil {
		return respondError(c, err)
	}
	var kind *domain.TaskKind
	if raw := c.Query("kind"); raw != "" {
		k := domain.TaskKind(raw)
		if !k.Valid() {
			return respondError(c, fmt.Errorf("%w: unknown task kind %q", domain.ErrInvalidInput, raw))
		}
		kind = &k
	}
	tasks, err := h.svc.ListTasks(c.UserContext(), sessionID, ownerFrom(c), kind)
	if err != nil {
		return respondError(c, err)
	}
	if tasks == nil {
		tasks = []*domain.Task{}
	}
	return c.JSON(fiber.Map{"data": tasks})
}

func (h *Handler) ListApprovals(c *fiber.Ctx) error {
	sessionID, err := parseID(c.Params("sid"), "session id")
	if err != nil {
		return respondError(c, err)
	}
	var status *domain.ApprovalStatus
	if raw := c.Query("status"); raw != "" {
		s := domain.ApprovalStatus(raw)
		status = &s
	}
	rows, err := h.svc.ListApprovals(c.UserContext(), sessionID, ownerFrom(c), status)
	if err != nil {
		return respondError(c, err)
	}
	if rows == nil {
		rows = []*domain.Approval{}
	}
	return c.JSON(fiber.Map{"data": rows})
}

func (h *Handler) ApprovalSummary(c *fiber.Ctx) error {
	sessionID, err := parseID(c.Params("sid"), "session id")
	if err != nil {
		return respondError(c, err)
	}
	sum, err := h.svc.ApprovalSummary(c.UserContext(), sessionID, ownerFrom(c))
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(sum)
}

type decisionReq struct {
	Decision string  `json:"decision"`
	Feedback *string `json:"feedback,omitempty"`
}

func (h *Handler) DecideApproval(c *fiber.Ctx) error {
	id, err := parseID(c.Params("id"), "approval id")
	if err != nil {
		return respondError(c, err)
	}
	var req decisionReq
	if err := c.BodyParser(&req); err != nil {
		return respondError(c, fmt.Errorf("%w: invalid payload", domain.ErrInvalidInput))
	}
	a, err := h.svc.DecideApproval(c.UserContext(), id, ownerFrom(c), domain.Decision(strings.ToLower(req.Decision)), req.Feedback)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(a)
}

type artifactReq struct {
	Language     string `json:"language,omitempty"`
	SourceTaskID string `json:"sourceTaskId,omitempty"`
}

func (h *Handler) GenerateArtifact(c *fiber.Ctx) error {
	sessionID, err := parseID(c.Params("sid"), "session id")
	if err != nil {
		return respondError(c, err)
	}
	var req artifactReq
	if len(c.Body()) > 0 {
		if err := c.BodyParser(&req); err != nil {
			return respondError(c, fmt.Errorf("%w: invalid payload", domain.ErrInvalidInput))
		}
	}
	opts := usecase.ArtifactOptions{Language: req.Language}
	if req.SourceTaskID != "" {
		taskID, err := parseID(req.SourceTaskID, "sourceTaskId")
		if err != nil {
			return respondError(c, err)
		}
		opts.SourceTaskID = &taskID
	}
	a, err := h.svc.GenerateArtifact(c.UserContext(), sessionID, ownerFrom(c), opts)
	if err != nil {
		return respondError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(a)
}

func (h *Handler) GetArtifact(c *fiber.Ctx) error {
	id, err := parseID(c.Params("id"), "artifact id")
	if err != nil {
		return respondError(c, err)
	}
	a, err := h.svc.GetArtifact(c.UserContext(), id, ownerFrom(c))
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(a)
}

func (h *Handler) ExportArtifactHTML(c *fiber.Ctx) error {
	id, err := parseID(c.Params("id"), "artifact id")
	if err != nil {
		return respondError(c, err)
	}
	html, err := h.svc.ExportArtifactHTML(c.UserContext(), id, ownerFrom(c))
	if err != nil {
		return respondError(c, err)
	}
	c.Type("html", "utf-8")
	return c.SendString(html)
}

func (h *Handler) ExportArtifactPDF(c *fiber.Ctx) error {
	id, err := parseID(c.Params("id"), "artifact id")
	if err != nil {
		return respondError(c, err)
	}
	pdf, err := h.svc.ExportArtifactPDF(c.UserContext(), id, ownerFrom(c))
	if err != nil {
		h.logger.Error("pdf export failed", zap.String("artifact_id", id.String()), zap.Error(err))
		return respondError(c, err)
	}
	c.Set(fiber.HeaderContentType, "application/pdf")
	c.Set(fiber.HeaderContentDisposition, fmt.Sprintf(`attachment; filename="artifact-%s.pdf"`, id))
	return c.Send(pdf)
}

func parseID(raw, field string) (uuid.UUID, error) {
	id, err := uuid.Parse(strings.TrimSpace(raw))
	if err != nil {
		return uuid.Nil, fmt.Errorf("%w: invalid %s", domain.ErrInvalidInput, field)
	}
	return id, nil
}

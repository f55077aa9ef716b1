// Command test_processor runs every pipeline kind end to end against a mock
// ai-service and in-memory stores, then merges the approved changes into an
// artifact. It needs no database, network or browser.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"resume-copilot/internal/adapter/memory"
	"resume-copilot/internal/domain"
	"resume-copilot/internal/logging"
	"resume-copilot/internal/usecase"
	"resume-copilot/pkg/ai"
	"resume-copilot/pkg/infrastructure"
)

const sampleCV = `Jane Doe
Hard-working developer.

Experience
- Acme Corp, Backend Developer, 2019-2024: built Go services on PostgreSQL.

Skills
Go, PostgreSQL, Docker`

const sampleJD = `Senior Backend Engineer at Nimbus Labs. Go, Kubernetes, event-driven systems.`

func startMockAI() *httptest.Server {
	mux := http.NewServeMux()
	mux.HandleFunc("/v1/chat", func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		var req struct {
			Input string `json:"input"`
		}
		_ = json.Unmarshal(body, &req)
		if req.Input == "" {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]string{"agent": "mock", "output": mockOutput(req.Input)})
	})
	return httptest.NewServer(mux)
}

func mockOutput(prompt string) string {
	switch {
	case strings.HasPrefix(prompt, "Merge approved changes"):
		return "```markdown\n# Jane Doe\n\nBackend engineer who cut API latency by 40%.\n\n## Experience\n\n- Acme Corp, Backend Developer, 2019-2024\n\n## Skills\n\nGo, PostgreSQL, Docker, Kubernetes\n```"
	case strings.HasPrefix(prompt, "Generate interview questions"):
		return `{"questions":[{"question":"How would you run Go services on Kubernetes?","category":"technical"},{"question":"Tell us about a latency problem you fixed.","category":"behavioral"}]}`
	case strings.HasPrefix(prompt, "Write cover letter"):
		return `{"greeting":"Dear Nimbus Labs team,","body":"I have spent five years building Go services and want to bring that to your event-driven platform.","closing":"Kind regards, Jane"}`
	default:
		return "```json\n" + `{"summary":"Solid backend profile with vague wording.","score":68,"strengths":["Go"],"weaknesses":["No metrics"],` +
			`"suggestions":[{"section":"summary","original":"Hard-working developer.","proposed":"Backend engineer who cut API latency by 40%.","confidence":"high"},` +
			`{"section":"skills","original":"Go, PostgreSQL, Docker","proposed":"Go, PostgreSQL, Docker, Kubernetes","confidence":"medium"}]}` + "\n```"
	}
}

func main() {
	level := flag.String("log-level", "info", "log level")
	flag.Parse()

	logger, err := logging.New(*level)
	if err != nil {
		fmt.Fprintf(os.Stderr, "logger: %v\n", err)
		os.Exit(2)
	}
	defer func() { _ = logger.Sync() }()

	if err := run(context.Background(), logger); err != nil {
		logger.Error("smoke run failed", zap.Error(err))
		os.Exit(1)
	}
}

func run(ctx context.Context, logger *zap.Logger) error {
	mock := startMockAI()
	defer mock.Close()

	completer := ai.NewClient(mock.URL, 10*time.Second, 1, logger.Named("ai"))
	ledger := usecase.NewLedger(memory.NewTaskRepo(), logger)
	gate := usecase.NewApprovalGate(memory.NewApprovalRepo(), logger)
	docs := memory.NewDocumentStore()
	svc := usecase.NewService(usecase.ServiceDeps{
		Executor: usecase.NewExecutor(usecase.PipelineDeps{
			Ledger:         ledger,
			Approvals:      gate,
			Cache:          usecase.NewCache(memory.NewCacheRepo(), logger),
			Completer:      completer,
			Documents:      docs,
			Logger:         logger,
			ModelTTL:       time.Hour,
			MaxSourceChars: 60000,
		}),
		Ledger:    ledger,
		Approvals: gate,
		Artifacts: usecase.NewArtifactGenerator(ledger, gate, completer, docs, logger),
		Limiter:   usecase.NewLimiter(memory.NewRateLimitRepo(), logger),
		Markup:    infrastructure.NewMarkdownRenderer(),
		Logger:    logger,
	}, usecase.ServiceConfig{PipelineLimit: 100, PipelineWindow: time.Hour})

	owner, session := uuid.New(), uuid.New()
	kinds := []domain.TaskKind{
		domain.TaskAnalysis,
		domain.TaskJobMatch,
		domain.TaskQuestionGeneration,
		domain.TaskLetterGeneration,
	}
	for _, kind := range kinds {
		out, err := svc.StartPipeline(ctx, usecase.Inputs{
			Kind:          kind,
			OwnerID:       owner,
			SessionID:     session,
			SourceText:    sampleCV,
			SecondaryText: sampleJD,
			Language:      "en",
		})
		if err != nil {
			return fmt.Errorf("%s: %w", kind, err)
		}
		if out.Status != domain.TaskCompleted {
			return fmt.Errorf("%s: task %s ended %s: %s", kind, out.TaskID, out.Status, out.Error)
		}
		logger.Info("pipeline completed",
			zap.String("kind", string(kind)),
			zap.String("task_id", out.TaskID.String()),
			zap.Int("approvals", len(out.Result.Meta.ApprovalIDs)),
			zap.Bool("degraded", out.Result.Meta.Degraded),
		)
	}

	pending, err := svc.ListApprovals(ctx, session, owner, nil)
	if err != nil {
		return err
	}
	for i, a := range pending {
		decision := domain.DecisionApprove
		if a.ChangeKind == "cover_letter" || i%3 == 2 {
			decision = domain.DecisionReject
		}
		if _, err := svc.DecideApproval(ctx, a.ID, owner, decision, nil); err != nil {
			return fmt.Errorf("decide %s: %w", a.ID, err)
		}
	}
	sum, err := svc.ApprovalSummary(ctx, session, owner)
	if err != nil {
		return err
	}
	logger.Info("approvals decided",
		zap.Int("approved", sum.Approved),
		zap.Int("rejected", sum.Rejected),
		zap.Bool("resolved", sum.Resolved),
	)

	art, err := svc.GenerateArtifact(ctx, session, owner, usecase.ArtifactOptions{Language: "en"})
	if err != nil {
		return fmt.Errorf("generate artifact: %w", err)
	}
	html, err := svc.ExportArtifactHTML(ctx, art.ID, owner)
	if err != nil {
		return fmt.Errorf("export html: %w", err)
	}
	logger.Info("artifact generated",
		zap.String("artifact_id", art.ID.String()),
		zap.Int("approvals", len(art.ApprovalIDs)),
		zap.Int("html_bytes", len(html)),
	)
	fmt.Println(art.Content)
	return nil
}

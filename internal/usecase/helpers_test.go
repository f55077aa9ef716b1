package usecase

import (
	"context"
	"errors"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"resume-copilot/internal/adapter/memory"
	"resume-copilot/internal/domain"
)

var errStoreDown = errors.New("store unavailable")

const validAnalysis = `{
  "summary": "Experienced backend developer; summary section is vague.",
  "score": 64,
  "strengths": ["Go", "PostgreSQL"],
  "weaknesses": ["No metrics"],
  "suggestions": [
    {"section": "summary", "original": "Hard-working developer.", "proposed": "Backend engineer who cut API latency by 40%.", "confidence": "high"},
    {"section": "skills", "proposed": "Add Kubernetes to the skills list.", "confidence": "medium"}
  ]
}`

// scriptedCompleter answers by task: the first prompt line picks the reply.
type scriptedCompleter struct {
	mu      sync.Mutex
	calls   int32
	prompts []string
	reply   func(prompt string) (string, error)
}

func (c *scriptedCompleter) Complete(ctx context.Context, prompt string) (string, error) {
	atomic.AddInt32(&c.calls, 1)
	c.mu.Lock()
	c.prompts = append(c.prompts, prompt)
	c.mu.Unlock()
	return c.reply(prompt)
}

func (c *scriptedCompleter) Calls() int { return int(atomic.LoadInt32(&c.calls)) }

func fixedReply(s string) func(string) (string, error) {
	return func(string) (string, error) { return s, nil }
}

// defaultReply returns well-formed output for every prompt kind and echoes
// the merge prompt back as the artifact.
func defaultReply(prompt string) (string, error) {
	switch {
	case strings.HasPrefix(prompt, "Merge approved changes"):
		return "```markdown\n" + prompt + "\n```", nil
	case strings.HasPrefix(prompt, "Generate interview questions"):
		return `{"questions":[{"question":"How did you cut API latency?","category":"technical"}]}`, nil
	case strings.HasPrefix(prompt, "Write cover letter"):
		return `{"greeting":"Dear hiring team,","body":"I build reliable Go services.","closing":"Kind regards"}`, nil
	default:
		return "```json\n" + validAnalysis + "\n```", nil
	}
}

type flakyApprovalRepo struct {
	*memory.ApprovalRepo
	mu      sync.Mutex
	inserts int
	failOn  map[int]bool
}

func (r *flakyApprovalRepo) Insert(ctx context.Context, a *domain.Approval) error {
	r.mu.Lock()
	r.inserts++
	n := r.inserts
	r.mu.Unlock()
	if r.failOn[n] {
		return errStoreDown
	}
	return r.ApprovalRepo.Insert(ctx, a)
}

type brokenCacheRepo struct{}

func (brokenCacheRepo) Get(context.Context, string) (*domain.CacheEntry, error) {
	return nil, errStoreDown
}
func (brokenCacheRepo) Upsert(context.Context, *domain.CacheEntry) error { return errStoreDown }
func (brokenCacheRepo) Delete(context.Context, string) error             { return errStoreDown }
func (brokenCacheRepo) DeleteIfExpired(context.Context, string, time.Time) (bool, error) {
	return false, errStoreDown
}
func (brokenCacheRepo) DeleteExpired(context.Context, time.Time) (int64, error) {
	return 0, errStoreDown
}

type brokenRateLimitRepo struct{}

func (brokenRateLimitRepo) Hit(context.Context, string, int, time.Time, time.Time) (bool, int, time.Time, error) {
	return false, 0, time.Time{}, errStoreDown
}
func (brokenRateLimitRepo) DeleteBefore(context.Context, time.Time) (int64, error) {
	return 0, errStoreDown
}

// fakeClock is a settable time source for cache and limiter tests.
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type harness struct {
	tasks     *memory.TaskRepo
	approvals ApprovalRepo
	cacheRepo CacheRepo
	docs      *memory.DocumentStore
	completer *scriptedCompleter

	ledger   *Ledger
	gate     *ApprovalGate
	cache    *Cache
	executor *Executor
	artifact *ArtifactGenerator
}

type harnessOption func(*harness)

func withApprovalRepo(r ApprovalRepo) harnessOption { return func(h *harness) { h.approvals = r } }
func withCacheRepo(r CacheRepo) harnessOption       { return func(h *harness) { h.cacheRepo = r } }
func withReply(fn func(string) (string, error)) harnessOption {
	return func(h *harness) { h.completer.reply = fn }
}

func newHarness(opts ...harnessOption) *harness {
	h := &harness{
		tasks:     memory.NewTaskRepo(),
		approvals: memory.NewApprovalRepo(),
		cacheRepo: memory.NewCacheRepo(),
		docs:      memory.NewDocumentStore(),
		completer: &scriptedCompleter{reply: defaultReply},
	}
	for _, opt := range opts {
		opt(h)
	}
	h.ledger = NewLedger(h.tasks, nil)
	h.gate = NewApprovalGate(h.approvals, nil)
	h.cache = NewCache(h.cacheRepo, nil)
	h.executor = NewExecutor(PipelineDeps{
		Ledger:         h.ledger,
		Approvals:      h.gate,
		Cache:          h.cache,
		Completer:      h.completer,
		Documents:      h.docs,
		ModelTTL:       time.Hour,
		MaxSourceChars: 10000,
	})
	h.artifact = NewArtifactGenerator(h.ledger, h.gate, h.completer, h.docs, nil)
	return h
}

func analysisInputs(owner, session uuid.UUID) Inputs {
	return Inputs{
		Kind:       domain.TaskAnalysis,
		OwnerID:    owner,
		SessionID:  session,
		SourceText: "Jane Doe\nHard-working developer.\nSkills: Go, PostgreSQL",
	}
}

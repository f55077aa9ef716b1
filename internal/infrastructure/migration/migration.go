package migration

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v4/pgxpool"
	"go.uber.org/zap"
)

// Migration is one named, idempotent schema step.
type Migration struct {
	Name string
	SQL  string
}

// Migrations lists the schema steps in the order they are applied.
var Migrations = []Migration{
	{
		Name: "create_task",
		SQL: `
		CREATE TABLE IF NOT EXISTS task (
			id            UUID PRIMARY KEY,
			session_id    UUID NOT NULL,
			owner_id      UUID NOT NULL,
			kind          TEXT NOT NULL CHECK (kind IN ('analysis','job-match','question-generation','letter-generation','artifact-generation')),
			status        TEXT NOT NULL CHECK (status IN ('processing','completed','failed')),
			metadata      JSONB NOT NULL DEFAULT '{}'::jsonb,
			result        JSONB,
			error_message TEXT,
			created_at    TIMESTAMPTZ NOT NULL DEFAULT now(),
			completed_at  TIMESTAMPTZ,
			CHECK ((status = 'processing') = (completed_at IS NULL))
		);
		CREATE INDEX IF NOT EXISTS task_session_owner_idx ON task (session_id, owner_id, created_at DESC);`,
	},
	{
		Name: "create_approval",
		SQL: `
		CREATE TABLE IF NOT EXISTS approval (
			id               UUID PRIMARY KEY,
			session_id       UUID NOT NULL,
			owner_id         UUID NOT NULL,
			document_id      UUID,
			change_kind      TEXT NOT NULL,
			original_content TEXT NOT NULL DEFAULT '',
			proposed_content JSONB NOT NULL,
			status           TEXT NOT NULL DEFAULT 'pending' CHECK (status IN ('pending','approved','rejected')),
			feedback         TEXT,
			created_at       TIMESTAMPTZ NOT NULL DEFAULT now(),
			decided_at       TIMESTAMPTZ,
			CHECK ((status = 'pending') = (decided_at IS NULL))
		);
		CREATE INDEX IF NOT EXISTS approval_session_owner_status_idx ON approval (session_id, owner_id, status);`,
	},
	{
		Name: "create_cache",
		SQL: `
		CREATE TABLE IF NOT EXISTS cache (
			key        TEXT PRIMARY KEY,
			value      JSONB NOT NULL,
			expires_at TIMESTAMPTZ,
			updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
		);
		CREATE INDEX IF NOT EXISTS cache_expires_at_idx ON cache (expires_at) WHERE expires_at IS NOT NULL;`,
	},
	{
		Name: "create_rate_limit_hit",
		SQL: `
		CREATE TABLE IF NOT EXISTS rate_limit_hit (
			id         BIGSERIAL PRIMARY KEY,
			identifier TEXT NOT NULL,
			created_at TIMESTAMPTZ NOT NULL DEFAULT now()
		);
		CREATE INDEX IF NOT EXISTS rate_limit_hit_identifier_created_idx ON rate_limit_hit (identifier, created_at);`,
	},
	{
		// Owned by the upload service; created here so a fresh database works
		// end to end.
		Name: "create_document",
		SQL: `
		CREATE TABLE IF NOT EXISTS document (
			id         UUID PRIMARY KEY,
			owner_id   UUID NOT NULL,
			text       TEXT NOT NULL DEFAULT '',
			page_count INT NOT NULL DEFAULT 0,
			metadata   JSONB NOT NULL DEFAULT '{}'::jsonb,
			created_at TIMESTAMPTZ NOT NULL DEFAULT now()
		);`,
	},
	{
		Name: "add_approval_task_id",
		SQL: `
		ALTER TABLE approval ADD COLUMN IF NOT EXISTS task_id UUID;
		CREATE INDEX IF NOT EXISTS approval_task_idx ON approval (task_id) WHERE task_id IS NOT NULL;`,
	},
}

// RunMigrations applies every migration in order on startup.
func RunMigrations(ctx context.Context, pool *pgxpool.Pool, logger *zap.Logger) error {
	if logger == nil {
		logger = zap.NewNop()
	}
	logger.Info("starting database migrations", zap.Int("count", len(Migrations)))

	for _, m := range Migrations {
		if _, err := pool.Exec(ctx, m.SQL); err != nil {
			logger.Error("migration failed", zap.String("name", m.Name), zap.Error(err))
			return fmt.Errorf("migration %s: %w", m.Name, err)
		}
		logger.Info("migration completed", zap.String("name", m.Name))
	}

	logger.Info("all migrations completed")
	return nil
}

package repository

import (
	"strings"
	"testing"

	"github.com/google/uuid"

	"resume-copilot/internal/domain"
)

func TestListApprovalsQuery(t *testing.T) {
	session, owner := uuid.New(), uuid.New()

	sql, args, err := listApprovalsQuery(domain.ApprovalFilter{SessionID: session, OwnerID: owner})
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	if strings.Contains(sql, " IN (") {
		t.Fatalf("uuid expanded into a list: %s", sql)
	}
	if strings.Contains(sql, "status =") || len(args) != 2 {
		t.Fatalf("unfiltered query should have two args: %s %v", sql, args)
	}

	approved := domain.ApprovalApproved
	sql, args, err = listApprovalsQuery(domain.ApprovalFilter{SessionID: session, OwnerID: owner, Status: &approved})
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	for _, want := range []string{"FROM approval", "owner_id = $", "session_id = $", "status = $3", "ORDER BY created_at, id"} {
		if !strings.Contains(sql, want) {
			t.Errorf("query missing %q: %s", want, sql)
		}
	}
	if len(args) != 3 || args[2] != "approved" {
		t.Fatalf("args = %v", args)
	}
}

func TestListTasksQuery(t *testing.T) {
	kind := domain.TaskAnalysis
	sql, args, err := listTasksQuery(uuid.New(), uuid.New(), &kind)
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	if !strings.Contains(sql, "kind = $3") || !strings.Contains(sql, "ORDER BY created_at DESC, id") {
		t.Fatalf("unexpected query: %s", sql)
	}
	if len(args) != 3 || args[2] != "analysis" {
		t.Fatalf("args = %v", args)
	}
}

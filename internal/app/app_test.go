package app

import (
	"context"
	"testing"

	"bizops-platform/internal/analytics"
	"bizops-platform/internal/auth"
	"bizops-platform/internal/automation"
	"bizops-platform/internal/config"
	"bizops-platform/internal/rbac"
)

type fakeGenerator struct {
	caller auth.Caller
	status analytics.ReportStatus
}

func (g *fakeGenerator) Generate(ctx context.Context, c auth.Caller, id string) (analytics.Report, error) {
	g.caller = c
	return analytics.Report{ID: id, Status: g.status, FileSize: 42, ErrorMessage: "format not supported"}, nil
}

func TestReportTask(t *testing.T) {
	g := &fakeGenerator{status: analytics.ReportCompleted}
	run := ReportTask(g)
	task := automation.ScheduledTask{WorkspaceID: "w1", CreatedBy: "u1", TaskConfig: []byte(`{"report_id":"r1"}`)}

	out, err := run(context.Background(), task)
	if err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	if out["report_id"] != "r1" || out["file_size"] != 42 {
		t.Fatalf("unexpected output: %#v", out)
	}
	want := auth.Caller{UserID: "u1", WorkspaceID: "w1", Role: rbac.RoleBusinessAdmin}
	if g.caller != want {
		t.Fatalf("unexpected caller: %#v", g.caller)
	}

	g.status = analytics.ReportFailed
	if _, err := run(context.Background(), task); err == nil {
		t.Fatalf("expected failed report to fail the task")
	}

	task.TaskConfig = []byte(`{}`)
	if _, err := run(context.Background(), task); err == nil {
		t.Fatalf("expected missing report_id to fail")
	}
}

func TestBuild_RequiresDatabases(t *testing.T) {
	if _, err := Build(config.Config{}, nil, nil); err == nil {
		t.Fatalf("expected error without databases")
	}
}

func TestGormModels(t *testing.T) {
	if len(GormModels()) == 0 {
		t.Fatalf("expected gorm models")
	}
}

// Package app builds the module services from shared infrastructure so the
// API server and the sweeper wire them the same way.
package app

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"bizops-platform/internal/analytics"
	"bizops-platform/internal/announcements"
	"bizops-platform/internal/audit"
	"bizops-platform/internal/auth"
	"bizops-platform/internal/automation"
	"bizops-platform/internal/config"
	"bizops-platform/internal/directory"
	"bizops-platform/internal/feedback"
	"bizops-platform/internal/integrations"
	"bizops-platform/internal/marketing"
	"bizops-platform/internal/notifications"
	"bizops-platform/internal/rbac"
	"bizops-platform/internal/settings"
	"bizops-platform/internal/support"
	"bizops-platform/internal/telecalling"

	"gorm.io/gorm"
)

type Services struct {
	Directory     *directory.Service
	Audit         *audit.Service
	Notifications *notifications.Service
	Support       *support.Service
	Telecalling   *telecalling.Service
	Feedback      *feedback.Service
	Announcements *announcements.Service
	Marketing     *marketing.Service
	Settings      *settings.Service
	Analytics     *analytics.Service
	Automation    *automation.Service
	Integrations  *integrations.Service
}

// GormModels lists the tables owned by the gorm-backed modules.
func GormModels() []any {
	var out []any
	out = append(out, settings.Models()...)
	out = append(out, analytics.Models()...)
	out = append(out, automation.Models()...)
	out = append(out, integrations.Models()...)
	return out
}

func mailer(cfg config.SMTPConfig) notifications.Mailer {
	if m := notifications.NewSMTPMailer(cfg); m != nil {
		return m
	}
	return nil
}

// Build constructs every service. db backs the raw-SQL repositories and gdb
// the gorm ones; both share one pool.
func Build(cfg config.Config, db *sql.DB, gdb *gorm.DB) (*Services, error) {
	if db == nil || gdb == nil {
		return nil, errors.New("app: db and gorm db are required")
	}
	m := mailer(cfg.SMTP)

	s := &Services{}
	s.Directory = directory.NewService(directory.NewPostgresRepo(db))
	s.Audit = audit.NewService(audit.NewPostgresRepo(db))
	s.Notifications = notifications.NewService(notifications.NewPostgresRepo(db), s.Directory, m)

	var supportMailer support.Mailer
	if m != nil {
		supportMailer = m
	}
	s.Support = support.NewService(support.NewPostgresRepo(db), s.Directory, supportMailer, s.Audit)
	s.Telecalling = telecalling.NewService(telecalling.NewPostgresRepo(db), s.Directory, s.Audit)
	s.Feedback = feedback.NewService(feedback.NewPostgresRepo(db), s.Directory, s.Notifications)
	s.Announcements = announcements.NewService(announcements.NewPostgresRepo(db), s.Directory)
	s.Marketing = marketing.NewService(marketing.NewPostgresRepo(db))
	s.Settings = settings.NewService(settings.NewGormRepo(gdb), s.Audit)
	s.Analytics = analytics.NewService(analytics.NewGormRepo(gdb), s.counters())

	s.Integrations = integrations.NewService(
		integrations.NewGormRepo(gdb),
		integrations.NewWAHAClient(cfg.WhatsApp),
		s.Audit,
		integrations.Options{CountryCode: cfg.WhatsApp.DefaultCountryCode, WebhookToken: cfg.WhatsApp.WebhookToken},
	)
	s.Automation = automation.NewService(automation.NewGormRepo(gdb), automation.Deps{
		Notifier:  s.Notifications,
		Messenger: automation.MessengerFunc(s.Integrations.SendText),
		Mailer:    m,
	})
	s.Automation.RegisterTaskHandler(automation.TaskReport, ReportTask(s.Analytics))
	return s, nil
}

// counters feeds the analytics dashboard from the modules that own the
// figures.
func (s *Services) counters() analytics.Counters {
	return analytics.Counters{
		OpenTickets: analytics.CounterFunc(func(ctx context.Context, c auth.Caller) (int, error) {
			st, err := s.Support.DashboardStats(ctx, c)
			return st.OpenTickets, err
		}),
		PendingFeedback: analytics.CounterFunc(func(ctx context.Context, c auth.Caller) (int, error) {
			st, err := s.Feedback.Stats(ctx, c)
			return st.ByStatus[string(feedback.StatusPending)], err
		}),
		ActiveCampaigns: analytics.CounterFunc(func(ctx context.Context, c auth.Caller) (int, error) {
			d, err := s.Marketing.Dashboard(ctx, c)
			return d.ActiveCampaigns, err
		}),
	}
}

// Generator is the slice of analytics a report task needs.
type Generator interface {
	Generate(ctx context.Context, c auth.Caller, id string) (analytics.Report, error)
}

type reportTaskConfig struct {
	ReportID string `json:"report_id"`
}

// ReportTask regenerates the report named by task_config.report_id on
// behalf of the task's tenant.
func ReportTask(g Generator) automation.TaskHandler {
	return func(ctx context.Context, t automation.ScheduledTask) (map[string]any, error) {
		var cfg reportTaskConfig
		if len(t.TaskConfig) == 0 {
			return nil, errors.New("task_config is empty")
		}
		if err := json.Unmarshal(t.TaskConfig, &cfg); err != nil {
			return nil, fmt.Errorf("decode task_config: %w", err)
		}
		if cfg.ReportID == "" {
			return nil, errors.New("task_config.report_id is required")
		}
		caller := auth.Caller{UserID: t.CreatedBy, WorkspaceID: t.WorkspaceID, Role: rbac.RoleBusinessAdmin}
		r, err := g.Generate(ctx, caller, cfg.ReportID)
		if err != nil {
			return nil, err
		}
		if r.Status == analytics.ReportFailed {
			return nil, fmt.Errorf("report %s failed: %s", r.ID, r.ErrorMessage)
		}
		return map[string]any{"report_id": r.ID, "status": r.Status, "file_size": r.FileSize}, nil
	}
}

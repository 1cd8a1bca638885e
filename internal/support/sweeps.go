package support

import (
	"context"
	"errors"
	"fmt"
	"time"

	"bizops-platform/internal/auth"
	"bizops-platform/pkg/logger"
)

// CheckOverdue notifies platform admins about unassigned open tickets that are
// past their priority's response limit. Each ticket is reported once: it is
// stamped with overdue_notified_at so later sweeps skip it.
func (s *Service) CheckOverdue(ctx context.Context) ([]Ticket, error) {
	candidates, err := s.repo.ListTickets(ctx, TicketFilter{
		Statuses:           []Status{StatusOpen, StatusInProgress},
		UnassignedOnly:     true,
		OverdueNotNotified: true,
	})
	if err != nil {
		return nil, err
	}
	admins, err := s.platformAdminIDs(ctx)
	if err != nil {
		return nil, err
	}

	now := s.now()
	settingsCache := map[string]Settings{}
	var overdue []Ticket
	for _, t := range candidates {
		if !t.IsOverdue(now) {
			continue
		}
		t.OverdueNotifiedAt = &now
		if err := s.repo.SaveTicket(ctx, t); err != nil {
			return overdue, fmt.Errorf("mark overdue %s: %w", t.TicketID, err)
		}
		s.notify(ctx, s.cachedSettings(ctx, settingsCache, t.WorkspaceID), t, admins, NotifyTicketUpdated,
			"Overdue Ticket: "+t.TicketID,
			fmt.Sprintf("Support ticket #%s is overdue for %s priority issue. Please assign and respond.", t.TicketID, t.Priority))
		overdue = append(overdue, t)
	}
	logger.From(ctx).Info("support overdue sweep", "candidates", len(candidates), "overdue", len(overdue))
	return overdue, nil
}

// AutoClose closes tickets resolved more than `days` ago. A tenant that has
// stored support settings uses its auto_close_resolved_tickets_days instead.
func (s *Service) AutoClose(ctx context.Context, days int) (int, error) {
	if days <= 0 {
		days = 7
	}
	now := s.now()
	resolved, err := s.repo.ListTickets(ctx, TicketFilter{Status: StatusResolved, ResolvedBefore: &now})
	if err != nil {
		return 0, err
	}

	limits := map[string]int{}
	closed := 0
	for _, t := range resolved {
		limit, ok := limits[t.WorkspaceID]
		if !ok {
			limit = s.autoCloseDays(ctx, t.WorkspaceID, days)
			limits[t.WorkspaceID] = limit
		}
		if t.ResolvedAt == nil || !t.ResolvedAt.Before(now.Add(-time.Duration(limit)*24*time.Hour)) {
			continue
		}
		if _, err := s.transition(ctx, auth.Caller{}, t, StatusClosed,
			"Ticket automatically closed after resolution period", MessageStatusUpdate); err != nil {
			return closed, fmt.Errorf("auto-close %s: %w", t.TicketID, err)
		}
		closed++
	}
	logger.From(ctx).Info("support auto-close sweep", "resolved", len(resolved), "closed", closed)
	return closed, nil
}

func (s *Service) autoCloseDays(ctx context.Context, workspaceID string, fallback int) int {
	st, err := s.repo.GetSettings(ctx, workspaceID)
	if err != nil {
		if !errors.Is(err, ErrSettingsNotFound) {
			logger.From(ctx).Warn("support settings unavailable", "workspace_id", workspaceID, "err", err)
		}
		return fallback
	}
	if st.AutoCloseResolvedTicketsDays > 0 {
		return st.AutoCloseResolvedTicketsDays
	}
	return fallback
}

func (s *Service) cachedSettings(ctx context.Context, cache map[string]Settings, workspaceID string) Settings {
	if st, ok := cache[workspaceID]; ok {
		return st
	}
	st, err := s.effectiveSettings(ctx, workspaceID)
	if err != nil {
		st = DefaultSettings(workspaceID)
	}
	cache[workspaceID] = st
	return st
}

package analytics

import (
	"context"
	"fmt"
	"time"

	"bizops-platform/internal/auth"
)

// Summary aggregates the events of one workspace (or all, for the platform
// operator) inside a range.
type Summary struct {
	WorkspaceID    string      `json:"workspace_id,omitempty"`
	Range          TimeRange   `json:"range"`
	Events         EventCounts `json:"events"`
	Purchases      int         `json:"purchases"`
	Signups        int         `json:"signups"`
	ConversionRate float64     `json:"conversion_rate"`
}

func (s *Service) summary(ctx context.Context, ws string, r TimeRange) (Summary, error) {
	if !r.Valid() {
		return Summary{}, ErrInvalidArgument
	}
	counts, err := s.repo.CountEvents(ctx, ws, r)
	if err != nil {
		return Summary{}, err
	}
	out := Summary{
		WorkspaceID: ws,
		Range:       r,
		Events:      counts,
		Purchases:   counts.ByType[EventPurchase],
		Signups:     counts.ByType[EventSignup],
	}
	if counts.UniqueUsers > 0 {
		out.ConversionRate = round2(float64(out.Purchases) / float64(counts.UniqueUsers) * 100)
	}
	return out, nil
}

func (s *Service) Summary(ctx context.Context, c auth.Caller, r TimeRange) (Summary, error) {
	ws, err := readScope(c)
	if err != nil {
		return Summary{}, err
	}
	return s.summary(ctx, ws, r)
}

// CalculateChange formats the move from previous to current as a signed
// percentage with one decimal. A zero baseline reads +100% when anything
// happened and +0% otherwise.
func CalculateChange(current, previous float64) string {
	if previous == 0 {
		if current > 0 {
			return "+100%"
		}
		return "+0%"
	}
	change := (current - previous) / previous * 100
	sign := ""
	if change >= 0 {
		sign = "+"
	}
	return fmt.Sprintf("%s%.1f%%", sign, change)
}

type StatValue struct {
	Value    int    `json:"value"`
	Previous int    `json:"previous"`
	Change   string `json:"change"`
}

func stat(cur, prev int) StatValue {
	return StatValue{Value: cur, Previous: prev, Change: CalculateChange(float64(cur), float64(prev))}
}

type DashboardStats struct {
	PeriodDays         int       `json:"period_days"`
	TotalEvents        StatValue `json:"total_events"`
	UniqueUsers        StatValue `json:"unique_users"`
	Purchases          StatValue `json:"purchases"`
	Signups            StatValue `json:"signups"`
	OpenSupportTickets int       `json:"open_support_tickets"`
	PendingFeedback    int       `json:"pending_feedback"`
	ActiveCampaigns    int       `json:"active_campaigns"`
}

const statsWindow = 30 * 24 * time.Hour

// DashboardStats compares the last 30 days with the 30 before and adds the
// open work other modules report for the caller.
func (s *Service) DashboardStats(ctx context.Context, c auth.Caller) (DashboardStats, error) {
	ws, err := readScope(c)
	if err != nil {
		return DashboardStats{}, err
	}
	end := s.now()
	start := end.Add(-statsWindow)
	cur, err := s.summary(ctx, ws, TimeRange{From: start, To: end})
	if err != nil {
		return DashboardStats{}, err
	}
	prev, err := s.summary(ctx, ws, TimeRange{From: start.Add(-statsWindow), To: start})
	if err != nil {
		return DashboardStats{}, err
	}
	out := DashboardStats{
		PeriodDays:  int(statsWindow / (24 * time.Hour)),
		TotalEvents: stat(cur.Events.Total, prev.Events.Total),
		UniqueUsers: stat(cur.Events.UniqueUsers, prev.Events.UniqueUsers),
		Purchases:   stat(cur.Purchases, prev.Purchases),
		Signups:     stat(cur.Signups, prev.Signups),
	}
	for _, x := range []struct {
		counter Counter
		dst     *int
	}{
		{s.counters.OpenTickets, &out.OpenSupportTickets},
		{s.counters.PendingFeedback, &out.PendingFeedback},
		{s.counters.ActiveCampaigns, &out.ActiveCampaigns},
	} {
		if x.counter == nil {
			continue
		}
		n, err := x.counter.Count(ctx, c)
		if err != nil {
			return DashboardStats{}, err
		}
		*x.dst = n
	}
	return out, nil
}

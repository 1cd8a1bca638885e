package analytics

import (
	"context"
	"slices"
	"sort"
	"sync"
	"time"
)

// MemoryRepo is an in-process Repository used by tests.
type MemoryRepo struct {
	mu      sync.Mutex
	events  []Event
	metrics map[string]Metric
	widgets map[string]Widget
	reports map[string]Report
}

func NewMemoryRepo() *MemoryRepo {
	return &MemoryRepo{
		metrics: map[string]Metric{},
		widgets: map[string]Widget{},
		reports: map[string]Report{},
	}
}

func window[T any](rows []T, limit, offset int) []T {
	if offset >= len(rows) {
		return nil
	}
	rows = rows[offset:]
	if limit > 0 && limit < len(rows) {
		rows = rows[:limit]
	}
	return rows
}

func inTenant(filter, ws string) bool { return filter == "" || filter == ws }

func (r *MemoryRepo) CreateEvent(ctx context.Context, e Event) (Event, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, e)
	return e, nil
}

func (r *MemoryRepo) ListEvents(ctx context.Context, f EventFilter) ([]Event, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []Event
	for _, e := range r.events {
		switch {
		case !inTenant(f.WorkspaceID, e.WorkspaceID),
			f.EventType != "" && e.EventType != f.EventType,
			f.UserID != "" && e.UserID != f.UserID,
			f.SessionID != "" && e.SessionID != f.SessionID,
			f.From != nil && e.CreatedAt.Before(*f.From),
			f.To != nil && !e.CreatedAt.Before(*f.To):
			continue
		}
		out = append(out, e)
	}
	sort.SliceStable(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return out[i].ID < out[j].ID
	})
	return window(out, f.Limit, f.Offset), nil
}

func (r *MemoryRepo) CountEvents(ctx context.Context, workspaceID string, tr TimeRange) (EventCounts, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := EventCounts{ByType: map[EventType]int{}}
	users := map[string]bool{}
	for _, e := range r.events {
		if !inTenant(workspaceID, e.WorkspaceID) || e.CreatedAt.Before(tr.From) || !e.CreatedAt.Before(tr.To) {
			continue
		}
		out.Total++
		out.ByType[e.EventType]++
		if e.UserID != "" {
			users[e.UserID] = true
		}
	}
	out.UniqueUsers = len(users)
	return out, nil
}

func metricKey(ws string, t MetricType, p Period, start time.Time) string {
	return ws + "|" + string(t) + "|" + string(p) + "|" + start.UTC().Format(time.RFC3339)
}

func (r *MemoryRepo) UpsertMetric(ctx context.Context, m Metric) (Metric, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	k := metricKey(m.WorkspaceID, m.MetricType, m.Period, m.PeriodStart)
	if old, ok := r.metrics[k]; ok {
		m.ID = old.ID
		m.CreatedAt = old.CreatedAt
	}
	r.metrics[k] = m
	return m, nil
}

func (r *MemoryRepo) FindMetric(ctx context.Context, workspaceID string, t MetricType, p Period, start time.Time) (Metric, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	m, ok := r.metrics[metricKey(workspaceID, t, p, start)]
	if !ok {
		return Metric{}, ErrMetricNotFound
	}
	return m, nil
}

func (r *MemoryRepo) ListMetrics(ctx context.Context, f MetricFilter) ([]Metric, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []Metric
	for _, m := range r.metrics {
		switch {
		case !inTenant(f.WorkspaceID, m.WorkspaceID),
			len(f.MetricTypes) > 0 && !slices.Contains(f.MetricTypes, m.MetricType),
			f.Period != "" && m.Period != f.Period,
			f.From != nil && m.PeriodStart.Before(*f.From),
			f.To != nil && !m.PeriodStart.Before(*f.To):
			continue
		}
		out = append(out, m)
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].PeriodStart.Equal(out[j].PeriodStart) {
			return out[i].PeriodStart.After(out[j].PeriodStart)
		}
		return out[i].MetricType < out[j].MetricType
	})
	return window(out, f.Limit, f.Offset), nil
}

func (r *MemoryRepo) CreateWidget(ctx context.Context, w Widget) (Widget, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.widgets[w.ID] = w
	return w, nil
}

func (r *MemoryRepo) GetWidget(ctx context.Context, workspaceID, userID, id string) (Widget, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	w, ok := r.widgets[id]
	if !ok || w.WorkspaceID != workspaceID || w.UserID != userID {
		return Widget{}, ErrWidgetNotFound
	}
	return w, nil
}

func (r *MemoryRepo) ListWidgets(ctx context.Context, workspaceID, userID string) ([]Widget, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []Widget
	for _, w := range r.widgets {
		if w.WorkspaceID == workspaceID && w.UserID == userID {
			out = append(out, w)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (r *MemoryRepo) UpdateWidget(ctx context.Context, w Widget) (Widget, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.widgets[w.ID]; !ok {
		return Widget{}, ErrWidgetNotFound
	}
	r.widgets[w.ID] = w
	return w, nil
}

func (r *MemoryRepo) DeleteWidget(ctx context.Context, workspaceID, userID, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	w, ok := r.widgets[id]
	if !ok || w.WorkspaceID != workspaceID || w.UserID != userID {
		return ErrWidgetNotFound
	}
	delete(r.widgets, id)
	return nil
}

func (r *MemoryRepo) CreateReport(ctx context.Context, rep Report) (Report, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.reports[rep.ID] = rep
	return rep, nil
}

func (r *MemoryRepo) GetReport(ctx context.Context, workspaceID, id string) (Report, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	rep, ok := r.reports[id]
	if !ok || !inTenant(workspaceID, rep.WorkspaceID) {
		return Report{}, ErrReportNotFound
	}
	return rep, nil
}

func (r *MemoryRepo) ListReports(ctx context.Context, f ReportFilter) ([]Report, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []Report
	for _, rep := range r.reports {
		switch {
		case !inTenant(f.WorkspaceID, rep.WorkspaceID),
			f.ReportType != "" && rep.ReportType != f.ReportType,
			f.Status != "" && rep.Status != f.Status:
			continue
		}
		rep.Content = nil
		out = append(out, rep)
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return out[i].ID < out[j].ID
	})
	return window(out, f.Limit, f.Offset), nil
}

func (r *MemoryRepo) SaveReport(ctx context.Context, rep Report) (Report, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.reports[rep.ID] = rep
	return rep, nil
}

func (r *MemoryRepo) DeleteReport(ctx context.Context, workspaceID, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	rep, ok := r.reports[id]
	if !ok || !inTenant(workspaceID, rep.WorkspaceID) {
		return ErrReportNotFound
	}
	delete(r.reports, id)
	return nil
}

package marketing

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"
)

// MemoryRepo is an in-process Repository used by tests.
type MemoryRepo struct {
	mu        sync.Mutex
	campaigns map[string]Campaign
	templates map[string]Template
	platforms map[string]Platform
	segments  map[string]Segment
	analytics []Analytics
	events    []Event
}

func NewMemoryRepo() *MemoryRepo {
	return &MemoryRepo{
		campaigns: map[string]Campaign{},
		templates: map[string]Template{},
		platforms: map[string]Platform{},
		segments:  map[string]Segment{},
	}
}

// Events returns every stored event, oldest first.
func (r *MemoryRepo) Events() []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Event(nil), r.events...)
}

func window[T any](rows []T, limit, offset int) []T {
	if limit <= 0 {
		return rows
	}
	if offset >= len(rows) {
		return nil
	}
	return rows[offset:min(offset+limit, len(rows))]
}

func newestFirst[T any](rows []T, created func(T) time.Time, id func(T) string) {
	sort.Slice(rows, func(i, j int) bool {
		ci, cj := created(rows[i]), created(rows[j])
		if !ci.Equal(cj) {
			return ci.After(cj)
		}
		return id(rows[i]) < id(rows[j])
	})
}

func (r *MemoryRepo) CreateCampaign(ctx context.Context, c Campaign, events []Event) (Campaign, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.campaigns[c.ID] = c
	r.events = append(r.events, events...)
	return c, nil
}

func (r *MemoryRepo) GetCampaign(ctx context.Context, id string) (Campaign, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.campaigns[id]
	if !ok {
		return Campaign{}, ErrCampaignNotFound
	}
	return c, nil
}

func (r *MemoryRepo) UpdateCampaign(ctx context.Context, c Campaign, events []Event) (Campaign, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.campaigns[c.ID]; !ok {
		return Campaign{}, ErrCampaignNotFound
	}
	r.campaigns[c.ID] = c
	r.events = append(r.events, events...)
	return c, nil
}

func (r *MemoryRepo) DeleteCampaign(ctx context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.campaigns[id]; !ok {
		return ErrCampaignNotFound
	}
	delete(r.campaigns, id)
	return nil
}

func (r *MemoryRepo) ListCampaigns(ctx context.Context, f CampaignFilter) ([]Campaign, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	search := strings.ToLower(f.Search)
	var out []Campaign
	for _, c := range r.campaigns {
		if !f.Scope.allows(c.WorkspaceID, c.StoreID) {
			continue
		}
		if f.Status != "" && c.Status != f.Status {
			continue
		}
		if f.CampaignType != "" && c.CampaignType != f.CampaignType {
			continue
		}
		if search != "" && !strings.Contains(strings.ToLower(c.Name+" "+c.Description), search) {
			continue
		}
		out = append(out, c)
	}
	newestFirst(out, func(c Campaign) time.Time { return c.CreatedAt }, func(c Campaign) string { return c.ID })
	if f.ByConversions {
		sort.SliceStable(out, func(i, j int) bool { return out[i].Conversions > out[j].Conversions })
	}
	return window(out, f.Limit, f.Offset), nil
}

func (r *MemoryRepo) CreateTemplate(ctx context.Context, t Template, events []Event) (Template, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.templates[t.ID] = t
	r.events = append(r.events, events...)
	return t, nil
}

func (r *MemoryRepo) GetTemplate(ctx context.Context, id string) (Template, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	t, ok := r.templates[id]
	if !ok {
		return Template{}, ErrTemplateNotFound
	}
	return t, nil
}

func (r *MemoryRepo) UpdateTemplate(ctx context.Context, t Template, events []Event) (Template, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.templates[t.ID]; !ok {
		return Template{}, ErrTemplateNotFound
	}
	r.templates[t.ID] = t
	r.events = append(r.events, events...)
	return t, nil
}

func (r *MemoryRepo) DeleteTemplate(ctx context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.templates[id]; !ok {
		return ErrTemplateNotFound
	}
	delete(r.templates, id)
	return nil
}

func (r *MemoryRepo) ListTemplates(ctx context.Context, f TemplateFilter) ([]Template, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []Template
	for _, t := range r.templates {
		if !f.Scope.allows(t.WorkspaceID, t.StoreID) {
			continue
		}
		if (f.TemplateType != "" && t.TemplateType != f.TemplateType) || (f.Category != "" && t.Category != f.Category) {
			continue
		}
		if f.Approved != nil && t.IsApproved != *f.Approved {
			continue
		}
		out = append(out, t)
	}
	newestFirst(out, func(t Template) time.Time { return t.CreatedAt }, func(t Template) string { return t.ID })
	return window(out, f.Limit, f.Offset), nil
}

func (r *MemoryRepo) CreatePlatform(ctx context.Context, p Platform, events []Event) (Platform, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.platforms[p.ID] = p
	r.events = append(r.events, events...)
	return p, nil
}

func (r *MemoryRepo) GetPlatform(ctx context.Context, id string) (Platform, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.platforms[id]
	if !ok {
		return Platform{}, ErrPlatformNotFound
	}
	return p, nil
}

func (r *MemoryRepo) UpdatePlatform(ctx context.Context, p Platform) (Platform, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.platforms[p.ID]; !ok {
		return Platform{}, ErrPlatformNotFound
	}
	r.platforms[p.ID] = p
	return p, nil
}

func (r *MemoryRepo) DeletePlatform(ctx context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.platforms[id]; !ok {
		return ErrPlatformNotFound
	}
	delete(r.platforms, id)
	return nil
}

func (r *MemoryRepo) ListPlatforms(ctx context.Context, f PlatformFilter) ([]Platform, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []Platform
	for _, p := range r.platforms {
		if !f.Scope.allows(p.WorkspaceID, p.StoreID) {
			continue
		}
		if (f.PlatformType != "" && p.PlatformType != f.PlatformType) || (f.Status != "" && p.Status != f.Status) {
			continue
		}
		out = append(out, p)
	}
	newestFirst(out, func(p Platform) time.Time { return p.CreatedAt }, func(p Platform) string { return p.ID })
	return window(out, f.Limit, f.Offset), nil
}

func (r *MemoryRepo) CreateSegment(ctx context.Context, s Segment, events []Event) (Segment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.segments[s.ID] = s
	r.events = append(r.events, events...)
	return s, nil
}

func (r *MemoryRepo) GetSegment(ctx context.Context, id string) (Segment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.segments[id]
	if !ok {
		return Segment{}, ErrSegmentNotFound
	}
	return s, nil
}

func (r *MemoryRepo) UpdateSegment(ctx context.Context, s Segment) (Segment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.segments[s.ID]; !ok {
		return Segment{}, ErrSegmentNotFound
	}
	r.segments[s.ID] = s
	return s, nil
}

func (r *MemoryRepo) DeleteSegment(ctx context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.segments[id]; !ok {
		return ErrSegmentNotFound
	}
	delete(r.segments, id)
	return nil
}

func (r *MemoryRepo) ListSegments(ctx context.Context, f SegmentFilter) ([]Segment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []Segment
	for _, s := range r.segments {
		if f.Scope.allows(s.WorkspaceID, s.StoreID) {
			out = append(out, s)
		}
	}
	newestFirst(out, func(s Segment) time.Time { return s.CreatedAt }, func(s Segment) string { return s.ID })
	return window(out, f.Limit, f.Offset), nil
}

func (r *MemoryRepo) RecordAnalytics(ctx context.Context, a Analytics) (Analytics, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i, cur := range r.analytics {
		if cur.CampaignID == a.CampaignID && cur.Date.Equal(a.Date) && cur.Hour == a.Hour {
			cur.Impressions += a.Impressions
			cur.Clicks += a.Clicks
			cur.Conversions += a.Conversions
			cur.Revenue += a.Revenue
			cur.UpdatedAt = a.UpdatedAt
			r.analytics[i] = cur
			return cur, nil
		}
	}
	r.analytics = append(r.analytics, a)
	return a, nil
}

func (r *MemoryRepo) ListAnalytics(ctx context.Context, campaignID string, from, to time.Time) ([]Analytics, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []Analytics
	for _, a := range r.analytics {
		if a.CampaignID != campaignID {
			continue
		}
		if (!from.IsZero() && a.Date.Before(from)) || (!to.IsZero() && a.Date.After(to)) {
			continue
		}
		out = append(out, a)
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].Date.Equal(out[j].Date) {
			return out[i].Date.Before(out[j].Date)
		}
		return out[i].Hour < out[j].Hour
	})
	return out, nil
}

func (r *MemoryRepo) ListEvents(ctx context.Context, f EventFilter) ([]Event, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []Event
	for _, e := range r.events {
		if !f.Scope.allows(e.WorkspaceID, e.StoreID) {
			continue
		}
		if (f.EventType != "" && e.EventType != f.EventType) || (f.CampaignID != "" && e.CampaignID != f.CampaignID) {
			continue
		}
		out = append(out, e)
	}
	newestFirst(out, func(e Event) time.Time { return e.CreatedAt }, func(e Event) string { return e.ID })
	return window(out, f.Limit, f.Offset), nil
}

func (r *MemoryRepo) Summary(ctx context.Context, s Scope) (Summary, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var sum Summary
	for _, c := range r.campaigns {
		if !s.allows(c.WorkspaceID, c.StoreID) {
			continue
		}
		sum.Campaigns++
		if c.Status == StatusActive {
			sum.ActiveCampaigns++
		}
		sum.TotalReach += c.EstimatedReach
		sum.MessagesSent += c.MessagesSent
		sum.Conversions += c.Conversions
		sum.Revenue += c.RevenueGenerated
	}
	for _, t := range r.templates {
		if s.allows(t.WorkspaceID, t.StoreID) {
			sum.Templates++
		}
	}
	for _, p := range r.platforms {
		if s.allows(p.WorkspaceID, p.StoreID) && p.Status == PlatformConnected {
			sum.ConnectedPlatforms++
		}
	}
	for _, sg := range r.segments {
		if s.allows(sg.WorkspaceID, sg.StoreID) {
			sum.Segments++
		}
	}
	return sum, nil
}

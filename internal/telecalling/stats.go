package telecalling

import (
	"context"
	"fmt"
	"math"
	"sort"
	"time"

	"bizops-platform/internal/auth"
	"bizops-platform/internal/rbac"
)

type AssignmentStats struct {
	TotalAssignments     int     `json:"total_assignments"`
	CompletedAssignments int     `json:"completed_assignments"`
	PendingAssignments   int     `json:"pending_assignments"`
	FollowUpAssignments  int     `json:"follow_up_assignments"`
	TotalCalls           int     `json:"total_calls"`
	ConnectedCalls       int     `json:"connected_calls"`
	Conversions          int     `json:"conversions"`
	ConversionRate       float64 `json:"conversion_rate"`
	AvgCallDuration      float64 `json:"avg_call_duration"`
}

func round2(v float64) float64 { return math.Round(v*100) / 100 }

func rate(n, d int) float64 {
	if d <= 0 {
		return 0
	}
	return round2(float64(n) / float64(d) * 100)
}

func avgDuration(logs []CallLog) float64 {
	if len(logs) == 0 {
		return 0
	}
	total := 0
	for _, l := range logs {
		total += l.DurationSeconds
	}
	return round2(float64(total) / float64(len(logs)))
}

// AssignmentStats summarises the assignments and calls visible to c.
// Conversion rate is conversions over all calls.
func (s *Service) AssignmentStats(ctx context.Context, c auth.Caller) (AssignmentStats, error) {
	var st AssignmentStats
	sc, ok := pipelineScope(c)
	if !ok {
		return st, nil
	}
	as, err := s.repo.ListAssignments(ctx, AssignmentFilter{Scope: sc})
	if err != nil {
		return st, err
	}
	logs, err := s.repo.ListCallLogs(ctx, CallLogFilter{Scope: sc})
	if err != nil {
		return st, err
	}
	st.TotalAssignments = len(as)
	for _, a := range as {
		switch a.Status {
		case AssignmentCompleted:
			st.CompletedAssignments++
		case AssignmentAssigned:
			st.PendingAssignments++
		case AssignmentFollowUp:
			st.FollowUpAssignments++
		}
	}
	st.TotalCalls = len(logs)
	for _, l := range logs {
		if l.CallStatus == CallConnected {
			st.ConnectedCalls++
		}
		if l.Conversion() {
			st.Conversions++
		}
	}
	st.ConversionRate = rate(st.Conversions, st.TotalCalls)
	st.AvgCallDuration = avgDuration(logs)
	return st, nil
}

type ProfileAnalytics struct {
	TotalProfiles      int                `json:"total_profiles"`
	HighEngagement     int                `json:"high_engagement"`
	MediumEngagement   int                `json:"medium_engagement"`
	LowEngagement      int                `json:"low_engagement"`
	AvgEngagementScore float64            `json:"avg_engagement_score"`
	Distribution       map[Likelihood]int `json:"conversion_likelihood_distribution"`
}

// ProfileAnalytics buckets visible profiles by engagement (80 and up is
// high, below 50 is low) and counts them by likelihood.
func (s *Service) ProfileAnalytics(ctx context.Context, c auth.Caller) (ProfileAnalytics, error) {
	out := ProfileAnalytics{Distribution: map[Likelihood]int{
		LikelihoodVeryHigh: 0, LikelihoodHigh: 0, LikelihoodMedium: 0, LikelihoodLow: 0, LikelihoodVeryLow: 0,
	}}
	sc, ok := ScopeFor(c)
	if !ok {
		return out, nil
	}
	ps, err := s.repo.ListProfiles(ctx, ProfileFilter{Scope: sc})
	if err != nil {
		return out, err
	}
	total := 0
	for _, p := range ps {
		switch {
		case p.EngagementScore >= highEngagement:
			out.HighEngagement++
		case p.EngagementScore >= baseEngagement:
			out.MediumEngagement++
		default:
			out.LowEngagement++
		}
		if p.ConversionLikelihood.Valid() {
			out.Distribution[p.ConversionLikelihood]++
		}
		total += p.EngagementScore
	}
	out.TotalProfiles = len(ps)
	if len(ps) > 0 {
		out.AvgEngagementScore = round2(float64(total) / float64(len(ps)))
	}
	return out, nil
}

type Activity struct {
	Type        string    `json:"type"`
	Description string    `json:"description"`
	Timestamp   time.Time `json:"timestamp"`
	User        string    `json:"user,omitempty"`
}

type PerformanceMetrics struct {
	TotalLeadsToday    int     `json:"total_leads_today"`
	AssignedLeadsToday int     `json:"assigned_leads_today"`
	ConversionRate     float64 `json:"conversion_rate"`
	AvgCallDuration    float64 `json:"avg_call_duration"`
}

type ManagerDashboard struct {
	TodayLeads         int                `json:"today_leads"`
	PendingAssignments int                `json:"pending_assignments"`
	CompletedCalls     int                `json:"completed_calls"`
	HighPotentialLeads int                `json:"high_potential_leads"`
	UnconnectedCalls   int                `json:"unconnected_calls"`
	RecentActivities   []Activity         `json:"recent_activities"`
	Performance        PerformanceMetrics `json:"performance_metrics"`
}

type TelecallerDashboard struct {
	MyAssignments    int        `json:"my_assignments"`
	CompletedCalls   int        `json:"completed_calls"`
	PendingFollowUps int        `json:"pending_followups"`
	ConversionRate   float64    `json:"conversion_rate"`
	RecentActivities []Activity `json:"recent_activities"`
}

type SalesDashboard struct {
	MyVisits       int     `json:"my_visits"`
	TodayVisits    int     `json:"today_visits"`
	AssignedVisits int     `json:"assigned_visits"`
	HotLeads       int     `json:"hot_leads"`
	RecentVisits   []Visit `json:"recent_visits"`
}

// Dashboard returns the view for c's role: tenant counts for admins, the
// caller's own work for telecallers and sales reps, and an empty object for
// everyone else.
func (s *Service) Dashboard(ctx context.Context, c auth.Caller) (any, error) {
	switch {
	case isAdmin(c):
		return s.managerDashboard(ctx, c)
	case c.Role == rbac.RoleTeleCalling:
		return s.telecallerDashboard(ctx, c)
	case c.Role == rbac.RoleInhouseSales:
		return s.salesDashboard(ctx, c)
	}
	return struct{}{}, nil
}

// connectedRate is positive connected calls over connected calls.
func connectedRate(logs []CallLog) float64 {
	connected, conversions := 0, 0
	for _, l := range logs {
		if l.CallStatus != CallConnected {
			continue
		}
		connected++
		if l.Sentiment == SentimentPositive {
			conversions++
		}
	}
	return rate(conversions, connected)
}

func (s *Service) customerName(ctx context.Context, cache map[string]string, visitID string) string {
	if name, ok := cache[visitID]; ok {
		return name
	}
	name := visitID
	if v, err := s.repo.GetVisit(ctx, visitID); err == nil {
		name = v.CustomerName
	}
	cache[visitID] = name
	return name
}

const recentPerKind = 5

func (s *Service) managerDashboard(ctx context.Context, c auth.Caller) (ManagerDashboard, error) {
	var d ManagerDashboard
	sc, _ := pipelineScope(c)
	from, to := s.today()

	visits, err := s.repo.ListVisits(ctx, VisitFilter{Scope: sc, From: &from, To: &to})
	if err != nil {
		return d, err
	}
	as, err := s.repo.ListAssignments(ctx, AssignmentFilter{Scope: sc})
	if err != nil {
		return d, err
	}
	logs, err := s.repo.ListCallLogs(ctx, CallLogFilter{Scope: sc})
	if err != nil {
		return d, err
	}
	high, err := s.repo.ListAssignments(ctx, AssignmentFilter{
		Scope: sc, Status: AssignmentFollowUp, CallStatuses: []CallStatus{CallConnected}, CallSentiment: SentimentPositive,
	})
	if err != nil {
		return d, err
	}

	d.TodayLeads = len(visits)
	d.HighPotentialLeads = len(high)
	assignedToday := 0
	for _, a := range as {
		if a.Status == AssignmentAssigned {
			d.PendingAssignments++
		}
		if !a.CreatedAt.Before(from) && a.CreatedAt.Before(to) {
			assignedToday++
		}
	}
	for _, l := range logs {
		switch {
		case l.CallStatus == CallConnected:
			d.CompletedCalls++
		case l.CallStatus.Unconnected():
			d.UnconnectedCalls++
		}
	}

	names := map[string]string{}
	byID := map[string]Assignment{}
	for _, a := range as {
		byID[a.ID] = a
	}
	var acts []Activity
	for _, a := range as[:min(recentPerKind, len(as))] {
		acts = append(acts, Activity{
			Type: "assignment",
			Description: fmt.Sprintf("Assigned %s to %s",
				s.customerName(ctx, names, a.VisitID), s.userName(ctx, a.TelecallerID)),
			Timestamp: a.CreatedAt,
			User:      s.userName(ctx, a.AssignedBy),
		})
	}
	for _, l := range logs[:min(recentPerKind, len(logs))] {
		a := byID[l.AssignmentID]
		acts = append(acts, Activity{
			Type:        "call",
			Description: fmt.Sprintf("Call to %s - %s", s.customerName(ctx, names, a.VisitID), l.CallStatus),
			Timestamp:   l.CallTime,
			User:        s.userName(ctx, a.TelecallerID),
		})
	}
	sort.SliceStable(acts, func(i, j int) bool { return acts[i].Timestamp.After(acts[j].Timestamp) })
	d.RecentActivities = acts
	if d.RecentActivities == nil {
		d.RecentActivities = []Activity{}
	}

	d.Performance = PerformanceMetrics{
		TotalLeadsToday:    len(visits),
		AssignedLeadsToday: assignedToday,
		ConversionRate:     connectedRate(logs),
		AvgCallDuration:    avgDuration(logs),
	}
	return d, nil
}

func (s *Service) telecallerDashboard(ctx context.Context, c auth.Caller) (TelecallerDashboard, error) {
	var d TelecallerDashboard
	sc, _ := pipelineScope(c)
	as, err := s.repo.ListAssignments(ctx, AssignmentFilter{Scope: sc})
	if err != nil {
		return d, err
	}
	logs, err := s.repo.ListCallLogs(ctx, CallLogFilter{Scope: sc})
	if err != nil {
		return d, err
	}
	fus, err := s.repo.ListFollowUps(ctx, FollowUpFilter{Scope: sc, Status: FollowUpPending})
	if err != nil {
		return d, err
	}
	d.MyAssignments = len(as)
	d.PendingFollowUps = len(fus)
	d.ConversionRate = connectedRate(logs)

	byID := map[string]Assignment{}
	for _, a := range as {
		byID[a.ID] = a
	}
	names := map[string]string{}
	d.RecentActivities = []Activity{}
	for i, l := range logs {
		if l.CallStatus == CallConnected {
			d.CompletedCalls++
		}
		if i < recentPerKind {
			d.RecentActivities = append(d.RecentActivities, Activity{
				Type:        "call",
				Description: fmt.Sprintf("Call to %s - %s", s.customerName(ctx, names, byID[l.AssignmentID].VisitID), l.CallStatus),
				Timestamp:   l.CallTime,
			})
		}
	}
	return d, nil
}

func (s *Service) salesDashboard(ctx context.Context, c auth.Caller) (SalesDashboard, error) {
	var d SalesDashboard
	sc, _ := ScopeFor(c)
	visits, err := s.repo.ListVisits(ctx, VisitFilter{Scope: sc})
	if err != nil {
		return d, err
	}
	from, to := s.today()
	d.MyVisits = len(visits)
	for _, v := range visits {
		if !v.VisitTimestamp.Before(from) && v.VisitTimestamp.Before(to) {
			d.TodayVisits++
		}
		if v.AssignedToTelecaller {
			d.AssignedVisits++
		}
		if v.LeadQuality == LeadHot {
			d.HotLeads++
		}
	}
	d.RecentVisits = visits[:min(recentPerKind, len(visits))]
	if d.RecentVisits == nil {
		d.RecentVisits = []Visit{}
	}
	return d, nil
}

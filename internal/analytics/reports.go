package analytics

import (
	"bytes"
	"context"
	"encoding/csv"
	"encoding/json"
	"slices"
	"strconv"
	"strings"
	"time"

	"bizops-platform/internal/auth"
	"bizops-platform/pkg/logger"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

const defaultReportDays = 30

type ReportRequest struct {
	Name       string          `json:"name" binding:"required,max=200"`
	ReportType ReportType      `json:"report_type" binding:"required"`
	Format     Format          `json:"format"`
	Parameters json.RawMessage `json:"parameters"`
}

// reportParams is the recognised subset of Report.Parameters.
type reportParams struct {
	From *time.Time `json:"from"`
	To   *time.Time `json:"to"`
}

func (s *Service) CreateReport(ctx context.Context, c auth.Caller, req ReportRequest) (Report, error) {
	if _, err := readScope(c); err != nil || c.WorkspaceID == "" {
		return Report{}, ErrForbidden
	}
	if req.Format == "" {
		req.Format = FormatJSON
	}
	if !req.ReportType.Valid() || !req.Format.Valid() || !validJSON(req.Parameters) {
		return Report{}, ErrInvalidArgument
	}
	if len(req.Parameters) > 0 {
		var p reportParams
		if err := json.Unmarshal(req.Parameters, &p); err != nil {
			return Report{}, ErrInvalidArgument
		}
	}
	now := s.now()
	return s.repo.CreateReport(ctx, Report{
		ID:          uuid.NewString(),
		WorkspaceID: c.WorkspaceID,
		UserID:      c.UserID,
		Name:        strings.TrimSpace(req.Name),
		ReportType:  req.ReportType,
		Format:      req.Format,
		Status:      ReportPending,
		Parameters:  datatypes.JSON(req.Parameters),
		CreatedAt:   now,
		UpdatedAt:   now,
	})
}

func (s *Service) GetReport(ctx context.Context, c auth.Caller, id string) (Report, error) {
	ws, err := readScope(c)
	if err != nil {
		return Report{}, err
	}
	return s.repo.GetReport(ctx, ws, id)
}

func (s *Service) ListReports(ctx context.Context, c auth.Caller, f ReportFilter) ([]Report, error) {
	ws, err := readScope(c)
	if err != nil {
		return nil, err
	}
	f.WorkspaceID = ws
	return s.repo.ListReports(ctx, f)
}

func (s *Service) DeleteReport(ctx context.Context, c auth.Caller, id string) error {
	ws, err := readScope(c)
	if err != nil {
		return err
	}
	return s.repo.DeleteReport(ctx, ws, id)
}

// Download returns the generated body of a completed report.
func (s *Service) Download(ctx context.Context, c auth.Caller, id string) (Report, error) {
	r, err := s.GetReport(ctx, c, id)
	if err != nil {
		return Report{}, err
	}
	if r.Status != ReportCompleted {
		return Report{}, ErrReportNotReady
	}
	return r, nil
}

type reportBody struct {
	Name        string     `json:"name"`
	ReportType  ReportType `json:"report_type"`
	Summary     Summary    `json:"summary"`
	Metrics     []Metric   `json:"metrics"`
	GeneratedAt time.Time  `json:"generated_at"`
}

// Generate builds the report body from the event and metric tables. Only
// json and csv are produced; other formats end failed.
func (s *Service) Generate(ctx context.Context, c auth.Caller, id string) (Report, error) {
	r, err := s.GetReport(ctx, c, id)
	if err != nil {
		return Report{}, err
	}
	r.Status = ReportGenerating
	r.ErrorMessage = ""
	r.UpdatedAt = s.now()
	if r, err = s.repo.SaveReport(ctx, r); err != nil {
		return Report{}, err
	}

	content, genErr := s.render(ctx, r)
	now := s.now()
	r.UpdatedAt = now
	if genErr != nil {
		r.Status = ReportFailed
		r.ErrorMessage = genErr.Error()
		logger.From(ctx).Warn("report generation failed", "report_id", r.ID, "format", r.Format, "err", genErr)
		return s.repo.SaveReport(ctx, r)
	}
	r.Status = ReportCompleted
	r.Content = content
	r.FileSize = len(content)
	r.FileURL = "/v1/analytics/reports/" + r.ID + "/download"
	r.GeneratedAt = &now
	return s.repo.SaveReport(ctx, r)
}

type unsupportedFormat struct{}

func (unsupportedFormat) Error() string { return "format not supported" }

func (s *Service) render(ctx context.Context, r Report) ([]byte, error) {
	if r.Format != FormatJSON && r.Format != FormatCSV {
		return nil, unsupportedFormat{}
	}
	var p reportParams
	if len(r.Parameters) > 0 {
		if err := json.Unmarshal(r.Parameters, &p); err != nil {
			return nil, err
		}
	}
	tr := TimeRange{To: s.now()}
	if p.To != nil {
		tr.To = p.To.UTC()
	}
	tr.From = tr.To.AddDate(0, 0, -defaultReportDays)
	if p.From != nil {
		tr.From = p.From.UTC()
	}
	sum, err := s.summary(ctx, r.WorkspaceID, tr)
	if err != nil {
		return nil, err
	}
	metrics, err := s.repo.ListMetrics(ctx, MetricFilter{
		WorkspaceID: r.WorkspaceID,
		MetricTypes: r.ReportType.MetricTypes(),
		From:        &tr.From,
		To:          &tr.To,
	})
	if err != nil {
		return nil, err
	}
	if metrics == nil {
		metrics = []Metric{}
	}
	if r.Format == FormatJSON {
		return json.Marshal(reportBody{
			Name:        r.Name,
			ReportType:  r.ReportType,
			Summary:     sum,
			Metrics:     metrics,
			GeneratedAt: s.now(),
		})
	}
	return reportCSV(sum, metrics)
}

func reportCSV(sum Summary, metrics []Metric) ([]byte, error) {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	rows := [][]string{
		{"section", "name", "period_start", "value"},
		{"events", "total_events", "", strconv.Itoa(sum.Events.Total)},
		{"events", "unique_users", "", strconv.Itoa(sum.Events.UniqueUsers)},
	}
	types := make([]string, 0, len(sum.Events.ByType))
	for t := range sum.Events.ByType {
		types = append(types, string(t))
	}
	slices.Sort(types)
	for _, t := range types {
		rows = append(rows, []string{"events", t, "", strconv.Itoa(sum.Events.ByType[EventType(t)])})
	}
	for _, m := range metrics {
		rows = append(rows, []string{
			"metric",
			string(m.MetricType) + "/" + string(m.Period),
			m.PeriodStart.Format(time.DateOnly),
			strconv.FormatFloat(m.Value, 'f', 2, 64),
		})
	}
	if err := w.WriteAll(rows); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

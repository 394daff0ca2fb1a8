package service

import (
	"context"
	"encoding/json"
	"math"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/spec-kit/helpdesk-service/internal/domain"
	"github.com/spec-kit/helpdesk-service/internal/repository"
	apperrors "github.com/spec-kit/helpdesk-service/pkg/util"
)

// ReportService aggregates ticket metrics over a rolling window.
type ReportService struct {
	tickets     repository.TicketRepository
	departments repository.DepartmentRepository
	cache       *redis.Client
	logger      *zap.Logger
	now         func() time.Time
}

// ReportSummary is the aggregate payload for the reporting endpoint.
type ReportSummary struct {
	Period                 string                        `json:"period"`
	WindowDays             int                           `json:"windowDays"`
	GeneratedAt            time.Time                     `json:"generatedAt"`
	TotalTickets           int                           `json:"totalTickets"`
	ResolvedTickets        int                           `json:"resolvedTickets"`
	PendingTickets         int                           `json:"pendingTickets"`
	AvgResolutionHours     *float64                      `json:"avgResolutionHours"`
	DepartmentDistribution map[string]int                `json:"departmentDistribution"`
	PriorityDistribution   map[string]int                `json:"priorityDistribution"`
	DepartmentDetailed     []DepartmentReport            `json:"departmentDetailed"`
}

// DepartmentReport splits a department's slice of the window into buckets.
type DepartmentReport struct {
	DepartmentID   string `json:"departmentId"`
	DepartmentName string `json:"departmentName"`
	Total          int    `json:"total"`
	Resolved       int    `json:"resolved"`
	Pending        int    `json:"pending"`
}

const reportCacheTTL = 60 * time.Second

// NewReportService constructs the service. The cache client may be nil; the
// service then computes every request from the database.
func NewReportService(tickets repository.TicketRepository, departments repository.DepartmentRepository, cache *redis.Client, logger *zap.Logger) *ReportService {
	return &ReportService{
		tickets:     tickets,
		departments: departments,
		cache:       cache,
		logger:      logger,
		now:         time.Now,
	}
}

// Summarize builds the aggregate report for staff callers. The window is a
// rolling interval anchored at now, never calendar-aligned. Results are
// cached in Redis for a minute; cache failures are logged and ignored.
func (s *ReportService) Summarize(ctx context.Context, caller *domain.User, period string) (*ReportSummary, error) {
	if !caller.IsStaff() {
		return nil, apperrors.NewForbidden("reports are staff only")
	}

	windowDays := windowDaysForPeriod(period)
	cacheKey := "reports:summary:" + normalizedPeriod(period)

	if cached := s.fromCache(ctx, cacheKey); cached != nil {
		return cached, nil
	}

	now := s.now()
	since := now.Add(-time.Duration(windowDays) * 24 * time.Hour)
	tickets, err := s.tickets.ListCreatedSince(ctx, since)
	if err != nil {
		return nil, apperrors.MapError(err)
	}

	deptNames, err := s.departmentNames(ctx)
	if err != nil {
		return nil, err
	}

	summary := &ReportSummary{
		Period:                 normalizedPeriod(period),
		WindowDays:             windowDays,
		GeneratedAt:            now,
		DepartmentDistribution: map[string]int{},
		PriorityDistribution:   map[string]int{},
	}

	perDept := map[string]*DepartmentReport{}
	var deptOrder []string
	var resolutionMinutes []float64
	for i := range tickets {
		t := &tickets[i]
		summary.TotalTickets++
		summary.PriorityDistribution[string(t.Priority)]++

		deptName := deptNames[t.DepartmentID]
		if deptName == "" {
			deptName = t.DepartmentID
		}
		summary.DepartmentDistribution[deptName]++

		report, ok := perDept[t.DepartmentID]
		if !ok {
			report = &DepartmentReport{DepartmentID: t.DepartmentID, DepartmentName: deptName}
			perDept[t.DepartmentID] = report
			deptOrder = append(deptOrder, t.DepartmentID)
		}
		report.Total++

		switch t.Status {
		case domain.TicketStatusResolved, domain.TicketStatusClosed:
			summary.ResolvedTickets++
			report.Resolved++
		case domain.TicketStatusOpen, domain.TicketStatusInProgress,
			domain.TicketStatusWaitingCustomer, domain.TicketStatusWaitingAgent:
			summary.PendingTickets++
			report.Pending++
		}

		if t.ResolvedAt != nil {
			resolutionMinutes = append(resolutionMinutes, t.ResolvedAt.Sub(t.CreatedAt).Minutes())
		}
	}

	for _, deptID := range deptOrder {
		summary.DepartmentDetailed = append(summary.DepartmentDetailed, *perDept[deptID])
	}

	if len(resolutionMinutes) > 0 {
		var total float64
		for _, minutes := range resolutionMinutes {
			total += minutes
		}
		avg := math.Round(total/float64(len(resolutionMinutes))/60*10) / 10
		summary.AvgResolutionHours = &avg
	}

	s.toCache(ctx, cacheKey, summary)
	return summary, nil
}

func (s *ReportService) departmentNames(ctx context.Context) (map[string]string, error) {
	names := map[string]string{}
	departments, err := s.departments.ListActive(ctx)
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	for _, dept := range departments {
		names[dept.ID] = dept.Name
	}
	return names, nil
}

func (s *ReportService) fromCache(ctx context.Context, key string) *ReportSummary {
	if s.cache == nil {
		return nil
	}
	raw, err := s.cache.Get(ctx, key).Bytes()
	if err != nil {
		if err != redis.Nil && s.logger != nil {
			s.logger.Warn("report cache read failed", zap.Error(err))
		}
		return nil
	}
	var summary ReportSummary
	if err := json.Unmarshal(raw, &summary); err != nil {
		return nil
	}
	return &summary
}

func (s *ReportService) toCache(ctx context.Context, key string, summary *ReportSummary) {
	if s.cache == nil {
		return
	}
	raw, err := json.Marshal(summary)
	if err != nil {
		return
	}
	if err := s.cache.Set(ctx, key, raw, reportCacheTTL).Err(); err != nil && s.logger != nil {
		s.logger.Warn("report cache write failed", zap.Error(err))
	}
}

func windowDaysForPeriod(period string) int {
	switch period {
	case "semanal":
		return 7
	case "trimestral":
		return 90
	default:
		return 30
	}
}

func normalizedPeriod(period string) string {
	switch period {
	case "semanal", "trimestral":
		return period
	default:
		return "mensal"
	}
}

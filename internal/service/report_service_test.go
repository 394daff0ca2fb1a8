package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spec-kit/helpdesk-service/internal/domain"
)

func reportFixture(t *testing.T) (*ReportService, *fakeTicketRepo, *domain.User) {
	t.Helper()
	tickets := newFakeTicketRepo()
	departments := &fakeDepartmentRepo{departments: map[string]*domain.Department{
		"dept-1": {ID: "dept-1", Name: "T.I", IsActive: true},
		"dept-2": {ID: "dept-2", Name: "Financeiro", IsActive: true},
	}}
	svc := NewReportService(tickets, departments, nil, nil)
	agent := &domain.User{ID: "agent-1", Role: domain.RoleAgent, Active: true}
	return svc, tickets, agent
}

func seedTicket(repo *fakeTicketRepo, id, deptID string, status domain.TicketStatus, priority domain.TicketPriority, createdAt time.Time, resolvedAt *time.Time) {
	repo.tickets[id] = &domain.Ticket{
		ID:           id,
		Number:       "TCK-" + id,
		CustomerID:   "cust-1",
		DepartmentID: deptID,
		Subject:      "s",
		Description:  "d",
		Status:       status,
		Priority:     priority,
		CreatedAt:    createdAt,
		ResolvedAt:   resolvedAt,
		Version:      1,
	}
}

func TestSummarize_RoleGate(t *testing.T) {
	svc, _, _ := reportFixture(t)
	customer := &domain.User{ID: "cust-1", Role: domain.RoleCustomer, Active: true}
	_, err := svc.Summarize(context.Background(), customer, "semanal")
	assert.Equal(t, "FORBIDDEN", domainCode(t, err))
}

func TestSummarize_Buckets(t *testing.T) {
	svc, repo, agent := reportFixture(t)
	now := time.Now()
	resolved := now.Add(-1 * time.Hour)

	seedTicket(repo, "a", "dept-1", domain.TicketStatusOpen, domain.TicketPriorityNormal, now.Add(-24*time.Hour), nil)
	seedTicket(repo, "b", "dept-1", domain.TicketStatusInProgress, domain.TicketPriorityHigh, now.Add(-48*time.Hour), nil)
	seedTicket(repo, "c", "dept-1", domain.TicketStatusResolved, domain.TicketPriorityNormal, now.Add(-3*time.Hour), &resolved)
	seedTicket(repo, "d", "dept-2", domain.TicketStatusClosed, domain.TicketPriorityUrgent, now.Add(-5*24*time.Hour), &resolved)
	seedTicket(repo, "e", "dept-2", domain.TicketStatusCancelled, domain.TicketPriorityLow, now.Add(-6*24*time.Hour), nil)
	// outside the 7-day window
	seedTicket(repo, "old", "dept-1", domain.TicketStatusOpen, domain.TicketPriorityNormal, now.Add(-10*24*time.Hour), nil)

	summary, err := svc.Summarize(context.Background(), agent, "semanal")
	require.NoError(t, err)

	assert.Equal(t, "semanal", summary.Period)
	assert.Equal(t, 7, summary.WindowDays)
	assert.Equal(t, 5, summary.TotalTickets)
	assert.Equal(t, 2, summary.ResolvedTickets)
	assert.Equal(t, 2, summary.PendingTickets)
	// cancelled counts toward total only
	assert.Equal(t, summary.TotalTickets, summary.ResolvedTickets+summary.PendingTickets+1)

	assert.Equal(t, 3, summary.DepartmentDistribution["T.I"])
	assert.Equal(t, 2, summary.DepartmentDistribution["Financeiro"])
	assert.Equal(t, 2, summary.PriorityDistribution["NORMAL"])
	assert.Equal(t, 1, summary.PriorityDistribution["URGENT"])

	require.Len(t, summary.DepartmentDetailed, 2)
	for _, report := range summary.DepartmentDetailed {
		switch report.DepartmentName {
		case "T.I":
			assert.Equal(t, 3, report.Total)
			assert.Equal(t, 1, report.Resolved)
			assert.Equal(t, 2, report.Pending)
		case "Financeiro":
			assert.Equal(t, 2, report.Total)
			assert.Equal(t, 1, report.Resolved)
			assert.Equal(t, 0, report.Pending)
		default:
			t.Fatalf("unexpected department %q", report.DepartmentName)
		}
	}
}

func TestSummarize_AvgResolutionHours(t *testing.T) {
	svc, repo, agent := reportFixture(t)
	now := time.Now()

	created1 := now.Add(-10 * time.Hour)
	resolved1 := created1.Add(2 * time.Hour)
	created2 := now.Add(-20 * time.Hour)
	resolved2 := created2.Add(3 * time.Hour)
	seedTicket(repo, "a", "dept-1", domain.TicketStatusResolved, domain.TicketPriorityNormal, created1, &resolved1)
	seedTicket(repo, "b", "dept-1", domain.TicketStatusResolved, domain.TicketPriorityNormal, created2, &resolved2)

	summary, err := svc.Summarize(context.Background(), agent, "")
	require.NoError(t, err)
	require.NotNil(t, summary.AvgResolutionHours)
	assert.InDelta(t, 2.5, *summary.AvgResolutionHours, 0.001)
}

func TestSummarize_AvgNilWhenNothingResolved(t *testing.T) {
	svc, repo, agent := reportFixture(t)
	seedTicket(repo, "a", "dept-1", domain.TicketStatusOpen, domain.TicketPriorityNormal, time.Now().Add(-time.Hour), nil)

	summary, err := svc.Summarize(context.Background(), agent, "mensal")
	require.NoError(t, err)
	assert.Nil(t, summary.AvgResolutionHours)
}

func TestSummarize_PeriodWindows(t *testing.T) {
	svc, _, agent := reportFixture(t)

	cases := map[string]int{
		"semanal":    7,
		"trimestral": 90,
		"mensal":     30,
		"":           30,
		"anything":   30,
	}
	for period, wantDays := range cases {
		summary, err := svc.Summarize(context.Background(), agent, period)
		require.NoError(t, err, period)
		assert.Equal(t, wantDays, summary.WindowDays, period)
	}
}

func TestSummarize_SoftDeletedExcluded(t *testing.T) {
	svc, repo, agent := reportFixture(t)
	now := time.Now()
	seedTicket(repo, "live", "dept-1", domain.TicketStatusOpen, domain.TicketPriorityNormal, now.Add(-time.Hour), nil)
	seedTicket(repo, "gone", "dept-1", domain.TicketStatusOpen, domain.TicketPriorityNormal, now.Add(-time.Hour), nil)
	repo.tickets["gone"].IsDeleted = true

	summary, err := svc.Summarize(context.Background(), agent, "semanal")
	require.NoError(t, err)
	assert.Equal(t, 1, summary.TotalTickets)
}

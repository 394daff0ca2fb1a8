package domain

import (
	"fmt"
	"time"
)

// TicketStatus enumerates lifecycle states for tickets.
type TicketStatus string

const (
	TicketStatusOpen            TicketStatus = "OPEN"
	TicketStatusInProgress      TicketStatus = "IN_PROGRESS"
	TicketStatusWaitingCustomer TicketStatus = "WAITING_CUSTOMER"
	TicketStatusWaitingAgent    TicketStatus = "WAITING_AGENT"
	TicketStatusResolved        TicketStatus = "RESOLVED"
	TicketStatusClosed          TicketStatus = "CLOSED"
	TicketStatusCancelled       TicketStatus = "CANCELLED"
)

// TicketPriority enumerates SLA urgency.
type TicketPriority string

const (
	TicketPriorityLow    TicketPriority = "LOW"
	TicketPriorityNormal TicketPriority = "NORMAL"
	TicketPriorityHigh   TicketPriority = "HIGH"
	TicketPriorityUrgent TicketPriority = "URGENT"
)

// Ticket is the aggregate for support requests.
type Ticket struct {
	ID               string
	Number           string
	CustomerID       string
	DepartmentID     string
	AssignedAgentID  *string
	Subject          string
	Description      string
	Status           TicketStatus
	Priority         TicketPriority
	SLAHours         *int
	CustomerRating   *int
	CustomerFeedback *string
	CreatedAt        time.Time
	UpdatedAt        time.Time
	FirstResponseAt  *time.Time
	ResolvedAt       *time.Time
	ClosedAt         *time.Time
	IsDeleted        bool
	Version          int
}

// allowedTransitions lists the directed edges of the status machine.
// Cancellation is handled separately: it is reachable from every state.
var allowedTransitions = map[TicketStatus][]TicketStatus{
	TicketStatusOpen:            {TicketStatusInProgress, TicketStatusResolved},
	TicketStatusInProgress:      {TicketStatusWaitingCustomer, TicketStatusWaitingAgent, TicketStatusResolved},
	TicketStatusWaitingCustomer: {TicketStatusInProgress, TicketStatusResolved},
	TicketStatusWaitingAgent:    {TicketStatusInProgress, TicketStatusResolved},
	TicketStatusResolved:        {TicketStatusClosed, TicketStatusInProgress},
	TicketStatusClosed:          {},
	TicketStatusCancelled:       {},
}

// CanTransition reports whether the status machine allows current -> next.
func CanTransition(current, next TicketStatus) bool {
	if next == TicketStatusCancelled {
		return true
	}
	for _, candidate := range allowedTransitions[current] {
		if candidate == next {
			return true
		}
	}
	return false
}

// ChangeStatus applies a transition when the table allows it. Entering
// RESOLVED stamps ResolvedAt (re-stamping on repeated resolution), entering
// CLOSED stamps ClosedAt and backfills ResolvedAt when unset. Returns false
// and leaves the ticket untouched for a disallowed pair; translating that
// into an API error is the caller's job.
func (t *Ticket) ChangeStatus(next TicketStatus, now time.Time) bool {
	if !CanTransition(t.Status, next) {
		return false
	}
	t.Status = next
	switch next {
	case TicketStatusResolved:
		resolved := now
		t.ResolvedAt = &resolved
	case TicketStatusClosed:
		closed := now
		t.ClosedAt = &closed
		if t.ResolvedAt == nil {
			t.ResolvedAt = &closed
		}
	}
	t.UpdatedAt = now
	return true
}

// AssignToAgent sets the assignee. An OPEN ticket auto-advances to
// IN_PROGRESS; any other status is left as is.
func (t *Ticket) AssignToAgent(agentID string, now time.Time) {
	t.AssignedAgentID = &agentID
	if t.Status == TicketStatusOpen {
		t.Status = TicketStatusInProgress
	}
	t.UpdatedAt = now
}

// MarkFirstResponse stamps FirstResponseAt once; later calls are no-ops.
func (t *Ticket) MarkFirstResponse(now time.Time) {
	if t.FirstResponseAt != nil {
		return
	}
	stamp := now
	t.FirstResponseAt = &stamp
	t.UpdatedAt = now
}

// Rate records a customer rating. Ratings outside 1..5 are ignored without
// touching the ticket, matching the upstream API behavior.
func (t *Ticket) Rate(rating int, feedback *string, now time.Time) bool {
	if rating < 1 || rating > 5 {
		return false
	}
	t.CustomerRating = &rating
	t.CustomerFeedback = feedback
	t.UpdatedAt = now
	return true
}

// IsOverdue reports whether the SLA deadline has passed for an unresolved
// ticket. Never persisted; recomputed on read.
func (t *Ticket) IsOverdue(now time.Time) bool {
	if t.SLAHours == nil {
		return false
	}
	if t.Status == TicketStatusResolved || t.Status == TicketStatusClosed {
		return false
	}
	deadline := t.CreatedAt.Add(time.Duration(*t.SLAHours) * time.Hour)
	return now.After(deadline)
}

// ResolutionTimeHours returns hours between creation and resolution, or nil
// while unresolved.
func (t *Ticket) ResolutionTimeHours() *float64 {
	if t.ResolvedAt == nil {
		return nil
	}
	hours := t.ResolvedAt.Sub(t.CreatedAt).Hours()
	return &hours
}

// FirstResponseTimeHours returns hours until the first staff response, or nil.
func (t *Ticket) FirstResponseTimeHours() *float64 {
	if t.FirstResponseAt == nil {
		return nil
	}
	hours := t.FirstResponseAt.Sub(t.CreatedAt).Hours()
	return &hours
}

// NewTicketNumber builds the human-readable ticket number: TCK- followed by
// a UTC yymmddHHmmss timestamp plus milliseconds. Uniqueness under concurrent
// creation is the repository's constraint, not the generator's.
func NewTicketNumber(now time.Time) string {
	utc := now.UTC()
	return fmt.Sprintf("TCK-%s%03d", utc.Format("060102150405"), utc.Nanosecond()/int(time.Millisecond))
}

// SLAHoursForPriority maps priority to the default SLA deadline in hours.
func SLAHoursForPriority(priority TicketPriority) int {
	switch priority {
	case TicketPriorityUrgent:
		return 4
	case TicketPriorityHigh:
		return 8
	case TicketPriorityLow:
		return 72
	default:
		return 24
	}
}

// ValidPriority reports whether the value is a known priority.
func ValidPriority(p TicketPriority) bool {
	switch p {
	case TicketPriorityLow, TicketPriorityNormal, TicketPriorityHigh, TicketPriorityUrgent:
		return true
	}
	return false
}

// ValidStatus reports whether the value is a known status.
func ValidStatus(s TicketStatus) bool {
	switch s {
	case TicketStatusOpen, TicketStatusInProgress, TicketStatusWaitingCustomer,
		TicketStatusWaitingAgent, TicketStatusResolved, TicketStatusClosed, TicketStatusCancelled:
		return true
	}
	return false
}

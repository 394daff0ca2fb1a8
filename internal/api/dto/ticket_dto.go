package dto

import (
	"time"

	"github.com/spec-kit/helpdesk-service/internal/domain"
)

// CreateTicketRequest is the ticket creation payload.
type CreateTicketRequest struct {
	DepartmentID string                `json:"department_id"`
	Subject      string                `json:"subject"`
	Description  string                `json:"description"`
	Priority     domain.TicketPriority `json:"priority"`
	CustomerID   string                `json:"customer_id"`
}

// UpdateStatusRequest carries a lifecycle transition.
type UpdateStatusRequest struct {
	Status domain.TicketStatus `json:"status"`
}

// AssignTicketRequest carries an assignment.
type AssignTicketRequest struct {
	AgentID string `json:"agent_id"`
}

// RateTicketRequest carries a satisfaction rating.
type RateTicketRequest struct {
	Rating   int     `json:"rating"`
	Feedback *string `json:"feedback"`
}

// CreateMessageRequest appends a message to a ticket thread.
type CreateMessageRequest struct {
	Body        string              `json:"body"`
	IsInternal  bool                `json:"is_internal"`
	Attachments []AttachmentRequest `json:"attachments"`
}

// EditMessageRequest replaces a message body.
type EditMessageRequest struct {
	Body string `json:"body"`
}

// AttachmentRequest describes an uploaded file reference.
type AttachmentRequest struct {
	StorageKey string `json:"storage_key"`
	FileName   string `json:"file_name"`
	MimeType   string `json:"mime_type"`
	SizeBytes  int64  `json:"size_bytes"`
}

// TicketSummary is the list-view projection of a ticket.
type TicketSummary struct {
	ID              string                `json:"id"`
	Number          string                `json:"number"`
	CustomerID      string                `json:"customer_id"`
	DepartmentID    string                `json:"department_id"`
	AssignedAgentID *string               `json:"assigned_agent_id"`
	Subject         string                `json:"subject"`
	Status          domain.TicketStatus   `json:"status"`
	Priority        domain.TicketPriority `json:"priority"`
	IsOverdue       bool                  `json:"is_overdue"`
	CreatedAt       time.Time             `json:"created_at"`
	UpdatedAt       time.Time             `json:"updated_at"`
}

// TicketDetailResponse is the full ticket view including its thread.
type TicketDetailResponse struct {
	ID                    string                  `json:"id"`
	Number                string                  `json:"number"`
	CustomerID            string                  `json:"customer_id"`
	DepartmentID          string                  `json:"department_id"`
	AssignedAgentID       *string                 `json:"assigned_agent_id"`
	Subject               string                  `json:"subject"`
	Description           string                  `json:"description"`
	Status                domain.TicketStatus     `json:"status"`
	Priority              domain.TicketPriority   `json:"priority"`
	SLAHours              *int                    `json:"sla_hours"`
	IsOverdue             bool                    `json:"is_overdue"`
	CustomerRating        *int                    `json:"customer_rating"`
	CustomerFeedback      *string                 `json:"customer_feedback"`
	ResolutionTimeHours   *float64                `json:"resolution_time_hours"`
	FirstResponseTimeHours *float64               `json:"first_response_time_hours"`
	CreatedAt             time.Time               `json:"created_at"`
	UpdatedAt             time.Time               `json:"updated_at"`
	FirstResponseAt       *time.Time              `json:"first_response_at"`
	ResolvedAt            *time.Time              `json:"resolved_at"`
	ClosedAt              *time.Time              `json:"closed_at"`
	Messages              []TicketMessageResponse `json:"messages"`
}

// TicketMessageResponse is a serialized thread message.
type TicketMessageResponse struct {
	ID          string               `json:"id"`
	TicketID    string               `json:"ticket_id"`
	AuthorID    string               `json:"author_id"`
	Body        string               `json:"body"`
	IsInternal  bool                 `json:"is_internal"`
	EditedAt    *time.Time           `json:"edited_at"`
	Attachments []AttachmentResponse `json:"attachments"`
	CreatedAt   time.Time            `json:"created_at"`
}

// AttachmentResponse is a serialized attachment reference.
type AttachmentResponse struct {
	ID        string `json:"id"`
	FileName  string `json:"file_name"`
	MimeType  string `json:"mime_type"`
	SizeBytes int64  `json:"size_bytes"`
}

// TicketHistoryResponse is a serialized audit entry.
type TicketHistoryResponse struct {
	ID          string                  `json:"id"`
	ChangeType  domain.TicketChangeType `json:"change_type"`
	ChangedByID *string                 `json:"changed_by_id"`
	OldValue    map[string]any          `json:"old_value"`
	NewValue    map[string]any          `json:"new_value"`
	CreatedAt   time.Time               `json:"created_at"`
}

// TicketListResponse pairs a page of tickets with pagination info.
type TicketListResponse struct {
	Items    []TicketSummary `json:"items"`
	Total    int             `json:"total"`
	Page     int             `json:"page"`
	PageSize int             `json:"page_size"`
}

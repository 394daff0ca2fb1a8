package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/spec-kit/helpdesk-service/internal/domain"
	"github.com/spec-kit/helpdesk-service/internal/events"
	"github.com/spec-kit/helpdesk-service/internal/repository"
	apperrors "github.com/spec-kit/helpdesk-service/pkg/util"
)

// TicketService coordinates ticket workflows: creation, lifecycle moves,
// assignment, rating, and the message thread.
type TicketService struct {
	tickets     repository.TicketRepository
	messages    repository.TicketMessageRepository
	attachments repository.AttachmentRepository
	departments repository.DepartmentRepository
	users       repository.UserRepository
	history     repository.TicketHistoryRepository
	dispatcher  events.Dispatcher
	now         func() time.Time
}

// TicketDependencies bundles repositories for the ticket service.
type TicketDependencies struct {
	TicketRepo     repository.TicketRepository
	MessageRepo    repository.TicketMessageRepository
	AttachmentRepo repository.AttachmentRepository
	DepartmentRepo repository.DepartmentRepository
	UserRepo       repository.UserRepository
	HistoryRepo    repository.TicketHistoryRepository
	Dispatcher     events.Dispatcher
}

// TicketCreateInput describes the ticket creation payload. CustomerID is
// honored only for staff callers creating on a customer's behalf.
type TicketCreateInput struct {
	DepartmentID string
	Subject      string
	Description  string
	Priority     domain.TicketPriority
	CustomerID   string
}

// TicketListInput describes listing filters.
type TicketListInput struct {
	Statuses   []domain.TicketStatus
	Priorities []domain.TicketPriority
	Search     *string
	Page       int
	PageSize   int
}

// MessageAttachmentInput defines attachment metadata.
type MessageAttachmentInput struct {
	StorageKey string
	FileName   string
	MimeType   string
	SizeBytes  int64
}

const (
	maxSubjectLen     = 200
	maxDescriptionLen = 2000
	maxFeedbackLen    = 500
	maxMessageLen     = 5000
)

// NewTicketService constructs the service.
func NewTicketService(deps TicketDependencies) *TicketService {
	return &TicketService{
		tickets:     deps.TicketRepo,
		messages:    deps.MessageRepo,
		attachments: deps.AttachmentRepo,
		departments: deps.DepartmentRepo,
		users:       deps.UserRepo,
		history:     deps.HistoryRepo,
		dispatcher:  deps.Dispatcher,
		now:         time.Now,
	}
}

// CreateTicket validates the payload, derives the SLA from priority, and
// persists a new OPEN ticket. Duplicate ticket numbers (same-millisecond
// creation) are retried once with a fresh number; the unique index stays
// the source of truth.
func (s *TicketService) CreateTicket(ctx context.Context, actor *domain.User, input TicketCreateInput) (*domain.Ticket, error) {
	subject := strings.TrimSpace(input.Subject)
	description := strings.TrimSpace(input.Description)
	if subject == "" || len(subject) > maxSubjectLen {
		return nil, apperrors.NewValidationError("subject must be 1-200 characters", map[string]any{"field": "subject"})
	}
	if description == "" || len(description) > maxDescriptionLen {
		return nil, apperrors.NewValidationError("description must be 1-2000 characters", map[string]any{"field": "description"})
	}

	priority := input.Priority
	if priority == "" {
		priority = domain.TicketPriorityNormal
	}
	if !domain.ValidPriority(priority) {
		return nil, apperrors.NewValidationError("unknown priority", map[string]any{"priority": input.Priority})
	}

	dept, err := s.departments.GetByID(ctx, input.DepartmentID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.NewValidationError("unknown department", map[string]any{"department_id": input.DepartmentID})
		}
		return nil, apperrors.MapError(err)
	}
	if !dept.IsActive {
		return nil, apperrors.NewValidationError("department inactive", map[string]any{"department_id": dept.ID})
	}

	customerID := actor.ID
	if input.CustomerID != "" && input.CustomerID != actor.ID {
		if !actor.IsStaff() {
			return nil, apperrors.NewForbidden("customers can only open tickets for themselves")
		}
		customer, err := s.users.GetByID(ctx, input.CustomerID)
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return nil, apperrors.NewValidationError("unknown customer", map[string]any{"customer_id": input.CustomerID})
			}
			return nil, apperrors.MapError(err)
		}
		customerID = customer.ID
	}

	sla := domain.SLAHoursForPriority(priority)
	ticket := &domain.Ticket{
		Number:       domain.NewTicketNumber(s.now()),
		CustomerID:   customerID,
		DepartmentID: dept.ID,
		Subject:      subject,
		Description:  description,
		Status:       domain.TicketStatusOpen,
		Priority:     priority,
		SLAHours:     &sla,
	}

	if err := s.tickets.Create(ctx, ticket); err != nil {
		if !repository.IsUniqueViolation(err) {
			return nil, apperrors.MapError(err)
		}
		ticket.Number = domain.NewTicketNumber(s.now())
		if err := s.tickets.Create(ctx, ticket); err != nil {
			return nil, apperrors.MapError(err)
		}
	}

	s.publishEvent(ctx, events.Event{
		Type:     events.EventTicketCreated,
		TicketID: ticket.ID,
		Actor:    actorOf(actor),
		Payload: events.TicketCreatedPayload{
			Number:       ticket.Number,
			DepartmentID: ticket.DepartmentID,
			Priority:     ticket.Priority,
			Subject:      ticket.Subject,
		},
	})
	return ticket, nil
}

// GetTicket fetches a ticket with its thread, enforcing access and message
// visibility for the caller.
func (s *TicketService) GetTicket(ctx context.Context, actor *domain.User, ticketID string) (*domain.Ticket, []domain.TicketMessage, error) {
	ticket, err := s.loadAccessible(ctx, actor, ticketID)
	if err != nil {
		return nil, nil, err
	}
	msgs, err := s.visibleMessages(ctx, actor, ticket.ID)
	if err != nil {
		return nil, nil, err
	}
	return ticket, msgs, nil
}

// GetTicketByNumber resolves the human-readable ticket number.
func (s *TicketService) GetTicketByNumber(ctx context.Context, actor *domain.User, number string) (*domain.Ticket, []domain.TicketMessage, error) {
	ticket, err := s.tickets.GetByNumber(ctx, number)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil, apperrors.NewNotFound("ticket", map[string]any{"number": number})
		}
		return nil, nil, apperrors.MapError(err)
	}
	if !actor.CanAccessTicket(ticket) {
		return nil, nil, apperrors.NewForbidden("access denied")
	}
	msgs, err := s.visibleMessages(ctx, actor, ticket.ID)
	if err != nil {
		return nil, nil, err
	}
	return ticket, msgs, nil
}

// ListTickets returns a page of tickets plus the unpaginated total.
// Customers are always scoped to their own tickets.
func (s *TicketService) ListTickets(ctx context.Context, actor *domain.User, input TicketListInput) ([]domain.Ticket, int, error) {
	filter := repository.TicketFilter{
		Statuses:   input.Statuses,
		Priorities: input.Priorities,
		SearchTerm: input.Search,
	}
	if !actor.IsStaff() {
		customerID := actor.ID
		filter.CustomerID = &customerID
	}

	page := input.Page
	if page <= 0 {
		page = 1
	}
	pageSize := input.PageSize
	if pageSize <= 0 {
		pageSize = 20
	}
	filter.Limit = pageSize
	filter.Offset = (page - 1) * pageSize

	tickets, err := s.tickets.ListWithFilter(ctx, filter)
	if err != nil {
		return nil, 0, apperrors.MapError(err)
	}
	total, err := s.tickets.CountWithFilter(ctx, filter)
	if err != nil {
		return nil, 0, apperrors.MapError(err)
	}
	return tickets, total, nil
}

// UpdateStatus applies a lifecycle transition. The entity decides validity;
// a false return becomes a 400 distinct from generic validation failures.
// Concurrent writers are serialized by the version guard: the loser gets a
// 409.
func (s *TicketService) UpdateStatus(ctx context.Context, actor *domain.User, ticketID string, newStatus domain.TicketStatus) (*domain.Ticket, error) {
	if !domain.ValidStatus(newStatus) {
		return nil, apperrors.NewValidationError("unknown status", map[string]any{"status": newStatus})
	}
	ticket, err := s.loadAccessible(ctx, actor, ticketID)
	if err != nil {
		return nil, err
	}

	oldStatus := ticket.Status
	if !ticket.ChangeStatus(newStatus, s.now()) {
		return nil, apperrors.NewInvalidTransition(string(oldStatus), string(newStatus))
	}
	if err := s.persistTicket(ctx, ticket); err != nil {
		return nil, err
	}

	s.recordHistory(ctx, actor, ticket.ID, domain.ChangeTypeStatus,
		map[string]any{"status": oldStatus},
		map[string]any{"status": newStatus})
	s.publishEvent(ctx, events.Event{
		Type:     events.EventTicketStatusChanged,
		TicketID: ticket.ID,
		Actor:    actorOf(actor),
		Payload: events.TicketStatusChangedPayload{
			OldStatus: oldStatus,
			NewStatus: newStatus,
		},
	})
	return ticket, nil
}

// AssignTicket sets the assigned agent; an OPEN ticket advances to
// IN_PROGRESS as a convenience.
func (s *TicketService) AssignTicket(ctx context.Context, actor *domain.User, ticketID, agentID string) (*domain.Ticket, error) {
	if !actor.IsStaff() {
		return nil, apperrors.NewForbidden("staff role required")
	}
	agent, err := s.users.GetByID(ctx, agentID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.NewNotFound("agent", map[string]any{"agent_id": agentID})
		}
		return nil, apperrors.MapError(err)
	}
	if !agent.IsStaff() {
		return nil, apperrors.NewValidationError("assignee is not staff", map[string]any{"agent_id": agentID})
	}
	if !agent.Active {
		return nil, apperrors.NewConflict("assignee inactive", map[string]any{"agent_id": agentID})
	}

	ticket, err := s.loadAccessible(ctx, actor, ticketID)
	if err != nil {
		return nil, err
	}
	oldAssignee := ticket.AssignedAgentID
	autoAdvanced := ticket.Status == domain.TicketStatusOpen
	ticket.AssignToAgent(agent.ID, s.now())
	if err := s.persistTicket(ctx, ticket); err != nil {
		return nil, err
	}

	s.recordHistory(ctx, actor, ticket.ID, domain.ChangeTypeAssignee,
		map[string]any{"assigned_agent_id": oldAssignee},
		map[string]any{"assigned_agent_id": ticket.AssignedAgentID})
	s.publishEvent(ctx, events.Event{
		Type:     events.EventTicketAssigned,
		TicketID: ticket.ID,
		Actor:    actorOf(actor),
		Payload: events.TicketAssignedPayload{
			AssignedAgentID: agent.ID,
			AutoAdvanced:    autoAdvanced,
		},
	})
	return ticket, nil
}

// RateTicket records the customer's satisfaction rating. Ratings outside
// 1..5 are silently ignored: the ticket is returned unchanged and no error
// surfaces, preserving the upstream API contract.
func (s *TicketService) RateTicket(ctx context.Context, actor *domain.User, ticketID string, rating int, feedback *string) (*domain.Ticket, error) {
	ticket, err := s.loadAccessible(ctx, actor, ticketID)
	if err != nil {
		return nil, err
	}
	if ticket.CustomerID != actor.ID {
		return nil, apperrors.NewForbidden("only the requesting customer can rate a ticket")
	}
	if feedback != nil && len(*feedback) > maxFeedbackLen {
		return nil, apperrors.NewValidationError("feedback must be at most 500 characters", map[string]any{"field": "feedback"})
	}

	if !ticket.Rate(rating, feedback, s.now()) {
		return ticket, nil
	}
	if err := s.persistTicket(ctx, ticket); err != nil {
		return nil, err
	}

	s.recordHistory(ctx, actor, ticket.ID, domain.ChangeTypeRating,
		map[string]any{},
		map[string]any{"rating": rating})
	s.publishEvent(ctx, events.Event{
		Type:     events.EventTicketRated,
		TicketID: ticket.ID,
		Actor:    actorOf(actor),
		Payload:  events.TicketRatedPayload{Rating: rating},
	})
	return ticket, nil
}

// AddMessage appends a message to the thread. Customers may only post
// public messages; the first public staff reply stamps the ticket's first
// response time.
func (s *TicketService) AddMessage(ctx context.Context, actor *domain.User, ticketID, body string, isInternal bool, attachments []MessageAttachmentInput) (*domain.TicketMessage, error) {
	trimmed := strings.TrimSpace(body)
	if trimmed == "" || len(trimmed) > maxMessageLen {
		return nil, apperrors.NewValidationError("message body must be 1-5000 characters", map[string]any{"field": "body"})
	}
	if isInternal && !actor.IsStaff() {
		return nil, apperrors.NewForbidden("internal notes are staff only")
	}

	ticket, err := s.loadAccessible(ctx, actor, ticketID)
	if err != nil {
		return nil, err
	}

	msg := &domain.TicketMessage{
		TicketID:   ticket.ID,
		AuthorID:   actor.ID,
		Body:       trimmed,
		IsInternal: isInternal,
	}
	if err := s.messages.Create(ctx, msg); err != nil {
		return nil, apperrors.MapError(err)
	}
	for _, att := range attachments {
		record := &domain.AttachmentReference{
			TicketMessageID: msg.ID,
			StorageKey:      att.StorageKey,
			FileName:        att.FileName,
			MimeType:        att.MimeType,
			SizeBytes:       att.SizeBytes,
		}
		if err := s.attachments.Create(ctx, record); err != nil {
			return nil, apperrors.MapError(err)
		}
		msg.Attachments = append(msg.Attachments, *record)
	}

	if actor.IsStaff() && !isInternal && ticket.FirstResponseAt == nil {
		ticket.MarkFirstResponse(s.now())
		if err := s.persistTicket(ctx, ticket); err != nil {
			return nil, err
		}
		s.publishEvent(ctx, events.Event{
			Type:     events.EventTicketFirstResponse,
			TicketID: ticket.ID,
			Actor:    actorOf(actor),
		})
	}

	s.publishEvent(ctx, events.Event{
		Type:     events.EventTicketMessageAdded,
		TicketID: ticket.ID,
		Actor:    actorOf(actor),
		Payload: events.TicketMessageAddedPayload{
			MessageID:   msg.ID,
			AuthorID:    actor.ID,
			IsInternal:  isInternal,
			BodyPreview: stringPreview(trimmed, 120),
		},
	})
	return msg, nil
}

// EditMessage replaces a message body, keeping the original for audit.
func (s *TicketService) EditMessage(ctx context.Context, actor *domain.User, ticketID, messageID, body string) (*domain.TicketMessage, error) {
	trimmed := strings.TrimSpace(body)
	if trimmed == "" || len(trimmed) > maxMessageLen {
		return nil, apperrors.NewValidationError("message body must be 1-5000 characters", map[string]any{"field": "body"})
	}
	if _, err := s.loadAccessible(ctx, actor, ticketID); err != nil {
		return nil, err
	}
	msg, err := s.messages.GetByID(ctx, messageID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.NewNotFound("message", map[string]any{"message_id": messageID})
		}
		return nil, apperrors.MapError(err)
	}
	if msg.TicketID != ticketID {
		return nil, apperrors.NewNotFound("message", map[string]any{"message_id": messageID})
	}
	if msg.AuthorID != actor.ID {
		return nil, apperrors.NewForbidden("only the author can edit a message")
	}

	msg.Edit(trimmed, s.now())
	if err := s.messages.Update(ctx, msg); err != nil {
		return nil, apperrors.MapError(err)
	}
	return msg, nil
}

// DeleteTicket soft-deletes; the row stays behind the IsDeleted flag.
func (s *TicketService) DeleteTicket(ctx context.Context, actor *domain.User, ticketID string) error {
	if actor.Role != domain.RoleAdmin {
		return apperrors.NewForbidden("admin role required")
	}
	if err := s.tickets.SoftDelete(ctx, ticketID); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return apperrors.NewNotFound("ticket", map[string]any{"ticket_id": ticketID})
		}
		return apperrors.MapError(err)
	}
	s.recordHistory(ctx, actor, ticketID, domain.ChangeTypeDeleted,
		map[string]any{"is_deleted": false},
		map[string]any{"is_deleted": true})
	return nil
}

// ListHistory returns the audit trail for staff.
func (s *TicketService) ListHistory(ctx context.Context, actor *domain.User, ticketID string) ([]domain.TicketHistory, error) {
	if !actor.IsStaff() {
		return nil, apperrors.NewForbidden("staff role required")
	}
	if s.history == nil {
		return []domain.TicketHistory{}, nil
	}
	if _, err := s.loadAccessible(ctx, actor, ticketID); err != nil {
		return nil, err
	}
	entries, err := s.history.ListByTicket(ctx, ticketID)
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	return entries, nil
}

func (s *TicketService) loadAccessible(ctx context.Context, actor *domain.User, ticketID string) (*domain.Ticket, error) {
	ticket, err := s.tickets.GetByID(ctx, ticketID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.NewNotFound("ticket", map[string]any{"ticket_id": ticketID})
		}
		return nil, apperrors.MapError(err)
	}
	if !actor.CanAccessTicket(ticket) {
		return nil, apperrors.NewForbidden("access denied")
	}
	return ticket, nil
}

func (s *TicketService) persistTicket(ctx context.Context, ticket *domain.Ticket) error {
	if err := s.tickets.Update(ctx, ticket); err != nil {
		if errors.Is(err, repository.ErrVersionConflict) {
			return apperrors.NewConflict("ticket was modified concurrently, retry", map[string]any{"ticket_id": ticket.ID})
		}
		return apperrors.MapError(err)
	}
	return nil
}

func (s *TicketService) visibleMessages(ctx context.Context, actor *domain.User, ticketID string) ([]domain.TicketMessage, error) {
	msgs, err := s.messages.ListByTicket(ctx, ticketID)
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	for i := range msgs {
		attachments, err := s.attachments.ListByMessage(ctx, msgs[i].ID)
		if err != nil {
			return nil, apperrors.MapError(err)
		}
		msgs[i].Attachments = attachments
	}
	if actor.IsStaff() {
		return msgs, nil
	}
	filtered := make([]domain.TicketMessage, 0, len(msgs))
	for _, msg := range msgs {
		if msg.IsInternal {
			continue
		}
		filtered = append(filtered, msg)
	}
	return filtered, nil
}

func (s *TicketService) recordHistory(ctx context.Context, actor *domain.User, ticketID string, changeType domain.TicketChangeType, oldValue, newValue map[string]any) {
	if s.history == nil {
		return
	}
	actorID := actor.ID
	_ = s.history.Create(ctx, &domain.TicketHistory{
		TicketID:    ticketID,
		ChangedByID: &actorID,
		ChangeType:  changeType,
		OldValue:    oldValue,
		NewValue:    newValue,
	})
}

func (s *TicketService) publishEvent(ctx context.Context, event events.Event) {
	if s.dispatcher == nil {
		return
	}
	if event.ID == "" {
		event.ID = uuid.NewString()
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = s.now()
	}
	_ = s.dispatcher.Publish(ctx, event)
}

func actorOf(user *domain.User) events.Actor {
	return events.Actor{UserID: user.ID, Role: user.Role}
}

func stringPreview(body string, max int) string {
	body = strings.TrimSpace(body)
	if len(body) <= max {
		return body
	}
	if max <= 3 {
		return body[:max]
	}
	return body[:max-3] + "..."
}

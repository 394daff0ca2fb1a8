package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spec-kit/helpdesk-service/internal/domain"
	"github.com/spec-kit/helpdesk-service/internal/events"
	"github.com/spec-kit/helpdesk-service/internal/repository"
	apperrors "github.com/spec-kit/helpdesk-service/pkg/util"
)

type fakeTicketRepo struct {
	mu      sync.Mutex
	tickets map[string]*domain.Ticket
	seq     int

	failNextCreate error
	conflictNext   bool
}

func newFakeTicketRepo() *fakeTicketRepo {
	return &fakeTicketRepo{tickets: map[string]*domain.Ticket{}}
}

func (r *fakeTicketRepo) Create(ctx context.Context, ticket *domain.Ticket) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.failNextCreate != nil {
		err := r.failNextCreate
		r.failNextCreate = nil
		return err
	}
	r.seq++
	ticket.ID = fmt.Sprintf("ticket-%d", r.seq)
	ticket.CreatedAt = time.Now()
	ticket.UpdatedAt = ticket.CreatedAt
	ticket.Version = 1
	clone := *ticket
	r.tickets[ticket.ID] = &clone
	return nil
}

func (r *fakeTicketRepo) Update(ctx context.Context, ticket *domain.Ticket) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.conflictNext {
		r.conflictNext = false
		return repository.ErrVersionConflict
	}
	stored, ok := r.tickets[ticket.ID]
	if !ok || stored.IsDeleted {
		return pgx.ErrNoRows
	}
	if stored.Version != ticket.Version {
		return repository.ErrVersionConflict
	}
	ticket.Version++
	clone := *ticket
	r.tickets[ticket.ID] = &clone
	return nil
}

func (r *fakeTicketRepo) GetByID(ctx context.Context, id string) (*domain.Ticket, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	stored, ok := r.tickets[id]
	if !ok || stored.IsDeleted {
		return nil, pgx.ErrNoRows
	}
	clone := *stored
	return &clone, nil
}

func (r *fakeTicketRepo) GetByNumber(ctx context.Context, number string) (*domain.Ticket, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, stored := range r.tickets {
		if stored.Number == number && !stored.IsDeleted {
			clone := *stored
			return &clone, nil
		}
	}
	return nil, pgx.ErrNoRows
}

func (r *fakeTicketRepo) ListWithFilter(ctx context.Context, filter repository.TicketFilter) ([]domain.Ticket, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var result []domain.Ticket
	for _, stored := range r.tickets {
		if stored.IsDeleted {
			continue
		}
		if filter.CustomerID != nil && stored.CustomerID != *filter.CustomerID {
			continue
		}
		result = append(result, *stored)
	}
	return result, nil
}

func (r *fakeTicketRepo) CountWithFilter(ctx context.Context, filter repository.TicketFilter) (int, error) {
	items, _ := r.ListWithFilter(ctx, filter)
	return len(items), nil
}

func (r *fakeTicketRepo) ListCreatedSince(ctx context.Context, since time.Time) ([]domain.Ticket, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var result []domain.Ticket
	for _, stored := range r.tickets {
		if !stored.IsDeleted && !stored.CreatedAt.Before(since) {
			result = append(result, *stored)
		}
	}
	return result, nil
}

func (r *fakeTicketRepo) SoftDelete(ctx context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	stored, ok := r.tickets[id]
	if !ok || stored.IsDeleted {
		return pgx.ErrNoRows
	}
	stored.IsDeleted = true
	return nil
}

type fakeDepartmentRepo struct {
	departments map[string]*domain.Department
}

func (r *fakeDepartmentRepo) Create(ctx context.Context, dept *domain.Department) error {
	r.departments[dept.ID] = dept
	return nil
}

func (r *fakeDepartmentRepo) Update(ctx context.Context, dept *domain.Department) error {
	r.departments[dept.ID] = dept
	return nil
}

func (r *fakeDepartmentRepo) GetByID(ctx context.Context, id string) (*domain.Department, error) {
	dept, ok := r.departments[id]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	return dept, nil
}

func (r *fakeDepartmentRepo) ListActive(ctx context.Context) ([]domain.Department, error) {
	var result []domain.Department
	for _, dept := range r.departments {
		if dept.IsActive {
			result = append(result, *dept)
		}
	}
	return result, nil
}

type fakeUserRepo struct {
	users map[string]*domain.User
}

func (r *fakeUserRepo) Create(ctx context.Context, user *domain.User) error {
	if user.ID == "" {
		user.ID = fmt.Sprintf("user-%d", len(r.users)+1)
	}
	r.users[user.ID] = user
	return nil
}

func (r *fakeUserRepo) Update(ctx context.Context, user *domain.User) error {
	r.users[user.ID] = user
	return nil
}

func (r *fakeUserRepo) GetByID(ctx context.Context, id string) (*domain.User, error) {
	user, ok := r.users[id]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	return user, nil
}

func (r *fakeUserRepo) GetByEmail(ctx context.Context, email string) (*domain.User, error) {
	for _, user := range r.users {
		if user.Email == email {
			return user, nil
		}
	}
	return nil, pgx.ErrNoRows
}

func (r *fakeUserRepo) ListByRole(ctx context.Context, role domain.UserRole, limit, offset int) ([]domain.User, error) {
	var result []domain.User
	for _, user := range r.users {
		if user.Role == role {
			result = append(result, *user)
		}
	}
	return result, nil
}

type fakeMessageRepo struct {
	messages map[string]*domain.TicketMessage
	seq      int
}

func (r *fakeMessageRepo) Create(ctx context.Context, msg *domain.TicketMessage) error {
	r.seq++
	msg.ID = fmt.Sprintf("msg-%d", r.seq)
	msg.CreatedAt = time.Now()
	clone := *msg
	r.messages[msg.ID] = &clone
	return nil
}

func (r *fakeMessageRepo) Update(ctx context.Context, msg *domain.TicketMessage) error {
	if _, ok := r.messages[msg.ID]; !ok {
		return pgx.ErrNoRows
	}
	clone := *msg
	r.messages[msg.ID] = &clone
	return nil
}

func (r *fakeMessageRepo) GetByID(ctx context.Context, id string) (*domain.TicketMessage, error) {
	msg, ok := r.messages[id]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	clone := *msg
	return &clone, nil
}

func (r *fakeMessageRepo) ListByTicket(ctx context.Context, ticketID string) ([]domain.TicketMessage, error) {
	var result []domain.TicketMessage
	for _, msg := range r.messages {
		if msg.TicketID == ticketID {
			result = append(result, *msg)
		}
	}
	return result, nil
}

type fakeAttachmentRepo struct{}

func (r *fakeAttachmentRepo) Create(ctx context.Context, att *domain.AttachmentReference) error {
	att.ID = "att-1"
	return nil
}

func (r *fakeAttachmentRepo) ListByMessage(ctx context.Context, messageID string) ([]domain.AttachmentReference, error) {
	return nil, nil
}

type fakeHistoryRepo struct {
	entries []domain.TicketHistory
}

func (r *fakeHistoryRepo) Create(ctx context.Context, history *domain.TicketHistory) error {
	r.entries = append(r.entries, *history)
	return nil
}

func (r *fakeHistoryRepo) ListByTicket(ctx context.Context, ticketID string) ([]domain.TicketHistory, error) {
	var result []domain.TicketHistory
	for _, entry := range r.entries {
		if entry.TicketID == ticketID {
			result = append(result, entry)
		}
	}
	return result, nil
}

type capturingDispatcher struct {
	events []events.Event
}

func (d *capturingDispatcher) Publish(ctx context.Context, event events.Event) error {
	d.events = append(d.events, event)
	return nil
}

func (d *capturingDispatcher) Subscribe(eventType events.EventType, handler events.EventHandler) {}

func fakeUniqueViolation() error {
	return &pgconn.PgError{Code: "23505", Message: "duplicate key value violates unique constraint"}
}

type testEnv struct {
	service    *TicketService
	tickets    *fakeTicketRepo
	users      *fakeUserRepo
	history    *fakeHistoryRepo
	dispatcher *capturingDispatcher
	customer   *domain.User
	agent      *domain.User
	admin      *domain.User
	dept       *domain.Department
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	customer := &domain.User{ID: "cust-1", Name: "Ana Lima", Role: domain.RoleCustomer, Active: true}
	agent := &domain.User{ID: "agent-1", Name: "Bruno Souza", Role: domain.RoleAgent, Active: true}
	admin := &domain.User{ID: "admin-1", Name: "Carla Dias", Role: domain.RoleAdmin, Active: true}
	dept := &domain.Department{ID: "dept-1", Name: "T.I", IsActive: true}

	tickets := newFakeTicketRepo()
	users := &fakeUserRepo{users: map[string]*domain.User{
		customer.ID: customer,
		agent.ID:    agent,
		admin.ID:    admin,
	}}
	history := &fakeHistoryRepo{}
	dispatcher := &capturingDispatcher{}

	svc := NewTicketService(TicketDependencies{
		TicketRepo:     tickets,
		MessageRepo:    &fakeMessageRepo{messages: map[string]*domain.TicketMessage{}},
		AttachmentRepo: &fakeAttachmentRepo{},
		DepartmentRepo: &fakeDepartmentRepo{departments: map[string]*domain.Department{dept.ID: dept}},
		UserRepo:       users,
		HistoryRepo:    history,
		Dispatcher:     dispatcher,
	})

	return &testEnv{
		service:    svc,
		tickets:    tickets,
		users:      users,
		history:    history,
		dispatcher: dispatcher,
		customer:   customer,
		agent:      agent,
		admin:      admin,
		dept:       dept,
	}
}

func (e *testEnv) createTicket(t *testing.T) *domain.Ticket {
	t.Helper()
	ticket, err := e.service.CreateTicket(context.Background(), e.customer, TicketCreateInput{
		DepartmentID: e.dept.ID,
		Subject:      "Computador sem rede",
		Description:  "nao consigo acessar nada desde cedo",
	})
	require.NoError(t, err)
	return ticket
}

func domainCode(t *testing.T, err error) string {
	t.Helper()
	var de *apperrors.DomainError
	require.True(t, errors.As(err, &de), "expected DomainError, got %v", err)
	return de.Code
}

func TestCreateTicket(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	t.Run("Defaults", func(t *testing.T) {
		ticket := env.createTicket(t)
		assert.Equal(t, domain.TicketStatusOpen, ticket.Status)
		assert.Equal(t, domain.TicketPriorityNormal, ticket.Priority)
		require.NotNil(t, ticket.SLAHours)
		assert.Equal(t, 24, *ticket.SLAHours)
		assert.Regexp(t, `^TCK-\d{15}$`, ticket.Number)
		assert.Equal(t, env.customer.ID, ticket.CustomerID)

		require.NotEmpty(t, env.dispatcher.events)
		assert.Equal(t, events.EventTicketCreated, env.dispatcher.events[0].Type)
	})

	t.Run("UrgentSLA", func(t *testing.T) {
		ticket, err := env.service.CreateTicket(ctx, env.customer, TicketCreateInput{
			DepartmentID: env.dept.ID,
			Subject:      "Producao parada",
			Description:  "urgente",
			Priority:     domain.TicketPriorityUrgent,
		})
		require.NoError(t, err)
		assert.Equal(t, 4, *ticket.SLAHours)
	})

	t.Run("UnknownDepartmentIsValidationError", func(t *testing.T) {
		_, err := env.service.CreateTicket(ctx, env.customer, TicketCreateInput{
			DepartmentID: "missing",
			Subject:      "x",
			Description:  "y",
		})
		assert.Equal(t, "VALIDATION_FAILED", domainCode(t, err))
	})

	t.Run("SubjectTooLong", func(t *testing.T) {
		_, err := env.service.CreateTicket(ctx, env.customer, TicketCreateInput{
			DepartmentID: env.dept.ID,
			Subject:      strings.Repeat("a", 201),
			Description:  "y",
		})
		assert.Equal(t, "VALIDATION_FAILED", domainCode(t, err))
	})

	t.Run("CustomerCannotCreateForOthers", func(t *testing.T) {
		_, err := env.service.CreateTicket(ctx, env.customer, TicketCreateInput{
			DepartmentID: env.dept.ID,
			Subject:      "x",
			Description:  "y",
			CustomerID:   "someone-else",
		})
		assert.Equal(t, "FORBIDDEN", domainCode(t, err))
	})

	t.Run("RetriesOnDuplicateNumber", func(t *testing.T) {
		env := newTestEnv(t)
		env.tickets.failNextCreate = fakeUniqueViolation()
		ticket, err := env.service.CreateTicket(ctx, env.customer, TicketCreateInput{
			DepartmentID: env.dept.ID,
			Subject:      "x",
			Description:  "y",
		})
		require.NoError(t, err)
		assert.NotEmpty(t, ticket.ID)
	})

	t.Run("NonUniqueCreateFailureSurfaces", func(t *testing.T) {
		env := newTestEnv(t)
		env.tickets.failNextCreate = errors.New("connection refused")
		_, err := env.service.CreateTicket(ctx, env.customer, TicketCreateInput{
			DepartmentID: env.dept.ID,
			Subject:      "x",
			Description:  "y",
		})
		require.Error(t, err)
	})
}

func TestUpdateStatus(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	t.Run("HappyPath", func(t *testing.T) {
		ticket := env.createTicket(t)
		updated, err := env.service.UpdateStatus(ctx, env.agent, ticket.ID, domain.TicketStatusInProgress)
		require.NoError(t, err)
		assert.Equal(t, domain.TicketStatusInProgress, updated.Status)
		assert.NotEmpty(t, env.history.entries)
	})

	t.Run("InvalidTransition", func(t *testing.T) {
		ticket := env.createTicket(t)
		_, err := env.service.UpdateStatus(ctx, env.agent, ticket.ID, domain.TicketStatusClosed)
		assert.Equal(t, "INVALID_STATUS_TRANSITION", domainCode(t, err))
	})

	t.Run("UnknownStatus", func(t *testing.T) {
		ticket := env.createTicket(t)
		_, err := env.service.UpdateStatus(ctx, env.agent, ticket.ID, domain.TicketStatus("ARCHIVED"))
		assert.Equal(t, "VALIDATION_FAILED", domainCode(t, err))
	})

	t.Run("VersionConflictIs409", func(t *testing.T) {
		ticket := env.createTicket(t)
		env.tickets.conflictNext = true
		_, err := env.service.UpdateStatus(ctx, env.agent, ticket.ID, domain.TicketStatusInProgress)
		require.Error(t, err)
		var de *apperrors.DomainError
		require.True(t, errors.As(err, &de))
		assert.Equal(t, 409, de.HTTPStatus)
	})

	t.Run("OtherCustomerDenied", func(t *testing.T) {
		ticket := env.createTicket(t)
		stranger := &domain.User{ID: "cust-2", Role: domain.RoleCustomer, Active: true}
		_, err := env.service.UpdateStatus(ctx, stranger, ticket.ID, domain.TicketStatusCancelled)
		assert.Equal(t, "FORBIDDEN", domainCode(t, err))
	})

	t.Run("CustomerCanCancelOwn", func(t *testing.T) {
		ticket := env.createTicket(t)
		updated, err := env.service.UpdateStatus(ctx, env.customer, ticket.ID, domain.TicketStatusCancelled)
		require.NoError(t, err)
		assert.Equal(t, domain.TicketStatusCancelled, updated.Status)
	})
}

func TestAssignTicket(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	t.Run("AutoAdvances", func(t *testing.T) {
		ticket := env.createTicket(t)
		updated, err := env.service.AssignTicket(ctx, env.admin, ticket.ID, env.agent.ID)
		require.NoError(t, err)
		assert.Equal(t, domain.TicketStatusInProgress, updated.Status)
		require.NotNil(t, updated.AssignedAgentID)
		assert.Equal(t, env.agent.ID, *updated.AssignedAgentID)

		last := env.dispatcher.events[len(env.dispatcher.events)-1]
		require.Equal(t, events.EventTicketAssigned, last.Type)
		payload, ok := last.Payload.(events.TicketAssignedPayload)
		require.True(t, ok)
		assert.True(t, payload.AutoAdvanced)
	})

	t.Run("CustomerDenied", func(t *testing.T) {
		ticket := env.createTicket(t)
		_, err := env.service.AssignTicket(ctx, env.customer, ticket.ID, env.agent.ID)
		assert.Equal(t, "FORBIDDEN", domainCode(t, err))
	})

	t.Run("UnknownAgent", func(t *testing.T) {
		ticket := env.createTicket(t)
		_, err := env.service.AssignTicket(ctx, env.admin, ticket.ID, "ghost")
		assert.Equal(t, "NOT_FOUND", domainCode(t, err))
	})

	t.Run("CustomerAsAssigneeRejected", func(t *testing.T) {
		ticket := env.createTicket(t)
		_, err := env.service.AssignTicket(ctx, env.admin, ticket.ID, env.customer.ID)
		assert.Equal(t, "VALIDATION_FAILED", domainCode(t, err))
	})
}

func TestRateTicket(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	t.Run("ValidRating", func(t *testing.T) {
		ticket := env.createTicket(t)
		feedback := "otimo atendimento"
		updated, err := env.service.RateTicket(ctx, env.customer, ticket.ID, 5, &feedback)
		require.NoError(t, err)
		require.NotNil(t, updated.CustomerRating)
		assert.Equal(t, 5, *updated.CustomerRating)
	})

	t.Run("OutOfRangeIsSilentNoOp", func(t *testing.T) {
		ticket := env.createTicket(t)
		before := len(env.dispatcher.events)
		updated, err := env.service.RateTicket(ctx, env.customer, ticket.ID, 9, nil)
		require.NoError(t, err)
		assert.Nil(t, updated.CustomerRating)
		assert.Len(t, env.dispatcher.events, before, "no event for ignored rating")

		stored, err := env.tickets.GetByID(ctx, ticket.ID)
		require.NoError(t, err)
		assert.Nil(t, stored.CustomerRating)
	})

	t.Run("OnlyRequesterMayRate", func(t *testing.T) {
		ticket := env.createTicket(t)
		_, err := env.service.RateTicket(ctx, env.agent, ticket.ID, 5, nil)
		assert.Equal(t, "FORBIDDEN", domainCode(t, err))
	})
}

func TestAddMessage(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	t.Run("CustomerCannotPostInternal", func(t *testing.T) {
		ticket := env.createTicket(t)
		_, err := env.service.AddMessage(ctx, env.customer, ticket.ID, "nota interna", true, nil)
		assert.Equal(t, "FORBIDDEN", domainCode(t, err))
	})

	t.Run("StaffPublicReplyStampsFirstResponse", func(t *testing.T) {
		ticket := env.createTicket(t)
		_, err := env.service.AddMessage(ctx, env.agent, ticket.ID, "estamos verificando", false, nil)
		require.NoError(t, err)

		stored, err := env.tickets.GetByID(ctx, ticket.ID)
		require.NoError(t, err)
		assert.NotNil(t, stored.FirstResponseAt)
	})

	t.Run("InternalNoteDoesNotStampFirstResponse", func(t *testing.T) {
		ticket := env.createTicket(t)
		_, err := env.service.AddMessage(ctx, env.agent, ticket.ID, "nota interna", true, nil)
		require.NoError(t, err)

		stored, err := env.tickets.GetByID(ctx, ticket.ID)
		require.NoError(t, err)
		assert.Nil(t, stored.FirstResponseAt)
	})

	t.Run("CustomerMessageDoesNotStampFirstResponse", func(t *testing.T) {
		ticket := env.createTicket(t)
		_, err := env.service.AddMessage(ctx, env.customer, ticket.ID, "alguma novidade?", false, nil)
		require.NoError(t, err)

		stored, err := env.tickets.GetByID(ctx, ticket.ID)
		require.NoError(t, err)
		assert.Nil(t, stored.FirstResponseAt)
	})
}

func TestMessageVisibility(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	ticket := env.createTicket(t)

	_, err := env.service.AddMessage(ctx, env.agent, ticket.ID, "resposta publica", false, nil)
	require.NoError(t, err)
	_, err = env.service.AddMessage(ctx, env.agent, ticket.ID, "nota interna", true, nil)
	require.NoError(t, err)

	_, staffMsgs, err := env.service.GetTicket(ctx, env.agent, ticket.ID)
	require.NoError(t, err)
	assert.Len(t, staffMsgs, 2)

	_, customerMsgs, err := env.service.GetTicket(ctx, env.customer, ticket.ID)
	require.NoError(t, err)
	require.Len(t, customerMsgs, 1)
	assert.False(t, customerMsgs[0].IsInternal)
}

func TestDeleteTicket(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	t.Run("AdminOnly", func(t *testing.T) {
		ticket := env.createTicket(t)
		err := env.service.DeleteTicket(ctx, env.agent, ticket.ID)
		assert.Equal(t, "FORBIDDEN", domainCode(t, err))
	})

	t.Run("SoftDeleteHidesTicket", func(t *testing.T) {
		ticket := env.createTicket(t)
		require.NoError(t, env.service.DeleteTicket(ctx, env.admin, ticket.ID))

		_, _, err := env.service.GetTicket(ctx, env.admin, ticket.ID)
		assert.Equal(t, "NOT_FOUND", domainCode(t, err))
	})
}

func TestListTickets_CustomerScoped(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	env.createTicket(t)
	env.createTicket(t)

	other := &domain.User{ID: "cust-2", Role: domain.RoleCustomer, Active: true}
	env.users.users[other.ID] = other

	mine, total, err := env.service.ListTickets(ctx, env.customer, TicketListInput{})
	require.NoError(t, err)
	assert.Len(t, mine, 2)
	assert.Equal(t, 2, total)

	theirs, total, err := env.service.ListTickets(ctx, other, TicketListInput{})
	require.NoError(t, err)
	assert.Empty(t, theirs)
	assert.Zero(t, total)
}

func TestGetTicketByNumber(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	ticket := env.createTicket(t)

	found, _, err := env.service.GetTicketByNumber(ctx, env.agent, ticket.Number)
	require.NoError(t, err)
	assert.Equal(t, ticket.ID, found.ID)

	_, _, err = env.service.GetTicketByNumber(ctx, env.agent, "TCK-000000000000000")
	assert.Equal(t, "NOT_FOUND", domainCode(t, err))
}

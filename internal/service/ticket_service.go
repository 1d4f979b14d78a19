package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"github.com/spec-kit/commerce-support/internal/access"
	"github.com/spec-kit/commerce-support/internal/config"
	"github.com/spec-kit/commerce-support/internal/domain"
	"github.com/spec-kit/commerce-support/internal/events"
	"github.com/spec-kit/commerce-support/internal/ratelimit"
	"github.com/spec-kit/commerce-support/internal/repository"
	"github.com/spec-kit/commerce-support/pkg/apperrors"
)

// TicketService is the ticket state engine: it owns lifecycle
// transitions, derived rules, and the events they emit. Mutations are
// read-then-write with last-write-wins at the persistence layer; there
// is deliberately no cross-request locking.
type TicketService struct {
	tickets    repository.TicketRepository
	orders     repository.OrderRepository
	users      repository.UserRepository
	gate       *access.Gate
	limiter    ratelimit.Limiter
	limits     config.RateLimitConfig
	staleAfter time.Duration
	dispatcher events.Dispatcher
	logger     *zap.Logger
	now        func() time.Time
}

// TicketDependencies bundles collaborators for the ticket service.
type TicketDependencies struct {
	TicketRepo repository.TicketRepository
	OrderRepo  repository.OrderRepository
	UserRepo   repository.UserRepository
	Gate       *access.Gate
	Limiter    ratelimit.Limiter
	Limits     config.RateLimitConfig
	StaleAfter time.Duration
	Dispatcher events.Dispatcher
	Logger     *zap.Logger
	Now        func() time.Time
}

// TicketCreateInput describes ticket creation payload.
type TicketCreateInput struct {
	OrderID string
	Subject string
	Message string
}

// TicketAdminFilter describes admin listing and search filters.
type TicketAdminFilter struct {
	UserID          *string
	AssignedStaffID *string
	Statuses        []domain.TicketStatus
	Priorities      []domain.TicketPriority
	SearchTerm      *string
	CreatedFrom     *time.Time
	CreatedTo       *time.Time
	Limit           int
	Offset          int
}

// NewTicketService constructs the service.
func NewTicketService(deps TicketDependencies) *TicketService {
	svc := &TicketService{
		tickets:    deps.TicketRepo,
		orders:     deps.OrderRepo,
		users:      deps.UserRepo,
		gate:       deps.Gate,
		limiter:    deps.Limiter,
		limits:     deps.Limits,
		staleAfter: deps.StaleAfter,
		dispatcher: deps.Dispatcher,
		logger:     deps.Logger,
		now:        deps.Now,
	}
	if svc.gate == nil {
		svc.gate = access.NewGate()
	}
	if svc.staleAfter <= 0 {
		svc.staleAfter = 24 * time.Hour
	}
	if svc.logger == nil {
		svc.logger = zap.NewNop()
	}
	if svc.now == nil {
		svc.now = time.Now
	}
	return svc
}

// CreateTicket opens a ticket against one of the actor's orders.
func (s *TicketService) CreateTicket(ctx context.Context, actor *domain.User, input TicketCreateInput) (*domain.Ticket, error) {
	if actor == nil {
		return nil, apperrors.NewUnauthorized("actor required")
	}
	if err := s.checkLimit(ctx, "rl:tickets:"+actor.ID, s.limits.TicketsPerDay, 24*time.Hour,
		"ticket creation limit reached"); err != nil {
		return nil, err
	}

	order, err := s.orders.GetByID(ctx, input.OrderID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.NewNotFound("order", map[string]any{"order_id": input.OrderID})
		}
		return nil, apperrors.MapError(err)
	}
	if order.UserID != actor.ID {
		// An order belonging to someone else is indistinguishable from
		// a missing one; do not leak its existence.
		return nil, apperrors.NewNotFound("order", map[string]any{"order_id": input.OrderID})
	}

	if existing, err := s.tickets.GetByOrderID(ctx, input.OrderID); err == nil && existing != nil {
		return nil, apperrors.NewConflict("ticket already exists for order", map[string]any{
			"order_id":  input.OrderID,
			"ticket_id": existing.ID,
		})
	} else if err != nil && !errors.Is(err, pgx.ErrNoRows) {
		return nil, apperrors.MapError(err)
	}

	senderID := actor.ID
	ticket := &domain.Ticket{
		OrderID:  input.OrderID,
		UserID:   actor.ID,
		Subject:  strings.TrimSpace(input.Subject),
		Status:   domain.TicketStatusOpen,
		Priority: domain.TicketPriorityMedium,
		Messages: []domain.TicketMessage{{
			SenderID:     &senderID,
			Content:      strings.TrimSpace(input.Message),
			IsAdminReply: actor.IsAdmin,
		}},
	}
	applyLifecycleRules(ticket, s.now())

	if err := s.tickets.Create(ctx, ticket); err != nil {
		return nil, apperrors.MapError(err)
	}
	s.publishEvent(ctx, events.Event{
		Type:   events.EventTicketCreated,
		Ticket: ticket,
		Actor:  actorRef(actor),
	})
	return ticket, nil
}

// GetTicket fetches a ticket, enforcing view access.
func (s *TicketService) GetTicket(ctx context.Context, actor *domain.User, ticketID string) (*domain.Ticket, error) {
	ticket, err := s.loadTicket(ctx, ticketID)
	if err != nil {
		return nil, err
	}
	if !s.gate.CanView(ticket, actor) {
		return nil, apperrors.NewForbidden("not allowed to view this ticket")
	}
	return ticket, nil
}

// ListUserTickets returns the actor's own tickets.
func (s *TicketService) ListUserTickets(ctx context.Context, actor *domain.User, limit, offset int) ([]domain.Ticket, error) {
	if actor == nil {
		return nil, apperrors.NewUnauthorized("actor required")
	}
	userID := actor.ID
	tickets, err := s.tickets.ListWithFilter(ctx, repository.TicketFilter{
		UserID: &userID,
		Limit:  limit,
		Offset: offset,
	})
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	return tickets, nil
}

// ListAllTickets returns tickets matching the filter. Admin only.
func (s *TicketService) ListAllTickets(ctx context.Context, actor *domain.User, filter TicketAdminFilter) ([]domain.Ticket, error) {
	if !s.gate.CanSetStatus(actor) {
		return nil, apperrors.NewForbidden("admin required")
	}
	tickets, err := s.tickets.ListWithFilter(ctx, repository.TicketFilter{
		UserID:          filter.UserID,
		AssignedStaffID: filter.AssignedStaffID,
		Statuses:        filter.Statuses,
		Priorities:      filter.Priorities,
		SearchTerm:      filter.SearchTerm,
		CreatedFrom:     filter.CreatedFrom,
		CreatedTo:       filter.CreatedTo,
		Limit:           filter.Limit,
		Offset:          filter.Offset,
	})
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	return tickets, nil
}

// AppendMessage adds a message to the thread. A message on a closed
// ticket reopens it (closedAt stays as the record of the last closure).
func (s *TicketService) AppendMessage(ctx context.Context, actor *domain.User, ticketID, content string) (*domain.Ticket, *domain.TicketMessage, error) {
	if actor == nil {
		return nil, nil, apperrors.NewUnauthorized("actor required")
	}
	content = strings.TrimSpace(content)
	if content == "" {
		return nil, nil, apperrors.NewValidationError("message content required", nil)
	}

	ticket, err := s.loadTicket(ctx, ticketID)
	if err != nil {
		return nil, nil, err
	}
	if !s.gate.CanMessage(ticket, actor) {
		return nil, nil, apperrors.NewForbidden("not allowed to message this ticket")
	}
	if err := s.checkLimit(ctx, "rl:messages:"+actor.ID, s.limits.MessagesPerWindow, s.limits.MessageWindow(),
		"message limit reached"); err != nil {
		return nil, nil, err
	}

	reopened := false
	if ticket.Status == domain.TicketStatusClosed {
		ticket.Status = domain.TicketStatusInProgress
		reopened = true
	}

	senderID := actor.ID
	ticket.Messages = append(ticket.Messages, domain.TicketMessage{
		SenderID:     &senderID,
		Content:      content,
		IsAdminReply: actor.IsAdmin,
	})
	oldStatus := ticket.Status
	autoClosed := applyLifecycleRules(ticket, s.now())

	if err := s.tickets.Update(ctx, ticket); err != nil {
		return nil, nil, apperrors.MapError(err)
	}
	msg := &ticket.Messages[len(ticket.Messages)-1]

	s.publishEvent(ctx, events.Event{
		Type:   events.EventTicketMessageAdded,
		Ticket: ticket,
		Actor:  actorRef(actor),
		Payload: events.TicketMessageAddedPayload{
			MessageID:    msg.ID,
			SenderID:     msg.SenderID,
			IsAdminReply: msg.IsAdminReply,
			BodyPreview:  stringPreview(msg.Content, 120),
			Reopened:     reopened,
		},
	})
	if autoClosed {
		s.publishEvent(ctx, events.Event{
			Type:   events.EventTicketStatusChanged,
			Ticket: ticket,
			Actor:  actorRef(actor),
			Payload: events.TicketStatusChangedPayload{
				OldStatus: oldStatus,
				NewStatus: ticket.Status,
			},
		})
	}
	return ticket, msg, nil
}

// SetStatus transitions a ticket to newStatus and optionally assigns
// staff. Admin only.
func (s *TicketService) SetStatus(ctx context.Context, actor *domain.User, ticketID string, newStatus domain.TicketStatus, assignedStaffID *string) (*domain.Ticket, error) {
	if !s.gate.CanSetStatus(actor) {
		return nil, apperrors.NewForbidden("admin required to set status")
	}
	if !domain.ValidTicketStatus(newStatus) {
		return nil, apperrors.NewValidationError("invalid ticket status", map[string]any{"status": newStatus})
	}

	ticket, err := s.loadTicket(ctx, ticketID)
	if err != nil {
		return nil, err
	}

	staffChanged := false
	if assignedStaffID != nil {
		staff, err := s.users.GetByID(ctx, *assignedStaffID)
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return nil, apperrors.NewNotFound("staff user", map[string]any{"user_id": *assignedStaffID})
			}
			return nil, apperrors.MapError(err)
		}
		if ticket.AssignedStaffID == nil || *ticket.AssignedStaffID != staff.ID {
			ticket.AssignedStaffID = &staff.ID
			staffChanged = true
		}
	}

	oldStatus := ticket.Status
	ticket.Status = newStatus
	if newStatus == domain.TicketStatusClosed && ticket.ClosedAt == nil {
		closedAt := s.now()
		ticket.ClosedAt = &closedAt
	}
	applyLifecycleRules(ticket, s.now())

	if err := s.tickets.Update(ctx, ticket); err != nil {
		return nil, apperrors.MapError(err)
	}

	s.publishEvent(ctx, events.Event{
		Type:   events.EventTicketStatusChanged,
		Ticket: ticket,
		Actor:  actorRef(actor),
		Payload: events.TicketStatusChangedPayload{
			OldStatus: oldStatus,
			NewStatus: ticket.Status,
		},
	})
	if staffChanged {
		s.publishEvent(ctx, events.Event{
			Type:   events.EventTicketAssigned,
			Ticket: ticket,
			Actor:  actorRef(actor),
			Payload: events.TicketAssignedPayload{
				AssignedStaffID: ticket.AssignedStaffID,
			},
		})
	}
	return ticket, nil
}

// Escalate bumps a stale open ticket: priority HIGH, status
// IN_PROGRESS, auto-assignment to a senior support holder, and a system
// note on the thread. A ticket that is not both OPEN and older than the
// threshold is left untouched; that is a no-op, not an error.
func (s *TicketService) Escalate(ctx context.Context, ticketID string) (*domain.Ticket, bool, error) {
	ticket, err := s.loadTicket(ctx, ticketID)
	if err != nil {
		return nil, false, err
	}
	if ticket.Status != domain.TicketStatusOpen || s.now().Sub(ticket.CreatedAt) <= s.staleAfter {
		return ticket, false, nil
	}

	oldPriority := ticket.Priority
	if ticket.Priority != domain.TicketPriorityUrgent {
		ticket.Priority = domain.TicketPriorityHigh
	}
	ticket.Status = domain.TicketStatusInProgress

	assigned := false
	if ticket.AssignedStaffID == nil {
		senior, err := s.users.FirstActiveWithSupportRole(ctx, domain.SeniorSupportRole)
		switch {
		case err == nil:
			ticket.AssignedStaffID = &senior.ID
			assigned = true
		case errors.Is(err, pgx.ErrNoRows):
			// nobody to assign; escalate unassigned
		default:
			return nil, false, apperrors.MapError(err)
		}
	}

	note := fmt.Sprintf("Ticket auto-escalated after %s without a response.", s.staleAfter)
	ticket.Messages = append(ticket.Messages, domain.TicketMessage{
		SenderID: nil,
		Content:  note,
		IsSystem: true,
	})
	applyLifecycleRules(ticket, s.now())

	if err := s.tickets.Update(ctx, ticket); err != nil {
		return nil, false, apperrors.MapError(err)
	}

	s.publishEvent(ctx, events.Event{
		Type:   events.EventTicketEscalated,
		Ticket: ticket,
		Actor:  events.Actor{},
		Payload: events.TicketEscalatedPayload{
			OldPriority: oldPriority,
			NewPriority: ticket.Priority,
		},
	})
	if assigned {
		s.publishEvent(ctx, events.Event{
			Type:   events.EventTicketAssigned,
			Ticket: ticket,
			Actor:  events.Actor{},
			Payload: events.TicketAssignedPayload{
				AssignedStaffID: ticket.AssignedStaffID,
			},
		})
	}
	return ticket, true, nil
}

// EscalateStale sweeps open tickets older than the threshold. Used by
// the background worker; errors on individual tickets are logged, the
// sweep continues.
func (s *TicketService) EscalateStale(ctx context.Context) (int, error) {
	cutoff := s.now().Add(-s.staleAfter)
	stale, err := s.tickets.ListOpenOlderThan(ctx, cutoff)
	if err != nil {
		return 0, apperrors.MapError(err)
	}
	escalated := 0
	for i := range stale {
		if _, changed, err := s.Escalate(ctx, stale[i].ID); err != nil {
			s.logger.Error("escalation failed",
				zap.String("ticket_id", stale[i].ID),
				zap.Error(err))
		} else if changed {
			escalated++
		}
	}
	return escalated, nil
}

// Analytics returns ticket distribution and resolution stats. Admin only.
func (s *TicketService) Analytics(ctx context.Context, actor *domain.User) (*repository.TicketAnalytics, error) {
	if !s.gate.CanSetStatus(actor) {
		return nil, apperrors.NewForbidden("admin required")
	}
	stats, err := s.tickets.Analytics(ctx)
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	return stats, nil
}

func (s *TicketService) loadTicket(ctx context.Context, ticketID string) (*domain.Ticket, error) {
	ticket, err := s.tickets.GetByID(ctx, ticketID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.NewNotFound("ticket", map[string]any{"ticket_id": ticketID})
		}
		return nil, apperrors.MapError(err)
	}
	return ticket, nil
}

func (s *TicketService) checkLimit(ctx context.Context, key string, limit int, window time.Duration, message string) error {
	if s.limiter == nil || limit <= 0 {
		return nil
	}
	allowed, err := s.limiter.Allow(ctx, key, limit, window)
	if err != nil {
		// A broken limiter must not take ticketing down with it.
		s.logger.Warn("rate limiter unavailable", zap.String("key", key), zap.Error(err))
		return nil
	}
	if !allowed {
		return apperrors.NewRateLimited(message, int(window.Seconds()))
	}
	return nil
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

func actorRef(actor *domain.User) events.Actor {
	if actor == nil {
		return events.Actor{}
	}
	id := actor.ID
	return events.Actor{UserID: &id, IsAdmin: actor.IsAdmin}
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

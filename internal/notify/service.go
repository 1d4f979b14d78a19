package notify

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/spec-kit/commerce-support/internal/domain"
	"github.com/spec-kit/commerce-support/internal/events"
	"github.com/spec-kit/commerce-support/internal/realtime"
)

// Channel event names mirrored to connected clients.
const (
	PushEventNewTicket     = "new_ticket"
	PushEventTicketUpdated = "ticket_updated"
)

// Service bridges domain events to the notification dispatcher.
type Service struct {
	dispatcher *Dispatcher
	registry   *realtime.Registry
	logger     *zap.Logger
}

// NewService creates the service.
func NewService(dispatcher *Dispatcher, registry *realtime.Registry, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{dispatcher: dispatcher, registry: registry, logger: logger}
}

// RegisterHandlers subscribes to ticket lifecycle events.
func (s *Service) RegisterHandlers(bus events.Dispatcher) {
	if bus == nil {
		return
	}
	bus.Subscribe(events.EventTicketCreated, s.handleTicketCreated)
	bus.Subscribe(events.EventTicketStatusChanged, s.handleTicketStatusChanged)
	bus.Subscribe(events.EventTicketAssigned, s.handleTicketAssigned)
	bus.Subscribe(events.EventTicketEscalated, s.handleTicketEscalated)
	bus.Subscribe(events.EventTicketMessageAdded, s.handleTicketMessageAdded)
}

func (s *Service) handleTicketCreated(ctx context.Context, event events.Event) error {
	ticket := event.Ticket
	if ticket == nil {
		return nil
	}
	ticketID := ticket.ID
	err := s.dispatcher.Dispatch(ctx, Event{
		TargetUserID: ticket.UserID,
		TicketID:     &ticketID,
		Type:         domain.NotificationTicketCreated,
		Message:      RenderMessage(domain.NotificationTicketCreated, ticket.Subject),
	})

	if s.registry != nil {
		if berr := s.registry.BroadcastToRole(ctx, realtime.RoleAdmin, PushEventNewTicket, ticketView(ticket)); berr != nil {
			s.logger.Warn("admin new_ticket broadcast failed", zap.String("ticket_id", ticketID), zap.Error(berr))
		}
	}
	return err
}

func (s *Service) handleTicketStatusChanged(ctx context.Context, event events.Event) error {
	ticket := event.Ticket
	if ticket == nil {
		return nil
	}
	notifType := domain.NotificationTicketUpdated
	if ticket.Status == domain.TicketStatusClosed {
		notifType = domain.NotificationTicketClosed
	}
	s.dispatcher.FanOutTicketUpdate(ctx, ticket, notifType, RenderMessage(notifType, ticket.Subject))
	s.pushTicketUpdated(ticket)
	return nil
}

func (s *Service) handleTicketAssigned(ctx context.Context, event events.Event) error {
	ticket := event.Ticket
	if ticket == nil || ticket.AssignedStaffID == nil {
		return nil
	}
	ticketID := ticket.ID
	return s.dispatcher.Dispatch(ctx, Event{
		TargetUserID: *ticket.AssignedStaffID,
		TicketID:     &ticketID,
		Type:         domain.NotificationTicketAssigned,
		Message:      RenderMessage(domain.NotificationTicketAssigned, ticket.Subject),
	})
}

func (s *Service) handleTicketEscalated(ctx context.Context, event events.Event) error {
	ticket := event.Ticket
	if ticket == nil {
		return nil
	}
	s.dispatcher.FanOutTicketUpdate(ctx, ticket, domain.NotificationTicketEscalated,
		RenderMessage(domain.NotificationTicketEscalated, ticket.Subject))
	s.pushTicketUpdated(ticket)
	return nil
}

func (s *Service) handleTicketMessageAdded(ctx context.Context, event events.Event) error {
	ticket := event.Ticket
	if ticket == nil {
		return nil
	}
	s.dispatcher.FanOutTicketUpdate(ctx, ticket, domain.NotificationMessageReceived,
		RenderMessage(domain.NotificationMessageReceived, ticket.Subject))
	s.pushTicketUpdated(ticket)
	return nil
}

// pushTicketUpdated mirrors the mutated ticket to the owner's live
// connection so open clients refresh without polling.
func (s *Service) pushTicketUpdated(ticket *domain.Ticket) {
	if s.registry == nil {
		return
	}
	s.registry.Send(ticket.UserID, PushEventTicketUpdated, ticketView(ticket))
}

type ticketSummary struct {
	ID              string                `json:"id"`
	OrderID         string                `json:"order_id"`
	UserID          string                `json:"user_id"`
	Subject         string                `json:"subject"`
	Status          domain.TicketStatus   `json:"status"`
	Priority        domain.TicketPriority `json:"priority"`
	AssignedStaffID *string               `json:"assigned_staff_id,omitempty"`
	UpdatedAt       time.Time             `json:"updated_at"`
}

func ticketView(t *domain.Ticket) ticketSummary {
	return ticketSummary{
		ID:              t.ID,
		OrderID:         t.OrderID,
		UserID:          t.UserID,
		Subject:         t.Subject,
		Status:          t.Status,
		Priority:        t.Priority,
		AssignedStaffID: t.AssignedStaffID,
		UpdatedAt:       t.UpdatedAt,
	}
}

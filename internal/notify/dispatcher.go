package notify

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/spec-kit/commerce-support/internal/domain"
	"github.com/spec-kit/commerce-support/internal/realtime"
	"github.com/spec-kit/commerce-support/internal/repository"
)

// PushEventNewNotification is the channel event name for pushed
// notifications.
const PushEventNewNotification = "new_notification"

// Event describes one notification to dispatch to one actor.
type Event struct {
	TargetUserID string
	TicketID     *string
	Type         domain.NotificationType
	Message      string
}

// notificationPayload is the wire shape pushed over the registry.
type notificationPayload struct {
	ID        string                  `json:"id"`
	UserID    string                  `json:"user_id"`
	TicketID  *string                 `json:"ticket_id,omitempty"`
	Type      domain.NotificationType `json:"type"`
	Message   string                  `json:"message"`
	IsRead    bool                    `json:"is_read"`
	CreatedAt time.Time               `json:"created_at"`
}

// Dispatcher turns ticket lifecycle events into a persisted
// notification plus two best-effort deliveries: push over the live
// connection registry and email.
type Dispatcher struct {
	notifications repository.NotificationRepository
	users         repository.UserRepository
	registry      *realtime.Registry
	mailer        Mailer
	logger        *zap.Logger
	emailTimeout  time.Duration
}

// NewDispatcher constructs the dispatcher.
func NewDispatcher(
	notifications repository.NotificationRepository,
	users repository.UserRepository,
	registry *realtime.Registry,
	mailer Mailer,
	logger *zap.Logger,
	emailTimeout time.Duration,
) *Dispatcher {
	if logger == nil {
		logger = zap.NewNop()
	}
	if emailTimeout <= 0 {
		emailTimeout = 10 * time.Second
	}
	return &Dispatcher{
		notifications: notifications,
		users:         users,
		registry:      registry,
		mailer:        mailer,
		logger:        logger,
		emailTimeout:  emailTimeout,
	}
}

// Dispatch persists the notification record, then attempts push and
// email delivery. Persistence failure is returned (and logged by the
// caller's event loop); it never rolls back the triggering mutation.
// Push and email failures are logged and swallowed.
func (d *Dispatcher) Dispatch(ctx context.Context, evt Event) error {
	record := &domain.Notification{
		UserID:   evt.TargetUserID,
		TicketID: evt.TicketID,
		Type:     evt.Type,
		Message:  evt.Message,
	}
	if err := d.notifications.Create(ctx, record); err != nil {
		d.logger.Error("notification persist failed",
			zap.String("user_id", evt.TargetUserID),
			zap.String("type", string(evt.Type)),
			zap.Error(err))
		return err
	}

	if d.registry != nil {
		d.registry.Send(evt.TargetUserID, PushEventNewNotification, payloadFor(record))
	}

	d.sendEmail(ctx, record)
	return nil
}

// FanOutTicketUpdate notifies the ticket owner, the assigned staff
// member if set, and broadcasts to admins. The three deliveries are
// independent; a failure in one never blocks the others.
func (d *Dispatcher) FanOutTicketUpdate(ctx context.Context, ticket *domain.Ticket, t domain.NotificationType, message string) {
	ticketID := ticket.ID

	if err := d.Dispatch(ctx, Event{
		TargetUserID: ticket.UserID,
		TicketID:     &ticketID,
		Type:         t,
		Message:      message,
	}); err != nil {
		d.logger.Warn("owner notification failed", zap.String("ticket_id", ticketID), zap.Error(err))
	}

	if ticket.AssignedStaffID != nil && *ticket.AssignedStaffID != ticket.UserID {
		if err := d.Dispatch(ctx, Event{
			TargetUserID: *ticket.AssignedStaffID,
			TicketID:     &ticketID,
			Type:         t,
			Message:      message,
		}); err != nil {
			d.logger.Warn("staff notification failed", zap.String("ticket_id", ticketID), zap.Error(err))
		}
	}

	if d.registry != nil {
		payload := notificationPayload{
			TicketID: &ticketID,
			Type:     t,
			Message:  message,
		}
		if err := d.registry.BroadcastToRole(ctx, realtime.RoleAdmin, PushEventNewNotification, payload); err != nil {
			d.logger.Warn("admin broadcast failed", zap.String("ticket_id", ticketID), zap.Error(err))
		}
	}
}

// sendEmail attempts out-of-band delivery under a bounded timeout. The
// source never blocks the triggering operation on email; neither do we.
func (d *Dispatcher) sendEmail(ctx context.Context, record *domain.Notification) {
	if d.mailer == nil {
		return
	}
	user, err := d.users.GetByID(ctx, record.UserID)
	if err != nil {
		d.logger.Warn("email recipient lookup failed",
			zap.String("user_id", record.UserID),
			zap.Error(err))
		return
	}

	done := make(chan error, 1)
	go func() {
		done <- d.mailer.Send(user.Email, RenderSubject(record.Type), record.Message)
	}()

	select {
	case err := <-done:
		if err != nil {
			d.logger.Warn("email delivery failed",
				zap.String("user_id", record.UserID),
				zap.String("type", string(record.Type)),
				zap.Error(err))
		}
	case <-time.After(d.emailTimeout):
		d.logger.Warn("email delivery timed out",
			zap.String("user_id", record.UserID),
			zap.Duration("timeout", d.emailTimeout))
	}
}

func payloadFor(n *domain.Notification) notificationPayload {
	return notificationPayload{
		ID:        n.ID,
		UserID:    n.UserID,
		TicketID:  n.TicketID,
		Type:      n.Type,
		Message:   n.Message,
		IsRead:    n.IsRead,
		CreatedAt: n.CreatedAt,
	}
}

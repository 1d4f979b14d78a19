package domain

import "time"

// NotificationType enumerates dispatchable notification kinds.
type NotificationType string

const (
	NotificationTicketCreated   NotificationType = "TICKET_CREATED"
	NotificationTicketUpdated   NotificationType = "TICKET_UPDATED"
	NotificationTicketAssigned  NotificationType = "TICKET_ASSIGNED"
	NotificationTicketEscalated NotificationType = "TICKET_ESCALATED"
	NotificationTicketClosed    NotificationType = "TICKET_CLOSED"
	NotificationMessageReceived NotificationType = "MESSAGE_RECEIVED"
)

// Notification is the persisted in-app record created once per dispatch
// event. Only IsRead mutates after creation, and only by the owner.
type Notification struct {
	ID        string
	UserID    string
	TicketID  *string
	Type      NotificationType
	Message   string
	IsRead    bool
	CreatedAt time.Time
}

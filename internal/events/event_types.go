package events

import (
	"time"

	"github.com/spec-kit/commerce-support/internal/domain"
)

// EventType enumerates supported event identifiers.
type EventType string

const (
	EventTicketCreated       EventType = "ticket_created"
	EventTicketStatusChanged EventType = "ticket_status_changed"
	EventTicketAssigned      EventType = "ticket_assigned"
	EventTicketEscalated     EventType = "ticket_escalated"
	EventTicketMessageAdded  EventType = "ticket_message_added"
)

// Actor encapsulates actor metadata for an event. UserID is nil for
// system-triggered events such as the escalation sweep.
type Actor struct {
	UserID  *string `json:"user_id,omitempty"`
	IsAdmin bool    `json:"is_admin,omitempty"`
}

// Event represents a domain event emitted by the ticket state engine.
// The Ticket snapshot carries the post-mutation state so subscribers
// never re-read the entity.
type Event struct {
	ID        string         `json:"id"`
	Type      EventType      `json:"type"`
	Ticket    *domain.Ticket `json:"ticket"`
	Actor     Actor          `json:"actor"`
	Timestamp time.Time      `json:"timestamp"`
	Payload   interface{}    `json:"payload,omitempty"`
}

// TicketStatusChangedPayload payload.
type TicketStatusChangedPayload struct {
	OldStatus domain.TicketStatus `json:"old_status"`
	NewStatus domain.TicketStatus `json:"new_status"`
}

// TicketAssignedPayload payload.
type TicketAssignedPayload struct {
	AssignedStaffID *string `json:"assigned_staff_id,omitempty"`
}

// TicketEscalatedPayload payload.
type TicketEscalatedPayload struct {
	OldPriority domain.TicketPriority `json:"old_priority"`
	NewPriority domain.TicketPriority `json:"new_priority"`
}

// TicketMessageAddedPayload payload.
type TicketMessageAddedPayload struct {
	MessageID    string `json:"message_id"`
	SenderID     *string `json:"sender_id,omitempty"`
	IsAdminReply bool   `json:"is_admin_reply"`
	BodyPreview  string `json:"body_preview"`
	Reopened     bool   `json:"reopened"`
}

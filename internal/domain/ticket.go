package domain

import "time"

// TicketStatus enumerates lifecycle states for support tickets.
type TicketStatus string

const (
	TicketStatusOpen       TicketStatus = "OPEN"
	TicketStatusInProgress TicketStatus = "IN_PROGRESS"
	TicketStatusResolved   TicketStatus = "RESOLVED"
	TicketStatusClosed     TicketStatus = "CLOSED"
)

// ValidTicketStatus reports whether s is one of the known statuses.
func ValidTicketStatus(s TicketStatus) bool {
	switch s {
	case TicketStatusOpen, TicketStatusInProgress, TicketStatusResolved, TicketStatusClosed:
		return true
	}
	return false
}

// TicketPriority enumerates urgency. Once URGENT is set no derived rule
// ever downgrades it.
type TicketPriority string

const (
	TicketPriorityLow    TicketPriority = "LOW"
	TicketPriorityMedium TicketPriority = "MEDIUM"
	TicketPriorityHigh   TicketPriority = "HIGH"
	TicketPriorityUrgent TicketPriority = "URGENT"
)

// Ticket is the aggregate for support requests. A ticket belongs to
// exactly one order and one user; messages load with the aggregate and
// are append-only.
type Ticket struct {
	ID              string
	OrderID         string
	UserID          string
	Subject         string
	Status          TicketStatus
	Priority        TicketPriority
	AssignedStaffID *string
	Messages        []TicketMessage
	CreatedAt       time.Time
	UpdatedAt       time.Time
	ClosedAt        *time.Time
}

// TicketMessage is one entry in a ticket thread. SenderID is nil for
// system-generated entries such as escalation notes.
type TicketMessage struct {
	ID           string
	TicketID     string
	SenderID     *string
	Content      string
	IsAdminReply bool
	IsSystem     bool
	CreatedAt    time.Time
}

package service

import (
	"strings"
	"time"

	"github.com/spec-kit/commerce-support/internal/domain"
)

// Derived lifecycle rules. These run immediately before every persist
// of a mutated ticket; ordering matters only in that both inspect the
// full message list after the mutation has been applied in memory.

var urgentKeywords = []string{"urgent", "emergency"}

// ApplyUrgentKeywordEscalation promotes priority to URGENT when any
// message contains an urgent keyword, case-insensitively. Priority is
// never lowered by this rule. Returns true when the ticket changed.
func ApplyUrgentKeywordEscalation(ticket *domain.Ticket) bool {
	if ticket.Priority == domain.TicketPriorityUrgent {
		return false
	}
	for _, msg := range ticket.Messages {
		content := strings.ToLower(msg.Content)
		for _, keyword := range urgentKeywords {
			if strings.Contains(content, keyword) {
				ticket.Priority = domain.TicketPriorityUrgent
				return true
			}
		}
	}
	return false
}

// ApplyAutoClose closes a ticket whose every message is staff-authored.
// A non-empty all-admin thread means the conversation is waiting on
// nobody; the business treats that as an implicit closing signal.
// ClosedAt is set exactly once per closure. Returns true when the
// ticket changed.
func ApplyAutoClose(ticket *domain.Ticket, now time.Time) bool {
	if ticket.Status == domain.TicketStatusClosed || len(ticket.Messages) == 0 {
		return false
	}
	for _, msg := range ticket.Messages {
		if !msg.IsAdminReply {
			return false
		}
	}
	ticket.Status = domain.TicketStatusClosed
	closedAt := now
	ticket.ClosedAt = &closedAt
	return true
}

// applyLifecycleRules runs every derived rule and reports whether the
// ticket auto-closed, so callers can emit the matching event.
func applyLifecycleRules(ticket *domain.Ticket, now time.Time) (autoClosed bool) {
	ApplyUrgentKeywordEscalation(ticket)
	return ApplyAutoClose(ticket, now)
}

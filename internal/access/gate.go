package access

import (
	"github.com/spec-kit/commerce-support/internal/domain"
)

// Gate answers per-actor capability questions for ticket operations.
// Assigned staff receive no implicit message rights: only ownership or
// the admin flag grants them, and staff who need to reply are expected
// to hold admin.
type Gate struct{}

// NewGate constructs the authorization gate.
func NewGate() *Gate {
	return &Gate{}
}

// CanView reports whether actor may read the ticket.
func (g *Gate) CanView(ticket *domain.Ticket, actor *domain.User) bool {
	if ticket == nil || actor == nil {
		return false
	}
	return actor.IsAdmin || ticket.UserID == actor.ID
}

// CanMessage reports whether actor may append messages. Same rule as
// CanView: owner or admin.
func (g *Gate) CanMessage(ticket *domain.Ticket, actor *domain.User) bool {
	return g.CanView(ticket, actor)
}

// CanSetStatus reports whether actor may change ticket status or
// assignment.
func (g *Gate) CanSetStatus(actor *domain.User) bool {
	return actor != nil && actor.IsAdmin
}

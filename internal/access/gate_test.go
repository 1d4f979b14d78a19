package access

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/spec-kit/commerce-support/internal/domain"
)

func TestGate(t *testing.T) {
	gate := NewGate()
	staffID := "staff-1"
	ticket := &domain.Ticket{ID: "t1", UserID: "owner-1", AssignedStaffID: &staffID}

	owner := &domain.User{ID: "owner-1"}
	admin := &domain.User{ID: "admin-1", IsAdmin: true}
	assignedStaff := &domain.User{ID: "staff-1"}
	stranger := &domain.User{ID: "other-1"}

	t.Run("view", func(t *testing.T) {
		assert.True(t, gate.CanView(ticket, owner))
		assert.True(t, gate.CanView(ticket, admin))
		assert.False(t, gate.CanView(ticket, stranger))
		assert.False(t, gate.CanView(ticket, nil))
		assert.False(t, gate.CanView(nil, owner))
	})

	t.Run("message", func(t *testing.T) {
		assert.True(t, gate.CanMessage(ticket, owner))
		assert.True(t, gate.CanMessage(ticket, admin))
		assert.False(t, gate.CanMessage(ticket, stranger))
		// assignment alone grants nothing; replying staff hold admin
		assert.False(t, gate.CanMessage(ticket, assignedStaff))
	})

	t.Run("set status", func(t *testing.T) {
		assert.True(t, gate.CanSetStatus(admin))
		assert.False(t, gate.CanSetStatus(owner))
		assert.False(t, gate.CanSetStatus(nil))
	})
}

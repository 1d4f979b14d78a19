package notify

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spec-kit/commerce-support/internal/domain"
	"github.com/spec-kit/commerce-support/internal/events"
	"github.com/spec-kit/commerce-support/internal/realtime"
)

func newServiceFixture(lookup realtime.RoleLookup) (*Service, *recordingNotificationRepo, *realtime.Registry, events.Dispatcher) {
	repo := &recordingNotificationRepo{}
	users := &staticUserRepo{users: map[string]*domain.User{
		"u1": {ID: "u1", Email: "u1@example.com", Active: true},
		"s1": {ID: "s1", Email: "s1@example.com", Active: true, IsAdmin: true},
	}}
	registry := realtime.NewRegistry(lookup, nil)
	dispatcher := NewDispatcher(repo, users, registry, &recordingMailer{}, nil, time.Second)
	svc := NewService(dispatcher, registry, nil)
	bus := events.NewInMemoryDispatcher(nil)
	svc.RegisterHandlers(bus)
	return svc, repo, registry, bus
}

func TestTicketCreatedEvent(t *testing.T) {
	ctx := context.Background()
	_, repo, registry, bus := newServiceFixture(&adminLookup{ids: []string{"a1"}})
	adminConn := &pushConn{}
	registry.Register("a1", adminConn)

	require.NoError(t, bus.Publish(ctx, events.Event{
		Type:   events.EventTicketCreated,
		Ticket: &domain.Ticket{ID: "t1", UserID: "u1", Subject: "Damaged package"},
	}))

	records := repo.all()
	require.Len(t, records, 1)
	assert.Equal(t, "u1", records[0].UserID)
	assert.Equal(t, domain.NotificationTicketCreated, records[0].Type)

	frames := adminConn.received()
	require.Len(t, frames, 1)
	assert.Equal(t, PushEventNewTicket, frames[0].Event)
}

func TestStatusChangedEvent(t *testing.T) {
	ctx := context.Background()

	t.Run("closed ticket notifies as closed", func(t *testing.T) {
		_, repo, _, bus := newServiceFixture(nil)
		closedAt := time.Now()
		require.NoError(t, bus.Publish(ctx, events.Event{
			Type: events.EventTicketStatusChanged,
			Ticket: &domain.Ticket{
				ID: "t1", UserID: "u1", Subject: "Damaged package",
				Status: domain.TicketStatusClosed, ClosedAt: &closedAt,
			},
		}))
		records := repo.all()
		require.Len(t, records, 1)
		assert.Equal(t, domain.NotificationTicketClosed, records[0].Type)
	})

	t.Run("other transitions notify as updated", func(t *testing.T) {
		_, repo, _, bus := newServiceFixture(nil)
		require.NoError(t, bus.Publish(ctx, events.Event{
			Type: events.EventTicketStatusChanged,
			Ticket: &domain.Ticket{
				ID: "t1", UserID: "u1", Subject: "Damaged package",
				Status: domain.TicketStatusResolved,
			},
		}))
		records := repo.all()
		require.Len(t, records, 1)
		assert.Equal(t, domain.NotificationTicketUpdated, records[0].Type)
	})

	t.Run("owner connection receives ticket_updated push", func(t *testing.T) {
		_, _, registry, bus := newServiceFixture(nil)
		ownerConn := &pushConn{}
		registry.Register("u1", ownerConn)

		require.NoError(t, bus.Publish(ctx, events.Event{
			Type: events.EventTicketStatusChanged,
			Ticket: &domain.Ticket{
				ID: "t1", UserID: "u1", Subject: "Damaged package",
				Status: domain.TicketStatusInProgress,
			},
		}))

		var sawTicketUpdated bool
		for _, frame := range ownerConn.received() {
			if frame.Event == PushEventTicketUpdated {
				sawTicketUpdated = true
			}
		}
		assert.True(t, sawTicketUpdated)
	})
}

func TestTicketAssignedEvent(t *testing.T) {
	ctx := context.Background()
	_, repo, _, bus := newServiceFixture(nil)

	staffID := "s1"
	require.NoError(t, bus.Publish(ctx, events.Event{
		Type: events.EventTicketAssigned,
		Ticket: &domain.Ticket{
			ID: "t1", UserID: "u1", Subject: "Damaged package",
			AssignedStaffID: &staffID,
		},
	}))

	records := repo.all()
	require.Len(t, records, 1)
	assert.Equal(t, "s1", records[0].UserID)
	assert.Equal(t, domain.NotificationTicketAssigned, records[0].Type)
}

func TestEventWithoutTicketIsIgnored(t *testing.T) {
	ctx := context.Background()
	_, repo, _, bus := newServiceFixture(nil)

	require.NoError(t, bus.Publish(ctx, events.Event{Type: events.EventTicketCreated}))
	assert.Equal(t, 0, repo.count())
}

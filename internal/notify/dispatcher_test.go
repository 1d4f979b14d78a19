package notify

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spec-kit/commerce-support/internal/domain"
	"github.com/spec-kit/commerce-support/internal/realtime"
)

type recordingNotificationRepo struct {
	mu      sync.Mutex
	records []domain.Notification
	fail    error
}

func (r *recordingNotificationRepo) Create(_ context.Context, n *domain.Notification) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.fail != nil {
		return r.fail
	}
	n.ID = uuid.NewString()
	n.CreatedAt = time.Now()
	r.records = append(r.records, *n)
	return nil
}

func (r *recordingNotificationRepo) ListByUser(context.Context, string, int, int) ([]domain.Notification, error) {
	return nil, nil
}

func (r *recordingNotificationRepo) CountUnread(context.Context, string) (int64, error) {
	return 0, nil
}

func (r *recordingNotificationRepo) MarkRead(context.Context, string, string) error { return nil }

func (r *recordingNotificationRepo) DeleteAllForUser(context.Context, string) (int64, error) {
	return 0, nil
}

func (r *recordingNotificationRepo) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.records)
}

func (r *recordingNotificationRepo) all() []domain.Notification {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]domain.Notification(nil), r.records...)
}

type staticUserRepo struct {
	users map[string]*domain.User
}

func (r *staticUserRepo) Create(context.Context, *domain.User) error { return nil }

func (r *staticUserRepo) GetByID(_ context.Context, id string) (*domain.User, error) {
	user, ok := r.users[id]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	return user, nil
}

func (r *staticUserRepo) GetByEmail(context.Context, string) (*domain.User, error) {
	return nil, pgx.ErrNoRows
}

func (r *staticUserRepo) ListAdminIDs(context.Context) ([]string, error) { return nil, nil }

func (r *staticUserRepo) FirstActiveWithSupportRole(context.Context, string) (*domain.User, error) {
	return nil, pgx.ErrNoRows
}

type recordingMailer struct {
	mu   sync.Mutex
	sent []string
	fail error
}

func (m *recordingMailer) Send(to, _, _ string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.fail != nil {
		return m.fail
	}
	m.sent = append(m.sent, to)
	return nil
}

func (m *recordingMailer) sentTo() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.sent...)
}

type pushConn struct {
	mu     sync.Mutex
	frames []realtime.Envelope
}

func (c *pushConn) WriteJSON(v interface{}) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.frames = append(c.frames, v.(realtime.Envelope))
	return nil
}

func (c *pushConn) Close() error { return nil }

func (c *pushConn) received() []realtime.Envelope {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]realtime.Envelope(nil), c.frames...)
}

func newTestDispatcher(repo *recordingNotificationRepo, users *staticUserRepo, registry *realtime.Registry, mailer Mailer) *Dispatcher {
	return NewDispatcher(repo, users, registry, mailer, nil, time.Second)
}

func TestDispatch(t *testing.T) {
	ctx := context.Background()
	owner := &domain.User{ID: "u1", Email: "u1@example.com", Active: true}

	t.Run("persists exactly one record and pushes", func(t *testing.T) {
		repo := &recordingNotificationRepo{}
		users := &staticUserRepo{users: map[string]*domain.User{"u1": owner}}
		registry := realtime.NewRegistry(nil, nil)
		conn := &pushConn{}
		registry.Register("u1", conn)
		mailer := &recordingMailer{}
		d := newTestDispatcher(repo, users, registry, mailer)

		ticketID := "t1"
		err := d.Dispatch(ctx, Event{
			TargetUserID: "u1",
			TicketID:     &ticketID,
			Type:         domain.NotificationTicketUpdated,
			Message:      "your ticket moved",
		})
		require.NoError(t, err)
		assert.Equal(t, 1, repo.count())

		frames := conn.received()
		require.Len(t, frames, 1)
		assert.Equal(t, PushEventNewNotification, frames[0].Event)
		assert.Equal(t, []string{"u1@example.com"}, mailer.sentTo())
	})

	t.Run("persist failure returns error and skips delivery", func(t *testing.T) {
		repo := &recordingNotificationRepo{fail: errors.New("insert failed")}
		users := &staticUserRepo{users: map[string]*domain.User{"u1": owner}}
		registry := realtime.NewRegistry(nil, nil)
		conn := &pushConn{}
		registry.Register("u1", conn)
		mailer := &recordingMailer{}
		d := newTestDispatcher(repo, users, registry, mailer)

		err := d.Dispatch(ctx, Event{TargetUserID: "u1", Type: domain.NotificationTicketUpdated, Message: "m"})
		assert.Error(t, err)
		assert.Empty(t, conn.received())
		assert.Empty(t, mailer.sentTo())
	})

	t.Run("email failure is swallowed", func(t *testing.T) {
		repo := &recordingNotificationRepo{}
		users := &staticUserRepo{users: map[string]*domain.User{"u1": owner}}
		mailer := &recordingMailer{fail: errors.New("smtp down")}
		d := newTestDispatcher(repo, users, realtime.NewRegistry(nil, nil), mailer)

		err := d.Dispatch(ctx, Event{TargetUserID: "u1", Type: domain.NotificationTicketUpdated, Message: "m"})
		assert.NoError(t, err)
		assert.Equal(t, 1, repo.count())
	})

	t.Run("offline recipient still gets a record", func(t *testing.T) {
		repo := &recordingNotificationRepo{}
		users := &staticUserRepo{users: map[string]*domain.User{"u1": owner}}
		d := newTestDispatcher(repo, users, realtime.NewRegistry(nil, nil), &recordingMailer{})

		err := d.Dispatch(ctx, Event{TargetUserID: "u1", Type: domain.NotificationTicketClosed, Message: "m"})
		require.NoError(t, err)
		assert.Equal(t, 1, repo.count())
	})
}

type adminLookup struct {
	ids []string
}

func (l *adminLookup) MemberIDs(_ context.Context, role string) ([]string, error) {
	if role != realtime.RoleAdmin {
		return nil, nil
	}
	return l.ids, nil
}

func TestFanOutTicketUpdate(t *testing.T) {
	ctx := context.Background()
	owner := &domain.User{ID: "u1", Email: "u1@example.com", Active: true}
	staff := &domain.User{ID: "s1", Email: "s1@example.com", Active: true, IsAdmin: true}

	t.Run("notifies owner, staff and admin connections", func(t *testing.T) {
		repo := &recordingNotificationRepo{}
		users := &staticUserRepo{users: map[string]*domain.User{"u1": owner, "s1": staff}}
		registry := realtime.NewRegistry(&adminLookup{ids: []string{"a9"}}, nil)
		adminConn := &pushConn{}
		registry.Register("a9", adminConn)
		d := newTestDispatcher(repo, users, registry, &recordingMailer{})

		staffID := "s1"
		ticket := &domain.Ticket{ID: "t1", UserID: "u1", Subject: "Lost parcel", AssignedStaffID: &staffID}
		d.FanOutTicketUpdate(ctx, ticket, domain.NotificationTicketEscalated, "escalated")

		// one record per directed recipient; the admin broadcast is push only
		records := repo.all()
		require.Len(t, records, 2)
		assert.Equal(t, "u1", records[0].UserID)
		assert.Equal(t, "s1", records[1].UserID)
		assert.Len(t, adminConn.received(), 1)
	})

	t.Run("staff equal to owner is not notified twice", func(t *testing.T) {
		repo := &recordingNotificationRepo{}
		users := &staticUserRepo{users: map[string]*domain.User{"u1": owner}}
		d := newTestDispatcher(repo, users, realtime.NewRegistry(nil, nil), &recordingMailer{})

		ownerID := "u1"
		ticket := &domain.Ticket{ID: "t1", UserID: "u1", Subject: "Lost parcel", AssignedStaffID: &ownerID}
		d.FanOutTicketUpdate(ctx, ticket, domain.NotificationTicketUpdated, "updated")

		assert.Equal(t, 1, repo.count())
	})

	t.Run("owner persist failure does not stop staff delivery", func(t *testing.T) {
		// fail the first insert only
		repo := &recordingNotificationRepo{}
		firstFailRepo := &flakyNotificationRepo{inner: repo, failures: 1}
		users := &staticUserRepo{users: map[string]*domain.User{"u1": owner, "s1": staff}}
		d := NewDispatcher(firstFailRepo, users, realtime.NewRegistry(nil, nil), &recordingMailer{}, nil, time.Second)

		staffID := "s1"
		ticket := &domain.Ticket{ID: "t1", UserID: "u1", Subject: "Lost parcel", AssignedStaffID: &staffID}
		d.FanOutTicketUpdate(ctx, ticket, domain.NotificationTicketUpdated, "updated")

		records := repo.all()
		require.Len(t, records, 1)
		assert.Equal(t, "s1", records[0].UserID)
	})
}

type flakyNotificationRepo struct {
	inner    *recordingNotificationRepo
	mu       sync.Mutex
	failures int
}

func (r *flakyNotificationRepo) Create(ctx context.Context, n *domain.Notification) error {
	r.mu.Lock()
	if r.failures > 0 {
		r.failures--
		r.mu.Unlock()
		return errors.New("insert failed")
	}
	r.mu.Unlock()
	return r.inner.Create(ctx, n)
}

func (r *flakyNotificationRepo) ListByUser(ctx context.Context, userID string, limit, offset int) ([]domain.Notification, error) {
	return r.inner.ListByUser(ctx, userID, limit, offset)
}

func (r *flakyNotificationRepo) CountUnread(ctx context.Context, userID string) (int64, error) {
	return r.inner.CountUnread(ctx, userID)
}

func (r *flakyNotificationRepo) MarkRead(ctx context.Context, userID, id string) error {
	return r.inner.MarkRead(ctx, userID, id)
}

func (r *flakyNotificationRepo) DeleteAllForUser(ctx context.Context, userID string) (int64, error) {
	return r.inner.DeleteAllForUser(ctx, userID)
}

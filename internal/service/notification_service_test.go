package service

import (
	"context"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spec-kit/commerce-support/internal/domain"
	"github.com/spec-kit/commerce-support/pkg/apperrors"
)

type fakeNotificationRepo struct {
	mu      sync.Mutex
	records []domain.Notification
}

func (r *fakeNotificationRepo) Create(_ context.Context, n *domain.Notification) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if n.ID == "" {
		n.ID = uuid.NewString()
	}
	r.records = append(r.records, *n)
	return nil
}

func (r *fakeNotificationRepo) ListByUser(_ context.Context, userID string, limit, offset int) ([]domain.Notification, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []domain.Notification
	for _, n := range r.records {
		if n.UserID == userID {
			out = append(out, n)
		}
	}
	return out, nil
}

func (r *fakeNotificationRepo) CountUnread(_ context.Context, userID string) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var count int64
	for _, n := range r.records {
		if n.UserID == userID && !n.IsRead {
			count++
		}
	}
	return count, nil
}

func (r *fakeNotificationRepo) MarkRead(_ context.Context, userID, notificationID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i := range r.records {
		if r.records[i].ID == notificationID && r.records[i].UserID == userID {
			r.records[i].IsRead = true
			return nil
		}
	}
	return pgx.ErrNoRows
}

func (r *fakeNotificationRepo) DeleteAllForUser(_ context.Context, userID string) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var kept []domain.Notification
	var deleted int64
	for _, n := range r.records {
		if n.UserID == userID {
			deleted++
			continue
		}
		kept = append(kept, n)
	}
	r.records = kept
	return deleted, nil
}

func TestNotificationInbox(t *testing.T) {
	ctx := context.Background()
	owner := customer("u1")
	other := customer("u2")
	repo := &fakeNotificationRepo{}
	svc := NewNotificationService(repo)

	seed := func(userID string) string {
		n := &domain.Notification{UserID: userID, Type: domain.NotificationTicketUpdated, Message: "m"}
		require.NoError(t, repo.Create(ctx, n))
		return n.ID
	}
	first := seed(owner.ID)
	seed(owner.ID)
	seed(other.ID)

	t.Run("list is scoped to owner with unread count", func(t *testing.T) {
		page, err := svc.List(ctx, owner, 50, 0)
		require.NoError(t, err)
		assert.Len(t, page.Items, 2)
		assert.Equal(t, int64(2), page.UnreadCount)
	})

	t.Run("mark read drops unread count", func(t *testing.T) {
		require.NoError(t, svc.MarkRead(ctx, owner, first))
		page, err := svc.List(ctx, owner, 50, 0)
		require.NoError(t, err)
		assert.Equal(t, int64(1), page.UnreadCount)
	})

	t.Run("marking someone else's notification is not found", func(t *testing.T) {
		err := svc.MarkRead(ctx, other, first)
		assert.True(t, apperrors.IsCode(err, apperrors.CodeNotFound))
	})

	t.Run("clear all removes only owner's records", func(t *testing.T) {
		deleted, err := svc.ClearAll(ctx, owner)
		require.NoError(t, err)
		assert.Equal(t, int64(2), deleted)

		page, err := svc.List(ctx, other, 50, 0)
		require.NoError(t, err)
		assert.Len(t, page.Items, 1)
	})
}

package service

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"

	"github.com/spec-kit/commerce-support/internal/domain"
	"github.com/spec-kit/commerce-support/internal/repository"
	"github.com/spec-kit/commerce-support/pkg/apperrors"
)

// NotificationService exposes the owner-facing inbox: list with unread
// count, read-toggle, bulk clear. Records are created exclusively by
// the dispatcher.
type NotificationService struct {
	notifications repository.NotificationRepository
}

// NewNotificationService constructs the service.
func NewNotificationService(notifications repository.NotificationRepository) *NotificationService {
	return &NotificationService{notifications: notifications}
}

// NotificationPage is a page of the inbox plus the owner's unread count.
type NotificationPage struct {
	Items       []domain.Notification
	UnreadCount int64
}

// List returns a page of the actor's notifications.
func (s *NotificationService) List(ctx context.Context, actor *domain.User, limit, offset int) (*NotificationPage, error) {
	if actor == nil {
		return nil, apperrors.NewUnauthorized("actor required")
	}
	items, err := s.notifications.ListByUser(ctx, actor.ID, limit, offset)
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	unread, err := s.notifications.CountUnread(ctx, actor.ID)
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	return &NotificationPage{Items: items, UnreadCount: unread}, nil
}

// MarkRead flips is_read on a notification the actor owns.
func (s *NotificationService) MarkRead(ctx context.Context, actor *domain.User, notificationID string) error {
	if actor == nil {
		return apperrors.NewUnauthorized("actor required")
	}
	if err := s.notifications.MarkRead(ctx, actor.ID, notificationID); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return apperrors.NewNotFound("notification", map[string]any{"notification_id": notificationID})
		}
		return apperrors.MapError(err)
	}
	return nil
}

// ClearAll deletes every notification the actor owns and returns the
// number removed.
func (s *NotificationService) ClearAll(ctx context.Context, actor *domain.User) (int64, error) {
	if actor == nil {
		return 0, apperrors.NewUnauthorized("actor required")
	}
	deleted, err := s.notifications.DeleteAllForUser(ctx, actor.ID)
	if err != nil {
		return 0, apperrors.MapError(err)
	}
	return deleted, nil
}

package service

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/spec-kit/commerce-support/internal/domain"
	"github.com/spec-kit/commerce-support/internal/repository"
	"github.com/spec-kit/commerce-support/pkg/apperrors"
)

// OrderService exposes the order boundary the ticket engine validates
// against. Orders are provisioned by admins; there is no cart or
// payment flow behind them.
type OrderService struct {
	orders repository.OrderRepository
	now    func() time.Time
}

// NewOrderService constructs the service.
func NewOrderService(orders repository.OrderRepository) *OrderService {
	return &OrderService{orders: orders, now: time.Now}
}

// ListMine returns a page of the actor's orders.
func (s *OrderService) ListMine(ctx context.Context, actor *domain.User, limit, offset int) ([]domain.Order, error) {
	if actor == nil {
		return nil, apperrors.NewUnauthorized("actor required")
	}
	orders, err := s.orders.ListByUser(ctx, actor.ID, limit, offset)
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	return orders, nil
}

// Provision creates an order record on behalf of a user. Admin only.
func (s *OrderService) Provision(ctx context.Context, actor *domain.User, userID string, totalCents int64) (*domain.Order, error) {
	if actor == nil || !actor.IsAdmin {
		return nil, apperrors.NewForbidden("admin required")
	}
	if userID == "" {
		return nil, apperrors.NewValidationError("user_id required", nil)
	}
	if totalCents < 0 {
		return nil, apperrors.NewValidationError("total_cents must not be negative", nil)
	}

	order := &domain.Order{
		ID:         uuid.NewString(),
		UserID:     userID,
		TotalCents: totalCents,
		Status:     domain.OrderStatusPaid,
		CreatedAt:  s.now().UTC(),
	}
	if err := s.orders.Create(ctx, order); err != nil {
		return nil, apperrors.MapError(err)
	}
	return order, nil
}
